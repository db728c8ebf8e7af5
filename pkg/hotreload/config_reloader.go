package hotreload

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"ssw-alert-watcher/internal/config"
	"ssw-alert-watcher/internal/metrics"
	"ssw-alert-watcher/pkg/types"

	"github.com/cespare/xxhash/v2"
	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// ConfigReloader gerencia o reload automático do arquivo de configuração
type ConfigReloader struct {
	config     Config
	logger     *logrus.Logger
	configFile string

	watcher *fsnotify.Watcher

	onConfigChanged func(oldConfig, newConfig *types.Config) error
	onReloadSuccess func(*types.Config)
	onReloadError   func(error)

	// reloadMux serializa reloads vindos do watcher e de TriggerReload
	reloadMux     sync.Mutex
	configMux     sync.RWMutex
	currentConfig *types.Config
	currentHash   string

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool

	statsMux sync.Mutex
	stats    Stats
}

// Config configuração do hot reload
type Config struct {
	Enabled          bool
	DebounceInterval time.Duration
}

// Stats estatísticas do config reloader
type Stats struct {
	TotalReloads      int64     `json:"total_reloads"`
	SuccessfulReloads int64     `json:"successful_reloads"`
	FailedReloads     int64     `json:"failed_reloads"`
	UnchangedReloads  int64     `json:"unchanged_reloads"`
	LastReloadTime    time.Time `json:"last_reload_time"`
	LastSuccessTime   time.Time `json:"last_success_time"`
	LastError         string    `json:"last_error,omitempty"`
	ConfigVersion     string    `json:"config_version"`
	IsWatching        bool      `json:"is_watching"`
}

// ConfigFromTypes converts the hot_reload section of the configuration.
func ConfigFromTypes(cfg types.HotReloadConfig) (Config, error) {
	out := Config{Enabled: cfg.Enabled}
	if cfg.DebounceInterval != "" {
		d, err := time.ParseDuration(cfg.DebounceInterval)
		if err != nil {
			return out, fmt.Errorf("invalid hot_reload.debounce_interval %q: %w", cfg.DebounceInterval, err)
		}
		out.DebounceInterval = d
	}
	return out, nil
}

// NewConfigReloader cria um reloader para configFile. initial is the
// configuration the application is currently running with.
func NewConfigReloader(cfg Config, configFile string, initial *types.Config, logger *logrus.Logger) (*ConfigReloader, error) {
	if cfg.DebounceInterval <= 0 {
		cfg.DebounceInterval = time.Second
	}

	absPath, err := filepath.Abs(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path: %w", err)
	}

	cr := &ConfigReloader{
		config:        cfg,
		logger:        logger,
		configFile:    absPath,
		currentConfig: initial,
	}

	if hash, err := hashFile(absPath); err == nil {
		cr.currentHash = hash
		cr.stats.ConfigVersion = hash
	} else {
		logger.WithError(err).Debug("Config file not readable, starting without content hash")
	}

	return cr, nil
}

// SetCallbacks define callbacks para eventos de reload.
//
// onChanged applies the new configuration; returning an error rejects the
// reload and the previous configuration stays current.
func (cr *ConfigReloader) SetCallbacks(
	onChanged func(oldConfig, newConfig *types.Config) error,
	onSuccess func(*types.Config),
	onError func(error),
) {
	cr.onConfigChanged = onChanged
	cr.onReloadSuccess = onSuccess
	cr.onReloadError = onError
}

// Start inicia o watcher do diretório de configuração
func (cr *ConfigReloader) Start() error {
	if !cr.config.Enabled {
		cr.logger.Info("Config reloader disabled")
		return nil
	}

	cr.configMux.Lock()
	defer cr.configMux.Unlock()

	if cr.running {
		return fmt.Errorf("config reloader already running")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}

	// O diretório é observado (e não o arquivo) para sobreviver a editores
	// e ConfigMaps que substituem o arquivo via rename.
	configDir := filepath.Dir(cr.configFile)
	if err := watcher.Add(configDir); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch config directory %s: %w", configDir, err)
	}

	cr.watcher = watcher
	cr.ctx, cr.cancel = context.WithCancel(context.Background())
	cr.running = true
	cr.setWatching(true)

	cr.wg.Add(1)
	go cr.watchFileChanges()

	cr.logger.WithFields(logrus.Fields{
		"config_file": cr.configFile,
		"debounce":    cr.config.DebounceInterval,
	}).Info("Config reloader started")
	return nil
}

// Stop para o config reloader
func (cr *ConfigReloader) Stop() error {
	cr.configMux.Lock()
	if !cr.running {
		cr.configMux.Unlock()
		return nil
	}
	cr.running = false
	cr.configMux.Unlock()

	cr.cancel()
	err := cr.watcher.Close()
	cr.wg.Wait()
	cr.setWatching(false)

	cr.logger.Info("Config reloader stopped")
	if err != nil {
		return fmt.Errorf("failed to close file watcher: %w", err)
	}
	return nil
}

// watchFileChanges agrupa eventos em rajada e recarrega uma vez por rajada
func (cr *ConfigReloader) watchFileChanges() {
	defer cr.wg.Done()

	debounceTimer := time.NewTimer(0)
	if !debounceTimer.Stop() {
		<-debounceTimer.C
	}
	defer debounceTimer.Stop()

	for {
		select {
		case <-cr.ctx.Done():
			return

		case event, ok := <-cr.watcher.Events:
			if !ok {
				return
			}
			if !cr.shouldProcessEvent(event) {
				continue
			}
			cr.logger.WithFields(logrus.Fields{
				"file":      event.Name,
				"operation": event.Op.String(),
			}).Debug("Config file change detected")

			if !debounceTimer.Stop() {
				select {
				case <-debounceTimer.C:
				default:
				}
			}
			debounceTimer.Reset(cr.config.DebounceInterval)

		case err, ok := <-cr.watcher.Errors:
			if !ok {
				return
			}
			metrics.RecordError("config_reloader", "watch_error")
			cr.logger.WithError(err).Error("File watcher error")

		case <-debounceTimer.C:
			if err := cr.TriggerReload(); err != nil {
				cr.logger.WithError(err).Error("Config reload failed, keeping current configuration")
			}
		}
	}
}

func (cr *ConfigReloader) shouldProcessEvent(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
		return false
	}
	absPath, err := filepath.Abs(event.Name)
	if err != nil {
		return false
	}
	return absPath == cr.configFile
}

// TriggerReload recarrega o arquivo imediatamente. Content identical to the
// running version is a no-op.
func (cr *ConfigReloader) TriggerReload() error {
	cr.reloadMux.Lock()
	defer cr.reloadMux.Unlock()

	startTime := time.Now()

	newHash, err := hashFile(cr.configFile)
	if err != nil {
		return cr.fail(startTime, fmt.Errorf("failed to read config file: %w", err))
	}

	cr.configMux.RLock()
	oldHash := cr.currentHash
	oldConfig := cr.currentConfig
	cr.configMux.RUnlock()

	if newHash == oldHash {
		cr.statsMux.Lock()
		cr.stats.UnchangedReloads++
		cr.statsMux.Unlock()
		metrics.RecordConfigReload("unchanged")
		cr.logger.WithField("config_version", newHash).Debug("Config content unchanged, skipping reload")
		return nil
	}

	newConfig, err := config.LoadConfig(cr.configFile)
	if err != nil {
		return cr.fail(startTime, fmt.Errorf("failed to load new config: %w", err))
	}
	if err := config.ValidateConfig(newConfig); err != nil {
		return cr.fail(startTime, fmt.Errorf("new config validation failed: %w", err))
	}

	if cr.onConfigChanged != nil {
		if err := cr.onConfigChanged(oldConfig, newConfig); err != nil {
			return cr.fail(startTime, fmt.Errorf("failed to apply config changes: %w", err))
		}
	}

	cr.configMux.Lock()
	cr.currentConfig = newConfig
	cr.currentHash = newHash
	cr.configMux.Unlock()

	cr.statsMux.Lock()
	cr.stats.TotalReloads++
	cr.stats.SuccessfulReloads++
	cr.stats.LastReloadTime = startTime
	cr.stats.LastSuccessTime = time.Now()
	cr.stats.ConfigVersion = newHash
	cr.stats.LastError = ""
	cr.statsMux.Unlock()

	metrics.RecordConfigReload("success")
	if cr.onReloadSuccess != nil {
		cr.onReloadSuccess(newConfig)
	}

	cr.logger.WithFields(logrus.Fields{
		"reload_time":    time.Since(startTime),
		"old_version":    oldHash,
		"config_version": newHash,
	}).Info("Config reload completed successfully")
	return nil
}

func (cr *ConfigReloader) fail(startTime time.Time, err error) error {
	cr.statsMux.Lock()
	cr.stats.TotalReloads++
	cr.stats.FailedReloads++
	cr.stats.LastReloadTime = startTime
	cr.stats.LastError = err.Error()
	cr.statsMux.Unlock()

	metrics.RecordConfigReload("failed")
	if cr.onReloadError != nil {
		cr.onReloadError(err)
	}
	return err
}

func (cr *ConfigReloader) setWatching(watching bool) {
	cr.statsMux.Lock()
	cr.stats.IsWatching = watching
	cr.statsMux.Unlock()
}

// GetCurrentConfig retorna a última configuração aplicada
func (cr *ConfigReloader) GetCurrentConfig() *types.Config {
	cr.configMux.RLock()
	defer cr.configMux.RUnlock()
	return cr.currentConfig
}

// GetStats retorna estatísticas do reloader
func (cr *ConfigReloader) GetStats() Stats {
	cr.statsMux.Lock()
	defer cr.statsMux.Unlock()
	return cr.stats
}

// IsHealthy verifica se o reloader está observando o arquivo (ou desabilitado)
func (cr *ConfigReloader) IsHealthy() bool {
	if !cr.config.Enabled {
		return true
	}
	cr.configMux.RLock()
	defer cr.configMux.RUnlock()
	return cr.running
}

// hashFile calcula o xxhash do conteúdo do arquivo
func hashFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strconv.FormatUint(xxhash.Sum64(data), 16), nil
}
