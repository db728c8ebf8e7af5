package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"reflect"
	"sync"
	"syscall"
	"time"

	"ssw-alert-watcher/internal/config"
	"ssw-alert-watcher/internal/engine"
	"ssw-alert-watcher/internal/metrics"
	"ssw-alert-watcher/internal/monitors"
	"ssw-alert-watcher/internal/sinks"
	"ssw-alert-watcher/pkg/hotreload"
	"ssw-alert-watcher/pkg/tracing"
	"ssw-alert-watcher/pkg/types"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

// lineSource is what the app needs from a configured input.
type lineSource interface {
	types.LineSource
	IsHealthy() bool
	Status() monitors.SourceStatus
}

// App representa a aplicação principal
type App struct {
	configMux  sync.RWMutex
	config     *types.Config
	configFile string
	logger     *logrus.Logger
	stdin      io.Reader

	engine     *engine.Engine
	alertSinks *sinks.MultiSink
	slackSink  *sinks.SlackSink
	kafkaSink  *sinks.KafkaSink
	source     lineSource
	sourceDone <-chan struct{}

	reloader        *hotreload.ConfigReloader
	tracingManager  *tracing.TracingManager
	systemCollector *metrics.SystemCollector

	router        *mux.Router
	httpServer    *http.Server
	metricsServer *metrics.MetricsServer

	startTime time.Time
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// New carrega a configuração de configFile e monta a aplicação
func New(configFile string) (*App, error) {
	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := config.ValidateConfig(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return newApp(cfg, configFile, newLogger(cfg.App), nil)
}

// NewWithConfig monta a aplicação a partir de uma configuração já validada
func NewWithConfig(cfg *types.Config, configFile string, logger *logrus.Logger) (*App, error) {
	return newApp(cfg, configFile, logger, nil)
}

func newApp(cfg *types.Config, configFile string, logger *logrus.Logger, stdin io.Reader) (*App, error) {
	ctx, cancel := context.WithCancel(context.Background())

	app := &App{
		config:     cfg,
		configFile: configFile,
		logger:     logger,
		stdin:      stdin,
		ctx:        ctx,
		cancel:     cancel,
	}

	if err := app.initializeComponents(); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to initialize components: %w", err)
	}

	return app, nil
}

func newLogger(cfg types.AppConfig) *logrus.Logger {
	logger := logrus.New()
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if cfg.LogFormat == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return logger
}

// initializeComponents inicializa todos os componentes da aplicação
func (app *App) initializeComponents() error {
	if err := app.initTracing(); err != nil {
		return err
	}
	if err := app.initSinks(); err != nil {
		return err
	}

	app.engine = engine.New(
		engine.SettingsFromConfig(app.config.Watcher),
		app.alertSinks,
		app.logger,
		engine.WithTracer(app.tracingManager.GetTracer()),
	)

	if err := app.initSource(); err != nil {
		return err
	}
	if err := app.initReloader(); err != nil {
		return err
	}

	app.systemCollector = metrics.NewSystemCollector(15*time.Second, app.logger)
	app.initHTTPServer()
	app.initMetricsServer()
	return nil
}

func (app *App) initTracing() error {
	tm, err := tracing.NewTracingManager(app.config.Tracing, app.config.App.Version, app.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	app.tracingManager = tm
	return nil
}

// initSinks monta os destinos de alerta. Sem Slack, o log sink vira o
// destino principal e sinaliza isso na mensagem.
func (app *App) initSinks() error {
	var managed []types.ManagedSink
	slackEnabled := app.config.Sinks.Slack.Enabled

	if slackEnabled {
		slack, err := sinks.NewSlackSink(app.config.Sinks.Slack, app.logger)
		if err != nil {
			return fmt.Errorf("failed to create slack sink: %w", err)
		}
		app.slackSink = slack
		managed = append(managed, slack)
	} else {
		app.logger.Warn("Slack webhook not configured, alerts will only be logged")
	}

	if app.config.Sinks.Log.Enabled || !slackEnabled {
		managed = append(managed, sinks.NewLogSink(app.logger, !slackEnabled))
	}

	if app.config.Sinks.Kafka.Enabled {
		kafka, err := sinks.NewKafkaSink(app.config.Sinks.Kafka, app.logger)
		if err != nil {
			return fmt.Errorf("failed to create kafka sink: %w", err)
		}
		app.kafkaSink = kafka
		managed = append(managed, kafka)
	}

	app.alertSinks = sinks.NewMultiSink(app.logger, managed...)
	return nil
}

func (app *App) initSource() error {
	switch app.config.Source.Type {
	case "stdin":
		var rs *monitors.ReaderSource
		if app.stdin != nil {
			rs = monitors.NewReaderSource("stdin", app.stdin, app.engine, app.logger)
		} else {
			rs = monitors.NewStdinSource(app.engine, app.logger)
		}
		app.source = rs
		app.sourceDone = rs.Done()
	case "file":
		app.source = monitors.NewFileTailer(app.config.Source, app.engine, app.logger)
	default:
		return fmt.Errorf("unsupported source type: %s", app.config.Source.Type)
	}
	return nil
}

func (app *App) initReloader() error {
	if !app.config.HotReload.Enabled {
		app.logger.Debug("Hot reload disabled")
		return nil
	}
	if app.configFile == "" {
		app.logger.Warn("Hot reload enabled but no config file given, ignoring")
		return nil
	}

	reloadConfig, err := hotreload.ConfigFromTypes(app.config.HotReload)
	if err != nil {
		return err
	}
	reloader, err := hotreload.NewConfigReloader(reloadConfig, app.configFile, app.config, app.logger)
	if err != nil {
		return fmt.Errorf("failed to create config reloader: %w", err)
	}
	reloader.SetCallbacks(app.handleConfigReload, nil, nil)
	app.reloader = reloader
	return nil
}

// handleConfigReload aplica threshold, cooldown e maintenance mode ao engine.
// Mudanças em janela, fonte ou sinks só valem após restart.
func (app *App) handleConfigReload(oldConfig, newConfig *types.Config) error {
	settings := engine.SettingsFromConfig(newConfig.Watcher)
	restartRequired := app.engine.UpdateSettings(settings)

	app.logger.WithFields(logrus.Fields{
		"error_rate_threshold": settings.ErrorRateThreshold,
		"alert_cooldown_sec":   newConfig.Watcher.AlertCooldownSec,
		"maintenance_mode":     settings.MaintenanceMode,
		"min_samples":          newConfig.Watcher.MinSamples,
	}).Info("Watcher settings reloaded")

	if restartRequired {
		app.logger.WithField("window_size", newConfig.Watcher.WindowSize).
			Warn("window_size changed, restart required for it to take effect")
	}
	if oldConfig != nil {
		if oldConfig.Source != newConfig.Source {
			app.logger.Warn("source settings changed, restart required for them to take effect")
		}
		if !reflect.DeepEqual(oldConfig.Sinks, newConfig.Sinks) {
			app.logger.Warn("sink settings changed, restart required for them to take effect")
		}
	}

	app.configMux.Lock()
	app.config = newConfig
	app.configMux.Unlock()
	return nil
}

func (app *App) currentConfig() *types.Config {
	app.configMux.RLock()
	defer app.configMux.RUnlock()
	return app.config
}

func (app *App) initHTTPServer() {
	app.router = mux.NewRouter()
	app.registerHandlers(app.router)

	if !app.config.Server.Enabled {
		app.logger.Info("HTTP server disabled in configuration")
		return
	}

	addr := fmt.Sprintf("%s:%d", app.config.Server.Host, app.config.Server.Port)
	app.httpServer = &http.Server{
		Addr:              addr,
		Handler:           app.router,
		ReadHeaderTimeout: parseDurationSafe(app.config.Server.ReadTimeout, 10*time.Second),
		ReadTimeout:       parseDurationSafe(app.config.Server.ReadTimeout, 10*time.Second),
		WriteTimeout:      parseDurationSafe(app.config.Server.WriteTimeout, 10*time.Second),
	}
}

func (app *App) initMetricsServer() {
	if !app.config.Metrics.Enabled {
		return
	}
	addr := fmt.Sprintf(":%d", app.config.Metrics.Port)
	app.metricsServer = metrics.NewMetricsServer(addr, app.config.Metrics.Path, app.logger)
}

// Start inicia a aplicação
func (app *App) Start() error {
	app.startTime = time.Now()
	app.logBanner()

	if app.metricsServer != nil {
		if err := app.metricsServer.Start(); err != nil {
			return fmt.Errorf("failed to start metrics server: %w", err)
		}
	}

	if err := app.systemCollector.Start(app.ctx); err != nil {
		return fmt.Errorf("failed to start system collector: %w", err)
	}

	if err := app.alertSinks.Start(app.ctx); err != nil {
		return fmt.Errorf("failed to start sinks: %w", err)
	}

	if err := app.source.Start(app.ctx); err != nil {
		return fmt.Errorf("failed to start source: %w", err)
	}

	if app.reloader != nil {
		if err := app.reloader.Start(); err != nil {
			// o watcher continua funcionando sem hot reload
			app.logger.WithError(err).Warn("Config hot reload unavailable")
		}
	}

	if app.httpServer != nil {
		app.wg.Add(1)
		go func() {
			defer app.wg.Done()
			app.logger.WithField("addr", app.httpServer.Addr).Info("Starting HTTP server")
			if err := app.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				app.logger.WithError(err).Error("HTTP server error")
			}
		}()
	}

	app.logger.Info("Alert watcher started")
	return nil
}

func (app *App) logBanner() {
	cfg := app.currentConfig()
	source := cfg.Source.Path
	if cfg.Source.Type == "stdin" {
		source = "stdin"
	}

	app.logger.WithFields(logrus.Fields{
		"version":              cfg.App.Version,
		"source":               source,
		"error_rate_threshold": cfg.Watcher.ErrorRateThreshold,
		"window_size":          cfg.Watcher.WindowSize,
		"alert_cooldown_sec":   cfg.Watcher.AlertCooldownSec,
		"maintenance_mode":     cfg.Watcher.MaintenanceMode,
		"min_samples":          cfg.Watcher.MinSamples,
		"sinks":                app.alertSinks.Names(),
	}).Info("Starting blue/green alert watcher")
}

// Stop para a aplicação
func (app *App) Stop() error {
	app.logger.Info("Stopping alert watcher")

	app.cancel()

	if app.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := app.httpServer.Shutdown(ctx); err != nil {
			app.logger.WithError(err).Warn("HTTP server shutdown error")
		}
		cancel()
	}

	if app.reloader != nil {
		if err := app.reloader.Stop(); err != nil {
			app.logger.WithError(err).Error("Failed to stop config reloader")
		}
	}

	if err := app.source.Stop(); err != nil {
		app.logger.WithError(err).Error("Failed to stop source")
	}

	// após a fonte, para que alertas já enfileirados ainda sejam entregues
	if err := app.alertSinks.Stop(); err != nil {
		app.logger.WithError(err).Error("Failed to stop sinks")
	}

	if err := app.systemCollector.Stop(); err != nil {
		app.logger.WithError(err).Error("Failed to stop system collector")
	}

	if app.metricsServer != nil {
		if err := app.metricsServer.Stop(); err != nil {
			app.logger.WithError(err).Warn("Failed to stop metrics server")
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := app.tracingManager.Shutdown(ctx); err != nil {
		app.logger.WithError(err).Warn("Failed to flush traces")
	}

	app.wg.Wait()

	app.logger.Info("Alert watcher stopped")
	return nil
}

// Run executa a aplicação até SIGINT/SIGTERM ou o fim da entrada (stdin)
func (app *App) Run() error {
	if err := app.Start(); err != nil {
		app.Stop()
		return err
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case sig := <-sigChan:
		app.logger.WithField("signal", sig.String()).Info("Shutdown signal received")
	case <-app.sourceDone:
		app.logger.Info("Input stream ended")
	}

	return app.Stop()
}

func parseDurationSafe(durationStr string, fallback time.Duration) time.Duration {
	if durationStr == "" {
		return fallback
	}
	d, err := time.ParseDuration(durationStr)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
