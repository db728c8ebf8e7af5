package monitors

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"ssw-alert-watcher/internal/metrics"
	apperrors "ssw-alert-watcher/pkg/errors"
	"ssw-alert-watcher/pkg/types"

	"github.com/nxadm/tail"
	"github.com/sirupsen/logrus"
)

// FileTailer follows one access log and feeds each new line to a handler,
// in file order, from a single goroutine.
//
// The file does not need to exist yet: the tailer waits for it to be
// created and reopens it after rotation. By default it starts at the end
// of the file so a restart does not replay old traffic.
type FileTailer struct {
	config  types.SourceConfig
	handler types.LineHandler
	logger  *logrus.Logger

	tail *tail.Tail

	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mutex     sync.RWMutex
	isRunning bool
	tailErr   error

	linesRead  int64
	lineErrors int64
	lastLineAt atomic.Int64
}

// NewFileTailer cria um novo tailer para o arquivo de access log
func NewFileTailer(config types.SourceConfig, handler types.LineHandler, logger *logrus.Logger) *FileTailer {
	return &FileTailer{
		config:  config,
		handler: handler,
		logger:  logger,
	}
}

// Start abre o arquivo (ou aguarda sua criação) e inicia a leitura
func (ft *FileTailer) Start(ctx context.Context) error {
	ft.mutex.Lock()
	defer ft.mutex.Unlock()

	if ft.isRunning {
		return fmt.Errorf("file tailer already running")
	}
	if ft.config.Path == "" {
		return apperrors.New(apperrors.CodeSourceUnavailable, "file_tailer", "start", "no log path configured")
	}

	location := &tail.SeekInfo{Offset: 0, Whence: io.SeekEnd}
	if ft.config.FromBeginning {
		location = nil
	}

	t, err := tail.TailFile(ft.config.Path, tail.Config{
		Follow:    true,
		ReOpen:    true,
		MustExist: false,
		Poll:      ft.config.Poll,
		Location:  location,
		Logger:    tail.DiscardingLogger,
	})
	if err != nil {
		return apperrors.New(apperrors.CodeSourceUnavailable, "file_tailer", "start", "failed to tail file").
			Wrap(err).
			WithMetadata("path", ft.config.Path)
	}

	ft.tail = t
	ft.ctx, ft.cancel = context.WithCancel(ctx)
	ft.isRunning = true
	ft.tailErr = nil

	ft.logger.WithFields(logrus.Fields{
		"path":           ft.config.Path,
		"from_beginning": ft.config.FromBeginning,
		"poll":           ft.config.Poll,
	}).Info("Watching access log (waiting for file if missing)")

	ft.wg.Add(1)
	go ft.readLoop()

	metrics.SetComponentHealth("source", "file", true)
	return nil
}

// Stop para a leitura e libera o arquivo
func (ft *FileTailer) Stop() error {
	ft.mutex.Lock()
	if !ft.isRunning {
		ft.mutex.Unlock()
		return nil
	}
	ft.isRunning = false
	ft.mutex.Unlock()

	ft.cancel()
	err := ft.tail.Stop()
	ft.wg.Wait()
	ft.tail.Cleanup()

	metrics.SetComponentHealth("source", "file", false)
	ft.logger.WithFields(logrus.Fields{
		"path":       ft.config.Path,
		"lines_read": atomic.LoadInt64(&ft.linesRead),
	}).Info("File tailer stopped")

	if err != nil {
		return fmt.Errorf("failed to stop tail: %w", err)
	}
	return nil
}

// readLoop drains tail.Lines until the tail closes it. Lines that arrive
// after the context is cancelled are discarded so tail can always make
// progress towards shutdown.
func (ft *FileTailer) readLoop() {
	defer ft.wg.Done()

	for line := range ft.tail.Lines {
		if ft.ctx.Err() != nil {
			continue
		}
		if line.Err != nil {
			atomic.AddInt64(&ft.lineErrors, 1)
			metrics.RecordError("file_tailer", "line_error")
			ft.logger.WithError(line.Err).Warn("Error reading access log line")
			continue
		}

		atomic.AddInt64(&ft.linesRead, 1)
		ft.lastLineAt.Store(time.Now().UnixNano())
		metrics.RecordLineRead("file")
		ft.handler.Process(ft.ctx, strings.TrimRight(line.Text, "\r"))
	}

	if ft.ctx.Err() != nil {
		return
	}

	// tail terminou sozinho: a ingestão parou até o próximo Start
	err := ft.tail.Wait()
	if err == nil {
		err = fmt.Errorf("tail of %s ended unexpectedly", ft.config.Path)
	}
	ft.mutex.Lock()
	ft.tailErr = err
	ft.mutex.Unlock()

	ft.logger.WithError(err).WithField("path", ft.config.Path).Error("Access log tail ended")
	metrics.RecordError("file_tailer", "tail_ended")
	metrics.SetComponentHealth("source", "file", false)
}

// IsHealthy verifica se o tailer está rodando e o tail ainda está ativo
func (ft *FileTailer) IsHealthy() bool {
	ft.mutex.RLock()
	defer ft.mutex.RUnlock()
	return ft.isRunning && ft.tailErr == nil
}

// Err returns the error that ended the tail, if it stopped on its own.
func (ft *FileTailer) Err() error {
	ft.mutex.RLock()
	defer ft.mutex.RUnlock()
	return ft.tailErr
}

// Status returns progress counters for the admin API.
func (ft *FileTailer) Status() SourceStatus {
	status := SourceStatus{
		Name:      "file",
		Path:      ft.config.Path,
		IsRunning: ft.IsHealthy(),
		LinesRead: atomic.LoadInt64(&ft.linesRead),
		Errors:    atomic.LoadInt64(&ft.lineErrors),
	}
	if ns := ft.lastLineAt.Load(); ns > 0 {
		status.LastLineAt = time.Unix(0, ns)
	}
	return status
}

// SourceStatus describes a line source.
type SourceStatus struct {
	Name       string    `json:"name"`
	Path       string    `json:"path,omitempty"`
	IsRunning  bool      `json:"is_running"`
	LinesRead  int64     `json:"lines_read"`
	Errors     int64     `json:"errors"`
	LastLineAt time.Time `json:"last_line_at,omitempty"`
}
