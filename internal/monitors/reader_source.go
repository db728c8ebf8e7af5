package monitors

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"ssw-alert-watcher/internal/metrics"
	"ssw-alert-watcher/pkg/types"

	"github.com/sirupsen/logrus"
)

// ReaderSource feeds lines from an io.Reader, typically stdin, to a
// handler. Done is closed when the reader is exhausted.
type ReaderSource struct {
	name        string
	reader      io.Reader
	handler     types.LineHandler
	logger      *logrus.Logger
	stopTimeout time.Duration

	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	mutex     sync.RWMutex
	isRunning bool
	started   bool

	linesRead    int64
	linesSkipped int64
	readErr      error
}

// NewReaderSource creates a source reading from r.
func NewReaderSource(name string, r io.Reader, handler types.LineHandler, logger *logrus.Logger) *ReaderSource {
	return &ReaderSource{
		name:        name,
		reader:      r,
		handler:     handler,
		logger:      logger,
		stopTimeout: 5 * time.Second,
		done:        make(chan struct{}),
	}
}

// NewStdinSource reads access log lines piped into the process.
func NewStdinSource(handler types.LineHandler, logger *logrus.Logger) *ReaderSource {
	return NewReaderSource("stdin", os.Stdin, handler, logger)
}

// Start begins reading in the background.
func (rs *ReaderSource) Start(ctx context.Context) error {
	rs.mutex.Lock()
	defer rs.mutex.Unlock()

	if rs.started {
		return fmt.Errorf("%s source already started", rs.name)
	}
	rs.started = true
	rs.isRunning = true
	rs.ctx, rs.cancel = context.WithCancel(ctx)

	rs.logger.WithField("source", rs.name).Info("Reading access log lines")
	metrics.SetComponentHealth("source", rs.name, true)

	go rs.readLoop()
	return nil
}

// Stop cancels reading. A Read blocked on a terminal or pipe cannot be
// interrupted, so Stop gives up waiting after a short timeout.
func (rs *ReaderSource) Stop() error {
	rs.mutex.Lock()
	if !rs.isRunning {
		rs.mutex.Unlock()
		return nil
	}
	rs.isRunning = false
	rs.cancel()
	rs.mutex.Unlock()

	select {
	case <-rs.done:
	case <-time.After(rs.stopTimeout):
		rs.logger.WithField("source", rs.name).Warn("Timeout waiting for reader to stop")
	}
	metrics.SetComponentHealth("source", rs.name, false)
	return nil
}

// Done is closed once the reader hit EOF, failed or was stopped.
func (rs *ReaderSource) Done() <-chan struct{} {
	return rs.done
}

// Err returns the read error that ended the source, if any.
func (rs *ReaderSource) Err() error {
	rs.mutex.RLock()
	defer rs.mutex.RUnlock()
	return rs.readErr
}

func (rs *ReaderSource) readLoop() {
	defer close(rs.done)

	reader := NewLineReader(rs.reader, MaxLineBytes)
	for {
		line, skipped, err := reader.Next()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				rs.mutex.Lock()
				rs.readErr = err
				rs.mutex.Unlock()
				metrics.RecordError(rs.name+"_source", "read_failed")
				rs.logger.WithError(err).WithField("source", rs.name).Error("Failed reading access log lines")
				return
			}
			break
		}
		if rs.ctx.Err() != nil {
			return
		}
		if skipped {
			atomic.AddInt64(&rs.linesSkipped, 1)
			metrics.RecordError(rs.name+"_source", "line_too_long")
			rs.logger.WithFields(logrus.Fields{
				"source":    rs.name,
				"max_bytes": MaxLineBytes,
			}).Warn("Skipping oversized access log line")
			continue
		}

		atomic.AddInt64(&rs.linesRead, 1)
		metrics.RecordLineRead(rs.name)
		rs.handler.Process(rs.ctx, line)
	}

	rs.logger.WithFields(logrus.Fields{
		"source":        rs.name,
		"lines_read":    atomic.LoadInt64(&rs.linesRead),
		"lines_skipped": atomic.LoadInt64(&rs.linesSkipped),
	}).Info("Input exhausted")
}

// IsHealthy reports whether the source is still reading.
func (rs *ReaderSource) IsHealthy() bool {
	select {
	case <-rs.done:
		return false
	default:
	}
	rs.mutex.RLock()
	defer rs.mutex.RUnlock()
	return rs.isRunning
}

// Status returns progress counters for the admin API.
func (rs *ReaderSource) Status() SourceStatus {
	status := SourceStatus{
		Name:      rs.name,
		IsRunning: rs.IsHealthy(),
		LinesRead: atomic.LoadInt64(&rs.linesRead),
		Errors:    atomic.LoadInt64(&rs.linesSkipped),
	}
	if rs.Err() != nil {
		status.Errors++
	}
	return status
}
