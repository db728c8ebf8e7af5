package sinks

import (
	"context"
	"errors"
	"fmt"

	"ssw-alert-watcher/pkg/types"

	"github.com/sirupsen/logrus"
)

// MultiSink fans an alert out to every configured sink. A failing sink
// never prevents delivery to the others.
type MultiSink struct {
	sinks  []types.ManagedSink
	logger *logrus.Logger
}

// NewMultiSink wraps sinks in the given order.
func NewMultiSink(logger *logrus.Logger, sinks ...types.ManagedSink) *MultiSink {
	return &MultiSink{sinks: sinks, logger: logger}
}

// Notify hands event to every sink and joins their errors.
func (m *MultiSink) Notify(ctx context.Context, event types.AlertEvent) error {
	var errs []error
	for _, sink := range m.sinks {
		if err := sink.Notify(ctx, event); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", sink.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// Start starts every sink. On failure the sinks already started are
// stopped again.
func (m *MultiSink) Start(ctx context.Context) error {
	for i, sink := range m.sinks {
		if err := sink.Start(ctx); err != nil {
			for j := i - 1; j >= 0; j-- {
				if stopErr := m.sinks[j].Stop(); stopErr != nil {
					m.logger.WithError(stopErr).WithField("sink", m.sinks[j].Name()).Warn("Failed to stop sink")
				}
			}
			return fmt.Errorf("failed to start %s sink: %w", sink.Name(), err)
		}
	}
	return nil
}

// Stop stops every sink in reverse order.
func (m *MultiSink) Stop() error {
	var errs []error
	for i := len(m.sinks) - 1; i >= 0; i-- {
		if err := m.sinks[i].Stop(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", m.sinks[i].Name(), err))
		}
	}
	return errors.Join(errs...)
}

// Health reports IsHealthy per sink name.
func (m *MultiSink) Health() map[string]bool {
	health := make(map[string]bool, len(m.sinks))
	for _, sink := range m.sinks {
		health[sink.Name()] = sink.IsHealthy()
	}
	return health
}

// Names lists the wrapped sinks.
func (m *MultiSink) Names() []string {
	names := make([]string, 0, len(m.sinks))
	for _, sink := range m.sinks {
		names = append(names, sink.Name())
	}
	return names
}
