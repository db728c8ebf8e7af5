// Package types - Interface definitions for pluggable components
package types

import (
	"context"
)

// LineHandler consumes raw access log lines in arrival order.
type LineHandler interface {
	// Process handles a single line; it never fails on malformed input
	Process(ctx context.Context, line string)
}

// LineSource defines the interface for access log inputs.
//
// A source reads lines from somewhere (a tailed file, stdin, an HTTP
// body) and hands them to a LineHandler one at a time, in the order they
// appear in the underlying stream.
type LineSource interface {
	// Start begins reading in the background
	Start(ctx context.Context) error
	// Stop halts reading and releases resources
	Stop() error
}

// AlertSink is the only capability the alerting engine needs from an
// output: deliver one event. Implementations own formatting, transport and
// their own timeout, and must not block the caller beyond it.
type AlertSink interface {
	Notify(ctx context.Context, event AlertEvent) error
}

// ManagedSink is an AlertSink with a lifecycle, as wired by the application.
type ManagedSink interface {
	AlertSink
	// Name identifies the sink in logs and metrics
	Name() string
	// Start prepares the sink for delivering alerts
	Start(ctx context.Context) error
	// Stop flushes pending alerts and releases resources
	Stop() error
	// IsHealthy checks if the sink is operational
	IsHealthy() bool
}
