package sinks

import (
	"context"
	"strings"

	"ssw-alert-watcher/internal/metrics"
	"ssw-alert-watcher/pkg/types"

	"github.com/sirupsen/logrus"
)

// LogSink writes alerts to the application log. It is the fallback when
// no chat webhook is configured.
type LogSink struct {
	logger   *logrus.Logger
	fallback bool
}

// NewLogSink creates a log sink. With fallback set the message says that
// Slack delivery is disabled.
func NewLogSink(logger *logrus.Logger, fallback bool) *LogSink {
	return &LogSink{logger: logger, fallback: fallback}
}

func (s *LogSink) Name() string { return "log" }

func (s *LogSink) Start(ctx context.Context) error {
	metrics.SetComponentHealth("sink", "log", true)
	return nil
}

func (s *LogSink) Stop() error { return nil }

func (s *LogSink) IsHealthy() bool { return true }

// Notify logs the rendered alert at warning level.
func (s *LogSink) Notify(ctx context.Context, event types.AlertEvent) error {
	msg := Render(event)

	fields := logrus.Fields{
		"alert_id": event.Meta().ID,
		"kind":     event.Kind(),
		"title":    msg.Title,
	}
	for _, f := range msg.Fields {
		fields[fieldKey(f.Label)] = f.Value
	}

	prefix := "📢 ALERT: "
	if s.fallback {
		prefix = "📢 ALERT (Slack disabled): "
	}
	s.logger.WithFields(fields).Warn(prefix + msg.Text)
	metrics.RecordSinkDelivery("log", "success")
	return nil
}

// fieldKey turns "Current Error Rate" into "current_error_rate".
func fieldKey(label string) string {
	return strings.ReplaceAll(strings.ToLower(label), " ", "_")
}
