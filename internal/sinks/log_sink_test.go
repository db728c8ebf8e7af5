package sinks

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogSink_FallbackMessage(t *testing.T) {
	logger, hook := test.NewNullLogger()
	sink := NewLogSink(logger, true)

	require.NoError(t, sink.Notify(context.Background(), failoverEvent()))

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.WarnLevel, entry.Level)
	assert.Equal(t, "📢 ALERT (Slack disabled): *Pool switch detected:* BLUE → GREEN", entry.Message)
	assert.Equal(t, "evt-1", entry.Data["alert_id"])
	assert.Equal(t, "GREEN", entry.Data["current_pool"])
	assert.Equal(t, "Check health of BLUE pool", entry.Data["action_required"])
}

func TestLogSink_PlainPrefix(t *testing.T) {
	logger, hook := test.NewNullLogger()
	sink := NewLogSink(logger, false)

	require.NoError(t, sink.Notify(context.Background(), errorRateEvent()))

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, "📢 ALERT: *Error rate exceeded threshold:* 33.33% (threshold: 2.0%)", entry.Message)
	assert.Equal(t, "200 requests", entry.Data["window_size"])
}

func TestLogSink_Lifecycle(t *testing.T) {
	logger, _ := test.NewNullLogger()
	sink := NewLogSink(logger, true)

	assert.Equal(t, "log", sink.Name())
	assert.NoError(t, sink.Start(context.Background()))
	assert.True(t, sink.IsHealthy())
	assert.NoError(t, sink.Stop())
}
