package sinks

import (
	"context"
	"errors"
	"testing"

	"ssw-alert-watcher/pkg/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSink struct {
	name      string
	notifyErr error
	startErr  error
	notified  int
	started   bool
	stopped   bool
	healthy   bool
}

func (s *stubSink) Name() string { return s.name }

func (s *stubSink) Notify(context.Context, types.AlertEvent) error {
	s.notified++
	return s.notifyErr
}

func (s *stubSink) Start(context.Context) error {
	if s.startErr != nil {
		return s.startErr
	}
	s.started = true
	return nil
}

func (s *stubSink) Stop() error {
	s.stopped = true
	return nil
}

func (s *stubSink) IsHealthy() bool { return s.healthy }

func TestMultiSink_FailureDoesNotBlockOthers(t *testing.T) {
	broken := &stubSink{name: "slack", notifyErr: errors.New("boom")}
	working := &stubSink{name: "log"}
	multi := NewMultiSink(quietLogger(), broken, working)

	err := multi.Notify(context.Background(), failoverEvent())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "slack: boom")
	assert.Equal(t, 1, broken.notified)
	assert.Equal(t, 1, working.notified)
}

func TestMultiSink_AllSucceed(t *testing.T) {
	multi := NewMultiSink(quietLogger(), &stubSink{name: "a"}, &stubSink{name: "b"})
	assert.NoError(t, multi.Notify(context.Background(), errorRateEvent()))
	assert.Equal(t, []string{"a", "b"}, multi.Names())
}

func TestMultiSink_StartRollsBack(t *testing.T) {
	first := &stubSink{name: "log"}
	second := &stubSink{name: "kafka", startErr: errors.New("no brokers")}
	multi := NewMultiSink(quietLogger(), first, second)

	err := multi.Start(context.Background())
	require.Error(t, err)
	assert.True(t, first.started)
	assert.True(t, first.stopped)
}

func TestMultiSink_Health(t *testing.T) {
	multi := NewMultiSink(quietLogger(),
		&stubSink{name: "log", healthy: true},
		&stubSink{name: "slack", healthy: false},
	)

	assert.Equal(t, map[string]bool{"log": true, "slack": false}, multi.Health())
	require.NoError(t, multi.Stop())
}
