package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"ssw-alert-watcher/pkg/types"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock { return &fakeClock{now: epoch} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordingSink struct {
	mu     sync.Mutex
	events []types.AlertEvent
	err    error
}

func (s *recordingSink) Notify(_ context.Context, event types.AlertEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return s.err
}

func (s *recordingSink) Events() []types.AlertEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]types.AlertEvent(nil), s.events...)
}

func (s *recordingSink) Count(kind types.AlertKind) int {
	n := 0
	for _, e := range s.Events() {
		if e.Kind() == kind {
			n++
		}
	}
	return n
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func defaultSettings() Settings {
	return Settings{
		ErrorRateThreshold: 2.0,
		WindowSize:         200,
		Cooldown:           300 * time.Second,
		MinSamples:         DefaultMinSamples,
	}
}

func newTestEngine(settings Settings) (*Engine, *recordingSink, *fakeClock) {
	sink := &recordingSink{}
	clock := newFakeClock()
	return New(settings, sink, quietLogger(), WithClock(clock)), sink, clock
}

func TestEngine_ErrorRateFiresOnceAtSampleFloor(t *testing.T) {
	settings := defaultSettings()
	settings.ErrorRateThreshold = 15
	e, sink, _ := newTestEngine(settings)
	ctx := context.Background()

	line := func(i int) string {
		if i%3 == 0 {
			return "status=500 pool=blue"
		}
		return "status=200 pool=blue"
	}

	for i := 0; i < 49; i++ {
		e.Process(ctx, line(i))
	}
	require.Empty(t, sink.Events(), "no alert before the sample floor")

	e.Process(ctx, line(49))
	require.Len(t, sink.Events(), 1)

	event, ok := sink.Events()[0].(*types.ErrorRateEvent)
	require.True(t, ok)
	assert.InDelta(t, 34.0, event.RatePercent, 1e-9)
	assert.Equal(t, 15.0, event.ThresholdPercent)
	assert.Equal(t, 50, event.WindowLen)
	assert.Equal(t, "blue", event.CurrentPool)
	assert.NotEmpty(t, event.ID)
	assert.Equal(t, epoch, event.Timestamp)

	// still over threshold, but in cooldown
	for i := 50; i < 80; i++ {
		e.Process(ctx, line(i))
	}
	assert.Equal(t, 1, sink.Count(types.AlertKindErrorRate))
}

func TestEngine_SampleFloorCappedByCapacity(t *testing.T) {
	settings := defaultSettings()
	settings.WindowSize = 10
	e, sink, _ := newTestEngine(settings)

	for i := 0; i < 9; i++ {
		e.Process(context.Background(), "status=503")
	}
	assert.Empty(t, sink.Events())

	e.Process(context.Background(), "status=503")
	assert.Equal(t, 1, sink.Count(types.AlertKindErrorRate))
}

func TestEngine_RateEqualToThresholdDoesNotFire(t *testing.T) {
	settings := defaultSettings()
	settings.WindowSize = 50
	settings.ErrorRateThreshold = 2.0
	e, sink, _ := newTestEngine(settings)

	e.Process(context.Background(), "status=500")
	for i := 0; i < 49; i++ {
		e.Process(context.Background(), "status=200")
	}

	assert.Equal(t, 2.0, e.Status().ErrorRate)
	assert.Empty(t, sink.Events())
}

func TestEngine_FailoverWithinCooldown(t *testing.T) {
	e, sink, _ := newTestEngine(defaultSettings())
	ctx := context.Background()

	e.Process(ctx, "status=200 pool=blue")
	e.Process(ctx, "status=200 pool=green")
	e.Process(ctx, "status=200 pool=blue")

	require.Equal(t, 1, sink.Count(types.AlertKindFailover))
	event := sink.Events()[0].(*types.FailoverEvent)
	assert.Equal(t, "blue", event.FromPool)
	assert.Equal(t, "green", event.ToPool)

	status := e.Status()
	assert.Equal(t, "blue", status.CurrentPool)
	assert.Equal(t, "green", status.LastPool)
}

func TestEngine_FailoverAfterCooldown(t *testing.T) {
	e, sink, clock := newTestEngine(defaultSettings())
	ctx := context.Background()

	e.Process(ctx, "pool=blue")
	e.Process(ctx, "pool=green")
	clock.Advance(300 * time.Second)
	e.Process(ctx, "pool=blue")

	require.Equal(t, 2, sink.Count(types.AlertKindFailover))
	second := sink.Events()[1].(*types.FailoverEvent)
	assert.Equal(t, "green", second.FromPool)
	assert.Equal(t, "blue", second.ToPool)
}

func TestEngine_MissingStatusStillTracksPool(t *testing.T) {
	e, sink, _ := newTestEngine(defaultSettings())
	ctx := context.Background()

	e.Process(ctx, "pool=blue")
	e.Process(ctx, "status=0 pool=green")
	e.Process(ctx, "status=abc pool=green")

	status := e.Status()
	assert.Equal(t, 0, status.WindowLen)
	assert.Equal(t, "green", status.CurrentPool)
	assert.Equal(t, 1, sink.Count(types.AlertKindFailover))
}

func TestEngine_BlankLinesChangeNothing(t *testing.T) {
	e, sink, _ := newTestEngine(defaultSettings())

	e.Process(context.Background(), "")
	e.Process(context.Background(), "   ")
	e.Process(context.Background(), "no tokens at all")

	status := e.Status()
	assert.Equal(t, 0, status.WindowLen)
	assert.Equal(t, "", status.CurrentPool)
	assert.Equal(t, int64(0), status.LinesProcessed)
	assert.Empty(t, sink.Events())
}

func TestEngine_MaintenanceSuppressesButTracksState(t *testing.T) {
	settings := defaultSettings()
	settings.MaintenanceMode = true
	settings.WindowSize = 5
	e, sink, clock := newTestEngine(settings)
	ctx := context.Background()

	e.Process(ctx, "status=500 pool=blue")
	e.Process(ctx, "status=500 pool=green")
	clock.Advance(time.Hour)
	for i := 0; i < 5; i++ {
		e.Process(ctx, "status=500 pool=green")
	}

	assert.Empty(t, sink.Events())
	status := e.Status()
	assert.Equal(t, "green", status.CurrentPool)
	assert.Equal(t, 5, status.WindowLen)
	assert.Empty(t, status.LastFired)

	e.SetMaintenanceMode(false)
	e.Process(ctx, "status=500 pool=blue")
	assert.Equal(t, 1, sink.Count(types.AlertKindFailover))
	assert.Equal(t, 1, sink.Count(types.AlertKindErrorRate))
}

func TestEngine_SinkFailureStillStartsCooldown(t *testing.T) {
	settings := defaultSettings()
	e, sink, _ := newTestEngine(settings)
	sink.err = errors.New("webhook returned 500")
	ctx := context.Background()

	e.Process(ctx, "pool=blue")
	e.Process(ctx, "pool=green")
	e.Process(ctx, "pool=blue")

	assert.Equal(t, 1, sink.Count(types.AlertKindFailover))
	_, fired := e.Status().LastFired[types.AlertKindFailover]
	assert.True(t, fired)
}

func TestEngine_KindsHaveIndependentCooldowns(t *testing.T) {
	settings := defaultSettings()
	settings.WindowSize = 1
	e, sink, _ := newTestEngine(settings)
	ctx := context.Background()

	e.Process(ctx, "status=500 pool=blue")
	require.Equal(t, 1, sink.Count(types.AlertKindErrorRate))

	e.Process(ctx, "status=500 pool=green")
	assert.Equal(t, 1, sink.Count(types.AlertKindFailover))
	assert.Equal(t, 1, sink.Count(types.AlertKindErrorRate))
}

func TestEngine_FailoverDispatchedBeforeErrorRate(t *testing.T) {
	settings := defaultSettings()
	settings.WindowSize = 1
	e, sink, _ := newTestEngine(settings)
	ctx := context.Background()

	e.Process(ctx, "status=200 pool=blue")
	e.Process(ctx, "status=500 pool=green")

	events := sink.Events()
	require.Len(t, events, 2)
	assert.Equal(t, types.AlertKindFailover, events[0].Kind())
	assert.Equal(t, types.AlertKindErrorRate, events[1].Kind())
	assert.Equal(t, "green", events[1].(*types.ErrorRateEvent).CurrentPool)
}

func TestEngine_UpdateSettings(t *testing.T) {
	settings := defaultSettings()
	settings.WindowSize = 10
	settings.ErrorRateThreshold = 50
	e, sink, _ := newTestEngine(settings)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		e.Process(ctx, fmt.Sprintf("status=%d", 200+300*(i%4/3)))
	}
	require.Empty(t, sink.Events())

	updated := settings
	updated.ErrorRateThreshold = 10
	updated.Cooldown = time.Minute
	assert.False(t, e.UpdateSettings(updated))

	e.Process(ctx, "status=200")
	assert.Equal(t, 1, sink.Count(types.AlertKindErrorRate))
	assert.Equal(t, 60.0, e.Status().CooldownSeconds)

	updated.WindowSize = 20
	assert.True(t, e.UpdateSettings(updated), "window size change needs a restart")
	assert.Equal(t, 10, e.Status().WindowCapacity)
}

func TestEngine_ConcurrentProcess(t *testing.T) {
	settings := defaultSettings()
	settings.WindowSize = 100
	e, _, _ := newTestEngine(settings)

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			pool := []string{"blue", "green"}[w%2]
			for i := 0; i < 250; i++ {
				e.Process(context.Background(), fmt.Sprintf("status=200 pool=%s", pool))
			}
		}(w)
	}
	wg.Wait()

	status := e.Status()
	assert.Equal(t, int64(1000), status.LinesProcessed)
	assert.Equal(t, 100, status.WindowLen)
}

func TestSettingsFromConfig(t *testing.T) {
	s := SettingsFromConfig(types.WatcherConfig{
		ErrorRateThreshold: 5.5,
		WindowSize:         100,
		AlertCooldownSec:   30,
		MaintenanceMode:    true,
		MinSamples:         20,
	})

	assert.Equal(t, Settings{
		ErrorRateThreshold: 5.5,
		WindowSize:         100,
		Cooldown:           30 * time.Second,
		MaintenanceMode:    true,
		MinSamples:         20,
	}, s)
}
