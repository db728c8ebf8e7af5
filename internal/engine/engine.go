package engine

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"ssw-alert-watcher/internal/metrics"
	"ssw-alert-watcher/pkg/tracing"
	"ssw-alert-watcher/pkg/types"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"
)

// DefaultMinSamples is the sample floor before the error rate is evaluated.
const DefaultMinSamples = 50

// Settings configures an Engine.
type Settings struct {
	ErrorRateThreshold float64
	WindowSize         int
	Cooldown           time.Duration
	MaintenanceMode    bool
	MinSamples         int
}

// SettingsFromConfig converts the watcher section of the configuration.
func SettingsFromConfig(cfg types.WatcherConfig) Settings {
	return Settings{
		ErrorRateThreshold: cfg.ErrorRateThreshold,
		WindowSize:         cfg.WindowSize,
		Cooldown:           time.Duration(cfg.AlertCooldownSec) * time.Second,
		MaintenanceMode:    cfg.MaintenanceMode,
		MinSamples:         cfg.MinSamples,
	}
}

// Option customizes an Engine.
type Option func(*Engine)

// WithClock replaces the wall clock, mainly for tests.
func WithClock(clock Clock) Option {
	return func(e *Engine) { e.clock = clock }
}

// WithTracer sets the tracer used for dispatch spans.
func WithTracer(tracer oteltrace.Tracer) Option {
	return func(e *Engine) { e.tracer = tracer }
}

// Engine is the stateful alerting core. It owns the sliding window, the
// pool tracker and the cooldown gate, and serialises every mutation so a
// single instance can be fed from several goroutines.
type Engine struct {
	mu         sync.Mutex
	threshold  float64
	minSamples int
	window     *SlidingWindow
	failover   *FailoverDetector
	gate       *CooldownGate

	sink   types.AlertSink
	clock  Clock
	tracer oteltrace.Tracer
	logger *logrus.Logger

	linesProcessed atomic.Int64
}

// New creates an Engine delivering alerts to sink.
func New(settings Settings, sink types.AlertSink, logger *logrus.Logger, opts ...Option) *Engine {
	if settings.MinSamples <= 0 {
		settings.MinSamples = DefaultMinSamples
	}

	e := &Engine{
		threshold:  settings.ErrorRateThreshold,
		minSamples: settings.MinSamples,
		window:     NewSlidingWindow(settings.WindowSize),
		failover:   NewFailoverDetector(),
		gate:       NewCooldownGate(settings.Cooldown, settings.MaintenanceMode),
		sink:       sink,
		clock:      RealClock(),
		tracer:     otel.Tracer("ssw-alert-watcher/engine"),
		logger:     logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Process handles one access log line. It never fails: malformed input is
// ignored field by field.
func (e *Engine) Process(ctx context.Context, line string) {
	fields := ParseLine(line)
	if len(fields) == 0 {
		metrics.RecordLineProcessed("empty")
		return
	}

	status := parseStatus(fields[FieldStatus])
	pool := fields[FieldPool]

	e.mu.Lock()
	defer e.mu.Unlock()

	e.linesProcessed.Add(1)
	now := e.clock.Now()

	if status > 0 {
		e.window.Push(status)
		metrics.RecordLineProcessed("sampled")
	} else {
		metrics.RecordLineProcessed("no_status")
	}

	previous := e.failover.Current()
	if t, ok := e.failover.Observe(pool); ok {
		e.logger.WithFields(logrus.Fields{
			"from_pool": t.From,
			"to_pool":   t.To,
		}).Warn("Failover detected")
		metrics.RecordFailoverDetected()
		e.dispatch(ctx, &types.FailoverEvent{
			EventMeta: newEventMeta(now),
			FromPool:  t.From,
			ToPool:    t.To,
		}, now)
	}
	if current := e.failover.Current(); current != previous {
		metrics.SetCurrentPool(previous, current)
	}

	rate := e.window.ErrorRate()
	metrics.SetWindowState(e.window.Len(), rate)

	if e.window.Len() >= e.sampleFloor() && rate > e.threshold {
		e.logger.WithFields(logrus.Fields{
			"error_rate": rate,
			"threshold":  e.threshold,
			"window_len": e.window.Len(),
		}).Warn("High error rate")
		e.dispatch(ctx, &types.ErrorRateEvent{
			EventMeta:        newEventMeta(now),
			RatePercent:      rate,
			ThresholdPercent: e.threshold,
			WindowLen:        e.window.Len(),
			CurrentPool:      e.failover.Current(),
		}, now)
	}
}

// dispatch hands event to the sink unless the gate is closed. The firing
// is recorded whether or not the sink reports success, so a failing
// backend cannot cause an alert storm.
func (e *Engine) dispatch(ctx context.Context, event types.AlertEvent, now time.Time) {
	kind := event.Kind()
	ctx, span := e.tracer.Start(ctx, "alert.dispatch", oteltrace.WithAttributes(
		attribute.String("alert.kind", string(kind)),
		attribute.String("alert.id", event.Meta().ID),
	))
	defer span.End()

	if !e.gate.MayFire(kind, now) {
		reason := "cooldown"
		if e.gate.Maintenance() {
			reason = "maintenance"
		}
		span.SetAttributes(
			attribute.Bool("alert.suppressed", true),
			attribute.String("alert.suppressed_reason", reason),
		)
		metrics.RecordAlertSuppressed(string(kind), reason)
		e.logger.WithFields(logrus.Fields{
			"kind":   kind,
			"reason": reason,
		}).Info("Alert suppressed")
		return
	}

	if err := e.sink.Notify(ctx, event); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		metrics.RecordError("engine", "notify_failed")
		e.logger.WithError(err).
			WithFields(tracing.LogFields(ctx)).
			WithField("kind", kind).
			Error("Alert sink reported a failure")
	}
	e.gate.RecordFired(kind, now)
	metrics.RecordAlertDispatched(string(kind))
}

// sampleFloor is min(minSamples, capacity).
func (e *Engine) sampleFloor() int {
	if c := e.window.Capacity(); c < e.minSamples {
		return c
	}
	return e.minSamples
}

func newEventMeta(now time.Time) types.EventMeta {
	return types.EventMeta{ID: uuid.NewString(), Timestamp: now}
}

// UpdateSettings applies threshold, cooldown, min samples and maintenance
// mode to the running engine. The window cannot be resized in place; it
// returns true when settings.WindowSize differs and a restart is needed.
func (e *Engine) UpdateSettings(settings Settings) (restartRequired bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.threshold = settings.ErrorRateThreshold
	if settings.MinSamples > 0 {
		e.minSamples = settings.MinSamples
	}
	e.gate.SetCooldown(settings.Cooldown)
	e.gate.SetMaintenance(settings.MaintenanceMode)

	return settings.WindowSize != e.window.Capacity()
}

// SetMaintenanceMode toggles alert suppression.
func (e *Engine) SetMaintenanceMode(enabled bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.gate.SetMaintenance(enabled)
}

// Status is a point-in-time view of the engine state.
type Status struct {
	CurrentPool     string                        `json:"current_pool"`
	LastPool        string                        `json:"last_pool"`
	WindowLen       int                           `json:"window_len"`
	WindowCapacity  int                           `json:"window_capacity"`
	MinSamples      int                           `json:"min_samples"`
	ErrorRate       float64                       `json:"error_rate_percent"`
	Threshold       float64                       `json:"threshold_percent"`
	CooldownSeconds float64                       `json:"cooldown_seconds"`
	MaintenanceMode bool                          `json:"maintenance_mode"`
	LastFired       map[types.AlertKind]time.Time `json:"last_fired"`
	LinesProcessed  int64                         `json:"lines_processed"`
}

// Status returns a snapshot of the engine state.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()

	lastFired := make(map[types.AlertKind]time.Time)
	for _, kind := range types.AlertKinds {
		if t, ok := e.gate.LastFired(kind); ok {
			lastFired[kind] = t
		}
	}

	return Status{
		CurrentPool:     e.failover.Current(),
		LastPool:        e.failover.Last(),
		WindowLen:       e.window.Len(),
		WindowCapacity:  e.window.Capacity(),
		MinSamples:      e.sampleFloor(),
		ErrorRate:       e.window.ErrorRate(),
		Threshold:       e.threshold,
		CooldownSeconds: e.gate.Cooldown().Seconds(),
		MaintenanceMode: e.gate.Maintenance(),
		LastFired:       lastFired,
		LinesProcessed:  e.linesProcessed.Load(),
	}
}
