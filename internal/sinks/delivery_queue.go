package sinks

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"ssw-alert-watcher/internal/metrics"
	"ssw-alert-watcher/pkg/circuit"
	apperrors "ssw-alert-watcher/pkg/errors"
	"ssw-alert-watcher/pkg/types"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"
)

type deliverFunc func(ctx context.Context, event types.AlertEvent) error

type queuedAlert struct {
	event  types.AlertEvent
	parent oteltrace.SpanContext
}

// deliveryQueue decouples Notify from network I/O. Notify only enqueues;
// a single worker delivers each alert under its own timeout and circuit
// breaker. Failed deliveries are logged and counted, never retried.
type deliveryQueue struct {
	name    string
	logger  *logrus.Logger
	tracer  oteltrace.Tracer
	timeout time.Duration
	breaker *circuit.Breaker
	deliver deliverFunc

	queue chan queuedAlert

	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mutex     sync.RWMutex
	isRunning bool

	sentCount    int64
	failedCount  int64
	droppedCount int64
}

func newDeliveryQueue(name string, queueSize int, timeout time.Duration, deliver deliverFunc, logger *logrus.Logger) *deliveryQueue {
	if queueSize <= 0 {
		queueSize = 100
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	breaker := circuit.NewBreaker(circuit.Config{
		Name:             name,
		FailureThreshold: 5,
		SuccessThreshold: 1,
		Timeout:          60 * time.Second,
	}, logger)
	breaker.OnStateChange(func(_, to circuit.State) {
		metrics.SetComponentHealth("sink", name, to != circuit.StateOpen)
	})

	return &deliveryQueue{
		name:    name,
		logger:  logger,
		tracer:  otel.Tracer("ssw-alert-watcher/sinks"),
		timeout: timeout,
		breaker: breaker,
		deliver: deliver,
		queue:   make(chan queuedAlert, queueSize),
	}
}

func (q *deliveryQueue) start() error {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	if q.isRunning {
		return apperrors.SinkError(q.name, "start", "already running")
	}
	q.ctx, q.cancel = context.WithCancel(context.Background())
	q.isRunning = true

	q.wg.Add(1)
	go q.worker()

	metrics.SetComponentHealth("sink", q.name, true)
	return nil
}

// stop halts the worker after delivering whatever is still queued.
func (q *deliveryQueue) stop() {
	q.mutex.Lock()
	if !q.isRunning {
		q.mutex.Unlock()
		return
	}
	q.isRunning = false
	q.cancel()
	q.mutex.Unlock()

	q.wg.Wait()

	metrics.SetComponentHealth("sink", q.name, false)
	q.logger.WithFields(logrus.Fields{
		"sink":    q.name,
		"sent":    atomic.LoadInt64(&q.sentCount),
		"failed":  atomic.LoadInt64(&q.failedCount),
		"dropped": atomic.LoadInt64(&q.droppedCount),
	}).Info("Alert sink stopped")
}

// enqueue never blocks. A full queue drops the alert.
func (q *deliveryQueue) enqueue(ctx context.Context, event types.AlertEvent) error {
	q.mutex.RLock()
	defer q.mutex.RUnlock()

	if !q.isRunning {
		return apperrors.New(apperrors.CodeSinkNotRunning, q.name, "notify", "sink is not running")
	}

	item := queuedAlert{event: event, parent: oteltrace.SpanContextFromContext(ctx)}
	select {
	case q.queue <- item:
		return nil
	default:
		atomic.AddInt64(&q.droppedCount, 1)
		metrics.RecordSinkDelivery(q.name, "dropped")
		q.logger.WithFields(logrus.Fields{
			"sink":     q.name,
			"kind":     event.Kind(),
			"alert_id": event.Meta().ID,
		}).Warn("Alert queue full, dropping alert")
		return apperrors.New(apperrors.CodeSinkQueueFull, q.name, "notify", "alert queue full").
			WithMetadata("queue_size", cap(q.queue))
	}
}

func (q *deliveryQueue) worker() {
	defer q.wg.Done()

	for {
		select {
		case item := <-q.queue:
			q.send(item)
		case <-q.ctx.Done():
			// Entrega o que ainda está na fila antes de sair
			for {
				select {
				case item := <-q.queue:
					q.send(item)
				default:
					return
				}
			}
		}
	}
}

func (q *deliveryQueue) send(item queuedAlert) {
	parent := context.Background()
	if item.parent.IsValid() {
		parent = oteltrace.ContextWithRemoteSpanContext(parent, item.parent)
	}
	ctx, span := q.tracer.Start(parent, "sink.deliver", oteltrace.WithAttributes(
		attribute.String("sink.name", q.name),
		attribute.String("alert.kind", string(item.event.Kind())),
		attribute.String("alert.id", item.event.Meta().ID),
	))
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, q.timeout)
	defer cancel()

	start := time.Now()
	err := q.breaker.Execute(func() error {
		return q.deliver(ctx, item.event)
	})
	metrics.RecordSinkSendDuration(q.name, time.Since(start))

	fields := logrus.Fields{
		"sink":     q.name,
		"kind":     item.event.Kind(),
		"alert_id": item.event.Meta().ID,
	}
	if err != nil {
		atomic.AddInt64(&q.failedCount, 1)
		status := "error"
		if errors.Is(err, circuit.ErrOpen) {
			status = "circuit_open"
		}
		metrics.RecordSinkDelivery(q.name, status)
		metrics.RecordError(q.name, status)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		q.logger.WithError(err).WithFields(fields).Error("Failed to deliver alert")
		return
	}

	atomic.AddInt64(&q.sentCount, 1)
	metrics.RecordSinkDelivery(q.name, "success")
	q.logger.WithFields(fields).Info("Alert delivered")
}

func (q *deliveryQueue) running() bool {
	q.mutex.RLock()
	defer q.mutex.RUnlock()
	return q.isRunning
}

func (q *deliveryQueue) healthy() bool {
	return q.running() && !q.breaker.IsOpen()
}

// DeliveryStats summarises a queued sink.
type DeliveryStats struct {
	Sent     int64         `json:"sent"`
	Failed   int64         `json:"failed"`
	Dropped  int64         `json:"dropped"`
	Queued   int           `json:"queued"`
	Capacity int           `json:"capacity"`
	Breaker  circuit.Stats `json:"breaker"`
}

func (q *deliveryQueue) stats() DeliveryStats {
	return DeliveryStats{
		Sent:     atomic.LoadInt64(&q.sentCount),
		Failed:   atomic.LoadInt64(&q.failedCount),
		Dropped:  atomic.LoadInt64(&q.droppedCount),
		Queued:   len(q.queue),
		Capacity: cap(q.queue),
		Breaker:  q.breaker.GetStats(),
	}
}
