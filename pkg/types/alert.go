package types

import "time"

// AlertKind enumerates the conditions the watcher can alert on.
type AlertKind string

const (
	AlertKindFailover  AlertKind = "failover"
	AlertKindErrorRate AlertKind = "error_rate"
)

// AlertKinds lists every kind, in a stable order.
var AlertKinds = []AlertKind{AlertKindFailover, AlertKindErrorRate}

// EventMeta carries correlation data shared by every alert event.
type EventMeta struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
}

// AlertEvent is a tagged variant: either *FailoverEvent or *ErrorRateEvent.
type AlertEvent interface {
	Kind() AlertKind
	Meta() EventMeta
	isAlertEvent()
}

// FailoverEvent reports that traffic moved from one pool to another.
type FailoverEvent struct {
	EventMeta
	FromPool string `json:"from_pool"`
	ToPool   string `json:"to_pool"`
}

func (e *FailoverEvent) Kind() AlertKind { return AlertKindFailover }
func (e *FailoverEvent) Meta() EventMeta { return e.EventMeta }
func (e *FailoverEvent) isAlertEvent()   {}

// ErrorRateEvent reports that the windowed 5xx rate went over threshold.
type ErrorRateEvent struct {
	EventMeta
	RatePercent      float64 `json:"rate_percent"`
	ThresholdPercent float64 `json:"threshold_percent"`
	WindowLen        int     `json:"window_len"`
	CurrentPool      string  `json:"current_pool,omitempty"`
}

func (e *ErrorRateEvent) Kind() AlertKind { return AlertKindErrorRate }
func (e *ErrorRateEvent) Meta() EventMeta { return e.EventMeta }
func (e *ErrorRateEvent) isAlertEvent()   {}
