package engine

import (
	"time"

	"ssw-alert-watcher/pkg/types"
)

// CooldownGate rate-limits alerts per kind. Maintenance mode closes the
// gate for every kind without touching the recorded firing times.
//
// CooldownGate is not safe for concurrent use.
type CooldownGate struct {
	cooldown    time.Duration
	maintenance bool
	lastFired   map[types.AlertKind]time.Time
}

// NewCooldownGate creates a gate with the given cooldown.
func NewCooldownGate(cooldown time.Duration, maintenance bool) *CooldownGate {
	return &CooldownGate{
		cooldown:    cooldown,
		maintenance: maintenance,
		lastFired:   make(map[types.AlertKind]time.Time),
	}
}

// MayFire reports whether an alert of kind may be dispatched at now.
// The boundary is inclusive: exactly one cooldown after the last firing
// is enough.
func (g *CooldownGate) MayFire(kind types.AlertKind, now time.Time) bool {
	if g.maintenance {
		return false
	}
	last, ok := g.lastFired[kind]
	if !ok {
		return true
	}
	return now.Sub(last) >= g.cooldown
}

// RecordFired stamps kind as dispatched at now. Call it only after an
// alert was actually handed to a sink.
func (g *CooldownGate) RecordFired(kind types.AlertKind, now time.Time) {
	g.lastFired[kind] = now
}

// LastFired returns when kind last fired, if ever.
func (g *CooldownGate) LastFired(kind types.AlertKind) (time.Time, bool) {
	t, ok := g.lastFired[kind]
	return t, ok
}

func (g *CooldownGate) Cooldown() time.Duration { return g.cooldown }

func (g *CooldownGate) SetCooldown(d time.Duration) { g.cooldown = d }

func (g *CooldownGate) Maintenance() bool { return g.maintenance }

func (g *CooldownGate) SetMaintenance(enabled bool) { g.maintenance = enabled }
