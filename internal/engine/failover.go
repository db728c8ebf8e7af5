package engine

// Transition is a pool change observed in the traffic.
type Transition struct {
	From string
	To   string
}

// FailoverDetector tracks which pool is serving traffic.
//
// The first pool ever seen is recorded silently; every later change to a
// different non-empty pool is reported as a Transition.
type FailoverDetector struct {
	current string
	last    string
}

// NewFailoverDetector creates a detector that has not seen any pool yet.
func NewFailoverDetector() *FailoverDetector {
	return &FailoverDetector{}
}

// Observe feeds one pool value. Empty values and repeats of the current
// pool leave the state untouched.
func (d *FailoverDetector) Observe(pool string) (Transition, bool) {
	if pool == "" || pool == d.current {
		return Transition{}, false
	}

	d.last = d.current
	d.current = pool

	if d.last == "" {
		return Transition{}, false
	}
	return Transition{From: d.last, To: d.current}, true
}

// Current returns the pool currently serving traffic, or "".
func (d *FailoverDetector) Current() string { return d.current }

// Last returns the pool that served traffic before Current, or "".
func (d *FailoverDetector) Last() string { return d.last }
