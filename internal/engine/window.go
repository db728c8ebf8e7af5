package engine

// ErrorStatusFloor is the lowest status code counted as a server error.
const ErrorStatusFloor = 500

// SlidingWindow is a fixed-capacity FIFO of status codes backed by a ring
// buffer. Pushing onto a full window evicts the oldest sample. It keeps a
// running count of error samples so the rate is O(1).
//
// SlidingWindow is not safe for concurrent use.
type SlidingWindow struct {
	buf    []int
	head   int // index of the oldest sample
	size   int
	errors int
}

// NewSlidingWindow creates a window holding at most capacity samples.
// Capacities below 1 are raised to 1.
func NewSlidingWindow(capacity int) *SlidingWindow {
	if capacity < 1 {
		capacity = 1
	}
	return &SlidingWindow{buf: make([]int, capacity)}
}

// Push appends a sample, evicting the oldest one when full.
func (w *SlidingWindow) Push(value int) {
	if w.size < len(w.buf) {
		w.buf[(w.head+w.size)%len(w.buf)] = value
		w.size++
	} else {
		if isError(w.buf[w.head]) {
			w.errors--
		}
		w.buf[w.head] = value
		w.head = (w.head + 1) % len(w.buf)
	}
	if isError(value) {
		w.errors++
	}
}

// Snapshot returns the samples in arrival order.
func (w *SlidingWindow) Snapshot() []int {
	out := make([]int, w.size)
	for i := 0; i < w.size; i++ {
		out[i] = w.buf[(w.head+i)%len(w.buf)]
	}
	return out
}

// Len returns the number of samples held.
func (w *SlidingWindow) Len() int { return w.size }

// Capacity returns the fixed maximum number of samples.
func (w *SlidingWindow) Capacity() int { return len(w.buf) }

// ErrorRate returns the percentage of error samples currently held.
func (w *SlidingWindow) ErrorRate() float64 {
	if w.size == 0 {
		return 0.0
	}
	return 100 * float64(w.errors) / float64(w.size)
}

// ErrorRate returns 100 * (samples >= 500) / len(samples), or exactly 0
// for no samples. No rounding is applied.
func ErrorRate(samples []int) float64 {
	if len(samples) == 0 {
		return 0.0
	}
	errors := 0
	for _, s := range samples {
		if isError(s) {
			errors++
		}
	}
	return 100 * float64(errors) / float64(len(samples))
}

func isError(status int) bool {
	return status >= ErrorStatusFloor
}
