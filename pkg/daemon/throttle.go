package daemon

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Throttle runs an action on a Mainloop at most once per interval. Triggers
// arriving while a run is pending are folded into that run.
type Throttle struct {
	loop    *Mainloop
	limiter *rate.Limiter
	fn      func()

	mu      sync.Mutex
	pending bool
}

// NewThrottle creates a throttle for fn on loop
func NewThrottle(loop *Mainloop, interval time.Duration, fn func()) *Throttle {
	return &Throttle{
		loop:    loop,
		limiter: rate.NewLimiter(rate.Every(interval), 1),
		fn:      fn,
	}
}

// Trigger requests a run. The first trigger after a quiet interval runs
// right away; later ones wait for the limiter.
func (t *Throttle) Trigger() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.pending {
		return
	}
	t.pending = true

	delay := t.limiter.Reserve().Delay()
	t.loop.Schedule(delay, func() {
		t.mu.Lock()
		t.pending = false
		t.mu.Unlock()
		t.fn()
	})
}
