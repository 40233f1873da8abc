package daemon

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/sanyaade-teachings/ganeti/pkg/log"
)

// SignalWaiter receives the signals caught by a Mainloop
type SignalWaiter interface {
	OnSignal(sig os.Signal)
}

// SignalFunc adapts a function to SignalWaiter
type SignalFunc func(sig os.Signal)

// OnSignal calls f(sig)
func (f SignalFunc) OnSignal(sig os.Signal) {
	f(sig)
}

// Mainloop runs timed events and dispatches signals until it is told to
// stop. Timed events and signal waiters run on the loop goroutine.
type Mainloop struct {
	mu      sync.Mutex
	waiters []SignalWaiter

	sigCh  chan os.Signal
	events chan func()
	stopCh chan struct{}
}

// NewMainloop creates a new main loop
func NewMainloop() *Mainloop {
	return &Mainloop{
		sigCh:  make(chan os.Signal, 8),
		events: make(chan func()),
		stopCh: make(chan struct{}),
	}
}

// RegisterSignalWaiter adds w to the receivers of caught signals
func (m *Mainloop) RegisterSignalWaiter(w SignalWaiter) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.waiters = append(m.waiters, w)
}

// Schedule runs fn on the loop after delay. The returned function cancels
// the event if it has not fired yet.
func (m *Mainloop) Schedule(delay time.Duration, fn func()) (cancel func()) {
	t := time.AfterFunc(delay, func() {
		select {
		case m.events <- fn:
		case <-m.stopCh:
		}
	})
	return func() { t.Stop() }
}

// Every runs fn on the loop at the given interval until the loop stops
func (m *Mainloop) Every(interval time.Duration, fn func()) {
	var tick func()
	tick = func() {
		fn()
		m.Schedule(interval, tick)
	}
	m.Schedule(interval, tick)
}

// Run blocks until SIGTERM or SIGINT is caught or ctx is done. SIGHUP and
// SIGCHLD are passed on to the signal waiters.
func (m *Mainloop) Run(ctx context.Context) error {
	signal.Notify(m.sigCh, syscall.SIGTERM, syscall.SIGINT, syscall.SIGHUP, syscall.SIGCHLD)
	defer signal.Stop(m.sigCh)
	defer close(m.stopCh)

	logger := log.WithComponent("mainloop")
	for {
		select {
		case <-ctx.Done():
			logger.Debug().Msg("Context done, leaving main loop")
			return nil

		case fn := <-m.events:
			fn()

		case sig := <-m.sigCh:
			logger.Debug().Str("signal", sig.String()).Msg("Caught signal")
			m.dispatch(sig)
			if sig == syscall.SIGTERM || sig == syscall.SIGINT {
				logger.Info().Str("signal", sig.String()).Msg("Shutting down")
				return nil
			}
		}
	}
}

func (m *Mainloop) dispatch(sig os.Signal) {
	m.mu.Lock()
	waiters := append([]SignalWaiter(nil), m.waiters...)
	m.mu.Unlock()

	for _, w := range waiters {
		w.OnSignal(sig)
	}
}
