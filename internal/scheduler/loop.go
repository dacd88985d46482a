package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"k8s.io/utils/clock"
)

// ErrLoopClosed is returned when work is submitted to a closed loop.
var ErrLoopClosed = errors.New("loop closed")

// DefaultQueueSize is the work queue capacity used when none is given.
const DefaultQueueSize = 256

// Loop executes all submitted work on one goroutine, in submission order.
// Delayed work is armed on the injected clock and queued when it fires, so
// timer callbacks never run concurrently with anything else on the loop.
type Loop struct {
	clock clock.WithDelayedExecution
	work  chan func()

	mu     sync.Mutex
	timers map[*pendingTimer]struct{}

	// Shutdown signaling - closing this channel signals senders to stop
	closing   chan struct{}
	closeOnce sync.Once
}

type pendingTimer struct {
	timer clock.Timer
}

// NewLoop creates a loop using clk for delays. Call Run to start it.
func NewLoop(clk clock.WithDelayedExecution, queueSize int) *Loop {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Loop{
		clock:   clk,
		work:    make(chan func(), queueSize),
		timers:  make(map[*pendingTimer]struct{}),
		closing: make(chan struct{}),
	}
}

// Run processes work until ctx is cancelled or Close is called. Work that
// panics is logged and the loop keeps going.
func (l *Loop) Run(ctx context.Context) {
	log.Debug().Msg("Loop started")
	for {
		select {
		case <-ctx.Done():
			l.drain()
			log.Debug().Msg("Loop stopped")
			return
		case <-l.closing:
			l.drain()
			log.Debug().Msg("Loop stopped")
			return
		case fn := <-l.work:
			l.execute(fn)
		}
	}
}

// drain runs whatever is already queued before exiting.
func (l *Loop) drain() {
	for {
		select {
		case fn := <-l.work:
			l.execute(fn)
		default:
			return
		}
	}
}

func (l *Loop) execute(fn func()) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Error().
				Interface("panic", rec).
				Msg("Loop work panicked - loop continuing")
		}
	}()
	fn()
}

// After implements Scheduler. fn is queued on the loop once d has elapsed on
// the loop's clock. Work scheduled after Close is dropped.
func (l *Loop) After(d time.Duration, fn func()) {
	if l.isClosing() {
		return
	}
	if d < 0 {
		d = 0
	}

	p := &pendingTimer{}
	l.mu.Lock()
	l.timers[p] = struct{}{}
	l.mu.Unlock()

	t := l.clock.AfterFunc(d, func() {
		l.mu.Lock()
		delete(l.timers, p)
		l.mu.Unlock()
		l.enqueue(fn)
	})

	l.mu.Lock()
	if _, armed := l.timers[p]; armed {
		p.timer = t
	}
	l.mu.Unlock()
}

// enqueue blocks until the loop accepts fn or starts closing. Timer callbacks
// use it so a tick is never dropped because the queue is momentarily full.
func (l *Loop) enqueue(fn func()) {
	select {
	case <-l.closing:
	case l.work <- fn:
	}
}

// Do queues fn without blocking. It returns false if the loop is closing,
// ctx is done or the queue is full.
func (l *Loop) Do(ctx context.Context, fn func()) bool {
	select {
	case <-l.closing:
		log.Warn().Msg("Loop closing, dropping work")
		return false
	case <-ctx.Done():
		log.Warn().Msg("Context cancelled, dropping loop work")
		return false
	case l.work <- fn:
		return true
	default:
		log.Warn().Msg("Loop work queue full, dropping work")
		return false
	}
}

// DoSync queues fn, waiting for queue space, and waits for its result.
// It must not be called from the loop goroutine itself.
func (l *Loop) DoSync(ctx context.Context, fn func() error) error {
	done := make(chan error, 1)
	wrapped := func() {
		defer func() {
			if rec := recover(); rec != nil {
				done <- errors.New("loop work panicked")
				panic(rec)
			}
		}()
		done <- fn()
	}

	select {
	case <-l.closing:
		return ErrLoopClosed
	case <-ctx.Done():
		return ctx.Err()
	case l.work <- wrapped:
	}

	select {
	case <-l.closing:
		// Close drains the queue, so a queued item may still have run.
		select {
		case err := <-done:
			return err
		default:
			return ErrLoopClosed
		}
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		return err
	}
}

// Pending returns the number of armed timers that have not fired yet.
func (l *Loop) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.timers)
}

// Close stops accepting work and disarms pending timers. Run drains the
// queue and returns.
func (l *Loop) Close() {
	l.closeOnce.Do(func() {
		close(l.closing)
	})

	l.mu.Lock()
	for p := range l.timers {
		if p.timer != nil {
			p.timer.Stop()
		}
		delete(l.timers, p)
	}
	l.mu.Unlock()
}

func (l *Loop) isClosing() bool {
	select {
	case <-l.closing:
		return true
	default:
		return false
	}
}
