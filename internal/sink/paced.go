package sink

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// Paced wraps a slow Sink (a serial or network PWM controller) so that writes
// never block the caller. Pending writes are coalesced per output, latest value
// wins, and delivered by a single worker at no more than the configured rate.
type Paced struct {
	next    Sink
	limiter *rate.Limiter

	mu      sync.Mutex
	pending map[int]int
	order   []int

	wake   chan struct{}
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	closeOnce sync.Once
}

// NewPaced starts a worker delivering at most rps writes per second to next.
func NewPaced(next Sink, rps float64, burst int) *Paced {
	if burst < 1 {
		burst = 1
	}
	ctx, cancel := context.WithCancel(context.Background())

	p := &Paced{
		next:    next,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		pending: make(map[int]int),
		wake:    make(chan struct{}, 1),
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	go p.run()

	log.Debug().Float64("rps", rps).Int("burst", burst).Msg("Paced sink worker started")
	return p
}

// Configure passes through synchronously; it only happens at construction.
func (p *Paced) Configure(id int) error {
	return p.next.Configure(id)
}

// Write queues value for id and returns immediately.
func (p *Paced) Write(id, value int) error {
	if p.ctx.Err() != nil {
		return ErrClosed
	}

	p.mu.Lock()
	if _, queued := p.pending[id]; !queued {
		p.order = append(p.order, id)
	}
	p.pending[id] = value
	p.mu.Unlock()

	select {
	case p.wake <- struct{}{}:
	default:
	}
	return nil
}

// Stop drops any queued value for id and stops it on the wrapped sink.
func (p *Paced) Stop(id int) error {
	p.mu.Lock()
	if _, queued := p.pending[id]; queued {
		delete(p.pending, id)
		for i, queuedID := range p.order {
			if queuedID == id {
				p.order = append(p.order[:i], p.order[i+1:]...)
				break
			}
		}
	}
	p.mu.Unlock()

	return p.next.Stop(id)
}

// Close stops the worker, flushes whatever is still queued without pacing and
// closes the wrapped sink if it is an io.Closer.
func (p *Paced) Close() error {
	var errs []error
	p.closeOnce.Do(func() {
		p.cancel()
		<-p.done

		for {
			id, value, ok := p.pop()
			if !ok {
				break
			}
			if err := p.next.Write(id, value); err != nil {
				errs = append(errs, err)
			}
		}

		if c, ok := p.next.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	})
	return errors.Join(errs...)
}

func (p *Paced) run() {
	defer close(p.done)
	for {
		select {
		case <-p.ctx.Done():
			return
		case <-p.wake:
		}

		for {
			id, value, ok := p.peek()
			if !ok {
				break
			}
			if err := p.limiter.Wait(p.ctx); err != nil {
				return
			}
			// The value may have been replaced while waiting; deliver the latest.
			if id, value, ok = p.pop(); !ok {
				break
			}
			if err := p.next.Write(id, value); err != nil {
				log.Warn().Err(err).Int("output", id).Int("value", value).Msg("Paced write failed")
			}
		}
	}
}

func (p *Paced) peek() (int, int, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.order) == 0 {
		return 0, 0, false
	}
	id := p.order[0]
	return id, p.pending[id], true
}

func (p *Paced) pop() (int, int, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.order) == 0 {
		return 0, 0, false
	}
	id := p.order[0]
	p.order = p.order[1:]
	value := p.pending[id]
	delete(p.pending, id)
	return id, value, true
}
