// Package channel drives one RGB light (three PWM outputs) through timed color
// transitions: immediate set, linear fade, pulse and strobe.
//
// A Channel is not safe for concurrent use. Every method, and every tick the
// channel schedules for itself, must run on the single thread behind its
// Scheduler (see scheduler.Loop).
package channel

import (
	"errors"
	"fmt"
	"math"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/rgbd/internal/color"
	"github.com/dokzlo13/rgbd/internal/scheduler"
	"github.com/dokzlo13/rgbd/internal/sink"
)

// ErrClosed is returned by operations on a closed channel.
var ErrClosed = errors.New("channel closed")

// writeEpsilon absorbs float drift so that a fade landing on 99.99999999
// still writes 100.
const writeEpsilon = 1e-6

// Pins are the output ids of the red, green and blue components.
type Pins struct {
	Red   int `yaml:"red" json:"red"`
	Green int `yaml:"green" json:"green"`
	Blue  int `yaml:"blue" json:"blue"`
}

// Channel owns the current color of one RGB light and at most one active
// transition.
type Channel struct {
	name     string
	pins     Pins
	out      sink.Sink
	sched    scheduler.Scheduler
	observer Observer

	// current intensities; fractional while a fade runs
	r, g, b float64

	active    transition
	closed    bool
	configErr error
}

// Option configures a Channel.
type Option func(*Channel)

// WithObserver reports transition lifecycle events to o.
func WithObserver(o Observer) Option {
	return func(c *Channel) {
		c.observer = o
	}
}

// New creates a channel and configures its three outputs. A failed output is
// logged and reported by ConfigErr; the channel remains usable.
func New(name string, pins Pins, out sink.Sink, sched scheduler.Scheduler, opts ...Option) *Channel {
	c := &Channel{
		name:  name,
		pins:  pins,
		out:   out,
		sched: sched,
	}
	for _, opt := range opts {
		opt(c)
	}

	var errs []error
	for _, o := range c.outputs() {
		if err := out.Configure(o.id); err != nil {
			log.Warn().Err(err).
				Str("channel", name).
				Str("component", o.name).
				Int("output", o.id).
				Msg("Failed to configure PWM output")
			errs = append(errs, fmt.Errorf("%s output %d: %w", o.name, o.id, err))
		}
	}
	c.configErr = errors.Join(errs...)

	log.Debug().
		Str("channel", name).
		Int("red", pins.Red).
		Int("green", pins.Green).
		Int("blue", pins.Blue).
		Msg("Channel created")
	return c
}

// Name returns the channel's name.
func (c *Channel) Name() string { return c.name }

// Pins returns the channel's output ids.
func (c *Channel) Pins() Pins { return c.pins }

// ConfigErr reports outputs that failed to configure at construction.
func (c *Channel) ConfigErr() error { return c.configErr }

// Color returns the current color.
func (c *Channel) Color() color.Color {
	return color.New(c.r, c.g, c.b)
}

// SetRGB cancels any active transition, then stores and writes col. done, if
// given, is invoked synchronously. The returned error comes from the sink.
func (c *Channel) SetRGB(col color.Color, done func()) error {
	if c.closed {
		return ErrClosed
	}
	c.Cancel()

	c.r, c.g, c.b = col.R(), col.G(), col.B()
	err := c.writeCurrent()
	if done != nil {
		done()
	}
	return err
}

// Cancel drops the active transition without invoking its completion. Ticks
// already scheduled for it become no-ops.
func (c *Channel) Cancel() {
	if c.active == nil {
		return
	}
	t := c.active
	c.active = nil

	log.Debug().
		Str("channel", c.name).
		Str("transition", t.id().String()).
		Str("kind", string(t.kind())).
		Msg("Transition cancelled")
	c.emit(EventCancelled, t)
}

// Close cancels any transition and stops all three outputs. Ticks that fire
// afterwards never reach the sink.
func (c *Channel) Close() error {
	if c.closed {
		return nil
	}
	c.Cancel()
	c.closed = true

	var errs []error
	for _, o := range c.outputs() {
		if err := c.out.Stop(o.id); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop %s output %d: %w", o.name, o.id, err))
		}
	}

	log.Debug().Str("channel", c.name).Msg("Channel closed")
	return errors.Join(errs...)
}

// Closed reports whether Close has been called.
func (c *Channel) Closed() bool { return c.closed }

// State is a point-in-time view of a channel.
type State struct {
	Name       string  `json:"name"`
	Red        float64 `json:"red"`
	Green      float64 `json:"green"`
	Blue       float64 `json:"blue"`
	Kind       Kind    `json:"kind"`
	Transition string  `json:"transition,omitempty"`
	Pulsing    bool    `json:"pulsing,omitempty"`
	Step       int     `json:"step"`
	Total      int     `json:"total"`
	Closed     bool    `json:"closed"`
}

// Snapshot returns the channel's current state.
func (c *Channel) Snapshot() State {
	s := State{
		Name:   c.name,
		Red:    c.r,
		Green:  c.g,
		Blue:   c.b,
		Kind:   KindIdle,
		Closed: c.closed,
	}
	if c.active != nil {
		s.Kind = c.active.kind()
		s.Transition = c.active.id().String()
		s.Step, s.Total = c.active.progress()
		if f, ok := c.active.(*fade); ok {
			s.Pulsing = f.pulsing
		}
	}
	return s
}

// begin makes t the active transition, superseding whatever was running.
func (c *Channel) begin(t transition) {
	c.Cancel()
	c.active = t

	step, total := t.progress()
	log.Debug().
		Str("channel", c.name).
		Str("transition", t.id().String()).
		Str("kind", string(t.kind())).
		Stringer("target", t.target()).
		Int("step", step).
		Int("total", total).
		Msg("Transition started")
	c.emit(EventStarted, t)
}

// finish retires t after natural completion and invokes done.
func (c *Channel) finish(t transition, done func()) {
	c.active = nil

	log.Debug().
		Str("channel", c.name).
		Str("transition", t.id().String()).
		Str("kind", string(t.kind())).
		Msg("Transition completed")
	c.emit(EventCompleted, t)

	if done != nil {
		done()
	}
}

// live reports whether a tick for t should still run.
func (c *Channel) live(t transition) bool {
	return !c.closed && c.active == t
}

func (c *Channel) emit(typ EventType, t transition) {
	if c.observer == nil {
		return
	}
	c.observer.Observe(Event{
		Type:       typ,
		Channel:    c.name,
		Transition: t.id(),
		Kind:       t.kind(),
		Target:     t.target(),
	})
}

// writeCurrent writes the current intensities, floored, to the sink.
func (c *Channel) writeCurrent() error {
	return c.write(level(c.r), level(c.g), level(c.b))
}

func (c *Channel) write(r, g, b int) error {
	var errs []error
	for _, w := range [...]struct {
		id    int
		value int
	}{{c.pins.Red, r}, {c.pins.Green, g}, {c.pins.Blue, b}} {
		if err := c.out.Write(w.id, w.value); err != nil {
			errs = append(errs, fmt.Errorf("failed to write output %d: %w", w.id, err))
		}
	}
	return errors.Join(errs...)
}

// writeTick writes during a transition; failures are logged, never fatal.
func (c *Channel) writeTick(t transition, r, g, b int) {
	if err := c.write(r, g, b); err != nil {
		log.Warn().Err(err).
			Str("channel", c.name).
			Str("transition", t.id().String()).
			Msg("Output write failed")
	}
}

type output struct {
	name string
	id   int
}

func (c *Channel) outputs() [3]output {
	return [3]output{
		{"red", c.pins.Red},
		{"green", c.pins.Green},
		{"blue", c.pins.Blue},
	}
}

func newID() uuid.UUID {
	return uuid.New()
}

// level converts an intensity to the integer written to a sink: floored,
// clamped to [0, 100] and never negative zero.
func level(v float64) int {
	l := math.Floor(v + writeEpsilon)
	if l <= 0 || math.IsNaN(l) {
		return 0
	}
	if l >= color.Max {
		return color.Max
	}
	return int(l)
}

// normalize snaps an intensity to an integer, dropping the sign of -0.
func normalize(v float64) float64 {
	return math.Abs(math.Round(v))
}
