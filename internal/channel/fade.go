package channel

import (
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/rgbd/internal/color"
)

// TickInterval is the fade sampling period (50 Hz).
const TickInterval = 20 * time.Millisecond

// fadeSteps is round(d / TickInterval), never less than one, so a duration
// shorter than half a tick still completes in a single immediate step.
func fadeSteps(d time.Duration) int {
	steps := int(math.Round(float64(d) / float64(TickInterval)))
	if steps < 1 {
		return 1
	}
	return steps
}

// FadeRGB linearly moves the channel from its current color to target over d,
// one step per TickInterval. The first step is taken immediately. done is
// invoked once the target is reached, never on cancellation.
func (c *Channel) FadeRGB(target color.Color, d time.Duration, done func()) error {
	if c.closed {
		return ErrClosed
	}
	f := c.newFade(newID(), KindFade, target, d, done)
	c.begin(f)
	c.advanceFade(f)
	return nil
}

// PulseRGB fades to start over fade, then oscillates between start and end
// with each leg lasting pulse, so one full cycle takes 2*pulse. It runs until
// EndPulse (clean stop at the next leg boundary, then done) or Cancel.
func (c *Channel) PulseRGB(start, end color.Color, fade, pulse time.Duration, done func()) error {
	if c.closed {
		return ErrClosed
	}
	f := c.newFade(newID(), KindPulse, start, fade, done)
	f.then = &leg{to: end, duration: pulse}
	c.begin(f)
	c.advanceFade(f)
	return nil
}

// EndPulse asks an active pulse to stop. The leg in progress runs to its
// endpoint, then the channel goes idle and the pulse's completion is invoked.
// If the pulse is still fading in, it stops at the start color without ever
// oscillating. EndPulse does nothing when no pulse is active.
func (c *Channel) EndPulse() {
	f, ok := c.active.(*fade)
	if !ok || f.k != KindPulse {
		return
	}
	f.pulsing = false
	f.then = nil

	log.Debug().
		Str("channel", c.name).
		Str("transition", f.tid.String()).
		Int("step", f.step).
		Int("total", f.steps).
		Msg("Pulse ending at next boundary")
}

func (c *Channel) newFade(id uuid.UUID, k Kind, target color.Color, d time.Duration, done func()) *fade {
	steps := fadeSteps(d)
	n := float64(steps)
	return &fade{
		tid:   id,
		k:     k,
		to:    target,
		dr:    (target.R() - c.r) / n,
		dg:    (target.G() - c.g) / n,
		db:    (target.B() - c.b) / n,
		steps: steps,
		done:  done,
	}
}

func (c *Channel) scheduleFade(f *fade) {
	c.sched.After(TickInterval, func() {
		if !c.live(f) {
			return
		}
		c.advanceFade(f)
	})
}

// advanceFade takes one step of f.
func (c *Channel) advanceFade(f *fade) {
	c.r += f.dr
	c.g += f.dg
	c.b += f.db
	c.writeTick(f, level(c.r), level(c.g), level(c.b))
	f.step++

	if f.step < f.steps {
		c.scheduleFade(f)
		return
	}

	if f.pulsing {
		// Reverse along the same line, back to the other endpoint.
		f.dr, f.dg, f.db = -f.dr, -f.dg, -f.db
		f.step = 0
		c.scheduleFade(f)
		return
	}

	c.r, c.g, c.b = normalize(c.r), normalize(c.g), normalize(c.b)

	if f.then != nil {
		// Pulse lead-in reached start; the oscillation continues the same
		// transition, so it is swapped in without a new lifecycle event.
		next := c.newFade(f.tid, f.k, f.then.to, f.then.duration, f.done)
		next.pulsing = true
		c.active = next
		c.advanceFade(next)
		return
	}

	c.finish(f, f.done)
}
