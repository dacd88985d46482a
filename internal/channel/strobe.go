package channel

import (
	"math"
	"time"

	"github.com/dokzlo13/rgbd/internal/color"
)

// strobeToggles is round(total / interval), bumped to the next odd number so
// the sequence, which starts off, also ends off.
func strobeToggles(interval, total time.Duration) int {
	if interval <= 0 {
		return 1
	}
	n := int(math.Round(float64(total) / float64(interval)))
	if n < 1 {
		return 1
	}
	if n%2 == 0 {
		n++
	}
	return n
}

// StrobeRGB alternates the channel between off and col, switching every
// interval for roughly total. The first (off) phase is written immediately and
// the sequence always finishes off; done is invoked then.
func (c *Channel) StrobeRGB(col color.Color, interval, total time.Duration, done func()) error {
	if c.closed {
		return ErrClosed
	}
	if interval < 0 {
		interval = 0
	}
	s := &strobe{
		tid:     newID(),
		on:      col,
		toggles: strobeToggles(interval, total),
		period:  interval,
		done:    done,
	}
	c.begin(s)
	c.advanceStrobe(s)
	return nil
}

func (c *Channel) advanceStrobe(s *strobe) {
	phase := color.Off
	if s.toggle%2 == 1 {
		phase = s.on
	}
	c.r, c.g, c.b = phase.R(), phase.G(), phase.B()
	c.writeTick(s, level(c.r), level(c.g), level(c.b))
	s.toggle++

	if s.toggle < s.toggles {
		c.sched.After(s.period, func() {
			if !c.live(s) {
				return
			}
			c.advanceStrobe(s)
		})
		return
	}

	c.finish(s, s.done)
}
