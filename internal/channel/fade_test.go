package channel

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dokzlo13/rgbd/internal/color"
)

func TestFadeSteps(t *testing.T) {
	t.Parallel()

	tests := []struct {
		d    time.Duration
		want int
	}{
		{d: -time.Second, want: 1},
		{d: 0, want: 1},
		{d: 5 * time.Millisecond, want: 1},
		{d: 10 * time.Millisecond, want: 1},
		{d: 20 * time.Millisecond, want: 1},
		{d: 30 * time.Millisecond, want: 2},
		{d: 100 * time.Millisecond, want: 5},
		{d: 2 * time.Second, want: 100},
		{d: 700 * time.Millisecond, want: 35},
	}

	for _, tt := range tests {
		t.Run(tt.d.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, fadeSteps(tt.d))
		})
	}
}

func TestFadeReachesTargetExactly(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		from   color.Color
		target color.Color
		d      time.Duration
	}{
		{name: "rise", from: color.Off, target: color.New(100, 50, 25), d: 300 * time.Millisecond},
		{name: "fall", from: color.New(100, 100, 100), target: color.Off, d: 60 * time.Millisecond},
		{name: "thirds", from: color.Off, target: color.New(33, 66, 99), d: time.Second},
		{name: "mixed", from: color.New(90, 0, 45), target: color.New(10, 100, 46), d: 140 * time.Millisecond},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, mem, sched := newTestChannel(t)
			require.NoError(t, c.SetRGB(tt.from, nil))
			mem.Reset()

			done, calls := counter()
			steps := fadeSteps(tt.d)
			require.NoError(t, c.FadeRGB(tt.target, tt.d, done))

			sched.Advance(time.Duration(steps-2) * TickInterval)
			assert.Equal(t, KindFade, c.Snapshot().Kind)
			assert.Zero(t, *calls)

			sched.Advance(TickInterval)
			assert.Equal(t, KindIdle, c.Snapshot().Kind)
			assert.Equal(t, 1, *calls)
			assert.Equal(t, tt.target, c.Color())
			assert.Zero(t, sched.Pending())

			assert.Len(t, mem.WritesTo(testPins.Red), steps)
			for _, w := range mem.Writes() {
				assert.GreaterOrEqual(t, w.Value, 0)
				assert.LessOrEqual(t, w.Value, color.Max)
			}
			assert.Equal(t, [3]int{int(tt.target.R()), int(tt.target.G()), int(tt.target.B())}, levels(mem))
		})
	}
}

func TestFadeShortDurationCompletesImmediately(t *testing.T) {
	t.Parallel()

	for _, d := range []time.Duration{-time.Second, 0, 5 * time.Millisecond, 10 * time.Millisecond} {
		t.Run(d.String(), func(t *testing.T) {
			c, mem, sched := newTestChannel(t)
			done, calls := counter()

			require.NoError(t, c.FadeRGB(color.New(40, 50, 60), d, done))
			assert.Equal(t, 1, *calls)
			assert.Equal(t, KindIdle, c.Snapshot().Kind)
			assert.Equal(t, [3]int{40, 50, 60}, levels(mem))
			assert.Len(t, mem.WritesTo(testPins.Blue), 1)
			assert.Zero(t, sched.Pending())
		})
	}
}

func TestFadeIsMonotonic(t *testing.T) {
	t.Parallel()

	c, mem, sched := newTestChannel(t)
	require.NoError(t, c.FadeRGB(color.New(100, 0, 0), 2*time.Second, nil))
	sched.RunUntilIdle(1000)

	reds := mem.WritesTo(testPins.Red)
	require.Len(t, reds, 100)
	for i := 1; i < len(reds); i++ {
		assert.GreaterOrEqual(t, reds[i], reds[i-1])
	}
	assert.Equal(t, 100, reds[len(reds)-1])
}

func TestFadeSupersedesStrobe(t *testing.T) {
	t.Parallel()

	c, mem, sched := newTestChannel(t)
	strobeDone, strobeCalls := counter()

	require.NoError(t, c.StrobeRGB(color.New(100, 100, 100), 100*time.Millisecond, 950*time.Millisecond, strobeDone))
	sched.Advance(100 * time.Millisecond)
	assert.Equal(t, []int{0, 100}, mem.WritesTo(testPins.Red))

	fadeDone, fadeCalls := counter()
	require.NoError(t, c.FadeRGB(color.New(0, 0, 50), 20*time.Millisecond, fadeDone))
	assert.Equal(t, 1, *fadeCalls)
	assert.Equal(t, [3]int{0, 0, 50}, levels(mem))

	// The strobe's pending tick at 200ms must not write.
	mem.Reset()
	sched.Advance(time.Second)
	assert.Empty(t, mem.Writes())
	assert.Zero(t, *strobeCalls)
	assert.Zero(t, sched.Pending())
	assert.Equal(t, color.New(0, 0, 50), c.Color())
}

func TestFadeWithoutCompletion(t *testing.T) {
	t.Parallel()

	c, mem, sched := newTestChannel(t)
	require.NoError(t, c.FadeRGB(color.New(0, 100, 0), 100*time.Millisecond, nil))
	sched.RunUntilIdle(100)
	assert.Equal(t, [3]int{0, 100, 0}, levels(mem))
}

// pulseFixture starts a pulse from off: lead-in to (10,0,0) over 100ms, then
// legs of 200ms between (10,0,0) and (100,0,0). Red moves by 2 per tick during
// the lead-in and by 9 per tick afterwards.
func pulseFixture(t *testing.T) (*Channel, *pulseProbe) {
	t.Helper()

	c, mem, sched := newTestChannel(t)
	done, calls := counter()
	require.NoError(t, c.PulseRGB(color.New(10, 0, 0), color.New(100, 0, 0), 100*time.Millisecond, 200*time.Millisecond, done))
	return c, &pulseProbe{c: c, mem: mem, adv: sched.Advance, pending: sched.Pending, calls: calls}
}

type pulseProbe struct {
	c       *Channel
	mem     interface{ Level(int) int }
	adv     func(time.Duration) int
	pending func() int
	calls   *int
}

func (p *pulseProbe) red() int { return p.mem.Level(testPins.Red) }

func TestPulseOscillates(t *testing.T) {
	t.Parallel()

	c, p := pulseFixture(t)
	assert.Equal(t, 2, p.red())
	assert.Equal(t, KindPulse, c.Snapshot().Kind)
	assert.False(t, c.Snapshot().Pulsing)

	// Lead-in lands on start at 80ms and the first leg steps at once.
	p.adv(80 * time.Millisecond)
	assert.Equal(t, 19, p.red())
	assert.True(t, c.Snapshot().Pulsing)

	p.adv(180 * time.Millisecond)
	assert.Equal(t, 100, p.red())

	for cycle := 0; cycle < 3; cycle++ {
		p.adv(200 * time.Millisecond)
		assert.Equal(t, 10, p.red(), "cycle %d low", cycle)
		p.adv(200 * time.Millisecond)
		assert.Equal(t, 100, p.red(), "cycle %d high", cycle)
	}

	assert.Equal(t, KindPulse, c.Snapshot().Kind)
	assert.Zero(t, *p.calls)
}

func TestEndPulseStopsAtNextBoundary(t *testing.T) {
	t.Parallel()

	t.Run("rising", func(t *testing.T) {
		c, p := pulseFixture(t)
		p.adv(160 * time.Millisecond)
		assert.Equal(t, 55, p.red())

		c.EndPulse()
		p.adv(80 * time.Millisecond)
		assert.Equal(t, KindPulse, c.Snapshot().Kind)
		assert.Zero(t, *p.calls)

		p.adv(20 * time.Millisecond)
		assert.Equal(t, KindIdle, c.Snapshot().Kind)
		assert.Equal(t, 100, p.red())
		assert.Equal(t, color.New(100, 0, 0), c.Color())
		assert.Equal(t, 1, *p.calls)
		assert.Zero(t, p.pending())
	})

	t.Run("falling", func(t *testing.T) {
		c, p := pulseFixture(t)
		p.adv(360 * time.Millisecond)
		assert.Equal(t, 55, p.red())

		c.EndPulse()
		p.adv(100 * time.Millisecond)
		assert.Equal(t, KindIdle, c.Snapshot().Kind)
		assert.Equal(t, 10, p.red())
		assert.Equal(t, 1, *p.calls)
	})
}

func TestEndPulseDuringLeadIn(t *testing.T) {
	t.Parallel()

	c, p := pulseFixture(t)
	p.adv(40 * time.Millisecond)
	assert.Equal(t, 6, p.red())

	c.EndPulse()
	p.adv(40 * time.Millisecond)
	assert.Equal(t, KindIdle, c.Snapshot().Kind)
	assert.Equal(t, color.New(10, 0, 0), c.Color())
	assert.Equal(t, 1, *p.calls)

	p.adv(time.Second)
	assert.Equal(t, 10, p.red())
	assert.Equal(t, 1, *p.calls)
	assert.Zero(t, p.pending())
}

func TestEndPulseIgnoresOtherTransitions(t *testing.T) {
	t.Parallel()

	c, mem, sched := newTestChannel(t)
	done, calls := counter()
	require.NoError(t, c.FadeRGB(color.New(100, 0, 0), 100*time.Millisecond, done))

	c.EndPulse()
	assert.Equal(t, KindFade, c.Snapshot().Kind)

	sched.RunUntilIdle(100)
	assert.Equal(t, 1, *calls)
	assert.Equal(t, 100, mem.Level(testPins.Red))

	// Idle channel.
	c.EndPulse()
	assert.Equal(t, KindIdle, c.Snapshot().Kind)
}

func TestPulseCancelledByFade(t *testing.T) {
	t.Parallel()

	c, p := pulseFixture(t)
	p.adv(300 * time.Millisecond)

	require.NoError(t, c.FadeRGB(color.Off, 20*time.Millisecond, nil))
	assert.Equal(t, 0, p.red())

	p.adv(time.Second)
	assert.Equal(t, 0, p.red())
	assert.Zero(t, *p.calls)
	assert.Zero(t, p.pending())
}
