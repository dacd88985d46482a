package lua

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	glua "github.com/yuin/gopher-lua"

	"github.com/dokzlo13/rgbd/internal/channel"
	"github.com/dokzlo13/rgbd/internal/scheduler"
	"github.com/dokzlo13/rgbd/internal/sink"
)

type fixture struct {
	rt    *Runtime
	mem   *sink.Memory
	sched *scheduler.Manual
	ch    *channel.Channel
}

func newFixture(t *testing.T, name string) *fixture {
	t.Helper()

	mem := sink.NewMemory()
	sched := scheduler.NewManual()
	ch := channel.New(name, channel.Pins{Red: 1, Green: 2, Blue: 3}, mem, sched)

	reg := channel.NewRegistry()
	require.NoError(t, reg.Add(ch))

	rt := NewRuntime(RuntimeDeps{Channels: reg, Scheduler: sched})
	t.Cleanup(rt.Close)
	return &fixture{rt: rt, mem: mem, sched: sched, ch: ch}
}

func (f *fixture) levels() [3]int {
	return [3]int{f.mem.Level(1), f.mem.Level(2), f.mem.Level(3)}
}

func (f *fixture) global(name string) glua.LValue {
	return f.rt.L.GetGlobal(name)
}

func TestFadeFromScript(t *testing.T) {
	f := newFixture(t, "desk")

	require.NoError(t, f.rt.DoString(`
		local rgb = require("rgb")
		rgb.channel("desk"):fade("#0000ff", 100, function() finished = true end)
	`))
	assert.Equal(t, channel.KindFade, f.ch.Snapshot().Kind)
	assert.Equal(t, glua.LNil, f.global("finished"))

	f.sched.Advance(100 * time.Millisecond)
	assert.Equal(t, [3]int{0, 0, 100}, f.levels())
	assert.Equal(t, glua.LTrue, f.global("finished"))
}

func TestColorForms(t *testing.T) {
	tests := []struct {
		name  string
		color string
		want  [3]int
	}{
		{name: "hex", color: `"#ff8000"`, want: [3]int{100, 50, 0}},
		{name: "hex_without_hash", color: `"00ff00"`, want: [3]int{0, 100, 0}},
		{name: "array", color: `{10, 20, 30}`, want: [3]int{10, 20, 30}},
		{name: "fields", color: `{r = 5, g = 6, b = 7}`, want: [3]int{5, 6, 7}},
		{name: "clamped", color: `rgb.color(150, -20, 50)`, want: [3]int{100, 0, 50}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, "desk")
			require.NoError(t, f.rt.DoString(`
				local rgb = require("rgb")
				rgb.channel("desk"):set(`+tt.color+`)
			`))
			assert.Equal(t, tt.want, f.levels())
		})
	}
}

func TestScriptErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{name: "unknown_channel", src: `require("rgb").channel("garage")`, want: "unknown channel"},
		{name: "bad_hex", src: `require("rgb").channel("desk"):set("#zzzzzz")`, want: "bad argument"},
		{name: "bad_table", src: `require("rgb").channel("desk"):set({r = "x"})`, want: "must be a number"},
		{name: "not_a_color", src: `require("rgb").channel("desk"):set(true)`, want: "color expected"},
		{name: "missing_duration", src: `require("rgb").channel("desk"):fade("#ffffff")`, want: "bad argument"},
		{name: "negative_delay", src: `require("sched").after(-1, function() end)`, want: "must not be negative"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, "desk")
			err := f.rt.DoString(tt.src)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestSchedAfter(t *testing.T) {
	f := newFixture(t, "desk")

	require.NoError(t, f.rt.DoString(`
		local rgb = require("rgb")
		local sched = require("sched")
		local desk = rgb.channel("desk")
		sched.after(500, function() desk:set({100, 0, 0}) end)
	`))

	f.sched.Advance(499 * time.Millisecond)
	assert.Equal(t, [3]int{0, 0, 0}, f.levels())

	f.sched.Advance(time.Millisecond)
	assert.Equal(t, [3]int{100, 0, 0}, f.levels())
}

func TestCallbackErrorIsContained(t *testing.T) {
	f := newFixture(t, "desk")

	require.NoError(t, f.rt.DoString(`
		local rgb = require("rgb")
		local sched = require("sched")
		rgb.channel("desk"):fade("#ff0000", 20, function() error("boom") end)
		sched.after(10, function() error("later boom") end)
		after_error = true
	`))
	assert.Equal(t, glua.LTrue, f.global("after_error"))

	assert.NotPanics(t, func() { f.sched.Advance(time.Second) })
	assert.Equal(t, [3]int{100, 0, 0}, f.levels())
}

func TestStateAndPulse(t *testing.T) {
	f := newFixture(t, "desk")

	require.NoError(t, f.rt.DoString(`
		local rgb = require("rgb")
		desk = rgb.channel("desk")
		desk:pulse({10, 0, 0}, {100, 0, 0}, 100, 200, function() pulse_done = true end)
		local s = desk:state()
		kind = s.kind
		name = s.name
		label = tostring(desk)
	`))
	assert.Equal(t, glua.LString("pulse"), f.global("kind"))
	assert.Equal(t, glua.LString("desk"), f.global("name"))
	assert.Equal(t, glua.LString("rgb.channel(desk)"), f.global("label"))

	f.sched.Advance(160 * time.Millisecond)
	require.NoError(t, f.rt.DoString(`desk:end_pulse()`))
	f.sched.Advance(100 * time.Millisecond)

	assert.Equal(t, glua.LTrue, f.global("pulse_done"))
	assert.Equal(t, channel.KindIdle, f.ch.Snapshot().Kind)
	assert.Equal(t, [3]int{100, 0, 0}, f.levels())
}

func TestCancelFromScript(t *testing.T) {
	f := newFixture(t, "desk")

	require.NoError(t, f.rt.DoString(`
		local desk = require("rgb").channel("desk")
		desk:strobe("#ffffff", 50, 1000, function() strobe_done = true end):cancel()
	`))
	f.sched.Advance(2 * time.Second)
	assert.Equal(t, glua.LNil, f.global("strobe_done"))
	assert.Equal(t, channel.KindIdle, f.ch.Snapshot().Kind)
}

func TestClosedChannelRaises(t *testing.T) {
	f := newFixture(t, "desk")
	require.NoError(t, f.ch.Close())

	err := f.rt.DoString(`require("rgb").channel("desk"):fade("#ffffff", 100)`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "channel closed")
}

func TestLogModule(t *testing.T) {
	f := newFixture(t, "desk")

	assert.NoError(t, f.rt.DoString(`
		local log = require("log")
		log.debug("debug")
		log.info("info", { channel = "desk", level = 3, tags = { "a", "b" } })
		log.warn("warn")
		log.error("error", {})
	`))
}

func TestDemoScript(t *testing.T) {
	f := newFixture(t, "main")
	require.NoError(t, f.rt.LoadScript("../../examples/demo.lua"))

	// Blue fade, white strobe and yellow fade finish well within four seconds.
	f.sched.Advance(4 * time.Second)
	assert.Equal(t, [3]int{100, 100, 0}, f.levels())
	assert.Equal(t, channel.KindIdle, f.ch.Snapshot().Kind)

	f.sched.Advance(3 * time.Second)
	assert.Equal(t, channel.KindPulse, f.ch.Snapshot().Kind)

	// Lead-in lands on soft red after 800ms, the first leg reaches red 1500ms later.
	f.sched.Advance(780 * time.Millisecond)
	assert.Equal(t, 11, f.mem.Level(1))
	assert.Equal(t, 0, f.mem.Level(2))

	f.sched.Advance(1480 * time.Millisecond)
	assert.Equal(t, [3]int{100, 0, 0}, f.levels())
	assert.True(t, f.ch.Snapshot().Pulsing)
}
