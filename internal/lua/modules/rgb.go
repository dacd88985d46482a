package modules

import (
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	lua "github.com/yuin/gopher-lua"

	"github.com/dokzlo13/rgbd/internal/channel"
	"github.com/dokzlo13/rgbd/internal/color"
)

const channelTypeName = "rgb.channel"

// ChannelLookup resolves channel names for rgb.channel().
type ChannelLookup interface {
	Get(name string) (*channel.Channel, error)
}

// RGBModule exposes configured channels to Lua.
//
// ERROR HANDLING CONVENTION:
//   - rgb.channel() with an unknown name and bad arguments raise errors
//   - operations on a closed channel raise errors
//   - output write failures are logged, the script keeps going
type RGBModule struct {
	channels ChannelLookup
}

// NewRGBModule creates a new rgb module
func NewRGBModule(channels ChannelLookup) *RGBModule {
	return &RGBModule{channels: channels}
}

// Loader is the module loader for Lua
func (m *RGBModule) Loader(L *lua.LState) int {
	registerChannelType(L)

	mod := L.NewTable()
	L.SetField(mod, "channel", L.NewFunction(m.channel))
	L.SetField(mod, "color", L.NewFunction(m.color))
	L.SetField(mod, "off", colorToTable(L, color.Off))
	L.SetField(mod, "max", lua.LNumber(color.Max))

	L.Push(mod)
	return 1
}

// channel(name) -> rgb.channel
func (m *RGBModule) channel(L *lua.LState) int {
	name := L.CheckString(1)
	ch, err := m.channels.Get(name)
	if err != nil {
		L.RaiseError("%s", err.Error())
		return 0
	}
	pushChannel(L, ch)
	return 1
}

// color(r, g, b) -> {r, g, b}, clamped to 0..100
func (m *RGBModule) color(L *lua.LState) int {
	c := color.New(float64(L.CheckNumber(1)), float64(L.CheckNumber(2)), float64(L.CheckNumber(3)))
	L.Push(colorToTable(L, c))
	return 1
}

func registerChannelType(L *lua.LState) {
	mt := L.NewTypeMetatable(channelTypeName)
	L.SetField(mt, "__index", L.SetFuncs(L.NewTable(), channelMethods))
	L.SetField(mt, "__tostring", L.NewFunction(channelToString))
}

var channelMethods = map[string]lua.LGFunction{
	"name":      channelName,
	"state":     channelState,
	"set":       channelSet,
	"fade":      channelFade,
	"pulse":     channelPulse,
	"end_pulse": channelEndPulse,
	"strobe":    channelStrobe,
	"cancel":    channelCancel,
}

func pushChannel(L *lua.LState, ch *channel.Channel) {
	ud := L.NewUserData()
	ud.Value = ch
	L.SetMetatable(ud, L.GetTypeMetatable(channelTypeName))
	L.Push(ud)
}

func checkChannel(L *lua.LState) (*channel.Channel, *lua.LUserData) {
	ud := L.CheckUserData(1)
	if v, ok := ud.Value.(*channel.Channel); ok {
		return v, ud
	}
	L.ArgError(1, "rgb.channel expected")
	return nil, nil
}

// ch:name() -> string
func channelName(L *lua.LState) int {
	ch, _ := checkChannel(L)
	L.Push(lua.LString(ch.Name()))
	return 1
}

func channelToString(L *lua.LState) int {
	ch, _ := checkChannel(L)
	L.Push(lua.LString(channelTypeName + "(" + ch.Name() + ")"))
	return 1
}

// ch:state() -> table
func channelState(L *lua.LState) int {
	ch, _ := checkChannel(L)
	s := ch.Snapshot()
	L.Push(MapToLuaTable(L, map[string]any{
		"name":       s.Name,
		"red":        s.Red,
		"green":      s.Green,
		"blue":       s.Blue,
		"kind":       string(s.Kind),
		"transition": s.Transition,
		"pulsing":    s.Pulsing,
		"step":       s.Step,
		"total":      s.Total,
		"closed":     s.Closed,
	}))
	return 1
}

// ch:set(color [, done]) -> self
func channelSet(L *lua.LState) int {
	ch, ud := checkChannel(L)
	c := CheckColor(L, 2)
	done := optCallback(L, 3, ch, "set")

	checkResult(L, ch, "set", ch.SetRGB(c, done))
	L.Push(ud)
	return 1
}

// ch:fade(color, ms [, done]) -> self
func channelFade(L *lua.LState) int {
	ch, ud := checkChannel(L)
	c := CheckColor(L, 2)
	d := checkMillis(L, 3)
	done := optCallback(L, 4, ch, "fade")

	checkResult(L, ch, "fade", ch.FadeRGB(c, d, done))
	L.Push(ud)
	return 1
}

// ch:pulse(start, end, fade_ms, pulse_ms [, done]) -> self
func channelPulse(L *lua.LState) int {
	ch, ud := checkChannel(L)
	start := CheckColor(L, 2)
	end := CheckColor(L, 3)
	fade := checkMillis(L, 4)
	pulse := checkMillis(L, 5)
	done := optCallback(L, 6, ch, "pulse")

	checkResult(L, ch, "pulse", ch.PulseRGB(start, end, fade, pulse, done))
	L.Push(ud)
	return 1
}

// ch:end_pulse() -> self
func channelEndPulse(L *lua.LState) int {
	ch, ud := checkChannel(L)
	ch.EndPulse()
	L.Push(ud)
	return 1
}

// ch:strobe(color, interval_ms, total_ms [, done]) -> self
func channelStrobe(L *lua.LState) int {
	ch, ud := checkChannel(L)
	c := CheckColor(L, 2)
	interval := checkMillis(L, 3)
	total := checkMillis(L, 4)
	done := optCallback(L, 5, ch, "strobe")

	checkResult(L, ch, "strobe", ch.StrobeRGB(c, interval, total, done))
	L.Push(ud)
	return 1
}

// ch:cancel() -> self
func channelCancel(L *lua.LState) int {
	ch, ud := checkChannel(L)
	ch.Cancel()
	L.Push(ud)
	return 1
}

// checkResult raises for a closed channel and logs anything else.
func checkResult(L *lua.LState, ch *channel.Channel, op string, err error) {
	if err == nil {
		return
	}
	if errors.Is(err, channel.ErrClosed) {
		L.RaiseError("%s on %s: %s", op, ch.Name(), err.Error())
		return
	}
	log.Warn().Err(err).Str("channel", ch.Name()).Str("op", op).Msg("Channel operation reported an error")
}

func checkMillis(L *lua.LState, n int) time.Duration {
	ms := float64(L.CheckNumber(n))
	return time.Duration(ms * float64(time.Millisecond))
}

// optCallback wraps an optional Lua function argument as a completion.
func optCallback(L *lua.LState, n int, ch *channel.Channel, op string) func() {
	fn := L.OptFunction(n, nil)
	if fn == nil {
		return nil
	}
	return func() {
		CallFunction(L, fn, ch.Name()+":"+op)
	}
}
