package modules

import (
	"time"

	lua "github.com/yuin/gopher-lua"

	"github.com/dokzlo13/rgbd/internal/scheduler"
)

// SchedModule provides sched.after() to Lua.
//
// Callbacks run on the same thread as every other script call; an error
// inside one is logged and does not cancel other timers.
type SchedModule struct {
	scheduler scheduler.Scheduler
}

// NewSchedModule creates a new sched module
func NewSchedModule(sched scheduler.Scheduler) *SchedModule {
	return &SchedModule{
		scheduler: sched,
	}
}

// Loader is the module loader for Lua
func (m *SchedModule) Loader(L *lua.LState) int {
	mod := L.NewTable()

	L.SetField(mod, "after", L.NewFunction(m.after))

	L.Push(mod)
	return 1
}

// after(ms, fn) - run fn once, ms milliseconds from now
func (m *SchedModule) after(L *lua.LState) int {
	ms := float64(L.CheckNumber(1))
	fn := L.CheckFunction(2)
	if ms < 0 {
		L.ArgError(1, "delay must not be negative")
		return 0
	}

	m.scheduler.After(time.Duration(ms*float64(time.Millisecond)), func() {
		CallFunction(L, fn, "sched.after")
	})
	return 0
}
