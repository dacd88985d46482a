// Package lua runs show scripts that drive channels from Lua.
package lua

import (
	"fmt"

	"github.com/rs/zerolog/log"
	lua "github.com/yuin/gopher-lua"

	"github.com/dokzlo13/rgbd/internal/lua/modules"
	"github.com/dokzlo13/rgbd/internal/scheduler"
)

// RuntimeDeps groups all dependencies needed by the Lua runtime.
type RuntimeDeps struct {
	Channels  modules.ChannelLookup
	Scheduler scheduler.Scheduler
}

// Runtime owns one Lua VM. It is not safe for concurrent use: scripts,
// timer callbacks and transition completions must all run on the thread
// behind deps.Scheduler, the same one that drives the channels.
type Runtime struct {
	L *lua.LState

	rgbModule   *modules.RGBModule
	schedModule *modules.SchedModule
	logModule   *modules.LogModule
}

// NewRuntime creates a new Lua runtime with rgb, sched and log preloaded.
func NewRuntime(deps RuntimeDeps) *Runtime {
	r := &Runtime{
		L: lua.NewState(),
	}
	r.registerModules(deps)
	return r
}

func (r *Runtime) registerModules(deps RuntimeDeps) {
	r.logModule = modules.NewLogModule()
	r.L.PreloadModule("log", r.logModule.Loader)

	r.rgbModule = modules.NewRGBModule(deps.Channels)
	r.L.PreloadModule("rgb", r.rgbModule.Loader)

	r.schedModule = modules.NewSchedModule(deps.Scheduler)
	r.L.PreloadModule("sched", r.schedModule.Loader)
}

// LoadScript executes the script at path.
func (r *Runtime) LoadScript(path string) error {
	log.Info().Str("path", path).Msg("Loading Lua script")

	if err := r.L.DoFile(path); err != nil {
		return fmt.Errorf("failed to execute Lua script: %w", err)
	}

	log.Info().Msg("Lua script loaded successfully")
	return nil
}

// DoString executes a chunk of Lua source.
func (r *Runtime) DoString(src string) error {
	if err := r.L.DoString(src); err != nil {
		return fmt.Errorf("failed to execute Lua chunk: %w", err)
	}
	return nil
}

// Close releases the Lua state.
func (r *Runtime) Close() {
	r.L.Close()
}
