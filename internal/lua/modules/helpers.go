package modules

import (
	"fmt"

	"github.com/rs/zerolog/log"
	lua "github.com/yuin/gopher-lua"

	"github.com/dokzlo13/rgbd/internal/color"
)

// LuaToGo converts a Lua value to a Go value
func LuaToGo(v lua.LValue) interface{} {
	switch val := v.(type) {
	case lua.LString:
		return string(val)
	case lua.LNumber:
		return float64(val)
	case lua.LBool:
		return bool(val)
	case *lua.LTable:
		// Check if it's an array or object
		isArray := true
		maxIdx := 0
		val.ForEach(func(k, _ lua.LValue) {
			if num, ok := k.(lua.LNumber); ok {
				idx := int(num)
				if idx > maxIdx {
					maxIdx = idx
				}
			} else {
				isArray = false
			}
		})

		if isArray && maxIdx > 0 {
			arr := make([]interface{}, maxIdx)
			val.ForEach(func(k, v lua.LValue) {
				if num, ok := k.(lua.LNumber); ok {
					arr[int(num)-1] = LuaToGo(v)
				}
			})
			return arr
		}

		obj := make(map[string]interface{})
		val.ForEach(func(k, v lua.LValue) {
			obj[lua.LVAsString(k)] = LuaToGo(v)
		})
		return obj
	case *lua.LNilType:
		return nil
	default:
		return v.String()
	}
}

// GoToLuaValue converts a Go value to a Lua value
func GoToLuaValue(L *lua.LState, v interface{}) lua.LValue {
	switch val := v.(type) {
	case nil:
		return lua.LNil
	case bool:
		return lua.LBool(val)
	case int:
		return lua.LNumber(val)
	case int64:
		return lua.LNumber(val)
	case float64:
		return lua.LNumber(val)
	case string:
		return lua.LString(val)
	case []interface{}:
		tbl := L.NewTable()
		for i, item := range val {
			tbl.RawSetInt(i+1, GoToLuaValue(L, item))
		}
		return tbl
	case map[string]interface{}:
		return MapToLuaTable(L, val)
	default:
		return lua.LString(fmt.Sprintf("%v", v))
	}
}

// MapToLuaTable converts a Go map to a Lua table
func MapToLuaTable(L *lua.LState, m map[string]any) *lua.LTable {
	tbl := L.NewTable()
	for k, v := range m {
		L.SetField(tbl, k, GoToLuaValue(L, v))
	}
	return tbl
}

// CheckColor reads a color argument: a "#rrggbb" string, an array {r, g, b}
// or a table with r, g and b fields, components in 0..100.
func CheckColor(L *lua.LState, n int) color.Color {
	switch v := L.Get(n).(type) {
	case lua.LString:
		c, err := color.Parse(string(v))
		if err != nil {
			L.ArgError(n, err.Error())
		}
		return c
	case *lua.LTable:
		var rgb [3]float64
		for i, key := range [3]string{"r", "g", "b"} {
			field := v.RawGetString(key)
			if field == lua.LNil {
				field = v.RawGetInt(i + 1)
			}
			num, ok := field.(lua.LNumber)
			if !ok {
				L.ArgError(n, fmt.Sprintf("color component %q must be a number", key))
			}
			rgb[i] = float64(num)
		}
		return color.New(rgb[0], rgb[1], rgb[2])
	default:
		L.ArgError(n, "color expected (\"#rrggbb\" or {r, g, b})")
		return color.Off
	}
}

func colorToTable(L *lua.LState, c color.Color) *lua.LTable {
	tbl := L.NewTable()
	tbl.RawSetInt(1, lua.LNumber(c.R()))
	tbl.RawSetInt(2, lua.LNumber(c.G()))
	tbl.RawSetInt(3, lua.LNumber(c.B()))
	return tbl
}

// CallFunction invokes fn in protected mode. A Lua error is logged, never
// propagated, so a broken callback cannot take the loop down.
func CallFunction(L *lua.LState, fn *lua.LFunction, source string) {
	err := L.CallByParam(lua.P{
		Fn:      fn,
		NRet:    0,
		Protect: true,
	})
	if err != nil {
		log.Error().Err(err).Str("source", source).Msg("Lua callback failed")
	}
}
