package script

import (
	"strings"
	"time"

	lua "github.com/yuin/gopher-lua"
)

// LuaInterpreter is the real Interpreter, backed by an embedded Lua
// VM restricted to a narrow standard-library subset: base, package,
// debug, string, table. io, os, coroutine, math, and utf8 are never
// opened. A "timer" extension table is installed, mirroring the
// original firmware's lext_timerlib.
type LuaInterpreter struct {
	state *lua.LState
}

// NewLuaInterpreter constructs a fresh, restricted interpreter
// instance. Used as a script.InterpreterFactory.
func NewLuaInterpreter() Interpreter {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	for _, lib := range []struct {
		name string
		fn   lua.LGFunction
	}{
		{lua.BaseLibName, lua.OpenBase},
		{lua.LoadLibName, lua.OpenPackage},
		{lua.DebugLibName, lua.OpenDebug},
		{lua.StringLibName, lua.OpenString},
		{lua.TabLibName, lua.OpenTable},
	} {
		L.Push(L.NewFunction(lib.fn))
		L.Push(lua.LString(lib.name))
		L.Call(1, 0)
	}
	installTimer(L)
	return &LuaInterpreter{state: L}
}

// Run compiles source under chunkName and protected-calls it with
// zero args and zero results, installing a message handler that runs
// debug.traceback on any runtime error before it unwinds.
func (i *LuaInterpreter) Run(source []byte, chunkName string) (string, error) {
	L := i.state

	fn, err := L.Load(strings.NewReader(string(source)), chunkName)
	if err != nil {
		return err.Error(), err
	}

	L.Push(fn)
	errHandler := L.NewFunction(tracebackHandler)
	if err := L.PCall(0, 0, errHandler); err != nil {
		return messageFromError(err), err
	}
	return "", nil
}

// Close implements Interpreter.
func (i *LuaInterpreter) Close() {
	i.state.Close()
}

func tracebackHandler(L *lua.LState) int {
	msg := L.ToStringMeta(L.Get(1)).String()
	full := msg
	if dbg, ok := L.GetGlobal("debug").(*lua.LTable); ok {
		if tb, ok := L.GetField(dbg, "traceback").(*lua.LFunction); ok {
			L.Push(tb)
			L.Push(lua.LString(msg))
			if err := L.PCall(1, 1, nil); err == nil {
				full = L.ToString(-1)
				L.Pop(1)
			}
		}
	}
	L.Push(lua.LString(full))
	return 1
}

func messageFromError(err error) string {
	if apiErr, ok := err.(*lua.ApiError); ok {
		if s, ok := apiErr.Object.(lua.LString); ok {
			return string(s)
		}
	}
	return err.Error()
}

// installTimer adds the restricted "timer" extension table: a single
// after(ms, fn) entry point backed by time.AfterFunc, since the
// restricted standard library excludes any blocking sleep.
func installTimer(L *lua.LState) {
	mod := L.NewTable()
	L.SetField(mod, "after", L.NewFunction(func(L *lua.LState) int {
		ms := L.CheckInt64(1)
		fn := L.CheckFunction(2)
		time.AfterFunc(time.Duration(ms)*time.Millisecond, func() {
			L.CallByParam(lua.P{Fn: fn, NRet: 0, Protect: true})
		})
		return 0
	}))
	L.SetGlobal("timer", mod)
}
