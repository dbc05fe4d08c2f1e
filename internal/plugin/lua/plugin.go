// Package lua runs managed plugins written in Lua.
//
// A script defines a global table named plugin:
//
//	plugin = {
//	  name = "Clock",
//	  init = function() end,
//	  start = function() end,
//	  stop = function() end,
//	  validate = function() return true end,
//	  actions = {
//	    refresh = function() fun.log("refresh") end,
//	  },
//	  dashboard = function()
//	    return { {"Time", fun.clock()} }
//	  end,
//	}
//
// Every field is optional. Scripts run with the base, table, string and math
// libraries only, plus the fun host module (fun.clock, fun.log).
package lua

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	lua "github.com/yuin/gopher-lua"

	"github.com/funproject/fun/internal/log"
	"github.com/funproject/fun/internal/plugin"
)

// ErrClosed is returned once the plugin has been stopped.
var ErrClosed = errors.New("lua plugin is closed")

// Plugin is a managed plugin and dashboard renderer backed by a Lua script.
type Plugin struct {
	plugin.Lifecycle
	plugin.DashboardSettings

	mu     sync.Mutex
	L      *lua.LState
	table  *lua.LTable
	name   string
	script string
	now    func() time.Time
	closed bool
}

// Option configures a Plugin.
type Option func(*Plugin)

// WithClock replaces the time source behind fun.clock.
func WithClock(now func() time.Time) Option {
	return func(p *Plugin) { p.now = now }
}

// New executes src and returns the plugin it defines. script names the
// source in errors and is the fallback display name.
func New(script string, src []byte, opts ...Option) (*Plugin, error) {
	p := &Plugin{script: script, now: time.Now}
	for _, opt := range opts {
		opt(p)
	}

	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	openSafeLibraries(L)
	p.installHostModule(L)

	if err := doWithRecovery(func() error { return L.DoString(string(src)) }); err != nil {
		L.Close()
		return nil, fmt.Errorf("loading %s: %w", script, err)
	}

	tbl, ok := L.GetGlobal("plugin").(*lua.LTable)
	if !ok {
		L.Close()
		return nil, fmt.Errorf("loading %s: script must define a global table named 'plugin'", script)
	}

	p.L = L
	p.table = tbl
	p.name = script
	if name, ok := tbl.RawGetString("name").(lua.LString); ok && name != "" {
		p.name = string(name)
	}
	p.ResetDashboard(p.name)

	return p, nil
}

// openSafeLibraries opens only libraries without file, process or module access.
func openSafeLibraries(L *lua.LState) {
	lua.OpenBase(L)
	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)

	for _, name := range []string{"dofile", "loadfile", "load", "loadstring", "require"} {
		L.SetGlobal(name, lua.LNil)
	}
}

func (p *Plugin) installHostModule(L *lua.LState) {
	mod := L.SetFuncs(L.NewTable(), map[string]lua.LGFunction{
		"clock": func(L *lua.LState) int {
			L.Push(lua.LString(p.now().Format("15:04:05")))
			return 1
		},
		"log": func(L *lua.LState) int {
			log.Info(log.CatPlugin, L.CheckString(1), "plugin", p.name)
			return 0
		},
	})
	L.SetGlobal("fun", mod)
}

// Name returns the script's display name.
func (p *Plugin) Name() string {
	return p.name
}

// Init runs the script's init hook.
func (p *Plugin) Init() error {
	if _, err := p.callHook("init"); err != nil {
		return err
	}
	p.Transition(plugin.StateUninitialized, plugin.StateInitialized)
	return nil
}

// Start runs the script's start hook.
func (p *Plugin) Start() error {
	if _, err := p.callHook("start"); err != nil {
		return err
	}
	p.Transition(plugin.StateInitialized, plugin.StateStarted)
	return nil
}

// Stop runs the script's stop hook and releases the Lua state.
func (p *Plugin) Stop() error {
	_, err := p.callHook("stop")
	p.Set(plugin.StateStopped)

	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.closed {
		p.closed = true
		p.L.Close()
	}
	return err
}

// Validate calls the script's validate hook. Scripts without one are valid.
func (p *Plugin) Validate() bool {
	ret, err := p.callHook("validate")
	if err != nil {
		log.ErrorErr(log.CatPlugin, "Lua validate failed", err, "plugin", p.name)
		return false
	}
	if ret == nil {
		return true
	}
	return lua.LVAsBool(ret)
}

// ExecuteAction calls actions[action] in the script.
func (p *Plugin) ExecuteAction(action string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrClosed
	}

	actions, ok := p.table.RawGetString("actions").(*lua.LTable)
	if !ok {
		return fmt.Errorf("%w: %s", plugin.ErrUnknownAction, action)
	}
	fn, ok := actions.RawGetString(action).(*lua.LFunction)
	if !ok {
		return fmt.Errorf("%w: %s", plugin.ErrUnknownAction, action)
	}

	_, err := p.call(fn)
	return err
}

// DashboardData calls the script's dashboard function. Each returned entry
// is either {key, value} or {key = ..., value = ...}.
func (p *Plugin) DashboardData() ([]plugin.Field, error) {
	ret, err := p.callHook("dashboard")
	if err != nil || ret == nil {
		return nil, err
	}

	rows, ok := ret.(*lua.LTable)
	if !ok {
		return nil, fmt.Errorf("dashboard must return a table, got %s", ret.Type())
	}

	fields := make([]plugin.Field, 0, rows.Len())
	for i := 1; i <= rows.Len(); i++ {
		row, ok := rows.RawGetInt(i).(*lua.LTable)
		if !ok {
			continue
		}
		key, value := row.RawGetInt(1), row.RawGetInt(2)
		if key == lua.LNil {
			key, value = row.RawGetString("key"), row.RawGetString("value")
		}
		fields = append(fields, plugin.Field{Key: lua.LVAsString(key), Value: luaString(value)})
	}
	return fields, nil
}

func luaString(v lua.LValue) string {
	switch v.Type() {
	case lua.LTNil:
		return ""
	case lua.LTString, lua.LTNumber:
		return lua.LVAsString(v)
	default:
		return v.String()
	}
}

// callHook calls plugin[name]() and returns its first result, or nil when
// the hook is not defined.
func (p *Plugin) callHook(name string) (lua.LValue, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, ErrClosed
	}

	fn, ok := p.table.RawGetString(name).(*lua.LFunction)
	if !ok {
		return nil, nil
	}
	ret, err := p.call(fn)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", p.script, name, err)
	}
	return ret, nil
}

// call invokes fn with no arguments. Callers hold p.mu.
func (p *Plugin) call(fn *lua.LFunction) (lua.LValue, error) {
	var ret lua.LValue = lua.LNil
	err := doWithRecovery(func() error {
		if err := p.L.CallByParam(lua.P{Fn: fn, NRet: 1, Protect: true}); err != nil {
			return errors.New(strings.TrimSpace(err.Error()))
		}
		ret = p.L.Get(-1)
		p.L.Pop(1)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if ret == lua.LNil {
		return nil, nil
	}
	return ret, nil
}

func doWithRecovery(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("lua panic: %v", r)
		}
	}()
	return fn()
}
