package plugin

import (
	"context"
	"errors"
)

var (
	// ErrUnknownType is returned when no factory or resolver knows a type id.
	ErrUnknownType = errors.New("unknown plugin type")
	// ErrNotPlugin is returned when a constructed value is neither a Plugin nor a Worker.
	ErrNotPlugin = errors.New("type does not implement a plugin contract")
	// ErrUnknownAction is returned by ExecuteAction for an action name the plugin does not handle.
	ErrUnknownAction = errors.New("unknown action")
	// ErrNotPermitted is returned by ExecuteAction when the host environment refuses the action.
	ErrNotPermitted = errors.New("action not permitted")
)

// Plugin is a managed plugin. Exactly one instance exists per type.
type Plugin interface {
	// Name is the display name used in logs.
	Name() string
	// Init is called once, right after construction.
	Init() error
	Start() error
	Stop() error
	// ExecuteAction runs a named action bound to a keyboard shortcut.
	ExecuteAction(action string) error
	// IsReady reports whether actions can run now.
	IsReady() bool
	// Validate reports whether the plugin's configuration is usable.
	Validate() bool
	State() State
}

// Worker is a plugin that runs on its own goroutine until ctx is cancelled
// or its work is done.
type Worker interface {
	Run(ctx context.Context) error
}

// Field is one key/value line of a dashboard panel.
type Field struct {
	Key   string
	Value string
}

// Renderer contributes a panel to the dashboard.
type Renderer interface {
	// DashboardData returns the panel lines in display order.
	DashboardData() ([]Field, error)
	DashboardName() string
	DashboardRow() int
	DashboardColumn() int
	DashboardPosition() int
	DashboardEnabled() bool
}

// DashboardConfigurable accepts placement from a plugin descriptor.
type DashboardConfigurable interface {
	SetDashboardEnabled(enabled bool)
	SetDashboardRow(row int)
	SetDashboardColumn(column int)
	SetDashboardPosition(position int)
}

// Values gives a plugin read access to the parsed command line, keyed by
// long option name.
type Values interface {
	// String returns the argument of an option and whether it was given.
	String(long string) (string, bool)
	// Bool reports whether a flag option was given.
	Bool(long string) bool
}

// Configurable plugins receive the parsed command line before they start.
type Configurable interface {
	Configure(values Values) error
}
