// Package flags holds the feature switches read from the "flags" section of
// the configuration. Flags are read-only after initialization; a name that is
// neither known nor configured reads as disabled.
package flags

import (
	"maps"
	"slices"

	"github.com/funproject/fun/internal/log"
)

// Flag name constants for type-safe flag access.
const (
	// FlagLuaPlugins lets descriptors name "lua:<script>" plugin types.
	FlagLuaPlugins = "lua-plugins"

	// FlagShortcutOverride lets a later descriptor take over a key chord that
	// is already bound. When disabled the first binding is kept.
	FlagShortcutOverride = "shortcut-override"
)

// Defaults returns the value of every known flag when the config leaves it out.
func Defaults() map[string]bool {
	return map[string]bool{
		FlagLuaPlugins:       true,
		FlagShortcutOverride: true,
	}
}

// Registry holds feature flag state loaded from configuration.
type Registry struct {
	flags map[string]bool
}

// New creates a Registry from the configured values layered over Defaults.
// Configured names that are not known flags are kept but logged.
func New(configured map[string]bool) *Registry {
	merged := Defaults()
	for name, value := range configured {
		if _, known := merged[name]; !known {
			log.Warn(log.CatConfig, "Unknown feature flag in config", "flag", name)
		}
		merged[name] = value
	}
	r := &Registry{flags: merged}
	log.Debug(log.CatConfig, "Feature flags initialized", "count", len(merged), "enabled", r.EnabledNames())
	return r
}

// Enabled reports whether the named flag is on. Nil-safe.
func (r *Registry) Enabled(name string) bool {
	if r == nil {
		return false
	}
	value, exists := r.flags[name]
	if !exists {
		log.Debug(log.CatConfig, "Unknown flag accessed", "flag", name, "result", false)
		return false
	}
	return value
}

// EnabledNames returns the names of enabled flags, sorted.
func (r *Registry) EnabledNames() []string {
	if r == nil {
		return nil
	}
	var names []string
	for name, on := range r.flags {
		if on {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	return names
}

// All returns a copy of all flags.
func (r *Registry) All() map[string]bool {
	if r == nil {
		return make(map[string]bool)
	}
	return maps.Clone(r.flags)
}
