package dashboard

import (
	"path"
	"strconv"
	"strings"

	"github.com/funproject/fun/internal/plugin"
	"github.com/funproject/fun/internal/registry"
)

// SystemSource supplies the host status shown in the System panel.
type SystemSource interface {
	// PluginCount is the number of plugins loaded from descriptors.
	PluginCount() int
	// ActivePlugins names the plugins that were started.
	ActivePlugins() []string
	Shortcuts() []registry.Shortcut
	// LastAction describes the most recent dispatched shortcut, or "".
	LastAction() string
	// LastWarning is the most recent warning or error logged, or "".
	LastWarning() string
}

// SystemRenderer is the built-in panel describing the host itself.
// It sits in row 0, above every plugin panel by default.
type SystemRenderer struct {
	plugin.DashboardSettings
	src SystemSource
}

// NewSystemRenderer creates an enabled System panel backed by src.
func NewSystemRenderer(src SystemSource) *SystemRenderer {
	s := &SystemRenderer{src: src}
	s.ResetDashboard("System")
	s.SetDashboardEnabled(true)
	s.SetDashboardRow(0)
	return s
}

// DashboardData implements plugin.Renderer.
func (s *SystemRenderer) DashboardData() ([]plugin.Field, error) {
	active := s.src.ActivePlugins()
	activeText := "none"
	if len(active) > 0 {
		activeText = strings.Join(active, ", ")
	}

	fields := []plugin.Field{
		{Key: "Loaded Plugins", Value: strconv.Itoa(s.src.PluginCount())},
		{Key: "Active Plugins", Value: activeText},
	}

	if shortcuts := s.src.Shortcuts(); len(shortcuts) > 0 {
		fields = append(fields, plugin.Field{Key: "Global Shortcuts", Value: strconv.Itoa(len(shortcuts))})
		for _, sc := range shortcuts {
			fields = append(fields, plugin.Field{Key: "  " + sc.Chord, Value: simpleName(sc.Plugin) + ":" + sc.Action})
		}
	}

	if last := s.src.LastAction(); last != "" {
		fields = append(fields, plugin.Field{Key: "Last Action", Value: last})
	}
	if warn := s.src.LastWarning(); warn != "" {
		fields = append(fields, plugin.Field{Key: "Last Warning", Value: warn})
	}
	return fields, nil
}

// simpleName shortens "keepalive.Timer" to "Timer" and "lua:clock/clock.lua"
// to "clock".
func simpleName(typeID string) string {
	if script, ok := strings.CutPrefix(typeID, "lua:"); ok {
		return strings.TrimSuffix(path.Base(script), path.Ext(script))
	}
	if i := strings.LastIndex(typeID, "."); i >= 0 && i < len(typeID)-1 {
		return typeID[i+1:]
	}
	return typeID
}
