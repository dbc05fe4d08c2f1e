package presentation

import (
	"github.com/funproject/fun/internal/manifest"
	"github.com/funproject/fun/internal/plugin"
	"github.com/funproject/fun/internal/registry"
)

// PluginDTO represents a discovered plugin for presentation
type PluginDTO struct {
	Name        string        `json:"name"`
	Type        string        `json:"type"`
	Description string        `json:"description"`
	Origin      string        `json:"origin"`
	Options     []OptionDTO   `json:"options"`
	Params      []OptionDTO   `json:"params"`
	Shortcuts   []ShortcutDTO `json:"shortcuts"`
	Dashboard   *DashboardDTO `json:"dashboard,omitempty"`
}

// OptionDTO represents one command-line option
type OptionDTO struct {
	Short       string `json:"short"`
	Long        string `json:"long"`
	Description string `json:"description"`
	HasArg      bool   `json:"has_arg"`
	Required    bool   `json:"required,omitempty"`
}

// ShortcutDTO represents a key binding
type ShortcutDTO struct {
	Key    string `json:"key"`
	Action string `json:"action"`
}

// DashboardDTO is the effective panel placement of a loaded plugin
type DashboardDTO struct {
	Enabled  bool `json:"enabled"`
	Row      int  `json:"row"`
	Column   int  `json:"column"`
	Position int  `json:"position"`
}

// FromOptions converts registry options to DTOs.
func FromOptions(opts []registry.Option) []OptionDTO {
	out := make([]OptionDTO, 0, len(opts))
	for _, o := range opts {
		out = append(out, OptionDTO{
			Short:       o.Short,
			Long:        o.Long,
			Description: o.Description,
			HasArg:      o.HasArg,
			Required:    o.Required,
		})
	}
	return out
}

// FromManifest converts a manifest to a DTO. instance is the loaded plugin,
// used for its effective dashboard placement; it may be nil.
func FromManifest(m *manifest.Manifest, instance any) PluginDTO {
	shortcuts := make([]ShortcutDTO, 0, len(m.Shortcuts))
	for _, s := range m.Shortcuts {
		shortcuts = append(shortcuts, ShortcutDTO{Key: s.Chord, Action: s.Action})
	}

	dto := PluginDTO{
		Name:        m.Name,
		Type:        m.Type,
		Description: m.Description,
		Origin:      m.Origin,
		Options:     FromOptions(m.Options),
		Params:      FromOptions(m.Params),
		Shortcuts:   shortcuts,
	}

	if r, ok := instance.(plugin.Renderer); ok {
		dto.Dashboard = &DashboardDTO{
			Enabled:  r.DashboardEnabled(),
			Row:      r.DashboardRow(),
			Column:   r.DashboardColumn(),
			Position: r.DashboardPosition(),
		}
	}
	return dto
}
