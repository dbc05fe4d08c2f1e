package presentation

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/funproject/fun/internal/manifest"
	"github.com/funproject/fun/internal/plugin"
	"github.com/funproject/fun/internal/registry"
)

type panel struct {
	plugin.DashboardSettings
}

func (p *panel) DashboardData() ([]plugin.Field, error) { return nil, nil }

func TestFromManifest(t *testing.T) {
	m := &manifest.Manifest{
		Name:        "Signature Selector",
		Type:        "signature.Selector",
		Description: "Picks a signature",
		Origin:      "builtin:signature.Selector/plugin.yaml",
		Options:     []registry.Option{{Short: "s", Long: "sign", Description: "Enable"}},
		Params:      []registry.Option{{Short: "sf", Long: "signatures", HasArg: true}},
		Shortcuts:   []registry.Shortcut{{Chord: "CTRL + S", Action: "getRandomSignature"}},
	}

	p := &panel{}
	p.ResetDashboard("Signature Selector")
	p.SetDashboardEnabled(true)
	p.SetDashboardColumn(2)

	dto := FromManifest(m, p)
	require.Equal(t, "signature.Selector", dto.Type)
	require.Equal(t, []OptionDTO{{Short: "sf", Long: "signatures", HasArg: true}}, dto.Params)
	require.Equal(t, []ShortcutDTO{{Key: "CTRL + S", Action: "getRandomSignature"}}, dto.Shortcuts)
	require.Equal(t, &DashboardDTO{Enabled: true, Row: 1, Column: 2, Position: 100}, dto.Dashboard)

	require.Nil(t, FromManifest(m, nil).Dashboard)
}

func TestFormatPlugins(t *testing.T) {
	var buf bytes.Buffer
	err := NewFormatter(&buf).FormatPlugins([]PluginDTO{{
		Name:      "Keep Alive",
		Type:      "keepalive.Timer",
		Options:   []OptionDTO{},
		Params:    []OptionDTO{},
		Shortcuts: []ShortcutDTO{},
	}})
	require.NoError(t, err)

	var decoded []map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	require.Len(t, decoded, 1)
	require.Equal(t, "keepalive.Timer", decoded[0]["type"])
	require.NotContains(t, decoded[0], "dashboard")
	require.Contains(t, buf.String(), "\n  {\n    \"name\": \"Keep Alive\"")
}
