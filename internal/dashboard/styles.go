package dashboard

import (
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Palette uses the 16 basic ANSI colours.
var (
	ColorTitle = lipgloss.Color("6") // cyan
	ColorKey   = lipgloss.Color("2") // green
	ColorLabel = lipgloss.Color("3") // yellow
)

type styles struct {
	title lipgloss.Style
	key   lipgloss.Style
	label lipgloss.Style
}

func newStyles(profile termenv.Profile) styles {
	r := lipgloss.NewRenderer(io.Discard)
	r.SetColorProfile(profile)

	return styles{
		title: r.NewStyle().Bold(true).Foreground(ColorTitle),
		key:   r.NewStyle().Foreground(ColorKey),
		label: r.NewStyle().Foreground(ColorLabel),
	}
}
