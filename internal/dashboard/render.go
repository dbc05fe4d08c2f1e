// Package dashboard draws the live status screen: a header, a grid of
// plugin panels in box-drawing borders, and a footer, redrawn on a fixed
// interval.
package dashboard

import (
	"fmt"
	"io"
	"strings"
	"time"
	"unicode"

	"github.com/charmbracelet/x/ansi"
	"github.com/muesli/termenv"

	"github.com/funproject/fun/internal/log"
	"github.com/funproject/fun/internal/plugin"
)

// Terminal control sequences.
const (
	ClearScreen = "\033[H\033[2J"
	HideCursor  = "\033[?25l"
	ShowCursor  = "\033[?25h"
)

const (
	// DefaultColumnWidth is the width of one grid column, borders excluded.
	DefaultColumnWidth = 38
	// RuleWidth is the width of the header and footer rules.
	RuleWidth = 80

	failedCell = "Failed to render"
)

// Renderer builds dashboard frames.
type Renderer struct {
	title   string
	version string
	width   int
	styles  styles
}

// RendererOption configures a Renderer.
type RendererOption func(*Renderer)

// WithTitle sets the header title. Default "FunProject".
func WithTitle(title string) RendererOption {
	return func(r *Renderer) { r.title = title }
}

// WithVersion sets the version shown after the title.
func WithVersion(version string) RendererOption {
	return func(r *Renderer) { r.version = version }
}

// WithColumnWidth sets the grid column width. Values below 10 are ignored.
func WithColumnWidth(width int) RendererOption {
	return func(r *Renderer) {
		if width >= 10 {
			r.width = width
		}
	}
}

// WithProfile sets the colour profile. termenv.Ascii disables styling.
func WithProfile(p termenv.Profile) RendererOption {
	return func(r *Renderer) { r.styles = newStyles(p) }
}

// NewRenderer creates a frame renderer using the ANSI profile by default.
func NewRenderer(opts ...RendererOption) *Renderer {
	r := &Renderer{
		title:   "FunProject",
		version: "unknown",
		width:   DefaultColumnWidth,
		styles:  newStyles(termenv.ANSI),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Render writes one frame to w.
func (r *Renderer) Render(w io.Writer, renderers []plugin.Renderer, now time.Time) error {
	_, err := io.WriteString(w, r.Frame(renderers, now))
	return err
}

// Frame returns one complete frame: clear screen, header, the grid built
// from renderers, and the footer. A renderer whose data cannot be fetched
// shows a single error line; the rest of the frame is unaffected.
func (r *Renderer) Frame(renderers []plugin.Renderer, now time.Time) string {
	var b strings.Builder
	b.WriteString(ClearScreen)
	r.header(&b, now)

	for _, row := range BuildGrid(renderers) {
		r.row(&b, row)
	}

	b.WriteString("\n")
	b.WriteString(strings.Repeat("─", RuleWidth) + "\n")
	b.WriteString(r.styles.label.Render("Press Ctrl+C to exit") + "\n")
	return b.String()
}

func (r *Renderer) header(b *strings.Builder, now time.Time) {
	b.WriteString(r.styles.title.Render(fmt.Sprintf("%s v%s", r.title, r.version)) + "\n")
	b.WriteString(strings.Repeat("─", RuleWidth) + "\n")
	b.WriteString(r.styles.label.Render("Current Time: ") + now.Format("15:04:05") + "\n\n")
}

func (r *Renderer) row(b *strings.Builder, row Row) {
	n := len(row.Cells)
	r.border(b, n, "┌", "┬", "┐")

	b.WriteString("│")
	for _, c := range row.Cells {
		r.cell(b, r.styles.title.Render(r.fit(cleanLine(safeName(c.Renderer)))))
	}
	b.WriteString("\n")

	r.border(b, n, "├", "┼", "┤")

	columns := make([][]string, n)
	height := 0
	for i, c := range row.Cells {
		columns[i] = r.lines(c.Renderer)
		height = max(height, len(columns[i]))
	}
	for line := 0; line < height; line++ {
		b.WriteString("│")
		for _, col := range columns {
			text := ""
			if line < len(col) {
				text = col[line]
			}
			r.cell(b, text)
		}
		b.WriteString("\n")
	}

	r.border(b, n, "└", "┴", "┘")
}

func (r *Renderer) border(b *strings.Builder, n int, left, mid, right string) {
	b.WriteString(left)
	for i := 0; i < n; i++ {
		if i > 0 {
			b.WriteString(mid)
		}
		b.WriteString(strings.Repeat("─", r.width))
	}
	b.WriteString(right + "\n")
}

// cell writes " text" padded to the column width followed by the divider.
// Padding counts visible width only.
func (r *Renderer) cell(b *strings.Builder, text string) {
	b.WriteString(" ")
	b.WriteString(text)
	if pad := r.width - ansi.StringWidth(text) - 1; pad > 0 {
		b.WriteString(strings.Repeat(" ", pad))
	}
	b.WriteString("│")
}

// fit truncates s to the space left of the column's leading blank.
func (r *Renderer) fit(s string) string {
	if ansi.StringWidth(s) <= r.width-1 {
		return s
	}
	return ansi.Truncate(s, r.width-1, "…")
}

func (r *Renderer) lines(rend plugin.Renderer) []string {
	fields, err := snapshot(rend)
	if err != nil {
		log.ErrorErr(log.CatDashboard, "Error rendering dashboard for plugin", err, "plugin", safeName(rend))
		return []string{r.styles.key.Render("Error: ") + failedCell}
	}

	out := make([]string, 0, len(fields))
	for _, f := range fields {
		parts := strings.Split(f.Value, "\n")
		out = append(out, r.fit(r.styles.key.Render(cleanLine(f.Key)+": ")+cleanLine(parts[0])))
		for _, cont := range parts[1:] {
			out = append(out, r.fit("  "+cleanLine(cont)))
		}
	}
	return out
}

// cleanLine replaces control characters with spaces so a value cannot move
// the cursor inside the grid. Escape sequences are kept for styling.
func cleanLine(s string) string {
	return strings.Map(func(c rune) rune {
		if c != '\x1b' && unicode.IsControl(c) {
			return ' '
		}
		return c
	}, s)
}

func snapshot(r plugin.Renderer) (fields []plugin.Field, err error) {
	defer func() {
		if p := recover(); p != nil {
			fields = nil
			err = fmt.Errorf("dashboard data panic: %v", p)
		}
	}()
	return r.DashboardData()
}

func safeName(r plugin.Renderer) (name string) {
	defer func() {
		if recover() != nil {
			name = "<unknown>"
		}
	}()
	return r.DashboardName()
}
