// Package help renders the command-line help text from parsed plugin
// manifests.
package help

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/x/ansi"
	"github.com/muesli/reflow/indent"
	"github.com/muesli/reflow/wordwrap"

	"github.com/funproject/fun/internal/manifest"
	"github.com/funproject/fun/internal/registry"
)

// DefaultWidth is the wrap width used when Options.Width is zero.
const DefaultWidth = 80

// Example is one usage example in the EXAMPLES section.
type Example struct {
	Args        string
	Explanation string
}

// Options controls help rendering.
type Options struct {
	// Program is the command name used in examples.
	Program string
	// Width wraps long descriptions. Negative disables wrapping.
	Width int
	// Global lists the host's own options. Nil uses DefaultGlobal.
	Global []registry.Option
	// Examples replaces DefaultExamples when non-nil.
	Examples []Example
}

// DefaultGlobal returns the options every fun binary understands.
func DefaultGlobal() []registry.Option {
	return []registry.Option{
		{Short: "h", Long: "help", Description: "Show this help message", Owner: registry.CoreOwner, Kind: registry.KindParam},
		{Short: "dash", Long: "dash", Description: "Show the live dashboard instead of running plugins directly", Owner: registry.CoreOwner, Kind: registry.KindParam},
		{Short: "c", Long: "config", HasArg: true, Description: "Read configuration from this file", Owner: registry.CoreOwner, Kind: registry.KindParam},
		{Short: "lf", Long: "log-file", HasArg: true, Description: "Write logs to this file", Owner: registry.CoreOwner, Kind: registry.KindParam},
		{Short: "ll", Long: "log-level", HasArg: true, Description: "Minimum log level: debug, info, warn or error", Owner: registry.CoreOwner, Kind: registry.KindParam},
		{Short: "nc", Long: "no-color", Description: "Disable colours in the dashboard", Owner: registry.CoreOwner, Kind: registry.KindParam},
		{Short: "v", Long: "version", Description: "Print the version and exit", Owner: registry.CoreOwner, Kind: registry.KindParam},
	}
}

// DefaultExamples returns the stock usage examples.
func DefaultExamples() []Example {
	return []Example{
		{Args: "-k", Explanation: "Start the keep-alive timer"},
		{Args: "-k -e 17:30", Explanation: "Start the keep-alive timer until 5:30 PM"},
		{Args: "--dash -k --sign", Explanation: "Run keep-alive and signatures with the live dashboard"},
	}
}

// Generate renders help for manifests in the order given. The output only
// depends on its arguments.
func Generate(manifests []*manifest.Manifest, opts Options) string {
	if opts.Program == "" {
		opts.Program = "fun"
	}
	if opts.Width == 0 {
		opts.Width = DefaultWidth
	}
	if opts.Global == nil {
		opts.Global = DefaultGlobal()
	}
	if opts.Examples == nil {
		opts.Examples = DefaultExamples()
	}

	var b strings.Builder
	b.WriteString("Fun Project - plugin registry and terminal dashboard\n")
	b.WriteString(strings.Repeat("=", 72) + "\n\n")

	b.WriteString("GLOBAL OPTIONS:\n")
	for _, o := range opts.Global {
		writeGlobal(&b, o, opts.Width)
	}
	b.WriteString("\n")

	if len(manifests) == 0 {
		b.WriteString("No plugins loaded.\n\n")
	} else {
		b.WriteString("AVAILABLE PLUGINS:\n")
		b.WriteString("------------------\n\n")
		for _, m := range manifests {
			writePlugin(&b, m, opts.Width)
		}
	}

	b.WriteString("EXAMPLES:\n")
	b.WriteString("---------\n")
	for _, ex := range opts.Examples {
		fmt.Fprintf(&b, "  %s %s\n", opts.Program, ex.Args)
		fmt.Fprintf(&b, "    %s\n\n", ex.Explanation)
	}
	return b.String()
}

func writeGlobal(b *strings.Builder, o registry.Option, width int) {
	flags := fmt.Sprintf("  -%s, --%s", o.Short, o.Long)
	if o.HasArg {
		flags += " <" + argName(o) + ">"
	}
	if len(flags) < 28 {
		flags += strings.Repeat(" ", 28-len(flags))
	} else {
		flags += "  "
	}
	writeWrapped(b, flags, o.Description, width, 28)
}

func argName(o registry.Option) string {
	switch o.Long {
	case "config", "log-file":
		return "file"
	case "log-level":
		return "level"
	}
	return "arg"
}

func writePlugin(b *strings.Builder, m *manifest.Manifest, width int) {
	writeWrapped(b, "Plugin: ", m.Name, width, 2)
	writeWrapped(b, "Description: ", m.Description, width, 2)
	fmt.Fprintf(b, "Type: %s\n", m.Type)

	writeOptions(b, "  Main Options:\n", m.Options, width)
	writeOptions(b, "  Parameters:\n", m.Params, width)

	if len(m.Shortcuts) > 0 {
		b.WriteString("  Global Shortcuts:\n")
		for _, s := range m.Shortcuts {
			fmt.Fprintf(b, "    %s  Trigger: %s\n", s.Chord, s.Action)
		}
	}
	b.WriteString("\n")
}

func writeOptions(b *strings.Builder, title string, opts []registry.Option, width int) {
	if len(opts) == 0 {
		return
	}
	b.WriteString(title)
	for _, o := range opts {
		head := fmt.Sprintf("    -%s, --%s", o.Short, o.Long)
		if o.HasArg {
			head += " <arg>"
		}
		if o.Description == "" {
			b.WriteString(head + "\n")
			continue
		}
		line := head + "  " + o.Description
		if width < 0 || ansi.StringWidth(line) <= width {
			b.WriteString(line + "\n")
			continue
		}
		b.WriteString(head + "\n")
		b.WriteString(indent.String(wordwrap.String(o.Description, width-8), 8) + "\n")
	}
}

// writeWrapped writes prefix+text, wrapping text to width with continuation
// lines indented by hang.
func writeWrapped(b *strings.Builder, prefix, text string, width, hang int) {
	line := prefix + text
	if width < 0 || ansi.StringWidth(line) <= width {
		b.WriteString(line + "\n")
		return
	}

	avail := width - ansi.StringWidth(prefix)
	if avail < 20 {
		avail = width - hang
	}
	wrapped := strings.Split(wordwrap.String(text, avail), "\n")
	b.WriteString(prefix + wrapped[0] + "\n")
	if len(wrapped) > 1 {
		rest := strings.Join(wrapped[1:], "\n")
		b.WriteString(indent.String(rest, uint(hang)) + "\n") //nolint:gosec // hang is a small constant
	}
}
