package cmd

import (
	"io"
	"strings"

	"github.com/spf13/pflag"

	"github.com/funproject/fun/internal/help"
	"github.com/funproject/fun/internal/registry"
)

// flagLookup resolves "-x" and "--long" to a registered option.
type flagLookup interface {
	Lookup(flag string) (registry.Option, bool)
}

// normalizeArgs rewrites multi-character short flags such as "-sec" or
// "-dash" to their long form, which pflag understands. Single-character
// shorts, unknown flags and everything after "--" are left alone.
func normalizeArgs(args []string, reg flagLookup) []string {
	out := make([]string, 0, len(args))
	for i, arg := range args {
		if arg == "--" {
			out = append(out, args[i:]...)
			break
		}
		if !strings.HasPrefix(arg, "-") || strings.HasPrefix(arg, "--") || len(arg) < 3 {
			out = append(out, arg)
			continue
		}

		name, value, hasValue := strings.Cut(arg[1:], "=")
		opt, ok := reg.Lookup("-" + name)
		if !ok {
			out = append(out, arg)
			continue
		}
		long := "--" + opt.Long
		if hasValue {
			long += "=" + value
		}
		out = append(out, long)
	}
	return out
}

// coreRegistry holds only the built-in options, for the pre-scan that runs
// before plugin discovery.
func coreRegistry() *registry.Registry {
	reg := registry.New()
	for _, o := range help.DefaultGlobal() {
		_ = reg.AddOption(o)
	}
	return reg
}

// bootstrap is what the pre-scan learns before plugins are discovered.
type bootstrap struct {
	configFile string
	logFile    string
	logLevel   string
	dash       bool
	noColor    bool
}

// prescan reads the core flags that shape discovery: config file, logging
// and output mode. Plugin flags are not known yet and are ignored.
func prescan(args []string) bootstrap {
	var b bootstrap
	fs := pflag.NewFlagSet("prescan", pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.Usage = func() {}
	fs.ParseErrorsWhitelist.UnknownFlags = true

	fs.StringVarP(&b.configFile, "config", "c", "", "")
	fs.StringVar(&b.logFile, "log-file", "", "")
	fs.StringVar(&b.logLevel, "log-level", "", "")
	fs.BoolVar(&b.dash, "dash", false, "")
	fs.BoolVar(&b.noColor, "no-color", false, "")
	fs.BoolP("help", "h", false, "")
	fs.BoolP("version", "v", false, "")

	_ = fs.Parse(normalizeArgs(args, coreRegistry()))
	return b
}

// flagValues exposes parsed command-line flags to plugins.
type flagValues struct {
	flags *pflag.FlagSet
}

// String returns the value of a flag taking an argument, and whether it was
// given.
func (v flagValues) String(long string) (string, bool) {
	f := v.flags.Lookup(long)
	if f == nil || !f.Changed {
		return "", false
	}
	return f.Value.String(), true
}

// Bool reports whether the flag was given.
func (v flagValues) Bool(long string) bool {
	f := v.flags.Lookup(long)
	return f != nil && f.Changed
}
