package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/funproject/fun/internal/app"
	"github.com/funproject/fun/internal/config"
	"github.com/funproject/fun/internal/log"
	"github.com/funproject/fun/internal/registry"
)

// ErrUsage is returned when the command line cannot be parsed.
var ErrUsage = errors.New("invalid arguments")

const (
	// DashboardLogFile receives logs in dashboard mode when no log file is
	// configured, so log lines do not tear the frame.
	DashboardLogFile = "fun.log"

	shutdownTimeout = 5 * time.Second
)

var version = "dev"

// SetVersion sets the version string (called from main with ldflags)
func SetVersion(v string) {
	version = v
}

// Streams are the standard streams the command reads and writes.
type Streams struct {
	In  io.Reader
	Out io.Writer
	Err io.Writer
}

// Execute runs fun with the process arguments.
func Execute() error {
	// Query the terminal background before any key capture starts so the
	// terminal's reply is not read as key presses.
	_ = lipgloss.HasDarkBackground()

	return Run(context.Background(), os.Args[1:], Streams{In: os.Stdin, Out: os.Stdout, Err: os.Stderr})
}

// Run loads configuration, discovers plugins, builds the command line from
// the options they declare and executes it.
func Run(ctx context.Context, args []string, s Streams) error {
	boot := prescan(args)

	v := viper.New()
	cfg, cfgPath, err := config.Load(v, boot.configFile)
	if err != nil {
		return err
	}
	if version != "dev" {
		cfg.Version = version
	}

	closeLog, err := setupLogging(cfg, boot, s.Err)
	if err != nil {
		return err
	}
	defer closeLog()

	a, err := app.New(cfg, app.Options{
		Out:     s.Out,
		In:      s.In,
		Profile: colorProfile(boot, s.Out),
		CRLF:    isTerminal(s.In),
	})
	if err != nil {
		return err
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = a.Shutdown(ctx)
	}()

	a.Discover(ctx)

	r := &runner{
		app:         a,
		cfg:         cfg,
		cfgPath:     cfgPath,
		viper:       v,
		streams:     s,
		interactive: isTerminal(s.In),
	}
	root := r.rootCmd()
	root.SetArgs(normalizeArgs(args, a.Registry()))
	log.Debug(log.CatCLI, "Parsing arguments", "args", strings.Join(args, " "))
	return root.ExecuteContext(ctx)
}

// runner carries the state shared by the root command and its subcommands.
type runner struct {
	app         *app.App
	cfg         config.Config
	cfgPath     string
	viper       *viper.Viper
	streams     Streams
	interactive bool
}

// persistentFlags are core options that subcommands accept too.
var persistentFlags = map[string]bool{"config": true, "log-file": true, "log-level": true}

func (r *runner) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "fun",
		Short:         "Plugin registry and terminal dashboard",
		Version:       r.cfg.Version,
		Args:          r.noArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          r.run,
	}
	root.SetIn(r.streams.In)
	root.SetOut(r.streams.Out)
	root.SetErr(r.streams.Err)
	root.SetVersionTemplate("fun {{.Version}}\n")

	for _, o := range r.app.Registry().OptionsFor(registry.CoreOwner) {
		flags := root.Flags()
		if persistentFlags[o.Long] {
			flags = root.PersistentFlags()
		}
		addFlag(flags, o)
	}
	for _, o := range r.app.Registry().Options() {
		if o.Owner != registry.CoreOwner {
			addFlag(root.Flags(), o)
		}
	}

	root.SetHelpFunc(func(c *cobra.Command, _ []string) {
		if c != root {
			_, _ = fmt.Fprint(c.OutOrStdout(), c.UsageString())
			return
		}
		_, _ = fmt.Fprint(c.OutOrStdout(), r.app.Help(root.Name()))
	})
	root.SetFlagErrorFunc(func(c *cobra.Command, err error) error {
		if c == root {
			_, _ = fmt.Fprint(c.ErrOrStderr(), r.app.Help(root.Name()))
		}
		return fmt.Errorf("%w: %w", ErrUsage, err)
	})

	root.AddCommand(r.configCmd(), r.pluginsCmd())
	return root
}

// addFlag declares o on flags. Only single-character short names become
// pflag shorthands; longer ones reach pflag through normalizeArgs.
func addFlag(flags *pflag.FlagSet, o registry.Option) {
	if flags.Lookup(o.Long) != nil {
		return
	}
	short := ""
	if len(o.Short) == 1 && flags.ShorthandLookup(o.Short) == nil {
		short = o.Short
	}
	if o.HasArg {
		flags.StringP(o.Long, short, "", o.Description)
		return
	}
	flags.BoolP(o.Long, short, false, o.Description)
}

func (r *runner) noArgs(c *cobra.Command, args []string) error {
	if len(args) == 0 {
		return nil
	}
	_, _ = fmt.Fprint(c.ErrOrStderr(), r.app.Help(c.Root().Name()))
	return fmt.Errorf("%w: unexpected argument %q", ErrUsage, args[0])
}

func (r *runner) run(c *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(c.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	out := c.OutOrStdout()
	dash, _ := c.Flags().GetBool("dash")

	names, err := r.app.Activate(ctx, flagValues{flags: c.Flags()})
	if errors.Is(err, app.ErrNothingActive) && !dash {
		log.Info(log.CatCLI, "No plugin selected, showing help")
		_, _ = fmt.Fprint(out, r.app.Help(c.Root().Name()))
		return nil
	}

	if err := r.app.Watch(ctx); err != nil {
		log.ErrorErr(log.CatWatcher, "Cannot watch plugin directories", err)
	}

	if dash {
		r.app.StartDashboard()
	} else {
		_, _ = fmt.Fprintf(out, "Running: %s\n", strings.Join(names, ", "))
		for _, sc := range r.app.Registry().Shortcuts() {
			_, _ = fmt.Fprintf(out, "  %s → %s\n", sc.Chord, sc.Action)
		}
		_, _ = fmt.Fprintln(out, "Press Ctrl+C to exit")
	}

	captureDone := make(chan struct{})
	if r.interactive {
		go func() {
			defer close(captureDone)
			if err := r.app.CaptureKeys(ctx, cancel); err != nil {
				log.ErrorErr(log.CatInput, "Key capture failed", err)
			}
		}()
	} else {
		close(captureDone)
	}

	<-ctx.Done()
	<-captureDone
	log.Info(log.CatCLI, "Shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := r.app.Shutdown(shutdownCtx); err != nil {
		log.ErrorErr(log.CatCLI, "Shutdown incomplete", err)
	}
	return nil
}

// setupLogging sends logs to the configured file, to fun.log in dashboard
// mode, or to stderr. Flags override the config file.
func setupLogging(cfg config.Config, b bootstrap, stderr io.Writer) (func(), error) {
	levelText := cfg.Log.Level
	if b.logLevel != "" {
		levelText = b.logLevel
	}
	level, err := log.ParseLevel(levelText)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUsage, err)
	}

	path := cfg.Log.File
	if b.logFile != "" {
		path = b.logFile
	}
	if path == "" && b.dash {
		path = DashboardLogFile
	}
	if path != "" {
		return log.Init(path, level)
	}
	return log.SetOutput(stderr, level), nil
}

// colorProfile disables styling for --no-color and for output that is not
// a terminal.
func colorProfile(b bootstrap, out io.Writer) termenv.Profile {
	if b.noColor || os.Getenv("NO_COLOR") != "" || !isTerminal(out) {
		return termenv.Ascii
	}
	return termenv.EnvColorProfile()
}

func isTerminal(v any) bool {
	f, ok := v.(*os.File)
	return ok && term.IsTerminal(int(f.Fd())) //nolint:gosec // G115: file descriptors fit in int
}
