package cli

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/SmitUplenchwar2687/Retrace/internal/clock"
	"github.com/SmitUplenchwar2687/Retrace/internal/codec"
	"github.com/SmitUplenchwar2687/Retrace/internal/config"
	"github.com/SmitUplenchwar2687/Retrace/internal/limiter"
	"github.com/SmitUplenchwar2687/Retrace/internal/report"
	"github.com/SmitUplenchwar2687/Retrace/internal/storage"
)

// rootOptions holds the global flags and the effective config resolved
// from them before any subcommand runs.
type rootOptions struct {
	configPath string
	location   string
	format     formatValue
	logLevel   string
	logFormat  string
	storage    storageOptions

	cfg    config.Config
	logger *slog.Logger
}

// NewRootCmd creates the root retrace command.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{storage: defaultStorageOptions()}

	root := &cobra.Command{
		Use:   "retrace",
		Short: "Record gamepad input and replay it on schedule",
		Long: `Retrace records timestamped controller input during a session and
replays it later on the same timeline. Replay never skips or reorders
samples: when it falls behind it applies samples back to back until it
has caught up.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.resolve(cmd)
		},
	}

	opts.addFlags(root.PersistentFlags())

	root.AddCommand(
		newRecordCmd(opts),
		newPlayCmd(opts),
		newSimulateCmd(opts),
		newInspectCmd(opts),
		newConvertCmd(opts),
		newGenerateCmd(opts),
	)

	return root
}

func (o *rootOptions) addFlags(flags *pflag.FlagSet) {
	def := config.Default()
	flags.StringVar(&o.configPath, "config", "", "path to a YAML or JSON config file")
	flags.StringVar(&o.location, "location", def.Recording.Location, "log location in the selected storage backend")
	flags.Var(&o.format, "format", "log wire format (json, cbor); empty infers it from the location")
	flags.StringVar(&o.logLevel, "log-level", def.Logging.Level, "log level (debug, info, warn, error)")
	flags.StringVar(&o.logFormat, "log-format", def.Logging.Format, "log format (text, json, auto)")
	o.storage.addFlags(flags)
}

// resolve builds the effective config: defaults, config file, RETRACE_*
// environment, then any flag set explicitly on the command line.
func (o *rootOptions) resolve(cmd *cobra.Command) error {
	cfg := config.Default()
	if o.configPath != "" {
		var err error
		if cfg, err = config.LoadFile(o.configPath); err != nil {
			return WrapExitError(ExitCommandError, "loading config", err)
		}
	}
	if err := config.ApplyEnv(&cfg); err != nil {
		return WrapExitError(ExitCommandError, "loading config", err)
	}

	flags := cmd.Flags()
	if flags.Changed("location") {
		cfg.Recording.Location = o.location
	}
	if flags.Changed("format") {
		cfg.Recording.Format = o.format.String()
	}
	if flags.Changed("log-level") {
		cfg.Logging.Level = o.logLevel
	}
	if flags.Changed("log-format") {
		cfg.Logging.Format = o.logFormat
	}
	o.storage.applyConfigIfUnset(flags, &cfg.Storage)
	if err := o.storage.normalize(); err != nil {
		return WrapExitError(ExitCommandError, "invalid storage flags", err)
	}
	cfg.Storage = o.storage.toConfig()

	if cfg.Logging.Format == "auto" {
		cfg.Logging.Format = ""
	}
	if err := cfg.Validate(); err != nil {
		return WrapExitError(ExitCommandError, "invalid config", err)
	}

	o.cfg = cfg
	o.logger = newLogger(cmd.ErrOrStderr(), cfg.Logging)
	return nil
}

// newLogger builds the process logger. An empty format picks text for a
// terminal and JSON otherwise.
func newLogger(w io.Writer, cfg config.LoggingConfig) *slog.Logger {
	level, _ := config.ParseLevel(cfg.Level)
	options := &slog.HandlerOptions{Level: level}

	format := cfg.Format
	if format == "" {
		format = "json"
		if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
			format = "text"
		}
	}

	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(w, options)
	} else {
		handler = slog.NewTextHandler(w, options)
	}
	return slog.New(handler)
}

// codecFormat returns the configured wire format for location.
func (o *rootOptions) codecFormat(location string) codec.Format {
	if o.cfg.Recording.Format != "" {
		f, _ := codec.ParseFormat(o.cfg.Recording.Format)
		return f
	}
	return codec.FormatFromPath(location)
}

func (o *rootOptions) openStore(ctx context.Context) (storage.Store, error) {
	store, err := storage.Open(ctx, o.cfg.Storage)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "opening storage", err)
	}
	return store, nil
}

// logReporter bridges session events into the process logger, throttled
// per event kind.
func (o *rootOptions) logReporter() *report.LogReporter {
	lim := limiter.New(o.cfg.Logging.Throttle, clock.NewRealClock())
	return report.Logger(o.logger, lim)
}

// formatValue is a pflag.Value restricted to the supported wire formats.
type formatValue struct {
	format codec.Format
}

func (v *formatValue) String() string {
	return string(v.format)
}

func (v *formatValue) Set(s string) error {
	f, err := codec.ParseFormat(s)
	if err != nil {
		return err
	}
	v.format = f
	return nil
}

func (v *formatValue) Type() string {
	return "format"
}
