package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/SmitUplenchwar2687/Retrace/internal/config"
	"github.com/SmitUplenchwar2687/Retrace/internal/drive"
	"github.com/SmitUplenchwar2687/Retrace/internal/replay"
	"github.com/SmitUplenchwar2687/Retrace/internal/report"
	"github.com/SmitUplenchwar2687/Retrace/internal/server"
)

func newPlayCmd(root *rootOptions) *cobra.Command {
	var (
		dryRun       bool
		start        string
		lagThreshold time.Duration
		dashboard    string
		outputJSON   bool
		velocity     float64
	)

	cmd := &cobra.Command{
		Use:   "play",
		Short: "Replay a recorded log on its original timeline",
		Long: `Loads a recorded log, waits for the start signal and replays every
sample at its recorded offset. A sample that is already due is applied
immediately without sleeping, so a replay that falls behind catches up
instead of dropping input.

In live mode each sample drives a mecanum drivetrain and the resulting
wheel powers are written to stdout as newline-delimited JSON. Dry-run
prints each sample instead.`,
		Example: `  retrace play --location run1.json
  retrace play --location run1.json --dry-run --start immediate
  retrace play --location run1.cbor --storage sqlite --dashboard :8080
  retrace play --dry-run --start immediate --json
  retrace play --location run1.json --velocity-scale 0.5`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg := root.cfg.Replay
			if cmd.Flags().Changed("dry-run") {
				cfg.Mode = string(replay.Live)
				if dryRun {
					cfg.Mode = string(replay.DryRun)
				}
			}
			if cmd.Flags().Changed("start") {
				cfg.Start = start
			}
			if cmd.Flags().Changed("lag-threshold") {
				cfg.LagThreshold = lagThreshold
			}
			mode, err := replay.ParseMode(cfg.Mode)
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid mode", err)
			}

			store, err := root.openStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			out := cmd.OutOrStdout()
			reporters := []report.Reporter{root.logReporter()}

			var collector *report.Collector
			switch {
			case mode == replay.DryRun && outputJSON:
				collector = report.NewCollector()
				reporters = append(reporters, collector)
			case mode == replay.DryRun:
				reporters = append(reporters, textReporter(out))
			}

			var hub *server.Hub
			if dashboard != "" {
				hub = server.NewHub(root.logger)
				reporters = append(reporters, hub)
			}

			var applier replay.Applier
			if mode == replay.Live {
				act, err := drive.NewActuator(drive.NewWriterSink(out)).WithVelocityScale(velocity)
				if err != nil {
					return WrapExitError(ExitCommandError, "invalid --velocity-scale", err)
				}
				applier = act
			}

			location := root.cfg.Recording.Location
			player, err := replay.New(replay.Options{
				Store:        store,
				Location:     location,
				Format:       root.codecFormat(location),
				Mode:         mode,
				Applier:      applier,
				Reporter:     report.Multi(reporters...),
				LagThreshold: cfg.LagThreshold,
			})
			if err != nil {
				return WrapExitError(ExitCommandError, "creating player", err)
			}
			if err := player.Load(ctx); err != nil {
				return err
			}

			if hub != nil {
				srv := server.New(dashboard, server.Options{
					Status: player.Status,
					Log:    player.Log,
					Hub:    hub,
					Logger: root.logger,
				})
				go func() {
					if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						root.logger.Error("dashboard server stopped", "err", err)
					}
				}()
				defer func() {
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					_ = srv.Shutdown(shutdownCtx)
				}()
				root.logger.Info("dashboard", "url", fmt.Sprintf("http://localhost%s/dashboard/", dashboard))
			}

			gate := startGate(cmd, cfg.Start, root)
			if err := player.WaitForStart(ctx, gate); err != nil {
				return WrapExitError(ExitFailure, "waiting for start", err)
			}

			summary, runErr := player.Run(ctx)

			if collector != nil {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				if err := enc.Encode(map[string]any{
					"events":  collector.Events(),
					"summary": summary,
				}); err != nil {
					return err
				}
			} else {
				w := out
				if mode == replay.Live {
					w = cmd.ErrOrStderr()
				}
				printSummary(w, summary)
			}

			if runErr != nil {
				return WrapExitError(ExitFailure, "replay", runErr)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report samples instead of driving the motors")
	cmd.Flags().StringVar(&start, "start", config.StartEnter, "start signal (immediate, enter)")
	cmd.Flags().DurationVar(&lagThreshold, "lag-threshold", 0, "report samples applied later than this as clock anomalies (0 disables)")
	cmd.Flags().StringVar(&dashboard, "dashboard", "", "serve the live dashboard on this address, e.g. :8080")
	cmd.Flags().BoolVar(&outputJSON, "json", false, "output dry-run events and summary as JSON")
	cmd.Flags().Float64Var(&velocity, "velocity-scale", 1, "cap translation speed in live mode, in (0, 1]")

	return cmd
}

// startGate picks the start signal. "enter" waits for a line on stdin
// when stdin is a terminal or a non-file reader; piped stdin starts
// immediately.
func startGate(cmd *cobra.Command, start string, root *rootOptions) replay.StartGate {
	if start != config.StartEnter {
		return replay.ImmediateStart
	}
	in := cmd.InOrStdin()
	if f, ok := in.(*os.File); ok {
		if !term.IsTerminal(int(f.Fd())) {
			root.logger.Info("stdin is not a terminal, starting immediately")
			return replay.ImmediateStart
		}
		fmt.Fprintln(cmd.ErrOrStderr(), "Press Enter to start replay...")
	}
	return replay.ReaderGate(in)
}

// textReporter prints dry-run events one per line.
func textReporter(w io.Writer) report.Reporter {
	return report.ReporterFunc(func(e report.Event) {
		switch e.Kind {
		case report.KindSample:
			controls, _ := json.Marshal(e.Sample.Controls)
			fmt.Fprintf(w, "  [SAMPLE] #%04d t=%.3fs lag=%s %s\n",
				e.Index, e.Sample.RecordedAt, fmtLag(e.Lag), controls)
		case report.KindBehind:
			fmt.Fprintf(w, "  [BEHIND] #%04d t=%.3fs lag=%s\n",
				e.Index, e.Sample.RecordedAt, fmtLag(e.Lag))
		case report.KindClockAnomaly:
			fmt.Fprintf(w, "  [CLOCK ] #%04d %s\n", e.Index, e.Message)
		}
	})
}

func fmtLag(seconds float64) string {
	return time.Duration(seconds * float64(time.Second)).Round(time.Microsecond).String()
}

func printSummary(w io.Writer, s *replay.Summary) {
	if s == nil {
		return
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "--- Replay Summary ---")
	fmt.Fprintf(w, "  State:          %s\n", s.State)
	fmt.Fprintf(w, "  Mode:           %s\n", s.Mode)
	fmt.Fprintf(w, "  Samples:        %d/%d\n", s.Applied, s.Total)
	fmt.Fprintf(w, "  Late:           %d\n", s.Late)
	fmt.Fprintf(w, "  Sleeps:         %d (%s)\n", s.Sleeps, s.TotalSleep.Round(time.Millisecond))
	fmt.Fprintf(w, "  Max lag:        %s\n", s.MaxLag.Round(time.Microsecond))
	fmt.Fprintf(w, "  Mean lag:       %s\n", s.MeanLag.Round(time.Microsecond))
	fmt.Fprintf(w, "  Anomalies:      %d\n", s.Anomalies)
	fmt.Fprintf(w, "  Recorded span:  %s\n", s.Duration)
	fmt.Fprintf(w, "  Wall time:      %s\n", s.WallDuration.Round(time.Millisecond))
}
