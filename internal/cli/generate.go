package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/SmitUplenchwar2687/Retrace/internal/codec"
	"github.com/SmitUplenchwar2687/Retrace/internal/config"
	"github.com/SmitUplenchwar2687/Retrace/internal/fault"
	"github.com/SmitUplenchwar2687/Retrace/pkg/generate"
)

func newGenerateCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate sample logs and config",
		Long: `Generates sample data for testing and experimentation.

Use "generate log" to store a synthetic gamepad log.
Use "generate config" to create an example config file.`,
	}

	def := generate.DefaultOptions()
	var (
		count    int
		duration time.Duration
		pattern  string
		seed     int64
		period   time.Duration
	)

	logCmd := &cobra.Command{
		Use:   "log",
		Short: "Store a synthetic gamepad log",
		Long: `Creates a log of left stick sweeps and right stick turns at the
configured location.

Patterns:
  steady    Evenly spaced ticks
  burst     Clustered ticks with quiet gaps
  ramp      Ticks that get denser towards the end`,
		Example: `  retrace generate log --location demo.json --count 200 --duration 10s
  retrace generate log --location burst.cbor --pattern burst --seed 7`,
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := generate.GenerateLog(&generate.Options{
				Count:    count,
				Duration: duration,
				Pattern:  pattern,
				Seed:     seed,
				Period:   period,
			})
			if err != nil {
				return WrapExitError(ExitCommandError, "generating log", err)
			}

			location := root.cfg.Recording.Location
			format := root.codecFormat(location)
			data, err := codec.Encode(format, log)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			store, err := root.openStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()
			if err := store.Write(ctx, location, data); err != nil {
				return fault.Storage("cli.generate", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Generated %d samples to %s\n", log.Len(), location)
			fmt.Fprintf(out, "  Format:   %s\n", format)
			fmt.Fprintf(out, "  Duration: %.3fs\n", log.Duration())
			fmt.Fprintf(out, "  Pattern:  %s\n", pattern)
			return nil
		},
	}

	logCmd.Flags().IntVar(&count, "count", def.Count, "number of samples to generate")
	logCmd.Flags().DurationVar(&duration, "duration", def.Duration, "time span of the log")
	logCmd.Flags().StringVar(&pattern, "pattern", def.Pattern, "tick pattern (steady, burst, ramp)")
	logCmd.Flags().Int64Var(&seed, "seed", 0, "random seed (0 = time based)")
	logCmd.Flags().DurationVar(&period, "period", def.Period, "time for the left stick to sweep a full circle")

	var output string
	configCmd := &cobra.Command{
		Use:     "config",
		Short:   "Generate an example config file",
		Example: `  retrace generate config --output retrace.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.WriteExample(output); err != nil {
				return WrapExitError(ExitCommandError, "writing config", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Generated example config at %s\n", output)
			return nil
		},
	}

	configCmd.Flags().StringVar(&output, "output", "retrace.yaml", "output file path (.yaml, .yml or .json)")

	cmd.AddCommand(logCmd, configCmd)
	return cmd
}
