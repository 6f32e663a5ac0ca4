package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/SmitUplenchwar2687/Retrace/internal/codec"
	"github.com/SmitUplenchwar2687/Retrace/internal/fault"
)

func newConvertCmd(root *rootOptions) *cobra.Command {
	var (
		to       string
		toFormat formatValue
	)

	cmd := &cobra.Command{
		Use:   "convert",
		Short: "Re-encode a stored log in another location or format",
		Long: `Reads the log at --location, validates it and writes it to --to in
the target format. The target format defaults to the one implied by the
--to extension. Both locations use the same storage backend.`,
		Example: `  retrace convert --location run1.json --to run1.cbor
  retrace convert --location run1.json --to archive/run1 --to-format cbor --compression zstd`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if to == "" {
				return WrapExitError(ExitCommandError, "invalid flags", fmt.Errorf("--to is required"))
			}

			ctx := cmd.Context()
			store, err := root.openStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			from := root.cfg.Recording.Location
			fromFormat := root.codecFormat(from)
			_, log, err := readLog(ctx, store, from, fromFormat)
			if err != nil {
				return err
			}

			target := toFormat.format
			if target == "" {
				target = codec.FormatFromPath(to)
			}
			data, err := codec.Encode(target, log)
			if err != nil {
				return err
			}
			if err := store.Write(ctx, to, data); err != nil {
				return fault.Storage("cli.convert", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Converted %d samples %s (%s) -> %s (%s)\n",
				log.Len(), from, fromFormat, to, target)
			return nil
		},
	}

	cmd.Flags().StringVar(&to, "to", "", "target location (required)")
	cmd.Flags().Var(&toFormat, "to-format", "target wire format (json, cbor)")

	return cmd
}
