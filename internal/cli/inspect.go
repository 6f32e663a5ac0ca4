package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/SmitUplenchwar2687/Retrace/internal/codec"
	"github.com/SmitUplenchwar2687/Retrace/internal/fault"
	"github.com/SmitUplenchwar2687/Retrace/internal/input"
	"github.com/SmitUplenchwar2687/Retrace/internal/storage"
)

// LogReport describes a stored log.
type LogReport struct {
	Location  string       `json:"location"`
	Format    codec.Format `json:"format"`
	Bytes     int          `json:"bytes"`
	Samples   int          `json:"samples"`
	Duration  float64      `json:"duration"`
	Anomalies []int        `json:"anomalies"`
	Log       input.Log    `json:"log,omitempty"`
}

func newInspectCmd(root *rootOptions) *cobra.Command {
	var (
		outputJSON bool
		limit      int
	)

	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Decode a stored log and print its samples",
		Long: `Reads a log from storage, validates it and prints its samples along
with any timestamps that fail to increase.`,
		Example: `  retrace inspect --location run1.json
  retrace inspect --location run1.cbor --storage redis --json
  retrace inspect --location run1.json --limit 0`,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := root.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			location := root.cfg.Recording.Location
			rep, err := inspectLog(cmd.Context(), store, location, root.codecFormat(location))
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if outputJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(rep)
			}
			printLogReport(out, rep, limit)
			return nil
		},
	}

	cmd.Flags().BoolVar(&outputJSON, "json", false, "output the report and samples as JSON")
	cmd.Flags().IntVar(&limit, "limit", 20, "samples to print, 0 for all")

	return cmd
}

func readLog(ctx context.Context, store storage.Store, location string, format codec.Format) ([]byte, input.Log, error) {
	data, err := store.Read(ctx, location)
	if err != nil {
		return nil, nil, fault.Storage("cli.read", err)
	}
	log, err := codec.Decode(format, data)
	if err != nil {
		return data, nil, err
	}
	return data, log, nil
}

func inspectLog(ctx context.Context, store storage.Store, location string, format codec.Format) (*LogReport, error) {
	data, log, err := readLog(ctx, store, location, format)
	if err != nil {
		return nil, err
	}
	rep := &LogReport{
		Location:  location,
		Format:    format,
		Bytes:     len(data),
		Samples:   log.Len(),
		Duration:  log.Duration(),
		Anomalies: log.Anomalies(),
		Log:       log,
	}
	if rep.Anomalies == nil {
		rep.Anomalies = []int{}
	}
	return rep, nil
}

func printLogReport(w io.Writer, rep *LogReport, limit int) {
	fmt.Fprintf(w, "Log %s (%s, %d bytes)\n", rep.Location, rep.Format, rep.Bytes)
	fmt.Fprintf(w, "  Samples:   %d\n", rep.Samples)
	fmt.Fprintf(w, "  Duration:  %.3fs\n", rep.Duration)
	if len(rep.Anomalies) > 0 {
		idx := make([]string, len(rep.Anomalies))
		for i, a := range rep.Anomalies {
			idx[i] = fmt.Sprintf("#%d", a)
		}
		fmt.Fprintf(w, "  Anomalies: %d (%s)\n", len(rep.Anomalies), strings.Join(idx, ", "))
	}
	if rep.Samples == 0 {
		return
	}

	fmt.Fprintln(w)
	n := len(rep.Log)
	if limit > 0 && limit < n {
		n = limit
	}
	for i := 0; i < n; i++ {
		s := rep.Log[i]
		controls, _ := json.Marshal(s.Controls)
		fmt.Fprintf(w, "  #%04d t=%.3fs %s\n", i, s.RecordedAt, controls)
	}
	if n < len(rep.Log) {
		fmt.Fprintf(w, "  ... %d more\n", len(rep.Log)-n)
	}
}
