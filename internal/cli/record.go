package cli

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/SmitUplenchwar2687/Retrace/internal/recorder"
)

const maxTickLine = 1 << 20

func newRecordCmd(root *rootOptions) *cobra.Command {
	var inputPath string

	cmd := &cobra.Command{
		Use:   "record",
		Short: "Record controller input to a log",
		Long: `Reads controller ticks as newline-delimited JSON objects and samples
each one against the session clock as it arrives. On end of input or
SIGINT the whole log is written to storage in one atomic write.

Each line is the full controls snapshot for that tick, for example:
  {"left_stick_x":0.25,"left_stick_y":-1,"right_stick_x":0}`,
		Example: `  gamepad-bridge | retrace record --location run1.json
  retrace record --input ticks.ndjson --location run1.cbor --storage sqlite
  retrace record --location laps/run2.json --compression zstd`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			in := cmd.InOrStdin()
			if inputPath != "" && inputPath != "-" {
				f, err := os.Open(inputPath)
				if err != nil {
					return WrapExitError(ExitCommandError, "opening input", err)
				}
				defer f.Close()
				in = f
			}

			store, err := root.openStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			location := root.cfg.Recording.Location
			rec, err := recorder.New(recorder.Options{
				Store:    store,
				Location: location,
				Format:   root.codecFormat(location),
				Reporter: root.logReporter(),
			})
			if err != nil {
				return err
			}

			if err := rec.Start(ctx); err != nil {
				return err
			}
			root.logger.Info("recording", "location", location, "session", rec.SessionID())

			skipped, readErr := recordTicks(ctx, rec, in, root)

			// Persist even when interrupted; the session context is done by then.
			stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			n, err := rec.Stop(stopCtx)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Recorded %d samples to %s\n", n, location)
			if skipped > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "  Skipped %d malformed lines\n", skipped)
			}
			if readErr != nil {
				return WrapExitError(ExitFailure, "reading input", readErr)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&inputPath, "input", "-", "NDJSON controller ticks, - for stdin")

	return cmd
}

// recordTicks samples every line of in until EOF or ctx is done. Lines
// that are not a JSON object are logged and skipped.
func recordTicks(ctx context.Context, rec *recorder.Recorder, in io.Reader, root *rootOptions) (skipped int, err error) {
	lines := make(chan []byte)
	errc := make(chan error, 1)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		sc.Buffer(make([]byte, 0, 64*1024), maxTickLine)
		for sc.Scan() {
			line := bytes.TrimSpace(sc.Bytes())
			if len(line) == 0 {
				continue
			}
			select {
			case lines <- append([]byte(nil), line...):
			case <-ctx.Done():
				return
			}
		}
		errc <- sc.Err()
	}()

	lineNo := 0
	for {
		select {
		case <-ctx.Done():
			root.logger.Info("recording interrupted", "samples", rec.Len())
			return skipped, nil
		case line, ok := <-lines:
			if !ok {
				select {
				case err = <-errc:
				default:
				}
				return skipped, err
			}
			lineNo++
			controls, perr := parseTick(line)
			if perr != nil {
				skipped++
				root.logger.Warn("skipping malformed tick", "line", lineNo, "err", perr)
				continue
			}
			if _, err := rec.Sample(controls); err != nil {
				return skipped, err
			}
		}
	}
}

func parseTick(line []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(line))
	dec.UseNumber()
	var controls map[string]any
	if err := dec.Decode(&controls); err != nil {
		return nil, err
	}
	if controls == nil {
		return nil, fmt.Errorf("tick must be a JSON object")
	}
	if dec.More() {
		return nil, fmt.Errorf("trailing data after tick")
	}
	return controls, nil
}
