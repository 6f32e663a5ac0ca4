package replay

import (
	"bufio"
	"context"
	"errors"
	"io"
)

// StartGate blocks until the host signals that replay may begin, or ctx
// is done.
type StartGate interface {
	WaitForStart(ctx context.Context) error
}

// GateFunc adapts a function to StartGate.
type GateFunc func(ctx context.Context) error

func (f GateFunc) WaitForStart(ctx context.Context) error { return f(ctx) }

// ImmediateStart opens as soon as it is asked.
var ImmediateStart StartGate = GateFunc(func(ctx context.Context) error {
	return ctx.Err()
})

// ChannelGate opens when ch receives a value or is closed.
func ChannelGate(ch <-chan struct{}) StartGate {
	return GateFunc(func(ctx context.Context) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ch:
			return nil
		}
	})
}

// ReaderGate opens when a full line (or EOF) is read from r, e.g. the
// operator pressing Enter on a terminal.
func ReaderGate(r io.Reader) StartGate {
	return GateFunc(func(ctx context.Context) error {
		done := make(chan error, 1)
		go func() {
			_, err := bufio.NewReader(r).ReadString('\n')
			if errors.Is(err, io.EOF) {
				err = nil
			}
			done <- err
		}()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-done:
			return err
		}
	})
}
