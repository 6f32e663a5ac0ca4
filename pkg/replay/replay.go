package replay

import (
	"io"

	internalreplay "github.com/SmitUplenchwar2687/Retrace/internal/replay"
)

// Player replays a recorded log on its original timeline.
type Player = internalreplay.Player

// Options configures a Player.
type Options = internalreplay.Options

// Summary aggregates one replay session.
type Summary = internalreplay.Summary

// Status is a point-in-time snapshot of a session.
type Status = internalreplay.Status

// Mode selects live or dry-run replay.
type Mode = internalreplay.Mode

const (
	Live   = internalreplay.Live
	DryRun = internalreplay.DryRun
)

// State is the player lifecycle state.
type State = internalreplay.State

// Applier receives each replayed controls snapshot in live mode.
type Applier = internalreplay.Applier

// ApplierFunc adapts a function to Applier.
type ApplierFunc = internalreplay.ApplierFunc

// StartGate blocks until replay may begin.
type StartGate = internalreplay.StartGate

// ImmediateStart opens at once.
var ImmediateStart = internalreplay.ImmediateStart

// New creates a Player in the Idle state.
func New(opts Options) (*Player, error) {
	return internalreplay.New(opts)
}

// ChannelGate opens when ch is closed or receives a value.
func ChannelGate(ch <-chan struct{}) StartGate {
	return internalreplay.ChannelGate(ch)
}

// ReaderGate opens when a line is read from r.
func ReaderGate(r io.Reader) StartGate {
	return internalreplay.ReaderGate(r)
}
