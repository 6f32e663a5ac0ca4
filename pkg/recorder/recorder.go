package recorder

import (
	internalrecorder "github.com/SmitUplenchwar2687/Retrace/internal/recorder"
)

// Recorder captures timestamped control snapshots and persists them on Stop.
type Recorder = internalrecorder.Recorder

// Options configures a Recorder.
type Options = internalrecorder.Options

// State is the recorder lifecycle state.
type State = internalrecorder.State

const (
	Idle      = internalrecorder.Idle
	Recording = internalrecorder.Recording
	Stopped   = internalrecorder.Stopped
)

// New creates a Recorder in the Idle state.
func New(opts Options) (*Recorder, error) {
	return internalrecorder.New(opts)
}
