// Package codec exposes the persisted log formats and the sample types
// they carry.
package codec

import (
	internalcodec "github.com/SmitUplenchwar2687/Retrace/internal/codec"
	"github.com/SmitUplenchwar2687/Retrace/internal/input"
)

// Format identifies a wire format.
type Format = internalcodec.Format

const (
	JSON = internalcodec.JSON
	CBOR = internalcodec.CBOR
)

// Sample is one timestamped controls snapshot.
type Sample = input.Sample

// Controls is the opaque control state of one sample.
type Controls = input.Controls

// Log is an ordered sequence of samples.
type Log = input.Log

// NewSample builds a sample with normalized, copied controls.
func NewSample(recordedAt float64, controls map[string]any) Sample {
	return input.NewSample(recordedAt, controls)
}

// Encode serializes log in format.
func Encode(format Format, log Log) ([]byte, error) {
	return internalcodec.Encode(format, log)
}

// Decode parses data in format, rejecting malformed logs.
func Decode(format Format, data []byte) (Log, error) {
	return internalcodec.Decode(format, data)
}

// FormatFromPath infers the format from a location's extension.
func FormatFromPath(location string) Format {
	return internalcodec.FormatFromPath(location)
}
