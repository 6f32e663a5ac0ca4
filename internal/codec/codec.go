// Package codec converts sample logs to and from their persisted byte
// form. Encoding is deterministic and decoding is strict: anything that
// is not exactly a list of {recorded_at, controls} records is rejected
// with a MALFORMED_LOG error.
package codec

import (
	"fmt"
	"math"
	"path/filepath"
	"strings"

	"github.com/SmitUplenchwar2687/Retrace/internal/fault"
	"github.com/SmitUplenchwar2687/Retrace/internal/input"
)

// Format selects the wire encoding of a persisted log.
type Format string

const (
	JSON Format = "json"
	CBOR Format = "cbor"
)

// Formats lists the supported formats.
var Formats = []Format{JSON, CBOR}

func (f Format) String() string {
	return string(f)
}

// ParseFormat parses a format name. The empty string selects JSON.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", JSON:
		return JSON, nil
	case CBOR:
		return CBOR, nil
	default:
		return "", fmt.Errorf("unknown log format %q (valid: json, cbor)", s)
	}
}

// FormatFromPath infers the format from a location's extension.
func FormatFromPath(location string) Format {
	ext := strings.ToLower(filepath.Ext(strings.TrimSuffix(location, ".zst")))
	if ext == ".cbor" {
		return CBOR
	}
	return JSON
}

// record is the persisted shape of one sample.
type record struct {
	RecordedAt float64        `json:"recorded_at" cbor:"recorded_at"`
	Controls   map[string]any `json:"controls" cbor:"controls"`
}

// Encode serializes log in the given format. The same log always yields
// the same bytes. Negative or non-finite timestamps and NaN or infinite
// control values are MALFORMED_LOG.
func Encode(format Format, log input.Log) ([]byte, error) {
	records := make([]record, len(log))
	for i, s := range log {
		if err := checkTimestamp(opEncode, i, s.RecordedAt); err != nil {
			return nil, err
		}
		if path, bad := input.NonFinite(s.Controls); bad {
			return nil, fault.Malformed(opEncode, "record %d: control %s is not a finite number", i, path)
		}
		records[i] = record{
			RecordedAt: s.RecordedAt,
			Controls:   map[string]any(input.NormalizeControls(s.Controls)),
		}
	}

	var (
		data []byte
		err  error
	)
	switch format {
	case "", JSON:
		data, err = encodeJSON(records)
	case CBOR:
		data, err = encodeCBOR(records)
	default:
		return nil, fmt.Errorf("codec: unknown format %q", format)
	}
	if err != nil {
		return nil, &fault.Error{Code: fault.MalformedLog, Op: opEncode, Err: err}
	}
	return data, nil
}

// Decode parses data in the given format. Every failure is a
// MALFORMED_LOG *fault.Error. Timestamps that do not increase are
// accepted; callers surface them as clock anomalies.
func Decode(format Format, data []byte) (input.Log, error) {
	switch format {
	case "", JSON:
		return decodeJSON(data)
	case CBOR:
		return decodeCBOR(data)
	default:
		return nil, fmt.Errorf("codec: unknown format %q", format)
	}
}

func checkTimestamp(op string, i int, t float64) error {
	if math.IsNaN(t) || math.IsInf(t, 0) {
		return fault.Malformed(op, "record %d: recorded_at is not finite", i)
	}
	if t < 0 {
		return fault.Malformed(op, "record %d: negative recorded_at %v", i, t)
	}
	return nil
}

const (
	opEncode = "codec.encode"
	opDecode = "codec.decode"
)

func toLog(records []record) input.Log {
	log := make(input.Log, len(records))
	for i, r := range records {
		log[i] = input.NewSample(r.RecordedAt, r.Controls)
	}
	return log
}
