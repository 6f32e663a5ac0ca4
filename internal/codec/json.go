package codec

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"strconv"

	"github.com/SmitUplenchwar2687/Retrace/internal/fault"
	"github.com/SmitUplenchwar2687/Retrace/internal/input"
)

func encodeJSON(records []record) ([]byte, error) {
	return json.Marshal(records)
}

func decodeJSON(data []byte) (input.Log, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw []json.RawMessage
	if err := dec.Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fault.Malformed(opDecode, "empty input")
		}
		var te *json.UnmarshalTypeError
		if errors.As(err, &te) {
			return nil, fault.Malformed(opDecode, "top level is %s, want array", te.Value)
		}
		return nil, &fault.Error{Code: fault.MalformedLog, Op: opDecode, Err: err}
	}
	if raw == nil {
		return nil, fault.Malformed(opDecode, "top level is null, want array")
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fault.Malformed(opDecode, "trailing data after log")
	}
	if err := checkDuplicateKeys(data); err != nil {
		return nil, err
	}

	records := make([]record, len(raw))
	for i, msg := range raw {
		r, err := decodeJSONRecord(i, msg)
		if err != nil {
			return nil, err
		}
		records[i] = r
	}
	return toLog(records), nil
}

func decodeJSONRecord(i int, msg json.RawMessage) (record, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(msg, &fields); err != nil || fields == nil {
		return record{}, fault.Malformed(opDecode, "record %d: not an object", i)
	}
	for k := range fields {
		if k != "recorded_at" && k != "controls" {
			return record{}, fault.Malformed(opDecode, "record %d: unknown field %q", i, k)
		}
	}

	rawTime, ok := fields["recorded_at"]
	if !ok {
		return record{}, fault.Malformed(opDecode, "record %d: missing recorded_at", i)
	}
	var num json.Number
	if !isNumberLiteral(rawTime) || json.Unmarshal(rawTime, &num) != nil {
		return record{}, fault.Malformed(opDecode, "record %d: recorded_at is not a number", i)
	}
	t, err := strconv.ParseFloat(num.String(), 64)
	if err != nil {
		return record{}, fault.Malformed(opDecode, "record %d: recorded_at is not finite", i)
	}
	if err := checkTimestamp(opDecode, i, t); err != nil {
		return record{}, err
	}

	rawControls, ok := fields["controls"]
	if !ok {
		return record{}, fault.Malformed(opDecode, "record %d: missing controls", i)
	}
	var controls map[string]any
	if err := json.Unmarshal(rawControls, &controls); err != nil || controls == nil {
		return record{}, fault.Malformed(opDecode, "record %d: controls is not an object", i)
	}

	return record{RecordedAt: t, Controls: controls}, nil
}

// isNumberLiteral rejects quoted numbers, which json.Number would accept.
func isNumberLiteral(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return false
	}
	c := raw[0]
	return c == '-' || (c >= '0' && c <= '9')
}

// checkDuplicateKeys walks the token stream of a syntactically valid
// document and rejects any object that repeats a key, at any depth.
// encoding/json would silently keep the last value.
func checkDuplicateKeys(data []byte) error {
	type frame struct {
		keys    map[string]struct{}
		wantKey bool
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var stack []*frame
	record := -1
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return &fault.Error{Code: fault.MalformedLog, Op: opDecode, Err: err}
		}

		var top *frame
		if n := len(stack); n > 0 {
			top = stack[n-1]
		}
		if top != nil && top.keys != nil && top.wantKey {
			if key, ok := tok.(string); ok {
				if _, dup := top.keys[key]; dup {
					return fault.Malformed(opDecode, "record %d: duplicate key %q", record, key)
				}
				top.keys[key] = struct{}{}
				top.wantKey = false
				continue
			}
		}

		switch tok {
		case json.Delim('{'):
			if len(stack) == 1 {
				record++
			}
			stack = append(stack, &frame{keys: map[string]struct{}{}, wantKey: true})
			continue
		case json.Delim('['):
			if len(stack) == 1 {
				record++
			}
			stack = append(stack, &frame{})
			continue
		case json.Delim('}'), json.Delim(']'):
			stack = stack[:len(stack)-1]
		default:
			if len(stack) == 1 {
				record++
			}
		}
		// A value just ended; the enclosing object expects a key next.
		if n := len(stack); n > 0 && stack[n-1].keys != nil {
			stack[n-1].wantKey = true
		}
	}
}
