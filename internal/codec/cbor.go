package codec

import (
	"errors"
	"reflect"

	"github.com/fxamacker/cbor/v2"

	"github.com/SmitUplenchwar2687/Retrace/internal/fault"
	"github.com/SmitUplenchwar2687/Retrace/internal/input"
)

// encMode uses Core Deterministic Encoding (RFC 8949 §4.2): sorted map
// keys, shortest integer and float forms, no indefinite-length items.
var encMode cbor.EncMode

// decMode rejects unknown record fields and duplicate map keys. Untyped
// maps decode as map[string]any so controls match the JSON shape.
var decMode cbor.DecMode

func init() {
	var err error

	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("codec: CBOR encoder initialization failed: " + err.Error())
	}

	decMode, err = cbor.DecOptions{
		DefaultMapType:    reflect.TypeOf(map[string]any(nil)),
		DupMapKey:         cbor.DupMapKeyEnforcedAPF,
		ExtraReturnErrors: cbor.ExtraDecErrorUnknownField,
	}.DecMode()
	if err != nil {
		panic("codec: CBOR decoder initialization failed: " + err.Error())
	}
}

// cborRecord uses pointers so a missing field is distinguishable from a
// zero value.
type cborRecord struct {
	RecordedAt *float64 `cbor:"recorded_at"`
	Controls   any      `cbor:"controls"`
}

func encodeCBOR(records []record) ([]byte, error) {
	return encMode.Marshal(records)
}

func decodeCBOR(data []byte) (input.Log, error) {
	if len(data) == 0 {
		return nil, fault.Malformed(opDecode, "empty input")
	}

	var raw []cborRecord
	if err := decMode.Unmarshal(data, &raw); err != nil {
		var extra *cbor.ExtraneousDataError
		if errors.As(err, &extra) {
			return nil, fault.Malformed(opDecode, "trailing data after log")
		}
		return nil, &fault.Error{Code: fault.MalformedLog, Op: opDecode, Err: err}
	}
	if raw == nil {
		return nil, fault.Malformed(opDecode, "top level is null, want array")
	}

	records := make([]record, len(raw))
	for i, r := range raw {
		if r.RecordedAt == nil {
			return nil, fault.Malformed(opDecode, "record %d: missing recorded_at", i)
		}
		if err := checkTimestamp(opDecode, i, *r.RecordedAt); err != nil {
			return nil, err
		}
		if r.Controls == nil {
			return nil, fault.Malformed(opDecode, "record %d: missing controls", i)
		}
		controls, ok := r.Controls.(map[string]any)
		if !ok {
			return nil, fault.Malformed(opDecode, "record %d: controls is not an object", i)
		}
		records[i] = record{RecordedAt: *r.RecordedAt, Controls: controls}
	}
	return toLog(records), nil
}
