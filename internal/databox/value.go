package databox

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Value is a typed cell value. The concrete type always matches the column
// type it was validated against. A missing value (SQL NULL) is represented
// by the key being absent from Row.Values.
type Value interface {
	fmt.Stringer
	json.Marshaler
	isValue()
}

// TextValue holds varchar and text cells.
type TextValue string

// IntValue holds int and bigint cells.
type IntValue int64

// BoolValue holds boolean cells.
type BoolValue bool

// TimestampValue holds datetime cells, always in UTC.
type TimestampValue time.Time

// JSONValue holds json cells as canonical compact JSON text.
type JSONValue string

// UUIDValue holds uuid cells.
type UUIDValue uuid.UUID

// DecimalValue holds decimal cells as canonical decimal text.
type DecimalValue string

func (TextValue) isValue()      {}
func (IntValue) isValue()       {}
func (BoolValue) isValue()      {}
func (TimestampValue) isValue() {}
func (JSONValue) isValue()      {}
func (UUIDValue) isValue()      {}
func (DecimalValue) isValue()   {}

func (v TextValue) String() string      { return string(v) }
func (v IntValue) String() string       { return strconv.FormatInt(int64(v), 10) }
func (v BoolValue) String() string      { return strconv.FormatBool(bool(v)) }
func (v TimestampValue) String() string { return time.Time(v).UTC().Format(time.RFC3339Nano) }
func (v JSONValue) String() string      { return string(v) }
func (v UUIDValue) String() string      { return uuid.UUID(v).String() }
func (v DecimalValue) String() string   { return string(v) }

func (v TextValue) MarshalJSON() ([]byte, error) { return json.Marshal(string(v)) }
func (v IntValue) MarshalJSON() ([]byte, error)  { return []byte(v.String()), nil }
func (v BoolValue) MarshalJSON() ([]byte, error) { return []byte(v.String()), nil }

func (v TimestampValue) MarshalJSON() ([]byte, error) { return json.Marshal(v.String()) }

// MarshalJSON stores the document as a JSON string so that scalar documents
// such as "hello" survive a round trip unambiguously.
func (v JSONValue) MarshalJSON() ([]byte, error) { return json.Marshal(string(v)) }

func (v UUIDValue) MarshalJSON() ([]byte, error)    { return json.Marshal(v.String()) }
func (v DecimalValue) MarshalJSON() ([]byte, error) { return json.Marshal(string(v)) }

// Interface returns the plain Go representation of v, suitable for
// re-encoding in other formats. JSON cells are decoded into maps and slices.
func Interface(v Value) any {
	switch x := v.(type) {
	case nil:
		return nil
	case TextValue:
		return string(x)
	case IntValue:
		return int64(x)
	case BoolValue:
		return bool(x)
	case TimestampValue:
		return time.Time(x)
	case JSONValue:
		var out any
		if err := json.Unmarshal([]byte(x), &out); err != nil {
			return string(x)
		}
		return out
	default:
		return v.String()
	}
}

// valueKey is the comparison key used for uniqueness checks.
func valueKey(v Value) string {
	return fmt.Sprintf("%T:%s", v, v.String())
}

// decodeRaw decodes one JSON value keeping numbers as json.Number.
func decodeRaw(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var out any
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	if err := dec.Decode(new(any)); err != io.EOF {
		return nil, fmt.Errorf("unexpected data after JSON value")
	}
	return out, nil
}
