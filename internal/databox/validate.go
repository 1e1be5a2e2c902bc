package databox

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// datetimeLayouts are tried in order when coercing strings to datetime cells.
var datetimeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Validate coerces raw into a Value of the column's type.
//
// A nil raw value, and an empty string for any non-text column, means the
// value is absent and (nil, nil) is returned. Values that cannot be coerced
// are rejected with a *ValidationError.
func Validate(col Column, raw any) (Value, error) {
	if raw == nil {
		return nil, nil
	}
	if v, ok := raw.(Value); ok {
		if col.Type == TypeDatetime {
			if ts, ok := v.(TimestampValue); ok {
				return TimestampValue(time.Time(ts).UTC()), nil
			}
		}
		raw = v.String()
	}

	switch col.Type {
	case TypeVarchar, TypeText:
		return validateText(col, raw)
	}

	if s, ok := raw.(string); ok && strings.TrimSpace(s) == "" {
		return nil, nil
	}

	switch col.Type {
	case TypeInt:
		n, err := toInt64(raw)
		if err != nil {
			return nil, invalid(col.Name, "%v", err)
		}
		if n < math.MinInt32 || n > math.MaxInt32 {
			return nil, invalid(col.Name, "%d overflows int", n)
		}
		return IntValue(n), nil
	case TypeBigint:
		n, err := toInt64(raw)
		if err != nil {
			return nil, invalid(col.Name, "%v", err)
		}
		return IntValue(n), nil
	case TypeBoolean:
		b, err := toBool(raw)
		if err != nil {
			return nil, invalid(col.Name, "%v", err)
		}
		return BoolValue(b), nil
	case TypeDatetime:
		return validateDatetime(col, raw)
	case TypeJSON:
		return validateJSON(col, raw)
	case TypeUUID:
		return validateUUID(col, raw)
	case TypeDecimal:
		return validateDecimal(col, raw)
	default:
		return nil, invalid(col.Name, "unknown column type %q", col.Type)
	}
}

// IsComplete reports whether v satisfies the column's required flag.
// Auto-increment primary keys are always complete because the store assigns them.
func IsComplete(col Column, v Value) bool {
	if !col.Required || col.IsAutoIncrement() {
		return true
	}
	if v == nil {
		return false
	}
	if t, ok := v.(TextValue); ok && strings.TrimSpace(string(t)) == "" {
		return false
	}
	return true
}

func validateText(col Column, raw any) (Value, error) {
	var s string
	switch x := raw.(type) {
	case string:
		s = x
	case json.Number:
		s = x.String()
	case bool:
		s = strconv.FormatBool(x)
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		s = fmt.Sprintf("%d", x)
	case float32:
		s = strconv.FormatFloat(float64(x), 'f', -1, 32)
	case float64:
		s = strconv.FormatFloat(x, 'f', -1, 64)
	case time.Time:
		s = x.UTC().Format(time.RFC3339Nano)
	default:
		return nil, invalid(col.Name, "cannot store %T as %s", raw, col.Type)
	}
	if col.Type == TypeVarchar && col.Length != nil && utf8.RuneCountInString(s) > *col.Length {
		return nil, invalid(col.Name, "longer than %d characters", *col.Length)
	}
	return TextValue(s), nil
}

func validateDatetime(col Column, raw any) (Value, error) {
	switch x := raw.(type) {
	case time.Time:
		return TimestampValue(x.UTC()), nil
	case string:
		s := strings.TrimSpace(x)
		for _, layout := range datetimeLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return TimestampValue(t.UTC()), nil
			}
		}
		return nil, invalid(col.Name, "%q is not a datetime", x)
	default:
		return nil, invalid(col.Name, "cannot store %T as datetime", raw)
	}
}

func validateJSON(col Column, raw any) (Value, error) {
	var data []byte
	switch x := raw.(type) {
	case string:
		data = []byte(x)
	case json.RawMessage:
		data = x
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return nil, invalid(col.Name, "cannot encode as json: %v", err)
		}
		data = b
	}
	doc, err := decodeRaw(data)
	if err != nil {
		return nil, invalid(col.Name, "invalid json: %v", err)
	}
	canonical, err := json.Marshal(doc)
	if err != nil {
		return nil, invalid(col.Name, "invalid json: %v", err)
	}
	return JSONValue(canonical), nil
}

func validateUUID(col Column, raw any) (Value, error) {
	switch x := raw.(type) {
	case uuid.UUID:
		return UUIDValue(x), nil
	case string:
		id, err := uuid.Parse(strings.TrimSpace(x))
		if err != nil {
			return nil, invalid(col.Name, "%q is not a uuid", x)
		}
		return UUIDValue(id), nil
	default:
		return nil, invalid(col.Name, "cannot store %T as uuid", raw)
	}
}

func validateDecimal(col Column, raw any) (Value, error) {
	var d decimal.Decimal
	switch x := raw.(type) {
	case decimal.Decimal:
		d = x
	case string:
		parsed, err := decimal.NewFromString(strings.TrimSpace(x))
		if err != nil {
			return nil, invalid(col.Name, "%q is not a decimal", x)
		}
		d = parsed
	case json.Number:
		parsed, err := decimal.NewFromString(x.String())
		if err != nil {
			return nil, invalid(col.Name, "%q is not a decimal", x.String())
		}
		d = parsed
	case float64:
		d = decimal.NewFromFloat(x)
	case float32:
		d = decimal.NewFromFloat32(x)
	case int:
		d = decimal.NewFromInt(int64(x))
	case int64:
		d = decimal.NewFromInt(x)
	case int32:
		d = decimal.NewFromInt32(x)
	default:
		return nil, invalid(col.Name, "cannot store %T as decimal", raw)
	}

	var s string
	if col.Scale != nil {
		if *col.Scale < 0 || *col.Scale > MaxDecimalScale {
			return nil, invalid(col.Name, "scale must be between 0 and %d", MaxDecimalScale)
		}
		s = d.StringFixed(int32(*col.Scale))
	} else {
		s = d.String()
	}
	if col.Length != nil && decimalDigits(s) > *col.Length {
		return nil, invalid(col.Name, "more than %d digits", *col.Length)
	}
	return DecimalValue(s), nil
}

// decimalDigits counts significant integer digits plus all fractional digits.
func decimalDigits(s string) int {
	s = strings.TrimPrefix(s, "-")
	intPart, frac, _ := strings.Cut(s, ".")
	intPart = strings.TrimLeft(intPart, "0")
	return len(intPart) + len(frac)
}

func toInt64(raw any) (int64, error) {
	switch x := raw.(type) {
	case int:
		return int64(x), nil
	case int8:
		return int64(x), nil
	case int16:
		return int64(x), nil
	case int32:
		return int64(x), nil
	case int64:
		return x, nil
	case uint8:
		return int64(x), nil
	case uint16:
		return int64(x), nil
	case uint32:
		return int64(x), nil
	case uint:
		if uint64(x) > math.MaxInt64 {
			return 0, fmt.Errorf("%d overflows bigint", x)
		}
		return int64(x), nil
	case uint64:
		if x > math.MaxInt64 {
			return 0, fmt.Errorf("%d overflows bigint", x)
		}
		return int64(x), nil
	case float32:
		return floatToInt64(float64(x))
	case float64:
		return floatToInt64(x)
	case json.Number:
		return parseInt64(x.String())
	case string:
		return parseInt64(strings.TrimSpace(x))
	case bool:
		return 0, fmt.Errorf("cannot store bool as integer")
	default:
		return 0, fmt.Errorf("cannot store %T as integer", raw)
	}
}

func parseInt64(s string) (int64, error) {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%q is not an integer", s)
	}
	return floatToInt64(f)
}

func floatToInt64(f float64) (int64, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) || math.Trunc(f) != f {
		return 0, fmt.Errorf("%v is not an integer", f)
	}
	if f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, fmt.Errorf("%v overflows bigint", f)
	}
	return int64(f), nil
}

func toBool(raw any) (bool, error) {
	switch x := raw.(type) {
	case bool:
		return x, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(x)) {
		case "yes", "y", "on":
			return true, nil
		case "no", "n", "off":
			return false, nil
		}
		b, err := strconv.ParseBool(strings.TrimSpace(x))
		if err != nil {
			return false, fmt.Errorf("%q is not a boolean", x)
		}
		return b, nil
	default:
		n, err := toInt64(raw)
		if err != nil || (n != 0 && n != 1) {
			return false, fmt.Errorf("%v is not a boolean", raw)
		}
		return n == 1, nil
	}
}
