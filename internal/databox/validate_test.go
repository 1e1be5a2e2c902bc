package databox

import (
	"encoding/json"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/google/uuid"
)

func intPtr(n int) *int { return &n }

func TestValidate(t *testing.T) {
	varchar5 := Column{Name: "code", Type: TypeVarchar, Length: intPtr(5)}
	price := Column{Name: "price", Type: TypeDecimal, Length: intPtr(6), Scale: intPtr(2)}
	id := uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")

	tests := []struct {
		name    string
		col     Column
		raw     any
		want    Value
		wantErr bool
	}{
		{name: "nil is absent", col: Column{Name: "n", Type: TypeInt}, raw: nil, want: nil},
		{name: "varchar keeps string", col: Column{Name: "s", Type: TypeVarchar}, raw: "Widget", want: TextValue("Widget")},
		{name: "varchar keeps empty string", col: Column{Name: "s", Type: TypeVarchar}, raw: "", want: TextValue("")},
		{name: "text from number", col: Column{Name: "s", Type: TypeText}, raw: 42, want: TextValue("42")},
		{name: "varchar within length", col: varchar5, raw: "héllo", want: TextValue("héllo")},
		{name: "varchar over length", col: varchar5, raw: "toolong", wantErr: true},
		{name: "text rejects map", col: Column{Name: "s", Type: TypeText}, raw: map[string]any{}, wantErr: true},

		{name: "int from int", col: Column{Name: "n", Type: TypeInt}, raw: 7, want: IntValue(7)},
		{name: "int from string", col: Column{Name: "n", Type: TypeInt}, raw: " 12 ", want: IntValue(12)},
		{name: "int from integral float", col: Column{Name: "n", Type: TypeInt}, raw: 3.0, want: IntValue(3)},
		{name: "int from json number", col: Column{Name: "n", Type: TypeInt}, raw: json.Number("99"), want: IntValue(99)},
		{name: "int empty string is absent", col: Column{Name: "n", Type: TypeInt}, raw: "  ", want: nil},
		{name: "int rejects fraction", col: Column{Name: "n", Type: TypeInt}, raw: 1.5, wantErr: true},
		{name: "int rejects text", col: Column{Name: "n", Type: TypeInt}, raw: "abc", wantErr: true},
		{name: "int rejects overflow", col: Column{Name: "n", Type: TypeInt}, raw: int64(math.MaxInt32) + 1, wantErr: true},
		{name: "int rejects bool", col: Column{Name: "n", Type: TypeInt}, raw: true, wantErr: true},
		{name: "bigint beyond int32", col: Column{Name: "n", Type: TypeBigint}, raw: int64(math.MaxInt32) + 1, want: IntValue(int64(math.MaxInt32) + 1)},

		{name: "boolean true", col: Column{Name: "b", Type: TypeBoolean}, raw: true, want: BoolValue(true)},
		{name: "boolean from yes", col: Column{Name: "b", Type: TypeBoolean}, raw: "yes", want: BoolValue(true)},
		{name: "boolean from false string", col: Column{Name: "b", Type: TypeBoolean}, raw: "false", want: BoolValue(false)},
		{name: "boolean from zero", col: Column{Name: "b", Type: TypeBoolean}, raw: 0, want: BoolValue(false)},
		{name: "boolean rejects two", col: Column{Name: "b", Type: TypeBoolean}, raw: 2, wantErr: true},
		{name: "boolean rejects word", col: Column{Name: "b", Type: TypeBoolean}, raw: "maybe", wantErr: true},

		{
			name: "datetime from rfc3339 with offset",
			col:  Column{Name: "at", Type: TypeDatetime},
			raw:  "2024-03-01T12:00:00+02:00",
			want: TimestampValue(time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)),
		},
		{
			name: "datetime from form input",
			col:  Column{Name: "at", Type: TypeDatetime},
			raw:  "2024-03-01T12:30",
			want: TimestampValue(time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)),
		},
		{
			name: "datetime from date",
			col:  Column{Name: "at", Type: TypeDatetime},
			raw:  "2024-03-01",
			want: TimestampValue(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)),
		},
		{name: "datetime rejects text", col: Column{Name: "at", Type: TypeDatetime}, raw: "yesterday", wantErr: true},

		{name: "json object is canonical", col: Column{Name: "j", Type: TypeJSON}, raw: `{"b":1, "a":[true]}`, want: JSONValue(`{"a":[true],"b":1}`)},
		{name: "json from map", col: Column{Name: "j", Type: TypeJSON}, raw: map[string]any{"k": "v"}, want: JSONValue(`{"k":"v"}`)},
		{name: "json rejects garbage", col: Column{Name: "j", Type: TypeJSON}, raw: `{"a":`, wantErr: true},
		{name: "json rejects trailing data", col: Column{Name: "j", Type: TypeJSON}, raw: `{} {}`, wantErr: true},

		{name: "uuid from string", col: Column{Name: "u", Type: TypeUUID}, raw: id.String(), want: UUIDValue(id)},
		{name: "uuid rejects text", col: Column{Name: "u", Type: TypeUUID}, raw: "not-a-uuid", wantErr: true},

		{name: "decimal from float", col: Column{Name: "p", Type: TypeDecimal}, raw: 9.99, want: DecimalValue("9.99")},
		{name: "decimal with scale pads", col: price, raw: "12.5", want: DecimalValue("12.50")},
		{name: "decimal with scale rounds", col: price, raw: 1.005, want: DecimalValue("1.01")},
		{name: "decimal over precision", col: price, raw: "123456.7", wantErr: true},
		{name: "decimal rejects text", col: price, raw: "cheap", wantErr: true},
		{name: "decimal rejects scale above maximum", col: Column{Name: "p", Type: TypeDecimal, Scale: intPtr(MaxDecimalScale + 1)}, raw: "1.23", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Validate(tt.col, tt.raw)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				if !errors.Is(err, ErrValidation) {
					t.Errorf("Validate() error = %v, want ErrValidation", err)
				}
				var verr *ValidationError
				if errors.As(err, &verr) && verr.Column != tt.col.Name {
					t.Errorf("ValidationError.Column = %q, want %q", verr.Column, tt.col.Name)
				}
				return
			}
			if got != tt.want {
				t.Errorf("Validate() = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestValidate_ValueInputIsRevalidated(t *testing.T) {
	col := Column{Name: "n", Type: TypeInt}
	got, err := Validate(col, TextValue("41"))
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if got != IntValue(41) {
		t.Errorf("Validate() = %#v, want IntValue(41)", got)
	}

	ts := TimestampValue(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	got, err = Validate(Column{Name: "at", Type: TypeDatetime}, ts)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if got != ts {
		t.Errorf("Validate() = %#v, want %#v", got, ts)
	}
}

func TestIsComplete(t *testing.T) {
	tests := []struct {
		name string
		col  Column
		v    Value
		want bool
	}{
		{name: "optional absent", col: Column{Name: "a", Type: TypeText}, v: nil, want: true},
		{name: "required absent", col: Column{Name: "a", Type: TypeText, Required: true}, v: nil, want: false},
		{name: "required blank text", col: Column{Name: "a", Type: TypeText, Required: true}, v: TextValue("  "), want: false},
		{name: "required present", col: Column{Name: "a", Type: TypeText, Required: true}, v: TextValue("x"), want: true},
		{name: "required false boolean", col: Column{Name: "a", Type: TypeBoolean, Required: true}, v: BoolValue(false), want: true},
		{
			name: "auto-increment key absent",
			col:  Column{Name: "id", Type: TypeInt, Required: true, PrimaryKey: true, AutoIncrement: true},
			v:    nil,
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsComplete(tt.col, tt.v); got != tt.want {
				t.Errorf("IsComplete() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestColumn_UnmarshalJSON_Default(t *testing.T) {
	data := `{"id":"c1","name":"active","type":"boolean","required":false,"primaryKey":false,"unique":false,"autoIncrement":false,"defaultValue":true}`
	var col Column
	if err := json.Unmarshal([]byte(data), &col); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if col.Default != BoolValue(true) {
		t.Errorf("Default = %#v, want BoolValue(true)", col.Default)
	}

	bad := `{"name":"count","type":"int","defaultValue":"many"}`
	if err := json.Unmarshal([]byte(bad), &col); err == nil {
		t.Error("Unmarshal() expected error for invalid default")
	}
}

func TestTable_UnmarshalJSON_TypedValues(t *testing.T) {
	src := &Table{
		ID:   "t1",
		Name: "events",
		Columns: []Column{
			{Name: "n", Type: TypeBigint},
			{Name: "at", Type: TypeDatetime},
			{Name: "doc", Type: TypeJSON},
			{Name: "label", Type: TypeText},
		},
		Rows: []Row{{ID: 1, Values: map[string]Value{
			"n":     IntValue(1 << 40),
			"at":    TimestampValue(time.Date(2024, 5, 1, 8, 0, 0, 123, time.UTC)),
			"doc":   JSONValue(`"just a string"`),
			"label": TextValue("123"),
		}}},
		Policies: []RLSPolicy{},
	}
	data, err := json.Marshal(src)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	var got Table
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	for name, want := range src.Rows[0].Values {
		if v := got.Rows[0].Get(name); v != want {
			t.Errorf("row value %q = %#v, want %#v", name, v, want)
		}
	}

	withUnknown := []byte(`{"name":"t","columns":[],"rows":[{"rowId":1,"values":{"ghost":1}}]}`)
	if err := json.Unmarshal(withUnknown, &got); err == nil {
		t.Error("Unmarshal() expected error for value of unknown column")
	}
}
