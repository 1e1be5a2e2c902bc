package databox

import (
	"encoding/json"
	"fmt"
)

// ColumnType is the closed set of column types a table may declare.
type ColumnType string

const (
	TypeVarchar  ColumnType = "varchar"
	TypeInt      ColumnType = "int"
	TypeBigint   ColumnType = "bigint"
	TypeBoolean  ColumnType = "boolean"
	TypeDatetime ColumnType = "datetime"
	TypeText     ColumnType = "text"
	TypeJSON     ColumnType = "json"
	TypeUUID     ColumnType = "uuid"
	TypeDecimal  ColumnType = "decimal"
)

// ColumnTypes lists every supported type in display order.
var ColumnTypes = []ColumnType{
	TypeVarchar, TypeInt, TypeBigint, TypeBoolean, TypeDatetime,
	TypeText, TypeJSON, TypeUUID, TypeDecimal,
}

// Valid reports whether t is one of the supported column types.
func (t ColumnType) Valid() bool {
	for _, c := range ColumnTypes {
		if t == c {
			return true
		}
	}
	return false
}

// Integer reports whether values of this type are whole numbers.
func (t ColumnType) Integer() bool {
	return t == TypeInt || t == TypeBigint
}

// ForeignKey is a declared reference to another table's column.
// The reference is descriptive and never checked.
type ForeignKey struct {
	Table  string `json:"table"`
	Column string `json:"column"`
}

// Decimal precision limits, as in MySQL.
const (
	MaxDecimalDigits = 65
	MaxDecimalScale  = 30
)

// Column describes one field of a table schema.
type Column struct {
	ID            string      `json:"id"`
	Name          string      `json:"name"`
	Type          ColumnType  `json:"type"`
	Length        *int        `json:"length,omitempty"` // varchar: max characters, decimal: total digits
	Scale         *int        `json:"scale,omitempty"`  // decimal: fractional digits
	Required      bool        `json:"required"`
	PrimaryKey    bool        `json:"primaryKey"`
	Unique        bool        `json:"unique"`
	AutoIncrement bool        `json:"autoIncrement"`
	Default       Value       `json:"defaultValue,omitempty"`
	ForeignKey    *ForeignKey `json:"foreignKey,omitempty"`
}

// IsAutoIncrement reports whether the store assigns this column's values.
func (c Column) IsAutoIncrement() bool {
	return c.PrimaryKey && c.AutoIncrement
}

// keyed reports whether values in this column must be distinct across rows.
func (c Column) keyed() bool {
	return c.PrimaryKey || c.Unique
}

// Clone returns a deep copy of the column.
func (c Column) Clone() Column {
	out := c
	if c.Length != nil {
		n := *c.Length
		out.Length = &n
	}
	if c.Scale != nil {
		n := *c.Scale
		out.Scale = &n
	}
	if c.ForeignKey != nil {
		fk := *c.ForeignKey
		out.ForeignKey = &fk
	}
	return out
}

func (c *Column) UnmarshalJSON(data []byte) error {
	type plain Column
	var aux struct {
		plain
		Default json.RawMessage `json:"defaultValue,omitempty"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*c = Column(aux.plain)
	c.Default = nil
	if len(aux.Default) == 0 {
		return nil
	}
	raw, err := decodeRaw(aux.Default)
	if err != nil {
		return fmt.Errorf("decoding default of column %q: %w", c.Name, err)
	}
	v, err := Validate(*c, raw)
	if err != nil {
		return fmt.Errorf("decoding default of column %q: %w", c.Name, err)
	}
	c.Default = v
	return nil
}
