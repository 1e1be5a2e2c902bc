package databox

import (
	"encoding/json"
	"fmt"
	"time"
)

// Row is one record of a table. ID is assigned by the store, stays with the
// row for its whole life and is never handed out again after deletion.
type Row struct {
	ID     int64            `json:"rowId"`
	Values map[string]Value `json:"values"`
}

// Get returns the value stored under the named column, or nil when absent.
func (r Row) Get(column string) Value {
	return r.Values[column]
}

// Clone returns a copy of the row. Values are immutable so only the map is copied.
func (r Row) Clone() Row {
	values := make(map[string]Value, len(r.Values))
	for k, v := range r.Values {
		values[k] = v
	}
	return Row{ID: r.ID, Values: values}
}

// Table is a user-defined schema plus the rows conforming to it.
type Table struct {
	ID         string      `json:"id"`
	Name       string      `json:"name"`
	ProjectID  string      `json:"projectId"`
	Columns    []Column    `json:"columns"`
	Rows       []Row       `json:"rows"`
	CreatedAt  time.Time   `json:"createdAt"`
	UpdatedAt  time.Time   `json:"updatedAt"`
	RowCount   int         `json:"rowCount"`
	IsRealtime bool        `json:"isRealtime"`
	RLSEnabled bool        `json:"rlsEnabled"`
	Policies   []RLSPolicy `json:"policies"`

	// NextRowID is the stable id the next inserted row receives.
	NextRowID int64 `json:"nextRowId"`
	// LastInsertID is the last auto-increment value handed out.
	LastInsertID int64 `json:"lastInsertId"`
}

// Column returns the column with the given name.
func (t *Table) Column(name string) (Column, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// AutoIncrementColumn returns the table's auto-increment primary key, if any.
func (t *Table) AutoIncrementColumn() (Column, bool) {
	for _, c := range t.Columns {
		if c.IsAutoIncrement() {
			return c, true
		}
	}
	return Column{}, false
}

// RowIndex returns the current position of the row with the given stable id.
func (t *Table) RowIndex(rowID int64) (int, bool) {
	for i, r := range t.Rows {
		if r.ID == rowID {
			return i, true
		}
	}
	return -1, false
}

// Clone returns a deep copy of the table.
func (t *Table) Clone() *Table {
	out := *t
	out.Columns = nil
	if t.Columns != nil {
		out.Columns = make([]Column, len(t.Columns))
		for i, c := range t.Columns {
			out.Columns[i] = c.Clone()
		}
	}
	out.Rows = nil
	if t.Rows != nil {
		out.Rows = make([]Row, len(t.Rows))
		for i, r := range t.Rows {
			out.Rows[i] = r.Clone()
		}
	}
	out.Policies = clonePolicies(t.Policies)
	return &out
}

// UnmarshalJSON decodes rows against the table's columns so every cell comes
// back with the same Value type it was stored with.
func (t *Table) UnmarshalJSON(data []byte) error {
	type plain Table
	var aux struct {
		plain
		Rows []struct {
			ID     int64                      `json:"rowId"`
			Values map[string]json.RawMessage `json:"values"`
		} `json:"rows"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*t = Table(aux.plain)
	t.Rows = nil
	if aux.Rows == nil {
		return nil
	}

	t.Rows = make([]Row, 0, len(aux.Rows))
	for _, ar := range aux.Rows {
		row := Row{ID: ar.ID, Values: make(map[string]Value, len(ar.Values))}
		for name, rawValue := range ar.Values {
			col, ok := t.Column(name)
			if !ok {
				return fmt.Errorf("table %q row %d: unknown column %q", t.Name, ar.ID, name)
			}
			raw, err := decodeRaw(rawValue)
			if err != nil {
				return fmt.Errorf("table %q row %d: decoding %q: %w", t.Name, ar.ID, name, err)
			}
			v, err := Validate(col, raw)
			if err != nil {
				return fmt.Errorf("table %q row %d: %w", t.Name, ar.ID, err)
			}
			if v != nil {
				row.Values[name] = v
			}
		}
		t.Rows = append(t.Rows, row)
	}
	return nil
}
