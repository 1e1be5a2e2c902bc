package databox

import (
	"context"
	"math"
	"slices"
	"strings"
)

// CreateTable adds a table to a project. Columns with blank names are
// dropped; the remaining columns get fresh ids.
func (w *Workspace) CreateTable(ctx context.Context, projectID, name string, columns []Column) (*Table, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, invalid("name", "table name is required")
	}
	cols, err := prepareColumns(columns)
	if err != nil {
		return nil, err
	}

	var created *Table
	err = w.mutate(ctx, "CreateTable", func(g *graph) (bool, error) {
		p, err := g.project(projectID)
		if err != nil {
			return false, err
		}
		if _, exists := p.TableByName(name); exists {
			return false, invalid("name", "table %q already exists", name)
		}
		now := w.clock.Now().UTC()
		t := &Table{
			ID:        w.newID(g),
			Name:      name,
			ProjectID: p.ID,
			Columns:   make([]Column, len(cols)),
			Rows:      []Row{},
			CreatedAt: now,
			UpdatedAt: now,
			Policies:  []RLSPolicy{},
			NextRowID: 1,
		}
		for i, c := range cols {
			c.ID = w.idgen.New()
			t.Columns[i] = c
		}
		p.Tables = append(p.Tables, t)
		p.UpdatedAt = now
		created = t
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return created.Clone(), nil
}

// prepareColumns normalizes and checks a column list for CreateTable.
func prepareColumns(columns []Column) ([]Column, error) {
	out := make([]Column, 0, len(columns))
	seen := make(map[string]bool, len(columns))
	autoInc := 0
	for _, c := range columns {
		c = c.Clone()
		c.Name = strings.TrimSpace(c.Name)
		if c.Name == "" {
			continue
		}
		if seen[c.Name] {
			return nil, invalid(c.Name, "duplicate column name")
		}
		seen[c.Name] = true

		if c.Type == "" {
			c.Type = TypeVarchar
		}
		if !c.Type.Valid() {
			return nil, invalid(c.Name, "unknown column type %q", c.Type)
		}
		if c.Length != nil && *c.Length < 1 {
			return nil, invalid(c.Name, "length must be positive")
		}
		if c.Type == TypeDecimal && c.Length != nil && *c.Length > MaxDecimalDigits {
			return nil, invalid(c.Name, "decimal length must be at most %d", MaxDecimalDigits)
		}
		if c.Scale != nil {
			if c.Type != TypeDecimal {
				return nil, invalid(c.Name, "scale is only valid for decimal columns")
			}
			if *c.Scale < 0 || *c.Scale > MaxDecimalScale || (c.Length != nil && *c.Scale > *c.Length) {
				return nil, invalid(c.Name, "scale must be between 0 and %d", MaxDecimalScale)
			}
		}
		if c.AutoIncrement {
			if !c.Type.Integer() {
				return nil, invalid(c.Name, "auto-increment requires an integer column")
			}
			if c.PrimaryKey {
				autoInc++
			}
		}
		if autoInc > 1 {
			return nil, invalid(c.Name, "only one auto-increment primary key is allowed")
		}
		if c.Default != nil {
			if c.IsAutoIncrement() {
				return nil, invalid(c.Name, "auto-increment columns cannot have a default")
			}
			v, err := Validate(c, c.Default)
			if err != nil {
				return nil, err
			}
			c.Default = v
		}
		out = append(out, c)
	}
	return out, nil
}

// DeleteTable removes a table and all of its rows. Deleting a table that
// does not exist is a no-op.
func (w *Workspace) DeleteTable(ctx context.Context, projectID, tableID string) error {
	return w.mutate(ctx, "DeleteTable", func(g *graph) (bool, error) {
		p, err := g.project(projectID)
		if err != nil {
			return false, err
		}
		for i, t := range p.Tables {
			if t.ID == tableID {
				p.Tables = append(p.Tables[:i], p.Tables[i+1:]...)
				p.UpdatedAt = w.clock.Now().UTC()
				return true, nil
			}
		}
		return false, nil
	})
}

// GetTable returns a copy of a table.
func (w *Workspace) GetTable(projectID, tableID string) (*Table, error) {
	var out *Table
	err := w.read(func(g *graph) error {
		_, t, err := g.table(projectID, tableID)
		if err != nil {
			return err
		}
		out = t.Clone()
		return nil
	})
	return out, err
}

// FindTable resolves a table by id, falling back to its name.
func (w *Workspace) FindTable(projectID, ref string) (*Table, error) {
	var out *Table
	err := w.read(func(g *graph) error {
		p, err := g.project(projectID)
		if err != nil {
			return err
		}
		t, ok := p.Table(ref)
		if !ok {
			t, ok = p.TableByName(ref)
		}
		if !ok {
			return &NotFoundError{Kind: "table", ID: ref}
		}
		out = t.Clone()
		return nil
	})
	return out, err
}

// ToggleRLS sets the table's row-level-security flag.
func (w *Workspace) ToggleRLS(ctx context.Context, projectID, tableID string, enabled bool) error {
	return w.setTableFlag(ctx, "ToggleRLS", projectID, tableID, func(t *Table) *bool { return &t.RLSEnabled }, enabled)
}

// SetRealtime sets the table's realtime flag.
func (w *Workspace) SetRealtime(ctx context.Context, projectID, tableID string, enabled bool) error {
	return w.setTableFlag(ctx, "SetRealtime", projectID, tableID, func(t *Table) *bool { return &t.IsRealtime }, enabled)
}

func (w *Workspace) setTableFlag(ctx context.Context, op, projectID, tableID string, field func(*Table) *bool, enabled bool) error {
	return w.mutate(ctx, op, func(g *graph) (bool, error) {
		_, t, err := g.table(projectID, tableID)
		if err != nil {
			return false, err
		}
		flag := field(t)
		if *flag == enabled {
			return false, nil
		}
		*flag = enabled
		t.UpdatedAt = w.clock.Now().UTC()
		return true, nil
	})
}

// AddRow validates payload against the table schema and appends a row.
// Auto-increment primary keys are assigned by the store and may not be supplied.
func (w *Workspace) AddRow(ctx context.Context, projectID, tableID string, payload map[string]any) (Row, error) {
	var row Row
	err := w.mutate(ctx, "AddRow", func(g *graph) (bool, error) {
		_, t, err := g.table(projectID, tableID)
		if err != nil {
			return false, err
		}
		row, err = t.insert(payload)
		if err != nil {
			return false, err
		}
		t.UpdatedAt = w.clock.Now().UTC()
		return true, nil
	})
	if err != nil {
		return Row{}, err
	}
	return row.Clone(), nil
}

// UpdateRow merges payload into the row at position index. A nil payload
// value clears the field. The row keeps its position and id.
func (w *Workspace) UpdateRow(ctx context.Context, projectID, tableID string, index int, payload map[string]any) (Row, error) {
	var row Row
	err := w.mutate(ctx, "UpdateRow", func(g *graph) (bool, error) {
		_, t, err := g.table(projectID, tableID)
		if err != nil {
			return false, err
		}
		row, err = t.update(index, payload)
		if err != nil {
			return false, err
		}
		t.UpdatedAt = w.clock.Now().UTC()
		return true, nil
	})
	if err != nil {
		return Row{}, err
	}
	return row.Clone(), nil
}

// DeleteRow removes the row at position index. Later rows shift down by one,
// so indexes obtained before the call must be re-resolved afterwards.
func (w *Workspace) DeleteRow(ctx context.Context, projectID, tableID string, index int) error {
	return w.mutate(ctx, "DeleteRow", func(g *graph) (bool, error) {
		_, t, err := g.table(projectID, tableID)
		if err != nil {
			return false, err
		}
		if err := t.remove(index); err != nil {
			return false, err
		}
		t.UpdatedAt = w.clock.Now().UTC()
		return true, nil
	})
}

// RowIndex returns the current position of the row with the given id.
func (w *Workspace) RowIndex(projectID, tableID string, rowID int64) (int, error) {
	index := -1
	err := w.read(func(g *graph) error {
		_, t, err := g.table(projectID, tableID)
		if err != nil {
			return err
		}
		i, ok := t.RowIndex(rowID)
		if !ok {
			return &NotFoundError{Kind: "row", ID: rowRef(rowID)}
		}
		index = i
		return nil
	})
	return index, err
}

// UpdateRowByID is UpdateRow addressed by stable row id.
func (w *Workspace) UpdateRowByID(ctx context.Context, projectID, tableID string, rowID int64, payload map[string]any) (Row, error) {
	var row Row
	err := w.mutate(ctx, "UpdateRow", func(g *graph) (bool, error) {
		_, t, err := g.table(projectID, tableID)
		if err != nil {
			return false, err
		}
		i, ok := t.RowIndex(rowID)
		if !ok {
			return false, &NotFoundError{Kind: "row", ID: rowRef(rowID)}
		}
		row, err = t.update(i, payload)
		if err != nil {
			return false, err
		}
		t.UpdatedAt = w.clock.Now().UTC()
		return true, nil
	})
	if err != nil {
		return Row{}, err
	}
	return row.Clone(), nil
}

// DeleteRowByID is DeleteRow addressed by stable row id.
func (w *Workspace) DeleteRowByID(ctx context.Context, projectID, tableID string, rowID int64) error {
	return w.mutate(ctx, "DeleteRow", func(g *graph) (bool, error) {
		_, t, err := g.table(projectID, tableID)
		if err != nil {
			return false, err
		}
		i, ok := t.RowIndex(rowID)
		if !ok {
			return false, &NotFoundError{Kind: "row", ID: rowRef(rowID)}
		}
		if err := t.remove(i); err != nil {
			return false, err
		}
		t.UpdatedAt = w.clock.Now().UTC()
		return true, nil
	})
}

func (t *Table) insert(payload map[string]any) (Row, error) {
	if err := t.checkKnown(payload); err != nil {
		return Row{}, err
	}

	values := make(map[string]Value, len(t.Columns))
	var autoCol *Column
	for i := range t.Columns {
		col := t.Columns[i]
		raw := payload[col.Name]
		if col.IsAutoIncrement() {
			if !isBlank(raw) {
				return Row{}, invalid(col.Name, "value is assigned automatically")
			}
			autoCol = &t.Columns[i]
			continue
		}
		v, err := Validate(col, raw)
		if err != nil {
			return Row{}, err
		}
		if v == nil {
			v = missingValue(col)
		}
		if !IsComplete(col, v) {
			return Row{}, invalid(col.Name, "value is required")
		}
		if v != nil {
			values[col.Name] = v
		}
	}

	next := t.LastInsertID + 1
	if autoCol != nil {
		if autoCol.Type == TypeInt && next > math.MaxInt32 {
			return Row{}, invalid(autoCol.Name, "auto-increment sequence exhausted")
		}
		values[autoCol.Name] = IntValue(next)
	}
	if err := t.checkKeys(values, -1); err != nil {
		return Row{}, err
	}

	if t.NextRowID < 1 {
		t.NextRowID = 1
	}
	row := Row{ID: t.NextRowID, Values: values}
	t.NextRowID++
	if autoCol != nil {
		t.LastInsertID = next
	}
	t.Rows = append(t.Rows, row)
	t.RowCount = len(t.Rows)
	return row, nil
}

func (t *Table) update(index int, payload map[string]any) (Row, error) {
	if index < 0 || index >= len(t.Rows) {
		return Row{}, &IndexOutOfRangeError{Index: index, Len: len(t.Rows)}
	}
	if err := t.checkKnown(payload); err != nil {
		return Row{}, err
	}

	old := t.Rows[index]
	next := old.Clone()
	for name, raw := range payload {
		col, _ := t.Column(name)
		if col.IsAutoIncrement() {
			if isBlank(raw) {
				continue
			}
			v, err := Validate(col, raw)
			if err != nil {
				return Row{}, err
			}
			if cur := old.Values[name]; cur == nil || valueKey(cur) != valueKey(v) {
				return Row{}, invalid(name, "auto-increment value cannot be changed")
			}
			continue
		}
		v, err := Validate(col, raw)
		if err != nil {
			return Row{}, err
		}
		if v == nil {
			delete(next.Values, name)
			continue
		}
		next.Values[name] = v
	}

	for _, col := range t.Columns {
		if !IsComplete(col, next.Values[col.Name]) {
			return Row{}, invalid(col.Name, "value is required")
		}
	}
	if err := t.checkKeys(next.Values, index); err != nil {
		return Row{}, err
	}
	t.Rows[index] = next
	return next, nil
}

func (t *Table) remove(index int) error {
	if index < 0 || index >= len(t.Rows) {
		return &IndexOutOfRangeError{Index: index, Len: len(t.Rows)}
	}
	t.Rows = append(t.Rows[:index], t.Rows[index+1:]...)
	t.RowCount = len(t.Rows)
	return nil
}

// checkKnown rejects payload keys that do not name a column.
func (t *Table) checkKnown(payload map[string]any) error {
	for name := range payload {
		if _, ok := t.Column(name); !ok {
			return invalid(name, "unknown column")
		}
	}
	return nil
}

// checkKeys enforces unique columns individually and the primary key as a
// whole against every row except the one at position skip.
func (t *Table) checkKeys(values map[string]Value, skip int) error {
	var pk []string
	for _, col := range t.Columns {
		if col.PrimaryKey {
			pk = append(pk, col.Name)
		}
		if !col.Unique {
			continue
		}
		v := values[col.Name]
		if v == nil {
			continue
		}
		for i, r := range t.Rows {
			if i == skip {
				continue
			}
			if other := r.Values[col.Name]; other != nil && valueKey(other) == valueKey(v) {
				return invalid(col.Name, "duplicate value %q", v.String())
			}
		}
	}

	key, ok := compositeKey(values, pk)
	if !ok {
		return nil
	}
	for i, r := range t.Rows {
		if i == skip {
			continue
		}
		if other, ok := compositeKey(r.Values, pk); ok && slices.Equal(other, key) {
			shown := make([]string, len(pk))
			for j, name := range pk {
				shown[j] = values[name].String()
			}
			return invalid(strings.Join(pk, ","), "duplicate primary key (%s)", strings.Join(shown, ", "))
		}
	}
	return nil
}

// compositeKey returns the comparison keys of cols in order. ok is false
// when any value is absent.
func compositeKey(values map[string]Value, cols []string) ([]string, bool) {
	if len(cols) == 0 {
		return nil, false
	}
	parts := make([]string, len(cols))
	for i, name := range cols {
		v := values[name]
		if v == nil {
			return nil, false
		}
		parts[i] = valueKey(v)
	}
	return parts, true
}

// missingValue is stored when a payload omits a column.
func missingValue(col Column) Value {
	if col.Default != nil {
		return col.Default
	}
	if col.Type == TypeBoolean && !col.Required {
		return BoolValue(false)
	}
	return nil
}

func isBlank(raw any) bool {
	if raw == nil {
		return true
	}
	s, ok := raw.(string)
	return ok && strings.TrimSpace(s) == ""
}
