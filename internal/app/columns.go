package app

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"databox/internal/databox"
)

// ParseColumnSpec parses a column written as
//
//	name:type[(len[,scale])][:pk][:autoinc][:required][:unique][:default=V][:fk=table.column]
//
// A missing type means varchar. The default value runs to the next flag, so
// it may itself contain colons (datetimes).
func ParseColumnSpec(spec string) (databox.Column, error) {
	parts := strings.Split(spec, ":")
	col := databox.Column{Name: strings.TrimSpace(parts[0])}
	if col.Name == "" {
		return col, fmt.Errorf("column %q: name is required", spec)
	}
	if len(parts) > 1 {
		if err := parseColumnType(&col, strings.TrimSpace(parts[1])); err != nil {
			return col, fmt.Errorf("column %q: %w", col.Name, err)
		}
	}

	var def *strings.Builder
	for _, raw := range parts[min(2, len(parts)):] {
		flag := strings.TrimSpace(raw)
		if def != nil && !isColumnFlag(flag) {
			def.WriteString(":" + raw)
			continue
		}
		if def != nil {
			col.Default = databox.TextValue(def.String())
			def = nil
		}
		key, value, _ := strings.Cut(flag, "=")
		switch strings.ToLower(key) {
		case "pk", "primary":
			col.PrimaryKey = true
		case "autoinc", "auto":
			col.AutoIncrement = true
		case "required", "notnull":
			col.Required = true
		case "unique":
			col.Unique = true
		case "default":
			def = &strings.Builder{}
			def.WriteString(value)
		case "fk":
			table, column, ok := strings.Cut(value, ".")
			if !ok || table == "" || column == "" {
				return col, fmt.Errorf("column %q: foreign key must be table.column", col.Name)
			}
			col.ForeignKey = &databox.ForeignKey{Table: table, Column: column}
		default:
			return col, fmt.Errorf("column %q: unknown flag %q", col.Name, flag)
		}
	}
	if def != nil {
		col.Default = databox.TextValue(def.String())
	}
	return col, nil
}

func isColumnFlag(s string) bool {
	key, _, _ := strings.Cut(s, "=")
	switch strings.ToLower(key) {
	case "pk", "primary", "autoinc", "auto", "required", "notnull", "unique", "default", "fk":
		return true
	}
	return false
}

// parseColumnType reads "type" or "type(len)" or "type(len,scale)".
func parseColumnType(col *databox.Column, s string) error {
	if s == "" {
		return nil
	}
	name, args, hasArgs := strings.Cut(s, "(")
	col.Type = databox.ColumnType(strings.ToLower(strings.TrimSpace(name)))
	if !hasArgs {
		return nil
	}
	args, ok := strings.CutSuffix(args, ")")
	if !ok {
		return fmt.Errorf("unterminated type arguments in %q", s)
	}
	lenArg, scaleArg, hasScale := strings.Cut(args, ",")
	n, err := strconv.Atoi(strings.TrimSpace(lenArg))
	if err != nil {
		return fmt.Errorf("invalid length in %q", s)
	}
	col.Length = &n
	if hasScale {
		sc, err := strconv.Atoi(strings.TrimSpace(scaleArg))
		if err != nil {
			return fmt.Errorf("invalid scale in %q", s)
		}
		col.Scale = &sc
	}
	return nil
}

// ParseColumns parses every spec in order.
func ParseColumns(specs []string) ([]databox.Column, error) {
	cols := make([]databox.Column, 0, len(specs))
	for _, s := range specs {
		c, err := ParseColumnSpec(s)
		if err != nil {
			return nil, err
		}
		cols = append(cols, c)
	}
	return cols, nil
}

// ParseAssignments turns CLI arguments into a row payload.
// "name=value" passes value as a string for the schema to coerce.
// "name:=json" decodes the JSON, so "price:=null" clears a field and
// "meta:={...}" stores a document.
func ParseAssignments(args []string) (map[string]any, error) {
	payload := make(map[string]any, len(args))
	for _, arg := range args {
		if name, raw, ok := strings.Cut(arg, ":="); ok && !strings.Contains(name, "=") {
			var v any
			dec := json.NewDecoder(strings.NewReader(raw))
			dec.UseNumber()
			if err := dec.Decode(&v); err != nil {
				return nil, fmt.Errorf("field %q: invalid json: %w", name, err)
			}
			if err := addField(payload, name, v); err != nil {
				return nil, err
			}
			continue
		}
		name, value, ok := strings.Cut(arg, "=")
		if !ok {
			return nil, fmt.Errorf("expected name=value, got %q", arg)
		}
		if err := addField(payload, name, value); err != nil {
			return nil, err
		}
	}
	return payload, nil
}

func addField(payload map[string]any, name string, v any) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("field name is required")
	}
	if _, dup := payload[name]; dup {
		return fmt.Errorf("field %q given twice", name)
	}
	payload[name] = v
	return nil
}
