package app

import (
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"databox/internal/databox"
)

// Export writes projects to w as "json" or "yaml".
func Export(w io.Writer, projects []*databox.Project, format string) error {
	if projects == nil {
		projects = []*databox.Project{}
	}
	switch format {
	case "", "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(projects); err != nil {
			return fmt.Errorf("encoding json: %w", err)
		}
		return nil
	case "yaml", "yml":
		// YAML goes through the JSON form so field names and cell values
		// match the stored record.
		data, err := json.Marshal(projects)
		if err != nil {
			return fmt.Errorf("encoding projects: %w", err)
		}
		var doc any
		if err := json.Unmarshal(data, &doc); err != nil {
			return fmt.Errorf("decoding projects: %w", err)
		}
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return fmt.Errorf("encoding yaml: %w", err)
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown export format %q", format)
	}
}
