package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/nimburion/docgate/pkg/document"
	"gopkg.in/yaml.v3"
)

// Output formats
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
)

func validateFormat(format string) error {
	switch format {
	case FormatJSON, FormatYAML:
		return nil
	}
	return fmt.Errorf("unsupported output format %q (supported: json, yaml)", format)
}

func render(w io.Writer, format string, v any) error {
	switch format {
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		return enc.Close()
	default:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("encode json: %w", err)
		}
		return nil
	}
}

func flattenAll(docs []document.Document) []map[string]any {
	out := make([]map[string]any, len(docs))
	for i, d := range docs {
		out[i] = d.Flatten()
	}
	return out
}

type pageOutput struct {
	Data   []map[string]any `json:"data" yaml:"data"`
	Cursor string           `json:"cursor,omitempty" yaml:"cursor,omitempty"`
}

type resultOutput struct {
	OK bool   `json:"ok" yaml:"ok"`
	ID string `json:"id,omitempty" yaml:"id,omitempty"`
}
