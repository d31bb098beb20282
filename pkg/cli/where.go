package cli

import (
	"fmt"
	"strings"

	"github.com/nimburion/docgate/pkg/document"
	"gopkg.in/yaml.v3"
)

// ParseWhere parses a "field op value" expression. The value is decoded as
// YAML, so 3 is a number, true a boolean, [a, b] a list and '3' a string.
// An omitted value is an empty string.
func ParseWhere(expr string) (document.Filter, error) {
	rest := strings.TrimSpace(expr)
	field, rest := cutToken(rest)
	opText, rest := cutToken(rest)
	if field == "" || opText == "" {
		return document.Filter{}, fmt.Errorf("invalid where expression %q: want \"field op value\"", expr)
	}
	op, err := document.ParseOperator(opText)
	if err != nil {
		return document.Filter{}, fmt.Errorf("invalid where expression %q: %w", expr, err)
	}
	value, err := parseValue(rest)
	if err != nil {
		return document.Filter{}, fmt.Errorf("invalid where value in %q: %w", expr, err)
	}
	return document.Where(field, op, value), nil
}

func cutToken(s string) (token, rest string) {
	s = strings.TrimLeft(s, " \t")
	if i := strings.IndexAny(s, " \t"); i >= 0 {
		return s[:i], strings.TrimSpace(s[i+1:])
	}
	return s, ""
}

func parseValue(text string) (any, error) {
	if text == "" {
		return "", nil
	}
	var v any
	if err := yaml.Unmarshal([]byte(text), &v); err != nil {
		return nil, err
	}
	return v, nil
}

// parseFields decodes a JSON or YAML object into a field map.
func parseFields(raw []byte) (map[string]any, error) {
	var fields map[string]any
	if err := yaml.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("decode document fields: %w", err)
	}
	if fields == nil {
		return nil, fmt.Errorf("document fields must be a non-empty object")
	}
	return fields, nil
}
