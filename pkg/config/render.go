package config

import (
	"fmt"
	"reflect"
	"time"

	"gopkg.in/yaml.v3"
)

const redactedValue = "***"

// secretFields are masked by Redacted wherever they appear. MongoDB URLs are
// included because they usually embed credentials.
var secretFields = map[string]bool{
	"api_key":           true,
	"access_key_id":     true,
	"secret_access_key": true,
	"session_token":     true,
	"url":               true,
}

// Validate checks the configuration with the default loader rules.
func (c *Config) Validate() error {
	return (&ViperLoader{}).Validate(c)
}

// String renders the full, unmasked configuration as YAML.
func (c *Config) String() string {
	return render(toTree(reflect.ValueOf(*c), reflect.Value{}, false))
}

// Redacted renders the configuration as YAML with every known secret field
// masked, plus every value the secrets file set.
func (c *Config) Redacted(secrets *Config) string {
	mask := reflect.Value{}
	if secrets != nil {
		mask = reflect.ValueOf(*secrets)
	}
	return render(toTree(reflect.ValueOf(*c), mask, true))
}

func render(tree yaml.Node) string {
	out, err := yaml.Marshal(&tree)
	if err != nil {
		return fmt.Sprintf("<unrenderable config: %v>", err)
	}
	return string(out)
}

// toTree converts a config struct into a YAML mapping node keyed by the
// mapstructure tags, so the output reads like the config file.
func toTree(v, mask reflect.Value, redact bool) yaml.Node {
	node := yaml.Node{Kind: yaml.MappingNode}
	t := v.Type()
	for i := 0; i < v.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		name := field.Tag.Get("mapstructure")
		if name == "" || name == "-" {
			name = field.Name
		}

		value := v.Field(i)
		var maskValue reflect.Value
		if mask.IsValid() {
			maskValue = mask.Field(i)
		}

		key := yaml.Node{Kind: yaml.ScalarNode, Value: name}
		var val yaml.Node
		switch {
		case value.Kind() == reflect.Struct:
			val = toTree(value, maskValue, redact)
		case redact && (isSet(maskValue) || (secretFields[name] && isSet(value))):
			val = yaml.Node{Kind: yaml.ScalarNode, Value: redactedValue}
		default:
			val = scalar(value)
		}
		node.Content = append(node.Content, &key, &val)
	}
	return node
}

func scalar(v reflect.Value) yaml.Node {
	if d, ok := v.Interface().(time.Duration); ok {
		return yaml.Node{Kind: yaml.ScalarNode, Value: d.String()}
	}
	var n yaml.Node
	if err := n.Encode(v.Interface()); err != nil {
		return yaml.Node{Kind: yaml.ScalarNode, Value: fmt.Sprint(v.Interface())}
	}
	return n
}

// isSet reports whether v holds a non-zero value.
func isSet(v reflect.Value) bool {
	return v.IsValid() && !v.IsZero()
}
