// Package schema derives Anthropic tool input schemas from Go structs.
package schema

import (
	"encoding/json"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/invopop/jsonschema"
)

var reflector = jsonschema.Reflector{
	ExpandedStruct:            true,
	DoNotReference:            true,
	AllowAdditionalProperties: true,
}

// Generate produces an anthropic.ToolInputSchemaParam from a Go struct type T.
// It uses struct tags (json, jsonschema) to derive the JSON Schema.
func Generate[T any]() anthropic.ToolInputSchemaParam {
	var zero T
	root := reflector.Reflect(&zero)

	return anthropic.ToolInputSchemaParam{
		Properties: properties(root),
		Required:   root.Required,
	}
}

// properties flattens an ordered property map into map[string]any.
func properties(s *jsonschema.Schema) map[string]any {
	if s.Properties == nil || s.Properties.Len() == 0 {
		return nil
	}
	props := make(map[string]any, s.Properties.Len())
	for pair := s.Properties.Oldest(); pair != nil; pair = pair.Next() {
		props[pair.Key] = property(pair.Value)
	}
	return props
}

func property(s *jsonschema.Schema) map[string]any {
	m := make(map[string]any)

	if s.Type != "" {
		m["type"] = s.Type
	}
	// Nullable pointers reflect as anyOf [T, null].
	for _, sub := range s.AnyOf {
		if sub.Type != "null" && sub.Type != "" {
			m["type"] = sub.Type
			break
		}
	}
	if s.Description != "" {
		m["description"] = s.Description
	}
	if s.Default != nil {
		m["default"] = s.Default
	}
	if len(s.Enum) > 0 {
		m["enum"] = s.Enum
	}
	if s.Minimum != "" {
		m["minimum"] = s.Minimum
	}
	if s.Properties != nil {
		m["type"] = "object"
		m["properties"] = properties(s)
		if len(s.Required) > 0 {
			m["required"] = s.Required
		}
	}
	if s.Items != nil {
		m["items"] = property(s.Items)
	}
	return m
}

// GenerateJSON returns the schema for T as raw JSON.
func GenerateJSON[T any]() (json.RawMessage, error) {
	return json.Marshal(Generate[T]())
}
