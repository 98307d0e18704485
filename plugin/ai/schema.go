package ai

import (
	"encoding/json"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
)

// Schema describes the structured output a gateway call must return.
type Schema struct {
	// Name identifies the schema to the provider, e.g. "event_extraction".
	Name        string
	Description string
	Definition  *jsonschema.Schema
}

// SchemaFor infers the JSON schema of T from its json and jsonschema struct tags.
func SchemaFor[T any](name, description string) (*Schema, error) {
	def, err := jsonschema.For[T](nil)
	if err != nil {
		return nil, fmt.Errorf("infer schema %s: %w", name, err)
	}
	def.Description = description
	return &Schema{Name: name, Description: description, Definition: def}, nil
}

// MustSchemaFor is like SchemaFor but panics on error. Use for package-level schemas.
func MustSchemaFor[T any](name, description string) *Schema {
	s, err := SchemaFor[T](name, description)
	if err != nil {
		panic(err)
	}
	return s
}

// WithEnum constrains a top-level string property to the given values.
func (s *Schema) WithEnum(property string, values ...string) *Schema {
	prop, ok := s.Definition.Properties[property]
	if !ok {
		panic(fmt.Sprintf("schema %s has no property %q", s.Name, property))
	}
	enum := make([]any, len(values))
	for i, v := range values {
		enum[i] = v
	}
	prop.Enum = enum
	return s
}

// MarshalJSON renders the schema definition.
func (s *Schema) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Definition)
}
