package jsonschema

import (
	"bytes"
	"encoding/json"
	"fmt"

	santhosh "github.com/santhosh-tekuri/jsonschema/v6"
)

// Validate checks that the JSON document data conforms to the schema.
func (s *Schema) Validate(data []byte) error {
	doc, err := santhosh.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("invalid JSON document: %w", err)
	}
	return s.ValidateValue(doc)
}

// ValidateValue checks that a decoded JSON value (the result of unmarshaling
// into any) conforms to the schema.
func (s *Schema) ValidateValue(value any) error {
	compiled, err := s.compile()
	if err != nil {
		return err
	}
	if err := compiled.Validate(value); err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}
	return nil
}

func (s *Schema) compile() (*santhosh.Schema, error) {
	raw, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema: %w", err)
	}
	doc, err := santhosh.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to parse schema: %w", err)
	}
	compiler := santhosh.NewCompiler()
	if err := compiler.AddResource("schema.json", doc); err != nil {
		return nil, fmt.Errorf("failed to register schema: %w", err)
	}
	compiled, err := compiler.Compile("schema.json")
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema: %w", err)
	}
	return compiled, nil
}
