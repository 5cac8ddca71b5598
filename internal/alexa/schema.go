package alexa

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schema/directive.json
var directiveSchema []byte

// Validator checks inbound envelopes against the embedded directive schema.
type Validator struct {
	schema *jsonschema.Schema
}

// NewValidator compiles the embedded schema.
func NewValidator() (*Validator, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("directive.json", bytes.NewReader(directiveSchema)); err != nil {
		return nil, fmt.Errorf("loading directive schema: %w", err)
	}
	schema, err := compiler.Compile("directive.json")
	if err != nil {
		return nil, fmt.Errorf("compiling directive schema: %w", err)
	}
	return &Validator{schema: schema}, nil
}

// Validate reports ErrSchemaViolation (wrapping the validation detail) when
// body is not valid JSON or does not match the schema.
func (v *Validator) Validate(body []byte) error {
	var raw any
	if err := json.Unmarshal(body, &raw); err != nil {
		return fmt.Errorf("%w: %w", ErrSchemaViolation, err)
	}
	if err := v.schema.Validate(raw); err != nil {
		return fmt.Errorf("%w: %w", ErrSchemaViolation, err)
	}
	return nil
}
