// Package validate wraps JSON Schema compilation and validation for the
// typed documents this subsystem consumes.
package validate

import (
	"fmt"

	"github.com/kaptinlin/jsonschema"
)

// Compile builds a reusable schema from an embedded schema document.
func Compile(schemaData []byte) (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	compiler.AssertFormat = true
	schema, err := compiler.Compile(schemaData)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return schema, nil
}

// ValidateJSON checks data against schema.
func ValidateJSON(schema *jsonschema.Schema, data []byte) error {
	result := schema.ValidateJSON(data)
	if result.IsValid() {
		return nil
	}
	return fmt.Errorf("schema validation failed: %v", result.Errors)
}
