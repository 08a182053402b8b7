package llm

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// CompileSchema compiles a schema built by BuildReadingJSONSchema.
func CompileSchema(schemaMap map[string]any) (*jsonschema.Schema, error) {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	if err := compiler.AddResource("reading.json", bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("reading.json")
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return schema, nil
}

// ValidateJSONAgainstSchema validates "data" against "schemaMap".
func ValidateJSONAgainstSchema(schemaMap map[string]any, data []byte) error {
	schema, err := CompileSchema(schemaMap)
	if err != nil {
		return err
	}
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("unmarshal data: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("json does not match schema: %w", err)
	}
	return nil
}
