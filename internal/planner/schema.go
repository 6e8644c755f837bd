package planner

import (
	"encoding/json"
	"sync"

	"github.com/invopop/jsonschema"
)

var (
	schemaOnce sync.Once
	schemaMap  map[string]any
	schemaErr  error
)

// ResponseSchema returns the JSON schema of Response as a plain map, ready to
// be attached to a structured-output request. Meta keys that model APIs
// reject ($schema, $id) are removed.
func ResponseSchema() (map[string]any, error) {
	schemaOnce.Do(func() {
		reflector := &jsonschema.Reflector{
			DoNotReference:             true,
			ExpandedStruct:             true,
			RequiredFromJSONSchemaTags: false,
		}
		schema := reflector.Reflect(&Response{})
		data, err := json.Marshal(schema)
		if err != nil {
			schemaErr = err
			return
		}
		var out map[string]any
		if err := json.Unmarshal(data, &out); err != nil {
			schemaErr = err
			return
		}
		delete(out, "$schema")
		delete(out, "$id")
		schemaMap = out
	})
	return schemaMap, schemaErr
}

// ResponseSchemaJSON renders ResponseSchema as indented JSON for prompts and
// diagnostics.
func ResponseSchemaJSON() (string, error) {
	schema, err := ResponseSchema()
	if err != nil {
		return "", err
	}
	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}
