package config

import (
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
	sigsyaml "sigs.k8s.io/yaml"
)

// siteSchema constrains site.yaml. Additional properties are rejected so a
// typoed key fails loudly instead of silently using a default.
const siteSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "title": "site.yaml",
  "type": "object",
  "additionalProperties": false,
  "properties": {
    "notebooksDir": {"type": "string", "minLength": 1},
    "outputDir": {"type": "string", "minLength": 1},
    "mode": {"type": "string", "enum": ["run", "edit"]},
    "marimoVersion": {"type": "string", "pattern": "^[0-9]+\\.[0-9]+\\.[0-9]+$"},
    "pyodideVersion": {"type": "string", "pattern": "^[0-9]+\\.[0-9]+\\.[0-9]+$"},
    "requirementsFile": {"type": "string", "minLength": 1},
    "fontsCssUrl": {"type": "string", "pattern": "^https://"},
    "logging": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "level": {"type": "string", "enum": ["debug", "info", "warn", "error"]}
      }
    }
  }
}`

var compiledSchema = jsonschema.MustCompileString("site.schema.json", siteSchema)

// ValidateYAML checks raw site.yaml bytes against the schema.
func ValidateYAML(data []byte) error {
	jsonData, err := sigsyaml.YAMLToJSON(data)
	if err != nil {
		return fmt.Errorf("converting YAML to JSON: %w", err)
	}

	var doc any
	if err := json.Unmarshal(jsonData, &doc); err != nil {
		return fmt.Errorf("decoding config document: %w", err)
	}
	if doc == nil {
		// An empty file is a valid all-defaults config.
		return nil
	}

	if err := compiledSchema.Validate(doc); err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}
	return nil
}
