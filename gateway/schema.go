package gateway

import (
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// runTestSchema validates the POST /run-test payload shape before any
// lifecycle interaction; field-level semantics are re-checked by the model.
const runTestSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["deployment_url", "api_key", "test_suite", "models"],
  "properties": {
    "deployment_url": {"type": "string", "minLength": 1},
    "api_key": {"type": "string", "minLength": 1},
    "test_suite": {"type": "string", "minLength": 1},
    "models": {
      "type": "array",
      "items": {"type": "string", "minLength": 1},
      "minItems": 1
    },
    "duration_hours": {"type": "number", "exclusiveMinimum": 0},
    "max_failure_rate": {"type": "number", "minimum": 0, "maximum": 1},
    "request_interval_seconds": {"type": "number", "exclusiveMinimum": 0},
    "tuning": {"type": "object"}
  },
  "additionalProperties": false
}`

func compileRunTestSchema() (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("run-test.schema.json", strings.NewReader(runTestSchema)); err != nil {
		return nil, err
	}
	return compiler.Compile("run-test.schema.json")
}
