package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// metaSchema describes the top-level shape of a persisted model file. It
// intentionally does not attempt to fully validate every PathComponent
// variant's field set — that finer-grained validation happens naturally
// while decoding into typed records — but it does catch the most common
// forms of a hand-edited or truncated model file before decoding starts.
const metaSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["paths", "rhoRelations"],
  "properties": {
    "paths": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["path", "type", "order"],
        "properties": {
          "path": {
            "type": "array",
            "items": {
              "type": "object",
              "required": ["compType"],
              "properties": {
                "compType": {
                  "enum": ["require", "accessProp", "writeProp", "arg", "call", "new"]
                }
              }
            }
          },
          "order": {"type": "integer", "minimum": 0}
        }
      }
    },
    "rhoRelations": {
      "type": "array",
      "items": {
        "type": "array",
        "minItems": 2,
        "maxItems": 2
      }
    }
  }
}`

var (
	compileOnce sync.Once
	compiled    *jsonschema.Schema
	compileErr  error
)

func schema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		c := jsonschema.NewCompiler()
		doc, err := jsonschema.UnmarshalJSON(bytes.NewReader([]byte(metaSchema)))
		if err != nil {
			compileErr = fmt.Errorf("model: parsing embedded meta-schema: %w", err)
			return
		}
		const resourceName = "noregrets://model.schema.json"
		if err := c.AddResource(resourceName, doc); err != nil {
			compileErr = fmt.Errorf("model: registering meta-schema: %w", err)
			return
		}
		compiled, compileErr = c.Compile(resourceName)
	})
	return compiled, compileErr
}

// ValidateSchema checks raw model bytes against the package's meta-schema.
func ValidateSchema(data []byte) error {
	sch, err := schema()
	if err != nil {
		return err
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	return sch.Validate(v)
}
