// Package params validates user-supplied tool arguments against the
// declared parameter schema of a tool specification.
//
// Validation is deliberately permissive about unknown keys: asset
// intelligence may inject extra keys (credentials, connection profile
// fields) that are not part of the user-facing schema. Injected keys
// are exempt from user-parameter validation.
package params

import (
	"fmt"
	"math"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/opspilot/toolgate/pkg/catalog"
)

// ValidationError describes a failed validation with one message per
// violated constraint.
type ValidationError struct {
	Tool     string
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid parameters for %s: %s", e.Tool, strings.Join(e.Problems, "; "))
}

// Validate checks params against the tool's declared schema and returns
// a fully-populated parameter map: user values plus declared defaults
// for absent optional parameters. Pure function, no I/O.
func Validate(spec catalog.ToolSpec, params map[string]interface{}) (map[string]interface{}, error) {
	if params == nil {
		params = map[string]interface{}{}
	}

	schema, err := compileSchema(spec)
	if err != nil {
		return nil, fmt.Errorf("schema for %s: %w", spec.Name, err)
	}

	result, err := schema.Validate(gojsonschema.NewGoLoader(params))
	if err != nil {
		return nil, fmt.Errorf("validating %s: %w", spec.Name, err)
	}
	if !result.Valid() {
		verr := &ValidationError{Tool: spec.Name}
		for _, desc := range result.Errors() {
			verr.Problems = append(verr.Problems, desc.String())
		}
		return nil, verr
	}

	validated := make(map[string]interface{}, len(params)+len(spec.Parameters))
	for k, v := range params {
		validated[k] = v
	}

	for _, p := range spec.Parameters {
		v, present := validated[p.Name]
		if !present {
			if p.Default != nil {
				validated[p.Name] = p.Default
			}
			continue
		}
		if p.Type == catalog.TypeInteger {
			validated[p.Name] = coerceInteger(v)
		}
	}

	return validated, nil
}

// compileSchema builds a JSON Schema from the declared parameters.
// additionalProperties stays open on purpose (see package comment).
func compileSchema(spec catalog.ToolSpec) (*gojsonschema.Schema, error) {
	properties := make(map[string]interface{}, len(spec.Parameters))
	var required []string

	for _, p := range spec.Parameters {
		prop := map[string]interface{}{}
		switch p.Type {
		case catalog.TypeString:
			prop["type"] = "string"
			if p.Pattern != "" {
				prop["pattern"] = p.Pattern
			}
		case catalog.TypeInteger:
			prop["type"] = "integer"
			if p.MinValue != nil {
				prop["minimum"] = *p.MinValue
			}
			if p.MaxValue != nil {
				prop["maximum"] = *p.MaxValue
			}
		case catalog.TypeBoolean:
			prop["type"] = "boolean"
		case catalog.TypeEnum:
			prop["type"] = "string"
			prop["enum"] = p.EnumValues
		default:
			return nil, fmt.Errorf("parameter %s has unknown type %q", p.Name, p.Type)
		}
		if p.Description != "" {
			prop["description"] = p.Description
		}
		properties[p.Name] = prop

		if p.Required {
			required = append(required, p.Name)
		}
	}

	schemaMap := map[string]interface{}{
		"type":                 "object",
		"properties":           properties,
		"additionalProperties": true,
	}
	if len(required) > 0 {
		schemaMap["required"] = required
	}

	return gojsonschema.NewSchema(gojsonschema.NewGoLoader(schemaMap))
}

// coerceInteger narrows JSON numbers to int64 where they are whole.
// Values arriving over HTTP decode as float64.
func coerceInteger(v interface{}) interface{} {
	switch n := v.(type) {
	case float64:
		if n == math.Trunc(n) {
			return int64(n)
		}
	case float32:
		if float64(n) == math.Trunc(float64(n)) {
			return int64(n)
		}
	case int:
		return int64(n)
	}
	return v
}
