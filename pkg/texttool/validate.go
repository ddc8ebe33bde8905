package texttool

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/pcurtin/mcp-texttools/internal/errors"
)

// Validator checks tool arguments against their advertised schemas and
// enforces the configured input size limit. Validation is structural only:
// the text is returned unchanged, never normalized.
type Validator struct {
	maxTextLength int
	schemas       map[string]*jsonschema.Schema
}

// NewValidator compiles the input schema of every definition once. A schema
// that fails to compile is a programming error in the catalog, not a runtime
// condition.
func NewValidator(maxTextLength int, defs []Definition) (*Validator, error) {
	v := &Validator{
		maxTextLength: maxTextLength,
		schemas:       make(map[string]*jsonschema.Schema, len(defs)),
	}

	for _, def := range defs {
		raw, err := json.Marshal(def.InputSchema())
		if err != nil {
			return nil, fmt.Errorf("marshaling input schema for %s: %w", def.Name, err)
		}

		compiler := jsonschema.NewCompiler()
		resource := def.Name + ".json"
		if err := compiler.AddResource(resource, strings.NewReader(string(raw))); err != nil {
			return nil, fmt.Errorf("adding input schema for %s: %w", def.Name, err)
		}

		schema, err := compiler.Compile(resource)
		if err != nil {
			return nil, fmt.Errorf("compiling input schema for %s: %w", def.Name, err)
		}

		v.schemas[def.Name] = schema
	}

	return v, nil
}

// MaxTextLength returns the configured input size limit in runes.
func (v *Validator) MaxTextLength() int {
	return v.maxTextLength
}

// Validate checks the arguments for the named tool and returns the text
// input. A missing text argument defaults to the empty string before schema
// validation. Schema violations are reported as InvalidType; inputs longer
// than the configured maximum as InputTooLarge.
func (v *Validator) Validate(tool string, args map[string]interface{}) (string, error) {
	schema, ok := v.schemas[tool]
	if !ok {
		return "", errors.NewErrorf(errors.InternalFault, "no schema registered for tool %s", tool)
	}

	if args == nil {
		args = map[string]interface{}{}
	}
	if _, present := args["text"]; !present {
		args["text"] = ""
	}

	if err := schema.Validate(args); err != nil {
		return "", errors.NewErrorf(errors.InvalidType, "invalid arguments: %s", schemaErrorMessage(err)).WithCause(err)
	}

	// The schema has established text is a string
	text, _ := args["text"].(string)

	if utf8.RuneCountInString(text) > v.maxTextLength {
		return "", errors.NewErrorf(errors.InputTooLarge, "text exceeds maximum length of %d characters", v.maxTextLength)
	}

	return text, nil
}

// schemaErrorMessage reduces a jsonschema validation error to its most
// specific cause, which reads better in an envelope than the full trace.
func schemaErrorMessage(err error) string {
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return err.Error()
	}

	leaf := ve
	for len(leaf.Causes) > 0 {
		leaf = leaf.Causes[0]
	}

	if loc := strings.TrimPrefix(leaf.InstanceLocation, "/"); loc != "" {
		return fmt.Sprintf("%s: %s", loc, leaf.Message)
	}
	return leaf.Message
}
