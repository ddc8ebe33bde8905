package protocol

// JSONSchema represents the structure of a JSON Schema for validation
type JSONSchema struct {
	Type                 string                 `json:"type,omitempty"`
	Title                string                 `json:"title,omitempty"`
	Description          string                 `json:"description,omitempty"`
	Required             []string               `json:"required,omitempty"`
	Properties           map[string]*JSONSchema `json:"properties,omitempty"`
	AdditionalProperties interface{}            `json:"additionalProperties,omitempty"`
	Format               string                 `json:"format,omitempty"`
	Enum                 []interface{}          `json:"enum,omitempty"`
	Default              interface{}            `json:"default,omitempty"`

	// String validation
	MinLength *int   `json:"minLength,omitempty"`
	MaxLength *int   `json:"maxLength,omitempty"`
	Pattern   string `json:"pattern,omitempty"`
}

// ObjectSchema creates a new JSONSchema for an object type with the given properties
func ObjectSchema(properties map[string]*JSONSchema, required []string) *JSONSchema {
	return &JSONSchema{
		Type:       "object",
		Required:   required,
		Properties: properties,
	}
}

// StringSchema creates a new JSONSchema for a string type
func StringSchema(description string) *JSONSchema {
	return &JSONSchema{
		Type:        "string",
		Description: description,
	}
}
