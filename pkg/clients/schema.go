package clients

import (
	"encoding/json"
	"slices"
	"strings"
)

// Schema is a small JSON schema descriptor shared by every completion backend.
type Schema struct {
	Type        string             `json:"type"`
	Description string             `json:"description,omitempty"`
	Properties  map[string]*Schema `json:"properties,omitempty"`
	Items       *Schema            `json:"items,omitempty"`
	Required    []string           `json:"required,omitempty"`
}

// Object builds an object schema requiring every listed property.
func Object(properties map[string]*Schema) *Schema {
	required := make([]string, 0, len(properties))
	for name := range properties {
		required = append(required, name)
	}
	slices.Sort(required)
	return &Schema{Type: "object", Properties: properties, Required: required}
}

// String builds a string schema.
func String(description string) *Schema {
	return &Schema{Type: "string", Description: description}
}

// StringArray builds an array-of-strings schema.
func StringArray(description string) *Schema {
	return &Schema{Type: "array", Description: description, Items: &Schema{Type: "string"}}
}

// ArrayOf builds an array schema with the given item schema.
func ArrayOf(description string, items *Schema) *Schema {
	return &Schema{Type: "array", Description: description, Items: items}
}

// JSON renders the schema as indented JSON text.
func (s *Schema) JSON() string {
	b, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(b)
}

// Instructions is the response-format block appended to system prompts for
// backends without native schema support.
func (s *Schema) Instructions() string {
	var b strings.Builder
	b.WriteString("Return the JSON object directly without any formatting or additional text. ")
	b.WriteString("The JSON object should have the following structure as defined in the schema. ")
	b.WriteString("Make sure to answer in valid json and include all necessary properties:")
	b.WriteString(s.JSON())
	return b.String()
}
