package domain

import "context"

// Effect classifies the externally observable side effect of a tool.
type Effect string

const (
	EffectNone       Effect = "none"
	EffectFilesystem Effect = "filesystem"
	EffectNetwork    Effect = "network"
)

// Property describes a single argument in a tool's input schema.
type Property struct {
	Type        string `json:"type"` // string | integer | number | boolean
	Description string `json:"description,omitempty"`
}

// InputSchema declares the arguments a tool accepts. Arguments not listed
// in Properties are ignored at validation time.
type InputSchema struct {
	Properties map[string]Property `json:"properties"`
	Required   []string            `json:"required,omitempty"`
}

// IsRequired reports whether name is a required argument.
func (s InputSchema) IsRequired(name string) bool {
	for _, r := range s.Required {
		if r == name {
			return true
		}
	}
	return false
}

// JSONSchema renders the schema as a plain JSON Schema object map.
func (s InputSchema) JSONSchema() map[string]any {
	props := make(map[string]any, len(s.Properties))
	for name, p := range s.Properties {
		prop := map[string]any{"type": p.Type}
		if p.Description != "" {
			prop["description"] = p.Description
		}
		props[name] = prop
	}
	schema := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if len(s.Required) > 0 {
		schema["required"] = s.Required
	}
	return schema
}

// ToolDescriptor is the immutable, transport-visible description of a tool.
type ToolDescriptor struct {
	Name        string
	Description string
	Effect      Effect
	Schema      InputSchema
}

// Request is a single tool invocation as received from a client.
type Request struct {
	Name      string
	Arguments map[string]any
}

// Tool is the interface for invocable capabilities (GitHub, Notion, weather,
// file store, server info).
type Tool interface {
	Descriptor() ToolDescriptor
	Execute(ctx context.Context, args map[string]any) (string, error)
}
