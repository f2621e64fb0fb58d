package holonmcp

import (
	"github.com/google/jsonschema-go/jsonschema"

	"github.com/nullcoward/holonic-engine/pkg/holonaction"
)

// jsonType maps an action parameter's TypeHint to a JSON Schema type.
// TypeHints are free-form strings supplied by whoever registers the
// action (see holonaction.Parameter); anything unrecognized falls back
// to "string" rather than rejecting the tool.
func jsonType(hint string) string {
	switch hint {
	case "int", "integer":
		return "integer"
	case "float", "number":
		return "number"
	case "bool", "boolean":
		return "boolean"
	case "list", "array":
		return "array"
	case "dict", "object", "map":
		return "object"
	default:
		return "string"
	}
}

// inputSchema builds the JSON Schema describing sig's parameters, the
// same signature the HUD converter renders for an AI prompt turned into
// a schema an MCP client's own tool-calling layer can validate against.
func inputSchema(sig holonaction.Signature) *jsonschema.Schema {
	props := make(map[string]*jsonschema.Schema, len(sig.Parameters))
	var required []string
	for _, p := range sig.Parameters {
		props[p.Name] = &jsonschema.Schema{Type: jsonType(p.TypeHint)}
		if !p.HasDefault {
			required = append(required, p.Name)
		}
	}
	return &jsonschema.Schema{
		Type:       "object",
		Properties: props,
		Required:   required,
	}
}
