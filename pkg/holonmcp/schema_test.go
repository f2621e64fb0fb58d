package holonmcp

import (
	"testing"

	"github.com/nullcoward/holonic-engine/pkg/holonaction"
)

func TestJSONTypeMapsKnownHints(t *testing.T) {
	cases := map[string]string{
		"int":     "integer",
		"integer": "integer",
		"float":   "number",
		"number":  "number",
		"bool":    "boolean",
		"boolean": "boolean",
		"list":    "array",
		"array":   "array",
		"dict":    "object",
		"object":  "object",
		"map":     "object",
		"str":     "string",
		"":        "string",
		"unknown": "string",
	}
	for hint, want := range cases {
		if got := jsonType(hint); got != want {
			t.Errorf("jsonType(%q) = %q, want %q", hint, got, want)
		}
	}
}

func TestInputSchemaMarksParametersWithoutDefaultsAsRequired(t *testing.T) {
	sig := holonaction.Signature{Parameters: []holonaction.Parameter{
		{Name: "from", TypeHint: "string"},
		{Name: "to", TypeHint: "string"},
		{Name: "limit", TypeHint: "int", HasDefault: true, Default: 10},
	}}

	schema := inputSchema(sig)
	if schema.Type != "object" {
		t.Fatalf("schema type = %q, want object", schema.Type)
	}
	if len(schema.Properties) != 3 {
		t.Fatalf("properties = %d, want 3", len(schema.Properties))
	}
	if schema.Properties["from"].Type != "string" {
		t.Errorf("from type = %q, want string", schema.Properties["from"].Type)
	}
	if schema.Properties["limit"].Type != "integer" {
		t.Errorf("limit type = %q, want integer", schema.Properties["limit"].Type)
	}

	required := map[string]bool{}
	for _, r := range schema.Required {
		required[r] = true
	}
	if !required["from"] || !required["to"] {
		t.Errorf("required = %v, want from and to required", schema.Required)
	}
	if required["limit"] {
		t.Errorf("limit has a default and should not be required: %v", schema.Required)
	}
}

func TestInputSchemaEmptySignature(t *testing.T) {
	schema := inputSchema(holonaction.Signature{})
	if schema.Type != "object" {
		t.Fatalf("schema type = %q, want object", schema.Type)
	}
	if len(schema.Properties) != 0 {
		t.Errorf("properties = %v, want empty", schema.Properties)
	}
	if len(schema.Required) != 0 {
		t.Errorf("required = %v, want empty", schema.Required)
	}
}
