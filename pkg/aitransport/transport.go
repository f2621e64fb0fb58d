// Package aitransport provides the uniform AI transport contract the
// heartbeat scheduler submits prompts through, plus concrete adapters for
// each supported vendor SDK.
package aitransport

import "context"

// Transport is the contract every vendor adapter satisfies: submit a
// prompt, get back text. structured requests schema-enforced JSON output
// where the vendor supports it; adapters that cannot honor it ignore the
// flag rather than failing.
type Transport interface {
	Send(ctx context.Context, prompt, model string, maxTokens int, structured bool) (string, error)
}

// actionReplySchema is the JSON schema describing the expected heartbeat
// reply shape, used by adapters that support schema-enforced output.
// Model replies are keyed by agent GUID, so the schema only constrains the
// per-agent payload shape; the per-GUID object itself is left open.
var actionReplySchema = map[string]any{
	"type": "object",
	"additionalProperties": map[string]any{
		"type": "object",
		"properties": map[string]any{
			"actions": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"action": map[string]any{"type": "string"},
						"params": map[string]any{"type": "object"},
					},
					"required": []string{"action"},
				},
			},
		},
		"required": []string{"actions"},
	},
}
