// Package holonhud builds the AI-facing view ("HUD") of an agent: its
// resolved purpose and self state plus a description of its available
// actions, with a trailing token count of the rendered JSON.
package holonhud

import (
	"encoding/json"
	"sort"

	"github.com/nullcoward/holonic-engine/pkg/aitokens"
	"github.com/nullcoward/holonic-engine/pkg/holonaction"
)

// Source is the subset of *holonagent.Agent the HUD converter depends on.
// Declaring it as an interface here (rather than importing holonagent)
// keeps holonhud a leaf package; pkg/heart and pkg/inspect pass
// *holonagent.Agent values to Build.
type Source interface {
	ResolvedPurpose() (any, error)
	ResolvedSelf() (any, error)
	Actions() *holonaction.Registry
}

// Build renders a Source into its HUD map: purpose, self and actions (each
// omitted when empty), plus hud_tokens computed over the JSON encoding of
// the map without it. The map keeps no key order; its JSON encoding lists
// the keys alphabetically.
func Build(src Source, estimator aitokens.Estimator, model string) (map[string]any, error) {
	result := map[string]any{}

	purpose, err := src.ResolvedPurpose()
	if err != nil {
		return nil, err
	}
	if !isEmptyHUDValue(purpose) {
		result["purpose"] = purpose
	}

	self, err := src.ResolvedSelf()
	if err != nil {
		return nil, err
	}
	if !isEmptyHUDValue(self) {
		result["self"] = self
	}

	actions := src.Actions()
	if actions.Len() > 0 {
		result["actions"] = serializeActions(actions)
	}

	encoded, err := json.Marshal(result)
	if err != nil {
		return nil, err
	}
	tokens, err := estimator.CountTokens(model, string(encoded))
	if err != nil {
		return nil, err
	}
	result["hud_tokens"] = tokens

	return result, nil
}

func isEmptyHUDValue(v any) bool {
	switch t := v.(type) {
	case []any:
		return len(t) == 0
	case map[string]any:
		return len(t) == 0
	default:
		return false
	}
}

// serializeActions renders one HUD entry per registered action:
// {name, purpose?, parameters, returns?, docstring?}. Parameters without
// defaults omit "default"; parameters without a type hint omit "type".
func serializeActions(reg *holonaction.Registry) []map[string]any {
	names := reg.Names()
	sort.Strings(names)
	out := make([]map[string]any, 0, len(names))
	for _, name := range names {
		a, ok := reg.Get(name)
		if !ok {
			continue
		}
		entry := map[string]any{"name": a.Name}
		if a.Purpose != "" {
			entry["purpose"] = a.Purpose
		}
		params := make([]map[string]any, 0, len(a.Signature.Parameters))
		for _, p := range a.Signature.Parameters {
			pe := map[string]any{"name": p.Name}
			if p.TypeHint != "" {
				pe["type"] = p.TypeHint
			}
			if p.HasDefault {
				pe["default"] = p.Default
			}
			params = append(params, pe)
		}
		entry["parameters"] = params
		if a.Signature.ReturnType != "" {
			entry["returns"] = a.Signature.ReturnType
		}
		if a.Signature.Docstring != "" {
			entry["docstring"] = a.Signature.Docstring
		}
		out = append(out, entry)
	}
	return out
}
