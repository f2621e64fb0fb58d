package holonhud

import (
	"context"
	"testing"

	"github.com/nullcoward/holonic-engine/pkg/holonaction"
)

type fixedEstimator struct{ tokens int }

func (f fixedEstimator) CountTokens(model, text string) (int, error) {
	return f.tokens, nil
}

type stubSource struct {
	purpose any
	self    any
	actions *holonaction.Registry
}

func (s stubSource) ResolvedPurpose() (any, error) { return s.purpose, nil }
func (s stubSource) ResolvedSelf() (any, error)    { return s.self, nil }
func (s stubSource) Actions() *holonaction.Registry { return s.actions }

func TestBuildOmitsEmptyPurposeAndSelf(t *testing.T) {
	src := stubSource{purpose: []any{}, self: map[string]any{}, actions: holonaction.NewRegistry()}
	out, err := Build(src, fixedEstimator{tokens: 7}, "gpt-4o")
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if _, ok := out["purpose"]; ok {
		t.Fatalf("expected purpose omitted, got %#v", out)
	}
	if _, ok := out["self"]; ok {
		t.Fatalf("expected self omitted, got %#v", out)
	}
	if _, ok := out["actions"]; ok {
		t.Fatalf("expected actions omitted when registry empty")
	}
	if out["hud_tokens"] != 7 {
		t.Fatalf("hud_tokens = %v, want 7", out["hud_tokens"])
	}
}

func TestBuildIncludesResolvedPurposeAndSelf(t *testing.T) {
	src := stubSource{
		purpose: map[string]any{"role": "assistant"},
		self:    map[string]any{"token_bank": 10},
		actions: holonaction.NewRegistry(),
	}
	out, err := Build(src, fixedEstimator{tokens: 1}, "gpt-4o")
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if out["purpose"].(map[string]any)["role"] != "assistant" {
		t.Fatalf("unexpected purpose: %#v", out["purpose"])
	}
	if out["self"].(map[string]any)["token_bank"] != 10 {
		t.Fatalf("unexpected self: %#v", out["self"])
	}
}

func TestBuildSerializesActionsWithOptionalFields(t *testing.T) {
	reg := holonaction.NewRegistry()
	reg.Register(holonaction.Action{
		Name:    "sleep",
		Purpose: "delay next heartbeat",
		Signature: holonaction.Signature{Parameters: []holonaction.Parameter{
			{Name: "seconds", TypeHint: "int"},
		}},
		Callback: func(ctx context.Context, args map[string]any) (any, error) { return nil, nil },
	})
	reg.Register(holonaction.Action{
		Name: "no_purpose_action",
		Signature: holonaction.Signature{Parameters: []holonaction.Parameter{
			{Name: "x", HasDefault: true, Default: 1},
		}},
		Callback: func(ctx context.Context, args map[string]any) (any, error) { return nil, nil },
	})

	src := stubSource{purpose: []any{}, self: []any{}, actions: reg}
	out, err := Build(src, fixedEstimator{tokens: 0}, "gpt-4o")
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	actions := out["actions"].([]map[string]any)
	if len(actions) != 2 {
		t.Fatalf("expected 2 actions, got %d", len(actions))
	}
	// sorted by name: "no_purpose_action" before "sleep"
	if actions[0]["name"] != "no_purpose_action" {
		t.Fatalf("expected sorted order, got %#v", actions)
	}
	if _, ok := actions[0]["purpose"]; ok {
		t.Fatalf("expected purpose omitted when empty")
	}
	params := actions[0]["parameters"].([]map[string]any)
	if params[0]["default"] != 1 {
		t.Fatalf("expected default to be present: %#v", params[0])
	}

	sleepEntry := actions[1]
	sleepParams := sleepEntry["parameters"].([]map[string]any)
	if sleepParams[0]["type"] != "int" {
		t.Fatalf("expected type hint present: %#v", sleepParams[0])
	}
	if _, ok := sleepParams[0]["default"]; ok {
		t.Fatalf("expected default omitted when absent")
	}
}
