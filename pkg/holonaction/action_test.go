package holonaction

import (
	"context"
	"errors"
	"testing"
)

func TestDispatchUnknownActionReturnsErrActionNotFound(t *testing.T) {
	r := NewRegistry()
	_, err := r.Dispatch(context.Background(), "nope", nil)
	if !errors.Is(err, ErrActionNotFound) {
		t.Fatalf("expected ErrActionNotFound, got %v", err)
	}
}

func TestDispatchFillsDefaultsForOmittedParameters(t *testing.T) {
	r := NewRegistry()
	r.Register(Action{
		Name: "greet",
		Signature: Signature{Parameters: []Parameter{
			{Name: "who", HasDefault: true, Default: "world"},
		}},
		Callback: func(ctx context.Context, args map[string]any) (any, error) {
			return "hello " + args["who"].(string), nil
		},
	})

	got, err := r.Dispatch(context.Background(), "greet", map[string]any{})
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if got != "hello world" {
		t.Fatalf("got %v", got)
	}
}

func TestDispatchMissingRequiredParameterErrors(t *testing.T) {
	r := NewRegistry()
	r.Register(Action{
		Name: "needs_arg",
		Signature: Signature{Parameters: []Parameter{
			{Name: "target", HasDefault: false},
		}},
		Callback: func(ctx context.Context, args map[string]any) (any, error) {
			return nil, nil
		},
	})

	_, err := r.Dispatch(context.Background(), "needs_arg", map[string]any{})
	if !errors.Is(err, ErrMissingParameter) {
		t.Fatalf("expected ErrMissingParameter, got %v", err)
	}
}

func TestDispatchPassesSuppliedArgsThrough(t *testing.T) {
	r := NewRegistry()
	r.Register(Action{
		Name: "echo",
		Signature: Signature{Parameters: []Parameter{
			{Name: "value", HasDefault: false},
		}},
		Callback: func(ctx context.Context, args map[string]any) (any, error) {
			return args["value"], nil
		},
	})

	got, err := r.Dispatch(context.Background(), "echo", map[string]any{"value": 7})
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if got != 7 {
		t.Fatalf("got %v", got)
	}
}

func TestUnregisterRemovesAction(t *testing.T) {
	r := NewRegistry()
	r.Register(Action{Name: "x", Callback: func(ctx context.Context, args map[string]any) (any, error) { return nil, nil }})
	r.Unregister("x")
	if _, ok := r.Get("x"); ok {
		t.Fatalf("expected x to be removed")
	}
}

func TestSerializeIncludesPurposeAndParameters(t *testing.T) {
	r := NewRegistry()
	r.Register(Action{
		Name:    "move",
		Purpose: "relocate a value",
		Signature: Signature{Parameters: []Parameter{
			{Name: "from", TypeHint: "string"},
			{Name: "to", TypeHint: "string"},
		}},
		Callback: func(ctx context.Context, args map[string]any) (any, error) { return nil, nil },
	})

	out := r.Serialize()
	entry, ok := out["move"].(map[string]any)
	if !ok {
		t.Fatalf("expected move entry, got %#v", out)
	}
	if entry["purpose"] != "relocate a value" {
		t.Fatalf("unexpected purpose: %v", entry["purpose"])
	}
	params, ok := entry["parameters"].([]map[string]any)
	if !ok || len(params) != 2 {
		t.Fatalf("unexpected parameters: %#v", entry["parameters"])
	}
}
