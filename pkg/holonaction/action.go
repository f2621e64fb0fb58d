// Package holonaction implements the action registry: a name-to-callable
// map exposing callbacks to the heartbeat loop for AI-dispatched execution.
//
// Go cannot recover a func value's parameter names through reflection the
// way the original implementation uses inspect.signature, so every action
// carries an explicit ActionSignature supplied at registration time.
package holonaction

import (
	"context"
	"errors"
	"fmt"
)

// ErrActionNotFound is returned when Dispatch is given an unregistered name.
var ErrActionNotFound = errors.New("holonaction: action not found")

// ErrMissingParameter is returned when Dispatch lacks a required argument
// that has no default.
var ErrMissingParameter = errors.New("holonaction: missing required parameter")

// Parameter describes one argument of an action's signature.
type Parameter struct {
	Name       string
	TypeHint   string
	Default    any
	HasDefault bool
}

// Signature documents an action's callable shape for AI consumption; it is
// supplied explicitly at registration since Go cannot derive it by
// reflection the way the original's inspect.signature does.
type Signature struct {
	Parameters []Parameter
	ReturnType string
	Docstring  string
}

// Callback is the uniform shape every action's implementation takes.
// Argument binding against the declared Signature happens in Dispatch
// before Callback is invoked.
type Callback func(ctx context.Context, args map[string]any) (any, error)

// Action binds a name to a callback plus its declared signature.
type Action struct {
	Name      string
	Purpose   string
	Signature Signature
	Callback  Callback
}

// Registry is a name-to-Action map.
type Registry struct {
	actions map[string]Action
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{actions: make(map[string]Action)}
}

// Register adds or replaces an action under its Name.
func (r *Registry) Register(a Action) {
	r.actions[a.Name] = a
}

// Unregister removes an action by name. It is a no-op if absent.
func (r *Registry) Unregister(name string) {
	delete(r.actions, name)
}

// Get returns the action registered under name, if any.
func (r *Registry) Get(name string) (Action, bool) {
	a, ok := r.actions[name]
	return a, ok
}

// Names returns the registered action names, in no particular order.
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.actions))
	for n := range r.actions {
		out = append(out, n)
	}
	return out
}

// Len reports the number of registered actions.
func (r *Registry) Len() int {
	return len(r.actions)
}

// bindArgs fills in defaults for any parameter the caller omitted and
// fails if a required parameter (no default) is missing.
func bindArgs(sig Signature, args map[string]any) (map[string]any, error) {
	bound := make(map[string]any, len(sig.Parameters))
	for k, v := range args {
		bound[k] = v
	}
	for _, p := range sig.Parameters {
		if _, present := bound[p.Name]; present {
			continue
		}
		if p.HasDefault {
			bound[p.Name] = p.Default
			continue
		}
		return nil, fmt.Errorf("%w: %q", ErrMissingParameter, p.Name)
	}
	return bound, nil
}

// Dispatch binds args against the named action's signature and invokes it.
func (r *Registry) Dispatch(ctx context.Context, name string, args map[string]any) (any, error) {
	a, ok := r.actions[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrActionNotFound, name)
	}
	bound, err := bindArgs(a.Signature, args)
	if err != nil {
		return nil, err
	}
	return a.Callback(ctx, bound)
}

// Serialize renders the registry into the shape storage saves in the
// actions column: a map of action name to purpose/signature description.
// The HUD builds its own action list and does not use this.
func (r *Registry) Serialize() map[string]any {
	out := make(map[string]any, len(r.actions))
	for name, a := range r.actions {
		params := make([]map[string]any, 0, len(a.Signature.Parameters))
		for _, p := range a.Signature.Parameters {
			entry := map[string]any{"name": p.Name}
			if p.TypeHint != "" {
				entry["type"] = p.TypeHint
			}
			if p.HasDefault {
				entry["default"] = p.Default
			}
			params = append(params, entry)
		}
		out[name] = map[string]any{
			"purpose":    a.Purpose,
			"parameters": params,
		}
	}
	return out
}
