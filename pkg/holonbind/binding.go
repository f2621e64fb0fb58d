// Package holonbind implements the ordered binding container used by an
// agent's purpose and self state: a list of keyed or unkeyed values whose
// sources may be literals, nested agents, or zero-argument callables
// resolved fresh on every read.
package holonbind

// Resolvable is implemented by anything that can serialize itself into the
// HUD tree without holonbind needing to know its concrete type — in
// practice this is satisfied by *holonagent.Agent, which resolves to its
// own self state when nested.
type Resolvable interface {
	ResolveForHUD() (any, error)
}

// Source is the value a Binding points at. Exactly one of the following
// applies at resolve time, checked in order: a zero-arg func, a
// Resolvable (nested agent), or a plain structural/scalar value.
type Source any

// Binding is one entry in a Container: a source value plus an optional key.
type Binding struct {
	Source Source
	Key    *string
}

// Container is an ordered list of Bindings, used for both purpose and self
// state.
type Container struct {
	items []Binding
}

// New returns an empty Container.
func New() *Container {
	return &Container{}
}

// Add appends a binding. A nil key means the binding is unkeyed.
func (c *Container) Add(source Source, key *string) {
	c.items = append(c.items, Binding{Source: source, Key: key})
}

// Len reports the number of bindings.
func (c *Container) Len() int {
	return len(c.items)
}

// Items returns the raw bindings in insertion order.
func (c *Container) Items() []Binding {
	return append([]Binding{}, c.items...)
}

// Clear removes all bindings.
func (c *Container) Clear() {
	c.items = nil
}

// indexOfKey returns the slice index of the binding with the given key, or
// -1 if none has that key.
func (c *Container) indexOfKey(key string) int {
	for i, it := range c.items {
		if it.Key != nil && *it.Key == key {
			return i
		}
	}
	return -1
}

// SourceAt returns the raw (unresolved) source bound under key.
func (c *Container) SourceAt(key string) (Source, bool) {
	if i := c.indexOfKey(key); i >= 0 {
		return c.items[i].Source, true
	}
	return nil, false
}

// SetKeyed inserts or replaces the binding under key with source.
func (c *Container) SetKeyed(key string, source Source) {
	if i := c.indexOfKey(key); i >= 0 {
		c.items[i].Source = source
		return
	}
	c.Add(source, &key)
}

// DeleteKeyed removes the binding under key, reporting whether one existed.
func (c *Container) DeleteKeyed(key string) bool {
	i := c.indexOfKey(key)
	if i < 0 {
		return false
	}
	c.items = append(c.items[:i], c.items[i+1:]...)
	return true
}

// resolveOne resolves a single binding's source to its current value.
func resolveOne(source Source) (any, error) {
	switch v := source.(type) {
	case func() any:
		return v(), nil
	case func() (any, error):
		return v()
	case Resolvable:
		return v.ResolveForHUD()
	default:
		return resolveStructural(source)
	}
}

// resolveStructural walks maps/slices recursively so nested callables and
// nested agents anywhere inside a structural value are also resolved.
func resolveStructural(v any) (any, error) {
	switch t := v.(type) {
	case func() any:
		return t(), nil
	case func() (any, error):
		return t()
	case Resolvable:
		return t.ResolveForHUD()
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			resolved, err := resolveStructural(val)
			if err != nil {
				return nil, err
			}
			out[k] = resolved
		}
		return out, nil
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			resolved, err := resolveStructural(val)
			if err != nil {
				return nil, err
			}
			out[i] = resolved
		}
		return out, nil
	default:
		return v, nil
	}
}

// Resolve returns the list of resolved values in insertion order.
func (c *Container) Resolve() ([]any, error) {
	out := make([]any, 0, len(c.items))
	for _, item := range c.items {
		v, err := resolveOne(item.Source)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// Serialize returns a map if every binding has a key, a slice if none do,
// and a slice mixing scalars with single-entry maps when keys are mixed.
func (c *Container) Serialize() (any, error) {
	if len(c.items) == 0 {
		return []any{}, nil
	}

	allKeyed, noneKeyed := true, true
	for _, item := range c.items {
		if item.Key != nil {
			noneKeyed = false
		} else {
			allKeyed = false
		}
	}

	if allKeyed {
		out := make(map[string]any, len(c.items))
		for _, item := range c.items {
			v, err := resolveOne(item.Source)
			if err != nil {
				return nil, err
			}
			out[*item.Key] = v
		}
		return out, nil
	}
	if noneKeyed {
		return c.Resolve()
	}

	out := make([]any, 0, len(c.items))
	for _, item := range c.items {
		v, err := resolveOne(item.Source)
		if err != nil {
			return nil, err
		}
		if item.Key != nil {
			out = append(out, map[string]any{*item.Key: v})
		} else {
			out = append(out, v)
		}
	}
	return out, nil
}
