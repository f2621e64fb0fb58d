package holonagent

import "context"

// KnowledgeReplace replaces the entire knowledge tree with data, then
// auto-saves. This is the whole-collection counterpart to KnowledgeSet,
// used when a caller PUTs with an empty path.
func (a *Agent) KnowledgeReplace(ctx context.Context, data map[string]any) {
	if data == nil {
		data = map[string]any{}
	}
	a.mu.Lock()
	a.knowledge = data
	a.mu.Unlock()
	a.autoSave(ctx)
}

// PurposeReplace clears every purpose binding and re-populates it from
// data as literal keyed bindings, then auto-saves. Purpose carries no
// default dynamic bindings, so a full clear is safe.
func (a *Agent) PurposeReplace(ctx context.Context, data map[string]any) {
	a.mu.Lock()
	a.purpose.Clear()
	for k, v := range data {
		a.purpose.SetKeyed(k, v)
	}
	a.mu.Unlock()
	a.autoSave(ctx)
}

// SelfReplace replaces only the non-default, non-callable keyed bindings
// in the self tree with data, leaving the built-in dynamic bindings
// installed by New (current_time, holon_id, and so on) untouched. Mirrors
// the original interface's "update self (only custom bindings, not
// defaults)" rule, extended to support a whole-collection replace rather
// than just a single path write.
func (a *Agent) SelfReplace(ctx context.Context, data map[string]any) {
	a.mu.Lock()
	items := a.self.Items()
	a.self.Clear()
	for _, b := range items {
		if IsCallableBinding(b) {
			a.self.Add(b.Source, b.Key)
		}
	}
	for k, v := range data {
		a.self.SetKeyed(k, v)
	}
	a.mu.Unlock()
	a.autoSave(ctx)
}
