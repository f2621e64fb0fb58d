package holonagent

import (
	"context"
	"fmt"

	"github.com/nullcoward/holonic-engine/pkg/holonbind"
)

// root walks parent links to the top of this agent's tree.
func (a *Agent) root() *Agent {
	cur := a
	for {
		p := cur.Parent()
		if p == nil {
			return cur
		}
		cur = p
	}
}

// FindInTree locates an agent by id anywhere in this agent's tree, root
// then depth-first down, matching the original's _find_in_tree.
func (a *Agent) FindInTree(id string) *Agent {
	return findInSubtree(a.root(), id)
}

func findInSubtree(a *Agent, id string) *Agent {
	if a.ID() == id {
		return a
	}
	for _, c := range a.Children() {
		if found := findInSubtree(c, id); found != nil {
			return found
		}
	}
	return nil
}

// GetChild returns the direct child with the given id, or nil.
func (a *Agent) GetChild(id string) *Agent {
	for _, c := range a.Children() {
		if c.ID() == id {
			return c
		}
	}
	return nil
}

// RemoveChild detaches the direct child with the given id, reporting
// whether one was found, and auto-saves.
func (a *Agent) RemoveChild(ctx context.Context, id string) bool {
	a.mu.Lock()
	idx := -1
	for i, c := range a.children {
		if c.ID() == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		a.mu.Unlock()
		return false
	}
	a.children = append(a.children[:idx], a.children[idx+1:]...)
	a.mu.Unlock()
	a.autoSave(ctx)
	return true
}

// CreateChild creates a new child agent. If templateID is non-nil, it must
// resolve within this agent's tree; the child's purpose, self, knowledge,
// and token bank are copied from the template (nested maps and slices are
// deep-copied, other values shared); the template's children are not
// cloned.
func (a *Agent) CreateChild(ctx context.Context, templateID *string) (*Agent, error) {
	child := New(a)

	if templateID != nil {
		template := a.FindInTree(*templateID)
		if template == nil {
			return nil, fmt.Errorf("%w: %q", ErrTemplateNotFound, *templateID)
		}
		template.mu.Lock()
		child.purpose = cloneContainer(template.purpose)
		child.self = cloneContainer(template.self)
		child.knowledge = cloneTree(template.knowledge).(map[string]any)
		child.tokenBank = template.tokenBank
		template.mu.Unlock()
		// Re-install this child's own dynamic self bindings (holon_id,
		// token_bank, ...): the template's copies above still reference the
		// template's own closures and must be rebound to the child.
		child.installSelfBindings()
	}

	a.mu.Lock()
	a.children = append(a.children, child)
	storage := a.storage
	a.mu.Unlock()

	if storage != nil {
		child.BindStorage(ctx, storage, true)
	}
	a.autoSave(ctx)
	return child, nil
}

func cloneContainer(src *holonbind.Container) *holonbind.Container {
	dst := holonbind.New()
	for _, item := range src.Items() {
		var key *string
		if item.Key != nil {
			k := *item.Key
			key = &k
		}
		dst.Add(cloneTree(item.Source), key)
	}
	return dst
}

func cloneTree(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = cloneTree(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = cloneTree(val)
		}
		return out
	default:
		return v
	}
}

