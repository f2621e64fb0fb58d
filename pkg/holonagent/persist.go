package holonagent

import (
	"time"

	"github.com/nullcoward/holonic-engine/pkg/holonbind"
)

// PurposeBindings returns the raw purpose bindings, including callable
// sources, for a storage layer that needs to decide what is portable.
func (a *Agent) PurposeBindings() []holonbind.Binding {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.purpose.Items()
}

// SelfBindings returns the raw self bindings, including the default
// dynamic closures installed by New.
func (a *Agent) SelfBindings() []holonbind.Binding {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.self.Items()
}

// IsCallableBinding reports whether a binding's source is a zero-argument
// function rather than a literal or nested agent — the shape a
// persistence layer must drop, since closures don't survive a restart.
func IsCallableBinding(b holonbind.Binding) bool {
	switch b.Source.(type) {
	case func() any:
		return true
	case func() (any, error):
		return true
	default:
		return false
	}
}

// NewWithID builds an agent the same way New does, but with a caller-
// supplied ID rather than a freshly generated UUID. Used by the storage
// layer to reconstruct a persisted tree with its original identities
// intact, and to create the interface agent under InterfaceID.
func NewWithID(parent *Agent, id string) *Agent {
	a := New(parent)
	a.mu.Lock()
	a.id = id
	a.mu.Unlock()
	return a
}

// RestorePurposeBinding appends a literal keyed purpose binding, used to
// rehydrate the non-callable purpose leaves a persisted holon carried.
func (a *Agent) RestorePurposeBinding(key string, value any) {
	a.mu.Lock()
	defer a.mu.Unlock()
	k := key
	a.purpose.Add(value, &k)
}

// RestoreSelfBinding appends a literal keyed self binding beyond the
// default dynamic set New already installed.
func (a *Agent) RestoreSelfBinding(key string, value any) {
	a.mu.Lock()
	defer a.mu.Unlock()
	k := key
	a.self.Add(value, &k)
}

// RestoreKnowledge replaces this agent's knowledge wholesale, used once
// at load time before the agent is exposed to callers.
func (a *Agent) RestoreKnowledge(data map[string]any) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if data == nil {
		data = map[string]any{}
	}
	a.knowledge = data
}

// RestoreRuntimeState sets the instance fields a hobjs row carries,
// bypassing the auto-save each public setter would otherwise trigger.
func (a *Agent) RestoreRuntimeState(tokenBank, heartRateSecs int, lastHeartbeat *time.Time, nextHeartbeat time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.tokenBank = tokenBank
	a.heartRateSecs = heartRateSecs
	a.lastHeartbeat = lastHeartbeat
	a.nextHeartbeat = nextHeartbeat
}

// RestoreMessage appends a message directly into this agent's history,
// used to rehydrate the last N messages from storage without re-sending
// them to recipients.
func (a *Agent) RestoreMessage(m Message) {
	a.history.add(m)
}

// AttachChild appends child to this agent's children and sets child's
// parent, used by tree restore to assemble parent/child pointers without
// going through CreateChild's template-copy semantics.
func (a *Agent) AttachChild(child *Agent) {
	a.mu.Lock()
	a.children = append(a.children, child)
	a.mu.Unlock()
	child.mu.Lock()
	child.parent = a
	child.mu.Unlock()
}
