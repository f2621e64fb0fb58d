// Package holonagent implements the agent tree: nodes combining purpose
// and self bindings, an action registry, persistent knowledge, a token
// bank, heartbeat clocks, and inter-agent messaging.
package holonagent

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nullcoward/holonic-engine/pkg/holonaction"
	"github.com/nullcoward/holonic-engine/pkg/holonbind"
	"github.com/nullcoward/holonic-engine/pkg/holonpath"
)

// ErrTemplateNotFound is returned by CreateChild when a template id does
// not resolve within the calling agent's tree.
var ErrTemplateNotFound = errors.New("holonagent: template not found")

// ErrChildNotFound is returned by child-addressed operations.
var ErrChildNotFound = errors.New("holonagent: child not found")

// ErrRecipientNotInTree documents (for callers who care) that a message
// recipient could not be located; send_message itself never returns this —
// per spec, unresolved recipients are silently dropped.
var ErrRecipientNotInTree = errors.New("holonagent: recipient not in tree")

// InterfaceID is the fixed id of the root interface holon every running
// engine has: the entry point external surfaces (HTTP inspection, MCP)
// bind to, distinct from any child holon's generated uuid.
const InterfaceID = "00000000-0000-0000-0000-000000000000"

// Storage is the persistence binding an agent may be attached to. Every
// mutating method calls through it when bound, mirroring the original's
// property-setter auto-save pattern.
type Storage interface {
	SaveFull(ctx context.Context, a *Agent) error
	SaveMessage(ctx context.Context, m Message) error
}

// Message is an immutable record of one send_message call.
type Message struct {
	ID             string
	SenderID       string
	RecipientIDs   []string
	Content        any
	TokensAttached int
	Timestamp      time.Time
}

// MessageHistory is the ordered log of messages an agent has sent or
// received.
type MessageHistory struct {
	mu       sync.Mutex
	messages []Message
}

func (h *MessageHistory) add(m Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.messages = append(h.messages, m)
}

// All returns every message in this history, in insertion order.
func (h *MessageHistory) All() []Message {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]Message{}, h.messages...)
}

// Received returns messages naming agentID among their recipients.
func (h *MessageHistory) Received(agentID string) []Message {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []Message
	for _, m := range h.messages {
		for _, r := range m.RecipientIDs {
			if r == agentID {
				out = append(out, m)
				break
			}
		}
	}
	return out
}

// Sent returns messages whose sender is agentID.
func (h *MessageHistory) Sent(agentID string) []Message {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []Message
	for _, m := range h.messages {
		if m.SenderID == agentID {
			out = append(out, m)
		}
	}
	return out
}

// Len reports how many messages are recorded.
func (h *MessageHistory) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.messages)
}

// Agent is one node of the holon tree.
type Agent struct {
	mu sync.Mutex

	id       string
	parent   *Agent
	children []*Agent

	purpose *holonbind.Container
	self    *holonbind.Container
	actions *holonaction.Registry

	knowledge map[string]any

	tokenBank     int
	heartRateSecs int
	lastHeartbeat *time.Time
	nextHeartbeat time.Time

	activeHeartbeat bool

	history *MessageHistory

	storage Storage
}

// New constructs a root or child agent. Pass a non-nil parent to make this
// a child (the caller is responsible for appending it to parent.children
// via CreateChild, which New does not do on its own).
func New(parent *Agent) *Agent {
	a := &Agent{
		id:            uuid.New().String(),
		parent:        parent,
		purpose:       holonbind.New(),
		self:          holonbind.New(),
		actions:       holonaction.NewRegistry(),
		knowledge:     map[string]any{},
		heartRateSecs: 1,
		nextHeartbeat: time.Now().UTC(),
		history:       &MessageHistory{},
	}
	a.installSelfBindings()
	a.installBuiltinActions()
	return a
}

// installSelfBindings (re-)installs this agent's own dynamic self
// bindings, keyed by name. It uses SetKeyed rather than Add so that
// calling it again on a container that already holds these keys (as
// happens when a child clones a template's self container in
// CreateChild) replaces the stale, template-bound closures in place
// instead of appending a second, shadowing entry per key.
func (a *Agent) installSelfBindings() {
	a.self.SetKeyed("current_time", func() any { return time.Now().UTC().Format(time.RFC3339) })
	a.self.SetKeyed("holon_id", func() any { return a.id })
	a.self.SetKeyed("holon_tree", func() any { return a.holonTree() })
	a.self.SetKeyed("knowledge", func() any { return a.knowledge })
	a.self.SetKeyed("token_bank", func() any { a.mu.Lock(); defer a.mu.Unlock(); return a.tokenBank })
	a.self.SetKeyed("last_heartbeat", func() any {
		a.mu.Lock()
		defer a.mu.Unlock()
		if a.lastHeartbeat == nil {
			return nil
		}
		return a.lastHeartbeat.UTC().Format(time.RFC3339)
	})
	a.self.SetKeyed("next_heartbeat", func() any {
		a.mu.Lock()
		defer a.mu.Unlock()
		return a.nextHeartbeat.UTC().Format(time.RFC3339)
	})
	a.self.SetKeyed("heart_rate_secs", func() any { a.mu.Lock(); defer a.mu.Unlock(); return a.heartRateSecs })
}

func (a *Agent) installBuiltinActions() {
	a.actions.Register(holonaction.Action{
		Name:    "knowledge_set",
		Purpose: "Set a value in knowledge at a dot.path",
		Signature: holonaction.Signature{Parameters: []holonaction.Parameter{
			{Name: "path"}, {Name: "value"},
		}},
		Callback: func(ctx context.Context, args map[string]any) (any, error) {
			path, _ := args["path"].(string)
			if err := a.KnowledgeSet(path, args["value"]); err != nil {
				return nil, err
			}
			return nil, nil
		},
	})
	a.actions.Register(holonaction.Action{
		Name:    "knowledge_delete",
		Purpose: "Delete a value from knowledge at a dot.path",
		Signature: holonaction.Signature{Parameters: []holonaction.Parameter{
			{Name: "path"},
		}},
		Callback: func(ctx context.Context, args map[string]any) (any, error) {
			path, _ := args["path"].(string)
			return nil, a.KnowledgeDelete(path)
		},
	})
	a.actions.Register(holonaction.Action{
		Name:    "child_purpose_set",
		Purpose: "Set purpose on a child holon by GUID",
		Signature: holonaction.Signature{Parameters: []holonaction.Parameter{
			{Name: "child_id"}, {Name: "path"}, {Name: "value"},
		}},
		Callback: func(ctx context.Context, args map[string]any) (any, error) {
			childID, _ := args["child_id"].(string)
			path, _ := args["path"].(string)
			child := a.GetChild(childID)
			if child == nil {
				return nil, fmt.Errorf("%w: %q", ErrChildNotFound, childID)
			}
			return nil, child.PurposeSet(path, args["value"])
		},
	})
	a.actions.Register(holonaction.Action{
		Name:    "child_purpose_clear",
		Purpose: "Clear all purpose from a child holon",
		Signature: holonaction.Signature{Parameters: []holonaction.Parameter{
			{Name: "child_id"},
		}},
		Callback: func(ctx context.Context, args map[string]any) (any, error) {
			childID, _ := args["child_id"].(string)
			child := a.GetChild(childID)
			if child == nil {
				return nil, fmt.Errorf("%w: %q", ErrChildNotFound, childID)
			}
			child.mu.Lock()
			child.purpose.Clear()
			child.mu.Unlock()
			child.autoSave(ctx)
			return nil, nil
		},
	})
	a.actions.Register(holonaction.Action{
		Name:    "create_child",
		Purpose: "Create a new child holon, optionally copying from a template GUID",
		Signature: holonaction.Signature{Parameters: []holonaction.Parameter{
			{Name: "template_id", HasDefault: true, Default: nil},
		}},
		Callback: func(ctx context.Context, args map[string]any) (any, error) {
			var templateID *string
			if v, ok := args["template_id"].(string); ok && v != "" {
				templateID = &v
			}
			child, err := a.CreateChild(ctx, templateID)
			if err != nil {
				return nil, err
			}
			return child.ID(), nil
		},
	})
	a.actions.Register(holonaction.Action{
		Name:    "send_message",
		Purpose: "Send a message to one or more holons by GUID",
		Signature: holonaction.Signature{Parameters: []holonaction.Parameter{
			{Name: "recipient_ids"}, {Name: "content"}, {Name: "tokens", HasDefault: true, Default: 0},
		}},
		Callback: func(ctx context.Context, args map[string]any) (any, error) {
			recipients := toStringSlice(args["recipient_ids"])
			tokens := 0
			if v, ok := args["tokens"].(int); ok {
				tokens = v
			}
			msg := a.SendMessage(recipients, args["content"], tokens)
			return msg.ID, nil
		},
	})
	a.actions.Register(holonaction.Action{
		Name:    "sleep",
		Purpose: "Delay next heartbeat by specified seconds from its current scheduled time",
		Signature: holonaction.Signature{Parameters: []holonaction.Parameter{
			{Name: "seconds"},
		}},
		Callback: func(ctx context.Context, args map[string]any) (any, error) {
			secs := toInt(args["seconds"])
			a.DelayHeartbeat(secs)
			return nil, nil
		},
	})
}

func toStringSlice(v any) []string {
	switch t := v.(type) {
	case string:
		return []string{t}
	case []string:
		return t
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func toInt(v any) int {
	switch t := v.(type) {
	case int:
		return t
	case int64:
		return int(t)
	case float64:
		return int(t)
	default:
		return 0
	}
}

func strp(s string) *string { return &s }

// ID returns this agent's immutable identifier.
func (a *Agent) ID() string { return a.id }

// Parent returns this agent's parent, or nil if it is the tree root.
func (a *Agent) Parent() *Agent {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.parent
}

// Children returns a snapshot of this agent's direct children.
func (a *Agent) Children() []*Agent {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]*Agent{}, a.children...)
}

// Actions returns this agent's action registry.
func (a *Agent) Actions() *holonaction.Registry { return a.actions }

// TokenBank returns the current token balance.
func (a *Agent) TokenBank() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.tokenBank
}

// SetTokenBank overwrites the token balance and auto-saves.
func (a *Agent) SetTokenBank(ctx context.Context, v int) {
	a.mu.Lock()
	a.tokenBank = v
	a.mu.Unlock()
	a.autoSave(ctx)
}

// AddTokens adjusts the token balance by delta (may be negative) and
// auto-saves.
func (a *Agent) AddTokens(ctx context.Context, delta int) {
	a.mu.Lock()
	a.tokenBank += delta
	a.mu.Unlock()
	a.autoSave(ctx)
}

// IsSolvent reports whether the agent's token bank is non-negative.
func (a *Agent) IsSolvent() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.tokenBank >= 0
}

// HeartRateSecs returns the configured cadence between heartbeats.
func (a *Agent) HeartRateSecs() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.heartRateSecs
}

// SetHeartRateSecs updates the cadence and auto-saves.
func (a *Agent) SetHeartRateSecs(ctx context.Context, secs int) {
	a.mu.Lock()
	a.heartRateSecs = secs
	a.mu.Unlock()
	a.autoSave(ctx)
}

// LastHeartbeat returns the timestamp of the most recently completed
// heartbeat, if any.
func (a *Agent) LastHeartbeat() *time.Time {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastHeartbeat
}

// NextHeartbeat returns when this agent next becomes due.
func (a *Agent) NextHeartbeat() time.Time {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.nextHeartbeat
}

// SetNextHeartbeat sets when this agent should next wake up.
func (a *Agent) SetNextHeartbeat(t time.Time) {
	a.mu.Lock()
	a.nextHeartbeat = t
	a.mu.Unlock()
}

// DelayHeartbeat pushes the next heartbeat back by seconds (never
// subtracts) and auto-saves.
func (a *Agent) DelayHeartbeat(seconds int) {
	if seconds <= 0 {
		return
	}
	a.mu.Lock()
	a.nextHeartbeat = a.nextHeartbeat.Add(time.Duration(seconds) * time.Second)
	a.mu.Unlock()
	a.autoSave(context.Background())
}

// ActiveHeartbeat reports whether a heartbeat for this agent is currently
// in flight.
func (a *Agent) ActiveHeartbeat() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.activeHeartbeat
}

// MarkHeartbeatActive sets the active-heartbeat marker. Returns false
// (without mutating) if one was already set, enforcing the
// single-in-flight invariant.
func (a *Agent) MarkHeartbeatActive() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.activeHeartbeat {
		return false
	}
	a.activeHeartbeat = true
	return true
}

// ClearHeartbeatActive releases the active-heartbeat marker.
func (a *Agent) ClearHeartbeatActive() {
	a.mu.Lock()
	a.activeHeartbeat = false
	a.mu.Unlock()
}

// ActionResults processes a parsed AI reply for this agent: it advances
// the heartbeat clock, dispatches the requested actions in order, and
// auto-saves once.
func (a *Agent) ActionResults(ctx context.Context, heartbeatTime time.Time, actionCalls []ActionCall) []ActionOutcome {
	a.mu.Lock()
	a.lastHeartbeat = &heartbeatTime
	a.nextHeartbeat = heartbeatTime.Add(time.Duration(a.heartRateSecs) * time.Second)
	a.mu.Unlock()

	results := a.DispatchMany(ctx, actionCalls)
	a.autoSave(ctx)
	return results
}

// ActionCall is one AI-requested action invocation.
type ActionCall struct {
	Action string
	Params map[string]any
}

// ActionOutcome pairs an ActionCall with its dispatch result.
type ActionOutcome struct {
	Action string
	Result any
	Err    error
}

// Dispatch invokes a single named action.
func (a *Agent) Dispatch(ctx context.Context, name string, params map[string]any) (any, error) {
	return a.actions.Dispatch(ctx, name, params)
}

// DispatchMany invokes a sequence of action calls, collecting a result or
// error for each without stopping on failure.
func (a *Agent) DispatchMany(ctx context.Context, calls []ActionCall) []ActionOutcome {
	out := make([]ActionOutcome, 0, len(calls))
	for _, call := range calls {
		result, err := a.Dispatch(ctx, call.Action, call.Params)
		out = append(out, ActionOutcome{Action: call.Action, Result: result, Err: err})
	}
	return out
}

// CollectDue walks this agent and all descendants, appending each one
// except the interface agent (InterfaceID) with its next_heartbeat time.
func (a *Agent) CollectDue() []DueEntry {
	var out []DueEntry
	a.collectDue(&out)
	return out
}

// DueEntry pairs an agent with the observed next-heartbeat time at
// collection.
type DueEntry struct {
	Agent *Agent
	Next  time.Time
}

func (a *Agent) collectDue(out *[]DueEntry) {
	// The interface agent is the tree root external surfaces bind to, not
	// a schedulable holon: it never enters the due set.
	if a.id != InterfaceID {
		*out = append(*out, DueEntry{Agent: a, Next: a.NextHeartbeat()})
	}
	for _, c := range a.Children() {
		c.collectDue(out)
	}
}

func (a *Agent) holonTree() map[string]any {
	a.mu.Lock()
	children := append([]*Agent{}, a.children...)
	parent := a.parent
	a.mu.Unlock()

	kids := make([]map[string]any, 0, len(children))
	for _, c := range children {
		kids = append(kids, map[string]any{"id": c.ID(), "token_bank": c.TokenBank()})
	}
	tree := map[string]any{"holon_children": kids}
	if parent != nil {
		tree["holon_parent"] = map[string]any{"id": parent.ID(), "token_bank": parent.TokenBank()}
	}
	return tree
}

// ResolveForHUD implements holonbind.Resolvable: an agent nested inside
// another agent's purpose/self serializes as its resolved self state. Its
// purpose and actions are not included, and no hud_tokens count is added.
func (a *Agent) ResolveForHUD() (any, error) {
	return a.ResolvedSelf()
}

// ResolvedPurpose resolves every purpose binding.
func (a *Agent) ResolvedPurpose() (any, error) {
	return a.purpose.Serialize()
}

// ResolvedSelf resolves every self binding.
func (a *Agent) ResolvedSelf() (any, error) {
	return a.self.Serialize()
}

func (a *Agent) autoSave(ctx context.Context) {
	a.mu.Lock()
	storage := a.storage
	a.mu.Unlock()
	if storage == nil {
		return
	}
	_ = storage.SaveFull(ctx, a)
}

// BindStorage attaches a persistence backend; if saveNow, the current
// state is saved immediately.
func (a *Agent) BindStorage(ctx context.Context, s Storage, saveNow bool) {
	a.mu.Lock()
	a.storage = s
	a.mu.Unlock()
	if saveNow {
		a.autoSave(ctx)
	}
}

// UnbindStorage detaches the persistence backend.
func (a *Agent) UnbindStorage() {
	a.mu.Lock()
	a.storage = nil
	a.mu.Unlock()
}

// BindStorageTree binds storage to this agent and every descendant.
func (a *Agent) BindStorageTree(ctx context.Context, s Storage, saveNow bool) {
	a.BindStorage(ctx, s, saveNow)
	for _, c := range a.Children() {
		c.BindStorageTree(ctx, s, saveNow)
	}
}

// UnbindStorageTree detaches storage from this agent and every descendant.
func (a *Agent) UnbindStorageTree() {
	a.UnbindStorage()
	for _, c := range a.Children() {
		c.UnbindStorageTree()
	}
}

// --- Knowledge (pure static JSON, no callables) ---

// KnowledgeGet returns the knowledge value at path, or the whole tree if
// path is empty.
func (a *Agent) KnowledgeGet(path string) (any, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if path == "" {
		return a.knowledge, nil
	}
	return holonpath.Get(a.knowledge, path)
}

// KnowledgeSet writes value at path, creating intermediate maps as needed,
// then auto-saves.
func (a *Agent) KnowledgeSet(path string, value any) error {
	a.mu.Lock()
	err := holonpath.Set(a.knowledge, path, value)
	a.mu.Unlock()
	if err != nil {
		return err
	}
	a.autoSave(context.Background())
	return nil
}

// KnowledgeDelete removes the value at path, then auto-saves.
func (a *Agent) KnowledgeDelete(path string) error {
	a.mu.Lock()
	err := holonpath.Delete(a.knowledge, path)
	a.mu.Unlock()
	if err != nil {
		return err
	}
	a.autoSave(context.Background())
	return nil
}

// KnowledgeMove relocates a value from one path to another, then
// auto-saves.
func (a *Agent) KnowledgeMove(from, to string) error {
	a.mu.Lock()
	err := holonpath.Move(a.knowledge, from, to)
	a.mu.Unlock()
	if err != nil {
		return err
	}
	a.autoSave(context.Background())
	return nil
}

// KnowledgeExists reports whether path resolves within knowledge.
func (a *Agent) KnowledgeExists(path string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return holonpath.Exists(a.knowledge, path)
}
