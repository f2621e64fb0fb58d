package holonagent

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// AddMessage appends a message to this agent's history and persists it if
// storage is bound. It is for programmatic use: it does not deliver to
// recipients.
func (a *Agent) AddMessage(ctx context.Context, m Message) {
	a.history.add(m)
	a.mu.Lock()
	storage := a.storage
	a.mu.Unlock()
	if storage != nil {
		_ = storage.SaveMessage(ctx, m)
	}
}

// SendMessage creates an immutable Message from this agent to one or more
// recipients by id, appends it to the sender's own history, then delivers
// a copy to each recipient found in the tree (root-then-depth-first
// lookup). Recipients absent from the tree are silently dropped; the
// message remains recorded in the sender's history regardless.
func (a *Agent) SendMessage(recipientIDs []string, content any, tokens int) Message {
	msg := Message{
		ID:             uuid.New().String(),
		SenderID:       a.ID(),
		RecipientIDs:   append([]string{}, recipientIDs...),
		Content:        content,
		TokensAttached: tokens,
		Timestamp:      time.Now().UTC(),
	}

	ctx := context.Background()
	a.AddMessage(ctx, msg)

	for _, rid := range recipientIDs {
		recipient := a.FindInTree(rid)
		if recipient != nil && recipient.ID() != a.ID() {
			recipient.AddMessage(ctx, msg)
		}
	}

	return msg
}

// Messages returns every message in this agent's history.
func (a *Agent) Messages() []Message {
	return a.history.All()
}

// ReceivedMessages returns messages addressed to this agent.
func (a *Agent) ReceivedMessages() []Message {
	return a.history.Received(a.ID())
}

// SentMessages returns messages sent by this agent.
func (a *Agent) SentMessages() []Message {
	return a.history.Sent(a.ID())
}
