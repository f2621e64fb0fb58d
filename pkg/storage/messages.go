package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/nullcoward/holonic-engine/pkg/holonagent"
)

// SaveMessage persists one message. It implements holonagent.Storage.
func (s *Store) SaveMessage(ctx context.Context, m holonagent.Message) error {
	recipientsJSON, err := json.Marshal(m.RecipientIDs)
	if err != nil {
		return err
	}
	contentJSON, err := marshalOrEmpty(m.Content)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(ctx, `
		INSERT INTO messages (id, sender_id, recipient_ids, content, tokens_attached, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING
	`, m.ID, m.SenderID, string(recipientsJSON), contentJSON, m.TokensAttached, m.Timestamp.UTC().UnixMilli())
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMessage(row rowScanner) (holonagent.Message, error) {
	var (
		id, senderID, recipientsJSON string
		content                      sql.NullString
		tokens                       int
		timestampMs                  int64
	)
	if err := row.Scan(&id, &senderID, &recipientsJSON, &content, &tokens, &timestampMs); err != nil {
		return holonagent.Message{}, err
	}

	var recipients []string
	if err := json.Unmarshal([]byte(recipientsJSON), &recipients); err != nil {
		return holonagent.Message{}, err
	}

	var parsedContent any
	if content.Valid && content.String != "" {
		if err := json.Unmarshal([]byte(content.String), &parsedContent); err != nil {
			return holonagent.Message{}, err
		}
	}

	return holonagent.Message{
		ID:             id,
		SenderID:       senderID,
		RecipientIDs:   recipients,
		Content:        parsedContent,
		TokensAttached: tokens,
		Timestamp:      time.UnixMilli(timestampMs).UTC(),
	}, nil
}

// GetMessages returns up to limit messages sent or received by agentID,
// most recent first. direction is "sent", "received", or "both".
func (s *Store) GetMessages(ctx context.Context, agentID, direction string, limit int) ([]holonagent.Message, error) {
	var query string
	args := []any{agentID}
	switch direction {
	case "sent":
		query = `SELECT id, sender_id, recipient_ids, content, tokens_attached, timestamp
			FROM messages WHERE sender_id=$1 ORDER BY timestamp DESC LIMIT $2`
		args = append(args, limit)
	case "received":
		query = `SELECT id, sender_id, recipient_ids, content, tokens_attached, timestamp
			FROM messages WHERE recipient_ids LIKE $1 ORDER BY timestamp DESC LIMIT $2`
		args = []any{"%" + agentID + "%", limit}
	default:
		query = `SELECT id, sender_id, recipient_ids, content, tokens_attached, timestamp
			FROM messages WHERE sender_id=$1 OR recipient_ids LIKE $2 ORDER BY timestamp DESC LIMIT $3`
		args = []any{agentID, "%" + agentID + "%", limit}
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []holonagent.Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, msg)
	}
	return out, rows.Err()
}
