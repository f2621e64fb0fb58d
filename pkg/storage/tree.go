package storage

import (
	"context"
	"database/sql"
	"time"

	"github.com/nullcoward/holonic-engine/pkg/holonagent"
)

type holonRow struct {
	Purpose   map[string]any
	SelfState map[string]any
}

func (s *Store) loadHolon(ctx context.Context, id string) (holonRow, error) {
	var purpose, self sql.NullString
	row := s.db.QueryRow(ctx, `SELECT purpose, self_state FROM holons WHERE id=$1`, id)
	if err := row.Scan(&purpose, &self); err != nil {
		return holonRow{}, err
	}
	purposeMap, err := unmarshalMap(purpose)
	if err != nil {
		return holonRow{}, err
	}
	selfMap, err := unmarshalMap(self)
	if err != nil {
		return holonRow{}, err
	}
	return holonRow{Purpose: purposeMap, SelfState: selfMap}, nil
}

type hobjRow struct {
	ID            string
	ParentID      sql.NullString
	Knowledge     sql.NullString
	TokenBank     int
	HeartRateSecs int
	LastHeartbeat sql.NullInt64
	NextHeartbeat sql.NullInt64
}

func (s *Store) loadHobjRow(ctx context.Context, id string) (hobjRow, bool, error) {
	var row hobjRow
	r := s.db.QueryRow(ctx, `
		SELECT id, parent_id, knowledge, token_bank, heart_rate_secs, last_heartbeat, next_heartbeat
		FROM hobjs WHERE id=$1
	`, id)
	if err := r.Scan(&row.ID, &row.ParentID, &row.Knowledge, &row.TokenBank, &row.HeartRateSecs,
		&row.LastHeartbeat, &row.NextHeartbeat); err != nil {
		if err == sql.ErrNoRows {
			return hobjRow{}, false, nil
		}
		return hobjRow{}, false, err
	}
	return row, true, nil
}

func (s *Store) childIDs(ctx context.Context, parentID string) ([]string, error) {
	rows, err := s.db.Query(ctx, `SELECT id FROM hobjs WHERE parent_id=$1`, parentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// messageRehydrateLimit caps how many of an agent's past messages are
// rehydrated into its in-memory inbox on restore.
const messageRehydrateLimit = 1000

// RestoreTree reconstructs the subtree rooted at id: agent instances with
// correct parent pointers, static purpose/self leaves, knowledge, token
// bank, heart rate, and heartbeat timestamps, then rehydrates each
// agent's last messageRehydrateLimit messages. Returns nil, nil if no
// hobj with that ID exists.
func (s *Store) RestoreTree(ctx context.Context, id string) (*holonagent.Agent, error) {
	return s.restoreSubtree(ctx, nil, id)
}

func (s *Store) restoreSubtree(ctx context.Context, parent *holonagent.Agent, id string) (*holonagent.Agent, error) {
	hobj, ok, err := s.loadHobjRow(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	holon, err := s.loadHolon(ctx, id)
	if err != nil {
		return nil, err
	}

	agent := holonagent.NewWithID(parent, id)
	for k, v := range holon.Purpose {
		agent.RestorePurposeBinding(k, v)
	}
	for k, v := range holon.SelfState {
		agent.RestoreSelfBinding(k, v)
	}

	knowledge, err := unmarshalMap(hobj.Knowledge)
	if err != nil {
		return nil, err
	}
	agent.RestoreKnowledge(knowledge)

	var lastHeartbeat *time.Time
	if hobj.LastHeartbeat.Valid {
		t := time.UnixMilli(hobj.LastHeartbeat.Int64).UTC()
		lastHeartbeat = &t
	}
	nextHeartbeat := time.Now().UTC()
	if hobj.NextHeartbeat.Valid {
		nextHeartbeat = time.UnixMilli(hobj.NextHeartbeat.Int64).UTC()
	}
	agent.RestoreRuntimeState(hobj.TokenBank, hobj.HeartRateSecs, lastHeartbeat, nextHeartbeat)

	if parent != nil {
		parent.AttachChild(agent)
	}

	childIDs, err := s.childIDs(ctx, id)
	if err != nil {
		return nil, err
	}
	for _, childID := range childIDs {
		if _, err := s.restoreSubtree(ctx, agent, childID); err != nil {
			return nil, err
		}
	}

	if err := s.rehydrateMessages(ctx, agent); err != nil {
		return nil, err
	}
	return agent, nil
}

func (s *Store) rehydrateMessages(ctx context.Context, agent *holonagent.Agent) error {
	rows, err := s.db.Query(ctx, `
		SELECT id, sender_id, recipient_ids, content, tokens_attached, timestamp
		FROM messages
		WHERE sender_id=$1 OR recipient_ids LIKE $2
		ORDER BY timestamp DESC
		LIMIT $3
	`, agent.ID(), "%"+agent.ID()+"%", messageRehydrateLimit)
	if err != nil {
		return err
	}
	defer rows.Close()

	var messages []holonagent.Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return err
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for i := len(messages) - 1; i >= 0; i-- {
		agent.RestoreMessage(messages[i])
	}
	return nil
}
