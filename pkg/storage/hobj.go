package storage

import (
	"context"
	"database/sql"
	"time"

	"github.com/nullcoward/holonic-engine/pkg/holonbind"
	"github.com/nullcoward/holonic-engine/pkg/holonagent"
)

// portableBindings renders a Container's non-callable bindings into the
// same keyed-map/unkeyed-slice/mixed shape Serialize() would produce,
// dropping any callable source along the way. Nested agents (Resolvable)
// are persisted as their resolved value, same as an HUD snapshot would
// see them, since there's no way to re-materialize a live *Agent pointer
// from a JSON column.
func portableBindings(items []holonbind.Binding) (any, error) {
	kept := holonbind.New()
	for _, b := range items {
		if holonagent.IsCallableBinding(b) {
			continue
		}
		kept.Add(b.Source, b.Key)
	}
	if kept.Len() == 0 {
		return map[string]any{}, nil
	}
	return kept.Serialize()
}

// SaveFull persists one agent's holon definition (purpose/self/actions)
// and hobj instance state (knowledge, token bank, heartbeat clock,
// parent pointer). It implements holonagent.Storage.
func (s *Store) SaveFull(ctx context.Context, a *holonagent.Agent) error {
	purpose, err := portableBindings(a.PurposeBindings())
	if err != nil {
		return err
	}
	self, err := portableBindings(a.SelfBindings())
	if err != nil {
		return err
	}
	actions := a.Actions().Serialize()

	purposeJSON, err := marshalOrEmpty(purpose)
	if err != nil {
		return err
	}
	selfJSON, err := marshalOrEmpty(self)
	if err != nil {
		return err
	}
	actionsJSON, err := marshalOrEmpty(actions)
	if err != nil {
		return err
	}

	now := time.Now().UTC().UnixMilli()
	if _, err := s.db.Exec(ctx, `
		INSERT INTO holons (id, purpose, self_state, actions, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET purpose=excluded.purpose, self_state=excluded.self_state,
			actions=excluded.actions, updated_at=excluded.updated_at
	`, a.ID(), purposeJSON, selfJSON, actionsJSON, now, now); err != nil {
		return err
	}

	knowledge, err := a.KnowledgeGet("")
	if err != nil {
		return err
	}
	knowledgeJSON, err := marshalOrEmpty(knowledge)
	if err != nil {
		return err
	}

	var parentID any
	if p := a.Parent(); p != nil {
		parentID = p.ID()
	}

	lastHeartbeat := nullableTime(a.LastHeartbeat())
	nextHeartbeat := a.NextHeartbeat().UTC().UnixMilli()

	_, err = s.db.Exec(ctx, `
		INSERT INTO hobjs (id, holon_id, parent_id, knowledge, token_bank, heart_rate_secs,
			last_heartbeat, next_heartbeat, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)
		ON CONFLICT (id) DO UPDATE SET holon_id=excluded.holon_id, parent_id=excluded.parent_id,
			knowledge=excluded.knowledge, token_bank=excluded.token_bank,
			heart_rate_secs=excluded.heart_rate_secs, last_heartbeat=excluded.last_heartbeat,
			next_heartbeat=excluded.next_heartbeat, updated_at=excluded.updated_at
	`, a.ID(), a.ID(), parentID, knowledgeJSON, a.TokenBank(), a.HeartRateSecs(),
		lastHeartbeat, nextHeartbeat, now)
	return err
}

// SaveTree recursively saves root and every descendant, returning the
// number of agents saved.
func (s *Store) SaveTree(ctx context.Context, root *holonagent.Agent) (int, error) {
	if err := s.SaveFull(ctx, root); err != nil {
		return 0, err
	}
	count := 1
	for _, child := range root.Children() {
		n, err := s.SaveTree(ctx, child)
		if err != nil {
			return count, err
		}
		count += n
	}
	return count, nil
}

// DeleteHobj removes an hobj row by ID, reporting whether one existed.
func (s *Store) DeleteHobj(ctx context.Context, id string) (bool, error) {
	res, err := s.db.Exec(ctx, `DELETE FROM hobjs WHERE id=$1`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// ListHobjs returns IDs of direct children of parentID, or root hobjs
// (those with no parent) when parentID is nil.
func (s *Store) ListHobjs(ctx context.Context, parentID *string) ([]string, error) {
	var rows *sql.Rows
	var err error
	if parentID == nil {
		rows, err = s.db.Query(ctx, `SELECT id FROM hobjs WHERE parent_id IS NULL`)
	} else {
		rows, err = s.db.Query(ctx, `SELECT id FROM hobjs WHERE parent_id=$1`, *parentID)
	}
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
