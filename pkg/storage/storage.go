// Package storage persists agent trees, heartbeat history, messages, and
// telemetry snapshots to a SQL database via go.mau.fi/util/dbutil. The
// schema separates a holon's durable purpose/self/actions definition from
// an hobj's (HolonicObject's) mutable runtime state, mirroring the
// engine's own type/instance split.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"go.mau.fi/util/dbutil"
)

// Store persists engine state to a SQL database. Agents are addressed
// purely by their GUID; the tree shape (parent_id) is reconstructed on
// restore rather than kept as a live pointer.
type Store struct {
	db *dbutil.Database
}

// New wraps an already-opened dbutil.Database. Call CreateTables before
// first use.
func New(db *dbutil.Database) *Store {
	return &Store{db: db}
}

// CreateTables creates every table this package needs, if missing.
func (s *Store) CreateTables(ctx context.Context) error {
	for _, stmt := range createStatements {
		if _, err := s.db.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

var createStatements = []string{
	`CREATE TABLE IF NOT EXISTS holons (
		id TEXT PRIMARY KEY,
		purpose TEXT,
		self_state TEXT,
		actions TEXT,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS hobjs (
		id TEXT PRIMARY KEY,
		holon_id TEXT REFERENCES holons(id) ON DELETE SET NULL,
		parent_id TEXT REFERENCES hobjs(id) ON DELETE SET NULL,
		knowledge TEXT,
		token_bank INTEGER NOT NULL DEFAULT 0,
		heart_rate_secs INTEGER NOT NULL DEFAULT 1,
		last_heartbeat INTEGER,
		next_heartbeat INTEGER,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS ix_hobjs_holon_id ON hobjs(holon_id)`,
	`CREATE INDEX IF NOT EXISTS ix_hobjs_parent_id ON hobjs(parent_id)`,
	`CREATE TABLE IF NOT EXISTS holon_references (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		holon_id TEXT NOT NULL REFERENCES holons(id) ON DELETE CASCADE,
		hobj_id TEXT NOT NULL REFERENCES hobjs(id) ON DELETE CASCADE,
		reference_type TEXT NOT NULL,
		created_at INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS ix_holon_refs_holon ON holon_references(holon_id)`,
	`CREATE INDEX IF NOT EXISTS ix_holon_refs_hobj ON holon_references(hobj_id)`,
	`CREATE TABLE IF NOT EXISTS heartbeats (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		heartbeat_time INTEGER NOT NULL,
		prompt TEXT,
		response TEXT,
		hobj_count INTEGER NOT NULL DEFAULT 0,
		duration_ms REAL,
		created_at INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS ix_heartbeats_time ON heartbeats(heartbeat_time)`,
	`CREATE TABLE IF NOT EXISTS heartbeat_hobjs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		heartbeat_id INTEGER NOT NULL REFERENCES heartbeats(id) ON DELETE CASCADE,
		hobj_id TEXT NOT NULL,
		hud_sent TEXT,
		actions_result TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS ix_heartbeat_hobjs_heartbeat ON heartbeat_hobjs(heartbeat_id)`,
	`CREATE INDEX IF NOT EXISTS ix_heartbeat_hobjs_hobj ON heartbeat_hobjs(hobj_id)`,
	`CREATE TABLE IF NOT EXISTS messages (
		id TEXT PRIMARY KEY,
		sender_id TEXT NOT NULL,
		recipient_ids TEXT NOT NULL,
		content TEXT NOT NULL,
		tokens_attached INTEGER NOT NULL DEFAULT 0,
		timestamp INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS ix_messages_sender ON messages(sender_id)`,
	`CREATE INDEX IF NOT EXISTS ix_messages_timestamp ON messages(timestamp)`,
	`CREATE TABLE IF NOT EXISTS telemetry_snapshots (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		snapshot_time INTEGER NOT NULL,
		data TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS ix_telemetry_time ON telemetry_snapshots(snapshot_time)`,
}

// HobjRow is the raw persisted shape of one agent's runtime state, as
// returned by LoadHobj. Purpose/self/actions come from the holons row,
// since those rarely vary per-instance in this engine and are saved once
// per agent GUID.
type HobjRow struct {
	ID            string
	ParentID      *string
	Purpose       map[string]any
	SelfState     map[string]any
	Knowledge     map[string]any
	TokenBank     int
	HeartRateSecs int
	LastHeartbeat *time.Time
	NextHeartbeat time.Time
}

// LoadHobj loads a single agent's persisted holon definition and runtime
// state by ID, without recursing into children. Returns nil, nil if no
// hobj with that ID exists. Use RestoreTree to reconstruct a live,
// runnable *holonagent.Agent subtree instead.
func (s *Store) LoadHobj(ctx context.Context, id string) (*HobjRow, error) {
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
	knowledge, err := unmarshalMap(hobj.Knowledge)
	if err != nil {
		return nil, err
	}

	row := &HobjRow{
		ID:            hobj.ID,
		Purpose:       holon.Purpose,
		SelfState:     holon.SelfState,
		Knowledge:     knowledge,
		TokenBank:     hobj.TokenBank,
		HeartRateSecs: hobj.HeartRateSecs,
		NextHeartbeat: time.Now().UTC(),
	}
	if hobj.ParentID.Valid {
		parentID := hobj.ParentID.String
		row.ParentID = &parentID
	}
	if hobj.LastHeartbeat.Valid {
		t := time.UnixMilli(hobj.LastHeartbeat.Int64).UTC()
		row.LastHeartbeat = &t
	}
	if hobj.NextHeartbeat.Valid {
		row.NextHeartbeat = time.UnixMilli(hobj.NextHeartbeat.Int64).UTC()
	}
	return row, nil
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().UnixMilli()
}

func marshalOrEmpty(v any) (string, error) {
	if v == nil {
		return "", nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func unmarshalMap(raw sql.NullString) (map[string]any, error) {
	if !raw.Valid || raw.String == "" {
		return map[string]any{}, nil
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(raw.String), &out); err != nil {
		return nil, err
	}
	return out, nil
}
