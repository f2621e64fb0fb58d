package storage

import (
	"context"
	"database/sql"
	"strconv"
	"time"

	"github.com/nullcoward/holonic-engine/pkg/heartbeat"
)

// SaveHeartbeat persists one completed heartbeat cycle along with every
// participating agent's HUD snapshot and actions result. Returns the
// generated row ID.
func (s *Store) SaveHeartbeat(ctx context.Context, hb *heartbeat.Heartbeat, durationMs float64) (int64, error) {
	promptJSON, err := marshalOrEmpty(hb.FullPrompt)
	if err != nil {
		return 0, err
	}
	responseJSON, err := marshalOrEmpty(hb.RawResponse)
	if err != nil {
		return 0, err
	}

	res, err := s.db.Exec(ctx, `
		INSERT INTO heartbeats (heartbeat_time, prompt, response, hobj_count, duration_ms, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, hb.HeartbeatTime.UTC().UnixMilli(), promptJSON, responseJSON, hb.Len(), durationMs,
		time.Now().UTC().UnixMilli())
	if err != nil {
		return 0, err
	}
	heartbeatID, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	for _, record := range hb.Records() {
		hudJSON, err := marshalOrEmpty(record.HUDSnapshot)
		if err != nil {
			return heartbeatID, err
		}
		resultJSON, err := marshalOrEmpty(record.ActionsResult)
		if err != nil {
			return heartbeatID, err
		}
		if _, err := s.db.Exec(ctx, `
			INSERT INTO heartbeat_hobjs (heartbeat_id, hobj_id, hud_sent, actions_result)
			VALUES ($1, $2, $3, $4)
		`, heartbeatID, record.AgentID, hudJSON, resultJSON); err != nil {
			return heartbeatID, err
		}
	}
	return heartbeatID, nil
}

// HeartbeatSummary is the row shape GetHeartbeats returns, without the
// per-agent detail rows.
type HeartbeatSummary struct {
	ID            int64
	HeartbeatTime time.Time
	HobjCount     int
	DurationMs    float64
}

// GetHeartbeat loads one heartbeat row's summary (time, agent count,
// duration) by ID; its prompt and raw response are not loaded. Returns
// nil, nil if no such row exists.
func (s *Store) GetHeartbeat(ctx context.Context, id int64) (*HeartbeatSummary, error) {
	var row HeartbeatSummary
	var heartbeatTimeMs int64
	var durationMs sql.NullFloat64
	err := s.db.QueryRow(ctx, `
		SELECT id, heartbeat_time, hobj_count, duration_ms FROM heartbeats WHERE id=$1
	`, id).Scan(&row.ID, &heartbeatTimeMs, &row.HobjCount, &durationMs)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	row.HeartbeatTime = time.UnixMilli(heartbeatTimeMs).UTC()
	row.DurationMs = durationMs.Float64
	return &row, nil
}

// GetHeartbeats returns up to limit heartbeats, most recent first,
// optionally bounded by since/until.
func (s *Store) GetHeartbeats(ctx context.Context, since, until *time.Time, limit, offset int) ([]HeartbeatSummary, error) {
	query := `SELECT id, heartbeat_time, hobj_count, duration_ms FROM heartbeats WHERE 1=1`
	var args []any
	n := 1
	if since != nil {
		n++
		query += " AND heartbeat_time >= $" + strconv.Itoa(n)
		args = append(args, since.UTC().UnixMilli())
	}
	if until != nil {
		n++
		query += " AND heartbeat_time <= $" + strconv.Itoa(n)
		args = append(args, until.UTC().UnixMilli())
	}
	query += " ORDER BY heartbeat_time DESC LIMIT $" + strconv.Itoa(n+1) + " OFFSET $" + strconv.Itoa(n+2)
	args = append(args, limit, offset)

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []HeartbeatSummary
	for rows.Next() {
		var row HeartbeatSummary
		var durationMs sql.NullFloat64
		var heartbeatTimeMs int64
		if err := rows.Scan(&row.ID, &heartbeatTimeMs, &row.HobjCount, &durationMs); err != nil {
			return nil, err
		}
		row.HeartbeatTime = time.UnixMilli(heartbeatTimeMs).UTC()
		row.DurationMs = durationMs.Float64
		out = append(out, row)
	}
	return out, rows.Err()
}

// GetHobjHeartbeats returns up to limit heartbeat_hobjs rows for one agent,
// most recent heartbeat first.
func (s *Store) GetHobjHeartbeats(ctx context.Context, agentID string, limit int) ([]map[string]any, error) {
	rows, err := s.db.Query(ctx, `
		SELECT h.heartbeat_time, hh.hud_sent, hh.actions_result
		FROM heartbeat_hobjs hh
		JOIN heartbeats h ON h.id = hh.heartbeat_id
		WHERE hh.hobj_id = $1
		ORDER BY h.heartbeat_time DESC
		LIMIT $2
	`, agentID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []map[string]any
	for rows.Next() {
		var heartbeatTimeMs int64
		var hud, result sql.NullString
		if err := rows.Scan(&heartbeatTimeMs, &hud, &result); err != nil {
			return nil, err
		}
		hudMap, err := unmarshalMap(hud)
		if err != nil {
			return nil, err
		}
		resultMap, err := unmarshalMap(result)
		if err != nil {
			return nil, err
		}
		out = append(out, map[string]any{
			"heartbeat_time": time.UnixMilli(heartbeatTimeMs).UTC(),
			"hud_sent":       hudMap,
			"actions_result": resultMap,
		})
	}
	return out, rows.Err()
}
