package storage

import (
	"context"
	"database/sql"
	"time"
)

// SaveTelemetrySnapshot persists one telemetry summary map, as produced by
// telemetry.Telemetry.Summary. Returns the generated row ID.
func (s *Store) SaveTelemetrySnapshot(ctx context.Context, data map[string]any) (int64, error) {
	body, err := marshalOrEmpty(data)
	if err != nil {
		return 0, err
	}
	res, err := s.db.Exec(ctx, `
		INSERT INTO telemetry_snapshots (snapshot_time, data)
		VALUES ($1, $2)
	`, time.Now().UTC().UnixMilli(), body)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// GetTelemetrySnapshots returns up to limit snapshots, most recent first,
// optionally bounded to those at or after since.
func (s *Store) GetTelemetrySnapshots(ctx context.Context, since *time.Time, limit int) ([]map[string]any, error) {
	var rows *sql.Rows
	var err error
	if since != nil {
		rows, err = s.db.Query(ctx, `
			SELECT snapshot_time, data FROM telemetry_snapshots
			WHERE snapshot_time >= $1 ORDER BY snapshot_time DESC LIMIT $2
		`, since.UTC().UnixMilli(), limit)
	} else {
		rows, err = s.db.Query(ctx, `
			SELECT snapshot_time, data FROM telemetry_snapshots
			ORDER BY snapshot_time DESC LIMIT $1
		`, limit)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []map[string]any
	for rows.Next() {
		var snapshotTimeMs int64
		var data sql.NullString
		if err := rows.Scan(&snapshotTimeMs, &data); err != nil {
			return nil, err
		}
		parsed, err := unmarshalMap(data)
		if err != nil {
			return nil, err
		}
		parsed["snapshot_time"] = time.UnixMilli(snapshotTimeMs).UTC()
		out = append(out, parsed)
	}
	return out, rows.Err()
}
