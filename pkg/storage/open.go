package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
	"go.mau.fi/util/dbutil"
)

// Open opens a SQLite database at path (":memory:" for an ephemeral
// store), wraps it as a dbutil.Database, issues PRAGMA key once if
// passphrase is non-empty, and creates the schema. The PRAGMA runs on the
// one pooled connection that executes it; connections the pool opens later
// are not keyed. Keying is best-effort:
// if the PRAGMA returns an error, a warning is logged and startup goes on
// unencrypted; a go-sqlite3 build without SQLCipher support ignores the
// PRAGMA without an error, and then no warning is logged.
func Open(ctx context.Context, path, passphrase string, log zerolog.Logger) (*Store, error) {
	raw, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("storage: open sqlite: %w", err)
	}
	db, err := dbutil.NewWithDB(raw, "sqlite3")
	if err != nil {
		return nil, fmt.Errorf("storage: wrap db: %w", err)
	}

	if passphrase != "" {
		escaped := strings.ReplaceAll(passphrase, "'", "''")
		if _, err := db.Exec(ctx, fmt.Sprintf("PRAGMA key = '%s'", escaped)); err != nil {
			log.Warn().Err(err).Msg("storage: PRAGMA key rejected, continuing unencrypted (cipher-less sqlite3 build?)")
		}
	}

	store := New(db)
	if err := store.CreateTables(ctx); err != nil {
		return nil, fmt.Errorf("storage: create tables: %w", err)
	}
	return store, nil
}
