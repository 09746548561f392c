package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/mirrochat/e2ee-client/internal/logger"
)

const createPeerKeysTable = `
	CREATE TABLE IF NOT EXISTS peer_keys (
		user_id      TEXT PRIMARY KEY,
		key_material BLOB NOT NULL,
		fetched_at   TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);`

// OpenSQLite opens (and creates, if missing) the local SQLite database used
// for durable peer-key storage and applies the schema.
func OpenSQLite(ctx context.Context, dsn string, log *logger.Logger) (*sql.DB, error) {
	if dsn == "" {
		dsn = ":memory:"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err = db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	if _, err = db.ExecContext(ctx, createPeerKeysTable); err != nil {
		return nil, fmt.Errorf("migrate peer_keys: %w", err)
	}

	log.Debug().Str("dsn", dsn).Msg("sqlite peer key store ready")
	return db, nil
}
