package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/mirrochat/e2ee-client/internal/logger"
)

type peerKeyRepository struct {
	db  *sql.DB
	log *logger.Logger
}

// NewPeerKeyRepository returns a SQLite-backed [PeerKeyRepository].
func NewPeerKeyRepository(db *sql.DB, log *logger.Logger) PeerKeyRepository {
	return &peerKeyRepository{db: db, log: log}
}

func (r *peerKeyRepository) Get(ctx context.Context, userID string) ([]byte, error) {
	query, args, err := sq.Select("key_material").
		From("peer_keys").
		Where(sq.Eq{"user_id": userID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build peer key select: %w", err)
	}

	var key []byte
	err = r.db.QueryRowContext(ctx, query, args...).Scan(&key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPeerKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select peer key: %w", err)
	}
	return key, nil
}

func (r *peerKeyRepository) Put(ctx context.Context, userID string, key []byte) error {
	query, args, err := sq.Insert("peer_keys").
		Columns("user_id", "key_material", "fetched_at").
		Values(userID, key, time.Now().UTC()).
		Suffix("ON CONFLICT(user_id) DO UPDATE SET key_material = excluded.key_material, fetched_at = excluded.fetched_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build peer key upsert: %w", err)
	}

	if _, err = r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert peer key: %w", err)
	}

	r.log.Debug().Str("user_id", userID).Msg("peer key persisted")
	return nil
}

func (r *peerKeyRepository) Delete(ctx context.Context, userID string) error {
	query, args, err := sq.Delete("peer_keys").
		Where(sq.Eq{"user_id": userID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build peer key delete: %w", err)
	}

	if _, err = r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("delete peer key: %w", err)
	}
	return nil
}
