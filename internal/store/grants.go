package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dwizi/group-warden/internal/grants"
)

// SaveGrant inserts or overwrites the grant for its (chat, user) pair.
func (s *Store) SaveGrant(ctx context.Context, grant grants.Grant) error {
	nowUnix := time.Now().UTC().Unix()
	expiresAt := grant.ExpiresAt.UTC()
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO temp_grants (
			id, chat_id, user_id, expires_at_unix, expires_at_nanos, created_at_unix, updated_at_unix
		) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(chat_id, user_id) DO UPDATE SET
			expires_at_unix = excluded.expires_at_unix,
			expires_at_nanos = excluded.expires_at_nanos,
			updated_at_unix = excluded.updated_at_unix`,
		uuid.NewString(),
		grant.ChatID,
		grant.UserID,
		expiresAt.Unix(),
		expiresAt.Nanosecond(),
		nowUnix,
		nowUnix,
	)
	if err != nil {
		return fmt.Errorf("upsert grant: %w", err)
	}
	return nil
}

func (s *Store) DeleteGrant(ctx context.Context, key grants.Key) error {
	if _, err := s.db.ExecContext(
		ctx,
		`DELETE FROM temp_grants WHERE chat_id = ? AND user_id = ?`,
		key.ChatID,
		key.UserID,
	); err != nil {
		return fmt.Errorf("delete grant: %w", err)
	}
	return nil
}

// ListGrants returns every persisted grant, soonest expiry first.
func (s *Store) ListGrants(ctx context.Context) ([]grants.Grant, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT chat_id, user_id, expires_at_unix, expires_at_nanos
		 FROM temp_grants
		 ORDER BY expires_at_unix ASC, expires_at_nanos ASC, chat_id ASC, user_id ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list grants: %w", err)
	}
	defer rows.Close()

	items := []grants.Grant{}
	for rows.Next() {
		var (
			item          grants.Grant
			expiresAtUnix int64
			expiresNanos  int64
		)
		if err := rows.Scan(&item.ChatID, &item.UserID, &expiresAtUnix, &expiresNanos); err != nil {
			return nil, fmt.Errorf("scan grant: %w", err)
		}
		item.ExpiresAt = time.Unix(expiresAtUnix, expiresNanos).UTC()
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate grants: %w", err)
	}
	return items, nil
}
