package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/joaopedro08-dev/authgo/internal/models"
)

type BlacklistRepo struct {
	DB DBTX
}

const revokeToken = `-- name: RevokeToken
INSERT INTO blacklist_tokens (token, expires_at)
VALUES ($1, $2)
ON CONFLICT (token) DO UPDATE
SET expires_at = GREATEST(blacklist_tokens.expires_at, EXCLUDED.expires_at)
`

func (r *BlacklistRepo) Revoke(ctx context.Context, entry models.BlacklistEntry) error {
	_, err := r.DB.Exec(ctx, revokeToken, entry.Token, entry.ExpiresAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	return nil
}

const isTokenRevoked = `-- name: IsTokenRevoked
SELECT EXISTS (SELECT 1 FROM blacklist_tokens WHERE token = $1)
`

func (r *BlacklistRepo) IsRevoked(ctx context.Context, tokenString string) (bool, error) {
	var revoked bool
	err := r.DB.QueryRow(ctx, isTokenRevoked, tokenString).Scan(&revoked)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}

	return revoked, nil
}

const purgeExpiredEntries = `-- name: PurgeExpiredBlacklistEntries
DELETE FROM blacklist_tokens
WHERE expires_at < $1
`

// PurgeExpired is safe to race with Revoke and IsRevoked: a delete racing an
// insert of an already expired entry is benign, the next cycle picks it up.
func (r *BlacklistRepo) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.DB.Exec(ctx, purgeExpiredEntries, now)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}

	return tag.RowsAffected(), nil
}
