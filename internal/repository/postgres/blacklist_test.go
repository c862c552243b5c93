package postgres

import (
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joaopedro08-dev/authgo/internal/models"
	"github.com/joaopedro08-dev/authgo/internal/testutil"
)

func Test_BlacklistRepo(t *testing.T) {
	t.Parallel()

	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)

	t.Run("revoke and check", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			repo := BlacklistRepo{DB: tx}

			err := repo.Revoke(t.Context(), models.BlacklistEntry{
				Token:     "revoked-token",
				ExpiresAt: time.Now().Add(15 * time.Minute),
			})
			require.NoError(t, err)

			revoked, err := repo.IsRevoked(t.Context(), "revoked-token")
			require.NoError(t, err)
			assert.True(t, revoked)

			revoked, err = repo.IsRevoked(t.Context(), "other-token")
			require.NoError(t, err)
			assert.False(t, revoked)
		})
	})

	t.Run("repeated revoke keeps the later expiry", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			repo := BlacklistRepo{DB: tx}

			later := time.Now().Add(15 * time.Minute).Truncate(time.Millisecond)
			earlier := later.Add(-10 * time.Minute)

			err := repo.Revoke(t.Context(), models.BlacklistEntry{Token: "revoked-token", ExpiresAt: later})
			require.NoError(t, err)

			// Second revoke with an earlier expiry must not shorten the entry
			err = repo.Revoke(t.Context(), models.BlacklistEntry{Token: "revoked-token", ExpiresAt: earlier})
			require.NoError(t, err)

			var expiresAt time.Time
			err = tx.QueryRow(t.Context(),
				"SELECT expires_at FROM blacklist_tokens WHERE token = $1", "revoked-token",
			).Scan(&expiresAt)
			require.NoError(t, err)
			assert.WithinDuration(t, later, expiresAt, time.Millisecond)
		})
	})

	t.Run("purge expired", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			repo := BlacklistRepo{DB: tx}

			err := repo.Revoke(t.Context(), models.BlacklistEntry{
				Token:     "stale-token",
				ExpiresAt: time.Now().Add(-time.Minute),
			})
			require.NoError(t, err)
			err = repo.Revoke(t.Context(), models.BlacklistEntry{
				Token:     "live-token",
				ExpiresAt: time.Now().Add(15 * time.Minute),
			})
			require.NoError(t, err)

			purged, err := repo.PurgeExpired(t.Context(), time.Now())
			require.NoError(t, err)
			assert.Equal(t, int64(1), purged)

			revoked, err := repo.IsRevoked(t.Context(), "stale-token")
			require.NoError(t, err)
			assert.False(t, revoked, "expired entry should be gone")

			revoked, err = repo.IsRevoked(t.Context(), "live-token")
			require.NoError(t, err)
			assert.True(t, revoked, "live entry must survive the purge")
		})
	})
}
