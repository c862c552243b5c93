package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joaopedro08-dev/authgo/internal/apperrors"
	"github.com/joaopedro08-dev/authgo/internal/models"
	"github.com/joaopedro08-dev/authgo/internal/repository"
	"github.com/joaopedro08-dev/authgo/internal/repository/postgres"
	"github.com/joaopedro08-dev/authgo/internal/testutil"
)

func mustParseTime(value string) time.Time {
	dt, err := time.Parse("2006-01-02 15:04:05Z07:00", value)
	if err != nil {
		panic(err)
	}
	return dt
}

func newTestUser() models.User {
	return models.User{
		ID:             uuid.New(),
		CreatedAt:      mustParseTime("2024-01-01 19:00:01Z"),
		Name:           "Test User",
		Email:          "test@example.com",
		HashedPassword: "hashed_password",
		Role:           models.RoleUser,
		IsActive:       true,
	}
}

func Test_TokenManager_New(t *testing.T) {
	t.Parallel()

	t.Run("new defaults", func(t *testing.T) {
		m, err := NewTokenManager(TokenConfig{SecretKey: "secret"}, nil)
		require.NoError(t, err, "token manager should be created without errors")

		require.Equal(t, "secret", m.key, "secret key should be set")
		require.Equal(t, defaultIssuer, m.issuer, "default issuer should be set")
		require.Equal(t, defaultAccessTokenTTL, m.accessTTL, "default access token TTL should be set")
		require.Equal(t, defaultRefreshTokenTTL, m.refreshTTL, "default refresh token TTL")
		require.Equal(t, defaultSigningMethod, m.alg.Alg(), "default signing method should be set")
	})

	t.Run("fail without secret", func(t *testing.T) {
		_, err := NewTokenManager(TokenConfig{}, nil)
		require.Error(t, err, "empty secret key must not be accepted")
	})
}

// Codec part of the manager needs no database at all
func Test_TokenManager_Codec(t *testing.T) {
	t.Parallel()

	newManager := func(t *testing.T, cfg TokenConfig) *TokenManager {
		if cfg.SecretKey == "" {
			cfg.SecretKey = "test-secret-key"
		}
		m, err := NewTokenManager(cfg, nil)
		require.NoError(t, err, "token manager should be created without errors")
		return m
	}
	testUser := newTestUser()

	t.Run("issue and verify round trip", func(t *testing.T) {
		m := newManager(t, TokenConfig{})

		access, err := m.IssueAccess(testUser)
		require.NoError(t, err)
		require.NotEmpty(t, access.Value)
		require.WithinDuration(t, time.Now().Add(15*time.Minute), access.ExpiresAt, time.Second)

		claims, err := m.Verify(access.Value)
		require.NoError(t, err, "valid token should verify without errors")

		assert.Equal(t, testUser.Email, claims.Subject, "subject should be user email")
		assert.Equal(t, testUser.ID, claims.UserID, "user ID in token should match")
		assert.Equal(t, testUser.Role, claims.Role, "role in token should match")
		assert.Equal(t, defaultIssuer, claims.Issuer)
		assert.NotEmpty(t, claims.ID, "token has to has jti")
		assert.WithinDuration(t, access.ExpiresAt, claims.ExpiresAt.Time, 0, "expires at should match the issued value")
	})

	t.Run("expired token", func(t *testing.T) {
		m := newManager(t, TokenConfig{AccessTTL: time.Second})

		access, err := m.IssueAccess(testUser)
		require.NoError(t, err)

		// Wait for the token to expire
		time.Sleep(time.Second)

		_, err = m.Verify(access.Value)
		require.Error(t, err)
		require.ErrorIs(t, err, apperrors.ErrTokenExpired)
	})

	t.Run("expired reported even with wrong signature", func(t *testing.T) {
		issued := newManager(t, TokenConfig{AccessTTL: time.Second, SecretKey: "one-key"})
		verifier := newManager(t, TokenConfig{SecretKey: "other-key"})

		access, err := issued.IssueAccess(testUser)
		require.NoError(t, err)

		time.Sleep(time.Second)

		_, err = verifier.Verify(access.Value)
		require.ErrorIs(t, err, apperrors.ErrTokenExpired, "expiry should win over any other defect")
	})

	t.Run("wrong signature", func(t *testing.T) {
		issued := newManager(t, TokenConfig{SecretKey: "one-key"})
		verifier := newManager(t, TokenConfig{SecretKey: "other-key"})

		access, err := issued.IssueAccess(testUser)
		require.NoError(t, err)

		_, err = verifier.Verify(access.Value)
		require.ErrorIs(t, err, apperrors.ErrTokenInvalidSignature)
	})

	t.Run("issuer mismatch", func(t *testing.T) {
		issued := newManager(t, TokenConfig{Issuer: "someone-else"})
		verifier := newManager(t, TokenConfig{})

		access, err := issued.IssueAccess(testUser)
		require.NoError(t, err)

		_, err = verifier.Verify(access.Value)
		require.ErrorIs(t, err, apperrors.ErrTokenIssuerMismatch)
	})

	t.Run("not a token", func(t *testing.T) {
		m := newManager(t, TokenConfig{})

		_, err := m.Verify("not a token at all")
		require.ErrorIs(t, err, apperrors.ErrTokenMalformed)
	})

	t.Run("not signed token", func(t *testing.T) {
		m := newManager(t, TokenConfig{})

		// Create valid but unsigned token
		token := jwt.NewWithClaims(
			jwt.SigningMethodNone,
			AccessTokenClaims{
				RegisteredClaims: jwt.RegisteredClaims{
					Issuer:    defaultIssuer,
					Subject:   testUser.Email,
					ID:        uuid.NewString(),
					IssuedAt:  jwt.NewNumericDate(time.Now()),
					ExpiresAt: jwt.NewNumericDate(time.Now().Add(15 * time.Minute)),
				},
				UserID: testUser.ID,
			},
		)
		access, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)

		_, err = m.Verify(access)
		require.Error(t, err, "valid token with none alg must fail")
	})

	t.Run("expiry extraction", func(t *testing.T) {
		m := newManager(t, TokenConfig{})

		access, err := m.IssueAccess(testUser)
		require.NoError(t, err)

		require.WithinDuration(t, access.ExpiresAt, m.ExpiresAt(access.Value), 0)
	})

	t.Run("expiry extraction falls back for garbage", func(t *testing.T) {
		m := newManager(t, TokenConfig{})

		got := m.ExpiresAt("garbage")
		require.WithinDuration(t, time.Now().Add(defaultAccessTokenTTL), got, time.Second,
			"undecodable token should get a full access TTL")
	})
}

func Test_TokenManager_Pair(t *testing.T) {
	t.Parallel()

	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)

	withTx := func(dbpool *pgxpool.Pool, t *testing.T, accessTTL time.Duration, refreshTTL time.Duration, fn func(m *TokenManager, s repository.Storage)) {
		testutil.WithTx(dbpool, t, func(tx pgx.Tx) {
			storage := postgres.NewStorage(tx)

			tokenManager, err := NewTokenManager(
				TokenConfig{
					SecretKey:  "test-secret-key",
					AccessTTL:  accessTTL,
					RefreshTTL: refreshTTL,
				},
				storage.Refresh(),
			)
			require.NoError(t, err, "token manager should be created without errors")

			fn(tokenManager, storage)
		})
	}

	createUser := func(t *testing.T, s repository.Storage) models.User {
		user, err := s.User().CreateUser(t.Context(), repository.CreateUserParams{
			Name:           "Test User",
			Email:          "test@example.com",
			HashedPassword: "hashed_password",
			Role:           models.RoleUser,
		})
		require.NoError(t, err)
		return user
	}

	t.Run("return token pair", func(t *testing.T) {
		withTx(pg.Pool, t, 15*time.Minute, 7*24*time.Hour, func(m *TokenManager, s repository.Storage) {
			user := createUser(t, s)

			pair, err := m.GeneratePair(t.Context(), user)

			require.NoError(t, err)
			assert.NotEmpty(t, pair.Access.Value, "access token should not be empty")
			assert.WithinDuration(t, time.Now().Add(15*time.Minute), pair.Access.ExpiresAt, time.Second)
			assert.NotEmpty(t, pair.Refresh.Value, "refresh token should not be empty")
			assert.WithinDuration(t, time.Now().Add(7*24*time.Hour), pair.Refresh.ExpiresAt, time.Second)
		})
	})

	t.Run("generate different tokens", func(t *testing.T) {
		withTx(pg.Pool, t, 15*time.Minute, 7*24*time.Hour, func(m *TokenManager, s repository.Storage) {
			user := createUser(t, s)

			pair1, err := m.GeneratePair(t.Context(), user)
			require.NoError(t, err)

			pair2, err := m.GeneratePair(t.Context(), user)
			require.NoError(t, err)

			assert.NotEqual(t, pair1.Refresh.Value, pair2.Refresh.Value, "refresh tokens should be different")
			assert.NotEqual(t, pair1.Access.Value, pair2.Access.Value, "access tokens should be different")
		})
	})

	t.Run("pair generation rotates refresh token", func(t *testing.T) {
		withTx(pg.Pool, t, 15*time.Minute, 7*24*time.Hour, func(m *TokenManager, s repository.Storage) {
			user := createUser(t, s)

			pair1, err := m.GeneratePair(t.Context(), user)
			require.NoError(t, err)

			_, err = m.GeneratePair(t.Context(), user)
			require.NoError(t, err)

			// Prior refresh token must be gone after the rotation
			_, err = m.UseRefresh(t.Context(), pair1.Refresh.Value)
			require.ErrorIs(t, err, apperrors.ErrRefreshTokenNotFound)
		})
	})

	t.Run("use token once", func(t *testing.T) {
		withTx(pg.Pool, t, 15*time.Minute, 7*24*time.Hour, func(m *TokenManager, s repository.Storage) {
			user := createUser(t, s)

			pair, err := m.GeneratePair(t.Context(), user)
			require.NoError(t, err)

			token, err := m.UseRefresh(t.Context(), pair.Refresh.Value)
			require.NoError(t, err, "using refresh token should not return an error")

			require.Equal(t, user.ID, token.UserID)
			require.WithinDuration(t, pair.Refresh.ExpiresAt, token.ExpiresAt, time.Second)
		})
	})

	t.Run("use token twice", func(t *testing.T) {
		withTx(pg.Pool, t, 15*time.Minute, 7*24*time.Hour, func(m *TokenManager, s repository.Storage) {
			user := createUser(t, s)

			pair, err := m.GeneratePair(t.Context(), user)
			require.NoError(t, err)

			// Use the token once
			_, err = m.UseRefresh(t.Context(), pair.Refresh.Value)
			require.NoError(t, err, "using refresh token should not return an error")

			// Try to use the same token again
			_, err = m.UseRefresh(t.Context(), pair.Refresh.Value)
			require.ErrorIs(t, err, apperrors.ErrRefreshTokenNotFound, "second use must observe not found")
		})
	})

	t.Run("use expired token", func(t *testing.T) {
		withTx(pg.Pool, t, time.Second, time.Second, func(m *TokenManager, s repository.Storage) {
			user := createUser(t, s)

			pair, err := m.GeneratePair(t.Context(), user)
			require.NoError(t, err)

			// Wait for the token to expire
			time.Sleep(time.Second)

			_, err = m.UseRefresh(t.Context(), pair.Refresh.Value)
			require.ErrorIs(t, err, apperrors.ErrRefreshTokenExpired)

			// Expired consume deletes the row, so retry observes not found
			_, err = m.UseRefresh(t.Context(), pair.Refresh.Value)
			require.ErrorIs(t, err, apperrors.ErrRefreshTokenNotFound)
		})
	})
}
