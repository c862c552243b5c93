package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joaopedro08-dev/authgo/internal/apperrors"
	"github.com/joaopedro08-dev/authgo/internal/handlers/userctx"
	"github.com/joaopedro08-dev/authgo/internal/models"
)

// Adapter so a bare function satisfies the auth service dependency
type authFunc func(ctx context.Context, r *http.Request) (models.User, error)

func (f authFunc) Auth(ctx context.Context, r *http.Request) (models.User, error) {
	return f(ctx, r)
}

func Test_AuthMiddleware(t *testing.T) {
	t.Parallel()

	user := models.User{
		ID:       uuid.New(),
		Email:    "test@example.com",
		Role:     models.RoleUser,
		IsActive: true,
	}

	t.Run("puts user into context", func(t *testing.T) {
		as := authFunc(func(ctx context.Context, r *http.Request) (models.User, error) {
			return user, nil
		})

		nextCalled := false
		next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			nextCalled = true

			got, ok := userctx.FromContext(r.Context())
			require.True(t, ok, "user should be in request context")
			assert.Equal(t, user.ID, got.ID)
		})

		w := httptest.NewRecorder()
		AuthMiddleware(as)(next).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

		require.True(t, nextCalled)
		require.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("error messages per failure", func(t *testing.T) {
		tests := []struct {
			name    string
			err     error
			message string
		}{
			{name: "revoked token", err: apperrors.ErrTokenRevoked, message: "Token revoked. Please log in again."},
			{name: "inactive user", err: apperrors.ErrUserInactive, message: "User is inactive. Please log in again."},
			{name: "expired token", err: apperrors.ErrTokenExpired, message: "Unauthorized"},
			{name: "bad signature", err: apperrors.ErrTokenInvalidSignature, message: "Unauthorized"},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				as := authFunc(func(ctx context.Context, r *http.Request) (models.User, error) {
					return models.User{}, tt.err
				})

				next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					t.Fatal("next handler must not be called")
				})

				w := httptest.NewRecorder()
				AuthMiddleware(as)(next).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

				require.Equal(t, http.StatusUnauthorized, w.Code)

				var body map[string]any
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
				assert.Equal(t, tt.message, body["message"])
			})
		}
	})
}
