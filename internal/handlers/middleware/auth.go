package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/joaopedro08-dev/authgo/internal/apperrors"
	"github.com/joaopedro08-dev/authgo/internal/handlers/render"
	"github.com/joaopedro08-dev/authgo/internal/handlers/userctx"
	"github.com/joaopedro08-dev/authgo/internal/models"
)

type authService interface {
	Auth(ctx context.Context, r *http.Request) (models.User, error)
}

func AuthMiddleware(as authService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, err := as.Auth(r.Context(), r)
			if err != nil {
				switch {
				case errors.Is(err, apperrors.ErrTokenRevoked):
					render.ServiceError(w, "Token revoked. Please log in again.", http.StatusUnauthorized)
				case errors.Is(err, apperrors.ErrUserInactive):
					render.ServiceError(w, "User is inactive. Please log in again.", http.StatusUnauthorized)
				default:
					render.ServiceError(w, "Unauthorized", http.StatusUnauthorized)
				}
				return
			}

			ctx := userctx.NewContext(r.Context(), user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
