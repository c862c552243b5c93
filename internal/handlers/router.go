package handlers

import (
	"context"
	"net/http"

	"github.com/joaopedro08-dev/authgo/internal/handlers/middleware"
	"github.com/joaopedro08-dev/authgo/internal/logger"
	"github.com/joaopedro08-dev/authgo/internal/models"
)

// chain applies middlewares in the given order: m1(m2(...(h)))
func chain(h http.Handler, mds ...func(next http.Handler) http.Handler) http.Handler {
	for i := len(mds) - 1; i >= 0; i-- {
		h = mds[i](h)
	}
	return h
}

func NewRouter(as authService, l logger.Logger) http.Handler {
	h := NewAuth(as)
	withAuth := middleware.AuthMiddleware(as)

	api := http.NewServeMux()
	api.HandleFunc("POST /register", h.register)
	api.HandleFunc("POST /login", h.login)
	api.HandleFunc("POST /refresh", h.refresh)
	api.Handle("POST /logout", withAuth(http.HandlerFunc(h.logout)))
	api.Handle("GET /me", withAuth(handleUserMe()))

	root := http.NewServeMux()
	root.Handle("/api/auth/", http.StripPrefix("/api/auth", api))

	return chain(root,
		middleware.LoggerMiddleware(l),
	)
}

type authService interface {
	// Register user with name, email and password
	// Has to return apperrors.ErrUserAlreadyExists if email is taken
	Register(ctx context.Context, name string, email string, password string) (models.User, error)

	// Login user with email and password
	// Has to return apperrors.ErrRateLimited when clientKey is throttled and
	// apperrors.ErrInvalidCredentials on unknown email or wrong password
	Login(ctx context.Context, email string, password string, clientKey string) (models.TokenPair, error)

	// Revoke the presented access token and drop the refresh token
	Logout(ctx context.Context, user models.User, access string, refresh string) error

	// Rotate tokens using a still valid refresh token
	// If token expired: has to return apperrors.ErrRefreshTokenExpired
	// If token not found: has to return apperrors.ErrRefreshTokenNotFound
	RefreshPair(ctx context.Context, refresh string) (models.TokenPair, error)

	// Resolve request identity (blacklist, signature, active status)
	Auth(ctx context.Context, r *http.Request) (models.User, error)

	// Token carriers on request and response
	SetTokens(w http.ResponseWriter, pair models.TokenPair)
	ClearTokens(w http.ResponseWriter)
	GetAccess(r *http.Request) (string, error)
	GetRefresh(r *http.Request) (string, error)
}
