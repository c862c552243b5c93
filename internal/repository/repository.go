package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/joaopedro08-dev/authgo/internal/models"
)

type CreateUserParams struct {
	Name           string
	Email          string
	HashedPassword string
	Role           string
}

// User repository interface
type UserRepo interface {
	// Create user
	// If user with email exists already has to return error apperrors.ErrUserAlreadyExists
	CreateUser(ctx context.Context, arg CreateUserParams) (models.User, error)

	// Get user by it's id or email
	// If user not found must return apperrors.ErrUserNotFound
	GetUserByID(ctx context.Context, userID uuid.UUID) (models.User, error)
	GetUserByEmail(ctx context.Context, email string) (models.User, error)

	// Flip the active flag; login additionally records last_login_at
	MarkLoggedIn(ctx context.Context, userID uuid.UUID, at time.Time) (models.User, error)
	MarkLoggedOut(ctx context.Context, userID uuid.UUID) error
}

// RefreshToken repository interface
type RefreshTokenRepo interface {
	// Replace user refresh token with the given one
	// Any prior token owned by the same user must be gone after the call,
	// atomically with respect to concurrent Replace calls for that user
	Replace(ctx context.Context, token models.RefreshToken) (models.RefreshToken, error)

	// Atomically take the token out of the store and return its data
	// Second call with the same token must return apperrors.ErrRefreshTokenNotFound
	// Expiry is NOT checked here, the caller decides what expired means
	Consume(ctx context.Context, tokenString string) (models.RefreshToken, error)

	// Delete token if it exists, no error if it does not
	Delete(ctx context.Context, tokenString string) error

	// Delete tokens expired before now, return the number of deleted rows
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}

// Revoked access token ledger
type BlacklistRepo interface {
	// Remember token as revoked until entry.ExpiresAt
	// Idempotent: revoking the same token again keeps the later expiry
	Revoke(ctx context.Context, entry models.BlacklistEntry) error

	// Existence check
	IsRevoked(ctx context.Context, tokenString string) (bool, error)

	// Delete entries expired before now, return the number of deleted rows
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}

type Storage interface {
	User() UserRepo
	Refresh() RefreshTokenRepo
	Blacklist() BlacklistRepo

	// Run fn within single db transaction
	InTx(ctx context.Context, fn func(s Storage) error) error
}
