package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/joaopedro08-dev/authgo/internal/apperrors"
	"github.com/joaopedro08-dev/authgo/internal/models"
	"github.com/joaopedro08-dev/authgo/internal/repository"
)

const (
	defaultIssuer          = "authgo"
	defaultSigningMethod   = "HS256"
	defaultAccessTokenTTL  = 15 * time.Minute
	defaultRefreshTokenTTL = 7 * 24 * time.Hour

	// 32 random bytes, well above the 128 bit floor for unguessable tokens
	refreshTokenBytesLen = 32
)

type AccessTokenClaims struct {
	jwt.RegisteredClaims
	UserID uuid.UUID `json:"id"`
	Role   string    `json:"role"`
}

// Token manager config with sensible defaults
type TokenConfig struct {
	// Secret key to sign access token
	// Required to be set
	SecretKey string

	// Issuer claim value, checked back on verification
	Issuer string

	// JWT MAC (Message Authentication Code) algorithm
	// If not set than default is used
	Alg string

	// Access and refresh token lifetimes
	// If not set than default is used
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

type TokenManager struct {
	// Secret key to sign access token
	key string

	// Issuer written into every access token
	issuer string

	// JWT MAC (Message Authentication Code) algorithm
	alg jwt.SigningMethod

	// Access and refresh token lifetimes
	accessTTL  time.Duration
	refreshTTL time.Duration

	// Refresh token repo
	refreshRepo repository.RefreshTokenRepo
}

func NewTokenManager(cfg TokenConfig, refreshRepo repository.RefreshTokenRepo) (*TokenManager, error) {
	if cfg.SecretKey == "" {
		return nil, errors.New("secret key must not be empty")
	}

	if cfg.Issuer == "" {
		cfg.Issuer = defaultIssuer
	}
	if cfg.Alg == "" {
		cfg.Alg = defaultSigningMethod
	}

	setDefaultDuration := func(field *time.Duration, def time.Duration) {
		if *field == 0 {
			*field = def
		}
	}
	setDefaultDuration(&cfg.AccessTTL, defaultAccessTokenTTL)
	setDefaultDuration(&cfg.RefreshTTL, defaultRefreshTokenTTL)

	return &TokenManager{
		key:         cfg.SecretKey,
		issuer:      cfg.Issuer,
		alg:         jwt.GetSigningMethod(cfg.Alg),
		accessTTL:   cfg.AccessTTL,
		refreshTTL:  cfg.RefreshTTL,
		refreshRepo: refreshRepo,
	}, nil
}

// IssueAccess signs a self contained access token for the user
func (m *TokenManager) IssueAccess(user models.User) (models.IssuedToken, error) {
	now := time.Now().Truncate(time.Second)
	expiresAt := now.Add(m.accessTTL)

	token := jwt.NewWithClaims(
		m.alg,
		AccessTokenClaims{
			RegisteredClaims: jwt.RegisteredClaims{
				Issuer:    m.issuer,
				Subject:   user.Email,
				ID:        uuid.NewString(),
				IssuedAt:  jwt.NewNumericDate(now),
				ExpiresAt: jwt.NewNumericDate(expiresAt),
			},
			UserID: user.ID,
			Role:   user.Role,
		},
	)
	access, err := token.SignedString([]byte(m.key))
	if err != nil {
		return models.IssuedToken{}, fmt.Errorf("error while signing access token. Err: %w", err)
	}

	return models.IssuedToken{Value: access, ExpiresAt: expiresAt}, nil
}

// GeneratePair issues access token and rotates the user refresh token
// Prior refresh token of the same user is invalidated by the repo atomically
func (m *TokenManager) GeneratePair(ctx context.Context, user models.User) (models.TokenPair, error) {
	var pair models.TokenPair
	now := time.Now().Truncate(time.Second)

	access, err := m.IssueAccess(user)
	if err != nil {
		return pair, err
	}

	b := make([]byte, refreshTokenBytesLen)
	_, err = rand.Read(b)
	if err != nil {
		return pair, fmt.Errorf("error while generate refresh token. Err: %w", err)
	}
	refresh := hex.EncodeToString(b)

	saved, err := m.refreshRepo.Replace(ctx, models.RefreshToken{
		ID:        uuid.New(),
		UserID:    user.ID,
		Token:     refresh,
		CreatedAt: now,
		ExpiresAt: now.Add(m.refreshTTL),
	})
	if err != nil {
		return pair, fmt.Errorf("error while saving refresh token. Err: %w", err)
	}

	return models.TokenPair{
		Access:  access,
		Refresh: models.IssuedToken{Value: saved.Token, ExpiresAt: saved.ExpiresAt},
	}, nil
}

// UseRefresh consumes the token: a second call with the same value observes
// apperrors.ErrRefreshTokenNotFound no matter how the first one ended
func (m *TokenManager) UseRefresh(ctx context.Context, refresh string) (models.RefreshToken, error) {
	token, err := m.refreshRepo.Consume(ctx, refresh)
	if err != nil {
		return token, fmt.Errorf("error while consuming refresh token. Err: %w", err)
	}

	// Row is already gone, which is exactly what the spec wants for expired tokens
	if token.ExpiresAt.Before(time.Now()) {
		return token, fmt.Errorf("error while consuming refresh token. Err: %w", apperrors.ErrRefreshTokenExpired)
	}

	return token, nil
}

// Verify parses access token and checks signature, issuer and expiry
// Failure kinds are reported as apperrors sentinels so callers may branch on them
func (m *TokenManager) Verify(access string) (AccessTokenClaims, error) {
	claims := &AccessTokenClaims{}

	// Expiry is rejected before the signature check: an expired token is
	// useless no matter who signed it, and jwt reports signature problems first
	if exp, ok := unverifiedExpiry(access); ok && exp.Before(time.Now()) {
		return *claims, fmt.Errorf("token error: %w", apperrors.ErrTokenExpired)
	}

	_, err := jwt.ParseWithClaims(
		access,
		claims,
		func(t *jwt.Token) (any, error) { return []byte(m.key), nil },
		jwt.WithValidMethods([]string{m.alg.Alg()}),
		jwt.WithIssuer(m.issuer),
	)

	switch {
	case err == nil:
		return *claims, nil
	case errors.Is(err, jwt.ErrTokenExpired):
		return *claims, fmt.Errorf("token error: %w", apperrors.ErrTokenExpired)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return *claims, fmt.Errorf("token error: %w", apperrors.ErrTokenInvalidSignature)
	case errors.Is(err, jwt.ErrTokenInvalidIssuer):
		return *claims, fmt.Errorf("token error: %w", apperrors.ErrTokenIssuerMismatch)
	default:
		return *claims, fmt.Errorf("token error: %w", apperrors.ErrTokenMalformed)
	}
}

// ExpiresAt extracts token expiry without verifying the signature
// Used on logout to blacklist whatever the client presented
// Falls back to now+accessTTL if the token can not be decoded
func (m *TokenManager) ExpiresAt(access string) time.Time {
	exp, ok := unverifiedExpiry(access)
	if !ok {
		return time.Now().Add(m.accessTTL)
	}

	return exp
}

func unverifiedExpiry(access string) (time.Time, bool) {
	claims := &jwt.RegisteredClaims{}

	_, _, err := jwt.NewParser().ParseUnverified(access, claims)
	if err != nil || claims.ExpiresAt == nil {
		return time.Time{}, false
	}

	return claims.ExpiresAt.Time, true
}
