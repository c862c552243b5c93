package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/joaopedro08-dev/authgo/internal/apperrors"
	"github.com/joaopedro08-dev/authgo/internal/models"
	"github.com/joaopedro08-dev/authgo/internal/repository"
)

const (
	defaultAccessHeaderName  = "Authorization"
	defaultAccessAuthScheme  = "Bearer"
	defaultAccessCookieName  = "jwtToken"
	defaultRefreshCookieName = "refreshToken"
)

// Request carries no token at all, in any of the known carriers
var ErrNoToken = errors.New("no access token in request")

// Interface to create or compare user password hashes
type PasswordHasher interface {
	// Generate Hash from password
	Hash(password string) (string, error)

	// Compare known hashedPassword and user provided password
	// Must be protected against timing attacks
	Compare(hashedPassword string, password string) error
}

type Config struct {
	// Hasher to use during user registration or login process
	// Defaults to BcryptHasher
	Hasher PasswordHasher

	// Login attempts limiter, created with defaults if not set
	Limiter *RateLimiter

	// Set Secure flag on token cookies
	CookieSecure bool
}

// Auth service: the session state machine
// Orchestrates sign up, sign in, sign out, refresh and per request identity resolution
type AuthService struct {
	// Manager to issue and verify token pairs (access and refresh)
	token *TokenManager

	// hasher to hash or compare user passwords
	hasher PasswordHasher

	// Per client key login throttle
	limiter *RateLimiter

	// Repository to access long term data
	storage repository.Storage

	// Hash compared against when the email is unknown, so both
	// failure branches of Login cost one bcrypt comparison
	dummyHash string

	cookieSecure      bool
	accessHeaderName  string
	accessAuthScheme  string
	accessCookieName  string
	refreshCookieName string
}

func NewService(cfg Config, tokenManager *TokenManager, storage repository.Storage) (*AuthService, error) {
	hasher := cfg.Hasher
	if hasher == nil {
		hasher = BcryptHasher{}
	}

	limiter := cfg.Limiter
	if limiter == nil {
		limiter = NewRateLimiter(defaultRateCapacity, defaultRateWindow)
	}

	dummyHash, err := hasher.Hash("authgo-no-such-user")
	if err != nil {
		return nil, fmt.Errorf("error while preparing dummy hash. Err: %w", err)
	}

	return &AuthService{
		token:             tokenManager,
		hasher:            hasher,
		limiter:           limiter,
		storage:           storage,
		dummyHash:         dummyHash,
		cookieSecure:      cfg.CookieSecure,
		accessHeaderName:  defaultAccessHeaderName,
		accessAuthScheme:  defaultAccessAuthScheme,
		accessCookieName:  defaultAccessCookieName,
		refreshCookieName: defaultRefreshCookieName,
	}, nil
}

// Register creates inactive user with the default role
// Session starts on the first Login, not here
func (s *AuthService) Register(ctx context.Context, name string, email string, password string) (models.User, error) {
	var user models.User

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return user, fmt.Errorf("can't use this as password, error=%w", err)
	}

	user, err = s.storage.User().CreateUser(ctx, repository.CreateUserParams{
		Name:           name,
		Email:          email,
		HashedPassword: hash,
		Role:           models.RoleUser,
	})
	if err != nil {
		return user, err
	}

	return user, nil
}

// Login checks credentials and issues a fresh token pair
// Unknown email and wrong password are reported the same way
// so callers can't probe which emails are registered
func (s *AuthService) Login(ctx context.Context, email string, password string, clientKey string) (models.TokenPair, error) {
	var pair models.TokenPair

	if !s.limiter.TryConsume(clientKey) {
		return pair, apperrors.ErrRateLimited
	}

	user, err := s.storage.User().GetUserByEmail(ctx, email)
	switch {
	case errors.Is(err, apperrors.ErrUserNotFound):
		_ = s.hasher.Compare(s.dummyHash, password)
		return pair, apperrors.ErrInvalidCredentials
	case err != nil:
		return pair, fmt.Errorf("error while looking up user. Err: %w", err)
	}

	if err := s.hasher.Compare(user.HashedPassword, password); err != nil {
		return pair, apperrors.ErrInvalidCredentials
	}

	user, err = s.storage.User().MarkLoggedIn(ctx, user.ID, time.Now())
	if err != nil {
		return pair, fmt.Errorf("error while marking user logged in. Err: %w", err)
	}

	pair, err = s.token.GeneratePair(ctx, user)
	if err != nil {
		return pair, fmt.Errorf("token could not generated, sorry. %w", err)
	}

	return pair, nil
}

// Logout revokes the presented access token until its natural expiry
// and drops the refresh token if one was presented
func (s *AuthService) Logout(ctx context.Context, user models.User, access string, refresh string) error {
	// Best effort expiry: undecodable token is blacklisted for a full access TTL
	expiresAt := s.token.ExpiresAt(access)

	err := s.storage.Blacklist().Revoke(ctx, models.BlacklistEntry{Token: access, ExpiresAt: expiresAt})
	if err != nil {
		return fmt.Errorf("error while revoking access token. Err: %w", err)
	}

	err = s.storage.User().MarkLoggedOut(ctx, user.ID)
	if err != nil {
		return fmt.Errorf("error while marking user logged out. Err: %w", err)
	}

	if refresh != "" {
		err = s.storage.Refresh().Delete(ctx, refresh)
		if err != nil {
			return fmt.Errorf("error while deleting refresh token. Err: %w", err)
		}
	}

	return nil
}

// RefreshPair rotates tokens: consumes the old refresh token and issues
// a new pair, the old value is never usable again regardless of outcome
func (s *AuthService) RefreshPair(ctx context.Context, refresh string) (models.TokenPair, error) {
	var pair models.TokenPair

	token, err := s.token.UseRefresh(ctx, refresh)
	if err != nil {
		return pair, err
	}

	user, err := s.storage.User().GetUserByID(ctx, token.UserID)
	if err != nil {
		return pair, fmt.Errorf("error while looking up token owner. Err: %w", err)
	}

	pair, err = s.token.GeneratePair(ctx, user)
	if err != nil {
		return pair, fmt.Errorf("token could not generated, sorry. %w", err)
	}

	return pair, nil
}

// Auth resolves request identity
// Blacklist check goes first: a revoked but still cryptographically valid
// token must be rejected before any of its claims is trusted
func (s *AuthService) Auth(ctx context.Context, r *http.Request) (models.User, error) {
	var user models.User

	access, err := s.recoverAccess(r)
	if err != nil {
		return user, err
	}

	revoked, err := s.storage.Blacklist().IsRevoked(ctx, access)
	if err != nil {
		return user, fmt.Errorf("error while checking blacklist. Err: %w", err)
	}
	if revoked {
		return user, apperrors.ErrTokenRevoked
	}

	claims, err := s.token.Verify(access)
	if err != nil {
		return user, err
	}

	user, err = s.storage.User().GetUserByEmail(ctx, claims.Subject)
	if err != nil {
		return user, fmt.Errorf("error while looking up token subject. Err: %w", err)
	}

	if !user.IsActive {
		return user, apperrors.ErrUserInactive
	}

	return user, nil
}

// GetAccess returns the access token string the request carries
// Header carrier takes precedence over the cookie one
func (s *AuthService) GetAccess(r *http.Request) (string, error) {
	return s.recoverAccess(r)
}

// GetRefresh returns refresh token from the request cookie
func (s *AuthService) GetRefresh(r *http.Request) (string, error) {
	cookie, err := r.Cookie(s.refreshCookieName)
	if err != nil {
		return "", ErrNoToken
	}

	return cookie.Value, nil
}

// SetTokens writes both carriers to the response:
// Authorization header plus HttpOnly SameSite=Strict cookies
func (s *AuthService) SetTokens(w http.ResponseWriter, pair models.TokenPair) {
	w.Header().Set(s.accessHeaderName, s.accessAuthScheme+" "+pair.Access.Value)

	http.SetCookie(w, &http.Cookie{
		Name:     s.accessCookieName,
		Value:    pair.Access.Value,
		Path:     "/",
		MaxAge:   int(time.Until(pair.Access.ExpiresAt).Seconds()),
		HttpOnly: true,
		Secure:   s.cookieSecure,
		SameSite: http.SameSiteStrictMode,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     s.refreshCookieName,
		Value:    pair.Refresh.Value,
		Path:     "/",
		MaxAge:   int(time.Until(pair.Refresh.ExpiresAt).Seconds()),
		HttpOnly: true,
		Secure:   s.cookieSecure,
		SameSite: http.SameSiteStrictMode,
	})
}

// ClearTokens expires both token cookies
func (s *AuthService) ClearTokens(w http.ResponseWriter) {
	for _, name := range []string{s.accessCookieName, s.refreshCookieName} {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   s.cookieSecure,
			SameSite: http.SameSiteStrictMode,
		})
	}
}

func (s *AuthService) recoverAccess(r *http.Request) (string, error) {
	header := r.Header.Get(s.accessHeaderName)
	if strings.HasPrefix(header, s.accessAuthScheme+" ") {
		return strings.TrimSpace(strings.TrimPrefix(header, s.accessAuthScheme+" ")), nil
	}

	cookie, err := r.Cookie(s.accessCookieName)
	if err == nil && cookie.Value != "" {
		return cookie.Value, nil
	}

	return "", ErrNoToken
}
