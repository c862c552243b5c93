package handlers

import (
	"errors"
	"net"
	"net/http"

	"github.com/joaopedro08-dev/authgo/internal/apperrors"
	"github.com/joaopedro08-dev/authgo/internal/handlers/render"
	"github.com/joaopedro08-dev/authgo/internal/handlers/userctx"
)

type AuthHandler struct {
	authService authService
}

func NewAuth(as authService) *AuthHandler {
	return &AuthHandler{authService: as}
}

func (h *AuthHandler) register(w http.ResponseWriter, r *http.Request) {
	type RegisterRequest struct {
		Name            string `json:"name" validate:"required,min=3,max=100"`
		Email           string `json:"email" validate:"required,email"`
		Password        string `json:"password" validate:"required,password"`
		ConfirmPassword string `json:"confirm_password" validate:"required,eqfield=Password"`
	}
	type RegisterSuccessResponse struct {
		Message string `json:"message"`
	}

	data, err := render.BindAndValidate[RegisterRequest](w, r)
	if err != nil {
		return
	}

	_, err = h.authService.Register(r.Context(), data.Name, data.Email, data.Password)
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrUserAlreadyExists):
			render.ServiceError(w, "This e-mail is already registered", http.StatusConflict)
		default:
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
		return
	}

	render.JSON(w, RegisterSuccessResponse{Message: "User registered successfully"})
}

func (h *AuthHandler) login(w http.ResponseWriter, r *http.Request) {
	type LoginRequest struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required"`
	}
	type LoginSuccessResponse struct {
		Message     string `json:"message"`
		AccessToken string `json:"access_token"`
	}

	data, err := render.BindAndValidate[LoginRequest](w, r)
	if err != nil {
		return
	}

	pair, err := h.authService.Login(r.Context(), data.Email, data.Password, clientKey(r))
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrRateLimited):
			render.ServiceError(w, "Too many login attempts. Try again in 5 minutes.", http.StatusTooManyRequests)
		case errors.Is(err, apperrors.ErrInvalidCredentials):
			render.ServiceError(w, "Invalid email or password", http.StatusUnauthorized)
		default:
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
		return
	}

	h.authService.SetTokens(w, pair)
	render.JSON(w, LoginSuccessResponse{
		Message:     "User logged in successfully",
		AccessToken: pair.Access.Value,
	})
}

func (h *AuthHandler) refresh(w http.ResponseWriter, r *http.Request) {
	type RefreshSuccessResponse struct {
		Message     string `json:"message"`
		AccessToken string `json:"access_token"`
	}

	refresh, err := h.authService.GetRefresh(r)
	if err != nil {
		render.ServiceError(w, "Refresh token not found", http.StatusUnauthorized)
		return
	}

	pair, err := h.authService.RefreshPair(r.Context(), refresh)
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrRefreshTokenExpired):
			render.ServiceError(w, "Refresh token expired. Please log in again.", http.StatusUnauthorized)
		case errors.Is(err, apperrors.ErrRefreshTokenNotFound):
			render.ServiceError(w, "Refresh token not found", http.StatusUnauthorized)
		default:
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
		return
	}

	h.authService.SetTokens(w, pair)
	render.JSON(w, RefreshSuccessResponse{
		Message:     "Tokens refreshed successfully",
		AccessToken: pair.Access.Value,
	})
}

func (h *AuthHandler) logout(w http.ResponseWriter, r *http.Request) {
	type LogoutSuccessResponse struct {
		Message string `json:"message"`
	}

	// Middleware guarantees the user is in context here
	user, _ := userctx.FromContext(r.Context())

	access, err := h.authService.GetAccess(r)
	if err != nil {
		render.ServiceError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	// Missing refresh cookie is fine: only the access token gets blacklisted then
	refresh, _ := h.authService.GetRefresh(r)

	err = h.authService.Logout(r.Context(), user, access, refresh)
	if err != nil {
		render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	h.authService.ClearTokens(w)
	render.JSON(w, LogoutSuccessResponse{Message: "User logged out successfully"})
}

// Client key for login throttling: source address without the port,
// so one host hitting from many ephemeral ports shares a single bucket
func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
