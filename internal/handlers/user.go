package handlers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/joaopedro08-dev/authgo/internal/handlers/render"
	"github.com/joaopedro08-dev/authgo/internal/handlers/userctx"
)

func handleUserMe() http.Handler {
	type response struct {
		ID          uuid.UUID  `json:"id"`
		Name        string     `json:"name"`
		Email       string     `json:"email"`
		Role        string     `json:"role"`
		LastLoginAt *time.Time `json:"last_login_at,omitempty"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, _ := userctx.FromContext(r.Context())
		render.JSON(w, response{
			ID:          user.ID,
			Name:        user.Name,
			Email:       user.Email,
			Role:        user.Role,
			LastLoginAt: user.LastLoginAt,
		})
	})
}
