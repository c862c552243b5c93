package models

import (
	"time"

	"github.com/google/uuid"
)

// User roles known to the service
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

type User struct {
	ID             uuid.UUID
	CreatedAt      time.Time
	UpdatedAt      time.Time
	Name           string
	Email          string
	HashedPassword string
	Role           string
	IsActive       bool
	LastLoginAt    *time.Time // nil if user never logged in
}
