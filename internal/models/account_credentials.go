package models

import (
	"time"

	"github.com/google/uuid"
)

// AccountCredentials is the login identity a user registers for one app's
// shared account. One row per (user_id, app_id), upserted.
type AccountCredentials struct {
	ID        uuid.UUID `json:"id" db:"id"`
	UserID    uuid.UUID `json:"user_id" db:"user_id"`
	AppID     string    `json:"app_id" db:"app_id"`
	Username  string    `json:"username" db:"username"`
	Email     string    `json:"email" db:"email"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
	App       *App      `json:"app,omitempty"`
}

type AccountCredentialsRequest struct {
	AppID    string `json:"app_id" binding:"required"`
	Username string `json:"username" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
}
