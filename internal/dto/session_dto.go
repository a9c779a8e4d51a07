package dto

import "time"

// SessionCreateRequest registers the profile shown by header components.
type SessionCreateRequest struct {
	Name string `json:"name" validate:"required,min=1,max=255"`
}

// SessionResponse describes the current user session.
type SessionResponse struct {
	UserID    string    `json:"userId"`
	Role      string    `json:"role"`
	Name      string    `json:"name"`
	ExpiresAt time.Time `json:"expiresAt"`
}
