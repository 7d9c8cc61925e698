package models

import "time"

// Auth event types published after a store operation completes.
const (
	EventUserRegistered    = "user.registered"
	EventUserAuthenticated = "user.authenticated"
	EventUserRejected      = "user.rejected"
)

// AuthEvent is an audit record of a registration or login attempt.
// It never carries the password or its digest.
type AuthEvent struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	Username   string    `json:"username"`
	OccurredAt time.Time `json:"occurred_at"`
}
