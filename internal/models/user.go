package models

import "time"

// Principal roles. A user moves funds between existing accounts it owns;
// only the system principal may originate funds.
const (
	RoleUser   = "user"
	RoleSystem = "system"
)

// User represents a registered user in the system
type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"` // Not serialized
	Role         string    `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}

// Principal is the authenticated caller as attested by the upstream
// authenticator. The transaction core consumes nothing else about the caller.
type Principal struct {
	ID   string `json:"id"`
	Role string `json:"role"`
}
