// Package user defines the actor model for authorization decisions.
package user

import "time"

// Role represents the authorization level of an actor. Reads need no role,
// lifecycle mutations need RoleUser, lock/unlock/remove need RoleAdmin.
type Role string

const (
	RoleNone  Role = "none"
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Satisfies reports whether an actor holding r meets the required role.
func (r Role) Satisfies(required Role) bool {
	return rank(r) >= rank(required)
}

func rank(r Role) int {
	switch r {
	case RoleAdmin:
		return 2
	case RoleUser:
		return 1
	default:
		return 0
	}
}

// User is an authenticated operator of the orchestrator.
type User struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Role       Role      `json:"role"`
	APIKeyHash string    `json:"-"` // never serialized
	Enabled    bool      `json:"enabled"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
