package users

import "time"

// Account represents a principal for management purposes. Flags gate logins:
// an inactive account never gets a session, availability gates the
// technician guard, and verification gates first login.
type Account struct {
	ID          int64     `json:"id"`
	Email       string    `json:"email"`
	Name        string    `json:"name"`
	IsActive    bool      `json:"is_active"`
	IsVerified  bool      `json:"is_verified"`
	IsAvailable bool      `json:"is_available"`
	Roles       []string  `json:"roles"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
