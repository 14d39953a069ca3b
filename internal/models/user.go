package models

import (
	"time"

	"github.com/google/uuid"
)

// Roles a user can hold within an organization.
const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// User represents an identity belonging to an organization.
// The password is only ever stored as a bcrypt hash.
type User struct {
	UserID       uuid.UUID // UUIDv7
	OrgID        uuid.UUID // UUIDv7, FK to organizations
	Email        string    // Stored lower-cased, unique
	PasswordHash string
	FirstName    string // Optional
	LastName     string // Optional
	Role         string // "admin" or "user"

	Active   bool
	Verified bool

	// Email verification, single-use and time-bound
	VerificationToken   *string
	VerificationExpires *time.Time

	// Password reset, single-use and time-bound
	ResetToken   *string
	ResetExpires *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// DisplayName returns the user's first name, falling back to the email address.
func (u *User) DisplayName() string {
	if u.FirstName != "" {
		return u.FirstName
	}
	return u.Email
}
