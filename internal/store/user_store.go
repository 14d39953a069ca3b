package store

import (
	"context"
	"errors"

	"github.com/birchwood/canopy/internal/models"
	"github.com/google/uuid"
)

// Sentinel errors for user store operations
var (
	ErrUserNotFound      = errors.New("user not found")
	ErrUserAlreadyExists = errors.New("user already exists")
)

// UserStore defines the interface for user storage operations.
// Emails are unique case-insensitively; lookups expect lower-cased input.
type UserStore interface {
	// Create creates a new user in the store.
	// Returns ErrUserAlreadyExists if a user with the same email already exists.
	Create(ctx context.Context, user *models.User) error

	// Get retrieves a user by ID.
	// Returns ErrUserNotFound if the user doesn't exist.
	Get(ctx context.Context, userID uuid.UUID) (*models.User, error)

	// GetByEmail retrieves a user by lower-cased email address.
	// Returns ErrUserNotFound if the user doesn't exist.
	GetByEmail(ctx context.Context, email string) (*models.User, error)

	// GetByResetToken retrieves a user holding the given password reset token.
	// Returns ErrUserNotFound if no user holds the token.
	GetByResetToken(ctx context.Context, token string) (*models.User, error)

	// GetByVerificationToken retrieves a user holding the given email
	// verification token. Returns ErrUserNotFound if no user holds the token.
	GetByVerificationToken(ctx context.Context, token string) (*models.User, error)

	// Update updates an existing user.
	// Returns ErrUserNotFound if the user doesn't exist.
	Update(ctx context.Context, user *models.User) error
}
