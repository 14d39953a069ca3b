package memory

import (
	"context"
	"strings"
	"time"

	"github.com/birchwood/canopy/internal/models"
	"github.com/birchwood/canopy/internal/store"
	"github.com/google/uuid"
)

// UserStore implements store.UserStore using in-memory storage.
type UserStore struct {
	s    *Store
	inTx bool
}

func (us *UserStore) lock() func() {
	if us.inTx {
		return func() {}
	}
	us.s.mu.Lock()
	return us.s.mu.Unlock
}

// Create creates a new user in memory.
func (us *UserStore) Create(ctx context.Context, user *models.User) error {
	defer us.lock()()

	if _, exists := us.s.d.users[user.UserID]; exists {
		return store.ErrUserAlreadyExists
	}

	// Enforce case-insensitive email uniqueness, like the DB unique index
	for _, existing := range us.s.d.users {
		if strings.EqualFold(existing.Email, user.Email) {
			return store.ErrUserAlreadyExists
		}
	}

	// Clone to avoid external modifications
	clone := *user
	us.s.d.users[user.UserID] = &clone

	return nil
}

// Get retrieves a user by ID.
func (us *UserStore) Get(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	defer us.lock()()

	user, exists := us.s.d.users[userID]
	if !exists {
		return nil, store.ErrUserNotFound
	}

	clone := *user
	return &clone, nil
}

// GetByEmail retrieves a user by email, case-insensitively.
func (us *UserStore) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	defer us.lock()()

	for _, user := range us.s.d.users {
		if strings.EqualFold(user.Email, email) {
			clone := *user
			return &clone, nil
		}
	}

	return nil, store.ErrUserNotFound
}

// GetByResetToken retrieves a user holding the given password reset token.
func (us *UserStore) GetByResetToken(ctx context.Context, token string) (*models.User, error) {
	defer us.lock()()

	for _, user := range us.s.d.users {
		if user.ResetToken != nil && *user.ResetToken == token {
			clone := *user
			return &clone, nil
		}
	}

	return nil, store.ErrUserNotFound
}

// GetByVerificationToken retrieves a user holding the given email verification token.
func (us *UserStore) GetByVerificationToken(ctx context.Context, token string) (*models.User, error) {
	defer us.lock()()

	for _, user := range us.s.d.users {
		if user.VerificationToken != nil && *user.VerificationToken == token {
			clone := *user
			return &clone, nil
		}
	}

	return nil, store.ErrUserNotFound
}

// Update updates an existing user.
func (us *UserStore) Update(ctx context.Context, user *models.User) error {
	defer us.lock()()

	if _, exists := us.s.d.users[user.UserID]; !exists {
		return store.ErrUserNotFound
	}

	user.UpdatedAt = time.Now()
	clone := *user
	us.s.d.users[user.UserID] = &clone

	return nil
}
