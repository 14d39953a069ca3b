package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/birchwood/canopy/internal/models"
	"github.com/birchwood/canopy/internal/store"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

const userColumns = `
	user_id, org_id, email, password_hash, first_name, last_name, role,
	active, verified,
	verification_token, verification_expires,
	reset_token, reset_expires,
	created_at, updated_at
`

// UserStore implements store.UserStore using PostgreSQL.
type UserStore struct {
	db dbtx
}

// NewUserStore creates a new PostgreSQL-backed user store.
// It shares the connection pool with other stores.
func NewUserStore(pool *pgxpool.Pool) *UserStore {
	return &UserStore{
		db: pool,
	}
}

// Create creates a new user in the database.
// The unique index on email is the authoritative uniqueness guard.
func (s *UserStore) Create(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (` + userColumns + `
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15
		)
	`

	// Convert empty strings to NULL for optional fields (to satisfy DB constraints)
	var firstName, lastName any
	if user.FirstName != "" {
		firstName = user.FirstName
	}
	if user.LastName != "" {
		lastName = user.LastName
	}

	_, err := s.db.Exec(ctx, query,
		user.UserID,
		user.OrgID,
		user.Email,
		user.PasswordHash,
		firstName,
		lastName,
		user.Role,
		user.Active,
		user.Verified,
		user.VerificationToken,
		user.VerificationExpires,
		user.ResetToken,
		user.ResetExpires,
		user.CreatedAt,
		user.UpdatedAt,
	)

	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrUserAlreadyExists
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	log.Debug().
		Str("user_id", user.UserID.String()).
		Str("org_id", user.OrgID.String()).
		Msg("Created user")

	return nil
}

// Get retrieves a user by ID.
func (s *UserStore) Get(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE user_id = $1`

	return s.scanOne(s.db.QueryRow(ctx, query, userID))
}

// GetByEmail retrieves a user by email, case-insensitively.
func (s *UserStore) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = lower($1)`

	return s.scanOne(s.db.QueryRow(ctx, query, email))
}

// GetByResetToken retrieves a user holding the given password reset token.
func (s *UserStore) GetByResetToken(ctx context.Context, token string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE reset_token = $1`

	return s.scanOne(s.db.QueryRow(ctx, query, token))
}

// GetByVerificationToken retrieves a user holding the given email verification token.
func (s *UserStore) GetByVerificationToken(ctx context.Context, token string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE verification_token = $1`

	return s.scanOne(s.db.QueryRow(ctx, query, token))
}

// Update updates an existing user.
func (s *UserStore) Update(ctx context.Context, user *models.User) error {
	user.UpdatedAt = time.Now()

	query := `
		UPDATE users SET
			org_id = $2,
			email = $3,
			password_hash = $4,
			first_name = $5,
			last_name = $6,
			role = $7,
			active = $8,
			verified = $9,
			verification_token = $10,
			verification_expires = $11,
			reset_token = $12,
			reset_expires = $13,
			updated_at = $14
		WHERE user_id = $1
	`

	var firstName, lastName any
	if user.FirstName != "" {
		firstName = user.FirstName
	}
	if user.LastName != "" {
		lastName = user.LastName
	}

	result, err := s.db.Exec(ctx, query,
		user.UserID,
		user.OrgID,
		user.Email,
		user.PasswordHash,
		firstName,
		lastName,
		user.Role,
		user.Active,
		user.Verified,
		user.VerificationToken,
		user.VerificationExpires,
		user.ResetToken,
		user.ResetExpires,
		user.UpdatedAt,
	)

	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrUserAlreadyExists
		}
		return fmt.Errorf("failed to update user: %w", err)
	}

	if result.RowsAffected() == 0 {
		return store.ErrUserNotFound
	}

	log.Debug().
		Str("user_id", user.UserID.String()).
		Msg("Updated user")

	return nil
}

func (s *UserStore) scanOne(row pgx.Row) (*models.User, error) {
	var u models.User
	var firstName, lastName *string
	err := row.Scan(
		&u.UserID,
		&u.OrgID,
		&u.Email,
		&u.PasswordHash,
		&firstName,
		&lastName,
		&u.Role,
		&u.Active,
		&u.Verified,
		&u.VerificationToken,
		&u.VerificationExpires,
		&u.ResetToken,
		&u.ResetExpires,
		&u.CreatedAt,
		&u.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	// Convert NULL values from database to Go zero values
	if firstName != nil {
		u.FirstName = *firstName
	}
	if lastName != nil {
		u.LastName = *lastName
	}

	return &u, nil
}
