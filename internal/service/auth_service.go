// Package service implements the authentication use cases: organization
// registration, login and the credential lifecycle flows.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/birchwood/canopy/internal/auth"
	"github.com/birchwood/canopy/internal/mail"
	"github.com/birchwood/canopy/internal/models"
	"github.com/birchwood/canopy/internal/store"
	"github.com/birchwood/canopy/internal/telemetry"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	// ResetTokenTTL is how long a password reset token stays valid.
	ResetTokenTTL = 15 * time.Minute

	// VerificationTokenTTL is how long an email verification token stays valid.
	VerificationTokenTTL = 15 * time.Hour

	// GenericResetMessage is returned by ForgotPassword regardless of whether
	// the account exists, preventing account enumeration.
	GenericResetMessage = "If an account with that email exists, a password reset link has been sent."
)

// AuthService composes the store, token issuer and mailer into the
// transactional authentication use cases.
type AuthService struct {
	store   store.Store
	tokens  *auth.TokenIssuer
	mailer  mail.Mailer
	baseURL string
}

// NewAuthService creates the auth service. baseURL is the externally
// reachable address embedded in verification and reset links.
func NewAuthService(st store.Store, tokens *auth.TokenIssuer, mailer mail.Mailer, baseURL string) *AuthService {
	return &AuthService{
		store:   st,
		tokens:  tokens,
		mailer:  mailer,
		baseURL: strings.TrimSuffix(baseURL, "/"),
	}
}

// RegisterOrganizationInput carries the organization self-registration request.
type RegisterOrganizationInput struct {
	OrganizationName string
	Plan             models.SubscriptionPlan
	AdminEmail       string
	Password         string
	AdminFirstName   string
	AdminLastName    string
}

// RegisterOrganizationResult is returned on successful registration.
// User never carries the password hash.
type RegisterOrganizationResult struct {
	User         *models.User
	Organization *models.Organization
	Token        string
}

// RegisterOrganization creates an organization and its first admin user
// atomically. The verification email is sent before commit; a send failure
// aborts the registration.
func (s *AuthService) RegisterOrganization(ctx context.Context, in RegisterOrganizationInput) (*RegisterOrganizationResult, error) {
	name := strings.ToLower(strings.TrimSpace(in.OrganizationName))
	email := strings.ToLower(strings.TrimSpace(in.AdminEmail))

	plan := in.Plan
	if plan == "" {
		plan = models.PlanFree
	}

	var (
		org  *models.Organization
		user *models.User
	)

	err := s.store.InTx(ctx, func(tx store.Tx) error {
		// Fast-path conflict checks; the store unique indexes remain the
		// authoritative guard under concurrent registrations.
		if _, err := tx.Organizations().GetByName(ctx, name); err == nil {
			return ErrOrganizationExists
		} else if !errors.Is(err, store.ErrOrganizationNotFound) {
			return fmt.Errorf("failed to check organization name: %w", err)
		}

		if _, err := tx.Users().GetByEmail(ctx, email); err == nil {
			return ErrEmailExists
		} else if !errors.Is(err, store.ErrUserNotFound) {
			return fmt.Errorf("failed to check admin email: %w", err)
		}

		orgID, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate organization id: %w", err)
		}

		now := time.Now()
		org = &models.Organization{
			OrgID:     orgID,
			Name:      name,
			Plan:      plan,
			Active:    true,
			CreatedAt: now,
			UpdatedAt: now,
		}

		if err := tx.Organizations().Create(ctx, org); err != nil {
			if errors.Is(err, store.ErrOrganizationAlreadyExists) {
				return ErrOrganizationExists
			}
			return fmt.Errorf("failed to create organization: %w", err)
		}

		hash, err := auth.HashPassword(in.Password)
		if err != nil {
			return err
		}

		verificationToken, err := auth.NewOpaqueToken()
		if err != nil {
			return err
		}
		verificationExpires := now.Add(VerificationTokenTTL)

		userID, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate user id: %w", err)
		}

		user = &models.User{
			UserID:              userID,
			OrgID:               orgID,
			Email:               email,
			PasswordHash:        hash,
			FirstName:           strings.TrimSpace(in.AdminFirstName),
			LastName:            strings.TrimSpace(in.AdminLastName),
			Role:                models.RoleAdmin,
			Active:              true,
			VerificationToken:   &verificationToken,
			VerificationExpires: &verificationExpires,
			CreatedAt:           now,
			UpdatedAt:           now,
		}

		if err := tx.Users().Create(ctx, user); err != nil {
			if errors.Is(err, store.ErrUserAlreadyExists) {
				return ErrEmailExists
			}
			return fmt.Errorf("failed to create admin user: %w", err)
		}

		msg, err := mail.VerificationMessage(user.Email, user.DisplayName(), s.baseURL, verificationToken)
		if err != nil {
			return err
		}
		if err := s.mailer.Send(ctx, msg); err != nil {
			return fmt.Errorf("failed to send verification email: %w", err)
		}

		log.Info().
			Str("org_id", orgID.String()).
			Str("email", user.Email).
			Msg("Registered organization with admin user")

		return nil
	})
	if err != nil {
		telemetry.AddCounter(ctx, telemetry.GetMetrics().RegistrationErrorsTotal)
		return nil, s.convert(err, "organization registration failed")
	}

	telemetry.AddCounter(ctx, telemetry.GetMetrics().RegistrationsTotal)

	token, err := s.tokens.Issue(user)
	if err != nil {
		return nil, s.convert(err, "failed to issue token after registration")
	}

	return &RegisterOrganizationResult{
		User:         sanitize(user),
		Organization: org,
		Token:        token,
	}, nil
}

// LoginResult is returned on successful login.
type LoginResult struct {
	Roles []string
	Token string
}

// Login verifies the credentials and issues a bearer token. Unknown email,
// wrong password and deactivated accounts all fail with Unauthorized errors;
// the unknown-email and wrong-password cases are indistinguishable.
func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	user, err := s.store.Users().GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, s.convert(err, "login lookup failed")
	}

	if !user.Active {
		log.Warn().Str("email", email).Msg("Login attempt for deactivated account")
		telemetry.AddCounter(ctx, telemetry.GetMetrics().LoginFailuresTotal)
		return nil, ErrAccountDeactivated
	}

	if !auth.CheckPassword(password, user.PasswordHash) {
		telemetry.AddCounter(ctx, telemetry.GetMetrics().LoginFailuresTotal)
		return nil, ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(user)
	if err != nil {
		return nil, s.convert(err, "failed to issue token on login")
	}

	log.Info().Str("email", email).Msg("User logged in")
	telemetry.AddCounter(ctx, telemetry.GetMetrics().LoginsTotal)

	return &LoginResult{
		Roles: []string{user.Role},
		Token: token,
	}, nil
}

// ChangePassword replaces the password for an authenticated user after
// verifying the current one.
func (s *AuthService) ChangePassword(ctx context.Context, userID uuid.UUID, currentPassword, newPassword string) error {
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		user, err := tx.Users().Get(ctx, userID)
		if err != nil {
			if errors.Is(err, store.ErrUserNotFound) {
				return ErrUserNotFound
			}
			return fmt.Errorf("failed to load user: %w", err)
		}

		if !auth.CheckPassword(currentPassword, user.PasswordHash) {
			return ErrCurrentPasswordIncorrect
		}

		hash, err := auth.HashPassword(newPassword)
		if err != nil {
			return err
		}

		user.PasswordHash = hash
		if err := tx.Users().Update(ctx, user); err != nil {
			return fmt.Errorf("failed to update password: %w", err)
		}

		log.Info().Str("user_id", userID.String()).Msg("Password changed")

		return nil
	})
	if err != nil {
		return s.convert(err, "change password failed")
	}

	return nil
}

// ForgotPassword starts the password reset flow. It always succeeds with the
// same generic outcome; a reset token is stored and mailed only when the
// account exists, is active and is verified.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) error {
	email = strings.ToLower(strings.TrimSpace(email))

	err := s.store.InTx(ctx, func(tx store.Tx) error {
		user, err := tx.Users().GetByEmail(ctx, email)
		if err != nil {
			if errors.Is(err, store.ErrUserNotFound) {
				log.Warn().Str("email", email).Msg("Password reset requested for unknown account")
				return nil
			}
			return fmt.Errorf("failed to look up account: %w", err)
		}

		if !user.Active || !user.Verified {
			log.Warn().Str("email", email).Msg("Password reset requested for inactive or unverified account")
			return nil
		}

		resetToken, err := auth.NewOpaqueToken()
		if err != nil {
			return err
		}
		expires := time.Now().Add(ResetTokenTTL)

		user.ResetToken = &resetToken
		user.ResetExpires = &expires
		if err := tx.Users().Update(ctx, user); err != nil {
			return fmt.Errorf("failed to store reset token: %w", err)
		}

		msg, err := mail.ResetRequestMessage(user.Email, user.DisplayName(), s.baseURL, resetToken)
		if err != nil {
			return err
		}
		if err := s.mailer.Send(ctx, msg); err != nil {
			return fmt.Errorf("failed to send reset email: %w", err)
		}

		log.Info().Str("email", email).Msg("Password reset email sent")

		return nil
	})
	if err != nil {
		return s.convert(err, "forgot password failed")
	}

	return nil
}

// ResetPassword consumes a reset token and stores the new password. The token
// and its expiry are cleared so it can be used only once. The confirmation
// email is sent after commit; a send failure is logged, not fatal.
func (s *AuthService) ResetPassword(ctx context.Context, token, newPassword string) error {
	var user *models.User

	err := s.store.InTx(ctx, func(tx store.Tx) error {
		var err error
		user, err = tx.Users().GetByResetToken(ctx, token)
		if err != nil {
			if errors.Is(err, store.ErrUserNotFound) {
				return ErrInvalidResetToken
			}
			return fmt.Errorf("failed to look up reset token: %w", err)
		}

		if user.ResetExpires == nil || user.ResetExpires.Before(time.Now()) {
			return ErrInvalidResetToken
		}

		hash, err := auth.HashPassword(newPassword)
		if err != nil {
			return err
		}

		user.PasswordHash = hash
		user.ResetToken = nil
		user.ResetExpires = nil

		if err := tx.Users().Update(ctx, user); err != nil {
			return fmt.Errorf("failed to store new password: %w", err)
		}

		return nil
	})
	if err != nil {
		return s.convert(err, "reset password failed")
	}

	msg, err := mail.ResetConfirmationMessage(user.Email, user.DisplayName())
	if err != nil {
		log.Error().Err(err).Str("email", user.Email).Msg("Failed to build reset confirmation email")
		return nil
	}
	if err := s.mailer.Send(ctx, msg); err != nil {
		log.Error().Err(err).Str("email", user.Email).Msg("Failed to send reset confirmation email")
	}

	log.Info().Str("email", user.Email).Msg("Password reset")
	telemetry.AddCounter(ctx, telemetry.GetMetrics().PasswordResetsTotal)

	return nil
}

// VerifyEmail consumes a verification token and marks the account verified.
func (s *AuthService) VerifyEmail(ctx context.Context, token string) error {
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		user, err := tx.Users().GetByVerificationToken(ctx, token)
		if err != nil {
			if errors.Is(err, store.ErrUserNotFound) {
				return ErrInvalidVerificationToken
			}
			return fmt.Errorf("failed to look up verification token: %w", err)
		}

		if user.VerificationExpires == nil || user.VerificationExpires.Before(time.Now()) {
			return ErrInvalidVerificationToken
		}

		user.Verified = true
		user.VerificationToken = nil
		user.VerificationExpires = nil

		if err := tx.Users().Update(ctx, user); err != nil {
			return fmt.Errorf("failed to mark account verified: %w", err)
		}

		log.Info().Str("email", user.Email).Msg("Email address verified")

		return nil
	})
	if err != nil {
		return s.convert(err, "email verification failed")
	}

	telemetry.AddCounter(ctx, telemetry.GetMetrics().EmailVerificationsTotal)

	return nil
}

// convert passes taxonomy errors through unchanged; everything else is logged
// with context and collapsed into ErrInternal.
func (s *AuthService) convert(err error, msg string) error {
	if isKnown(err) {
		return err
	}

	log.Error().Err(err).Msg(msg)
	return ErrInternal
}

// sanitize returns a copy of the user without the password hash.
func sanitize(user *models.User) *models.User {
	clone := *user
	clone.PasswordHash = ""
	return &clone
}
