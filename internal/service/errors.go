package service

import "errors"

// Error taxonomy surfaced by the auth service. Handlers map these to HTTP
// statuses; anything outside this list is logged and converted to ErrInternal
// so internals never leak to callers.
var (
	// Conflict
	ErrOrganizationExists = errors.New("organization already exists")
	ErrEmailExists        = errors.New("email already in use")

	// Unauthorized
	ErrInvalidCredentials       = errors.New("invalid credentials")
	ErrAccountDeactivated       = errors.New("user account is deactivated")
	ErrCurrentPasswordIncorrect = errors.New("current password is incorrect")

	// Not found
	ErrUserNotFound = errors.New("user does not exist")

	// Bad request
	ErrInvalidResetToken        = errors.New("invalid or expired password reset token")
	ErrInvalidVerificationToken = errors.New("invalid or expired verification token")

	// Internal
	ErrInternal = errors.New("internal server error")
)

var knownErrors = []error{
	ErrOrganizationExists,
	ErrEmailExists,
	ErrInvalidCredentials,
	ErrAccountDeactivated,
	ErrCurrentPasswordIncorrect,
	ErrUserNotFound,
	ErrInvalidResetToken,
	ErrInvalidVerificationToken,
}

// isKnown reports whether err belongs to the service error taxonomy.
func isKnown(err error) bool {
	for _, known := range knownErrors {
		if errors.Is(err, known) {
			return true
		}
	}
	return false
}
