package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/birchwood/canopy/internal/auth"
	"github.com/birchwood/canopy/internal/models"
	"github.com/birchwood/canopy/internal/service"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
)

// validate is shared by all handlers. Field errors report the JSON field
// name rather than the Go struct field name.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

type registerOrganizationRequest struct {
	OrganizationName string `json:"organizationName" validate:"required"`
	AdminEmail       string `json:"adminEmail" validate:"required,email"`
	Password         string `json:"password" validate:"required,min=8,max=20"`
	SubscriptionPlan string `json:"subscriptionPlan,omitempty"`
	AdminFirstName   string `json:"adminFirstName,omitempty"`
	AdminLastName    string `json:"adminLastName,omitempty"`
}

type userResponse struct {
	ID             string `json:"id"`
	Email          string `json:"email"`
	FirstName      string `json:"firstName,omitempty"`
	LastName       string `json:"lastName,omitempty"`
	Role           string `json:"role"`
	OrganizationID string `json:"organizationId"`
}

type organizationResponse struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	SubscriptionPlan string `json:"subscriptionPlan"`
}

func (s *Server) handleRegisterOrganization(w http.ResponseWriter, r *http.Request) {
	var req registerOrganizationRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := validateRequest(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	plan := models.SubscriptionPlan(req.SubscriptionPlan)
	if req.SubscriptionPlan != "" && !plan.Valid() {
		writeError(w, http.StatusBadRequest, "invalid subscription plan")
		return
	}

	result, err := s.svc.RegisterOrganization(r.Context(), service.RegisterOrganizationInput{
		OrganizationName: req.OrganizationName,
		Plan:             plan,
		AdminEmail:       req.AdminEmail,
		Password:         req.Password,
		AdminFirstName:   req.AdminFirstName,
		AdminLastName:    req.AdminLastName,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"message": "Organization and admin user created successfully",
		"user": userResponse{
			ID:             result.User.UserID.String(),
			Email:          result.User.Email,
			FirstName:      result.User.FirstName,
			LastName:       result.User.LastName,
			Role:           result.User.Role,
			OrganizationID: result.User.OrgID.String(),
		},
		"organization": organizationResponse{
			ID:               result.Organization.OrgID.String(),
			Name:             result.Organization.Name,
			SubscriptionPlan: string(result.Organization.Plan),
		},
		"accessToken": result.Token,
	})
}

type loginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := validateRequest(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := s.svc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message":     "Successfully Logged In",
		"role":        result.Roles,
		"accessToken": result.Token,
	})
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required,min=8,max=20"`
}

func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	identity := auth.IdentityFromContext(r.Context())
	if identity == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req changePasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := validateRequest(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.svc.ChangePassword(r.Context(), identity.UserID, req.CurrentPassword, req.NewPassword); err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Password updated successfully",
	})
}

type forgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

func (s *Server) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req forgotPasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := validateRequest(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	// The response is identical whether or not the account exists; even
	// internal failures are masked to keep the body byte-identical.
	if err := s.svc.ForgotPassword(r.Context(), req.Email); err != nil {
		log.Error().Err(err).Msg("Forgot password flow failed")
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message": service.GenericResetMessage,
	})
}

type resetPasswordRequest struct {
	NewPassword string `json:"newPassword" validate:"required,min=8,max=20"`
}

func (s *Server) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		writeError(w, http.StatusBadRequest, "token is required")
		return
	}

	var req resetPasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := validateRequest(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.svc.ResetPassword(r.Context(), token, req.NewPassword); err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Password has been reset successfully.",
	})
}

func (s *Server) handleVerifyEmail(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		writeError(w, http.StatusBadRequest, "token is required")
		return
	}

	if err := s.svc.VerifyEmail(r.Context(), token); err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Email address verified successfully",
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

// decodeJSON decodes the request body, rejecting unknown fields.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

// validateRequest runs struct-tag validation and reduces the first field
// error to a client-facing message.
func validateRequest(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var fieldErrors validator.ValidationErrors
	if errors.As(err, &fieldErrors) && len(fieldErrors) > 0 {
		return errors.New(validationMessage(fieldErrors[0]))
	}

	return err
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "email":
		return fmt.Sprintf("%s must be a valid email address", fe.Field())
	case "min":
		return fmt.Sprintf("%s must be at least %s characters long", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s can't be longer than %s characters", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s is invalid", fe.Field())
	}
}

// statusForError maps the service error taxonomy to HTTP statuses.
func statusForError(err error) int {
	switch {
	case errors.Is(err, service.ErrOrganizationExists),
		errors.Is(err, service.ErrEmailExists):
		return http.StatusConflict
	case errors.Is(err, service.ErrInvalidCredentials),
		errors.Is(err, service.ErrAccountDeactivated),
		errors.Is(err, service.ErrCurrentPasswordIncorrect):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrUserNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrInvalidResetToken),
		errors.Is(err, service.ErrInvalidVerificationToken):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeServiceError(w http.ResponseWriter, err error) {
	writeError(w, statusForError(err), err.Error())
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}
