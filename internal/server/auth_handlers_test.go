package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/birchwood/canopy/internal/auth"
	"github.com/birchwood/canopy/internal/mail"
	"github.com/birchwood/canopy/internal/service"
	"github.com/birchwood/canopy/internal/store/memory"
	"github.com/stretchr/testify/require"
)

type capturingMailer struct {
	messages []mail.Message
	fail     bool
}

func (m *capturingMailer) Send(ctx context.Context, msg mail.Message) error {
	if m.fail {
		return errors.New("smtp unavailable")
	}
	m.messages = append(m.messages, msg)
	return nil
}

type testEnv struct {
	handler http.Handler
	store   *memory.Store
	mailer  *capturingMailer
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	st := memory.NewStore()
	mailer := &capturingMailer{}

	tokens, err := auth.NewTokenIssuer([]byte("test-signing-secret-at-least-32-bytes"), time.Hour)
	require.NoError(t, err)

	svc := service.NewAuthService(st, tokens, mailer, "http://localhost:8080")
	srv := NewServer(svc, tokens, st.Users())

	return &testEnv{
		handler: srv.Handler([]string{"http://localhost:3000"}),
		store:   st,
		mailer:  mailer,
	}
}

func (e *testEnv) do(t *testing.T, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func (e *testEnv) register(t *testing.T, name, email, password string) map[string]any {
	t.Helper()

	rec := e.do(t, http.MethodPost, "/auth/register-organization", map[string]any{
		"organizationName": name,
		"adminEmail":       email,
		"password":         password,
	}, nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	return decodeBody(t, rec)
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/health", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "ok", decodeBody(t, rec)["status"])
}

func TestRegisterOrganizationHandler(t *testing.T) {
	t.Run("creates the organization", func(t *testing.T) {
		env := newTestEnv(t)

		rec := env.do(t, http.MethodPost, "/auth/register-organization", map[string]any{
			"organizationName": "Acme",
			"adminEmail":       "A@Acme.io",
			"password":         "Passw0rd1",
			"adminFirstName":   "Ada",
		}, nil)
		require.Equal(t, http.StatusCreated, rec.Code)
		require.Equal(t, "application/json", rec.Header().Get("Content-Type"))

		body := decodeBody(t, rec)
		require.NotEmpty(t, body["accessToken"])

		user := body["user"].(map[string]any)
		require.Equal(t, "a@acme.io", user["email"])
		require.Equal(t, "admin", user["role"])
		require.Equal(t, "Ada", user["firstName"])

		org := body["organization"].(map[string]any)
		require.Equal(t, "acme", org["name"])
		require.Equal(t, "free", org["subscriptionPlan"])
		require.Equal(t, user["organizationId"], org["id"])
	})

	t.Run("duplicate organization name conflicts", func(t *testing.T) {
		env := newTestEnv(t)
		env.register(t, "Acme", "a@acme.io", "Passw0rd1")

		rec := env.do(t, http.MethodPost, "/auth/register-organization", map[string]any{
			"organizationName": "ACME",
			"adminEmail":       "b@other.io",
			"password":         "Passw0rd1",
		}, nil)
		require.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("validation failures", func(t *testing.T) {
		env := newTestEnv(t)

		cases := []struct {
			name string
			body map[string]any
		}{
			{"missing organization name", map[string]any{
				"adminEmail": "a@acme.io", "password": "Passw0rd1",
			}},
			{"invalid email", map[string]any{
				"organizationName": "Acme", "adminEmail": "not-an-email", "password": "Passw0rd1",
			}},
			{"password too short", map[string]any{
				"organizationName": "Acme", "adminEmail": "a@acme.io", "password": "short",
			}},
			{"multibyte password too short", map[string]any{
				"organizationName": "Acme", "adminEmail": "a@acme.io", "password": "pässwö",
			}},
			{"password too long", map[string]any{
				"organizationName": "Acme", "adminEmail": "a@acme.io", "password": "ThisPasswordIsWayTooLong1",
			}},
			{"21 ascii characters rejected", map[string]any{
				"organizationName": "Acme", "adminEmail": "a@acme.io", "password": "abcdefghijklmnopqrstu",
			}},
			{"invalid plan", map[string]any{
				"organizationName": "Acme", "adminEmail": "a@acme.io", "password": "Passw0rd1",
				"subscriptionPlan": "platinum",
			}},
			{"unknown field", map[string]any{
				"organizationName": "Acme", "adminEmail": "a@acme.io", "password": "Passw0rd1",
				"surprise": true,
			}},
		}

		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				rec := env.do(t, http.MethodPost, "/auth/register-organization", tc.body, nil)
				require.Equal(t, http.StatusBadRequest, rec.Code)
			})
		}
	})

	t.Run("password length counts characters, not bytes", func(t *testing.T) {
		env := newTestEnv(t)

		// 8 runes but more than 8 bytes
		rec := env.do(t, http.MethodPost, "/auth/register-organization", map[string]any{
			"organizationName": "Acme", "adminEmail": "a@acme.io", "password": "pässwörd",
		}, nil)
		require.Equal(t, http.StatusCreated, rec.Code)
	})

	t.Run("validation errors name the JSON field", func(t *testing.T) {
		env := newTestEnv(t)

		rec := env.do(t, http.MethodPost, "/auth/register-organization", map[string]any{
			"adminEmail": "a@acme.io", "password": "Passw0rd1",
		}, nil)
		require.Equal(t, http.StatusBadRequest, rec.Code)
		require.Equal(t, "organizationName is required", decodeBody(t, rec)["error"])

		rec = env.do(t, http.MethodPost, "/auth/register-organization", map[string]any{
			"organizationName": "Acme", "adminEmail": "a@acme.io", "password": "short",
		}, nil)
		require.Equal(t, http.StatusBadRequest, rec.Code)
		require.Equal(t, "password must be at least 8 characters long", decodeBody(t, rec)["error"])
	})
}

func TestLoginHandler(t *testing.T) {
	t.Run("valid credentials", func(t *testing.T) {
		env := newTestEnv(t)
		env.register(t, "Acme", "a@acme.io", "Passw0rd1")

		rec := env.do(t, http.MethodPost, "/auth/login", map[string]any{
			"email": "a@acme.io", "password": "Passw0rd1",
		}, nil)
		require.Equal(t, http.StatusOK, rec.Code)

		body := decodeBody(t, rec)
		require.Equal(t, "Successfully Logged In", body["message"])
		require.NotEmpty(t, body["accessToken"])
		require.Equal(t, []any{"admin"}, body["role"])
	})

	t.Run("wrong password", func(t *testing.T) {
		env := newTestEnv(t)
		env.register(t, "Acme", "a@acme.io", "Passw0rd1")

		rec := env.do(t, http.MethodPost, "/auth/login", map[string]any{
			"email": "a@acme.io", "password": "wrong-password",
		}, nil)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("missing fields", func(t *testing.T) {
		env := newTestEnv(t)

		rec := env.do(t, http.MethodPost, "/auth/login", map[string]any{"email": "a@acme.io"}, nil)
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestChangePasswordHandler(t *testing.T) {
	t.Run("requires a bearer token", func(t *testing.T) {
		env := newTestEnv(t)

		rec := env.do(t, http.MethodPatch, "/auth/change-password", map[string]any{
			"currentPassword": "Passw0rd1", "newPassword": "NewPassw0rd",
		}, nil)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("changes the password", func(t *testing.T) {
		env := newTestEnv(t)
		body := env.register(t, "Acme", "a@acme.io", "Passw0rd1")
		token := body["accessToken"].(string)

		rec := env.do(t, http.MethodPatch, "/auth/change-password", map[string]any{
			"currentPassword": "Passw0rd1", "newPassword": "NewPassw0rd",
		}, map[string]string{"Authorization": "Bearer " + token})
		require.Equal(t, http.StatusOK, rec.Code)

		rec = env.do(t, http.MethodPost, "/auth/login", map[string]any{
			"email": "a@acme.io", "password": "NewPassw0rd",
		}, nil)
		require.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("wrong current password", func(t *testing.T) {
		env := newTestEnv(t)
		body := env.register(t, "Acme", "a@acme.io", "Passw0rd1")
		token := body["accessToken"].(string)

		rec := env.do(t, http.MethodPatch, "/auth/change-password", map[string]any{
			"currentPassword": "not-the-password", "newPassword": "NewPassw0rd",
		}, map[string]string{"Authorization": "Bearer " + token})
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestForgotPasswordHandler(t *testing.T) {
	t.Run("response is identical for known and unknown accounts", func(t *testing.T) {
		env := newTestEnv(t)
		env.register(t, "Acme", "a@acme.io", "Passw0rd1")
		env.verifyEmail(t, "a@acme.io")

		known := env.do(t, http.MethodPost, "/auth/forgot-password", map[string]any{
			"email": "a@acme.io",
		}, nil)
		unknown := env.do(t, http.MethodPost, "/auth/forgot-password", map[string]any{
			"email": "nobody@acme.io",
		}, nil)

		require.Equal(t, http.StatusOK, known.Code)
		require.Equal(t, http.StatusOK, unknown.Code)
		require.Equal(t, known.Body.String(), unknown.Body.String())
	})

	t.Run("internal failure is masked", func(t *testing.T) {
		env := newTestEnv(t)
		env.register(t, "Acme", "a@acme.io", "Passw0rd1")
		env.verifyEmail(t, "a@acme.io")
		env.mailer.fail = true

		rec := env.do(t, http.MethodPost, "/auth/forgot-password", map[string]any{
			"email": "a@acme.io",
		}, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, service.GenericResetMessage, decodeBody(t, rec)["message"])
	})

	t.Run("invalid email", func(t *testing.T) {
		env := newTestEnv(t)

		rec := env.do(t, http.MethodPost, "/auth/forgot-password", map[string]any{
			"email": "not-an-email",
		}, nil)
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

// verifyEmail consumes the verification token stored for email.
func (e *testEnv) verifyEmail(t *testing.T, email string) {
	t.Helper()

	user, err := e.store.Users().GetByEmail(context.Background(), email)
	require.NoError(t, err)
	require.NotNil(t, user.VerificationToken)

	rec := e.do(t, http.MethodPost, "/auth/verify-email?token="+*user.VerificationToken, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestResetPasswordHandler(t *testing.T) {
	setup := func(t *testing.T) (*testEnv, string) {
		t.Helper()

		env := newTestEnv(t)
		env.register(t, "Acme", "a@acme.io", "Passw0rd1")
		env.verifyEmail(t, "a@acme.io")

		rec := env.do(t, http.MethodPost, "/auth/forgot-password", map[string]any{
			"email": "a@acme.io",
		}, nil)
		require.Equal(t, http.StatusOK, rec.Code)

		user, err := env.store.Users().GetByEmail(context.Background(), "a@acme.io")
		require.NoError(t, err)
		require.NotNil(t, user.ResetToken)
		return env, *user.ResetToken
	}

	t.Run("resets the password once", func(t *testing.T) {
		env, token := setup(t)

		rec := env.do(t, http.MethodPost, "/auth/reset-password?token="+token, map[string]any{
			"newPassword": "NewPassw0rd",
		}, nil)
		require.Equal(t, http.StatusOK, rec.Code)

		rec = env.do(t, http.MethodPost, "/auth/login", map[string]any{
			"email": "a@acme.io", "password": "NewPassw0rd",
		}, nil)
		require.Equal(t, http.StatusOK, rec.Code)

		// replay fails
		rec = env.do(t, http.MethodPost, "/auth/reset-password?token="+token, map[string]any{
			"newPassword": "AnotherPassw0rd",
		}, nil)
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("missing token", func(t *testing.T) {
		env, _ := setup(t)

		rec := env.do(t, http.MethodPost, "/auth/reset-password", map[string]any{
			"newPassword": "NewPassw0rd",
		}, nil)
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown token", func(t *testing.T) {
		env, _ := setup(t)

		rec := env.do(t, http.MethodPost, "/auth/reset-password?token=bogus", map[string]any{
			"newPassword": "NewPassw0rd",
		}, nil)
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestVerifyEmailHandler(t *testing.T) {
	t.Run("unknown token", func(t *testing.T) {
		env := newTestEnv(t)

		rec := env.do(t, http.MethodPost, "/auth/verify-email?token=bogus", nil, nil)
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("missing token", func(t *testing.T) {
		env := newTestEnv(t)

		rec := env.do(t, http.MethodPost, "/auth/verify-email", nil, nil)
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestCORS(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodOptions, "/auth/login", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)

	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)

	require.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
}
