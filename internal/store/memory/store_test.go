package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/birchwood/canopy/internal/models"
	"github.com/birchwood/canopy/internal/store"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func newOrg(t *testing.T, name string) *models.Organization {
	t.Helper()

	orgID, err := uuid.NewV7()
	require.NoError(t, err)

	return &models.Organization{
		OrgID:  orgID,
		Name:   name,
		Plan:   models.PlanFree,
		Active: true,
	}
}

func newUser(t *testing.T, orgID uuid.UUID, email string) *models.User {
	t.Helper()

	userID, err := uuid.NewV7()
	require.NoError(t, err)

	return &models.User{
		UserID:       userID,
		OrgID:        orgID,
		Email:        email,
		PasswordHash: "$2a$10$fakehashfakehashfakehash",
		Role:         models.RoleAdmin,
		Active:       true,
	}
}

func TestOrganizationStore(t *testing.T) {
	ctx := context.Background()

	t.Run("create and get", func(t *testing.T) {
		st := NewStore()

		org := newOrg(t, "acme")
		require.NoError(t, st.Organizations().Create(ctx, org))

		got, err := st.Organizations().Get(ctx, org.OrgID)
		require.NoError(t, err)
		require.Equal(t, org.Name, got.Name)
		require.Equal(t, models.PlanFree, got.Plan)
	})

	t.Run("get unknown returns not found", func(t *testing.T) {
		st := NewStore()

		orgID, err := uuid.NewV7()
		require.NoError(t, err)

		_, err = st.Organizations().Get(ctx, orgID)
		require.ErrorIs(t, err, store.ErrOrganizationNotFound)
	})

	t.Run("duplicate name is rejected case-insensitively", func(t *testing.T) {
		st := NewStore()

		require.NoError(t, st.Organizations().Create(ctx, newOrg(t, "acme")))

		err := st.Organizations().Create(ctx, newOrg(t, "ACME"))
		require.ErrorIs(t, err, store.ErrOrganizationAlreadyExists)
	})

	t.Run("get by name is case-insensitive", func(t *testing.T) {
		st := NewStore()

		org := newOrg(t, "acme")
		require.NoError(t, st.Organizations().Create(ctx, org))

		got, err := st.Organizations().GetByName(ctx, "AcMe")
		require.NoError(t, err)
		require.Equal(t, org.OrgID, got.OrgID)
	})

	t.Run("update", func(t *testing.T) {
		st := NewStore()

		org := newOrg(t, "acme")
		require.NoError(t, st.Organizations().Create(ctx, org))

		org.Plan = models.PlanPro
		require.NoError(t, st.Organizations().Update(ctx, org))

		got, err := st.Organizations().Get(ctx, org.OrgID)
		require.NoError(t, err)
		require.Equal(t, models.PlanPro, got.Plan)
	})

	t.Run("update unknown returns not found", func(t *testing.T) {
		st := NewStore()

		err := st.Organizations().Update(ctx, newOrg(t, "ghost"))
		require.ErrorIs(t, err, store.ErrOrganizationNotFound)
	})

	t.Run("stored organization is isolated from caller mutations", func(t *testing.T) {
		st := NewStore()

		org := newOrg(t, "acme")
		require.NoError(t, st.Organizations().Create(ctx, org))

		org.Name = "mutated"

		got, err := st.Organizations().Get(ctx, org.OrgID)
		require.NoError(t, err)
		require.Equal(t, "acme", got.Name)
	})
}

func TestUserStore(t *testing.T) {
	ctx := context.Background()

	orgID, err := uuid.NewV7()
	require.NoError(t, err)

	t.Run("create and get", func(t *testing.T) {
		st := NewStore()

		user := newUser(t, orgID, "admin@acme.io")
		require.NoError(t, st.Users().Create(ctx, user))

		got, err := st.Users().Get(ctx, user.UserID)
		require.NoError(t, err)
		require.Equal(t, user.Email, got.Email)
		require.Equal(t, models.RoleAdmin, got.Role)
	})

	t.Run("duplicate email is rejected case-insensitively", func(t *testing.T) {
		st := NewStore()

		require.NoError(t, st.Users().Create(ctx, newUser(t, orgID, "admin@acme.io")))

		err := st.Users().Create(ctx, newUser(t, orgID, "Admin@Acme.IO"))
		require.ErrorIs(t, err, store.ErrUserAlreadyExists)
	})

	t.Run("get by email is case-insensitive", func(t *testing.T) {
		st := NewStore()

		user := newUser(t, orgID, "admin@acme.io")
		require.NoError(t, st.Users().Create(ctx, user))

		got, err := st.Users().GetByEmail(ctx, "ADMIN@acme.io")
		require.NoError(t, err)
		require.Equal(t, user.UserID, got.UserID)
	})

	t.Run("get by reset token", func(t *testing.T) {
		st := NewStore()

		token := "a-reset-token"
		user := newUser(t, orgID, "admin@acme.io")
		user.ResetToken = &token
		require.NoError(t, st.Users().Create(ctx, user))

		got, err := st.Users().GetByResetToken(ctx, token)
		require.NoError(t, err)
		require.Equal(t, user.UserID, got.UserID)

		_, err = st.Users().GetByResetToken(ctx, "some-other-token")
		require.ErrorIs(t, err, store.ErrUserNotFound)
	})

	t.Run("get by verification token", func(t *testing.T) {
		st := NewStore()

		token := "a-verification-token"
		user := newUser(t, orgID, "admin@acme.io")
		user.VerificationToken = &token
		require.NoError(t, st.Users().Create(ctx, user))

		got, err := st.Users().GetByVerificationToken(ctx, token)
		require.NoError(t, err)
		require.Equal(t, user.UserID, got.UserID)
	})

	t.Run("update clears tokens", func(t *testing.T) {
		st := NewStore()

		token := "a-reset-token"
		user := newUser(t, orgID, "admin@acme.io")
		user.ResetToken = &token
		require.NoError(t, st.Users().Create(ctx, user))

		user.ResetToken = nil
		require.NoError(t, st.Users().Update(ctx, user))

		_, err := st.Users().GetByResetToken(ctx, token)
		require.ErrorIs(t, err, store.ErrUserNotFound)
	})
}

func TestStoreInTx(t *testing.T) {
	ctx := context.Background()

	t.Run("commit keeps writes", func(t *testing.T) {
		st := NewStore()
		org := newOrg(t, "acme")

		err := st.InTx(ctx, func(tx store.Tx) error {
			if err := tx.Organizations().Create(ctx, org); err != nil {
				return err
			}
			return tx.Users().Create(ctx, newUser(t, org.OrgID, "admin@acme.io"))
		})
		require.NoError(t, err)

		_, err = st.Organizations().Get(ctx, org.OrgID)
		require.NoError(t, err)

		_, err = st.Users().GetByEmail(ctx, "admin@acme.io")
		require.NoError(t, err)
	})

	t.Run("error rolls back all writes", func(t *testing.T) {
		st := NewStore()
		org := newOrg(t, "acme")
		boom := errors.New("boom")

		err := st.InTx(ctx, func(tx store.Tx) error {
			if err := tx.Organizations().Create(ctx, org); err != nil {
				return err
			}
			if err := tx.Users().Create(ctx, newUser(t, org.OrgID, "admin@acme.io")); err != nil {
				return err
			}
			return boom
		})
		require.ErrorIs(t, err, boom)

		_, err = st.Organizations().Get(ctx, org.OrgID)
		require.ErrorIs(t, err, store.ErrOrganizationNotFound)

		_, err = st.Users().GetByEmail(ctx, "admin@acme.io")
		require.ErrorIs(t, err, store.ErrUserNotFound)
	})

	t.Run("rollback restores pre-transaction state", func(t *testing.T) {
		st := NewStore()

		org := newOrg(t, "acme")
		require.NoError(t, st.Organizations().Create(ctx, org))

		err := st.InTx(ctx, func(tx store.Tx) error {
			org.Plan = models.PlanEnterprise
			if err := tx.Organizations().Update(ctx, org); err != nil {
				return err
			}
			return errors.New("boom")
		})
		require.Error(t, err)

		got, err := st.Organizations().Get(ctx, org.OrgID)
		require.NoError(t, err)
		require.Equal(t, models.PlanFree, got.Plan)
	})
}
