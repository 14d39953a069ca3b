package memory

import (
	"context"
	"strings"
	"time"

	"github.com/birchwood/canopy/internal/models"
	"github.com/birchwood/canopy/internal/store"
	"github.com/google/uuid"
)

// OrganizationStore implements store.OrganizationStore using in-memory storage.
type OrganizationStore struct {
	s    *Store
	inTx bool
}

func (os *OrganizationStore) lock() func() {
	if os.inTx {
		return func() {}
	}
	os.s.mu.Lock()
	return os.s.mu.Unlock
}

// Create creates a new organization in memory.
func (os *OrganizationStore) Create(ctx context.Context, org *models.Organization) error {
	defer os.lock()()

	if _, exists := os.s.d.orgs[org.OrgID]; exists {
		return store.ErrOrganizationAlreadyExists
	}

	// Enforce case-insensitive name uniqueness, like the DB unique index
	for _, existing := range os.s.d.orgs {
		if strings.EqualFold(existing.Name, org.Name) {
			return store.ErrOrganizationAlreadyExists
		}
	}

	// Clone to avoid external modifications
	clone := *org
	os.s.d.orgs[org.OrgID] = &clone

	return nil
}

// Get retrieves an organization by ID.
func (os *OrganizationStore) Get(ctx context.Context, orgID uuid.UUID) (*models.Organization, error) {
	defer os.lock()()

	org, exists := os.s.d.orgs[orgID]
	if !exists {
		return nil, store.ErrOrganizationNotFound
	}

	clone := *org
	return &clone, nil
}

// GetByName retrieves an organization by name, case-insensitively.
func (os *OrganizationStore) GetByName(ctx context.Context, name string) (*models.Organization, error) {
	defer os.lock()()

	for _, org := range os.s.d.orgs {
		if strings.EqualFold(org.Name, name) {
			clone := *org
			return &clone, nil
		}
	}

	return nil, store.ErrOrganizationNotFound
}

// Update updates an existing organization.
func (os *OrganizationStore) Update(ctx context.Context, org *models.Organization) error {
	defer os.lock()()

	if _, exists := os.s.d.orgs[org.OrgID]; !exists {
		return store.ErrOrganizationNotFound
	}

	org.UpdatedAt = time.Now()
	clone := *org
	os.s.d.orgs[org.OrgID] = &clone

	return nil
}
