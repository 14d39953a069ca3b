package memory

import (
	"context"
	"sync"

	"github.com/birchwood/canopy/internal/models"
	"github.com/birchwood/canopy/internal/store"
	"github.com/google/uuid"
)

// data holds the backing maps for all in-memory stores.
type data struct {
	orgs  map[uuid.UUID]*models.Organization
	users map[uuid.UUID]*models.User
}

// clone returns a deep copy of the data, used to snapshot state
// before a transaction so it can be restored on rollback.
func (d *data) clone() *data {
	c := &data{
		orgs:  make(map[uuid.UUID]*models.Organization, len(d.orgs)),
		users: make(map[uuid.UUID]*models.User, len(d.users)),
	}
	for id, org := range d.orgs {
		cp := *org
		c.orgs[id] = &cp
	}
	for id, user := range d.users {
		cp := *user
		c.users[id] = &cp
	}
	return c
}

// Store implements store.Store using in-memory storage.
// This implementation is for testing and development only - data is lost on restart.
type Store struct {
	mu sync.Mutex
	d  *data
}

// NewStore creates a new in-memory store.
func NewStore() *Store {
	return &Store{
		d: &data{
			orgs:  make(map[uuid.UUID]*models.Organization),
			users: make(map[uuid.UUID]*models.User),
		},
	}
}

// Organizations returns the organization store view.
func (s *Store) Organizations() store.OrganizationStore {
	return &OrganizationStore{s: s}
}

// Users returns the user store view.
func (s *Store) Users() store.UserStore {
	return &UserStore{s: s}
}

// InTx runs fn while holding the store lock. A snapshot of the data is taken
// first and restored if fn returns an error, mirroring transaction rollback.
func (s *Store) InTx(ctx context.Context, fn func(tx store.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.d.clone()

	tx := &txView{s: s}
	if err := fn(tx); err != nil {
		s.d = snapshot
		return err
	}

	return nil
}

// txView exposes stores that skip locking; the store lock is already held by InTx.
type txView struct {
	s *Store
}

func (v *txView) Organizations() store.OrganizationStore {
	return &OrganizationStore{s: v.s, inTx: true}
}

func (v *txView) Users() store.UserStore {
	return &UserStore{s: v.s, inTx: true}
}
