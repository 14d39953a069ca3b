package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/birchwood/canopy/internal/store"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// dbtx is the subset of pgx operations shared by *pgxpool.Pool and pgx.Tx,
// allowing the same store code to run inside and outside a transaction.
type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store implements store.Store using PostgreSQL.
// All sub-stores share a single connection pool.
type Store struct {
	pool  *pgxpool.Pool
	orgs  *OrganizationStore
	users *UserStore
}

// NewStore creates a PostgreSQL-backed store over the given pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{
		pool:  pool,
		orgs:  NewOrganizationStore(pool),
		users: NewUserStore(pool),
	}
}

// Organizations returns the organization store bound to the pool.
func (s *Store) Organizations() store.OrganizationStore { return s.orgs }

// Users returns the user store bound to the pool.
func (s *Store) Users() store.UserStore { return s.users }

// InTx runs fn inside a single database transaction. The transaction commits
// when fn returns nil and rolls back otherwise.
func (s *Store) InTx(ctx context.Context, fn func(tx store.Tx) error) error {
	pgtx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer pgtx.Rollback(ctx) //nolint:errcheck // rollback is safe to call after commit

	view := &txView{tx: pgtx}
	if err := fn(view); err != nil {
		if rbErr := pgtx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			return fmt.Errorf("rollback failed: %v (original error: %w)", rbErr, err)
		}
		return err
	}

	if err := pgtx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", mapPostgresError(err))
	}

	return nil
}

// txView exposes stores bound to a single pgx transaction.
type txView struct {
	tx pgx.Tx
}

func (v *txView) Organizations() store.OrganizationStore {
	return &OrganizationStore{db: v.tx}
}

func (v *txView) Users() store.UserStore {
	return &UserStore{db: v.tx}
}
