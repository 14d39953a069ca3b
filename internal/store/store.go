package store

import "context"

// Tx exposes the stores participating in a single unit of work.
type Tx interface {
	Organizations() OrganizationStore
	Users() UserStore
}

// Store is the top-level storage abstraction. Reads outside a transaction go
// through the embedded Tx view; InTx runs fn inside one atomic transaction,
// rolling back if fn returns an error.
type Store interface {
	Tx

	InTx(ctx context.Context, fn func(tx Tx) error) error
}
