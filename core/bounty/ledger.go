package bounty

import (
	"context"

	"bounty-backend/core/pda"
)

// Tx is the view of the account store inside one atomic transaction.
// Implementations must make every write visible to later reads in the same
// Tx and discard all of them if the transaction fails.
type Tx interface {
	// Get fails with ErrNotFound when no account lives at addr.
	Get(ctx context.Context, addr pda.Address) (Account, error)
	// Create fails with ErrAlreadyExists when addr is taken.
	Create(ctx context.Context, acct Account) error
	// Update replaces an existing account; ErrNotFound otherwise.
	Update(ctx context.Context, acct Account) error
	// Delete removes and returns the account; ErrNotFound otherwise.
	Delete(ctx context.Context, addr pda.Address) (Account, error)

	Balance(ctx context.Context, owner pda.Address) (uint64, error)
	SetBalance(ctx context.Context, owner pda.Address, amount uint64) error
}

// AccountFilter narrows List. Fields match top-level string fields of the
// record data exactly.
type AccountFilter struct {
	Kind   Kind
	Fields map[string]string
	Limit  int
	Offset int
}

// Ledger is the account store. Atomic runs fn as one all-or-nothing
// transaction; conflicting transactions are serialised.
type Ledger interface {
	Atomic(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	Get(ctx context.Context, addr pda.Address) (Account, error)
	List(ctx context.Context, filter AccountFilter) ([]Account, error)
	Balance(ctx context.Context, owner pda.Address) (uint64, error)
	Close()
}
