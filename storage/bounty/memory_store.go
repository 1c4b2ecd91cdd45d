package bounty

import (
	"context"
	"sort"
	"sync"

	"github.com/pkg/errors"

	"bounty-backend/core/bounty"
	"bounty-backend/core/pda"
)

// MemoryStore is a ledger held in process memory.
// One mutex serialises every transaction, so the ledger behaves as a single
// global sequence of operations.
type MemoryStore struct {
	mu       sync.RWMutex
	accounts map[pda.Address]bounty.Account
	balances map[pda.Address]uint64
}

// NewMemoryStore returns an empty ledger.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts: make(map[pda.Address]bounty.Account),
		balances: make(map[pda.Address]uint64),
	}
}

// Atomic stages every write of fn in an overlay and applies it only when fn
// returns nil.
func (s *MemoryStore) Atomic(ctx context.Context, fn func(ctx context.Context, tx bounty.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memTx{
		store:    s,
		accounts: make(map[pda.Address]*bounty.Account),
		balances: make(map[pda.Address]uint64),
	}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	for addr, acct := range tx.accounts {
		if acct == nil {
			delete(s.accounts, addr)
			continue
		}
		s.accounts[addr] = *acct
	}
	for owner, amount := range tx.balances {
		s.balances[owner] = amount
	}
	return nil
}

func (s *MemoryStore) Get(_ context.Context, addr pda.Address) (bounty.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	acct, ok := s.accounts[addr]
	if !ok {
		return bounty.Account{}, errors.Wrapf(bounty.ErrNotFound, "%s", addr)
	}
	return clone(acct), nil
}

// List returns matching accounts ordered by creation time, then address.
func (s *MemoryStore) List(_ context.Context, filter bounty.AccountFilter) ([]bounty.Account, error) {
	if err := validateFields(filter.Fields); err != nil {
		return nil, err
	}
	s.mu.RLock()
	out := make([]bounty.Account, 0)
	for _, acct := range s.accounts {
		if filter.Kind != "" && acct.Kind != filter.Kind {
			continue
		}
		ok, err := matchFields(acct.Data, filter.Fields)
		if err != nil {
			s.mu.RUnlock()
			return nil, err
		}
		if ok {
			out = append(out, clone(acct))
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt != out[j].CreatedAt {
			return out[i].CreatedAt < out[j].CreatedAt
		}
		return out[i].Address.String() < out[j].Address.String()
	})
	if filter.Offset > 0 {
		if filter.Offset >= len(out) {
			return []bounty.Account{}, nil
		}
		out = out[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(out) {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (s *MemoryStore) Balance(_ context.Context, owner pda.Address) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.balances[owner], nil
}

func (s *MemoryStore) Close() {}

func clone(acct bounty.Account) bounty.Account {
	acct.Data = append([]byte(nil), acct.Data...)
	return acct
}

// memTx reads through its overlay to the store. A nil overlay entry marks a
// deleted account.
type memTx struct {
	store    *MemoryStore
	accounts map[pda.Address]*bounty.Account
	balances map[pda.Address]uint64
}

func (t *memTx) lookup(addr pda.Address) (bounty.Account, bool) {
	if staged, ok := t.accounts[addr]; ok {
		if staged == nil {
			return bounty.Account{}, false
		}
		return clone(*staged), true
	}
	acct, ok := t.store.accounts[addr]
	if !ok {
		return bounty.Account{}, false
	}
	return clone(acct), true
}

func (t *memTx) stage(acct bounty.Account) {
	c := clone(acct)
	t.accounts[acct.Address] = &c
}

func (t *memTx) Get(_ context.Context, addr pda.Address) (bounty.Account, error) {
	acct, ok := t.lookup(addr)
	if !ok {
		return bounty.Account{}, errors.Wrapf(bounty.ErrNotFound, "%s", addr)
	}
	return acct, nil
}

func (t *memTx) Create(_ context.Context, acct bounty.Account) error {
	if _, ok := t.lookup(acct.Address); ok {
		return errors.Wrapf(bounty.ErrAlreadyExists, "%s", acct.Address)
	}
	t.stage(acct)
	return nil
}

func (t *memTx) Update(_ context.Context, acct bounty.Account) error {
	if _, ok := t.lookup(acct.Address); !ok {
		return errors.Wrapf(bounty.ErrNotFound, "%s", acct.Address)
	}
	t.stage(acct)
	return nil
}

func (t *memTx) Delete(_ context.Context, addr pda.Address) (bounty.Account, error) {
	acct, ok := t.lookup(addr)
	if !ok {
		return bounty.Account{}, errors.Wrapf(bounty.ErrNotFound, "%s", addr)
	}
	t.accounts[addr] = nil
	return acct, nil
}

func (t *memTx) Balance(_ context.Context, owner pda.Address) (uint64, error) {
	if amount, ok := t.balances[owner]; ok {
		return amount, nil
	}
	return t.store.balances[owner], nil
}

func (t *memTx) SetBalance(_ context.Context, owner pda.Address, amount uint64) error {
	t.balances[owner] = amount
	return nil
}
