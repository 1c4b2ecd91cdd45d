package bounty

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"

	"bounty-backend/core/pda"
)

// txn carries one transaction's store handle, ledger time and pricing.
type txn struct {
	tx     Tx
	now    int64
	rent   RentSchedule
	derive Deriver
}

// decode unmarshals acct into T after checking its kind discriminator.
func decode[T any](acct Account, kind Kind) (T, error) {
	var out T
	if acct.Kind != kind {
		return out, errors.Wrapf(ErrConstraintSeeds, "account %s holds a %s, expected %s", acct.Address, acct.Kind, kind)
	}
	if err := json.Unmarshal(acct.Data, &out); err != nil {
		return out, errors.Wrapf(err, "decode %s %s", kind, acct.Address)
	}
	return out, nil
}

// load reads a typed record and checks its address against the stored bump.
func load[T any](ctx context.Context, t *txn, addr pda.Address, kind Kind) (T, Account, error) {
	acct, err := t.tx.Get(ctx, addr)
	if err != nil {
		var zero T
		return zero, Account{}, errors.Wrapf(err, "load %s", kind)
	}
	rec, err := decode[T](acct, kind)
	if err != nil {
		return rec, acct, err
	}
	return rec, acct, t.derive.verify(acct, rec)
}

// create stores a new record and charges its storage deposit to payer.
func (t *txn) create(ctx context.Context, addr pda.Address, bump uint8, kind Kind, record any, payer pda.Address) error {
	data, err := json.Marshal(record)
	if err != nil {
		return errors.Wrapf(err, "encode %s", kind)
	}
	deposit := t.rent.Deposit(kind)
	acct := Account{
		Address:   addr,
		Kind:      kind,
		Bump:      bump,
		Deposit:   deposit,
		Data:      data,
		CreatedAt: t.now,
		UpdatedAt: t.now,
	}
	if err := t.tx.Create(ctx, acct); err != nil {
		return errors.Wrapf(err, "create %s %s", kind, addr)
	}
	if err := t.debitNative(ctx, payer, deposit); err != nil {
		return errors.Wrapf(err, "deposit for %s", kind)
	}
	return nil
}

func (t *txn) update(ctx context.Context, acct Account, record any) error {
	data, err := json.Marshal(record)
	if err != nil {
		return errors.Wrapf(err, "encode %s", acct.Kind)
	}
	acct.Data = data
	acct.UpdatedAt = t.now
	if err := t.tx.Update(ctx, acct); err != nil {
		return errors.Wrapf(err, "update %s %s", acct.Kind, acct.Address)
	}
	return nil
}

// destroy deletes the record at addr and releases its deposit to beneficiary.
// Nothing may act on addr afterwards; reads fail with ErrNotFound.
func (t *txn) destroy(ctx context.Context, addr pda.Address, beneficiary pda.Address) (Account, error) {
	acct, err := t.tx.Delete(ctx, addr)
	if err != nil {
		return Account{}, errors.Wrapf(err, "destroy %s", addr)
	}
	if err := t.creditNative(ctx, beneficiary, acct.Deposit); err != nil {
		return Account{}, err
	}
	return acct, nil
}

func (t *txn) exists(ctx context.Context, addr pda.Address) (bool, error) {
	_, err := t.tx.Get(ctx, addr)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	return false, err
}

func (t *txn) debitNative(ctx context.Context, owner pda.Address, amount uint64) error {
	if amount == 0 {
		return nil
	}
	bal, err := t.tx.Balance(ctx, owner)
	if err != nil {
		return err
	}
	if bal < amount {
		return errors.Wrapf(ErrInsufficientFunds, "%s holds %d, needs %d", owner, bal, amount)
	}
	return t.tx.SetBalance(ctx, owner, bal-amount)
}

func (t *txn) creditNative(ctx context.Context, owner pda.Address, amount uint64) error {
	if amount == 0 {
		return nil
	}
	bal, err := t.tx.Balance(ctx, owner)
	if err != nil {
		return err
	}
	if bal+amount < bal {
		return errors.Wrapf(ErrInvalidArgument, "balance overflow for %s", owner)
	}
	return t.tx.SetBalance(ctx, owner, bal+amount)
}
