package bounty

import (
	"context"

	"github.com/pkg/errors"

	"bounty-backend/core/pda"
)

func (t *txn) loadMint(ctx context.Context, addr pda.Address) (Mint, Account, error) {
	return load[Mint](ctx, t, addr, KindMint)
}

func (t *txn) loadTokenAccount(ctx context.Context, addr pda.Address) (TokenAccount, Account, error) {
	return load[TokenAccount](ctx, t, addr, KindTokenAccount)
}

// createMint registers a new denomination owned by authority.
func (t *txn) createMint(ctx context.Context, authority pda.Address, symbol string, decimals uint8) (Mint, error) {
	if decimals > 18 {
		return Mint{}, errors.Wrapf(ErrInvalidArgument, "decimals %d out of range", decimals)
	}
	addr, bump, err := t.derive.Mint(authority, symbol)
	if err != nil {
		return Mint{}, err
	}
	m := Mint{Address: addr, Authority: authority, Symbol: symbol, Decimals: decimals, Bump: bump}
	if err := t.create(ctx, addr, bump, KindMint, m, authority); err != nil {
		return Mint{}, err
	}
	return m, nil
}

// mintTo issues amount new units of mint into owner's token account,
// creating the account on the authority's deposit when missing.
func (t *txn) mintTo(ctx context.Context, authority, mintAddr, owner pda.Address, amount uint64) (TokenAccount, error) {
	if amount == 0 {
		return TokenAccount{}, errors.Wrap(ErrInvalidArgument, "mint amount must be positive")
	}
	m, macct, err := t.loadMint(ctx, mintAddr)
	if err != nil {
		return TokenAccount{}, err
	}
	if !m.Authority.Equal(authority) {
		return TokenAccount{}, errors.Wrapf(ErrUnauthorized, "%s is not the authority of mint %s", authority, mintAddr)
	}
	if m.Supply+amount < m.Supply {
		return TokenAccount{}, errors.Wrap(ErrInvalidArgument, "mint supply overflow")
	}
	ta, tacct, err := t.ensureTokenAccount(ctx, owner, mintAddr, authority)
	if err != nil {
		return TokenAccount{}, err
	}
	m.Supply += amount
	if err := t.update(ctx, macct, m); err != nil {
		return TokenAccount{}, err
	}
	ta.Amount += amount
	if err := t.update(ctx, tacct, ta); err != nil {
		return TokenAccount{}, err
	}
	return ta, nil
}

// ensureTokenAccount returns owner's associated token account for mint,
// creating an empty one paid for by payer when it does not exist yet.
func (t *txn) ensureTokenAccount(ctx context.Context, owner, mint, payer pda.Address) (TokenAccount, Account, error) {
	addr, bump, err := t.derive.TokenAccount(owner, mint)
	if err != nil {
		return TokenAccount{}, Account{}, err
	}
	ok, err := t.exists(ctx, addr)
	if err != nil {
		return TokenAccount{}, Account{}, err
	}
	if !ok {
		if _, _, err := t.loadMint(ctx, mint); err != nil {
			return TokenAccount{}, Account{}, err
		}
		ta := TokenAccount{Address: addr, Owner: owner, Mint: mint, Bump: bump}
		if err := t.create(ctx, addr, bump, KindTokenAccount, ta, payer); err != nil {
			return TokenAccount{}, Account{}, err
		}
	}
	return t.loadTokenAccount(ctx, addr)
}

// transfer moves amount between two token accounts of the same mint.
// authority must own the source account; for a vault that is the escrow
// address, which only engine code ever passes.
func (t *txn) transfer(ctx context.Context, from, to pda.Address, amount uint64, authority pda.Address) error {
	if from.Equal(to) {
		return errors.Wrap(ErrInvalidArgument, "transfer source and destination are the same account")
	}
	src, sacct, err := t.loadTokenAccount(ctx, from)
	if err != nil {
		return err
	}
	dst, dacct, err := t.loadTokenAccount(ctx, to)
	if err != nil {
		return err
	}
	if !src.Owner.Equal(authority) {
		return errors.Wrapf(ErrUnauthorized, "%s does not own token account %s", authority, from)
	}
	if !src.Mint.Equal(dst.Mint) {
		return errors.Wrapf(ErrConstraintSeeds, "mint mismatch between %s and %s", from, to)
	}
	if src.Amount < amount {
		return errors.Wrapf(ErrInsufficientFunds, "token account %s holds %d, needs %d", from, src.Amount, amount)
	}
	src.Amount -= amount
	dst.Amount += amount
	if err := t.update(ctx, sacct, src); err != nil {
		return err
	}
	return t.update(ctx, dacct, dst)
}

// payout drains the vault into destination, then destroys the vault and its
// escrow together. Both deposits go to closer.
func (t *txn) payout(ctx context.Context, esc Escrow, destination, closer pda.Address) (uint64, error) {
	vault, _, err := t.loadTokenAccount(ctx, esc.Vault)
	if err != nil {
		return 0, err
	}
	if !vault.Owner.Equal(esc.Address) {
		return 0, errors.Wrapf(ErrConstraintSeeds, "vault %s is not owned by escrow %s", esc.Vault, esc.Address)
	}
	if vault.Amount == 0 {
		return 0, errors.Wrapf(ErrEscrowMismatch, "vault %s is empty", esc.Vault)
	}
	amount := vault.Amount
	if err := t.transfer(ctx, esc.Vault, destination, amount, esc.Address); err != nil {
		return 0, err
	}
	if _, err := t.destroy(ctx, esc.Vault, closer); err != nil {
		return 0, err
	}
	if _, err := t.destroy(ctx, esc.Address, closer); err != nil {
		return 0, err
	}
	return amount, nil
}

// refund is payout back to the funding account.
func (t *txn) refund(ctx context.Context, esc Escrow, destination, closer pda.Address) (uint64, error) {
	return t.payout(ctx, esc, destination, closer)
}
