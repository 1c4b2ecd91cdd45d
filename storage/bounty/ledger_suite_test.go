package bounty

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bounty-backend/core/bounty"
	"bounty-backend/core/pda"
)

var errAbort = errors.New("abort")

func testAddr(b byte) pda.Address {
	var a pda.Address
	for i := range a {
		a[i] = b
	}
	return a
}

func testAccount(b byte, kind bounty.Kind, created int64, data map[string]any) bounty.Account {
	raw, _ := json.Marshal(data)
	return bounty.Account{Address: testAddr(b), Kind: kind, Bump: 254, Deposit: 1000, Data: raw, CreatedAt: created, UpdatedAt: created}
}

// runLedgerSuite checks the transactional contract every ledger must honour.
func runLedgerSuite(t *testing.T, newLedger func(t *testing.T) bounty.Ledger) {
	ctx := context.Background()

	t.Run("create get update delete", func(t *testing.T) {
		l := newLedger(t)
		acct := testAccount(1, bounty.KindTask, 10, map[string]any{"task_id": "t1"})

		require.NoError(t, l.Atomic(ctx, func(ctx context.Context, tx bounty.Tx) error {
			if err := tx.Create(ctx, acct); err != nil {
				return err
			}
			got, err := tx.Get(ctx, acct.Address)
			if err != nil {
				return err
			}
			assert.Equal(t, acct.Kind, got.Kind)
			return nil
		}))

		got, err := l.Get(ctx, acct.Address)
		require.NoError(t, err)
		assert.Equal(t, acct.Address, got.Address)
		assert.EqualValues(t, 254, got.Bump)
		assert.EqualValues(t, 1000, got.Deposit)
		assert.JSONEq(t, `{"task_id":"t1"}`, string(got.Data))

		err = l.Atomic(ctx, func(ctx context.Context, tx bounty.Tx) error { return tx.Create(ctx, acct) })
		assert.ErrorIs(t, err, bounty.ErrAlreadyExists)

		require.NoError(t, l.Atomic(ctx, func(ctx context.Context, tx bounty.Tx) error {
			acct.Data = json.RawMessage(`{"task_id":"t1","phase":"paid"}`)
			acct.UpdatedAt = 20
			return tx.Update(ctx, acct)
		}))
		got, err = l.Get(ctx, acct.Address)
		require.NoError(t, err)
		assert.JSONEq(t, `{"task_id":"t1","phase":"paid"}`, string(got.Data))
		assert.EqualValues(t, 20, got.UpdatedAt)

		require.NoError(t, l.Atomic(ctx, func(ctx context.Context, tx bounty.Tx) error {
			deleted, err := tx.Delete(ctx, acct.Address)
			if err != nil {
				return err
			}
			assert.EqualValues(t, 1000, deleted.Deposit)
			_, err = tx.Get(ctx, acct.Address)
			assert.ErrorIs(t, err, bounty.ErrNotFound)
			return nil
		}))
		_, err = l.Get(ctx, acct.Address)
		assert.ErrorIs(t, err, bounty.ErrNotFound)

		err = l.Atomic(ctx, func(ctx context.Context, tx bounty.Tx) error {
			_, err := tx.Delete(ctx, acct.Address)
			return err
		})
		assert.ErrorIs(t, err, bounty.ErrNotFound)
		err = l.Atomic(ctx, func(ctx context.Context, tx bounty.Tx) error { return tx.Update(ctx, acct) })
		assert.ErrorIs(t, err, bounty.ErrNotFound)
	})

	t.Run("failed transaction leaves nothing behind", func(t *testing.T) {
		l := newLedger(t)
		owner := testAddr(9)
		err := l.Atomic(ctx, func(ctx context.Context, tx bounty.Tx) error {
			if err := tx.Create(ctx, testAccount(2, bounty.KindEscrow, 1, map[string]any{})); err != nil {
				return err
			}
			if err := tx.SetBalance(ctx, owner, 500); err != nil {
				return err
			}
			return errAbort
		})
		require.ErrorIs(t, err, errAbort)

		_, err = l.Get(ctx, testAddr(2))
		assert.ErrorIs(t, err, bounty.ErrNotFound)
		bal, err := l.Balance(ctx, owner)
		require.NoError(t, err)
		assert.Zero(t, bal)
	})

	t.Run("balances", func(t *testing.T) {
		l := newLedger(t)
		owner := testAddr(3)
		require.NoError(t, l.Atomic(ctx, func(ctx context.Context, tx bounty.Tx) error {
			bal, err := tx.Balance(ctx, owner)
			if err != nil {
				return err
			}
			assert.Zero(t, bal)
			return tx.SetBalance(ctx, owner, bal+75)
		}))
		bal, err := l.Balance(ctx, owner)
		require.NoError(t, err)
		assert.EqualValues(t, 75, bal)
	})

	t.Run("list filters and orders", func(t *testing.T) {
		l := newLedger(t)
		task := testAddr(50).String()
		other := testAddr(51).String()
		require.NoError(t, l.Atomic(ctx, func(ctx context.Context, tx bounty.Tx) error {
			for _, acct := range []bounty.Account{
				testAccount(12, bounty.KindSubmission, 3, map[string]any{"task": task}),
				testAccount(11, bounty.KindSubmission, 1, map[string]any{"task": task}),
				testAccount(13, bounty.KindSubmission, 2, map[string]any{"task": other}),
				testAccount(14, bounty.KindParticipation, 1, map[string]any{"task": task}),
			} {
				if err := tx.Create(ctx, acct); err != nil {
					return err
				}
			}
			return nil
		}))

		subs, err := l.List(ctx, bounty.AccountFilter{Kind: bounty.KindSubmission, Fields: map[string]string{"task": task}})
		require.NoError(t, err)
		require.Len(t, subs, 2)
		assert.Equal(t, testAddr(11), subs[0].Address)
		assert.Equal(t, testAddr(12), subs[1].Address)

		all, err := l.List(ctx, bounty.AccountFilter{Kind: bounty.KindSubmission})
		require.NoError(t, err)
		assert.Len(t, all, 3)

		page, err := l.List(ctx, bounty.AccountFilter{Kind: bounty.KindSubmission, Limit: 1, Offset: 1})
		require.NoError(t, err)
		require.Len(t, page, 1)
		assert.Equal(t, testAddr(13), page[0].Address)

		_, err = l.List(ctx, bounty.AccountFilter{Fields: map[string]string{"bad key;": "x"}})
		assert.ErrorIs(t, err, bounty.ErrInvalidArgument)
	})

	t.Run("concurrent deletes succeed once", func(t *testing.T) {
		l := newLedger(t)
		acct := testAccount(20, bounty.KindEscrow, 1, map[string]any{})
		require.NoError(t, l.Atomic(ctx, func(ctx context.Context, tx bounty.Tx) error { return tx.Create(ctx, acct) }))

		const n = 6
		var (
			wg  sync.WaitGroup
			mu  sync.Mutex
			ok  int
			bad []error
		)
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				err := l.Atomic(ctx, func(ctx context.Context, tx bounty.Tx) error {
					if _, err := tx.Get(ctx, acct.Address); err != nil {
						return err
					}
					_, err := tx.Delete(ctx, acct.Address)
					return err
				})
				mu.Lock()
				defer mu.Unlock()
				if err == nil {
					ok++
				} else {
					bad = append(bad, err)
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, 1, ok)
		for _, err := range bad {
			assert.ErrorIs(t, err, bounty.ErrNotFound)
		}
	})
}
