package bounty

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"bounty-backend/core/bounty"
	"bounty-backend/core/pda"
)

// maxAttempts bounds retries of transactions Postgres aborted on a deadlock or
// serialization failure.
const maxAttempts = 3

// PGStore persists the ledger in Postgres. Every account a transaction reads
// is row-locked until commit.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore connects and initializes the schema.
func NewPGStore(ctx context.Context, dsn string) (*PGStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := NewSchemaManager(pool).Initialize(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return &PGStore{pool: pool}, nil
}

// Close shuts down the pool.
func (s *PGStore) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Pool exposes the connection pool for health checks.
func (s *PGStore) Pool() *pgxpool.Pool { return s.pool }

// Now reads the database clock so every replica shares one time source.
func (s *PGStore) Now(ctx context.Context) (int64, error) {
	var now int64
	if err := s.pool.QueryRow(ctx, `SELECT extract(epoch FROM clock_timestamp())::bigint`).Scan(&now); err != nil {
		return 0, errors.Wrap(err, "read database clock")
	}
	return now, nil
}

func retryable(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "40P01" || pgErr.Code == "40001"
	}
	return false
}

func (s *PGStore) Atomic(ctx context.Context, fn func(ctx context.Context, tx bounty.Tx) error) error {
	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err = s.atomicOnce(ctx, fn)
		if err == nil || !retryable(err) {
			return err
		}
		log.Warnf("ledger transaction aborted (attempt %d/%d): %v", attempt, maxAttempts, err)
	}
	return err
}

func (s *PGStore) atomicOnce(ctx context.Context, fn func(ctx context.Context, tx bounty.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := fn(ctx, &pgTx{tx: tx}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

const accountColumns = `address, kind, bump, deposit, data, created_at, updated_at`

func scanAccount(row pgx.Row) (bounty.Account, error) {
	var (
		acct    bounty.Account
		addr    string
		kind    string
		bump    int16
		deposit int64
		data    []byte
	)
	if err := row.Scan(&addr, &kind, &bump, &deposit, &data, &acct.CreatedAt, &acct.UpdatedAt); err != nil {
		return bounty.Account{}, err
	}
	parsed, err := pda.ParseAddress(addr)
	if err != nil {
		return bounty.Account{}, errors.Wrapf(err, "stored address %q", addr)
	}
	acct.Address = parsed
	acct.Kind = bounty.Kind(kind)
	acct.Bump = uint8(bump)
	acct.Deposit = uint64(deposit)
	acct.Data = data
	return acct, nil
}

func notFound(err error, addr pda.Address) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return errors.Wrapf(bounty.ErrNotFound, "%s", addr)
	}
	return err
}

func toBigint(v uint64) (int64, error) {
	if v > math.MaxInt64 {
		return 0, errors.Wrapf(bounty.ErrInvalidArgument, "%d exceeds storable range", v)
	}
	return int64(v), nil
}

func (s *PGStore) Get(ctx context.Context, addr pda.Address) (bounty.Account, error) {
	acct, err := scanAccount(s.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM ledger_accounts WHERE address=$1`, addr.String()))
	if err != nil {
		return bounty.Account{}, notFound(err, addr)
	}
	return acct, nil
}

// List filters on kind and on top-level JSON fields of the record data.
func (s *PGStore) List(ctx context.Context, filter bounty.AccountFilter) ([]bounty.Account, error) {
	if err := validateFields(filter.Fields); err != nil {
		return nil, err
	}
	var (
		where []string
		args  []any
	)
	if filter.Kind != "" {
		args = append(args, string(filter.Kind))
		where = append(where, fmt.Sprintf("kind=$%d", len(args)))
	}
	for k, v := range filter.Fields {
		args = append(args, k, v)
		where = append(where, fmt.Sprintf("data->>($%d::text) = $%d", len(args)-1, len(args)))
	}
	query := `SELECT ` + accountColumns + ` FROM ledger_accounts`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at, address`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]bounty.Account, 0)
	for rows.Next() {
		acct, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, acct)
	}
	return out, rows.Err()
}

func (s *PGStore) Balance(ctx context.Context, owner pda.Address) (uint64, error) {
	var amount int64
	err := s.pool.QueryRow(ctx, `SELECT amount FROM ledger_balances WHERE owner=$1`, owner.String()).Scan(&amount)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return uint64(amount), nil
}

type pgTx struct {
	tx pgx.Tx
}

func (t *pgTx) Get(ctx context.Context, addr pda.Address) (bounty.Account, error) {
	acct, err := scanAccount(t.tx.QueryRow(ctx, `SELECT `+accountColumns+` FROM ledger_accounts WHERE address=$1 FOR UPDATE`, addr.String()))
	if err != nil {
		return bounty.Account{}, notFound(err, addr)
	}
	return acct, nil
}

func (t *pgTx) Create(ctx context.Context, acct bounty.Account) error {
	deposit, err := toBigint(acct.Deposit)
	if err != nil {
		return err
	}
	tag, err := t.tx.Exec(ctx, `
INSERT INTO ledger_accounts (`+accountColumns+`)
VALUES ($1,$2,$3,$4,$5,$6,$7)
ON CONFLICT (address) DO NOTHING
`, acct.Address.String(), string(acct.Kind), int16(acct.Bump), deposit, string(acct.Data), acct.CreatedAt, acct.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errors.Wrapf(bounty.ErrAlreadyExists, "%s", acct.Address)
	}
	return nil
}

func (t *pgTx) Update(ctx context.Context, acct bounty.Account) error {
	tag, err := t.tx.Exec(ctx, `UPDATE ledger_accounts SET data=$2, updated_at=$3 WHERE address=$1`,
		acct.Address.String(), string(acct.Data), acct.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errors.Wrapf(bounty.ErrNotFound, "%s", acct.Address)
	}
	return nil
}

func (t *pgTx) Delete(ctx context.Context, addr pda.Address) (bounty.Account, error) {
	acct, err := scanAccount(t.tx.QueryRow(ctx, `DELETE FROM ledger_accounts WHERE address=$1 RETURNING `+accountColumns, addr.String()))
	if err != nil {
		return bounty.Account{}, notFound(err, addr)
	}
	return acct, nil
}

// Balance materialises the owner's row first so FOR UPDATE always has a row
// to lock.
func (t *pgTx) Balance(ctx context.Context, owner pda.Address) (uint64, error) {
	if _, err := t.tx.Exec(ctx, `INSERT INTO ledger_balances (owner, amount) VALUES ($1, 0) ON CONFLICT (owner) DO NOTHING`, owner.String()); err != nil {
		return 0, err
	}
	var amount int64
	if err := t.tx.QueryRow(ctx, `SELECT amount FROM ledger_balances WHERE owner=$1 FOR UPDATE`, owner.String()).Scan(&amount); err != nil {
		return 0, err
	}
	return uint64(amount), nil
}

func (t *pgTx) SetBalance(ctx context.Context, owner pda.Address, amount uint64) error {
	v, err := toBigint(amount)
	if err != nil {
		return err
	}
	_, err = t.tx.Exec(ctx, `
INSERT INTO ledger_balances (owner, amount) VALUES ($1, $2)
ON CONFLICT (owner) DO UPDATE SET amount = EXCLUDED.amount
`, owner.String(), v)
	return err
}
