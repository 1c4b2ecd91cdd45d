package bounty

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// SchemaManager handles database schema migrations
type SchemaManager struct {
	pool *pgxpool.Pool
}

func NewSchemaManager(pool *pgxpool.Pool) *SchemaManager {
	return &SchemaManager{pool: pool}
}

// Initialize creates the ledger tables when missing.
func (m *SchemaManager) Initialize(ctx context.Context) error {
	_, err := m.pool.Exec(ctx, m.getSchema())
	return err
}

// Drop removes every ledger table. Only tests call it.
func (m *SchemaManager) Drop(ctx context.Context) error {
	_, err := m.pool.Exec(ctx, `DROP TABLE IF EXISTS ledger_accounts; DROP TABLE IF EXISTS ledger_balances;`)
	return err
}

func (m *SchemaManager) getSchema() string {
	return `
-- One row per derived address
CREATE TABLE IF NOT EXISTS ledger_accounts (
  address TEXT PRIMARY KEY,
  kind TEXT NOT NULL,
  bump SMALLINT NOT NULL,
  deposit BIGINT NOT NULL CHECK (deposit >= 0),
  data JSONB NOT NULL,
  created_at BIGINT NOT NULL,
  updated_at BIGINT NOT NULL
);

-- Native balances that pay storage deposits
CREATE TABLE IF NOT EXISTS ledger_balances (
  owner TEXT PRIMARY KEY,
  amount BIGINT NOT NULL DEFAULT 0 CHECK (amount >= 0)
);

CREATE INDEX IF NOT EXISTS idx_ledger_accounts_kind_created ON ledger_accounts(kind, created_at, address);
CREATE INDEX IF NOT EXISTS idx_ledger_accounts_task ON ledger_accounts((data->>'task')) WHERE kind IN ('participation', 'submission');
CREATE INDEX IF NOT EXISTS idx_ledger_accounts_creator ON ledger_accounts((data->>'creator')) WHERE kind = 'task';
`
}
