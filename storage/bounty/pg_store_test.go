package bounty

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"bounty-backend/core/bounty"
)

// startPostgres runs a throwaway Postgres; the test is skipped without Docker.
func startPostgres(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres integration test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	container, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("bounty"),
		postgres.WithUsername("bounty"),
		postgres.WithPassword("bounty"),
		postgres.BasicWaitStrategies(),
	)
	testcontainers.CleanupContainer(t, container)
	require.NoError(t, err)

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	return dsn
}

func TestPGStore(t *testing.T) {
	dsn := startPostgres(t)
	ctx := context.Background()

	runLedgerSuite(t, func(t *testing.T) bounty.Ledger {
		s, err := NewPGStore(ctx, dsn)
		require.NoError(t, err)
		schema := NewSchemaManager(s.Pool())
		require.NoError(t, schema.Drop(ctx))
		require.NoError(t, schema.Initialize(ctx))
		t.Cleanup(s.Close)
		return s
	})
}

func TestPGStoreClock(t *testing.T) {
	dsn := startPostgres(t)
	ctx := context.Background()

	s, err := NewPGStore(ctx, dsn)
	require.NoError(t, err)
	defer s.Close()

	now, err := s.Now(ctx)
	require.NoError(t, err)
	assert.InDelta(t, time.Now().Unix(), now, 60)
}
