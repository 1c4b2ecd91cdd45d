package auth

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"bounty-backend/core/bounty"
)

func startRedis(t *testing.T) *redis.Client {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping redis integration test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForListeningPort("6379/tcp"),
		},
		Started: true,
	})
	testcontainers.CleanupContainer(t, c)
	require.NoError(t, err)

	endpoint, err := c.Endpoint(ctx, "")
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: endpoint})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestRedisChallengeStore(t *testing.T) {
	client := startRedis(t)
	ctx := context.Background()
	signer, _ := newSigner(t)
	other, _ := newSigner(t)
	s := NewRedisChallengeStore(client, time.Minute)

	ch, err := s.Issue(ctx, signer)
	require.NoError(t, err)

	ttl, err := client.TTL(ctx, "bounty:challenge:"+ch.Nonce).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))

	assert.ErrorIs(t, s.Consume(ctx, other, ch.Nonce), bounty.ErrUnauthorized)

	ch, err = s.Issue(ctx, signer)
	require.NoError(t, err)
	require.NoError(t, s.Consume(ctx, signer, ch.Nonce))
	assert.ErrorIs(t, s.Consume(ctx, signer, ch.Nonce), bounty.ErrUnauthorized)
}
