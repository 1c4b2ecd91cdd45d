package events

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"bounty-backend/core/bounty"
	"bounty-backend/core/pda"
)

func TestRedisPublisher(t *testing.T) {
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
	defer client.Close()

	p := NewRedisPublisher(client, Config{Prefix: "test"})
	sub := client.Subscribe(ctx, p.Channel(bounty.OpCreateTask))
	defer sub.Close()
	_, err = sub.Receive(ctx)
	require.NoError(t, err)

	task := bounty.DefaultProgramID
	ev := bounty.Event{ID: "ev-1", Op: bounty.OpCreateTask, Task: &task, Amount: 10, At: 42, Signer: pda.Zero}
	require.NoError(t, p.Publish(ctx, ev))

	msg, err := sub.ReceiveMessage(ctx)
	require.NoError(t, err)
	var got bounty.Event
	require.NoError(t, json.Unmarshal([]byte(msg.Payload), &got))
	assert.Equal(t, "ev-1", got.ID)
	assert.EqualValues(t, 10, got.Amount)

	entries, err := client.XRange(ctx, p.StreamKey(), "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, task.String(), entries[0].Values["task"])

	published, failed := p.Stats()
	assert.EqualValues(t, 1, published)
	assert.Zero(t, failed)
}
