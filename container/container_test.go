package container

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bounty-backend/config"
	"bounty-backend/core/pda"
)

func TestMemoryContainer(t *testing.T) {
	cfg, err := config.LoadFrom(map[string]string{
		"BOUNTY_ADMIN_API_KEY":  "admin",
		"BOUNTY_FAUCET_ENABLED": "true",
		"BOUNTY_PROGRAM_ID":     "11111111111111111111111111111111",
	})
	require.NoError(t, err)

	c, err := New(context.Background(), cfg)
	require.NoError(t, err)
	defer c.Close()

	assert.True(t, c.APIKeys.Validate("admin"))
	assert.Nil(t, c.Publisher)
	assert.True(t, c.Engine.Deriver().Program.IsZero())

	owner := pda.MustParseAddress("4kruCJtCQbxT1AQxZprCe7MfBVwFBJKYsdySz8ECPe6p")
	_, err = c.Engine.Airdrop(context.Background(), owner, 5)
	require.NoError(t, err)
	assert.Len(t, c.Events.Recent(0), 1)

	rec := httptest.NewRecorder()
	c.Server().Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	assert.NotNil(t, c.MCP().GetMCPServer())
}

func TestUnreachableRedisFails(t *testing.T) {
	cfg, err := config.LoadFrom(map[string]string{"BOUNTY_REDIS_ADDR": "127.0.0.1:1"})
	require.NoError(t, err)

	_, err = New(context.Background(), cfg)
	assert.Error(t, err)
}
