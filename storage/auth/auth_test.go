package auth

import (
	"context"
	"crypto/ed25519"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bounty-backend/core/bounty"
	"bounty-backend/core/pda"
)

func newSigner(t *testing.T) (pda.Address, ed25519.PrivateKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	addr, err := pda.AddressFromPublicKey(pub)
	require.NoError(t, err)
	return addr, priv
}

func TestEnvelopeRoundTrip(t *testing.T) {
	ctx := context.Background()
	signer, key := newSigner(t)
	a := NewAuthenticator(NewChallengeStore(time.Minute))

	ch, err := a.Issue(ctx, signer)
	require.NoError(t, err)
	env, err := Sign(key, bounty.OpAcceptTask, ch.Nonce, bounty.AcceptTaskRequest{TaskID: "t1"})
	require.NoError(t, err)
	assert.Equal(t, signer, env.Signer)

	// Survives a JSON hop unchanged.
	raw, err := json.Marshal(env)
	require.NoError(t, err)
	var decoded Envelope
	require.NoError(t, json.Unmarshal(raw, &decoded))

	got, err := a.Authenticate(ctx, bounty.OpAcceptTask, decoded)
	require.NoError(t, err)
	assert.Equal(t, signer, got)

	_, err = a.Authenticate(ctx, bounty.OpAcceptTask, decoded)
	assert.ErrorIs(t, err, bounty.ErrUnauthorized, "nonce is single use")
}

func TestEnvelopeRejectsTampering(t *testing.T) {
	ctx := context.Background()
	signer, key := newSigner(t)
	other, otherKey := newSigner(t)
	a := NewAuthenticator(NewChallengeStore(time.Minute))

	ch, err := a.Issue(ctx, signer)
	require.NoError(t, err)
	env, err := Sign(key, bounty.OpClaimReward, ch.Nonce, bounty.ClaimRewardRequest{TaskID: "t1"})
	require.NoError(t, err)

	wrongOp := env
	_, err = a.Authenticate(ctx, bounty.OpRefundEscrow, wrongOp)
	assert.ErrorIs(t, err, bounty.ErrUnauthorized)

	tampered := env
	tampered.Payload = json.RawMessage(`{"task_id":"t2"}`)
	_, err = a.Authenticate(ctx, bounty.OpClaimReward, tampered)
	assert.ErrorIs(t, err, bounty.ErrUnauthorized)

	// A valid signature by someone else cannot redeem signer's nonce.
	stolen, err := Sign(otherKey, bounty.OpClaimReward, ch.Nonce, bounty.ClaimRewardRequest{TaskID: "t1"})
	require.NoError(t, err)
	assert.Equal(t, other, stolen.Signer)
	_, err = a.Authenticate(ctx, bounty.OpClaimReward, stolen)
	assert.ErrorIs(t, err, bounty.ErrUnauthorized)

	// Failed attempts above never burned the nonce.
	_, err = a.Authenticate(ctx, bounty.OpClaimReward, env)
	require.NoError(t, err)
}

func TestChallengeExpiry(t *testing.T) {
	ctx := context.Background()
	signer, _ := newSigner(t)
	s := NewChallengeStore(time.Minute)
	now := time.Unix(1_700_000_000, 0)
	s.now = func() time.Time { return now }

	ch, err := s.Issue(ctx, signer)
	require.NoError(t, err)
	now = now.Add(2 * time.Minute)
	assert.ErrorIs(t, s.Consume(ctx, signer, ch.Nonce), bounty.ErrUnauthorized)
}

func TestAPIKeyStore(t *testing.T) {
	s := NewAPIKeyStore()
	s.Seed("env-secret", "operator", "env")
	s.Seed("  ", "ignored", "env")

	assert.True(t, s.Validate("env-secret"))
	assert.False(t, s.Validate(""))
	assert.False(t, s.Validate("guess"))

	rec, ok := s.Get("env-secret")
	require.True(t, ok)
	assert.Equal(t, "operator", rec.Label)
	assert.Empty(t, rec.Key)

	issued, err := s.Issue("ci", "cli")
	require.NoError(t, err)
	assert.Len(t, issued.Key, 64)
	assert.True(t, s.Validate(issued.Key))
}
