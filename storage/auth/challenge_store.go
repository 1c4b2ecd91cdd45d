package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"sync"
	"time"

	"github.com/pkg/errors"

	"bounty-backend/core/bounty"
	"bounty-backend/core/pda"
)

// DefaultChallengeTTL bounds how long an issued nonce stays usable.
const DefaultChallengeTTL = 5 * time.Minute

// Challenge is a one-shot nonce bound to a signer.
type Challenge struct {
	Nonce     string      `json:"nonce"`
	Signer    pda.Address `json:"signer"`
	ExpiresAt time.Time   `json:"expires_at"`
	CreatedAt time.Time   `json:"created_at"`
}

// Challenges issues and redeems nonces. Consume succeeds at most once per
// nonce and only for the signer it was issued to.
type Challenges interface {
	Issue(ctx context.Context, signer pda.Address) (Challenge, error)
	Consume(ctx context.Context, signer pda.Address, nonce string) error
}

// ChallengeStore keeps challenges in memory; a single replica is assumed.
type ChallengeStore struct {
	mu         sync.Mutex
	ttl        time.Duration
	now        func() time.Time
	challenges map[string]Challenge // keyed by nonce
}

func NewChallengeStore(ttl time.Duration) *ChallengeStore {
	if ttl <= 0 {
		ttl = DefaultChallengeTTL
	}
	return &ChallengeStore{
		ttl:        ttl,
		now:        time.Now,
		challenges: make(map[string]Challenge),
	}
}

// Issue creates a fresh challenge for signer and prunes expired ones.
func (s *ChallengeStore) Issue(_ context.Context, signer pda.Address) (Challenge, error) {
	nonce, err := randomNonce()
	if err != nil {
		return Challenge{}, err
	}
	now := s.now()
	ch := Challenge{Nonce: nonce, Signer: signer, CreatedAt: now, ExpiresAt: now.Add(s.ttl)}

	s.mu.Lock()
	defer s.mu.Unlock()
	for k, c := range s.challenges {
		if now.After(c.ExpiresAt) {
			delete(s.challenges, k)
		}
	}
	s.challenges[nonce] = ch
	return ch, nil
}

func (s *ChallengeStore) Consume(_ context.Context, signer pda.Address, nonce string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch, ok := s.challenges[nonce]
	if !ok {
		return errors.Wrap(bounty.ErrUnauthorized, "unknown or used nonce")
	}
	if !ch.Signer.Equal(signer) {
		return errors.Wrap(bounty.ErrUnauthorized, "nonce issued to another signer")
	}
	delete(s.challenges, nonce)
	if s.now().After(ch.ExpiresAt) {
		return errors.Wrap(bounty.ErrUnauthorized, "nonce expired")
	}
	return nil
}

func randomNonce() (string, error) {
	b := make([]byte, 16) // 128-bit nonce
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
