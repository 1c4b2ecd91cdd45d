package auth

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"bounty-backend/core/bounty"
	"bounty-backend/core/pda"
)

// RedisChallengeStore shares challenges between replicas. Expiry is left to
// Redis key TTLs and redemption uses GETDEL, so a nonce is consumed once
// cluster-wide.
type RedisChallengeStore struct {
	client redis.UniversalClient
	ttl    time.Duration
	prefix string
}

func NewRedisChallengeStore(client redis.UniversalClient, ttl time.Duration) *RedisChallengeStore {
	if ttl <= 0 {
		ttl = DefaultChallengeTTL
	}
	return &RedisChallengeStore{client: client, ttl: ttl, prefix: "bounty:challenge:"}
}

func (s *RedisChallengeStore) Issue(ctx context.Context, signer pda.Address) (Challenge, error) {
	nonce, err := randomNonce()
	if err != nil {
		return Challenge{}, err
	}
	now := time.Now()
	ch := Challenge{Nonce: nonce, Signer: signer, CreatedAt: now, ExpiresAt: now.Add(s.ttl)}
	if err := s.client.Set(ctx, s.prefix+nonce, signer.String(), s.ttl).Err(); err != nil {
		return Challenge{}, errors.Wrap(err, "store challenge")
	}
	return ch, nil
}

func (s *RedisChallengeStore) Consume(ctx context.Context, signer pda.Address, nonce string) error {
	owner, err := s.client.GetDel(ctx, s.prefix+nonce).Result()
	if errors.Is(err, redis.Nil) {
		return errors.Wrap(bounty.ErrUnauthorized, "unknown, used or expired nonce")
	}
	if err != nil {
		return errors.Wrap(err, "redeem challenge")
	}
	if owner != signer.String() {
		return errors.Wrap(bounty.ErrUnauthorized, "nonce issued to another signer")
	}
	return nil
}
