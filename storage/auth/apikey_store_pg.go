package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"
)

// PGAPIKeyStore persists API key hashes in Postgres.
type PGAPIKeyStore struct {
	pool *pgxpool.Pool
}

// NewPGAPIKeyStore shares an existing pool and initializes its table.
func NewPGAPIKeyStore(ctx context.Context, pool *pgxpool.Pool) (*PGAPIKeyStore, error) {
	s := &PGAPIKeyStore{pool: pool}
	if err := s.initSchema(ctx); err != nil {
		return nil, fmt.Errorf("init api key schema: %w", err)
	}
	return s, nil
}

func (s *PGAPIKeyStore) initSchema(ctx context.Context) error {
	const schema = `
CREATE TABLE IF NOT EXISTS api_keys (
  key_hash TEXT PRIMARY KEY,
  label TEXT,
  source TEXT,
  created_at TIMESTAMPTZ DEFAULT now()
);
`
	_, err := s.pool.Exec(ctx, schema)
	return err
}

func (s *PGAPIKeyStore) Validate(key string) bool {
	_, ok := s.Get(key)
	return ok
}

func (s *PGAPIKeyStore) Get(key string) (APIKey, bool) {
	if key == "" {
		return APIKey{}, false
	}
	var rec APIKey
	err := s.pool.QueryRow(context.Background(),
		"SELECT COALESCE(label, ''), COALESCE(source, ''), created_at FROM api_keys WHERE key_hash=$1",
		hashKey(key),
	).Scan(&rec.Label, &rec.Source, &rec.CreatedAt)
	if err != nil {
		return APIKey{}, false
	}
	return rec, true
}

func (s *PGAPIKeyStore) Issue(label, source string) (APIKey, error) {
	key, err := generateKey()
	if err != nil {
		return APIKey{}, err
	}
	rec := APIKey{Key: key, Label: label, Source: source, CreatedAt: time.Now()}
	_, err = s.pool.Exec(context.Background(),
		"INSERT INTO api_keys (key_hash, label, source, created_at) VALUES ($1,$2,$3,$4)",
		hashKey(key), rec.Label, rec.Source, rec.CreatedAt)
	if err != nil {
		return APIKey{}, err
	}
	return rec, nil
}

// Seed inserts a provided key if not empty.
func (s *PGAPIKeyStore) Seed(key, label, source string) {
	if key == "" {
		return
	}
	_, err := s.pool.Exec(context.Background(),
		"INSERT INTO api_keys (key_hash, label, source, created_at) VALUES ($1,$2,$3,$4) ON CONFLICT DO NOTHING",
		hashKey(key), label, source, time.Now())
	if err != nil {
		log.Warnf("seed api key %q: %v", label, err)
	}
}
