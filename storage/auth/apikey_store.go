package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"
	"sync"
	"time"
)

// APIKey is an operator credential for admin routes.
type APIKey struct {
	Key       string    `json:"key,omitempty"`
	Label     string    `json:"label,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	Source    string    `json:"source,omitempty"` // e.g. "env", "cli"
}

// APIKeyValidator defines the minimal interface required by auth middleware.
type APIKeyValidator interface {
	Validate(key string) bool
	Get(key string) (APIKey, bool)
}

// APIKeyIssuer allows creating new API keys.
type APIKeyIssuer interface {
	Issue(label, source string) (APIKey, error)
}

// APIKeyStore keeps API keys in memory, indexed by their hash.
type APIKeyStore struct {
	mu   sync.RWMutex
	keys map[string]APIKey
}

func NewAPIKeyStore() *APIKeyStore {
	return &APIKeyStore{keys: make(map[string]APIKey)}
}

// Seed adds a pre-existing key (e.g., from env).
func (s *APIKeyStore) Seed(key, label, source string) {
	if strings.TrimSpace(key) == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys[hashKey(key)] = APIKey{Label: label, Source: source, CreatedAt: time.Now()}
}

func (s *APIKeyStore) Validate(key string) bool {
	_, ok := s.Get(key)
	return ok
}

// Get returns the stored record for a key. The secret itself is never kept.
func (s *APIKeyStore) Get(key string) (APIKey, bool) {
	if key == "" {
		return APIKey{}, false
	}
	want := hashKey(key)
	s.mu.RLock()
	defer s.mu.RUnlock()
	for h, rec := range s.keys {
		if subtle.ConstantTimeCompare([]byte(h), []byte(want)) == 1 {
			return rec, true
		}
	}
	return APIKey{}, false
}

// Issue creates and stores a new API key; the returned record is the only
// place the plain key appears.
func (s *APIKeyStore) Issue(label, source string) (APIKey, error) {
	key, err := generateKey()
	if err != nil {
		return APIKey{}, err
	}
	rec := APIKey{Label: label, Source: source, CreatedAt: time.Now()}
	s.mu.Lock()
	s.keys[hashKey(key)] = rec
	s.mu.Unlock()
	rec.Key = key
	return rec, nil
}

func hashKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

func generateKey() (string, error) {
	b := make([]byte, 32) // 256-bit key
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
