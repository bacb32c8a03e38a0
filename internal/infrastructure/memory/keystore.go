package memory

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/go-shop-api/internal/domain"
)

type entry struct {
	value     []byte
	expiresAt time.Time
	attempts  int
}

// KeyStore is a process-local key store with lazy expiry. It backs tests and
// single-instance development setups; entries vanish on restart.
type KeyStore struct {
	mu      sync.Mutex
	entries map[string]entry
	ttl     time.Duration
	now     func() time.Time
}

// Option configures a KeyStore.
type Option func(*KeyStore)

// WithClock replaces time.Now, letting tests move past the TTL.
func WithClock(now func() time.Time) Option {
	return func(s *KeyStore) { s.now = now }
}

func NewKeyStore(ttl time.Duration, opts ...Option) *KeyStore {
	s := &KeyStore{entries: make(map[string]entry), ttl: ttl, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *KeyStore) Save(_ context.Context, subjectID string, purpose domain.Purpose, value string) error {
	b, err := json.Marshal(value)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[domain.KeyFor(subjectID, purpose)] = entry{value: b, expiresAt: s.now().Add(s.ttl)}
	return nil
}

func (s *KeyStore) Get(_ context.Context, subjectID string, purpose domain.Purpose) (string, bool, error) {
	key := domain.KeyFor(subjectID, purpose)
	s.mu.Lock()
	e, ok := s.entries[key]
	if ok && !s.now().Before(e.expiresAt) {
		delete(s.entries, key)
		ok = false
	}
	s.mu.Unlock()
	if !ok {
		return "", false, nil
	}
	var v string
	if err := json.Unmarshal(e.value, &v); err != nil {
		return "", false, err
	}
	return v, true, nil
}

// Fail bumps the wrong-guess counter of a live entry.
func (s *KeyStore) Fail(_ context.Context, subjectID string, purpose domain.Purpose) (int, error) {
	key := domain.KeyFor(subjectID, purpose)
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok || !s.now().Before(e.expiresAt) {
		return 0, nil
	}
	e.attempts++
	s.entries[key] = e
	return e.attempts, nil
}

func (s *KeyStore) Delete(_ context.Context, subjectID string, purpose domain.Purpose) error {
	s.mu.Lock()
	delete(s.entries, domain.KeyFor(subjectID, purpose))
	s.mu.Unlock()
	return nil
}

// Raw returns the encoded value stored under key, ignoring expiry.
func (s *KeyStore) Raw(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	return string(e.value), ok
}
