package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-shop-api/internal/domain"
	goredis "github.com/redis/go-redis/v9"
)

// KeyStore keeps confirmation keys in Redis under user:<id>:key:<purpose>.
// Values are JSON-encoded strings; Redis enforces the TTL. Wrong guesses are
// counted under the same key with an ":attempts" suffix.
type KeyStore struct {
	client goredis.Cmdable
	ttl    time.Duration
}

func NewKeyStore(client goredis.Cmdable, ttl time.Duration) *KeyStore {
	return &KeyStore{client: client, ttl: ttl}
}

// Save overwrites any existing value and resets its expiry.
func (s *KeyStore) Save(ctx context.Context, subjectID string, purpose domain.Purpose, value string) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode key value: %w", err)
	}
	_, err = s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Set(ctx, domain.KeyFor(subjectID, purpose), payload, s.ttl)
		pipe.Del(ctx, attemptsKey(subjectID, purpose))
		return nil
	})
	if err != nil {
		return fmt.Errorf("save key: %w", err)
	}
	return nil
}

func (s *KeyStore) Get(ctx context.Context, subjectID string, purpose domain.Purpose) (string, bool, error) {
	data, err := s.client.Get(ctx, domain.KeyFor(subjectID, purpose)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("get key: %w", err)
	}
	var v string
	if err := json.Unmarshal(data, &v); err != nil {
		return "", false, fmt.Errorf("decode key value: %w", err)
	}
	return v, true, nil
}

func (s *KeyStore) Delete(ctx context.Context, subjectID string, purpose domain.Purpose) error {
	if err := s.client.Del(ctx, domain.KeyFor(subjectID, purpose), attemptsKey(subjectID, purpose)).Err(); err != nil {
		return fmt.Errorf("delete key: %w", err)
	}
	return nil
}

// Fail increments the attempt counter of a live key. The counter expires
// together with the key it guards.
func (s *KeyStore) Fail(ctx context.Context, subjectID string, purpose domain.Purpose) (int, error) {
	remaining, err := s.client.PTTL(ctx, domain.KeyFor(subjectID, purpose)).Result()
	if err != nil {
		return 0, fmt.Errorf("read key ttl: %w", err)
	}
	if remaining <= 0 {
		return 0, nil
	}
	counter := attemptsKey(subjectID, purpose)
	var incr *goredis.IntCmd
	_, err = s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		incr = pipe.Incr(ctx, counter)
		pipe.PExpire(ctx, counter, remaining)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("count attempt: %w", err)
	}
	return int(incr.Val()), nil
}

func attemptsKey(subjectID string, purpose domain.Purpose) string {
	return domain.KeyFor(subjectID, purpose) + ":attempts"
}
