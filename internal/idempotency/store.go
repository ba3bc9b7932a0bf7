// Package idempotency replays the stored response of a mutation that is retried with
// the same Idempotency-Key.
package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrInProgress is returned by Begin while another request holds the key.
var ErrInProgress = errors.New("idempotency: request with this key is in progress")

const pending = "pending"

// Response is a stored response.
type Response struct {
	Status      int    `json:"status"`
	ContentType string `json:"contentType"`
	Body        []byte `json:"body"`
}

// Store tracks idempotency keys.
type Store interface {
	// Begin claims key. It returns the stored response when key already completed and
	// ErrInProgress while another request holds it.
	Begin(ctx context.Context, key string) (*Response, error)
	Complete(ctx context.Context, key string, resp *Response) error
	// Release forgets key so that the request can be retried.
	Release(ctx context.Context, key string) error
}

// RedisStore keeps keys under prefix with a TTL.
type RedisStore struct {
	client  redis.UniversalClient
	prefix  string
	ttl     time.Duration
	lockTTL time.Duration
}

// NewRedisStore creates a store. Prefix may be empty.
func NewRedisStore(client redis.UniversalClient, prefix string, ttl time.Duration) *RedisStore {
	if prefix == "" {
		prefix = "idempotency:"
	}
	lockTTL := time.Minute
	if ttl < lockTTL {
		lockTTL = ttl
	}
	return &RedisStore{client: client, prefix: prefix, ttl: ttl, lockTTL: lockTTL}
}

func (s *RedisStore) key(k string) string {
	return s.prefix + k
}

func (s *RedisStore) Begin(ctx context.Context, key string) (*Response, error) {
	claimed, err := s.client.SetNX(ctx, s.key(key), pending, s.lockTTL).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to claim idempotency key: %w", err)
	}
	if claimed {
		return nil, nil
	}

	b, err := s.client.Get(ctx, s.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		// Expired between SETNX and GET.
		return s.Begin(ctx, key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read idempotency key: %w", err)
	}
	if string(b) == pending {
		return nil, ErrInProgress
	}

	var resp Response
	if err := json.Unmarshal(b, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode stored response: %w", err)
	}
	return &resp, nil
}

func (s *RedisStore) Complete(ctx context.Context, key string, resp *Response) error {
	b, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.key(key), b, s.ttl).Err()
}

func (s *RedisStore) Release(ctx context.Context, key string) error {
	return s.client.Del(ctx, s.key(key)).Err()
}
