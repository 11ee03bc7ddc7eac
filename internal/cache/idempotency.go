package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const processingMarker = "PROCESSING"

var ErrRequestInProgress = errors.New("request with this idempotency key is in progress")

// StoredResponse is the first response produced for an idempotency key.
type StoredResponse struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type"`
	Body        []byte `json:"body"`
}

type IdempotencyStore struct {
	client  *redis.Client
	lockTTL time.Duration
	ttl     time.Duration
}

func NewIdempotencyStore(client *redis.Client, lockTTL, ttl time.Duration) *IdempotencyStore {
	return &IdempotencyStore{client: client, lockTTL: lockTTL, ttl: ttl}
}

// Begin claims key for a new request. It returns the stored response when
// the key was already completed, ErrRequestInProgress when another request
// holds it, and (nil, nil) when the caller now owns the key.
func (s *IdempotencyStore) Begin(ctx context.Context, key string) (*StoredResponse, error) {
	acquired, err := s.client.SetNX(ctx, idempotencyKey(key), processingMarker, s.lockTTL).Result()
	if err != nil {
		return nil, err
	}
	if acquired {
		return nil, nil
	}

	val, err := s.client.Get(ctx, idempotencyKey(key)).Result()
	if errors.Is(err, redis.Nil) {
		return s.Begin(ctx, key)
	}
	if err != nil {
		return nil, err
	}
	if val == processingMarker {
		return nil, ErrRequestInProgress
	}

	var stored StoredResponse
	if err := json.Unmarshal([]byte(val), &stored); err != nil {
		return nil, fmt.Errorf("decode stored response: %w", err)
	}
	return &stored, nil
}

func (s *IdempotencyStore) Complete(ctx context.Context, key string, resp StoredResponse) error {
	payload, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, idempotencyKey(key), payload, s.ttl).Err()
}

// Release drops the claim so the request may be retried.
func (s *IdempotencyStore) Release(ctx context.Context, key string) error {
	return s.client.Del(ctx, idempotencyKey(key)).Err()
}

func idempotencyKey(key string) string {
	return "idempotency:" + key
}
