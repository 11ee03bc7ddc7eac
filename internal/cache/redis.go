package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Domenick1991/skybooking/config"
	"github.com/Domenick1991/skybooking/internal/domain"
	"github.com/redis/go-redis/v9"
)

type RedisCache struct {
	client      *redis.Client
	searchTTL   time.Duration
	airlinesTTL time.Duration
}

func NewRedisCache(cfg config.RedisConfig, searchTTL, airlinesTTL time.Duration) *RedisCache {
	return NewRedisCacheFromClient(
		redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB}),
		searchTTL, airlinesTTL,
	)
}

func NewRedisCacheFromClient(client *redis.Client, searchTTL, airlinesTTL time.Duration) *RedisCache {
	return &RedisCache{client: client, searchTTL: searchTTL, airlinesTTL: airlinesTTL}
}

func (c *RedisCache) Client() *redis.Client {
	return c.client
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

// GetSearch looks up a cached search page under the current flights
// generation. It returns the key it used so that a page loaded after a miss
// is stored under the generation observed before the load. If the flights
// are invalidated in between, that page lands on a key no reader uses.
func (c *RedisCache) GetSearch(ctx context.Context, criteria domain.SearchCriteria) (*domain.SearchResult, string, error) {
	key, err := c.searchKey(ctx, criteria)
	if err != nil {
		return nil, "", err
	}

	var result domain.SearchResult
	found, err := c.getJSON(ctx, key, &result)
	if err != nil {
		return nil, "", err
	}
	if !found {
		return nil, key, nil
	}
	return &result, key, nil
}

// SetSearch stores a page under a key returned by GetSearch.
func (c *RedisCache) SetSearch(ctx context.Context, key string, result *domain.SearchResult) error {
	return c.setJSON(ctx, key, result, c.searchTTL)
}

// InvalidateFlights makes every cached search page unreachable by bumping
// the generation that search keys are derived from. Old pages expire on
// their own TTL.
func (c *RedisCache) InvalidateFlights(ctx context.Context) error {
	return c.client.Incr(ctx, flightsGenerationKey()).Err()
}

func (c *RedisCache) GetAirlines(ctx context.Context) ([]domain.Company, error) {
	var companies []domain.Company
	found, err := c.getJSON(ctx, airlinesKey(), &companies)
	if err != nil || !found {
		return nil, err
	}
	return companies, nil
}

func (c *RedisCache) SetAirlines(ctx context.Context, companies []domain.Company) error {
	return c.setJSON(ctx, airlinesKey(), companies, c.airlinesTTL)
}

func (c *RedisCache) InvalidateAirlines(ctx context.Context) error {
	return c.client.Del(ctx, airlinesKey()).Err()
}

func (c *RedisCache) getJSON(ctx context.Context, key string, dst any) (bool, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return false, err
	}
	return true, nil
}

func (c *RedisCache) setJSON(ctx context.Context, key string, v any, ttl time.Duration) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, payload, ttl).Err()
}

func (c *RedisCache) searchKey(ctx context.Context, criteria domain.SearchCriteria) (string, error) {
	gen, err := c.client.Get(ctx, flightsGenerationKey()).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return "", err
	}
	return searchKey(gen, criteria)
}

func searchKey(generation int64, criteria domain.SearchCriteria) (string, error) {
	payload, err := json.Marshal(criteria)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(payload)
	return fmt.Sprintf("cache:flights:search:%d:%s", generation, hex.EncodeToString(sum[:16])), nil
}

func flightsGenerationKey() string {
	return "cache:flights:generation"
}

func airlinesKey() string {
	return "cache:airlines"
}
