package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/Domenick1991/skybooking/internal/domain"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Tests in this file need a disposable Redis: TEST_REDIS_ADDR=localhost:6379.
// The selected database is flushed before each test.
func setupRedis(t *testing.T) *redis.Client {
	t.Helper()
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR is not set")
	}

	client := redis.NewClient(&redis.Options{Addr: addr, DB: 15})
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, client.FlushDB(context.Background()).Err())
	return client
}

func searchPage(seats int) *domain.SearchResult {
	return &domain.SearchResult{
		Flights: []domain.Flight{{ID: 5, Number: "SA100", Origin: "Moscow", Destination: "Kazan", SeatsAvailable: seats}},
		Total:   1,
	}
}

func TestRedisCache_SearchRoundTrip(t *testing.T) {
	c := NewRedisCacheFromClient(setupRedis(t), time.Minute, time.Minute)
	ctx := context.Background()
	criteria := domain.SearchCriteria{Origin: "Moscow", Passengers: 2, SortBy: domain.SortPriceAsc, Limit: 50}

	page, key, err := c.GetSearch(ctx, criteria)
	require.NoError(t, err)
	assert.Nil(t, page)
	require.NotEmpty(t, key)

	require.NoError(t, c.SetSearch(ctx, key, searchPage(3)))

	page, hitKey, err := c.GetSearch(ctx, criteria)
	require.NoError(t, err)
	require.NotNil(t, page)
	assert.Equal(t, key, hitKey)
	assert.Equal(t, 1, page.Total)
	assert.Equal(t, int64(5), page.Flights[0].ID)
	assert.Equal(t, 3, page.Flights[0].SeatsAvailable)

	ttl, err := c.Client().TTL(ctx, key).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
}

func TestRedisCache_InvalidateFlightsHidesCachedPages(t *testing.T) {
	c := NewRedisCacheFromClient(setupRedis(t), time.Minute, time.Minute)
	ctx := context.Background()
	criteria := domain.SearchCriteria{Passengers: 1, SortBy: domain.SortDepartTime, Limit: 50}

	_, key, err := c.GetSearch(ctx, criteria)
	require.NoError(t, err)
	require.NoError(t, c.SetSearch(ctx, key, searchPage(3)))

	require.NoError(t, c.InvalidateFlights(ctx))

	page, newKey, err := c.GetSearch(ctx, criteria)
	require.NoError(t, err)
	assert.Nil(t, page)
	assert.NotEqual(t, key, newKey)
}

// A page loaded before an invalidation must not become visible once it is
// written back after the invalidation.
func TestRedisCache_PageLoadedBeforeInvalidationStaysHidden(t *testing.T) {
	c := NewRedisCacheFromClient(setupRedis(t), time.Minute, time.Minute)
	ctx := context.Background()
	criteria := domain.SearchCriteria{Destination: "Kazan", Passengers: 1, SortBy: domain.SortPriceAsc, Limit: 50}

	page, key, err := c.GetSearch(ctx, criteria)
	require.NoError(t, err)
	require.Nil(t, page)

	// A purchase commits while the search is still reading the database.
	require.NoError(t, c.InvalidateFlights(ctx))
	require.NoError(t, c.SetSearch(ctx, key, searchPage(1)))

	page, _, err = c.GetSearch(ctx, criteria)
	require.NoError(t, err)
	assert.Nil(t, page, "page read before the invalidation was served")
}

func TestRedisCache_Airlines(t *testing.T) {
	c := NewRedisCacheFromClient(setupRedis(t), time.Minute, time.Minute)
	ctx := context.Background()

	companies, err := c.GetAirlines(ctx)
	require.NoError(t, err)
	assert.Nil(t, companies)

	require.NoError(t, c.SetAirlines(ctx, []domain.Company{{ID: 1, Name: "Sky Air", Code: "SKY", IsActive: true}}))
	companies, err = c.GetAirlines(ctx)
	require.NoError(t, err)
	require.Len(t, companies, 1)
	assert.Equal(t, "SKY", companies[0].Code)

	require.NoError(t, c.InvalidateAirlines(ctx))
	companies, err = c.GetAirlines(ctx)
	require.NoError(t, err)
	assert.Nil(t, companies)
}

func TestIdempotencyStore_Lifecycle(t *testing.T) {
	client := setupRedis(t)
	store := NewIdempotencyStore(client, time.Minute, time.Hour)
	ctx := context.Background()
	key := "10:/api/flights/:id/tickets:abc"

	stored, err := store.Begin(ctx, key)
	require.NoError(t, err)
	assert.Nil(t, stored, "first request owns the key")

	_, err = store.Begin(ctx, key)
	assert.ErrorIs(t, err, ErrRequestInProgress)

	resp := StoredResponse{Status: 201, ContentType: "application/json", Body: []byte(`{"id":1}`)}
	require.NoError(t, store.Complete(ctx, key, resp))

	stored, err = store.Begin(ctx, key)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, resp, *stored)

	ttl, err := client.TTL(ctx, idempotencyKey(key)).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Minute, "completed responses outlive the lock")
}

func TestIdempotencyStore_ReleaseAllowsRetry(t *testing.T) {
	store := NewIdempotencyStore(setupRedis(t), time.Minute, time.Hour)
	ctx := context.Background()

	_, err := store.Begin(ctx, "k")
	require.NoError(t, err)
	require.NoError(t, store.Release(ctx, "k"))

	stored, err := store.Begin(ctx, "k")
	require.NoError(t, err)
	assert.Nil(t, stored)
}

func TestIdempotencyStore_CorruptEntry(t *testing.T) {
	client := setupRedis(t)
	store := NewIdempotencyStore(client, time.Minute, time.Hour)
	ctx := context.Background()
	require.NoError(t, client.Set(ctx, idempotencyKey("k"), "{not json", time.Minute).Err())

	_, err := store.Begin(ctx, "k")
	assert.ErrorContains(t, err, "decode stored response")
}

// releaseAfterFirstSet deletes key right after the first SET the client sends,
// as if the holder released it between SetNX and Get.
type releaseAfterFirstSet struct {
	other *redis.Client
	key   string
	fired bool
}

func (h *releaseAfterFirstSet) DialHook(next redis.DialHook) redis.DialHook { return next }

func (h *releaseAfterFirstSet) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		err := next(ctx, cmd)
		if !h.fired && cmd.Name() == "set" {
			h.fired = true
			h.other.Del(ctx, h.key)
		}
		return err
	}
}

func (h *releaseAfterFirstSet) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return next
}

func TestIdempotencyStore_KeyReleasedDuringBegin(t *testing.T) {
	other := setupRedis(t)
	ctx := context.Background()
	require.NoError(t, other.Set(ctx, idempotencyKey("k"), processingMarker, time.Minute).Err())

	client := redis.NewClient(&redis.Options{Addr: other.Options().Addr, DB: other.Options().DB})
	t.Cleanup(func() { _ = client.Close() })
	hook := &releaseAfterFirstSet{other: other, key: idempotencyKey("k")}
	client.AddHook(hook)
	store := NewIdempotencyStore(client, time.Minute, time.Hour)

	stored, err := store.Begin(ctx, "k")

	require.NoError(t, err)
	assert.Nil(t, stored, "caller claims the key after the holder released it")
	assert.True(t, hook.fired)
	val, err := other.Get(ctx, idempotencyKey("k")).Result()
	require.NoError(t, err)
	assert.Equal(t, processingMarker, val)
}
