package sources

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"inventory-reconciliation-service/internal/models"
	"inventory-reconciliation-service/pkg/logger"
)

const cacheNamespace = "recon:rows"

// RowStore is the key-value surface the row cache needs.
type RowStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
}

// ErrCacheMiss is returned by RowStore.Get when key is absent.
var ErrCacheMiss = errors.New("cache miss")

type cmdable interface {
	Ping(context.Context) *redis.StatusCmd
	Get(context.Context, string) *redis.StringCmd
	Set(context.Context, string, any, time.Duration) *redis.StatusCmd
}

// RedisStore is a RowStore backed by Redis.
type RedisStore struct {
	store cmdable
	raw   *redis.Client
}

// NewRedisStore connects to the Redis instance at redisURL and verifies
// connectivity.
func NewRedisStore(ctx context.Context, redisURL string) (*RedisStore, error) {
	if redisURL == "" {
		return nil, errors.New("redis url is required")
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	if opts.DialTimeout == 0 {
		opts.DialTimeout = 2 * time.Second
	}
	if opts.ReadTimeout == 0 {
		opts.ReadTimeout = time.Second
	}

	raw := redis.NewClient(opts)
	if err := raw.Ping(ctx).Err(); err != nil {
		raw.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &RedisStore{store: raw, raw: raw}, nil
}

// Get returns the value stored at key, or ErrCacheMiss.
func (s *RedisStore) Get(ctx context.Context, key string) (string, error) {
	value, err := s.store.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrCacheMiss
	}
	return value, err
}

// Set stores value at key with ttl.
func (s *RedisStore) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	return s.store.Set(ctx, key, value, ttl).Err()
}

// Ping checks connectivity.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.store.Ping(ctx).Err()
}

// Close releases the connection pool.
func (s *RedisStore) Close() error {
	if s.raw == nil {
		return nil
	}
	return s.raw.Close()
}

// CacheKey builds the key of one source's row set for filter.
func CacheKey(source models.SourceName, filter FetchFilter) string {
	search := url.QueryEscape(strings.ToLower(strings.TrimSpace(filter.Search)))
	return fmt.Sprintf("%s:%s:%s:%s", cacheNamespace, source, filter.Window.Key(), search)
}

// CachedSourceA is a read-through cache in front of a SourceAFetcher. Cache
// failures fall through to the wrapped fetcher.
type CachedSourceA struct {
	next   SourceAFetcher
	store  RowStore
	ttl    time.Duration
	logger logger.Logger
}

// NewCachedSourceA wraps next with store.
func NewCachedSourceA(next SourceAFetcher, store RowStore, ttl time.Duration) *CachedSourceA {
	return &CachedSourceA{
		next:   next,
		store:  store,
		ttl:    ttl,
		logger: logger.GetGlobalLogger().WithComponent("row_cache"),
	}
}

// FetchSourceA implements SourceAFetcher
func (c *CachedSourceA) FetchSourceA(ctx context.Context, filter FetchFilter) ([]models.SourceARow, error) {
	return readThrough(ctx, c.store, c.ttl, c.logger, CacheKey(models.SourceA, filter), func() ([]models.SourceARow, error) {
		return c.next.FetchSourceA(ctx, filter)
	})
}

// CachedSourceB is a read-through cache in front of a SourceBFetcher.
type CachedSourceB struct {
	next   SourceBFetcher
	store  RowStore
	ttl    time.Duration
	logger logger.Logger
}

// NewCachedSourceB wraps next with store.
func NewCachedSourceB(next SourceBFetcher, store RowStore, ttl time.Duration) *CachedSourceB {
	return &CachedSourceB{
		next:   next,
		store:  store,
		ttl:    ttl,
		logger: logger.GetGlobalLogger().WithComponent("row_cache"),
	}
}

// FetchSourceB implements SourceBFetcher
func (c *CachedSourceB) FetchSourceB(ctx context.Context, filter FetchFilter) ([]models.SourceBRow, error) {
	return readThrough(ctx, c.store, c.ttl, c.logger, CacheKey(models.SourceB, filter), func() ([]models.SourceBRow, error) {
		return c.next.FetchSourceB(ctx, filter)
	})
}

func readThrough[T any](ctx context.Context, store RowStore, ttl time.Duration, log logger.Logger, key string, fetch func() ([]T, error)) ([]T, error) {
	log = log.WithField("cache_key", key)

	cached, err := store.Get(ctx, key)
	switch {
	case err == nil:
		var rows []T
		jsonErr := json.Unmarshal([]byte(cached), &rows)
		if jsonErr == nil {
			log.WithField("rows", len(rows)).Debug("Row cache hit")
			return rows, nil
		}
		log.WithError(jsonErr).Warn("Discarding undecodable cached rows")
	case errors.Is(err, ErrCacheMiss):
		log.Debug("Row cache miss")
	default:
		log.WithError(err).Warn("Row cache read failed")
	}

	rows, err := fetch()
	if err != nil {
		return nil, err
	}

	encoded, err := json.Marshal(rows)
	if err != nil {
		log.WithError(err).Warn("Failed to encode rows for cache")
		return rows, nil
	}
	if err := store.Set(ctx, key, string(encoded), ttl); err != nil {
		log.WithError(err).Warn("Row cache write failed")
	}

	return rows, nil
}
