package pinterest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/TobiSchelling/PinForge/internal/keywords"
	"github.com/TobiSchelling/PinForge/internal/metrics"
)

// DefaultCacheTTL is how long search results stay cached.
const DefaultCacheTTL = 6 * time.Hour

const keyPrefix = "pinforge:pinterest:"

// ErrEmptyAddress is returned when the redis address is not configured.
var ErrEmptyAddress = errors.New("redis address is required")

var _ keywords.Source = (*Cache)(nil)

// Cache is a redis read-through cache in front of a keywords.Source.
// Redis failures fall through to the source.
type Cache struct {
	next    keywords.Source
	rdb     *redis.Client
	ttl     time.Duration
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// Dial connects to redis and verifies the connection.
func Dial(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	if addr == "" {
		return nil, ErrEmptyAddress
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return rdb, nil
}

// NewCache wraps next. A non-positive ttl uses DefaultCacheTTL.
func NewCache(next keywords.Source, rdb *redis.Client, ttl time.Duration, logger *zap.Logger, m *metrics.Metrics) *Cache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{next: next, rdb: rdb, ttl: ttl, logger: logger, metrics: m}
}

// SearchByKeyword serves cached pins or fetches and caches them.
func (c *Cache) SearchByKeyword(ctx context.Context, term string, limit int) ([]keywords.Pin, error) {
	key := fmt.Sprintf("%ssearch:%d:%s", keyPrefix, limit, strings.ToLower(strings.TrimSpace(term)))

	var pins []keywords.Pin
	if c.lookup(ctx, key, &pins) {
		return pins, nil
	}
	pins, err := c.next.SearchByKeyword(ctx, term, limit)
	if err != nil {
		return nil, err
	}
	c.store(ctx, key, pins)
	return pins, nil
}

// Trending serves cached trends or fetches and caches them.
func (c *Cache) Trending(ctx context.Context, category string) ([]string, error) {
	key := keyPrefix + "trends:" + strings.ToLower(category)

	var terms []string
	if c.lookup(ctx, key, &terms) {
		return terms, nil
	}
	terms, err := c.next.Trending(ctx, category)
	if err != nil {
		return nil, err
	}
	c.store(ctx, key, terms)
	return terms, nil
}

func (c *Cache) lookup(ctx context.Context, key string, out any) bool {
	data, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("Pinterest cache read failed", zap.String("key", key), zap.Error(err))
		}
		c.metrics.CacheLookup(false)
		return false
	}
	if err := json.Unmarshal(data, out); err != nil {
		c.logger.Warn("Dropping corrupt cache entry", zap.String("key", key), zap.Error(err))
		c.rdb.Del(ctx, key)
		c.metrics.CacheLookup(false)
		return false
	}
	c.metrics.CacheLookup(true)
	return true
}

func (c *Cache) store(ctx context.Context, key string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.logger.Warn("Pinterest cache write failed", zap.String("key", key), zap.Error(err))
	}
}
