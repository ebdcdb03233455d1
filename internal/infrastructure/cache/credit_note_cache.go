package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/crm/backend/internal/domain/fiscal"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// defaultCreditNoteTTL bounds staleness of the merged credit-note view
// between invalidations
const defaultCreditNoteTTL = 10 * time.Minute

// RedisCreditNoteCache caches the merged credit-note read view per tenant
// in Redis. The view is cheap to rebuild, so entries carry a TTL and are
// dropped eagerly whenever a credit note or document changes.
type RedisCreditNoteCache struct {
	client     *redis.Client
	ownsClient bool // true if we created the client and should close it
	ttl        time.Duration
	logger     *zap.Logger
}

// RedisCreditNoteCacheOption is a functional option for configuring the cache
type RedisCreditNoteCacheOption func(*RedisCreditNoteCache)

// WithCreditNoteTTL sets the entry time-to-live
func WithCreditNoteTTL(ttl time.Duration) RedisCreditNoteCacheOption {
	return func(c *RedisCreditNoteCache) {
		c.ttl = ttl
	}
}

// WithCreditNoteCacheLogger sets the logger for the cache
func WithCreditNoteCacheLogger(logger *zap.Logger) RedisCreditNoteCacheOption {
	return func(c *RedisCreditNoteCache) {
		c.logger = logger
	}
}

// NewRedisCreditNoteCache creates a new Redis-based credit note cache
func NewRedisCreditNoteCache(cfg RedisConfig, opts ...RedisCreditNoteCacheOption) (*RedisCreditNoteCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	cache := &RedisCreditNoteCache{
		client:     client,
		ownsClient: true, // We created this client, so we own it
		ttl:        defaultCreditNoteTTL,
		logger:     zap.NewNop(),
	}

	for _, opt := range opts {
		opt(cache)
	}

	return cache, nil
}

// NewRedisCreditNoteCacheWithClient creates a cache with an existing Redis client
// Note: The caller retains ownership of the client and is responsible for closing it
func NewRedisCreditNoteCacheWithClient(client *redis.Client, opts ...RedisCreditNoteCacheOption) *RedisCreditNoteCache {
	cache := &RedisCreditNoteCache{
		client:     client,
		ownsClient: false, // Client is shared, don't close it
		ttl:        defaultCreditNoteTTL,
		logger:     zap.NewNop(),
	}

	for _, opt := range opts {
		opt(cache)
	}

	return cache
}

// cacheKey generates the cache key for a tenant's credit note view
func (c *RedisCreditNoteCache) cacheKey(tenantID uuid.UUID) string {
	return fmt.Sprintf("fiscal:credit_notes:%s", tenantID.String())
}

// Get retrieves the cached credit note view for a tenant. The second
// return value reports whether the cache held an entry.
func (c *RedisCreditNoteCache) Get(ctx context.Context, tenantID uuid.UUID) ([]fiscal.CreditNoteRecord, bool, error) {
	data, err := c.client.Get(ctx, c.cacheKey(tenantID)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get credit notes from cache: %w", err)
	}

	var records []fiscal.CreditNoteRecord
	if err := json.Unmarshal(data, &records); err != nil {
		c.logger.Warn("Dropping unreadable credit note cache entry",
			zap.String("tenant_id", tenantID.String()),
			zap.Error(err))
		c.client.Del(ctx, c.cacheKey(tenantID))
		return nil, false, nil
	}
	return records, true, nil
}

// Set stores the credit note view for a tenant
func (c *RedisCreditNoteCache) Set(ctx context.Context, tenantID uuid.UUID, records []fiscal.CreditNoteRecord) error {
	data, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("failed to marshal credit notes: %w", err)
	}
	if err := c.client.Set(ctx, c.cacheKey(tenantID), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache credit notes: %w", err)
	}
	return nil
}

// Invalidate drops the tenant's cached view
func (c *RedisCreditNoteCache) Invalidate(ctx context.Context, tenantID uuid.UUID) error {
	if err := c.client.Del(ctx, c.cacheKey(tenantID)).Err(); err != nil {
		return fmt.Errorf("failed to invalidate credit note cache: %w", err)
	}
	return nil
}

// Close closes the Redis client if this cache owns it
func (c *RedisCreditNoteCache) Close() error {
	if c.ownsClient {
		return c.client.Close()
	}
	return nil
}
