package redisclient

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"intake-service/internal/models"

	"github.com/go-redis/redis/v8"
)

const (
	catalogKeyPrefix = "catalog:"
	seenKeyPrefix    = "email:seen:"
	lockKeyPrefix    = "lock:"

	// seenTTL is how long a content hash blocks re-delivery of the same
	// email. Vendor mail systems retry within hours, not weeks.
	seenTTL = 72 * time.Hour
)

type Client struct {
	rdb *redis.Client
}

// NewClient creates a new Redis client
func NewClient(addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{rdb: rdb}, nil
}

// GetClient returns the underlying Redis client
func (c *Client) GetClient() *redis.Client {
	return c.rdb
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// CatalogKey builds the cache key for a catalog entry. The vendor always
// comes from the detection result threaded through the pipeline, so two
// vendors with the same brand/model never collide.
func CatalogKey(vendor, brand, model, color, size string) string {
	parts := []string{vendor, brand, model, color}
	if size != "" {
		parts = append(parts, size)
	}
	for i, p := range parts {
		parts[i] = strings.ToLower(strings.TrimSpace(p))
	}
	return catalogKeyPrefix + strings.Join(parts, ":")
}

// GetCatalogEntry reads a cached catalog entry. Returns (nil, nil) on a
// cache miss.
func (c *Client) GetCatalogEntry(ctx context.Context, key string) (*models.CatalogEntry, error) {
	data, err := c.rdb.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("catalog cache read failed: %w", err)
	}

	var entry models.CatalogEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("catalog cache entry corrupt: %w", err)
	}
	return &entry, nil
}

// SetCatalogEntry stores a catalog entry with no expiry; entries are
// invalidated manually.
func (c *Client) SetCatalogEntry(ctx context.Context, key string, entry *models.CatalogEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal catalog entry: %w", err)
	}
	return c.rdb.Set(ctx, key, data, 0).Err()
}

// InvalidateCatalogPrefix removes a cached entry and all of its size
// variants. SCAN keeps this safe on a shared Redis; catalog keyspaces are
// small enough that the walk is cheap.
func (c *Client) InvalidateCatalogPrefix(ctx context.Context, key string) error {
	var cursor uint64
	for {
		keys, next, err := c.rdb.Scan(ctx, cursor, key+"*", 100).Result()
		if err != nil {
			return fmt.Errorf("catalog key scan failed: %w", err)
		}
		if len(keys) > 0 {
			if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
				return err
			}
		}
		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}

// IsNewEmail marks a content hash as seen and reports whether it was new.
// SETNX keeps the check-and-mark atomic under concurrent deliveries.
func (c *Client) IsNewEmail(ctx context.Context, contentHash string) (bool, error) {
	set, err := c.rdb.SetNX(ctx, seenKeyPrefix+contentHash, 1, seenTTL).Result()
	if err != nil {
		return false, fmt.Errorf("email dedup SETNX failed: %w", err)
	}
	return set, nil
}

// ForgetEmail clears a seen-hash, used when an email row is deleted so the
// same message can be re-submitted deliberately.
func (c *Client) ForgetEmail(ctx context.Context, contentHash string) error {
	return c.rdb.Del(ctx, seenKeyPrefix+contentHash).Err()
}

// AcquireLock acquires a distributed lock
func (c *Client) AcquireLock(ctx context.Context, lockKey string, ttl time.Duration) (bool, error) {
	return c.rdb.SetNX(ctx, lockKeyPrefix+lockKey, "1", ttl).Result()
}

// ReleaseLock releases a distributed lock
func (c *Client) ReleaseLock(ctx context.Context, lockKey string) error {
	return c.rdb.Del(ctx, lockKeyPrefix+lockKey).Err()
}
