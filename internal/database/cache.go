package database

import (
	"context"
	"encoding/json"
	"time"
)

const (
	// Cache key prefixes
	CacheKeyPricingTiers = "licensedesk:tiers:active"
	tokenBlacklistPrefix = "licensedesk:blacklist:"

	// Cache TTLs
	CacheTTLPricingTiers = 2 * time.Minute
)

// CacheGet retrieves a value from Redis cache and unmarshals it into dest
func (d *DB) CacheGet(key string, dest interface{}) error {
	ctx := context.Background()
	data, err := d.Redis.Get(ctx, key).Bytes()
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dest)
}

// CacheSet stores a value in Redis cache with TTL
func (d *DB) CacheSet(key string, value interface{}, ttl time.Duration) error {
	ctx := context.Background()
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return d.Redis.Set(ctx, key, data, ttl).Err()
}

// CacheDelete removes keys from Redis cache
func (d *DB) CacheDelete(keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	ctx := context.Background()
	return d.Redis.Del(ctx, keys...).Err()
}

// InvalidateTierCache clears the pricing tier cache after admin edits
func (d *DB) InvalidateTierCache() {
	if d.Redis == nil {
		return
	}
	d.CacheDelete(CacheKeyPricingTiers)
}

// BlacklistToken marks a JWT as revoked until it would have expired anyway
func (d *DB) BlacklistToken(token string, ttl time.Duration) error {
	if d.Redis == nil {
		return nil
	}
	ctx := context.Background()
	return d.Redis.Set(ctx, tokenBlacklistPrefix+token, "1", ttl).Err()
}

// IsTokenBlacklisted reports whether a JWT was revoked by logout
func (d *DB) IsTokenBlacklisted(token string) bool {
	if d.Redis == nil {
		return false
	}
	ctx := context.Background()
	n, err := d.Redis.Exists(ctx, tokenBlacklistPrefix+token).Result()
	return err == nil && n > 0
}
