// Package cache is the advisory read cache in front of the order store.
// Values are opaque bytes; callers encode with GetJSON and SetJSON.
package cache

import (
	"context"
	"encoding/json"
	"time"
)

const (
	OrderTTL   = 5 * time.Minute
	CatalogTTL = time.Hour
)

type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Delete drops keys and bumps their versions.
	Delete(ctx context.Context, keys ...string) error
	// Version returns key's invalidation counter.
	Version(ctx context.Context, key string) (uint64, error)
	// SetIfVersion stores value only while key is still at version, so a
	// fill that raced an invalidation is discarded.
	SetIfVersion(ctx context.Context, key string, version uint64, value []byte, ttl time.Duration) (bool, error)
	HashGet(ctx context.Context, key, field string) ([]byte, bool, error)
	HashSet(ctx context.Context, key, field string, value []byte, ttl time.Duration) error
}

func OrderKey(orderID string) string     { return "order:" + orderID }
func OrdersKey(customerID string) string { return "orders:" + customerID }
func CartKey(userID string) string       { return "cart:" + userID }
func ProductKey(productID string) string { return "product:" + productID }

// GetJSON decodes the value at key into dst. A value that fails to decode
// is reported as a miss.
func GetJSON(ctx context.Context, c Cache, key string, dst any) (bool, error) {
	raw, ok, err := c.Get(ctx, key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return false, nil
	}
	return true, nil
}

func SetJSON(ctx context.Context, c Cache, key string, v any, ttl time.Duration) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.Set(ctx, key, raw, ttl)
}

// SetJSONIfVersion encodes v and stores it with SetIfVersion.
func SetJSONIfVersion(ctx context.Context, c Cache, key string, version uint64, v any, ttl time.Duration) (bool, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return false, err
	}
	return c.SetIfVersion(ctx, key, version, raw, ttl)
}
