// Package cache provides a response cache placed in front of worker model
// calls. Identical prompts for the same role and model are served from the
// cache instead of burning model quota.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"
)

// ErrMiss is returned by Get when the key is absent or expired.
var ErrMiss = errors.New("cache miss")

// Cache stores model responses under content-derived keys with a TTL.
type Cache interface {
	// Get returns the cached value or ErrMiss.
	Get(ctx context.Context, key string) (string, error)

	// Set stores value under key for ttl. A non-positive ttl means no expiry.
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

// Key derives a stable cache key from the worker role, model id and prompt.
func Key(role, model, prompt string) string {
	h := sha256.Sum256([]byte(role + "\x00" + model + "\x00" + prompt))
	return "coderlang:resp:" + hex.EncodeToString(h[:])
}
