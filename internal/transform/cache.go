package transform

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize is the number of conversions kept by CachedTransformer.
const DefaultCacheSize = 10_000

// CachedTransformer memoizes another Transformer by input text. Extracted
// procedures often share identical query text, so a hit skips the rewrite.
// Failed conversions are not cached.
type CachedTransformer struct {
	inner Transformer
	cache *lru.Cache[string, string]
	hits  atomic.Int64
}

// NewCachedTransformer wraps inner with a cache holding up to capacity entries.
func NewCachedTransformer(inner Transformer, capacity int) (*CachedTransformer, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("invalid cache capacity %d: must be positive", capacity)
	}
	cache, err := lru.New[string, string](capacity)
	if err != nil {
		return nil, fmt.Errorf("failed to create conversion cache: %w", err)
	}
	return &CachedTransformer{inner: inner, cache: cache}, nil
}

// Transform implements Transformer.
func (c *CachedTransformer) Transform(sql string) (string, error) {
	key := cacheKey(sql)
	if out, ok := c.cache.Get(key); ok {
		c.hits.Add(1)
		return out, nil
	}

	out, err := c.inner.Transform(sql)
	if err != nil {
		return "", err
	}
	c.cache.Add(key, out)
	return out, nil
}

// Hits returns the number of cache hits so far.
func (c *CachedTransformer) Hits() int64 {
	return c.hits.Load()
}

// Len returns the number of cached conversions.
func (c *CachedTransformer) Len() int {
	return c.cache.Len()
}

func cacheKey(sql string) string {
	sum := sha256.Sum256([]byte(sql))
	return hex.EncodeToString(sum[:])
}
