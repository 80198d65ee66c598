package pipeline

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// NewCachedEmbedder wraps an embedder with a bounded expirable LRU
// keyed by model name and exact text. Repeated queries skip the model
// call; index-build batches bypass the cache. Caching is an
// optimization only, never a correctness requirement, so invalid
// parameters return the embedder unwrapped.
func NewCachedEmbedder(next Embedder, size int, ttl time.Duration) Embedder {
	if next == nil || size <= 0 || ttl <= 0 {
		return next
	}
	return &cachedEmbedder{
		next:  next,
		cache: expirable.NewLRU[string, []float32](size, nil, ttl),
	}
}

type cachedEmbedder struct {
	next  Embedder
	cache *expirable.LRU[string, []float32]
}

func (c *cachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	key := c.next.ModelName() + "\x00" + c.next.ModelVersion() + "\x00" + text
	if cached, ok := c.cache.Get(key); ok {
		return cloneVector(cached), nil
	}

	vector, err := c.next.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	c.cache.Add(key, cloneVector(vector))
	return vector, nil
}

func (c *cachedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return c.next.EmbedBatch(ctx, texts)
}

func (c *cachedEmbedder) ModelName() string    { return c.next.ModelName() }
func (c *cachedEmbedder) ModelVersion() string { return c.next.ModelVersion() }
func (c *cachedEmbedder) Dimension() int       { return c.next.Dimension() }

func cloneVector(v []float32) []float32 {
	if len(v) == 0 {
		return nil
	}
	clone := make([]float32, len(v))
	copy(clone, v)
	return clone
}
