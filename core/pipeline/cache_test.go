package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingEmbedder wraps an embedder and counts model calls.
type countingEmbedder struct {
	Embedder
	calls int
}

func (c *countingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	c.calls++
	return c.Embedder.Embed(ctx, text)
}

func TestCachedEmbedder(t *testing.T) {
	ctx := context.Background()

	t.Run("Repeated query skips the model call", func(t *testing.T) {
		counting := &countingEmbedder{Embedder: NewWordHashEmbedder(16)}
		cached := NewCachedEmbedder(counting, 8, time.Minute)

		first, err := cached.Embed(ctx, "pool schedules")
		require.NoError(t, err)
		second, err := cached.Embed(ctx, "pool schedules")
		require.NoError(t, err)

		assert.Equal(t, first, second)
		assert.Equal(t, 1, counting.calls)
	})

	t.Run("Different texts miss the cache", func(t *testing.T) {
		counting := &countingEmbedder{Embedder: NewWordHashEmbedder(16)}
		cached := NewCachedEmbedder(counting, 8, time.Minute)

		_, err := cached.Embed(ctx, "pool schedules")
		require.NoError(t, err)
		_, err = cached.Embed(ctx, "parking permits")
		require.NoError(t, err)

		assert.Equal(t, 2, counting.calls)
	})

	t.Run("Cached vector is not aliased", func(t *testing.T) {
		cached := NewCachedEmbedder(NewWordHashEmbedder(16), 8, time.Minute)

		first, err := cached.Embed(ctx, "pool schedules")
		require.NoError(t, err)
		first[0] = 42

		second, err := cached.Embed(ctx, "pool schedules")
		require.NoError(t, err)
		assert.NotEqual(t, float32(42), second[0])
	})

	t.Run("Batch bypasses the cache", func(t *testing.T) {
		counting := &countingEmbedder{Embedder: NewWordHashEmbedder(16)}
		cached := NewCachedEmbedder(counting, 8, time.Minute)

		_, err := cached.EmbedBatch(ctx, []string{"pool schedules", "pool schedules"})
		require.NoError(t, err)

		// EmbedBatch goes straight to the wrapped embedder.
		assert.Equal(t, 0, counting.calls)
	})

	t.Run("Invalid parameters return the embedder unwrapped", func(t *testing.T) {
		embedder := NewWordHashEmbedder(16)
		assert.Equal(t, Embedder(embedder), NewCachedEmbedder(embedder, 0, time.Minute))
		assert.Equal(t, Embedder(embedder), NewCachedEmbedder(embedder, 8, 0))
	})

	t.Run("Wrapped embedder keeps its identity", func(t *testing.T) {
		embedder := NewWordHashEmbedder(16)
		cached := NewCachedEmbedder(embedder, 8, time.Minute)

		assert.Equal(t, embedder.ModelName(), cached.ModelName())
		assert.Equal(t, embedder.ModelVersion(), cached.ModelVersion())
		assert.Equal(t, embedder.Dimension(), cached.Dimension())
	})
}
