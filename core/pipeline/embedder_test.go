package pipeline

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civium/ragline/model"
)

func vectorNorm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

func cosine(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

func TestNormalize(t *testing.T) {
	t.Run("Normalized vector has unit length", func(t *testing.T) {
		v := Normalize([]float32{3, 4})
		assert.InDelta(t, 1.0, vectorNorm(v), 1e-6)
		assert.InDelta(t, 0.6, float64(v[0]), 1e-6)
		assert.InDelta(t, 0.8, float64(v[1]), 1e-6)
	})

	t.Run("Zero vector passes through", func(t *testing.T) {
		v := Normalize([]float32{0, 0, 0})
		assert.Equal(t, []float32{0, 0, 0}, v)
	})
}

func TestWordHashEmbedder(t *testing.T) {
	ctx := context.Background()
	embedder := NewWordHashEmbedder(64)

	t.Run("Embedding is deterministic", func(t *testing.T) {
		first, err := embedder.Embed(ctx, "marriage license fees")
		require.NoError(t, err)
		second, err := embedder.Embed(ctx, "marriage license fees")
		require.NoError(t, err)

		assert.Equal(t, first, second)
		assert.Equal(t, 64, len(first))
		assert.InDelta(t, 1.0, vectorNorm(first), 1e-5)
	})

	t.Run("Shared vocabulary scores higher than disjoint", func(t *testing.T) {
		query, err := embedder.Embed(ctx, "marriage license fee")
		require.NoError(t, err)
		related, err := embedder.Embed(ctx, "Marriage licenses cost $145 and are valid 90 days.")
		require.NoError(t, err)
		unrelated, err := embedder.Embed(ctx, "Garbage is collected every two weeks on Thursdays.")
		require.NoError(t, err)

		assert.Greater(t, cosine(query, related), cosine(query, unrelated))
	})

	t.Run("Empty text fails", func(t *testing.T) {
		_, err := embedder.Embed(ctx, "   ")
		assert.ErrorIs(t, err, model.ErrEmbeddingFailure)
	})

	t.Run("Batch preserves order", func(t *testing.T) {
		texts := []string{"first text", "second text", "third text"}
		vectors, err := embedder.EmbedBatch(ctx, texts)
		require.NoError(t, err)
		require.Equal(t, len(texts), len(vectors))

		for i, text := range texts {
			single, err := embedder.Embed(ctx, text)
			require.NoError(t, err)
			assert.Equal(t, single, vectors[i], "batch vector %d differs from single embed", i)
		}
	})

	t.Run("Batch with empty item fails atomically", func(t *testing.T) {
		_, err := embedder.EmbedBatch(ctx, []string{"valid text", ""})
		assert.ErrorIs(t, err, model.ErrEmbeddingFailure)
	})
}

func TestPipelineProcess(t *testing.T) {
	ctx := context.Background()
	cfg := testChunkingConfig()
	p := NewPipeline(OverlapChunker(cfg), NewWordHashEmbedder(32))

	t.Run("Produces one record per chunk", func(t *testing.T) {
		doc := &model.Document{ID: "doc1", Title: "Pipeline", URL: "https://city.example/p", Text: sentenceText(30)}

		records, err := p.Process(ctx, doc)

		require.NoError(t, err)
		require.Greater(t, len(records), 1)
		for i, rec := range records {
			assert.Equal(t, model.ChunkID("doc1", i), rec.ChunkID)
			assert.Equal(t, "doc1", rec.DocumentID)
			assert.Equal(t, 32, len(rec.Vector))
			assert.NotEmpty(t, rec.Text)
			assert.Equal(t, "Pipeline", rec.Meta.Title)
		}
	})

	t.Run("Malformed document fails", func(t *testing.T) {
		_, err := p.Process(ctx, &model.Document{ID: "doc1", Text: ""})
		assert.ErrorIs(t, err, model.ErrMalformedDocument)
	})
}
