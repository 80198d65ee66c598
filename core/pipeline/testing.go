package pipeline

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"math/rand"
	"strings"

	"github.com/civium/ragline/model"
)

// WordHashEmbedder is a deterministic, dependency-free embedder for
// tests and examples. Each lowercased word maps to a pseudo-random
// unit vector seeded by its hash; a text embeds to the normalized sum,
// so texts sharing vocabulary score high under cosine similarity.
// It is not a substitute for a real model.
type WordHashEmbedder struct {
	Dim  int
	Name string
}

// NewWordHashEmbedder creates a test embedder with the given dimension.
func NewWordHashEmbedder(dim int) *WordHashEmbedder {
	return &WordHashEmbedder{Dim: dim, Name: "word-hash-test-embedder"}
}

func (e *WordHashEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: empty text", model.ErrEmbeddingFailure)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sum := make([]float32, e.Dim)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		word = strings.Trim(word, ".,!?;:\"'()$")
		word = strings.TrimSuffix(word, "s")
		if word == "" {
			continue
		}

		h := fnv.New64a()
		h.Write([]byte(word))
		rng := rand.New(rand.NewSource(int64(h.Sum64())))
		for i := range sum {
			sum[i] += float32(rng.NormFloat64())
		}
	}

	if allZero(sum) {
		sum[0] = 1
	}
	return Normalize(sum), nil
}

func (e *WordHashEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	for i, text := range texts {
		if strings.TrimSpace(text) == "" {
			return nil, fmt.Errorf("%w: empty text at batch index %d", model.ErrEmbeddingFailure, i)
		}
	}

	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vector, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		vectors[i] = vector
	}
	return vectors, nil
}

func (e *WordHashEmbedder) ModelName() string    { return e.Name }
func (e *WordHashEmbedder) ModelVersion() string { return "test" }
func (e *WordHashEmbedder) Dimension() int       { return e.Dim }

func allZero(v []float32) bool {
	for _, x := range v {
		if math.Abs(float64(x)) > 0 {
			return false
		}
	}
	return true
}
