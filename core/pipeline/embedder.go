package pipeline

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/knights-analytics/hugot"
	"github.com/knights-analytics/hugot/pipelines"

	"github.com/civium/ragline/helper"
	"github.com/civium/ragline/model"
)

// DefaultEmbeddingModel produces 384-dimensional embeddings and is the
// model the reference corpus was indexed with.
const (
	DefaultEmbeddingModel   = "sentence-transformers/all-MiniLM-L6-v2"
	DefaultEmbeddingVersion = "1"
	DefaultDimension        = 384
)

// LocalEmbedder runs a sentence-transformer model in-process through a
// hugot feature-extraction pipeline. Output vectors are L2-normalized,
// so cosine similarity against them reduces to a dot product.
type LocalEmbedder struct {
	session  *hugot.Session
	pipeline *pipelines.FeatureExtractionPipeline
	model    string
	version  string
	dim      int
}

// NewLocalEmbedder downloads the model if needed and initializes the
// hugot session with the Go backend.
func NewLocalEmbedder(modelName, modelVersion string, dim int) (*LocalEmbedder, error) {
	modelPath, err := helper.PrepareModel(modelName, "onnx/model.onnx")
	if err != nil {
		return nil, err
	}

	session, err := hugot.NewGoSession()
	if err != nil {
		return nil, fmt.Errorf("failed to create hugot session: %w", err)
	}

	config := hugot.FeatureExtractionConfig{
		ModelPath: modelPath,
		Name:      "embedder-pipeline",
	}
	sentencePipeline, err := hugot.NewPipeline(session, config)
	if err != nil {
		if destroyErr := session.Destroy(); destroyErr != nil {
			return nil, fmt.Errorf("failed to create sentence pipeline: %w (cleanup error: %v)", err, destroyErr)
		}
		return nil, fmt.Errorf("failed to create sentence pipeline: %w", err)
	}

	return &LocalEmbedder{
		session:  session,
		pipeline: sentencePipeline,
		model:    modelName,
		version:  modelVersion,
		dim:      dim,
	}, nil
}

// NewDefaultEmbedder creates an embedder with the reference model.
func NewDefaultEmbedder() (*LocalEmbedder, error) {
	return NewLocalEmbedder(DefaultEmbeddingModel, DefaultEmbeddingVersion, DefaultDimension)
}

// Embed returns the normalized vector for a single text.
func (e *LocalEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch embeds texts in order. Empty strings are invalid input
// and are rejected before the batch is submitted, so a malformed item
// never corrupts sibling results; a submitted batch succeeds or fails
// as a whole.
func (e *LocalEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	for i, text := range texts {
		if strings.TrimSpace(text) == "" {
			return nil, fmt.Errorf("%w: empty text at batch index %d", model.ErrEmbeddingFailure, i)
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result, err := e.pipeline.RunPipeline(texts)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrEmbeddingFailure, err)
	}
	if len(result.Embeddings) != len(texts) {
		return nil, fmt.Errorf("%w: got %d embeddings for %d texts", model.ErrEmbeddingFailure, len(result.Embeddings), len(texts))
	}

	vectors := make([][]float32, len(result.Embeddings))
	for i, embedding := range result.Embeddings {
		if len(embedding) != e.dim {
			return nil, fmt.Errorf("%w: got dimension %d, want %d", model.ErrEmbeddingFailure, len(embedding), e.dim)
		}
		vectors[i] = Normalize(embedding)
	}

	return vectors, nil
}

// ModelName returns the embedding model identifier.
func (e *LocalEmbedder) ModelName() string { return e.model }

// ModelVersion returns the embedding model version.
func (e *LocalEmbedder) ModelVersion() string { return e.version }

// Dimension returns the vector dimension D.
func (e *LocalEmbedder) Dimension() int { return e.dim }

// Close releases the hugot session.
func (e *LocalEmbedder) Close() error {
	if e.session == nil {
		return nil
	}
	return e.session.Destroy()
}

// Normalize scales a vector to unit length. Zero vectors are returned
// unchanged.
func Normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}

	norm := float32(math.Sqrt(sum))
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = x / norm
	}
	return out
}
