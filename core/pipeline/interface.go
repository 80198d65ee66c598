package pipeline

import (
	"context"

	"github.com/civium/ragline/model"
)

// ChunkFunc splits a document into its ordered chunks. Implementations
// are pure: calling the function again with the same document restarts
// the sequence from the beginning.
type ChunkFunc func(doc *model.Document) ([]model.Chunk, error)

// Embedder maps text to fixed-dimension normalized vectors. Given a
// fixed model and version the mapping is deterministic; query-time and
// index-build-time embedding must use the same model, which the index
// enforces through its manifest.
type Embedder interface {
	// Embed returns the normalized vector for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)
	// EmbedBatch embeds texts preserving per-item order. Invalid items
	// (empty strings) are rejected before the batch is submitted; a
	// submitted batch succeeds or fails atomically.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	ModelName() string
	ModelVersion() string
	Dimension() int
}

// Pipeline combines chunking and embedding into embedding records
// ready for index upsert.
type Pipeline struct {
	Chunker  ChunkFunc
	Embedder Embedder
}

// NewPipeline creates a new processing pipeline.
func NewPipeline(chunker ChunkFunc, embedder Embedder) *Pipeline {
	return &Pipeline{
		Chunker:  chunker,
		Embedder: embedder,
	}
}

// Process chunks a document and embeds all chunks in one batch.
func (p *Pipeline) Process(ctx context.Context, doc *model.Document) ([]model.EmbeddingRecord, error) {
	chunks, err := p.Chunker(doc)
	if err != nil {
		return nil, err
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Text
	}

	vectors, err := p.Embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, err
	}

	records := make([]model.EmbeddingRecord, len(chunks))
	for i, chunk := range chunks {
		records[i] = model.EmbeddingRecord{
			ChunkID:    chunk.ID,
			DocumentID: chunk.DocumentID,
			Vector:     vectors[i],
			Text:       chunk.Text,
			Meta:       chunk.Meta,
		}
	}

	return records, nil
}
