package model

import "time"

// ChunkingConfig controls how documents are split. The values are
// tuning knobs, not derived invariants; changing them invalidates all
// chunks for a document and requires a rebuild.
type ChunkingConfig struct {
	// ChunkSize is the target chunk length in characters.
	ChunkSize int `json:"chunk_size"`
	// Overlap is the number of trailing characters each chunk shares
	// with its successor.
	Overlap int `json:"overlap"`
	// MinChunkSize is the smallest chunk emitted; a shorter trailing
	// remainder is merged backward into the previous chunk.
	MinChunkSize int `json:"min_chunk_size"`
	// MaxChunkSize bounds a chunk even after remainder merging.
	MaxChunkSize int `json:"max_chunk_size"`
	// BoundaryWindow is how far the chunker looks backward from the
	// target cut for a sentence boundary.
	BoundaryWindow int `json:"boundary_window"`
	// MaxDocumentSize is the absolute guard on input text length.
	MaxDocumentSize int `json:"max_document_size"`
}

// DefaultChunkingConfig matches the corpus the pipeline was tuned on:
// 800-character chunks with 100 characters of overlap.
func DefaultChunkingConfig() ChunkingConfig {
	return ChunkingConfig{
		ChunkSize:       800,
		Overlap:         100,
		MinChunkSize:    50,
		MaxChunkSize:    1000,
		BoundaryWindow:  120,
		MaxDocumentSize: 2 << 20,
	}
}

// QueryConfig represents configuration for a retrieval query.
type QueryConfig struct {
	// TopK is the maximum number of chunks returned.
	TopK int `json:"top_k"`
	// MinScore excludes results below this cosine similarity.
	MinScore float64 `json:"min_score,omitempty"`
	// Filters restricts results to chunks whose metadata matches every
	// field=value pair. Only schema fields (section, language) are valid.
	Filters map[string]string `json:"filters,omitempty"`
}

// DefaultQueryConfig returns a sensible default configuration.
func DefaultQueryConfig() QueryConfig {
	return QueryConfig{
		TopK:     5,
		MinScore: 0.7,
	}
}

// PipelineConfig bundles the tunables of the whole pipeline.
type PipelineConfig struct {
	Chunking ChunkingConfig `json:"chunking"`
	// ContextBudget is the maximum number of characters of retrieved
	// text handed to generation.
	ContextBudget int `json:"context_budget"`
	// EmbedTimeout bounds a single embedding model call.
	EmbedTimeout time.Duration `json:"embed_timeout"`
	// QueryCacheSize bounds the LRU cache of query embeddings;
	// zero disables caching.
	QueryCacheSize int `json:"query_cache_size"`
	// QueryCacheTTL expires cached query embeddings.
	QueryCacheTTL time.Duration `json:"query_cache_ttl"`
}

// DefaultPipelineConfig returns the reference configuration.
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		Chunking:       DefaultChunkingConfig(),
		ContextBudget:  6000,
		EmbedTimeout:   30 * time.Second,
		QueryCacheSize: 256,
		QueryCacheTTL:  15 * time.Minute,
	}
}
