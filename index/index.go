// Package index provides the vector index of the retrieval pipeline:
// an in-memory flat cosine index over normalized embeddings with
// snapshot persistence. A Postgres/pgvector-backed alternative for
// large corpora lives in the database package.
package index

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/civium/ragline/model"
)

// VectorIndex is the search contract shared by the memory index and
// the Postgres-backed index.
type VectorIndex interface {
	Upsert(ctx context.Context, rec model.EmbeddingRecord) error
	Search(ctx context.Context, query []float32, cfg model.QueryConfig) ([]*model.RetrievalResult, error)
	Delete(ctx context.Context, chunkID string) error
	Rebuild(ctx context.Context, recs []model.EmbeddingRecord) error
	Count(ctx context.Context) (int, error)
}

// Manifest records what an index was built with. Loading an index
// whose manifest does not match the configured embedding model fails
// fast instead of silently returning degraded similarity scores.
type Manifest struct {
	SnapshotID     string               `json:"snapshot_id"`
	EmbeddingModel string               `json:"embedding_model"`
	ModelVersion   string               `json:"model_version"`
	Dimension      int                  `json:"dimension"`
	Chunking       model.ChunkingConfig `json:"chunking"`
	CorpusChecksum string               `json:"corpus_checksum,omitempty"`
	RecordsSHA256  string               `json:"records_sha256,omitempty"`
	Records        int                  `json:"records"`
	CreatedAt      time.Time            `json:"created_at"`
}

// NewManifest creates a manifest for a fresh corpus snapshot.
func NewManifest(embeddingModel, modelVersion string, dimension int, chunking model.ChunkingConfig) Manifest {
	return Manifest{
		SnapshotID:     uuid.NewString(),
		EmbeddingModel: embeddingModel,
		ModelVersion:   modelVersion,
		Dimension:      dimension,
		Chunking:       chunking,
		CreatedAt:      time.Now().UTC(),
	}
}

// Compatible reports whether a persisted manifest matches the
// configured embedding model and version.
func (m Manifest) Compatible(other Manifest) bool {
	return m.EmbeddingModel == other.EmbeddingModel &&
		m.ModelVersion == other.ModelVersion &&
		m.Dimension == other.Dimension
}

// Memory is a flat in-memory cosine index. Readers search an immutable
// snapshot reached through an atomic pointer; writers serialize on a
// mutex, build a complete replacement snapshot and swap it in, so a
// search never observes a half-built index.
type Memory struct {
	mu       sync.Mutex
	snap     atomic.Pointer[snapshot]
	manifest Manifest
}

type snapshot struct {
	records []model.EmbeddingRecord // sorted by chunk id
	byID    map[string]int
}

// NewMemory creates an empty index bound to an embedding model.
func NewMemory(manifest Manifest) *Memory {
	if manifest.CreatedAt.IsZero() {
		manifest.CreatedAt = time.Now().UTC()
	}
	m := &Memory{manifest: manifest}
	m.snap.Store(newSnapshot(nil))
	return m
}

// Manifest returns a copy of the index manifest.
func (m *Memory) Manifest() Manifest {
	m.mu.Lock()
	defer m.mu.Unlock()
	manifest := m.manifest
	manifest.Records = len(m.snap.Load().records)
	return manifest
}

// SetCorpusChecksum records the checksum of the corpus snapshot the
// index was built from.
func (m *Memory) SetCorpusChecksum(sum string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.manifest.CorpusChecksum = sum
}

func newSnapshot(records []model.EmbeddingRecord) *snapshot {
	sort.Slice(records, func(i, j int) bool {
		return records[i].ChunkID < records[j].ChunkID
	})
	byID := make(map[string]int, len(records))
	for i, rec := range records {
		byID[rec.ChunkID] = i
	}
	return &snapshot{records: records, byID: byID}
}

func (m *Memory) validate(rec model.EmbeddingRecord) error {
	if rec.ChunkID == "" {
		return fmt.Errorf("embedding record without chunk id")
	}
	if len(rec.Vector) != m.manifest.Dimension {
		return fmt.Errorf("%w: vector dimension %d, index dimension %d",
			model.ErrIndexModelMismatch, len(rec.Vector), m.manifest.Dimension)
	}
	return nil
}

// Upsert inserts or replaces one record.
func (m *Memory) Upsert(ctx context.Context, rec model.EmbeddingRecord) error {
	if err := m.validate(rec); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	old := m.snap.Load()
	records := make([]model.EmbeddingRecord, 0, len(old.records)+1)
	records = append(records, old.records...)
	if i, ok := old.byID[rec.ChunkID]; ok {
		records[i] = rec
	} else {
		records = append(records, rec)
	}
	m.snap.Store(newSnapshot(records))

	return nil
}

// Delete removes a record by chunk id. Deleting an absent id is a no-op.
func (m *Memory) Delete(ctx context.Context, chunkID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	old := m.snap.Load()
	if _, ok := old.byID[chunkID]; !ok {
		return nil
	}

	records := make([]model.EmbeddingRecord, 0, len(old.records)-1)
	for _, rec := range old.records {
		if rec.ChunkID != chunkID {
			records = append(records, rec)
		}
	}
	m.snap.Store(newSnapshot(records))

	return nil
}

// Rebuild replaces the full record set wholesale. Concurrent searches
// keep serving the prior snapshot until the swap.
func (m *Memory) Rebuild(ctx context.Context, recs []model.EmbeddingRecord) error {
	records := make([]model.EmbeddingRecord, 0, len(recs))
	seen := make(map[string]bool, len(recs))
	for _, rec := range recs {
		if err := m.validate(rec); err != nil {
			return err
		}
		if seen[rec.ChunkID] {
			return fmt.Errorf("duplicate chunk id %q in rebuild", rec.ChunkID)
		}
		seen[rec.ChunkID] = true
		records = append(records, rec)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.snap.Store(newSnapshot(records))
	m.manifest.Records = len(records)
	m.manifest.CreatedAt = time.Now().UTC()

	return nil
}

// Count returns the number of records in the current snapshot.
func (m *Memory) Count(ctx context.Context) (int, error) {
	return len(m.snap.Load().records), nil
}

// Records returns a copy of the current snapshot's records, ordered by
// chunk id.
func (m *Memory) Records() []model.EmbeddingRecord {
	snap := m.snap.Load()
	records := make([]model.EmbeddingRecord, len(snap.records))
	copy(records, snap.records)
	return records
}

// Search returns at most cfg.TopK results ordered by descending cosine
// similarity, ties broken by chunk id ascending. Metadata filters are
// applied before truncation to k, so a filtered search still returns
// up to k of the matching population. An empty result is valid.
func (m *Memory) Search(ctx context.Context, query []float32, cfg model.QueryConfig) ([]*model.RetrievalResult, error) {
	if len(query) != m.manifest.Dimension {
		return nil, fmt.Errorf("%w: query dimension %d, index dimension %d",
			model.ErrIndexModelMismatch, len(query), m.manifest.Dimension)
	}
	if err := model.ValidateFilters(cfg.Filters); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	topK := cfg.TopK
	if topK <= 0 {
		topK = model.DefaultQueryConfig().TopK
	}

	snap := m.snap.Load()
	results := make([]*model.RetrievalResult, 0, topK)
	for i := range snap.records {
		rec := &snap.records[i]
		if !rec.Meta.Matches(cfg.Filters) {
			continue
		}
		score := dot(query, rec.Vector)
		if score < cfg.MinScore {
			continue
		}
		results = append(results, &model.RetrievalResult{
			ChunkID: rec.ChunkID,
			Text:    rec.Text,
			Meta:    rec.Meta,
			Score:   score,
		})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ChunkID < results[j].ChunkID
	})
	if len(results) > topK {
		results = results[:topK]
	}

	return results, nil
}

// dot computes the similarity of two normalized vectors.
func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
