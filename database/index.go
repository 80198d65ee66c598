package database

import (
	"context"
	"fmt"
	"time"

	"github.com/civium/ragline/helper"
)

// IndexParams holds tuning knobs for the approximate nearest neighbour
// index on the embedding column. Zero values fall back to the pgvector
// defaults.
type IndexParams struct {
	// HNSW graph parameters.
	M              int
	EfConstruction int
	// IVFFlat partition count.
	Lists int
}

// ChangeIndexType rebuilds the embedding index as either "hnsw" or
// "ivfflat". HNSW gives better recall, IVFFlat builds faster on large
// corpora.
func (h *ChunksDBHandler) ChangeIndexType(ctx context.Context, indexType string, params IndexParams) error {
	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	var createIndexSQL string
	switch indexType {
	case "hnsw":
		m := params.M
		if m <= 0 {
			m = 16
		}
		efConstruction := params.EfConstruction
		if efConstruction <= 0 {
			efConstruction = 64
		}
		createIndexSQL = fmt.Sprintf(
			`CREATE INDEX idx_chunks_embedding ON chunks USING hnsw (embedding vector_cosine_ops) WITH (m = %d, ef_construction = %d);`,
			m, efConstruction,
		)
	case "ivfflat":
		lists := params.Lists
		if lists <= 0 {
			lists = 100
		}
		createIndexSQL = fmt.Sprintf(
			`CREATE INDEX idx_chunks_embedding ON chunks USING ivfflat (embedding vector_cosine_ops) WITH (lists = %d);`,
			lists,
		)
	default:
		return helper.NewError("change index type", fmt.Errorf("unsupported index type: %s (use 'hnsw' or 'ivfflat')", indexType))
	}

	if _, err := h.db.Instance.ExecContext(ctx, `DROP INDEX IF EXISTS idx_chunks_embedding;`); err != nil {
		return helper.NewError("drop index", err)
	}

	if _, err := h.db.Instance.ExecContext(ctx, createIndexSQL); err != nil {
		return helper.NewError("create index", err)
	}

	h.db.Logger.Info("Rebuilt vector index", "type", indexType)

	return nil
}
