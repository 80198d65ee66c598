// Package retrieval turns a natural-language query into a ranked list
// of relevant chunks: embed the query, search the vector index, apply
// threshold and filters. Ranking is raw cosine similarity.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/civium/ragline/core/pipeline"
	"github.com/civium/ragline/helper"
	"github.com/civium/ragline/index"
	"github.com/civium/ragline/model"
)

// Engine orchestrates query embedding and index search. It never
// mutates the index.
type Engine struct {
	index    index.VectorIndex
	embedder pipeline.Embedder
	timeout  time.Duration
}

// NewEngine creates a retrieval engine. timeout bounds the embedding
// model call when the caller supplies no tighter deadline; zero means
// no engine-imposed bound.
func NewEngine(idx index.VectorIndex, embedder pipeline.Embedder, timeout time.Duration) *Engine {
	return &Engine{
		index:    idx,
		embedder: embedder,
		timeout:  timeout,
	}
}

// Retrieve embeds the query and searches the index. It fails with
// ErrEmptyCorpus when the index holds no records at all, which is
// distinct from a legitimately empty filtered result.
func (e *Engine) Retrieve(ctx context.Context, query string, cfg model.QueryConfig) ([]*model.RetrievalResult, error) {
	count, err := e.index.Count(ctx)
	if err != nil {
		return nil, helper.NewError("count index records", err)
	}
	if count == 0 {
		return nil, model.ErrEmptyCorpus
	}

	embedding, err := e.embedQuery(ctx, query)
	if err != nil {
		return nil, err
	}

	results, err := e.index.Search(ctx, embedding, cfg)
	if err != nil {
		return nil, helper.NewError("vector search", err)
	}

	return results, nil
}

// embedQuery runs the embedding call under the caller deadline or the
// engine timeout, whichever is tighter. On expiry it returns
// ErrEmbeddingTimeout and discards any late result, so a timed-out
// query never yields a partial retrieval.
func (e *Engine) embedQuery(ctx context.Context, query string) ([]float32, error) {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	type embedResult struct {
		vector []float32
		err    error
	}

	done := make(chan embedResult, 1)
	go func() {
		vector, err := e.embedder.Embed(ctx, query)
		done <- embedResult{vector: vector, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			if errors.Is(res.err, context.DeadlineExceeded) {
				return nil, fmt.Errorf("%w: %v", model.ErrEmbeddingTimeout, res.err)
			}
			return nil, res.err
		}
		return res.vector, nil
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: embedding query", model.ErrEmbeddingTimeout)
		}
		return nil, ctx.Err()
	}
}
