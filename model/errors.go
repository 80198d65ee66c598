package model

import "errors"

// Error kinds surfaced by the pipeline. Callers match with errors.Is;
// everything else is wrapped context around one of these or plain
// infrastructure errors.
var (
	// ErrMalformedDocument marks chunking input that cannot be processed
	// (empty text, missing id, text beyond the absolute size guard).
	// Recoverable: bulk ingest skips the document and logs.
	ErrMalformedDocument = errors.New("malformed document")

	// ErrEmbeddingFailure marks an embedding call that failed for a
	// given input, e.g. an empty string rejected before batching.
	ErrEmbeddingFailure = errors.New("embedding failure")

	// ErrEmbeddingTimeout marks an embedding call that exceeded the
	// caller deadline. No partial result accompanies it.
	ErrEmbeddingTimeout = errors.New("embedding timeout")

	// ErrEmptyCorpus is returned by the retriever when the index holds
	// zero records, distinct from a legitimately empty filtered result.
	ErrEmptyCorpus = errors.New("empty corpus")

	// ErrIndexModelMismatch is fatal at load time: the persisted index
	// was built with a different embedding model or version.
	ErrIndexModelMismatch = errors.New("index embedding model mismatch")

	// ErrIndexCorrupt marks a checksum or structure mismatch in a
	// persisted index. The index must be rebuilt from source documents.
	ErrIndexCorrupt = errors.New("index corrupt")
)
