package model

import "fmt"

// Chunk is a bounded contiguous substring of a source document, the
// unit of retrieval. Chunks are immutable after creation; re-chunking a
// document replaces its full set.
type Chunk struct {
	ID         string        `json:"id"`
	DocumentID string        `json:"document_id"`
	Text       string        `json:"text"`
	Start      int           `json:"start"`
	End        int           `json:"end"`
	Index      int           `json:"index"`
	Meta       ChunkMetadata `json:"metadata"`
}

// ChunkID derives the deterministic chunk identifier from the parent
// document id and the chunk's sequential index.
func ChunkID(documentID string, index int) string {
	return fmt.Sprintf("%s_chunk_%d", documentID, index)
}

// EmbeddingRecord pairs a chunk with its dense vector. The vector is
// L2-normalized, so cosine similarity reduces to a dot product. Text
// and metadata are carried so search results are self-contained.
type EmbeddingRecord struct {
	ChunkID    string        `json:"chunk_id"`
	DocumentID string        `json:"document_id"`
	Vector     []float32     `json:"vector"`
	Text       string        `json:"text"`
	Meta       ChunkMetadata `json:"metadata"`
}
