package model

// RetrievalResult is one entry of an ordered retrieval: a chunk and its
// cosine similarity to the query, highest first.
type RetrievalResult struct {
	ChunkID string        `json:"chunk_id"`
	Text    string        `json:"text"`
	Meta    ChunkMetadata `json:"metadata"`
	Score   float64       `json:"score"`
}

// Source attributes a retrieved passage back to its document. The list
// is produced by the assembler and passes through generation unmodified.
type Source struct {
	Title string  `json:"title"`
	URL   string  `json:"url"`
	Score float64 `json:"score"`
}

// AnswerContext is the generation-ready output of the assembler.
type AnswerContext struct {
	Prompt  string   `json:"prompt"`
	Sources []Source `json:"sources"`
	// NoInformation is set when retrieval produced nothing usable and
	// the prompt instructs the model to say so.
	NoInformation bool `json:"no_information,omitempty"`
}

// Answer is the end-to-end response when a generator is configured.
type Answer struct {
	Query      string   `json:"query"`
	Text       string   `json:"answer"`
	Sources    []Source `json:"sources"`
	Confidence float64  `json:"confidence"`
	ChunksUsed int      `json:"chunks_used"`
}

// Stats describes the current state of the pipeline for diagnostics.
type Stats struct {
	Documents      int    `json:"documents"`
	Chunks         int    `json:"chunks"`
	EmbeddingModel string `json:"embedding_model"`
	ModelVersion   string `json:"model_version"`
	Dimension      int    `json:"dimension"`
}
