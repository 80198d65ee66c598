package pipeline

import (
	"fmt"
	"strings"

	"github.com/civium/ragline/model"
)

// OverlapChunker creates a chunker that scans the document text in a
// single forward pass and emits chunks of roughly cfg.ChunkSize
// characters. A cut prefers the nearest sentence boundary within
// cfg.BoundaryWindow characters behind the target, and each chunk
// starts cfg.Overlap characters before the previous chunk's end so
// adjacent chunks share context. A trailing remainder shorter than
// cfg.MinChunkSize is merged backward into the previous chunk, unless
// the merged chunk would exceed cfg.MaxChunkSize, in which case the cut
// moves back so the final chunk still reaches cfg.MinChunkSize.
func OverlapChunker(cfg model.ChunkingConfig) ChunkFunc {
	return func(doc *model.Document) ([]model.Chunk, error) {
		if err := doc.Validate(); err != nil {
			return nil, err
		}
		if len(doc.Text) > cfg.MaxDocumentSize {
			return nil, fmt.Errorf("%w: document %q exceeds %d bytes", model.ErrMalformedDocument, doc.ID, cfg.MaxDocumentSize)
		}
		if cfg.ChunkSize <= 0 || cfg.Overlap < 0 || cfg.Overlap >= cfg.ChunkSize {
			return nil, fmt.Errorf("invalid chunking config: size %d overlap %d", cfg.ChunkSize, cfg.Overlap)
		}

		meta := metadataFor(doc)
		if err := meta.Validate(); err != nil {
			return nil, err
		}

		text := []rune(doc.Text)
		n := len(text)

		// Documents shorter than the minimum become exactly one chunk.
		if n <= cfg.MinChunkSize {
			return []model.Chunk{newChunk(doc, meta, text, 0, n, 0)}, nil
		}

		var chunks []model.Chunk
		start := 0
		idx := 0

		for start < n {
			end := start + cfg.ChunkSize
			if end >= n {
				end = n
			} else if b := sentenceBoundary(text, end, cfg.BoundaryWindow); b > start+cfg.MinChunkSize {
				end = b
			}

			// An undersized trailing remainder merges into this chunk.
			// When the merge would exceed MaxChunkSize, pull the cut
			// back instead so the final chunk still reaches MinChunkSize.
			if end < n && n-end < cfg.MinChunkSize {
				if n-start <= cfg.MaxChunkSize {
					end = n
				} else {
					end = n - cfg.MinChunkSize
				}
			}

			chunks = append(chunks, newChunk(doc, meta, text, start, end, idx))

			if end >= n {
				break
			}
			start = end - cfg.Overlap
			idx++
		}

		return chunks, nil
	}
}

func newChunk(doc *model.Document, meta model.ChunkMetadata, text []rune, start, end, idx int) model.Chunk {
	chunkText := string(text[start:end])
	meta.WordCount = len(strings.Fields(chunkText))

	return model.Chunk{
		ID:         model.ChunkID(doc.ID, idx),
		DocumentID: doc.ID,
		Text:       chunkText,
		Start:      start,
		End:        end,
		Index:      idx,
		Meta:       meta,
	}
}

func metadataFor(doc *model.Document) model.ChunkMetadata {
	title := doc.Title
	if title == "" {
		title = doc.ID
	}
	language := doc.Language
	if language == "" {
		language = "en"
	}

	return model.ChunkMetadata{
		Title:    title,
		URL:      doc.URL,
		Section:  doc.Section,
		Language: language,
	}
}

// sentenceBoundary looks backward from the target cut for the end of a
// sentence and returns the position just after it, or -1 when the
// window holds no boundary.
func sentenceBoundary(text []rune, target, window int) int {
	low := target - window
	if low < 0 {
		low = 0
	}

	for i := target - 1; i > low; i-- {
		switch text[i] {
		case '\n':
			return i + 1
		case '.', '!', '?':
			if i+1 < len(text) && (text[i+1] == ' ' || text[i+1] == '\n') {
				return i + 2
			}
		}
	}

	return -1
}
