// Package chunk splits ingested files into retrievable pieces for C10's
// file-watcher indexing pipeline (spec.md §4.9): fixed-size windows with
// overlap, preferring to break on a paragraph boundary, then a sentence
// boundary, then a hard character cut.
package chunk

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// TextChunkerOptions configures TextChunker.
type TextChunkerOptions struct {
	ChunkSize    int // characters per chunk (default: DefaultChunkSize = 2048)
	ChunkOverlap int // characters of overlap between consecutive chunks (default: DefaultChunkOverlap = 256)
}

// TextChunker splits arbitrary text into fixed-size overlapping windows,
// searching backward from the ideal cut point for a paragraph break, then
// a sentence break, before falling back to a hard cut at exactly
// ChunkSize. It is the default chunker for any file the watcher indexes
// that isn't markdown.
type TextChunker struct {
	options TextChunkerOptions
}

// NewTextChunker creates a text chunker with default options.
func NewTextChunker() *TextChunker {
	return NewTextChunkerWithOptions(TextChunkerOptions{})
}

// NewTextChunkerWithOptions creates a text chunker with custom options.
// Zero fields fall back to spec defaults; ChunkOverlap is clamped below
// ChunkSize so chunks always make forward progress.
func NewTextChunkerWithOptions(opts TextChunkerOptions) *TextChunker {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultChunkSize
	}
	if opts.ChunkOverlap < 0 {
		opts.ChunkOverlap = DefaultChunkOverlap
	}
	if opts.ChunkOverlap >= opts.ChunkSize {
		opts.ChunkOverlap = opts.ChunkSize / 4
	}
	return &TextChunker{options: opts}
}

// SupportedExtensions returns nil: TextChunker is the catch-all fallback
// for any extension the watcher's inclusion rules admit.
func (c *TextChunker) SupportedExtensions() []string { return nil }

// Chunk splits file.Content into overlapping windows.
func (c *TextChunker) Chunk(ctx context.Context, file *FileInput) ([]*Chunk, error) {
	text := string(file.Content)
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	now := time.Now()
	size, overlap := c.options.ChunkSize, c.options.ChunkOverlap
	runes := []rune(text)
	n := len(runes)

	var out []*Chunk
	start := 0
	index := 0
	for start < n {
		end := start + size
		if end >= n {
			end = n
		} else {
			end = findBoundary(runes, start, end)
		}
		if end <= start {
			end = start + 1
		}

		body := strings.TrimRight(string(runes[start:end]), "\n ")
		if strings.TrimSpace(body) != "" {
			out = append(out, &Chunk{
				ID:          chunkID(file.Path, index),
				FilePath:    file.Path,
				Index:       index,
				Content:     body,
				ContentType: ContentTypeText,
				StartOffset: start,
				EndOffset:   end,
				CreatedAt:   now,
				UpdatedAt:   now,
			})
			index++
		}

		if end >= n {
			break
		}
		next := end - overlap
		if next <= start {
			next = end
		}
		start = next
	}
	return out, nil
}

// findBoundary searches backward from ideal (start+size) for a split
// point, preferring a paragraph break ("\n\n"), then a sentence break
// (". ", "! ", "? ", or "\n"), before giving up and hard-cutting at
// ideal. The search never accepts a split that would leave fewer than
// MinChunkSize characters in the chunk.
func findBoundary(runes []rune, start, ideal int) int {
	lo := start + MinChunkSize

	for i := ideal; i > lo; i-- {
		if i >= 2 && runes[i-2] == '\n' && runes[i-1] == '\n' {
			return i
		}
	}
	for i := ideal; i > lo; i-- {
		if i >= 1 && (runes[i-1] == '.' || runes[i-1] == '!' || runes[i-1] == '?' || runes[i-1] == '\n') {
			if i == len(runes) || runes[i-1] == '\n' || i < len(runes) && runes[i] == ' ' {
				return i
			}
		}
	}
	return ideal
}

// chunkID builds the stable "{path}#{chunk_index}" id spec.md §4.9
// mandates so that re-indexing the same file produces the same ids and a
// path-prefixed delete can remove every chunk at once.
func chunkID(path string, index int) string {
	return fmt.Sprintf("%s#%d", path, index)
}
