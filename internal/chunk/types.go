package chunk

import (
	"context"
	"time"
)

// Chunk size defaults per spec.md §4.9: characters, not tokens — the
// watcher/indexer chunks raw text, it does not tokenize.
const (
	DefaultChunkSize    = 2048 // characters per chunk
	DefaultChunkOverlap = 256  // characters of overlap between consecutive chunks
	MinChunkSize        = 64   // smallest chunk a split boundary search will accept
)

// ContentType represents the type of content in a chunk.
type ContentType string

const (
	ContentTypeMarkdown ContentType = "markdown"
	ContentTypeText     ContentType = "text"
)

// Chunk is a retrievable unit of content extracted from a file.
type Chunk struct {
	ID          string // "{path}#{chunk_index}" per spec.md §4.9
	FilePath    string // relative to a watched root
	Index       int    // chunk_index within FilePath
	Content     string
	ContentType ContentType
	StartOffset int // character (rune) offset into the source file
	EndOffset   int
	Metadata    map[string]string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// FileInput is input to a Chunker.
type FileInput struct {
	Path    string // relative path
	Content []byte
}

// Chunker splits a file into retrievable chunks.
type Chunker interface {
	Chunk(ctx context.Context, file *FileInput) ([]*Chunk, error)
	SupportedExtensions() []string
}
