package chunk

import (
	"context"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTextChunker_StableIDs(t *testing.T) {
	text := strings.Repeat("word ", 2000)
	c := NewTextChunkerWithOptions(TextChunkerOptions{ChunkSize: 2048, ChunkOverlap: 256})
	chunks, err := c.Chunk(context.Background(), &FileInput{Path: "notes/a.txt", Content: []byte(text)})
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)
	for i, ch := range chunks {
		assert.Equal(t, "notes/a.txt#"+strconv.Itoa(i), ch.ID)
		assert.Equal(t, i, ch.Index)
	}
}

func TestTextChunker_OverlapProgressesForward(t *testing.T) {
	text := strings.Repeat("x", 10000)
	c := NewTextChunkerWithOptions(TextChunkerOptions{ChunkSize: 500, ChunkOverlap: 100})
	chunks, err := c.Chunk(context.Background(), &FileInput{Path: "f", Content: []byte(text)})
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)
	for i := 1; i < len(chunks); i++ {
		assert.Greater(t, chunks[i].StartOffset, chunks[i-1].StartOffset)
	}
}

func TestTextChunker_PrefersParagraphBoundary(t *testing.T) {
	first := strings.Repeat("a", 100)
	second := strings.Repeat("b", 100)
	text := first + "\n\n" + second
	c := NewTextChunkerWithOptions(TextChunkerOptions{ChunkSize: 150, ChunkOverlap: 10})
	chunks, err := c.Chunk(context.Background(), &FileInput{Path: "f", Content: []byte(text)})
	require.NoError(t, err)
	require.NotEmpty(t, chunks)
	assert.True(t, strings.HasSuffix(chunks[0].Content, strings.Repeat("a", 100)))
}

func TestTextChunker_EmptyInput(t *testing.T) {
	c := NewTextChunker()
	chunks, err := c.Chunk(context.Background(), &FileInput{Path: "f", Content: []byte("   ")})
	require.NoError(t, err)
	assert.Empty(t, chunks)
}
