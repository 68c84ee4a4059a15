package chunk

import (
	"context"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// MarkdownChunkerOptions configures the markdown chunker behavior.
type MarkdownChunkerOptions struct {
	ChunkSize    int // maximum characters per chunk (default: DefaultChunkSize)
	ChunkOverlap int // unused by the header-based splitter; kept for parity with TextChunker
}

// MarkdownChunker implements header-based Markdown chunking: it keeps each
// `#`..`######` section together as long as it fits within ChunkSize,
// falling back to paragraph splitting for oversized sections. This keeps
// a README's structure legible in search results and is also what
// internal/discovery's README-promotion stage (C12 §4.11 stage 7) scans for.
type MarkdownChunker struct {
	options MarkdownChunkerOptions
}

var (
	headerPattern       = regexp.MustCompile(`(?m)^(#{1,6})\s+(.+)$`)
	frontmatterPattern  = regexp.MustCompile(`(?s)^---\n(.+?)\n---\n*`)
)

// NewMarkdownChunker creates a markdown chunker with default options.
func NewMarkdownChunker() *MarkdownChunker {
	return NewMarkdownChunkerWithOptions(MarkdownChunkerOptions{})
}

// NewMarkdownChunkerWithOptions creates a markdown chunker with custom options.
func NewMarkdownChunkerWithOptions(opts MarkdownChunkerOptions) *MarkdownChunker {
	if opts.ChunkSize == 0 {
		opts.ChunkSize = DefaultChunkSize
	}
	if opts.ChunkOverlap == 0 {
		opts.ChunkOverlap = DefaultChunkOverlap
	}
	return &MarkdownChunker{options: opts}
}

// SupportedExtensions returns file extensions this chunker handles.
func (c *MarkdownChunker) SupportedExtensions() []string {
	return []string{".md", ".markdown", ".mdx"}
}

// Chunk splits a markdown file into header-bounded chunks.
func (c *MarkdownChunker) Chunk(ctx context.Context, file *FileInput) ([]*Chunk, error) {
	content := string(file.Content)
	if strings.TrimSpace(content) == "" {
		return nil, nil
	}

	now := time.Now()
	var out []*Chunk
	next := 0
	emit := func(body string, meta map[string]string) {
		body = strings.TrimRight(body, "\n ")
		if strings.TrimSpace(body) == "" {
			return
		}
		out = append(out, &Chunk{
			ID:          chunkID(file.Path, next),
			FilePath:    file.Path,
			Index:       next,
			Content:     body,
			ContentType: ContentTypeMarkdown,
			Metadata:    meta,
			CreatedAt:   now,
			UpdatedAt:   now,
		})
		next++
	}

	remaining := content
	if fm := frontmatterPattern.FindString(remaining); fm != "" {
		emit(fm, map[string]string{"section": "frontmatter"})
		remaining = remaining[len(fm):]
	}

	sections := parseMarkdownSections(remaining)
	if len(sections) == 0 {
		for _, para := range splitParagraphs(remaining, c.options.ChunkSize) {
			emit(para, map[string]string{"section": ""})
		}
		return out, nil
	}

	for _, sec := range sections {
		meta := map[string]string{
			"section":       sec.path,
			"header_level":  strconv.Itoa(sec.level),
			"section_title": sec.title,
		}
		if len(sec.body) <= c.options.ChunkSize {
			emit(sec.body, meta)
			continue
		}
		for _, para := range splitParagraphs(sec.body, c.options.ChunkSize) {
			emit(para, meta)
		}
	}
	return out, nil
}

type mdSection struct {
	level int
	title string
	path  string
	body  string
}

// parseMarkdownSections walks content line by line, opening a new section
// at every header line and tracking a '>'-joined header path for context.
func parseMarkdownSections(content string) []*mdSection {
	lines := strings.Split(content, "\n")
	stack := make([]string, 6)

	var sections []*mdSection
	var cur *mdSection
	var body strings.Builder

	flush := func() {
		if cur != nil {
			cur.body = body.String()
			sections = append(sections, cur)
			body.Reset()
		}
	}

	for _, line := range lines {
		if m := headerPattern.FindStringSubmatch(line); m != nil {
			flush()
			level := len(m[1])
			title := strings.TrimSpace(m[2])
			stack[level-1] = title
			for i := level; i < 6; i++ {
				stack[i] = ""
			}
			var parts []string
			for i := 0; i < level; i++ {
				if stack[i] != "" {
					parts = append(parts, stack[i])
				}
			}
			cur = &mdSection{level: level, title: title, path: strings.Join(parts, " > ")}
			body.WriteString(line)
			body.WriteString("\n")
			continue
		}
		body.WriteString(line)
		body.WriteString("\n")
	}
	flush()
	return sections
}

// splitParagraphs packs blank-line-delimited paragraphs into chunks no
// larger than limit characters, never splitting a single paragraph.
func splitParagraphs(content string, limit int) []string {
	paras := strings.Split(content, "\n\n")
	var out []string
	var cur strings.Builder

	for _, p := range paras {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if cur.Len() > 0 && cur.Len()+len(p)+2 > limit {
			out = append(out, cur.String())
			cur.Reset()
		}
		if cur.Len() > 0 {
			cur.WriteString("\n\n")
		}
		cur.WriteString(p)
	}
	if cur.Len() > 0 {
		out = append(out, cur.String())
	}
	return out
}
