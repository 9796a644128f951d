package ingest

import (
	"regexp"
	"strings"

	"github.com/google/uuid"
)

const (
	DefaultChunkSize    = 500
	DefaultChunkOverlap = 50
)

// Chunk is a bounded span of reference text used as a retrieval unit.
// Chunks are immutable once created and live only in memory.
type Chunk struct {
	ID      string
	Page    int
	Ordinal int
	Text    string
}

var paragraphSplitter = regexp.MustCompile(`\n\s*\n`)

// ChunkPages splits page text on paragraph boundaries and packs paragraphs
// into windows of at most size runes, with the last overlap runes of each
// window repeated at the start of the next so context continuity survives
// chunk boundaries. Paragraphs longer than a window are hard-split with the
// same overlap. Ordinals are assigned in document order across all pages.
func ChunkPages(pages []Page, size, overlap int) []Chunk {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 || overlap >= size {
		overlap = DefaultChunkOverlap
	}

	var chunks []Chunk
	ordinal := 0
	for _, p := range pages {
		chunks = append(chunks, chunkPage(p, size, overlap, &ordinal)...)
	}
	return chunks
}

func chunkPage(p Page, size, overlap int, ordinal *int) []Chunk {
	var chunks []Chunk
	var cur []rune

	emit := func(text string) {
		text = strings.TrimSpace(text)
		if text == "" {
			return
		}
		chunks = append(chunks, Chunk{
			ID:      uuid.New().String(),
			Page:    p.Number,
			Ordinal: *ordinal,
			Text:    text,
		})
		*ordinal++
	}

	for _, para := range splitParagraphs(p.Text) {
		r := []rune(para)

		if len(cur) > 0 && len(cur)+1+len(r) > size {
			emit(string(cur))
			cur = tail(cur, overlap)
		}
		if len(cur) > 0 {
			cur = append(cur, '\n')
		}
		cur = append(cur, r...)

		// Hard-split paragraphs that exceed a full window on their own.
		for len(cur) > size {
			emit(string(cur[:size]))
			cur = append(tail(cur[:size], overlap), cur[size:]...)
		}
	}
	emit(string(cur))

	return chunks
}

// splitParagraphs breaks text on blank lines and normalizes intra-paragraph
// whitespace, since PDF extraction leaves arbitrary line breaks inside
// flowing text.
func splitParagraphs(text string) []string {
	var paragraphs []string
	for _, para := range paragraphSplitter.Split(text, -1) {
		para = strings.Join(strings.Fields(para), " ")
		if para != "" {
			paragraphs = append(paragraphs, para)
		}
	}
	return paragraphs
}

func tail(r []rune, n int) []rune {
	if len(r) <= n {
		return append([]rune(nil), r...)
	}
	return append([]rune(nil), r[len(r)-n:]...)
}
