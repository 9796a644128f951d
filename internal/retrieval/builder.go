package retrieval

import (
	"context"
	"fmt"
	"sync"

	"github.com/paperdesk/advisor/internal/ingest"
)

// BuildIndex embeds every chunk and assembles the in-memory index.
func BuildIndex(ctx context.Context, embedder *Embedder, chunks []ingest.Chunk) (*MemoryIndex, error) {
	if len(chunks) == 0 {
		return nil, fmt.Errorf("no chunks to index")
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	vectors, err := embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embedding %d chunks: %w", len(chunks), err)
	}
	return NewMemoryIndex(chunks, vectors)
}

// Builder runs the index build exactly once, no matter how many callers ask.
// A failed build is final for the process lifetime: the retriever stays
// degraded rather than retrying on every request.
type Builder struct {
	embedder *Embedder
	chunks   []ingest.Chunk

	once  sync.Once
	index *MemoryIndex
	err   error
}

func NewBuilder(embedder *Embedder, chunks []ingest.Chunk) *Builder {
	return &Builder{embedder: embedder, chunks: chunks}
}

// Build returns the shared index, constructing it on first call. Concurrent
// callers block until the single build completes.
func (b *Builder) Build(ctx context.Context) (*MemoryIndex, error) {
	b.once.Do(func() {
		b.index, b.err = BuildIndex(ctx, b.embedder, b.chunks)
	})
	return b.index, b.err
}
