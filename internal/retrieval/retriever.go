package retrieval

import (
	"context"
	"log/slog"
	"strings"
)

const (
	// DefaultTopK is the number of chunks retrieved per query.
	DefaultTopK = 5
	// MaxTopK caps caller-supplied k values.
	MaxTopK = 20
)

// Retriever finds the reference chunks most similar to a query. A Retriever
// with a nil index is valid and operates degraded: every retrieval returns
// nothing and no embedding calls are made.
type Retriever struct {
	embedder *Embedder
	index    *MemoryIndex
	log      *slog.Logger
}

func NewRetriever(embedder *Embedder, index *MemoryIndex, log *slog.Logger) *Retriever {
	if log == nil {
		log = slog.Default()
	}
	return &Retriever{embedder: embedder, index: index, log: log}
}

// Ready reports whether an index is loaded.
func (r *Retriever) Ready() bool {
	return r.index != nil
}

// IndexSize reports the number of indexed chunks, zero when degraded.
func (r *Retriever) IndexSize() int {
	if r.index == nil {
		return 0
	}
	return r.index.Len()
}

// Retrieve returns up to topK chunks by descending similarity. It returns
// nil, never an error: a degraded index, a blank query, or an embedding
// failure all mean the advisor proceeds without reference context.
func (r *Retriever) Retrieve(ctx context.Context, query string, topK int) []ScoredChunk {
	if r.index == nil || strings.TrimSpace(query) == "" {
		return nil
	}
	topK = ClampTopK(topK)

	vec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		r.log.Warn("query embedding failed, proceeding without context", "error", err)
		return nil
	}
	return r.index.Search(vec, topK)
}

// RetrieveText returns the retrieved chunk texts joined by newlines, empty
// when nothing was retrieved.
func (r *Retriever) RetrieveText(ctx context.Context, query string, topK int) string {
	scored := r.Retrieve(ctx, query, topK)
	if len(scored) == 0 {
		return ""
	}
	texts := make([]string, len(scored))
	for i, s := range scored {
		texts[i] = s.Chunk.Text
	}
	return strings.Join(texts, "\n")
}

// ClampTopK bounds k to [1, MaxTopK], substituting the default for
// non-positive values.
func ClampTopK(k int) int {
	if k <= 0 {
		return DefaultTopK
	}
	if k > MaxTopK {
		return MaxTopK
	}
	return k
}
