package retrieval

import (
	"container/heap"
	"fmt"
	"math"

	"github.com/paperdesk/advisor/internal/ingest"
)

// ScoredChunk is a retrieval unit with its cosine similarity to a query.
type ScoredChunk struct {
	Chunk ingest.Chunk
	Score float64
}

type indexEntry struct {
	chunk ingest.Chunk
	vec   []float32
	norm  float64
}

// MemoryIndex is a flat in-memory similarity index over reference chunks.
// It is immutable after construction and safe for concurrent Search calls.
// Nothing is ever persisted; the index is rebuilt from the source document
// on every process start.
type MemoryIndex struct {
	entries []indexEntry
}

// NewMemoryIndex builds an index from chunks and their vectors, which must
// be parallel slices. Chunks whose vector has zero magnitude are dropped.
func NewMemoryIndex(chunks []ingest.Chunk, vectors [][]float32) (*MemoryIndex, error) {
	if len(chunks) != len(vectors) {
		return nil, fmt.Errorf("chunk/vector count mismatch: %d vs %d", len(chunks), len(vectors))
	}

	idx := &MemoryIndex{entries: make([]indexEntry, 0, len(chunks))}
	for i, c := range chunks {
		n := vectorNorm(vectors[i])
		if n == 0 {
			continue
		}
		idx.entries = append(idx.entries, indexEntry{chunk: c, vec: vectors[i], norm: n})
	}
	if len(idx.entries) == 0 {
		return nil, fmt.Errorf("no usable vectors out of %d chunks", len(chunks))
	}
	return idx, nil
}

// Len reports the number of indexed chunks.
func (idx *MemoryIndex) Len() int {
	return len(idx.entries)
}

// Search scans every entry and returns up to topK chunks ordered by
// descending cosine similarity. Equal scores keep document order.
func (idx *MemoryIndex) Search(query []float32, topK int) []ScoredChunk {
	if topK <= 0 || len(idx.entries) == 0 {
		return nil
	}
	qn := vectorNorm(query)
	if qn == 0 {
		return nil
	}

	// Min-heap of the best topK seen so far. Entries are scanned in
	// document order, so on equal scores the earlier entry survives.
	h := &candidateHeap{}
	heap.Init(h)
	for pos, e := range idx.entries {
		if len(e.vec) != len(query) {
			continue
		}
		score := dotProduct(query, e.vec) / (qn * e.norm)

		if h.Len() < topK {
			heap.Push(h, candidate{pos: pos, score: score})
			continue
		}
		worst := (*h)[0]
		if score > worst.score {
			(*h)[0] = candidate{pos: pos, score: score}
			heap.Fix(h, 0)
		}
	}

	results := make([]ScoredChunk, h.Len())
	for i := h.Len() - 1; i >= 0; i-- {
		c := heap.Pop(h).(candidate)
		results[i] = ScoredChunk{Chunk: idx.entries[c.pos].chunk, Score: c.score}
	}
	return results
}

type candidate struct {
	pos   int
	score float64
}

// candidateHeap is a min-heap by score. On equal scores the later document
// position is considered worse, so it is evicted first and ties come back
// in document order.
type candidateHeap []candidate

func (h candidateHeap) Len() int { return len(h) }

func (h candidateHeap) Less(i, j int) bool {
	if h[i].score != h[j].score {
		return h[i].score < h[j].score
	}
	return h[i].pos > h[j].pos
}

func (h candidateHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *candidateHeap) Push(x any) { *h = append(*h, x.(candidate)) }

func (h *candidateHeap) Pop() any {
	old := *h
	n := len(old)
	c := old[n-1]
	*h = old[:n-1]
	return c
}

func dotProduct(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

func vectorNorm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}
