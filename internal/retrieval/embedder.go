package retrieval

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// embedConcurrency bounds parallel embedding calls so a large document
// doesn't overwhelm the local model server.
const embedConcurrency = 4

// EmbeddingClient produces a vector for a piece of text using the named
// model. *ollama.Client satisfies this.
type EmbeddingClient interface {
	Embed(ctx context.Context, model, text string) ([]float32, error)
}

// Embedder turns text into vectors with a fixed model.
type Embedder struct {
	client EmbeddingClient
	model  string
}

func NewEmbedder(client EmbeddingClient, model string) *Embedder {
	return &Embedder{client: client, model: model}
}

// Embed produces a single vector for text.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vec, err := e.client.Embed(ctx, e.model, text)
	if err != nil {
		return nil, fmt.Errorf("embedding with %s: %w", e.model, err)
	}
	if len(vec) == 0 {
		return nil, fmt.Errorf("model %s returned an empty vector", e.model)
	}
	return vec, nil
}

// EmbedBatch produces one vector per text, preserving order. Any single
// failure fails the batch.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(embedConcurrency)
	for i, text := range texts {
		g.Go(func() error {
			vec, err := e.Embed(ctx, text)
			if err != nil {
				return fmt.Errorf("text %d: %w", i, err)
			}
			vectors[i] = vec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return vectors, nil
}
