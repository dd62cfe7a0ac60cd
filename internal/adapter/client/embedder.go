package client

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"
)

// Embedder turns normalized utterances into vectors for the semantic cache.
// Vectors always have the dimension the Qdrant collection was created with.
type Embedder struct {
	client *genai.Client
	model  string // e.g., "text-embedding-004"
	dim    int32
}

func NewEmbedderFromClient(c *genai.Client, model string, dim uint64) *Embedder {
	return &Embedder{
		client: c,
		model:  model,
		dim:    int32(dim),
	}
}

func (e *Embedder) CreateEmbedding(ctx context.Context, text string) ([]float32, error) {
	res, err := e.client.Models.EmbedContent(ctx, e.model, genai.Text(text), &genai.EmbedContentConfig{
		TaskType:             "SEMANTIC_SIMILARITY",
		OutputDimensionality: genai.Ptr(e.dim),
	})
	if err != nil {
		return nil, fmt.Errorf("embed with %s: %w", e.model, err)
	}
	if len(res.Embeddings) == 0 || res.Embeddings[0] == nil {
		return nil, errors.New("no embedding returned")
	}
	values := res.Embeddings[0].Values
	if len(values) != int(e.dim) {
		return nil, fmt.Errorf("embedding has %d dimensions, want %d", len(values), e.dim)
	}
	return values, nil
}
