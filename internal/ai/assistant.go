package ai

import (
	"context"
)

// Embedder turns text into an embedding vector. Implementations may return an
// empty vector on failure; callers treat that as an indeterminate result.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Generator produces free text from a system instruction and a user message.
type Generator interface {
	GenerateContent(ctx context.Context, system, message string) (string, error)
}

// Provider is a backend that supports both generation and embeddings.
type Provider interface {
	Embedder
	Generator
	// EmbeddingModel identifies vectors in the embedding cache.
	EmbeddingModel() string
	Name() string
}
