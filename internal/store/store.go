// Package store describes the persistence collaborator used by the traversal
// engine. Records are scoped by an opaque owning-user id and the uniqueness of
// (user, url) and (user, job url) is enforced by the backing store.
package store

import (
	"context"
	"errors"

	"github.com/spigell/listing-scout/internal/domain"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrUnauthorized = errors.New("unauthorized")
)

// Records is the company/application part of the store.
type Records interface {
	FindCompany(ctx context.Context, userID, url string) (*domain.Company, error)
	CreateCompany(ctx context.Context, userID string, company *domain.Company) (*domain.Company, error)
	FindApplication(ctx context.Context, userID, jobURL string) (*domain.Application, error)
	CreateApplication(ctx context.Context, userID string, app *domain.Application) (*domain.Application, error)
	// ListApplications returns records ordered newest-first.
	ListApplications(ctx context.Context, userID string) ([]domain.Application, error)
}

// EmbeddingCache persists embedding vectors by (model, content hash).
type EmbeddingCache interface {
	FindEmbedding(ctx context.Context, modelID, contentHash string) (*domain.Embedding, error)
	// SaveEmbedding inserts the entry or overwrites the one with the same key.
	SaveEmbedding(ctx context.Context, entry *domain.Embedding) error
}

type Store interface {
	Records
	EmbeddingCache
}
