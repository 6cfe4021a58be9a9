package sqlstore

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spigell/listing-scout/internal/domain"
	"github.com/spigell/listing-scout/internal/store"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenMemory(nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestOpenUnsupportedDriver(t *testing.T) {
	_, err := Open("mysql", "", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported store driver")
}

func TestOpenSQLiteErrorOnBadPath(t *testing.T) {
	bad := filepath.Join(t.TempDir(), "missing", "scout.db")
	db, err := OpenSQLite(bad)
	assert.Error(t, err)
	assert.Nil(t, db)
}

func TestCompanyLifecycle(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.FindCompany(ctx, "u1", "https://example.com/companies/acme")
	assert.ErrorIs(t, err, store.ErrNotFound)

	created, err := s.CreateCompany(ctx, "u1", &domain.Company{
		URL:         "https://example.com/companies/acme",
		DisplayName: "Acme",
		Status:      domain.CompanyVisited,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "u1", created.UserID)
	assert.False(t, created.VisitedAt.IsZero())

	found, err := s.FindCompany(ctx, "u1", "https://example.com/companies/acme")
	require.NoError(t, err)
	assert.Equal(t, created.ID, found.ID)
	assert.Equal(t, domain.CompanyVisited, found.Status)

	_, err = s.CreateCompany(ctx, "u1", &domain.Company{URL: "https://example.com/companies/acme", Status: domain.CompanyVisited})
	assert.ErrorIs(t, err, store.ErrConflict)

	// Another user may track the same company.
	_, err = s.CreateCompany(ctx, "u2", &domain.Company{URL: "https://example.com/companies/acme", Status: domain.CompanyVisited})
	assert.NoError(t, err)
}

func TestMissingUserIsUnauthorized(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.FindCompany(ctx, "", "x")
	assert.ErrorIs(t, err, store.ErrUnauthorized)
	_, err = s.CreateApplication(ctx, " ", &domain.Application{JobURL: "x", Status: domain.ApplicationSkipped})
	assert.ErrorIs(t, err, store.ErrUnauthorized)
	_, err = s.ListApplications(ctx, "")
	assert.ErrorIs(t, err, store.ErrUnauthorized)
}

func TestApplicationsNewestFirst(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	score := 61.0
	for i, url := range []string{"https://example.com/jobs/1", "https://example.com/jobs/2", "https://example.com/jobs/3"} {
		_, err := s.CreateApplication(ctx, "u1", &domain.Application{
			JobTitle:   "Engineer",
			JobURL:     url,
			BodyText:   "reason",
			Status:     domain.ApplicationSkipped,
			MatchScore: &score,
			AppliedAt:  base.Add(time.Duration(i) * time.Hour),
		})
		require.NoError(t, err)
	}
	_, err := s.CreateApplication(ctx, "u2", &domain.Application{JobURL: "https://example.com/jobs/9", Status: domain.ApplicationSubmitted})
	require.NoError(t, err)

	apps, err := s.ListApplications(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, apps, 3)
	assert.Equal(t, "https://example.com/jobs/3", apps[0].JobURL)
	assert.Equal(t, "https://example.com/jobs/1", apps[2].JobURL)
	require.NotNil(t, apps[0].MatchScore)
	assert.Equal(t, 61.0, *apps[0].MatchScore)

	_, err = s.CreateApplication(ctx, "u1", &domain.Application{JobURL: "https://example.com/jobs/2", Status: domain.ApplicationSubmitted})
	assert.ErrorIs(t, err, store.ErrConflict)

	_, err = s.CreateApplication(ctx, "u1", &domain.Application{JobURL: "https://example.com/jobs/4", Status: "unknown"})
	assert.Error(t, err)
}

func TestEmbeddingUpsert(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.FindEmbedding(ctx, "m1", "h1")
	assert.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, s.SaveEmbedding(ctx, &domain.Embedding{ModelID: "m1", ContentHash: "h1", NormalizedText: "a", Vector: domain.Vector{1, 2}}))
	require.NoError(t, s.SaveEmbedding(ctx, &domain.Embedding{ModelID: "m1", ContentHash: "h1", NormalizedText: "b", Vector: domain.Vector{3}}))
	require.NoError(t, s.SaveEmbedding(ctx, &domain.Embedding{ModelID: "m2", ContentHash: "h1", NormalizedText: "a", Vector: domain.Vector{9}}))

	got, err := s.FindEmbedding(ctx, "m1", "h1")
	require.NoError(t, err)
	assert.Equal(t, "b", got.NormalizedText)
	assert.Equal(t, domain.Vector{3}, got.Vector)

	var count int64
	require.NoError(t, s.db.Model(&domain.Embedding{}).Count(&count).Error)
	assert.EqualValues(t, 2, count)

	assert.Error(t, s.SaveEmbedding(ctx, &domain.Embedding{ModelID: "m1"}))
}

func TestConcurrentEnsureApplicationCreatesOneRecord(t *testing.T) {
	ctx := context.Background()

	s, err := Open(DriverSQLite, filepath.Join(t.TempDir(), "scout.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	const workers = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
		errs    []error
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := store.EnsureApplication(ctx, s, "u1", &domain.Application{
				JobURL: "https://example.com/jobs/race",
				Status: domain.ApplicationSkipped,
			})
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
			}
			if ok {
				created++
			}
		}()
	}
	wg.Wait()

	for _, err := range errs {
		assert.False(t, errors.Is(err, store.ErrConflict), "conflict must be absorbed: %v", err)
	}
	require.Empty(t, errs)
	assert.Equal(t, 1, created)

	apps, err := s.ListApplications(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, apps, 1)
}
