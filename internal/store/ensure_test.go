package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spigell/listing-scout/internal/domain"
)

type fakeRecords struct {
	findErr   error
	createErr error
	creates   int
}

func (f *fakeRecords) FindCompany(context.Context, string, string) (*domain.Company, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	return &domain.Company{}, nil
}

func (f *fakeRecords) CreateCompany(_ context.Context, _ string, c *domain.Company) (*domain.Company, error) {
	f.creates++
	return c, f.createErr
}

func (f *fakeRecords) FindApplication(context.Context, string, string) (*domain.Application, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	return &domain.Application{}, nil
}

func (f *fakeRecords) CreateApplication(_ context.Context, _ string, a *domain.Application) (*domain.Application, error) {
	f.creates++
	return a, f.createErr
}

func (f *fakeRecords) ListApplications(context.Context, string) ([]domain.Application, error) {
	return nil, nil
}

func TestEnsureApplication(t *testing.T) {
	ctx := context.Background()
	app := &domain.Application{JobURL: "https://example.com/jobs/1", Status: domain.ApplicationSkipped}

	tests := []struct {
		name        string
		records     *fakeRecords
		wantCreated bool
		wantCreates int
		wantErr     bool
	}{
		{name: "already exists", records: &fakeRecords{}, wantCreates: 0},
		{name: "created", records: &fakeRecords{findErr: ErrNotFound}, wantCreated: true, wantCreates: 1},
		{name: "conflict is success", records: &fakeRecords{findErr: ErrNotFound, createErr: ErrConflict}, wantCreates: 1},
		{name: "lookup failure", records: &fakeRecords{findErr: ErrUnauthorized}, wantErr: true},
		{name: "create failure", records: &fakeRecords{findErr: ErrNotFound, createErr: errors.New("boom")}, wantCreates: 1, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			created, err := EnsureApplication(ctx, tt.records, "u1", app)
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.wantCreated, created)
			assert.Equal(t, tt.wantCreates, tt.records.creates)
		})
	}
}

func TestEnsureCompanyConflict(t *testing.T) {
	records := &fakeRecords{findErr: ErrNotFound, createErr: ErrConflict}
	created, err := EnsureCompany(context.Background(), records, "u1", &domain.Company{URL: "https://example.com/companies/a"})
	require.NoError(t, err)
	assert.False(t, created)
}

func TestExists(t *testing.T) {
	ok, err := Exists(nil)
	assert.True(t, ok)
	assert.NoError(t, err)

	ok, err = Exists(ErrNotFound)
	assert.False(t, ok)
	assert.NoError(t, err)

	_, err = Exists(ErrUnauthorized)
	assert.ErrorIs(t, err, ErrUnauthorized)
}
