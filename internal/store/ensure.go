package store

import (
	"context"
	"errors"

	"github.com/spigell/listing-scout/internal/domain"
)

// EnsureCompany creates the company record unless one already exists. A
// conflict from the store counts as already handled. created reports whether
// this call produced the record.
func EnsureCompany(ctx context.Context, s Records, userID string, company *domain.Company) (created bool, err error) {
	if _, err := s.FindCompany(ctx, userID, company.URL); err == nil {
		return false, nil
	} else if !errors.Is(err, ErrNotFound) {
		return false, err
	}

	if _, err := s.CreateCompany(ctx, userID, company); err != nil {
		if errors.Is(err, ErrConflict) {
			return false, nil
		}
		return false, err
	}

	return true, nil
}

// EnsureApplication is the application counterpart of EnsureCompany.
func EnsureApplication(ctx context.Context, s Records, userID string, app *domain.Application) (created bool, err error) {
	if _, err := s.FindApplication(ctx, userID, app.JobURL); err == nil {
		return false, nil
	} else if !errors.Is(err, ErrNotFound) {
		return false, err
	}

	if _, err := s.CreateApplication(ctx, userID, app); err != nil {
		if errors.Is(err, ErrConflict) {
			return false, nil
		}
		return false, err
	}

	return true, nil
}

// Exists reports whether a lookup error means the record is present.
func Exists(err error) (bool, error) {
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}
