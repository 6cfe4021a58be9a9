// Package domain defines the records persisted by the store: company visit
// markers, application outcomes and cached embeddings.
package domain

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/datatypes"
)

type CompanyStatus string

// CompanyVisited means the company was attempted, not that every job on it
// was inspected. The record is written before the visit starts.
const CompanyVisited CompanyStatus = "visited"

type ApplicationStatus string

const (
	ApplicationSkipped   ApplicationStatus = "skipped"
	ApplicationSubmitted ApplicationStatus = "submitted"
)

// Company is a write-ahead marker used for dedup across runs. It is never updated.
type Company struct {
	ID          string        `gorm:"primaryKey;type:text" json:"id"`
	UserID      string        `gorm:"type:text;not null;uniqueIndex:idx_companies_user_url,priority:1" json:"user_id"`
	URL         string        `gorm:"type:text;not null;uniqueIndex:idx_companies_user_url,priority:2" json:"url"`
	DisplayName string        `gorm:"type:text" json:"display_name"`
	Status      CompanyStatus `gorm:"type:text;not null" json:"status"`
	VisitedAt   time.Time     `gorm:"not null" json:"visited_at"`
}

// Application records the single outcome for a job: a skip with its reason or
// a drafted cover letter.
type Application struct {
	ID          string            `gorm:"primaryKey;type:text" json:"id"`
	UserID      string            `gorm:"type:text;not null;uniqueIndex:idx_applications_user_job,priority:1" json:"user_id"`
	JobTitle    string            `gorm:"type:text" json:"job_title"`
	CompanyName string            `gorm:"type:text" json:"company_name"`
	JobURL      string            `gorm:"type:text;not null;uniqueIndex:idx_applications_user_job,priority:2" json:"job_url"`
	BodyText    string            `gorm:"type:text" json:"body_text"`
	Status      ApplicationStatus `gorm:"type:text;not null;index" json:"status"`
	MatchScore  *float64          `json:"match_score,omitempty"`
	AppliedAt   time.Time         `gorm:"not null;index" json:"applied_at"`
}

// Embedding is a cache entry keyed by (ModelID, ContentHash).
type Embedding struct {
	ID             string    `gorm:"primaryKey;type:text" json:"id"`
	ModelID        string    `gorm:"type:text;not null;uniqueIndex:idx_embeddings_model_hash,priority:1" json:"model_id"`
	ContentHash    string    `gorm:"type:text;not null;uniqueIndex:idx_embeddings_model_hash,priority:2" json:"content_hash"`
	NormalizedText string    `gorm:"type:text" json:"normalized_text"`
	Vector         Vector    `json:"vector"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (Company) TableName() string     { return "companies" }
func (Application) TableName() string { return "applications" }
func (Embedding) TableName() string   { return "embeddings" }

// Validate checks the fields a store requires before insert.
func (a *Application) Validate() error {
	if a.JobURL == "" {
		return errors.New("job url is required")
	}
	switch a.Status {
	case ApplicationSkipped, ApplicationSubmitted:
	default:
		return fmt.Errorf("invalid application status %q", a.Status)
	}
	return nil
}

// Validate checks the fields a store requires before insert.
func (c *Company) Validate() error {
	if c.URL == "" {
		return errors.New("company url is required")
	}
	if c.Status == "" {
		return errors.New("company status is required")
	}
	return nil
}

// Vector is an embedding stored as a JSON array: JSON on SQLite, JSONB on
// PostgreSQL.
type Vector = datatypes.JSONSlice[float32]
