// Package sqlstore implements store.Store on top of GORM. SQLite is used for
// local runs and PostgreSQL for shared deployments.
package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/spigell/listing-scout/internal/domain"
	"github.com/spigell/listing-scout/internal/store"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type Store struct {
	db     *gorm.DB
	logger *zap.Logger
	now    func() time.Time
}

var _ store.Store = (*Store)(nil)

// Open connects to the database and migrates the schema.
func Open(driver, dsn string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var (
		db  *gorm.DB
		err error
	)

	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "", DriverSQLite:
		db, err = OpenSQLite(dsn)
	case DriverPostgres:
		db, err = gorm.Open(postgres.Open(dsn), gormConfig())
	case DriverMemory:
		return OpenMemory(logger)
	default:
		return nil, fmt.Errorf("unsupported store driver: %s", driver)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", driver, err)
	}

	if err := AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("migrate store: %w", err)
	}

	logger.Debug("store opened", zap.String("driver", driver))

	return New(db, logger), nil
}

// New wraps an already migrated connection.
func New(db *gorm.DB, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{db: db, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

// OpenSQLite opens a database file (or a file: URI) with WAL and a busy timeout.
func OpenSQLite(path string) (*gorm.DB, error) {
	if !strings.HasPrefix(path, "file:") {
		if dir := filepath.Dir(path); dir != "." {
			if _, err := os.Stat(dir); err != nil {
				return nil, err
			}
		}
	}

	db, err := gorm.Open(sqlite.Open(path), gormConfig())
	if err != nil {
		return nil, err
	}

	// SQLite allows a single writer; one connection keeps the pragmas below
	// in effect for every statement.
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(1)
		sqlDB.SetMaxIdleConns(1)
		sqlDB.SetConnMaxLifetime(0)
	}

	db.Exec("PRAGMA journal_mode=WAL;")
	db.Exec("PRAGMA synchronous=NORMAL;")
	db.Exec("PRAGMA busy_timeout=5000;")

	return db, nil
}

func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&domain.Company{},
		&domain.Application{},
		&domain.Embedding{},
	)
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *Store) FindCompany(ctx context.Context, userID, url string) (*domain.Company, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, store.ErrUnauthorized
	}

	var company domain.Company
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND url = ?", userID, url).
		First(&company).Error
	if err != nil {
		return nil, translate(err)
	}
	return &company, nil
}

func (s *Store) CreateCompany(ctx context.Context, userID string, company *domain.Company) (*domain.Company, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, store.ErrUnauthorized
	}
	if err := company.Validate(); err != nil {
		return nil, err
	}

	rec := *company
	rec.ID = uuid.NewString()
	rec.UserID = userID
	if rec.VisitedAt.IsZero() {
		rec.VisitedAt = s.now()
	}

	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return nil, translate(err)
	}
	return &rec, nil
}

func (s *Store) FindApplication(ctx context.Context, userID, jobURL string) (*domain.Application, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, store.ErrUnauthorized
	}

	var app domain.Application
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND job_url = ?", userID, jobURL).
		First(&app).Error
	if err != nil {
		return nil, translate(err)
	}
	return &app, nil
}

func (s *Store) CreateApplication(ctx context.Context, userID string, app *domain.Application) (*domain.Application, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, store.ErrUnauthorized
	}
	if err := app.Validate(); err != nil {
		return nil, err
	}

	rec := *app
	rec.ID = uuid.NewString()
	rec.UserID = userID
	if rec.AppliedAt.IsZero() {
		rec.AppliedAt = s.now()
	}

	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return nil, translate(err)
	}
	return &rec, nil
}

func (s *Store) ListApplications(ctx context.Context, userID string) ([]domain.Application, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, store.ErrUnauthorized
	}

	var apps []domain.Application
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("applied_at DESC").
		Order("id DESC").
		Find(&apps).Error
	if err != nil {
		return nil, err
	}
	return apps, nil
}

func (s *Store) FindEmbedding(ctx context.Context, modelID, contentHash string) (*domain.Embedding, error) {
	var entry domain.Embedding
	err := s.db.WithContext(ctx).
		Where("model_id = ? AND content_hash = ?", modelID, contentHash).
		First(&entry).Error
	if err != nil {
		return nil, translate(err)
	}
	return &entry, nil
}

func (s *Store) SaveEmbedding(ctx context.Context, entry *domain.Embedding) error {
	if entry.ModelID == "" || entry.ContentHash == "" {
		return errors.New("model id and content hash are required")
	}

	rec := *entry
	rec.ID = uuid.NewString()
	rec.UpdatedAt = s.now()

	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "model_id"}, {Name: "content_hash"}},
		DoUpdates: clause.AssignmentColumns([]string{"normalized_text", "vector", "updated_at"}),
	}).Create(&rec).Error
}

func gormConfig() *gorm.Config {
	return &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	}
}

// translate maps driver errors onto the store sentinels. glebarez/sqlite
// reports unique violations as plain text.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return store.ErrNotFound
	}

	low := strings.ToLower(err.Error())
	if errors.Is(err, gorm.ErrDuplicatedKey) ||
		strings.Contains(low, "unique constraint failed") ||
		strings.Contains(low, "constraint failed: unique") ||
		strings.Contains(low, "duplicate key value") {
		return fmt.Errorf("%w: %v", store.ErrConflict, err)
	}
	return err
}
