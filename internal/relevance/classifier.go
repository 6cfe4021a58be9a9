// Package relevance scores text against the profile persona vector. Failures
// to obtain an embedding never reject a candidate: they yield Indeterminate.
package relevance

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/spigell/listing-scout/internal/ai"
	"github.com/spigell/listing-scout/internal/domain"
	"github.com/spigell/listing-scout/internal/metrics"
	"github.com/spigell/listing-scout/internal/similarity"
	"github.com/spigell/listing-scout/internal/store"
)

type Stage string

const (
	StageTitle       Stage = "title"
	StageDescription Stage = "description"
)

const DefaultThreshold = 0.45

type Config struct {
	TitleThreshold       float64 `mapstructure:"title-threshold"`
	DescriptionThreshold float64 `mapstructure:"description-threshold"`
}

type Classifier struct {
	embedder   ai.Embedder
	cache      store.EmbeddingCache
	modelID    string
	thresholds map[Stage]float64
	logger     *zap.Logger
}

// New builds a classifier. cache may be nil, in which case every call embeds.
// Non-positive thresholds fall back to DefaultThreshold.
func New(embedder ai.Embedder, cache store.EmbeddingCache, modelID string, cfg Config, logger *zap.Logger) *Classifier {
	if logger == nil {
		logger = zap.NewNop()
	}

	title, description := cfg.TitleThreshold, cfg.DescriptionThreshold
	if title <= 0 {
		title = DefaultThreshold
	}
	if description <= 0 {
		description = DefaultThreshold
	}

	return &Classifier{
		embedder: embedder,
		cache:    cache,
		modelID:  modelID,
		thresholds: map[Stage]float64{
			StageTitle:       title,
			StageDescription: description,
		},
		logger: logger,
	}
}

func (c *Classifier) Threshold(stage Stage) float64 {
	if t, ok := c.thresholds[stage]; ok {
		return t
	}
	return DefaultThreshold
}

// Classify compares text with the profile vector using the stage threshold.
func (c *Classifier) Classify(ctx context.Context, stage Stage, text string, profile []float32) Outcome {
	outcome := c.classify(ctx, stage, text, profile)
	metrics.JobEvaluations.WithLabelValues(string(stage), outcome.Verdict.String()).Inc()
	return outcome
}

func (c *Classifier) classify(ctx context.Context, stage Stage, text string, profile []float32) Outcome {
	if len(profile) == 0 {
		return NewIndeterminate("empty profile vector")
	}

	normalized := similarity.Normalize(text)
	if normalized == "" {
		return NewIndeterminate("empty text")
	}

	vector, err := c.Embedding(ctx, normalized)
	if err != nil {
		c.logger.Warn("embedding failed, passing candidate through",
			zap.String("stage", string(stage)),
			zap.Error(err),
		)
		return NewIndeterminate("embedding failed")
	}
	if len(vector) == 0 {
		return NewIndeterminate("empty embedding")
	}
	if len(vector) != len(profile) {
		c.logger.Warn("embedding dimension mismatch",
			zap.Int("text_dimensions", len(vector)),
			zap.Int("profile_dimensions", len(profile)),
		)
		return NewIndeterminate("dimension mismatch")
	}

	sim := similarity.CosineSimilarity(vector, profile)
	score := similarity.Score(sim)
	threshold := c.Threshold(stage)

	c.logger.Debug("relevance computed",
		zap.String("stage", string(stage)),
		zap.Float64("similarity", sim),
		zap.Int("score", score),
		zap.Float64("threshold", threshold),
	)

	if sim >= threshold {
		return NewRelevant(score, sim)
	}
	return NewNotRelevant(score, sim)
}

// Embedding returns the vector for already normalized text, reading through
// the cache. Cache write failures are logged and ignored.
func (c *Classifier) Embedding(ctx context.Context, normalized string) ([]float32, error) {
	if c.embedder == nil {
		return nil, errors.New("embedder is not configured")
	}

	hash := similarity.ContentHash(normalized)

	if c.cache != nil {
		entry, err := c.cache.FindEmbedding(ctx, c.modelID, hash)
		switch {
		case err == nil && entry.NormalizedText == normalized && len(entry.Vector) > 0:
			metrics.EmbeddingCache.WithLabelValues("hit").Inc()
			return entry.Vector, nil
		case err == nil:
			// Same key, different text: recompute and overwrite.
			metrics.EmbeddingCache.WithLabelValues("collision").Inc()
		case errors.Is(err, store.ErrNotFound):
			metrics.EmbeddingCache.WithLabelValues("miss").Inc()
		default:
			metrics.EmbeddingCache.WithLabelValues("error").Inc()
			c.logger.Debug("embedding cache lookup failed", zap.Error(err))
		}
	}

	vector, err := c.embedder.Embed(ctx, normalized)
	if err != nil {
		return nil, fmt.Errorf("embed: %w", err)
	}
	if len(vector) == 0 {
		return nil, nil
	}

	if c.cache != nil {
		entry := &domain.Embedding{
			ModelID:        c.modelID,
			ContentHash:    hash,
			NormalizedText: normalized,
			Vector:         vector,
		}
		if err := c.cache.SaveEmbedding(ctx, entry); err != nil {
			c.logger.Warn("saving embedding to cache", zap.Error(err))
		}
	}

	return vector, nil
}
