package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/listing-scout/internal/ai"
	"github.com/spigell/listing-scout/internal/ai/gemini"
	"github.com/spigell/listing-scout/internal/ai/langchain"
	"github.com/spigell/listing-scout/internal/logger"
	"github.com/spigell/listing-scout/internal/secrets"
	"github.com/spigell/listing-scout/internal/store"
	"github.com/spigell/listing-scout/internal/store/httpstore"
	"github.com/spigell/listing-scout/internal/store/sqlstore"
)

const driverHTTP = "http"

// providerKeyEnv lists the variables each provider's own SDK reads its key from.
var providerKeyEnv = map[string][]string{
	gemini.ProviderName:       {"GEMINI_API_KEY", "GOOGLE_API_KEY"},
	langchain.BackendOpenAI:   {"OPENAI_API_KEY"},
	langchain.BackendGoogleAI: {"GOOGLE_API_KEY"},
}

func newProvider(ctx context.Context, cfg *AIConfig, log *zap.Logger) (ai.Provider, error) {
	if cfg == nil {
		return nil, errors.New("ai config is required")
	}

	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	if provider == "" {
		provider = gemini.ProviderName
	}

	apiKey, err := secrets.Load(secrets.Source{
		Name:  provider + " api key",
		Value: cfg.APIKey,
		File:  cfg.APIKeyFile,
		Env:   providerKeyEnv[provider],
	})
	if err != nil {
		return nil, fmt.Errorf("%w (set ai.api-key-file or %s_AI_API_KEY)", err, envPrefix)
	}

	aiLogger := logger.WithFields(log, zap.Int("ai_retry_attempts", cfg.MaxRetries))

	switch provider {
	case gemini.ProviderName:
		g, err := gemini.NewGenerator(ctx, gemini.Config{
			APIKey:         apiKey,
			Model:          cfg.Model,
			EmbeddingModel: cfg.EmbeddingModel,
			MaxRetries:     cfg.MaxRetries,
		}, logger.WithCommonFields(aiLogger, provider, cfg.Model))
		if err != nil {
			return nil, err
		}
		return g, nil
	case langchain.BackendOpenAI, langchain.BackendGoogleAI:
		p, err := langchain.New(ctx, langchain.Config{
			Backend:        provider,
			APIKey:         apiKey,
			BaseURL:        cfg.BaseURL,
			Model:          cfg.Model,
			EmbeddingModel: cfg.EmbeddingModel,
		}, logger.WithCommonFields(aiLogger, provider, cfg.Model))
		if err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unsupported ai provider: %s", cfg.Provider)
	}
}

// openStore returns the configured store and a function releasing it.
func openStore(cfg *StoreConfig, log *zap.Logger) (store.Store, func(), error) {
	if cfg == nil {
		return nil, nil, errors.New("store config is required")
	}

	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == driverHTTP {
		if strings.TrimSpace(cfg.URL) == "" {
			return nil, nil, errors.New("store.url is required for the http driver")
		}
		return httpstore.New(cfg.URL, log.Named("store")), func() {}, nil
	}

	dsn := cfg.DSN
	if strings.TrimSpace(cfg.DSNFile) != "" {
		secret, err := secrets.Load(secrets.Source{Name: "store dsn", File: cfg.DSNFile})
		if err != nil {
			return nil, nil, err
		}
		dsn = secret
	}

	s, err := sqlstore.Open(driver, dsn, log.Named("store"))
	if err != nil {
		return nil, nil, err
	}

	return s, func() {
		if err := s.Close(); err != nil {
			log.Warn("closing store", zap.Error(err))
		}
	}, nil
}
