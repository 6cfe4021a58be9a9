// Package langchain adapts langchaingo models to ai.Provider so that
// OpenAI-compatible endpoints and Google AI can back the engine.
package langchain

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/googleai"
	"github.com/tmc/langchaingo/llms/openai"
	"go.uber.org/zap"

	"github.com/spigell/listing-scout/internal/ai"
)

const (
	BackendOpenAI   = "openai"
	BackendGoogleAI = "googleai"

	defaultOpenAIModel          = "gpt-4o-mini"
	defaultOpenAIEmbeddingModel = "text-embedding-3-small"
	defaultGoogleModel          = "gemini-2.5-flash"
	defaultGoogleEmbeddingModel = "text-embedding-004"
)

type Config struct {
	Backend        string
	APIKey         string
	BaseURL        string
	Model          string
	EmbeddingModel string
}

type embeddingModel interface {
	CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error)
}

type Provider struct {
	backend        string
	model          llms.Model
	embedder       embeddingModel
	embeddingModel string
	logger         *zap.Logger
}

var _ ai.Provider = (*Provider)(nil)

func New(ctx context.Context, cfg Config, logger *zap.Logger) (*Provider, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, fmt.Errorf("%s api key is required", cfg.Backend)
	}

	backend := strings.ToLower(strings.TrimSpace(cfg.Backend))
	switch backend {
	case BackendOpenAI, "":
		model := firstNonEmpty(cfg.Model, defaultOpenAIModel)
		embedding := firstNonEmpty(cfg.EmbeddingModel, defaultOpenAIEmbeddingModel)

		opts := []openai.Option{
			openai.WithToken(apiKey),
			openai.WithModel(model),
			openai.WithEmbeddingModel(embedding),
		}
		if base := strings.TrimSpace(cfg.BaseURL); base != "" {
			opts = append(opts, openai.WithBaseURL(base))
		}

		llm, err := openai.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("create openai client: %w", err)
		}
		return &Provider{backend: BackendOpenAI, model: llm, embedder: llm, embeddingModel: embedding, logger: logger}, nil

	case BackendGoogleAI:
		model := firstNonEmpty(cfg.Model, defaultGoogleModel)
		embedding := firstNonEmpty(cfg.EmbeddingModel, defaultGoogleEmbeddingModel)

		llm, err := googleai.New(ctx,
			googleai.WithAPIKey(apiKey),
			googleai.WithDefaultModel(model),
			googleai.WithDefaultEmbeddingModel(embedding),
		)
		if err != nil {
			return nil, fmt.Errorf("create googleai client: %w", err)
		}
		return &Provider{backend: BackendGoogleAI, model: llm, embedder: llm, embeddingModel: embedding, logger: logger}, nil

	default:
		return nil, fmt.Errorf("unsupported langchain backend: %s", cfg.Backend)
	}
}

// GenerateContent prepends the system instruction to the message since not
// every backend accepts a separate system role.
func (p *Provider) GenerateContent(ctx context.Context, system, message string) (string, error) {
	if p == nil || p.model == nil {
		return "", errors.New("langchain provider is not initialized")
	}

	message = strings.TrimSpace(message)
	if message == "" {
		return "", errors.New("message must not be empty")
	}

	prompt := message
	if system = strings.TrimSpace(system); system != "" {
		prompt = system + "\n\n" + message
	}

	out, err := llms.GenerateFromSinglePrompt(ctx, p.model, prompt)
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}

	out = strings.TrimSpace(out)
	if out == "" {
		return "", fmt.Errorf("%s returned empty response", p.backend)
	}
	return out, nil
}

func (p *Provider) Embed(ctx context.Context, text string) ([]float32, error) {
	if p == nil || p.embedder == nil {
		return nil, errors.New("langchain embedder is not initialized")
	}

	vectors, err := p.embedder.CreateEmbedding(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("create embedding: %w", err)
	}
	if len(vectors) == 0 {
		return nil, nil
	}
	return vectors[0], nil
}

func (p *Provider) EmbeddingModel() string { return p.embeddingModel }

func (p *Provider) Name() string { return p.backend }

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
