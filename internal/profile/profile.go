// Package profile builds and stores the matching profile. The persona vector
// is the embedding of a generated "ideal next job" description rather than of
// the resume, so it lives in the same space as the postings it is compared to.
package profile

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/spigell/listing-scout/internal/ai"
	"github.com/spigell/listing-scout/internal/similarity"
	"github.com/spigell/listing-scout/internal/utils"
)

//go:embed persona.md
var personaTemplate string

const personaSystem = "You write realistic job descriptions."

var ErrNoProfile = errors.New("no profile loaded")

type Profile struct {
	RawText       string    `json:"raw_text"`
	PersonaText   string    `json:"persona_text"`
	PersonaVector []float32 `json:"persona_vector"`
	ModelID       string    `json:"model_id"`
	HasProfile    bool      `json:"has_profile"`
	CreatedAt     time.Time `json:"created_at"`
}

// Usable reports whether the profile can drive classification with vectors
// from embeddingModel.
func (p *Profile) Usable(embeddingModel string) error {
	if p == nil || !p.HasProfile {
		return ErrNoProfile
	}
	if len(p.PersonaVector) == 0 {
		return fmt.Errorf("%w: persona vector is empty", ErrNoProfile)
	}
	if strings.TrimSpace(p.RawText) == "" {
		return fmt.Errorf("%w: resume text is empty", ErrNoProfile)
	}
	if embeddingModel != "" && p.ModelID != "" && p.ModelID != embeddingModel {
		return fmt.Errorf("profile was embedded with %q but the configured embedding model is %q; rebuild it", p.ModelID, embeddingModel)
	}
	return nil
}

type Builder struct {
	generator ai.Generator
	embedder  ai.Embedder
	modelID   string
	maxLogLen int
	logger    *zap.Logger
}

func NewBuilder(generator ai.Generator, embedder ai.Embedder, modelID string, maxLogLen int, logger *zap.Logger) *Builder {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxLogLen <= 0 {
		maxLogLen = 200
	}
	return &Builder{generator: generator, embedder: embedder, modelID: modelID, maxLogLen: maxLogLen, logger: logger}
}

// Build generates the persona text from the resume and embeds it.
func (b *Builder) Build(ctx context.Context, rawText string) (*Profile, error) {
	rawText = strings.TrimSpace(rawText)
	if rawText == "" {
		return nil, errors.New("resume text is empty")
	}

	prompt := strings.ReplaceAll(personaTemplate, "{{RESUME}}", rawText)

	b.logger.Debug("generating persona",
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", utils.TruncateForLog(prompt, b.maxLogLen)),
	)

	persona, err := b.generator.GenerateContent(ctx, personaSystem, prompt)
	if err != nil {
		return nil, fmt.Errorf("generate persona: %w", err)
	}

	persona = similarity.Normalize(persona)
	if persona == "" {
		return nil, errors.New("generated persona is empty")
	}

	b.logger.Info("persona generated", zap.String("persona_preview", utils.TruncateForLog(persona, b.maxLogLen)))

	vector, err := b.embedder.Embed(ctx, persona)
	if err != nil {
		return nil, fmt.Errorf("embed persona: %w", err)
	}
	if len(vector) == 0 {
		return nil, errors.New("persona embedding is empty")
	}

	return &Profile{
		RawText:       rawText,
		PersonaText:   persona,
		PersonaVector: vector,
		ModelID:       b.modelID,
		HasProfile:    true,
		CreatedAt:     time.Now().UTC(),
	}, nil
}

// Load reads a profile file. A missing file yields ErrNoProfile.
func Load(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s does not exist", ErrNoProfile, path)
		}
		return nil, fmt.Errorf("reading profile %q: %w", path, err)
	}

	var p Profile
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parsing profile %q: %w", path, err)
	}
	if !p.HasProfile {
		return nil, ErrNoProfile
	}
	return &p, nil
}

// Save writes the profile atomically.
func Save(path string, p *Profile) error {
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return err
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
