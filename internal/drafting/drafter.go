// Package drafting produces the cover letter typed into an application form.
package drafting

import (
	"context"
	_ "embed"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/spigell/listing-scout/internal/ai"
	"github.com/spigell/listing-scout/internal/utils"
)

//go:embed cover_letter.md
var coverLetterTemplate string

const (
	coverLetterSystem = "You write concise, specific cover letters for software job applications."

	// FallbackLetter is used when generation fails.
	FallbackLetter = "Hello! I came across this role and it lines up closely with the work I have been doing. " +
		"I enjoy building reliable software with small, focused teams and I would be glad to bring that experience here. " +
		"I would welcome the chance to talk about how I can help. Thank you for your time."

	// descriptions longer than this are cut before prompting
	maxDescriptionRunes = 8000
	defaultMaxLogLength = 200
)

type Drafter struct {
	generator ai.Generator
	maxLogLen int
	logger    *zap.Logger
}

func New(generator ai.Generator, maxLogLen int, logger *zap.Logger) *Drafter {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxLogLen <= 0 {
		maxLogLen = defaultMaxLogLength
	}
	return &Drafter{generator: generator, maxLogLen: maxLogLen, logger: logger}
}

// Draft returns a cover letter for the job. It never fails: when generation
// errors or returns nothing, FallbackLetter is returned and generated is false.
func (d *Drafter) Draft(ctx context.Context, description, profileRawText string) (letter string, generated bool) {
	if d == nil || d.generator == nil {
		return FallbackLetter, false
	}

	prompt := buildPrompt(description, profileRawText)

	d.logger.Debug("cover letter request",
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", utils.TruncateForLog(prompt, d.maxLogLen)),
	)

	out, err := d.generator.GenerateContent(ctx, coverLetterSystem, prompt)
	if err != nil {
		d.logger.Warn("cover letter generation failed, using fallback", zap.Error(err))
		return FallbackLetter, false
	}

	out = cleanLetter(out)
	if out == "" {
		d.logger.Warn("cover letter generation returned empty text, using fallback")
		return FallbackLetter, false
	}

	d.logger.Debug("cover letter response",
		zap.Int("response_length", utf8.RuneCountInString(out)),
		zap.String("response_preview", utils.TruncateForLog(out, d.maxLogLen)),
	)

	return out, true
}

func buildPrompt(description, resume string) string {
	description = strings.TrimSpace(description)
	if runes := []rune(description); len(runes) > maxDescriptionRunes {
		description = string(runes[:maxDescriptionRunes])
	}

	prompt := strings.ReplaceAll(coverLetterTemplate, "{{JOB_DESCRIPTION}}", description)
	return strings.ReplaceAll(prompt, "{{RESUME}}", strings.TrimSpace(resume))
}

// cleanLetter strips code fences some models wrap plain text in.
func cleanLetter(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```text")
		raw = strings.TrimPrefix(raw, "```")
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	return strings.TrimSpace(raw)
}
