package filtering

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spigell/listing-scout/internal/relevance"
)

type relevanceFilter struct {
	stage   relevance.Stage
	enabled bool
	reason  string
}

// NewRelevance creates the embedding similarity gate for stage. Only a
// computed score below the threshold drops the candidate.
func NewRelevance(stage relevance.Stage) Filter {
	return &relevanceFilter{stage: stage, enabled: true}
}

func (f *relevanceFilter) Name() string { return "relevance_" + string(f.stage) }

func (f *relevanceFilter) Phase() Phase {
	if f.stage == relevance.StageDescription {
		return PhaseDescription
	}
	return PhaseTitle
}

func (f *relevanceFilter) Disable(reason string) {
	f.enabled = false
	f.reason = reason
}

func (f *relevanceFilter) IsEnabled() bool { return f.enabled }

func (f *relevanceFilter) Validate(*Config) error { return nil }

func (f *relevanceFilter) Apply(ctx context.Context, deps Deps, c *Candidate) (Decision, error) {
	if deps.Classifier == nil {
		return Decision{}, fmt.Errorf("relevance classifier is required")
	}

	text := c.Title
	if f.stage == relevance.StageDescription {
		text = c.Description
	}

	outcome := deps.Classifier.Classify(ctx, f.stage, text, deps.PersonaVector)

	fields := []zap.Field{
		zap.String("stage", string(f.stage)),
		zap.String("url", c.URL),
		zap.String("verdict", outcome.Verdict.String()),
	}
	if score, ok := outcome.Score(); ok {
		fields = append(fields, zap.Int("score", score))
	}
	deps.Logger.Debug("relevance verdict", fields...)

	if outcome.Passes() {
		return Decision{Keep: true, Outcome: &outcome}, nil
	}

	score, _ := outcome.Score()
	threshold := int(deps.Classifier.Threshold(f.stage)*100 + 0.5)

	return Decision{
		Reason:  fmt.Sprintf("%s match score %d below threshold %d", f.stage, score, threshold),
		Record:  true,
		Outcome: &outcome,
	}, nil
}

func (f *relevanceFilter) Status() Status {
	return Status{Name: f.Name(), Phase: f.Phase(), Enabled: f.enabled, Reason: f.reason}
}
