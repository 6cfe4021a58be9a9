package filtering

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spigell/listing-scout/internal/relevance"
)

type fakeClassifier struct {
	outcomes map[relevance.Stage]relevance.Outcome
	calls    []relevance.Stage
}

func (f *fakeClassifier) Classify(_ context.Context, stage relevance.Stage, _ string, _ []float32) relevance.Outcome {
	f.calls = append(f.calls, stage)
	if o, ok := f.outcomes[stage]; ok {
		return o
	}
	return relevance.NewIndeterminate("no outcome")
}

func (f *fakeClassifier) Threshold(relevance.Stage) float64 { return relevance.DefaultThreshold }

func newPipeline(t *testing.T, cfg *Config, cls *fakeClassifier) *Filtering {
	t.Helper()
	f, err := New(cfg, Deps{Logger: zap.NewNop(), Classifier: cls, PersonaVector: []float32{1, 0}}, Default())
	require.NoError(t, err)
	return f
}

func TestTitleHeuristicDropsActionsWithoutClassifier(t *testing.T) {
	cls := &fakeClassifier{}
	f := newPipeline(t, &Config{}, cls)

	for _, title := range []string{"Apply", "View all jobs", "Learn more", "Go", "  "} {
		d, err := f.Run(context.Background(), PhaseTitle, &Candidate{Title: title, URL: "https://x/jobs/1"})
		require.NoError(t, err)
		assert.False(t, d.Keep, title)
		assert.False(t, d.Record, title)
	}
	assert.Empty(t, cls.calls)
	assert.Equal(t, 5, f.Stats("title_heuristic").Dropped)
}

func TestTitleHeuristicCustomWords(t *testing.T) {
	cls := &fakeClassifier{}
	f := newPipeline(t, &Config{ActionWords: []string{"Hiring"}, MinTitleLength: 3}, cls)

	d, err := f.Run(context.Background(), PhaseTitle, &Candidate{Title: "hiring now"})
	require.NoError(t, err)
	assert.False(t, d.Keep)

	d, err = f.Run(context.Background(), PhaseTitle, &Candidate{Title: "SRE"})
	require.NoError(t, err)
	assert.True(t, d.Keep)
	assert.Equal(t, []relevance.Stage{relevance.StageTitle}, cls.calls)
}

func TestRelevanceDropRecordsScore(t *testing.T) {
	cls := &fakeClassifier{outcomes: map[relevance.Stage]relevance.Outcome{
		relevance.StageTitle: relevance.NewNotRelevant(31, 0.31),
	}}
	f := newPipeline(t, nil, cls)

	d, err := f.Run(context.Background(), PhaseTitle, &Candidate{Title: "Account Executive", URL: "https://x/jobs/2"})
	require.NoError(t, err)
	assert.False(t, d.Keep)
	assert.True(t, d.Record)
	assert.Equal(t, "title match score 31 below threshold 45", d.Reason)
	require.NotNil(t, d.Outcome)
	assert.Equal(t, relevance.NotRelevant, d.Outcome.Verdict)
}

func TestRelevancePassCarriesOutcome(t *testing.T) {
	cls := &fakeClassifier{outcomes: map[relevance.Stage]relevance.Outcome{
		relevance.StageDescription: relevance.NewRelevant(72, 0.72),
	}}
	f := newPipeline(t, nil, cls)

	d, err := f.Run(context.Background(), PhaseDescription, &Candidate{Title: "Platform Engineer", Description: "Go, Kubernetes"})
	require.NoError(t, err)
	assert.True(t, d.Keep)
	require.NotNil(t, d.Outcome)
	score, ok := d.Outcome.Score()
	assert.True(t, ok)
	assert.Equal(t, 72, score)
}

func TestIndeterminatePasses(t *testing.T) {
	f := newPipeline(t, nil, &fakeClassifier{})

	d, err := f.Run(context.Background(), PhaseDescription, &Candidate{Title: "Backend Engineer"})
	require.NoError(t, err)
	assert.True(t, d.Keep)
	require.NotNil(t, d.Outcome)
	_, ok := d.Outcome.Score()
	assert.False(t, ok)
}

func TestExcludedCompanies(t *testing.T) {
	f := newPipeline(t, &Config{ExcludedCompanies: []string{" Acme "}}, &fakeClassifier{})

	d, err := f.Run(context.Background(), PhaseCompany, &Candidate{URL: "https://w/companies/acme-robotics"})
	require.NoError(t, err)
	assert.False(t, d.Keep)
	assert.Contains(t, d.Reason, "acme")

	d, err = f.Run(context.Background(), PhaseCompany, &Candidate{URL: "https://w/companies/globex"})
	require.NoError(t, err)
	assert.True(t, d.Keep)
}

func TestDisabledFilterIsSkipped(t *testing.T) {
	cls := &fakeClassifier{outcomes: map[relevance.Stage]relevance.Outcome{
		relevance.StageTitle: relevance.NewNotRelevant(10, 0.1),
	}}
	f := newPipeline(t, &Config{Disabled: []string{"relevance_title"}}, cls)

	d, err := f.Run(context.Background(), PhaseTitle, &Candidate{Title: "Sales Lead"})
	require.NoError(t, err)
	assert.True(t, d.Keep)
	assert.Empty(t, cls.calls)

	var found bool
	for _, s := range f.Describe() {
		if s.Name == "relevance_title" {
			found = true
			assert.False(t, s.Enabled)
			assert.Equal(t, "disabled in config", s.Reason)
		}
	}
	assert.True(t, found)
}

func TestMandatoryFilterCannotBeDisabled(t *testing.T) {
	for _, name := range []string{"title_heuristic", "excluded_companies"} {
		t.Run(name, func(t *testing.T) {
			_, err := New(&Config{Disabled: []string{name}}, Deps{Logger: zap.NewNop()}, Default())
			require.Error(t, err)
			assert.Contains(t, err.Error(), name)
			assert.Contains(t, err.Error(), "mandatory")
		})
	}
}

func TestRelevanceRequiresClassifier(t *testing.T) {
	f, err := New(nil, Deps{}, []Filter{NewRelevance(relevance.StageTitle)})
	require.NoError(t, err)

	_, err = f.Run(context.Background(), PhaseTitle, &Candidate{Title: "Engineer"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "relevance_title")
}
