package filtering

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/spigell/listing-scout/internal/relevance"
)

// Phase tells when a filter runs relative to navigation.
type Phase string

const (
	// PhaseCompany runs on new company links from the listing.
	PhaseCompany Phase = "company"
	// PhaseTitle runs on a job link before its page is opened.
	PhaseTitle Phase = "title"
	// PhaseDescription runs after the job description was read.
	PhaseDescription Phase = "description"
)

// Filter represents a single gate applied to a candidate.
type Filter interface {
	Name() string
	Phase() Phase
	Disable(reason string)
	IsEnabled() bool

	Validate(cfg *Config) error
	Apply(ctx context.Context, deps Deps, c *Candidate) (Decision, error)
}

// Candidate is a company or job under evaluation.
type Candidate struct {
	Title       string
	URL         string
	Company     string
	Description string
}

// Decision is the result of one filter. Record asks the caller to persist a
// skipped application with Reason.
type Decision struct {
	Keep    bool
	Reason  string
	Record  bool
	Outcome *relevance.Outcome
}

func keep() Decision { return Decision{Keep: true} }

// Classifier is satisfied by *relevance.Classifier.
type Classifier interface {
	Classify(ctx context.Context, stage relevance.Stage, text string, profile []float32) relevance.Outcome
	Threshold(stage relevance.Stage) float64
}

// Deps aggregates dependencies shared across all filters.
type Deps struct {
	Logger        *zap.Logger
	Classifier    Classifier
	PersonaVector []float32
}

// Step describes the accumulated result of a filter.
type Step struct {
	Initial int
	Dropped int
	Left    int
}

// Config contains configuration settings consumed by the filters.
type Config struct {
	MinTitleLength    int      `mapstructure:"min-title-length"`
	ActionWords       []string `mapstructure:"action-words"`
	ExcludedCompanies []string `mapstructure:"excluded-companies"`
	Disabled          []string `mapstructure:"disabled"`
}

// Status represents runtime information about a filter.
type Status struct {
	Name    string
	Phase   Phase
	Enabled bool
	Reason  string
	Details map[string]string
}

// statusProvider is implemented by filters that can supply detailed status information.
type statusProvider interface {
	Status() Status
}

// DisableByName marks a filter with the provided name as disabled while keeping it in the list.
func DisableByName(steps []Filter, name, reason string) {
	for _, step := range steps {
		if step.Name() == name {
			step.Disable(reason)
		}
	}
}

// Filtering runs filters phase by phase and keeps per-filter counters.
type Filtering struct {
	steps  []Filter
	deps   Deps
	logger *zap.Logger

	mu    sync.Mutex
	stats map[string]*Step
}

// New validates the enabled filters and returns the pipeline. Naming a
// mandatory filter in cfg.Disabled is an error.
func New(cfg *Config, deps Deps, steps []Filter) (*Filtering, error) {
	if cfg != nil {
		for _, name := range cfg.Disabled {
			DisableByName(steps, name, "disabled in config")
		}
		// some filters ignore Disable; refuse the config rather than run them anyway
		for _, name := range cfg.Disabled {
			for _, step := range steps {
				if step.Name() == name && step.IsEnabled() {
					return nil, fmt.Errorf("filter %q is mandatory and cannot be disabled", name)
				}
			}
		}
	}

	for _, step := range steps {
		if !step.IsEnabled() {
			continue
		}
		if err := step.Validate(cfg); err != nil {
			return nil, fmt.Errorf("%s: %w", step.Name(), err)
		}
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
		deps.Logger = logger
	}

	return &Filtering{steps: steps, deps: deps, logger: logger, stats: make(map[string]*Step)}, nil
}

// Run applies the enabled filters of phase in order and stops at the first
// drop. A filter error is returned as is with the filter name.
func (f *Filtering) Run(ctx context.Context, phase Phase, c *Candidate) (Decision, error) {
	last := keep()

	for _, step := range f.steps {
		if step.Phase() != phase || !step.IsEnabled() {
			continue
		}

		decision, err := step.Apply(ctx, f.deps, c)
		if err != nil {
			return Decision{}, fmt.Errorf("%s: %w", step.Name(), err)
		}

		f.count(step.Name(), decision.Keep)

		if !decision.Keep {
			f.logger.Info("candidate dropped",
				zap.String("filter", step.Name()),
				zap.String("url", c.URL),
				zap.String("title", c.Title),
				zap.String("reason", decision.Reason),
			)
			return decision, nil
		}
		if decision.Outcome != nil {
			last = decision
		}
	}

	return last, nil
}

func (f *Filtering) count(name string, kept bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	s, ok := f.stats[name]
	if !ok {
		s = &Step{}
		f.stats[name] = s
	}
	s.Initial++
	if kept {
		s.Left++
	} else {
		s.Dropped++
	}
}

// Stats returns a copy of the counters for name.
func (f *Filtering) Stats(name string) Step {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.stats[name]; ok {
		return *s
	}
	return Step{}
}

// LogSummary writes one entry per filter with its counters.
func (f *Filtering) LogSummary() {
	for _, step := range f.steps {
		info := f.Stats(step.Name())
		f.logger.Info("filter step",
			zap.String("name", step.Name()),
			zap.String("phase", string(step.Phase())),
			zap.Bool("enabled", step.IsEnabled()),
			zap.Int("initial", info.Initial),
			zap.Int("dropped", info.Dropped),
			zap.Int("left", info.Left),
		)
	}
}

func (f *Filtering) Describe() []Status { return Describe(f.steps) }

// Describe returns status entries for the provided filters.
func Describe(steps []Filter) []Status {
	statuses := make([]Status, 0, len(steps))
	for _, step := range steps {
		if reporter, ok := step.(statusProvider); ok {
			statuses = append(statuses, reporter.Status())
			continue
		}

		statuses = append(statuses, Status{
			Name:    step.Name(),
			Phase:   step.Phase(),
			Enabled: step.IsEnabled(),
		})
	}
	return statuses
}

// Default returns the standard pipeline order.
func Default() []Filter {
	return []Filter{
		NewExcludedCompanies(),
		NewTitleHeuristic(),
		NewRelevance(relevance.StageTitle),
		NewRelevance(relevance.StageDescription),
	}
}
