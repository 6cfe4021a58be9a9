package filtering

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

const defaultMinTitleLength = 5

var defaultActionWords = []string{
	"apply", "view", "see", "learn", "show", "read", "save", "share", "more", "details", "back",
}

type titleHeuristicFilter struct {
	minLength int
	pattern   *regexp.Regexp
}

// NewTitleHeuristic creates a filter that drops link texts that cannot be job
// titles: too short, or starting with a generic action word. It runs before
// any AI call.
func NewTitleHeuristic() Filter {
	return &titleHeuristicFilter{}
}

func (f *titleHeuristicFilter) Name() string { return "title_heuristic" }

func (f *titleHeuristicFilter) Phase() Phase { return PhaseTitle }

func (f *titleHeuristicFilter) Disable(string) {}

func (f *titleHeuristicFilter) IsEnabled() bool { return true }

func (f *titleHeuristicFilter) Validate(cfg *Config) error {
	f.minLength = defaultMinTitleLength
	words := defaultActionWords

	if cfg != nil {
		if cfg.MinTitleLength > 0 {
			f.minLength = cfg.MinTitleLength
		}
		if len(cfg.ActionWords) > 0 {
			words = cfg.ActionWords
		}
	}

	quoted := make([]string, 0, len(words))
	for _, w := range words {
		if w = strings.TrimSpace(w); w != "" {
			quoted = append(quoted, regexp.QuoteMeta(w))
		}
	}
	if len(quoted) == 0 {
		f.pattern = nil
		return nil
	}

	pattern, err := regexp.Compile(`(?i)^(` + strings.Join(quoted, "|") + `)\b`)
	if err != nil {
		return fmt.Errorf("compile action words: %w", err)
	}
	f.pattern = pattern
	return nil
}

func (f *titleHeuristicFilter) Apply(_ context.Context, _ Deps, c *Candidate) (Decision, error) {
	title := strings.TrimSpace(c.Title)

	if utf8.RuneCountInString(title) < f.minLength {
		return Decision{Reason: "title too short"}, nil
	}
	if f.pattern != nil && f.pattern.MatchString(title) {
		return Decision{Reason: "title is a generic action"}, nil
	}
	return keep(), nil
}

func (f *titleHeuristicFilter) Status() Status {
	details := map[string]string{"min_length": strconv.Itoa(f.minLength)}
	if f.pattern != nil {
		details["pattern"] = f.pattern.String()
	}
	return Status{Name: f.Name(), Phase: f.Phase(), Enabled: true, Details: details}
}
