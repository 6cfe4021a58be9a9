package filtering

import (
	"context"
	"strings"
)

type excludedCompaniesFilter struct {
	patterns []string
}

// NewExcludedCompanies creates a filter that drops companies whose url or
// name contains one of the configured patterns.
func NewExcludedCompanies() Filter {
	return &excludedCompaniesFilter{}
}

func (f *excludedCompaniesFilter) Name() string { return "excluded_companies" }

func (f *excludedCompaniesFilter) Phase() Phase { return PhaseCompany }

func (f *excludedCompaniesFilter) Disable(string) {}

func (f *excludedCompaniesFilter) IsEnabled() bool { return true }

func (f *excludedCompaniesFilter) Validate(cfg *Config) error {
	f.patterns = nil
	if cfg == nil {
		return nil
	}
	for _, p := range cfg.ExcludedCompanies {
		if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
			f.patterns = append(f.patterns, p)
		}
	}
	return nil
}

func (f *excludedCompaniesFilter) Apply(_ context.Context, _ Deps, c *Candidate) (Decision, error) {
	url, name := strings.ToLower(c.URL), strings.ToLower(c.Company)
	for _, p := range f.patterns {
		if strings.Contains(url, p) || (name != "" && strings.Contains(name, p)) {
			return Decision{Reason: "company excluded by pattern " + p}, nil
		}
	}
	return keep(), nil
}

func (f *excludedCompaniesFilter) Status() Status {
	details := map[string]string{}
	if len(f.patterns) > 0 {
		details["patterns"] = strings.Join(f.patterns, ",")
	}
	return Status{Name: f.Name(), Phase: f.Phase(), Enabled: true, Details: details}
}
