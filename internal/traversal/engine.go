// Package traversal walks the company listing one company and one job at a
// time, gates jobs through the filter pipeline and fills cover letters for the
// relevant ones. It never submits an application.
package traversal

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/spigell/listing-scout/internal/browser"
	"github.com/spigell/listing-scout/internal/domain"
	"github.com/spigell/listing-scout/internal/filtering"
	"github.com/spigell/listing-scout/internal/logger"
	"github.com/spigell/listing-scout/internal/metrics"
	"github.com/spigell/listing-scout/internal/profile"
	"github.com/spigell/listing-scout/internal/relevance"
	"github.com/spigell/listing-scout/internal/store"
)

// ErrNoUserID aborts the run when the identity is required but missing.
var ErrNoUserID = errors.New("user id not found on the listing page")

const (
	defaultRetryDelay = 5 * time.Second
	maxCompanyName    = 80
)

// Navigator is the set of named page operations the loop relies on. The loop
// never touches selectors itself.
type Navigator interface {
	ListingURL() string
	EnsureOnListing(ctx context.Context) error
	WaitForCompanyLinks(ctx context.Context) error
	CompanyLinks(ctx context.Context) ([]browser.Link, error)
	ScrollToAndPause(ctx context.Context, href string) error
	ScrollY(ctx context.Context) (float64, error)
	ScrollListing(ctx context.Context) error
	OpenCompany(ctx context.Context, url string) error
	JobLinks(ctx context.Context) ([]browser.Link, error)
	OpenJob(ctx context.Context, url string) error
	AlreadyApplied(ctx context.Context) (bool, error)
	JobDescription(ctx context.Context) (string, error)
	OpenApplyForm(ctx context.Context) error
	FillCoverLetter(ctx context.Context, text string) error
	GoBackRestoringScroll(ctx context.Context, expectURL string, y float64) error
	UserID(ctx context.Context) (string, error)
	Screenshot(name string)
}

// Drafter is satisfied by *drafting.Drafter.
type Drafter interface {
	Draft(ctx context.Context, description, profileRawText string) (letter string, generated bool)
}

type Config struct {
	// UserID overrides the id read from the page.
	UserID string `mapstructure:"user-id"`
	// RequireUserID aborts the run instead of proceeding without an identity.
	RequireUserID bool `mapstructure:"require"`
	// EmbeddingModel must match the model the profile was embedded with.
	EmbeddingModel string `mapstructure:"-"`
	// RetryDelay is waited after a failed listing step before the next scan.
	RetryDelay time.Duration `mapstructure:"-"`
}

type Deps struct {
	Navigator Navigator
	Records   store.Records
	Filters   *filtering.Filtering
	Drafter   Drafter
	Profile   *profile.Profile
	Control   *Control
	Logger    *zap.Logger
}

// Summary counts what a run did.
type Summary struct {
	Scans            int
	CompaniesVisited int
	JobsSeen         int
	Filtered         int
	Skipped          int
	AlreadyApplied   int
	Drafted          int
	FallbackLetters  int
	Failures         int
}

type Engine struct {
	nav     Navigator
	records store.Records
	filters *filtering.Filtering
	drafter Drafter
	profile *profile.Profile
	control *Control
	cfg     Config
	logger  *zap.Logger

	userID   string
	identity atomic.Pointer[string]
	summary  Summary
}

func New(cfg Config, deps Deps) (*Engine, error) {
	switch {
	case deps.Navigator == nil:
		return nil, errors.New("navigator is required")
	case deps.Records == nil:
		return nil, errors.New("store is required")
	case deps.Filters == nil:
		return nil, errors.New("filters are required")
	case deps.Drafter == nil:
		return nil, errors.New("drafter is required")
	}

	if deps.Control == nil {
		deps.Control = NewControl(DefaultPollInterval)
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = defaultRetryDelay
	}

	return &Engine{
		nav:     deps.Navigator,
		records: deps.Records,
		filters: deps.Filters,
		drafter: deps.Drafter,
		profile: deps.Profile,
		control: deps.Control,
		cfg:     cfg,
		logger:  deps.Logger,
	}, nil
}

func (e *Engine) Control() *Control { return e.control }

// UserID returns the identity resolved at setup. It is safe to call while the
// loop runs.
func (e *Engine) UserID() string {
	if id := e.identity.Load(); id != nil {
		return *id
	}
	return ""
}

// Run resolves the profile and identity and then loops until stopped. Setup
// errors are returned before the loop starts. A stop ends the run with a nil
// error.
func (e *Engine) Run(ctx context.Context) (Summary, error) {
	if err := e.setup(ctx); err != nil {
		return e.summary, err
	}

	e.control.Send(SignalStart)
	e.logger.Info("traversal started", zap.String("listing", e.nav.ListingURL()))

	defer e.logSummary()

	for {
		if err := e.control.Checkpoint(ctx); err != nil {
			return e.summary, finish(err)
		}
		if err := e.scan(ctx); err != nil {
			return e.summary, finish(err)
		}
	}
}

func finish(err error) error {
	if errors.Is(err, ErrStopped) {
		return nil
	}
	return err
}

func (e *Engine) setup(ctx context.Context) error {
	if err := e.profile.Usable(e.cfg.EmbeddingModel); err != nil {
		return err
	}

	e.userID = strings.TrimSpace(e.cfg.UserID)
	if e.userID == "" {
		id, err := e.nav.UserID(ctx)
		if err != nil {
			e.logger.Warn("reading user id", zap.Error(err))
		}
		e.userID = id
	}

	id := e.userID
	e.identity.Store(&id)

	if e.userID == "" {
		if e.cfg.RequireUserID {
			return ErrNoUserID
		}
		e.logger.Warn("user id is unknown, store requests will be rejected as unauthorized")
		return nil
	}

	e.logger = logger.WithFields(e.logger, logger.UserFields(e.userID)...)
	return nil
}

// scan is one outer iteration over the visible part of the listing.
func (e *Engine) scan(ctx context.Context) error {
	e.summary.Scans++

	if err := e.nav.EnsureOnListing(ctx); err != nil {
		return e.retryLater(ctx, "opening listing", err)
	}
	if err := e.nav.WaitForCompanyLinks(ctx); err != nil {
		return e.retryLater(ctx, "waiting for company links", err)
	}

	links, err := e.nav.CompanyLinks(ctx)
	if err != nil {
		return e.retryLater(ctx, "extracting company links", err)
	}

	fresh, err := e.newCompanies(ctx, links)
	if err != nil {
		return err
	}

	if len(fresh) == 0 {
		e.logger.Debug("no new companies, scrolling", zap.Int("visible", len(links)))
		if err := e.nav.ScrollListing(ctx); err != nil {
			return e.retryLater(ctx, "scrolling listing", err)
		}
		return nil
	}

	e.logger.Info("new companies found", zap.Int("visible", len(links)), zap.Int("new", len(fresh)))

	for _, company := range fresh {
		if err := e.processCompany(ctx, company); err != nil {
			return err
		}
	}
	return nil
}

// retryLater logs a failed listing step and waits before the next scan. Only
// stop and context errors are returned.
func (e *Engine) retryLater(ctx context.Context, step string, err error) error {
	if interrupted(err) {
		return err
	}
	e.summary.Failures++
	e.logger.Warn(step, zap.Error(err), zap.Duration("retry_in", e.cfg.RetryDelay))
	return e.control.Sleep(ctx, e.cfg.RetryDelay)
}

func interrupted(err error) bool {
	return errors.Is(err, ErrStopped) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// newCompanies keeps links that pass the company filters and have no stored
// record. A failed lookup leaves the company for a later scan.
func (e *Engine) newCompanies(ctx context.Context, links []browser.Link) ([]browser.Link, error) {
	var fresh []browser.Link

	for _, link := range links {
		if err := e.control.Checkpoint(ctx); err != nil {
			return nil, err
		}

		decision, err := e.filters.Run(ctx, filtering.PhaseCompany, &filtering.Candidate{
			URL:     link.URL,
			Company: link.Text,
		})
		if err != nil {
			e.logger.Warn("company filters failed", append(logger.CompanyFields(link.URL), zap.Error(err))...)
			continue
		}
		if !decision.Keep {
			continue
		}

		exists, err := store.Exists(e.lookupCompany(ctx, link.URL))
		if err != nil {
			e.logger.Warn("looking up company", append(logger.CompanyFields(link.URL), zap.Error(err))...)
			continue
		}
		if !exists {
			fresh = append(fresh, link)
		}
	}

	return fresh, nil
}

func (e *Engine) lookupCompany(ctx context.Context, url string) error {
	_, err := e.records.FindCompany(ctx, e.userID, url)
	return err
}

func (e *Engine) processCompany(ctx context.Context, company browser.Link) error {
	if err := e.control.Checkpoint(ctx); err != nil {
		return err
	}

	log := logger.WithFields(e.logger, logger.CompanyFields(company.URL)...)

	if err := e.nav.ScrollToAndPause(ctx, company.URL); err != nil {
		if interrupted(err) {
			return err
		}
		log.Debug("scroll to company", zap.Error(err))
	}

	// The marker is written before the visit and means "attempted".
	created, err := store.EnsureCompany(ctx, e.records, e.userID, &domain.Company{
		URL:         company.URL,
		DisplayName: companyName(company),
		Status:      domain.CompanyVisited,
	})
	if err != nil {
		e.summary.Failures++
		log.Warn("marking company visited, skipping it", zap.Error(err))
		return nil
	}
	if !created {
		log.Debug("company already marked visited")
	}

	e.summary.CompaniesVisited++
	metrics.CompaniesVisited.Inc()

	listingY, err := e.nav.ScrollY(ctx)
	if err != nil {
		log.Debug("reading listing scroll offset", zap.Error(err))
	}

	if err := e.nav.OpenCompany(ctx, company.URL); err != nil {
		if interrupted(err) {
			return err
		}
		e.summary.Failures++
		log.Warn("company page did not load, skipping", zap.Error(err))
		e.nav.Screenshot("company")
		return e.backToListing(ctx, log, listingY)
	}

	log.Info("company opened")

	jobs, err := e.nav.JobLinks(ctx)
	if err != nil {
		if interrupted(err) {
			return err
		}
		log.Warn("extracting job links", zap.Error(err))
	}

	log.Debug("job links found", zap.Int("count", len(jobs)))

	for _, job := range jobs {
		if err := e.processJob(ctx, company, job); err != nil {
			return err
		}
	}

	return e.backToListing(ctx, log, listingY)
}

func (e *Engine) backToListing(ctx context.Context, log *zap.Logger, y float64) error {
	err := e.nav.GoBackRestoringScroll(ctx, e.nav.ListingURL(), y)
	if err == nil || interrupted(err) {
		return err
	}
	// the next scan starts with EnsureOnListing
	log.Warn("returning to listing", zap.Error(err))
	return nil
}

// processJob handles one job link. Only stop and context errors are returned;
// everything else, panics included, is logged and the job is skipped.
func (e *Engine) processJob(ctx context.Context, company, job browser.Link) (err error) {
	if err := e.control.Checkpoint(ctx); err != nil {
		return err
	}

	log := logger.WithFields(e.logger, logger.JobFields(company.URL, job.Text, job.URL)...)

	defer func() {
		if r := recover(); r != nil {
			e.summary.Failures++
			log.Error("job processing panicked", zap.Any("panic", r), zap.Stack("stack"))
			e.nav.Screenshot("job-panic")
			err = nil
		}
	}()

	e.summary.JobsSeen++

	candidate := &filtering.Candidate{
		Title:   job.Text,
		URL:     job.URL,
		Company: companyName(company),
	}

	title, err := e.filters.Run(ctx, filtering.PhaseTitle, candidate)
	if err != nil {
		e.summary.Failures++
		log.Warn("title filters failed", zap.Error(err))
		return nil
	}
	if !title.Keep {
		return e.skip(ctx, log, candidate, title)
	}

	companyY, err := e.nav.ScrollY(ctx)
	if err != nil {
		log.Debug("reading company scroll offset", zap.Error(err))
	}

	if err := e.nav.OpenJob(ctx, job.URL); err != nil {
		if interrupted(err) {
			return err
		}
		e.summary.Failures++
		log.Warn("job page did not load, skipping", zap.Error(err))
		e.nav.Screenshot("job")
		return e.backToCompany(ctx, log, company.URL, companyY)
	}

	if err := e.evaluateJob(ctx, log, candidate, title); err != nil {
		return err
	}

	return e.backToCompany(ctx, log, company.URL, companyY)
}

func (e *Engine) backToCompany(ctx context.Context, log *zap.Logger, companyURL string, y float64) error {
	err := e.nav.GoBackRestoringScroll(ctx, companyURL, y)
	if err == nil || interrupted(err) {
		return err
	}
	log.Warn("returning to company page", zap.Error(err))
	return nil
}

// evaluateJob runs on the open job page: applied check, description gate,
// draft and fill.
func (e *Engine) evaluateJob(ctx context.Context, log *zap.Logger, candidate *filtering.Candidate, title filtering.Decision) error {
	applied, err := e.nav.AlreadyApplied(ctx)
	if err != nil {
		log.Debug("checking applied marker", zap.Error(err))
	}
	if applied {
		e.summary.AlreadyApplied++
		log.Info("already applied, skipping")
		return nil
	}

	description, err := e.nav.JobDescription(ctx)
	if err != nil {
		if interrupted(err) {
			return err
		}
		e.summary.Failures++
		log.Warn("reading job description, skipping", zap.Error(err))
		e.nav.Screenshot("description")
		return nil
	}
	candidate.Description = description

	decision, err := e.filters.Run(ctx, filtering.PhaseDescription, candidate)
	if err != nil {
		e.summary.Failures++
		log.Warn("description filters failed", zap.Error(err))
		return nil
	}
	if !decision.Keep {
		return e.skip(ctx, log, candidate, decision)
	}

	if err := e.control.Checkpoint(ctx); err != nil {
		return err
	}

	if err := e.nav.OpenApplyForm(ctx); err != nil {
		if interrupted(err) {
			return err
		}
		if errors.Is(err, browser.ErrNoApplyForm) {
			log.Info("no application form on the job page")
			return e.skip(ctx, log, candidate, filtering.Decision{Reason: "no application form", Record: true, Outcome: decision.Outcome})
		}
		e.summary.Failures++
		log.Warn("opening application form", zap.Error(err))
		e.nav.Screenshot("apply")
		return nil
	}

	letter, generated := e.drafter.Draft(ctx, description, e.profile.RawText)
	if !generated {
		e.summary.FallbackLetters++
	}

	if err := e.nav.FillCoverLetter(ctx, letter); err != nil {
		if interrupted(err) {
			return err
		}
		e.summary.Failures++
		log.Warn("typing cover letter", zap.Error(err))
		e.nav.Screenshot("fill")
		return nil
	}

	score := matchScore(decision, title)
	created, err := store.EnsureApplication(ctx, e.records, e.userID, &domain.Application{
		JobTitle:    candidate.Title,
		CompanyName: candidate.Company,
		JobURL:      candidate.URL,
		BodyText:    letter,
		Status:      domain.ApplicationSubmitted,
		MatchScore:  score,
	})
	if err != nil {
		e.summary.Failures++
		log.Warn("recording drafted application", zap.Error(err))
		return nil
	}

	e.summary.Drafted++
	if created {
		metrics.Applications.WithLabelValues(string(domain.ApplicationSubmitted)).Inc()
	}

	fields := []zap.Field{zap.Bool("generated", generated)}
	if score != nil {
		fields = append(fields, zap.Float64("score", *score))
	}
	log.Info("cover letter filled, waiting for manual submit", fields...)
	return nil
}

// skip persists a skipped record when the decision asks for one.
func (e *Engine) skip(ctx context.Context, log *zap.Logger, candidate *filtering.Candidate, decision filtering.Decision) error {
	if !decision.Record {
		e.summary.Filtered++
		return nil
	}

	created, err := store.EnsureApplication(ctx, e.records, e.userID, &domain.Application{
		JobTitle:    candidate.Title,
		CompanyName: candidate.Company,
		JobURL:      candidate.URL,
		BodyText:    decision.Reason,
		Status:      domain.ApplicationSkipped,
		MatchScore:  scoreOf(decision.Outcome),
	})
	if err != nil {
		e.summary.Failures++
		log.Warn("recording skipped job", zap.Error(err))
		return nil
	}

	e.summary.Skipped++
	if created {
		metrics.Applications.WithLabelValues(string(domain.ApplicationSkipped)).Inc()
	}
	log.Info("job skipped", zap.String("reason", decision.Reason))
	return nil
}

// matchScore prefers the description score and falls back to the title one.
// Indeterminate outcomes have no score.
func matchScore(description, title filtering.Decision) *float64 {
	if s := scoreOf(description.Outcome); s != nil {
		return s
	}
	return scoreOf(title.Outcome)
}

func scoreOf(o *relevance.Outcome) *float64 {
	if o == nil {
		return nil
	}
	score, ok := o.Score()
	if !ok {
		return nil
	}
	v := float64(score)
	return &v
}

// companyName uses the short link text or the last path segment of the url.
func companyName(link browser.Link) string {
	if text := strings.TrimSpace(link.Text); text != "" && utf8.RuneCountInString(text) <= maxCompanyName {
		return text
	}
	if u, err := url.Parse(link.URL); err == nil {
		if base := path.Base(strings.TrimRight(u.Path, "/")); base != "." && base != "/" {
			return base
		}
	}
	return link.URL
}

func (e *Engine) logSummary() {
	s := e.summary
	e.logger.Info("traversal finished",
		zap.String("state", string(e.control.State())),
		zap.Int("scans", s.Scans),
		zap.Int("companies_visited", s.CompaniesVisited),
		zap.Int("jobs_seen", s.JobsSeen),
		zap.Int("filtered", s.Filtered),
		zap.Int("skipped", s.Skipped),
		zap.Int("already_applied", s.AlreadyApplied),
		zap.Int("drafted", s.Drafted),
		zap.Int("fallback_letters", s.FallbackLetters),
		zap.Int("failures", s.Failures),
	)
	e.filters.LogSummary()
}

func (s Summary) String() string {
	return fmt.Sprintf("companies=%d jobs=%d drafted=%d skipped=%d filtered=%d applied=%d failures=%d",
		s.CompaniesVisited, s.JobsSeen, s.Drafted, s.Skipped, s.Filtered, s.AlreadyApplied, s.Failures)
}
