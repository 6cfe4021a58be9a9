// Package browser drives the already open listing tab over the DevTools
// protocol. Every wait is bounded and a timeout degrades to one reload and
// retry at most.
package browser

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/playwright-community/playwright-go"
	"go.uber.org/zap"

	"github.com/spigell/listing-scout/internal/metrics"
	"github.com/spigell/listing-scout/internal/utils"
)

var (
	ErrNavigation  = errors.New("navigation failed")
	ErrNoApplyForm = errors.New("no application form on the page")
)

const linksScript = `els => els.map(e => ({href: e.href || e.getAttribute("href") || "", text: (e.innerText || e.textContent || "").trim()}))`

type Controller struct {
	page   playwright.Page
	cfg    Config
	logger *zap.Logger
	wait   func(context.Context, time.Duration) error
}

func NewController(page playwright.Page, cfg Config, logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{page: page, cfg: cfg, logger: logger, wait: utils.WaitFor}
}

// SetWaiter replaces the function used for settle and scroll pauses, so the
// pauses can observe pause and stop requests.
func (c *Controller) SetWaiter(wait func(context.Context, time.Duration) error) {
	if wait != nil {
		c.wait = wait
	}
}

func (c *Controller) ListingURL() string { return c.cfg.ListingURL }

func (c *Controller) CurrentURL() string { return c.page.URL() }

// EnsureOnListing navigates to the listing unless the tab is already there.
func (c *Controller) EnsureOnListing(ctx context.Context) error {
	if sameLocation(c.page.URL(), c.cfg.ListingURL) {
		return nil
	}

	c.logger.Info("navigating to listing", zap.String("from", c.page.URL()))
	if err := c.gotoURL(c.cfg.ListingURL); err != nil {
		metrics.NavigationFailures.WithLabelValues("listing").Inc()
		return err
	}
	return c.wait(ctx, c.cfg.SettleDelay)
}

// WaitForCompanyLinks waits for the first company link. On timeout it reloads
// once and waits again with the longer retry timeout.
func (c *Controller) WaitForCompanyLinks(ctx context.Context) error {
	first := c.page.Locator(c.cfg.Selectors.CompanyLink).First()

	err := first.WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateAttached,
		Timeout: ms(c.cfg.Timeouts.Links),
	})
	if err == nil {
		return nil
	}

	c.logger.Warn("company links did not appear, reloading", zap.Error(err))
	metrics.NavigationFailures.WithLabelValues("company_links").Inc()

	if _, err := c.page.Reload(playwright.PageReloadOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   ms(c.cfg.Timeouts.PageLoad),
	}); err != nil {
		return fmt.Errorf("%w: reload listing: %v", ErrNavigation, err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := first.WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateAttached,
		Timeout: ms(c.cfg.Timeouts.LinksRetry),
	}); err != nil {
		return fmt.Errorf("%w: no company links after reload: %v", ErrNavigation, err)
	}
	return nil
}

// CompanyLinks returns the company links currently in the DOM.
func (c *Controller) CompanyLinks(context.Context) ([]Link, error) {
	raw, err := c.evaluateLinks(c.cfg.Selectors.CompanyLink)
	if err != nil {
		return nil, err
	}
	return CompanyLinks(c.cfg.ListingURL, raw, c.cfg.JobPathMarker, c.cfg.ExcludeLinkPatterns), nil
}

// JobLinks returns job links on the current company page. A company without
// job links yields an empty slice.
func (c *Controller) JobLinks(context.Context) ([]Link, error) {
	err := c.page.Locator(c.cfg.Selectors.JobLink).First().WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateAttached,
		Timeout: ms(c.cfg.Timeouts.Selector),
	})
	if err != nil {
		c.logger.Debug("no job links on company page", zap.String("url", c.page.URL()))
		return nil, nil
	}

	raw, err := c.evaluateLinks(c.cfg.Selectors.JobLink)
	if err != nil {
		return nil, err
	}
	return JobLinks(c.page.URL(), raw, c.cfg.JobPathMarker, c.cfg.ExcludeLinkPatterns), nil
}

func (c *Controller) evaluateLinks(selector string) ([]Link, error) {
	raw, err := c.page.Locator(selector).EvaluateAll(linksScript)
	if err != nil {
		return nil, fmt.Errorf("extract links %q: %w", selector, err)
	}
	return decodeLinks(raw)
}

// ScrollToAndPause scrolls the anchor pointing at href into view and waits so
// an operator can follow. It is a no-op when the pause is zero.
func (c *Controller) ScrollToAndPause(ctx context.Context, href string) error {
	if c.cfg.ScrollPause <= 0 {
		return nil
	}

	_, err := c.page.Evaluate(`href => {
		const el = Array.from(document.querySelectorAll("a")).find(a => a.href === href || a.href === href + "/");
		if (el) { el.scrollIntoView({behavior: "smooth", block: "center"}); }
		return !!el;
	}`, href)
	if err != nil {
		c.logger.Debug("scroll into view failed", zap.String("href", href), zap.Error(err))
	}

	return c.wait(ctx, c.cfg.ScrollPause)
}

func (c *Controller) ScrollY(context.Context) (float64, error) {
	v, err := c.page.Evaluate(`() => window.scrollY`)
	if err != nil {
		return 0, err
	}
	return toFloat(v), nil
}

func (c *Controller) scrollTo(y float64) error {
	_, err := c.page.Evaluate(`y => window.scrollTo(0, y)`, y)
	return err
}

// ScrollListing scrolls down one step to trigger lazy loading.
func (c *Controller) ScrollListing(ctx context.Context) error {
	if _, err := c.page.Evaluate(`step => window.scrollBy(0, step)`, c.cfg.ScrollStep); err != nil {
		return err
	}
	return c.wait(ctx, c.cfg.SettleDelay)
}

// OpenCompany and OpenJob navigate directly instead of clicking since the
// site opens these links in new tabs.
func (c *Controller) OpenCompany(ctx context.Context, url string) error {
	if err := c.gotoURL(url); err != nil {
		metrics.NavigationFailures.WithLabelValues("company").Inc()
		return err
	}
	return ctx.Err()
}

func (c *Controller) OpenJob(ctx context.Context, url string) error {
	if err := c.gotoURL(url); err != nil {
		metrics.NavigationFailures.WithLabelValues("job").Inc()
		return err
	}
	return ctx.Err()
}

func (c *Controller) gotoURL(url string) error {
	if _, err := c.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   ms(c.cfg.Timeouts.PageLoad),
	}); err != nil {
		return fmt.Errorf("%w: goto %s: %v", ErrNavigation, url, err)
	}
	return nil
}

// AlreadyApplied looks for the single "applied" marker. Other wordings are
// not detected.
func (c *Controller) AlreadyApplied(context.Context) (bool, error) {
	n, err := c.page.Locator(c.cfg.Selectors.AppliedMarker).Count()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (c *Controller) JobDescription(context.Context) (string, error) {
	text, err := c.page.Locator(c.cfg.Selectors.JobDescription).First().InnerText(playwright.LocatorInnerTextOptions{
		Timeout: ms(c.cfg.Timeouts.Selector),
	})
	if err != nil {
		return "", fmt.Errorf("read job description: %w", err)
	}
	return strings.TrimSpace(text), nil
}

// OpenApplyForm clicks the apply affordance when present and waits for the
// free-text input. ErrNoApplyForm is returned when no input shows up.
func (c *Controller) OpenApplyForm(context.Context) error {
	input := c.page.Locator(c.cfg.Selectors.CoverLetterInput).First()
	if visible, _ := input.IsVisible(); visible {
		return nil
	}

	button := c.page.Locator(c.cfg.Selectors.ApplyButton).First()
	if n, _ := c.page.Locator(c.cfg.Selectors.ApplyButton).Count(); n > 0 {
		if err := button.Click(playwright.LocatorClickOptions{Timeout: ms(c.cfg.Timeouts.Selector)}); err != nil {
			return fmt.Errorf("click apply: %w", err)
		}
	}

	if err := input.WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateVisible,
		Timeout: ms(c.cfg.Timeouts.Selector),
	}); err != nil {
		return ErrNoApplyForm
	}
	return nil
}

// FillCoverLetter types text with a per-character delay. It never submits.
func (c *Controller) FillCoverLetter(_ context.Context, text string) error {
	input := c.page.Locator(c.cfg.Selectors.CoverLetterInput).First()

	if err := input.Fill(""); err != nil {
		return fmt.Errorf("clear cover letter input: %w", err)
	}

	delay := float64(c.cfg.TypingDelay.Milliseconds())
	timeout := float64(c.cfg.Timeouts.Selector.Milliseconds()) + delay*float64(len([]rune(text)))

	if err := input.PressSequentially(text, playwright.LocatorPressSequentiallyOptions{
		Delay:   &delay,
		Timeout: &timeout,
	}); err != nil {
		return fmt.Errorf("type cover letter: %w", err)
	}
	return nil
}

// GoBackRestoringScroll goes back in history and restores the scroll offset.
// When the history entry is not expectURL it navigates there directly.
func (c *Controller) GoBackRestoringScroll(ctx context.Context, expectURL string, y float64) error {
	_, err := c.page.GoBack(playwright.PageGoBackOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   ms(c.cfg.Timeouts.Back),
	})
	if err != nil || !sameLocation(c.page.URL(), expectURL) {
		c.logger.Debug("back navigation did not land, navigating directly",
			zap.String("expected", expectURL),
			zap.String("current", c.page.URL()),
			zap.NamedError("back_error", err),
		)
		metrics.NavigationFailures.WithLabelValues("back").Inc()

		if err := c.gotoURL(expectURL); err != nil {
			return err
		}
		if err := c.wait(ctx, c.cfg.SettleDelay); err != nil {
			return err
		}
	}

	return c.scrollTo(y)
}

// UserID reads the analytics user id from localStorage. Empty means unknown.
func (c *Controller) UserID(context.Context) (string, error) {
	v, err := c.page.Evaluate(`key => window.localStorage.getItem(key)`, c.cfg.UserIDStorageKey)
	if err != nil {
		return "", fmt.Errorf("read %s from localStorage: %w", c.cfg.UserIDStorageKey, err)
	}
	return parseStoredID(v), nil
}

// Screenshot saves a full page capture when a screenshot dir is configured.
func (c *Controller) Screenshot(name string) {
	if c.cfg.ScreenshotDir == "" {
		return
	}
	if err := os.MkdirAll(c.cfg.ScreenshotDir, 0o755); err != nil {
		c.logger.Debug("screenshot dir", zap.Error(err))
		return
	}

	path := filepath.Join(c.cfg.ScreenshotDir, fmt.Sprintf("%s-%d.png", name, time.Now().Unix()))
	if _, err := c.page.Screenshot(playwright.PageScreenshotOptions{
		Path:     playwright.String(path),
		FullPage: playwright.Bool(true),
	}); err != nil {
		c.logger.Debug("screenshot failed", zap.Error(err))
		return
	}
	c.logger.Info("screenshot saved", zap.String("path", path))
}
