package browser

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/playwright-community/playwright-go"
	"go.uber.org/zap"
)

var ErrPageNotFound = errors.New("no open page for the listing site")

// Session is an attachment to a browser the user started with remote
// debugging enabled. The browser process is not owned by the session.
type Session struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	Page    playwright.Page
}

// Attach connects over CDP and picks the tab showing the listing host.
func Attach(cfg Config, logger *zap.Logger) (*Session, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	pw, err := playwright.Run(&playwright.RunOptions{SkipInstallBrowsers: true})
	if err != nil {
		return nil, fmt.Errorf("start playwright driver: %w", err)
	}

	browser, err := pw.Chromium.ConnectOverCDP(cfg.CDPEndpoint, playwright.BrowserTypeConnectOverCDPOptions{
		Timeout: ms(cfg.Timeouts.Connect),
	})
	if err != nil {
		_ = pw.Stop()
		return nil, fmt.Errorf("connect to browser at %s: %w", cfg.CDPEndpoint, err)
	}

	var urls []string
	for _, bctx := range browser.Contexts() {
		for _, page := range bctx.Pages() {
			urls = append(urls, page.URL())
		}
	}

	idx := pickPage(urls, cfg.ListingURL)
	if idx < 0 {
		_ = pw.Stop()
		return nil, fmt.Errorf("%w (%s); open it in the browser first, found: %s",
			ErrPageNotFound, cfg.ListingURL, strings.Join(urls, ", "))
	}

	var page playwright.Page
	i := 0
	for _, bctx := range browser.Contexts() {
		for _, p := range bctx.Pages() {
			if i == idx {
				page = p
			}
			i++
		}
	}

	if err := page.BringToFront(); err != nil {
		logger.Debug("bring page to front", zap.Error(err))
	}

	logger.Info("attached to browser page", zap.String("url", page.URL()))

	return &Session{pw: pw, browser: browser, Page: page}, nil
}

// Close disconnects from the browser without closing the user's tabs.
func (s *Session) Close() error {
	if s == nil || s.pw == nil {
		return nil
	}
	return s.pw.Stop()
}

// pickPage prefers a tab already on the listing, then any tab on its host.
func pickPage(urls []string, listingURL string) int {
	for i, u := range urls {
		if sameLocation(u, listingURL) {
			return i
		}
	}

	listing, err := url.Parse(listingURL)
	if err != nil {
		return -1
	}
	for i, u := range urls {
		parsed, err := url.Parse(u)
		if err == nil && strings.EqualFold(parsed.Host, listing.Host) {
			return i
		}
	}
	return -1
}
