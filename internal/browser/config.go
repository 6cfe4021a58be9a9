package browser

import (
	"errors"
	"net/url"
	"strings"
	"time"
)

const (
	DefaultListingURL       = "https://www.workatastartup.com/companies"
	DefaultCDPEndpoint      = "http://127.0.0.1:9222"
	DefaultUserIDStorageKey = "ajs_user_id"
)

// Selectors holds every site specific selector. The traversal code never
// sees them.
type Selectors struct {
	CompanyLink      string `mapstructure:"company-link"`
	JobLink          string `mapstructure:"job-link"`
	JobDescription   string `mapstructure:"job-description"`
	AppliedMarker    string `mapstructure:"applied-marker"`
	ApplyButton      string `mapstructure:"apply-button"`
	CoverLetterInput string `mapstructure:"cover-letter-input"`
}

type Timeouts struct {
	Links      time.Duration `mapstructure:"links"`
	LinksRetry time.Duration `mapstructure:"links-retry"`
	PageLoad   time.Duration `mapstructure:"page-load"`
	Back       time.Duration `mapstructure:"back"`
	Selector   time.Duration `mapstructure:"selector"`
	Connect    time.Duration `mapstructure:"connect"`
}

type Config struct {
	CDPEndpoint      string `mapstructure:"cdp-endpoint"`
	ListingURL       string `mapstructure:"listing-url"`
	UserIDStorageKey string `mapstructure:"user-id-storage-key"`

	// SettleDelay is waited after full navigations.
	SettleDelay time.Duration `mapstructure:"settle-delay"`
	// ScrollPause lets an operator follow along. Zero disables the
	// scroll-into-view step entirely.
	ScrollPause time.Duration `mapstructure:"scroll-pause"`
	ScrollStep  int           `mapstructure:"scroll-step"`
	TypingDelay time.Duration `mapstructure:"typing-delay"`

	// ExcludeLinkPatterns drops listing links containing any of these substrings.
	ExcludeLinkPatterns []string `mapstructure:"exclude-link-patterns"`
	// JobPathMarker identifies job detail links among company links.
	JobPathMarker string `mapstructure:"job-path-marker"`

	ScreenshotDir string `mapstructure:"screenshot-dir"`

	Timeouts  Timeouts  `mapstructure:"timeouts"`
	Selectors Selectors `mapstructure:"selectors"`
}

// DefaultConfig returns the selectors and timings tuned for the default listing.
func DefaultConfig() Config {
	return Config{
		CDPEndpoint:      DefaultCDPEndpoint,
		ListingURL:       DefaultListingURL,
		UserIDStorageKey: DefaultUserIDStorageKey,
		SettleDelay:      2 * time.Second,
		ScrollPause:      800 * time.Millisecond,
		ScrollStep:       1500,
		TypingDelay:      25 * time.Millisecond,
		ExcludeLinkPatterns: []string{
			"twitter.com", "x.com/", "linkedin.com", "facebook.com", "github.com",
			"crunchbase.com", "youtube.com", "ycombinator.com/companies",
		},
		JobPathMarker: "/jobs/",
		Timeouts: Timeouts{
			Links:      10 * time.Second,
			LinksRetry: 20 * time.Second,
			PageLoad:   10 * time.Second,
			Back:       3 * time.Second,
			Selector:   5 * time.Second,
			Connect:    15 * time.Second,
		},
		Selectors: Selectors{
			CompanyLink:      `a[href*="/companies/"]`,
			JobLink:          `a[href*="/jobs/"]`,
			JobDescription:   "main",
			AppliedMarker:    `text="Applied"`,
			ApplyButton:      `a:has-text("Apply"), button:has-text("Apply")`,
			CoverLetterInput: "textarea",
		},
	}
}

// Validate fills zero values from DefaultConfig and checks the listing URL.
func (c *Config) Validate() error {
	def := DefaultConfig()

	setString(&c.CDPEndpoint, def.CDPEndpoint)
	setString(&c.ListingURL, def.ListingURL)
	setString(&c.UserIDStorageKey, def.UserIDStorageKey)
	setString(&c.JobPathMarker, def.JobPathMarker)
	if c.ScrollStep <= 0 {
		c.ScrollStep = def.ScrollStep
	}
	if c.ExcludeLinkPatterns == nil {
		c.ExcludeLinkPatterns = def.ExcludeLinkPatterns
	}

	setDuration(&c.Timeouts.Links, def.Timeouts.Links)
	setDuration(&c.Timeouts.LinksRetry, def.Timeouts.LinksRetry)
	setDuration(&c.Timeouts.PageLoad, def.Timeouts.PageLoad)
	setDuration(&c.Timeouts.Back, def.Timeouts.Back)
	setDuration(&c.Timeouts.Selector, def.Timeouts.Selector)
	setDuration(&c.Timeouts.Connect, def.Timeouts.Connect)

	setString(&c.Selectors.CompanyLink, def.Selectors.CompanyLink)
	setString(&c.Selectors.JobLink, def.Selectors.JobLink)
	setString(&c.Selectors.JobDescription, def.Selectors.JobDescription)
	setString(&c.Selectors.AppliedMarker, def.Selectors.AppliedMarker)
	setString(&c.Selectors.ApplyButton, def.Selectors.ApplyButton)
	setString(&c.Selectors.CoverLetterInput, def.Selectors.CoverLetterInput)

	u, err := url.Parse(c.ListingURL)
	if err != nil {
		return err
	}
	if u.Scheme == "" || u.Host == "" {
		return errors.New("browser.listing-url must be an absolute url")
	}
	return nil
}

func setString(v *string, def string) {
	if strings.TrimSpace(*v) == "" {
		*v = def
	}
}

func setDuration(v *time.Duration, def time.Duration) {
	if *v <= 0 {
		*v = def
	}
}

func ms(d time.Duration) *float64 {
	v := float64(d.Milliseconds())
	return &v
}
