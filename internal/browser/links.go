package browser

import (
	"encoding/json"
	"net/url"
	"strings"

	"github.com/mitchellh/mapstructure"
)

// Link is an anchor found on a page.
type Link struct {
	URL  string `mapstructure:"href"`
	Text string `mapstructure:"text"`
}

// decodeLinks converts the result of an EvaluateAll call into links.
func decodeLinks(raw any) ([]Link, error) {
	var links []Link
	if raw == nil {
		return links, nil
	}
	if err := mapstructure.Decode(raw, &links); err != nil {
		return nil, err
	}
	return links, nil
}

// absolute resolves href against base and drops the fragment.
func absolute(base *url.URL, href string) (*url.URL, bool) {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(strings.ToLower(href), "javascript:") {
		return nil, false
	}

	ref, err := url.Parse(href)
	if err != nil {
		return nil, false
	}

	u := base.ResolveReference(ref)
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, false
	}
	u.Fragment = ""
	return u, true
}

// CompanyLinks keeps same-host company links in document order, deduplicated,
// without job links or links matching any exclude pattern.
func CompanyLinks(listingURL string, raw []Link, jobMarker string, exclude []string) []Link {
	base, err := url.Parse(listingURL)
	if err != nil {
		return nil
	}

	seen := make(map[string]struct{}, len(raw))
	out := make([]Link, 0, len(raw))

	for _, l := range raw {
		u, ok := absolute(base, l.URL)
		if !ok || !strings.EqualFold(u.Host, base.Host) {
			continue
		}
		u.RawQuery = ""
		abs := strings.TrimRight(u.String(), "/")

		if jobMarker != "" && strings.Contains(abs, jobMarker) {
			continue
		}
		if sameLocation(abs, listingURL) || matchesAny(abs, exclude) {
			continue
		}
		if _, dup := seen[abs]; dup {
			continue
		}
		seen[abs] = struct{}{}

		out = append(out, Link{URL: abs, Text: cleanText(l.Text)})
	}

	return out
}

// JobLinks keeps links containing jobMarker, deduplicated in document order
// by url without query or trailing slash. The first non-empty text seen for a
// url wins.
func JobLinks(pageURL string, raw []Link, jobMarker string, exclude []string) []Link {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil
	}

	index := make(map[string]int, len(raw))
	out := make([]Link, 0, len(raw))

	for _, l := range raw {
		u, ok := absolute(base, l.URL)
		if !ok {
			continue
		}
		// tracking parameters must not turn one posting into several
		u.RawQuery = ""
		abs := strings.TrimRight(u.String(), "/")
		if jobMarker != "" && !strings.Contains(abs, jobMarker) {
			continue
		}
		if matchesAny(abs, exclude) {
			continue
		}

		text := cleanText(l.Text)
		if i, dup := index[abs]; dup {
			if out[i].Text == "" {
				out[i].Text = text
			}
			continue
		}
		index[abs] = len(out)
		out = append(out, Link{URL: abs, Text: text})
	}

	return out
}

// sameLocation compares scheme-less host and path, ignoring query, fragment
// and a trailing slash.
func sameLocation(a, b string) bool {
	ua, err := url.Parse(a)
	if err != nil {
		return false
	}
	ub, err := url.Parse(b)
	if err != nil {
		return false
	}
	return strings.EqualFold(ua.Host, ub.Host) &&
		strings.TrimRight(ua.Path, "/") == strings.TrimRight(ub.Path, "/")
}

func matchesAny(s string, patterns []string) bool {
	low := strings.ToLower(s)
	for _, p := range patterns {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" && strings.Contains(low, p) {
			return true
		}
	}
	return false
}

func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// parseStoredID unwraps values some analytics libraries store JSON-encoded.
func parseStoredID(raw any) string {
	s, ok := raw.(string)
	if !ok {
		return ""
	}
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, `"`) {
		var unquoted string
		if err := json.Unmarshal([]byte(s), &unquoted); err == nil {
			s = unquoted
		}
	}
	if s == "null" || s == "undefined" {
		return ""
	}
	return strings.TrimSpace(s)
}

func toFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	default:
		return 0
	}
}
