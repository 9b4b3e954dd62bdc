package scrape

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// redirectParams are the query parameters sponsored and smile links carry
// their destination in, in lookup order.
var redirectParams = []string{"url", "u", "target", "redirect", "rd", "r", "link"}

var (
	// productSegment matches /dp/<id>, /gp/product/<id> and /gp/<id>, where
	// the id is ten alphanumerics followed by a delimiter or the end of the
	// string.
	productSegment = regexp.MustCompile(`(/(?:dp|gp/product|gp)/[A-Za-z0-9]{10})(?:[/?#&]|$)`)

	// productID matches a free-standing ten character identifier.
	productID = regexp.MustCompile(`(?:^|[^A-Za-z0-9])([A-Za-z0-9]{10})(?:[^A-Za-z0-9]|$)`)
)

// Canonicalizer turns scraped anchor hrefs, which are often relative,
// percent-encoded, or wrapped in sponsored-click redirects, into stable
// absolute product URLs on one marketplace origin.
type Canonicalizer struct {
	origin string // scheme://host, no trailing slash
	base   *url.URL
}

// NewCanonicalizer creates a Canonicalizer for the marketplace at baseURL.
// Only the scheme and host of baseURL are used.
func NewCanonicalizer(baseURL string) (*Canonicalizer, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid base URL %q (must have scheme and host)", baseURL)
	}
	origin := &url.URL{Scheme: u.Scheme, Host: u.Host}
	return &Canonicalizer{origin: origin.String(), base: origin}, nil
}

// Origin returns the scheme://host every result is built on.
func (c *Canonicalizer) Origin() string {
	return c.origin
}

// Resolve returns the canonical URL for href. The second result is false
// only when href is blank, in which case the caller keeps its own fallback.
//
// Resolution order, first match wins:
//  1. sponsored-click, slredirect and smile links are unwrapped through the
//     first present redirect parameter;
//  2. otherwise an href containing /dp/ or /gp/ is percent-decoded;
//  3. a product segment in the result is joined to the origin;
//  4. otherwise a bare ten character product id becomes <origin>/dp/<id>;
//  5. otherwise the path without query or fragment is joined to the origin.
func (c *Canonicalizer) Resolve(href string) (string, bool) {
	href = strings.TrimSpace(href)
	if href == "" {
		return "", false
	}

	candidate := href
	if target, ok := unwrapRedirect(href); ok {
		candidate = target
	} else if strings.Contains(href, "/dp/") || strings.Contains(href, "/gp/") {
		candidate = decode(href)
	}

	if m := productSegment.FindStringSubmatch(candidate); m != nil {
		return c.origin + m[1], true
	}

	if id := findProductID(decode(stripQuery(candidate))); id != "" {
		return c.origin + "/dp/" + id, true
	}

	return c.join(href), true
}

// isRedirect reports whether href is a sponsored-click or smile redirect.
func isRedirect(href string) bool {
	if strings.Contains(href, "/sspa/click") || strings.Contains(href, "/gp/slredirect") {
		return true
	}
	u, err := url.Parse(href)
	if err != nil {
		return strings.Contains(href, "smile.")
	}
	return strings.HasPrefix(u.Hostname(), "smile.")
}

func unwrapRedirect(href string) (string, bool) {
	if !isRedirect(href) {
		return "", false
	}

	_, rawQuery, found := strings.Cut(href, "?")
	if !found {
		return "", false
	}
	rawQuery, _, _ = strings.Cut(rawQuery, "#")

	q, err := url.ParseQuery(rawQuery)
	if err != nil && len(q) == 0 {
		return "", false
	}
	for _, key := range redirectParams {
		if v := q.Get(key); v != "" {
			// Values are sometimes encoded twice.
			return decode(v), true
		}
	}
	return "", false
}

// decode percent-decodes s, returning it unchanged when it is not valid
// percent-encoding.
func decode(s string) string {
	if !strings.Contains(s, "%") {
		return s
	}
	d, err := url.PathUnescape(s)
	if err != nil {
		return s
	}
	return d
}

func stripQuery(s string) string {
	s, _, _ = strings.Cut(s, "#")
	s, _, _ = strings.Cut(s, "?")
	return s
}

// findProductID returns the first ten character alphanumeric token that is
// not a plain word. Tokens with a digit or without lower-case letters
// qualify, so slug words such as "Headphones" are skipped.
func findProductID(s string) string {
	for _, m := range productID.FindAllStringSubmatch(s, -1) {
		if isProductID(m[1]) {
			return m[1]
		}
	}
	return ""
}

func isProductID(tok string) bool {
	if strings.ContainsAny(tok, "0123456789") {
		return true
	}
	return strings.ToUpper(tok) == tok
}

// join resolves href's path against the origin with query and fragment
// dropped. Absolute hrefs keep their own host.
func (c *Canonicalizer) join(href string) string {
	u, err := url.Parse(href)
	if err != nil {
		p := stripQuery(href)
		if !strings.HasPrefix(p, "/") {
			p = "/" + p
		}
		return c.origin + p
	}
	u.RawQuery = ""
	u.ForceQuery = false
	u.Fragment = ""
	u.RawFragment = ""
	return c.base.ResolveReference(u).String()
}
