package discovery

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// docPatterns find path-like strings in documentation pages.
var docPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)["'](/api/[^"']+)["']`),
	regexp.MustCompile(`(?i)["'](/v\d+/[^"']+)["']`),
	regexp.MustCompile(`(?i)["'](/[a-z]+/[^"']+)["']`),
	regexp.MustCompile(`(?i)GET\s+([^\s]+)`),
	regexp.MustCompile(`(?i)POST\s+([^\s]+)`),
	regexp.MustCompile(`(?i)PUT\s+([^\s]+)`),
	regexp.MustCompile(`(?i)DELETE\s+([^\s]+)`),
}

var (
	apiPathPattern = regexp.MustCompile(`^/(api/|v\d+/|[a-zA-Z]+/)`)
	pathToken      = regexp.MustCompile(`^/[A-Za-z0-9_\-{}:./]+$`)
)

// pathAttributes are element attributes that may carry an API path.
var pathAttributes = []string{"href", "src", "data-path", "data-endpoint", "data-url"}

// ExtractDocumentationPaths collects path-like strings from a documentation
// page in first-seen order. Only strings beginning with "/" are kept.
func ExtractDocumentationPaths(body []byte) []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(candidate string) {
		p := cleanDocPath(candidate)
		if p == "" {
			return
		}
		if _, ok := seen[p]; ok {
			return
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}

	text := string(body)
	for _, re := range docPatterns {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			add(m[1])
		}
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return out
	}

	for _, attr := range pathAttributes {
		doc.Find("[" + attr + "]").Each(func(_ int, s *goquery.Selection) {
			if v, ok := s.Attr(attr); ok && apiPathPattern.MatchString(v) {
				add(v)
			}
		})
	}

	doc.Find("code, pre").Each(func(_ int, s *goquery.Selection) {
		for _, tok := range strings.Fields(s.Text()) {
			if pathToken.MatchString(tok) && apiPathPattern.MatchString(tok) {
				add(tok)
			}
		}
	})

	return out
}

// cleanDocPath trims trailing punctuation and query strings from a match.
func cleanDocPath(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexAny(s, "?#<\"'"); i >= 0 {
		s = s[:i]
	}
	s = strings.TrimRight(s, ",;:.)<>`")
	if !strings.HasPrefix(s, "/") || strings.HasPrefix(s, "//") || len(s) < 2 {
		return ""
	}
	return s
}
