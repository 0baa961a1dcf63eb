// Package content prepares rich text for leaving the CMS and sanitizes
// replies coming back in.
package content

import (
	"fmt"
	"html"
	"regexp"
	"strings"
)

var (
	// Opening and self-closing block markers, e.g. <!-- wp:image {"id":5} /-->.
	openMarker = regexp.MustCompile(`(?s)<!--\s*wp:[a-zA-Z0-9/_-]+.*?-->`)

	// Closing block markers, e.g. <!-- /wp:paragraph -->.
	closeMarker = regexp.MustCompile(`(?s)<!--\s*/wp:[a-zA-Z0-9/_-]+\s*-->`)

	anyMarker = regexp.MustCompile(`<!--\s*/?wp:`)
)

// Normalize removes CMS block markers from raw and returns the content
// between them unchanged. Leading and trailing whitespace is trimmed.
func Normalize(raw string) string {
	out := closeMarker.ReplaceAllString(raw, "")
	out = openMarker.ReplaceAllString(out, "")
	return strings.TrimSpace(Images(out))
}

// HasMarkers reports whether s still contains block marker syntax.
func HasMarkers(s string) bool {
	return anyMarker.MatchString(s)
}

// Images rewrites image references for off-platform use.
// Currently a pass-through.
func Images(s string) string {
	return s
}

// Footer returns the attribution footer pointing back at the origin.
func Footer(siteName, canonicalURL string) string {
	if siteName == "" {
		siteName = canonicalURL
	}
	if canonicalURL == "" {
		if siteName == "" {
			return ""
		}
		return fmt.Sprintf("<hr/><p><em>Originally published on %s.</em></p>", html.EscapeString(siteName))
	}
	return fmt.Sprintf(`<hr/><p><em>Originally published on <a href="%s">%s</a>.</em></p>`,
		html.EscapeString(canonicalURL), html.EscapeString(siteName))
}

// WithFooter normalizes raw and appends the attribution footer.
func WithFooter(raw, siteName, canonicalURL string) string {
	body := Normalize(raw)
	footer := Footer(siteName, canonicalURL)
	if footer == "" {
		return body
	}
	if body == "" {
		return footer
	}
	return body + "\n\n" + footer
}
