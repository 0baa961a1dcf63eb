// Package slug derives URL-safe permlinks from post titles.
//
// Derive is pure: the same title and seed always produce the same permlink.
// The seed becomes a base-36 suffix so that repeated publishes of similarly
// titled posts do not collide under one author.
package slug

import (
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	// MaxBaseLen bounds the title-derived portion of a permlink.
	MaxBaseLen = 50

	// MaxLen is the chain's permlink length limit.
	MaxLen = 255

	fallbackBase = "post"
)

var (
	nonSlug   = regexp.MustCompile(`[^a-z0-9]+`)
	validSlug = regexp.MustCompile(`^[a-z0-9-]+$`)
	nonTag    = regexp.MustCompile(`[^a-z0-9-]+`)
)

// SeedSource yields disambiguation seeds. Implementations should be
// monotonic or random; tests use a deterministic counter.
type SeedSource interface {
	Next() int64
}

// TimeSeed seeds from the wall clock in milliseconds.
type TimeSeed struct{}

// Next returns the current unix time in milliseconds.
func (TimeSeed) Next() int64 {
	return time.Now().UnixMilli()
}

// Deriver binds Derive to a seed source.
type Deriver struct {
	Seeds SeedSource
}

// NewDeriver returns a Deriver seeded by seeds, or by TimeSeed if nil.
func NewDeriver(seeds SeedSource) *Deriver {
	if seeds == nil {
		seeds = TimeSeed{}
	}
	return &Deriver{Seeds: seeds}
}

// Next derives a permlink for title using the next seed.
func (d *Deriver) Next(title string) string {
	return Derive(title, d.Seeds.Next())
}

// Derive turns title into a permlink of the form "<base>-<suffix>".
//
// The base is the title with diacritics folded away, lower-cased, runs of
// characters outside [a-z0-9] collapsed to one hyphen, trimmed of hyphens
// and truncated to MaxBaseLen. An empty base becomes "post". The suffix is
// the seed in base 36 (absolute value).
func Derive(title string, seed int64) string {
	base := Base(title)
	if seed < 0 {
		seed = -seed
	}
	out := base + "-" + strconv.FormatInt(seed, 36)
	if len(out) > MaxLen {
		out = strings.TrimRight(out[:MaxLen], "-")
	}
	return out
}

// Base returns the title-derived portion of a permlink, without suffix.
func Base(title string) string {
	folded := fold(title)
	s := nonSlug.ReplaceAllString(strings.ToLower(folded), "-")
	s = strings.Trim(s, "-")
	if len(s) > MaxBaseLen {
		s = strings.TrimRight(s[:MaxBaseLen], "-")
	}
	if s == "" {
		return fallbackBase
	}
	return s
}

// Valid reports whether s is a well-formed permlink.
func Valid(s string) bool {
	return len(s) <= MaxLen && validSlug.MatchString(s)
}

// fold decomposes s and drops combining marks, so "Café" becomes "Cafe".
func fold(s string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// Tag cleans one post tag: lower-cased, characters outside [a-z0-9-]
// dropped, surrounding hyphens trimmed. The result may be empty.
func Tag(s string) string {
	s = nonTag.ReplaceAllString(strings.ToLower(strings.TrimSpace(s)), "")
	return strings.Trim(s, "-")
}
