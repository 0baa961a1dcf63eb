package publish

import (
	"github.com/samber/lo"

	"github.com/roach88/hivepress/internal/slug"
)

// MaxTags is the chain's tag limit per post.
const MaxTags = 5

// NormalizeTags cleans tags with slug.Tag, drops empties and duplicates,
// and keeps at most MaxTags. An empty result falls back to fallback alone.
func NormalizeTags(tags []string, fallback string) []string {
	cleaned := lo.FilterMap(tags, func(tag string, _ int) (string, bool) {
		tag = slug.Tag(tag)
		return tag, tag != ""
	})
	cleaned = lo.Uniq(cleaned)
	if len(cleaned) > MaxTags {
		cleaned = cleaned[:MaxTags]
	}
	if len(cleaned) == 0 {
		if fallback = slug.Tag(fallback); fallback == "" {
			return []string{}
		}
		return []string{fallback}
	}
	return cleaned
}
