// Package replies retrieves the complete reply tree of a published item.
package replies

import (
	"context"
	"log/slog"
	"strings"

	"golang.org/x/time/rate"

	"github.com/roach88/hivepress/internal/bridge"
	"github.com/roach88/hivepress/internal/chain"
)

const (
	// DefaultPageSize is the list_comments limit per request.
	DefaultPageSize = 100

	// MinPageSize is the smallest page that can make progress: every page
	// after the first starts with the previous page's last item.
	MinPageSize = 2

	// MaxPageSize is the node's upper bound for list_comments.
	MaxPageSize = 1000

	orderByRoot = "by_root"
)

// Lister is the reply-index call the fetcher pages through.
type Lister interface {
	ListComments(ctx context.Context, params chain.ListCommentsParams) ([]chain.Comment, error)
}

// Fetcher pages through the reply index.
type Fetcher struct {
	lister   Lister
	pageSize int
	limiter  *rate.Limiter
	log      *slog.Logger
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithPageSize sets the page size, clamped to [MinPageSize, MaxPageSize].
func WithPageSize(n int) Option {
	return func(f *Fetcher) {
		if n < MinPageSize {
			n = MinPageSize
		}
		if n > MaxPageSize {
			n = MaxPageSize
		}
		f.pageSize = n
	}
}

// WithRate limits page requests to perSecond (burst 1). Zero or negative
// disables pacing.
func WithRate(perSecond float64) Option {
	return func(f *Fetcher) {
		if perSecond <= 0 {
			f.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		f.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(f *Fetcher) {
		if l != nil {
			f.log = l
		}
	}
}

// New creates a Fetcher over lister.
func New(lister Lister, opts ...Option) *Fetcher {
	f := &Fetcher{
		lister:   lister,
		pageSize: DefaultPageSize,
		limiter:  rate.NewLimiter(rate.Inf, 1),
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// FetchAllReplies returns every reply below author/permlink as a flat list
// in index order (parents before children), skipping the first startIndex
// replies and stopping once maxCount replies are collected (0 = no limit).
//
// Pages are requested until a page adds nothing new or the index moves on
// to another discussion. Any failure discards the pages already fetched.
func (f *Fetcher) FetchAllReplies(ctx context.Context, author, permlink string, startIndex, maxCount int) ([]bridge.RemoteReply, error) {
	if author == "" || permlink == "" {
		return nil, bridge.NewValidationError("author and permlink are required")
	}
	if startIndex < 0 || maxCount < 0 {
		return nil, bridge.NewValidationError("startIndex and maxCount must not be negative")
	}

	rootKey := bridge.DedupKey(author, permlink)
	var (
		out     []bridge.RemoteReply
		seen    = make(map[string]bool)
		skipped = 0
		cursor  = [2]string{"", ""}
		pages   = 0
	)

	for {
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, bridge.NewTransportError("list comments", err)
		}

		page, err := f.lister.ListComments(ctx, chain.ListCommentsParams{
			Start: []string{author, permlink, cursor[0], cursor[1]},
			Limit: f.pageSize,
			Order: orderByRoot,
		})
		if err != nil {
			return nil, err
		}
		pages++

		fresh, done := 0, false
		for _, c := range page {
			if !sameRoot(c, author, permlink) {
				done = true
				break
			}
			key := c.DedupKey()
			if seen[key] {
				continue
			}
			seen[key] = true
			fresh++
			if key == rootKey {
				continue
			}

			if skipped < startIndex {
				skipped++
				continue
			}
			out = append(out, c.RemoteReply)
			if maxCount > 0 && len(out) >= maxCount {
				done = true
				break
			}
		}

		if done || fresh == 0 || len(page) < f.pageSize {
			break
		}
		last := page[len(page)-1]
		cursor = [2]string{last.Author, last.Permlink}
	}

	f.log.Debug("replies fetched", "author", author, "permlink", permlink, "count", len(out), "pages", pages)
	if out == nil {
		out = []bridge.RemoteReply{}
	}
	return out, nil
}

func sameRoot(c chain.Comment, author, permlink string) bool {
	// Some index nodes omit root fields on the root item itself.
	if c.RootAuthor == "" && c.RootPermlink == "" {
		return true
	}
	return strings.EqualFold(c.RootAuthor, author) && strings.EqualFold(c.RootPermlink, permlink)
}
