// Package reconcile mirrors remote reply trees into local comment threads.
//
// Each remote reply becomes at most one LocalComment per post, keyed by its
// lower-cased "author/permlink". Runs are idempotent: a second run with no
// new replies imports nothing. Runs for the same post are serialized with a
// keylock; the store's unique (post_id, dedup_key) constraint backs this up
// across processes.
package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/roach88/hivepress/internal/bridge"
	"github.com/roach88/hivepress/internal/config"
	"github.com/roach88/hivepress/internal/content"
	"github.com/roach88/hivepress/internal/keylock"
	"github.com/roach88/hivepress/internal/metrics"
)

// hiveTimeLayout is the node's timestamp format (UTC, no zone).
const hiveTimeLayout = "2006-01-02T15:04:05"

// Store is the persistence the reconciler needs.
type Store interface {
	GetPublishRecord(ctx context.Context, postID int64) (bridge.PublishRecord, bool, error)
	CommentIndex(ctx context.Context, postID int64) (map[string]int64, error)
	InsertComment(ctx context.Context, c bridge.LocalComment) (int64, bool, error)
}

// ReplySource fetches the full reply tree. *replies.Fetcher implements it.
type ReplySource interface {
	FetchAllReplies(ctx context.Context, author, permlink string, startIndex, maxCount int) ([]bridge.RemoteReply, error)
}

// Clock supplies the fallback timestamp for replies with an unparseable
// created field.
type Clock interface {
	Now() time.Time
}

type wallClock struct{}

func (wallClock) Now() time.Time { return time.Now().UTC() }

// Result counts one reconciliation. Imported + Skipped == TotalRemote.
type Result struct {
	Imported    int `json:"imported"`
	Skipped     int `json:"skipped"`
	TotalRemote int `json:"total_remote"`
}

// Add accumulates other into r.
func (r *Result) Add(other Result) {
	r.Imported += other.Imported
	r.Skipped += other.Skipped
	r.TotalRemote += other.TotalRemote
}

// Reconciler imports remote replies as local comments.
type Reconciler struct {
	frontendURL string
	store       Store
	replies     ReplySource
	clock       Clock
	locks       keylock.Locker
	metrics     *metrics.Metrics
	log         *slog.Logger
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithClock sets the fallback clock.
func WithClock(c Clock) Option {
	return func(r *Reconciler) { r.clock = c }
}

// WithLocker sets the per-post lock. Defaults to an in-process lock.
func WithLocker(l keylock.Locker) Option {
	return func(r *Reconciler) { r.locks = l }
}

// WithMetrics records reconcile outcomes.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Reconciler) { r.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Reconciler) {
		if l != nil {
			r.log = l
		}
	}
}

// New creates a Reconciler.
func New(cfg config.Config, st Store, src ReplySource, opts ...Option) *Reconciler {
	r := &Reconciler{
		frontendURL: cfg.FrontendURL,
		store:       st,
		replies:     src,
		clock:       wallClock{},
		locks:       keylock.NewLocal(),
		log:         slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Reconcile imports every remote reply of postID not yet present locally.
//
// Returns NOT_PUBLISHED when postID has no successful publish record, and
// the fetch error (TRANSPORT or REMOTE_REJECTION) when the reply tree could
// not be retrieved. Individual replies that cannot be stored are counted
// as skipped, never returned as errors.
func (r *Reconciler) Reconcile(ctx context.Context, postID int64, autoApprove bool) (Result, error) {
	if postID <= 0 {
		return Result{}, bridge.NewValidationError("post id must be positive, got %d", postID)
	}

	unlock, err := r.locks.Lock(ctx, "reconcile:"+strconv.FormatInt(postID, 10))
	if err != nil {
		return Result{}, fmt.Errorf("lock post %d: %w", postID, err)
	}
	defer unlock()

	start := time.Now()
	res, err := r.reconcile(ctx, postID, autoApprove)
	if err != nil {
		r.metrics.ReconcileFailed()
		r.log.Warn("reconcile failed", "post", postID, "code", bridge.CodeOf(err), "error", err)
		return Result{}, err
	}

	r.metrics.Reconciled(res.Imported, res.Skipped, time.Since(start).Seconds())
	r.log.Info("reconciled", "post", postID, "imported", res.Imported, "skipped", res.Skipped, "remote", res.TotalRemote)
	return res, nil
}

func (r *Reconciler) reconcile(ctx context.Context, postID int64, autoApprove bool) (Result, error) {
	rec, ok, err := r.store.GetPublishRecord(ctx, postID)
	if err != nil {
		return Result{}, err
	}
	if !ok || !rec.OK() {
		return Result{}, bridge.NewNotPublishedError(postID)
	}

	remote, err := r.replies.FetchAllReplies(ctx, rec.Author, rec.Permlink, 0, 0)
	if err != nil {
		return Result{}, err
	}

	index, err := r.store.CommentIndex(ctx, postID)
	if err != nil {
		return Result{}, err
	}

	approval := bridge.Pending
	if autoApprove {
		approval = bridge.Approved
	}

	res := Result{TotalRemote: len(remote)}
	for _, reply := range parentFirst(remote) {
		key := reply.DedupKey()
		if _, seen := index[key]; seen {
			res.Skipped++
			continue
		}
		if reply.Author == "" || reply.Permlink == "" {
			r.log.Debug("malformed reply skipped", "post", postID, "author", reply.Author, "permlink", reply.Permlink)
			res.Skipped++
			continue
		}

		var parentID int64
		if pk := reply.ParentKey(); pk != "" {
			parentID = index[pk]
		}

		id, inserted, err := r.store.InsertComment(ctx, bridge.LocalComment{
			PostID:    postID,
			ParentID:  parentID,
			DedupKey:  key,
			Author:    reply.Author,
			AuthorURL: r.authorURL(reply.Author),
			Content:   content.SanitizeReply(reply.Body),
			Approval:  approval,
			CreatedAt: r.created(reply.Created),
		})
		if err != nil {
			r.log.Warn("reply not stored", "post", postID, "reply", key, "error", err)
			res.Skipped++
			continue
		}
		index[key] = id
		if !inserted {
			res.Skipped++
			continue
		}
		res.Imported++
	}
	return res, nil
}

func (r *Reconciler) authorURL(author string) string {
	if r.frontendURL == "" {
		return ""
	}
	return r.frontendURL + "/@" + author
}

// created parses the reply timestamp, falling back to the clock.
func (r *Reconciler) created(s string) time.Time {
	if t, err := time.ParseInLocation(hiveTimeLayout, s, time.UTC); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC()
	}
	return r.clock.Now().UTC()
}
