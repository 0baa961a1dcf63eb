package reconcile

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"

	"github.com/roach88/hivepress/internal/metrics"
)

// RunIDGenerator produces sweep run ids.
type RunIDGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 run ids.
//
// Thread-safety: UUIDv7Generator is stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate creates a new UUIDv7 and returns it as a hyphenated string.
// Panics if UUID generation fails (should never happen in practice).
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// PostLister lists the posts a sweep visits.
type PostLister interface {
	PublishedPostIDs(ctx context.Context) ([]int64, error)
}

// SweepResult summarizes one sweep.
type SweepResult struct {
	RunID  string           `json:"run_id"`
	Posts  int              `json:"posts"`
	Failed int              `json:"failed"`
	Totals Result           `json:"totals"`
	ByPost map[int64]Result `json:"by_post"`
}

// Sweeper reconciles every published post, one after another.
type Sweeper struct {
	reconciler *Reconciler
	posts      PostLister
	ids        RunIDGenerator
	metrics    *metrics.Metrics
	log        *slog.Logger
}

// NewSweeper creates a Sweeper. A nil ids defaults to UUIDv7Generator.
func NewSweeper(r *Reconciler, posts PostLister, ids RunIDGenerator) *Sweeper {
	if ids == nil {
		ids = UUIDv7Generator{}
	}
	return &Sweeper{
		reconciler: r,
		posts:      posts,
		ids:        ids,
		metrics:    r.metrics,
		log:        r.log,
	}
}

// Sweep reconciles all successfully published posts. A failing post does
// not stop the sweep; all failures are returned together. Cancelling ctx
// stops before the next post.
func (s *Sweeper) Sweep(ctx context.Context, autoApprove bool) (SweepResult, error) {
	res := SweepResult{RunID: s.ids.Generate(), ByPost: make(map[int64]Result)}
	log := s.log.With("run", res.RunID)

	ids, err := s.posts.PublishedPostIDs(ctx)
	if err != nil {
		return res, fmt.Errorf("sweep %s: %w", res.RunID, err)
	}

	var errs *multierror.Error
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			errs = multierror.Append(errs, err)
			break
		}
		res.Posts++

		r, err := s.reconciler.Reconcile(ctx, id, autoApprove)
		if err != nil {
			res.Failed++
			errs = multierror.Append(errs, fmt.Errorf("post %d: %w", id, err))
			continue
		}
		res.ByPost[id] = r
		res.Totals.Add(r)
	}

	s.metrics.Swept()
	log.Info("sweep finished", "posts", res.Posts, "failed", res.Failed,
		"imported", res.Totals.Imported, "skipped", res.Totals.Skipped)
	return res, errs.ErrorOrNil()
}
