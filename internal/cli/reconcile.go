package cli

import (
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/cobra"

	"github.com/roach88/hivepress/internal/bridge"
	"github.com/roach88/hivepress/internal/reconcile"
)

// ReconcileOptions holds flags for the reconcile and sweep commands.
type ReconcileOptions struct {
	*RootOptions
	AutoApprove bool

	// Clock overrides the fallback timestamp source (for testing).
	Clock reconcile.Clock

	// RunIDs overrides the sweep run id generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	RunIDs reconcile.RunIDGenerator
}

// autoApprove returns the flag when given and the configured default
// otherwise.
func (o *ReconcileOptions) autoApprove(cmd *cobra.Command, a *app) bool {
	if cmd.Flags().Changed("auto-approve") {
		return o.AutoApprove
	}
	return a.cfg.AutoApprove
}

// NewReconcileCommand creates the reconcile command.
func NewReconcileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReconcileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "reconcile <post-id>",
		Short: "Import replies to a published post as local comments",
		Long: `Fetch every reply below a published post and import the ones not
seen before as local comments, threaded under their parents.

Running reconcile again imports only new replies.

Exit codes:
  0 - Replies reconciled
  1 - Post not published, or the reply index failed
  2 - Command error

Examples:
  hivepress reconcile 42
  hivepress reconcile 42 --auto-approve`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReconcile(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.AutoApprove, "auto-approve", false, "mark imported comments approved (default from config)")

	return cmd
}

func runReconcile(opts *ReconcileOptions, arg string, cmd *cobra.Command) error {
	out := opts.formatter(cmd)

	id, err := parsePostID(arg)
	if err != nil {
		return out.Fail(err)
	}

	a, err := openApp(cmd.Context(), opts.RootOptions, appOptions{clock: opts.Clock})
	if err != nil {
		return out.Fail(err)
	}
	defer a.close()

	res, err := a.reconciler.Reconcile(cmd.Context(), id, opts.autoApprove(cmd, a))
	if err != nil {
		opts.Logger().Debug("reconcile failed", "post_id", id, "error", err)
		return out.Fail(err)
	}
	return out.Success(res, func(w io.Writer) {
		okColor.Fprintf(w, "Reconciled post %d\n", id)
		printResult(w, res)
	})
}

// SweepOutput is the sweep command's result.
type SweepOutput struct {
	reconcile.SweepResult
	Errors []string `json:"errors,omitempty"`
}

// NewSweepCommand creates the sweep command.
func NewSweepCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReconcileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Reconcile every published post",
		Long: `Reconcile every successfully published post, one after another.

A failing post does not stop the sweep. Failures are listed and the
command exits 1 if any post failed.

Example:
  hivepress sweep --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSweep(opts, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.AutoApprove, "auto-approve", false, "mark imported comments approved (default from config)")

	return cmd
}

func runSweep(opts *ReconcileOptions, cmd *cobra.Command) error {
	out := opts.formatter(cmd)

	a, err := openApp(cmd.Context(), opts.RootOptions, appOptions{clock: opts.Clock})
	if err != nil {
		return out.Fail(err)
	}
	defer a.close()

	res, err := a.sweeper(opts.RunIDs).Sweep(cmd.Context(), opts.autoApprove(cmd, a))

	var merr *multierror.Error
	if err != nil && !errors.As(err, &merr) {
		return out.Fail(err)
	}

	sweepOut := SweepOutput{SweepResult: res}
	if merr != nil {
		for _, e := range merr.Errors {
			sweepOut.Errors = append(sweepOut.Errors, bridge.UserMessage(e))
		}
	}
	if serr := out.Success(sweepOut, func(w io.Writer) { printSweep(w, sweepOut) }); serr != nil {
		return serr
	}
	if merr != nil {
		return &ExitError{Code: ExitFailure, Message: "sweep failed for some posts", Err: err, Reported: true}
	}
	return nil
}

func printResult(w io.Writer, res reconcile.Result) {
	field(w, "Imported", res.Imported)
	field(w, "Skipped", res.Skipped)
	field(w, "Remote", res.TotalRemote)
}

func printSweep(w io.Writer, s SweepOutput) {
	field(w, "Run", s.RunID)
	field(w, "Posts", s.Posts)
	field(w, "Failed", s.Failed)
	printResult(w, s.Totals)

	ids := make([]int64, 0, len(s.ByPost))
	for id := range s.ByPost {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		r := s.ByPost[id]
		labelColor.Fprintf(w, "  post %d:", id)
		fmt.Fprintf(w, " %d imported, %d skipped\n", r.Imported, r.Skipped)
	}
	for _, msg := range s.Errors {
		errColor.Fprintf(w, "  %s\n", msg)
	}
}
