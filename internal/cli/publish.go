package cli

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/hivepress/internal/bridge"
	"github.com/roach88/hivepress/internal/chain"
)

// PublishOptions holds flags for the publish command.
type PublishOptions struct {
	*RootOptions

	// Signer overrides the default relay signer (for testing).
	Signer chain.Signer
}

// NewPublishCommand creates the publish command.
func NewPublishCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PublishOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "publish <post-id>",
		Short: "Publish a stored post to Hive",
		Long: `Publish a stored post to Hive as a root comment authored by the
configured account.

Publishing is idempotent: a post that already has a successful publish
record is not broadcast again, and the existing record is printed.

Exit codes:
  0 - Post is published
  1 - Broadcast failed (rejected by the node or node unreachable)
  2 - Command error (invalid post, missing configuration)

Examples:
  hivepress publish 42
  hivepress publish 42 --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPublish(opts, args[0], cmd)
		},
	}

	return cmd
}

func runPublish(opts *PublishOptions, arg string, cmd *cobra.Command) error {
	out := opts.formatter(cmd)

	id, err := parsePostID(arg)
	if err != nil {
		return out.Fail(err)
	}

	a, err := openApp(cmd.Context(), opts.RootOptions, appOptions{signer: opts.Signer})
	if err != nil {
		return out.Fail(err)
	}
	defer a.close()

	rec, err := a.bridge.Publish(cmd.Context(), id)
	if err != nil {
		opts.Logger().Debug("publish failed", "post_id", id, "error", err)
		return out.Fail(err)
	}
	return out.Success(rec, func(w io.Writer) {
		okColor.Fprintf(w, "Published post %d\n", rec.PostID)
		printRecord(w, rec)
	})
}

// NewRecordCommand creates the record command.
func NewRecordCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "record <post-id>",
		Short: "Show the publish record of a post",
		Long: `Show the publish record of a post: the chain author and permlink and
the transaction reference on success, or the last error.

Exits 1 when the post has never been published.

Example:
  hivepress record 42`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRecord(rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func runRecord(opts *RootOptions, arg string, cmd *cobra.Command) error {
	out := opts.formatter(cmd)

	id, err := parsePostID(arg)
	if err != nil {
		return out.Fail(err)
	}

	_, st, err := openStore(cmd.Context(), opts)
	if err != nil {
		return out.Fail(err)
	}
	defer st.Close()

	rec, ok, err := st.GetPublishRecord(cmd.Context(), id)
	if err != nil {
		return out.Fail(err)
	}
	if !ok {
		_ = out.Error("NOT_FOUND", "no publish record for this post", nil)
		exitErr := NewExitError(ExitFailure, "no publish record")
		exitErr.Reported = true
		return exitErr
	}
	return out.Success(rec, func(w io.Writer) { printRecord(w, rec) })
}

func printRecord(w io.Writer, rec bridge.PublishRecord) {
	field(w, "Post", rec.PostID)
	if rec.OK() {
		field(w, "Author", rec.Author)
		field(w, "Permlink", rec.Permlink)
		field(w, "Tx", rec.TxRef)
	} else {
		errColor.Fprintf(w, "%-12s %s\n", "Error:", rec.Error)
	}
	field(w, "Updated", rec.UpdatedAt.UTC().Format("2006-01-02 15:04:05"))
}
