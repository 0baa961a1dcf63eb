package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/hivepress/internal/bridge"
)

// RepliesOptions holds flags for the replies command.
type RepliesOptions struct {
	*RootOptions
	Start int
	Max   int
}

// NewRepliesCommand creates the replies command.
func NewRepliesCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RepliesOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replies <author> <permlink>",
		Short: "List the remote reply tree of a chain post",
		Long: `List every reply below author/permlink from the reply index, parents
before children. Nothing is stored.

Examples:
  hivepress replies alice hello-world-1
  hivepress replies alice hello-world-1 --start 10 --max 20`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplies(opts, args[0], args[1], cmd)
		},
	}

	cmd.Flags().IntVar(&opts.Start, "start", 0, "skip this many replies")
	cmd.Flags().IntVar(&opts.Max, "max", 0, "return at most this many replies (0 = all)")

	return cmd
}

func runReplies(opts *RepliesOptions, author, permlink string, cmd *cobra.Command) error {
	out := opts.formatter(cmd)

	if opts.Start < 0 || opts.Max < 0 {
		return out.Fail(bridge.NewValidationError("--start and --max must not be negative"))
	}

	a, err := openApp(cmd.Context(), opts.RootOptions, appOptions{})
	if err != nil {
		return out.Fail(err)
	}
	defer a.close()

	out.VerboseLog("Fetching replies below %s/%s", author, permlink)
	list, err := a.fetcher.FetchAllReplies(cmd.Context(), author, permlink, opts.Start, opts.Max)
	if err != nil {
		opts.Logger().Debug("fetch replies failed", "author", author, "permlink", permlink, "error", err)
		return out.Fail(err)
	}
	if list == nil {
		list = []bridge.RemoteReply{}
	}
	return out.Success(list, func(w io.Writer) {
		if len(list) == 0 {
			fmt.Fprintln(w, "No replies.")
			return
		}
		for _, r := range list {
			labelColor.Fprintf(w, "@%s/%s", r.Author, r.Permlink)
			fmt.Fprintf(w, " -> @%s/%s  %s\n", r.ParentAuthor, r.ParentPermlink, r.Created)
		}
	})
}

// NewCommentsCommand creates the comments command.
func NewCommentsCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "comments <post-id>",
		Short: "List the local comments imported for a post",
		Long: `List the local comments of a post in import order. Parent ids refer
to other comments of the same post; 0 means a top-level comment.

Example:
  hivepress comments 42 --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runComments(rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func runComments(opts *RootOptions, arg string, cmd *cobra.Command) error {
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

	list, err := st.ListComments(cmd.Context(), id)
	if err != nil {
		return out.Fail(err)
	}
	if list == nil {
		list = []bridge.LocalComment{}
	}
	return out.Success(list, func(w io.Writer) {
		if len(list) == 0 {
			fmt.Fprintln(w, "No comments.")
			return
		}
		for _, c := range list {
			labelColor.Fprintf(w, "#%d", c.ID)
			fmt.Fprintf(w, " parent=%d %s %s [%s]\n", c.ParentID, c.Author, c.CreatedAt.UTC().Format("2006-01-02 15:04:05"), c.Approval)
		}
	})
}
