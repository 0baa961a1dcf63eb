package cli

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/roach88/hivepress/internal/bridge"
	"github.com/roach88/hivepress/internal/store"
)

// NewPostCommand creates the post command group, which manages the
// local posts table when no CMS host provides it.
func NewPostCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "post",
		Short: "Manage stored posts",
	}
	cmd.AddCommand(newPostPutCommand(rootOpts))
	cmd.AddCommand(newPostGetCommand(rootOpts))
	return cmd
}

func newPostPutCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "put <post.yaml>",
		Short: "Create or replace a stored post from a YAML file",
		Long: `Create or replace a stored post from a YAML file.

Example file:
  id: 42
  title: Hello World
  content: <p>Hi there</p>
  permalink: https://blog.example.com/hello-world
  status: published
  tags: [hive, blog]
  splits:
    - account: bob
      share: "12.5"

Unknown fields are rejected.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPostPut(opts, args[0], cmd)
		},
	}
}

func runPostPut(opts *RootOptions, path string, cmd *cobra.Command) error {
	out := opts.formatter(cmd)

	post, err := LoadPost(path)
	if err != nil {
		return out.Fail(err)
	}

	_, st, err := openStore(cmd.Context(), opts)
	if err != nil {
		return out.Fail(err)
	}
	defer st.Close()

	if err := st.PutPost(cmd.Context(), post); err != nil {
		return out.Fail(err)
	}
	return out.Success(post, func(w io.Writer) {
		okColor.Fprintf(w, "Stored post %d\n", post.ID)
		field(w, "Title", post.Title)
	})
}

func newPostGetCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "get <post-id>",
		Short:         "Show a stored post",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := opts.formatter(cmd)

			id, err := parsePostID(args[0])
			if err != nil {
				return out.Fail(err)
			}
			_, st, err := openStore(cmd.Context(), opts)
			if err != nil {
				return out.Fail(err)
			}
			defer st.Close()

			post, err := st.GetPost(cmd.Context(), id)
			if errors.Is(err, store.ErrNotFound) {
				_ = out.Error("NOT_FOUND", "no such post", nil)
				return &ExitError{Code: ExitFailure, Message: "no such post", Err: err, Reported: true}
			}
			if err != nil {
				return out.Fail(err)
			}
			return out.Success(post, func(w io.Writer) {
				field(w, "Post", post.ID)
				field(w, "Title", post.Title)
				field(w, "Status", post.Status)
				field(w, "Permalink", post.Permalink)
				field(w, "Tags", post.Tags)
			})
		},
	}
}

// LoadPost reads a post from a YAML file with strict field validation.
func LoadPost(path string) (bridge.Post, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return bridge.Post{}, bridge.NewValidationError("read post file: %v", err)
	}

	var post bridge.Post
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&post); err != nil {
		return bridge.Post{}, bridge.NewValidationError("parse post file: %v", err)
	}

	if err := validatePost(post); err != nil {
		return bridge.Post{}, fmt.Errorf("invalid post: %w", err)
	}
	return post, nil
}

// validatePost checks the fields every stored post needs. Title and
// splits are checked at publish time.
func validatePost(p bridge.Post) error {
	if p.ID <= 0 {
		return bridge.NewValidationError("id must be positive")
	}
	switch p.Status {
	case "", "draft", "published":
	default:
		return bridge.NewValidationError("status must be draft or published, got %q", p.Status)
	}
	return nil
}
