package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/alphabot-ai/threadview/internal/config"
	"github.com/alphabot-ai/threadview/internal/logging"
	"github.com/alphabot-ai/threadview/internal/source"
	"github.com/alphabot-ai/threadview/internal/store"
	"github.com/alphabot-ai/threadview/internal/thread"
	"github.com/alphabot-ai/threadview/internal/view"
)

var log = logging.NewLogger("threadview")

var (
	cfg *config.Config

	username string
	noCache  bool
	loadAll  bool
	parentID string

	postsCursor string

	rootCmd = &cobra.Command{
		Use:           "threadview",
		Short:         "Browse and take part in comment threads of a discussion API",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			cfg = config.Load()
			if username != "" {
				cfg.Username = username
			}
			if noCache {
				cfg.DatabasePath = ""
			}
			logging.Setup(cfg.LogLevel)
		},
	}

	showCmd = &cobra.Command{
		Use:   "show <post-id>",
		Short: "Print the comment thread of a post",
		Args:  cobra.ExactArgs(1),
		RunE:  runShow,
	}

	replyCmd = &cobra.Command{
		Use:   "reply <post-id> <body>",
		Short: "Post a comment, or a reply with --parent",
		Args:  cobra.ExactArgs(2),
		RunE:  runReply,
	}

	editCmd = &cobra.Command{
		Use:   "edit <post-id> <comment-id> <body>",
		Short: "Replace the text of a comment",
		Args:  cobra.ExactArgs(3),
		RunE:  runEdit,
	}

	deleteCmd = &cobra.Command{
		Use:   "delete <post-id> <comment-id>",
		Short: "Delete a comment; its replies stay visible",
		Args:  cobra.ExactArgs(2),
		RunE:  runDelete,
	}

	voteCmd = &cobra.Command{
		Use:   "vote <post-id> [comment-id] up|down",
		Short: "Vote on a post or one of its comments; voting the same way twice clears the vote",
		Args:  cobra.RangeArgs(2, 3),
		RunE:  runVote,
	}

	postsCmd = &cobra.Command{
		Use:   "posts",
		Short: "List posts, oldest first",
		Args:  cobra.NoArgs,
		RunE:  runPosts,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&username, "user", "", "username for comments and votes (overrides USERNAME)")
	rootCmd.PersistentFlags().BoolVar(&noCache, "no-cache", false, "skip the local snapshot cache")

	showCmd.Flags().BoolVar(&loadAll, "all", false, "load every page of root comments")
	replyCmd.Flags().StringVar(&parentID, "parent", "", "comment to reply to")
	postsCmd.Flags().StringVar(&postsCursor, "cursor", "", "cursor printed by the previous page")

	rootCmd.AddCommand(showCmd, replyCmd, editCmd, deleteCmd, voteCmd, postsCmd)
}

// openView builds a view of postID and loads its first page. The returned
// func releases the cache.
func openView(ctx context.Context, postID string) (*view.View, func(), error) {
	opts := view.Options{
		Username: cfg.Username,
		PageSize: cfg.PageSize,
		MaxDepth: cfg.MaxDepth,
	}
	cleanup := func() {}

	if cfg.DatabasePath != "" {
		st, err := store.NewSQLiteStore(cfg.DatabasePath)
		if err != nil {
			log.Warningf("cache disabled: %v", err)
		} else {
			opts.Store = st
			cleanup = func() { st.Close() }
		}
	}

	v := view.New(postID, newClient(), opts)
	if err := v.Open(ctx); err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("loading post %s: %w", postID, err)
	}
	return v, cleanup, nil
}

func newClient() *source.Client {
	return source.NewClient(cfg.APIBaseURL, cfg.RequestTimeout)
}

// loadPages fetches root pages until none remain.
func loadPages(ctx context.Context, v *view.View) error {
	for {
		more, err := v.LoadMore(ctx)
		if err != nil {
			return err
		}
		if !more {
			return nil
		}
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func runShow(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	v, cleanup, err := openView(ctx, args[0])
	if err != nil {
		return err
	}
	defer cleanup()

	if loadAll {
		if err := loadPages(ctx, v); err != nil {
			return err
		}
	}

	if err := v.LoadPost(ctx); err != nil {
		var apiErr *source.APIError
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound {
			return fmt.Errorf("post %s: %w", args[0], err)
		}
		log.Warningf("loading post %s: %v", args[0], err)
	}
	if h, ok := v.Post(); ok {
		printPost(cmd.OutOrStdout(), h)
	}
	printForest(cmd.OutOrStdout(), v.Snapshot())
	return nil
}

func runPosts(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	page, err := newClient().ListPosts(ctx, postsCursor)
	if err != nil {
		return err
	}
	printPosts(cmd.OutOrStdout(), page)
	return nil
}

// mutate opens the full thread of postID and runs fn against it.
func mutate(postID string, fn func(ctx context.Context, v *view.View) error) error {
	ctx, cancel := signalContext()
	defer cancel()

	v, cleanup, err := openView(ctx, postID)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := loadPages(ctx, v); err != nil {
		return err
	}
	return fn(ctx, v)
}

func runReply(cmd *cobra.Command, args []string) error {
	return mutate(args[0], func(ctx context.Context, v *view.View) error {
		id, err := v.Reply(ctx, parentID, args[1])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), id)
		return nil
	})
}

func runEdit(cmd *cobra.Command, args []string) error {
	return mutate(args[0], func(ctx context.Context, v *view.View) error {
		return v.Edit(ctx, args[1], args[2])
	})
}

func runDelete(cmd *cobra.Command, args []string) error {
	return mutate(args[0], func(ctx context.Context, v *view.View) error {
		return v.Delete(ctx, args[1])
	})
}

func runVote(cmd *cobra.Command, args []string) error {
	dir, err := parseDirection(args[len(args)-1])
	if err != nil {
		return err
	}
	if len(args) == 2 {
		return votePost(cmd, args[0], dir)
	}
	return mutate(args[0], func(ctx context.Context, v *view.View) error {
		if err := v.Vote(ctx, args[1], dir); err != nil {
			return err
		}
		if n, ok := v.Snapshot().Find(args[1]); ok {
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d\n", n.ID, n.DisplayScore())
		}
		return nil
	})
}

func votePost(cmd *cobra.Command, postID string, dir int) error {
	ctx, cancel := signalContext()
	defer cancel()

	v := view.New(postID, newClient(), view.Options{Username: cfg.Username})
	if err := v.LoadPost(ctx); err != nil {
		return fmt.Errorf("post %s: %w", postID, err)
	}
	if err := v.VotePost(ctx, dir); err != nil {
		return err
	}
	h, _ := v.Post()
	fmt.Fprintf(cmd.OutOrStdout(), "%s: %d\n", h.ID, h.DisplayScore())
	return nil
}

func parseDirection(s string) (int, error) {
	switch strings.ToLower(s) {
	case "up", "+1", "1":
		return 1, nil
	case "down", "-1":
		return -1, nil
	}
	return 0, fmt.Errorf("unknown vote direction %q, want up or down", s)
}

func printPost(w io.Writer, h view.PostHeader) {
	title := h.Title
	if title == "" {
		title = "(untitled)"
	}
	fmt.Fprintf(w, "[%+d] %s by %s\n", h.DisplayScore(), title, h.Author)
	if h.Body != "" {
		fmt.Fprintln(w, h.Body)
	}
	fmt.Fprintln(w)
}

func printPosts(w io.Writer, page *source.PostPage) {
	if len(page.Items) == 0 {
		fmt.Fprintln(w, "no posts")
	}
	for _, p := range page.Items {
		title := p.Title
		if title == "" {
			title = "(untitled)"
		}
		fmt.Fprintf(w, "%s [%+d] %s by %s\n", p.ID, p.VoteScore, title, p.Author)
	}
	if page.NextCursor != "" {
		fmt.Fprintf(w, "... more posts (use --cursor %s)\n", page.NextCursor)
	}
}

// printForest writes the thread as an indented outline.
func printForest(w io.Writer, f *thread.Forest) {
	if f.Len() == 0 {
		fmt.Fprintln(w, "no comments")
	}

	thread.Walk(f, func(n *thread.Node, depth int) bool {
		indent := strings.Repeat("  ", depth)

		body := n.Body
		if n.Tombstoned {
			body = "[deleted]"
		}
		var flags []string
		if n.Placeholder {
			flags = append(flags, "pending")
		}
		if n.Edited() && !n.Tombstoned {
			flags = append(flags, "edited")
		}
		switch n.Vote.Current {
		case 1:
			flags = append(flags, "upvoted")
		case -1:
			flags = append(flags, "downvoted")
		}
		suffix := ""
		if len(flags) > 0 {
			suffix = " (" + strings.Join(flags, ", ") + ")"
		}

		fmt.Fprintf(w, "%s[%+d] %s %s%s: %s\n", indent, n.DisplayScore(), n.ID, n.Author, suffix, body)
		if n.ReplyCursor != "" {
			fmt.Fprintf(w, "%s  ... more replies\n", indent)
		}
		return true
	})

	if f.NextCursor != "" {
		fmt.Fprintln(w, "... more comments (use --all)")
	}
}
