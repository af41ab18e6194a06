package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/happycod3r/ytapi/internal/pager"
	"github.com/happycod3r/ytapi/internal/youtube"
)

// defaultListLimit keeps an unqualified list command to one screenful.
const defaultListLimit = 50

// listFlags are shared by every list subcommand.
type listFlags struct {
	limit     int
	pageToken string
	pageSize  int
}

func (lf *listFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntVarP(&lf.limit, "limit", "n", defaultListLimit, "maximum number of items (negative for all)")
	cmd.Flags().StringVar(&lf.pageToken, "page-token", "", "continuation token printed by a previous run")
	cmd.Flags().IntVar(&lf.pageSize, "page-size", 0, "items per request, 1-50 (default from config)")
}

func newListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List YouTube resources",
	}

	cmd.AddCommand(newListPlaylistsCmd())
	cmd.AddCommand(newListPlaylistItemsCmd())
	cmd.AddCommand(newListSubscriptionsCmd())
	cmd.AddCommand(newListSearchCmd())
	cmd.AddCommand(newListCommentsCmd())

	return cmd
}

func newListPlaylistsCmd() *cobra.Command {
	var (
		lf      listFlags
		channel string
	)

	cmd := &cobra.Command{
		Use:   "playlists",
		Short: "List your playlists, or a channel's public playlists",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			req := youtube.MyPlaylists()
			if channel != "" {
				req = youtube.ChannelPlaylists(channel)
			}

			return runList(cmd, req, lf)
		},
	}

	lf.register(cmd)
	cmd.Flags().StringVar(&channel, "channel", "", "channel ID (default: your own)")

	return cmd
}

func newListPlaylistItemsCmd() *cobra.Command {
	var lf listFlags

	cmd := &cobra.Command{
		Use:   "playlist-items <playlist-id>",
		Short: "List the videos in a playlist",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(cmd, youtube.PlaylistItems(args[0]), lf)
		},
	}

	lf.register(cmd)

	return cmd
}

func newListSubscriptionsCmd() *cobra.Command {
	var (
		lf      listFlags
		channel string
	)

	cmd := &cobra.Command{
		Use:   "subscriptions",
		Short: "List your subscriptions, or a channel's public subscriptions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			req := youtube.MySubscriptions()
			if channel != "" {
				req = youtube.ChannelSubscriptions(channel)
			}

			return runList(cmd, req, lf)
		},
	}

	lf.register(cmd)
	cmd.Flags().StringVar(&channel, "channel", "", "channel ID (default: your own)")

	return cmd
}

func newListSearchCmd() *cobra.Command {
	var (
		lf    listFlags
		order string
	)

	cmd := &cobra.Command{
		Use:   "search <query>...",
		Short: "Search videos",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(cmd, youtube.SearchVideos(strings.Join(args, " "), order), lf)
		},
	}

	lf.register(cmd)
	cmd.Flags().StringVar(&order, "order", "", "result order: relevance, date, rating, title, viewCount")

	return cmd
}

func newListCommentsCmd() *cobra.Command {
	var (
		lf      listFlags
		replies bool
	)

	cmd := &cobra.Command{
		Use:   "comments <video-id>",
		Short: "List a video's comment threads, or replies to a comment with --replies",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := youtube.CommentThreads(args[0])
			if replies {
				req = youtube.CommentReplies(args[0])
			}

			return runList(cmd, req, lf)
		},
	}

	lf.register(cmd)
	cmd.Flags().BoolVar(&replies, "replies", false, "treat the argument as a comment ID and list its replies")

	return cmd
}

// listOutput is the JSON schema for `list --json`.
type listOutput struct {
	Items         []youtube.Summary `json:"items"`
	NextPageToken string            `json:"next_page_token,omitempty"`
}

func runList(cmd *cobra.Command, req youtube.PageRequest, lf listFlags) error {
	cc := mustCLIContext(cmd.Context())
	ctx, cancel := commandContext(cmd.Context(), cc.Logger)
	defer cancel()

	s, err := cc.openSession(ctx)
	if err != nil {
		return describeAuthError(err)
	}

	pageSize := lf.pageSize
	if pageSize <= 0 {
		pageSize = cc.Resolved.Network.PageSize
	}

	req = req.WithPageSize(min(pageSize, youtube.MaxPageSize)).WithPageToken(lf.pageToken)

	out, fetchErr := fetchSummaries(ctx, pager.New(s.Client, cc.Logger), req, lf.limit)

	if err := printList(cc, out); err != nil {
		return err
	}

	return describeFetchError(fetchErr)
}

// fetchSummaries drains one traversal. Items delivered before an error are
// returned with it so partial results still reach the user.
func fetchSummaries(ctx context.Context, f *pager.Fetcher, req youtube.PageRequest, limit int) (listOutput, error) {
	seq := f.Fetch(ctx, req, limit)
	out := listOutput{Items: []youtube.Summary{}}

	for it, err := range seq.All() {
		if err != nil {
			return out, err
		}

		sum, err := youtube.Summarize(it)
		if err != nil {
			return out, err
		}

		out.Items = append(out.Items, sum)
	}

	out.NextPageToken = seq.NextPageToken()

	return out, nil
}

func printList(cc *CLIContext, out listOutput) error {
	if cc.Flags.JSON {
		enc := json.NewEncoder(cc.Stdout)
		enc.SetIndent("", "  ")

		if err := enc.Encode(out); err != nil {
			return fmt.Errorf("encoding JSON output: %w", err)
		}

		return nil
	}

	if len(out.Items) > 0 {
		rows := make([][]string, 0, len(out.Items))
		for _, s := range out.Items {
			rows = append(rows, []string{
				s.ID,
				formatTime(s.PublishedAt),
				cleanCell(s.Channel, maxCellWidth/2),
				cleanCell(s.Title, maxCellWidth),
			})
		}

		printTable(cc.Stdout, []string{"ID", "PUBLISHED", "CHANNEL", "TITLE"}, rows)
	}

	if out.NextPageToken != "" {
		cc.Statusf("More results: --page-token %s\n", out.NextPageToken)
	}

	return nil
}

// describeFetchError tells the user how to continue an interrupted listing.
func describeFetchError(err error) error {
	if err == nil {
		return nil
	}

	var interrupted *pager.FetchInterrupted
	if errors.As(err, &interrupted) {
		if interrupted.ResumeToken == "" {
			return fmt.Errorf("%w (rerun the command to retry)", err)
		}

		return fmt.Errorf("%w (resume with --page-token %s)", err, interrupted.ResumeToken)
	}

	return describeAuthError(err)
}
