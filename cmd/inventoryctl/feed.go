package main

import (
	"context"
	"errors"

	"github.com/spf13/cobra"
)

func newFeedCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "feed",
		Short: "Inspect the change feed",
	}
	var (
		after string
		count int64
	)
	tail := &cobra.Command{
		Use:   "read",
		Short: "Print committed changes from the Redis stream",
		Args:  cobra.NoArgs,
		RunE: withApp(opts, func(ctx context.Context, cmd *cobra.Command, a *app, _ []string) error {
			if a.feed == nil {
				return errors.New("feed.redis_addr is not configured")
			}
			changes, err := a.feed.Read(ctx, after, count)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), changes)
		}),
	}
	tail.Flags().StringVar(&after, "after", "", "stream ID to start after")
	tail.Flags().Int64Var(&count, "count", 100, "maximum entries to print")
	cmd.AddCommand(tail)
	return cmd
}
