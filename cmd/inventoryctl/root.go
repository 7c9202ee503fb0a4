package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	var opts rootOptions
	cmd := &cobra.Command{
		Use:   "inventoryctl",
		Short: "Manage inventory collections, items and tag configuration",
		Long: `inventoryctl saves, validates and reads inventory records.

Records are read as JSON from a file argument or standard input. Settings come
from inventory.yaml and INVENTORY_* environment variables; flags override both.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       Version,
	}
	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.configFile, "config", "", "settings file (default ./inventory.yaml)")
	flags.StringVar(&opts.storage, "storage", "", "storage driver: memory, sqlite or postgres")
	flags.StringVar(&opts.sqlitePath, "sqlite-path", "", "sqlite database file")
	flags.StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn or error")
	flags.BoolVar(&opts.metrics, "metrics", false, "print operation metrics to stderr on exit")

	cmd.AddCommand(
		newConfigCommand(&opts),
		newEntityCommand(&opts, "collection"),
		newEntityCommand(&opts, "item"),
		newGetCommand(&opts),
		newListCommand(&opts),
		newDeleteCommand(&opts),
		newValidateCommand(&opts),
		newAttachCommand(&opts),
		newAttachmentsCommand(&opts),
		newFeedCommand(&opts),
	)
	return cmd
}

// withApp opens the application for the duration of fn.
func withApp(opts *rootOptions, fn func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) (err error) {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		a, err := openApp(ctx, *opts)
		if err != nil {
			return err
		}
		defer func() {
			if opts.metrics {
				if merr := a.writeMetrics(cmd.ErrOrStderr()); merr != nil && err == nil {
					err = fmt.Errorf("write metrics: %w", merr)
				}
			}
			if cerr := a.Close(); cerr != nil && err == nil {
				err = cerr
			}
		}()
		return fn(ctx, cmd, a, args)
	}
}
