package main

import (
	"context"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

func newAttachCommand(opts *rootOptions) *cobra.Command {
	var name, contentType string
	cmd := &cobra.Command{
		Use:     "attach <type> <id> <file>",
		Short:   "Attach a file to a record",
		Example: `  inventoryctl attach item 3f2c... manual.pdf --name manual.pdf`,
		Args:    cobra.ExactArgs(3),
		RunE: withApp(opts, func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
			t, err := parseType(args[0])
			if err != nil {
				return err
			}
			f, err := os.Open(args[2])
			if err != nil {
				return err
			}
			defer f.Close()
			if name == "" {
				name = filepath.Base(args[2])
			}
			if contentType == "" {
				contentType = mime.TypeByExtension(filepath.Ext(name))
			}
			svc, err := a.attachments(ctx)
			if err != nil {
				return err
			}
			att, err := svc.Attach(ctx, t, args[1], name, contentType, f)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), att)
		}),
	}
	cmd.Flags().StringVar(&name, "name", "", "attachment name (default: file base name)")
	cmd.Flags().StringVar(&contentType, "content-type", "", "content type (default: from the name's extension)")
	return cmd
}

func newAttachmentsCommand(opts *rootOptions) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "attachments <type> <id> [name]",
		Short: "List a record's attachments, or fetch one by name",
		Args:  cobra.RangeArgs(2, 3),
		RunE: withApp(opts, func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
			t, err := parseType(args[0])
			if err != nil {
				return err
			}
			svc, err := a.attachments(ctx)
			if err != nil {
				return err
			}
			if len(args) == 2 {
				list, err := svc.ListInfo(ctx, t, args[1])
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), list)
			}
			if output == "" {
				info, err := svc.Info(ctx, t, args[1], args[2])
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), info)
			}
			_, rc, err := svc.Get(ctx, t, args[1], args[2])
			if err != nil {
				return err
			}
			defer rc.Close()
			w := cmd.OutOrStdout()
			if output != "-" {
				f, err := os.Create(output)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}
			if _, err := io.Copy(w, rc); err != nil {
				return fmt.Errorf("copy attachment: %w", err)
			}
			return nil
		}),
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "write the attachment contents to a file, - for stdout")
	return cmd
}
