package main

import (
	"context"

	"github.com/spf13/cobra"

	"inventorycore/internal/core"
)

func newConfigCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or change the tag encoding configuration",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the configuration, or its defaults when none is saved",
		Args:  cobra.NoArgs,
		RunE: withApp(opts, func(ctx context.Context, cmd *cobra.Command, a *app, _ []string) error {
			cfg, err := a.svc.Config().GetConfig(ctx, core.ConfigOptions{})
			if err != nil {
				return err
			}
			return writeRecord(cmd.OutOrStdout(), cfg)
		}),
	})

	var (
		companyPrefix  string
		iarPrefix      string
		password       string
		mixedPassword  bool
		passwordFormat string
	)
	set := &cobra.Command{
		Use:     "set",
		Short:   "Update configuration fields",
		Example: `  inventoryctl config set --company-prefix 0614141 --iar-prefix 8`,
		Args:    cobra.NoArgs,
		RunE: withApp(opts, func(ctx context.Context, cmd *cobra.Command, a *app, _ []string) error {
			var patch core.ConfigPatch
			flags := cmd.Flags()
			if flags.Changed("company-prefix") {
				patch.RFIDTagCompanyPrefix = &companyPrefix
			}
			if flags.Changed("iar-prefix") {
				patch.RFIDTagIndividualAssetReferencePrefix = &iarPrefix
			}
			if flags.Changed("access-password") {
				patch.RFIDTagAccessPassword = &password
			}
			if flags.Changed("mixed-password") {
				patch.DefaultUseMixedRFIDTagAccessPassword = &mixedPassword
			}
			if flags.Changed("password-encoding") {
				patch.RFIDTagAccessPasswordEncoding = &passwordFormat
			}
			cfg, err := a.svc.UpdateConfig(ctx, patch)
			if err != nil {
				return describeError(cmd, err)
			}
			return writeRecord(cmd.OutOrStdout(), cfg)
		}),
	}
	set.Flags().StringVar(&companyPrefix, "company-prefix", "", "GS1 company prefix (6 to 12 digits)")
	set.Flags().StringVar(&iarPrefix, "iar-prefix", "", "individual asset reference prefix")
	set.Flags().StringVar(&password, "access-password", "", "default RFID tag access password (8 hex digits)")
	set.Flags().BoolVar(&mixedPassword, "mixed-password", false, "mint a per-item access password by default")
	set.Flags().StringVar(&passwordFormat, "password-encoding", "", "access password encoding")
	cmd.AddCommand(set)
	return cmd
}
