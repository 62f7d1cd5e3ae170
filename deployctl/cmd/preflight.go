package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/whatnick/frontend-deployment/internal/assets"
)

func newPreflightCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "preflight",
		Short: "Check the frontend build output before deploying",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			logger, err := newLogger(cmd, cfg)
			if err != nil {
				return err
			}
			logger = logger.Session("preflight")

			summary, err := assets.Inspect(cfg.Site.AssetPath, cfg.Site.DefaultRootObject, cfg.Site.ErrorPagePath)
			if err != nil {
				logger.Error("inspect-assets", err)
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "stack        %s\n", cfg.StackName)
			fmt.Fprintf(out, "assets       %s\n", summary.Path)
			fmt.Fprintf(out, "files        %d\n", summary.Files)
			fmt.Fprintf(out, "bytes        %d\n", summary.Bytes)
			fmt.Fprintf(out, "root object  %s %s\n", cfg.Site.DefaultRootObject, passStyle.Sprint("found"))
			fmt.Fprintf(out, "error page   %s %s\n", cfg.Site.ErrorPagePath, passStyle.Sprint("found"))
			return nil
		},
	}
}
