package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newInvalidateCmd() *cobra.Command {
	invalidateCmd := &cobra.Command{
		Use:   "invalidate",
		Short: "Invalidate cached objects of the deployed distribution",
		Long: `invalidate busts the CloudFront cache outside of a deploy. Without --path the
configured invalidation paths are used, which default to /*`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, inspector, err := operate(cmd)
			if err != nil {
				return err
			}

			paths, err := cmd.Flags().GetStringSlice("path")
			if err != nil {
				return err
			}
			if len(paths) == 0 {
				paths = cfg.Site.InvalidationPaths
			}

			distributionID, err := cmd.Flags().GetString("distribution-id")
			if err != nil {
				return err
			}
			if distributionID == "" {
				outputs, err := inspector.Outputs(cmd.Context(), cfg.StackName, cfg.Site.ExportPrefix)
				if err != nil {
					return err
				}
				distributionID, err = inspector.FindDistribution(cmd.Context(), outputs.DistributionDomainName)
				if err != nil {
					return err
				}
			}

			id, err := inspector.Invalidate(cmd.Context(), distributionID, paths)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "invalidation %s created on %s\n", id, distributionID)
			return nil
		},
	}

	invalidateCmd.Flags().StringSlice("path", nil, "path pattern to invalidate, repeatable")
	invalidateCmd.Flags().String("distribution-id", "", "skip the stack lookup and target this distribution")
	return invalidateCmd
}
