package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/whatnick/frontend-deployment/internal/config"
)

func newOutputsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "outputs",
		Short: "Print the distribution domain and bucket name exported by the stack",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, inspector, err := operate(cmd)
			if err != nil {
				return err
			}

			outputs, err := inspector.Outputs(cmd.Context(), cfg.StackName, cfg.Site.ExportPrefix)
			if err != nil {
				return err
			}

			prefix := cfg.Site.ExportPrefix
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s\thttps://%s\n", prefix+config.DistributionExportName, outputs.DistributionDomainName)
			fmt.Fprintf(out, "%s\t%s\n", prefix+config.BucketExportName, outputs.BucketName)
			return nil
		},
	}
}
