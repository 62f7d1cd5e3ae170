package cmd

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/whatnick/frontend-deployment/internal/stackops"
)

var (
	passStyle = color.New(color.FgGreen, color.Bold)
	failStyle = color.New(color.FgRed, color.Bold)
)

func newVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Check the deployed bucket and distribution are locked down and serve the SPA",
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
			report, err := inspector.Verify(cmd.Context(), outputs, stackops.Expectations{
				DefaultRootObject: cfg.Site.DefaultRootObject,
				ErrorPagePath:     cfg.Site.ErrorPagePath,
			})
			if err != nil {
				return err
			}

			printReport(cmd, report)
			if !report.Passed() {
				return errors.Errorf("%d of %d checks failed", failedChecks(report), len(report.Checks))
			}
			return nil
		},
	}
}

func printReport(cmd *cobra.Command, report stackops.Report) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "distribution %s\n", report.DistributionID)
	for _, check := range report.Checks {
		status := passStyle.Sprint("PASS")
		if !check.Passed {
			status = failStyle.Sprint("FAIL")
		}
		fmt.Fprintf(out, "  %s  %-20s %s\n", status, check.Name, check.Detail)
	}
}

func failedChecks(report stackops.Report) int {
	failed := 0
	for _, check := range report.Checks {
		if !check.Passed {
			failed++
		}
	}
	return failed
}
