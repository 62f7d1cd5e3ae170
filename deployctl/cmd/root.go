package cmd

import (
	"context"
	"fmt"
	"os"

	"code.cloudfoundry.org/lager/v3"
	"github.com/spf13/cobra"

	"github.com/whatnick/frontend-deployment/internal/config"
	"github.com/whatnick/frontend-deployment/internal/stackops"
)

// stackInspector is the part of stackops.Inspector the commands drive.
type stackInspector interface {
	Outputs(ctx context.Context, stackName, exportPrefix string) (stackops.StackOutputs, error)
	FindDistribution(ctx context.Context, domainName string) (string, error)
	Verify(ctx context.Context, outputs stackops.StackOutputs, want stackops.Expectations) (stackops.Report, error)
	Invalidate(ctx context.Context, distributionID string, paths []string) (string, error)
}

var newInspector = func(region string, logger lager.Logger) (stackInspector, error) {
	inspector, err := stackops.NewSessionInspector(region, logger)
	if err != nil {
		return nil, err
	}
	return inspector, nil
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "deployctl",
		Short: "Operate the static frontend stack",
		Long: `deployctl checks the frontend build before a deploy and inspects, verifies
and invalidates the deployed bucket and CloudFront distribution afterwards`,
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "YAML config file; defaults and FRONTEND_* env apply when empty")
	root.PersistentFlags().String("log-level", "", "override the configured log level: DEBUG, INFO, ERROR or FATAL")
	root.PersistentFlags().String("region", "", "AWS region; falls back to the config, then the shared AWS config")

	root.AddCommand(
		newPreflightCmd(),
		newOutputsCmd(),
		newVerifyCmd(),
		newInvalidateCmd(),
		newGraphCmd(),
	)
	return root
}

func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig reads --config; --log-level and --region win over the file and environment.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	configFile, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}

	loader := config.NewLoader()
	if err := loader.BindFlag("log_level", cmd.Flags().Lookup("log-level")); err != nil {
		return nil, err
	}
	if err := loader.BindFlag("region", cmd.Flags().Lookup("region")); err != nil {
		return nil, err
	}
	return loader.Load(configFile)
}

func newLogger(cmd *cobra.Command, cfg *config.Config) (lager.Logger, error) {
	return config.NewLogger("deployctl", cfg.LogLevel, cmd.ErrOrStderr())
}

// operate prepares what every command talking to AWS needs.
func operate(cmd *cobra.Command) (*config.Config, stackInspector, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	logger, err := newLogger(cmd, cfg)
	if err != nil {
		return nil, nil, err
	}
	inspector, err := newInspector(cfg.Region, logger)
	if err != nil {
		return nil, nil, err
	}
	return cfg, inspector, nil
}
