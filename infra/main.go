package main

import (
	"log"
	"os"

	"code.cloudfoundry.org/lager/v3"
	"github.com/aws/aws-cdk-go/awscdk/v2"
	"github.com/aws/jsii-runtime-go"

	"github.com/whatnick/frontend-deployment/internal/assets"
	"github.com/whatnick/frontend-deployment/internal/config"
)

func main() {
	defer jsii.Close()

	app := awscdk.NewApp(nil)

	cfg, err := loadConfig(app)
	if err != nil {
		log.Fatalf("Error loading config: %s", err)
	}

	logger, err := config.NewLogger("frontend-infra", cfg.LogLevel, os.Stderr)
	if err != nil {
		log.Fatal(err)
	}

	if err := preflight(logger, cfg.Site); err != nil {
		// os.Exit skips the deferred Close
		jsii.Close()
		os.Exit(1)
	}

	NewInfraStack(app, cfg.StackName, &InfraStackProps{
		StackProps: awscdk.StackProps{
			Env: env(cfg),
		},
		Site: &cfg.Site,
		Tags: cfg.Tags,
	})

	logger.Info("synth", lager.Data{"stack": cfg.StackName, "region": cfg.Region})
	app.Synth(nil)
}

// preflight stops synth before the asset upload would fail or ship a site without its pages.
func preflight(logger lager.Logger, site config.SiteConfig) error {
	summary, err := assets.Inspect(site.AssetPath, site.DefaultRootObject, site.ErrorPagePath)
	if err != nil {
		logger.Error("asset-preflight", err, lager.Data{"asset-path": site.AssetPath})
		return err
	}
	logger.Info("asset-preflight", lager.Data{"files": summary.Files, "bytes": summary.Bytes})
	return nil
}

// loadConfig resolves file and environment settings; -c context values win over both.
func loadConfig(app awscdk.App) (*config.Config, error) {
	loader := config.NewLoader()
	if v := contextString(app, "assetPath"); v != "" {
		loader.Set("site.asset_path", v)
	}
	if v := contextString(app, "stackName"); v != "" {
		loader.Set("stack_name", v)
	}
	return loader.Load(contextString(app, "config"))
}

func contextString(app awscdk.App, key string) string {
	v, _ := app.Node().TryGetContext(jsii.String(key)).(string)
	return v
}

// env returns nil for an environment-agnostic stack when neither account nor region is known.
func env(cfg *config.Config) *awscdk.Environment {
	if cfg.Account == "" && cfg.Region == "" {
		return nil
	}
	e := &awscdk.Environment{}
	if cfg.Account != "" {
		e.Account = jsii.String(cfg.Account)
	}
	if cfg.Region != "" {
		e.Region = jsii.String(cfg.Region)
	}
	return e
}
