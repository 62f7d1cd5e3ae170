package main

import (
	"github.com/aws/aws-cdk-go/awscdk/v2"
	"github.com/aws/constructs-go/constructs/v10"
	"github.com/aws/jsii-runtime-go"

	"github.com/whatnick/frontend-deployment/internal/config"
	"github.com/whatnick/frontend-deployment/internal/deployment"
)

type InfraStackProps struct {
	awscdk.StackProps
	Site *config.SiteConfig
	Tags map[string]string
}

func NewInfraStack(scope constructs.Construct, id string, props *InfraStackProps) awscdk.Stack {
	var sprops awscdk.StackProps
	site := config.Default().Site
	var tags map[string]string
	if props != nil {
		sprops = props.StackProps
		if props.Site != nil {
			site = *props.Site
		}
		tags = props.Tags
	}
	stack := awscdk.NewStack(scope, &id, &sprops)

	for key, value := range tags {
		awscdk.Tags_Of(stack).Add(jsii.String(key), jsii.String(value), nil)
	}

	AddDeploymentService(stack, site)

	return stack
}

// AddDeploymentService attaches the frontend hosting construct to stack.
func AddDeploymentService(stack awscdk.Stack, site config.SiteConfig) *deployment.DeploymentService {
	priceClass, err := deployment.PriceClassFor(site.PriceClass)
	if err != nil {
		panic(err)
	}

	props := &deployment.DeploymentServiceProps{
		AssetPath:         jsii.String(site.AssetPath),
		DefaultRootObject: jsii.String(site.DefaultRootObject),
		ErrorPagePath:     jsii.String(site.ErrorPagePath),
		PriceClass:        priceClass,
		ExportPrefix:      jsii.String(site.ExportPrefix),
	}
	if len(site.InvalidationPaths) > 0 {
		props.InvalidationPaths = jsii.Strings(site.InvalidationPaths...)
	}
	if site.Comment != "" {
		props.Comment = jsii.String(site.Comment)
	}

	return deployment.NewDeploymentService(stack, "DeploymentService", props)
}
