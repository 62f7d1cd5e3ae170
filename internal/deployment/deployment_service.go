package deployment

import (
	"github.com/aws/aws-cdk-go/awscdk/v2"
	"github.com/aws/aws-cdk-go/awscdk/v2/awscloudfront"
	"github.com/aws/aws-cdk-go/awscdk/v2/awscloudfrontorigins"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsiam"
	"github.com/aws/aws-cdk-go/awscdk/v2/awss3"
	"github.com/aws/aws-cdk-go/awscdk/v2/awss3deployment"
	"github.com/aws/constructs-go/constructs/v10"
	"github.com/aws/jsii-runtime-go"
	"github.com/pkg/errors"

	"github.com/whatnick/frontend-deployment/internal/config"
)

const (
	DefaultAssetPath           = "./resources/build/browser"
	DefaultRootObject          = "index.html"
	DefaultErrorPagePath       = "/index.html"
	DefaultInvalidationPath    = "/*"
	CloudFrontServicePrincipal = "cloudfront.amazonaws.com"

	DistributionExportName = config.DistributionExportName
	BucketExportName       = config.BucketExportName
)

// DeploymentServiceProps tunes the hosting construct. Every field is optional.
type DeploymentServiceProps struct {
	// Directory with the pre-built frontend. Defaults to DefaultAssetPath.
	AssetPath *string
	// Object served for "/". Defaults to index.html.
	DefaultRootObject *string
	// Page served with a 200 when the origin answers 404, so client-side routes resolve.
	ErrorPagePath *string
	// Paths invalidated after each upload. Defaults to a full cache bust.
	InvalidationPaths *[]*string
	PriceClass        awscloudfront.PriceClass
	Comment           *string
	// Prepended to both export names, for several sites in one account/region.
	ExportPrefix *string
}

// DeploymentService hosts a single page application from a private bucket behind CloudFront.
type DeploymentService struct {
	constructs.Construct
	Bucket              awss3.Bucket
	OriginAccessControl awscloudfront.S3OriginAccessControl
	Distribution        awscloudfront.Distribution
	Deployment          awss3deployment.BucketDeployment
}

func NewDeploymentService(scope constructs.Construct, id string, props *DeploymentServiceProps) *DeploymentService {
	if props == nil {
		props = &DeploymentServiceProps{}
	}

	ds := &DeploymentService{
		Construct: constructs.NewConstruct(scope, jsii.String(id)),
	}

	ds.createBucket()
	ds.createDistribution(props)
	ds.createDeployment(props)
	ds.createOutputs(props)

	return ds
}

func (ds *DeploymentService) createBucket() {
	// Emptied and removed with the stack; never publicly readable.
	ds.Bucket = awss3.NewBucket(ds.Construct, jsii.String("FrontendBucket"), &awss3.BucketProps{
		AutoDeleteObjects: jsii.Bool(true),
		RemovalPolicy:     awscdk.RemovalPolicy_DESTROY,
		BlockPublicAccess: awss3.BlockPublicAccess_BLOCK_ALL(),
		ObjectOwnership:   awss3.ObjectOwnership_BUCKET_OWNER_ENFORCED,
	})

	ds.Bucket.AddToResourcePolicy(awsiam.NewPolicyStatement(&awsiam.PolicyStatementProps{
		Effect:  awsiam.Effect_ALLOW,
		Actions: jsii.Strings("s3:GetObject"),
		Resources: &[]*string{
			ds.Bucket.BucketArn(),
			ds.Bucket.ArnForObjects(jsii.String("*")),
		},
		Principals: &[]awsiam.IPrincipal{
			awsiam.NewServicePrincipal(jsii.String(CloudFrontServicePrincipal), nil),
		},
	}))
}

func (ds *DeploymentService) createDistribution(props *DeploymentServiceProps) {
	ds.OriginAccessControl = awscloudfront.NewS3OriginAccessControl(ds.Construct, jsii.String("FrontendOAC"), &awscloudfront.S3OriginAccessControlProps{
		Signing: awscloudfront.Signing_SIGV4_ALWAYS(),
	})

	origin := awscloudfrontorigins.S3BucketOrigin_WithOriginAccessControl(ds.Bucket, &awscloudfrontorigins.S3BucketOriginWithOACProps{
		OriginAccessControl: ds.OriginAccessControl,
	})

	ds.Distribution = awscloudfront.NewDistribution(ds.Construct, jsii.String("CloudfrontDistribution"), &awscloudfront.DistributionProps{
		DefaultBehavior: &awscloudfront.BehaviorOptions{
			Origin:               origin,
			ViewerProtocolPolicy: awscloudfront.ViewerProtocolPolicy_REDIRECT_TO_HTTPS,
		},
		DefaultRootObject: stringOr(props.DefaultRootObject, DefaultRootObject),
		ErrorResponses: &[]*awscloudfront.ErrorResponse{
			{
				HttpStatus:         jsii.Number(404),
				ResponseHttpStatus: jsii.Number(200),
				ResponsePagePath:   stringOr(props.ErrorPagePath, DefaultErrorPagePath),
			},
		},
		PriceClass: props.PriceClass,
		Comment:    props.Comment,
	})
}

func (ds *DeploymentService) createDeployment(props *DeploymentServiceProps) {
	paths := props.InvalidationPaths
	if paths == nil || len(*paths) == 0 {
		paths = jsii.Strings(DefaultInvalidationPath)
	}

	ds.Deployment = awss3deployment.NewBucketDeployment(ds.Construct, jsii.String("BucketDeployment"), &awss3deployment.BucketDeploymentProps{
		Sources: &[]awss3deployment.ISource{
			awss3deployment.Source_Asset(stringOr(props.AssetPath, DefaultAssetPath), nil),
		},
		DestinationBucket: ds.Bucket,
		Distribution:      ds.Distribution,
		DistributionPaths: paths,
	})
}

func (ds *DeploymentService) createOutputs(props *DeploymentServiceProps) {
	prefix := *stringOr(props.ExportPrefix, "")

	awscdk.NewCfnOutput(ds.Construct, jsii.String("CloudFrontURL"), &awscdk.CfnOutputProps{
		Value:       ds.Distribution.DomainName(),
		Description: jsii.String("The distribution URL"),
		ExportName:  jsii.String(prefix + DistributionExportName),
	})
	awscdk.NewCfnOutput(ds.Construct, jsii.String("BucketName"), &awscdk.CfnOutputProps{
		Value:       ds.Bucket.BucketName(),
		Description: jsii.String("The name of the S3 bucket"),
		ExportName:  jsii.String(prefix + BucketExportName),
	})
}

// PriceClassFor maps the short config names ("100", "200", "All") onto CloudFront price classes.
// An empty name keeps the CloudFront default.
func PriceClassFor(name string) (awscloudfront.PriceClass, error) {
	switch name {
	case "":
		return "", nil
	case "100":
		return awscloudfront.PriceClass_PRICE_CLASS_100, nil
	case "200":
		return awscloudfront.PriceClass_PRICE_CLASS_200, nil
	case "All":
		return awscloudfront.PriceClass_PRICE_CLASS_ALL, nil
	}
	return "", errors.Errorf("unknown price class %q", name)
}

func stringOr(v *string, fallback string) *string {
	if v == nil || *v == "" {
		return jsii.String(fallback)
	}
	return v
}
