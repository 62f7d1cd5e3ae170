// Package stackops reads and checks a deployed frontend stack through the AWS APIs.
package stackops

import (
	"code.cloudfoundry.org/lager/v3"
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/cloudformation"
	"github.com/aws/aws-sdk-go/service/cloudfront"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

var (
	ErrStackNotFound        = errors.New("stack does not exist")
	ErrOutputMissing        = errors.New("stack output is missing or empty")
	ErrDistributionNotFound = errors.New("cloudfront distribution does not exist")
)

type CloudFormationClient interface {
	DescribeStacksWithContext(ctx aws.Context, input *cloudformation.DescribeStacksInput, opts ...request.Option) (*cloudformation.DescribeStacksOutput, error)
}

type S3Client interface {
	GetPublicAccessBlockWithContext(ctx aws.Context, input *s3.GetPublicAccessBlockInput, opts ...request.Option) (*s3.GetPublicAccessBlockOutput, error)
	GetBucketPolicyWithContext(ctx aws.Context, input *s3.GetBucketPolicyInput, opts ...request.Option) (*s3.GetBucketPolicyOutput, error)
}

type CloudFrontClient interface {
	ListDistributionsPagesWithContext(ctx aws.Context, input *cloudfront.ListDistributionsInput, fn func(*cloudfront.ListDistributionsOutput, bool) bool, opts ...request.Option) error
	GetDistributionConfigWithContext(ctx aws.Context, input *cloudfront.GetDistributionConfigInput, opts ...request.Option) (*cloudfront.GetDistributionConfigOutput, error)
	CreateInvalidationWithContext(ctx aws.Context, input *cloudfront.CreateInvalidationInput, opts ...request.Option) (*cloudfront.CreateInvalidationOutput, error)
}

var (
	_ CloudFormationClient = (*cloudformation.CloudFormation)(nil)
	_ S3Client             = (*s3.S3)(nil)
	_ CloudFrontClient     = (*cloudfront.CloudFront)(nil)
)

type Inspector struct {
	cfnsvc CloudFormationClient
	s3svc  S3Client
	cfsvc  CloudFrontClient
	logger lager.Logger

	// overridable for tests
	callerReference func() string
}

func NewInspector(
	cfnsvc CloudFormationClient,
	s3svc S3Client,
	cfsvc CloudFrontClient,
	logger lager.Logger,
) *Inspector {
	return &Inspector{
		cfnsvc:          cfnsvc,
		s3svc:           s3svc,
		cfsvc:           cfsvc,
		logger:          logger.Session("stack-inspector"),
		callerReference: uuid.NewString,
	}
}

// NewSessionInspector wires the real service clients for region.
func NewSessionInspector(region string, logger lager.Logger) (*Inspector, error) {
	awsConfig := aws.NewConfig()
	if region != "" {
		awsConfig = awsConfig.WithRegion(region)
	}
	sess, err := session.NewSessionWithOptions(session.Options{
		Config:            *awsConfig,
		SharedConfigState: session.SharedConfigEnable,
	})
	if err != nil {
		return nil, errors.Wrap(err, "creating aws session")
	}
	return NewInspector(cloudformation.New(sess), s3.New(sess), cloudfront.New(sess), logger), nil
}

func awsError(err error) error {
	if awsErr, ok := err.(awserr.Error); ok {
		return errors.New(awsErr.Code() + ": " + awsErr.Message())
	}
	return err
}
