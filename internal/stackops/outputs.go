package stackops

import (
	"context"
	"strings"

	"code.cloudfoundry.org/lager/v3"
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/service/cloudformation"
	"github.com/aws/aws-sdk-go/service/cloudfront"
	"github.com/pkg/errors"

	"github.com/whatnick/frontend-deployment/internal/config"
)

// StackOutputs are the two exported values of a deployed frontend stack.
type StackOutputs struct {
	DistributionDomainName string
	BucketName             string
}

// Outputs reads the exported distribution hostname and bucket name of stackName.
// Both must be present and non-empty.
func (i *Inspector) Outputs(ctx context.Context, stackName, exportPrefix string) (StackOutputs, error) {
	input := &cloudformation.DescribeStacksInput{StackName: aws.String(stackName)}
	i.logger.Debug("describe-stacks", lager.Data{"input": input})

	output, err := i.cfnsvc.DescribeStacksWithContext(ctx, input)
	if err != nil {
		i.logger.Error("aws-cloudformation-error", err)
		// a missing stack comes back as a ValidationError
		if awsErr, ok := err.(awserr.Error); ok && strings.Contains(awsErr.Message(), "does not exist") {
			return StackOutputs{}, errors.Wrap(ErrStackNotFound, stackName)
		}
		return StackOutputs{}, awsError(err)
	}
	if len(output.Stacks) == 0 {
		return StackOutputs{}, errors.Wrap(ErrStackNotFound, stackName)
	}

	byExport := make(map[string]string)
	for _, o := range output.Stacks[0].Outputs {
		byExport[aws.StringValue(o.ExportName)] = aws.StringValue(o.OutputValue)
	}

	distributionExport := exportPrefix + config.DistributionExportName
	bucketExport := exportPrefix + config.BucketExportName
	outputs := StackOutputs{
		DistributionDomainName: byExport[distributionExport],
		BucketName:             byExport[bucketExport],
	}
	i.logger.Debug("stack-outputs", lager.Data{"outputs": outputs})

	if outputs.DistributionDomainName == "" {
		return outputs, errors.Wrap(ErrOutputMissing, distributionExport)
	}
	if outputs.BucketName == "" {
		return outputs, errors.Wrap(ErrOutputMissing, bucketExport)
	}
	return outputs, nil
}

// FindDistribution returns the id of the distribution serving domainName.
func (i *Inspector) FindDistribution(ctx context.Context, domainName string) (string, error) {
	var id string
	err := i.cfsvc.ListDistributionsPagesWithContext(ctx, &cloudfront.ListDistributionsInput{},
		func(page *cloudfront.ListDistributionsOutput, lastPage bool) bool {
			if page.DistributionList == nil {
				return false
			}
			for _, summary := range page.DistributionList.Items {
				if aws.StringValue(summary.DomainName) == domainName {
					id = aws.StringValue(summary.Id)
					return false
				}
			}
			return true
		})
	if err != nil {
		i.logger.Error("aws-cloudfront-error", err)
		return "", awsError(err)
	}
	if id == "" {
		return "", errors.Wrap(ErrDistributionNotFound, domainName)
	}
	i.logger.Debug("find-distribution", lager.Data{"domain-name": domainName, "id": id})
	return id, nil
}
