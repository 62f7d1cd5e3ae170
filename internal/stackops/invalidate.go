package stackops

import (
	"context"

	"code.cloudfoundry.org/lager/v3"
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/cloudfront"
	"github.com/pkg/errors"
)

// Invalidate busts the edge cache of distributionID for paths, "/*" when none are given.
func (i *Inspector) Invalidate(ctx context.Context, distributionID string, paths []string) (string, error) {
	if len(paths) == 0 {
		paths = []string{"/*"}
	}

	input := &cloudfront.CreateInvalidationInput{
		DistributionId: aws.String(distributionID),
		InvalidationBatch: &cloudfront.InvalidationBatch{
			CallerReference: aws.String(i.callerReference()),
			Paths: &cloudfront.Paths{
				Quantity: aws.Int64(int64(len(paths))),
				Items:    aws.StringSlice(paths),
			},
		},
	}
	i.logger.Debug("create-invalidation", lager.Data{"input": input})

	output, err := i.cfsvc.CreateInvalidationWithContext(ctx, input)
	if err != nil {
		i.logger.Error("aws-cloudfront-error", err)
		return "", awsError(err)
	}
	i.logger.Debug("create-invalidation", lager.Data{"output": output})

	if output.Invalidation == nil || aws.StringValue(output.Invalidation.Id) == "" {
		return "", errors.Errorf("no invalidation returned for distribution %s", distributionID)
	}
	return aws.StringValue(output.Invalidation.Id), nil
}
