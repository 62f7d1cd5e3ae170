package stackops_test

import (
	"context"
	"errors"
	"strings"

	"code.cloudfoundry.org/lager/v3/lagertest"
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/service/cloudformation"
	"github.com/aws/aws-sdk-go/service/cloudfront"
	pkgerrors "github.com/pkg/errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/whatnick/frontend-deployment/internal/stackops"
)

var _ = Describe("Inspector", func() {
	var (
		ctx       context.Context
		cfnsvc    *fakeCloudFormation
		s3svc     *fakeS3
		cfsvc     *fakeCloudFront
		inspector *stackops.Inspector
	)

	BeforeEach(func() {
		ctx = context.Background()
		cfnsvc = &fakeCloudFormation{}
		s3svc = &fakeS3{publicAccessBlock: allBlocked(), policy: cloudFrontOnlyPolicy}
		cfsvc = &fakeCloudFront{
			pages: []*cloudfront.ListDistributionsOutput{
				distributionPage(distribution("EOTHER", "d111.cloudfront.net")),
				distributionPage(distribution("ESITE", "d222.cloudfront.net"), distribution("ELAST", "d333.cloudfront.net")),
			},
			distributionConfig: spaDistributionConfig(),
		}
		inspector = stackops.NewInspector(cfnsvc, s3svc, cfsvc, lagertest.NewTestLogger("stackops"))
	})

	Describe("Outputs", func() {
		stackWith := func(outputs ...*cloudformation.Output) *cloudformation.DescribeStacksOutput {
			return &cloudformation.DescribeStacksOutput{
				Stacks: []*cloudformation.Stack{{StackName: aws.String("FrontendStack"), Outputs: outputs}},
			}
		}
		output := func(exportName, value string) *cloudformation.Output {
			return &cloudformation.Output{ExportName: aws.String(exportName), OutputValue: aws.String(value)}
		}

		It("returns both exported values", func() {
			cfnsvc.describeStacksOutput = stackWith(
				output("CloudfrontURL", "d222.cloudfront.net"),
				output("BucketName", "frontendstack-bucket"),
			)

			outputs, err := inspector.Outputs(ctx, "FrontendStack", "")
			Expect(err).ToNot(HaveOccurred())
			Expect(outputs).To(Equal(stackops.StackOutputs{
				DistributionDomainName: "d222.cloudfront.net",
				BucketName:             "frontendstack-bucket",
			}))
			Expect(aws.StringValue(cfnsvc.describeStacksInput.StackName)).To(Equal("FrontendStack"))
		})

		It("honours the export prefix", func() {
			cfnsvc.describeStacksOutput = stackWith(
				output("CloudfrontURL", "wrong.cloudfront.net"),
				output("Docs-CloudfrontURL", "d222.cloudfront.net"),
				output("Docs-BucketName", "docs-bucket"),
			)

			outputs, err := inspector.Outputs(ctx, "DocsStack", "Docs-")
			Expect(err).ToNot(HaveOccurred())
			Expect(outputs.DistributionDomainName).To(Equal("d222.cloudfront.net"))
			Expect(outputs.BucketName).To(Equal("docs-bucket"))
		})

		It("fails when an export is empty", func() {
			cfnsvc.describeStacksOutput = stackWith(
				output("CloudfrontURL", "d222.cloudfront.net"),
				output("BucketName", ""),
			)

			_, err := inspector.Outputs(ctx, "FrontendStack", "")
			Expect(pkgerrors.Cause(err)).To(Equal(stackops.ErrOutputMissing))
			Expect(err.Error()).To(ContainSubstring("BucketName"))
		})

		It("fails when an export is absent", func() {
			cfnsvc.describeStacksOutput = stackWith(output("BucketName", "frontendstack-bucket"))

			_, err := inspector.Outputs(ctx, "FrontendStack", "")
			Expect(pkgerrors.Cause(err)).To(Equal(stackops.ErrOutputMissing))
			Expect(err.Error()).To(ContainSubstring("CloudfrontURL"))
		})

		It("maps a missing stack to ErrStackNotFound", func() {
			cfnsvc.describeStacksError = awserr.New("ValidationError", "Stack with id FrontendStack does not exist", nil)

			_, err := inspector.Outputs(ctx, "FrontendStack", "")
			Expect(pkgerrors.Cause(err)).To(Equal(stackops.ErrStackNotFound))
		})

		It("flattens other aws errors", func() {
			cfnsvc.describeStacksError = awserr.New("AccessDenied", "not allowed", nil)

			_, err := inspector.Outputs(ctx, "FrontendStack", "")
			Expect(err).To(MatchError("AccessDenied: not allowed"))
		})
	})

	Describe("FindDistribution", func() {
		It("walks pages until the domain matches", func() {
			id, err := inspector.FindDistribution(ctx, "d222.cloudfront.net")
			Expect(err).ToNot(HaveOccurred())
			Expect(id).To(Equal("ESITE"))
			Expect(cfsvc.pagesVisited).To(Equal(2))
		})

		It("stops at the first match", func() {
			_, err := inspector.FindDistribution(ctx, "d111.cloudfront.net")
			Expect(err).ToNot(HaveOccurred())
			Expect(cfsvc.pagesVisited).To(Equal(1))
		})

		It("reports unknown domains", func() {
			_, err := inspector.FindDistribution(ctx, "d999.cloudfront.net")
			Expect(pkgerrors.Cause(err)).To(Equal(stackops.ErrDistributionNotFound))
		})

		It("returns list errors", func() {
			cfsvc.listError = errors.New("throttled")

			_, err := inspector.FindDistribution(ctx, "d222.cloudfront.net")
			Expect(err).To(MatchError("throttled"))
		})
	})

	Describe("Verify", func() {
		var (
			outputs stackops.StackOutputs
			want    stackops.Expectations
		)

		BeforeEach(func() {
			outputs = stackops.StackOutputs{DistributionDomainName: "d222.cloudfront.net", BucketName: "site-bucket"}
			want = stackops.Expectations{DefaultRootObject: "index.html", ErrorPagePath: "/index.html"}
		})

		checkNamed := func(report stackops.Report, name string) stackops.Check {
			for _, c := range report.Checks {
				if c.Name == name {
					return c
				}
			}
			Fail("no check named " + name)
			return stackops.Check{}
		}

		It("passes a correctly deployed stack", func() {
			report, err := inspector.Verify(ctx, outputs, want)
			Expect(err).ToNot(HaveOccurred())
			Expect(report.DistributionID).To(Equal("ESITE"))
			Expect(report.Checks).To(HaveLen(5))
			Expect(report.Passed()).To(BeTrue())
		})

		It("flags a disabled public access flag", func() {
			s3svc.publicAccessBlock.RestrictPublicBuckets = aws.Bool(false)

			report, err := inspector.Verify(ctx, outputs, want)
			Expect(err).ToNot(HaveOccurred())
			Expect(report.Passed()).To(BeFalse())
			check := checkNamed(report, "public-access-block")
			Expect(check.Passed).To(BeFalse())
			Expect(check.Detail).To(ContainSubstring("RestrictPublicBuckets"))
		})

		It("flags a bucket without a public access block", func() {
			s3svc.publicAccessBlockError = awserr.New("NoSuchPublicAccessBlockConfiguration", "none", nil)

			report, err := inspector.Verify(ctx, outputs, want)
			Expect(err).ToNot(HaveOccurred())
			Expect(checkNamed(report, "public-access-block").Passed).To(BeFalse())
		})

		It("flags a public read grant", func() {
			s3svc.policy = publicPolicy

			report, err := inspector.Verify(ctx, outputs, want)
			Expect(err).ToNot(HaveOccurred())
			check := checkNamed(report, "bucket-policy")
			Expect(check.Passed).To(BeFalse())
			Expect(check.Detail).To(ContainSubstring(`"*"`))
		})

		It("flags wildcard read actions granted to another principal", func() {
			s3svc.policy = wildcardReadPolicy

			report, err := inspector.Verify(ctx, outputs, want)
			Expect(err).ToNot(HaveOccurred())
			check := checkNamed(report, "bucket-policy")
			Expect(check.Passed).To(BeFalse())
			Expect(check.Detail).To(ContainSubstring("999999999999"))
			Expect(report.Passed()).To(BeFalse())
		})

		It("matches actions case-insensitively", func() {
			s3svc.policy = strings.Replace(wildcardReadPolicy, `"s3:GetObject*"`, `"S3:getobj?ct"`, 1)

			report, err := inspector.Verify(ctx, outputs, want)
			Expect(err).ToNot(HaveOccurred())
			Expect(checkNamed(report, "bucket-policy").Passed).To(BeFalse())
		})

		It("treats an allow with NotAction as a read grant", func() {
			s3svc.policy = notActionPolicy

			report, err := inspector.Verify(ctx, outputs, want)
			Expect(err).ToNot(HaveOccurred())
			check := checkNamed(report, "bucket-policy")
			Expect(check.Passed).To(BeFalse())
			Expect(check.Detail).To(ContainSubstring("999999999999"))
		})

		It("flags a missing bucket policy", func() {
			s3svc.policyError = awserr.New("NoSuchBucketPolicy", "none", nil)

			report, err := inspector.Verify(ctx, outputs, want)
			Expect(err).ToNot(HaveOccurred())
			Expect(checkNamed(report, "bucket-policy").Detail).To(Equal("bucket has no policy"))
		})

		It("flags a distribution that allows plain http", func() {
			cfsvc.distributionConfig.DefaultCacheBehavior.ViewerProtocolPolicy = aws.String(cloudfront.ViewerProtocolPolicyAllowAll)

			report, err := inspector.Verify(ctx, outputs, want)
			Expect(err).ToNot(HaveOccurred())
			Expect(checkNamed(report, "viewer-protocol").Passed).To(BeFalse())
		})

		It("flags a missing spa fallback", func() {
			cfsvc.distributionConfig.CustomErrorResponses = nil

			report, err := inspector.Verify(ctx, outputs, want)
			Expect(err).ToNot(HaveOccurred())
			Expect(checkNamed(report, "spa-fallback").Passed).To(BeFalse())
			Expect(checkNamed(report, "default-root-object").Passed).To(BeTrue())
		})

		It("returns aws failures as errors", func() {
			cfsvc.configError = awserr.New("NoSuchDistribution", "gone", nil)

			_, err := inspector.Verify(ctx, outputs, want)
			Expect(err).To(MatchError("NoSuchDistribution: gone"))
		})
	})

	Describe("Invalidate", func() {
		BeforeEach(func() {
			inspector.SetCallerReference(func() string { return "ref-1" })
		})

		It("busts the whole cache by default", func() {
			id, err := inspector.Invalidate(ctx, "ESITE", nil)
			Expect(err).ToNot(HaveOccurred())
			Expect(id).To(Equal("I2J0I21PCUYOIK"))

			input := cfsvc.invalidationInput
			Expect(aws.StringValue(input.DistributionId)).To(Equal("ESITE"))
			Expect(aws.StringValue(input.InvalidationBatch.CallerReference)).To(Equal("ref-1"))
			Expect(aws.Int64Value(input.InvalidationBatch.Paths.Quantity)).To(Equal(int64(1)))
			Expect(aws.StringValueSlice(input.InvalidationBatch.Paths.Items)).To(Equal([]string{"/*"}))
		})

		It("sends the given paths", func() {
			_, err := inspector.Invalidate(ctx, "ESITE", []string{"/index.html", "/assets/*"})
			Expect(err).ToNot(HaveOccurred())
			Expect(aws.Int64Value(cfsvc.invalidationInput.InvalidationBatch.Paths.Quantity)).To(Equal(int64(2)))
		})

		It("fails when no invalidation comes back", func() {
			cfsvc.emptyInvalidation = true

			_, err := inspector.Invalidate(ctx, "ESITE", nil)
			Expect(err).To(MatchError(ContainSubstring("no invalidation returned")))
		})

		It("returns aws failures", func() {
			cfsvc.invalidationError = awserr.New("TooManyInvalidationsInProgress", "slow down", nil)

			_, err := inspector.Invalidate(ctx, "ESITE", nil)
			Expect(err).To(MatchError("TooManyInvalidationsInProgress: slow down"))
		})
	})
})
