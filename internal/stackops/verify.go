package stackops

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"sort"
	"strings"

	"code.cloudfoundry.org/lager/v3"
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/service/cloudfront"
	"github.com/aws/aws-sdk-go/service/s3"
)

const cloudFrontServicePrincipal = "cloudfront.amazonaws.com"

// Expectations are the site settings the live distribution must match.
type Expectations struct {
	DefaultRootObject string
	ErrorPagePath     string
}

type Check struct {
	Name   string
	Passed bool
	Detail string
}

type Report struct {
	DistributionID string
	Checks         []Check
}

func (r Report) Passed() bool {
	for _, c := range r.Checks {
		if !c.Passed {
			return false
		}
	}
	return true
}

func (r *Report) add(name string, passed bool, detail string) {
	r.Checks = append(r.Checks, Check{Name: name, Passed: passed, Detail: detail})
}

// Verify checks the deployed bucket and distribution against the hosting invariants.
// Failed checks are reported in the Report; the error is reserved for API failures.
func (i *Inspector) Verify(ctx context.Context, outputs StackOutputs, want Expectations) (Report, error) {
	var report Report

	if err := i.checkPublicAccessBlock(ctx, outputs.BucketName, &report); err != nil {
		return report, err
	}
	if err := i.checkBucketPolicy(ctx, outputs.BucketName, &report); err != nil {
		return report, err
	}

	id, err := i.FindDistribution(ctx, outputs.DistributionDomainName)
	if err != nil {
		return report, err
	}
	report.DistributionID = id

	input := &cloudfront.GetDistributionConfigInput{Id: aws.String(id)}
	i.logger.Debug("get-distribution-config", lager.Data{"input": input})
	output, err := i.cfsvc.GetDistributionConfigWithContext(ctx, input)
	if err != nil {
		i.logger.Error("aws-cloudfront-error", err)
		return report, awsError(err)
	}
	checkDistribution(output.DistributionConfig, want, &report)

	i.logger.Info("verify", lager.Data{"distribution-id": id, "passed": report.Passed()})
	return report, nil
}

func (i *Inspector) checkPublicAccessBlock(ctx context.Context, bucket string, report *Report) error {
	const name = "public-access-block"

	output, err := i.s3svc.GetPublicAccessBlockWithContext(ctx, &s3.GetPublicAccessBlockInput{Bucket: aws.String(bucket)})
	if err != nil {
		if awsErr, ok := err.(awserr.Error); ok && awsErr.Code() == "NoSuchPublicAccessBlockConfiguration" {
			report.add(name, false, "no public access block configured")
			return nil
		}
		i.logger.Error("aws-s3-error", err)
		return awsError(err)
	}

	cfg := output.PublicAccessBlockConfiguration
	if cfg == nil {
		report.add(name, false, "no public access block configured")
		return nil
	}
	var open []string
	flags := map[string]*bool{
		"BlockPublicAcls":       cfg.BlockPublicAcls,
		"BlockPublicPolicy":     cfg.BlockPublicPolicy,
		"IgnorePublicAcls":      cfg.IgnorePublicAcls,
		"RestrictPublicBuckets": cfg.RestrictPublicBuckets,
	}
	for flag, v := range flags {
		if !aws.BoolValue(v) {
			open = append(open, flag)
		}
	}
	if len(open) > 0 {
		sort.Strings(open)
		report.add(name, false, "disabled: "+strings.Join(open, ", "))
		return nil
	}
	report.add(name, true, "all four flags enabled")
	return nil
}

func (i *Inspector) checkBucketPolicy(ctx context.Context, bucket string, report *Report) error {
	const name = "bucket-policy"

	output, err := i.s3svc.GetBucketPolicyWithContext(ctx, &s3.GetBucketPolicyInput{Bucket: aws.String(bucket)})
	if err != nil {
		if awsErr, ok := err.(awserr.Error); ok && awsErr.Code() == "NoSuchBucketPolicy" {
			report.add(name, false, "bucket has no policy")
			return nil
		}
		i.logger.Error("aws-s3-error", err)
		return awsError(err)
	}

	var doc policyDocument
	if err := json.Unmarshal([]byte(aws.StringValue(output.Policy)), &doc); err != nil {
		report.add(name, false, "unparseable policy: "+err.Error())
		return nil
	}

	granted := false
	var strangers []string
	for _, stmt := range doc.Statement {
		if stmt.Effect != "Allow" || !stmt.allows("s3:GetObject") {
			continue
		}
		if stmt.onlyService(cloudFrontServicePrincipal) {
			granted = true
			continue
		}
		strangers = append(strangers, string(stmt.Principal))
	}
	switch {
	case len(strangers) > 0:
		report.add(name, false, "s3:GetObject granted to "+strings.Join(strangers, ", "))
	case !granted:
		report.add(name, false, "no s3:GetObject grant for "+cloudFrontServicePrincipal)
	default:
		report.add(name, true, "reads restricted to "+cloudFrontServicePrincipal)
	}
	return nil
}

func checkDistribution(cfg *cloudfront.DistributionConfig, want Expectations, report *Report) {
	if cfg == nil {
		report.add("distribution-config", false, "empty distribution config")
		return
	}

	policy := ""
	if cfg.DefaultCacheBehavior != nil {
		policy = aws.StringValue(cfg.DefaultCacheBehavior.ViewerProtocolPolicy)
	}
	report.add("viewer-protocol", policy == cloudfront.ViewerProtocolPolicyRedirectToHttps,
		fmt.Sprintf("default behavior uses %q", policy))

	root := aws.StringValue(cfg.DefaultRootObject)
	report.add("default-root-object", root == want.DefaultRootObject,
		fmt.Sprintf("root object %q, want %q", root, want.DefaultRootObject))

	fallback := false
	if cfg.CustomErrorResponses != nil {
		for _, r := range cfg.CustomErrorResponses.Items {
			if aws.Int64Value(r.ErrorCode) == 404 &&
				aws.StringValue(r.ResponseCode) == "200" &&
				aws.StringValue(r.ResponsePagePath) == want.ErrorPagePath {
				fallback = true
			}
		}
	}
	report.add("spa-fallback", fallback, fmt.Sprintf("404 rewritten to %s with 200: %t", want.ErrorPagePath, fallback))
}

type policyDocument struct {
	Statement []policyStatement `json:"Statement"`
}

type policyStatement struct {
	Effect    string          `json:"Effect"`
	Principal json.RawMessage `json:"Principal"`
	Action    stringList      `json:"Action"`
	NotAction stringList      `json:"NotAction"`
}

// allows reports whether the statement covers action, through Action or by leaving it out of NotAction.
func (s policyStatement) allows(action string) bool {
	if len(s.NotAction) > 0 {
		return !s.NotAction.matches(action)
	}
	return s.Action.matches(action)
}

// onlyService reports whether the principal is exactly the given service.
func (s policyStatement) onlyService(service string) bool {
	var principal map[string]stringList
	if err := json.Unmarshal(s.Principal, &principal); err != nil {
		return false
	}
	services, ok := principal["Service"]
	if !ok || len(principal) != 1 || len(services) == 0 {
		return false
	}
	for _, v := range services {
		if v != service {
			return false
		}
	}
	return true
}

// stringList decodes IAM fields that are either a string or a list of strings.
type stringList []string

func (l *stringList) UnmarshalJSON(b []byte) error {
	var single string
	if err := json.Unmarshal(b, &single); err == nil {
		*l = stringList{single}
		return nil
	}
	var many []string
	if err := json.Unmarshal(b, &many); err != nil {
		return err
	}
	*l = many
	return nil
}

// matches applies IAM action patterns: case-insensitive, with * and ? wildcards.
func (l stringList) matches(action string) bool {
	action = strings.ToLower(action)
	for _, pattern := range l {
		if ok, err := path.Match(strings.ToLower(pattern), action); err == nil && ok {
			return true
		}
	}
	return false
}
