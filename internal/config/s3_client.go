package config

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/ec2/imds"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3control"
	"github.com/sirupsen/logrus"

	"github.com/13rac1/s3path/internal/endpoint"
	"github.com/13rac1/s3path/internal/logging"
	"github.com/13rac1/s3path/internal/types"
)

// signingRegionForGlobal is the region requests to the legacy global
// hostname are signed for.
const signingRegionForGlobal = "us-east-1"

// LoadAWSConfig builds the shared SDK configuration for region.
// Authentication priority: static credentials > AWS profile > default credential chain.
func LoadAWSConfig(ctx context.Context, cfg *types.Config, region string, log logrus.FieldLogger) (aws.Config, error) {
	var opts []func(*config.LoadOptions) error

	if region == "" {
		region = signingRegionForGlobal
	}

	opts = append(opts,
		config.WithRegion(region),
		config.WithRetryMaxAttempts(3),
		config.WithRetryMode(aws.RetryModeStandard),
	)

	if log != nil {
		opts = append(opts,
			config.WithLogger(logging.SDKLogger{Log: log}),
			config.WithClientLogMode(aws.LogRetries),
		)
	}

	// Use static credentials if provided (highest priority)
	if cfg.Auth.AccessKeyID != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(
				cfg.Auth.AccessKeyID,
				cfg.Auth.SecretAccessKey,
				cfg.Auth.SessionToken,
			),
		))
	} else if cfg.Auth.Profile != "" {
		// Use profile if no static credentials
		opts = append(opts, config.WithSharedConfigProfile(cfg.Auth.Profile))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("load AWS config: %w", err)
	}
	return awsCfg, nil
}

// NewS3Client creates an S3 client that addresses the service the way res
// describes.
func NewS3Client(ctx context.Context, cfg *types.Config, res endpoint.Resolved, log logrus.FieldLogger) (*s3.Client, error) {
	awsCfg, err := LoadAWSConfig(ctx, cfg, res.Region, log)
	if err != nil {
		return nil, err
	}

	return s3.NewFromConfig(awsCfg, S3Options(res, cfg.AWS.ServiceDomain)), nil
}

// S3Options returns the client option function applying res.
func S3Options(res endpoint.Resolved, serviceDomain string) func(*s3.Options) {
	return func(o *s3.Options) {
		o.UsePathStyle = res.AddressingStyle == endpoint.AddressingPath

		switch res.Mode {
		case endpoint.ModeAccelerated:
			o.UseAccelerate = true
		case endpoint.ModeMultiRegionAccessPoint:
			o.UseARNRegion = true
			o.DisableMultiRegionAccessPoints = false
		case endpoint.ModeInterfacePrivateLink:
			// Interface endpoints are only reachable through their own DNS name,
			// so every request, presigned URLs included, must be pinned to it.
			o.BaseEndpoint = aws.String("https://" + res.HostFor(endpoint.PrivateLinkBucketLabel))
		case endpoint.ModeStandard:
			// The SDK only emits regional hostnames on its own; the global form
			// and custom domains need an explicit base endpoint.
			if res.LegacyGlobal || serviceDomain != "" {
				o.BaseEndpoint = aws.String("https://" + res.ServiceHost())
			}
		}
	}
}

// NewS3ControlClient creates a client for the S3 control plane. Multi-region
// access point requests are always routed through us-west-2.
func NewS3ControlClient(ctx context.Context, cfg *types.Config, log logrus.FieldLogger) (*s3control.Client, error) {
	awsCfg, err := LoadAWSConfig(ctx, cfg, "us-west-2", log)
	if err != nil {
		return nil, err
	}
	return s3control.NewFromConfig(awsCfg), nil
}

// NewEC2Client creates an EC2 client for region.
func NewEC2Client(ctx context.Context, cfg *types.Config, region string, log logrus.FieldLogger) (*ec2.Client, error) {
	awsCfg, err := LoadAWSConfig(ctx, cfg, region, log)
	if err != nil {
		return nil, err
	}
	return ec2.NewFromConfig(awsCfg), nil
}

// NewIMDSClient creates an instance metadata client.
func NewIMDSClient(ctx context.Context, cfg *types.Config, log logrus.FieldLogger) (*imds.Client, error) {
	awsCfg, err := LoadAWSConfig(ctx, cfg, cfg.AWS.Region, log)
	if err != nil {
		return nil, err
	}
	return imds.NewFromConfig(awsCfg), nil
}
