// Package accel turns bucket Transfer Acceleration on and off and checks
// whether a bucket name can use the accelerate endpoint at all.
package accel

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"regexp"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/sirupsen/logrus"
)

// ErrIncompatibleBucketName is returned for names the accelerate endpoint
// cannot address.
var ErrIncompatibleBucketName = errors.New("bucket name is not compatible with transfer acceleration")

// API is the subset of the S3 client used for acceleration settings.
type API interface {
	PutBucketAccelerateConfiguration(ctx context.Context, params *s3.PutBucketAccelerateConfigurationInput, optFns ...func(*s3.Options)) (*s3.PutBucketAccelerateConfigurationOutput, error)
	GetBucketAccelerateConfiguration(ctx context.Context, params *s3.GetBucketAccelerateConfigurationInput, optFns ...func(*s3.Options)) (*s3.GetBucketAccelerateConfigurationOutput, error)
}

// Status is a bucket's acceleration setting.
type Status string

const (
	StatusEnabled   Status = Status(s3types.BucketAccelerateStatusEnabled)
	StatusSuspended Status = Status(s3types.BucketAccelerateStatusSuspended)
)

var bucketLabel = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{1,61}[a-z0-9]$`)

// ValidateBucketName checks that name is a single DNS label the accelerate
// endpoint can address: 3 to 63 lowercase letters, digits or hyphens, no
// dots, and not an IP address.
func ValidateBucketName(name string) error {
	if _, err := netip.ParseAddr(name); err == nil {
		return fmt.Errorf("%w: %q is an IP address", ErrIncompatibleBucketName, name)
	}
	if !bucketLabel.MatchString(name) {
		return fmt.Errorf("%w: %q must be 3-63 lowercase letters, digits or hyphens without dots", ErrIncompatibleBucketName, name)
	}
	return nil
}

// Client manages acceleration settings.
type Client struct {
	api API
	log logrus.FieldLogger
}

// New creates a Client.
func New(api API, log logrus.FieldLogger) *Client {
	return &Client{api: api, log: log}
}

// Enable turns acceleration on for bucket.
func (c *Client) Enable(ctx context.Context, bucket string) error {
	if err := ValidateBucketName(bucket); err != nil {
		return err
	}
	return c.set(ctx, bucket, StatusEnabled)
}

// Suspend turns acceleration off for bucket.
func (c *Client) Suspend(ctx context.Context, bucket string) error {
	return c.set(ctx, bucket, StatusSuspended)
}

func (c *Client) set(ctx context.Context, bucket string, status Status) error {
	_, err := c.api.PutBucketAccelerateConfiguration(ctx, &s3.PutBucketAccelerateConfigurationInput{
		Bucket: aws.String(bucket),
		AccelerateConfiguration: &s3types.AccelerateConfiguration{
			Status: s3types.BucketAccelerateStatus(status),
		},
	})
	if err != nil {
		c.log.WithFields(logrus.Fields{"op": "put accelerate configuration", "target": bucket}).WithError(err).Warn("acceleration update failed")
		return fmt.Errorf("put accelerate configuration %s: %w", bucket, err)
	}

	c.log.WithFields(logrus.Fields{"bucket": bucket, "status": status}).Info("transfer acceleration updated")
	return nil
}

// Get returns the acceleration status of bucket. A bucket that never had
// acceleration configured reports Suspended.
func (c *Client) Get(ctx context.Context, bucket string) (Status, error) {
	out, err := c.api.GetBucketAccelerateConfiguration(ctx, &s3.GetBucketAccelerateConfigurationInput{
		Bucket: aws.String(bucket),
	})
	if err != nil {
		c.log.WithFields(logrus.Fields{"op": "get accelerate configuration", "target": bucket}).WithError(err).Warn("acceleration lookup failed")
		return "", fmt.Errorf("get accelerate configuration %s: %w", bucket, err)
	}

	if out.Status == "" {
		return StatusSuspended, nil
	}
	return Status(out.Status), nil
}
