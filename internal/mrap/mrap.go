// Package mrap manages multi-region access points through the S3 control
// plane. Mutating calls are asynchronous: they return a request token that
// Wait polls until the operation settles.
package mrap

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3control"
	controltypes "github.com/aws/aws-sdk-go-v2/service/s3control/types"
	"github.com/sirupsen/logrus"

	"github.com/13rac1/s3path/internal/endpoint"
)

// ControlAPI is the subset of the S3 control client used here.
type ControlAPI interface {
	CreateMultiRegionAccessPoint(ctx context.Context, params *s3control.CreateMultiRegionAccessPointInput, optFns ...func(*s3control.Options)) (*s3control.CreateMultiRegionAccessPointOutput, error)
	GetMultiRegionAccessPoint(ctx context.Context, params *s3control.GetMultiRegionAccessPointInput, optFns ...func(*s3control.Options)) (*s3control.GetMultiRegionAccessPointOutput, error)
	ListMultiRegionAccessPoints(ctx context.Context, params *s3control.ListMultiRegionAccessPointsInput, optFns ...func(*s3control.Options)) (*s3control.ListMultiRegionAccessPointsOutput, error)
	DeleteMultiRegionAccessPoint(ctx context.Context, params *s3control.DeleteMultiRegionAccessPointInput, optFns ...func(*s3control.Options)) (*s3control.DeleteMultiRegionAccessPointOutput, error)
	DescribeMultiRegionAccessPointOperation(ctx context.Context, params *s3control.DescribeMultiRegionAccessPointOperationInput, optFns ...func(*s3control.Options)) (*s3control.DescribeMultiRegionAccessPointOperationOutput, error)
	PutMultiRegionAccessPointPolicy(ctx context.Context, params *s3control.PutMultiRegionAccessPointPolicyInput, optFns ...func(*s3control.Options)) (*s3control.PutMultiRegionAccessPointPolicyOutput, error)
	GetMultiRegionAccessPointPolicy(ctx context.Context, params *s3control.GetMultiRegionAccessPointPolicyInput, optFns ...func(*s3control.Options)) (*s3control.GetMultiRegionAccessPointPolicyOutput, error)
}

// ErrAccountRequired is returned when no account id is configured.
var ErrAccountRequired = errors.New("aws.account_id is required for multi-region access points")

// BucketRegion places one bucket behind an access point.
type BucketRegion struct {
	Bucket string `json:"bucket"`
	Region string `json:"region,omitempty"`
}

// AccessPoint describes a multi-region access point.
type AccessPoint struct {
	Name      string         `json:"name"`
	Alias     string         `json:"alias"`
	Status    string         `json:"status"`
	CreatedAt time.Time      `json:"createdAt,omitempty"`
	Regions   []BucketRegion `json:"regions,omitempty"`
}

// Ready reports whether the access point accepts requests.
func (a AccessPoint) Ready() bool {
	return a.Status == string(controltypes.MultiRegionAccessPointStatusReady)
}

// ARN returns the access point ARN used as a bucket-ref for account.
func (a AccessPoint) ARN(partition, account string) string {
	return endpoint.AccessPointARN(partition, account, a.Alias)
}

// Client runs control-plane operations for one account.
type Client struct {
	api     ControlAPI
	account string
	log     logrus.FieldLogger
	now     func() time.Time

	// Partition is the ARN partition of the account's buckets.
	Partition string

	// PollInterval and MaxPollInterval bound Wait's backoff.
	PollInterval    time.Duration
	MaxPollInterval time.Duration
}

// New creates a Client for account.
func New(api ControlAPI, account string, log logrus.FieldLogger) *Client {
	return &Client{
		api:             api,
		account:         account,
		log:             log,
		now:             time.Now,
		Partition:       "aws",
		PollInterval:    5 * time.Second,
		MaxPollInterval: 2 * time.Minute,
	}
}

func (c *Client) checkAccount() error {
	if c.account == "" {
		return ErrAccountRequired
	}
	return nil
}

// clientToken builds the idempotency token for an operation on name.
func (c *Client) clientToken(name, op string) string {
	if op == "" {
		return fmt.Sprintf("%s-%d", name, c.now().Unix())
	}
	return fmt.Sprintf("%s-%s-%d", name, op, c.now().Unix())
}

func (c *Client) fail(op, target string, err error) error {
	c.log.WithFields(logrus.Fields{
		"op":     op,
		"target": target,
	}).WithError(err).Warn("control plane request failed")
	return fmt.Errorf("%s %s: %w", op, target, err)
}

// Create starts creating access point name over buckets and returns the
// request token. Public access is always blocked.
func (c *Client) Create(ctx context.Context, name string, buckets []BucketRegion) (string, error) {
	if err := c.checkAccount(); err != nil {
		return "", err
	}
	if len(buckets) == 0 {
		return "", fmt.Errorf("create %s: at least one bucket is required", name)
	}

	regions := make([]controltypes.Region, 0, len(buckets))
	for _, b := range buckets {
		c.log.WithFields(logrus.Fields{"bucket": b.Bucket, "region": b.Region}).Debug("adding bucket to access point")
		regions = append(regions, controltypes.Region{
			Bucket:          aws.String(endpoint.BucketARN(c.Partition, c.account, b.Bucket)),
			BucketAccountId: aws.String(c.account),
		})
	}

	out, err := c.api.CreateMultiRegionAccessPoint(ctx, &s3control.CreateMultiRegionAccessPointInput{
		AccountId:   aws.String(c.account),
		ClientToken: aws.String(c.clientToken(name, "")),
		Details: &controltypes.CreateMultiRegionAccessPointInput{
			Name: aws.String(name),
			PublicAccessBlock: &controltypes.PublicAccessBlockConfiguration{
				BlockPublicAcls:       aws.Bool(true),
				IgnorePublicAcls:      aws.Bool(true),
				BlockPublicPolicy:     aws.Bool(true),
				RestrictPublicBuckets: aws.Bool(true),
			},
			Regions: regions,
		},
	})
	if err != nil {
		return "", c.fail("create access point", name, err)
	}

	token := aws.ToString(out.RequestTokenARN)
	c.log.WithFields(logrus.Fields{"name": name, "token": token}).Info("access point creation started")
	return token, nil
}

// Get returns the current state of access point name.
func (c *Client) Get(ctx context.Context, name string) (*AccessPoint, error) {
	if err := c.checkAccount(); err != nil {
		return nil, err
	}

	out, err := c.api.GetMultiRegionAccessPoint(ctx, &s3control.GetMultiRegionAccessPointInput{
		AccountId: aws.String(c.account),
		Name:      aws.String(name),
	})
	if err != nil {
		return nil, c.fail("get access point", name, err)
	}
	if out.AccessPoint == nil {
		return nil, fmt.Errorf("get access point %s: empty response", name)
	}

	ap := fromReport(*out.AccessPoint)
	return &ap, nil
}

// List returns every access point in the account.
func (c *Client) List(ctx context.Context) ([]AccessPoint, error) {
	if err := c.checkAccount(); err != nil {
		return nil, err
	}

	var (
		points []AccessPoint
		next   *string
	)
	for {
		out, err := c.api.ListMultiRegionAccessPoints(ctx, &s3control.ListMultiRegionAccessPointsInput{
			AccountId: aws.String(c.account),
			NextToken: next,
		})
		if err != nil {
			return nil, c.fail("list access points", c.account, err)
		}
		for _, r := range out.AccessPoints {
			points = append(points, fromReport(r))
		}
		if aws.ToString(out.NextToken) == "" {
			return points, nil
		}
		next = out.NextToken
	}
}

// Delete starts deleting access point name and returns the request token.
func (c *Client) Delete(ctx context.Context, name string) (string, error) {
	if err := c.checkAccount(); err != nil {
		return "", err
	}

	out, err := c.api.DeleteMultiRegionAccessPoint(ctx, &s3control.DeleteMultiRegionAccessPointInput{
		AccountId:   aws.String(c.account),
		ClientToken: aws.String(c.clientToken(name, "delete")),
		Details:     &controltypes.DeleteMultiRegionAccessPointInput{Name: aws.String(name)},
	})
	if err != nil {
		return "", c.fail("delete access point", name, err)
	}

	token := aws.ToString(out.RequestTokenARN)
	c.log.WithFields(logrus.Fields{"name": name, "token": token}).Info("access point deletion started")
	return token, nil
}

func fromReport(r controltypes.MultiRegionAccessPointReport) AccessPoint {
	ap := AccessPoint{
		Name:      aws.ToString(r.Name),
		Alias:     aws.ToString(r.Alias),
		Status:    string(r.Status),
		CreatedAt: aws.ToTime(r.CreatedAt),
	}
	for _, reg := range r.Regions {
		ap.Regions = append(ap.Regions, BucketRegion{
			Bucket: aws.ToString(reg.Bucket),
			Region: aws.ToString(reg.Region),
		})
	}
	return ap
}
