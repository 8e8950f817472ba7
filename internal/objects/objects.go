// Package objects performs data-plane object operations through a profile's
// S3 client. Every operation takes a bucket-ref, which is either a plain
// bucket name or a multi-region access point ARN.
package objects

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/sirupsen/logrus"

	"github.com/13rac1/s3path/internal/redactor"
)

// ErrNotFound is returned when the object or bucket does not exist.
var ErrNotFound = errors.New("object not found")

// API is the subset of the S3 client used for object operations.
type API interface {
	manager.UploadAPIClient
	manager.DownloadAPIClient
	s3.ListObjectsV2APIClient
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// Presigner creates presigned requests. *s3.PresignClient satisfies it.
type Presigner interface {
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
	PresignPutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// Object describes a stored object.
type Object struct {
	Key          string    `json:"key"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"lastModified,omitempty"`
	ETag         string    `json:"etag,omitempty"`
}

// Client runs object operations against one endpoint.
type Client struct {
	api       API
	presigner Presigner
	log       logrus.FieldLogger

	// PartSize and Concurrency tune multipart transfers.
	PartSize    int64
	Concurrency int
}

// New creates a Client. presigner may be nil when presigning is not needed.
func New(api API, presigner Presigner, log logrus.FieldLogger) *Client {
	return &Client{
		api:         api,
		presigner:   presigner,
		log:         log,
		PartSize:    5 * 1024 * 1024, // 5MB parts
		Concurrency: 5,               // 5 concurrent parts per file
	}
}

// NewFromS3 creates a Client backed by c and its presign client.
func NewFromS3(c *s3.Client, log logrus.FieldLogger) *Client {
	return New(c, s3.NewPresignClient(c), log)
}

// fail logs a failed operation and wraps err.
func (c *Client) fail(op, ref, key string, err error) error {
	c.log.WithFields(logrus.Fields{
		"op":     op,
		"target": ref + "/" + key,
	}).WithError(err).Warn("object operation failed")

	if isNotFound(err) {
		return fmt.Errorf("%s %s/%s: %w: %w", op, ref, key, ErrNotFound, err)
	}
	return fmt.Errorf("%s %s/%s: %w", op, ref, key, err)
}

func isNotFound(err error) bool {
	var nsk *s3types.NoSuchKey
	var nf *s3types.NotFound
	var nsb *s3types.NoSuchBucket
	return errors.As(err, &nsk) || errors.As(err, &nf) || errors.As(err, &nsb)
}

// Put stores data at key.
func (c *Client) Put(ctx context.Context, ref, key string, data []byte) (string, error) {
	out, err := c.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(ref),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		return "", c.fail("put object", ref, key, err)
	}
	return aws.ToString(out.ETag), nil
}

// Get returns the contents of key.
func (c *Client) Get(ctx context.Context, ref, key string) ([]byte, error) {
	out, err := c.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(ref),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, c.fail("get object", ref, key, err)
	}
	defer func() {
		if closeErr := out.Body.Close(); closeErr != nil {
			c.log.WithError(closeErr).Warn("closing object body")
		}
	}()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("read object %s/%s: %w", ref, key, err)
	}
	return data, nil
}

// Head returns the metadata of key. Missing objects return ErrNotFound.
func (c *Client) Head(ctx context.Context, ref, key string) (*Object, error) {
	out, err := c.api.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(ref),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, c.fail("head object", ref, key, err)
	}

	return &Object{
		Key:          key,
		Size:         aws.ToInt64(out.ContentLength),
		LastModified: aws.ToTime(out.LastModified),
		ETag:         aws.ToString(out.ETag),
	}, nil
}

// Delete removes key.
func (c *Client) Delete(ctx context.Context, ref, key string) error {
	if _, err := c.api.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(ref),
		Key:    aws.String(key),
	}); err != nil {
		return c.fail("delete object", ref, key, err)
	}
	return nil
}

// List returns up to limit objects under prefix in key order. A limit of
// zero or less lists everything.
func (c *Client) List(ctx context.Context, ref, prefix string, limit int) ([]Object, error) {
	input := &s3.ListObjectsV2Input{Bucket: aws.String(ref)}
	if prefix != "" {
		input.Prefix = aws.String(prefix)
	}

	var opts []func(*s3.ListObjectsV2PaginatorOptions)
	if limit > 0 && limit < 1000 {
		opts = append(opts, func(o *s3.ListObjectsV2PaginatorOptions) {
			o.Limit = int32(limit)
		})
	}

	var objects []Object
	paginator := s3.NewListObjectsV2Paginator(c.api, input, opts...)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, c.fail("list objects", ref, prefix, err)
		}

		for _, obj := range page.Contents {
			if obj.Key == nil {
				continue
			}
			objects = append(objects, Object{
				Key:          *obj.Key,
				Size:         aws.ToInt64(obj.Size),
				LastModified: aws.ToTime(obj.LastModified),
				ETag:         aws.ToString(obj.ETag),
			})
			if limit > 0 && len(objects) == limit {
				return objects, nil
			}
		}
	}
	return objects, nil
}

// Presign returns a presigned GET URL for key valid for ttl.
func (c *Client) Presign(ctx context.Context, ref, key string, ttl time.Duration) (string, error) {
	if c.presigner == nil {
		return "", fmt.Errorf("presign %s/%s: no presigner configured", ref, key)
	}

	req, err := c.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(ref),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", c.fail("presign get", ref, key, err)
	}

	c.logPresigned(req.URL)
	return req.URL, nil
}

// PresignPut returns a presigned PUT URL for key valid for ttl.
func (c *Client) PresignPut(ctx context.Context, ref, key string, ttl time.Duration) (string, error) {
	if c.presigner == nil {
		return "", fmt.Errorf("presign %s/%s: no presigner configured", ref, key)
	}

	req, err := c.presigner.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(ref),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", c.fail("presign put", ref, key, err)
	}

	c.logPresigned(req.URL)
	return req.URL, nil
}

func (c *Client) logPresigned(raw string) {
	_, stats := redactor.RedactWithStats(raw)
	c.log.WithFields(logrus.Fields{
		"url":       redactor.RedactURL(raw),
		"redaction": stats.String(),
	}).Debug("generated presigned URL")
}
