package evidence

import (
	"context"
	"errors"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsmiddleware "github.com/aws/aws-sdk-go-v2/aws/middleware"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
)

// BucketAPI is the subset of the S3 client used for the connectivity probe.
type BucketAPI interface {
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

// Connectivity is the result of a HeadBucket request through the profile's
// client.
type Connectivity struct {
	BucketRef string        `json:"bucketRef"`
	Reachable bool          `json:"reachable"`
	RequestID string        `json:"requestId,omitempty"`
	Region    string        `json:"region,omitempty"`
	ErrorCode string        `json:"errorCode,omitempty"`
	Error     string        `json:"error,omitempty"`
	Latency   time.Duration `json:"latencyNs"`
}

// probe sends HeadBucket to ref. A service error still counts as a probe
// result; only a missing client leaves connectivity unknown.
func (g *Gatherer) probe(ctx context.Context, ref string) (*Connectivity, error) {
	if g.clients.Bucket == nil {
		return nil, unavailable("connectivity", errors.New("no S3 client configured"))
	}

	c := &Connectivity{BucketRef: ref}
	start := time.Now()
	out, err := g.clients.Bucket.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(ref)})
	c.Latency = time.Since(start)

	if err != nil {
		g.logFailure("HeadBucket", ref, err)
		c.Error = err.Error()

		var apiErr smithy.APIError
		if errors.As(err, &apiErr) {
			c.ErrorCode = apiErr.ErrorCode()
		}
		var respErr *awshttp.ResponseError
		if errors.As(err, &respErr) {
			c.RequestID = respErr.ServiceRequestID()
		}
		return c, nil
	}

	c.Reachable = true
	c.Region = aws.ToString(out.BucketRegion)
	if id, ok := awsmiddleware.GetRequestIDMetadata(out.ResultMetadata); ok {
		c.RequestID = id
	}
	return c, nil
}
