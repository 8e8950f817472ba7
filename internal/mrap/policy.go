package mrap

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/aws-sdk-go-v2/service/s3control"
	controltypes "github.com/aws/aws-sdk-go-v2/service/s3control/types"
	"github.com/sirupsen/logrus"

	"github.com/13rac1/s3path/internal/endpoint"
)

// Policy holds the established and proposed access point policies. Either
// may be empty.
type Policy struct {
	Established string `json:"established,omitempty"`
	Proposed    string `json:"proposed,omitempty"`
}

// PutPolicy starts attaching document to access point name and returns the
// request token. document must be valid JSON.
func (c *Client) PutPolicy(ctx context.Context, name string, document []byte) (string, error) {
	if err := c.checkAccount(); err != nil {
		return "", err
	}
	if !json.Valid(document) {
		return "", fmt.Errorf("put policy %s: policy document is not valid JSON", name)
	}

	var compact bytes.Buffer
	if err := json.Compact(&compact, document); err != nil {
		return "", fmt.Errorf("put policy %s: %w", name, err)
	}

	out, err := c.api.PutMultiRegionAccessPointPolicy(ctx, &s3control.PutMultiRegionAccessPointPolicyInput{
		AccountId:   aws.String(c.account),
		ClientToken: aws.String(c.clientToken(name, "policy")),
		Details: &controltypes.PutMultiRegionAccessPointPolicyInput{
			Name:   aws.String(name),
			Policy: aws.String(compact.String()),
		},
	})
	if err != nil {
		return "", c.fail("put policy", name, err)
	}

	token := aws.ToString(out.RequestTokenARN)
	c.log.WithFields(logrus.Fields{"name": name, "token": token}).Info("access point policy update started")
	return token, nil
}

// GetPolicy returns the policies attached to access point name.
func (c *Client) GetPolicy(ctx context.Context, name string) (*Policy, error) {
	if err := c.checkAccount(); err != nil {
		return nil, err
	}

	out, err := c.api.GetMultiRegionAccessPointPolicy(ctx, &s3control.GetMultiRegionAccessPointPolicyInput{
		AccountId: aws.String(c.account),
		Name:      aws.String(name),
	})
	if err != nil {
		return nil, c.fail("get policy", name, err)
	}

	p := &Policy{}
	if doc := out.Policy; doc != nil {
		if doc.Established != nil {
			p.Established = aws.ToString(doc.Established.Policy)
		}
		if doc.Proposed != nil {
			p.Proposed = aws.ToString(doc.Proposed.Policy)
		}
	}
	return p, nil
}

// ReplicationAPI is the subset of the S3 client used to configure replication.
type ReplicationAPI interface {
	PutBucketReplication(ctx context.Context, params *s3.PutBucketReplicationInput, optFns ...func(*s3.Options)) (*s3.PutBucketReplicationOutput, error)
}

// ReplicationRuleID names the rule written by ConfigureReplication.
const ReplicationRuleID = "mrap-replication-rule"

// ReplicationConfig returns a replication configuration copying every object
// to dest within 15 minutes, delete markers included. The destination ARN
// uses the role's partition.
func ReplicationConfig(roleARN, dest string) *s3types.ReplicationConfiguration {
	fifteen := &s3types.ReplicationTimeValue{Minutes: aws.Int32(15)}
	return &s3types.ReplicationConfiguration{
		Role: aws.String(roleARN),
		Rules: []s3types.ReplicationRule{{
			ID:       aws.String(ReplicationRuleID),
			Status:   s3types.ReplicationRuleStatusEnabled,
			Priority: aws.Int32(1),
			Filter:   &s3types.ReplicationRuleFilter{},
			Destination: &s3types.Destination{
				Bucket: aws.String(endpoint.PlainBucketARN(endpoint.PartitionOfARN(roleARN), dest)),
				ReplicationTime: &s3types.ReplicationTime{
					Status: s3types.ReplicationTimeStatusEnabled,
					Time:   fifteen,
				},
				Metrics: &s3types.Metrics{
					Status:         s3types.MetricsStatusEnabled,
					EventThreshold: fifteen,
				},
			},
			DeleteMarkerReplication: &s3types.DeleteMarkerReplication{
				Status: s3types.DeleteMarkerReplicationStatusEnabled,
			},
		}},
	}
}

// ConfigureReplication replicates source into dest using roleARN. Buckets
// behind one access point usually replicate in both directions; call it once
// per direction.
func ConfigureReplication(ctx context.Context, api ReplicationAPI, source, dest, roleARN string, log logrus.FieldLogger) error {
	if _, err := api.PutBucketReplication(ctx, &s3.PutBucketReplicationInput{
		Bucket:                   aws.String(source),
		ReplicationConfiguration: ReplicationConfig(roleARN, dest),
	}); err != nil {
		log.WithFields(logrus.Fields{"op": "put bucket replication", "target": source}).WithError(err).Warn("replication setup failed")
		return fmt.Errorf("put bucket replication %s: %w", source, err)
	}

	log.WithFields(logrus.Fields{"source": source, "dest": dest}).Info("replication configured")
	return nil
}
