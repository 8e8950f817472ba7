package evidence

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/feature/ec2/imds"
	"github.com/sirupsen/logrus"
)

// MetadataAPI is the subset of the instance metadata client used to
// discover the running instance.
type MetadataAPI interface {
	GetInstanceIdentityDocument(ctx context.Context, params *imds.GetInstanceIdentityDocumentInput, optFns ...func(*imds.Options)) (*imds.GetInstanceIdentityDocumentOutput, error)
}

// instance identifies the instance under inspection and its network
// placement. req is updated with the discovered instance ID and region.
func (g *Gatherer) instance(ctx context.Context, req *Request) (*Instance, error) {
	if req.InstanceID == "" {
		if g.clients.Metadata == nil {
			return nil, unavailable("instance", errors.New("no instance ID given and instance metadata is not configured"))
		}

		doc, err := g.clients.Metadata.GetInstanceIdentityDocument(ctx, &imds.GetInstanceIdentityDocumentInput{})
		if err != nil {
			g.logFailure("GetInstanceIdentityDocument", "imds", err)
			return nil, unavailable("instance", fmt.Errorf("read instance identity document: %w", err))
		}
		req.InstanceID = doc.InstanceID
		if req.Region == "" {
			req.Region = doc.Region
		}
		g.log.WithFields(logrus.Fields{
			"instance": req.InstanceID,
			"region":   doc.Region,
		}).Debug("discovered instance from metadata")
	}

	return g.describeInstance(ctx, req.InstanceID)
}

func (g *Gatherer) logFailure(op, target string, err error) {
	g.log.WithFields(logrus.Fields{
		"op":     op,
		"target": target,
	}).WithError(err).Warn("evidence lookup failed")
}
