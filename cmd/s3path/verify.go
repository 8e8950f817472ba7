package main

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/spf13/cobra"

	"github.com/13rac1/s3path/internal/config"
	"github.com/13rac1/s3path/internal/doctor"
	"github.com/13rac1/s3path/internal/endpoint"
	"github.com/13rac1/s3path/internal/evidence"
	"github.com/13rac1/s3path/internal/objects"
	"github.com/13rac1/s3path/internal/output"
	"github.com/13rac1/s3path/internal/pathcheck"
	"github.com/13rac1/s3path/internal/redactor"
)

var (
	verifyBucket   string
	verifyInstance string
	verifyNoTrace  bool
	verifyNoProbe  bool
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check whether traffic to a bucket stays on a private path",
	Long: `Gathers route table, VPC endpoint, prefix list, DNS, traceroute and
connectivity evidence for the selected profile and classifies the network
path as private, public or indeterminate. Exits with status 1 unless the
path is private.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession()
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		bucket, ref, err := s.target(verifyBucket)
		if err != nil {
			return err
		}

		instanceID := verifyInstance
		if instanceID == "" {
			instanceID = s.cfg.Diagnostics.InstanceID
		}

		clients := evidenceClients(ctx, s)
		report, err := evidence.NewGatherer(clients, s.log).Gather(ctx, evidence.Request{
			Bucket:        bucket,
			BucketRef:     ref,
			InstanceID:    instanceID,
			Region:        s.region(),
			ServiceDomain: s.cfg.AWS.ServiceDomain,
			Resolved:      s.resolved,
		})
		if err != nil {
			return fmt.Errorf("gathering evidence: %w", err)
		}
		if report.Problems != nil {
			s.log.WithError(report.Problems).Debug("some evidence was unavailable")
		}

		d := s.cfg.Diagnostics
		classifier := pathcheck.NewClassifier(pathcheck.Options{
			PrivateHopThreshold: d.PrivateHopThreshold,
			TrustDeclaredMode:   d.TrustDeclaredMode,
		})
		c := report.Classify(classifier)

		if jsonOutput {
			if err := output.PrintJSON(output.NewVerifyOutput(s.name, report, c)); err != nil {
				return err
			}
		} else {
			doctor.PrintReport(report, c)
		}

		if c.Verdict != pathcheck.Private {
			exitFunc(1)
		}
		return nil
	},
}

// evidenceClients builds the collaborators for a verify run. A client that
// cannot be built is left nil and its signals are reported unavailable.
func evidenceClients(ctx context.Context, s *session) evidence.Clients {
	clients := evidence.Clients{DNS: net.DefaultResolver}

	d := s.cfg.Diagnostics
	if !verifyNoTrace {
		clients.Tracer = evidence.Traceroute{
			Command: d.TracerouteCommand,
			MaxHops: d.MaxHops,
			Wait:    d.HopWait,
			Timeout: d.TraceTimeout,
		}
	}

	if ec2Client, err := config.NewEC2Client(ctx, s.cfg, s.region(), s.log); err != nil {
		s.log.WithError(err).Warn("EC2 client unavailable")
	} else {
		clients.EC2 = ec2Client
	}

	if imdsClient, err := config.NewIMDSClient(ctx, s.cfg, s.log); err != nil {
		s.log.WithError(err).Warn("instance metadata client unavailable")
	} else {
		clients.Metadata = imdsClient
	}

	if !verifyNoProbe {
		if s3Client, err := config.NewS3Client(ctx, s.cfg, s.resolved, s.log); err != nil {
			s.log.WithError(err).Warn("S3 client unavailable")
		} else {
			clients.Bucket = s3Client
		}
	}

	return clients
}

var (
	presignBucket      string
	presignKey         string
	presignTTL         time.Duration
	presignPut         bool
	presignCheckRegion bool
)

// presignCheck compares the URL a default regional client signs with the one
// the profile's client signs.
type presignCheck struct {
	Region  string           `json:"region"`
	Default objects.URLCheck `json:"default"`
	Profile objects.URLCheck `json:"profile"`
}

var presignCmd = &cobra.Command{
	Use:   "presign",
	Short: "Create a presigned URL through the profile's endpoint",
	Long: `Presigns a GET (or PUT with --put) for an object using the selected profile.
With --check-region the URL is not printed; instead the hostnames signed by a
default regional client and by the profile client are compared.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession()
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		_, ref, err := s.target(presignBucket)
		if err != nil {
			return err
		}

		client, err := objectClient(ctx, s, s.resolved)
		if err != nil {
			return err
		}

		url, err := presign(ctx, client, ref, presignKey)
		if err != nil {
			return err
		}

		if !presignCheckRegion {
			if jsonOutput {
				return output.PrintJSON(map[string]string{"url": url})
			}
			fmt.Println(url)
			return nil
		}

		region := s.region()
		defaultRes, err := endpoint.Resolve(endpoint.Config{Region: region})
		if err != nil {
			return fmt.Errorf("resolving default endpoint: %w", err)
		}
		defaultClient, err := objectClient(ctx, s, defaultRes)
		if err != nil {
			return err
		}
		defaultURL, err := presign(ctx, defaultClient, ref, presignKey)
		if err != nil {
			return err
		}

		check := presignCheck{Region: region}
		if check.Default, err = objects.CheckURL(defaultURL, region); err != nil {
			return err
		}
		if check.Profile, err = objects.CheckURL(url, region); err != nil {
			return err
		}

		if jsonOutput {
			return output.PrintJSON(check)
		}

		redacted := redactor.NewStats()
		for _, u := range []string{defaultURL, url} {
			_, stats := redactor.RedactWithStats(u)
			redacted.Add(stats)
		}
		s.log.WithField("redaction", redacted.String()).Debug("masking presigned URLs for display")

		fmt.Printf("Default client: %s\n", redactor.RedactURL(defaultURL))
		fmt.Printf("  → %s\n", check.Default.Verdict(region))
		fmt.Printf("Profile %s: %s\n", s.name, redactor.RedactURL(url))
		fmt.Printf("  → %s\n", check.Profile.Verdict(region))
		return nil
	},
}

func presign(ctx context.Context, c *objects.Client, ref, key string) (string, error) {
	if presignPut {
		return c.PresignPut(ctx, ref, key, presignTTL)
	}
	return c.Presign(ctx, ref, key, presignTTL)
}

func init() {
	verifyCmd.Flags().StringVarP(&verifyBucket, "bucket", "b", "", "bucket to check (defaults to the profile's bucket)")
	verifyCmd.Flags().StringVar(&verifyInstance, "instance-id", "", "instance whose route table is inspected (defaults to instance metadata)")
	verifyCmd.Flags().BoolVar(&verifyNoTrace, "no-trace", false, "skip traceroute")
	verifyCmd.Flags().BoolVar(&verifyNoProbe, "no-probe", false, "skip the HeadBucket connectivity probe")

	presignCmd.Flags().StringVarP(&presignBucket, "bucket", "b", "", "bucket (defaults to the profile's bucket)")
	presignCmd.Flags().StringVarP(&presignKey, "key", "k", "", "object key")
	presignCmd.Flags().DurationVar(&presignTTL, "ttl", time.Hour, "URL lifetime")
	presignCmd.Flags().BoolVar(&presignPut, "put", false, "presign an upload instead of a download")
	presignCmd.Flags().BoolVar(&presignCheckRegion, "check-region", false, "compare the signed hostname with a default regional client")
	_ = presignCmd.MarkFlagRequired("key")
}
