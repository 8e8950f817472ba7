package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/13rac1/s3path/internal/config"
	"github.com/13rac1/s3path/internal/endpoint"
	"github.com/13rac1/s3path/internal/mrap"
	"github.com/13rac1/s3path/internal/output"
	"github.com/13rac1/s3path/internal/types"
)

var (
	mrapBuckets      []string
	mrapWait         bool
	mrapSource       string
	mrapDest         string
	mrapRole         string
	mrapSourceRegion string
	mrapDestRegion   string
	mrapBidirection  bool
)

func controlClient(ctx context.Context) (*mrap.Client, *types.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	log, err := newLogger(cfg)
	if err != nil {
		return nil, nil, err
	}
	c, err := config.NewS3ControlClient(ctx, cfg, log)
	if err != nil {
		return nil, nil, fmt.Errorf("creating S3 control client: %w", err)
	}
	client := mrap.New(c, cfg.AWS.AccountID, log)
	client.Partition = endpoint.PartitionForRegion(cfg.AWS.Region)
	return client, cfg, nil
}

// regionalS3Client creates a standard client for region, falling back to
// aws.region.
func regionalS3Client(ctx context.Context, cfg *types.Config, region string, log logrus.FieldLogger) (*s3.Client, error) {
	if region == "" {
		region = cfg.AWS.Region
	}
	res, err := endpoint.Resolve(endpoint.Config{Region: region})
	if err != nil {
		return nil, err
	}
	client, err := config.NewS3Client(ctx, cfg, res, log)
	if err != nil {
		return nil, fmt.Errorf("creating S3 client: %w", err)
	}
	return client, nil
}

// parseBucketRegions parses "bucket" or "bucket:region" arguments.
func parseBucketRegions(args []string) ([]mrap.BucketRegion, error) {
	buckets := make([]mrap.BucketRegion, 0, len(args))
	for _, a := range args {
		name, region, _ := strings.Cut(a, ":")
		if name == "" {
			return nil, fmt.Errorf("invalid bucket %q: want bucket or bucket:region", a)
		}
		buckets = append(buckets, mrap.BucketRegion{Bucket: name, Region: region})
	}
	return buckets, nil
}

// finish prints a started request token or, with --wait, its final state.
func finish(ctx context.Context, c *mrap.Client, token string) error {
	if !mrapWait {
		if jsonOutput {
			return output.PrintJSON(map[string]string{"token": token})
		}
		fmt.Printf("Request started: %s\n", token)
		fmt.Println("Run 's3path mrap wait <token>' to follow it.")
		return nil
	}
	return waitFor(ctx, c, token)
}

func waitFor(ctx context.Context, c *mrap.Client, token string) error {
	op, err := c.Wait(ctx, token)
	if op != nil {
		if jsonOutput {
			if perr := output.PrintJSON(op); perr != nil {
				return perr
			}
		} else {
			fmt.Printf("%s %s: %s\n", op.Name, op.Token, op.Status)
		}
	}
	return err
}

var mrapCmd = &cobra.Command{
	Use:   "mrap",
	Short: "Manage multi-region access points",
	Long: `Create, inspect and delete multi-region access points, manage their
policies and set up replication between their buckets. Requires aws.account_id.`,
}

var mrapCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a multi-region access point",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		c, _, err := controlClient(ctx)
		if err != nil {
			return err
		}

		buckets, err := parseBucketRegions(mrapBuckets)
		if err != nil {
			return err
		}

		token, err := c.Create(ctx, args[0], buckets)
		if err != nil {
			return err
		}
		return finish(ctx, c, token)
	},
}

var mrapStatusCmd = &cobra.Command{
	Use:   "status <name>",
	Short: "Show a multi-region access point",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		c, cfg, err := controlClient(ctx)
		if err != nil {
			return err
		}

		ap, err := c.Get(ctx, args[0])
		if err != nil {
			return err
		}

		if jsonOutput {
			return output.PrintJSON(ap)
		}
		output.PrintAccessPoints([]mrap.AccessPoint{*ap})
		if ap.Ready() {
			fmt.Printf("ARN: %s\n", ap.ARN(c.Partition, cfg.AWS.AccountID))
			res, err := endpoint.Resolve(endpoint.Config{Mode: endpoint.ModeMultiRegionAccessPoint, AccessPointAlias: ap.Alias})
			if err == nil {
				fmt.Printf("Hostname: %s\n", res.Hostname)
			}
		}
		return nil
	},
}

var mrapListCmd = &cobra.Command{
	Use:   "list",
	Short: "List multi-region access points",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		c, _, err := controlClient(ctx)
		if err != nil {
			return err
		}

		points, err := c.List(ctx)
		if err != nil {
			return err
		}

		if jsonOutput {
			if points == nil {
				points = make([]mrap.AccessPoint, 0)
			}
			return output.PrintJSON(points)
		}
		output.PrintAccessPoints(points)
		return nil
	},
}

var mrapDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a multi-region access point",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		c, _, err := controlClient(ctx)
		if err != nil {
			return err
		}

		token, err := c.Delete(ctx, args[0])
		if err != nil {
			return err
		}
		return finish(ctx, c, token)
	},
}

var mrapWaitCmd = &cobra.Command{
	Use:   "wait <token>",
	Short: "Wait for an asynchronous access point request to finish",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		c, _, err := controlClient(ctx)
		if err != nil {
			return err
		}
		return waitFor(ctx, c, args[0])
	},
}

var mrapPolicyCmd = &cobra.Command{
	Use:   "policy",
	Short: "Read or replace an access point policy",
}

var mrapPolicyGetCmd = &cobra.Command{
	Use:   "get <name>",
	Short: "Show the established and proposed policies",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		c, _, err := controlClient(ctx)
		if err != nil {
			return err
		}

		p, err := c.GetPolicy(ctx, args[0])
		if err != nil {
			return err
		}

		if jsonOutput {
			return output.PrintJSON(p)
		}
		fmt.Printf("Established:\n%s\n", orNone(p.Established))
		fmt.Printf("Proposed:\n%s\n", orNone(p.Proposed))
		return nil
	},
}

var mrapPolicyPutCmd = &cobra.Command{
	Use:   "put <name> <policy.json>",
	Short: "Replace the access point policy",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		c, _, err := controlClient(ctx)
		if err != nil {
			return err
		}

		doc, err := os.ReadFile(args[1])
		if err != nil {
			return fmt.Errorf("reading policy: %w", err)
		}

		token, err := c.PutPolicy(ctx, args[0], doc)
		if err != nil {
			return err
		}
		return finish(ctx, c, token)
	},
}

var mrapReplicateCmd = &cobra.Command{
	Use:   "replicate",
	Short: "Replicate objects between two buckets behind an access point",
	Long: `Writes a replication rule on the source bucket copying every object to the
destination within 15 minutes. With --both the reverse rule is written too.
Versioning must already be enabled on both buckets.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		log, err := newLogger(cfg)
		if err != nil {
			return err
		}

		source, err := regionalS3Client(ctx, cfg, mrapSourceRegion, log)
		if err != nil {
			return err
		}
		if err := mrap.ConfigureReplication(ctx, source, mrapSource, mrapDest, mrapRole, log); err != nil {
			return err
		}
		fmt.Printf("Replicating %s → %s\n", mrapSource, mrapDest)

		if mrapBidirection {
			dest, err := regionalS3Client(ctx, cfg, mrapDestRegion, log)
			if err != nil {
				return err
			}
			if err := mrap.ConfigureReplication(ctx, dest, mrapDest, mrapSource, mrapRole, log); err != nil {
				return err
			}
			fmt.Printf("Replicating %s → %s\n", mrapDest, mrapSource)
		}
		return nil
	},
}

func orNone(s string) string {
	if s == "" {
		return "  (none)"
	}
	return s
}

func init() {
	mrapCreateCmd.Flags().StringArrayVar(&mrapBuckets, "bucket", nil, "bucket to include, as name or name:region (repeatable)")
	_ = mrapCreateCmd.MarkFlagRequired("bucket")

	for _, c := range []*cobra.Command{mrapCreateCmd, mrapDeleteCmd, mrapPolicyPutCmd} {
		c.Flags().BoolVar(&mrapWait, "wait", false, "wait for the request to finish")
	}

	mrapReplicateCmd.Flags().StringVar(&mrapSource, "source", "", "source bucket")
	mrapReplicateCmd.Flags().StringVar(&mrapDest, "dest", "", "destination bucket")
	mrapReplicateCmd.Flags().StringVar(&mrapRole, "role", "", "IAM role ARN the replication runs as")
	mrapReplicateCmd.Flags().StringVar(&mrapSourceRegion, "source-region", "", "source bucket region (defaults to aws.region)")
	mrapReplicateCmd.Flags().StringVar(&mrapDestRegion, "dest-region", "", "destination bucket region (defaults to aws.region)")
	mrapReplicateCmd.Flags().BoolVar(&mrapBidirection, "both", false, "also replicate destination back to source")
	_ = mrapReplicateCmd.MarkFlagRequired("source")
	_ = mrapReplicateCmd.MarkFlagRequired("dest")
	_ = mrapReplicateCmd.MarkFlagRequired("role")

	mrapPolicyCmd.AddCommand(mrapPolicyGetCmd)
	mrapPolicyCmd.AddCommand(mrapPolicyPutCmd)

	mrapCmd.AddCommand(mrapCreateCmd)
	mrapCmd.AddCommand(mrapStatusCmd)
	mrapCmd.AddCommand(mrapListCmd)
	mrapCmd.AddCommand(mrapDeleteCmd)
	mrapCmd.AddCommand(mrapWaitCmd)
	mrapCmd.AddCommand(mrapPolicyCmd)
	mrapCmd.AddCommand(mrapReplicateCmd)
}
