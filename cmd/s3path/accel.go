package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/13rac1/s3path/internal/accel"
	"github.com/13rac1/s3path/internal/output"
)

var accelBucket string

// accelTarget returns an acceleration client and the bucket to configure.
// Acceleration settings live on the bucket, so the request goes through the
// regional endpoint even for accelerated profiles.
func accelTarget(ctx context.Context) (*accel.Client, string, error) {
	s, err := openSession()
	if err != nil {
		return nil, "", err
	}
	bucket, _, err := s.target(accelBucket)
	if err != nil {
		return nil, "", err
	}
	if bucket == "" {
		return nil, "", fmt.Errorf("no bucket: pass --bucket or set profiles.%s.bucket", s.name)
	}

	client, err := regionalS3Client(ctx, s.cfg, s.region(), s.log)
	if err != nil {
		return nil, "", err
	}
	return accel.New(client, s.log), bucket, nil
}

var accelCmd = &cobra.Command{
	Use:   "accel",
	Short: "Manage bucket Transfer Acceleration",
}

var accelEnableCmd = &cobra.Command{
	Use:   "enable",
	Short: "Enable Transfer Acceleration on a bucket",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		c, bucket, err := accelTarget(ctx)
		if err != nil {
			return err
		}
		if err := c.Enable(ctx, bucket); err != nil {
			return err
		}
		fmt.Printf("Transfer Acceleration enabled on %s\n", bucket)
		return nil
	},
}

var accelSuspendCmd = &cobra.Command{
	Use:   "suspend",
	Short: "Suspend Transfer Acceleration on a bucket",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		c, bucket, err := accelTarget(ctx)
		if err != nil {
			return err
		}
		if err := c.Suspend(ctx, bucket); err != nil {
			return err
		}
		fmt.Printf("Transfer Acceleration suspended on %s\n", bucket)
		return nil
	},
}

var accelStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the Transfer Acceleration status of a bucket",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		c, bucket, err := accelTarget(ctx)
		if err != nil {
			return err
		}
		status, err := c.Get(ctx, bucket)
		if err != nil {
			return err
		}

		compatible := accel.ValidateBucketName(bucket) == nil
		if jsonOutput {
			return output.PrintJSON(map[string]any{
				"bucket":     bucket,
				"status":     status,
				"compatible": compatible,
			})
		}
		fmt.Printf("%s: %s\n", bucket, status)
		if !compatible {
			fmt.Println("  bucket name cannot be used with the accelerate endpoint")
		}
		return nil
	},
}

func init() {
	accelCmd.PersistentFlags().StringVarP(&accelBucket, "bucket", "b", "", "bucket (defaults to the profile's bucket)")

	accelCmd.AddCommand(accelEnableCmd)
	accelCmd.AddCommand(accelSuspendCmd)
	accelCmd.AddCommand(accelStatusCmd)
}
