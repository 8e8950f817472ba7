package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/13rac1/s3path/internal/config"
	"github.com/13rac1/s3path/internal/endpoint"
	"github.com/13rac1/s3path/internal/objects"
	"github.com/13rac1/s3path/internal/output"
)

var (
	objectBucket        string
	objectLimit         int
	objectSkipUnchanged bool
)

// objectClient creates an object client addressing the service as res does.
func objectClient(ctx context.Context, s *session, res endpoint.Resolved) (*objects.Client, error) {
	c, err := config.NewS3Client(ctx, s.cfg, res, s.log)
	if err != nil {
		return nil, fmt.Errorf("creating S3 client: %w", err)
	}
	return objects.NewFromS3(c, s.log), nil
}

// objectTarget opens a session and its object client for the object commands.
func objectTarget(ctx context.Context) (*objects.Client, string, error) {
	s, err := openSession()
	if err != nil {
		return nil, "", err
	}
	_, ref, err := s.target(objectBucket)
	if err != nil {
		return nil, "", err
	}
	c, err := objectClient(ctx, s, s.resolved)
	if err != nil {
		return nil, "", err
	}
	return c, ref, nil
}

var objectCmd = &cobra.Command{
	Use:   "object",
	Short: "Read and write objects through the profile's endpoint",
	Long: `Object operations sent through the selected profile, so they take the same
network path the profile's applications use. For multi-region access point
profiles requests address the access point ARN.`,
}

var objectPutCmd = &cobra.Command{
	Use:   "put <key> <file>",
	Short: "Upload a small file in a single request",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		c, ref, err := objectTarget(ctx)
		if err != nil {
			return err
		}

		data, err := os.ReadFile(args[1])
		if err != nil {
			return fmt.Errorf("reading %s: %w", args[1], err)
		}

		etag, err := c.Put(ctx, ref, args[0], data)
		if err != nil {
			return err
		}
		fmt.Printf("Uploaded %s (%s, etag %s)\n", args[0], objects.FormatSize(int64(len(data))), etag)
		return nil
	},
}

var objectGetCmd = &cobra.Command{
	Use:   "get <key> [file]",
	Short: "Download an object to a file or stdout",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		c, ref, err := objectTarget(ctx)
		if err != nil {
			return err
		}

		data, err := c.Get(ctx, ref, args[0])
		if err != nil {
			return err
		}

		if len(args) == 1 {
			_, err := os.Stdout.Write(data)
			return err
		}
		if err := os.WriteFile(args[1], data, 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", args[1], err)
		}
		fmt.Printf("Downloaded %s to %s (%s)\n", args[0], args[1], objects.FormatSize(int64(len(data))))
		return nil
	},
}

var objectListCmd = &cobra.Command{
	Use:   "list [prefix]",
	Short: "List objects",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		c, ref, err := objectTarget(ctx)
		if err != nil {
			return err
		}

		var prefix string
		if len(args) == 1 {
			prefix = args[0]
		}

		objs, err := c.List(ctx, ref, prefix, objectLimit)
		if err != nil {
			return err
		}

		if jsonOutput {
			if objs == nil {
				objs = make([]objects.Object, 0)
			}
			return output.PrintJSON(objs)
		}
		output.PrintObjects(objs)
		return nil
	},
}

var objectHeadCmd = &cobra.Command{
	Use:   "head <key>",
	Short: "Show an object's size and modification time",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		c, ref, err := objectTarget(ctx)
		if err != nil {
			return err
		}

		obj, err := c.Head(ctx, ref, args[0])
		if err != nil {
			return err
		}

		if jsonOutput {
			return output.PrintJSON(obj)
		}
		output.PrintObjects([]objects.Object{*obj})
		return nil
	},
}

var objectDeleteCmd = &cobra.Command{
	Use:   "delete <key>",
	Short: "Delete an object",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		c, ref, err := objectTarget(ctx)
		if err != nil {
			return err
		}

		if err := c.Delete(ctx, ref, args[0]); err != nil {
			return err
		}
		fmt.Printf("Deleted %s\n", args[0])
		return nil
	},
}

var objectUploadCmd = &cobra.Command{
	Use:   "upload <file> [key]",
	Short: "Upload a file using multipart transfers",
	Long: `Uploads a file with the multipart transfer manager. The key defaults to the
file's base name. With --skip-unchanged an object of the same size is left alone.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		c, ref, err := objectTarget(ctx)
		if err != nil {
			return err
		}

		key := filepath.Base(args[0])
		if len(args) == 2 {
			key = args[1]
		}

		res, err := c.UploadFile(ctx, ref, key, args[0], objectSkipUnchanged)
		if err != nil {
			return err
		}
		return printTransfer("Uploaded", res)
	},
}

var objectDownloadCmd = &cobra.Command{
	Use:   "download <key> <file>",
	Short: "Download an object using ranged parallel transfers",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		c, ref, err := objectTarget(ctx)
		if err != nil {
			return err
		}

		res, err := c.DownloadFile(ctx, ref, args[0], args[1])
		if err != nil {
			return err
		}
		return printTransfer("Downloaded", res)
	},
}

func printTransfer(verb string, res *objects.TransferResult) error {
	if jsonOutput {
		return output.PrintJSON(res)
	}
	if res.Skipped {
		fmt.Printf("Skipped %s (unchanged)\n", res.Key)
		return nil
	}
	fmt.Printf("%s %s (%s in %s, %s/s)\n", verb, res.Key, objects.FormatSize(res.Bytes),
		res.Elapsed.Round(time.Millisecond), objects.FormatSize(int64(res.Rate())))
	return nil
}

func init() {
	objectCmd.PersistentFlags().StringVarP(&objectBucket, "bucket", "b", "", "bucket (defaults to the profile's bucket)")
	objectListCmd.Flags().IntVar(&objectLimit, "limit", 0, "maximum number of objects to list (0 for all)")
	objectUploadCmd.Flags().BoolVar(&objectSkipUnchanged, "skip-unchanged", false, "skip the upload when an object of the same size exists")

	objectCmd.AddCommand(objectPutCmd)
	objectCmd.AddCommand(objectGetCmd)
	objectCmd.AddCommand(objectListCmd)
	objectCmd.AddCommand(objectHeadCmd)
	objectCmd.AddCommand(objectDeleteCmd)
	objectCmd.AddCommand(objectUploadCmd)
	objectCmd.AddCommand(objectDownloadCmd)
}
