package objects

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/sirupsen/logrus"
)

// TransferResult summarizes an upload or download.
type TransferResult struct {
	Key      string        `json:"key"`
	Path     string        `json:"path"`
	Bytes    int64         `json:"bytes"`
	Skipped  bool          `json:"skipped,omitempty"`
	Location string        `json:"location,omitempty"`
	Elapsed  time.Duration `json:"elapsed"`
}

// Rate returns the transfer rate in bytes per second.
func (r TransferResult) Rate() float64 {
	if r.Elapsed <= 0 {
		return 0
	}
	return float64(r.Bytes) / r.Elapsed.Seconds()
}

// ShouldUpload reports whether a local file of localSize differs from key.
// A missing object needs uploading; an object of equal size does not.
func (c *Client) ShouldUpload(ctx context.Context, ref, key string, localSize int64) (bool, error) {
	head, err := c.api.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(ref),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return true, nil
		}
		return false, c.fail("head object", ref, key, err)
	}

	if head.ContentLength == nil {
		return true, nil
	}
	return *head.ContentLength != localSize, nil
}

// UploadFile uploads the file at path to key using multipart uploads for
// large files. With skipUnchanged, an existing object of the same size is
// left alone.
func (c *Client) UploadFile(ctx context.Context, ref, key, path string, skipUnchanged bool) (*TransferResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening file: %w", err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil {
			c.log.WithError(closeErr).WithField("path", path).Warn("failed to close file")
		}
	}()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}

	result := &TransferResult{Key: key, Path: path, Bytes: info.Size()}

	if skipUnchanged {
		upload, err := c.ShouldUpload(ctx, ref, key, info.Size())
		if err != nil {
			return nil, err
		}
		if !upload {
			result.Skipped = true
			return result, nil
		}
	}

	uploader := manager.NewUploader(c.api, func(u *manager.Uploader) {
		u.Concurrency = c.Concurrency
		u.PartSize = c.PartSize
	})

	start := time.Now()
	out, err := uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(ref),
		Key:    aws.String(key),
		Body:   f,
	})
	if err != nil {
		return nil, c.fail("upload", ref, key, err)
	}
	result.Elapsed = time.Since(start)
	result.Location = out.Location

	c.log.WithFields(logrus.Fields{
		"key":   key,
		"bytes": result.Bytes,
		"rate":  FormatSize(int64(result.Rate())) + "/s",
	}).Info("uploaded")
	return result, nil
}

// DownloadFile downloads key to path, creating parent directories.
func (c *Client) DownloadFile(ctx context.Context, ref, key, path string) (*TransferResult, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating %s: %w", dir, err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating file: %w", err)
	}

	downloader := manager.NewDownloader(c.api, func(d *manager.Downloader) {
		d.Concurrency = c.Concurrency
		d.PartSize = c.PartSize
	})

	start := time.Now()
	n, err := downloader.Download(ctx, f, &s3.GetObjectInput{
		Bucket: aws.String(ref),
		Key:    aws.String(key),
	})
	closeErr := f.Close()
	if err != nil {
		_ = os.Remove(path)
		return nil, c.fail("download", ref, key, err)
	}
	if closeErr != nil {
		return nil, fmt.Errorf("closing %s: %w", path, closeErr)
	}

	return &TransferResult{Key: key, Path: path, Bytes: n, Elapsed: time.Since(start)}, nil
}

// FormatSize formats a byte count as a human-readable string.
func FormatSize(bytes int64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
	)

	switch {
	case bytes >= GB:
		return fmt.Sprintf("%.1f GB", float64(bytes)/GB)
	case bytes >= MB:
		return fmt.Sprintf("%.1f MB", float64(bytes)/MB)
	case bytes >= KB:
		return fmt.Sprintf("%.1f KB", float64(bytes)/KB)
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
