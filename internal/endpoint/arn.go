package endpoint

import (
	"fmt"
	"strings"
)

// PartitionForRegion returns the ARN partition for region.
func PartitionForRegion(region string) string {
	switch {
	case strings.HasPrefix(region, "cn-"):
		return "aws-cn"
	case strings.HasPrefix(region, "us-gov-"):
		return "aws-us-gov"
	default:
		return "aws"
	}
}

// AccessPointARN builds the ARN used as bucket-ref for requests through a
// multi-region access point. An empty partition means "aws".
func AccessPointARN(partition, accountID, alias string) string {
	return fmt.Sprintf("arn:%s:s3::%s:accesspoint/%s", orDefaultPartition(partition), accountID, alias)
}

// BucketARN builds the account-scoped bucket ARN used when registering a
// bucket with a multi-region access point.
func BucketARN(partition, accountID, bucket string) string {
	return fmt.Sprintf("arn:%s:s3::%s:bucket/%s", orDefaultPartition(partition), accountID, bucket)
}

// PlainBucketARN builds the classic arn:<partition>:s3:::<bucket> form used
// for replication destinations.
func PlainBucketARN(partition, bucket string) string {
	return fmt.Sprintf("arn:%s:s3:::%s", orDefaultPartition(partition), bucket)
}

// PartitionOfARN returns the partition field of arn, or "aws" when arn is
// not an ARN.
func PartitionOfARN(arn string) string {
	parts := strings.SplitN(arn, ":", 3)
	if len(parts) < 3 || parts[0] != "arn" {
		return "aws"
	}
	return orDefaultPartition(parts[1])
}

func orDefaultPartition(partition string) string {
	if partition == "" {
		return "aws"
	}
	return partition
}

// IsAccessPointARN reports whether ref is an access point ARN rather than a
// plain bucket name.
func IsAccessPointARN(ref string) bool {
	return strings.HasPrefix(ref, "arn:") && strings.Contains(ref, ":accesspoint/")
}
