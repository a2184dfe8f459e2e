package models

import "fmt"

// Bucket is the discrete classification of a signal value.
type Bucket string

const (
	BucketLow     Bucket = "LOW"
	BucketNeutral Bucket = "NEUTRAL"
	BucketHigh    Bucket = "HIGH"
)

// IsExtreme reports whether the bucket may trigger a rebalance.
func (b Bucket) IsExtreme() bool {
	return b == BucketLow || b == BucketHigh
}

// ParseBucket converts a string into a Bucket.
func ParseBucket(s string) (Bucket, error) {
	switch Bucket(s) {
	case BucketLow, BucketNeutral, BucketHigh:
		return Bucket(s), nil
	}
	return "", fmt.Errorf("unknown bucket %q", s)
}
