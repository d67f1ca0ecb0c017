// Package objectstore adapts github.com/minio/minio-go/v7 to the
// resource.ObjectStat surface so object-store-backed dependencies and
// targets (spec §3's S3Dependency/S3Target) can be change-checked
// against a real bucket, and lists prefixes for generators whose inputs
// live in object storage.
package objectstore

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Client wraps a minio.Client with the retry policy transient network
// and throttling errors need (spec §4.8's ambient retry behavior,
// applied here with github.com/cenkalti/backoff/v4 rather than
// internal/backoff, since every call is already scoped to a context and
// cenkalti's ExponentialBackOff composes directly with backoff.Retry).
type Client struct {
	mc         *minio.Client
	maxRetries uint64
}

// Config holds the connection parameters for one object-store endpoint.
type Config struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	Secure          bool
	MaxRetries      uint64 // 0 uses a sensible default
}

// New connects to an S3-compatible endpoint.
func New(cfg Config) (*Client, error) {
	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.Secure,
	})
	if err != nil {
		return nil, fmt.Errorf("connecting to object store %s: %w", cfg.Endpoint, err)
	}
	maxRetries := cfg.MaxRetries
	if maxRetries == 0 {
		maxRetries = 3
	}
	return &Client{mc: mc, maxRetries: maxRetries}, nil
}

// Stat implements resource.ObjectStat: a HEAD-style lookup for the
// current etag and last-modified time, retried on transient failure.
func (c *Client) Stat(bucket, key string) (etag string, lastModified time.Time, err error) {
	ctx := context.Background()
	policy := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), c.maxRetries)

	operation := func() error {
		info, statErr := c.mc.StatObject(ctx, bucket, key, minio.StatObjectOptions{})
		if statErr != nil {
			if isNotFound(statErr) {
				return backoff.Permanent(statErr)
			}
			return statErr
		}
		etag = info.ETag
		lastModified = info.LastModified
		return nil
	}

	if retryErr := backoff.Retry(operation, policy); retryErr != nil {
		return "", time.Time{}, fmt.Errorf("stat %s/%s: %w", bucket, key, retryErr)
	}
	return etag, lastModified, nil
}

// List returns every object key under prefix, used to populate
// taskgen.Input.Keys for object-store-backed generator inputs.
func (c *Client) List(ctx context.Context, bucket, prefix string) ([]string, error) {
	var keys []string
	for obj := range c.mc.ListObjects(ctx, bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("listing %s/%s: %w", bucket, prefix, obj.Err)
		}
		keys = append(keys, obj.Key)
	}
	return keys, nil
}

func isNotFound(err error) bool {
	resp := minio.ToErrorResponse(err)
	return resp.Code == "NoSuchKey" || resp.Code == "NotFound"
}
