package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Config holds S3/MinIO client configuration.
type Config struct {
	Endpoint        string // "localhost:9000" for MinIO
	Bucket          string // "hackathons"
	AccessKeyID     string
	SecretAccessKey string
	UseSSL          bool
}

// Client wraps the MinIO/S3 client for run artifacts.
type Client struct {
	minioClient *minio.Client
	bucket      string
}

// New creates a new S3/MinIO client.
func New(config Config) (*Client, error) {
	if config.Endpoint == "" {
		return nil, fmt.Errorf("endpoint is required")
	}
	if config.Bucket == "" {
		return nil, fmt.Errorf("bucket is required")
	}

	minioClient, err := minio.New(config.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(config.AccessKeyID, config.SecretAccessKey, ""),
		Secure: config.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	return &Client{
		minioClient: minioClient,
		bucket:      config.Bucket,
	}, nil
}

// EnsureBucket creates the bucket if it doesn't exist.
func (c *Client) EnsureBucket(ctx context.Context) error {
	exists, err := c.minioClient.BucketExists(ctx, c.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket: %w", err)
	}
	if exists {
		return nil
	}

	err = c.minioClient.MakeBucket(ctx, c.bucket, minio.MakeBucketOptions{})
	if err != nil {
		return fmt.Errorf("failed to create bucket: %w", err)
	}
	return nil
}

// Object names inside a run prefix.
const (
	TilesObject    = "tiles.json"
	ListingsObject = "hackathons.json"
	metadataObject = "metadata.json"
)

// RunMetadata is the manifest written next to a run's artifacts.
type RunMetadata struct {
	RunID       string         `json:"run_id"`
	StartedAt   time.Time      `json:"started_at"`
	CompletedAt time.Time      `json:"completed_at"`
	SourceURL   string         `json:"source_url,omitempty"`
	Tiles       int            `json:"tiles"`
	Listings    int            `json:"listings"`
	Failures    int            `json:"failures"`
	Sources     map[string]int `json:"sources,omitempty"` // records per connector
	Objects     []string       `json:"objects"`
}

// RunPrefix builds the object prefix for a run: runs/{timestamp}-{shortid}.
func RunPrefix(runID string, startedAt time.Time) string {
	short := runID
	if len(short) > 8 {
		short = short[:8]
	}
	return fmt.Sprintf("runs/%s-%s", startedAt.UTC().Format("2006-01-02T15-04-05"), short)
}

// PutJSON marshals v and writes it to prefix/name.
func (c *Client) PutJSON(ctx context.Context, prefix, name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", name, err)
	}

	objectName := path.Join(prefix, name)
	_, err = c.minioClient.PutObject(ctx, c.bucket, objectName, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return fmt.Errorf("failed to put %s: %w", objectName, err)
	}
	return nil
}

// GetJSON reads prefix/name and unmarshals it into v.
func (c *Client) GetJSON(ctx context.Context, prefix, name string, v any) error {
	objectName := path.Join(prefix, name)

	object, err := c.minioClient.GetObject(ctx, c.bucket, objectName, minio.GetObjectOptions{})
	if err != nil {
		return fmt.Errorf("failed to get %s: %w", objectName, err)
	}
	defer object.Close()

	data, err := io.ReadAll(object)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", objectName, err)
	}

	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to unmarshal %s: %w", objectName, err)
	}
	return nil
}

// PutMetadata writes the run manifest.
func (c *Client) PutMetadata(ctx context.Context, prefix string, meta RunMetadata) error {
	if err := c.PutJSON(ctx, prefix, metadataObject, meta); err != nil {
		return fmt.Errorf("failed to put metadata: %w", err)
	}
	return nil
}

// GetMetadata reads the run manifest.
func (c *Client) GetMetadata(ctx context.Context, prefix string) (*RunMetadata, error) {
	var meta RunMetadata
	if err := c.GetJSON(ctx, prefix, metadataObject, &meta); err != nil {
		return nil, fmt.Errorf("failed to get metadata: %w", err)
	}
	return &meta, nil
}

// ListObjects returns the object names under prefix, relative to it.
func (c *Client) ListObjects(ctx context.Context, prefix string) ([]string, error) {
	var names []string

	objectCh := c.minioClient.ListObjects(ctx, c.bucket, minio.ListObjectsOptions{
		Prefix:    prefix + "/",
		Recursive: true,
	})

	for object := range objectCh {
		if object.Err != nil {
			return nil, fmt.Errorf("failed to list objects: %w", object.Err)
		}
		names = append(names, path.Base(object.Key))
	}

	return names, nil
}

// Bucket returns the bucket name.
func (c *Client) Bucket() string {
	return c.bucket
}
