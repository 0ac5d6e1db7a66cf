package persist

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	aws "github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	state "github.com/goliatone/go-state"
)

var _ state.Adapter = (*S3)(nil)

// S3 stores the snapshot as a single JSON object in an S3-compatible
// bucket (AWS S3 or MinIO). Minimal surface area: one bucket, one key.
type S3 struct {
	client *s3.Client
	bucket string
	key    string
}

// S3Config holds explicit construction parameters (mostly for tests and
// MinIO). For production we rely primarily on the default credentials
// chain plus environment variables.
type S3Config struct {
	Region    string
	Bucket    string
	Key       string // object key, defaults to "state/snapshot.json"
	Endpoint  string // optional; if set enables a custom endpoint (e.g. MinIO)
	PathStyle bool
}

// Environment variables:
//   GOSTATE_S3_BUCKET=<bucket> (required)
//   GOSTATE_S3_KEY=<object key> (default state/snapshot.json)
//   GOSTATE_S3_REGION=<region> (default us-east-1)
//   GOSTATE_S3_ENDPOINT=<url> (optional, for MinIO)
//   GOSTATE_S3_PATH_STYLE=true|false (default false)
//   AWS_ACCESS_KEY_ID / AWS_SECRET_ACCESS_KEY / AWS_SESSION_TOKEN (optional)

// NewS3 creates an S3 snapshot adapter from S3Config.
func NewS3(ctx context.Context, cfg S3Config) (*S3, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("persist: s3 bucket required")
	}
	key := cfg.Key
	if key == "" {
		key = "state/snapshot.json"
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, err
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.PathStyle {
			o.UsePathStyle = true
		}
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return &S3{client: client, bucket: cfg.Bucket, key: key}, nil
}

// OpenS3FromEnv constructs an S3 adapter from process environment.
func OpenS3FromEnv(ctx context.Context) (*S3, error) {
	bucket := os.Getenv("GOSTATE_S3_BUCKET")
	if bucket == "" {
		return nil, fmt.Errorf("persist: GOSTATE_S3_BUCKET required for s3 adapter")
	}
	cfg := S3Config{
		Bucket:    bucket,
		Key:       os.Getenv("GOSTATE_S3_KEY"),
		Region:    os.Getenv("GOSTATE_S3_REGION"),
		Endpoint:  os.Getenv("GOSTATE_S3_ENDPOINT"),
		PathStyle: strings.EqualFold(os.Getenv("GOSTATE_S3_PATH_STYLE"), "true"),
	}
	return NewS3(ctx, cfg)
}

// Load fetches the snapshot object, returning (nil, nil) when the key
// does not exist yet.
func (s *S3) Load(ctx context.Context) (map[string]any, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{Bucket: &s.bucket, Key: &s.key})
	if err != nil {
		if isS3NotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("persist: get s3 object: %w", err)
	}
	defer func() { _ = out.Body.Close() }()

	raw, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("persist: read s3 object: %w", err)
	}
	var snapshot map[string]any
	if err := json.Unmarshal(raw, &snapshot); err != nil {
		return nil, fmt.Errorf("persist: decode s3 object: %w", err)
	}
	return snapshot, nil
}

// Save overwrites the snapshot object, tagging it with fresh metadata.
func (s *S3) Save(ctx context.Context, snapshot map[string]any) error {
	raw, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("persist: encode snapshot: %w", err)
	}
	meta := newMeta()
	contentType := "application/json"
	if _, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      &s.bucket,
		Key:         &s.key,
		Body:        bytes.NewReader(raw),
		ContentType: &contentType,
		Metadata: map[string]string{
			"snapshot-id": meta.SnapshotID,
			"updated-at":  meta.UpdatedAt.Format("2006-01-02T15:04:05Z07:00"),
		},
	}); err != nil {
		return fmt.Errorf("persist: put s3 object: %w", err)
	}
	return nil
}

func isS3NotFound(err error) bool {
	var noSuchKey *s3types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return true
	}
	var respErr *awshttp.ResponseError
	return errors.As(err, &respErr) && respErr.HTTPStatusCode() == 404
}
