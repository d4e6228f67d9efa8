package export

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/leapstack-labs/sqlgraph/pkg/adapter"
)

// Uploader is the part of the S3 client used for exports.
type Uploader interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// NewS3Client creates an S3 client. If endpoint is non-empty, path-style
// addressing is enabled (for MinIO and similar).
func NewS3Client(ctx context.Context, region, endpoint string) (*s3.Client, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	var s3opts []func(*s3.Options)
	if endpoint != "" {
		s3opts = append(s3opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		})
	}
	return s3.NewFromConfig(cfg, s3opts...), nil
}

// S3Options configure an object upload.
type S3Options struct {
	Bucket string
	Key    string
	// TempDir holds the intermediate CSV; os.TempDir when empty.
	TempDir string
}

// ToS3 streams table to a temporary CSV and uploads it as Bucket/Key.
// The temporary file is always removed.
func ToS3(ctx context.Context, gw adapter.Gateway, table, database string, up Uploader, opts S3Options) (int64, error) {
	if opts.Bucket == "" {
		return 0, errors.New("s3 bucket is required")
	}
	key := opts.Key
	if key == "" {
		key = DefaultName
	}

	csvPath, n, err := toTemp(ctx, gw, table, database, opts.TempDir, "export_s3_*.csv")
	if err != nil {
		return n, err
	}
	defer func() { _ = os.Remove(csvPath) }()

	f, err := os.Open(csvPath)
	if err != nil {
		return n, fmt.Errorf("failed to reopen export: %w", err)
	}
	defer func() { _ = f.Close() }()

	_, err = up.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(opts.Bucket),
		Key:         aws.String(key),
		Body:        f,
		ContentType: aws.String("text/csv"),
	})
	if err != nil {
		return n, fmt.Errorf("s3 put object: %w", err)
	}
	return n, nil
}
