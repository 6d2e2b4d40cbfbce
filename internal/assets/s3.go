package assets

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
)

// S3Config locates a bucket of layer images.
type S3Config struct {
	Bucket   string
	Prefix   string
	Region   string
	Endpoint string
}

// S3Source reads images from an S3 bucket.
type S3Source struct {
	bucket string
	prefix string
	client s3iface.S3API
}

// NewS3Source creates a source using the default AWS credential chain.
func NewS3Source(cfg S3Config) (*S3Source, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 source: bucket is required")
	}
	awsCfg := &aws.Config{Region: aws.String(cfg.Region)}
	if cfg.Endpoint != "" {
		awsCfg.Endpoint = aws.String(cfg.Endpoint)
		awsCfg.S3ForcePathStyle = aws.Bool(true)
	}
	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}
	return NewS3SourceWithClient(s3.New(sess), cfg.Bucket, cfg.Prefix), nil
}

// NewS3SourceWithClient wraps an existing client.
func NewS3SourceWithClient(client s3iface.S3API, bucket, prefix string) *S3Source {
	return &S3Source{bucket: bucket, prefix: strings.Trim(prefix, "/"), client: client}
}

// Key returns the object key for a name.
func (s *S3Source) Key(name string) string {
	name = strings.TrimPrefix(name, "/")
	if s.prefix == "" {
		return name
	}
	return path.Join(s.prefix, name)
}

// Open implements Source.
func (s *S3Source) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	out, err := s.client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.Key(name)),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get s3://%s/%s: %w", s.bucket, s.Key(name), err)
	}
	return out.Body, nil
}

func (s *S3Source) String() string { return "s3://" + s.bucket + "/" + s.prefix }
