package resource

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3API is the subset of *s3.Client used here.
type S3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// NewS3Client loads the default AWS config. AWS_ENDPOINT_URL selects an
// S3-compatible endpoint (R2, MinIO) with path-style addressing.
func NewS3Client(ctx context.Context) (*s3.Client, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws sdk config: %w", err)
	}
	endpoint := os.Getenv("AWS_ENDPOINT_URL")
	return s3.NewFromConfig(awsCfg, func(options *s3.Options) {
		if endpoint != "" {
			options.BaseEndpoint = aws.String(endpoint)
			options.UsePathStyle = true
		}
	}), nil
}

// S3Fetcher reads resource archives from Bucket at Prefix + <path>.zip.
type S3Fetcher struct {
	Client S3API
	Bucket string
	Prefix string
}

func (f *S3Fetcher) Fetch(ctx context.Context, res Resource) (io.ReadCloser, error) {
	key := path.Join(f.Prefix, res.archive())
	out, err := f.Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(f.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get s3 object %q: %w", key, err)
	}
	return out.Body, nil
}

// IsS3URL reports whether s has the s3:// scheme.
func IsS3URL(s string) bool {
	return strings.HasPrefix(s, "s3://")
}

// ParseS3URL splits s3://bucket/key.
func ParseS3URL(rawURL string) (bucket, key string, err error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", "", fmt.Errorf("invalid s3 URL: %w", err)
	}
	if u.Scheme != "s3" || u.Host == "" {
		return "", "", fmt.Errorf("invalid s3 URL %q: expected s3://bucket/key", rawURL)
	}

	key = path.Clean(strings.TrimPrefix(u.Path, "/"))
	if key == "." || key == "" {
		return "", "", fmt.Errorf("s3 URL %q has empty key", rawURL)
	}
	return u.Host, key, nil
}

// ReadS3Object downloads the object named by an s3:// URL.
func ReadS3Object(ctx context.Context, client S3API, rawURL string) ([]byte, error) {
	bucket, key, err := ParseS3URL(rawURL)
	if err != nil {
		return nil, err
	}
	out, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get s3 object %q: %w", rawURL, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read s3 object %q: %w", rawURL, err)
	}
	return data, nil
}
