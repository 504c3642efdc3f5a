package download

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"zortoshub/internal/logger"
)

// Presigner turns a non-HTTP source URL into a fetchable HTTPS URL.
type Presigner interface {
	Presign(ctx context.Context, rawURL string) (string, error)
}

// S3Presigner signs s3://bucket/key URLs with the default AWS credential chain.
type S3Presigner struct {
	client  *s3.PresignClient
	expires time.Duration
}

// NewS3Presigner loads the AWS configuration for region.
func NewS3Presigner(ctx context.Context, region string) (*S3Presigner, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return &S3Presigner{
		client:  s3.NewPresignClient(s3.NewFromConfig(cfg)),
		expires: 15 * time.Minute,
	}, nil
}

// Presign implements Presigner.
func (p *S3Presigner) Presign(ctx context.Context, rawURL string) (string, error) {
	bucket, key, err := ParseS3URL(rawURL)
	if err != nil {
		return "", err
	}
	req, err := p.client.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(p.expires))
	if err != nil {
		return "", fmt.Errorf("failed to presign %s: %w", rawURL, err)
	}
	logger.Debug("[DEBUG] Presigned %s (valid %s)\n", rawURL, p.expires)
	return req.URL, nil
}

// ParseS3URL splits s3://bucket/some/key into its bucket and key.
func ParseS3URL(rawURL string) (bucket, key string, err error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", "", fmt.Errorf("invalid S3 URL %q: %w", rawURL, err)
	}
	if u.Scheme != "s3" {
		return "", "", fmt.Errorf("invalid S3 URL %q: scheme must be s3", rawURL)
	}
	key = strings.TrimPrefix(u.Path, "/")
	if u.Host == "" || key == "" {
		return "", "", fmt.Errorf("invalid S3 URL %q: want s3://bucket/key", rawURL)
	}
	return u.Host, key, nil
}
