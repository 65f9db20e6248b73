package s3

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"dealscope/internal/config"
	"dealscope/internal/port"
)

const defaultLinkExpiry = time.Hour

// Archive stores report snapshots in one S3 bucket, or a bucket on any S3-compatible endpoint.
type Archive struct {
	bucket     string
	linkExpiry time.Duration
	presigner  *s3.PresignClient
	uploader   *manager.Uploader
}

var _ port.ReportArchive = (*Archive)(nil)

// NewArchive creates an S3-backed report archive. A custom endpoint switches to path-style addressing.
func NewArchive(ctx context.Context, cfg *config.S3Config) (*Archive, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 archive: bucket is required")
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	expiry := time.Duration(cfg.PresignExpiry) * time.Second
	if expiry <= 0 {
		expiry = defaultLinkExpiry
	}
	return &Archive{
		bucket:     cfg.Bucket,
		linkExpiry: expiry,
		presigner:  s3.NewPresignClient(client),
		uploader: manager.NewUploader(client, func(u *manager.Uploader) {
			u.Concurrency = 1
		}),
	}, nil
}

// Put writes one JSON report snapshot under key.
func (a *Archive) Put(ctx context.Context, key string, body []byte) (*port.ArchivedReport, error) {
	result, err := a.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(a.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(body),
		ContentType:   aws.String("application/json"),
		ContentLength: aws.Int64(int64(len(body))),
	})
	if err != nil {
		return nil, fmt.Errorf("s3 upload %s/%s: %w", a.bucket, key, err)
	}
	return &port.ArchivedReport{
		Key:      key,
		Location: result.Location,
		ETag:     aws.ToString(result.ETag),
	}, nil
}

// SignedURL returns a time-limited GET link to an archived snapshot.
func (a *Archive) SignedURL(ctx context.Context, key string) (string, error) {
	result, err := a.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(a.linkExpiry))
	if err != nil {
		return "", fmt.Errorf("s3 presign %s/%s: %w", a.bucket, key, err)
	}
	return result.URL, nil
}
