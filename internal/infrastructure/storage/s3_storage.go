// Package storage provides object storage access for order delivery files.
package storage

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"go.uber.org/zap"

	integrationapp "github.com/titledesk/backend/internal/application/integration"
	infraconfig "github.com/titledesk/backend/internal/infrastructure/config"
)

var _ integrationapp.DeliveryLinkResolver = (*S3DeliveryStore)(nil)

// defaultPresignExpiration is the SigV4 maximum. Links land in tracker task
// descriptions, so they stay valid for as long as S3 allows.
const defaultPresignExpiration = 7 * 24 * time.Hour

// S3DeliveryStore resolves order delivery object keys into presigned
// download URLs. It works against AWS S3 or any compatible backend such as
// MinIO; the bucket itself is populated by the production system upstream,
// this store only ever reads from it.
type S3DeliveryStore struct {
	client            *s3.Client
	presignClient     *s3.PresignClient
	bucket            string
	presignExpiration time.Duration
	logger            *zap.Logger
}

// S3DeliveryStoreOption is a functional option for configuring S3DeliveryStore
type S3DeliveryStoreOption func(*S3DeliveryStore)

// WithLogger sets a custom logger for S3DeliveryStore
func WithLogger(logger *zap.Logger) S3DeliveryStoreOption {
	return func(s *S3DeliveryStore) {
		s.logger = logger
	}
}

// WithPresignExpiration sets a custom presign expiration duration
func WithPresignExpiration(d time.Duration) S3DeliveryStoreOption {
	return func(s *S3DeliveryStore) {
		s.presignExpiration = d
	}
}

// NewS3DeliveryStore builds a store from configuration. Construction is
// offline; reachability is not checked until VerifyBucket or the first
// resolved link.
func NewS3DeliveryStore(cfg *infraconfig.StorageConfig, opts ...S3DeliveryStoreOption) (*S3DeliveryStore, error) {
	if cfg == nil {
		return nil, errors.New("storage configuration is required")
	}
	switch {
	case cfg.Bucket == "":
		return nil, errors.New("storage bucket is required")
	case cfg.AccessKey == "":
		return nil, errors.New("storage access key is required")
	case cfg.SecretKey == "":
		return nil, errors.New("storage secret key is required")
	}

	endpoint, err := resolveEndpoint(cfg)
	if err != nil {
		return nil, err
	}

	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	awsCfg, err := config.LoadDefaultConfig(context.Background(),
		config.WithRegion(region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKey, cfg.SecretKey, "",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
		o.BaseEndpoint = aws.String(endpoint)
	})

	store := &S3DeliveryStore{
		client:            client,
		presignClient:     s3.NewPresignClient(client),
		bucket:            cfg.Bucket,
		presignExpiration: cfg.PresignExpiration,
		logger:            zap.NewNop(),
	}
	for _, opt := range opts {
		opt(store)
	}
	if store.presignExpiration <= 0 {
		store.presignExpiration = defaultPresignExpiration
	}

	return store, nil
}

// resolveEndpoint normalizes the configured endpoint to a full URL,
// defaulting to a local MinIO and picking the scheme from UseSSL when the
// config carries a bare host.
func resolveEndpoint(cfg *infraconfig.StorageConfig) (string, error) {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = "http://localhost:9000"
	}
	if !strings.Contains(endpoint, "://") {
		scheme := "http"
		if cfg.UseSSL {
			scheme = "https"
		}
		endpoint = scheme + "://" + endpoint
	}

	u, err := url.Parse(endpoint)
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("invalid storage endpoint %q", cfg.Endpoint)
	}
	return endpoint, nil
}

// VerifyBucket confirms the delivery bucket exists and the credentials can
// reach it. The bucket is provisioned and filled upstream, so a missing one
// is a configuration problem to report, not something to create here.
func (s *S3DeliveryStore) VerifyBucket(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(s.bucket),
	})
	if err == nil {
		return nil
	}

	var notFound *types.NotFound
	var noSuchBucket *types.NoSuchBucket
	if errors.As(err, &notFound) || errors.As(err, &noSuchBucket) {
		return fmt.Errorf("delivery bucket %q does not exist: %w", s.bucket, err)
	}
	return fmt.Errorf("delivery bucket %q is not reachable: %w", s.bucket, err)
}

// ResolveDeliveryLink presigns a GET for the delivery object.
func (s *S3DeliveryStore) ResolveDeliveryLink(ctx context.Context, objectKey string) (string, error) {
	if objectKey == "" {
		return "", errors.New("object key is required")
	}

	req, err := s.presignClient.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectKey),
	}, s3.WithPresignExpires(s.presignExpiration))
	if err != nil {
		return "", fmt.Errorf("failed to generate download URL: %w", err)
	}

	s.logger.Debug("Resolved delivery link",
		zap.String("object_key", objectKey),
		zap.Duration("valid_for", s.presignExpiration))

	return req.URL, nil
}
