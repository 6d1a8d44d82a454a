// Package miniotest starts a throwaway MinIO server for tests that exercise
// the S3 provider.
package miniotest

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/minio"

	"garment-classifier/internal/storage"
)

const (
	Username = "admin"
	Password = "password"
	Region   = "us-east-1"

	image = "minio/minio:RELEASE.2024-01-16T16-07-38Z"
)

// Start runs MinIO, creates the given buckets and returns a config pointing at
// it. The test is skipped when no container runtime is available.
func Start(t *testing.T, ctx context.Context, buckets ...string) storage.S3ClientConfig {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping MinIO test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	container, err := minio.Run(ctx, image,
		minio.WithUsername(Username),
		minio.WithPassword(Password),
	)
	require.NoError(t, err, "Failed to start MinIO container")

	t.Cleanup(func() {
		err := container.Terminate(context.Background())
		require.NoError(t, err, "Failed to terminate MinIO container")
	})

	connStr, err := container.ConnectionString(ctx)
	require.NoError(t, err, "Failed to get MinIO connection string")

	cfg := storage.S3ClientConfig{
		Endpoint:        "http://" + connStr,
		Region:          Region,
		AccessKeyID:     Username,
		SecretAccessKey: Password,
	}

	client := s3.New(s3.Options{
		Region:       Region,
		BaseEndpoint: aws.String(cfg.Endpoint),
		Credentials:  credentials.NewStaticCredentialsProvider(Username, Password, ""),
		UsePathStyle: true,
	})
	for _, bucket := range buckets {
		_, err := client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(bucket)})
		require.NoError(t, err, "Failed to create bucket %s", bucket)
	}

	return cfg
}
