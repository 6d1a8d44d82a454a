package storage

import (
	"context"
	"io"
)

// Provider stores run artifacts: result tables and downloaded job outputs.
type Provider interface {
	GetObject(ctx context.Context, bucket, key string) ([]byte, error)

	PutObject(ctx context.Context, bucket, key string, data io.Reader) error
}
