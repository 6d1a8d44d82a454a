package storage

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestProvider(t *testing.T) (*LocalProvider, string) {
	t.Helper()
	dir := t.TempDir()
	provider, err := NewLocalProvider(dir)
	require.NoError(t, err)
	return provider, dir
}

func TestLocalProvider_PutObject(t *testing.T) {
	provider, baseDir := setupTestProvider(t)

	bucket := "test-bucket"
	key := "nested/results.csv"
	content := []byte("image_path,color\n")

	err := provider.PutObject(context.Background(), bucket, key, bytes.NewReader(content))
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(baseDir, bucket, key))
	require.NoError(t, err)
	assert.Equal(t, content, data)

	// overwrite replaces the whole object and leaves no temp files behind
	err = provider.PutObject(context.Background(), bucket, key, bytes.NewReader([]byte("x")))
	require.NoError(t, err)

	entries, err := os.ReadDir(filepath.Join(baseDir, bucket, "nested"))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestLocalProvider_GetObject(t *testing.T) {
	provider, baseDir := setupTestProvider(t)

	path := filepath.Join(baseDir, "test-bucket", "manifest.jsonl")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), os.ModePerm))
	require.NoError(t, os.WriteFile(path, []byte("{}\n"), 0644))

	data, err := provider.GetObject(context.Background(), "test-bucket", "manifest.jsonl")
	require.NoError(t, err)
	assert.Equal(t, []byte("{}\n"), data)

	_, err = provider.GetObject(context.Background(), "test-bucket", "missing.jsonl")
	assert.Error(t, err)
}

func TestParseLocation(t *testing.T) {
	loc, err := ParseLocation("s3://bucket/runs/out.parquet")
	require.NoError(t, err)
	assert.Equal(t, Location{Remote: true, Bucket: "bucket", Key: "runs/out.parquet"}, loc)
	assert.Equal(t, ".parquet", loc.Ext())
	assert.Equal(t, "s3://bucket/runs/out.parquet", loc.String())
	assert.Equal(t, "s3://bucket/runs/manifest.jsonl", loc.Sibling("manifest.jsonl").String())

	top, err := ParseLocation("s3://bucket/out.csv")
	require.NoError(t, err)
	assert.Equal(t, "s3://bucket/errors.jsonl", top.Sibling("errors.jsonl").String())

	for _, bad := range []string{"", "s3://", "s3://bucket", "s3://bucket/", "s3:///key"} {
		_, err := ParseLocation(bad)
		assert.Error(t, err, bad)
	}

	dir := t.TempDir()
	local, err := ParseLocation(filepath.Join(dir, "results.CSV"))
	require.NoError(t, err)
	assert.False(t, local.Remote)
	assert.Equal(t, dir, local.Bucket)
	assert.Equal(t, ".csv", local.Ext())
	assert.Equal(t, filepath.Join(dir, "raw.jsonl"), local.Sibling("raw.jsonl").String())
}

func TestLocalLocationRoundTrip(t *testing.T) {
	loc, err := ParseLocation(filepath.Join(t.TempDir(), "out", "results.csv"))
	require.NoError(t, err)

	provider, err := ForLocation(loc, S3ClientConfig{})
	require.NoError(t, err)

	require.NoError(t, provider.PutObject(context.Background(), loc.Bucket, loc.Key, bytes.NewReader([]byte("hello"))))
	data, err := provider.GetObject(context.Background(), loc.Bucket, loc.Key)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}
