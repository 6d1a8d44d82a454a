package storage

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"
)

const s3Scheme = "s3://"

// Location addresses an artifact either on local disk or in an S3 bucket
// (s3://bucket/key).
type Location struct {
	Remote bool
	Bucket string
	Key    string
}

func ParseLocation(raw string) (Location, error) {
	if raw == "" {
		return Location{}, fmt.Errorf("empty location")
	}

	if strings.HasPrefix(raw, s3Scheme) {
		bucket, key, _ := strings.Cut(strings.TrimPrefix(raw, s3Scheme), "/")
		if bucket == "" || key == "" || strings.HasSuffix(key, "/") {
			return Location{}, fmt.Errorf("invalid s3 location %q: expected s3://bucket/key", raw)
		}
		return Location{Remote: true, Bucket: bucket, Key: key}, nil
	}

	abs, err := filepath.Abs(raw)
	if err != nil {
		return Location{}, fmt.Errorf("failed to get absolute path for %s: %w", raw, err)
	}
	return Location{Bucket: filepath.Dir(abs), Key: filepath.Base(abs)}, nil
}

// Sibling returns a location next to l with the given file name.
func (l Location) Sibling(name string) Location {
	if l.Remote {
		dir := path.Dir(l.Key)
		if dir == "." {
			return Location{Remote: true, Bucket: l.Bucket, Key: name}
		}
		return Location{Remote: true, Bucket: l.Bucket, Key: path.Join(dir, name)}
	}
	return Location{Bucket: l.Bucket, Key: name}
}

func (l Location) Ext() string {
	return strings.ToLower(path.Ext(l.Key))
}

func (l Location) String() string {
	if l.Remote {
		return s3Scheme + l.Bucket + "/" + l.Key
	}
	return filepath.Join(l.Bucket, l.Key)
}

// ForLocation returns the provider able to serve loc.
func ForLocation(loc Location, s3cfg S3ClientConfig) (Provider, error) {
	if loc.Remote {
		return NewS3Provider(s3cfg)
	}
	return NewLocalProvider(string(filepath.Separator))
}
