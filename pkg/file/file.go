package file

import (
	"context"
	"fmt"
	"path"
	"strings"
)

// ObjectStore stores generated artifacts and returns their public URL.
type ObjectStore interface {
	Put(ctx context.Context, key, contentType string, data []byte) (url string, err error)
}

// Config selects and configures the object store. With an empty S3Bucket
// the local filesystem store is used.
type Config struct {
	S3Bucket         string `env:"S3_BUCKET"`
	S3Region         string `env:"S3_REGION" envDefault:"us-east-1"`
	S3AccessKeyID    string `env:"S3_ACCESS_KEY_ID"`
	S3SecretKey      string `env:"S3_SECRET_KEY"`
	S3Endpoint       string `env:"S3_ENDPOINT"`
	S3ForcePathStyle bool   `env:"S3_FORCE_PATH_STYLE" envDefault:"false"`
	PublicBaseURL    string `env:"FILES_BASE_URL"`
	LocalDir         string `env:"FILES_LOCAL_DIR" envDefault:"./tmp/files"`
}

// S3Enabled reports whether a bucket is configured.
func (c Config) S3Enabled() bool {
	return c.S3Bucket != ""
}

// cleanKey normalises key and rejects traversal.
func cleanKey(key string) (string, error) {
	key = strings.TrimPrefix(key, "/")
	if key == "" || strings.Contains(key, "..") {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, key)
	}
	return path.Clean(key), nil
}
