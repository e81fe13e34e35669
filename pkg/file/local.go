package file

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// LocalStorage implements ObjectStore on the local filesystem. Writes are
// confined to baseDir.
type LocalStorage struct {
	baseDir string
	baseURL string
}

var _ ObjectStore = (*LocalStorage)(nil)

// NewLocalStorage resolves baseDir to an absolute path and creates it.
// baseURL prefixes returned URLs, e.g. "/files/".
func NewLocalStorage(baseDir, baseURL string) (*LocalStorage, error) {
	if baseDir == "" {
		return nil, ErrInvalidConfig
	}
	abs, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFailedToCreateDirectory, err)
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	return &LocalStorage{baseDir: abs, baseURL: baseURL}, nil
}

// Put writes data atomically through a temp file and rename.
func (s *LocalStorage) Put(ctx context.Context, key, contentType string, data []byte) (string, error) {
	key, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	dst := filepath.Join(s.baseDir, filepath.FromSlash(key))
	if !strings.HasPrefix(dst, s.baseDir+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, key)
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", fmt.Errorf("%w: %w", ErrFailedToCreateDirectory, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".upload-*")
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrFailedToWriteFile, err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return "", fmt.Errorf("%w: %w", ErrFailedToWriteFile, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("%w: %w", ErrFailedToWriteFile, err)
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return "", fmt.Errorf("%w: %w", ErrFailedToWriteFile, err)
	}
	return s.baseURL + key, nil
}
