package blob

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// FSBucket stores objects as files under {dir}/{bucket}. The HTTP control surface serves
// that tree at the public base URL.
type FSBucket struct {
	root       string
	bucket     string
	publicBase string
}

// NewFSBucket creates the bucket directory if needed.
func NewFSBucket(dir, bucket, publicBase string) (*FSBucket, error) {
	root := filepath.Join(dir, bucket)
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("creating bucket dir %s: %w", root, err)
	}
	return &FSBucket{root: root, bucket: bucket, publicBase: publicBase}, nil
}

func (b *FSBucket) Name() string { return b.bucket }

func (b *FSBucket) path(key string) (string, error) {
	clean := filepath.Clean(filepath.Join(b.root, filepath.FromSlash(key)))
	if !strings.HasPrefix(clean, b.root+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid object key %q", key)
	}
	return clean, nil
}

// Upload writes the object. An existing object is never replaced.
func (b *FSBucket) Upload(ctx context.Context, key string, data []byte, contentType string) error {
	p, err := b.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("creating object dir: %w", err)
	}
	f, err := os.OpenFile(p, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if errors.Is(err, fs.ErrExist) {
		return fmt.Errorf("%s/%s: %w", b.bucket, key, ErrAlreadyExists)
	}
	if err != nil {
		return fmt.Errorf("creating object %s: %w", key, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		_ = os.Remove(p)
		return fmt.Errorf("writing object %s: %w", key, err)
	}
	return f.Close()
}

func (b *FSBucket) PublicURL(key string) (string, error) {
	return JoinPublicURL(b.publicBase, b.bucket, key)
}
