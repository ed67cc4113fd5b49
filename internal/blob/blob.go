package blob

import (
	"context"
	"errors"
	"net/url"
	"strings"
)

// ErrAlreadyExists is returned by Upload when the key is already taken.
// Content-addressed callers treat it as success.
var ErrAlreadyExists = errors.New("object already exists")

// Bucket is a flat object store with public read URLs.
type Bucket interface {
	// Name is the bucket name used in public URLs.
	Name() string

	// Upload stores data under key.
	Upload(ctx context.Context, key string, data []byte, contentType string) error

	// PublicURL returns the URL the object is (or would be) served from.
	PublicURL(key string) (string, error)
}

// JoinPublicURL builds {base}/{bucket}/{key} with each key segment escaped.
func JoinPublicURL(base, bucket, key string) (string, error) {
	if base == "" {
		return "", errors.New("public base url not configured")
	}
	segments := append([]string{bucket}, strings.Split(strings.TrimLeft(key, "/"), "/")...)
	return url.JoinPath(base, segments...)
}
