package imagecache

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sirupsen/logrus"

	"ctifeed/internal/blob"
	"ctifeed/internal/metrics"
)

const (
	// DownloadTimeout bounds a single image download.
	DownloadTimeout = 12 * time.Second

	maxImageBytes = 10 << 20
	memoSize      = 1024
)

// ErrUnverified means the object could not be confirmed reachable at any public URL.
var ErrUnverified = errors.New("cached image not reachable")

// Cache is a content-addressed image cache on top of a blob bucket.
type Cache struct {
	bucket     blob.Bucket
	publicBase string
	prober     Prober
	client     *http.Client
	userAgent  string
	memo       *lru.Cache[string, string]
	log        logrus.FieldLogger
}

// Options configures a Cache.
type Options struct {
	Bucket blob.Bucket
	// PublicBase is the root used by the manual URL reconstruction.
	PublicBase string
	Prober     Prober
	Client     *http.Client
	UserAgent  string
}

// New builds a cache. Only verified public URLs are memoized.
func New(opts Options, logger logrus.FieldLogger) *Cache {
	memo, _ := lru.New[string, string](memoSize)
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: DownloadTimeout}
	}
	prober := opts.Prober
	if prober == nil {
		prober = HTTPProber{Client: client}
	}
	return &Cache{
		bucket:     opts.Bucket,
		publicBase: opts.PublicBase,
		prober:     prober,
		client:     client,
		userAgent:  opts.UserAgent,
		memo:       memo,
		log:        logger.WithField("component", "imagecache"),
	}
}

// Lookup returns the public URL of an already cached copy of sourceURL.
func (c *Cache) Lookup(ctx context.Context, sourceURL string) (string, bool) {
	if u, ok := c.memo.Get(sourceURL); ok {
		return u, true
	}
	key := Key(sourceURL)
	for _, ext := range ProbeExtensions {
		if u, ok := c.Verify(ctx, key+ext); ok {
			c.memo.Add(sourceURL, u)
			return u, true
		}
	}
	return "", false
}

// GetOrCreate returns a verified public URL for sourceURL, uploading the image first when
// no cached copy exists. hit reports whether the copy was already cached.
func (c *Cache) GetOrCreate(ctx context.Context, sourceURL string) (publicURL string, hit bool, err error) {
	log := c.log.WithField("source_url", sourceURL)

	if u, ok := c.Lookup(ctx, sourceURL); ok {
		log.WithField("public_url", u).Debug("Image cache hit")
		return u, true, nil
	}

	data, header, err := c.download(ctx, sourceURL)
	if err != nil {
		return "", false, err
	}
	contentType, ext := ContentType(header, data)
	objectKey := Key(sourceURL) + ext

	err = c.bucket.Upload(ctx, objectKey, data, contentType)
	switch {
	case err == nil:
		log.WithField("key", objectKey).Info("Uploaded new thumbnail")
	case errors.Is(err, blob.ErrAlreadyExists):
		log.WithField("key", objectKey).Info("Thumbnail already exists, using existing")
	default:
		// Verification below still decides; a concurrent writer may have stored it.
		log.WithError(err).WithField("key", objectKey).Warn("Thumbnail upload failed")
	}

	u, ok := c.Verify(ctx, objectKey)
	if !ok {
		metrics.ImageOutcomes.WithLabelValues("verify_failed").Inc()
		return "", false, fmt.Errorf("%s: %w", objectKey, ErrUnverified)
	}
	c.memo.Add(sourceURL, u)
	return u, false, nil
}

// Verify derives the public URL for objectKey and checks it. When the derived URL is not
// reachable, a URL rebuilt from the bare filename is tried once.
func (c *Cache) Verify(ctx context.Context, objectKey string) (string, bool) {
	derived, err := c.bucket.PublicURL(objectKey)
	if err == nil && c.prober.Reachable(ctx, derived) {
		return derived, true
	}

	manual, err := ManualURL(c.publicBase, c.bucket.Name(), objectKey)
	if err != nil || manual == derived {
		return "", false
	}
	if c.prober.Reachable(ctx, manual) {
		c.log.WithField("public_url", manual).Debug("Manual public URL reachable")
		return manual, true
	}
	return "", false
}

func (c *Cache) download(ctx context.Context, sourceURL string) ([]byte, string, error) {
	ctx, cancel := context.WithTimeout(ctx, DownloadTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("building image request: %w", err)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("downloading %s: %w", sourceURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, "", fmt.Errorf("downloading %s: unexpected status %d", sourceURL, resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return nil, "", fmt.Errorf("reading %s: %w", sourceURL, err)
	}
	return data, resp.Header.Get("Content-Type"), nil
}
