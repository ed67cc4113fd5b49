package scraper

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const (
	// PageTimeout bounds a single page fetch.
	PageTimeout = 12 * time.Second

	maxPageBytes = 4 << 20
)

// HTTPScraper fetches pages with a plain HTTP client and a browser user agent.
type HTTPScraper struct {
	client    *http.Client
	userAgent string
	limiter   *rate.Limiter
	log       logrus.FieldLogger
}

// NewHTTPScraper creates a scraper. A ratePerSecond <= 0 disables pacing.
func NewHTTPScraper(client *http.Client, userAgent string, ratePerSecond float64, logger logrus.FieldLogger) *HTTPScraper {
	if client == nil {
		client = &http.Client{Timeout: PageTimeout}
	}
	limiter := rate.NewLimiter(rate.Inf, 0)
	if ratePerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(ratePerSecond), 1)
	}
	return &HTTPScraper{
		client:    client,
		userAgent: userAgent,
		limiter:   limiter,
		log:       logger.WithField("component", "scraper"),
	}
}

// FetchHTML performs a GET following redirects and returns the body.
func (s *HTTPScraper) FetchHTML(ctx context.Context, url string) (string, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, PageTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("building request for %s: %w", url, err)
	}
	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetching %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("fetching %s: unexpected status %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", url, err)
	}
	s.log.WithFields(logrus.Fields{"url": url, "bytes": len(body)}).Debug("Page fetched")
	return string(body), nil
}

// Close is a no-op for the HTTP scraper.
func (s *HTTPScraper) Close() error {
	return nil
}
