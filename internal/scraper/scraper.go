package scraper

import "context"

// Scraper fetches the HTML of an article page.
type Scraper interface {
	// FetchHTML returns the final page HTML after redirects.
	FetchHTML(ctx context.Context, url string) (string, error)

	// Close releases any resources held by the scraper.
	Close() error
}
