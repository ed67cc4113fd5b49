package scraper

import (
	"context"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// imageSelectors are tried in order; the first usable content attribute wins.
var imageSelectors = []string{
	`meta[property="og:image"]`,
	`meta[name="og:image"]`,
	`meta[property="twitter:image"]`,
	`meta[name="twitter:image"]`,
	`meta[property="og:image:url"]`,
}

// ExtractImageURL returns the preview image declared in the page's meta tags, or "".
// Protocol-relative URLs take the scheme of pageURL. Only http(s) URLs are returned.
func ExtractImageURL(html, pageURL string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}

	for _, selector := range imageSelectors {
		content, ok := doc.Find(selector).First().Attr("content")
		if !ok {
			continue
		}
		content = strings.TrimSpace(content)
		if content == "" {
			continue
		}
		if strings.HasPrefix(content, "//") {
			scheme := "https"
			if u, err := url.Parse(pageURL); err == nil && u.Scheme != "" {
				scheme = u.Scheme
			}
			return scheme + ":" + content
		}
		if strings.HasPrefix(content, "http") {
			return content
		}
	}
	return ""
}

// FindImage fetches pageURL and extracts its preview image candidate.
func FindImage(ctx context.Context, s Scraper, pageURL string) (string, error) {
	html, err := s.FetchHTML(ctx, pageURL)
	if err != nil {
		return "", err
	}
	return ExtractImageURL(html, pageURL), nil
}
