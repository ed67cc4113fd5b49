package feed

import (
	"html"
	"net/url"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var stripPolicy = bluemonday.StrictPolicy()

// CleanText strips markup, drops newlines and collapses runs of whitespace.
func CleanText(s string) string {
	if s == "" {
		return ""
	}
	s = html.UnescapeString(stripPolicy.Sanitize(s))
	return strings.Join(strings.Fields(s), " ")
}

// SourceName returns the configured label or, failing that, the feed host without "www.".
func SourceName(feedURL, label string) string {
	if label != "" {
		return label
	}
	u, err := url.Parse(feedURL)
	if err != nil || u.Host == "" {
		return "Unknown Source"
	}
	return strings.Replace(u.Host, "www.", "", 1)
}
