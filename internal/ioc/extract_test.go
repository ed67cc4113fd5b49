package ioc

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ctifeed/internal/domain"
)

func values(inds []domain.Indicator, t domain.IndicatorType) []string {
	var out []string
	for _, i := range inds {
		if i.Type == t {
			out = append(out, i.Value)
		}
	}
	return out
}

func TestExtract(t *testing.T) {
	now := time.Date(2024, 9, 1, 0, 0, 0, 0, time.UTC)
	text := "C2 at 203.0.113.7 and 203.0.113.7 again; payload from evil-cdn.example.net. " +
		"Exploits cve-2024-12345 and CVE-2024-12345 plus CVE-2023-0001."

	got := Extract(text, "live_feed_1.json", now)

	assert.Equal(t, []string{"203.0.113.7"}, values(got, domain.IndicatorIP))
	assert.Equal(t, []string{"evil-cdn.example.net"}, values(got, domain.IndicatorDomain))
	assert.Equal(t, []string{"CVE-2024-12345", "CVE-2023-0001"}, values(got, domain.IndicatorCVE))
	for _, ind := range got {
		assert.Equal(t, "live_feed_1.json", ind.File)
		assert.Equal(t, now, ind.CreatedAt)
	}
}

func TestExtract_Nothing(t *testing.T) {
	assert.Empty(t, Extract("no indicators here", "b", time.Now()))
}

func TestExtractBatch_NoCrossArticleDedup(t *testing.T) {
	articles := []domain.Article{
		{Title: "CVE-2024-1111 exploited", Link: "https://news.example.com/a"},
		{Title: "More on CVE-2024-1111", Link: "https://news.example.com/b"},
	}
	got := ExtractBatch(articles, "b1", time.Now())

	assert.Equal(t, []string{"CVE-2024-1111", "CVE-2024-1111"}, values(got, domain.IndicatorCVE))
	// The link host is picked up as a domain for each article.
	assert.Equal(t, []string{"news.example.com", "news.example.com"}, values(got, domain.IndicatorDomain))
}

func TestArticleText(t *testing.T) {
	a := domain.Article{Title: "T", Link: "https://x.example"}
	require.Equal(t, "T https://x.example", ArticleText(a))
}
