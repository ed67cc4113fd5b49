package ioc

import (
	"regexp"
	"strings"
	"time"

	"ctifeed/internal/domain"
)

var (
	ipv4Pattern   = regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`)
	domainPattern = regexp.MustCompile(`\b(?:[a-zA-Z0-9-]+\.)+[a-zA-Z]{2,}\b`)
	cvePattern    = regexp.MustCompile(`(?i)CVE-\d{4}-\d{4,7}`)
)

// Extract scans text for IPv4 addresses, domains and CVE identifiers. Each distinct value
// yields one indicator per type, in order of first appearance. CVEs are uppercased.
func Extract(text, batchID string, now time.Time) []domain.Indicator {
	var out []domain.Indicator
	add := func(t domain.IndicatorType, values []string) {
		seen := make(map[string]struct{}, len(values))
		for _, v := range values {
			if _, ok := seen[v]; ok {
				continue
			}
			seen[v] = struct{}{}
			out = append(out, domain.Indicator{Type: t, Value: v, File: batchID, CreatedAt: now})
		}
	}

	add(domain.IndicatorIP, ipv4Pattern.FindAllString(text, -1))
	add(domain.IndicatorDomain, domainPattern.FindAllString(text, -1))

	cves := cvePattern.FindAllString(text, -1)
	for i, c := range cves {
		cves[i] = strings.ToUpper(c)
	}
	add(domain.IndicatorCVE, cves)
	return out
}

// ArticleText joins the fields an article's indicators are extracted from.
func ArticleText(a domain.Article) string {
	parts := make([]string, 0, 3)
	for _, p := range []string{a.Title, a.Description, a.Link} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " ")
}

// ExtractBatch extracts indicators article by article. Values repeated across articles are
// recorded once per article.
func ExtractBatch(articles []domain.Article, batchID string, now time.Time) []domain.Indicator {
	var out []domain.Indicator
	for _, a := range articles {
		out = append(out, Extract(ArticleText(a), batchID, now)...)
	}
	return out
}

// ContainsCVE reports whether text mentions a CVE identifier.
func ContainsCVE(text string) bool {
	return cvePattern.MatchString(text)
}
