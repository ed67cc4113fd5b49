package retention

import (
	"sort"
	"time"

	"ctifeed/internal/domain"
)

// Policy holds the retention limits.
type Policy struct {
	ArticleMaxAge   time.Duration
	MaxArticles     int
	IndicatorMaxAge time.Duration
}

// DefaultPolicy keeps a week of articles, at most 200 of them, and a month of indicators.
func DefaultPolicy() Policy {
	return Policy{
		ArticleMaxAge:   7 * 24 * time.Hour,
		MaxArticles:     200,
		IndicatorMaxAge: 30 * 24 * time.Hour,
	}
}

// ExpiredArticles returns the links of articles fetched before now-maxAge.
func ExpiredArticles(articles []domain.Article, now time.Time, maxAge time.Duration) []string {
	cutoff := now.Add(-maxAge)
	var links []string
	for _, a := range articles {
		if a.FetchedAt.Before(cutoff) {
			links = append(links, a.Link)
		}
	}
	return links
}

// ExcessArticles returns the links of articles beyond the newest max by FetchedAt,
// oldest first.
func ExcessArticles(articles []domain.Article, max int) []string {
	if max < 0 || len(articles) <= max {
		return nil
	}
	sorted := make([]domain.Article, len(articles))
	copy(sorted, articles)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].FetchedAt.Equal(sorted[j].FetchedAt) {
			return sorted[i].Link < sorted[j].Link
		}
		return sorted[i].FetchedAt.After(sorted[j].FetchedAt)
	})

	excess := sorted[max:]
	links := make([]string, 0, len(excess))
	for i := len(excess) - 1; i >= 0; i-- {
		links = append(links, excess[i].Link)
	}
	return links
}

// OldAndExcess returns every article link the policy removes: expired ones first, then the
// oldest of the survivors beyond the cap.
func OldAndExcess(articles []domain.Article, now time.Time, p Policy) []string {
	expired := ExpiredArticles(articles, now, p.ArticleMaxAge)
	gone := make(map[string]struct{}, len(expired))
	for _, l := range expired {
		gone[l] = struct{}{}
	}
	remaining := make([]domain.Article, 0, len(articles)-len(expired))
	for _, a := range articles {
		if _, ok := gone[a.Link]; !ok {
			remaining = append(remaining, a)
		}
	}
	return append(expired, ExcessArticles(remaining, p.MaxArticles)...)
}

// ExpiredIndicators returns the IDs of indicators created before now-maxAge.
func ExpiredIndicators(indicators []domain.Indicator, now time.Time, maxAge time.Duration) []string {
	cutoff := now.Add(-maxAge)
	var ids []string
	for _, ind := range indicators {
		if ind.CreatedAt.Before(cutoff) {
			ids = append(ids, ind.ID)
		}
	}
	return ids
}
