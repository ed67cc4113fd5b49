package feed

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/sirupsen/logrus"

	"ctifeed/internal/config"
	"ctifeed/internal/domain"
	"ctifeed/internal/metrics"
)

const fetchTimeout = 10 * time.Second

// Fetcher retrieves and parses one feed source.
type Fetcher interface {
	Fetch(ctx context.Context, source config.Source) ([]domain.Article, error)
}

// RSSFetcher fetches RSS/Atom feeds with gofeed and keeps only relevant entries.
type RSSFetcher struct {
	parser *gofeed.Parser
	limit  int
	now    func() time.Time
	log    logrus.FieldLogger
}

// NewRSSFetcher builds a fetcher that reads at most limit entries per source.
func NewRSSFetcher(client *http.Client, userAgent string, limit int, logger logrus.FieldLogger) *RSSFetcher {
	parser := gofeed.NewParser()
	if client != nil {
		parser.Client = client
	}
	parser.UserAgent = userAgent
	return &RSSFetcher{
		parser: parser,
		limit:  limit,
		now:    time.Now,
		log:    logger.WithField("component", "feed"),
	}
}

// Fetch parses a single source and returns its relevant entries as articles.
// ImageURL is left empty for the image resolver.
func (f *RSSFetcher) Fetch(ctx context.Context, source config.Source) ([]domain.Article, error) {
	ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	parsed, err := f.parser.ParseURLWithContext(source.URL, ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", source.URL, err)
	}

	label := SourceName(source.URL, source.Name)
	items := parsed.Items
	if f.limit > 0 && len(items) > f.limit {
		items = items[:f.limit]
	}

	now := f.now().UTC()
	articles := make([]domain.Article, 0, len(items))
	for _, item := range items {
		if item.Link == "" {
			metrics.FeedEntries.WithLabelValues("no_link").Inc()
			continue
		}

		title := CleanText(item.Title)
		summary := item.Description
		if summary == "" {
			summary = item.Content
		}
		description := CleanText(summary)

		decision := Decide(title, description)
		metrics.FeedEntries.WithLabelValues(decision.Reason).Inc()
		if !decision.Accepted {
			f.log.WithFields(logrus.Fields{
				"title":  truncate(title, 60),
				"reason": decision.Reason,
				"term":   decision.Term,
			}).Debug("Skipping non-cybersecurity article")
			continue
		}

		articles = append(articles, domain.Article{
			Title:       title,
			Description: description,
			Link:        item.Link,
			Source:      source.URL,
			SourceName:  label,
			PublishedAt: publishedAt(item, now),
			FetchedAt:   now,
		})
	}
	return articles, nil
}

func publishedAt(item *gofeed.Item, fallback time.Time) time.Time {
	switch {
	case item.PublishedParsed != nil:
		return item.PublishedParsed.UTC()
	case item.UpdatedParsed != nil:
		return item.UpdatedParsed.UTC()
	default:
		return fallback
	}
}

// FetchResult is the outcome of reading every configured source.
type FetchResult struct {
	Articles []domain.Article
	Errors   []error
}

// FetchAll reads every source in order. A failing source is logged and skipped.
func FetchAll(ctx context.Context, fetcher Fetcher, sources []config.Source, logger logrus.FieldLogger) FetchResult {
	log := logger.WithField("component", "feed")
	var result FetchResult
	for _, src := range sources {
		if ctx.Err() != nil {
			result.Errors = append(result.Errors, ctx.Err())
			break
		}
		articles, err := fetcher.Fetch(ctx, src)
		if err != nil {
			log.WithError(err).WithField("source", src.URL).Warn("Feed failed, skipping source")
			metrics.FeedFailures.WithLabelValues(SourceName(src.URL, src.Name)).Inc()
			result.Errors = append(result.Errors, err)
			continue
		}
		log.WithFields(logrus.Fields{"source": src.URL, "accepted": len(articles)}).Info("Feed fetched")
		result.Articles = append(result.Articles, articles...)
	}
	return result
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
