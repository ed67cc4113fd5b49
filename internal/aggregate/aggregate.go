package aggregate

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"ctifeed/internal/domain"
	"ctifeed/internal/metrics"
	"ctifeed/internal/snapshot"
	"ctifeed/internal/storage"
)

const (
	storeFetchLimit    = 200
	feedDisplayLimit   = 40
	snapshotFeedLimit  = 20
	indicatorReadLimit = 200
)

// Aggregator answers read queries from the record store, falling back to local snapshots.
// It takes no locks and never writes.
type Aggregator struct {
	store     storage.Capability
	snapshots *snapshot.Reader
	excluded  map[string]struct{}
	log       logrus.FieldLogger
}

// New creates an Aggregator. Rows whose source name is in excludedSources (case-insensitive)
// are dropped from the store listing.
func New(store storage.Capability, snapshots *snapshot.Reader, excludedSources []string, logger logrus.FieldLogger) *Aggregator {
	excluded := make(map[string]struct{}, len(excludedSources))
	for _, s := range excludedSources {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			excluded[s] = struct{}{}
		}
	}
	return &Aggregator{
		store:     store,
		snapshots: snapshots,
		excluded:  excluded,
		log:       logger.WithField("component", "aggregate"),
	}
}

// ListResults builds the feeds, iocs and clusters view. A failing stage yields an empty
// collection for that stage. Only a failure outside the stages is reported in Results.Error.
func (a *Aggregator) ListResults(ctx context.Context) (res Results) {
	defer func() {
		if r := recover(); r != nil {
			a.log.WithField("panic", r).Error("Results aggregation failed")
			res = emptyResults()
			res.Error = fmt.Sprint(r)
		}
	}()

	res = emptyResults()
	res.Feeds = a.Feeds(ctx)
	res.IOCs = a.indicators(ctx)
	res.Clusters = a.clusters()

	if err := ctx.Err(); err != nil {
		res = emptyResults()
		res.Error = err.Error()
	}
	return res
}

// Feeds returns the listing: store rows when available and non-empty, otherwise snapshot rows.
func (a *Aggregator) Feeds(ctx context.Context) []FeedItem {
	if items := a.storeFeeds(ctx); len(items) > 0 {
		return items
	}
	metrics.ReadFallbacks.WithLabelValues("feeds").Inc()
	return a.snapshotFeeds()
}

func (a *Aggregator) storeFeeds(ctx context.Context) []FeedItem {
	repo, err := a.store.Require()
	if err != nil {
		return nil
	}
	articles, err := repo.ListArticles(ctx, storeFetchLimit)
	if err != nil {
		a.log.WithError(err).Warn("Store listing failed, using local snapshots")
		return nil
	}

	kept := make([]domain.Article, 0, len(articles))
	for _, art := range articles {
		if a.isExcluded(art) {
			continue
		}
		kept = append(kept, art)
	}
	sortByRecency(kept)
	if len(kept) > feedDisplayLimit {
		kept = kept[:feedDisplayLimit]
	}

	items := make([]FeedItem, 0, len(kept))
	for _, art := range kept {
		items = append(items, fromArticle(art))
	}
	return items
}

func (a *Aggregator) isExcluded(art domain.Article) bool {
	_, ok := a.excluded[strings.ToLower(art.SourceName)]
	return ok
}

// sortByRecency orders newest first by PublishedAt, using FetchedAt when PublishedAt is
// missing and as the tiebreak. Articles with neither sort last.
func sortByRecency(articles []domain.Article) {
	key := func(art domain.Article) time.Time {
		if !art.PublishedAt.IsZero() {
			return art.PublishedAt
		}
		return art.FetchedAt
	}
	sort.SliceStable(articles, func(i, j int) bool {
		ki, kj := key(articles[i]), key(articles[j])
		if !ki.Equal(kj) {
			return ki.After(kj)
		}
		return articles[i].FetchedAt.After(articles[j].FetchedAt)
	})
}

func (a *Aggregator) snapshotFeeds() []FeedItem {
	entries, err := a.snapshots.Entries()
	if err != nil {
		a.log.WithError(err).Warn("Snapshot listing failed")
		return []FeedItem{}
	}

	seen := make(map[string]struct{}, len(entries))
	items := make([]FeedItem, 0, snapshotFeedLimit)
	for _, e := range entries {
		if _, dup := seen[e.Link]; dup {
			continue
		}
		seen[e.Link] = struct{}{}
		items = append(items, fromSnapshot(e))
		if len(items) == snapshotFeedLimit {
			break
		}
	}
	return items
}

func (a *Aggregator) indicators(ctx context.Context) []any {
	if repo, err := a.store.Require(); err == nil {
		inds, err := repo.ListIndicators(ctx, indicatorReadLimit)
		if err != nil {
			a.log.WithError(err).Warn("Store indicator query failed, using local snapshot")
		} else if len(inds) > 0 {
			out := make([]any, 0, len(inds))
			for _, ind := range inds {
				out = append(out, ind)
			}
			return out
		}
	}

	metrics.ReadFallbacks.WithLabelValues("iocs").Inc()
	out, err := a.snapshots.Indicators()
	if err != nil {
		a.log.WithError(err).Warn("Failed to load IOC snapshot")
		return []any{}
	}
	if out == nil {
		return []any{}
	}
	return out
}

// clusters has no store-backed source; with the store enabled the view is always empty.
func (a *Aggregator) clusters() map[string]any {
	if a.store.Available() {
		return map[string]any{}
	}
	out, err := a.snapshots.Clusters()
	if err != nil {
		a.log.WithError(err).Warn("Failed to load cluster snapshot")
		return map[string]any{}
	}
	if out == nil {
		return map[string]any{}
	}
	return out
}

// GetArticle looks a link up in the store, then in the listing. It returns domain.ErrNotFound
// when neither has it, or the store error when the store failed and the listing had no match.
func (a *Aggregator) GetArticle(ctx context.Context, link string) (ArticleView, error) {
	link = strings.TrimSpace(link)
	if link == "" {
		return ArticleView{}, fmt.Errorf("%w: link is required", domain.ErrValidation)
	}

	var storeErr error
	if repo, err := a.store.Require(); err == nil {
		art, err := repo.GetArticle(ctx, link)
		switch {
		case err == nil:
			return enrich(fromArticle(art)), nil
		case errors.Is(err, domain.ErrNotFound):
		default:
			a.log.WithError(err).WithField("link", link).Warn("Store lookup failed, scanning listing")
			storeErr = err
		}
	}

	for _, item := range a.Feeds(ctx) {
		if item.Link == link {
			return enrich(item), nil
		}
	}

	if storeErr != nil {
		return ArticleView{}, fmt.Errorf("article lookup failed: %w", storeErr)
	}
	return ArticleView{}, domain.ErrNotFound
}
