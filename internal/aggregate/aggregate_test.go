package aggregate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ctifeed/internal/domain"
	"ctifeed/internal/risk"
	"ctifeed/internal/snapshot"
	"ctifeed/internal/storage"
)

type fixture struct {
	repo        storage.Repository
	snapshots   *snapshot.Reader
	articlesDir string
	resultsDir  string
	logger      logrus.FieldLogger
}

func setup(t *testing.T) *fixture {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	repo, err := storage.NewBadgerRepository(t.TempDir(), logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	f := &fixture{repo: repo, articlesDir: t.TempDir(), resultsDir: t.TempDir(), logger: logger}
	f.snapshots = snapshot.NewReader(f.articlesDir, f.resultsDir, logger)
	return f
}

func (f *fixture) aggregator(store storage.Capability, excluded ...string) *Aggregator {
	return New(store, f.snapshots, excluded, f.logger)
}

func (f *fixture) enabled() storage.Capability {
	return storage.Capability{Enabled: true, Repo: f.repo}
}

func (f *fixture) writeSnapshot(t *testing.T, name, link, title string) {
	t.Helper()
	body := fmt.Sprintf(`{"title":%q,"link":%q,"source":"Snapshot Feed","text":"ransomware exploit write-up"}`, title, link)
	require.NoError(t, os.WriteFile(filepath.Join(f.articlesDir, name), []byte(body), 0o644))
}

func (f *fixture) writeResult(t *testing.T, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(f.resultsDir, name), []byte(body), 0o644))
}

// brokenRepo fails every read.
type brokenRepo struct {
	storage.Repository
}

func (brokenRepo) GetArticle(context.Context, string) (domain.Article, error) {
	return domain.Article{}, errors.New("connection refused")
}

func (brokenRepo) ListArticles(context.Context, int) ([]domain.Article, error) {
	return nil, errors.New("connection refused")
}

func (brokenRepo) ListIndicators(context.Context, int) ([]domain.Indicator, error) {
	return nil, errors.New("connection refused")
}

func TestListResults_StorePath(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	base := time.Date(2024, 5, 20, 0, 0, 0, 0, time.UTC)

	var articles []domain.Article
	for i := 0; i < 45; i++ {
		articles = append(articles, domain.Article{
			Link:        fmt.Sprintf("https://example.com/%02d", i),
			Title:       fmt.Sprintf("Article %d", i),
			SourceName:  "Feed",
			PublishedAt: base.Add(time.Duration(i) * time.Hour),
			FetchedAt:   base,
		})
	}
	// No published_at: sorts by fetched_at, newest of all.
	articles = append(articles, domain.Article{
		Link: "https://example.com/undated", SourceName: "Feed", FetchedAt: base.Add(100 * time.Hour),
	})
	// Dropped by the exclusion set.
	articles = append(articles, domain.Article{
		Link: "https://example.com/spam", SourceName: "Spam Weekly", PublishedAt: base.Add(200 * time.Hour),
	})
	_, err := f.repo.UpsertArticles(ctx, articles)
	require.NoError(t, err)
	require.NoError(t, f.repo.InsertIndicators(ctx, []domain.Indicator{
		{Type: domain.IndicatorCVE, Value: "CVE-2024-0001", File: "live_feed_20240520_000000.json"},
	}))
	f.writeResult(t, "clusters.json", `{"0":["x"]}`)

	res := f.aggregator(f.enabled(), "spam weekly").ListResults(ctx)

	assert.Empty(t, res.Error)
	require.Len(t, res.Feeds, 40)
	assert.Equal(t, "https://example.com/undated", res.Feeds[0].Link)
	assert.Equal(t, "https://example.com/44", res.Feeds[1].Link)
	for _, item := range res.Feeds {
		assert.NotEqual(t, "https://example.com/spam", item.Link)
	}
	require.Len(t, res.IOCs, 1)
	assert.Equal(t, "CVE-2024-0001", res.IOCs[0].(domain.Indicator).Value)
	assert.Empty(t, res.Clusters, "clusters are never read from snapshots while the store is enabled")
}

func TestListResults_FallbackWhenStoreDisabled(t *testing.T) {
	f := setup(t)
	for i := 0; i < 25; i++ {
		f.writeSnapshot(t, fmt.Sprintf("doc_%02d.json", i), fmt.Sprintf("https://example.com/%d", i), fmt.Sprintf("Doc %d", i))
	}
	f.writeSnapshot(t, "doc_00_dup.json", "https://example.com/0", "Duplicate")
	f.writeResult(t, "iocs_results.json", `[{"type":"ip","value":"203.0.113.1"}]`)
	f.writeResult(t, "clusters.json", `{"1":["https://example.com/1"]}`)

	res := f.aggregator(storage.Disabled()).ListResults(context.Background())

	require.Len(t, res.Feeds, 20)
	links := map[string]bool{}
	for _, item := range res.Feeds {
		assert.False(t, links[item.Link], "duplicate link %s", item.Link)
		links[item.Link] = true
	}
	assert.Equal(t, "Doc 0", res.Feeds[0].Title, "first occurrence wins")
	assert.Len(t, res.IOCs, 1)
	assert.Contains(t, res.Clusters, "1")
}

func TestListResults_FallbackWithMissingSnapshots(t *testing.T) {
	f := setup(t)

	res := f.aggregator(storage.Disabled()).ListResults(context.Background())

	assert.NotNil(t, res.Feeds)
	assert.Empty(t, res.Feeds)
	assert.NotNil(t, res.IOCs)
	assert.Empty(t, res.IOCs)
	assert.NotNil(t, res.Clusters)
	assert.Empty(t, res.Error)
}

func TestListResults_StoreErrorDegradesToSnapshots(t *testing.T) {
	f := setup(t)
	f.writeSnapshot(t, "a.json", "https://example.com/a", "A")
	f.writeResult(t, "iocs_results.json", `[{"type":"domain","value":"evil.example"}]`)

	agg := f.aggregator(storage.Capability{Enabled: true, Repo: brokenRepo{}})
	res := agg.ListResults(context.Background())

	require.Len(t, res.Feeds, 1)
	assert.Equal(t, "https://example.com/a", res.Feeds[0].Link)
	assert.Len(t, res.IOCs, 1)
	assert.Empty(t, res.Clusters)
	assert.Empty(t, res.Error)
}

func TestListResults_OuterErrorField(t *testing.T) {
	f := setup(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := f.aggregator(storage.Disabled()).ListResults(ctx)

	assert.NotEmpty(t, res.Error)
	assert.Empty(t, res.Feeds)
	assert.Empty(t, res.IOCs)
	assert.Empty(t, res.Clusters)
}

func TestGetArticle_FromStore(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	_, err := f.repo.UpsertArticles(ctx, []domain.Article{{
		Link:        "https://example.com/x",
		Title:       "Zero-day in VPN appliance",
		Description: "Actively exploited, tracked as CVE-2024-21762.",
		SourceName:  "BleepingComputer",
		PublishedAt: time.Date(2024, 2, 9, 8, 0, 0, 0, time.UTC),
	}})
	require.NoError(t, err)

	view, err := f.aggregator(f.enabled()).GetArticle(ctx, "https://example.com/x")
	require.NoError(t, err)
	assert.Equal(t, risk.Critical, view.Risk.Level)
	assert.Contains(t, view.Risk.Tags, "cve")
	assert.Equal(t, "Published: Feb 9, 2024 08:00 UTC", view.Highlights[len(view.Highlights)-1])
}

func TestGetArticle_FromSnapshotOnly(t *testing.T) {
	f := setup(t)
	f.writeSnapshot(t, "x.json", "https://example.com/x", "Ransomware crew exploits old bug")

	for _, store := range []storage.Capability{storage.Disabled(), f.enabled()} {
		view, err := f.aggregator(store).GetArticle(context.Background(), "https://example.com/x")
		require.NoError(t, err)
		assert.Equal(t, "https://example.com/x", view.Link)
		assert.Equal(t, risk.High, view.Risk.Level)
		assert.NotEmpty(t, view.Highlights)
		assert.LessOrEqual(t, len(view.Highlights), 4)
	}
}

func TestGetArticle_NotFoundIsDistinctFromStoreError(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, err := f.aggregator(f.enabled()).GetArticle(ctx, "https://example.com/missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = f.aggregator(storage.Capability{Enabled: true, Repo: brokenRepo{}}).GetArticle(ctx, "https://example.com/missing")
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrNotFound)

	_, err = f.aggregator(f.enabled()).GetArticle(ctx, " ")
	assert.ErrorIs(t, err, domain.ErrValidation)
}
