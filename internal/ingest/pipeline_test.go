package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ctifeed/internal/blob"
	"ctifeed/internal/config"
	"ctifeed/internal/domain"
	"ctifeed/internal/imagecache"
	"ctifeed/internal/retention"
	"ctifeed/internal/runguard"
	"ctifeed/internal/storage"
)


type stubFetcher struct {
	mu       sync.Mutex
	articles map[string][]domain.Article
	errs     map[string]error
}

func (s *stubFetcher) Fetch(_ context.Context, src config.Source) ([]domain.Article, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.errs[src.URL]; err != nil {
		return nil, err
	}
	return append([]domain.Article(nil), s.articles[src.URL]...), nil
}

func (s *stubFetcher) set(url string, articles ...domain.Article) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.articles[url] = articles
}

type stubImages struct{}

func (stubImages) Resolve(_ context.Context, link string) imagecache.Result {
	return imagecache.Result{URL: link + "/thumb.jpg", Outcome: imagecache.OutcomeUploaded}
}

type memArchive struct {
	mu      sync.Mutex
	objects map[string][]byte
	err     error
}

func (m *memArchive) Name() string { return "raw-feeds" }

func (m *memArchive) Upload(_ context.Context, key string, data []byte, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if _, ok := m.objects[key]; ok {
		return blob.ErrAlreadyExists
	}
	m.objects[key] = data
	return nil
}

func (m *memArchive) PublicURL(key string) (string, error) {
	return blob.JoinPublicURL("http://blobs.test", m.Name(), key)
}

// noIndicators fails every indicator insert.
type noIndicators struct {
	storage.Repository
}

func (noIndicators) InsertIndicators(context.Context, []domain.Indicator) error {
	return errors.New("iocs table unavailable")
}

type harness struct {
	start    time.Time
	fetcher  *stubFetcher
	archive  *memArchive
	repo     storage.Repository
	pipeline *Pipeline
}

const (
	feedA = "https://feed-a.example/rss"
	feedB = "https://feed-b.example/rss"
)

func newHarness(t *testing.T, wrap func(storage.Repository) storage.Repository) *harness {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	repo, err := storage.NewBadgerRepository(t.TempDir(), logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	var store storage.Repository = repo
	if wrap != nil {
		store = wrap(repo)
	}
	capability := storage.Capability{Enabled: true, Repo: store}

	h := &harness{
		start:   time.Now().UTC().Truncate(time.Second),
		fetcher: &stubFetcher{articles: map[string][]domain.Article{}, errs: map[string]error{}},
		archive: &memArchive{objects: map[string][]byte{}},
		repo:    repo,
	}
	mgr := retention.NewManager(capability, retention.DefaultPolicy(), logger)
	h.pipeline = NewPipeline(Options{
		Fetcher:     h.fetcher,
		Sources:     []config.Source{{URL: feedA, Name: "A"}, {URL: feedB, Name: "B"}},
		Images:      stubImages{},
		Archive:     h.archive,
		Store:       capability,
		Retention:   mgr,
		Concurrency: 3,
	}, logger)
	h.pipeline.now = func() time.Time { return h.start }
	return h
}

func article(link, title string) domain.Article {
	return domain.Article{
		Link:        link,
		Title:       title,
		Description: "Attackers exploit CVE-2024-3400 from 198.51.100.4",
		Source:      feedA,
		SourceName:  "A",
		PublishedAt: time.Now().UTC().Add(-time.Hour),
		FetchedAt:   time.Now().UTC(),
	}
}

func TestBatchID(t *testing.T) {
	ts := time.Date(2024, 5, 20, 9, 30, 0, 0, time.FixedZone("CEST", 2*60*60))
	assert.Equal(t, "live_feed_20240520_073000.json", BatchID(ts))
}

func TestRunIngestionCycle_PersistsBatch(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	h.fetcher.set(feedA, article("https://a.example/1", "One"), article("https://a.example/2", "Two"))
	h.fetcher.errs[feedB] = errors.New("feed unreachable")

	report, err := h.pipeline.RunIngestionCycle(ctx)
	require.NoError(t, err)

	assert.Equal(t, BatchID(h.start), report.BatchID)
	assert.Equal(t, 2, report.Collected)
	assert.Equal(t, 1, report.SourceErrors)
	assert.True(t, report.Archived)
	assert.Equal(t, 2, report.Stored)
	require.NotNil(t, report.Retention)

	var archived []domain.Article
	require.NoError(t, json.Unmarshal(h.archive.objects[report.BatchID], &archived))
	assert.Len(t, archived, 2)

	got, err := h.repo.GetArticle(ctx, "https://a.example/1")
	require.NoError(t, err)
	assert.Equal(t, "https://a.example/1/thumb.jpg", got.ImageURL)

	inds, err := h.repo.ListIndicators(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, report.Indicators, len(inds))
	for _, ind := range inds {
		assert.Equal(t, report.BatchID, ind.File)
	}
}

func TestRunIngestionCycle_IsIdempotentOnLink(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	h.fetcher.set(feedA, article("https://a.example/1", "First title"))
	_, err := h.pipeline.RunIngestionCycle(ctx)
	require.NoError(t, err)

	h.pipeline.now = func() time.Time { return h.start.Add(30 * time.Minute) }
	h.fetcher.set(feedA, article("https://a.example/1", "Second title"))
	_, err = h.pipeline.RunIngestionCycle(ctx)
	require.NoError(t, err)

	all, err := h.repo.ListArticles(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "Second title", all[0].Title)

	// Indicators are appended per batch.
	inds, err := h.repo.ListIndicators(ctx, 0)
	require.NoError(t, err)
	files := map[string]bool{}
	for _, ind := range inds {
		files[ind.File] = true
	}
	assert.Len(t, files, 2)
}

func TestRunIngestionCycle_ArchiveFailureIsNonFatal(t *testing.T) {
	h := newHarness(t, nil)
	h.archive.err = errors.New("bucket offline")
	h.fetcher.set(feedA, article("https://a.example/1", "One"))

	report, err := h.pipeline.RunIngestionCycle(context.Background())
	require.NoError(t, err)
	assert.False(t, report.Archived)
	assert.Equal(t, 1, report.Stored)
}

func TestRunIngestionCycle_IndicatorFailureKeepsArticles(t *testing.T) {
	h := newHarness(t, func(r storage.Repository) storage.Repository { return noIndicators{r} })
	ctx := context.Background()
	h.fetcher.set(feedA, article("https://a.example/1", "One"))

	report, err := h.pipeline.RunIngestionCycle(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Stored)
	assert.Zero(t, report.Indicators)

	_, err = h.repo.GetArticle(ctx, "https://a.example/1")
	assert.NoError(t, err)
}

func TestRunIngestionCycle_EmptyBatch(t *testing.T) {
	h := newHarness(t, nil)

	report, err := h.pipeline.RunIngestionCycle(context.Background())
	require.NoError(t, err)
	assert.Empty(t, report.BatchID)
	assert.Empty(t, h.archive.objects)
	assert.NotNil(t, report.Retention, "retention still runs on an empty batch")
}

func TestRunIngestionCycle_AppliesRetention(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	stale := article("https://a.example/stale", "Stale")
	stale.FetchedAt = time.Now().Add(-10 * 24 * time.Hour)
	_, err := h.repo.UpsertArticles(ctx, []domain.Article{stale})
	require.NoError(t, err)

	h.fetcher.set(feedA, article("https://a.example/fresh", "Fresh"))

	report, err := h.pipeline.RunIngestionCycle(ctx)
	require.NoError(t, err)
	require.NotNil(t, report.Retention)
	assert.Equal(t, 1, report.Retention.ExpiredArticles)

	_, err = h.repo.GetArticle(ctx, "https://a.example/stale")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRunIngestionCycle_GuardedAgainstOverlap(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	release, err := h.pipeline.guard.Acquire(ctx)
	require.NoError(t, err)

	_, err = h.pipeline.RunIngestionCycle(ctx)
	assert.ErrorIs(t, err, runguard.ErrBusy)
	_, err = h.pipeline.RunRetention(ctx)
	assert.ErrorIs(t, err, runguard.ErrBusy)

	release()
	_, err = h.pipeline.RunRetention(ctx)
	assert.NoError(t, err)
}

func TestRunIngestionCycle_StoreDisabled(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	fetcher := &stubFetcher{articles: map[string][]domain.Article{feedA: {article("https://a.example/1", "One")}}}
	archive := &memArchive{objects: map[string][]byte{}}

	p := NewPipeline(Options{
		Fetcher: fetcher,
		Sources: []config.Source{{URL: feedA}},
		Images:  stubImages{},
		Archive: archive,
		Store:   storage.Disabled(),
	}, logger)

	report, err := p.RunIngestionCycle(context.Background())
	require.NoError(t, err)
	assert.True(t, report.Archived)
	assert.Zero(t, report.Stored)

	_, err = p.RunRetention(context.Background())
	assert.ErrorIs(t, err, domain.ErrStoreDisabled)
}
