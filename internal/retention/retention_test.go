package retention

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ctifeed/internal/domain"
	"ctifeed/internal/storage"
)

var now = time.Date(2024, 5, 20, 12, 0, 0, 0, time.UTC)

func TestOldAndExcess_AgeThenCap(t *testing.T) {
	var articles []domain.Article
	// 3 expired, 5 fresh.
	for i := 0; i < 3; i++ {
		articles = append(articles, domain.Article{
			Link:      fmt.Sprintf("old-%d", i),
			FetchedAt: now.Add(-8*24*time.Hour - time.Duration(i)*time.Hour),
		})
	}
	for i := 0; i < 5; i++ {
		articles = append(articles, domain.Article{
			Link:      fmt.Sprintf("new-%d", i),
			FetchedAt: now.Add(-time.Duration(i) * time.Hour),
		})
	}

	p := Policy{ArticleMaxAge: 7 * 24 * time.Hour, MaxArticles: 3, IndicatorMaxAge: time.Hour}
	got := OldAndExcess(articles, now, p)

	assert.Equal(t, []string{"old-0", "old-1", "old-2", "new-4", "new-3"}, got,
		"expired first, then the oldest survivors beyond the cap")
}

func TestExcessArticles_UnderCap(t *testing.T) {
	articles := []domain.Article{{Link: "a", FetchedAt: now}}
	assert.Empty(t, ExcessArticles(articles, 200))
	assert.Empty(t, ExcessArticles(nil, 0))
}

func TestExpiredIndicators(t *testing.T) {
	inds := []domain.Indicator{
		{ID: "fresh", CreatedAt: now.Add(-29 * 24 * time.Hour)},
		{ID: "stale", CreatedAt: now.Add(-31 * 24 * time.Hour)},
	}
	assert.Equal(t, []string{"stale"}, ExpiredIndicators(inds, now, 30*24*time.Hour))
}

// flakyRepo fails deletes for selected links.
type flakyRepo struct {
	storage.Repository
	failLinks map[string]bool
}

func (f *flakyRepo) DeleteArticle(ctx context.Context, link string) error {
	if f.failLinks[link] {
		return errors.New("simulated delete failure")
	}
	return f.Repository.DeleteArticle(ctx, link)
}

func setupStore(t *testing.T) (storage.Repository, logrus.FieldLogger) {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	repo, err := storage.NewBadgerRepository(t.TempDir(), logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo, logger
}

func TestManager_Run(t *testing.T) {
	repo, logger := setupStore(t)
	ctx := context.Background()

	_, err := repo.UpsertArticles(ctx, []domain.Article{
		{Link: "old", FetchedAt: now.Add(-10 * 24 * time.Hour)},
		{Link: "a", FetchedAt: now.Add(-1 * time.Hour)},
		{Link: "b", FetchedAt: now.Add(-2 * time.Hour)},
		{Link: "c", FetchedAt: now.Add(-3 * time.Hour)},
	})
	require.NoError(t, err)
	require.NoError(t, repo.InsertIndicators(ctx, []domain.Indicator{
		{Type: domain.IndicatorIP, Value: "203.0.113.1", CreatedAt: now.Add(-40 * 24 * time.Hour)},
		{Type: domain.IndicatorIP, Value: "203.0.113.2", CreatedAt: now.Add(-time.Hour)},
	}))

	m := NewManager(storage.Capability{Enabled: true, Repo: repo},
		Policy{ArticleMaxAge: 7 * 24 * time.Hour, MaxArticles: 2, IndicatorMaxAge: 30 * 24 * time.Hour}, logger)
	m.now = func() time.Time { return now }

	report, err := m.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, Report{ExpiredArticles: 1, ExcessArticles: 1, ExpiredIndicators: 1}, report)

	left, err := repo.ListArticles(ctx, 0)
	require.NoError(t, err)
	require.Len(t, left, 2)
	assert.Equal(t, "a", left[0].Link)
	assert.Equal(t, "b", left[1].Link)

	inds, err := repo.ListIndicators(ctx, 0)
	require.NoError(t, err)
	require.Len(t, inds, 1)
	assert.Equal(t, "203.0.113.2", inds[0].Value)
}

func TestManager_RunSkipsFailedDeletes(t *testing.T) {
	repo, logger := setupStore(t)
	ctx := context.Background()

	_, err := repo.UpsertArticles(ctx, []domain.Article{
		{Link: "stuck", FetchedAt: now.Add(-9 * 24 * time.Hour)},
		{Link: "gone", FetchedAt: now.Add(-8 * 24 * time.Hour)},
		{Link: "keep", FetchedAt: now},
	})
	require.NoError(t, err)

	flaky := &flakyRepo{Repository: repo, failLinks: map[string]bool{"stuck": true}}
	m := NewManager(storage.Capability{Enabled: true, Repo: flaky}, DefaultPolicy(), logger)
	m.now = func() time.Time { return now }

	report, err := m.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.ExpiredArticles)
	assert.Equal(t, 1, report.Failures)

	left, err := repo.ListArticles(ctx, 0)
	require.NoError(t, err)
	links := []string{}
	for _, a := range left {
		links = append(links, a.Link)
	}
	assert.ElementsMatch(t, []string{"stuck", "keep"}, links)
}

func TestManager_RunWithoutStore(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	_, err := NewManager(storage.Disabled(), DefaultPolicy(), logger).Run(context.Background())
	assert.ErrorIs(t, err, domain.ErrStoreDisabled)
}
