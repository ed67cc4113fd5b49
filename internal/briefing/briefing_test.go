package briefing

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ctifeed/internal/domain"
	"ctifeed/internal/storage"
)

func newService(t *testing.T) *Service {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	repo, err := storage.NewBadgerRepository(t.TempDir(), logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return NewService(storage.Capability{Enabled: true, Repo: repo}, logger)
}

func TestService_SaveListDelete(t *testing.T) {
	s := newService(t)
	ctx := context.Background()
	stamp := time.Date(2024, 5, 20, 10, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return stamp }

	saved, err := s.Save(ctx, domain.SavedBriefing{ClientID: "c1", Link: "https://example.com/a", Title: "A"})
	require.NoError(t, err)
	assert.Equal(t, stamp, saved.SavedAt)

	_, err = s.Save(ctx, domain.SavedBriefing{
		ClientID: "c1", Link: "https://example.com/b", Title: "B", SavedAt: stamp.Add(time.Hour),
	})
	require.NoError(t, err)

	// Re-save overwrites.
	_, err = s.Save(ctx, domain.SavedBriefing{
		ClientID: "c1", Link: "https://example.com/a", Title: "A2", SavedAt: stamp.Add(2 * time.Hour),
	})
	require.NoError(t, err)

	list, err := s.List(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "A2", list[0].Title)
	assert.Equal(t, "B", list[1].Title)

	other, err := s.List(ctx, "c2")
	require.NoError(t, err)
	assert.NotNil(t, other)
	assert.Empty(t, other)

	require.NoError(t, s.Delete(ctx, "c1", "https://example.com/a"))
	require.NoError(t, s.Delete(ctx, "c1", "https://example.com/a"))
	list, err = s.List(ctx, "c1")
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestService_Validation(t *testing.T) {
	s := newService(t)
	ctx := context.Background()

	_, err := s.Save(ctx, domain.SavedBriefing{ClientID: "c1"})
	assert.ErrorIs(t, err, domain.ErrValidation)
	_, err = s.Save(ctx, domain.SavedBriefing{Link: "https://example.com/a"})
	assert.ErrorIs(t, err, domain.ErrValidation)
	_, err = s.List(ctx, " ")
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.ErrorIs(t, s.Delete(ctx, "c1", ""), domain.ErrValidation)
}

func TestService_StoreDisabled(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	s := NewService(storage.Disabled(), logger)

	_, err := s.List(context.Background(), "c1")
	assert.ErrorIs(t, err, domain.ErrStoreDisabled)
	_, err = s.Save(context.Background(), domain.SavedBriefing{ClientID: "c1", Link: "l"})
	assert.ErrorIs(t, err, domain.ErrStoreDisabled)
}
