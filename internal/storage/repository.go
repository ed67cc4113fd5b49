package storage

import (
	"context"

	"ctifeed/internal/domain"
)

// Repository defines the record store operations over the three collections:
// articles (unique on link), iocs (append-only) and saved_briefings (unique on client+link).
type Repository interface {
	// UpsertArticles inserts or overwrites articles keyed on Link. It returns the number written.
	UpsertArticles(ctx context.Context, articles []domain.Article) (int, error)

	// GetArticle returns the article stored under link, or domain.ErrNotFound.
	GetArticle(ctx context.Context, link string) (domain.Article, error)

	// ListArticles returns articles newest first by FetchedAt. A limit <= 0 returns all of them.
	ListArticles(ctx context.Context, limit int) ([]domain.Article, error)

	// DeleteArticle removes an article. Deleting a missing link is not an error.
	DeleteArticle(ctx context.Context, link string) error

	// InsertIndicators appends indicators. IDs are assigned by the store.
	InsertIndicators(ctx context.Context, indicators []domain.Indicator) error

	// ListIndicators returns indicators newest first by CreatedAt. A limit <= 0 returns all of them.
	ListIndicators(ctx context.Context, limit int) ([]domain.Indicator, error)

	// DeleteIndicator removes one indicator by ID.
	DeleteIndicator(ctx context.Context, id string) error

	// SaveBriefing stores or overwrites the briefing for (ClientID, Link).
	SaveBriefing(ctx context.Context, briefing domain.SavedBriefing) error

	// ListSaved returns a client's briefings newest first by SavedAt.
	ListSaved(ctx context.Context, clientID string) ([]domain.SavedBriefing, error)

	// DeleteSaved removes one briefing. Deleting a missing one is not an error.
	DeleteSaved(ctx context.Context, clientID, link string) error

	// Close gracefully shuts down the repository connection.
	Close() error
}
