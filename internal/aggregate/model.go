package aggregate

import (
	"ctifeed/internal/domain"
	"ctifeed/internal/risk"
	"ctifeed/internal/snapshot"
)

// FeedItem is a listing row. Timestamps are kept as strings so store rows and snapshot rows
// share one shape.
type FeedItem struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Link        string `json:"link"`
	Source      string `json:"source"`
	RawSource   string `json:"raw_source,omitempty"`
	Image       string `json:"image,omitempty"`
	ImageURL    string `json:"image_url,omitempty"`
	PublishedAt string `json:"published_at,omitempty"`
	FetchedAt   string `json:"fetched_at,omitempty"`
}

// Results is the combined read view.
type Results struct {
	Feeds    []FeedItem     `json:"feeds"`
	IOCs     []any          `json:"iocs"`
	Clusters map[string]any `json:"clusters"`
	Error    string         `json:"error,omitempty"`
}

// ArticleView is a single article enriched for display.
type ArticleView struct {
	FeedItem
	Risk       risk.Assessment `json:"risk"`
	Highlights []string        `json:"highlights"`
}

func emptyResults() Results {
	return Results{Feeds: []FeedItem{}, IOCs: []any{}, Clusters: map[string]any{}}
}

func fromArticle(a domain.Article) FeedItem {
	source := a.SourceName
	if source == "" {
		source = a.Source
	}
	if source == "" {
		source = "Unknown"
	}
	return FeedItem{
		Title:       a.Title,
		Description: a.Description,
		Link:        a.Link,
		Source:      source,
		RawSource:   a.Source,
		Image:       a.ImageURL,
		ImageURL:    a.ImageURL,
		PublishedAt: domain.FormatTimestamp(a.PublishedAt),
		FetchedAt:   domain.FormatTimestamp(a.FetchedAt),
	}
}

func fromSnapshot(e snapshot.Entry) FeedItem {
	return FeedItem{
		Title:       e.Title,
		Description: e.Description,
		Link:        e.Link,
		Source:      e.Source,
	}
}

func enrich(item FeedItem) ArticleView {
	return ArticleView{
		FeedItem: item,
		Risk: risk.Classify(risk.Input{
			Title:       item.Title,
			Description: item.Description,
			SourceName:  item.Source,
		}),
		Highlights: risk.Highlights(risk.HighlightInput{
			Title:       item.Title,
			Description: item.Description,
			Source:      item.Source,
			PublishedAt: item.PublishedAt,
			FetchedAt:   item.FetchedAt,
		}),
	}
}
