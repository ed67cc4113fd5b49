package domain

import "time"

// Article is a single ingested feed entry.
type Article struct {
	// Link is the unique identifier for the article. Re-ingesting the same link overwrites the row.
	Link string `json:"link"`

	Title       string `json:"title"`
	Description string `json:"description"`

	// Source is the feed URL the article came from.
	Source string `json:"source"`

	// SourceName is the display label of the feed.
	SourceName string `json:"source_name"`

	// ImageURL is the resolved preview image. It is never empty once an article has been enriched.
	ImageURL string `json:"image_url"`

	PublishedAt time.Time `json:"published_at"`
	FetchedAt   time.Time `json:"fetched_at"`
}

// IndicatorType is the kind of an indicator of compromise.
type IndicatorType string

const (
	IndicatorIP     IndicatorType = "ip"
	IndicatorDomain IndicatorType = "domain"
	IndicatorCVE    IndicatorType = "cve"
)

// Indicator is an IOC extracted from an article. Indicators are append-only.
type Indicator struct {
	// ID is assigned by the store on insert.
	ID string `json:"id,omitempty"`

	Type  IndicatorType `json:"type"`
	Value string        `json:"value"`

	// File is the identifier of the batch the indicator was extracted from.
	File string `json:"file"`

	CreatedAt time.Time `json:"created_at"`
}
