package domain

import "time"

// SavedBriefing is an article a client has bookmarked.
// The pair (ClientID, Link) is unique; saving again overwrites the previous row.
type SavedBriefing struct {
	ClientID string `json:"client_id" validate:"required"`
	Link     string `json:"link" validate:"required"`

	Title     string `json:"title"`
	Source    string `json:"source"`
	ImageURL  string `json:"image_url"`
	RiskLevel string `json:"risk_level"`
	RiskScore int    `json:"risk_score"`

	SavedAt time.Time `json:"saved_at"`
}
