package risk

import (
	"strings"

	"ctifeed/internal/domain"
)

const (
	maxHighlights        = 4
	highlightDescription = 220
)

// HighlightInput carries the display fields of an article. Timestamps are kept as the raw
// strings read from the store or snapshot.
type HighlightInput struct {
	Title       string
	Description string
	Source      string
	PublishedAt string
	FetchedAt   string
}

// Highlights builds up to four display lines: title, a truncated description, the source and
// the best available timestamp.
func Highlights(in HighlightInput) []string {
	lines := make([]string, 0, maxHighlights)

	if t := strings.TrimSpace(in.Title); t != "" {
		lines = append(lines, t)
	}
	if d := strings.TrimSpace(in.Description); d != "" {
		lines = append(lines, truncate(d, highlightDescription))
	}
	if s := strings.TrimSpace(in.Source); s != "" {
		lines = append(lines, "Source: "+s)
	}

	raw := strings.TrimSpace(in.PublishedAt)
	if raw == "" {
		raw = strings.TrimSpace(in.FetchedAt)
	}
	if raw != "" {
		if ts, ok := domain.ParseTimestamp(raw); ok {
			lines = append(lines, "Published: "+ts.UTC().Format("Jan 2, 2006 15:04 UTC"))
		} else {
			lines = append(lines, "Published: "+raw)
		}
	}

	if len(lines) > maxHighlights {
		lines = lines[:maxHighlights]
	}
	return lines
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
