package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"ctifeed/internal/domain"
)

const welcomeMessage = "Welcome to the CTI feed bot.\n" +
	"/latest - newest briefings\n" +
	"/article <link> - risk summary for an article\n" +
	"/save <link> - bookmark an article\n" +
	"/saved - your bookmarks\n" +
	"/unsave <link> - remove a bookmark"

func (h *Handler) latest(ctx context.Context, _ string, _ string) string {
	feeds := h.reader.Feeds(ctx)
	if len(feeds) == 0 {
		return "No briefings available yet."
	}
	if len(feeds) > latestCount {
		feeds = feeds[:latestCount]
	}
	var sb strings.Builder
	for i, f := range feeds {
		fmt.Fprintf(&sb, "%d. %s (%s)\n%s\n", i+1, f.Title, f.Source, f.Link)
	}
	return strings.TrimRight(sb.String(), "\n")
}

func (h *Handler) article(ctx context.Context, _ string, link string) string {
	if link == "" {
		return "Usage: /article <link>"
	}
	view, err := h.reader.GetArticle(ctx, link)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return "No article found for that link."
	case err != nil:
		h.log.WithError(err).WithField("link", link).Warn("Article lookup failed")
		return "Lookup failed, try again later."
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s %d] %s\n", view.Risk.Level, view.Risk.Score, view.Risk.Sentiment)
	for _, line := range view.Highlights {
		sb.WriteString(line + "\n")
	}
	if len(view.Risk.Tags) > 0 {
		sb.WriteString("Tags: " + strings.Join(view.Risk.Tags, ", ") + "\n")
	}
	sb.WriteString(view.Link)
	return sb.String()
}

func (h *Handler) save(ctx context.Context, clientID, link string) string {
	if link == "" {
		return "Usage: /save <link>"
	}
	b := domain.SavedBriefing{ClientID: clientID, Link: link}
	if view, err := h.reader.GetArticle(ctx, link); err == nil {
		b.Title = view.Title
		b.Source = view.Source
		b.ImageURL = view.ImageURL
		b.RiskLevel = view.Risk.Level.String()
		b.RiskScore = view.Risk.Score
	}
	if _, err := h.briefings.Save(ctx, b); err != nil {
		return h.failure("save", err)
	}
	return "Saved."
}

func (h *Handler) saved(ctx context.Context, clientID, _ string) string {
	items, err := h.briefings.List(ctx, clientID)
	if err != nil {
		return h.failure("list", err)
	}
	if len(items) == 0 {
		return "You have no saved briefings."
	}
	var sb strings.Builder
	for i, b := range items {
		title := b.Title
		if title == "" {
			title = b.Link
		}
		fmt.Fprintf(&sb, "%d. %s", i+1, title)
		if b.RiskLevel != "" {
			fmt.Fprintf(&sb, " [%s]", b.RiskLevel)
		}
		fmt.Fprintf(&sb, "\n%s\n", b.Link)
	}
	return strings.TrimRight(sb.String(), "\n")
}

func (h *Handler) unsave(ctx context.Context, clientID, link string) string {
	if link == "" {
		return "Usage: /unsave <link>"
	}
	if err := h.briefings.Delete(ctx, clientID, link); err != nil {
		return h.failure("delete", err)
	}
	return "Removed."
}

func (h *Handler) failure(op string, err error) string {
	if errors.Is(err, domain.ErrStoreDisabled) {
		return "Saving is unavailable right now."
	}
	h.log.WithError(err).WithField("operation", op).Error("Briefing operation failed")
	return "Something went wrong, try again later."
}
