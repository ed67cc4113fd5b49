package imagecache

import (
	"context"

	"github.com/sirupsen/logrus"

	"ctifeed/internal/metrics"
	"ctifeed/internal/scraper"
)

// Outcome names the branch that produced an article's image URL.
type Outcome string

const (
	OutcomeCacheHit       Outcome = "cache_hit"
	OutcomeUploaded       Outcome = "uploaded"
	OutcomeSourceFallback Outcome = "source_fallback"
	OutcomePlaceholder    Outcome = "placeholder"
)

// Result is the resolved image for one article.
type Result struct {
	URL string
	// SourceURL is the candidate found in the page meta tags, if any.
	SourceURL string
	Outcome   Outcome
}

// Resolver finds and caches preview images for article links.
type Resolver struct {
	scraper     scraper.Scraper
	cache       *Cache
	placeholder string
	log         logrus.FieldLogger
}

// NewResolver wires a page scraper to the image cache.
func NewResolver(s scraper.Scraper, cache *Cache, placeholder string, logger logrus.FieldLogger) *Resolver {
	return &Resolver{
		scraper:     s,
		cache:       cache,
		placeholder: placeholder,
		log:         logger.WithField("component", "image_resolver"),
	}
}

// Resolve always returns a non-empty URL: the cached copy, else the original image, else
// the placeholder.
func (r *Resolver) Resolve(ctx context.Context, articleLink string) Result {
	res := r.resolve(ctx, articleLink)
	metrics.ImageOutcomes.WithLabelValues(string(res.Outcome)).Inc()
	return res
}

func (r *Resolver) resolve(ctx context.Context, articleLink string) Result {
	log := r.log.WithField("link", articleLink)

	candidate, err := scraper.FindImage(ctx, r.scraper, articleLink)
	if err != nil {
		log.WithError(err).Warn("Article page fetch failed")
	}
	if candidate == "" {
		log.Debug("No preview image found, using placeholder")
		return Result{URL: r.placeholder, Outcome: OutcomePlaceholder}
	}

	publicURL, hit, err := r.cache.GetOrCreate(ctx, candidate)
	if err != nil {
		log.WithError(err).WithField("source_url", candidate).Warn("Image cache failed, using original image")
		return Result{URL: candidate, SourceURL: candidate, Outcome: OutcomeSourceFallback}
	}
	if hit {
		return Result{URL: publicURL, SourceURL: candidate, Outcome: OutcomeCacheHit}
	}
	return Result{URL: publicURL, SourceURL: candidate, Outcome: OutcomeUploaded}
}
