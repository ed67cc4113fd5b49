package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"ctifeed/internal/aggregate"
	"ctifeed/internal/blob"
	"ctifeed/internal/briefing"
	"ctifeed/internal/config"
	"ctifeed/internal/feed"
	"ctifeed/internal/imagecache"
	"ctifeed/internal/ingest"
	"ctifeed/internal/retention"
	"ctifeed/internal/runguard"
	"ctifeed/internal/scraper"
	"ctifeed/internal/snapshot"
	"ctifeed/internal/storage"
)

const runLeaseTTL = 20 * time.Minute

// app holds the wired components shared by the subcommands.
type app struct {
	cfg        config.Config
	log        logrus.FieldLogger
	store      storage.Capability
	pipeline   *ingest.Pipeline
	aggregator *aggregate.Aggregator
	briefings  *briefing.Service
	closers    []func() error
}

// Close releases everything in reverse construction order.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.log.WithError(err).Error("Error during shutdown")
		}
	}
}

func buildApp(cfg config.Config, log logrus.FieldLogger) (*app, error) {
	a := &app{cfg: cfg, log: log}

	// --- Record store ---
	a.store = storage.OpenCapability(cfg.BadgerDBPath, log)
	a.closers = append(a.closers, a.store.Close)

	// --- Blob buckets ---
	images, err := openBucket(cfg, cfg.ImageBucket)
	if err != nil {
		a.Close()
		return nil, err
	}
	archive, err := openBucket(cfg, cfg.ArchiveBucket)
	if err != nil {
		a.Close()
		return nil, err
	}

	// --- Page scraper ---
	var pages scraper.Scraper
	switch cfg.ScraperMode {
	case config.ScraperBrowser:
		pages = scraper.NewRodScraper(log)
	default:
		pages = scraper.NewHTTPScraper(&http.Client{}, cfg.UserAgent, cfg.ScrapeRatePerSecond, log)
	}
	a.closers = append(a.closers, pages.Close)

	// --- Run guard ---
	var guard runguard.Guard = runguard.NewLocalGuard()
	if cfg.RedisAddr != "" {
		rg := runguard.NewRedisGuard(cfg.RedisAddr, "ctifeed:ingest", runLeaseTTL, log)
		a.closers = append(a.closers, rg.Close)
		guard = rg
	}

	cache := imagecache.New(imagecache.Options{
		Bucket:     images,
		PublicBase: cfg.BlobPublicBaseURL,
		UserAgent:  cfg.UserAgent,
	}, log)

	a.pipeline = ingest.NewPipeline(ingest.Options{
		Fetcher:     feed.NewRSSFetcher(&http.Client{}, cfg.UserAgent, cfg.FeedLimitPerSource, log),
		Sources:     cfg.Feeds,
		Images:      imagecache.NewResolver(pages, cache, cfg.DefaultImageURL, log),
		Archive:     archive,
		Store:       a.store,
		Retention:   retention.NewManager(a.store, retention.DefaultPolicy(), log),
		Guard:       guard,
		Concurrency: cfg.EnrichConcurrency,
	}, log)

	a.aggregator = aggregate.New(a.store, snapshot.NewReader(cfg.SnapshotDir, cfg.ResultsDir, log), cfg.ExcludedSources, log)
	a.briefings = briefing.NewService(a.store, log)
	return a, nil
}

func openBucket(cfg config.Config, name string) (blob.Bucket, error) {
	switch cfg.BlobBackend {
	case config.BlobS3:
		b, err := blob.NewS3Bucket(blob.S3Options{
			Bucket:     name,
			Region:     cfg.S3Region,
			Endpoint:   cfg.S3Endpoint,
			AccessKey:  cfg.S3AccessKey,
			SecretKey:  cfg.S3SecretKey,
			PublicBase: cfg.BlobPublicBaseURL,
		})
		if err != nil {
			return nil, fmt.Errorf("opening s3 bucket %s: %w", name, err)
		}
		return b, nil
	default:
		b, err := blob.NewFSBucket(cfg.BlobFSDir, name, cfg.BlobPublicBaseURL)
		if err != nil {
			return nil, fmt.Errorf("opening fs bucket %s: %w", name, err)
		}
		return b, nil
	}
}
