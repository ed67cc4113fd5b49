package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"ctifeed/internal/blob"
	"ctifeed/internal/config"
	"ctifeed/internal/domain"
	"ctifeed/internal/feed"
	"ctifeed/internal/imagecache"
	"ctifeed/internal/ioc"
	"ctifeed/internal/metrics"
	"ctifeed/internal/retention"
	"ctifeed/internal/runguard"
	"ctifeed/internal/storage"
)

// ImageResolver produces a display image for an article link. It never fails.
type ImageResolver interface {
	Resolve(ctx context.Context, articleLink string) imagecache.Result
}

// Options wires the pipeline's collaborators.
type Options struct {
	Fetcher     feed.Fetcher
	Sources     []config.Source
	Images      ImageResolver
	Archive     blob.Bucket
	Store       storage.Capability
	Retention   *retention.Manager
	Guard       runguard.Guard
	Concurrency int
}

// Report summarizes one ingestion cycle.
type Report struct {
	BatchID      string            `json:"batch_id,omitempty"`
	Collected    int               `json:"collected"`
	SourceErrors int               `json:"source_errors"`
	Archived     bool              `json:"archived"`
	Stored       int               `json:"stored"`
	Indicators   int               `json:"indicators"`
	Retention    *retention.Report `json:"retention,omitempty"`
}

// Pipeline runs ingestion cycles. Runs are serialized by the guard.
type Pipeline struct {
	fetcher     feed.Fetcher
	sources     []config.Source
	images      ImageResolver
	archive     blob.Bucket
	store       storage.Capability
	retention   *retention.Manager
	guard       runguard.Guard
	concurrency int
	now         func() time.Time
	log         logrus.FieldLogger
}

// NewPipeline creates a pipeline. A nil guard defaults to an in-process one.
func NewPipeline(opts Options, logger logrus.FieldLogger) *Pipeline {
	guard := opts.Guard
	if guard == nil {
		guard = runguard.NewLocalGuard()
	}
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Pipeline{
		fetcher:     opts.Fetcher,
		sources:     opts.Sources,
		images:      opts.Images,
		archive:     opts.Archive,
		store:       opts.Store,
		retention:   opts.Retention,
		guard:       guard,
		concurrency: concurrency,
		now:         time.Now,
		log:         logger.WithField("component", "ingest"),
	}
}

// BatchID names a batch by its UTC start time.
func BatchID(t time.Time) string {
	return "live_feed_" + t.UTC().Format("20060102_150405") + ".json"
}

// RunIngestionCycle fetches, enriches and persists one batch, then applies retention.
// It returns runguard.ErrBusy if another run holds the guard. Every other failure is
// logged and degrades only the affected step.
func (p *Pipeline) RunIngestionCycle(ctx context.Context) (Report, error) {
	release, err := p.acquire(ctx)
	if err != nil {
		return Report{}, err
	}
	defer release()

	start := p.now()
	defer func() { metrics.CycleDuration.Observe(time.Since(start).Seconds()) }()

	return p.runCycle(ctx, start), nil
}

// RunRetention applies retention on its own, under the same guard as ingestion.
func (p *Pipeline) RunRetention(ctx context.Context) (retention.Report, error) {
	release, err := p.acquire(ctx)
	if err != nil {
		return retention.Report{}, err
	}
	defer release()
	if p.retention == nil {
		return retention.Report{}, domain.ErrStoreDisabled
	}
	return p.retention.Run(ctx)
}

func (p *Pipeline) acquire(ctx context.Context) (func(), error) {
	release, err := p.guard.Acquire(ctx)
	if errors.Is(err, runguard.ErrBusy) {
		metrics.CyclesSkipped.Inc()
		p.log.Warn("Pipeline run already in progress, skipping")
	}
	return release, err
}

func (p *Pipeline) runCycle(ctx context.Context, start time.Time) Report {
	log := p.log
	log.WithField("sources", len(p.sources)).Info("Starting ingestion cycle")

	// --- Fetch and filter ---
	fetched := feed.FetchAll(ctx, p.fetcher, p.sources, p.log)
	report := Report{Collected: len(fetched.Articles), SourceErrors: len(fetched.Errors)}
	if len(fetched.Articles) == 0 {
		log.Warn("No articles collected, skipping persistence")
		report.Retention = p.applyRetention(ctx)
		return report
	}
	articles := fetched.Articles

	// --- Images ---
	p.resolveImages(ctx, articles)

	report.BatchID = BatchID(start)
	log = log.WithField("batch", report.BatchID)

	// --- Archive raw batch ---
	if err := p.archiveBatch(ctx, report.BatchID, articles); err != nil {
		log.WithError(err).Error("Failed to archive raw batch")
		metrics.PersistenceFailures.WithLabelValues("archive").Inc()
	} else {
		report.Archived = true
	}

	repo, err := p.store.Require()
	if err != nil {
		log.Warn("Record store disabled, articles and indicators not persisted")
		return report
	}

	// --- Articles ---
	stored, err := repo.UpsertArticles(ctx, articles)
	if err != nil {
		log.WithError(err).Error("Article upsert failed")
		metrics.PersistenceFailures.WithLabelValues("upsert_articles").Inc()
	}
	report.Stored = stored

	// --- Indicators ---
	indicators := ioc.ExtractBatch(articles, report.BatchID, p.now().UTC())
	if err := repo.InsertIndicators(ctx, indicators); err != nil {
		log.WithError(err).Error("Indicator insert failed")
		metrics.PersistenceFailures.WithLabelValues("insert_indicators").Inc()
	} else {
		report.Indicators = len(indicators)
	}

	report.Retention = p.applyRetention(ctx)

	log.WithFields(logrus.Fields{
		"collected":  report.Collected,
		"stored":     report.Stored,
		"indicators": report.Indicators,
		"archived":   report.Archived,
	}).Info("Ingestion cycle completed")
	return report
}

// applyRetention runs the retention pass when the store is available.
func (p *Pipeline) applyRetention(ctx context.Context) *retention.Report {
	if p.retention == nil || !p.store.Available() {
		return nil
	}
	rr, err := p.retention.Run(ctx)
	if err != nil {
		p.log.WithError(err).Error("Retention failed")
		return nil
	}
	return &rr
}

// resolveImages fills ImageURL on every article, resolving up to p.concurrency links at once.
func (p *Pipeline) resolveImages(ctx context.Context, articles []domain.Article) {
	var g errgroup.Group
	g.SetLimit(p.concurrency)
	for i := range articles {
		i := i
		g.Go(func() error {
			res := p.images.Resolve(ctx, articles[i].Link)
			articles[i].ImageURL = res.URL
			return nil
		})
	}
	_ = g.Wait()
}

func (p *Pipeline) archiveBatch(ctx context.Context, batchID string, articles []domain.Article) error {
	if p.archive == nil {
		return errors.New("no archive bucket configured")
	}
	data, err := json.MarshalIndent(articles, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode batch: %w", err)
	}
	if err := p.archive.Upload(ctx, batchID, data, "application/json"); err != nil {
		return fmt.Errorf("failed to upload %s/%s: %w", p.archive.Name(), batchID, err)
	}
	return nil
}
