package retention

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"ctifeed/internal/metrics"
	"ctifeed/internal/storage"
)

// Report summarizes one retention pass.
type Report struct {
	ExpiredArticles   int `json:"expired_articles"`
	ExcessArticles    int `json:"excess_articles"`
	ExpiredIndicators int `json:"expired_indicators"`
	Failures          int `json:"failures"`
}

// Manager enforces the retention policy against the record store.
type Manager struct {
	store  storage.Capability
	policy Policy
	now    func() time.Time
	log    logrus.FieldLogger
}

// NewManager creates a retention manager.
func NewManager(store storage.Capability, policy Policy, logger logrus.FieldLogger) *Manager {
	return &Manager{
		store:  store,
		policy: policy,
		now:    time.Now,
		log:    logger.WithField("component", "retention"),
	}
}

// Run performs three independent passes: expired articles, articles over the cap, and
// expired indicators. A failed delete is logged and skipped. Run only returns an error
// when the store is disabled.
func (m *Manager) Run(ctx context.Context) (Report, error) {
	repo, err := m.store.Require()
	if err != nil {
		return Report{}, err
	}

	var report Report
	now := m.now().UTC()
	m.log.Info("Starting data retention cleanup")

	// --- Pass 1: articles past the age horizon ---
	if articles, err := repo.ListArticles(ctx, 0); err != nil {
		m.log.WithError(err).Error("Failed to list articles for age pruning")
		report.Failures++
	} else {
		for _, link := range ExpiredArticles(articles, now, m.policy.ArticleMaxAge) {
			if m.delete("articles", link, func() error { return repo.DeleteArticle(ctx, link) }) {
				report.ExpiredArticles++
			} else {
				report.Failures++
			}
		}
	}

	// --- Pass 2: articles beyond the cap, re-queried after pass 1 ---
	if articles, err := repo.ListArticles(ctx, 0); err != nil {
		m.log.WithError(err).Error("Failed to list articles for cap pruning")
		report.Failures++
	} else {
		for _, link := range ExcessArticles(articles, m.policy.MaxArticles) {
			if m.delete("articles", link, func() error { return repo.DeleteArticle(ctx, link) }) {
				report.ExcessArticles++
			} else {
				report.Failures++
			}
		}
	}

	// --- Pass 3: indicators past their horizon ---
	if indicators, err := repo.ListIndicators(ctx, 0); err != nil {
		m.log.WithError(err).Error("Failed to list indicators for pruning")
		report.Failures++
	} else {
		for _, id := range ExpiredIndicators(indicators, now, m.policy.IndicatorMaxAge) {
			if m.delete("iocs", id, func() error { return repo.DeleteIndicator(ctx, id) }) {
				report.ExpiredIndicators++
			} else {
				report.Failures++
			}
		}
	}

	m.log.WithFields(logrus.Fields{
		"expired_articles":   report.ExpiredArticles,
		"excess_articles":    report.ExcessArticles,
		"expired_indicators": report.ExpiredIndicators,
		"failures":           report.Failures,
	}).Info("Data retention cleanup completed")
	return report, nil
}

func (m *Manager) delete(collection, id string, fn func() error) bool {
	if err := fn(); err != nil {
		m.log.WithError(fmt.Errorf("%s %s: %w", collection, id, err)).Warn("Retention delete failed, skipping")
		metrics.PersistenceFailures.WithLabelValues("retention_delete").Inc()
		return false
	}
	metrics.RetentionDeletions.WithLabelValues(collection).Inc()
	return true
}
