package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"ctifeed/internal/domain"
)

const (
	articlePrefix   = "article:"
	indicatorPrefix = "ioc:"
	savedPrefix     = "saved:"
)

// BadgerRepository implements the Repository interface using BadgerDB.
type BadgerRepository struct {
	db  *badger.DB
	log logrus.FieldLogger
	now func() time.Time
}

// NewBadgerRepository creates and initializes a new BadgerDB repository.
// It opens the database at the specified path.
func NewBadgerRepository(dbPath string, logger logrus.FieldLogger) (*BadgerRepository, error) {
	opts := badger.DefaultOptions(dbPath)
	opts.Logger = &badgerLogger{logger.WithField("component", "badgerdb")}

	db, err := badger.Open(opts)
	if err != nil {
		logger.WithError(err).Error("Failed to open BadgerDB")
		return nil, fmt.Errorf("failed to open badger db at %s: %w", dbPath, err)
	}
	logger.Info("BadgerDB opened successfully at path: ", dbPath)

	return &BadgerRepository{
		db:  db,
		log: logger.WithField("component", "repository"),
		now: time.Now,
	}, nil
}

// Close closes the BadgerDB database connection.
func (r *BadgerRepository) Close() error {
	r.log.Info("Closing BadgerDB...")
	if err := r.db.Close(); err != nil {
		r.log.WithError(err).Error("Error closing BadgerDB")
		return err
	}
	r.log.Info("BadgerDB closed.")
	return nil
}

// articleKey format: article:{sha256(link)}
func articleKey(link string) []byte {
	return []byte(articlePrefix + linkHash(link))
}

func linkHash(link string) string {
	sum := sha256.Sum256([]byte(link))
	return hex.EncodeToString(sum[:])
}

// indicatorID orders lexically by creation time: {unixnano, zero padded}:{uuid}
func indicatorID(createdAt time.Time) string {
	return fmt.Sprintf("%020d:%s", createdAt.UnixNano(), uuid.NewString())
}

func indicatorKey(id string) []byte {
	return []byte(indicatorPrefix + id)
}

// savedKey format: saved:{hex(clientID)}:{sha256(link)}
// The client segment is hex so it can never contain the separator.
func savedKey(clientID, link string) []byte {
	return append(savedClientPrefix(clientID), linkHash(link)...)
}

func savedClientPrefix(clientID string) []byte {
	return []byte(savedPrefix + hex.EncodeToString([]byte(clientID)) + ":")
}

// --- Articles ---

// UpsertArticles writes every article under its link key. Existing rows are overwritten.
func (r *BadgerRepository) UpsertArticles(ctx context.Context, articles []domain.Article) (int, error) {
	if len(articles) == 0 {
		return 0, nil
	}
	log := r.log.WithField("count", len(articles))

	wb := r.db.NewWriteBatch()
	defer wb.Cancel()

	written := 0
	for _, a := range articles {
		if a.Link == "" {
			log.Warn("Skipping article without link")
			continue
		}
		data, err := json.Marshal(a)
		if err != nil {
			return 0, fmt.Errorf("failed to marshal article %s: %w", a.Link, err)
		}
		if err := wb.Set(articleKey(a.Link), data); err != nil {
			return 0, fmt.Errorf("failed to stage article %s: %w", a.Link, err)
		}
		written++
	}
	if err := wb.Flush(); err != nil {
		log.WithError(err).Error("Failed to flush article upsert")
		return 0, fmt.Errorf("failed to upsert articles: %w", err)
	}

	log.WithField("written", written).Debug("Articles upserted")
	return written, nil
}

// GetArticle looks up a single article by exact link.
func (r *BadgerRepository) GetArticle(ctx context.Context, link string) (domain.Article, error) {
	var article domain.Article
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(articleKey(link))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &article)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return domain.Article{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Article{}, fmt.Errorf("failed to get article %s: %w", link, err)
	}
	return article, nil
}

// ListArticles returns articles ordered by FetchedAt, newest first.
func (r *BadgerRepository) ListArticles(ctx context.Context, limit int) ([]domain.Article, error) {
	var articles []domain.Article
	err := scanPrefix(r.db, []byte(articlePrefix), func(key, val []byte) error {
		var a domain.Article
		if err := json.Unmarshal(val, &a); err != nil {
			r.log.WithError(err).WithField("key", string(key)).Warn("Skipping unreadable article")
			return nil
		}
		articles = append(articles, a)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list articles: %w", err)
	}

	sort.SliceStable(articles, func(i, j int) bool {
		return articles[i].FetchedAt.After(articles[j].FetchedAt)
	})
	if limit > 0 && len(articles) > limit {
		articles = articles[:limit]
	}
	return articles, nil
}

// DeleteArticle removes the article stored under link.
func (r *BadgerRepository) DeleteArticle(ctx context.Context, link string) error {
	if err := deleteKey(r.db, articleKey(link)); err != nil {
		return fmt.Errorf("failed to delete article %s: %w", link, err)
	}
	return nil
}

// --- Indicators ---

// InsertIndicators appends every indicator under a fresh, time-ordered ID.
func (r *BadgerRepository) InsertIndicators(ctx context.Context, indicators []domain.Indicator) error {
	if len(indicators) == 0 {
		return nil
	}

	wb := r.db.NewWriteBatch()
	defer wb.Cancel()

	for _, ind := range indicators {
		if ind.CreatedAt.IsZero() {
			ind.CreatedAt = r.now().UTC()
		}
		ind.ID = indicatorID(ind.CreatedAt)
		data, err := json.Marshal(ind)
		if err != nil {
			return fmt.Errorf("failed to marshal indicator %s: %w", ind.Value, err)
		}
		if err := wb.Set(indicatorKey(ind.ID), data); err != nil {
			return fmt.Errorf("failed to stage indicator %s: %w", ind.Value, err)
		}
	}
	if err := wb.Flush(); err != nil {
		return fmt.Errorf("failed to insert indicators: %w", err)
	}
	return nil
}

// ListIndicators returns indicators ordered by CreatedAt, newest first.
func (r *BadgerRepository) ListIndicators(ctx context.Context, limit int) ([]domain.Indicator, error) {
	var indicators []domain.Indicator
	err := scanPrefix(r.db, []byte(indicatorPrefix), func(key, val []byte) error {
		var ind domain.Indicator
		if err := json.Unmarshal(val, &ind); err != nil {
			r.log.WithError(err).WithField("key", string(key)).Warn("Skipping unreadable indicator")
			return nil
		}
		indicators = append(indicators, ind)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list indicators: %w", err)
	}

	// Keys are time ordered ascending.
	for i, j := 0, len(indicators)-1; i < j; i, j = i+1, j-1 {
		indicators[i], indicators[j] = indicators[j], indicators[i]
	}
	if limit > 0 && len(indicators) > limit {
		indicators = indicators[:limit]
	}
	return indicators, nil
}

// DeleteIndicator removes one indicator by ID.
func (r *BadgerRepository) DeleteIndicator(ctx context.Context, id string) error {
	if err := deleteKey(r.db, indicatorKey(id)); err != nil {
		return fmt.Errorf("failed to delete indicator %s: %w", id, err)
	}
	return nil
}

// --- Saved briefings ---

// SaveBriefing stores or updates a briefing for a client.
func (r *BadgerRepository) SaveBriefing(ctx context.Context, briefing domain.SavedBriefing) error {
	log := r.log.WithFields(logrus.Fields{
		"client_id": briefing.ClientID,
		"link":      briefing.Link,
	})

	if briefing.SavedAt.IsZero() {
		briefing.SavedAt = r.now().UTC()
	}

	data, err := json.Marshal(briefing)
	if err != nil {
		log.WithError(err).Error("Failed to marshal briefing to JSON")
		return fmt.Errorf("failed to marshal briefing: %w", err)
	}

	err = r.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(badger.NewEntry(savedKey(briefing.ClientID, briefing.Link), data))
	})
	if err != nil {
		log.WithError(err).Error("Failed to save briefing to BadgerDB")
		return fmt.Errorf("failed to save briefing: %w", err)
	}

	log.Info("Briefing saved")
	return nil
}

// ListSaved retrieves all briefings for a client.
func (r *BadgerRepository) ListSaved(ctx context.Context, clientID string) ([]domain.SavedBriefing, error) {
	var saved []domain.SavedBriefing
	err := scanPrefix(r.db, savedClientPrefix(clientID), func(key, val []byte) error {
		var b domain.SavedBriefing
		if err := json.Unmarshal(val, &b); err != nil {
			return fmt.Errorf("failed to unmarshal briefing data for key %s: %w", string(key), err)
		}
		if b.ClientID != clientID {
			return nil
		}
		saved = append(saved, b)
		return nil
	})
	if err != nil {
		r.log.WithError(err).WithField("client_id", clientID).Error("Failed to retrieve briefings")
		return nil, fmt.Errorf("failed to get briefings for client %s: %w", clientID, err)
	}

	sort.SliceStable(saved, func(i, j int) bool {
		return saved[i].SavedAt.After(saved[j].SavedAt)
	})
	return saved, nil
}

// DeleteSaved removes a specific briefing for a client.
func (r *BadgerRepository) DeleteSaved(ctx context.Context, clientID, link string) error {
	if err := deleteKey(r.db, savedKey(clientID, link)); err != nil {
		return fmt.Errorf("failed to delete briefing %s for client %s: %w", link, clientID, err)
	}
	return nil
}

// --- helpers ---

func scanPrefix(db *badger.DB, prefix []byte, fn func(key, val []byte) error) error {
	return db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			val, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			if err := fn(item.KeyCopy(nil), val); err != nil {
				return err
			}
		}
		return nil
	})
}

// deleteKey is idempotent; Badger does not report missing keys on delete.
func deleteKey(db *badger.DB, key []byte) error {
	return db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key)
	})
}

// --- BadgerDB Internal Logger ---

// badgerLogger adapts logrus.FieldLogger to Badger's logger interface.
type badgerLogger struct {
	logger logrus.FieldLogger
}

func (l *badgerLogger) Errorf(f string, v ...interface{}) {
	l.logger.Errorf(f, v...)
}
func (l *badgerLogger) Warningf(f string, v ...interface{}) {
	l.logger.Warningf(f, v...)
}
func (l *badgerLogger) Infof(f string, v ...interface{}) {
	l.logger.Debugf(f, v...)
}
func (l *badgerLogger) Debugf(f string, v ...interface{}) {
	l.logger.Debugf(f, v...)
}
