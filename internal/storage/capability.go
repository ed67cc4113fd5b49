package storage

import (
	"github.com/sirupsen/logrus"

	"ctifeed/internal/domain"
)

// Capability is the process-wide handle on the record store. It is built once at startup
// and handed to every component; components never probe the store to decide availability.
type Capability struct {
	Enabled bool
	Repo    Repository
}

// Disabled returns a capability with no store behind it.
func Disabled() Capability {
	return Capability{}
}

// Available reports whether store-backed paths may be used.
func (c Capability) Available() bool {
	return c.Enabled && c.Repo != nil
}

// Require returns the repository or domain.ErrStoreDisabled.
func (c Capability) Require() (Repository, error) {
	if !c.Available() {
		return nil, domain.ErrStoreDisabled
	}
	return c.Repo, nil
}

// Close releases the underlying repository when there is one.
func (c Capability) Close() error {
	if c.Repo == nil {
		return nil
	}
	return c.Repo.Close()
}

// OpenCapability opens the Badger store at dbPath. An empty path or an open failure yields a
// disabled capability; read paths then fall back to local snapshots.
func OpenCapability(dbPath string, logger logrus.FieldLogger) Capability {
	log := logger.WithField("component", "store")
	if dbPath == "" {
		log.Warn("BADGERDB_PATH not set, record store disabled")
		return Disabled()
	}
	repo, err := NewBadgerRepository(dbPath, logger)
	if err != nil {
		log.WithError(err).Error("Record store unavailable, continuing with local fallbacks")
		return Disabled()
	}
	return Capability{Enabled: true, Repo: repo}
}
