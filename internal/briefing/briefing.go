package briefing

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"ctifeed/internal/domain"
	"ctifeed/internal/storage"
)

// Service manages a client's saved briefings.
type Service struct {
	store    storage.Capability
	validate *validator.Validate
	now      func() time.Time
	log      logrus.FieldLogger
}

// NewService creates a saved-briefing service over the record store.
func NewService(store storage.Capability, logger logrus.FieldLogger) *Service {
	return &Service{
		store:    store,
		validate: validator.New(),
		now:      time.Now,
		log:      logger.WithField("component", "briefing"),
	}
}

// List returns the client's briefings, newest first.
func (s *Service) List(ctx context.Context, clientID string) ([]domain.SavedBriefing, error) {
	clientID = strings.TrimSpace(clientID)
	if clientID == "" {
		return nil, fmt.Errorf("%w: client_id is required", domain.ErrValidation)
	}
	repo, err := s.store.Require()
	if err != nil {
		return nil, err
	}
	saved, err := repo.ListSaved(ctx, clientID)
	if err != nil {
		return nil, err
	}
	if saved == nil {
		saved = []domain.SavedBriefing{}
	}
	return saved, nil
}

// Save stores b, overwriting any previous briefing for the same client and link.
// SavedAt is stamped when absent.
func (s *Service) Save(ctx context.Context, b domain.SavedBriefing) (domain.SavedBriefing, error) {
	b.ClientID = strings.TrimSpace(b.ClientID)
	b.Link = strings.TrimSpace(b.Link)
	if err := s.validate.Struct(b); err != nil {
		return domain.SavedBriefing{}, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	repo, err := s.store.Require()
	if err != nil {
		return domain.SavedBriefing{}, err
	}
	if b.SavedAt.IsZero() {
		b.SavedAt = s.now().UTC()
	}
	if err := repo.SaveBriefing(ctx, b); err != nil {
		return domain.SavedBriefing{}, err
	}
	s.log.WithFields(logrus.Fields{"client_id": b.ClientID, "link": b.Link}).Debug("Briefing saved")
	return b, nil
}

// Delete removes a briefing. Removing a missing one is not an error.
func (s *Service) Delete(ctx context.Context, clientID, link string) error {
	clientID, link = strings.TrimSpace(clientID), strings.TrimSpace(link)
	if clientID == "" || link == "" {
		return fmt.Errorf("%w: client_id and link are required", domain.ErrValidation)
	}
	repo, err := s.store.Require()
	if err != nil {
		return err
	}
	return repo.DeleteSaved(ctx, clientID, link)
}
