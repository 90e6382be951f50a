package newsletter

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"verbs-tickets/internal/logger"
	"verbs-tickets/internal/models"
	"verbs-tickets/internal/store"
	"verbs-tickets/internal/utils"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// DBLayer is the subscriber storage surface.
type DBLayer interface {
	GetSubscriberByEmail(ctx context.Context, email string) (*models.NewsletterSubscriber, error)
	InsertSubscriber(ctx context.Context, sub *models.NewsletterSubscriber) error
	Resubscribe(ctx context.Context, id string) error
}

// AudienceSyncer mirrors subscribers into the marketing audience. Sync
// failures are logged and swallowed; the local row is the source of truth.
type AudienceSyncer interface {
	AddContact(ctx context.Context, email, name string) error
}

type Service struct {
	db     DBLayer
	syncer AudienceSyncer
	logger *logger.Logger
}

func NewService(db DBLayer, syncer AudienceSyncer, log *logger.Logger) *Service {
	return &Service{db: db, syncer: syncer, logger: log}
}

// Result is the outcome of a subscribe call, already shaped for the API.
type Result struct {
	Status  int
	Message string
}

// Subscribe records a newsletter signup. Emails are normalized to lower
// case; a previously unsubscribed address is quietly reactivated.
func (s *Service) Subscribe(ctx context.Context, email, source string) Result {
	email = strings.ToLower(strings.TrimSpace(email))
	if !emailPattern.MatchString(email) {
		return Result{Status: http.StatusBadRequest, Message: "Please enter a valid email address"}
	}

	existing, err := s.db.GetSubscriberByEmail(ctx, email)
	switch {
	case err == nil && existing.UnsubscribedAt == nil:
		return Result{Status: http.StatusOK, Message: "You're already subscribed!"}

	case err == nil:
		if err := s.db.Resubscribe(ctx, existing.ID); err != nil {
			s.logger.Error("NEWSLETTER", fmt.Sprintf("Resubscribe failed for %s: %v", email, err))
			return Result{Status: http.StatusInternalServerError, Message: "Failed to subscribe. Please try again."}
		}
		s.syncContact(ctx, email)
		s.logger.Info("NEWSLETTER", fmt.Sprintf("Resubscribed %s", email))
		return Result{Status: http.StatusOK, Message: "Welcome back! You've been resubscribed."}

	case err == store.ErrNotFound:
		sub := &models.NewsletterSubscriber{
			Email:            email,
			Source:           source,
			UnsubscribeToken: utils.GenerateUnsubscribeToken(),
		}
		if err := s.db.InsertSubscriber(ctx, sub); err != nil {
			if store.IsUniqueViolation(err) {
				// Lost a race with a concurrent signup for the same address.
				return Result{Status: http.StatusOK, Message: "You're already subscribed!"}
			}
			s.logger.Error("NEWSLETTER", fmt.Sprintf("Insert failed for %s: %v", email, err))
			return Result{Status: http.StatusInternalServerError, Message: "Failed to subscribe. Please try again."}
		}
		s.syncContact(ctx, email)
		s.logger.Info("NEWSLETTER", fmt.Sprintf("Subscribed %s (source=%s)", email, source))
		return Result{Status: http.StatusOK, Message: "Successfully subscribed!"}

	default:
		s.logger.Error("NEWSLETTER", fmt.Sprintf("Lookup failed for %s: %v", email, err))
		return Result{Status: http.StatusInternalServerError, Message: "Failed to subscribe. Please try again."}
	}
}

func (s *Service) syncContact(ctx context.Context, email string) {
	if s.syncer == nil {
		return
	}
	if err := s.syncer.AddContact(ctx, email, ""); err != nil {
		s.logger.Warn("NEWSLETTER", fmt.Sprintf("Audience sync failed for %s: %v", email, err))
	}
}
