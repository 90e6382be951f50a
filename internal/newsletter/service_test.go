package newsletter

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"verbs-tickets/internal/logger"
	"verbs-tickets/internal/models"
	"verbs-tickets/internal/store"
)

type fakeDB struct {
	subscribers map[string]*models.NewsletterSubscriber
	insertErr   error
}

func newFakeDB() *fakeDB {
	return &fakeDB{subscribers: map[string]*models.NewsletterSubscriber{}}
}

func (f *fakeDB) GetSubscriberByEmail(_ context.Context, email string) (*models.NewsletterSubscriber, error) {
	if sub, ok := f.subscribers[email]; ok {
		return sub, nil
	}
	return nil, store.ErrNotFound
}

func (f *fakeDB) InsertSubscriber(_ context.Context, sub *models.NewsletterSubscriber) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	sub.ID = "sub-" + sub.Email
	f.subscribers[sub.Email] = sub
	return nil
}

func (f *fakeDB) Resubscribe(_ context.Context, id string) error {
	for _, sub := range f.subscribers {
		if sub.ID == id {
			sub.UnsubscribedAt = nil
			return nil
		}
	}
	return store.ErrNotFound
}

func newTestService(db *fakeDB) *Service {
	return NewService(db, nil, logger.NewLogger())
}

func TestSubscribeNewAddress(t *testing.T) {
	db := newFakeDB()
	svc := newTestService(db)

	result := svc.Subscribe(context.Background(), "Fan@Example.COM", "website")

	assert.Equal(t, http.StatusOK, result.Status)
	assert.Equal(t, "Successfully subscribed!", result.Message)

	sub := db.subscribers["fan@example.com"]
	if assert.NotNil(t, sub, "email should be stored lowercased") {
		assert.Equal(t, "website", sub.Source)
		assert.NotEmpty(t, sub.UnsubscribeToken)
	}
}

func TestSubscribeInvalidEmail(t *testing.T) {
	svc := newTestService(newFakeDB())

	for _, email := range []string{"", "nope", "a@b", "spaces in@mail.com", "@missing.local"} {
		result := svc.Subscribe(context.Background(), email, "website")
		assert.Equal(t, http.StatusBadRequest, result.Status, "email %q", email)
		assert.Equal(t, "Please enter a valid email address", result.Message)
	}
}

func TestSubscribeAlreadySubscribed(t *testing.T) {
	db := newFakeDB()
	db.subscribers["fan@example.com"] = &models.NewsletterSubscriber{ID: "sub-1", Email: "fan@example.com"}
	svc := newTestService(db)

	result := svc.Subscribe(context.Background(), "fan@example.com", "website")

	assert.Equal(t, http.StatusOK, result.Status)
	assert.Equal(t, "You're already subscribed!", result.Message)
}

func TestSubscribeReactivatesUnsubscribed(t *testing.T) {
	db := newFakeDB()
	unsubAt := time.Now().Add(-24 * time.Hour)
	db.subscribers["fan@example.com"] = &models.NewsletterSubscriber{
		ID:             "sub-1",
		Email:          "fan@example.com",
		UnsubscribedAt: &unsubAt,
	}
	svc := newTestService(db)

	result := svc.Subscribe(context.Background(), "fan@example.com", "website")

	assert.Equal(t, http.StatusOK, result.Status)
	assert.Equal(t, "Welcome back! You've been resubscribed.", result.Message)
	assert.Nil(t, db.subscribers["fan@example.com"].UnsubscribedAt)
}

func TestSubscribeStorageFailure(t *testing.T) {
	db := newFakeDB()
	db.insertErr = assert.AnError
	svc := newTestService(db)

	result := svc.Subscribe(context.Background(), "fan@example.com", "website")

	assert.Equal(t, http.StatusInternalServerError, result.Status)
	assert.Equal(t, "Failed to subscribe. Please try again.", result.Message)
}
