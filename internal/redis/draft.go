package redis

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"ridelog/internal/domain"
)

const draftKey = "ridelog:active_trip"

// DraftStore keeps the in-progress trip in Redis so it can be recovered
// after a restart.
type DraftStore struct {
	client *redis.Client
}

// NewDraftStore creates a new DraftStore.
func NewDraftStore(client *redis.Client) *DraftStore {
	return &DraftStore{client: client}
}

// SaveDraft replaces the stored draft.
func (s *DraftStore) SaveDraft(ctx context.Context, draft *domain.TripDraft) error {
	data, err := json.Marshal(draft)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, draftKey, data, 0).Err()
}

// LoadDraft returns the stored draft, or nil when none exists or the stored
// value cannot be decoded.
func (s *DraftStore) LoadDraft(ctx context.Context) (*domain.TripDraft, error) {
	data, err := s.client.Get(ctx, draftKey).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}

	var draft domain.TripDraft
	if err := json.Unmarshal(data, &draft); err != nil || draft.Trip == nil {
		logrus.WithField("component", "draft").WithError(err).Warn("discarding unreadable trip draft")
		return nil, nil
	}
	return &draft, nil
}

// DeleteDraft removes the stored draft.
func (s *DraftStore) DeleteDraft(ctx context.Context) error {
	return s.client.Del(ctx, draftKey).Err()
}
