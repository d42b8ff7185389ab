package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/lithammer/shortuuid/v4"
	"github.com/pkg/errors"

	"github.com/svllm/svllm/internal/profile"
)

// Storage keys. Each key holds one serialized collection.
const (
	KeyChatHistory = "chatHistory"
	KeyFeedback    = "feedback"
)

// Store provides access to all persisted collections.
type Store struct {
	profile *profile.Profile
	driver  Driver
}

// New creates a new instance of Store.
func New(driver Driver, profile *profile.Profile) *Store {
	return &Store{
		driver:  driver,
		profile: profile,
	}
}

func (s *Store) GetDriver() Driver {
	return s.driver
}

func (s *Store) Migrate(ctx context.Context) error {
	return s.driver.Migrate(ctx)
}

func (s *Store) Close() error {
	return s.driver.Close()
}

// LoadChatHistory reads the full conversation collection. A missing key is
// an empty history, not an error.
func (s *Store) LoadChatHistory(ctx context.Context) ([]*Conversation, error) {
	raw, ok, err := s.driver.Get(ctx, KeyChatHistory)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load chat history")
	}
	if !ok {
		return []*Conversation{}, nil
	}

	var conversations []*Conversation
	if err := json.Unmarshal(raw, &conversations); err != nil {
		return nil, errors.Wrap(err, "failed to decode chat history")
	}
	return conversations, nil
}

// SaveChatHistory re-serializes the entire conversation collection. There is
// no incremental persistence; every mutation writes the whole set.
func (s *Store) SaveChatHistory(ctx context.Context, conversations []*Conversation) error {
	raw, err := json.Marshal(conversations)
	if err != nil {
		return errors.Wrap(err, "failed to encode chat history")
	}
	if err := s.driver.Set(ctx, KeyChatHistory, raw); err != nil {
		return errors.Wrap(err, "failed to store chat history")
	}
	return nil
}

// GetConversation returns one conversation from the persisted collection, or
// nil if it does not exist.
func (s *Store) GetConversation(ctx context.Context, id string) (*Conversation, error) {
	conversations, err := s.LoadChatHistory(ctx)
	if err != nil {
		return nil, err
	}
	for _, conversation := range conversations {
		if conversation.ID == id {
			return conversation, nil
		}
	}
	return nil, nil
}

// AppendFeedback adds one feedback entry to the persisted feedback
// collection. Missing ID and timestamp are filled in.
func (s *Store) AppendFeedback(ctx context.Context, feedback *Feedback) error {
	if feedback.ID == "" {
		feedback.ID = shortuuid.New()
	}
	if feedback.Timestamp.IsZero() {
		feedback.Timestamp = time.Now().UTC()
	}

	list, err := s.ListFeedback(ctx)
	if err != nil {
		return err
	}
	list = append(list, feedback)

	raw, err := json.Marshal(list)
	if err != nil {
		return errors.Wrap(err, "failed to encode feedback")
	}
	if err := s.driver.Set(ctx, KeyFeedback, raw); err != nil {
		return errors.Wrap(err, "failed to store feedback")
	}
	return nil
}

// ListFeedback reads the full feedback collection.
func (s *Store) ListFeedback(ctx context.Context) ([]*Feedback, error) {
	raw, ok, err := s.driver.Get(ctx, KeyFeedback)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load feedback")
	}
	if !ok {
		return []*Feedback{}, nil
	}

	var list []*Feedback
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, errors.Wrap(err, "failed to decode feedback")
	}
	return list, nil
}

// GetFeedbackStats counts stored feedback entries by reaction.
func (s *Store) GetFeedbackStats(ctx context.Context) (*FeedbackStats, error) {
	list, err := s.ListFeedback(ctx)
	if err != nil {
		return nil, err
	}

	stats := &FeedbackStats{
		Total:      len(list),
		ByReaction: map[string]int{},
	}
	for _, feedback := range list {
		if feedback.Reaction != "" {
			stats.ByReaction[feedback.Reaction]++
		}
	}
	return stats, nil
}

// ClearFeedback removes the whole feedback collection.
func (s *Store) ClearFeedback(ctx context.Context) error {
	if err := s.driver.Delete(ctx, KeyFeedback); err != nil {
		return errors.Wrap(err, "failed to clear feedback")
	}
	return nil
}
