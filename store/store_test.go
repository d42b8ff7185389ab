package store

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/svllm/svllm/internal/profile"
)

type memDriver struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemDriver() *memDriver {
	return &memDriver{data: map[string][]byte{}}
}

func (d *memDriver) Get(_ context.Context, key string) ([]byte, bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	raw, ok := d.data[key]
	return raw, ok, nil
}

func (d *memDriver) Set(_ context.Context, key string, value []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.data[key] = append([]byte(nil), value...)
	return nil
}

func (d *memDriver) Delete(_ context.Context, key string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.data, key)
	return nil
}

func (d *memDriver) Migrate(context.Context) error { return nil }
func (d *memDriver) Close() error                  { return nil }

func newTestStore() *Store {
	return New(newMemDriver(), &profile.Profile{Mode: "dev"})
}

func TestChatHistoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()

	// Missing key reads as an empty collection.
	history, err := s.LoadChatHistory(ctx)
	require.NoError(t, err)
	require.Empty(t, history)

	first := NewConversation()
	first.Messages = append(first.Messages, NewMessage(RoleUser, "hello"))
	second := NewConversation()
	require.NoError(t, s.SaveChatHistory(ctx, []*Conversation{first, second}))

	history, err = s.LoadChatHistory(ctx)
	require.NoError(t, err)
	require.Len(t, history, 2)
	require.Equal(t, first.ID, history[0].ID)
	require.Len(t, history[0].Messages, 1)
	require.Equal(t, "hello", history[0].Messages[0].Content)
}

func TestSaveChatHistoryReplacesWholeCollection(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()

	first := NewConversation()
	require.NoError(t, s.SaveChatHistory(ctx, []*Conversation{first}))

	second := NewConversation()
	require.NoError(t, s.SaveChatHistory(ctx, []*Conversation{second}))

	history, err := s.LoadChatHistory(ctx)
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.Equal(t, second.ID, history[0].ID)
}

func TestGetConversation(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()

	conversation := NewConversation()
	require.NoError(t, s.SaveChatHistory(ctx, []*Conversation{conversation}))

	found, err := s.GetConversation(ctx, conversation.ID)
	require.NoError(t, err)
	require.NotNil(t, found)
	require.Equal(t, conversation.ID, found.ID)

	missing, err := s.GetConversation(ctx, "nope")
	require.NoError(t, err)
	require.Nil(t, missing)
}

func TestAppendFeedbackFillsIdentity(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()

	feedback := &Feedback{MessageID: "m1", Reaction: ReactionThumbsUp}
	require.NoError(t, s.AppendFeedback(ctx, feedback))
	require.NotEmpty(t, feedback.ID)
	require.False(t, feedback.Timestamp.IsZero())

	list, err := s.ListFeedback(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, feedback.ID, list[0].ID)
}

func TestFeedbackStatsAndClear(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()

	require.NoError(t, s.AppendFeedback(ctx, &Feedback{MessageID: "m1", Reaction: ReactionThumbsUp}))
	require.NoError(t, s.AppendFeedback(ctx, &Feedback{MessageID: "m2", Reaction: ReactionThumbsUp}))
	require.NoError(t, s.AppendFeedback(ctx, &Feedback{MessageID: "m3", Reaction: ReactionThumbsDown}))
	require.NoError(t, s.AppendFeedback(ctx, &Feedback{MessageID: "m4", Text: "free-form note"}))

	stats, err := s.GetFeedbackStats(ctx)
	require.NoError(t, err)
	require.Equal(t, 4, stats.Total)
	require.Equal(t, 2, stats.ByReaction[ReactionThumbsUp])
	require.Equal(t, 1, stats.ByReaction[ReactionThumbsDown])

	require.NoError(t, s.ClearFeedback(ctx))
	stats, err = s.GetFeedbackStats(ctx)
	require.NoError(t, err)
	require.Zero(t, stats.Total)
}

func TestConversationClone(t *testing.T) {
	conversation := NewConversation()
	conversation.Messages = append(conversation.Messages, NewMessage(RoleUser, "original"))

	clone := conversation.Clone()
	clone.Messages[0].Content = "mutated"
	clone.Title = "mutated title"

	require.Equal(t, "original", conversation.Messages[0].Content)
	require.Equal(t, DefaultTitle, conversation.Title)
}
