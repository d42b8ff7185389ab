// Package chat implements the multi-session conversation state machine: the
// conversation list, the active-conversation pointer, per-conversation drafts
// and loading flags, and the send/missing-inputs orchestration.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/svllm/svllm/ai/llm"
	"github.com/svllm/svllm/internal/metrics"
	"github.com/svllm/svllm/internal/profile"
	"github.com/svllm/svllm/store"
)

// titleRuneLimit bounds the auto-generated conversation title; longer first
// messages are cut there and suffixed with "...".
const titleRuneLimit = 30

// ConfigurationError reports a send attempted without a usable API key. It is
// a precondition failure: no message is appended and no request leaves the
// process.
type ConfigurationError struct {
	Message string
}

func (e *ConfigurationError) Error() string {
	return e.Message
}

// Dispatcher is the slice of the provider dispatcher the session layer needs.
type Dispatcher interface {
	Dispatch(ctx context.Context, req *llm.Request) (*llm.Reply, error)
}

// pendingInputs remembers the interrupted query so a later submit can replay
// it together with the collected field values.
type pendingInputs struct {
	query    string
	required map[string][]string
}

// Session owns all conversation state. In-memory state is authoritative;
// storage is a best-effort mirror written after every mutation.
type Session struct {
	mu sync.Mutex

	conversations []*store.Conversation
	activeID      string
	model         string

	// drafts and loading are process-local UI state, keyed by conversation
	// ID. Neither is ever persisted.
	drafts  map[string]string
	loading map[string]bool
	pending map[string]*pendingInputs

	store      *store.Store
	dispatcher Dispatcher
	apiKey     string
}

// NewSession creates a session backed by the given store and dispatcher.
func NewSession(st *store.Store, dispatcher Dispatcher, p *profile.Profile) *Session {
	return &Session{
		conversations: []*store.Conversation{},
		model:         p.DefaultModel,
		drafts:        map[string]string{},
		loading:       map[string]bool{},
		pending:       map[string]*pendingInputs{},
		store:         st,
		dispatcher:    dispatcher,
		apiKey:        p.APIKey,
	}
}

// Load hydrates the conversation list from storage, newest-created first.
// Empty storage seeds one fresh conversation so there is always something to
// type into. Drafts, loading flags and pending missing-inputs state always
// start empty.
func (s *Session) Load(ctx context.Context) error {
	conversations, err := s.store.LoadChatHistory(ctx)
	if err != nil {
		return fmt.Errorf("failed to load chat history: %w", err)
	}

	sort.SliceStable(conversations, func(i, j int) bool {
		return conversations[i].CreatedAt.After(conversations[j].CreatedAt)
	})

	s.mu.Lock()
	defer s.mu.Unlock()
	s.conversations = conversations
	if len(s.conversations) == 0 {
		s.conversations = []*store.Conversation{store.NewConversation()}
		s.persistLocked(ctx)
	}
	s.activeID = s.conversations[0].ID
	return nil
}

// Model returns the currently selected model identifier.
func (s *Session) Model() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.model
}

// SetModel switches the model used for subsequent sends. The choice applies
// session-wide, not per conversation.
func (s *Session) SetModel(model string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.model = model
}

// List returns copies of all conversations, newest first.
func (s *Session) List() []*store.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*store.Conversation, len(s.conversations))
	for i, c := range s.conversations {
		out[i] = c.Clone()
	}
	return out
}

// Get returns a copy of one conversation, or nil if it does not exist.
func (s *Session) Get(id string) *store.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c := s.find(id); c != nil {
		return c.Clone()
	}
	return nil
}

// ActiveID returns the active conversation's ID, or "" when none is active.
func (s *Session) ActiveID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeID
}

// Create starts a new empty conversation, makes it active, and persists the
// collection.
func (s *Session) Create(ctx context.Context) *store.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()

	conversation := store.NewConversation()
	s.conversations = append([]*store.Conversation{conversation}, s.conversations...)
	s.activeID = conversation.ID
	s.persistLocked(ctx)
	return conversation.Clone()
}

// Select makes the given conversation active. Selecting an unknown ID is an
// error; the active pointer is left untouched.
func (s *Session) Select(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.find(id) == nil {
		return fmt.Errorf("conversation not found: %s", id)
	}
	s.activeID = id
	return nil
}

// Delete removes a conversation together with its draft, loading flag and
// pending missing-inputs state. An in-flight response for it is dropped when
// it arrives.
func (s *Session) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := -1
	for i, c := range s.conversations {
		if c.ID == id {
			idx = i
			break
		}
	}
	if idx == -1 {
		return fmt.Errorf("conversation not found: %s", id)
	}

	s.conversations = append(s.conversations[:idx], s.conversations[idx+1:]...)
	delete(s.drafts, id)
	delete(s.loading, id)
	delete(s.pending, id)

	if s.activeID == id {
		// Promote the newest remaining conversation, or start a fresh one so
		// there is always an active conversation to type into.
		if len(s.conversations) == 0 {
			s.conversations = []*store.Conversation{store.NewConversation()}
		}
		s.activeID = s.conversations[0].ID
	}

	s.persistLocked(ctx)
	return nil
}

// Rename sets a conversation's title. LastUpdated is deliberately left alone
// so renaming does not reorder the list.
func (s *Session) Rename(ctx context.Context, id, title string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conversation := s.find(id)
	if conversation == nil {
		return fmt.Errorf("conversation not found: %s", id)
	}
	conversation.Title = strings.TrimSpace(title)
	s.persistLocked(ctx)
	return nil
}

// UpdateDraft stores the in-progress input text for a conversation. Drafts
// live only in memory.
func (s *Session) UpdateDraft(id, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if text == "" {
		delete(s.drafts, id)
		return
	}
	s.drafts[id] = text
}

// Draft returns the draft text for a conversation, "" when there is none.
func (s *Session) Draft(id string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.drafts[id]
}

// IsLoading reports whether a send is in flight for the conversation.
func (s *Session) IsLoading(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading[id]
}

// PendingMissingInputs returns the required-inputs map for the conversation's
// interrupted query, or nil when nothing is pending.
func (s *Session) PendingMissingInputs(id string) map[string][]string {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.pending[id]
	if !ok {
		return nil
	}
	required := make(map[string][]string, len(p.required))
	for intent, fields := range p.required {
		required[intent] = append([]string(nil), fields...)
	}
	return required
}

// SendMessage appends the user's message to the active conversation (creating
// one if none is active), dispatches the history to the selected provider,
// and appends the outcome as an assistant message.
//
// A whitespace-only message is a silent no-op. A missing API key fails before
// any state changes. Provider failures are rendered into the conversation,
// not returned; the returned conversation reflects the final state.
func (s *Session) SendMessage(ctx context.Context, content string) (*store.Conversation, error) {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return nil, nil
	}

	s.mu.Lock()
	if s.apiKey == "" {
		s.mu.Unlock()
		return nil, &ConfigurationError{Message: "no API key configured, set SVLLM_API_KEY"}
	}

	conversation := s.find(s.activeID)
	if conversation == nil {
		conversation = store.NewConversation()
		s.conversations = append([]*store.Conversation{conversation}, s.conversations...)
		s.activeID = conversation.ID
	}
	id := conversation.ID

	if conversation.Title == store.DefaultTitle && len(conversation.Messages) == 0 {
		conversation.Title = deriveTitle(trimmed)
	}

	conversation.Messages = append(conversation.Messages, store.NewMessage(store.RoleUser, trimmed))
	conversation.LastUpdated = time.Now().UTC()
	delete(s.drafts, id)
	delete(s.pending, id)
	s.loading[id] = true

	history := toLLMMessages(conversation.Messages)
	model := s.model
	apiKey := s.apiKey
	s.persistLocked(ctx)
	s.mu.Unlock()

	reply, err := s.dispatcher.Dispatch(ctx, &llm.Request{
		Messages: history,
		Model:    model,
		APIKey:   apiKey,
	})

	return s.finishSend(ctx, id, trimmed, reply, err)
}

// SubmitMissingInputs resumes a query the backend interrupted with a
// missing-inputs signal. The collected values are recapped as a user message,
// the pending state is cleared up front, and the original query is replayed
// with the values attached as auxiliary data.
func (s *Session) SubmitMissingInputs(ctx context.Context, id string, values map[string]string) (*store.Conversation, error) {
	s.mu.Lock()

	conversation := s.find(id)
	if conversation == nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("conversation not found: %s", id)
	}

	p, ok := s.pending[id]
	if !ok {
		s.mu.Unlock()
		return nil, fmt.Errorf("no pending missing-inputs request for conversation %s", id)
	}
	// Clear before dispatching so a failed resume never leaves a stale form.
	delete(s.pending, id)

	conversation.Messages = append(conversation.Messages, store.NewMessage(store.RoleUser, resumedQuery(p.query, values)))
	conversation.LastUpdated = time.Now().UTC()
	s.loading[id] = true

	history := toLLMMessages(conversation.Messages)
	model := s.model
	apiKey := s.apiKey
	s.persistLocked(ctx)
	s.mu.Unlock()

	reply, err := s.dispatcher.Dispatch(ctx, &llm.Request{
		Messages:  history,
		Model:     model,
		APIKey:    apiKey,
		Auxiliary: values,
	})

	return s.finishSend(ctx, id, p.query, reply, err)
}

// finishSend applies a dispatch outcome to the conversation it was issued
// for. If the conversation was deleted while the request was in flight, the
// response is dropped.
func (s *Session) finishSend(ctx context.Context, id, query string, reply *llm.Reply, err error) (*store.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.loading, id)

	conversation := s.find(id)
	if conversation == nil {
		slog.Info("chat: dropping response for deleted conversation", "conversation", id)
		return nil, nil
	}

	var message store.Message
	switch {
	case err == nil:
		message = store.NewMessage(store.RoleAssistant, reply.Content)
	default:
		var missing *llm.MissingInputsError
		if errors.As(err, &missing) {
			s.pending[id] = &pendingInputs{query: query, required: missing.RequiredInputs}
			message = store.NewMessage(store.RoleAssistant, missing.Prompt())
			message.HasMissingInputs = true
		} else {
			message = store.NewMessage(store.RoleAssistant, "Error: "+err.Error())
		}
	}

	conversation.Messages = append(conversation.Messages, message)
	conversation.LastUpdated = time.Now().UTC()
	s.persistLocked(ctx)
	return conversation.Clone(), nil
}

// persistLocked mirrors the in-memory collection to storage. Failures are
// logged and counted; in-memory state remains authoritative and the caller's
// operation still succeeds.
func (s *Session) persistLocked(ctx context.Context) {
	if err := s.store.SaveChatHistory(ctx, s.conversations); err != nil {
		metrics.CountPersistenceFailure()
		slog.Error("chat: failed to persist chat history", "error", err)
	}
}

func (s *Session) find(id string) *store.Conversation {
	if id == "" {
		return nil
	}
	for _, c := range s.conversations {
		if c.ID == id {
			return c
		}
	}
	return nil
}

// deriveTitle builds a conversation title from the first message.
func deriveTitle(content string) string {
	runes := []rune(content)
	if len(runes) <= titleRuneLimit {
		return content
	}
	return string(runes[:titleRuneLimit]) + "..."
}

// resumedQuery renders the replayed query: the original text followed by the
// collected field values, one "field: value" line each.
func resumedQuery(query string, values map[string]string) string {
	fields := make([]string, 0, len(values))
	for field := range values {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	var sb strings.Builder
	sb.WriteString(query)
	sb.WriteString("\n\nAdditional Information:")
	for _, field := range fields {
		sb.WriteString("\n")
		sb.WriteString(field)
		sb.WriteString(": ")
		sb.WriteString(values[field])
	}
	return sb.String()
}

func toLLMMessages(messages []store.Message) []llm.Message {
	out := make([]llm.Message, len(messages))
	for i, m := range messages {
		out[i] = llm.Message{Role: string(m.Role), Content: m.Content}
	}
	return out
}
