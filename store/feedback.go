package store

import "time"

// Reaction values accepted for message feedback.
const (
	ReactionThumbsUp   = "thumbs_up"
	ReactionThumbsDown = "thumbs_down"
)

// Feedback represents a single user reaction to an assistant message.
// Feedback entries are append-only and cleared only in bulk.
type Feedback struct {
	ID        string    `json:"id"`
	MessageID string    `json:"messageId"`
	Reaction  string    `json:"reaction"`
	Text      string    `json:"text,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// FeedbackStats counts feedback entries by reaction.
type FeedbackStats struct {
	Total      int            `json:"total"`
	ByReaction map[string]int `json:"byReaction"`
}
