package api

import (
	"encoding/json"
	"time"
)

// Message roles used by the chat API
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Conversation represents a chat conversation as returned by the server
type Conversation struct {
	ID            int64          `json:"id"`
	Title         string         `json:"title"`
	LastMessageAt *time.Time     `json:"last_message_at"`
	LatestMessage *LatestMessage `json:"latest_message,omitempty"`
	MessagesCount int            `json:"messages_count"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// LatestMessage is the newest message preview embedded in a conversation
type LatestMessage struct {
	ID      int64  `json:"id"`
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Message represents a single message in a conversation. Messages fetched
// from the server carry positive ids; optimistic messages created locally
// use negative temporary ids until the authoritative round-trip completes.
type Message struct {
	ID             int64           `json:"id"`
	ConversationID int64           `json:"conversation_id"`
	Role           string          `json:"role"`
	Content        string          `json:"content"`
	Metadata       json.RawMessage `json:"metadata,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// PageMeta carries the backward-pagination cursor for a message page
type PageMeta struct {
	HasMore      bool   `json:"has_more"`
	NextBeforeID *int64 `json:"next_before_id"`
	Limit        int    `json:"limit"`
}

// MessagesPage is one page of persisted messages, oldest first
type MessagesPage struct {
	Data []Message `json:"data"`
	Meta PageMeta  `json:"meta"`
}

// SendRequest is the payload for one assistant submission. ConversationID
// is omitted when zero so the server creates a new conversation.
type SendRequest struct {
	ConversationID int64  `json:"conversation_id,omitempty"`
	Message        string `json:"message"`
}

// Stream event kinds, in the order a successful session delivers them:
// at most one "conversation", zero or more "delta", then exactly one of
// "done" or "error".
const (
	EventConversation = "conversation"
	EventDelta        = "delta"
	EventDone         = "done"
	EventError        = "error"
)

// StreamEvent is one event from the assistant stream. Err is set by the
// client itself for transport-level failures and is never on the wire.
type StreamEvent struct {
	Event          string          `json:"event"`
	ConversationID int64           `json:"conversation_id,omitempty"`
	Content        string          `json:"content,omitempty"`
	Message        string          `json:"message,omitempty"`
	Metadata       json.RawMessage `json:"metadata,omitempty"`
	Usage          json.RawMessage `json:"usage,omitempty"`
	Err            error           `json:"-"`
}

// StreamResult is the authoritative final state of a completed stream.
// It supersedes anything accumulated from delta events.
type StreamResult struct {
	ConversationID int64
	Message        string
	Metadata       json.RawMessage
	Usage          json.RawMessage
}

// Result converts a terminal "done" event into a StreamResult
func (e StreamEvent) Result() StreamResult {
	return StreamResult{
		ConversationID: e.ConversationID,
		Message:        e.Message,
		Metadata:       e.Metadata,
		Usage:          e.Usage,
	}
}
