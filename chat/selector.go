package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"rerent-chat-client/api"
)

// ErrNotAuthenticated is returned when conversation operations run
// without a signed-in user.
var ErrNotAuthenticated = errors.New("not authenticated")

// ConversationAPI is the part of the API client the selector consumes
type ConversationAPI interface {
	ListConversations(ctx context.Context) ([]api.Conversation, error)
	CreateConversation(ctx context.Context) (*api.Conversation, error)
	Authenticated() bool
}

// Selector tracks the available conversations for the widget. The server
// returns them ordered by last activity, newest first; the selector keeps
// that order.
type Selector struct {
	mu   sync.Mutex
	api  ConversationAPI
	list []api.Conversation
}

// NewSelector creates a selector backed by the given API
func NewSelector(capi ConversationAPI) *Selector {
	return &Selector{api: capi}
}

// Refresh refetches the conversation list. Gated on authentication so the
// widget can open signed-out without issuing requests.
func (s *Selector) Refresh(ctx context.Context) ([]api.Conversation, error) {
	if !s.api.Authenticated() {
		return nil, ErrNotAuthenticated
	}
	list, err := s.api.ListConversations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	s.mu.Lock()
	s.list = list
	s.mu.Unlock()
	return list, nil
}

// Conversations returns the last fetched list
func (s *Selector) Conversations() []api.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]api.Conversation, len(s.list))
	copy(out, s.list)
	return out
}

// AutoSelect picks the conversation to activate when the widget opens: the
// current one if still set, otherwise the most recent one. Returns 0 when
// no conversation exists yet; the first send will create one implicitly.
func (s *Selector) AutoSelect(activeID int64) int64 {
	if activeID != 0 {
		return activeID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.list) == 0 {
		return 0
	}
	return s.list[0].ID
}

// Create requests a new empty conversation and refreshes the list so it
// shows up immediately
func (s *Selector) Create(ctx context.Context) (*api.Conversation, error) {
	if !s.api.Authenticated() {
		return nil, ErrNotAuthenticated
	}
	conv, err := s.api.CreateConversation(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create conversation: %w", err)
	}
	if _, err := s.Refresh(ctx); err != nil {
		// The conversation exists either way; the list catches up on the
		// next refresh
		return conv, nil
	}
	return conv, nil
}

// DisplayName derives the label shown for a conversation: its title when
// set, otherwise a preview of the latest message, otherwise a numbered
// fallback.
func DisplayName(conv api.Conversation) string {
	if title := strings.TrimSpace(conv.Title); title != "" {
		return title
	}
	if conv.LatestMessage != nil {
		if latest := strings.TrimSpace(conv.LatestMessage.Content); latest != "" {
			runes := []rune(latest)
			if len(runes) > 40 {
				return string(runes[:40]) + "…"
			}
			return latest
		}
	}
	return fmt.Sprintf("Conversation #%d", conv.ID)
}
