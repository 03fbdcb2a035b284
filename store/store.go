// Package store holds the client-side message log for the active
// conversation: persisted pages fetched from the server plus the
// optimistic entries created at submit time, exposed as one merged,
// sorted sequence.
package store

import (
	"sort"
	"sync"
	"time"

	"rerent-chat-client/api"
)

// Temporary ids start deep in the negative range so they can never
// collide with server-assigned positive ids, and are allocated in
// ascending order so the (created_at, id) sort preserves insertion
// order for entries created in the same instant.
const tempIDBase = -(int64(1) << 40)

// MergeMessages flattens persisted pages and optimistic entries into a
// single view sorted by creation time ascending, message id breaking
// ties. Pure function, safe to recompute on every render.
func MergeMessages(pages [][]api.Message, optimistic []api.Message) []api.Message {
	size := len(optimistic)
	for _, page := range pages {
		size += len(page)
	}
	merged := make([]api.Message, 0, size)
	for _, page := range pages {
		merged = append(merged, page...)
	}
	merged = append(merged, optimistic...)

	sort.SliceStable(merged, func(i, j int) bool {
		if merged[i].CreatedAt.Equal(merged[j].CreatedAt) {
			return merged[i].ID < merged[j].ID
		}
		return merged[i].CreatedAt.Before(merged[j].CreatedAt)
	})
	return merged
}

// Store accumulates message pages and optimistic entries for one
// conversation at a time
type Store struct {
	mu         sync.Mutex
	pages      [][]api.Message // pages[0] is the oldest page loaded so far
	optimistic []api.Message
	hasMore    bool
	nextBefore int64 // cursor for the next older page, 0 when unknown
	nextTempID int64
}

// New creates an empty store
func New() *Store {
	return &Store{nextTempID: tempIDBase}
}

// Reset drops all persisted pages, optimistic entries and cursor state.
// Called when the active conversation changes or the widget closes.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pages = nil
	s.optimistic = nil
	s.hasMore = false
	s.nextBefore = 0
}

// SetLatestPage replaces all persisted pages with the newest page.
// Optimistic entries are untouched.
func (s *Store) SetLatestPage(page *api.MessagesPage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pages = [][]api.Message{page.Data}
	s.setCursor(page.Meta)
}

// PrependOlderPage adds an older history page in front of the persisted
// set without disturbing optimistic entries
func (s *Store) PrependOlderPage(page *api.MessagesPage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pages = append([][]api.Message{page.Data}, s.pages...)
	s.setCursor(page.Meta)
}

func (s *Store) setCursor(meta api.PageMeta) {
	s.hasMore = meta.HasMore
	if meta.NextBeforeID != nil {
		s.nextBefore = *meta.NextBeforeID
	} else {
		s.nextBefore = 0
	}
}

// HasMore reports whether an older page exists on the server
func (s *Store) HasMore() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hasMore
}

// NextBeforeID returns the cursor for the next older page, 0 when none
func (s *Store) NextBeforeID() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextBefore
}

// AddOptimisticPair inserts the submitted user message and an empty
// assistant placeholder, both stamped now and keyed with temporary ids.
// It returns the user and assistant ids.
func (s *Store) AddOptimisticPair(conversationID int64, content string, now time.Time) (int64, int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	userID := s.allocTempID()
	assistantID := s.allocTempID()
	s.optimistic = append(s.optimistic,
		api.Message{
			ID:             userID,
			ConversationID: conversationID,
			Role:           api.RoleUser,
			Content:        content,
			CreatedAt:      now,
			UpdatedAt:      now,
		},
		api.Message{
			ID:             assistantID,
			ConversationID: conversationID,
			Role:           api.RoleAssistant,
			Content:        "",
			CreatedAt:      now,
			UpdatedAt:      now,
		},
	)
	return userID, assistantID
}

func (s *Store) allocTempID() int64 {
	id := s.nextTempID
	s.nextTempID++
	return id
}

// AppendDelta appends a streamed fragment to the optimistic entry with
// the given temporary id. Unknown ids are ignored; the entry may have
// been cleared by a conversation switch while the stream was running.
func (s *Store) AppendDelta(tempID int64, chunk string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.optimistic {
		if s.optimistic[i].ID == tempID {
			s.optimistic[i].Content += chunk
			return
		}
	}
}

// FinalizeAssistant overwrites an optimistic placeholder with the
// authoritative values from a completed stream
func (s *Store) FinalizeAssistant(tempID int64, result api.StreamResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.optimistic {
		if s.optimistic[i].ID == tempID {
			s.optimistic[i].ConversationID = result.ConversationID
			s.optimistic[i].Content = result.Message
			s.optimistic[i].Metadata = result.Metadata
			return
		}
	}
}

// TagConversation retags optimistic entries with a server-resolved
// conversation id, so placeholders created before a brand-new
// conversation existed render under it
func (s *Store) TagConversation(conversationID int64, tempIDs ...int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.optimistic {
		for _, id := range tempIDs {
			if s.optimistic[i].ID == id {
				s.optimistic[i].ConversationID = conversationID
			}
		}
	}
}

// RemoveOptimistic drops the optimistic entries with the given ids
func (s *Store) RemoveOptimistic(tempIDs ...int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.optimistic[:0]
	for _, msg := range s.optimistic {
		remove := false
		for _, id := range tempIDs {
			if msg.ID == id {
				remove = true
				break
			}
		}
		if !remove {
			kept = append(kept, msg)
		}
	}
	s.optimistic = kept
}

// Merged returns the combined, sorted view of persisted and optimistic
// messages
func (s *Store) Merged() []api.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return MergeMessages(s.pages, s.optimistic)
}

// OptimisticCount reports how many optimistic entries are pending
func (s *Store) OptimisticCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.optimistic)
}
