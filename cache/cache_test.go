package cache

import (
	"path/filepath"
	"testing"
	"time"

	"rerent-chat-client/api"
)

func testCache(t *testing.T) *Cache {
	t.Helper()
	c, err := Open(filepath.Join(t.TempDir(), "chat-cache.db"))
	if err != nil {
		t.Fatalf("Failed to open cache: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestConversationsRoundTrip(t *testing.T) {
	c := testCache(t)
	at := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	in := []api.Conversation{
		{ID: 9, Title: "Newest", LastMessageAt: &at, LatestMessage: &api.LatestMessage{Role: api.RoleAssistant, Content: "sure"}, MessagesCount: 4},
		{ID: 4, Title: "", MessagesCount: 0},
	}
	if err := c.ReplaceConversations(in); err != nil {
		t.Fatalf("ReplaceConversations failed: %v", err)
	}

	out, err := c.Conversations()
	if err != nil {
		t.Fatalf("Conversations failed: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("Expected 2 conversations, got %d", len(out))
	}
	if out[0].ID != 9 || out[1].ID != 4 {
		t.Errorf("Server order must be preserved, got %d, %d", out[0].ID, out[1].ID)
	}
	if out[0].LastMessageAt == nil || !out[0].LastMessageAt.Equal(at) {
		t.Errorf("Lost last_message_at: %v", out[0].LastMessageAt)
	}
	if out[0].LatestMessage == nil || out[0].LatestMessage.Content != "sure" {
		t.Errorf("Lost latest message: %+v", out[0].LatestMessage)
	}
	if out[1].LastMessageAt != nil || out[1].LatestMessage != nil {
		t.Errorf("Empty conversation gained data: %+v", out[1])
	}
}

func TestReplaceConversationsDropsStale(t *testing.T) {
	c := testCache(t)

	if err := c.ReplaceConversations([]api.Conversation{{ID: 1}, {ID: 2}}); err != nil {
		t.Fatalf("ReplaceConversations failed: %v", err)
	}
	if err := c.ReplaceConversations([]api.Conversation{{ID: 2}}); err != nil {
		t.Fatalf("ReplaceConversations failed: %v", err)
	}

	out, err := c.Conversations()
	if err != nil {
		t.Fatalf("Conversations failed: %v", err)
	}
	if len(out) != 1 || out[0].ID != 2 {
		t.Errorf("Stale entries must be dropped, got %+v", out)
	}
}

func TestMessagesRoundTrip(t *testing.T) {
	c := testCache(t)
	at := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	in := []api.Message{
		{ID: 10, ConversationID: 7, Role: api.RoleUser, Content: "hi", CreatedAt: at, UpdatedAt: at},
		{ID: 11, ConversationID: 7, Role: api.RoleAssistant, Content: "hello", Metadata: []byte(`{"model":"test"}`), CreatedAt: at.Add(time.Second), UpdatedAt: at.Add(time.Second)},
	}
	if err := c.ReplaceMessages(7, in); err != nil {
		t.Fatalf("ReplaceMessages failed: %v", err)
	}

	out, err := c.Messages(7)
	if err != nil {
		t.Fatalf("Messages failed: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("Expected 2 messages, got %d", len(out))
	}
	if out[0].ID != 10 || out[1].ID != 11 {
		t.Errorf("Expected ascending id order, got %d, %d", out[0].ID, out[1].ID)
	}
	if string(out[1].Metadata) != `{"model":"test"}` {
		t.Errorf("Lost metadata: %s", out[1].Metadata)
	}
	if !out[0].CreatedAt.Equal(at) {
		t.Errorf("Lost created_at: %v", out[0].CreatedAt)
	}
}

func TestReplaceMessagesSkipsOptimistic(t *testing.T) {
	c := testCache(t)
	at := time.Now()

	in := []api.Message{
		{ID: 10, ConversationID: 7, Role: api.RoleUser, Content: "saved", CreatedAt: at, UpdatedAt: at},
		{ID: -100, ConversationID: 7, Role: api.RoleUser, Content: "pending", CreatedAt: at, UpdatedAt: at},
	}
	if err := c.ReplaceMessages(7, in); err != nil {
		t.Fatalf("ReplaceMessages failed: %v", err)
	}

	out, err := c.Messages(7)
	if err != nil {
		t.Fatalf("Messages failed: %v", err)
	}
	if len(out) != 1 || out[0].ID != 10 {
		t.Errorf("Optimistic entries must never be cached, got %+v", out)
	}
}

func TestReplaceMessagesScopedToConversation(t *testing.T) {
	c := testCache(t)
	at := time.Now()

	if err := c.ReplaceMessages(7, []api.Message{{ID: 10, Role: api.RoleUser, Content: "a", CreatedAt: at, UpdatedAt: at}}); err != nil {
		t.Fatalf("ReplaceMessages failed: %v", err)
	}
	if err := c.ReplaceMessages(8, []api.Message{{ID: 20, Role: api.RoleUser, Content: "b", CreatedAt: at, UpdatedAt: at}}); err != nil {
		t.Fatalf("ReplaceMessages failed: %v", err)
	}
	// Refreshing one conversation must not touch the other
	if err := c.ReplaceMessages(7, nil); err != nil {
		t.Fatalf("ReplaceMessages failed: %v", err)
	}

	other, err := c.Messages(8)
	if err != nil {
		t.Fatalf("Messages failed: %v", err)
	}
	if len(other) != 1 || other[0].ID != 20 {
		t.Errorf("Other conversation lost its cache: %+v", other)
	}
}

func TestClear(t *testing.T) {
	c := testCache(t)
	at := time.Now()

	if err := c.ReplaceConversations([]api.Conversation{{ID: 1}}); err != nil {
		t.Fatalf("ReplaceConversations failed: %v", err)
	}
	if err := c.ReplaceMessages(1, []api.Message{{ID: 10, Role: api.RoleUser, Content: "a", CreatedAt: at, UpdatedAt: at}}); err != nil {
		t.Fatalf("ReplaceMessages failed: %v", err)
	}

	if err := c.Clear(); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}

	convs, err := c.Conversations()
	if err != nil {
		t.Fatalf("Conversations failed: %v", err)
	}
	msgs, err := c.Messages(1)
	if err != nil {
		t.Fatalf("Messages failed: %v", err)
	}
	if len(convs) != 0 || len(msgs) != 0 {
		t.Errorf("Clear must drop everything, got %d conversations, %d messages", len(convs), len(msgs))
	}
}
