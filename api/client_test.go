package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func testClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, func() string { return "test-token" }, 5*time.Second)
}

func TestListConversations(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/chat/conversations" {
			t.Errorf("Unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Errorf("Missing bearer token, got %q", got)
		}
		if got := r.Header.Get("Accept"); got != "application/json" {
			t.Errorf("Unexpected Accept header: %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":[{"id":9,"title":"Newest"},{"id":4,"title":"Older"}]}`))
	})

	list, err := c.ListConversations(context.Background())
	if err != nil {
		t.Fatalf("ListConversations failed: %v", err)
	}
	if len(list) != 2 || list[0].ID != 9 || list[1].ID != 4 {
		t.Errorf("Unexpected conversations: %+v", list)
	}
}

func TestCreateConversation(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/chat/conversations" {
			t.Errorf("Unexpected request: %s %s", r.Method, r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"data":{"id":11,"title":""}}`))
	})

	conv, err := c.CreateConversation(context.Background())
	if err != nil {
		t.Fatalf("CreateConversation failed: %v", err)
	}
	if conv.ID != 11 {
		t.Errorf("Expected conversation 11, got %d", conv.ID)
	}
}

func TestMessagesPagination(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/conversations/7/messages" {
			t.Errorf("Unexpected path: %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("before_id") != "50" {
			t.Errorf("Expected before_id=50, got %q", q.Get("before_id"))
		}
		if q.Get("limit") != "20" {
			t.Errorf("Expected limit=20, got %q", q.Get("limit"))
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"data":[
				{"id":41,"conversation_id":7,"role":"user","content":"q"},
				{"id":42,"conversation_id":7,"role":"assistant","content":"a"}
			],
			"meta":{"has_more":true,"next_before_id":41,"limit":20}
		}`))
	})

	page, err := c.Messages(context.Background(), 7, 50, 20)
	if err != nil {
		t.Fatalf("Messages failed: %v", err)
	}
	if len(page.Data) != 2 || page.Data[0].ID != 41 {
		t.Errorf("Unexpected page: %+v", page.Data)
	}
	if !page.Meta.HasMore || page.Meta.NextBeforeID == nil || *page.Meta.NextBeforeID != 41 {
		t.Errorf("Unexpected meta: %+v", page.Meta)
	}
}

func TestMessagesNewestPageOmitsCursor(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Has("before_id") {
			t.Error("Newest page request must not send before_id")
		}
		w.Write([]byte(`{"data":[],"meta":{"has_more":false,"next_before_id":null,"limit":30}}`))
	})

	page, err := c.Messages(context.Background(), 7, 0, 30)
	if err != nil {
		t.Fatalf("Messages failed: %v", err)
	}
	if page.Meta.NextBeforeID != nil {
		t.Errorf("Expected nil cursor, got %d", *page.Meta.NextBeforeID)
	}
}

func TestErrorStatusSurfaces(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"message":"Conversation not found."}`))
	})

	if _, err := c.Messages(context.Background(), 99, 0, 30); err == nil {
		t.Fatal("Expected an error for a 404 response")
	}
}

func TestAuthenticated(t *testing.T) {
	token := ""
	c := NewClient("http://localhost", func() string { return token }, time.Second)

	if c.Authenticated() {
		t.Error("Empty token must report unauthenticated")
	}
	token = "abc"
	if !c.Authenticated() {
		t.Error("Token changes must take effect without rebuilding the client")
	}
}
