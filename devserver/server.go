// Package devserver implements the chat endpoint contract the client
// consumes, backed by in-memory state. It exists for local development
// and integration tests; the production backend is a separate system.
package devserver

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	defaultPageLimit = 30
	maxPageLimit     = 100
	maxTitleRunes    = 80
)

type conversation struct {
	ID            int64      `json:"id"`
	Title         string     `json:"title"`
	LastMessageAt *time.Time `json:"last_message_at"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

type message struct {
	ID             int64           `json:"id"`
	ConversationID int64           `json:"conversation_id"`
	Role           string          `json:"role"`
	Content        string          `json:"content"`
	Metadata       json.RawMessage `json:"metadata"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// Server holds the in-memory chat state and the assistant responder
type Server struct {
	mu            sync.Mutex
	conversations map[int64]*conversation
	messages      map[int64][]*message // conversation id -> ascending by id
	nextConvID    int64
	nextMsgID     int64

	responder Responder
	token     string
}

// New creates a server. An empty token disables authentication; otherwise
// requests must carry it as a bearer token.
func New(responder Responder, token string) *Server {
	if responder == nil {
		responder = NewScriptedResponder()
	}
	return &Server{
		conversations: make(map[int64]*conversation),
		messages:      make(map[int64][]*message),
		nextConvID:    1,
		nextMsgID:     1,
		responder:     responder,
		token:         token,
	}
}

// Router builds the gin engine with all chat routes mounted under /chat
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	chat := router.Group("/chat", s.authMiddleware())
	chat.GET("/conversations", s.listConversations)
	chat.POST("/conversations", s.createConversation)
	chat.GET("/conversations/:id/messages", s.listMessages)
	chat.POST("/assistant", s.assistant)

	return router
}

func (s *Server) authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.token == "" {
			c.Next()
			return
		}
		header := c.GetHeader("Authorization")
		if header != "Bearer "+s.token {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Unauthenticated."})
			return
		}
		c.Next()
	}
}

// listConversations returns all conversations ordered by last activity,
// newest first, with the latest message embedded as a preview
func (s *Server) listConversations(c *gin.Context) {
	s.mu.Lock()
	list := make([]*conversation, 0, len(s.conversations))
	for _, conv := range s.conversations {
		list = append(list, conv)
	}
	sort.Slice(list, func(i, j int) bool {
		a, b := list[i], list[j]
		switch {
		case a.LastMessageAt == nil && b.LastMessageAt == nil:
			return a.ID > b.ID
		case a.LastMessageAt == nil:
			return false
		case b.LastMessageAt == nil:
			return true
		case a.LastMessageAt.Equal(*b.LastMessageAt):
			return a.ID > b.ID
		default:
			return a.LastMessageAt.After(*b.LastMessageAt)
		}
	})

	data := make([]gin.H, 0, len(list))
	for _, conv := range list {
		item := gin.H{
			"id":              conv.ID,
			"title":           conv.Title,
			"last_message_at": conv.LastMessageAt,
			"messages_count":  len(s.messages[conv.ID]),
			"created_at":      conv.CreatedAt,
			"updated_at":      conv.UpdatedAt,
		}
		if msgs := s.messages[conv.ID]; len(msgs) > 0 {
			latest := msgs[len(msgs)-1]
			item["latest_message"] = gin.H{
				"id":      latest.ID,
				"role":    latest.Role,
				"content": latest.Content,
			}
		}
		data = append(data, item)
	}
	s.mu.Unlock()

	c.JSON(http.StatusOK, gin.H{
		"data": data,
		"meta": gin.H{
			"current_page": 1,
			"last_page":    1,
			"per_page":     len(data),
			"total":        len(data),
		},
	})
}

func (s *Server) createConversation(c *gin.Context) {
	var req struct {
		Title *string `json:"title"`
	}
	// An empty body is fine
	_ = c.ShouldBindJSON(&req)

	s.mu.Lock()
	conv := s.newConversationLocked("")
	if req.Title != nil {
		conv.Title = *req.Title
	}
	s.mu.Unlock()

	c.JSON(http.StatusCreated, gin.H{"data": gin.H{
		"id":              conv.ID,
		"title":           conv.Title,
		"last_message_at": conv.LastMessageAt,
		"messages_count":  0,
		"created_at":      conv.CreatedAt,
		"updated_at":      conv.UpdatedAt,
	}})
}

// listMessages pages backward through a conversation's history: newest
// first with id < before_id, probing limit+1 rows for has_more, returned
// ascending with next_before_id pointing at the oldest id in the page
func (s *Server) listMessages(c *gin.Context) {
	conversationID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"message": "Not found."})
		return
	}

	limit := defaultPageLimit
	if raw := c.Query("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			limit = v
		}
	}
	if limit < 1 {
		limit = 1
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}

	var beforeID int64
	if raw := c.Query("before_id"); raw != "" {
		beforeID, _ = strconv.ParseInt(raw, 10, 64)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.conversations[conversationID]; !ok {
		c.JSON(http.StatusNotFound, gin.H{"message": "Not found."})
		return
	}

	all := s.messages[conversationID]
	// Walk backward from the newest, collecting up to limit+1 matches
	page := make([]*message, 0, limit+1)
	for i := len(all) - 1; i >= 0 && len(page) <= limit; i-- {
		if beforeID > 0 && all[i].ID >= beforeID {
			continue
		}
		page = append(page, all[i])
	}
	hasMore := len(page) > limit
	if hasMore {
		page = page[:limit]
	}
	// Back to ascending order
	for i, j := 0, len(page)-1; i < j; i, j = i+1, j-1 {
		page[i], page[j] = page[j], page[i]
	}

	var nextBeforeID *int64
	if hasMore && len(page) > 0 {
		nextBeforeID = &page[0].ID
	}

	c.JSON(http.StatusOK, gin.H{
		"data": page,
		"meta": gin.H{
			"has_more":       hasMore,
			"next_before_id": nextBeforeID,
			"limit":          limit,
		},
	})
}

// newConversationLocked creates a conversation; callers hold s.mu
func (s *Server) newConversationLocked(title string) *conversation {
	now := time.Now().UTC()
	conv := &conversation{
		ID:        s.nextConvID,
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.nextConvID++
	s.conversations[conv.ID] = conv
	return conv
}

// appendMessageLocked stores a message and bumps the conversation's last
// activity; callers hold s.mu
func (s *Server) appendMessageLocked(conv *conversation, role, content string, metadata json.RawMessage) *message {
	now := time.Now().UTC()
	msg := &message{
		ID:             s.nextMsgID,
		ConversationID: conv.ID,
		Role:           role,
		Content:        content,
		Metadata:       metadata,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	s.nextMsgID++
	s.messages[conv.ID] = append(s.messages[conv.ID], msg)
	conv.LastMessageAt = &now
	conv.UpdatedAt = now
	return msg
}

// deriveTitle truncates the first message into a conversation title
func deriveTitle(message string) string {
	runes := []rune(strings.TrimSpace(message))
	if len(runes) > maxTitleRunes {
		runes = runes[:maxTitleRunes]
	}
	return string(runes)
}

// sseWriter emits "data: <json>" frames and flushes after each one
type sseWriter struct {
	w http.ResponseWriter
	f http.Flusher
}

func newSSEWriter(c *gin.Context) (*sseWriter, error) {
	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("response writer does not support streaming")
	}
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Writer.WriteHeader(http.StatusOK)
	return &sseWriter{w: c.Writer, f: flusher}, nil
}

func (s *sseWriter) event(payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", data); err != nil {
		return fmt.Errorf("failed to write event: %w", err)
	}
	s.f.Flush()
	return nil
}
