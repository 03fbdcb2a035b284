package devserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sashabaranov/go-openai"
)

// Turn is one prior message handed to the responder as context
type Turn struct {
	Role    string
	Content string
}

// StreamChunk is one piece of an assistant reply
type StreamChunk struct {
	Content string
	Done    bool
	Err     error
}

// Responder produces the assistant reply for one turn, streamed in chunks
type Responder interface {
	StreamReply(ctx context.Context, history []Turn) (<-chan StreamChunk, error)
}

// assistant handles one streamed submission: resolve the conversation,
// persist the user turn, emit conversation/delta events while the reply
// streams, persist the assistant turn, and emit done. Event ordering is
// part of the contract: conversation first, then deltas, then exactly one
// of done or error.
func (s *Server) assistant(c *gin.Context) {
	var req struct {
		ConversationID int64  `json:"conversation_id"`
		Message        string `json:"message"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Message) == "" {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"message": "The message field is required."})
		return
	}

	s.mu.Lock()
	conv, ok := s.conversations[req.ConversationID]
	if req.ConversationID != 0 && !ok {
		s.mu.Unlock()
		c.JSON(http.StatusNotFound, gin.H{"message": "Not found."})
		return
	}
	if conv == nil {
		conv = s.newConversationLocked(deriveTitle(req.Message))
	}
	s.appendMessageLocked(conv, "user", req.Message, nil)
	history := make([]Turn, 0, len(s.messages[conv.ID]))
	for _, msg := range s.messages[conv.ID] {
		history = append(history, Turn{Role: msg.Role, Content: msg.Content})
	}
	s.mu.Unlock()

	sse, err := newSSEWriter(c)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}

	if err := sse.event(gin.H{"event": "conversation", "conversation_id": conv.ID}); err != nil {
		return
	}

	chunks, err := s.responder.StreamReply(c.Request.Context(), history)
	if err != nil {
		_ = sse.event(gin.H{"event": "error", "message": "Assistant is unavailable. Please try again later."})
		return
	}
	// Drain on early return so the responder goroutine can finish
	defer func() {
		for range chunks {
		}
	}()

	var reply strings.Builder
	for chunk := range chunks {
		if chunk.Err != nil {
			_ = sse.event(gin.H{"event": "error", "message": "Assistant is unavailable. Please try again later."})
			return
		}
		if chunk.Content != "" {
			reply.WriteString(chunk.Content)
			if err := sse.event(gin.H{"event": "delta", "content": chunk.Content}); err != nil {
				return
			}
		}
		if chunk.Done {
			break
		}
	}

	metadata := json.RawMessage(`{"source":"devserver"}`)
	s.mu.Lock()
	s.appendMessageLocked(conv, "assistant", reply.String(), metadata)
	s.mu.Unlock()

	_ = sse.event(gin.H{
		"event":           "done",
		"conversation_id": conv.ID,
		"message":         reply.String(),
		"metadata":        metadata,
		"usage":           nil,
	})
}

// ScriptedResponder answers from a fixed script, falling back to an echo.
// Useful for tests and offline development.
type ScriptedResponder struct {
	replies map[string]string
}

// NewScriptedResponder creates a responder with the default script
func NewScriptedResponder() *ScriptedResponder {
	return &ScriptedResponder{replies: map[string]string{
		"best seller": "Top rented products:\n1. Camping tent - 120 rentals\n2. Projector - 96 rentals",
	}}
}

// Script registers a canned reply for an exact user message
func (r *ScriptedResponder) Script(message, reply string) {
	r.replies[strings.ToLower(strings.TrimSpace(message))] = reply
}

// StreamReply streams the scripted or echoed reply in small chunks
func (r *ScriptedResponder) StreamReply(ctx context.Context, history []Turn) (<-chan StreamChunk, error) {
	if len(history) == 0 {
		return nil, errors.New("empty history")
	}
	last := history[len(history)-1].Content
	reply, ok := r.replies[strings.ToLower(strings.TrimSpace(last))]
	if !ok {
		reply = fmt.Sprintf("You asked: %q. The ReRent assistant will get back to you.", last)
	}

	chunks := make(chan StreamChunk)
	go func() {
		defer close(chunks)
		const chunkSize = 12
		runes := []rune(reply)
		for start := 0; start < len(runes); start += chunkSize {
			end := start + chunkSize
			if end > len(runes) {
				end = len(runes)
			}
			select {
			case chunks <- StreamChunk{Content: string(runes[start:end])}:
			case <-ctx.Done():
				chunks <- StreamChunk{Err: ctx.Err()}
				return
			}
		}
		chunks <- StreamChunk{Done: true}
	}()
	return chunks, nil
}

// OpenAIResponder relays the conversation to an OpenAI-compatible API,
// the same service class the production backend fronts
type OpenAIResponder struct {
	client *openai.Client
	model  string
}

// NewOpenAIResponder creates a responder for the given endpoint and model
func NewOpenAIResponder(apiKey, baseURL, model string) *OpenAIResponder {
	clientConfig := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		clientConfig.BaseURL = baseURL
	}
	if model == "" {
		model = openai.GPT3Dot5Turbo
	}
	return &OpenAIResponder{
		client: openai.NewClientWithConfig(clientConfig),
		model:  model,
	}
}

// StreamReply streams the model's completion
func (r *OpenAIResponder) StreamReply(ctx context.Context, history []Turn) (<-chan StreamChunk, error) {
	messages := make([]openai.ChatCompletionMessage, 0, len(history)+1)
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: "You are the assistant for the ReRent rental marketplace. Answer briefly and helpfully.",
	})
	for _, turn := range history {
		messages = append(messages, openai.ChatCompletionMessage{Role: turn.Role, Content: turn.Content})
	}

	stream, err := r.client.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
		Model:    r.model,
		Messages: messages,
		Stream:   true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create stream: %w", err)
	}

	chunks := make(chan StreamChunk)
	go func() {
		defer close(chunks)
		defer stream.Close()

		for {
			response, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				chunks <- StreamChunk{Done: true}
				return
			}
			if err != nil {
				chunks <- StreamChunk{Err: fmt.Errorf("stream error: %w", err)}
				return
			}
			if len(response.Choices) > 0 {
				if content := response.Choices[0].Delta.Content; content != "" {
					chunks <- StreamChunk{Content: content}
				}
			}
		}
	}()
	return chunks, nil
}
