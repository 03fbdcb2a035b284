package api

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// ErrNoTerminator is reported when the server closes the stream without a
// done or error event.
var ErrNoTerminator = errors.New("stream ended without a terminal event")

// StreamMessage submits one user message and returns a channel of stream
// events. The channel is closed after a terminal event; exactly one of
// "done" or "error" is always delivered, and a "conversation" event, when
// present, arrives before any delta.
func (c *Client) StreamMessage(ctx context.Context, req SendRequest) <-chan StreamEvent {
	events := make(chan StreamEvent)

	go func() {
		defer close(events)

		if err := c.streamRequest(ctx, req, events); err != nil {
			events <- StreamEvent{Event: EventError, Message: err.Error(), Err: err}
		}
	}()

	return events
}

// streamRequest performs the SSE request and forwards events. It returns
// nil once a terminal event has been sent, so any non-nil error means the
// caller still owes the channel an error event.
func (c *Client) streamRequest(ctx context.Context, req SendRequest, events chan<- StreamEvent) error {
	reqBody, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/assistant", bytes.NewReader(reqBody))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(httpReq)
	httpReq.Header.Set("Accept", "text/event-stream")

	// The REST client's short timeout would cut long generations off, so
	// streaming uses a transport-only client and relies on ctx.
	streamClient := &http.Client{Transport: c.client.Transport}
	resp, err := streamClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("API error (status %d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		// SSE framing: payload lines are "data: {...}", frames separated
		// by blank lines. Each data line holds one complete JSON event.
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "" {
			continue
		}

		var event StreamEvent
		if err := json.Unmarshal([]byte(data), &event); err != nil {
			// Skip malformed events; a missing terminator is caught below
			continue
		}

		switch event.Event {
		case EventConversation, EventDelta:
			events <- event
		case EventDone:
			events <- event
			return nil
		case EventError:
			if event.Message == "" {
				event.Message = "assistant request failed"
			}
			event.Err = errors.New(event.Message)
			events <- event
			return nil
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("stream read error: %w", err)
	}
	return ErrNoTerminator
}
