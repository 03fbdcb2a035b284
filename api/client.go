package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// TokenFunc returns the current bearer token, or "" when no user is
// signed in. It is consulted on every request so a token refresh or
// logout takes effect without rebuilding the client.
type TokenFunc func() string

// Client talks to the ReRent chat endpoints
type Client struct {
	baseURL string
	token   TokenFunc
	client  *http.Client
}

// NewClient creates a new API client. The timeout applies to plain REST
// calls only; streaming requests manage their own deadline via context.
func NewClient(baseURL string, token TokenFunc, timeout time.Duration) *Client {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	if token == nil {
		token = func() string { return "" }
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  &http.Client{Timeout: timeout},
	}
}

// Authenticated reports whether a bearer token is currently available
func (c *Client) Authenticated() bool {
	return c.token() != ""
}

// ListConversations fetches the user's conversations, newest activity first
func (c *Client) ListConversations(ctx context.Context) ([]Conversation, error) {
	var out struct {
		Data []Conversation `json:"data"`
	}
	if err := c.getJSON(ctx, "/chat/conversations", nil, &out); err != nil {
		return nil, err
	}
	return out.Data, nil
}

// CreateConversation requests a new empty conversation
func (c *Client) CreateConversation(ctx context.Context) (*Conversation, error) {
	body, err := c.do(ctx, http.MethodPost, "/chat/conversations", strings.NewReader("{}"))
	if err != nil {
		return nil, err
	}
	var out struct {
		Data Conversation `json:"data"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("failed to decode conversation: %w", err)
	}
	return &out.Data, nil
}

// Messages fetches one page of a conversation's history. A zero beforeID
// fetches the newest page; otherwise only messages with id < beforeID are
// returned. Pages come back oldest first.
func (c *Client) Messages(ctx context.Context, conversationID, beforeID int64, limit int) (*MessagesPage, error) {
	params := url.Values{}
	if beforeID > 0 {
		params.Set("before_id", strconv.FormatInt(beforeID, 10))
	}
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}
	var page MessagesPage
	path := fmt.Sprintf("/chat/conversations/%d/messages", conversationID)
	if err := c.getJSON(ctx, path, params, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// getJSON performs a GET request and decodes the JSON response into v
func (c *Client) getJSON(ctx context.Context, path string, params url.Values, v interface{}) error {
	if len(params) > 0 {
		path = path + "?" + params.Encode()
	}
	body, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// do performs one request and returns the response body
func (c *Client) do(ctx context.Context, method, path string, body io.Reader) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}
	return data, nil
}

// setHeaders sets the common headers for chat API requests
func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
	if tok := c.token(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
}
