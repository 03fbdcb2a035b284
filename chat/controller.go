// Package chat orchestrates one assistant submission at a time: optimistic
// insert, stream consumption, and reconciliation against the persisted
// server state.
package chat

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"rerent-chat-client/api"
	"rerent-chat-client/store"
)

// State identifies where the controller is in a submission's lifecycle
type State int

const (
	StateIdle State = iota
	StateSubmitting
	StateStreaming
)

// Send rejections. The UI normally prevents both by disabling the send
// control, so neither is surfaced as a notification.
var (
	ErrEmptyMessage = errors.New("message is empty")
	ErrBusy         = errors.New("a submission is already in flight")
)

// Transport opens one assistant stream per submitted message
type Transport interface {
	StreamMessage(ctx context.Context, req api.SendRequest) <-chan api.StreamEvent
}

// MessageFetcher loads persisted message pages
type MessageFetcher interface {
	Messages(ctx context.Context, conversationID, beforeID int64, limit int) (*api.MessagesPage, error)
}

// Hooks notify the owning view of controller side effects. All fields are
// optional.
type Hooks struct {
	// OnChange fires whenever the merged message view needs re-rendering
	OnChange func()
	// OnConversation fires when a stream resolves the active conversation,
	// including adoption of a brand-new conversation id
	OnConversation func(conversationID int64)
	// OnError fires with a user-facing message when a submission settles
	// with an error
	OnError func(message string)
	// OnStateChange fires on every lifecycle transition
	OnStateChange func(state State)
	// InvalidateConversations asks the owner to refetch the conversation
	// list after a successful send
	InvalidateConversations func()
}

// Controller drives the submission state machine over a message store
type Controller struct {
	mu       sync.Mutex
	state    State
	active   int64 // active conversation id, 0 when unset
	pageSize int

	transport Transport
	fetcher   MessageFetcher
	store     *store.Store
	hooks     Hooks
}

// NewController creates a controller for one chat view
func NewController(transport Transport, fetcher MessageFetcher, st *store.Store, pageSize int, hooks Hooks) *Controller {
	if pageSize <= 0 {
		pageSize = 30
	}
	return &Controller{
		state:     StateIdle,
		pageSize:  pageSize,
		transport: transport,
		fetcher:   fetcher,
		store:     st,
		hooks:     hooks,
	}
}

// State returns the current lifecycle state
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// ActiveConversation returns the active conversation id, 0 when unset
func (c *Controller) ActiveConversation() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// Store exposes the underlying message store for rendering
func (c *Controller) Store() *store.Store {
	return c.store
}

// CanSend reports whether a new submission would be accepted
func (c *Controller) CanSend() bool {
	return c.State() == StateIdle
}

// Send submits one user message and blocks until the session settles.
// Empty input and overlapping submissions are rejected before any state
// change or network activity. On success the store has been refreshed
// from the persisted source and both optimistic entries are gone; on
// error both are gone and the error has been surfaced via hooks.
func (c *Controller) Send(ctx context.Context, text string) (*api.StreamResult, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, ErrEmptyMessage
	}

	c.mu.Lock()
	if c.state != StateIdle {
		c.mu.Unlock()
		return nil, ErrBusy
	}
	c.state = StateSubmitting
	conversationID := c.active
	c.mu.Unlock()
	c.notifyState(StateSubmitting)

	// Optimistic insert happens before any network activity
	userID, assistantID := c.store.AddOptimisticPair(conversationID, trimmed, time.Now())
	c.notifyChange()

	events := c.transport.StreamMessage(ctx, api.SendRequest{
		ConversationID: conversationID,
		Message:        trimmed,
	})
	c.setState(StateStreaming)

	var result *api.StreamResult
	var streamErr error
	for event := range events {
		switch event.Event {
		case api.EventConversation:
			c.adoptConversation(event.ConversationID, userID, assistantID)
		case api.EventDelta:
			c.store.AppendDelta(assistantID, event.Content)
			c.notifyChange()
		case api.EventDone:
			r := event.Result()
			result = &r
		case api.EventError:
			if event.Err != nil {
				streamErr = event.Err
			} else {
				streamErr = errors.New(event.Message)
			}
		}
	}

	if streamErr != nil || result == nil {
		if streamErr == nil {
			streamErr = api.ErrNoTerminator
		}
		c.settleError(userID, assistantID, streamErr)
		return nil, streamErr
	}

	c.settleSuccess(ctx, userID, assistantID, *result)
	return result, nil
}

// adoptConversation records a server-resolved conversation id and retags
// the optimistic placeholders so they render under the now-current
// conversation
func (c *Controller) adoptConversation(conversationID int64, tempIDs ...int64) {
	c.mu.Lock()
	if c.active == 0 {
		c.active = conversationID
	}
	c.mu.Unlock()

	c.store.TagConversation(conversationID, tempIDs...)
	if c.hooks.OnConversation != nil {
		c.hooks.OnConversation(conversationID)
	}
	c.notifyChange()
}

// settleSuccess reconciles the placeholders with the authoritative
// message and refreshes the persisted page so the merged view shows the
// saved turns exactly once. When the user has switched to another
// conversation while the stream was running, the store belongs to that
// conversation now; settlement must not reactivate the stream's target
// or overwrite the page, only refresh the conversation list.
func (c *Controller) settleSuccess(ctx context.Context, userID, assistantID int64, result api.StreamResult) {
	c.mu.Lock()
	current := c.active
	c.mu.Unlock()
	if current != 0 && current != result.ConversationID {
		if c.hooks.InvalidateConversations != nil {
			c.hooks.InvalidateConversations()
		}
		c.setState(StateIdle)
		return
	}

	c.store.FinalizeAssistant(assistantID, result)
	c.adoptConversation(result.ConversationID, userID, assistantID)

	c.mu.Lock()
	if c.active == 0 || c.active == result.ConversationID {
		c.active = result.ConversationID
	}
	c.mu.Unlock()

	if c.hooks.InvalidateConversations != nil {
		c.hooks.InvalidateConversations()
	}

	page, err := c.fetcher.Messages(ctx, result.ConversationID, 0, c.pageSize)
	if err == nil {
		c.store.SetLatestPage(page)
		c.store.RemoveOptimistic(userID, assistantID)
	} else if c.hooks.OnError != nil {
		// The finalized placeholder stays visible; only the refresh failed
		c.hooks.OnError("Could not refresh the conversation. Pull older messages to retry.")
	}

	c.setState(StateIdle)
	c.notifyChange()
}

// settleError rolls back both optimistic entries and surfaces the error.
// No partial assistant content survives.
func (c *Controller) settleError(userID, assistantID int64, err error) {
	c.store.RemoveOptimistic(userID, assistantID)
	c.setState(StateIdle)
	c.notifyChange()
	if c.hooks.OnError != nil {
		c.hooks.OnError(err.Error())
	}
}

// SwitchConversation makes another conversation active and loads its
// newest page. Optimistic entries are conversation-scoped, so the store
// is reset first; a stream still running for the previous conversation
// keeps going in the background and simply has nothing left to update.
func (c *Controller) SwitchConversation(ctx context.Context, conversationID int64) error {
	c.mu.Lock()
	c.active = conversationID
	c.mu.Unlock()

	c.store.Reset()
	c.notifyChange()
	if conversationID == 0 {
		return nil
	}

	page, err := c.fetcher.Messages(ctx, conversationID, 0, c.pageSize)
	if err != nil {
		return err
	}
	c.store.SetLatestPage(page)
	c.notifyChange()
	return nil
}

// LoadOlder fetches the next older history page, if any
func (c *Controller) LoadOlder(ctx context.Context) error {
	c.mu.Lock()
	conversationID := c.active
	c.mu.Unlock()
	if conversationID == 0 || !c.store.HasMore() {
		return nil
	}

	page, err := c.fetcher.Messages(ctx, conversationID, c.store.NextBeforeID(), c.pageSize)
	if err != nil {
		return err
	}
	c.store.PrependOlderPage(page)
	c.notifyChange()
	return nil
}

func (c *Controller) setState(state State) {
	c.mu.Lock()
	c.state = state
	c.mu.Unlock()
	c.notifyState(state)
}

func (c *Controller) notifyState(state State) {
	if c.hooks.OnStateChange != nil {
		c.hooks.OnStateChange(state)
	}
}

func (c *Controller) notifyChange() {
	if c.hooks.OnChange != nil {
		c.hooks.OnChange()
	}
}
