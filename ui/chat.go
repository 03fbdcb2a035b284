package ui

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"

	"rerent-chat-client/api"
	"rerent-chat-client/chat"
	"rerent-chat-client/store"
	"rerent-chat-client/utils"
)

// ChatView renders the assistant widget: conversation picker, message
// log, input box and send control. It is a pure view over the
// controller's state.
type ChatView struct {
	app *App

	controller *chat.Controller
	selector   *chat.Selector

	conversationIDs []int64

	conversationSelect *widget.Select
	newConvButton      *widget.Button
	loadOlderButton    *widget.Button
	messagesBox        *fyne.Container
	scroll             *container.Scroll
	inputEntry         *widget.Entry
	sendButton         *widget.Button
	statusLabel        *widget.Label
	status             statusTracker
}

// NewChatView creates the chat view and wires the controller hooks
func NewChatView(app *App) *ChatView {
	cv := &ChatView{app: app}

	cv.selector = chat.NewSelector(app.client)
	cv.controller = chat.NewController(app.client, app.client, store.New(), app.config.Chat.PageSize, chat.Hooks{
		OnChange: cv.renderMessages,
		OnConversation: func(conversationID int64) {
			cv.refreshConversations()
		},
		OnError: func(message string) {
			cv.showStatus(message)
		},
		OnStateChange: func(state chat.State) {
			fyne.Do(func() {
				cv.sendButton.Disable()
				if state == chat.StateIdle {
					cv.sendButton.Enable()
				}
			})
		},
		InvalidateConversations: func() {
			cv.refreshConversations()
		},
	})

	return cv
}

// Build assembles the widget layout
func (cv *ChatView) Build() fyne.CanvasObject {
	cv.conversationSelect = widget.NewSelect(nil, cv.onConversationPicked)
	cv.conversationSelect.PlaceHolder = "Select a conversation"

	cv.newConvButton = widget.NewButton("+", cv.onNewConversation)

	cv.loadOlderButton = widget.NewButton("Load older messages", cv.onLoadOlder)
	cv.loadOlderButton.Hide()

	cv.messagesBox = container.NewVBox()
	cv.scroll = container.NewScroll(container.NewVBox(cv.loadOlderButton, cv.messagesBox))

	cv.inputEntry = widget.NewMultiLineEntry()
	cv.inputEntry.SetPlaceHolder("Ask the ReRent assistant…")
	cv.inputEntry.Wrapping = fyne.TextWrapWord
	cv.inputEntry.SetMinRowsVisible(2)

	cv.sendButton = widget.NewButton("Send", cv.onSend)

	cv.statusLabel = widget.NewLabel("")
	cv.statusLabel.Hide()

	header := container.NewBorder(nil, nil, nil, cv.newConvButton, cv.conversationSelect)
	footer := container.NewVBox(cv.statusLabel, container.NewBorder(nil, nil, nil, cv.sendButton, cv.inputEntry))

	return container.NewBorder(header, footer, nil, nil, cv.scroll)
}

// Open runs the initial load: cached data first for instant rendering,
// then the live fetch
func (cv *ChatView) Open() {
	if !cv.app.client.Authenticated() {
		cv.showStatus("Sign in to ReRent to use the assistant.")
		return
	}

	if cached, err := cv.app.cache.Conversations(); err == nil && len(cached) > 0 {
		cv.setConversationOptions(cached)
	}

	utils.SafeGo(cv.app.logger, "initial conversation load", func() {
		list, err := cv.selector.Refresh(context.Background())
		if err != nil {
			cv.app.logger.Error("Failed to load conversations: %v", err)
			cv.showStatus("Could not load conversations.")
			return
		}
		cv.setConversationOptions(list)
		if err := cv.app.cache.ReplaceConversations(list); err != nil {
			cv.app.logger.Warn("Failed to cache conversations: %v", err)
		}

		// Auto-select the most recent conversation when none is active
		if id := cv.selector.AutoSelect(cv.controller.ActiveConversation()); id != 0 {
			cv.selectConversation(id)
		}
	})
}

// refreshConversations refetches the conversation list in the background
func (cv *ChatView) refreshConversations() {
	utils.SafeGoWithError(cv.app.logger, "conversation refresh", func() error {
		list, err := cv.selector.Refresh(context.Background())
		if err != nil {
			return err
		}
		cv.setConversationOptions(list)
		return cv.app.cache.ReplaceConversations(list)
	}, nil)
}

// setConversationOptions rebuilds the picker from a conversation list
func (cv *ChatView) setConversationOptions(list []api.Conversation) {
	ids := make([]int64, len(list))
	options := make([]string, len(list))
	for i, conv := range list {
		ids[i] = conv.ID
		options[i] = chat.DisplayName(conv)
	}

	fyne.Do(func() {
		cv.conversationIDs = ids
		cv.conversationSelect.Options = options
		active := cv.controller.ActiveConversation()
		for i, id := range ids {
			if id == active {
				cv.conversationSelect.SetSelectedIndex(i)
				break
			}
		}
		cv.conversationSelect.Refresh()
	})
}

// onConversationPicked reacts to the user choosing from the picker
func (cv *ChatView) onConversationPicked(string) {
	index := cv.conversationSelect.SelectedIndex()
	if index < 0 || index >= len(cv.conversationIDs) {
		return
	}
	id := cv.conversationIDs[index]
	if id == cv.controller.ActiveConversation() {
		return
	}
	cv.selectConversation(id)
}

// selectConversation activates a conversation: cached history renders
// immediately, the live page replaces it when the fetch lands
func (cv *ChatView) selectConversation(conversationID int64) {
	if cached, err := cv.app.cache.Messages(conversationID); err == nil && len(cached) > 0 {
		cv.controller.Store().Reset()
		cv.controller.Store().SetLatestPage(&api.MessagesPage{Data: cached})
		cv.renderMessages()
	}

	utils.SafeGoWithError(cv.app.logger, "conversation switch", func() error {
		if err := cv.controller.SwitchConversation(context.Background(), conversationID); err != nil {
			return err
		}
		return cv.app.cache.ReplaceMessages(conversationID, persistedOnly(cv.controller.Store().Merged()))
	}, func(error) {
		cv.showStatus("Could not load the conversation.")
	})
}

// onNewConversation creates an empty conversation and activates it
func (cv *ChatView) onNewConversation() {
	utils.SafeGoWithError(cv.app.logger, "conversation create", func() error {
		conv, err := cv.selector.Create(context.Background())
		if err != nil {
			return err
		}
		cv.setConversationOptions(cv.selector.Conversations())
		cv.selectConversation(conv.ID)
		return nil
	}, func(error) {
		cv.showStatus("Could not create a conversation.")
	})
}

// onLoadOlder pulls the next older history page
func (cv *ChatView) onLoadOlder() {
	utils.SafeGoWithError(cv.app.logger, "older page load", func() error {
		return cv.controller.LoadOlder(context.Background())
	}, func(error) {
		cv.showStatus("Could not load older messages.")
	})
}

// onSend submits the input. The field is cleared immediately; the
// optimistic entries appear via the controller's change hook.
func (cv *ChatView) onSend() {
	text := cv.inputEntry.Text
	cv.inputEntry.SetText("")

	utils.SafeGo(cv.app.logger, "message send", func() {
		result, err := cv.controller.Send(context.Background(), text)
		if err != nil {
			// Validation rejections are silent; stream errors were already
			// surfaced through the error hook
			cv.app.logger.Warn("Send failed: %v", err)
			return
		}
		if err := cv.app.cache.ReplaceMessages(result.ConversationID, persistedOnly(cv.controller.Store().Merged())); err != nil {
			cv.app.logger.Warn("Failed to cache messages: %v", err)
		}
	})
}

// renderMessages redraws the message log from the merged store view
func (cv *ChatView) renderMessages() {
	merged := cv.controller.Store().Merged()
	hasMore := cv.controller.Store().HasMore()

	fyne.Do(func() {
		cv.messagesBox.RemoveAll()
		for _, msg := range merged {
			cv.messagesBox.Add(cv.buildMessageUI(msg))
		}
		if hasMore {
			cv.loadOlderButton.Show()
		} else {
			cv.loadOlderButton.Hide()
		}
		cv.messagesBox.Refresh()
		cv.scroll.ScrollToBottom()
	})
}

// buildMessageUI renders one chat bubble
func (cv *ChatView) buildMessageUI(msg api.Message) fyne.CanvasObject {
	role := "Assistant"
	if msg.Role == api.RoleUser {
		role = "You"
	}
	header := widget.NewLabel(fmt.Sprintf("%s · %s", role, msg.CreatedAt.Local().Format("15:04")))
	header.TextStyle = fyne.TextStyle{Bold: true}

	content := msg.Content
	if content == "" && msg.Role == api.RoleAssistant {
		content = "…"
	}
	body := widget.NewLabel(content)
	body.Wrapping = fyne.TextWrapWord

	return container.NewVBox(header, body, widget.NewSeparator())
}

// showStatus displays a transient notification under the message log.
// Each call supersedes the previous one; only the latest status's timer
// may hide the label.
func (cv *ChatView) showStatus(message string) {
	gen := cv.status.bump()
	fyne.Do(func() {
		cv.statusLabel.SetText(message)
		cv.statusLabel.Show()
	})
	utils.SafeGo(cv.app.logger, "status hide timer", func() {
		time.Sleep(5 * time.Second)
		fyne.Do(func() {
			if cv.status.isLatest(gen) {
				cv.statusLabel.Hide()
			}
		})
	})
}

// statusTracker hands out generations for transient status messages so a
// stale hide timer cannot clear a newer message
type statusTracker struct {
	n uint64
}

func (s *statusTracker) bump() uint64 {
	return atomic.AddUint64(&s.n, 1)
}

func (s *statusTracker) isLatest(gen uint64) bool {
	return atomic.LoadUint64(&s.n) == gen
}

// persistedOnly filters temporary optimistic entries out of a merged view
func persistedOnly(messages []api.Message) []api.Message {
	kept := make([]api.Message, 0, len(messages))
	for _, msg := range messages {
		if msg.ID > 0 {
			kept = append(kept, msg)
		}
	}
	return kept
}
