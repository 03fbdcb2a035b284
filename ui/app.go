package ui

import (
	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"

	"rerent-chat-client/api"
	"rerent-chat-client/cache"
	"rerent-chat-client/utils"
)

// App represents the chat widget application
type App struct {
	fyneApp fyne.App
	window  fyne.Window
	config  *utils.Config
	logger  *utils.Logger
	client  *api.Client
	cache   *cache.Cache
	view    *ChatView
}

// NewApp creates a new application instance
func NewApp(config *utils.Config, client *api.Client, localCache *cache.Cache, logger *utils.Logger) *App {
	fyneApp := app.NewWithID("rerent-chat-client")
	fyneApp.Settings().SetTheme(newWidgetTheme(config.UI.FontSize))
	window := fyneApp.NewWindow("ReRent Assistant")
	window.Resize(fyne.NewSize(
		float32(config.UI.WindowWidth),
		float32(config.UI.WindowHeight),
	))

	application := &App{
		fyneApp: fyneApp,
		window:  window,
		config:  config,
		logger:  logger,
		client:  client,
		cache:   localCache,
	}

	application.view = NewChatView(application)
	window.SetContent(application.view.Build())

	return application
}

// Run shows the window and enters the event loop
func (a *App) Run() {
	a.view.Open()
	a.window.ShowAndRun()
}

// Cleanup releases resources on shutdown
func (a *App) Cleanup() {
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			a.logger.Error("Failed to close cache: %v", err)
		}
	}
}
