package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"rerent-chat-client/api"
	"rerent-chat-client/cache"
	"rerent-chat-client/ui"
	"rerent-chat-client/utils"
)

var (
	version = "0.1.0"
)

func main() {
	configPath := flag.String("config", "", "Path to configuration file")
	verbose := flag.Bool("verbose", false, "Enable debug logging")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *showVersion {
		fmt.Printf("ReRent Chat Client v%s\n", version)
		os.Exit(0)
	}

	logger, err := utils.NewLogger(utils.GetLogPath())
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Close()
	logger.SetVerbose(*verbose)

	logger.Info("Starting ReRent Chat Client v%s", version)

	actualConfigPath := *configPath
	if actualConfigPath == "" {
		actualConfigPath, err = utils.EnsureDefaultConfig()
		if err != nil {
			logger.Error("Failed to create default config: %v", err)
			os.Exit(1)
		}
		logger.Info("Using config file: %s", actualConfigPath)
	}

	config, err := utils.LoadConfig(actualConfigPath)
	if err != nil {
		logger.Error("Failed to load config: %v", err)
		os.Exit(1)
	}

	localCache, err := cache.Open(config.Data.CachePath)
	if err != nil {
		logger.Error("Failed to open local cache: %v", err)
		os.Exit(1)
	}
	logger.Info("Local cache ready: %s", config.Data.CachePath)

	client := api.NewClient(
		config.Server.BaseURL,
		config.TokenProvider(),
		time.Duration(config.Server.TimeoutSeconds)*time.Second,
	)

	app := ui.NewApp(config, client, localCache, logger)
	defer app.Cleanup()

	logger.Info("Application started")
	app.Run()
	logger.Info("Application stopped")
}
