package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/gin-gonic/gin"

	"rerent-chat-client/devserver"
)

func main() {
	addr := flag.String("addr", ":8088", "Listen address")
	token := flag.String("token", "", "Required bearer token (empty disables auth)")
	apiKey := flag.String("openai-key", "", "OpenAI-compatible API key; empty uses the scripted responder")
	baseURL := flag.String("openai-base-url", "", "OpenAI-compatible base URL")
	model := flag.String("model", "", "Model to request from the relay")
	flag.Parse()

	var responder devserver.Responder
	if *apiKey != "" {
		responder = devserver.NewOpenAIResponder(*apiKey, *baseURL, *model)
		fmt.Println("Using OpenAI-compatible relay")
	} else {
		responder = devserver.NewScriptedResponder()
		fmt.Println("Using scripted responder")
	}

	gin.SetMode(gin.ReleaseMode)
	server := devserver.New(responder, *token)

	fmt.Printf("Chat dev server listening on %s\n", *addr)
	if err := server.Router().Run(*addr); err != nil {
		fmt.Printf("Server failed: %v\n", err)
		os.Exit(1)
	}
}
