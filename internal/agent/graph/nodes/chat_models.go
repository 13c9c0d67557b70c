package nodes

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino-ext/components/model/gemini"
	"google.golang.org/genai"

	"github.com/HealthAssistant-core/server/internal/agent/model"
	logx "github.com/HealthAssistant-core/server/pkg/logger"
)

// ClientConfig holds the credentials shared by every persona's chat model.
type ClientConfig struct {
	APIKey  string
	BaseURL string
}

// NewGeminiClient creates the Gemini client shared by all chat models.
func NewGeminiClient(ctx context.Context, config ClientConfig) (*genai.Client, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("gemini api key is empty")
	}

	clientCfg := &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if config.BaseURL != "" {
		clientCfg.HTTPOptions.BaseURL = config.BaseURL
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		logx.Error().Err(err).Msg("Error creating Gemini client")
		return nil, fmt.Errorf("error creating Gemini client: %w", err)
	}
	return client, nil
}

// NewChatModel creates the chat model of one persona with its own sampling parameters.
func NewChatModel(ctx context.Context, client *genai.Client, cfg model.ChatModelConfig, agent model.AgentParams) (*gemini.ChatModel, error) {
	if client == nil {
		return nil, fmt.Errorf("gemini client is nil")
	}

	temperature := agent.Temperature
	topP := agent.TopP
	maxTokens := cfg.MaxTokens

	chatModel, err := gemini.NewChatModel(ctx, &gemini.Config{
		Client:      client,
		Model:       cfg.Model,
		Temperature: &temperature,
		TopP:        &topP,
		MaxTokens:   &maxTokens,
	})
	if err != nil {
		logx.Error().Err(err).Str("agent", agent.Name).Msg("Error creating chat model")
		return nil, fmt.Errorf("error creating chat model for %s: %w", agent.Name, err)
	}
	return chatModel, nil
}
