// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package genai

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIBackend calls an OpenAI-compatible chat completion API. With a
// custom BaseURL it also serves as the secondary backend against
// DeepSeek, Ollama, or any compatible deployment.
type OpenAIBackend struct {
	client *openai.Client
	name   string
	model  string
}

// OpenAIConfig holds one backend's connection settings.
type OpenAIConfig struct {
	// Name identifies the backend in logs ("openai", "fallback").
	Name string

	// APIKey authenticates the endpoint.
	APIKey string

	// BaseURL overrides the default OpenAI endpoint when non-empty.
	BaseURL string

	// Model is the default model identifier.
	Model string
}

// NewOpenAIBackend creates a chat-completion backend.
func NewOpenAIBackend(cfg OpenAIConfig) *OpenAIBackend {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &OpenAIBackend{
		client: openai.NewClientWithConfig(clientCfg),
		name:   cfg.Name,
		model:  cfg.Model,
	}
}

// Name returns the backend identifier.
func (b *OpenAIBackend) Name() string { return b.name }

// Complete issues one chat completion call. PlainText requests disable
// tool invocation so the model must answer with structured text.
func (b *OpenAIBackend) Complete(ctx context.Context, req Request) (string, error) {
	model := req.Model
	if model == "" {
		model = b.model
	}

	ccr := openai.ChatCompletionRequest{
		Model:       model,
		Temperature: req.Temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: req.System},
			{Role: openai.ChatMessageRoleUser, Content: req.User},
		},
	}
	if req.MaxTokens > 0 {
		ccr.MaxTokens = req.MaxTokens
	}
	if req.PlainText {
		ccr.ToolChoice = "none"
	}

	resp, err := b.client.CreateChatCompletion(ctx, ccr)
	if err != nil {
		return "", fmt.Errorf("%s chat completion: %w", b.name, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%s chat completion: no choices in response", b.name)
	}
	return resp.Choices[0].Message.Content, nil
}
