package llm

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"net/http"

	"github.com/pavelanni/teachassist/internal/model"

	openai "github.com/sashabaranov/go-openai"
)

// DefaultOpenAIModel is used when no model is configured.
const DefaultOpenAIModel = "gpt-4o-mini"

// OpenAI wraps an OpenAI-compatible API client.
type OpenAI struct {
	keys    KeySource
	baseURL string
	model   string
}

// NewOpenAI creates a client for an OpenAI-compatible endpoint.
func NewOpenAI(keys KeySource, baseURL, modelName string) *OpenAI {
	if modelName == "" {
		modelName = DefaultOpenAIModel
	}
	return &OpenAI{keys: keys, baseURL: baseURL, model: modelName}
}

// Complete sends the messages and returns the content of the first choice.
// Top-k has no equivalent in the chat completions API and is not sent.
func (c *OpenAI) Complete(ctx context.Context, messages []model.ChatMessage, opts model.CompletionOptions) (string, error) {
	key := c.keys.GenKey()
	if key == "" {
		return "", &model.ConfigurationError{Key: model.KeyGeneration}
	}

	// The client is cheap and built per call so a rotated key takes effect immediately.
	config := openai.DefaultConfig(key)
	if c.baseURL != "" {
		config.BaseURL = c.baseURL
	}
	api := openai.NewClientWithConfig(config)

	chatMsgs := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		role := openai.ChatMessageRoleUser
		switch m.Role {
		case model.RoleSystem:
			role = openai.ChatMessageRoleSystem
		case model.RoleAssistant:
			role = openai.ChatMessageRoleAssistant
		}
		chatMsgs = append(chatMsgs, openai.ChatCompletionMessage{
			Role:    role,
			Content: m.Content,
		})
	}

	s := resolveOptions(opts)
	temperature := float32(s.temperature)
	if temperature == 0 {
		// The request field is omitempty; a zero would fall back to the provider default.
		temperature = math.SmallestNonzeroFloat32
	}
	resp, err := api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    chatMsgs,
		Temperature: temperature,
		TopP:        float32(s.topP),
		MaxTokens:   s.maxTokens,
	})
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			return "", &model.ServiceError{StatusCode: apiErr.HTTPStatusCode, Message: apiErr.Message}
		}
		var reqErr *openai.RequestError
		if errors.As(err, &reqErr) {
			return "", &model.ServiceError{StatusCode: reqErr.HTTPStatusCode, Message: reqErr.Error()}
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", &model.ServiceError{StatusCode: http.StatusBadGateway, Message: err.Error()}
	}

	if len(resp.Choices) == 0 {
		return "", model.ErrEmptyResponse
	}

	raw := resp.Choices[0].Message.Content
	slog.Debug("LLM response", "model", c.model, "chars", len(raw))
	return raw, nil
}
