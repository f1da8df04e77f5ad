package openai

import (
	"ai-command-arbiter/pkg/llm"
	"context"
	"errors"
	"fmt"
	"net/http"

	goopenai "github.com/sashabaranov/go-openai"
)

// OpenAIProvider talks to any OpenAI-compatible chat completions endpoint
// (OpenAI itself, the Hugging Face router, vLLM, LM Studio).
type OpenAIProvider struct {
	client *goopenai.Client
	model  string
}

var _ llm.LLMProvider = &OpenAIProvider{}

// NewOpenAIProvider builds a provider. An empty baseURL uses api.openai.com.
func NewOpenAIProvider(apiKey, baseURL, model string) *OpenAIProvider {
	cfg := goopenai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if model == "" {
		model = goopenai.GPT4oMini
	}
	return &OpenAIProvider{
		client: goopenai.NewClientWithConfig(cfg),
		model:  model,
	}
}

func (p *OpenAIProvider) Chat(ctx context.Context, history []llm.Message, options ...llm.Option) (string, error) {
	opts := &llm.Options{Model: p.model}
	for _, o := range options {
		o(opts)
	}

	messages := make([]goopenai.ChatCompletionMessage, 0, len(history))
	for _, m := range history {
		role := m.Role
		if role == "model" {
			role = goopenai.ChatMessageRoleAssistant
		}
		messages = append(messages, goopenai.ChatCompletionMessage{Role: role, Content: m.Content})
	}

	req := goopenai.ChatCompletionRequest{
		Model:       opts.Model,
		Messages:    messages,
		Temperature: float32(opts.Temperature),
	}
	if opts.MaxTokens > 0 {
		req.MaxCompletionTokens = opts.MaxTokens
	}
	if opts.JSON {
		req.ResponseFormat = &goopenai.ChatCompletionResponseFormat{
			Type: goopenai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	resp, err := p.client.CreateChatCompletion(ctx, req)
	if err != nil {
		var apiErr *goopenai.APIError
		if errors.As(err, &apiErr) && apiErr.HTTPStatusCode == http.StatusTooManyRequests {
			return "", fmt.Errorf("openai: %w", llm.ErrRateLimited)
		}
		return "", fmt.Errorf("openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

func (p *OpenAIProvider) Generate(ctx context.Context, prompt string, options ...llm.Option) (string, error) {
	return p.Chat(ctx, []llm.Message{{Role: goopenai.ChatMessageRoleUser, Content: prompt}}, options...)
}
