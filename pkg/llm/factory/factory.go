package factory

import (
	"ai-command-arbiter/pkg/llm"
	"ai-command-arbiter/pkg/llm/ollama"
	"ai-command-arbiter/pkg/llm/openai"
	"fmt"
)

const huggingFaceRouterURL = "https://router.huggingface.co/v1"

func NewLLMProvider(providerType, modelName, baseURL, apiKey string) (llm.LLMProvider, error) {
	switch providerType {
	case "ollama":
		if baseURL == "" {
			baseURL = "http://localhost:11434" // Default
		}
		return ollama.NewOllamaProvider(baseURL, modelName), nil
	case "openai":
		return openai.NewOpenAIProvider(apiKey, baseURL, modelName), nil
	case "huggingface":
		if baseURL == "" {
			baseURL = huggingFaceRouterURL
		}
		return openai.NewOpenAIProvider(apiKey, baseURL, modelName), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", providerType)
	}
}
