package factory

import (
	"fmt"

	"clinical-assistant-be/pkg/llm"
	"clinical-assistant-be/pkg/llm/ollama"
	"clinical-assistant-be/pkg/llm/openai"
)

// NewLLMProvider returns nil, nil for provider type "none"; callers then run
// on their deterministic fallbacks.
func NewLLMProvider(providerType, modelName, baseURL, apiKey string) (llm.LLMProvider, error) {
	switch providerType {
	case "ollama":
		if baseURL == "" {
			baseURL = "http://localhost:11434"
		}
		return ollama.NewOllamaProvider(baseURL, modelName), nil
	case "openai":
		if apiKey == "" {
			return nil, fmt.Errorf("openai provider requires an API key")
		}
		return openai.NewProvider(apiKey, baseURL, modelName), nil
	case "", "none":
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", providerType)
	}
}
