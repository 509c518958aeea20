package factory

import (
	"testing"

	"clinical-assistant-be/pkg/llm/ollama"
	"clinical-assistant-be/pkg/llm/openai"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLLMProvider(t *testing.T) {
	p, err := NewLLMProvider("ollama", "llama3.1", "", "")
	require.NoError(t, err)
	o, ok := p.(*ollama.OllamaProvider)
	require.True(t, ok)
	assert.Equal(t, "http://localhost:11434", o.BaseURL)

	p, err = NewLLMProvider("openai", "", "", "sk-test")
	require.NoError(t, err)
	assert.IsType(t, &openai.Provider{}, p)

	_, err = NewLLMProvider("openai", "", "", "")
	assert.Error(t, err)

	p, err = NewLLMProvider("none", "", "", "")
	require.NoError(t, err)
	assert.Nil(t, p)

	_, err = NewLLMProvider("gemini", "", "", "")
	assert.Error(t, err)
}
