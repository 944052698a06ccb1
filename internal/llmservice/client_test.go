package llmservice

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms/fake"

	"pdfrag/internal/config"
)

func TestGenerate_ReturnsAnswerVerbatim(t *testing.T) {
	model := fake.NewFakeLLM([]string{"  The sky is blue.\n"})

	answer, err := Generate(context.Background(), model, "what color is the sky")
	require.NoError(t, err)
	assert.Equal(t, "  The sky is blue.\n", answer)
}

func TestGenerate_Error(t *testing.T) {
	model := fake.NewFakeLLM(nil)

	_, err := Generate(context.Background(), model, "prompt")
	assert.ErrorContains(t, err, "failed to generate content")
}

func TestNewModel(t *testing.T) {
	cfg := config.Default().InferenceLLM
	model, err := NewModel(&cfg)
	require.NoError(t, err)
	assert.NotNil(t, model)

	_, err = NewModel(&config.LLMConfig{Provider: "unknown", Model: "x"})
	assert.Error(t, err)
}
