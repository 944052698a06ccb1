package embedding

import (
	"context"
	"fmt"
	"strings"

	"github.com/philippgille/chromem-go"
	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"pdfrag/internal/config"
)

// NewEmbedder creates the embedder named by the config. The same embedder must
// be used for writes and queries against one collection.
func NewEmbedder(llmConfig *config.LLMConfig) (embeddings.Embedder, error) {
	log.Debug().Interface("config", map[string]string{
		"provider":        llmConfig.Provider,
		"base_url":        llmConfig.BaseURL,
		"embedding_model": llmConfig.Model,
	}).Msg("Creating embedder")

	var (
		embedder *embeddings.EmbedderImpl
		err      error
	)
	switch llmConfig.Provider {
	case config.ProviderOllama:
		embedder, err = NewOllamaEmbedder(llmConfig)
	case config.ProviderOpenAI:
		embedder, err = NewOpenAIEmbedder(llmConfig)
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %q", llmConfig.Provider)
	}
	if err != nil {
		return nil, err
	}
	return embedder, nil
}

func NewOllamaEmbedder(llmConfig *config.LLMConfig) (*embeddings.EmbedderImpl, error) {
	llm, err := ollama.New(
		ollama.WithServerURL(llmConfig.BaseURL),
		ollama.WithModel(llmConfig.Model),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize ollama: %w", err)
	}
	embedder, err := embeddings.NewEmbedder(llm)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}
	return embedder, nil
}

func NewOpenAIEmbedder(llmConfig *config.LLMConfig) (*embeddings.EmbedderImpl, error) {
	opts := []openai.Option{
		openai.WithToken(strings.TrimPrefix(llmConfig.Key, "Bearer ")),
		openai.WithEmbeddingModel(llmConfig.Model),
	}
	if llmConfig.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(llmConfig.BaseURL))
	}
	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize openai: %w", err)
	}
	embedder, err := embeddings.NewEmbedder(llm)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}
	return embedder, nil
}

// ChromemFunc adapts an embedder to the collection's embedding function.
func ChromemFunc(embedder embeddings.Embedder) chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		vector, err := embedder.EmbedQuery(ctx, text)
		if err != nil {
			return nil, err
		}
		if len(vector) == 0 {
			return nil, fmt.Errorf("embedder returned an empty vector")
		}
		return vector, nil
	}
}
