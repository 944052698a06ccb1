package rag

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/prompts"

	"pdfrag/internal/config"
	"pdfrag/internal/llmservice"
	"pdfrag/internal/models"
)

// Searcher finds the stored chunks most similar to a query, best first.
type Searcher interface {
	SimilaritySearch(ctx context.Context, query string, k int) ([]models.SearchResult, error)
}

type RAG struct {
	searcher Searcher
	model    llms.Model
	template prompts.PromptTemplate
	topK     int
}

func NewRAG(searcher Searcher, model llms.Model, cfg *config.RAGConfig) *RAG {
	return &RAG{
		searcher: searcher,
		model:    model,
		template: prompts.NewPromptTemplate(models.PromptTemplate, []string{"context", "question"}),
		topK:     cfg.TopK,
	}
}

// Query retrieves the top k chunks for query, renders the prompt and returns
// the model's answer unchanged. Any failure yields ErrQueryFailure and no
// answer.
func (r *RAG) Query(ctx context.Context, query string) (*models.PromptResponse, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: query is empty", models.ErrQueryFailure)
	}

	results, err := r.searcher.SimilaritySearch(ctx, query, r.topK)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrQueryFailure, err)
	}
	for _, res := range results {
		log.Debug().Str("id", res.ID).Float32("similarity", res.Similarity).Msg("Retrieved chunk")
	}

	contextText := BuildContext(results)
	prompt, err := r.RenderPrompt(contextText, query)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrQueryFailure, err)
	}

	answer, err := llmservice.Generate(ctx, r.model, prompt)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrQueryFailure, err)
	}

	sources := make([]string, len(results))
	for i, res := range results {
		sources[i] = res.ID
	}
	return &models.PromptResponse{
		Query:   query,
		Context: contextText,
		Prompt:  prompt,
		Content: answer,
		Sources: sources,
	}, nil
}

// RenderPrompt substitutes the context block and question into the template.
func (r *RAG) RenderPrompt(contextText, question string) (string, error) {
	prompt, err := r.template.Format(map[string]any{
		"context":  contextText,
		"question": question,
	})
	if err != nil {
		return "", fmt.Errorf("failed to render prompt: %w", err)
	}
	return prompt, nil
}

// BuildContext joins the result contents in rank order.
func BuildContext(results []models.SearchResult) string {
	parts := make([]string, len(results))
	for i, res := range results {
		parts[i] = res.Content
	}
	return strings.Join(parts, models.ContextSeparator)
}
