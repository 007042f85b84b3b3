package rag

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"pdf-qa/internal/config"
	"pdf-qa/internal/models"
)

// Retriever finds the chunks nearest to a question. The question must be
// embedded with the model the index was built with.
type Retriever interface {
	QueryText(ctx context.Context, text string, k int) ([]models.SearchResult, error)
}

// Generator turns a prompt into model output.
type Generator interface {
	GenerateContent(ctx context.Context, prompt string) (string, error)
}

type RAG struct {
	generator Generator
	topK      int
}

func NewRAG(generator Generator, cfg *config.Config) *RAG {
	topK := config.DefaultTopK
	if cfg != nil && cfg.RAG.TopK > 0 {
		topK = cfg.RAG.TopK
	}
	return &RAG{generator: generator, topK: topK}
}

// JoinContext concatenates the retrieved chunk texts in rank order.
func JoinContext(results []models.SearchResult) string {
	parts := make([]string, len(results))
	for i, r := range results {
		parts[i] = r.Chunk.Content
	}
	return strings.Join(parts, models.ContextSeparator)
}

// BuildPrompt fills the answer template with the context block and the
// question, verbatim.
func BuildPrompt(contextText, question string) string {
	return strings.TrimSpace(fmt.Sprintf(models.AnswerPromptTemplate, contextText, question))
}

// Query answers question from the chunks index retrieves for it. Each call
// is independent of earlier questions.
func (r *RAG) Query(ctx context.Context, index Retriever, question string) (*models.Answer, error) {
	if index == nil {
		return nil, errors.New("no document loaded")
	}

	results, err := index.QueryText(ctx, question, r.topK)
	if err != nil {
		return nil, err
	}

	contextText := JoinContext(results)
	prompt := BuildPrompt(contextText, question)

	log.Debug().Str("context", contextText).Msg("Retrieved context")
	log.Debug().Str("question", question).Int("sources", len(results)).Msg("User question")

	content, err := r.generator.GenerateContent(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("failed to generate answer: %w", err)
	}

	return &models.Answer{
		Question: question,
		Context:  contextText,
		Prompt:   prompt,
		Sources:  results,
		Content:  content,
	}, nil
}
