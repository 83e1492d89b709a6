package chat

import (
	"context"
	"fmt"
	"strings"

	"relaychat/internal/core"
	"relaychat/internal/providers"
)

const titleSystemPrompt = "You are a helpful assistant. Your task is to generate a concise and relevant title (5 words or less) for the following user query or conversation start. Only output the title itself, nothing else."

// DefaultTitleModel is used for title generation when none is configured.
const DefaultTitleModel = "openai/gpt-4o-mini"

// TitleGenerator produces short thread titles from the opening prompt of a
// conversation, using a cheap non-streaming completion.
type TitleGenerator struct {
	client *providers.Client
	repo   Repository
	model  string
}

// NewTitleGenerator creates a title generator. model may be empty to use
// the default.
func NewTitleGenerator(client *providers.Client, repo Repository, model string) *TitleGenerator {
	if model == "" {
		model = DefaultTitleModel
	}
	return &TitleGenerator{client: client, repo: repo, model: model}
}

// GenerateTitle asks the model for a title and renames the thread. Uses the
// server-configured provider key; there is no caller key in this path.
func (g *TitleGenerator) GenerateTitle(ctx context.Context, threadID, prompt string) (string, error) {
	maxTokens := 20
	temperature := 0.5
	resp, err := g.client.Complete(ctx, &core.ChatRequest{
		Model: g.model,
		Messages: []core.Message{
			core.NewMessage("system", titleSystemPrompt),
			core.NewMessage("user", prompt),
		},
		MaxTokens:   &maxTokens,
		Temperature: &temperature,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("title completion returned no choices")
	}

	title := strings.TrimSpace(resp.Choices[0].Message.Text())
	title = strings.Trim(title, `"'`)
	if title == "" {
		return "", fmt.Errorf("title completion returned empty content")
	}

	if _, err := g.repo.UpdateThreadTitle(ctx, threadID, title); err != nil {
		return "", err
	}
	return title, nil
}
