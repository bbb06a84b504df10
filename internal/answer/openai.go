package answer

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/hyperjump/shiryo/internal/models"
)

const systemPromptTemplate = `Use the following pieces of context to answer the question at the end. If you don't know the answer, just say that you don't know, don't try to make up an answer.

%s`

// OpenAIGenerator answers with an OpenAI-compatible chat completion model.
type OpenAIGenerator struct {
	client      *openai.Client
	model       string
	temperature float32
	maxContext  int
}

// NewOpenAIGenerator creates a chat generator. A non-empty baseURL points the
// client at an OpenAI-compatible server.
func NewOpenAIGenerator(apiKey, baseURL, model string, temperature float32, maxContext int) *OpenAIGenerator {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAIGenerator{
		client:      openai.NewClientWithConfig(cfg),
		model:       model,
		temperature: temperature,
		maxContext:  maxContext,
	}
}

// Name returns "openai:<model>".
func (g *OpenAIGenerator) Name() string { return "openai:" + g.model }

// Answer sends the context as a system prompt, then the history and the question.
func (g *OpenAIGenerator) Answer(ctx context.Context, question string, history []models.Turn, chunks []*models.ChunkHit) (string, error) {
	if len(chunks) == 0 {
		return "", ErrNoContext
	}
	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       g.model,
		Messages:    buildMessages(question, history, contextText(chunks, g.maxContext)),
		Temperature: g.temperature,
	})
	if err != nil {
		return "", &ProviderError{Provider: "openai", Err: err}
	}
	if len(resp.Choices) == 0 {
		return "", &ProviderError{Provider: "openai", Err: fmt.Errorf("empty completion")}
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func buildMessages(question string, history []models.Turn, contextBlock string) []openai.ChatCompletionMessage {
	msgs := make([]openai.ChatCompletionMessage, 0, 2+2*len(history))
	msgs = append(msgs, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: fmt.Sprintf(systemPromptTemplate, contextBlock),
	})
	for _, turn := range history {
		if strings.TrimSpace(turn.Question) == "" {
			continue
		}
		msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: turn.Question})
		if turn.Answer != "" {
			msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: turn.Answer})
		}
	}
	msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: question})
	return msgs
}
