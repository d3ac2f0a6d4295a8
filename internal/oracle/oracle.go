// Package oracle wraps an OpenAI-compatible API into the answer source the
// quiz engine escalates through. Two model tiers share one endpoint: a fast
// default and a reasoning model for retries after a failed attempt.
package oracle

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// AnswerOracle produces a raw answer text for a quiz prompt. reasoning
// selects the expensive tier.
type AnswerOracle interface {
	Ask(ctx context.Context, prompt string, reasoning bool) (string, error)
}

// Client wraps an OpenAI-compatible API client.
type Client struct {
	api            *openai.Client
	model          string
	reasoningModel string
	log            *slog.Logger
}

// New creates a new oracle client. reasoningModel falls back to modelName
// when empty, which collapses the two tiers into one.
func New(baseURL, apiKey, modelName, reasoningModel string, log *slog.Logger) *Client {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	if reasoningModel == "" {
		reasoningModel = modelName
	}
	if log == nil {
		log = slog.Default()
	}
	return &Client{
		api:            openai.NewClientWithConfig(config),
		model:          modelName,
		reasoningModel: reasoningModel,
		log:            log,
	}
}

// Ask streams a completion for the prompt and returns the accumulated
// answer text. Reasoning deltas are drained but discarded; only the final
// content is an answer.
func (c *Client) Ask(ctx context.Context, prompt string, reasoning bool) (string, error) {
	modelName := c.model
	if reasoning {
		modelName = c.reasoningModel
	}

	stream, err := c.api.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
		Model: modelName,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Stream: true,
	})
	if err != nil {
		return "", fmt.Errorf("LLM API call: %w", err)
	}
	defer stream.Close()

	var sb strings.Builder
	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("LLM stream: %w", err)
		}
		if len(resp.Choices) == 0 {
			continue
		}
		sb.WriteString(resp.Choices[0].Delta.Content)
	}

	answer := strings.TrimSpace(sb.String())
	c.log.Debug("oracle answer", "model", modelName, "raw", answer)
	if answer == "" {
		return "", fmt.Errorf("LLM returned an empty answer")
	}
	return answer, nil
}

// Ping issues a minimal completion to verify the endpoint and credentials
// before any exam is opened.
func (c *Client) Ping(ctx context.Context) error {
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: "ping"},
		},
		MaxTokens: 1,
	})
	if err != nil {
		return fmt.Errorf("LLM endpoint check: %w", err)
	}
	if len(resp.Choices) == 0 {
		return fmt.Errorf("LLM endpoint returned no choices")
	}
	return nil
}
