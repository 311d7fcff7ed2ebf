package assistant

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
)

const (
	DefaultModel     = "claude-sonnet-4-5"
	DefaultMaxTokens = 2048
)

// LLMClient is the interface for interacting with an LLM.
type LLMClient interface {
	// Complete sends one system and user prompt pair and returns the reply text.
func (c *AnthropicLLMClient) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	start := time.Now()
	msg, err := c.client.Messages.New(ctx, c.messageParams(systemPrompt, userPrompt))
	if err != nil {
		c.log.Error("anthropic: completion failed", "model", c.model, "duration", time.Since(start), "error", err)
		return "", fmt.Errorf("anthropic API error: %w", err)
	}

	c.log.Debug("anthropic: completion finished",
		"model", c.model,
		"duration", time.Since(start),
		"stopReason", msg.StopReason,
		"inputTokens", msg.Usage.InputTokens,
		"outputTokens", msg.Usage.OutputTokens,
	)
	if msg.StopReason == anthropic.StopReasonMaxTokens {
		c.log.Warn("anthropic: reply truncated at max tokens", "maxTokens", c.maxTokens)
	}

	return replyText(msg.Content)
}

func (c *AnthropicLLMClient) messageParams(systemPrompt, userPrompt string) anthropic.MessageNewParams {
	return anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		System:    []anthropic.TextBlockParam{{Text: systemPrompt}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userPrompt)),
		},
	}
}

// replyText joins the text blocks of a reply. Non-text blocks are skipped.
func replyText(content []anthropic.ContentBlockUnion) (string, error) {
	var parts []string
	for _, block := range content {
		if block.Type == "text" && block.Text != "" {
			parts = append(parts, block.Text)
		}
	}
	if len(parts) == 0 {
		return "", fmt.Errorf("no text content in response")
	}
	return strings.Join(parts, "\n"), nil
}
