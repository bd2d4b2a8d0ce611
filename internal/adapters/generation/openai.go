// Package generation provides the streaming text generation adapter
// implementing ports.Generator.
package generation

import (
	"context"
	"fmt"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"corag/internal/domain/ports"
)

// Defaults for OpenAI-compatible chat deployments.
const (
	DefaultModel     = "gpt-4o-mini"
	DefaultMaxTokens = 2048
	DefaultTimeout   = 120 * time.Second
)

// OpenAIConfig configures an OpenAI-compatible chat completions endpoint.
type OpenAIConfig struct {
	APIKey    string
	BaseURL   string
	Model     string
	MaxTokens int64
	Timeout   time.Duration
}

// OpenAIGenerator streams chat completions token by token.
type OpenAIGenerator struct {
	client    openai.Client
	model     string
	maxTokens int64
}

// NewOpenAIGenerator creates the chat client.
func NewOpenAIGenerator(cfg OpenAIConfig) (*OpenAIGenerator, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("generation API key required")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithRequestTimeout(cfg.Timeout),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &OpenAIGenerator{
		client:    openai.NewClient(opts...),
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
	}, nil
}

// Stream starts a completion and forwards each delta as a token. The
// producer goroutine exits promptly on ctx cancellation; a provider
// failure mid-stream is delivered as a terminal token with Err set, never
// as a silent end of stream.
func (g *OpenAIGenerator) Stream(ctx context.Context, systemPrompt, userPrompt string) (<-chan ports.StreamToken, error) {
	stream := g.client.Chat.Completions.NewStreaming(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(userPrompt),
		},
		Model:     openai.ChatModel(g.model),
		MaxTokens: openai.Int(g.maxTokens),
	})
	if err := stream.Err(); err != nil {
		return nil, fmt.Errorf("starting generation: %w", err)
	}

	ch := make(chan ports.StreamToken, 64)
	go func() {
		defer close(ch)
		defer stream.Close()

		for stream.Next() {
			chunk := stream.Current()
			if len(chunk.Choices) == 0 {
				continue
			}
			delta := chunk.Choices[0].Delta.Content
			if delta == "" {
				continue
			}
			select {
			case ch <- ports.StreamToken{Content: delta}:
			case <-ctx.Done():
				return
			}
		}

		if err := stream.Err(); err != nil {
			select {
			case ch <- ports.StreamToken{Err: fmt.Errorf("generation stream: %w", err)}:
			case <-ctx.Done():
			}
			return
		}
		select {
		case ch <- ports.StreamToken{Done: true}:
		case <-ctx.Done():
		}
	}()

	return ch, nil
}
