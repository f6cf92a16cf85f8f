// Package providers holds the model provider adapters the gateway routes to.
//
// Each adapter translates the gateway's normalized chat request into its
// SDK's shape and reports token usage back. Adapters never touch credits,
// routing, or rate limits; that all lives in the gateway.
//
// This package follows strict import rules:
//   - CAN import: internal/domain, internal/errors, internal/gateway
//   - MUST NOT import: internal/cli, internal/engine, internal/orchestrator,
//     internal/store
package providers

import (
	"context"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/mrz1836/smartspec/internal/domain"
	sserrors "github.com/mrz1836/smartspec/internal/errors"
	"github.com/mrz1836/smartspec/internal/gateway"
)

// Provider names as they appear in routing tables and config.
const (
	// AnthropicName identifies the Claude adapter.
	AnthropicName = "anthropic"

	// OpenAIName identifies the OpenAI adapter.
	OpenAIName = "openai"
)

// Anthropic adapts the Claude Messages API. Safe for concurrent use; the SDK
// client handles connection pooling internally.
type Anthropic struct {
	client *anthropic.Client
}

// NewAnthropic creates an adapter from an API key.
func NewAnthropic(apiKey string) (*Anthropic, error) {
	if apiKey == "" {
		return nil, sserrors.Wrap(sserrors.ErrInvalidArgument, "anthropic api key is empty")
	}
	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	return &Anthropic{client: &client}, nil
}

// Name implements gateway.Provider.
func (a *Anthropic) Name() string { return AnthropicName }

// Capabilities implements gateway.Provider.
func (a *Anthropic) Capabilities() gateway.Capabilities {
	return gateway.Capabilities{Streaming: true, ToolCalling: true, StructuredOutput: true}
}

// Chat implements gateway.Provider. System messages become the top-level
// system prompt; user and assistant turns map directly.
func (a *Anthropic) Chat(ctx context.Context, req *gateway.ProviderRequest) (*gateway.ProviderResult, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(req.Model),
		MaxTokens: req.MaxTokens,
	}
	for _, m := range req.Messages {
		switch m.Role {
		case domain.RoleSystem:
			params.System = append(params.System, anthropic.TextBlockParam{Text: m.Content})
		case domain.RoleAssistant:
			params.Messages = append(params.Messages,
				anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		default:
			params.Messages = append(params.Messages,
				anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		}
	}

	message, err := a.client.Messages.New(ctx, params)
	if err != nil {
		return nil, mapProviderError(AnthropicName, err)
	}

	var text strings.Builder
	for _, block := range message.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	return &gateway.ProviderResult{
		Text: text.String(),
		Usage: domain.TokenUsage{
			InputTokens:  message.Usage.InputTokens,
			OutputTokens: message.Usage.OutputTokens,
		},
	}, nil
}
