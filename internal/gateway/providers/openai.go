package providers

import (
	"context"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"github.com/mrz1836/smartspec/internal/domain"
	sserrors "github.com/mrz1836/smartspec/internal/errors"
	"github.com/mrz1836/smartspec/internal/gateway"
)

// OpenAI adapts the Chat Completions API. Safe for concurrent use.
type OpenAI struct {
	client *openai.Client
}

// NewOpenAI creates an adapter from an API key.
func NewOpenAI(apiKey string) (*OpenAI, error) {
	if apiKey == "" {
		return nil, sserrors.Wrap(sserrors.ErrInvalidArgument, "openai api key is empty")
	}
	client := openai.NewClient(option.WithAPIKey(apiKey))
	return &OpenAI{client: &client}, nil
}

// Name implements gateway.Provider.
func (o *OpenAI) Name() string { return OpenAIName }

// Capabilities implements gateway.Provider.
func (o *OpenAI) Capabilities() gateway.Capabilities {
	return gateway.Capabilities{Streaming: true, ToolCalling: true, StructuredOutput: true}
}

// Chat implements gateway.Provider.
func (o *OpenAI) Chat(ctx context.Context, req *gateway.ProviderRequest) (*gateway.ProviderResult, error) {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages))
	for _, m := range req.Messages {
		switch m.Role {
		case domain.RoleSystem:
			messages = append(messages, openai.ChatCompletionMessageParamUnion{
				OfSystem: &openai.ChatCompletionSystemMessageParam{
					Content: openai.ChatCompletionSystemMessageParamContentUnion{
						OfString: openai.String(m.Content),
					},
				},
			})
		case domain.RoleAssistant:
			messages = append(messages, openai.ChatCompletionMessageParamUnion{
				OfAssistant: &openai.ChatCompletionAssistantMessageParam{
					Content: openai.ChatCompletionAssistantMessageParamContentUnion{
						OfString: openai.String(m.Content),
					},
				},
			})
		default:
			messages = append(messages, openai.ChatCompletionMessageParamUnion{
				OfUser: &openai.ChatCompletionUserMessageParam{
					Content: openai.ChatCompletionUserMessageParamContentUnion{
						OfString: openai.String(m.Content),
					},
				},
			})
		}
	}

	completion, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:               shared.ChatModel(req.Model),
		Messages:            messages,
		MaxCompletionTokens: openai.Int(req.MaxTokens),
	})
	if err != nil {
		return nil, mapProviderError(OpenAIName, err)
	}
	if len(completion.Choices) == 0 {
		return nil, sserrors.Wrap(sserrors.ErrProviderRequest, "openai: empty completion")
	}

	return &gateway.ProviderResult{
		Text: completion.Choices[0].Message.Content,
		Usage: domain.TokenUsage{
			InputTokens:  completion.Usage.PromptTokens,
			OutputTokens: completion.Usage.CompletionTokens,
		},
	}, nil
}
