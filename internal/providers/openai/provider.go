package openai

import (
	"context"
	"errors"
	"io"

	"github.com/sashabaranov/go-openai"

	"github.com/convoflow/convoflow-backend/internal/config"
	"github.com/convoflow/convoflow-backend/internal/providers"
)

// Provider implements the OpenAI provider
type Provider struct {
	id     string
	config config.ProviderConfig
	client *openai.Client
}

// NewProvider creates a new OpenAI provider
func NewProvider(id string, cfg config.ProviderConfig) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("OpenAI API key is required")
	}

	client := openai.NewClient(cfg.APIKey)

	return &Provider{
		id:     id,
		config: cfg,
		client: client,
	}, nil
}

// Name returns the provider name
func (p *Provider) Name() string {
	return p.config.Name
}

// Complete performs a non-streaming completion
func (p *Provider) Complete(ctx context.Context, req providers.CompletionRequest) (*providers.CompletionResponse, error) {
	openAIReq := convertRequest(req)
	openAIReq.Stream = false

	resp, err := p.client.CreateChatCompletion(ctx, openAIReq)
	if err != nil {
		return nil, err
	}

	return convertResponse(&resp), nil
}

// StreamComplete performs a streaming completion
func (p *Provider) StreamComplete(ctx context.Context, req providers.CompletionRequest) (<-chan providers.StreamChunk, error) {
	return streamComplete(ctx, p.client, req)
}

// GetModels returns available models
func (p *Provider) GetModels(ctx context.Context) ([]providers.Model, error) {
	return listModels(ctx, p.client)
}

// ValidateConfig validates the provider configuration
func (p *Provider) ValidateConfig() error {
	if p.config.APIKey == "" {
		return errors.New("API key is required")
	}
	return nil
}

// streamComplete runs a chat completion stream and forwards deltas on a
// channel. Shared with the openai-compatible provider.
func streamComplete(ctx context.Context, client *openai.Client, req providers.CompletionRequest) (<-chan providers.StreamChunk, error) {
	chunks := make(chan providers.StreamChunk)

	go func() {
		defer close(chunks)

		openAIReq := convertRequest(req)
		openAIReq.Stream = true

		stream, err := client.CreateChatCompletionStream(ctx, openAIReq)
		if err != nil {
			chunks <- providers.StreamChunk{Error: err.Error()}
			return
		}
		defer stream.Close()

		for {
			response, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				chunks <- providers.StreamChunk{FinishReason: "stop"}
				return
			}
			if err != nil {
				chunks <- providers.StreamChunk{Error: err.Error()}
				return
			}

			if len(response.Choices) > 0 {
				choice := response.Choices[0]
				chunk := providers.StreamChunk{
					ID:    response.ID,
					Model: response.Model,
				}

				if choice.Delta.Content != "" {
					chunk.Delta = choice.Delta.Content
				}
				if choice.Delta.Role != "" {
					chunk.Role = choice.Delta.Role
				}
				if choice.FinishReason != "" {
					chunk.FinishReason = string(choice.FinishReason)
				}

				chunks <- chunk
			}
		}
	}()

	return chunks, nil
}

func listModels(ctx context.Context, client *openai.Client) ([]providers.Model, error) {
	modelList, err := client.ListModels(ctx)
	if err != nil {
		return nil, err
	}

	models := make([]providers.Model, len(modelList.Models))
	for i, m := range modelList.Models {
		models[i] = providers.Model{
			ID:      m.ID,
			Object:  m.Object,
			OwnedBy: m.OwnedBy,
		}
	}

	return models, nil
}

// convertRequest converts internal request to OpenAI request
func convertRequest(req providers.CompletionRequest) openai.ChatCompletionRequest {
	messages := make([]openai.ChatCompletionMessage, len(req.Messages))
	for i, msg := range req.Messages {
		messages[i] = openai.ChatCompletionMessage{
			Role:    msg.Role,
			Content: msg.Content,
		}
	}

	openAIReq := openai.ChatCompletionRequest{
		Model:    req.Model,
		Messages: messages,
		Stream:   req.Stream,
	}

	if req.Temperature != nil {
		openAIReq.Temperature = *req.Temperature
	}
	if req.MaxTokens != nil {
		openAIReq.MaxTokens = *req.MaxTokens
	}

	return openAIReq
}

// convertResponse converts OpenAI response to internal response
func convertResponse(resp *openai.ChatCompletionResponse) *providers.CompletionResponse {
	choices := make([]providers.Choice, len(resp.Choices))
	for i, c := range resp.Choices {
		choices[i] = providers.Choice{
			Index: c.Index,
			Message: providers.Message{
				Role:    c.Message.Role,
				Content: c.Message.Content,
			},
			FinishReason: string(c.FinishReason),
		}
	}

	return &providers.CompletionResponse{
		ID:      resp.ID,
		Model:   resp.Model,
		Choices: choices,
		Usage: providers.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}
}
