// Package local provides a provider for OpenAI-compatible local endpoints
// such as Ollama and LM Studio.
package local

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/convoflow/convoflow-backend/internal/config"
	"github.com/convoflow/convoflow-backend/internal/providers"
)

// Provider implements an OpenAI-compatible provider against a custom base URL
type Provider struct {
	id     string
	config config.ProviderConfig
	client *openai.Client
}

// NewProvider creates a new OpenAI-compatible provider
func NewProvider(id string, cfg config.ProviderConfig) (*Provider, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("base URL is required for openai-compatible providers")
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	clientConfig.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/") + "/v1"

	return &Provider{
		id:     id,
		config: cfg,
		client: openai.NewClientWithConfig(clientConfig),
	}, nil
}

// Name returns the provider name
func (p *Provider) Name() string {
	return p.config.Name
}

// Complete performs a non-streaming completion
func (p *Provider) Complete(ctx context.Context, req providers.CompletionRequest) (*providers.CompletionResponse, error) {
	resp, err := p.client.CreateChatCompletion(ctx, p.convertRequest(req, false))
	if err != nil {
		return nil, err
	}

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
	}, nil
}

// StreamComplete performs a streaming completion
func (p *Provider) StreamComplete(ctx context.Context, req providers.CompletionRequest) (<-chan providers.StreamChunk, error) {
	chunks := make(chan providers.StreamChunk)

	go func() {
		defer close(chunks)

		stream, err := p.client.CreateChatCompletionStream(ctx, p.convertRequest(req, true))
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
					Delta: choice.Delta.Content,
					Role:  choice.Delta.Role,
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

// GetModels returns models discovered from the local endpoint
func (p *Provider) GetModels(ctx context.Context) ([]providers.Model, error) {
	modelList, err := p.client.ListModels(ctx)
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

// ValidateConfig validates the provider configuration
func (p *Provider) ValidateConfig() error {
	if p.config.BaseURL == "" {
		return errors.New("base URL is required")
	}
	return nil
}

func (p *Provider) convertRequest(req providers.CompletionRequest, stream bool) openai.ChatCompletionRequest {
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
		Stream:   stream,
	}

	if req.Temperature != nil {
		openAIReq.Temperature = *req.Temperature
	}
	if req.MaxTokens != nil {
		openAIReq.MaxTokens = *req.MaxTokens
	}

	return openAIReq
}
