package llm

import (
	"context"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/DGU-Capstone-Team5-Quant/backend/internal/logger"
	"github.com/DGU-Capstone-Team5-Quant/backend/pkg/errors"
)

const defaultModel = "gpt-4o-mini"

// OpenAIService calls an OpenAI-compatible chat completion endpoint.
type OpenAIService struct {
	client *openai.Client
	model  string
	log    *logger.Logger
}

// OpenAIOption configures an OpenAIService.
type OpenAIOption func(*OpenAIService)

// WithModel overrides the default chat model.
func WithModel(model string) OpenAIOption {
	return func(s *OpenAIService) {
		if model != "" {
			s.model = model
		}
	}
}

// WithBaseURL points the client at a self-hosted OpenAI-compatible server.
func WithBaseURL(apiKey, baseURL string) OpenAIOption {
	return func(s *OpenAIService) {
		cfg := openai.DefaultConfig(apiKey)
		cfg.BaseURL = baseURL
		s.client = openai.NewClientWithConfig(cfg)
	}
}

// NewOpenAIService creates a chat completion backend.
func NewOpenAIService(apiKey string, log *logger.Logger, opts ...OpenAIOption) (*OpenAIService, error) {
	if apiKey == "" {
		return nil, errors.New(errors.ErrCodeMissingParameter, "openai api key is required")
	}

	s := &OpenAIService{
		client: openai.NewClient(apiKey),
		model:  defaultModel,
		log:    log,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// Generate implements Service.
func (s *OpenAIService) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	messages := []openai.ChatCompletionMessage{}
	if req.SystemPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.SystemPrompt,
		})
	}

	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.Prompt,
	})

	seed := req.Seed

	//nolint:exhaustruct // third-party struct with many optional fields
	chatReq := openai.ChatCompletionRequest{
		Model:       s.model,
		Messages:    messages,
		Temperature: req.Temperature,
		Seed:        &seed,
	}
	if req.MaxTokens > 0 {
		chatReq.MaxCompletionTokens = req.MaxTokens
	}

	resp, err := s.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeGenerationFailed, "chat completion failed", err)
	}

	if len(resp.Choices) == 0 {
		return "", errors.New(errors.ErrCodeGenerationFailed, "chat completion returned no choices")
	}

	s.log.Debug("Chat completion received",
		zap.String("model", s.model),
		zap.String("finish_reason", string(resp.Choices[0].FinishReason)),
	)

	return resp.Choices[0].Message.Content, nil
}
