package providers

import (
	"context"
	"errors"
	"strings"

	"github.com/aihub/ai-gateway/internal/config"
	"github.com/aihub/ai-gateway/internal/logger"
	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// OpenAIChatProvider 基于OpenAI Chat Completion的会话提供方
type OpenAIChatProvider struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float32
}

// NewOpenAIChatProvider 创建OpenAI聊天提供方
func NewOpenAIChatProvider(cfg *config.AIConfig) *OpenAIChatProvider {
	apiKey := strings.TrimSpace(cfg.OpenAIAPIKey)
	if apiKey == "" {
		logger.Warn("OpenAI API key is empty, chat provider disabled")
		return &OpenAIChatProvider{}
	}

	return &OpenAIChatProvider{
		client:      openai.NewClient(apiKey),
		model:       cfg.DefaultModel,
		maxTokens:   cfg.MaxTokens,
		temperature: float32(cfg.Temperature),
	}
}

// Chat 执行一次聊天调用，history为此前的会话轮次
func (p *OpenAIChatProvider) Chat(ctx context.Context, personality, message string, history []ChatMessage) (*ChatResult, error) {
	if p == nil || p.client == nil {
		return nil, errors.New("openai client not initialized")
	}

	messages := make([]openai.ChatCompletionMessage, 0, len(history)+2)
	if personality != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: personality,
		})
	}
	for _, turn := range history {
		role := openai.ChatMessageRoleUser
		if turn.Role == "assistant" {
			role = openai.ChatMessageRoleAssistant
		}
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    role,
			Content: turn.Content,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: message,
	})

	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       p.model,
		Messages:    messages,
		MaxTokens:   p.maxTokens,
		Temperature: p.temperature,
	})
	if err != nil {
		return nil, err
	}

	if len(resp.Choices) == 0 {
		return nil, errors.New("openai returned no choices")
	}

	logger.Debug("OpenAI chat completion success",
		zap.String("model", resp.Model),
		zap.Int("total_tokens", resp.Usage.TotalTokens))

	return &ChatResult{
		Reply:            resp.Choices[0].Message.Content,
		Model:            resp.Model,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		TotalTokens:      resp.Usage.TotalTokens,
	}, nil
}
