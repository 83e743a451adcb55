package providers

import "context"

// ChatResult 聊天调用结果
type ChatResult struct {
	Reply            string `json:"reply"`
	Model            string `json:"model"`
	PromptTokens     int    `json:"prompt_tokens"`
	CompletionTokens int    `json:"completion_tokens"`
	TotalTokens      int    `json:"total_tokens"`
}

// ChatMessage 会话历史中的一条消息
type ChatMessage struct {
	Role    string `json:"role" validate:"required,oneof=user assistant"`
	Content string `json:"content" validate:"required,max=4096"`
}

// ChatProvider 会话式AI提供方
type ChatProvider interface {
	Chat(ctx context.Context, personality, message string, history []ChatMessage) (*ChatResult, error)
}

// MediaRequest 媒体生成请求
type MediaRequest struct {
	MediaType       string `json:"media_type"` // image/music/album_art
	Prompt          string `json:"prompt"`
	Style           string `json:"style,omitempty"`
	DurationSeconds int    `json:"duration_seconds,omitempty"`
}

// MediaResult 媒体生成结果（二进制内容由调用方负责落盘）
type MediaResult struct {
	Data        []byte `json:"-"`
	ContentType string `json:"content_type"`
	Engine      string `json:"engine"`
}

// MediaProvider 媒体生成提供方
type MediaProvider interface {
	Generate(ctx context.Context, req *MediaRequest) (*MediaResult, error)
}
