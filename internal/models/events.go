package models

import "time"

// UsageEvent AI调用用量事件（发送到Kafka）
type UsageEvent struct {
	EventID     string                 `json:"event_id"`
	UserID      string                 `json:"user_id"`
	AgentID     string                 `json:"agent_id,omitempty"`
	Interaction string                 `json:"interaction"` // chat/generation
	MediaType   string                 `json:"media_type,omitempty"`
	CreditType  string                 `json:"credit_type"`
	CreditsUsed int                    `json:"credits_used"`
	TokensUsed  int                    `json:"tokens_used,omitempty"`
	Model       string                 `json:"model,omitempty"`
	Status      string                 `json:"status"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
	Timestamp   time.Time              `json:"timestamp"`
}
