package models

import (
	"time"
)

// CreditTransaction 积分流水表（只追加，审计用）
type CreditTransaction struct {
	TransactionID uint      `gorm:"primaryKey;column:transaction_id" json:"transaction_id"`
	UserID        string    `gorm:"column:user_id;size:64;not null;index" json:"user_id"`
	CreditType    string    `gorm:"column:credit_type;size:10;not null" json:"credit_type"`
	Amount        int       `gorm:"not null" json:"amount"` // 正数增加，负数扣减
	Kind          string    `gorm:"size:10;not null" json:"kind"` // add/deduct/reset
	BalanceAfter  int       `gorm:"column:balance_after;not null" json:"balance_after"`
	Reason        string    `gorm:"type:text" json:"reason"`
	RequestID     string    `gorm:"column:request_id;size:64" json:"request_id"`
	TokensUsed    int       `gorm:"column:tokens_used;default:0" json:"tokens_used"`
	CreateTime    time.Time `gorm:"column:create_time;not null;index" json:"create_time"`
}

func (CreditTransaction) TableName() string {
	return "credit_transactions"
}

// GenerationRecord 生成任务记录表
type GenerationRecord struct {
	RequestID    string    `gorm:"primaryKey;column:request_id;size:64" json:"request_id"`
	UserID       string    `gorm:"column:user_id;size:64;not null;index" json:"user_id"`
	MediaType    string    `gorm:"column:media_type;size:20;not null" json:"media_type"`
	Prompt       string    `gorm:"type:text;not null" json:"prompt"`
	Status       string    `gorm:"size:20;not null" json:"status"` // completed/failed
	MediaURL     string    `gorm:"column:media_url;size:500" json:"media_url"`
	CreditsUsed  int       `gorm:"column:credits_used;not null" json:"credits_used"`
	ErrorMessage string    `gorm:"type:text;column:error_message" json:"error_message"`
	CreateTime   time.Time `gorm:"column:create_time;not null" json:"create_time"`
}

func (GenerationRecord) TableName() string {
	return "generation_records"
}
