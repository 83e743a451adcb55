package models

import (
	"encoding/json"
	"time"
)

// UserAccount 用户账户表（余额与订阅档位）
type UserAccount struct {
	UserID       string    `gorm:"primaryKey;column:user_id;size:64" json:"user_id"`
	Tier         string    `gorm:"size:20;default:free;not null" json:"tier"`
	ChatCredits  int       `gorm:"column:chat_credits;not null" json:"chat_credits"`
	GenAICredits int       `gorm:"column:genai_credits;not null" json:"genai_credits"`
	LastReset    time.Time `gorm:"column:last_reset;not null" json:"last_reset"`
	AgentTeam    string    `gorm:"type:json;column:agent_team" json:"agent_team"`
	CreateTime   time.Time `gorm:"column:create_time;not null" json:"create_time"`
	UpdateTime   time.Time `gorm:"column:update_time;not null" json:"update_time"`
}

func (UserAccount) TableName() string {
	return "user_accounts"
}

// Balance 按积分类型取余额
func (u *UserAccount) Balance(creditType string) int {
	if creditType == CreditTypeChat {
		return u.ChatCredits
	}
	return u.GenAICredits
}

// TeamAgentIDs 解析agent_team字段（JSON字符串数组）
func (u *UserAccount) TeamAgentIDs() []string {
	if u.AgentTeam == "" {
		return nil
	}
	var ids []string
	if err := json.Unmarshal([]byte(u.AgentTeam), &ids); err != nil {
		return nil
	}
	return ids
}

// InTeam 判断agent是否在用户团队中
func (u *UserAccount) InTeam(agentID string) bool {
	for _, id := range u.TeamAgentIDs() {
		if id == agentID {
			return true
		}
	}
	return false
}

// AgentResource AI助手表
type AgentResource struct {
	AgentID     string    `gorm:"primaryKey;column:agent_id;size:64" json:"agent_id"`
	Name        string    `gorm:"size:200;not null" json:"name"`
	Description string    `gorm:"type:text" json:"description"`
	Personality string    `gorm:"type:text" json:"personality"`
	OwnerID     string    `gorm:"column:owner_id;size:64;index" json:"owner_id"`
	IsPublic    bool      `gorm:"column:is_public;default:false" json:"is_public"`
	CreateTime  time.Time `gorm:"column:create_time;not null" json:"create_time"`
	UpdateTime  time.Time `gorm:"column:update_time;not null" json:"update_time"`
}

func (AgentResource) TableName() string {
	return "ai_agents"
}

// AgentPublicView 对外返回的助手信息，不含personality与归属
type AgentPublicView struct {
	AgentID     string    `json:"agent_id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	IsPublic    bool      `json:"is_public"`
	CreateTime  time.Time `json:"create_time"`
	UpdateTime  time.Time `json:"update_time"`
}

// PublicView 投影出可公开的字段
func (a *AgentResource) PublicView() *AgentPublicView {
	return &AgentPublicView{
		AgentID:     a.AgentID,
		Name:        a.Name,
		Description: a.Description,
		IsPublic:    a.IsPublic,
		CreateTime:  a.CreateTime,
		UpdateTime:  a.UpdateTime,
	}
}
