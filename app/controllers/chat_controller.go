package controllers

import (
	"encoding/json"
	"net/http"

	"github.com/aihub/ai-gateway/internal/di"
	"github.com/aihub/ai-gateway/internal/services"
)

// ChatController 聊天调用控制器
type ChatController struct {
	BaseController
	metering      *services.MeteringService
	accessService *services.AccessService
}

// Prepare 从DI容器解析依赖；容器未初始化时（如单测直连）直接装配
func (c *ChatController) Prepare() {
	err := di.Invoke(func(m *services.MeteringService, a *services.AccessService) {
		c.metering = m
		c.accessService = a
	})
	if err != nil {
		c.metering = services.NewMeteringService()
		c.accessService = services.NewAccessService()
	}
}

// ChatCall 执行计量聊天调用
// POST /api/v1/chat-call
func (c *ChatController) ChatCall() {
	userID, ok := c.getAuthenticatedUserID()
	if !ok {
		return
	}

	var req services.ChatCallRequest
	if err := json.Unmarshal(c.Ctx.Input.RequestBody, &req); err != nil {
		c.JSONError(http.StatusBadRequest, "Invalid request: "+err.Error())
		return
	}
	if !c.validatePayload(&req) {
		return
	}

	resp, err := c.metering.MeterChat(c.Ctx.Request.Context(), userID, &req)
	if err != nil {
		c.JSONAppError(err)
		return
	}

	c.JSONSuccess(resp)
}

// GetAgent 获取助手信息（仅限有权访问的助手）
// GET /api/v1/chat/agents/:agent_id
func (c *ChatController) GetAgent() {
	userID, ok := c.getAuthenticatedUserID()
	if !ok {
		return
	}

	agentID := c.Ctx.Input.Param(":agent_id")
	if agentID == "" {
		c.JSONError(http.StatusBadRequest, "agent_id is required")
		return
	}

	allowed, err := c.accessService.HasAccess(userID, agentID)
	if err != nil {
		c.JSONAppError(err)
		return
	}
	if !allowed {
		c.JSONError(http.StatusForbidden, "You do not have access to this agent")
		return
	}

	agent, err := c.accessService.GetAgent(agentID)
	if err != nil {
		c.JSONAppError(err)
		return
	}

	// 仅暴露公开字段，personality不出接口
	c.JSONSuccess(agent.PublicView())
}
