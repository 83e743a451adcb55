package controllers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/aihub/ai-gateway/internal/di"
	"github.com/aihub/ai-gateway/internal/services"
)

// GenerateController 媒体生成控制器
type GenerateController struct {
	BaseController
	metering          *services.MeteringService
	generationService *services.GenerationService
}

func (c *GenerateController) Prepare() {
	err := di.Invoke(func(m *services.MeteringService, g *services.GenerationService) {
		c.metering = m
		c.generationService = g
	})
	if err != nil {
		c.metering = services.NewMeteringService()
		c.generationService = services.NewGenerationService()
	}
}

// GenerateCall 执行计量媒体生成调用
// POST /api/v1/gen-call
func (c *GenerateController) GenerateCall() {
	userID, ok := c.getAuthenticatedUserID()
	if !ok {
		return
	}

	var req services.GenerateCallRequest
	if err := json.Unmarshal(c.Ctx.Input.RequestBody, &req); err != nil {
		c.JSONError(http.StatusBadRequest, "Invalid request: "+err.Error())
		return
	}
	if !c.validatePayload(&req) {
		return
	}

	resp, err := c.metering.MeterGeneration(c.Ctx.Request.Context(), userID, &req)
	if err != nil {
		c.JSONAppError(err)
		return
	}

	c.JSONSuccess(resp)
}

// GetGeneration 查询生成记录
// GET /api/v1/generate/:request_id
func (c *GenerateController) GetGeneration() {
	userID, ok := c.getAuthenticatedUserID()
	if !ok {
		return
	}

	requestID := c.Ctx.Input.Param(":request_id")
	if requestID == "" {
		c.JSONError(http.StatusBadRequest, "request_id is required")
		return
	}

	record, err := c.generationService.Get(requestID, userID)
	if err != nil {
		c.JSONAppError(err)
		return
	}

	c.JSONSuccess(record)
}

// ListGenerations 分页查询当前用户的生成记录
// GET /api/v1/generate/history
func (c *GenerateController) ListGenerations() {
	userID, ok := c.getAuthenticatedUserID()
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(c.GetString("limit", "20"))
	offset, _ := strconv.Atoi(c.GetString("offset", "0"))

	records, total, err := c.generationService.ListByUser(userID, limit, offset)
	if err != nil {
		c.JSONAppError(err)
		return
	}

	c.JSONSuccess(map[string]interface{}{
		"generations": records,
		"total":       total,
		"limit":       limit,
		"offset":      offset,
	})
}
