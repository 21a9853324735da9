package handler

import (
	"context"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
)

// HealthStatus 服务状态。LLMError 非空时页面显示阻断提示
type HealthStatus struct {
	Status             string `json:"status"`
	LLMConfigured      bool   `json:"llm_configured"`
	LLMError           string `json:"llm_error,omitempty"`
	DatabaseConfigured bool   `json:"database_configured"`
	SQLExecutionMode   string `json:"sql_execution_mode"`
	SessionStore       string `json:"session_store"`
}

// HealthHandler 健康检查
type HealthHandler struct {
	status HealthStatus
}

// NewHealthHandler 创建健康检查处理器，状态在启动时确定
func NewHealthHandler(llmErr error, databaseConfigured bool, sqlMode, sessionStore string) *HealthHandler {
	st := HealthStatus{
		Status:             "ok",
		LLMConfigured:      llmErr == nil,
		DatabaseConfigured: databaseConfigured,
		SQLExecutionMode:   sqlMode,
		SessionStore:       sessionStore,
	}
	if llmErr != nil {
		st.Status = "degraded"
		st.LLMError = llmErr.Error()
	}
	return &HealthHandler{status: st}
}

// HandleHealth GET /api/v1/health
func (h *HealthHandler) HandleHealth(ctx context.Context, c *app.RequestContext) {
	c.JSON(consts.StatusOK, h.status)
}
