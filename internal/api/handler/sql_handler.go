package handler

import (
	"context"
	"encoding/json"

	"talent-copilot/internal/processor"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
)

// SQLHandler 处理 SQL 助手的请求
type SQLHandler struct {
	assistant *processor.SQLAssistant
	// llmErr 非空表示模型不可用，所有需要模型的请求直接返回该错误
	llmErr error
}

// NewSQLHandler 创建 SQLHandler
func NewSQLHandler(assistant *processor.SQLAssistant, llmErr error) *SQLHandler {
	return &SQLHandler{assistant: assistant, llmErr: llmErr}
}

// QueryRequest 自然语言问题
type QueryRequest struct {
	Question string `json:"question"`
}

// QueryResponse 生成的 SQL 和结果表
type QueryResponse struct {
	SQL       string   `json:"sql"`
	Columns   []string `json:"columns"`
	Rows      [][]any  `json:"rows"`
	Truncated bool     `json:"truncated,omitempty"`
}

// HandleSchema 返回提供给模型的表结构
// GET /api/v1/sql/schema
func (h *SQLHandler) HandleSchema(ctx context.Context, c *app.RequestContext) {
	c.JSON(consts.StatusOK, h.assistant.Schema())
}

// HandleQuery 生成并执行 SQL
// POST /api/v1/sql/query
func (h *SQLHandler) HandleQuery(ctx context.Context, c *app.RequestContext) {
	var req QueryRequest
	if err := json.Unmarshal(c.Request.Body(), &req); err != nil {
		writeBadRequest(c, "请求体不是合法的 JSON")
		return
	}
	if h.llmErr != nil {
		writeError(ctx, c, h.llmErr)
		return
	}

	ans, err := h.assistant.Ask(ctx, req.Question)
	if err != nil {
		writeError(ctx, c, err)
		return
	}
	c.JSON(consts.StatusOK, QueryResponse{
		SQL:       ans.SQL,
		Columns:   ans.Result.Columns,
		Rows:      ans.Result.Rows,
		Truncated: ans.Result.Truncated,
	})
}
