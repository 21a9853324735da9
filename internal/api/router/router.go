package router

import (
	"context"

	"talent-copilot/internal/api/handler"
	"talent-copilot/internal/api/web"
	"talent-copilot/internal/constants"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
)

// Handlers 路由依赖的处理器
type Handlers struct {
	Health    *handler.HealthHandler
	SQL       *handler.SQLHandler
	Interview *handler.InterviewHandler
}

// Options 路由选项
type Options struct {
	// APIToken 非空时启用 Bearer Token 校验，健康检查和页面除外
	APIToken string
}

// RegisterRoutes 注册页面和 API 路由
func RegisterRoutes(h *server.Hertz, hs Handlers, opts Options) {
	h.Use(Tracing(), RequestID(), AccessLog())

	h.GET("/", func(ctx context.Context, c *app.RequestContext) {
		c.Data(consts.StatusOK, "text/html; charset=utf-8", web.IndexHTML)
	})

	api := h.Group(constants.APIVersionPrefix)
	api.GET("/health", hs.Health.HandleHealth)

	if opts.APIToken != "" {
		api.Use(TokenAuth(opts.APIToken))
	}

	sql := api.Group("/sql")
	sql.GET("/schema", hs.SQL.HandleSchema)
	sql.POST("/query", hs.SQL.HandleQuery)

	interview := api.Group("/interview")
	interview.POST("/resume", hs.Interview.HandleUploadResume)
	interview.GET("/session", hs.Interview.HandleGetSession)
	interview.DELETE("/session", hs.Interview.HandleResetSession)
	interview.POST("/questions", hs.Interview.HandleGenerateQuestions)
	interview.PUT("/answers", hs.Interview.HandleSaveAnswers)
	interview.POST("/evaluation", hs.Interview.HandleEvaluate)
}
