package handler

import (
	"context"
	"errors"

	"talent-copilot/internal/agent"
	"talent-copilot/internal/config"
	"talent-copilot/internal/logger"
	"talent-copilot/internal/parser"
	"talent-copilot/internal/processor"
	"talent-copilot/internal/session"
	"talent-copilot/internal/storage"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
)

// ErrorResponse 错误响应，SQL 相关错误附带生成的语句
type ErrorResponse struct {
	Error string `json:"error"`
	SQL   string `json:"sql,omitempty"`
}

// statusFor 把错误映射为 HTTP 状态码和展示给用户的文案
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, config.ErrMissingAPIKey):
		return consts.StatusServiceUnavailable, config.ErrMissingAPIKey.Error()
	case errors.Is(err, agent.ErrLLMCallFailed):
		// 模型错误细节只记日志，页面上统一显示一条
		return consts.StatusBadGateway, agent.ErrLLMCallFailed.Error()
	case errors.Is(err, processor.ErrEmptyQuestion):
		return consts.StatusBadRequest, processor.ErrEmptyQuestion.Error()
	case errors.Is(err, storage.ErrDatabaseNotConfigured):
		return consts.StatusServiceUnavailable, storage.ErrDatabaseNotConfigured.Error()
	case errors.Is(err, storage.ErrEmptyQuery), errors.Is(err, storage.ErrStatementNotAllowed):
		return consts.StatusUnprocessableEntity, rootMessage(err)
	case errors.Is(err, processor.ErrSQLExecutionFailed):
		return consts.StatusInternalServerError, rootMessage(err)
	case errors.Is(err, parser.ErrFileTooLarge):
		return consts.StatusRequestEntityTooLarge, err.Error()
	case errors.Is(err, parser.ErrUnsupportedFileType):
		return consts.StatusUnsupportedMediaType, err.Error()
	case errors.Is(err, processor.ErrEmptyResumeText):
		return consts.StatusUnprocessableEntity, processor.ErrEmptyResumeText.Error()
	case errors.Is(err, processor.ErrNoResumeData), errors.Is(err, processor.ErrNoQuestions):
		return consts.StatusConflict, err.Error()
	case errors.Is(err, processor.ErrUnknownQuestion):
		return consts.StatusBadRequest, err.Error()
	case errors.Is(err, session.ErrSessionNotFound):
		return consts.StatusNotFound, err.Error()
	default:
		return consts.StatusInternalServerError, err.Error()
	}
}

// rootMessage SQL 执行失败时去掉外层包装，只展示执行器或驱动的错误
func rootMessage(err error) string {
	var pe *processor.ProcessError
	if errors.As(err, &pe) {
		if u, ok := pe.BaseErr.(interface{ Unwrap() []error }); ok {
			if errs := u.Unwrap(); len(errs) > 0 {
				return errs[len(errs)-1].Error()
			}
		}
	}
	return err.Error()
}

func writeError(ctx context.Context, c *app.RequestContext, err error) {
	status, msg := statusFor(err)
	event := logger.Ctx(ctx).Warn()
	if status >= consts.StatusInternalServerError {
		event = logger.Ctx(ctx).Error()
	}
	event.Err(err).Int("status", status).Str("path", string(c.Path())).Msg("请求处理失败")
	c.JSON(status, ErrorResponse{Error: msg, SQL: processor.GeneratedSQL(err)})
}

func writeBadRequest(c *app.RequestContext, msg string) {
	c.JSON(consts.StatusBadRequest, utils.H{"error": msg})
}
