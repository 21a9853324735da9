package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"talent-copilot/internal/logger"
	"talent-copilot/internal/tracing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"
	"go.opentelemetry.io/otel/attribute"
)

// ErrLLMCallFailed 模型调用失败，HTTP 层统一显示为一条错误
var ErrLLMCallFailed = errors.New("LLM request failed")

// Template 提示词模板，占位符写作 {name}，模板正文中不能出现其他花括号
type Template struct {
	Name   string
	System string
	User   string
}

// Render 用 vars 填充模板，缺少变量时返回错误
func Render(ctx context.Context, tpl Template, vars map[string]any) ([]*schema.Message, error) {
	msgs := make([]schema.MessagesTemplate, 0, 2)
	if tpl.System != "" {
		msgs = append(msgs, schema.SystemMessage(tpl.System))
	}
	msgs = append(msgs, schema.UserMessage(tpl.User))

	rendered, err := prompt.FromMessages(schema.FString, msgs...).Format(ctx, vars)
	if err != nil {
		return nil, fmt.Errorf("渲染提示词 %s 失败: %w", tpl.Name, err)
	}
	return rendered, nil
}

// Invoke 渲染模板并调用模型，返回原始文本
func Invoke(ctx context.Context, chatModel model.ToolCallingChatModel, tpl Template, vars map[string]any) (string, error) {
	ctx, span := tracing.Tracer("agent").Start(ctx, "llm."+tpl.Name)
	defer span.End()

	messages, err := Render(ctx, tpl, vars)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeValidation)
		return "", err
	}

	start := time.Now()
	resp, err := chatModel.Generate(ctx, messages)
	elapsed := time.Since(start)
	span.SetAttributes(attribute.Int64("llm.duration_ms", elapsed.Milliseconds()))

	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeLLM)
		logger.Ctx(ctx).Error().Err(err).Str("template", tpl.Name).Dur("elapsed", elapsed).Msg("LLM 调用失败")
		return "", fmt.Errorf("%w: %w", ErrLLMCallFailed, err)
	}
	if resp == nil {
		err := errors.New("模型返回空消息")
		tracing.RecordError(span, err, tracing.ErrorTypeLLM)
		return "", fmt.Errorf("%w: %w", ErrLLMCallFailed, err)
	}

	span.SetAttributes(
		attribute.Int("llm.response_len", len(resp.Content)),
		attribute.String("llm.response_preview", tracing.SafePrompt(resp.Content)),
	)
	logger.Ctx(ctx).Debug().Str("template", tpl.Name).Dur("elapsed", elapsed).Int("response_len", len(resp.Content)).Msg("LLM 调用完成")
	return resp.Content, nil
}
