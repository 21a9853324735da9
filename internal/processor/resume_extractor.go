package processor

import (
	"context"

	"talent-copilot/internal/agent"
	"talent-copilot/internal/logger"
	"talent-copilot/internal/parser"
	"talent-copilot/internal/tracing"
	"talent-copilot/internal/types"

	"github.com/cloudwego/eino/components/model"
	"go.opentelemetry.io/otel/attribute"
)

// ResumeExtractor 让模型从简历文本中抽取结构化字段
type ResumeExtractor struct {
	llm model.ToolCallingChatModel
}

// NewResumeExtractor 创建抽取器
func NewResumeExtractor(llm model.ToolCallingChatModel) *ResumeExtractor {
	return &ResumeExtractor{llm: llm}
}

// Extract 返回解析结果。模型输出不是合法 JSON 时返回 failure 变体而不是错误，
// 只有模型调用本身失败才返回错误
func (e *ResumeExtractor) Extract(ctx context.Context, resumeText string) (types.LLMResult[*types.ResumeRecord], error) {
	ctx, span := tracer.Start(ctx, "ResumeExtractor.Extract")
	defer span.End()
	span.SetAttributes(
		attribute.Int("resume.text_len", len(resumeText)),
		attribute.String("resume.preview", tracing.SafeResumeContent(resumeText)),
	)

	raw, err := agent.Invoke(ctx, e.llm, resumeExtractionTemplate, map[string]any{
		"resume_text": resumeText,
	})
	if err != nil {
		return types.LLMResult[*types.ResumeRecord]{}, err
	}

	var fields map[string]any
	if err := parser.DecodeJSON(raw, &fields); err != nil {
		span.SetAttributes(attribute.Bool("resume.parsed", false))
		logger.Ctx(ctx).Warn().Err(err).Str("raw", tracing.TruncateString(raw, 300)).Msg("简历字段不是合法 JSON")
		return types.Failure[*types.ResumeRecord](raw), nil
	}
	span.SetAttributes(attribute.Bool("resume.parsed", true))
	return types.Success(types.NewResumeRecord(fields), raw), nil
}
