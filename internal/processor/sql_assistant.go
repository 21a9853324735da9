package processor

import (
	"context"
	"strings"

	"talent-copilot/internal/agent"
	"talent-copilot/internal/logger"
	"talent-copilot/internal/parser"
	"talent-copilot/internal/storage"
	"talent-copilot/internal/tracing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("talent-copilot/processor")

// QueryAnswer 一次问答的结果
type QueryAnswer struct {
	SQL    string             `json:"sql"`
	Result *storage.ResultSet `json:"result"`
}

// SQLAssistant 把自然语言问题翻译成 SQL 并执行
type SQLAssistant struct {
	llm      model.ToolCallingChatModel
	executor storage.QueryExecutor
	schema   SchemaDescriptor
	// schemaJSON 在构造时渲染一次
	schemaJSON string
}

// SQLAssistantOption SQL 助手选项
type SQLAssistantOption func(*SQLAssistant)

// WithSchema 替换默认的表结构描述
func WithSchema(s SchemaDescriptor) SQLAssistantOption {
	return func(a *SQLAssistant) {
		a.schema = s
	}
}

// NewSQLAssistant 创建 SQL 助手。executor 为 nil 时只能生成 SQL，执行会返回 ErrDatabaseNotConfigured
func NewSQLAssistant(llm model.ToolCallingChatModel, executor storage.QueryExecutor, opts ...SQLAssistantOption) (*SQLAssistant, error) {
	a := &SQLAssistant{
		llm:      llm,
		executor: executor,
		schema:   CandidateSchema,
	}
	for _, opt := range opts {
		opt(a)
	}
	js, err := a.schema.Indented()
	if err != nil {
		return nil, err
	}
	a.schemaJSON = js
	return a, nil
}

// Schema 表结构描述
func (a *SQLAssistant) Schema() SchemaDescriptor {
	return a.schema
}

// SchemaJSON 提示词中使用的表结构 JSON
func (a *SQLAssistant) SchemaJSON() string {
	return a.schemaJSON
}

// BuildPrompt 渲染提示词，问题原样放入
func (a *SQLAssistant) BuildPrompt(ctx context.Context, question string) ([]*schema.Message, error) {
	return agent.Render(ctx, sqlTemplate, map[string]any{
		"schema":   a.schemaJSON,
		"question": question,
	})
}

// GenerateSQL 调用模型生成 SQL，只去掉外层的代码块标记
func (a *SQLAssistant) GenerateSQL(ctx context.Context, question string) (string, error) {
	if strings.TrimSpace(question) == "" {
		return "", ErrEmptyQuestion
	}
	raw, err := agent.Invoke(ctx, a.llm, sqlTemplate, map[string]any{
		"schema":   a.schemaJSON,
		"question": question,
	})
	if err != nil {
		return "", err
	}
	return parser.StripCodeFence(raw), nil
}

// Ask 生成并执行 SQL。执行失败时返回的错误中带有生成的 SQL
func (a *SQLAssistant) Ask(ctx context.Context, question string) (*QueryAnswer, error) {
	ctx, span := tracer.Start(ctx, "SQLAssistant.Ask")
	defer span.End()

	if strings.TrimSpace(question) == "" {
		tracing.RecordError(span, ErrEmptyQuestion, tracing.ErrorTypeValidation)
		return nil, ErrEmptyQuestion
	}

	sql, err := a.GenerateSQL(ctx, question)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeLLM)
		return nil, err
	}
	span.SetAttributes(attribute.String("db.statement", tracing.SafeSQL(sql)))
	logger.Ctx(ctx).Info().Str("question", tracing.TruncateString(question, 200)).Str("sql", tracing.SafeSQL(sql)).Msg("已生成 SQL")

	if a.executor == nil {
		return nil, NewSQLError(sql, storage.ErrDatabaseNotConfigured)
	}
	rs, err := a.executor.Execute(ctx, sql)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeDB)
		return nil, NewSQLError(sql, err)
	}
	return &QueryAnswer{SQL: sql, Result: rs}, nil
}
