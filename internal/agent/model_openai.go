package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"talent-copilot/internal/config"
	"talent-copilot/internal/logger"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/rs/zerolog"
)

const (
	defaultModelName   = "gpt-4"
	defaultTemperature = 0.5
)

// OpenAIConfig 聊天模型配置
type OpenAIConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float64
	// Options 额外的请求选项，测试时可注入 option.WithHTTPClient
	Options []option.RequestOption
}

// OpenAIChatModel 通过 OpenAI 兼容的 chat completion 接口实现 model.ToolCallingChatModel。
// 模型名和温度在构造时固定，不做重试
type OpenAIChatModel struct {
	client      *openai.Client
	modelName   string
	temperature float64
	tools       []*schema.ToolInfo
	log         zerolog.Logger
}

// NewOpenAIChatModel 创建聊天模型，API Key 为空时返回 config.ErrMissingAPIKey
func NewOpenAIChatModel(cfg OpenAIConfig) (*OpenAIChatModel, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, config.ErrMissingAPIKey
	}

	mn := cfg.Model
	if strings.TrimSpace(mn) == "" {
		mn = defaultModelName
	}
	temp := cfg.Temperature
	if temp <= 0 {
		temp = defaultTemperature
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	opts = append(opts, cfg.Options...)

	l := logger.Component("llm")
	l.Info().Str("model", mn).Float64("temperature", temp).Str("base_url", cfg.BaseURL).Msg("初始化 LLM 客户端")

	return &OpenAIChatModel{
		client:      openai.NewClient(opts...),
		modelName:   mn,
		temperature: temp,
		log:         l,
	}, nil
}

// Generate 实现 model.BaseChatModel
func (m *OpenAIChatModel) Generate(ctx context.Context, messages []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	modelName := m.modelName
	temperature := m.temperature
	common := model.GetCommonOptions(&model.Options{}, opts...)
	if common.Model != nil && *common.Model != "" {
		modelName = *common.Model
	}
	if common.Temperature != nil {
		temperature = float64(*common.Temperature)
	}

	params := openai.ChatCompletionNewParams{
		Messages:    openai.F(toOpenAIMessages(messages)),
		Model:       openai.F(modelName),
		Temperature: openai.F(temperature),
	}

	m.log.Debug().Str("model", modelName).Int("messages", len(messages)).Msg("发送 chat completion 请求")

	completion, err := m.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("chat completion 请求失败: %w", err)
	}
	if len(completion.Choices) == 0 {
		return nil, errors.New("chat completion 返回空选项")
	}

	content := completion.Choices[0].Message.Content
	m.log.Debug().Int("content_len", len(content)).Msg("收到 chat completion 响应")
	return schema.AssistantMessage(content, nil), nil
}

// Stream 以单个分片返回完整结果
func (m *OpenAIChatModel) Stream(ctx context.Context, messages []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := m.Generate(ctx, messages, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

// WithTools 返回绑定了工具的副本。工具定义不会随请求发送，所有调用都是纯文本补全
func (m *OpenAIChatModel) WithTools(tools []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	cp := *m
	cp.tools = append([]*schema.ToolInfo(nil), tools...)
	return &cp, nil
}

// ModelName 当前使用的模型名
func (m *OpenAIChatModel) ModelName() string {
	return m.modelName
}

func toOpenAIMessages(messages []*schema.Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, msg := range messages {
		if msg == nil {
			continue
		}
		switch msg.Role {
		case schema.System:
			out = append(out, openai.SystemMessage(msg.Content))
		case schema.Assistant:
			out = append(out, openai.AssistantMessage(msg.Content))
		default:
			out = append(out, openai.UserMessage(msg.Content))
		}
	}
	return out
}

var _ model.ToolCallingChatModel = (*OpenAIChatModel)(nil)
