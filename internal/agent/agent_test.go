package agent

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"talent-copilot/internal/config"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderFillsPlaceholders(t *testing.T) {
	tpl := Template{Name: "greet", System: "You are terse.", User: "Hello {name}, you asked: {question}"}
	msgs, err := Render(context.Background(), tpl, map[string]any{"name": "Ada", "question": "why?"})
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, schema.System, msgs[0].Role)
	assert.Equal(t, "Hello Ada, you asked: why?", msgs[1].Content)
}

func TestRenderMissingVariable(t *testing.T) {
	tpl := Template{Name: "greet", User: "Hello {name}"}
	_, err := Render(context.Background(), tpl, map[string]any{})
	assert.Error(t, err)
}

// TestRenderValueWithBraces 变量值里的花括号原样保留
func TestRenderValueWithBraces(t *testing.T) {
	tpl := Template{Name: "schema", User: "Schema:\n{schema}"}
	msgs, err := Render(context.Background(), tpl, map[string]any{"schema": `{"a": {"b": "c"}}`})
	require.NoError(t, err)
	assert.Equal(t, "Schema:\n{\"a\": {\"b\": \"c\"}}", msgs[0].Content)
}

func TestInvokeReturnsRawText(t *testing.T) {
	mock := NewMockChatClient("SELECT 1", nil)
	out, err := Invoke(context.Background(), mock, Template{Name: "t", System: "sys", User: "q={q}"}, map[string]any{"q": "x"})
	require.NoError(t, err)
	assert.Equal(t, "SELECT 1", out)
	assert.Equal(t, "q=x", mock.LastUserPrompt())
	assert.Equal(t, 1, mock.CallCount())

	msgs := mock.GetReceivedMessages()
	require.Len(t, msgs, 2)
	assert.Equal(t, schema.System, msgs[0].Role)
	assert.Equal(t, "sys", msgs[0].Content)
}

// TestInvokeWrapsFailure 传输错误统一包装为 ErrLLMCallFailed，不重试
func TestInvokeWrapsFailure(t *testing.T) {
	cause := errors.New("connection reset")
	mock := NewMockChatClient("", cause)
	_, err := Invoke(context.Background(), mock, Template{Name: "t", User: "hi"}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrLLMCallFailed)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, 1, mock.CallCount())
}

func TestMockSequential(t *testing.T) {
	mock := NewMockChatClientSequential(MockResponse{Content: "a"}, MockResponse{Error: errors.New("boom")})
	ctx := context.Background()

	msg, err := mock.Generate(ctx, []*schema.Message{schema.UserMessage("1")})
	require.NoError(t, err)
	assert.Equal(t, "a", msg.Content)

	_, err = mock.Generate(ctx, nil)
	assert.EqualError(t, err, "boom")

	_, err = mock.Generate(ctx, nil)
	assert.Error(t, err, "响应用完后应返回错误")
}

func TestNewOpenAIChatModelRequiresKey(t *testing.T) {
	_, err := NewOpenAIChatModel(OpenAIConfig{})
	assert.ErrorIs(t, err, config.ErrMissingAPIKey)
}

// TestOpenAIChatModelGenerate 用本地 HTTP 服务模拟 OpenAI 兼容接口
func TestOpenAIChatModelGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
  "id": "chatcmpl-1",
  "object": "chat.completion",
  "created": 1700000000,
  "model": "gpt-4",
  "choices": [{"index": 0, "finish_reason": "stop", "message": {"role": "assistant", "content": "SELECT * FROM projects"}}]
}`))
	}))
	defer srv.Close()

	m, err := NewOpenAIChatModel(OpenAIConfig{APIKey: "sk-test", BaseURL: srv.URL + "/"})
	require.NoError(t, err)
	assert.Equal(t, "gpt-4", m.ModelName())

	msg, err := m.Generate(context.Background(), []*schema.Message{schema.UserMessage("list projects")})
	require.NoError(t, err)
	assert.Equal(t, schema.Assistant, msg.Role)
	assert.Equal(t, "SELECT * FROM projects", msg.Content)
}

func TestOpenAIChatModelHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error": {"message": "down"}}`))
	}))
	defer srv.Close()

	m, err := NewOpenAIChatModel(OpenAIConfig{APIKey: "sk-test", BaseURL: srv.URL + "/"})
	require.NoError(t, err)

	_, err = Invoke(context.Background(), m, Template{Name: "t", User: "hi"}, nil)
	assert.ErrorIs(t, err, ErrLLMCallFailed)
}
