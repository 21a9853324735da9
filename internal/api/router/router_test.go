package router_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"strings"
	"testing"
	"time"

	"talent-copilot/internal/agent"
	"talent-copilot/internal/api/handler"
	"talent-copilot/internal/api/router"
	"talent-copilot/internal/config"
	"talent-copilot/internal/constants"
	"talent-copilot/internal/parser"
	"talent-copilot/internal/processor"
	"talent-copilot/internal/session"
	"talent-copilot/internal/storage"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/ut"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const resumeJSON = "```json\n" + `{
	"Full Name": "Grace Hopper",
	"Contact Information": {"Email": "grace@example.com"},
	"Work Experience": [{"Company": "Navy", "Role": "Engineer", "Duration": "8 years"}],
	"Skills": ["COBOL", "Go"],
	"Projects": [{"Project Name": "Compiler", "Technologies used": "COBOL"}]
}` + "\n```"

const questionsJSON = `{
	"Project-based Questions": ["How did you test the compiler?", "Why COBOL?"],
	"Fill-in-the-Blanks": ["Go has ____ routines.", "A ____ is a bug.", "SQL ____ filters rows.", "HTTP ____ is stateless.", "JSON uses ____ braces."],
	"Coding Questions": ["Reverse a string.", "Merge two sorted lists.", "Implement an LRU cache."]
}`

type fakeExecutor struct {
	result  *storage.ResultSet
	err     error
	queries []string
}

func (f *fakeExecutor) Execute(ctx context.Context, query string) (*storage.ResultSet, error) {
	f.queries = append(f.queries, query)
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type testEnv struct {
	h        *server.Hertz
	llm      *agent.MockChatClient
	executor *fakeExecutor
}

type envOptions struct {
	llmErr    error
	token     string
	maxUpload int64
}

func newTestEnv(t *testing.T, llm *agent.MockChatClient, opts envOptions) *testEnv {
	t.Helper()
	ctx := context.Background()

	var chatModel model.ToolCallingChatModel = llm
	exec := &fakeExecutor{result: &storage.ResultSet{Columns: []string{"full_name"}, Rows: [][]any{{"Grace Hopper"}}}}

	assistant, err := processor.NewSQLAssistant(chatModel, exec)
	require.NoError(t, err)

	documents, err := parser.NewDocumentExtractor(ctx, config.ExtractorConfig{
		PDFEngine:      config.PDFEngineLedongthuc,
		MaxUploadBytes: 1 << 20,
	})
	require.NoError(t, err)

	service := processor.NewInterviewService(
		session.NewMemoryStore(time.Hour),
		documents,
		processor.NewResumeExtractor(chatModel),
		processor.NewQuestionGenerator(chatModel),
		processor.NewAnswerEvaluator(chatModel),
	)

	maxUpload := opts.maxUpload
	if maxUpload == 0 {
		maxUpload = 1 << 20
	}
	h := server.New(server.WithHostPorts("127.0.0.1:0"))
	router.RegisterRoutes(h, router.Handlers{
		Health: handler.NewHealthHandler(opts.llmErr, true, config.ExecutionModeReadOnly, "memory"),
		SQL:    handler.NewSQLHandler(assistant, opts.llmErr),
		Interview: handler.NewInterviewHandler(service,
			handler.WithSessionCookie("sid", time.Hour),
			handler.WithMaxUploadBytes(maxUpload),
			handler.WithLLMError(opts.llmErr),
		),
	}, router.Options{APIToken: opts.token})

	return &testEnv{h: h, llm: llm, executor: exec}
}

func (e *testEnv) do(method, path string, body []byte, headers ...ut.Header) *ut.ResponseRecorder {
	var b *ut.Body
	if body != nil {
		b = &ut.Body{Body: bytes.NewReader(body), Len: len(body)}
	}
	return ut.PerformRequest(e.h.Engine, method, path, b, headers...)
}

func (e *testEnv) upload(t *testing.T, filename string, content []byte, headers ...ut.Header) *ut.ResponseRecorder {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	headers = append(headers, ut.Header{Key: "Content-Type", Value: writer.FormDataContentType()})
	return ut.PerformRequest(e.h.Engine, "POST", "/api/v1/interview/resume",
		&ut.Body{Body: body, Len: body.Len()}, headers...)
}

func decode[T any](t *testing.T, w *ut.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func sessionHeader(id string) ut.Header {
	return ut.Header{Key: constants.SessionHeader, Value: id}
}

func TestIndexPage(t *testing.T) {
	env := newTestEnv(t, agent.NewMockChatClient("", nil), envOptions{})
	w := env.do("GET", "/", nil)
	assert.Equal(t, 200, w.Code)
	assert.Contains(t, w.Body.String(), "Generate &amp; Run Query")
	assert.Contains(t, w.Body.String(), "Evaluate Answers")
}

func TestRequestIDHeader(t *testing.T) {
	env := newTestEnv(t, agent.NewMockChatClient("", nil), envOptions{})

	w := env.do("GET", "/api/v1/health", nil)
	assert.NotEmpty(t, string(w.Header().Peek(constants.RequestIDHeader)))

	w = env.do("GET", "/api/v1/health", nil, ut.Header{Key: constants.RequestIDHeader, Value: "req-42"})
	assert.Equal(t, "req-42", string(w.Header().Peek(constants.RequestIDHeader)))
}

func TestMissingAPIKeyBlocksLLMRoutes(t *testing.T) {
	llm := agent.NewMockChatClient("SELECT 1", nil)
	env := newTestEnv(t, llm, envOptions{llmErr: config.ErrMissingAPIKey})

	w := env.do("GET", "/api/v1/health", nil)
	require.Equal(t, 200, w.Code)
	health := decode[handler.HealthStatus](t, w)
	assert.Equal(t, "degraded", health.Status)
	assert.False(t, health.LLMConfigured)
	assert.Equal(t, config.ErrMissingAPIKey.Error(), health.LLMError)

	w = env.do("POST", "/api/v1/sql/query", []byte(`{"question":"list candidates"}`))
	assert.Equal(t, 503, w.Code)
	assert.Equal(t, config.ErrMissingAPIKey.Error(), decode[handler.ErrorResponse](t, w).Error)

	w = env.upload(t, "resume.txt", []byte("Grace Hopper"))
	assert.Equal(t, 503, w.Code)

	w = env.do("POST", "/api/v1/interview/questions", nil)
	assert.Equal(t, 503, w.Code)
	w = env.do("POST", "/api/v1/interview/evaluation", nil)
	assert.Equal(t, 503, w.Code)

	// 不需要模型的接口仍可用
	w = env.do("GET", "/api/v1/sql/schema", nil)
	assert.Equal(t, 200, w.Code)
	assert.Equal(t, 0, llm.CallCount())
}

func TestSQLSchema(t *testing.T) {
	env := newTestEnv(t, agent.NewMockChatClient("", nil), envOptions{})
	w := env.do("GET", "/api/v1/sql/schema", nil)
	require.Equal(t, 200, w.Code)

	body := w.Body.String()
	order := []string{"education", "personal_details", "projects", "work_experience"}
	last := -1
	for _, name := range order {
		idx := strings.Index(body, fmt.Sprintf("%q", name))
		require.Greater(t, idx, last, name)
		last = idx
	}
}

func TestSQLQuery(t *testing.T) {
	llm := agent.NewMockChatClient("```sql\nSELECT full_name FROM personal_details;\n```", nil)
	env := newTestEnv(t, llm, envOptions{})

	w := env.do("POST", "/api/v1/sql/query", []byte(`{"question":"Show all candidate names"}`))
	require.Equal(t, 200, w.Code, w.Body.String())

	resp := decode[handler.QueryResponse](t, w)
	assert.Equal(t, "SELECT full_name FROM personal_details;", resp.SQL)
	assert.Equal(t, []string{"full_name"}, resp.Columns)
	assert.Equal(t, [][]any{{"Grace Hopper"}}, resp.Rows)
	assert.Equal(t, []string{"SELECT full_name FROM personal_details;"}, env.executor.queries)
	assert.Contains(t, llm.LastUserPrompt(), "Show all candidate names")
}

func TestSQLQueryEmptyQuestion(t *testing.T) {
	llm := agent.NewMockChatClient("SELECT 1", nil)
	env := newTestEnv(t, llm, envOptions{})

	for _, body := range []string{`{"question":""}`, `{"question":"   "}`, `{}`} {
		w := env.do("POST", "/api/v1/sql/query", []byte(body))
		assert.Equal(t, 400, w.Code, body)
		assert.Equal(t, "please enter a question", decode[handler.ErrorResponse](t, w).Error)
	}
	assert.Equal(t, 0, llm.CallCount())
	assert.Empty(t, env.executor.queries)

	w := env.do("POST", "/api/v1/sql/query", []byte(`not json`))
	assert.Equal(t, 400, w.Code)
}

func TestSQLQueryExecutionError(t *testing.T) {
	env := newTestEnv(t, agent.NewMockChatClient("SELECT nope FROM projects", nil), envOptions{})
	env.executor.err = errors.New(`column "nope" does not exist`)

	w := env.do("POST", "/api/v1/sql/query", []byte(`{"question":"projects?"}`))
	assert.Equal(t, 500, w.Code)
	resp := decode[handler.ErrorResponse](t, w)
	assert.Equal(t, `column "nope" does not exist`, resp.Error)
	assert.Equal(t, "SELECT nope FROM projects", resp.SQL)
}

func TestSQLQueryRejectedStatement(t *testing.T) {
	env := newTestEnv(t, agent.NewMockChatClient("DELETE FROM projects", nil), envOptions{})
	env.executor.err = fmt.Errorf("%w: DELETE", storage.ErrStatementNotAllowed)

	w := env.do("POST", "/api/v1/sql/query", []byte(`{"question":"remove projects"}`))
	assert.Equal(t, 422, w.Code)
	assert.Equal(t, "DELETE FROM projects", decode[handler.ErrorResponse](t, w).SQL)
}

func TestSQLQueryLLMFailure(t *testing.T) {
	env := newTestEnv(t, agent.NewMockChatClient("", errors.New("rate limited")), envOptions{})
	w := env.do("POST", "/api/v1/sql/query", []byte(`{"question":"anything"}`))
	assert.Equal(t, 502, w.Code)
	assert.Equal(t, agent.ErrLLMCallFailed.Error(), decode[handler.ErrorResponse](t, w).Error)
	assert.Empty(t, env.executor.queries)
}

func TestTokenGuard(t *testing.T) {
	env := newTestEnv(t, agent.NewMockChatClient("", nil), envOptions{token: "s3cret"})

	w := env.do("GET", "/api/v1/health", nil)
	assert.Equal(t, 200, w.Code)
	w = env.do("GET", "/", nil)
	assert.Equal(t, 200, w.Code)

	w = env.do("GET", "/api/v1/sql/schema", nil)
	assert.Equal(t, 401, w.Code)
	w = env.do("GET", "/api/v1/sql/schema", nil, ut.Header{Key: "Authorization", Value: "Bearer wrong"})
	assert.Equal(t, 401, w.Code)
	w = env.do("GET", "/api/v1/sql/schema", nil, ut.Header{Key: "Authorization", Value: "Bearer s3cret"})
	assert.Equal(t, 200, w.Code)
	w = env.do("GET", "/api/v1/interview/session", nil)
	assert.Equal(t, 401, w.Code)
}

func TestInterviewFlow(t *testing.T) {
	llm := agent.NewMockChatClientSequential(
		agent.MockResponse{Content: resumeJSON},
		agent.MockResponse{Content: questionsJSON},
		agent.MockResponse{Content: "Overall score: 7/10"},
	)
	env := newTestEnv(t, llm, envOptions{})

	w := env.upload(t, "grace.txt", []byte("Grace Hopper, engineer, COBOL and Go"))
	require.Equal(t, 200, w.Code, w.Body.String())
	up := decode[handler.UploadResponse](t, w)
	require.NotEmpty(t, up.SessionID)
	assert.Equal(t, up.SessionID, string(w.Header().Peek(constants.SessionHeader)))
	assert.Equal(t, handler.StatusParsed, up.Status)
	require.NotNil(t, up.ResumeData)
	assert.Equal(t, "Grace Hopper", up.ResumeData.FullName)
	sid := sessionHeader(up.SessionID)

	// 同一文件再次上传不再调用模型
	w = env.upload(t, "grace.txt", []byte("Grace Hopper, engineer, COBOL and Go"), sid)
	require.Equal(t, 200, w.Code)
	assert.Equal(t, 1, llm.CallCount())

	w = env.do("POST", "/api/v1/interview/questions", nil, sid)
	require.Equal(t, 200, w.Code, w.Body.String())
	qs := decode[handler.QuestionsResponse](t, w)
	assert.Equal(t, 10, qs.Questions.Count())
	require.Len(t, qs.Forms, 10)
	assert.Equal(t, "Q1: How did you test the compiler?", qs.Forms[0].Label)
	assert.Equal(t, "2-10 years", qs.Tier)
	assert.Equal(t, 8, qs.TotalExperience)
	assert.Empty(t, qs.Warnings)

	answers := `{"answers":[
		{"category":"Project-based Questions","index":1,"answer":"Unit tests"},
		{"category":"Coding Questions","index":3,"answer":"map + list"}
	]}`
	w = env.do("PUT", "/api/v1/interview/answers", []byte(answers), sid)
	require.Equal(t, 200, w.Code, w.Body.String())
	saved := decode[handler.AnswersResponse](t, w)
	assert.Equal(t, "Unit tests", saved.Forms[0].Answer)
	assert.Equal(t, "map + list", saved.Forms[9].Answer)
	assert.Equal(t, "", saved.Forms[1].Answer)

	w = env.do("POST", "/api/v1/interview/evaluation", nil, sid)
	require.Equal(t, 200, w.Code, w.Body.String())
	assert.Equal(t, "Overall score: 7/10", decode[handler.EvaluationResponse](t, w).Evaluation)
	assert.Contains(t, llm.LastUserPrompt(), "Unit tests")

	w = env.do("GET", "/api/v1/interview/session", nil, sid)
	require.Equal(t, 200, w.Code)
	view := decode[handler.SessionView](t, w)
	assert.Equal(t, up.SessionID, view.SessionID)
	assert.Equal(t, "grace.txt", view.FileName)
	assert.Equal(t, handler.StatusParsed, view.ResumeStatus)
	assert.Equal(t, "Overall score: 7/10", view.Evaluation)
	assert.Equal(t, "Unit tests", view.Forms[0].Answer)

	w = env.do("DELETE", "/api/v1/interview/session", nil, sid)
	assert.Equal(t, 204, w.Code)

	w = env.do("GET", "/api/v1/interview/session", nil, sid)
	require.Equal(t, 200, w.Code)
	fresh := decode[handler.SessionView](t, w)
	assert.NotEqual(t, up.SessionID, fresh.SessionID)
	assert.Nil(t, fresh.Questions)
	assert.Empty(t, fresh.Evaluation)
}

func TestInterviewSessionFromCookie(t *testing.T) {
	env := newTestEnv(t, agent.NewMockChatClient(resumeJSON, nil), envOptions{})

	w := env.upload(t, "grace.txt", []byte("Grace Hopper"))
	require.Equal(t, 200, w.Code)
	id := decode[handler.UploadResponse](t, w).SessionID

	var cookie string
	w.Header().VisitAllCookie(func(key, value []byte) {
		if string(key) == "sid" {
			cookie = string(value)
		}
	})
	assert.Contains(t, cookie, "sid="+id)

	w = env.do("GET", "/api/v1/interview/session", nil, ut.Header{Key: "Cookie", Value: "sid=" + id})
	require.Equal(t, 200, w.Code)
	assert.Equal(t, id, decode[handler.SessionView](t, w).SessionID)
}

func TestInterviewUnparseableResume(t *testing.T) {
	env := newTestEnv(t, agent.NewMockChatClient("I could not read that resume.", nil), envOptions{})

	w := env.upload(t, "resume.txt", []byte("some text"))
	require.Equal(t, 200, w.Code)
	up := decode[handler.UploadResponse](t, w)
	assert.Equal(t, handler.StatusNotAvailable, up.Status)
	assert.Nil(t, up.ResumeData)

	w = env.do("POST", "/api/v1/interview/questions", nil, sessionHeader(up.SessionID))
	assert.Equal(t, 409, w.Code)
}

func TestInterviewStateErrors(t *testing.T) {
	llm := agent.NewMockChatClient(resumeJSON, nil)
	env := newTestEnv(t, llm, envOptions{})

	w := env.do("POST", "/api/v1/interview/questions", nil)
	assert.Equal(t, 409, w.Code)
	w = env.do("POST", "/api/v1/interview/evaluation", nil)
	assert.Equal(t, 409, w.Code)
	w = env.do("PUT", "/api/v1/interview/answers", []byte(`{"answers":[]}`))
	assert.Equal(t, 409, w.Code)
	w = env.do("PUT", "/api/v1/interview/answers", []byte(`{`))
	assert.Equal(t, 400, w.Code)
	assert.Equal(t, 0, llm.CallCount())
}

func TestInterviewUploadErrors(t *testing.T) {
	llm := agent.NewMockChatClient(resumeJSON, nil)
	env := newTestEnv(t, llm, envOptions{maxUpload: 16})

	w := env.upload(t, "photo.png", []byte("png"))
	assert.Equal(t, 415, w.Code)

	w = env.upload(t, "big.txt", bytes.Repeat([]byte("a"), 64))
	assert.Equal(t, 413, w.Code)

	w = env.upload(t, "blank.txt", []byte("   \n"))
	assert.Equal(t, 422, w.Code)

	w = env.do("POST", "/api/v1/interview/resume", []byte("no form"), ut.Header{Key: "Content-Type", Value: "text/plain"})
	assert.Equal(t, 400, w.Code)
	assert.Equal(t, 0, llm.CallCount())
}
