package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"talent-copilot/internal/constants"
	"talent-copilot/internal/logger"
	"talent-copilot/internal/processor"
	"talent-copilot/internal/session"
	"talent-copilot/internal/types"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/protocol"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
)

// 上传状态
const (
	StatusParsed       = "parsed"
	StatusNotAvailable = "not_available"
)

// InterviewHandler 处理面试助手的请求
type InterviewHandler struct {
	service    *processor.InterviewService
	cookieName string
	ttl        time.Duration
	maxUpload  int64
	llmErr     error
}

// InterviewOption InterviewHandler 选项
type InterviewOption func(*InterviewHandler)

// WithSessionCookie 会话 Cookie 名和有效期
func WithSessionCookie(name string, ttl time.Duration) InterviewOption {
	return func(h *InterviewHandler) {
		if name != "" {
			h.cookieName = name
		}
		h.ttl = ttl
	}
}

// WithMaxUploadBytes 上传文件大小上限
func WithMaxUploadBytes(n int64) InterviewOption {
	return func(h *InterviewHandler) {
		h.maxUpload = n
	}
}

// WithLLMError 模型不可用时设置，需要模型的接口直接返回 503
func WithLLMError(err error) InterviewOption {
	return func(h *InterviewHandler) {
		h.llmErr = err
	}
}

// NewInterviewHandler 创建 InterviewHandler
func NewInterviewHandler(service *processor.InterviewService, opts ...InterviewOption) *InterviewHandler {
	h := &InterviewHandler{
		service:    service,
		cookieName: "sid",
		ttl:        constants.DefaultSessionTTL,
		maxUpload:  10 << 20,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// UploadResponse 上传简历的结果，ResumeData 为 null 表示模型输出无法解析
type UploadResponse struct {
	SessionID  string              `json:"session_id"`
	FileName   string              `json:"file_name"`
	ResumeData *types.ResumeRecord `json:"resume_data"`
	Status     string              `json:"status"`
}

// QuestionsResponse 生成问题的结果，Questions 为 null 表示模型输出无法解析
type QuestionsResponse struct {
	SessionID       string             `json:"session_id"`
	Questions       types.QuestionSet  `json:"questions"`
	Forms           []types.AnswerForm `json:"forms"`
	Tier            string             `json:"tier"`
	TotalExperience int                `json:"total_experience"`
	Warnings        []string           `json:"warnings"`
}

// AnswersRequest 保存作答
type AnswersRequest struct {
	Answers []processor.AnswerInput `json:"answers"`
}

// AnswersResponse 回填后的作答输入框
type AnswersResponse struct {
	SessionID string             `json:"session_id"`
	Forms     []types.AnswerForm `json:"forms"`
}

// EvaluationResponse 评估结果原文
type EvaluationResponse struct {
	SessionID  string `json:"session_id"`
	Evaluation string `json:"evaluation"`
}

// SessionView 会话当前状态，用于页面刷新后恢复
type SessionView struct {
	SessionID       string              `json:"session_id"`
	FileName        string              `json:"file_name,omitempty"`
	ResumeData      *types.ResumeRecord `json:"resume_data"`
	ResumeStatus    string              `json:"resume_status,omitempty"`
	Questions       types.QuestionSet   `json:"questions"`
	Forms           []types.AnswerForm  `json:"forms"`
	Tier            string              `json:"tier,omitempty"`
	TotalExperience int                 `json:"total_experience"`
	Warnings        []string            `json:"warnings"`
	Evaluation      string              `json:"evaluation,omitempty"`
}

// requestSessionID 请求头优先，其次是 Cookie
func (h *InterviewHandler) requestSessionID(c *app.RequestContext) string {
	if id := strings.TrimSpace(string(c.GetHeader(constants.SessionHeader))); id != "" {
		return id
	}
	return strings.TrimSpace(string(c.Cookie(h.cookieName)))
}

// loadSession 读取或创建会话，并在响应中回写会话 ID
func (h *InterviewHandler) loadSession(ctx context.Context, c *app.RequestContext) (*session.Session, error) {
	sess, created, err := h.service.LoadSession(ctx, h.requestSessionID(c))
	if err != nil {
		return nil, err
	}
	if created {
		logger.Ctx(ctx).Info().Str("session_id", sess.ID).Msg("创建新会话")
	}
	c.Header(constants.SessionHeader, sess.ID)
	c.SetCookie(h.cookieName, sess.ID, int(h.ttl.Seconds()), "/", "", protocol.CookieSameSiteLaxMode, false, true)
	return sess, nil
}

func withSession(ctx context.Context, id string) context.Context {
	l := logger.Ctx(ctx).With().Str("session_id", id).Logger()
	return l.WithContext(ctx)
}

// HandleUploadResume 上传简历并抽取字段
// POST /api/v1/interview/resume
func (h *InterviewHandler) HandleUploadResume(ctx context.Context, c *app.RequestContext) {
	if h.llmErr != nil {
		writeError(ctx, c, h.llmErr)
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		writeBadRequest(c, "文件未找到")
		return
	}
	if h.maxUpload > 0 && fileHeader.Size > h.maxUpload {
		c.JSON(consts.StatusRequestEntityTooLarge, ErrorResponse{
			Error: fmt.Sprintf("文件大小 %d 超过限制 %d", fileHeader.Size, h.maxUpload),
		})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		writeError(ctx, c, fmt.Errorf("打开文件失败: %w", err))
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		writeError(ctx, c, fmt.Errorf("读取上传文件内容失败: %w", err))
		return
	}

	sess, err := h.loadSession(ctx, c)
	if err != nil {
		writeError(ctx, c, err)
		return
	}
	ctx = withSession(ctx, sess.ID)

	contentType := fileHeader.Header.Get("Content-Type")
	res, err := h.service.UploadResume(ctx, sess, fileHeader.Filename, contentType, data)
	if err != nil {
		writeError(ctx, c, err)
		return
	}

	resp := UploadResponse{SessionID: sess.ID, FileName: fileHeader.Filename, Status: StatusNotAvailable}
	if rec, ok := res.Get(); ok {
		resp.ResumeData = rec
		resp.Status = StatusParsed
	}
	c.JSON(consts.StatusOK, resp)
}

// HandleGenerateQuestions 根据当前简历重新生成问题
// POST /api/v1/interview/questions
func (h *InterviewHandler) HandleGenerateQuestions(ctx context.Context, c *app.RequestContext) {
	if h.llmErr != nil {
		writeError(ctx, c, h.llmErr)
		return
	}
	sess, err := h.loadSession(ctx, c)
	if err != nil {
		writeError(ctx, c, err)
		return
	}
	ctx = withSession(ctx, sess.ID)

	gen, err := h.service.GenerateQuestions(ctx, sess)
	if err != nil {
		writeError(ctx, c, err)
		return
	}

	resp := QuestionsResponse{
		SessionID:       sess.ID,
		Tier:            string(gen.Tier),
		TotalExperience: gen.TotalExperience,
		Warnings:        nonNil(gen.Warnings),
		Forms:           []types.AnswerForm{},
	}
	if qs, ok := gen.Questions.Get(); ok {
		resp.Questions = qs
		resp.Forms = sess.AnswerSet().Forms(qs)
	}
	c.JSON(consts.StatusOK, resp)
}

// HandleSaveAnswers 保存作答
// PUT /api/v1/interview/answers
func (h *InterviewHandler) HandleSaveAnswers(ctx context.Context, c *app.RequestContext) {
	var req AnswersRequest
	if err := json.Unmarshal(c.Request.Body(), &req); err != nil {
		writeBadRequest(c, "请求体不是合法的 JSON")
		return
	}
	sess, err := h.loadSession(ctx, c)
	if err != nil {
		writeError(ctx, c, err)
		return
	}
	ctx = withSession(ctx, sess.ID)

	forms, err := h.service.SaveAnswers(ctx, sess, req.Answers)
	if err != nil {
		writeError(ctx, c, err)
		return
	}
	c.JSON(consts.StatusOK, AnswersResponse{SessionID: sess.ID, Forms: forms})
}

// HandleEvaluate 评估当前作答
// POST /api/v1/interview/evaluation
func (h *InterviewHandler) HandleEvaluate(ctx context.Context, c *app.RequestContext) {
	if h.llmErr != nil {
		writeError(ctx, c, h.llmErr)
		return
	}
	sess, err := h.loadSession(ctx, c)
	if err != nil {
		writeError(ctx, c, err)
		return
	}
	ctx = withSession(ctx, sess.ID)

	text, err := h.service.Evaluate(ctx, sess)
	if err != nil {
		writeError(ctx, c, err)
		return
	}
	c.JSON(consts.StatusOK, EvaluationResponse{SessionID: sess.ID, Evaluation: text})
}

// HandleGetSession 返回会话当前状态
// GET /api/v1/interview/session
func (h *InterviewHandler) HandleGetSession(ctx context.Context, c *app.RequestContext) {
	sess, err := h.loadSession(ctx, c)
	if err != nil {
		writeError(ctx, c, err)
		return
	}

	view := SessionView{
		SessionID:       sess.ID,
		FileName:        sess.ResumeFileName,
		Tier:            string(sess.Tier),
		TotalExperience: sess.TotalExperience,
		Warnings:        nonNil(sess.QuestionWarnings),
		Evaluation:      sess.Evaluation,
		Forms:           []types.AnswerForm{},
	}
	if sess.ResumeData != nil {
		view.ResumeStatus = StatusNotAvailable
		if rec, ok := sess.ResumeData.Get(); ok {
			view.ResumeData = rec
			view.ResumeStatus = StatusParsed
		}
	}
	if qs := sess.QuestionSet(); qs != nil {
		view.Questions = qs
		view.Forms = sess.AnswerSet().Forms(qs)
	}
	c.JSON(consts.StatusOK, view)
}

// HandleResetSession 删除会话
// DELETE /api/v1/interview/session
func (h *InterviewHandler) HandleResetSession(ctx context.Context, c *app.RequestContext) {
	id := h.requestSessionID(c)
	if err := h.service.Reset(ctx, id); err != nil {
		writeError(ctx, c, err)
		return
	}
	c.SetCookie(h.cookieName, "", -1, "/", "", protocol.CookieSameSiteLaxMode, false, true)
	c.SetStatusCode(consts.StatusNoContent)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
