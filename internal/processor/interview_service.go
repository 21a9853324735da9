package processor

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"talent-copilot/internal/logger"
	"talent-copilot/internal/parser"
	"talent-copilot/internal/session"
	"talent-copilot/internal/tracing"
	"talent-copilot/internal/types"

	"go.opentelemetry.io/otel/attribute"
)

// DocumentParser 提取上传文档的文本。Check 只看大小和类型，不读取内容
type DocumentParser interface {
	Check(filename, contentType string, size int64) (parser.DocumentKind, error)
	Extract(ctx context.Context, filename, contentType string, data []byte) (string, error)
}

// AnswerInput 一道题的作答，Index 从 1 开始
type AnswerInput struct {
	Category string `json:"category"`
	Index    int    `json:"index"`
	Answer   string `json:"answer"`
}

// InterviewService 面试助手的流程编排：上传、抽取、出题、作答、评估。
// 每一步的结果都写回会话，同一会话重复请求不会重复调用模型
type InterviewService struct {
	store     session.Store
	documents DocumentParser
	extractor *ResumeExtractor
	generator *QuestionGenerator
	evaluator *AnswerEvaluator
}

// NewInterviewService 创建面试服务
func NewInterviewService(store session.Store, documents DocumentParser, extractor *ResumeExtractor, generator *QuestionGenerator, evaluator *AnswerEvaluator) *InterviewService {
	return &InterviewService{
		store:     store,
		documents: documents,
		extractor: extractor,
		generator: generator,
		evaluator: evaluator,
	}
}

// LoadSession 读取会话，id 无效或已过期时创建新会话。返回的 bool 表示是否新建
func (s *InterviewService) LoadSession(ctx context.Context, id string) (*session.Session, bool, error) {
	if session.ValidID(id) {
		sess, err := s.store.Get(ctx, id)
		if err == nil {
			return sess, false, nil
		}
		if !errors.Is(err, session.ErrSessionNotFound) {
			return nil, false, err
		}
	}
	sess, err := session.New()
	if err != nil {
		return nil, false, fmt.Errorf("创建会话失败: %w", err)
	}
	return sess, true, nil
}

// Save 保存会话
func (s *InterviewService) Save(ctx context.Context, sess *session.Session) error {
	return s.store.Save(ctx, sess)
}

// Reset 删除会话
func (s *InterviewService) Reset(ctx context.Context, id string) error {
	if !session.ValidID(id) {
		return nil
	}
	return s.store.Delete(ctx, id)
}

// UploadResume 绑定上传的简历，必要时提取文本并抽取字段。
// 同一文件重复上传直接返回已有结果；换文件后下游结果全部作废
func (s *InterviewService) UploadResume(ctx context.Context, sess *session.Session, filename, contentType string, data []byte) (types.LLMResult[*types.ResumeRecord], error) {
	ctx, span := tracer.Start(ctx, "InterviewService.UploadResume")
	defer span.End()
	span.SetAttributes(attribute.String("session.id", sess.ID), attribute.Int("document.size", len(data)))

	// 类型或大小不合法的文件不绑定到会话，之前的结果保持不变
	if _, err := s.documents.Check(filename, contentType, int64(len(data))); err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeValidation)
		return types.LLMResult[*types.ResumeRecord]{}, err
	}

	if sess.AttachResume(filename, data) {
		logger.Ctx(ctx).Info().Str("session_id", sess.ID).Str("file", filename).Msg("收到新简历，清空之前的结果")
	}

	text, err := sess.EnsureResumeText(ctx, func(ctx context.Context) (string, error) {
		text, err := s.documents.Extract(ctx, filename, contentType, data)
		if err != nil {
			return "", err
		}
		if strings.TrimSpace(text) == "" {
			return "", ErrEmptyResumeText
		}
		return text, nil
	})
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeExtraction)
		// 文件已绑定，保存后下次上传同一文件不会被当作新文件
		if saveErr := s.store.Save(ctx, sess); saveErr != nil {
			logger.Ctx(ctx).Warn().Err(saveErr).Msg("保存会话失败")
		}
		return types.LLMResult[*types.ResumeRecord]{}, err
	}
	span.SetAttributes(attribute.Int("resume.text_len", len(text)))

	res, err := sess.EnsureResumeData(ctx, s.extractor.Extract)
	if err != nil {
		if saveErr := s.store.Save(ctx, sess); saveErr != nil {
			logger.Ctx(ctx).Warn().Err(saveErr).Msg("保存会话失败")
		}
		return types.LLMResult[*types.ResumeRecord]{}, err
	}
	if err := s.store.Save(ctx, sess); err != nil {
		return types.LLMResult[*types.ResumeRecord]{}, err
	}
	return res, nil
}

// GenerateQuestions 根据已抽取的简历重新出题，覆盖之前的问题、作答和评估
func (s *InterviewService) GenerateQuestions(ctx context.Context, sess *session.Session) (*GeneratedQuestions, error) {
	if sess.ResumeData == nil || !sess.ResumeData.OK {
		return nil, NewStateError("generate_questions", ErrNoResumeData)
	}
	gen, err := s.generator.Generate(ctx, sess.ResumeData.Value)
	if err != nil {
		return nil, err
	}
	sess.SetQuestions(gen.Questions, gen.Warnings, gen.Tier, gen.TotalExperience)
	if err := s.store.Save(ctx, sess); err != nil {
		return nil, err
	}
	return gen, nil
}

// SaveAnswers 保存作答，位置不存在的作答返回错误且不做任何修改
func (s *InterviewService) SaveAnswers(ctx context.Context, sess *session.Session, inputs []AnswerInput) ([]types.AnswerForm, error) {
	qs := sess.QuestionSet()
	if qs == nil {
		return nil, NewStateError("save_answers", ErrNoQuestions)
	}

	type resolved struct {
		in       AnswerInput
		category string
		question string
	}
	pending := make([]resolved, 0, len(inputs))
	for _, in := range inputs {
		cat, item, ok := lookupSlot(qs, in.Category, in.Index)
		if !ok {
			return nil, &ProcessError{
				Op:      "save_answers",
				BaseErr: ErrUnknownQuestion,
				Detail:  types.SlotKey(in.Category, in.Index),
			}
		}
		pending = append(pending, resolved{in: in, category: cat, question: item.Text})
	}

	answers := sess.AnswerSet()
	for _, p := range pending {
		answers.Set(p.category, p.in.Index, p.question, p.in.Answer)
	}
	sess.Touch()
	if err := s.store.Save(ctx, sess); err != nil {
		return nil, err
	}
	return answers.Forms(qs), nil
}

// lookupSlot 返回题目和问题集中实际的类别名
func lookupSlot(qs types.QuestionSet, category string, index int) (string, types.QuestionItem, bool) {
	for _, c := range qs {
		if strings.EqualFold(c.Name, category) {
			item, ok := qs.Lookup(c.Name, index)
			return c.Name, item, ok
		}
	}
	return "", types.QuestionItem{}, false
}

// Evaluate 评估当前作答
func (s *InterviewService) Evaluate(ctx context.Context, sess *session.Session) (string, error) {
	qs := sess.QuestionSet()
	if qs == nil {
		return "", NewStateError("evaluate", ErrNoQuestions)
	}
	text, err := s.evaluator.Evaluate(ctx, qs, sess.AnswerSet())
	if err != nil {
		return "", err
	}
	sess.SetEvaluation(text)
	if err := s.store.Save(ctx, sess); err != nil {
		return "", err
	}
	return text, nil
}
