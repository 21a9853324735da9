package session

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"talent-copilot/internal/types"

	"github.com/gofrs/uuid/v5"
)

// ErrSessionNotFound 会话不存在或已过期
var ErrSessionNotFound = errors.New("session not found")

// Session 一个用户在面试助手中的全部状态。
// 每个阶段的产出只计算一次，重复请求直接复用
type Session struct {
	ID string `json:"id"`

	ResumeFileName string `json:"resume_file_name,omitempty"`
	ResumeHash     string `json:"resume_hash,omitempty"`
	ResumeText     string `json:"resume_text,omitempty"`
	// ResumeData 为 nil 表示还没有解析过
	ResumeData *types.LLMResult[*types.ResumeRecord] `json:"resume_data,omitempty"`

	Questions        *types.LLMResult[types.QuestionSet] `json:"questions,omitempty"`
	QuestionWarnings []string                           `json:"question_warnings,omitempty"`
	Tier             types.ExperienceTier               `json:"tier,omitempty"`
	TotalExperience  int                                `json:"total_experience"`

	Answers    *types.AnswerSet `json:"answers,omitempty"`
	Evaluation string           `json:"evaluation,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// New 创建会话，ID 为按时间排序的 UUIDv7
func New() (*Session, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, err
	}
	now := time.Now()
	return &Session{ID: id.String(), CreatedAt: now, UpdatedAt: now}, nil
}

// ContentHash 上传文件内容的摘要，只用于判断是否换了文件
func ContentHash(data []byte) string {
	sum := md5.Sum(data)
	return hex.EncodeToString(sum[:])
}

// AttachResume 绑定上传的简历。文件名或内容变化时清空所有下游结果，返回是否发生了重置
func (s *Session) AttachResume(fileName string, data []byte) bool {
	hash := ContentHash(data)
	if s.ResumeFileName == fileName && s.ResumeHash == hash {
		return false
	}
	s.ResumeFileName = fileName
	s.ResumeHash = hash
	s.ResumeText = ""
	s.ResumeData = nil
	s.resetInterview()
	s.touch()
	return true
}

// resetInterview 清空问题、答案和评估
func (s *Session) resetInterview() {
	s.Questions = nil
	s.QuestionWarnings = nil
	s.Tier = ""
	s.TotalExperience = 0
	s.Answers = nil
	s.Evaluation = ""
}

// EnsureResumeText 文本为空时调用 produce 提取，已有结果时直接返回
func (s *Session) EnsureResumeText(ctx context.Context, produce func(context.Context) (string, error)) (string, error) {
	if s.ResumeText != "" {
		return s.ResumeText, nil
	}
	text, err := produce(ctx)
	if err != nil {
		return "", err
	}
	s.ResumeText = text
	s.touch()
	return text, nil
}

// EnsureResumeData 只在没有成功的解析结果时调用 produce。
// 上一次解析失败(failure 变体)时会重新调用
func (s *Session) EnsureResumeData(ctx context.Context, produce func(context.Context, string) (types.LLMResult[*types.ResumeRecord], error)) (types.LLMResult[*types.ResumeRecord], error) {
	if s.ResumeData != nil && s.ResumeData.OK {
		return *s.ResumeData, nil
	}
	res, err := produce(ctx, s.ResumeText)
	if err != nil {
		return types.LLMResult[*types.ResumeRecord]{}, err
	}
	s.ResumeData = &res
	s.touch()
	return res, nil
}

// SetQuestions 保存新生成的问题，之前的答案和评估一并作废
func (s *Session) SetQuestions(qs types.LLMResult[types.QuestionSet], warnings []string, tier types.ExperienceTier, total int) {
	s.resetInterview()
	s.Questions = &qs
	s.QuestionWarnings = warnings
	s.Tier = tier
	s.TotalExperience = total
	s.touch()
}

// QuestionSet 当前可用的问题，没有时返回 nil
func (s *Session) QuestionSet() types.QuestionSet {
	if s.Questions == nil || !s.Questions.OK {
		return nil
	}
	return s.Questions.Value
}

// AnswerSet 返回答案集合，不存在时创建
func (s *Session) AnswerSet() *types.AnswerSet {
	if s.Answers == nil {
		s.Answers = types.NewAnswerSet()
	}
	return s.Answers
}

// SetEvaluation 保存评估结果
func (s *Session) SetEvaluation(text string) {
	s.Evaluation = text
	s.touch()
}

// Touch 更新修改时间
func (s *Session) Touch() { s.touch() }

func (s *Session) touch() {
	s.UpdatedAt = time.Now()
}

// ValidID 只接受 UUID 形式的会话 ID，避免任意字符串进入存储 key
func ValidID(id string) bool {
	id = strings.TrimSpace(id)
	if id == "" {
		return false
	}
	_, err := uuid.FromString(id)
	return err == nil
}
