package processor

import (
	"errors"
	"fmt"
)

// 定义基础错误类型
var (
	ErrEmptyQuestion      = errors.New("please enter a question")
	ErrEmptyResumeText    = errors.New("简历中没有可提取的文本")
	ErrNoResumeData       = errors.New("还没有可用的简历信息")
	ErrNoQuestions        = errors.New("还没有生成面试问题")
	ErrSQLExecutionFailed = errors.New("SQL 执行失败")
	ErrUnknownQuestion    = errors.New("问题不存在")
)

// ProcessError 包含详细错误信息的自定义错误
type ProcessError struct {
	Op      string
	BaseErr error
	Detail  string
	// SQL 执行失败时附带模型生成的语句
	SQL string
}

func (e *ProcessError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s (操作:%s): %s", e.BaseErr, e.Op, e.Detail)
	}
	return fmt.Sprintf("%s (操作:%s)", e.BaseErr, e.Op)
}

func (e *ProcessError) Unwrap() error {
	return e.BaseErr
}

// Is 实现 errors.Is 接口以支持错误比较
func (e *ProcessError) Is(target error) bool {
	return errors.Is(e.BaseErr, target)
}

// 错误构造函数

// NewSQLError 保留原始错误链，便于上层用 errors.Is 区分空语句、被拒绝和驱动错误
func NewSQLError(sql string, cause error) error {
	return &ProcessError{
		Op:      "execute",
		BaseErr: fmt.Errorf("%w: %w", ErrSQLExecutionFailed, cause),
		Detail:  "",
		SQL:     sql,
	}
}

func NewStateError(op string, base error) error {
	return &ProcessError{
		Op:      op,
		BaseErr: base,
	}
}

// GeneratedSQL 从错误链中取出生成的 SQL，没有时返回空串
func GeneratedSQL(err error) string {
	var pe *ProcessError
	if errors.As(err, &pe) {
		return pe.SQL
	}
	return ""
}
