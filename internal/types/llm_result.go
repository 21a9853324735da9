package types

// LLMResult 模型结构化输出的解析结果。
// OK 为 false 表示模型输出无法解析，Raw 保留原文供展示或排查，这不是错误
type LLMResult[T any] struct {
	OK    bool   `json:"ok"`
	Value T      `json:"value"`
	Raw   string `json:"raw,omitempty"`
}

// Success 解析成功
func Success[T any](v T, raw string) LLMResult[T] {
	return LLMResult[T]{OK: true, Value: v, Raw: raw}
}

// Failure 解析失败
func Failure[T any](raw string) LLMResult[T] {
	return LLMResult[T]{Raw: raw}
}

// Get 返回值和是否成功
func (r LLMResult[T]) Get() (T, bool) {
	return r.Value, r.OK
}
