package parser

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrNoJSON 模型输出中找不到 JSON
var ErrNoJSON = errors.New("模型输出中没有 JSON")

var (
	jsonFenceRe   = regexp.MustCompile("(?s)```(?:json|JSON)\\s*(.*?)\\s*```")
	blockFenceRe  = regexp.MustCompile("(?s)```[A-Za-z0-9_+-]*[ \\t]*\\r?\\n(.*?)```")
	inlineFenceRe = regexp.MustCompile("(?s)```(.*?)```")
)

// ExtractJSON 从模型输出中取出 JSON 文本。
// 优先使用 ```json 代码块，否则取第一个括号平衡的对象或数组
func ExtractJSON(text string) string {
	text = strings.TrimPrefix(text, "\ufeff")

	if m := jsonFenceRe.FindStringSubmatch(text); len(m) > 1 {
		if inner := strings.TrimSpace(m[1]); inner != "" {
			if balanced := balancedJSON(inner); balanced != "" {
				return balanced
			}
			return inner
		}
	}
	return balancedJSON(text)
}

// balancedJSON 找到第一个 { 或 [，返回与之配对的完整片段，跳过字符串内的括号
func balancedJSON(text string) string {
	start := strings.IndexAny(text, "{[")
	if start == -1 {
		return ""
	}

	var stack []byte
	inStr := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inStr {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inStr = false
			}
			continue
		}
		switch c {
		case '"':
			inStr = true
		case '{', '[':
			stack = append(stack, c)
		case '}', ']':
			if len(stack) == 0 {
				return ""
			}
			open := stack[len(stack)-1]
			if (c == '}' && open != '{') || (c == ']' && open != '[') {
				return ""
			}
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				return strings.TrimSpace(text[start : i+1])
			}
		}
	}
	return ""
}

// SanitizeJSON 把字符串字面量内部未转义的双引号改写为 \"。
// 一个引号后面的第一个非空白字符是 : , ] } 之一时才视为字符串结束
func SanitizeJSON(src string) string {
	var b strings.Builder
	b.Grow(len(src))
	inStr := false
	escaped := false

	for i := 0; i < len(src); i++ {
		c := src[i]

		switch {
		case c == '"' && !escaped:
			if !inStr {
				inStr = true
				b.WriteByte(c)
			} else {
				j := i + 1
				for j < len(src) && (src[j] == ' ' || src[j] == '\t' || src[j] == '\n' || src[j] == '\r') {
					j++
				}
				if j >= len(src) || src[j] == ':' || src[j] == ',' || src[j] == ']' || src[j] == '}' {
					inStr = false
					b.WriteByte(c)
				} else {
					b.WriteString("\\\"")
				}
			}
			escaped = false
		case c == '\\' && !escaped:
			escaped = true
			b.WriteByte(c)
		default:
			b.WriteByte(c)
			escaped = false
		}
	}
	return b.String()
}

// DecodeJSON 从模型输出中解析 JSON 到 v，首次失败时清洗引号后再试一次
func DecodeJSON(text string, v any) error {
	raw := ExtractJSON(text)
	if raw == "" {
		return ErrNoJSON
	}
	err := json.Unmarshal([]byte(raw), v)
	if err == nil {
		return nil
	}
	if err2 := json.Unmarshal([]byte(SanitizeJSON(raw)), v); err2 != nil {
		return fmt.Errorf("解析模型 JSON 输出失败: %w", err)
	}
	return nil
}

// StripCodeFence 去掉模型输出外层的 Markdown 代码块标记，其余内容不变
func StripCodeFence(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.Contains(trimmed, "```") {
		return trimmed
	}
	if m := blockFenceRe.FindStringSubmatch(trimmed); len(m) > 1 {
		return strings.TrimSpace(m[1])
	}
	if m := inlineFenceRe.FindStringSubmatch(trimmed); len(m) > 1 {
		return strings.TrimSpace(m[1])
	}
	// 只有开头的代码块标记，没有结尾
	if strings.HasPrefix(trimmed, "```") {
		if nl := strings.IndexByte(trimmed, '\n'); nl != -1 {
			return strings.TrimSpace(trimmed[nl+1:])
		}
		return ""
	}
	return trimmed
}
