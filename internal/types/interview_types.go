package types

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"talent-copilot/internal/constants"
)

// ExperienceTier 经验分档
type ExperienceTier string

const (
	TierJunior ExperienceTier = constants.TierJunior
	TierMid    ExperienceTier = constants.TierMid
	TierSenior ExperienceTier = constants.TierSenior
)

// QuestionItem 一道面试题。模型有时返回字符串，有时返回带 "Question" 字段的对象，
// 两种形式得到相同的 Text
type QuestionItem struct {
	Text string
	raw  json.RawMessage
}

// NewQuestionItem 由纯文本构造题目
func NewQuestionItem(text string) QuestionItem {
	return QuestionItem{Text: text}
}

// UnmarshalJSON 兼容字符串、对象和其他标量
func (q *QuestionItem) UnmarshalJSON(data []byte) error {
	q.raw = append(json.RawMessage(nil), data...)

	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch t := v.(type) {
	case string:
		q.Text = t
	case map[string]any:
		if text := lookup(t, "Question"); text != nil {
			q.Text = Stringify(text)
		} else {
			q.Text = Stringify(t)
		}
	default:
		q.Text = Stringify(t)
	}
	return nil
}

// MarshalJSON 保留模型返回的原始形式，评估时原样交还给模型
func (q QuestionItem) MarshalJSON() ([]byte, error) {
	if len(q.raw) > 0 {
		return q.raw, nil
	}
	return json.Marshal(q.Text)
}

// QuestionCategory 一个问题类别及其题目
type QuestionCategory struct {
	Name  string
	Items []QuestionItem
}

// QuestionSet 按模型输出顺序排列的问题类别
type QuestionSet []QuestionCategory

// defaultCategoryName 模型返回顶层数组时使用的类别名
const defaultCategoryName = "Interview Questions"

// UnmarshalJSON 逐 token 解码以保留类别顺序
func (qs *QuestionSet) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if bytes.Equal(trimmed, []byte("null")) {
		*qs = nil
		return nil
	}
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var items []QuestionItem
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return err
		}
		*qs = QuestionSet{{Name: defaultCategoryName, Items: items}}
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return errors.New("问题集必须是 JSON 对象或数组")
	}

	var out QuestionSet
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		name, _ := keyTok.(string)

		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return err
		}
		items, err := decodeItems(value)
		if err != nil {
			return fmt.Errorf("类别 %q: %w", name, err)
		}
		out = append(out, QuestionCategory{Name: name, Items: items})
	}
	if _, err := dec.Token(); err != nil && err != io.EOF {
		return err
	}
	*qs = out
	return nil
}

// decodeItems 类别的值可能是数组，也可能是单个题目
func decodeItems(value json.RawMessage) ([]QuestionItem, error) {
	v := bytes.TrimSpace(value)
	if len(v) > 0 && v[0] == '[' {
		var items []QuestionItem
		if err := json.Unmarshal(v, &items); err != nil {
			return nil, err
		}
		return items, nil
	}
	var item QuestionItem
	if err := json.Unmarshal(v, &item); err != nil {
		return nil, err
	}
	return []QuestionItem{item}, nil
}

// MarshalJSON 按类别顺序输出对象，nil 输出 null
func (qs QuestionSet) MarshalJSON() ([]byte, error) {
	if qs == nil {
		return []byte("null"), nil
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, c := range qs {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(c.Name)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		items := c.Items
		if items == nil {
			items = []QuestionItem{}
		}
		val, err := json.Marshal(items)
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Count 题目总数
func (qs QuestionSet) Count() int {
	n := 0
	for _, c := range qs {
		n += len(c.Items)
	}
	return n
}

// AnswerSet 用户作答。Answers 以 (类别, 序号) 为键，不同类别中相同文本的题目各自保存；
// Slots 记录每个位置对应的题目文本，Latest 记录每个题目文本最近一次的作答，供评估使用
type AnswerSet struct {
	Answers map[string]string `json:"answers"`
	Slots   map[string]string `json:"slots"`
	Latest  map[string]string `json:"latest"`
}

// NewAnswerSet 创建空的作答集合
func NewAnswerSet() *AnswerSet {
	return &AnswerSet{Answers: map[string]string{}, Slots: map[string]string{}, Latest: map[string]string{}}
}

// SlotKey 作答输入框的键，index 从 1 开始
func SlotKey(category string, index int) string {
	return fmt.Sprintf("answer_%s_%d", category, index)
}

// Set 保存某个位置的最新作答
func (a *AnswerSet) Set(category string, index int, question, answer string) {
	if a.Answers == nil {
		a.Answers = map[string]string{}
	}
	if a.Slots == nil {
		a.Slots = map[string]string{}
	}
	if a.Latest == nil {
		a.Latest = map[string]string{}
	}
	key := SlotKey(category, index)
	a.Slots[key] = question
	a.Answers[key] = answer
	a.Latest[question] = answer
}

// Get 读取某个位置的作答
func (a *AnswerSet) Get(category string, index int) (string, bool) {
	if a == nil {
		return "", false
	}
	answer, ok := a.Answers[SlotKey(category, index)]
	return answer, ok
}

// AnswerFor 按题目文本读取最近一次的作答，未作答返回空串
func (a *AnswerSet) AnswerFor(question string) string {
	if a == nil {
		return ""
	}
	return a.Latest[question]
}

// Len 已作答的位置数
func (a *AnswerSet) Len() int {
	if a == nil {
		return 0
	}
	return len(a.Answers)
}

// AnswerForm 页面上一道题的输入框
type AnswerForm struct {
	Category string `json:"category"`
	Index    int    `json:"index"`
	Key      string `json:"key"`
	Label    string `json:"label"`
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// Forms 按问题集生成输入框，并回填此前保存的作答
func (a *AnswerSet) Forms(qs QuestionSet) []AnswerForm {
	forms := make([]AnswerForm, 0, qs.Count())
	for _, c := range qs {
		for i, item := range c.Items {
			idx := i + 1
			forms = append(forms, AnswerForm{
				Category: c.Name,
				Index:    idx,
				Key:      SlotKey(c.Name, idx),
				Label:    fmt.Sprintf("Q%d: %s", idx, item.Text),
				Question: item.Text,
				Answer:   a.slotAnswer(c.Name, idx, item.Text),
			})
		}
	}
	return forms
}

// slotAnswer 位置上保存的题目文本与当前题目一致时才回填
func (a *AnswerSet) slotAnswer(category string, index int, question string) string {
	if a == nil {
		return ""
	}
	key := SlotKey(category, index)
	if q, ok := a.Slots[key]; ok && q != question {
		return ""
	}
	return a.Answers[key]
}

// Lookup 按类别名和序号查找题目，类别名忽略大小写
func (qs QuestionSet) Lookup(category string, index int) (QuestionItem, bool) {
	for _, c := range qs {
		if c.Name != category && !strings.EqualFold(c.Name, category) {
			continue
		}
		if index < 1 || index > len(c.Items) {
			return QuestionItem{}, false
		}
		return c.Items[index-1], true
	}
	return QuestionItem{}, false
}
