package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestQuestionItemShapes 字符串题目和带 Question 字段的对象渲染出相同文本
func TestQuestionItemShapes(t *testing.T) {
	var fromString, fromObject, fromNumber QuestionItem
	require.NoError(t, json.Unmarshal([]byte(`"What is a goroutine?"`), &fromString))
	require.NoError(t, json.Unmarshal([]byte(`{"Question":"What is a goroutine?","Answer":"x"}`), &fromObject))
	require.NoError(t, json.Unmarshal([]byte(`42`), &fromNumber))

	assert.Equal(t, "What is a goroutine?", fromString.Text)
	assert.Equal(t, fromString.Text, fromObject.Text)
	assert.Equal(t, "42", fromNumber.Text)

	// 对象形式重新序列化时保留原样
	out, err := json.Marshal(fromObject)
	require.NoError(t, err)
	assert.JSONEq(t, `{"Question":"What is a goroutine?","Answer":"x"}`, string(out))
}

// TestQuestionSetKeepsOrder 类别顺序与模型输出一致
func TestQuestionSetKeepsOrder(t *testing.T) {
	raw := `{
  "Project-based Questions": ["Which DB?", {"Question": "Which queue?"}],
  "Fill-in-the-Blanks": ["A primary key ensures ____."],
  "Coding Questions": "Reverse a string."
}`
	var qs QuestionSet
	require.NoError(t, json.Unmarshal([]byte(raw), &qs))
	require.Len(t, qs, 3)

	assert.Equal(t, "Project-based Questions", qs[0].Name)
	assert.Equal(t, "Fill-in-the-Blanks", qs[1].Name)
	assert.Equal(t, "Coding Questions", qs[2].Name)
	assert.Equal(t, "Which queue?", qs[0].Items[1].Text)
	assert.Equal(t, "Reverse a string.", qs[2].Items[0].Text)
	assert.Equal(t, 4, qs.Count())

	out, err := json.Marshal(qs)
	require.NoError(t, err)
	assert.Equal(t,
		`{"Project-based Questions":["Which DB?",{"Question":"Which queue?"}],"Fill-in-the-Blanks":["A primary key ensures ____."],"Coding Questions":["Reverse a string."]}`,
		string(out))
}

func TestQuestionSetTopLevelArray(t *testing.T) {
	var qs QuestionSet
	require.NoError(t, json.Unmarshal([]byte(`["a", "b"]`), &qs))
	require.Len(t, qs, 1)
	assert.Equal(t, defaultCategoryName, qs[0].Name)
	assert.Len(t, qs[0].Items, 2)
}

func TestQuestionSetRejectsScalar(t *testing.T) {
	var qs QuestionSet
	assert.Error(t, json.Unmarshal([]byte(`"just text"`), &qs))
}

// TestAnswerSetRoundTrip 每个位置写入后读回相同内容，不提交新输入时回填旧值
func TestAnswerSetRoundTrip(t *testing.T) {
	qs := QuestionSet{
		{Name: "Project-based Questions", Items: []QuestionItem{NewQuestionItem("Which DB?"), NewQuestionItem("Same text")}},
		{Name: "Coding Questions", Items: []QuestionItem{NewQuestionItem("Same text")}},
	}
	answers := NewAnswerSet()
	answers.Set("Project-based Questions", 1, "Which DB?", "Postgres")
	answers.Set("Coding Questions", 1, "Same text", "loop")

	got, ok := answers.Get("Project-based Questions", 1)
	require.True(t, ok)
	assert.Equal(t, "Postgres", got)

	got, ok = answers.Get("Coding Questions", 1)
	require.True(t, ok)
	assert.Equal(t, "loop", got)

	_, ok = answers.Get("Coding Questions", 2)
	assert.False(t, ok)

	// 经过 JSON 往返（会话存储）后仍然一致
	data, err := json.Marshal(answers)
	require.NoError(t, err)
	var restored AnswerSet
	require.NoError(t, json.Unmarshal(data, &restored))

	forms := restored.Forms(qs)
	require.Len(t, forms, 3)
	assert.Equal(t, "answer_Project-based Questions_1", forms[0].Key)
	assert.Equal(t, "Q1: Which DB?", forms[0].Label)
	assert.Equal(t, "Postgres", forms[0].Answer)
	assert.Equal(t, "Q2: Same text", forms[1].Label)
	assert.Equal(t, "", forms[1].Answer)
	assert.Equal(t, "loop", forms[2].Answer)
}

// TestAnswerSetSameTextAcrossCategories 不同类别中文本相同的题目各自保留作答
func TestAnswerSetSameTextAcrossCategories(t *testing.T) {
	qs := QuestionSet{
		{Name: "Project-based Questions", Items: []QuestionItem{NewQuestionItem("Explain caching")}},
		{Name: "Coding Questions", Items: []QuestionItem{NewQuestionItem("Explain caching")}},
	}
	answers := NewAnswerSet()
	answers.Set("Project-based Questions", 1, "Explain caching", "Redis")
	answers.Set("Coding Questions", 1, "Explain caching", "LRU map")

	got, ok := answers.Get("Project-based Questions", 1)
	require.True(t, ok)
	assert.Equal(t, "Redis", got)
	got, ok = answers.Get("Coding Questions", 1)
	require.True(t, ok)
	assert.Equal(t, "LRU map", got)

	forms := answers.Forms(qs)
	require.Len(t, forms, 2)
	assert.Equal(t, "Redis", forms[0].Answer)
	assert.Equal(t, "LRU map", forms[1].Answer)

	// 评估时按文本取最近一次作答
	assert.Equal(t, "LRU map", answers.AnswerFor("Explain caching"))
	assert.Equal(t, 2, answers.Len())

	data, err := json.Marshal(answers)
	require.NoError(t, err)
	var restored AnswerSet
	require.NoError(t, json.Unmarshal(data, &restored))
	got, _ = restored.Get("Project-based Questions", 1)
	assert.Equal(t, "Redis", got)
	assert.Equal(t, "LRU map", restored.AnswerFor("Explain caching"))
}

func TestQuestionSetLookup(t *testing.T) {
	qs := QuestionSet{{Name: "Coding Questions", Items: []QuestionItem{NewQuestionItem("a")}}}
	item, ok := qs.Lookup("coding questions", 1)
	require.True(t, ok)
	assert.Equal(t, "a", item.Text)
	_, ok = qs.Lookup("Coding Questions", 2)
	assert.False(t, ok)
	_, ok = qs.Lookup("Missing", 1)
	assert.False(t, ok)
}

// TestResumeRecordTolerant 字段缺失或类型不符时不报错
func TestResumeRecordTolerant(t *testing.T) {
	raw := `{
  "Full Name": "Ada Lovelace",
  "Contact Information": {"Email": "ada@example.com", "Phone": 5551234},
  "Job Description": "Engineer",
  "Education": [{"Degree": "BSc", "University": "London", "Year": 1835}],
  "Work Experience": [
    {"Company": "Analytical Engines", "Role": "Programmer", "Duration": "3 years"},
    {"Company": "Babbage Ltd"}
  ],
  "Skills": "Math, Programming , ",
  "Projects": [{"Project Name": "Bernoulli", "Technologies Used": ["Engine", "Cards"]}],
  "Hobbies": "Poetry"
}`
	var rec ResumeRecord
	require.NoError(t, json.Unmarshal([]byte(raw), &rec))

	assert.Equal(t, "Ada Lovelace", rec.FullName)
	assert.Equal(t, "ada@example.com", rec.Email)
	assert.Equal(t, "5551234", rec.Phone)
	assert.Equal(t, "Engineer", rec.JobRole)
	require.Len(t, rec.Education, 1)
	assert.Equal(t, "London", rec.Education[0].Institute)
	assert.Equal(t, "1835", rec.Education[0].Year)
	require.Len(t, rec.WorkExperience, 2)
	assert.Equal(t, "3 years", rec.WorkExperience[0].Duration)
	assert.Equal(t, "0 years", rec.WorkExperience[1].Duration, "缺失的 Duration 使用默认值")
	assert.Equal(t, "", rec.WorkExperience[1].Role)
	assert.Equal(t, []string{"Math", "Programming"}, rec.Skills)
	require.Len(t, rec.Projects, 1)
	assert.Equal(t, "Engine, Cards", rec.Projects[0].Technologies)

	// 序列化输出原始对象，未知字段保留
	out, err := json.Marshal(rec)
	require.NoError(t, err)
	assert.Contains(t, string(out), `"Hobbies":"Poetry"`)
}

func TestResumeRecordEmpty(t *testing.T) {
	rec := NewResumeRecord(nil)
	assert.Empty(t, rec.WorkExperience)
	assert.Empty(t, rec.Skills)
	out, err := json.Marshal(rec)
	require.NoError(t, err)
	assert.Equal(t, "{}", string(out))
}

func TestLLMResult(t *testing.T) {
	ok := Success(3, "3")
	v, good := ok.Get()
	assert.True(t, good)
	assert.Equal(t, 3, v)

	bad := Failure[*ResumeRecord]("not json")
	rec, good := bad.Get()
	assert.False(t, good)
	assert.Nil(t, rec)
	assert.Equal(t, "not json", bad.Raw)
}
