package processor

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"talent-copilot/internal/agent"
	"talent-copilot/internal/constants"
	"talent-copilot/internal/logger"
	"talent-copilot/internal/parser"
	"talent-copilot/internal/tracing"
	"talent-copilot/internal/types"

	"github.com/cloudwego/eino/components/model"
	"github.com/xeipuuv/gojsonschema"
	"go.opentelemetry.io/otel/attribute"
)

// questionSetSchema 问题集的形状：类别名 -> 非空数组，元素是字符串或带 Question 字段的对象
const questionSetSchema = `{
	"type": "object",
	"minProperties": 1,
	"additionalProperties": {
		"type": "array",
		"minItems": 1,
		"items": {
			"anyOf": [
				{"type": "string", "minLength": 1},
				{"type": "object", "required": ["Question"], "properties": {"Question": {"type": "string", "minLength": 1}}}
			]
		}
	}
}`

var questionSchemaLoader = gojsonschema.NewStringLoader(questionSetSchema)

// CandidateSummary 生成问题时放进提示词的候选人信息
type CandidateSummary struct {
	Name       string
	Skills     string
	Experience string
	Projects   string
}

// Summarize 从简历记录生成摘要，缺失字段使用默认文案
func Summarize(r *types.ResumeRecord) CandidateSummary {
	s := CandidateSummary{
		Name:       "Unknown",
		Skills:     "No skills listed",
		Experience: "No work experience listed",
		Projects:   "No projects listed",
	}
	if r == nil {
		return s
	}
	if r.FullName != "" {
		s.Name = r.FullName
	}
	if len(r.Skills) > 0 {
		s.Skills = strings.Join(r.Skills, ", ")
	}

	if len(r.WorkExperience) > 0 {
		parts := make([]string, 0, len(r.WorkExperience))
		for _, exp := range r.WorkExperience {
			role, company := exp.Role, exp.Company
			if role == "" {
				role = "Unknown Role"
			}
			if company == "" {
				company = "Unknown Company"
			}
			parts = append(parts, fmt.Sprintf("%s at %s", role, company))
		}
		s.Experience = strings.Join(parts, ", ")
	}

	if len(r.Projects) > 0 {
		parts := make([]string, 0, len(r.Projects))
		for _, p := range r.Projects {
			name, tech := p.Name, p.Technologies
			if name == "" {
				name = "Unnamed Project"
			}
			if tech == "" {
				tech = "Unknown Technologies"
			}
			parts = append(parts, fmt.Sprintf("%s - %s", name, tech))
		}
		s.Projects = strings.Join(parts, ", ")
	}
	return s
}

// GeneratedQuestions 一次问题生成的完整结果
type GeneratedQuestions struct {
	Questions       types.LLMResult[types.QuestionSet]
	Warnings        []string
	Tier            types.ExperienceTier
	TotalExperience int
}

// QuestionGenerator 根据简历和经验分档生成面试问题
type QuestionGenerator struct {
	llm model.ToolCallingChatModel
}

// NewQuestionGenerator 创建问题生成器
func NewQuestionGenerator(llm model.ToolCallingChatModel) *QuestionGenerator {
	return &QuestionGenerator{llm: llm}
}

// Generate 计算经验分档并生成问题。输出无法解析时返回 failure 变体，不返回错误
func (g *QuestionGenerator) Generate(ctx context.Context, r *types.ResumeRecord) (*GeneratedQuestions, error) {
	ctx, span := tracer.Start(ctx, "QuestionGenerator.Generate")
	defer span.End()

	var experiences []types.WorkExperience
	if r != nil {
		experiences = r.WorkExperience
	}
	total := CalculateExperience(experiences)
	tier := ClassifyExperience(total)
	summary := Summarize(r)
	span.SetAttributes(
		attribute.Int("candidate.total_experience", total),
		attribute.String("candidate.tier", string(tier)),
	)
	logger.Ctx(ctx).Info().Int("total_experience", total).Str("tier", string(tier)).Msg("经验分档")

	raw, err := agent.Invoke(ctx, g.llm, questionTemplate, map[string]any{
		"candidate_name":   summary.Name,
		"skills":           summary.Skills,
		"experience":       summary.Experience,
		"projects":         summary.Projects,
		"experience_level": string(tier),
	})
	if err != nil {
		return nil, err
	}

	out := &GeneratedQuestions{Tier: tier, TotalExperience: total}

	var qs types.QuestionSet
	if err := parser.DecodeJSON(raw, &qs); err != nil || len(qs) == 0 {
		logger.Ctx(ctx).Warn().Err(err).Str("raw", tracing.TruncateString(raw, 300)).Msg("面试问题不是合法 JSON")
		out.Questions = types.Failure[types.QuestionSet](raw)
		return out, nil
	}
	out.Questions = types.Success(qs, raw)
	out.Warnings = ValidateQuestionSet(parser.ExtractJSON(raw), qs)
	span.SetAttributes(
		attribute.Int("questions.count", qs.Count()),
		attribute.Int("questions.warnings", len(out.Warnings)),
	)
	if len(out.Warnings) > 0 {
		logger.Ctx(ctx).Warn().Strs("warnings", out.Warnings).Msg("面试问题与要求不完全一致")
	}
	return out, nil
}

// ValidateQuestionSet 检查问题集的形状和各类别数量，只返回警告。
// rawJSON 为空时跳过结构校验
func ValidateQuestionSet(rawJSON string, qs types.QuestionSet) []string {
	var warnings []string

	if rawJSON != "" {
		result, err := gojsonschema.Validate(questionSchemaLoader, gojsonschema.NewStringLoader(rawJSON))
		if err != nil {
			// 原文可能需要清洗后才能解析，用解析后的结构再校验一次
			normalized, merr := json.Marshal(qs)
			if merr == nil {
				result, err = gojsonschema.Validate(questionSchemaLoader, gojsonschema.NewBytesLoader(normalized))
			}
		}
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("无法校验问题格式: %v", err))
		} else if !result.Valid() {
			for _, e := range result.Errors() {
				warnings = append(warnings, fmt.Sprintf("格式不符: %s", e.String()))
			}
		}
	}

	for _, name := range constants.QuestionCategories {
		want := constants.ExpectedQuestionCounts[name]
		got := -1
		for _, c := range qs {
			if categoryMatches(c.Name, name) {
				got = len(c.Items)
				break
			}
		}
		switch {
		case got == -1:
			warnings = append(warnings, fmt.Sprintf("缺少类别 %q", name))
		case got != want:
			warnings = append(warnings, fmt.Sprintf("类别 %q 应有 %d 题，实际 %d 题", name, want, got))
		}
	}
	return warnings
}

// categoryMatches 类别名宽松匹配，模型常把 "Fill-in-the-Blanks" 写成 "Technical Fill-in-the-Blanks"
func categoryMatches(got, want string) bool {
	g := normalizeCategory(got)
	w := normalizeCategory(want)
	return g == w || strings.Contains(g, w)
}

func normalizeCategory(s string) string {
	s = strings.ToLower(s)
	var b strings.Builder
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}
