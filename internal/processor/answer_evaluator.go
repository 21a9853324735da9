package processor

import (
	"context"
	"encoding/json"

	"talent-copilot/internal/agent"
	"talent-copilot/internal/types"

	"github.com/cloudwego/eino/components/model"
	"go.opentelemetry.io/otel/attribute"
)

// AnswerEvaluator 让模型为作答打分并给出总结
type AnswerEvaluator struct {
	llm model.ToolCallingChatModel
}

// NewAnswerEvaluator 创建评估器
func NewAnswerEvaluator(llm model.ToolCallingChatModel) *AnswerEvaluator {
	return &AnswerEvaluator{llm: llm}
}

// Evaluate 返回模型的原始评估文本。问题和作答以 JSON 放进提示词，作答以题目文本为键
func (e *AnswerEvaluator) Evaluate(ctx context.Context, qs types.QuestionSet, answers *types.AnswerSet) (string, error) {
	ctx, span := tracer.Start(ctx, "AnswerEvaluator.Evaluate")
	defer span.End()
	span.SetAttributes(
		attribute.Int("questions.count", qs.Count()),
		attribute.Int("answers.count", answers.Len()),
	)

	questionsJSON, err := json.Marshal(qs)
	if err != nil {
		return "", err
	}
	answerMap := map[string]string{}
	if answers != nil {
		for _, c := range qs {
			for _, item := range c.Items {
				answerMap[item.Text] = answers.AnswerFor(item.Text)
			}
		}
	}
	answersJSON, err := json.Marshal(answerMap)
	if err != nil {
		return "", err
	}

	return agent.Invoke(ctx, e.llm, evaluationTemplate, map[string]any{
		"questions": string(questionsJSON),
		"answers":   string(answersJSON),
	})
}
