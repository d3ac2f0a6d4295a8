package quiz

import (
	"strings"

	"github.com/jaykwok/course-afk/internal/model"
)

// BuildPrompt renders a question into the instruction the oracle answers.
// The response-format line comes first so truncated completions still start
// with the usable part.
func BuildPrompt(q model.Question) string {
	var sb strings.Builder
	sb.WriteString("你是一名考试答题助手，请回答下面的题目。\n")

	switch q.Kind {
	case model.QuestionSingle:
		sb.WriteString("题型：单选题。只回复一个选项字母，不要解释。\n")
	case model.QuestionMultiple:
		sb.WriteString("题型：多选题。回复所有正确选项的字母，例如 ABD，不要解释。\n")
	case model.QuestionJudge:
		sb.WriteString("题型：判断题。只回复\"正确\"或\"错误\"，不要解释。\n")
	case model.QuestionOrdering:
		sb.WriteString("题型：排序题。回复排序后的选项字母序列，例如 CABD，不要解释。\n")
	case model.QuestionReading:
		sb.WriteString("题型：阅读理解题。回复正确选项的字母，不要解释。\n")
	default:
		sb.WriteString("只回复正确选项的字母，不要解释。\n")
	}

	sb.WriteString("\n题目：" + q.Text + "\n")
	if len(q.Options) > 0 {
		sb.WriteString("\n选项：\n")
		for _, opt := range q.Options {
			sb.WriteString(opt.Label + ". " + opt.Text + "\n")
		}
	}
	return sb.String()
}
