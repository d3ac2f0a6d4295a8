package quiz

import (
	"errors"
	"testing"

	"github.com/jaykwok/course-afk/internal/model"
)

const singleChoiceHTML = `<div class="question-type-item" data-dynamic-key="k1">
  <div class="o-score">单选题 (2分)</div>
  <div class="single-title"><div class="rich-text-style">以下哪项是正确的？</div></div>
  <dl class="preview-list">
    <dd><span class="option-num">A.</span>第一项</dd>
    <dd><span class="option-num">B.</span>第二项</dd>
    <dd><span class="option-num">C.</span>第三项</dd>
  </dl>
</div>`

func TestExtractQuestion(t *testing.T) {
	q, err := ExtractQuestion(singleChoiceHTML, 3, "k1")
	if err != nil {
		t.Fatalf("ExtractQuestion: %v", err)
	}
	if q.Index != 3 || q.ItemID != "k1" {
		t.Errorf("identity = (%d, %q), want (3, k1)", q.Index, q.ItemID)
	}
	if q.Kind != model.QuestionSingle {
		t.Errorf("kind = %q, want single", q.Kind)
	}
	if q.Text != "以下哪项是正确的？" {
		t.Errorf("text = %q", q.Text)
	}
	if len(q.Options) != 3 {
		t.Fatalf("got %d options, want 3", len(q.Options))
	}
	if q.Options[1].Label != "B" || q.Options[1].Text != "第二项" {
		t.Errorf("option 1 = %+v", q.Options[1])
	}
}

func TestExtractQuestionJudgeWithoutOptions(t *testing.T) {
	html := `<div>
	  <div class="o-score">判断题 (1分)</div>
	  <div class="single-title"><div class="rich-text-style">地球是圆的。</div></div>
	</div>`
	q, err := ExtractQuestion(html, 0, "")
	if err != nil {
		t.Fatalf("ExtractQuestion: %v", err)
	}
	if q.Kind != model.QuestionJudge {
		t.Fatalf("kind = %q, want judge", q.Kind)
	}
	if len(q.Options) != 2 || q.Options[0].Text != judgeTrue || q.Options[1].Text != judgeFalse {
		t.Errorf("synthesized options = %+v", q.Options)
	}
}

func TestExtractQuestionFillBlankByStructure(t *testing.T) {
	html := `<div>
	  <div class="rich-text-style">请填空。</div>
	  <form class="vertical"><input class="sentence-input"/></form>
	</div>`
	q, err := ExtractQuestion(html, 0, "")
	if err != nil {
		t.Fatalf("ExtractQuestion: %v", err)
	}
	if q.Kind != model.QuestionFillBlank {
		t.Errorf("kind = %q, want fill_blank", q.Kind)
	}
	if q.Automatable() {
		t.Error("fill-blank question must not be automatable")
	}
}

func TestExtractQuestionNoText(t *testing.T) {
	_, err := ExtractQuestion(`<div class="o-score">单选题</div>`, 0, "")
	if !errors.Is(err, model.ErrExtraction) {
		t.Fatalf("err = %v, want ErrExtraction", err)
	}
}
