package quiz

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/jaykwok/course-afk/internal/classify"
	"github.com/jaykwok/course-afk/internal/model"
)

// Selectors of the portal's answer-paper markup. The paper comes in two
// renderings: single-question with a next button, and all questions on one
// page anchored by a dynamic key.
const (
	selSingleNav      = ".single-btns"
	selNextButton     = ".single-btn-next"
	classNextDisabled = "next-disabled"

	selQuestionBlock = ".question-type-item"
	attrDynamicKey   = "data-dynamic-key"

	selScoreLine     = ".o-score"
	selQuestionText  = ".single-title .rich-text-style"
	selOptionRow     = ".preview-list dd"
	selOptionLabel   = ".option-num"
	selOrderingInput = ".answer-input-shot"

	// Caption-only buttons; there is no stable class to anchor on.
	selClickable      = "button, .btn, span"
	textSubmit        = "我要交卷"
	textConfirmSpaced = "确 定"
	textConfirm       = "确定"
)

// ExtractQuestion parses one question's rendered markup. In single-question
// mode html is the whole page and itemID is empty; in multi-question mode
// html is one question block and itemID its dynamic key.
func ExtractQuestion(html string, index int, itemID string) (model.Question, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return model.Question{}, fmt.Errorf("%w: parse question markup: %v", model.ErrExtraction, err)
	}

	label := strings.TrimSpace(doc.Find(selScoreLine).First().Text())
	kind := classify.QuestionKind(label, html)

	text := strings.TrimSpace(doc.Find(selQuestionText).First().Text())
	if text == "" {
		text = strings.TrimSpace(doc.Find(".rich-text-style").First().Text())
	}
	if text == "" {
		return model.Question{}, fmt.Errorf("%w: question %d has no text", model.ErrExtraction, index)
	}

	var options []model.Option
	doc.Find(selOptionRow).Each(func(_ int, dd *goquery.Selection) {
		rawNum := dd.Find(selOptionLabel).First().Text()
		body := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(dd.Text()), strings.TrimSpace(rawNum)))
		options = append(options, model.Option{
			Label: strings.TrimRight(strings.TrimSpace(rawNum), ".、)）"),
			Text:  body,
		})
	})

	// Some judge questions render without option rows; the two verdicts are
	// implicit.
	if kind == model.QuestionJudge && len(options) == 0 {
		options = []model.Option{
			{Label: "A", Text: judgeTrue},
			{Label: "B", Text: judgeFalse},
		}
	}

	return model.Question{
		Index:   index,
		Kind:    kind,
		Text:    text,
		Options: options,
		ItemID:  itemID,
	}, nil
}
