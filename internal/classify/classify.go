// Package classify maps the portal's declared type codes and rendered
// markup onto the closed set of content kinds the engines dispatch on.
// Classification is total: unknown is a valid terminal answer, never an
// error.
package classify

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/jaykwok/course-afk/internal/model"
)

// Section-type codes as rendered in data-sectiontype. 5 and 6 are two
// video player variants the portal never distinguishes downstream.
var sectionKinds = map[string]model.ContentKind{
	"1": model.KindDocument,
	"2": model.KindDocument,
	"3": model.KindDocument,
	"4": model.KindH5,
	"5": model.KindVideo,
	"6": model.KindVideo,
	"9": model.KindExam,
}

// SectionKind classifies a chapter by its declared code.
func SectionKind(code string) model.ContentKind {
	if kind, ok := sectionKinds[code]; ok {
		return kind
	}
	return model.KindUnknown
}

// Detectable reports whether a chapter's completion can be judged from its
// progress text without opening it. Only video and document chapters carry
// usable progress text.
func Detectable(code string) bool {
	switch SectionKind(code) {
	case model.KindVideo, model.KindDocument:
		return true
	}
	return false
}

// Subject item labels as rendered in the .section-type cell.
var itemKinds = map[string]model.ItemKind{
	"课程": model.ItemCourse,
	"URL":  model.ItemURL,
	"考试": model.ItemExam,
	"调研": model.ItemSurvey,
}

// ItemKind classifies a subject-page row by its visible label.
func ItemKind(label string) model.ItemKind {
	if kind, ok := itemKinds[strings.TrimSpace(label)]; ok {
		return kind
	}
	return model.ItemOther
}

// Denial phrases the portal renders in place of content.
const (
	phraseNoPermission   = "您没有权限查看该资源"
	phraseResourceGone   = "该资源已不存在"
	phraseResourceUnlist = "该资源已下架"
)

// CheckAccess probes rendered page HTML for the portal's denial phrases.
// Returns ErrPermissionDenied or ErrResourceGone when one is present, nil
// when the page is viewable.
func CheckAccess(html string) error {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return fmt.Errorf("parse page markup: %w", err)
	}
	text := doc.Text()
	switch {
	case strings.Contains(text, phraseNoPermission):
		return model.ErrPermissionDenied
	case strings.Contains(text, phraseResourceGone), strings.Contains(text, phraseResourceUnlist):
		return model.ErrResourceGone
	}
	return nil
}

// ProbeQuestionKind inspects a question's markup when its type label was
// absent or ambiguous. A sentence-completion input marks a fill-in-the-
// blank question; a short-answer-order input marks an ordering question.
func ProbeQuestionKind(html string) model.QuestionKind {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return model.QuestionOther
	}
	if doc.Find("form.vertical .sentence-input").Length() > 0 {
		return model.QuestionFillBlank
	}
	if doc.Find(".answer-input-shot").Length() > 0 {
		return model.QuestionOrdering
	}
	return model.QuestionOther
}

// Question type labels, matched by substring against the rendered score
// line.
var questionLabels = []struct {
	substr string
	kind   model.QuestionKind
}{
	{"单选题", model.QuestionSingle},
	{"多选题", model.QuestionMultiple},
	{"不定项选择", model.QuestionMultiple},
	{"判断题", model.QuestionJudge},
	{"填空题", model.QuestionFillBlank},
	{"排序题", model.QuestionOrdering},
	{"阅读理解题", model.QuestionReading},
}

// QuestionKind classifies a question by its rendered type label, falling
// back to the structural probe when the label matches nothing.
func QuestionKind(label, html string) model.QuestionKind {
	for _, ql := range questionLabels {
		if strings.Contains(label, ql.substr) {
			return ql.kind
		}
	}
	return ProbeQuestionKind(html)
}
