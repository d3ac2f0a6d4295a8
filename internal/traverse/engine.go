// Package traverse walks subjects and courses chapter by chapter, holding
// content open long enough for the server to credit it and routing
// everything it cannot finish itself into the checkpoint queues.
package traverse

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/jaykwok/course-afk/internal/browser"
	"github.com/jaykwok/course-afk/internal/checkpoint"
	"github.com/jaykwok/course-afk/internal/classify"
	"github.com/jaykwok/course-afk/internal/quiz"
)

// Page markup the traversal dispatches on.
const (
	selSubjectRow = ".item.current-hover"
	selRowLabel   = ".section-type"

	selCourseTop    = ".top"
	selChapterRow   = "dl.chapter-list-box.required .section-item-wrapper"
	attrSectionType = "data-sectiontype"

	selVideoDuration = ".vjs-duration-display"

	selRateModal = ".ant-modal-content"
	selRateStars = "ul.ant-rate li"

	selClickable = "button, .btn, span"
	textSkip     = "跳 过"
	textConfirm  = "确定"
)

// examRunner is the slice of the quiz engine the traversal needs.
type examRunner interface {
	RunExam(ctx context.Context, doc browser.Document, embedded bool) (quiz.Verdict, error)
}

// Config tunes the traversal's waits. DwellUnit is the wall-clock length
// of one dwell second; tests shrink it.
type Config struct {
	DocumentDwell time.Duration
	SyncGrace     time.Duration
	SyncPoll      time.Duration
	Heartbeat     time.Duration
	PopupPoll     time.Duration
	DwellUnit     time.Duration
}

func (c *Config) applyDefaults() {
	if c.DocumentDwell <= 0 {
		c.DocumentDwell = 10 * time.Second
	}
	if c.SyncGrace <= 0 {
		c.SyncGrace = 5 * time.Minute
	}
	if c.SyncPoll <= 0 {
		c.SyncPoll = 10 * time.Second
	}
	if c.Heartbeat <= 0 {
		c.Heartbeat = time.Minute
	}
	if c.PopupPoll <= 0 {
		c.PopupPoll = 5 * time.Second
	}
	if c.DwellUnit <= 0 {
		c.DwellUnit = time.Second
	}
}

// Engine drives one document at a time through subjects and courses.
type Engine struct {
	store checkpoint.Store
	exams examRunner
	log   *slog.Logger
	cfg   Config
}

func NewEngine(store checkpoint.Store, exams examRunner, log *slog.Logger, cfg Config) *Engine {
	cfg.applyDefaults()
	if log == nil {
		log = slog.Default()
	}
	return &Engine{store: store, exams: exams, log: log, cfg: cfg}
}

// checkAccess probes the rendered page for the portal's denial phrases.
func (e *Engine) checkAccess(ctx context.Context, doc browser.Document) error {
	html, err := doc.Content(ctx)
	if err != nil {
		return err
	}
	return classify.CheckAccess(html)
}

// parseFragment parses one element's HTML for sub-element reads the
// capability set does not offer directly.
func parseFragment(html string) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse row markup: %w", err)
	}
	return doc, nil
}
