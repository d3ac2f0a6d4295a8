package quiz

import (
	"context"
	"strings"
	"time"

	"github.com/jaykwok/course-afk/internal/browser"
	"github.com/jaykwok/course-afk/internal/model"
	"github.com/jaykwok/course-afk/internal/progress"
)

// Exam detail page markup.
const (
	selStatusBadge  = ".neer-status"
	selLatestResult = "div.tab-container table.table tbody tr:first-child td:nth-child(4)"
	selStartButton  = ".btn.new-radius"
)

// Attempt quota floor below which the engine refuses to burn attempts. A
// course-embedded exam tolerates a lower floor because its quota refreshes
// with the course; a standalone exam's does not.
const (
	quotaFloorEmbedded   = 3
	quotaFloorStandalone = 1
)

// Verdict is what the caller should do with an exam after a session.
type Verdict string

const (
	// VerdictResolved: passed or pending grading, nothing left to do.
	VerdictResolved Verdict = "resolved"
	// VerdictManual: route the exam to the manual queue.
	VerdictManual Verdict = "manual"
	// VerdictDeferred: a live attempt already exists, probably a stale
	// session of ours. Not a human handoff; retry on a later pass.
	VerdictDeferred Verdict = "deferred"
)

// RunExam drives one exam from its detail page to a terminal verdict,
// escalating through the oracle tiers between failed attempts. The ladder
// only moves forward; a fresh session starts over at the cheap tier.
func (e *Engine) RunExam(ctx context.Context, doc browser.Document, embedded bool) (Verdict, error) {
	floor := quotaFloorStandalone
	if embedded {
		floor = quotaFloorEmbedded
	}

	esc := model.EscalationNone
	for {
		if err := doc.WaitIdle(ctx, 30*time.Second); err != nil {
			return "", err
		}

		status, err := e.readStatus(ctx, doc)
		if err != nil {
			return "", err
		}
		switch {
		case status == model.ExamInProgress:
			// A live attempt exists somewhere else. Touching it could void
			// the paper.
			e.log.Warn("exam has an attempt in progress, leaving it alone")
			return VerdictDeferred, nil
		case status.Resolved():
			e.log.Info("exam resolved", "status", status)
			return VerdictResolved, nil
		}

		btnText, err := doc.Query(selStartButton).Text(ctx)
		if err != nil {
			return "", err
		}
		if n, ok := progress.RemainingAttempts(btnText); ok && n <= floor {
			e.log.Warn("attempt quota too low to spend", "remaining", n, "floor", floor)
			return VerdictManual, nil
		}

		switch esc {
		case model.EscalationNone:
			esc = model.EscalationBasic
		case model.EscalationBasic:
			esc = model.EscalationReasoning
		default:
			e.log.Warn("reasoning attempt failed too, handing over")
			return VerdictManual, nil
		}
		e.log.Info("starting attempt", "escalation", esc)

		if err := doc.Query(selStartButton).Click(ctx); err != nil {
			return "", err
		}
		// Some exams interpose a confirmation before the paper opens.
		if confirm := doc.QueryText(selClickable, textConfirm); confirm.WaitVisible(ctx, 3*time.Second) == nil {
			if err := confirm.Click(ctx); err != nil {
				return "", err
			}
		}

		res, err := e.AnswerPaper(ctx, doc, esc >= model.EscalationReasoning)
		if err != nil {
			return "", err
		}
		if res.NeedsHuman {
			return VerdictManual, nil
		}

		if err := doc.Reload(ctx); err != nil {
			return "", err
		}
	}
}

// readStatus reads the exam tri-state from the detail page: the live badge
// first, then the newest row of the results table.
func (e *Engine) readStatus(ctx context.Context, doc browser.Document) (model.ExamStatus, error) {
	badge, err := doc.Query(selStatusBadge).Text(ctx)
	if err != nil {
		return "", err
	}
	if progress.InExam(badge) {
		return model.ExamInProgress, nil
	}

	cell, err := doc.Query(selLatestResult).Text(ctx)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(cell) == "" {
		return model.ExamNoAttempt, nil
	}
	return progress.StatusFromCell(cell), nil
}
