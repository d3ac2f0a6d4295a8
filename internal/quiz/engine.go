// Package quiz answers the portal's exam papers. An engine extracts each
// question, asks the oracle, applies the answer to the page, and submits;
// the escalation loop around it retries failed papers with a stronger
// model before handing the exam to a human.
package quiz

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jaykwok/course-afk/internal/browser"
	"github.com/jaykwok/course-afk/internal/model"
	"github.com/jaykwok/course-afk/internal/oracle"
)

// Engine answers one paper at a time. Safe for reuse across papers, not
// for concurrent use on one document.
type Engine struct {
	oracle oracle.AnswerOracle
	log    *slog.Logger
}

func NewEngine(o oracle.AnswerOracle, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	return &Engine{oracle: o, log: log}
}

// PaperResult summarizes one answering pass over a paper.
type PaperResult struct {
	Answered int
	Skipped  int
	// NeedsHuman means the paper holds at least one question the engine
	// must not attempt. Such a paper is never submitted.
	NeedsHuman bool
}

// AnswerPaper answers every question on the open paper and submits it,
// unless a non-automatable question was found. reasoning selects the
// oracle's expensive tier.
func (e *Engine) AnswerPaper(ctx context.Context, doc browser.Document, reasoning bool) (PaperResult, error) {
	if err := doc.WaitIdle(ctx, 30*time.Second); err != nil {
		return PaperResult{}, fmt.Errorf("paper did not render: %w", err)
	}

	single, err := doc.Query(selSingleNav).Count(ctx)
	if err != nil {
		return PaperResult{}, err
	}

	var res PaperResult
	if single > 0 {
		err = e.answerSingleMode(ctx, doc, reasoning, &res)
	} else {
		err = e.answerMultiMode(ctx, doc, reasoning, &res)
	}
	if err != nil {
		return res, err
	}

	if res.NeedsHuman {
		e.log.Info("paper needs a human, leaving it unsubmitted",
			"answered", res.Answered, "skipped", res.Skipped)
		return res, nil
	}
	return res, e.submit(ctx, doc)
}

// answerSingleMode walks the one-question-at-a-time rendering via the next
// button until it reports the last question.
func (e *Engine) answerSingleMode(ctx context.Context, doc browser.Document, reasoning bool, res *PaperResult) error {
	for i := 0; ; i++ {
		html, err := doc.Content(ctx)
		if err != nil {
			return err
		}
		q, err := ExtractQuestion(html, i, "")
		if err != nil {
			e.log.Warn("question extraction failed", "index", i, "error", err)
			res.Skipped++
			res.NeedsHuman = true
		} else if err := e.answerOne(ctx, doc, q, "", reasoning, res); err != nil {
			return err
		}

		next := doc.Query(selNextButton)
		cls, err := next.Attr(ctx, "class")
		if err != nil {
			return err
		}
		if cls == "" || strings.Contains(cls, classNextDisabled) {
			return nil
		}
		if err := next.Click(ctx); err != nil {
			return err
		}
		if err := doc.WaitIdle(ctx, 10*time.Second); err != nil {
			return err
		}
	}
}

// answerMultiMode walks every question block of the all-on-one-page
// rendering, scoping clicks by each block's dynamic key.
func (e *Engine) answerMultiMode(ctx context.Context, doc browser.Document, reasoning bool, res *PaperResult) error {
	blocks := doc.Query(selQuestionBlock)
	n, err := blocks.Count(ctx)
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: no question blocks on paper", model.ErrExtraction)
	}

	for i := 0; i < n; i++ {
		block := blocks.Nth(i)
		html, err := block.HTML(ctx)
		if err != nil {
			return err
		}
		key, err := block.Attr(ctx, attrDynamicKey)
		if err != nil {
			return err
		}

		q, err := ExtractQuestion(html, i, key)
		if err != nil {
			e.log.Warn("question extraction failed", "index", i, "error", err)
			res.Skipped++
			res.NeedsHuman = true
			continue
		}
		if err := e.answerOne(ctx, doc, q, blockScope(key, i), reasoning, res); err != nil {
			return err
		}
	}
	return nil
}

func blockScope(key string, index int) string {
	if key == "" {
		return fmt.Sprintf("%s:nth-of-type(%d)", selQuestionBlock, index+1)
	}
	return fmt.Sprintf("[%s=%q]", attrDynamicKey, key)
}

// answerOne asks the oracle and applies its answer. An oracle error aborts
// the paper; an unusable answer or a failed click skips the question and
// lets a failed attempt drive escalation instead.
func (e *Engine) answerOne(ctx context.Context, doc browser.Document, q model.Question, scope string, reasoning bool, res *PaperResult) error {
	if !q.Automatable() {
		e.log.Info("question is not automatable", "index", q.Index, "kind", q.Kind)
		res.Skipped++
		res.NeedsHuman = true
		return nil
	}

	raw, err := e.oracle.Ask(ctx, BuildPrompt(q), reasoning)
	if err != nil {
		return fmt.Errorf("question %d: %w", q.Index, err)
	}

	if err := e.apply(ctx, doc, q, scope, raw); err != nil {
		e.log.Warn("could not apply answer", "index", q.Index, "kind", q.Kind,
			"raw", raw, "error", err)
		res.Skipped++
		return nil
	}
	res.Answered++
	return nil
}

func (e *Engine) apply(ctx context.Context, doc browser.Document, q model.Question, scope, raw string) error {
	switch q.Kind {
	case model.QuestionJudge:
		verdict, defaulted := ParseJudge(raw)
		if defaulted {
			e.log.Warn("unreadable judge answer, defaulting", "index", q.Index, "raw", raw)
		}
		for i, opt := range q.Options {
			if strings.Contains(opt.Text, verdict) {
				return e.clickOption(ctx, doc, scope, i)
			}
		}
		return fmt.Errorf("no option matches verdict %q", verdict)

	case model.QuestionSingle, model.QuestionMultiple, model.QuestionReading:
		letters := ParseChoice(raw, q.Kind != model.QuestionSingle, len(q.Options))
		if len(letters) == 0 {
			return fmt.Errorf("no usable letters in answer %q", raw)
		}
		for _, l := range letters {
			if err := e.clickOption(ctx, doc, scope, int(l[0]-'A')); err != nil {
				return err
			}
		}
		return nil

	case model.QuestionOrdering:
		seq := ParseOrdering(raw, len(q.Options))
		if seq == "" {
			return fmt.Errorf("no usable sequence in answer %q", raw)
		}
		return doc.Query(scoped(scope, selOrderingInput)).Fill(ctx, seq)
	}
	return fmt.Errorf("unsupported question kind %q", q.Kind)
}

func (e *Engine) clickOption(ctx context.Context, doc browser.Document, scope string, i int) error {
	sel := scoped(scope, fmt.Sprintf("%s:nth-of-type(%d)", selOptionRow, i+1))
	return doc.Query(sel).Click(ctx)
}

func scoped(scope, sel string) string {
	if scope == "" {
		return sel
	}
	return scope + " " + sel
}

// submit clicks through the hand-in button and its confirmation dialogs.
// The second confirmation is a success acknowledgment that sometimes
// dismisses itself.
func (e *Engine) submit(ctx context.Context, doc browser.Document) error {
	if err := doc.QueryText(selClickable, textSubmit).Click(ctx); err != nil {
		return fmt.Errorf("%w: hand-in button: %v", model.ErrSubmissionFailed, err)
	}

	confirm := doc.QueryText(selClickable, textConfirmSpaced)
	if err := confirm.WaitVisible(ctx, 10*time.Second); err != nil {
		return fmt.Errorf("%w: confirmation dialog: %v", model.ErrSubmissionFailed, err)
	}
	if err := confirm.Click(ctx); err != nil {
		return fmt.Errorf("%w: confirmation click: %v", model.ErrSubmissionFailed, err)
	}

	ack := doc.QueryText(selClickable, textConfirm)
	if err := ack.WaitVisible(ctx, 5*time.Second); err == nil {
		if err := ack.Click(ctx); err != nil {
			e.log.Debug("success acknowledgment already gone", "error", err)
		}
	}
	e.log.Info("paper submitted")
	return nil
}
