package traverse

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jaykwok/course-afk/internal/browser"
	"github.com/jaykwok/course-afk/internal/checkpoint"
	"github.com/jaykwok/course-afk/internal/classify"
	"github.com/jaykwok/course-afk/internal/dwell"
	"github.com/jaykwok/course-afk/internal/model"
	"github.com/jaykwok/course-afk/internal/progress"
)

// RunSubject navigates to a subject page and processes every item row.
// Items the engine cannot finish are routed into their queues; only
// access errors and infrastructure failures surface to the caller.
func (e *Engine) RunSubject(ctx context.Context, doc browser.Document, url string) error {
	if err := e.open(ctx, doc, url); err != nil {
		return err
	}

	rows := doc.Query(selSubjectRow)
	n, err := rows.Count(ctx)
	if err != nil {
		return err
	}
	e.log.Info("subject opened", "url", url, "items", n)

	var failed, requeued int
	for i := 0; i < n; i++ {
		err := e.runSubjectItem(ctx, doc, url, i)
		switch {
		case err == nil:
		case ctx.Err() != nil:
			return err
		case errors.Is(err, model.ErrRequeued):
			e.log.Warn("subject item deferred", "url", url, "index", i, "error", err)
			requeued++
		default:
			e.log.Error("subject item failed", "url", url, "index", i, "error", err)
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d subject items failed", failed, n)
	}
	if requeued > 0 {
		return fmt.Errorf("%w: %d of %d subject items", model.ErrRequeued, requeued, n)
	}
	return nil
}

func (e *Engine) runSubjectItem(ctx context.Context, doc browser.Document, subjectURL string, i int) error {
	row := doc.Query(selSubjectRow).Nth(i)
	html, err := row.HTML(ctx)
	if err != nil {
		return err
	}
	frag, err := parseFragment(html)
	if err != nil {
		return err
	}
	label := frag.Find(selRowLabel).First().Text()
	rowText := frag.Text()
	kind := classify.ItemKind(label)

	log := e.log.With("subject", subjectURL, "index", i, "kind", kind)

	switch kind {
	case model.ItemCourse:
		return e.runCourseItem(ctx, doc, row, log)

	case model.ItemURL:
		// External links cannot be auto-completed; view briefly for the
		// access credit and queue for the link check pass.
		return e.withPopup(ctx, doc, row, func(ctx context.Context, popup browser.Document) error {
			url, err := popup.URL(ctx)
			if err != nil {
				return err
			}
			if err := dwell.Await(ctx, e.log, e.cfg.DocumentDwell, e.cfg.Heartbeat); err != nil {
				return err
			}
			log.Info("external link viewed, queueing", "target", url)
			return e.store.Enqueue(checkpoint.QueueExternalURL, url)
		})

	case model.ItemExam:
		if progress.IsFinishedBadge(rowText) {
			log.Info("exam already finished")
			return nil
		}
		return e.withPopup(ctx, doc, row, func(ctx context.Context, popup browser.Document) error {
			url, err := popup.URL(ctx)
			if err != nil {
				return err
			}
			log.Info("queueing subject exam", "target", url)
			return e.store.Enqueue(checkpoint.QueueSubjectExam, url)
		})

	case model.ItemSurvey:
		return e.withPopup(ctx, doc, row, func(ctx context.Context, popup browser.Document) error {
			url, err := popup.URL(ctx)
			if err != nil {
				return err
			}
			log.Info("queueing survey", "target", url)
			return e.store.Enqueue(checkpoint.QueueSurvey, url)
		})
	}

	log.Warn("unclassified subject item", "label", label)
	return e.store.Enqueue(checkpoint.QueueUnclassified, subjectURL)
}

// runCourseItem opens a course row's popup and walks the course in it.
// A failed course queues its own URL for retry, never the whole subject;
// access failures queue the course for the operator instead.
func (e *Engine) runCourseItem(ctx context.Context, doc browser.Document, row browser.Element, log *slog.Logger) error {
	return e.withPopup(ctx, doc, row, func(ctx context.Context, popup browser.Document) error {
		url, err := popup.URL(ctx)
		if err != nil {
			return err
		}
		err = e.runCourseDoc(ctx, popup)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, model.ErrPermissionDenied), errors.Is(err, model.ErrResourceGone):
			log.Warn("course not accessible, queueing", "target", url, "error", err)
			return e.store.Enqueue(checkpoint.QueueNoPermission, url)
		case ctx.Err() != nil:
			return err
		}
		log.Warn("course failed, queueing for retry", "target", url, "error", err)
		if qerr := e.store.Enqueue(checkpoint.QueueRemaining, url); qerr != nil {
			return qerr
		}
		return fmt.Errorf("%w: %v", model.ErrRequeued, err)
	})
}

// withPopup opens the popup a row click triggers, runs fn on it, and
// always closes it.
func (e *Engine) withPopup(ctx context.Context, doc browser.Document, row browser.Element, fn func(context.Context, browser.Document) error) error {
	popup, err := doc.ExpectPopup(ctx, func(ctx context.Context) error {
		return row.Click(ctx)
	})
	if err != nil {
		return err
	}
	defer popup.Close()
	if err := popup.WaitLoad(ctx); err != nil {
		return err
	}
	if err := popup.WaitIdle(ctx, 30*time.Second); err != nil {
		return err
	}
	return fn(ctx, popup)
}
