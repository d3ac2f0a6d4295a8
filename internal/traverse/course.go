package traverse

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jaykwok/course-afk/internal/browser"
	"github.com/jaykwok/course-afk/internal/checkpoint"
	"github.com/jaykwok/course-afk/internal/classify"
	"github.com/jaykwok/course-afk/internal/dwell"
	"github.com/jaykwok/course-afk/internal/model"
	"github.com/jaykwok/course-afk/internal/progress"
	"github.com/jaykwok/course-afk/internal/quiz"
)

// open navigates and verifies the page is actually viewable.
func (e *Engine) open(ctx context.Context, doc browser.Document, url string) error {
	if err := doc.Navigate(ctx, url); err != nil {
		return err
	}
	if err := doc.WaitLoad(ctx); err != nil {
		return err
	}
	if err := doc.WaitIdle(ctx, 30*time.Second); err != nil {
		return err
	}
	return e.checkAccess(ctx, doc)
}

// RunCourse navigates to a course page and works through its required
// chapters.
func (e *Engine) RunCourse(ctx context.Context, doc browser.Document, url string) error {
	if err := e.open(ctx, doc, url); err != nil {
		return err
	}
	return e.runCourseDoc(ctx, doc)
}

// RunCourseExams opens a course and answers only its exam chapters,
// skipping all content. This is how queued courses get their exams retried
// once the rest of the course is done.
func (e *Engine) RunCourseExams(ctx context.Context, doc browser.Document, url string) (resolved bool, err error) {
	if err := e.open(ctx, doc, url); err != nil {
		return false, err
	}
	// The chapter list only unfolds after the header click.
	if err := doc.Query(selCourseTop).Click(ctx); err != nil {
		return false, err
	}
	if err := doc.WaitIdle(ctx, 30*time.Second); err != nil {
		return false, err
	}

	rows := doc.Query(selChapterRow)
	n, err := rows.Count(ctx)
	if err != nil {
		return false, err
	}

	resolved = true
	found := false
	for i := 0; i < n; i++ {
		code, err := rows.Nth(i).Attr(ctx, attrSectionType)
		if err != nil {
			return false, err
		}
		if classify.SectionKind(code) != model.KindExam {
			continue
		}
		found = true

		if err := e.openChapter(ctx, doc, i); err != nil {
			return false, err
		}
		verdict, err := e.exams.RunExam(ctx, doc, true)
		if err != nil {
			return false, err
		}
		if verdict != quiz.VerdictResolved {
			e.log.Warn("course exam still unresolved", "course", url, "chapter", i, "verdict", verdict)
			resolved = false
		}
		e.maybeRate(ctx, doc)
	}
	if !found {
		return false, fmt.Errorf("%w: course has no exam chapter", model.ErrExtraction)
	}
	return resolved, nil
}

// runCourseDoc walks an already-open course page.
func (e *Engine) runCourseDoc(ctx context.Context, doc browser.Document) error {
	if err := e.checkAccess(ctx, doc); err != nil {
		return err
	}
	url, err := doc.URL(ctx)
	if err != nil {
		return err
	}

	top, err := doc.Query(selCourseTop).Text(ctx)
	if err != nil {
		return err
	}
	if progress.IsCourseComplete(top) {
		e.log.Info("course already complete", "url", url)
		e.maybeRate(ctx, doc)
		return nil
	}

	rows := doc.Query(selChapterRow)
	n, err := rows.Count(ctx)
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: course has no required chapters", model.ErrExtraction)
	}

	// Pre-scan: when every chapter both classifies and reads as learned
	// the whole course is skippable without opening anything.
	pending, err := e.pendingChapters(ctx, doc, n)
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		e.log.Info("all chapters already learned", "url", url, "chapters", n)
		e.maybeRate(ctx, doc)
		return nil
	}
	e.log.Info("course opened", "url", url, "chapters", n, "pending", len(pending))

	for _, ch := range pending {
		if err := e.runChapter(ctx, doc, url, ch); err != nil {
			return fmt.Errorf("chapter %d: %w", ch.Index, err)
		}
	}

	e.maybeRate(ctx, doc)
	return nil
}

// pendingChapters enumerates the required chapters that still need work.
func (e *Engine) pendingChapters(ctx context.Context, doc browser.Document, n int) ([]model.Chapter, error) {
	var pending []model.Chapter
	for i := 0; i < n; i++ {
		row := doc.Query(selChapterRow).Nth(i)
		text, err := row.Text(ctx)
		if err != nil {
			return nil, err
		}
		code, err := row.Attr(ctx, attrSectionType)
		if err != nil {
			return nil, err
		}
		if classify.Detectable(code) && progress.IsLearned(text) {
			continue
		}
		pending = append(pending, model.Chapter{
			Index:        i,
			SectionType:  code,
			ProgressText: text,
			Required:     true,
		})
	}
	return pending, nil
}

func (e *Engine) runChapter(ctx context.Context, doc browser.Document, courseURL string, ch model.Chapter) error {
	kind := classify.SectionKind(ch.SectionType)
	log := e.log.With("course", courseURL, "chapter", ch.Index, "kind", kind)

	switch kind {
	case model.KindVideo, model.KindDocument:
		if err := e.openChapter(ctx, doc, ch.Index); err != nil {
			return err
		}
		if kind == model.KindVideo {
			if err := e.watchVideo(ctx, doc, ch, log); err != nil {
				return err
			}
		} else {
			log.Info("viewing document chapter", "dwell", e.cfg.DocumentDwell)
			if err := dwell.Await(ctx, e.log, e.cfg.DocumentDwell, e.cfg.Heartbeat); err != nil {
				return err
			}
		}
		return e.awaitLearned(ctx, doc, ch.Index, log)

	case model.KindExam:
		if err := e.openChapter(ctx, doc, ch.Index); err != nil {
			return err
		}
		verdict, err := e.exams.RunExam(ctx, doc, true)
		if err != nil {
			return err
		}
		switch verdict {
		case quiz.VerdictManual:
			log.Warn("chapter exam needs a human, queueing course")
			return e.store.Enqueue(checkpoint.QueueCourseExam, courseURL)
		case quiz.VerdictDeferred:
			return fmt.Errorf("chapter exam has an attempt in progress")
		}
		return nil

	case model.KindH5:
		log.Info("h5 chapter cannot be credited automatically, queueing course")
		return e.store.Enqueue(checkpoint.QueueH5, courseURL)
	}

	log.Warn("unclassified chapter, queueing course", "section_type", ch.SectionType)
	return e.store.Enqueue(checkpoint.QueueUnclassified, courseURL)
}

func (e *Engine) openChapter(ctx context.Context, doc browser.Document, i int) error {
	if err := doc.Query(selChapterRow).Nth(i).Click(ctx); err != nil {
		return err
	}
	return doc.WaitIdle(ctx, 30*time.Second)
}

// watchVideo holds the player open for the remaining watch time, while a
// companion poll dismisses the interaction popups that pause playback.
func (e *Engine) watchVideo(ctx context.Context, doc browser.Document, ch model.Chapter, log *slog.Logger) error {
	remaining, total, err := progress.RemainingDwell(ch.ProgressText)
	if err != nil {
		// Progress text without durations; fall back to the player's own
		// duration display.
		dur, derr := doc.Query(selVideoDuration).Text(ctx)
		if derr != nil || progress.TimeToSeconds(dur) == 0 {
			return err
		}
		remaining, total, err = progress.RemainingDwell(dur)
		if err != nil {
			return err
		}
	}
	log.Info("watching video chapter", "dwell_s", remaining, "total_s", total)

	return dwell.WithCompanion(ctx, e.log, time.Duration(remaining)*e.cfg.DwellUnit, e.cfg.Heartbeat,
		func(ctx context.Context) {
			e.dismissInteractions(ctx, doc, log)
		})
}

// dismissInteractions skips the "互动练习" popups the player interposes;
// an unanswered one stalls playback and with it the server-side credit.
func (e *Engine) dismissInteractions(ctx context.Context, doc browser.Document, log *slog.Logger) {
	ticker := time.NewTicker(e.cfg.PopupPoll)
	defer ticker.Stop()
	skip := doc.QueryText(selClickable, textSkip)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := skip.Count(ctx)
			if err != nil || n == 0 {
				continue
			}
			if err := skip.Click(ctx); err == nil {
				log.Info("interaction popup skipped")
			}
		}
	}
}

// awaitLearned polls the chapter's progress text until the server credits
// it. The dwell has already been paid; this only covers write latency.
func (e *Engine) awaitLearned(ctx context.Context, doc browser.Document, i int, log *slog.Logger) error {
	deadline := time.Now().Add(e.cfg.SyncGrace)
	for {
		text, err := doc.Query(selChapterRow).Nth(i).Text(ctx)
		if err != nil {
			return err
		}
		if progress.IsLearned(text) {
			log.Info("chapter credited")
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("%w: chapter %d still shows %q", model.ErrSyncTimeout, i, text)
		}
		log.Debug("waiting for progress sync", "text", text)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(e.cfg.SyncPoll):
		}
		if err := doc.Reload(ctx); err != nil {
			return err
		}
		if err := doc.WaitIdle(ctx, 30*time.Second); err != nil {
			return err
		}
	}
}

// maybeRate dismisses the five-star rating dialog a finished course can
// raise. Best effort; a missing dialog is the common case.
func (e *Engine) maybeRate(ctx context.Context, doc browser.Document) {
	modal := doc.Query(selRateModal)
	if n, err := modal.Count(ctx); err != nil || n == 0 {
		return
	}
	if err := doc.Query(selRateStars).Last().Click(ctx); err != nil {
		e.log.Debug("rating stars not clickable", "error", err)
		return
	}
	if err := doc.QueryText(selClickable, textConfirm).Click(ctx); err != nil {
		e.log.Debug("rating confirm not clickable", "error", err)
		return
	}
	e.log.Info("course rated")
}
