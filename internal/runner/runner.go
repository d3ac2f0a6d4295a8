// Package runner drives one full pass over the work list: resume from the
// checkpoint when one exists, dispatch every URL by resource kind, route
// failures into the queues, and re-check external links at the end.
package runner

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/jaykwok/course-afk/internal/browser"
	"github.com/jaykwok/course-afk/internal/checkpoint"
	"github.com/jaykwok/course-afk/internal/classify"
	"github.com/jaykwok/course-afk/internal/dwell"
	"github.com/jaykwok/course-afk/internal/model"
	"github.com/jaykwok/course-afk/internal/quiz"
)

// Traverser is the slice of the traversal engine the runner drives.
type Traverser interface {
	RunSubject(ctx context.Context, doc browser.Document, url string) error
	RunCourse(ctx context.Context, doc browser.Document, url string) error
	RunCourseExams(ctx context.Context, doc browser.Document, url string) (bool, error)
}

// ExamRunner answers a standalone exam already open in the document.
type ExamRunner interface {
	RunExam(ctx context.Context, doc browser.Document, embedded bool) (quiz.Verdict, error)
}

// Config tunes one pass.
type Config struct {
	// InputPath is the operator's task list, read only when no checkpoint
	// exists.
	InputPath string
	// LinkDwell is how long each external link stays open during the
	// re-check pass.
	LinkDwell time.Duration
}

// Runner executes passes. One runner drives one document.
type Runner struct {
	store checkpoint.Store
	trav  Traverser
	exams ExamRunner
	log   *slog.Logger
	cfg   Config
}

func New(store checkpoint.Store, trav Traverser, exams ExamRunner, log *slog.Logger, cfg Config) *Runner {
	if log == nil {
		log = slog.Default()
	}
	if cfg.LinkDwell <= 0 {
		cfg.LinkDwell = 10 * time.Second
	}
	return &Runner{store: store, trav: trav, exams: exams, log: log, cfg: cfg}
}

// Run executes one pass and reports its outcome. Failed URLs land back in
// the remaining queue, so the next pass retries exactly those.
func (r *Runner) Run(ctx context.Context, doc browser.Document) (model.RunOutcome, error) {
	urls, resumed, err := r.workload()
	if err != nil {
		return model.RunOutcome{}, err
	}
	if len(urls) == 0 {
		r.log.Info("nothing to do")
		return model.RunOutcome{}, nil
	}
	if resumed {
		r.log.Info("resuming from checkpoint", "tasks", len(urls))
	} else {
		r.log.Info("starting from input list", "tasks", len(urls), "file", r.cfg.InputPath)
	}

	var out model.RunOutcome
	for _, url := range urls {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		out.Processed++
		if err := r.processOne(ctx, doc, url); err != nil {
			if err := r.routeFailure(url, err, &out); err != nil {
				return out, err
			}
		}
	}
	out.HadFailures = out.Failed > 0

	// The checkpoint file survives until the pass proves clean. A crash or
	// cancellation anywhere above leaves every drained URL on disk; a dirty
	// pass keeps the file so the next pass retries the whole list.
	if resumed && !out.HadFailures {
		if err := r.store.Clear(checkpoint.QueueRemaining); err != nil {
			return out, err
		}
	}

	if err := r.recheckLinks(ctx, doc); err != nil {
		r.log.Error("external link re-check aborted", "error", err)
	}

	r.log.Info("pass finished", "processed", out.Processed, "failed", out.Failed)
	return out, nil
}

// workload picks the task list: the checkpoint wins over the input file.
func (r *Runner) workload() (urls []string, resumed bool, err error) {
	urls, err = r.store.Drain(checkpoint.QueueRemaining)
	if err != nil {
		return nil, false, err
	}
	if len(urls) > 0 {
		return urls, true, nil
	}
	if r.cfg.InputPath == "" {
		return nil, false, nil
	}
	urls, err = readTaskList(r.cfg.InputPath)
	return urls, false, err
}

func readTaskList(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open task list: %w", err)
	}
	defer f.Close()

	seen := make(map[string]bool)
	var urls []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || seen[line] {
			continue
		}
		seen[line] = true
		urls = append(urls, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read task list %s: %w", path, err)
	}
	return urls, nil
}

func (r *Runner) processOne(ctx context.Context, doc browser.Document, url string) error {
	kind, err := model.ParseResourceURL(url)
	if err != nil {
		return err
	}
	r.log.Info("processing", "kind", kind, "url", url)

	switch kind {
	case model.ResourceSubject:
		return r.trav.RunSubject(ctx, doc, url)
	case model.ResourceCourse:
		return r.trav.RunCourse(ctx, doc, url)
	case model.ResourceExam:
		return r.runStandaloneExam(ctx, doc, url)
	}
	return fmt.Errorf("%w: unroutable kind %q", model.ErrMalformedURL, kind)
}

func (r *Runner) runStandaloneExam(ctx context.Context, doc browser.Document, url string) error {
	if err := doc.Navigate(ctx, url); err != nil {
		return err
	}
	if err := doc.WaitLoad(ctx); err != nil {
		return err
	}
	html, err := doc.Content(ctx)
	if err != nil {
		return err
	}
	if err := classify.CheckAccess(html); err != nil {
		return err
	}

	verdict, err := r.exams.RunExam(ctx, doc, false)
	if err != nil {
		return err
	}
	switch verdict {
	case quiz.VerdictManual:
		r.log.Warn("exam handed over for manual completion", "url", url)
		return r.store.Enqueue(checkpoint.QueueManualExam, url)
	case quiz.VerdictDeferred:
		return fmt.Errorf("exam attempt already in progress: %s", url)
	}
	return nil
}

// routeFailure sorts a failed URL into its queue. Access problems are
// terminal and recorded for the operator; everything else is retryable and
// goes back into the remaining queue.
func (r *Runner) routeFailure(url string, cause error, out *model.RunOutcome) error {
	switch {
	case errors.Is(cause, model.ErrPermissionDenied), errors.Is(cause, model.ErrResourceGone):
		r.log.Warn("resource not accessible", "url", url, "error", cause)
		return r.store.Enqueue(checkpoint.QueueNoPermission, url)

	case errors.Is(cause, model.ErrMalformedURL):
		r.log.Error("unroutable task", "url", url, "error", cause)
		out.Failed++
		return r.store.Enqueue(checkpoint.QueueUnclassified, url)

	case errors.Is(cause, model.ErrRequeued):
		// The engine already queued the failing pieces one by one; queueing
		// the parent too would redo finished siblings next pass.
		r.log.Warn("items re-queued for retry", "url", url, "error", cause)
		out.Failed++
		return nil
	}

	r.log.Error("task failed, will retry next pass", "url", url, "error", cause)
	out.Failed++
	return r.store.Enqueue(checkpoint.QueueRemaining, url)
}

// RunExamQueues drives the exams the traversal left behind: answer-paper
// links from the subject and manual queues, then the exam chapters of
// queued courses. Entries leave a queue only when their exam resolves.
func (r *Runner) RunExamQueues(ctx context.Context, doc browser.Document) (model.RunOutcome, error) {
	var out model.RunOutcome
	for _, q := range []checkpoint.Queue{checkpoint.QueueSubjectExam, checkpoint.QueueManualExam} {
		if err := r.drainExamQueue(ctx, doc, q, &out); err != nil {
			return out, err
		}
	}
	if err := r.drainCourseExamQueue(ctx, doc, &out); err != nil {
		return out, err
	}
	out.HadFailures = out.Failed > 0
	r.log.Info("exam pass finished", "processed", out.Processed, "failed", out.Failed)
	return out, nil
}

func (r *Runner) drainExamQueue(ctx context.Context, doc browser.Document, q checkpoint.Queue, out *model.RunOutcome) error {
	urls, err := r.store.Drain(q)
	if err != nil {
		return err
	}
	if len(urls) == 0 {
		return nil
	}
	r.log.Info("answering queued exams", "queue", q, "count", len(urls))

	var leftover []string
	for _, url := range urls {
		if err := ctx.Err(); err != nil {
			return err
		}
		out.Processed++
		done, err := r.answerExamLink(ctx, doc, url)
		if err != nil {
			r.log.Error("queued exam failed", "queue", q, "url", url, "error", err)
			out.Failed++
			leftover = append(leftover, url)
			continue
		}
		if !done {
			leftover = append(leftover, url)
		}
	}
	return r.rewriteQueue(q, urls, leftover)
}

// answerExamLink opens one answer-paper link and runs it as a standalone
// exam. done means the entry may leave its queue.
func (r *Runner) answerExamLink(ctx context.Context, doc browser.Document, url string) (done bool, err error) {
	if err := doc.Navigate(ctx, url); err != nil {
		return false, err
	}
	if err := doc.WaitLoad(ctx); err != nil {
		return false, err
	}
	html, err := doc.Content(ctx)
	if err != nil {
		return false, err
	}
	if err := classify.CheckAccess(html); err != nil {
		if errors.Is(err, model.ErrPermissionDenied) || errors.Is(err, model.ErrResourceGone) {
			r.log.Warn("queued exam not accessible", "url", url, "error", err)
			if qerr := r.store.Enqueue(checkpoint.QueueNoPermission, url); qerr != nil {
				return false, qerr
			}
			return true, nil
		}
		return false, err
	}

	verdict, err := r.exams.RunExam(ctx, doc, false)
	if err != nil {
		return false, err
	}
	if verdict != quiz.VerdictResolved {
		r.log.Warn("queued exam still unresolved", "url", url, "verdict", verdict)
		return false, nil
	}
	return true, nil
}

// drainCourseExamQueue works through courses whose embedded exams were
// queued during traversal: open the course, click into each exam chapter,
// answer it.
func (r *Runner) drainCourseExamQueue(ctx context.Context, doc browser.Document, out *model.RunOutcome) error {
	urls, err := r.store.Drain(checkpoint.QueueCourseExam)
	if err != nil {
		return err
	}
	if len(urls) == 0 {
		return nil
	}
	r.log.Info("answering queued course exams", "count", len(urls))

	var leftover []string
	for _, url := range urls {
		if err := ctx.Err(); err != nil {
			return err
		}
		out.Processed++
		resolved, err := r.trav.RunCourseExams(ctx, doc, url)
		switch {
		case errors.Is(err, model.ErrPermissionDenied), errors.Is(err, model.ErrResourceGone):
			r.log.Warn("queued course not accessible", "url", url, "error", err)
			if qerr := r.store.Enqueue(checkpoint.QueueNoPermission, url); qerr != nil {
				return qerr
			}
		case err != nil:
			r.log.Error("queued course exam failed", "url", url, "error", err)
			out.Failed++
			leftover = append(leftover, url)
		case !resolved:
			r.log.Warn("course exam still unresolved", "url", url)
			leftover = append(leftover, url)
		}
	}
	return r.rewriteQueue(checkpoint.QueueCourseExam, urls, leftover)
}

// rewriteQueue replaces a fully-drained queue's contents with the entries
// that still need work. It runs only after every drained URL was handled,
// so an aborted drain leaves the file untouched.
func (r *Runner) rewriteQueue(q checkpoint.Queue, drained, leftover []string) error {
	if len(leftover) == len(drained) {
		return nil
	}
	if err := r.store.Clear(q); err != nil {
		return err
	}
	for _, url := range leftover {
		if err := r.store.Enqueue(q, url); err != nil {
			return err
		}
	}
	return nil
}

// recheckLinks revisits every recorded external link once, holding each
// open briefly so the portal credits the view. The queue itself stays: it
// is the operator's record of links that cannot be auto-completed.
func (r *Runner) recheckLinks(ctx context.Context, doc browser.Document) error {
	links, err := r.store.Drain(checkpoint.QueueExternalURL)
	if err != nil {
		return err
	}
	if len(links) == 0 {
		return nil
	}
	r.log.Info("re-checking external links", "count", len(links))

	for _, link := range links {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := doc.Navigate(ctx, link); err != nil {
			r.log.Warn("external link not reachable", "url", link, "error", err)
			continue
		}
		if err := doc.WaitLoad(ctx); err != nil {
			r.log.Warn("external link did not load", "url", link, "error", err)
			continue
		}
		if err := dwell.Await(ctx, r.log, r.cfg.LinkDwell, r.cfg.LinkDwell); err != nil {
			return err
		}
	}
	return nil
}
