package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jaykwok/course-afk/internal/browser"
	"github.com/jaykwok/course-afk/internal/browser/browsertest"
	"github.com/jaykwok/course-afk/internal/checkpoint"
	"github.com/jaykwok/course-afk/internal/model"
	"github.com/jaykwok/course-afk/internal/quiz"
)

const (
	courseURL  = "https://kc.zhixueyun.com/#/study/course/detail/9f8b4b1c-0000-0000-0000-000000000001"
	subjectURL = "https://kc.zhixueyun.com/#/study/subject/detail/9f8b4b1c-0000-0000-0000-000000000002"
	examURL    = "https://kc.zhixueyun.com/#/exam/exam/answer-paper/9f8b4b1c-0000-0000-0000-000000000003"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeTraverser records visited URLs and fails the ones it is told to.
type fakeTraverser struct {
	visited    []string
	fail       map[string]error
	unresolved map[string]bool
	onVisit    func(url string)
}

func (f *fakeTraverser) visit(url string) error {
	f.visited = append(f.visited, url)
	if f.onVisit != nil {
		f.onVisit(url)
	}
	return f.fail[url]
}

func (f *fakeTraverser) RunSubject(_ context.Context, _ browser.Document, url string) error {
	return f.visit(url)
}

func (f *fakeTraverser) RunCourse(_ context.Context, _ browser.Document, url string) error {
	return f.visit(url)
}

func (f *fakeTraverser) RunCourseExams(_ context.Context, _ browser.Document, url string) (bool, error) {
	if err := f.visit(url); err != nil {
		return false, err
	}
	return !f.unresolved[url], nil
}

type fakeExams struct {
	verdict  quiz.Verdict
	embedded []bool
}

func (f *fakeExams) RunExam(_ context.Context, _ browser.Document, embedded bool) (quiz.Verdict, error) {
	f.embedded = append(f.embedded, embedded)
	return f.verdict, nil
}

func writeTaskList(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tasks.txt")
	var content string
	for _, l := range lines {
		content += l + "\n"
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func newRunner(t *testing.T, trav *fakeTraverser, exams *fakeExams, input string) (*Runner, *checkpoint.MemoryStore) {
	t.Helper()
	store := checkpoint.NewMemoryStore()
	r := New(store, trav, exams, testLogger(), Config{
		InputPath: input,
		LinkDwell: time.Millisecond,
	})
	return r, store
}

func TestRunFromInputList(t *testing.T) {
	input := writeTaskList(t, courseURL, "", "  ", subjectURL, courseURL)
	trav := &fakeTraverser{}
	r, _ := newRunner(t, trav, &fakeExams{}, input)

	out, err := r.Run(context.Background(), browsertest.New())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.Processed != 2 || out.Failed != 0 || out.HadFailures {
		t.Errorf("outcome = %+v", out)
	}
	if len(trav.visited) != 2 {
		t.Errorf("visited = %v, want course and subject once each", trav.visited)
	}
}

func TestRunResumesFromCheckpoint(t *testing.T) {
	input := writeTaskList(t, subjectURL)
	trav := &fakeTraverser{}
	r, store := newRunner(t, trav, &fakeExams{}, input)
	if err := store.Enqueue(checkpoint.QueueRemaining, courseURL); err != nil {
		t.Fatal(err)
	}

	out, err := r.Run(context.Background(), browsertest.New())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.Processed != 1 {
		t.Errorf("outcome = %+v, want exactly the checkpointed task", out)
	}
	if len(trav.visited) != 1 || trav.visited[0] != courseURL {
		t.Errorf("visited = %v, want only the checkpointed course", trav.visited)
	}
	if n, _ := store.Len(checkpoint.QueueRemaining); n != 0 {
		t.Error("clean resume must clear the remaining queue")
	}
}

// TestRunAbortKeepsCheckpoint cancels a resumed pass mid-flight; every
// drained URL must still be on disk afterwards.
func TestRunAbortKeepsCheckpoint(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	trav := &fakeTraverser{}
	r, store := newRunner(t, trav, &fakeExams{}, "")
	for _, u := range []string{courseURL, subjectURL} {
		if err := store.Enqueue(checkpoint.QueueRemaining, u); err != nil {
			t.Fatal(err)
		}
	}
	trav.onVisit = func(string) { cancel() }

	_, err := r.Run(ctx, browsertest.New())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run = %v, want context.Canceled", err)
	}
	urls, _ := store.Drain(checkpoint.QueueRemaining)
	if len(urls) != 2 {
		t.Fatalf("remaining queue after abort = %v, want both tasks kept", urls)
	}
}

func TestRunDirtyResumeKeepsCheckpoint(t *testing.T) {
	trav := &fakeTraverser{fail: map[string]error{
		courseURL: fmt.Errorf("player stalled"),
	}}
	r, store := newRunner(t, trav, &fakeExams{}, "")
	if err := store.Enqueue(checkpoint.QueueRemaining, courseURL); err != nil {
		t.Fatal(err)
	}

	out, err := r.Run(context.Background(), browsertest.New())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !out.HadFailures {
		t.Errorf("outcome = %+v, want a dirty pass", out)
	}
	urls, _ := store.Drain(checkpoint.QueueRemaining)
	if len(urls) != 1 || urls[0] != courseURL {
		t.Errorf("remaining queue = %v, want the failed task kept", urls)
	}
}

func TestRunRoutesFailures(t *testing.T) {
	input := writeTaskList(t, courseURL, subjectURL)
	trav := &fakeTraverser{fail: map[string]error{
		courseURL: fmt.Errorf("player stalled"),
	}}
	r, store := newRunner(t, trav, &fakeExams{}, input)

	out, err := r.Run(context.Background(), browsertest.New())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.Processed != 2 || out.Failed != 1 || !out.HadFailures {
		t.Errorf("outcome = %+v", out)
	}
	urls, _ := store.Drain(checkpoint.QueueRemaining)
	if len(urls) != 1 || urls[0] != courseURL {
		t.Errorf("remaining queue = %v, want the failed course", urls)
	}
}

func TestRunAccessErrorsAreTerminalNotFailures(t *testing.T) {
	input := writeTaskList(t, courseURL)
	trav := &fakeTraverser{fail: map[string]error{
		courseURL: fmt.Errorf("open course: %w", model.ErrPermissionDenied),
	}}
	r, store := newRunner(t, trav, &fakeExams{}, input)

	out, err := r.Run(context.Background(), browsertest.New())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.Failed != 0 || out.HadFailures {
		t.Errorf("outcome = %+v, access errors must not count as failures", out)
	}
	urls, _ := store.Drain(checkpoint.QueueNoPermission)
	if len(urls) != 1 || urls[0] != courseURL {
		t.Errorf("no-permission queue = %v", urls)
	}
	if n, _ := store.Len(checkpoint.QueueRemaining); n != 0 {
		t.Error("terminal failure must not be retried")
	}
}

func TestRunMalformedURL(t *testing.T) {
	input := writeTaskList(t, "https://kc.zhixueyun.com/#/study/course/detail/not-a-uuid")
	trav := &fakeTraverser{}
	r, store := newRunner(t, trav, &fakeExams{}, input)

	out, err := r.Run(context.Background(), browsertest.New())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.Failed != 1 {
		t.Errorf("outcome = %+v", out)
	}
	if n, _ := store.Len(checkpoint.QueueUnclassified); n != 1 {
		t.Error("malformed URL should land in the unclassified queue")
	}
	if len(trav.visited) != 0 {
		t.Errorf("malformed URL must not be visited, got %v", trav.visited)
	}
}

func TestRunStandaloneExam(t *testing.T) {
	input := writeTaskList(t, examURL)
	exams := &fakeExams{verdict: quiz.VerdictManual}
	r, store := newRunner(t, &fakeTraverser{}, exams, input)
	doc := browsertest.New()

	out, err := r.Run(context.Background(), doc)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.Failed != 0 {
		t.Errorf("outcome = %+v", out)
	}
	if len(exams.embedded) != 1 || exams.embedded[0] {
		t.Errorf("exam calls = %v, want one standalone call", exams.embedded)
	}
	urls, _ := store.Drain(checkpoint.QueueManualExam)
	if len(urls) != 1 || urls[0] != examURL {
		t.Errorf("manual exam queue = %v", urls)
	}
	if doc.Navigated[0] != examURL {
		t.Errorf("navigated = %v", doc.Navigated)
	}
}

// TestRunRequeuedItemsAreNotReQueued: when the engine has already queued
// the failing pieces, the parent URL stays off the queue but the pass is
// still dirty.
func TestRunRequeuedItemsAreNotReQueued(t *testing.T) {
	input := writeTaskList(t, subjectURL)
	trav := &fakeTraverser{fail: map[string]error{
		subjectURL: fmt.Errorf("%w: 1 of 3 subject items", model.ErrRequeued),
	}}
	r, store := newRunner(t, trav, &fakeExams{}, input)

	out, err := r.Run(context.Background(), browsertest.New())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.Failed != 1 || !out.HadFailures {
		t.Errorf("outcome = %+v", out)
	}
	if n, _ := store.Len(checkpoint.QueueRemaining); n != 0 {
		t.Error("the subject url must not be re-queued on top of its items")
	}
}

func TestRunDeferredExamIsRetriedNotHandedOver(t *testing.T) {
	input := writeTaskList(t, examURL)
	exams := &fakeExams{verdict: quiz.VerdictDeferred}
	r, store := newRunner(t, &fakeTraverser{}, exams, input)

	out, err := r.Run(context.Background(), browsertest.New())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.Failed != 1 || !out.HadFailures {
		t.Errorf("outcome = %+v", out)
	}
	if n, _ := store.Len(checkpoint.QueueManualExam); n != 0 {
		t.Error("an in-progress exam is not a human handoff")
	}
	urls, _ := store.Drain(checkpoint.QueueRemaining)
	if len(urls) != 1 || urls[0] != examURL {
		t.Errorf("remaining queue = %v, want the exam retried next pass", urls)
	}
}

func TestRunExamQueuesAnswersPaperLinks(t *testing.T) {
	exams := &fakeExams{verdict: quiz.VerdictResolved}
	r, store := newRunner(t, &fakeTraverser{}, exams, "")
	if err := store.Enqueue(checkpoint.QueueSubjectExam, examURL); err != nil {
		t.Fatal(err)
	}
	doc := browsertest.New()

	out, err := r.RunExamQueues(context.Background(), doc)
	if err != nil {
		t.Fatalf("RunExamQueues: %v", err)
	}
	if out.Processed != 1 || out.Failed != 0 {
		t.Errorf("outcome = %+v", out)
	}
	if len(exams.embedded) != 1 || exams.embedded[0] {
		t.Errorf("exam calls = %v, want one standalone call", exams.embedded)
	}
	if len(doc.Navigated) == 0 || doc.Navigated[0] != examURL {
		t.Errorf("navigated = %v", doc.Navigated)
	}
	if n, _ := store.Len(checkpoint.QueueSubjectExam); n != 0 {
		t.Error("a resolved exam must leave its queue")
	}
}

func TestRunExamQueuesKeepsUnresolvedEntries(t *testing.T) {
	exams := &fakeExams{verdict: quiz.VerdictManual}
	r, store := newRunner(t, &fakeTraverser{}, exams, "")
	if err := store.Enqueue(checkpoint.QueueManualExam, examURL); err != nil {
		t.Fatal(err)
	}

	out, err := r.RunExamQueues(context.Background(), browsertest.New())
	if err != nil {
		t.Fatalf("RunExamQueues: %v", err)
	}
	if out.Failed != 0 || out.HadFailures {
		t.Errorf("outcome = %+v, a manual verdict is not a failure", out)
	}
	urls, _ := store.Drain(checkpoint.QueueManualExam)
	if len(urls) != 1 || urls[0] != examURL {
		t.Errorf("manual exam queue = %v, want the entry kept", urls)
	}
}

func TestRunExamQueuesDrivesCourseExams(t *testing.T) {
	trav := &fakeTraverser{}
	r, store := newRunner(t, trav, &fakeExams{}, "")
	if err := store.Enqueue(checkpoint.QueueCourseExam, courseURL); err != nil {
		t.Fatal(err)
	}

	out, err := r.RunExamQueues(context.Background(), browsertest.New())
	if err != nil {
		t.Fatalf("RunExamQueues: %v", err)
	}
	if out.Processed != 1 || out.Failed != 0 {
		t.Errorf("outcome = %+v", out)
	}
	if len(trav.visited) != 1 || trav.visited[0] != courseURL {
		t.Errorf("visited = %v, want the queued course", trav.visited)
	}
	if n, _ := store.Len(checkpoint.QueueCourseExam); n != 0 {
		t.Error("a resolved course must leave the queue")
	}
}

func TestRunExamQueuesKeepsUnresolvedCourse(t *testing.T) {
	trav := &fakeTraverser{unresolved: map[string]bool{courseURL: true}}
	r, store := newRunner(t, trav, &fakeExams{}, "")
	if err := store.Enqueue(checkpoint.QueueCourseExam, courseURL); err != nil {
		t.Fatal(err)
	}

	out, err := r.RunExamQueues(context.Background(), browsertest.New())
	if err != nil {
		t.Fatalf("RunExamQueues: %v", err)
	}
	if out.Failed != 0 {
		t.Errorf("outcome = %+v", out)
	}
	urls, _ := store.Drain(checkpoint.QueueCourseExam)
	if len(urls) != 1 || urls[0] != courseURL {
		t.Errorf("course exam queue = %v, want the entry kept", urls)
	}
}

func TestRunRechecksExternalLinks(t *testing.T) {
	input := writeTaskList(t, courseURL)
	r, store := newRunner(t, &fakeTraverser{}, &fakeExams{}, input)
	if err := store.Enqueue(checkpoint.QueueExternalURL, "https://example.com/reading"); err != nil {
		t.Fatal(err)
	}
	doc := browsertest.New()

	if _, err := r.Run(context.Background(), doc); err != nil {
		t.Fatalf("Run: %v", err)
	}
	visited := false
	for _, u := range doc.Navigated {
		if u == "https://example.com/reading" {
			visited = true
		}
	}
	if !visited {
		t.Error("external link was not re-checked")
	}
	if n, _ := store.Len(checkpoint.QueueExternalURL); n != 1 {
		t.Error("external link record must survive the re-check")
	}
}

func TestRunNothingToDo(t *testing.T) {
	r, _ := newRunner(t, &fakeTraverser{}, &fakeExams{}, filepath.Join(t.TempDir(), "empty.txt"))
	if err := os.WriteFile(r.cfg.InputPath, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	out, err := r.Run(context.Background(), browsertest.New())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.Processed != 0 {
		t.Errorf("outcome = %+v", out)
	}
}
