// Package progress interprets the portal's rendered progress and status
// text. Progress text is the only completion signal the portal exposes, so
// every check here is poll-friendly and side-effect free.
package progress

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/jaykwok/course-afk/internal/model"
)

// Markers meaning a chapter still needs (re-)study. Their absence means
// the chapter is learned. Re-evaluate after every state-changing action:
// the server updates this text asynchronously with unbounded latency.
var needsStudyRe = regexp.MustCompile(`需学|需再学`)

// IsLearned reports whether a chapter's progress text says it is done.
func IsLearned(text string) bool {
	return !needsStudyRe.MatchString(text)
}

// IsCourseComplete reports whether a course-level progress line shows a
// finished course.
func IsCourseComplete(progressText string) bool {
	return strings.Contains(progressText, "100%")
}

var (
	durationRe     = regexp.MustCompile(`(\d{1,2}:)?\d{1,2}:\d{1,2}`)
	remainingPctRe = regexp.MustCompile(`还需学\s*(\d+)%`)
	percentRe      = regexp.MustCompile(`(\d+)%`)
)

// TimeToSeconds parses a colon-delimited duration token ([H:]MM:SS or
// M:SS) into seconds, rounded up to the nearest 10. Returns 0 when no
// token is present.
func TimeToSeconds(duration string) int {
	match := durationRe.FindString(duration)
	if match == "" {
		return 0
	}
	total := 0
	for _, unit := range strings.Split(match, ":") {
		n, _ := strconv.Atoi(unit)
		total = total*60 + n
	}
	return ceilTo(total, 10)
}

// RemainingDwell computes how long to keep a video chapter open, from its
// progress text. The text may carry a (total, remaining) duration pair, or
// a single total duration plus a percentage. With no percentage at all the
// dwell defaults to 80% of total: the platform's own pass threshold, so
// undershooting is intentional. The result is rounded up to a full minute
// and never exceeds the total duration.
func RemainingDwell(text string) (remaining, total int, err error) {
	tokens := durationRe.FindAllString(text, -1)
	if len(tokens) == 0 {
		return 0, 0, fmt.Errorf("%w: no duration token in progress text %q", model.ErrExtraction, text)
	}

	total = TimeToSeconds(tokens[0])
	var raw int
	switch {
	case len(tokens) >= 2:
		raw = TimeToSeconds(tokens[1])
	case remainingPctRe.MatchString(text):
		pct, _ := strconv.Atoi(remainingPctRe.FindStringSubmatch(text)[1])
		raw = total * pct / 100
	case percentRe.MatchString(text):
		// Percentage already watched; dwell only up to the 80% threshold.
		pct, _ := strconv.Atoi(percentRe.FindStringSubmatch(text)[1])
		raw = total * (80 - pct) / 100
	default:
		raw = total * 80 / 100
	}

	if raw < 0 {
		raw = 0
	}
	remaining = ceilTo(raw, 60)
	if remaining > total {
		remaining = total
	}
	return remaining, total, nil
}

func ceilTo(n, step int) int {
	return (n + step - 1) / step * step
}

// Exam status sentinels as rendered in the results table and status badge.
const (
	statusPass      = "及格"
	statusPending   = "待评卷"
	statusInExam    = "考试中"
	finishedBadge   = "已完成"
	attemptsLeading = "剩余"
)

// StatusFromCell maps the newest result row's status cell onto the exam
// tri-state. Pending grading counts as resolved by policy (see package
// model).
func StatusFromCell(cell string) model.ExamStatus {
	switch strings.TrimSpace(cell) {
	case statusPass:
		return model.ExamPassed
	case statusPending:
		return model.ExamPending
	default:
		return model.ExamFailed
	}
}

// InExam reports whether the status badge says an attempt is currently in
// progress, which must not trigger a retry.
func InExam(badge string) bool {
	return strings.Contains(badge, statusInExam)
}

// IsFinishedBadge reports whether a subject item's completion badge reads
// finished.
func IsFinishedBadge(badge string) bool {
	return strings.Contains(badge, finishedBadge)
}

var attemptsRe = regexp.MustCompile(`剩余[^0-9]*(\d+)`)

// RemainingAttempts parses a "remaining attempts" sentinel from the exam
// button text. ok is false when the button carries no quota at all. A
// quota that is present but unparseable comes back as (0, true): treat it
// as exhausted rather than risking a scarce attempt.
func RemainingAttempts(buttonText string) (n int, ok bool) {
	if !strings.Contains(buttonText, attemptsLeading) {
		return 0, false
	}
	m := attemptsRe.FindStringSubmatch(buttonText)
	if m == nil {
		return 0, true
	}
	n, _ = strconv.Atoi(m[1])
	return n, true
}
