// Package checkpoint persists the work queues that make runs resumable.
// Queues are append-only during a run; they are cleared only at well-known
// run boundaries. The union of all queues plus completed items always
// equals the original input set.
package checkpoint

import "fmt"

// Queue identifies one durable work queue.
type Queue int

const (
	// QueueRemaining holds items that failed mid-run and must be retried by
	// the next pass. Consumed on startup when present.
	QueueRemaining Queue = iota
	// QueueManualExam holds exams handed off to a human.
	QueueManualExam
	// QueueNoPermission holds resources the account cannot view. Never
	// retried automatically.
	QueueNoPermission
	// QueueUnclassified holds items whose kind the classifier could not
	// place.
	QueueUnclassified
	// QueueExternalURL holds external-link items recorded for the
	// completion re-check phase.
	QueueExternalURL
	// QueueSubjectExam holds subject-level exams found incomplete.
	QueueSubjectExam
	// QueueCourseExam holds course-embedded exams deferred to the exam
	// driver.
	QueueCourseExam
	// QueueSurvey holds survey items, which are never auto-handled.
	QueueSurvey
	// QueueH5 holds interactive h5 chapters, which need a human.
	QueueH5

	queueCount
)

var queueNames = map[Queue]string{
	QueueRemaining:    "remaining",
	QueueManualExam:   "manual-exam",
	QueueNoPermission: "no-permission",
	QueueUnclassified: "unclassified",
	QueueExternalURL:  "external-url",
	QueueSubjectExam:  "subject-exam",
	QueueCourseExam:   "course-exam",
	QueueSurvey:       "survey",
	QueueH5:           "h5",
}

func (q Queue) String() string {
	if name, ok := queueNames[q]; ok {
		return name
	}
	return fmt.Sprintf("queue(%d)", int(q))
}

// Queues returns every known queue, in declaration order.
func Queues() []Queue {
	all := make([]Queue, 0, int(queueCount))
	for q := Queue(0); q < queueCount; q++ {
		all = append(all, q)
	}
	return all
}

// Store is a durable set of named URL queues.
type Store interface {
	// Enqueue appends a URL to a queue.
	Enqueue(q Queue, url string) error
	// Drain returns the queue's URLs in insertion order, duplicates
	// removed, without clearing it.
	Drain(q Queue) ([]string, error)
	// Clear removes the queue and its backing storage.
	Clear(q Queue) error
	// Len reports how many distinct URLs a queue holds.
	Len(q Queue) (int, error)
}

// dedupe keeps first occurrences, preserving order.
func dedupe(urls []string) []string {
	seen := make(map[string]struct{}, len(urls))
	out := urls[:0]
	for _, u := range urls {
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	return out
}
