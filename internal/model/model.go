package model

// ItemKind is the declared kind of a row in a subject's item list, taken
// from the visible section-type label.
type ItemKind string

const (
	ItemCourse ItemKind = "course"
	ItemURL    ItemKind = "url"
	ItemExam   ItemKind = "exam"
	ItemSurvey ItemKind = "survey"
	ItemOther  ItemKind = "other"
)

// ContentKind classifies a course chapter.
type ContentKind string

const (
	KindVideo    ContentKind = "video"
	KindDocument ContentKind = "document"
	KindH5       ContentKind = "h5"
	KindExam     ContentKind = "exam"
	KindUnknown  ContentKind = "unknown"
)

// LearningItem is one row of a subject page. It is a transient view into
// the rendered list; only its derived URL is ever persisted.
type LearningItem struct {
	ResourceID string
	Kind       ItemKind
	Label      string // raw section-type label as rendered
	StatusText string
}

// Chapter is one section inside a course. Enumerated fresh on every course
// page load; progress text mutates server-side between loads.
type Chapter struct {
	Index        int
	SectionType  string // raw data-sectiontype code
	ProgressText string
	Required     bool
}

// QuestionKind tags a question variant.
type QuestionKind string

const (
	QuestionSingle    QuestionKind = "single"
	QuestionMultiple  QuestionKind = "multiple"
	QuestionJudge     QuestionKind = "judge"
	QuestionFillBlank QuestionKind = "fill_blank"
	QuestionOrdering  QuestionKind = "ordering"
	QuestionReading   QuestionKind = "reading"
	QuestionOther     QuestionKind = "unknown"
)

// Option is one answer option with its rendered label letter.
type Option struct {
	Label string
	Text  string
}

// Question is one extracted question. Built fresh per extraction and never
// mutated afterwards; a retried question is re-extracted, not patched.
// ItemID is the positional anchor for multi-question pages and the fill
// target for ordering questions; it is empty in single-question mode.
type Question struct {
	Index   int
	Kind    QuestionKind
	Text    string
	Options []Option
	ItemID  string
}

// Automatable reports whether the quiz engine may attempt this question at
// all. Fill-in-the-blank always goes to a human.
func (q Question) Automatable() bool {
	return q.Kind != QuestionFillBlank
}

// ExamStatus is the state read from the newest row of an exam results
// table. Pending ("待评卷") terminates the attempt loop exactly like
// Passed; that permissive reading is a policy choice, not an inference.
type ExamStatus string

const (
	ExamPassed     ExamStatus = "passed"
	ExamPending    ExamStatus = "pending"
	ExamInProgress ExamStatus = "in_progress"
	ExamFailed     ExamStatus = "failed"
	ExamNoAttempt  ExamStatus = "no_attempt"
)

// Resolved reports whether the exam needs no further attempts.
func (s ExamStatus) Resolved() bool {
	return s == ExamPassed || s == ExamPending
}

// Escalation is the ladder of increasingly expensive answering strategies.
// It only ever moves forward within one exam session.
type Escalation int

const (
	EscalationNone Escalation = iota
	EscalationBasic
	EscalationReasoning
	EscalationHuman
)

func (e Escalation) String() string {
	switch e {
	case EscalationNone:
		return "none"
	case EscalationBasic:
		return "basic"
	case EscalationReasoning:
		return "reasoning"
	case EscalationHuman:
		return "human"
	}
	return "invalid"
}

// RunOutcome is the result of one driver pass. The outer loop inspects it
// instead of any shared mutable state.
type RunOutcome struct {
	Processed   int
	Failed      int
	HadFailures bool
}
