package model

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Portal link layout. All schedulable resources live under fixed prefixes
// with a hex-UUID suffix.
const (
	PortalRoot = "https://kc.zhixueyun.com/"

	courseURLPrefix  = "https://kc.zhixueyun.com/#/study/course/detail/"
	subjectURLPrefix = "https://kc.zhixueyun.com/#/study/subject/detail/"
	examURLPrefix    = "https://kc.zhixueyun.com/#/exam/exam/answer-paper/"

	// HomeURLPattern matches the post-login landing page. Reaching it is
	// the signal that the injected cookie jar was accepted.
	HomeURLPattern = `https://kc\.zhixueyun\.com/#/home-v\?id=\d+`
)

// ResourceKind is the addressable resource class encoded in a URL.
type ResourceKind string

const (
	ResourceCourse  ResourceKind = "course"
	ResourceSubject ResourceKind = "subject"
	ResourceExam    ResourceKind = "exam"
)

// ParseResourceURL validates a portal link and reports which resource
// class it addresses. A URL is well-formed iff it is one of the fixed
// prefixes followed by a canonical UUID.
func ParseResourceURL(raw string) (ResourceKind, error) {
	url := strings.TrimSpace(raw)

	var kind ResourceKind
	var id string
	switch {
	case strings.HasPrefix(url, courseURLPrefix):
		kind, id = ResourceCourse, strings.TrimPrefix(url, courseURLPrefix)
	case strings.HasPrefix(url, subjectURLPrefix):
		kind, id = ResourceSubject, strings.TrimPrefix(url, subjectURLPrefix)
	case strings.HasPrefix(url, examURLPrefix):
		kind, id = ResourceExam, strings.TrimPrefix(url, examURLPrefix)
	default:
		return "", fmt.Errorf("%w: %q", ErrMalformedURL, raw)
	}

	if _, err := uuid.Parse(id); err != nil {
		return "", fmt.Errorf("%w: bad resource id in %q: %v", ErrMalformedURL, raw, err)
	}
	return kind, nil
}

// CourseURL builds the canonical course link for a resource id.
func CourseURL(resourceID string) string {
	return courseURLPrefix + resourceID
}

// ExamURL builds the canonical standalone exam link for a resource id.
func ExamURL(resourceID string) string {
	return examURLPrefix + resourceID
}
