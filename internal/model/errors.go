package model

import "errors"

// Error taxonomy shared by the traversal and quiz engines. Everything here
// is caught at the per-item boundary and converted into a checkpoint write;
// only session-level failures abort a run.
var (
	// ErrPermissionDenied: the rendered page says the account may not view
	// the resource. Not retryable by re-running.
	ErrPermissionDenied = errors.New("no permission to view resource")

	// ErrResourceGone: the resource was removed or delisted. Treated like a
	// permission denial.
	ErrResourceGone = errors.New("resource no longer exists")

	// ErrSyncTimeout: progress text did not converge to "learned" within
	// the extra grace window after the nominal dwell.
	ErrSyncTimeout = errors.New("progress did not sync within grace window")

	// ErrSubmissionFailed: the two-stage submit/confirm sequence could not
	// be clicked through; the exam is left attempted but unsubmitted.
	ErrSubmissionFailed = errors.New("exam submission failed")

	// ErrExtraction: a required element or text could not be read.
	ErrExtraction = errors.New("extraction failed")

	// ErrSessionRejected: the injected cookie jar did not produce an
	// authenticated session. Fatal for the whole run.
	ErrSessionRejected = errors.New("session cookies rejected")

	// ErrMalformedURL: a link does not match the portal's resource layout.
	ErrMalformedURL = errors.New("malformed resource url")

	// ErrRequeued: the failing work was already re-queued at a finer
	// granularity. The parent URL must not go back on a queue, but the
	// pass is dirty and needs another round.
	ErrRequeued = errors.New("work re-queued for retry")
)
