// Package browser defines the rendered-document capability set the engines
// run against, and implements it on chromedp. The engines never depend on
// a specific automation backend beyond these two interfaces.
package browser

import (
	"context"
	"errors"
	"regexp"
	"time"
)

// ErrNoElement is returned when an element operation finds no match for
// its selector.
var ErrNoElement = errors.New("no element matches selector")

// ErrWaitTimeout is returned when a bounded wait expires before its
// condition holds.
var ErrWaitTimeout = errors.New("wait timed out")

// Document is one rendered page (a tab). Blocking operations honor the
// passed context.
type Document interface {
	Navigate(ctx context.Context, url string) error
	// WaitLoad blocks until the document reports a complete load.
	WaitLoad(ctx context.Context) error
	// WaitIdle blocks until the page has settled after load; used before
	// reading exam markup that renders late.
	WaitIdle(ctx context.Context, timeout time.Duration) error
	// WaitURL blocks until the document's URL matches pattern. A zero
	// timeout waits until ctx is done (externally paced navigations such
	// as the login redirect).
	WaitURL(ctx context.Context, pattern *regexp.Regexp, timeout time.Duration) error
	URL(ctx context.Context) (string, error)
	// Content returns the full rendered HTML of the document.
	Content(ctx context.Context) (string, error)
	Reload(ctx context.Context) error
	// Query builds an element handle for a CSS selector. No lookup happens
	// until an operation runs.
	Query(selector string) Element
	// QueryText builds a handle for the selector's matches whose visible
	// text contains text. Needed for the portal's caption-only buttons.
	QueryText(selector, text string) Element
	// ExpectPopup runs trigger and returns the document it opened. The
	// caller owns the returned document and must Close it.
	ExpectPopup(ctx context.Context, trigger func(ctx context.Context) error) (Document, error)
	// WaitClosed blocks until the document is closed from the outside
	// (e.g. a human finishing work in the tab).
	WaitClosed(ctx context.Context) error
	Close() error
}

// Element addresses the matches of one selector. Operations act on the
// first match unless narrowed with Nth or Last.
type Element interface {
	Count(ctx context.Context) (int, error)
	// WaitVisible blocks until the element exists and is rendered. Missing
	// optional elements should be probed with short timeouts so hot loops
	// fail fast.
	WaitVisible(ctx context.Context, timeout time.Duration) error
	Click(ctx context.Context) error
	Fill(ctx context.Context, value string) error
	Text(ctx context.Context) (string, error)
	// Texts returns the text of every match.
	Texts(ctx context.Context) ([]string, error)
	// HTML returns the outer HTML of the match, for markup probes.
	HTML(ctx context.Context) (string, error)
	// Attr returns the attribute value, or "" when absent.
	Attr(ctx context.Context, name string) (string, error)
	Nth(i int) Element
	Last() Element
}

// Cookie is one entry of the persisted cookie jar, in the shape the login
// flow writes it.
type Cookie struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain"`
	Path     string  `json:"path"`
	Expires  float64 `json:"expires"`
	HTTPOnly bool    `json:"httpOnly"`
	Secure   bool    `json:"secure"`
	SameSite string  `json:"sameSite"`
}
