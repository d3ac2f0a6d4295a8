// Package browsertest provides a scripted in-memory Document for engine
// tests. Selectors resolve against a plain map, clicks and fills are
// recorded, and hooks let a test mutate the page in response to actions.
package browsertest

import (
	"context"
	"fmt"
	"regexp"
	"sync"
	"time"

	"github.com/jaykwok/course-afk/internal/browser"
)

// Node is one scripted match of a selector.
type Node struct {
	Text  string
	HTML  string
	Attrs map[string]string
	// TextSeq, when non-empty, yields successive values on repeated Text
	// calls before falling back to Text. Used to script progress text that
	// changes while the engine polls.
	TextSeq []string
	Hidden  bool
}

// Doc is a scripted Document.
type Doc struct {
	mu sync.Mutex

	URLStr      string
	ContentHTML string
	Nodes       map[string][]*Node

	// Redirects rewrites a navigated URL to the address the page lands on,
	// simulating server-side redirects.
	Redirects map[string]string

	// Popups are returned by ExpectPopup in order.
	Popups []*Doc

	// OnClick, when set, runs after every recorded click.
	OnClick func(selector string, idx int)

	Clicks    []string
	Fills     map[string]string
	Navigated []string
	Reloads   int
	Closed    bool

	closedCh chan struct{}
	once     sync.Once
}

// New builds an empty scripted document.
func New() *Doc {
	return &Doc{
		Nodes:    map[string][]*Node{},
		Fills:    map[string]string{},
		closedCh: make(chan struct{}),
	}
}

// Set scripts the matches of a selector.
func (d *Doc) Set(selector string, nodes ...*Node) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Nodes[selector] = nodes
}

// Remove drops a selector's matches, as if the elements left the DOM.
func (d *Doc) Remove(selector string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.Nodes, selector)
}

// MarkClosed simulates the tab being closed from the outside.
func (d *Doc) MarkClosed() {
	d.once.Do(func() { close(d.closedCh) })
	d.mu.Lock()
	d.Closed = true
	d.mu.Unlock()
}

func (d *Doc) Navigate(_ context.Context, url string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Navigated = append(d.Navigated, url)
	if target, ok := d.Redirects[url]; ok {
		d.URLStr = target
	} else {
		d.URLStr = url
	}
	return nil
}

func (d *Doc) WaitLoad(context.Context) error { return nil }

func (d *Doc) WaitIdle(context.Context, time.Duration) error { return nil }

func (d *Doc) WaitURL(ctx context.Context, pattern *regexp.Regexp, timeout time.Duration) error {
	d.mu.Lock()
	url := d.URLStr
	d.mu.Unlock()
	if pattern.MatchString(url) {
		return nil
	}
	return browser.ErrWaitTimeout
}

func (d *Doc) URL(context.Context) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.URLStr, nil
}

func (d *Doc) Content(context.Context) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.ContentHTML, nil
}

func (d *Doc) Reload(context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Reloads++
	return nil
}

func (d *Doc) Query(selector string) browser.Element {
	return &elem{doc: d, sel: selector, idx: 0}
}

// TextKey is the Nodes key a QueryText lookup resolves against. Tests
// script text-anchored elements under this key.
func TextKey(selector, text string) string {
	return selector + "::" + text
}

func (d *Doc) QueryText(selector, text string) browser.Element {
	return &elem{doc: d, sel: TextKey(selector, text), idx: 0}
}

func (d *Doc) ExpectPopup(ctx context.Context, trigger func(ctx context.Context) error) (browser.Document, error) {
	if err := trigger(ctx); err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.Popups) == 0 {
		return nil, fmt.Errorf("no scripted popup")
	}
	popup := d.Popups[0]
	d.Popups = d.Popups[1:]
	return popup, nil
}

func (d *Doc) WaitClosed(ctx context.Context) error {
	select {
	case <-d.closedCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Doc) Close() error {
	d.MarkClosed()
	return nil
}

type elem struct {
	doc *Doc
	sel string
	idx int
}

func (e *elem) Nth(i int) browser.Element { return &elem{doc: e.doc, sel: e.sel, idx: i} }
func (e *elem) Last() browser.Element     { return &elem{doc: e.doc, sel: e.sel, idx: -1} }

func (e *elem) resolve() *Node {
	nodes := e.doc.Nodes[e.sel]
	if len(nodes) == 0 {
		return nil
	}
	i := e.idx
	if i < 0 {
		i = len(nodes) + i
	}
	if i < 0 || i >= len(nodes) {
		return nil
	}
	return nodes[i]
}

func (e *elem) Count(context.Context) (int, error) {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	return len(e.doc.Nodes[e.sel]), nil
}

func (e *elem) WaitVisible(_ context.Context, timeout time.Duration) error {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	if n := e.resolve(); n != nil && !n.Hidden {
		return nil
	}
	return fmt.Errorf("%w: %q", browser.ErrNoElement, e.sel)
}

func (e *elem) Click(context.Context) error {
	e.doc.mu.Lock()
	n := e.resolve()
	if n == nil {
		e.doc.mu.Unlock()
		return fmt.Errorf("%w: %q", browser.ErrNoElement, e.sel)
	}
	e.doc.Clicks = append(e.doc.Clicks, fmt.Sprintf("%s[%d]", e.sel, e.idx))
	hook := e.doc.OnClick
	e.doc.mu.Unlock()
	if hook != nil {
		hook(e.sel, e.idx)
	}
	return nil
}

func (e *elem) Fill(_ context.Context, value string) error {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	if e.resolve() == nil {
		return fmt.Errorf("%w: %q", browser.ErrNoElement, e.sel)
	}
	e.doc.Fills[fmt.Sprintf("%s[%d]", e.sel, e.idx)] = value
	return nil
}

func (e *elem) Text(context.Context) (string, error) {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	n := e.resolve()
	if n == nil {
		return "", nil
	}
	if len(n.TextSeq) > 0 {
		text := n.TextSeq[0]
		n.TextSeq = n.TextSeq[1:]
		return text, nil
	}
	return n.Text, nil
}

func (e *elem) Texts(context.Context) ([]string, error) {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	nodes := e.doc.Nodes[e.sel]
	texts := make([]string, len(nodes))
	for i, n := range nodes {
		texts[i] = n.Text
	}
	return texts, nil
}

func (e *elem) HTML(context.Context) (string, error) {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	if n := e.resolve(); n != nil {
		return n.HTML, nil
	}
	return "", nil
}

func (e *elem) Attr(_ context.Context, name string) (string, error) {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	if n := e.resolve(); n != nil && n.Attrs != nil {
		return n.Attrs[name], nil
	}
	return "", nil
}
