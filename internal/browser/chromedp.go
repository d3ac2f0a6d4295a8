package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
)

// Options controls the launched Chrome instance.
type Options struct {
	Headless  bool
	MuteAudio bool
	// ExecPath overrides the Chrome binary lookup when set.
	ExecPath string
	Logger   *slog.Logger
}

// Session owns one Chrome process and the tabs opened in it.
type Session struct {
	allocCtx    context.Context
	browserCtx  context.Context
	allocCancel context.CancelFunc
	cancel      context.CancelFunc
	log         *slog.Logger
}

// NewSession launches Chrome. ctx bounds the lifetime of the whole
// browser; cancelling it tears every tab down.
func NewSession(ctx context.Context, opts Options) (*Session, error) {
	allocOpts := append([]chromedp.ExecAllocatorOption{},
		chromedp.DefaultExecAllocatorOptions[:]...)
	allocOpts = append(allocOpts,
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("mute-audio", opts.MuteAudio),
		chromedp.Flag("start-maximized", true),
	)
	if opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ExecPath))
	}

	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, allocOpts...)
	browserCtx, cancel := chromedp.NewContext(allocCtx)
	if err := chromedp.Run(browserCtx); err != nil {
		cancel()
		allocCancel()
		return nil, fmt.Errorf("launch browser: %w", err)
	}
	return &Session{
		allocCtx:    allocCtx,
		browserCtx:  browserCtx,
		allocCancel: allocCancel,
		cancel:      cancel,
		log:         log,
	}, nil
}

// SetCookies injects the persisted cookie jar into the browser before any
// navigation, restoring the authenticated session.
func (s *Session) SetCookies(ctx context.Context, cookies []Cookie) error {
	return chromedp.Run(s.browserCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		for _, c := range cookies {
			p := network.SetCookie(c.Name, c.Value).
				WithDomain(c.Domain).
				WithPath(c.Path).
				WithHTTPOnly(c.HTTPOnly).
				WithSecure(c.Secure)
			if c.Expires > 0 {
				exp := cdp.TimeSinceEpoch(time.Unix(int64(c.Expires), 0))
				p = p.WithExpires(&exp)
			}
			if err := p.Do(ctx); err != nil {
				return fmt.Errorf("set cookie %s: %w", c.Name, err)
			}
		}
		return nil
	}))
}

// NewDocument opens a fresh tab.
func (s *Session) NewDocument(ctx context.Context) (Document, error) {
	tabCtx, cancel := chromedp.NewContext(s.browserCtx)
	if err := chromedp.Run(tabCtx, chromedp.Navigate("about:blank")); err != nil {
		cancel()
		return nil, fmt.Errorf("open tab: %w", err)
	}
	return &document{ctx: tabCtx, cancel: cancel, log: s.log}, nil
}

// Close tears down every tab and the browser process.
func (s *Session) Close() {
	s.cancel()
	s.allocCancel()
}

type document struct {
	ctx    context.Context
	cancel context.CancelFunc
	log    *slog.Logger
}

func (d *document) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx := d.ctx
	if deadline, ok := ctx.Deadline(); ok {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithDeadline(d.ctx, deadline)
		defer cancel()
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return chromedp.Run(runCtx, actions...)
}

func (d *document) Navigate(ctx context.Context, url string) error {
	if err := d.run(ctx, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	return nil
}

func (d *document) WaitLoad(ctx context.Context) error {
	return d.poll(ctx, 0, func(ctx context.Context) (bool, error) {
		var state string
		if err := d.run(ctx, chromedp.Evaluate(`document.readyState`, &state)); err != nil {
			return false, err
		}
		return state == "complete", nil
	})
}

func (d *document) WaitIdle(ctx context.Context, timeout time.Duration) error {
	if err := d.poll(ctx, timeout, func(ctx context.Context) (bool, error) {
		var state string
		if err := d.run(ctx, chromedp.Evaluate(`document.readyState`, &state)); err != nil {
			return false, err
		}
		return state == "complete", nil
	}); err != nil {
		return err
	}
	// The SPA keeps rendering after load; give it a beat to settle.
	select {
	case <-time.After(time.Second):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *document) WaitURL(ctx context.Context, pattern *regexp.Regexp, timeout time.Duration) error {
	return d.poll(ctx, timeout, func(ctx context.Context) (bool, error) {
		url, err := d.URL(ctx)
		if err != nil {
			return false, err
		}
		return pattern.MatchString(url), nil
	})
}

func (d *document) URL(ctx context.Context) (string, error) {
	var url string
	if err := d.run(ctx, chromedp.Evaluate(`window.location.href`, &url)); err != nil {
		return "", fmt.Errorf("read location: %w", err)
	}
	return url, nil
}

func (d *document) Content(ctx context.Context) (string, error) {
	var html string
	err := d.run(ctx, chromedp.Evaluate(`document.documentElement.outerHTML`, &html))
	if err != nil {
		return "", fmt.Errorf("read page content: %w", err)
	}
	return html, nil
}

func (d *document) Reload(ctx context.Context) error {
	return d.run(ctx, chromedp.Reload())
}

func (d *document) Query(selector string) Element {
	return &element{doc: d, sel: selector, idx: 0}
}

func (d *document) QueryText(selector, text string) Element {
	return &element{doc: d, sel: selector, text: text, idx: 0}
}

func (d *document) ExpectPopup(ctx context.Context, trigger func(ctx context.Context) error) (Document, error) {
	ch := chromedp.WaitNewTarget(d.ctx, func(info *target.Info) bool {
		return info.Type == "page" && info.OpenerID != ""
	})
	if err := trigger(ctx); err != nil {
		return nil, err
	}
	select {
	case id := <-ch:
		popupCtx, cancel := chromedp.NewContext(d.ctx, chromedp.WithTargetID(id))
		if err := chromedp.Run(popupCtx); err != nil {
			cancel()
			return nil, fmt.Errorf("attach popup: %w", err)
		}
		return &document{ctx: popupCtx, cancel: cancel, log: d.log}, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("waiting for popup: %w", ctx.Err())
	}
}

func (d *document) WaitClosed(ctx context.Context) error {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-d.ctx.Done():
			return nil
		case <-ticker.C:
			var one int
			if err := chromedp.Run(d.ctx, chromedp.Evaluate(`1`, &one)); err != nil {
				// Target is gone; that is the condition we wait for.
				return nil
			}
		}
	}
}

func (d *document) Close() error {
	err := chromedp.Cancel(d.ctx)
	d.cancel()
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("close tab: %w", err)
	}
	return nil
}

// poll runs cond every 200ms until it holds, timeout expires, or ctx is
// done. A zero timeout polls until ctx alone gives up.
func (d *document) poll(ctx context.Context, timeout time.Duration, cond func(context.Context) (bool, error)) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()
	for {
		ok, err := cond(ctx)
		if err == nil && ok {
			return nil
		}
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return ErrWaitTimeout
			}
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// element addresses match idx of a selector; idx -1 means the last match.
// A non-empty text narrows the matches to those whose visible text
// contains it.
type element struct {
	doc  *document
	sel  string
	text string
	idx  int
}

func (e *element) Nth(i int) Element {
	return &element{doc: e.doc, sel: e.sel, text: e.text, idx: i}
}

func (e *element) Last() Element {
	return &element{doc: e.doc, sel: e.sel, text: e.text, idx: -1}
}

// eval wraps body in an IIFE with `els` bound to all matches and `el` to
// the addressed one (possibly undefined). body must return a JSON-encodable
// value of out's type.
func (e *element) eval(ctx context.Context, body string, out any) error {
	js := fmt.Sprintf(`(function(){
		let els = Array.from(document.querySelectorAll(%q));
		const needle = %q;
		if (needle) {
			els = els.filter(n => (n.innerText || "").includes(needle));
		}
		const i = %d;
		const el = els.length ? els[i >= 0 ? i : els.length + i] : undefined;
		%s
	})()`, e.sel, e.text, e.idx, body)
	return e.doc.run(ctx, chromedp.Evaluate(js, out))
}

func (e *element) Count(ctx context.Context) (int, error) {
	var n int
	if err := e.eval(ctx, `return els.length;`, &n); err != nil {
		return 0, fmt.Errorf("count %q: %w", e.sel, err)
	}
	return n, nil
}

func (e *element) WaitVisible(ctx context.Context, timeout time.Duration) error {
	err := e.doc.poll(ctx, timeout, func(ctx context.Context) (bool, error) {
		var visible bool
		err := e.eval(ctx, `return !!(el && (el.offsetParent !== null || el.getClientRects().length));`, &visible)
		return visible, err
	})
	if errors.Is(err, ErrWaitTimeout) {
		return fmt.Errorf("%w: %q", ErrNoElement, e.sel)
	}
	return err
}

func (e *element) Click(ctx context.Context) error {
	var ok bool
	body := `if (!el) return false;
		el.scrollIntoView({block: "center"});
		el.click();
		return true;`
	if err := e.eval(ctx, body, &ok); err != nil {
		return fmt.Errorf("click %q: %w", e.sel, err)
	}
	if !ok {
		return fmt.Errorf("%w: %q", ErrNoElement, e.sel)
	}
	return nil
}

func (e *element) Fill(ctx context.Context, value string) error {
	var ok bool
	body := fmt.Sprintf(`if (!el) return false;
		el.value = %q;
		el.dispatchEvent(new Event("input", {bubbles: true}));
		el.dispatchEvent(new Event("change", {bubbles: true}));
		return true;`, value)
	if err := e.eval(ctx, body, &ok); err != nil {
		return fmt.Errorf("fill %q: %w", e.sel, err)
	}
	if !ok {
		return fmt.Errorf("%w: %q", ErrNoElement, e.sel)
	}
	return nil
}

func (e *element) Text(ctx context.Context) (string, error) {
	var text string
	if err := e.eval(ctx, `return el ? (el.innerText || el.textContent || "") : "";`, &text); err != nil {
		return "", fmt.Errorf("text %q: %w", e.sel, err)
	}
	return text, nil
}

func (e *element) Texts(ctx context.Context) ([]string, error) {
	var texts []string
	body := `return Array.from(els, n => n.innerText || n.textContent || "");`
	if err := e.eval(ctx, body, &texts); err != nil {
		return nil, fmt.Errorf("texts %q: %w", e.sel, err)
	}
	return texts, nil
}

func (e *element) HTML(ctx context.Context) (string, error) {
	var html string
	if err := e.eval(ctx, `return el ? el.outerHTML : "";`, &html); err != nil {
		return "", fmt.Errorf("html %q: %w", e.sel, err)
	}
	return html, nil
}

func (e *element) Attr(ctx context.Context, name string) (string, error) {
	var value string
	body := fmt.Sprintf(`return el ? (el.getAttribute(%q) || "") : "";`, name)
	if err := e.eval(ctx, body, &value); err != nil {
		return "", fmt.Errorf("attr %q of %q: %w", name, e.sel, err)
	}
	return value, nil
}
