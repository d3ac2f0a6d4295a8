// Package session restores an authenticated portal session from a
// persisted cookie jar. There is no interactive login path; an expired jar
// is an operator problem, not something to retry.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"time"

	"github.com/jaykwok/course-afk/internal/browser"
	"github.com/jaykwok/course-afk/internal/model"
)

var homeURL = regexp.MustCompile(model.HomeURLPattern)

// LoadCookies reads the cookie jar written by a prior interactive login.
func LoadCookies(path string) ([]browser.Cookie, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read cookie jar: %w", err)
	}
	var cookies []browser.Cookie
	if err := json.Unmarshal(data, &cookies); err != nil {
		return nil, fmt.Errorf("parse cookie jar %s: %w", path, err)
	}
	if len(cookies) == 0 {
		return nil, fmt.Errorf("cookie jar %s is empty", path)
	}
	return cookies, nil
}

// Bootstrap navigates to the portal root and waits for the redirect onto
// the landing page, which only happens when the injected cookies are
// accepted. The timeout is generous: the portal redirects through several
// intermediate pages on a slow backend.
func Bootstrap(ctx context.Context, log *slog.Logger, doc browser.Document, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	if err := doc.Navigate(ctx, model.PortalRoot); err != nil {
		return err
	}
	log.Info("waiting for authenticated landing page", "timeout", timeout)
	if err := doc.WaitURL(ctx, homeURL, timeout); err != nil {
		url, _ := doc.URL(ctx)
		return fmt.Errorf("%w: stuck at %s: %v", model.ErrSessionRejected, url, err)
	}
	return nil
}
