// Package collect harvests portal resource links out of arbitrary pages
// (announcements, training plans, CMS topics) into a task list the runner
// can consume.
package collect

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/jaykwok/course-afk/internal/browser"
	"github.com/jaykwok/course-afk/internal/model"
)

// Harvest extracts every schedulable portal link from page HTML, in
// document order, deduplicated. Anchors that do not parse as a portal
// resource are ignored.
func Harvest(html string) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse page markup: %w", err)
	}

	seen := make(map[string]bool)
	var urls []string
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href := strings.TrimSpace(a.AttrOr("href", ""))
		if href == "" || seen[href] {
			return
		}
		if _, err := model.ParseResourceURL(href); err != nil {
			return
		}
		seen[href] = true
		urls = append(urls, href)
	})
	return urls, nil
}

// FromPage opens a page in the document and harvests it.
func FromPage(ctx context.Context, doc browser.Document, url string) ([]string, error) {
	if err := doc.Navigate(ctx, url); err != nil {
		return nil, err
	}
	if err := doc.WaitLoad(ctx); err != nil {
		return nil, err
	}
	if err := doc.WaitIdle(ctx, 30*time.Second); err != nil {
		return nil, err
	}
	html, err := doc.Content(ctx)
	if err != nil {
		return nil, err
	}
	return Harvest(html)
}

// WriteList saves harvested links as a task list, one per line.
func WriteList(path string, urls []string) error {
	var sb strings.Builder
	for _, u := range urls {
		sb.WriteString(u)
		sb.WriteByte('\n')
	}
	if err := os.WriteFile(path, []byte(sb.String()), 0o644); err != nil {
		return fmt.Errorf("write task list: %w", err)
	}
	return nil
}
