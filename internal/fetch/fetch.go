// Package fetch retrieves article pages and extracts their body text.
package fetch

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"readingrecs/internal/core"
	"readingrecs/internal/logger"
)

const (
	userAgent = "readingrecs/0.1 (personal RSS aggregator)"

	// Articles with fewer words than this get a full-text attempt.
	backfillWordThreshold = 100

	// Minimum extracted length for the largest-div fallback to count
	// as a successful extraction.
	divTextThreshold = 200
)

// Fetcher retrieves live pages for full-text extraction.
type Fetcher struct {
	client *http.Client
}

// NewFetcher creates a fetcher with the given per-request timeout.
func NewFetcher(client *http.Client) *Fetcher {
	return &Fetcher{client: client}
}

// Backfill attempts full-text extraction for every article whose
// available text is under the word threshold. On total failure the
// short excerpt is kept and the limited-data flag is set. Never fatal.
func (f *Fetcher) Backfill(articles []core.Article) []core.Article {
	for i := range articles {
		if len(strings.Fields(articles[i].Text)) >= backfillWordThreshold {
			continue
		}
		text, err := f.FullText(articles[i].URL)
		if err != nil {
			logger.Debug("Full-text fetch failed", "url", articles[i].URL, "error", err.Error())
			articles[i].LimitedData = true
			continue
		}
		articles[i].Text = text
	}
	return articles
}

// FullText fetches a page and extracts its body text, trying a
// semantic <article> container first, then the largest <div> by text
// length (accepted only above a minimum size), then the whole <body>.
// First success wins.
func (f *Fetcher) FullText(url string) (string, error) {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("page returned status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to parse HTML from %s: %w", url, err)
	}

	return ExtractText(doc)
}

// ExtractText applies the extraction priority order to a parsed page.
func ExtractText(doc *goquery.Document) (string, error) {
	if article := doc.Find("article").First(); article.Length() > 0 {
		if text := flatten(article); text != "" {
			return text, nil
		}
	}

	var largest *goquery.Selection
	largestLen := 0
	doc.Find("div").Each(func(_ int, div *goquery.Selection) {
		if l := len(div.Text()); l > largestLen {
			largest = div
			largestLen = l
		}
	})
	if largest != nil {
		if text := flatten(largest); len(text) > divTextThreshold {
			return text, nil
		}
	}

	if body := doc.Find("body").First(); body.Length() > 0 {
		if text := flatten(body); text != "" {
			return text, nil
		}
	}

	return "", fmt.Errorf("no text content found")
}

// flatten extracts a selection's text with whitespace collapsed.
func flatten(sel *goquery.Selection) string {
	return strings.Join(strings.Fields(sel.Text()), " ")
}
