// Package feeds provides RSS/Atom feed parsing and article ingestion.
package feeds

import (
	"bufio"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/araddon/dateparse"

	"readingrecs/internal/core"
	"readingrecs/internal/logger"
)

const userAgent = "readingrecs/0.1 (personal RSS aggregator)"

// RSS represents an RSS feed structure
type RSS struct {
	XMLName xml.Name `xml:"rss"`
	Channel Channel  `xml:"channel"`
}

// Channel represents an RSS channel
type Channel struct {
	Title string    `xml:"title"`
	Items []RSSItem `xml:"item"`
}

// RSSItem represents an RSS item. Comments is the slash:comments
// extension element some feeds expose; absent means zero.
type RSSItem struct {
	Title       string `xml:"title"`
	Link        string `xml:"link"`
	Description string `xml:"description"`
	PubDate     string `xml:"pubDate"`
	Comments    string `xml:"http://purl.org/rss/1.0/modules/slash/ comments"`
}

// Atom represents an Atom feed structure
type Atom struct {
	XMLName xml.Name    `xml:"feed"`
	Title   string      `xml:"title"`
	Entries []AtomEntry `xml:"entry"`
}

// AtomLink represents an Atom link element
type AtomLink struct {
	Href string `xml:"href,attr"`
	Rel  string `xml:"rel,attr"`
}

// AtomEntry represents an Atom entry
type AtomEntry struct {
	Title     string     `xml:"title"`
	Link      []AtomLink `xml:"link"`
	Summary   string     `xml:"summary"`
	Content   string     `xml:"content"`
	Published string     `xml:"published"`
	Updated   string     `xml:"updated"`
}

// entry is the feed-format-independent view of one feed item.
type entry struct {
	title     string
	link      string
	summary   string
	published time.Time
	comments  int
}

// Manager fetches configured feeds and turns qualifying entries into
// articles.
type Manager struct {
	client     *http.Client
	lookback   time.Duration
	maxEntries int
}

// NewManager creates a feed manager with the given per-request
// timeout, lookback window in days, and per-feed entry cap.
func NewManager(timeout time.Duration, lookbackDays, maxEntries int) *Manager {
	return &Manager{
		client:     &http.Client{Timeout: timeout},
		lookback:   time.Duration(lookbackDays) * 24 * time.Hour,
		maxEntries: maxEntries,
	}
}

// ParseFeedsFile reads the feed list: one feed per line, optional
// "title|url" pairing, #-prefixed comment lines ignored.
func ParseFeedsFile(path string) ([]core.FeedSource, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open feeds file %s: %w", path, err)
	}
	defer file.Close()

	var sources []core.FeedSource
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		src := core.FeedSource{Title: line, URL: line}
		if title, url, found := strings.Cut(line, "|"); found {
			src.Title = strings.TrimSpace(title)
			src.URL = strings.TrimSpace(url)
		}
		sources = append(sources, src)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading feeds file %s: %w", path, err)
	}
	return sources, nil
}

// FetchAll fetches every configured feed and returns the combined,
// URL-deduplicated article list. Per-feed failures are logged and
// skipped, never fatal.
func (m *Manager) FetchAll(sources []core.FeedSource) []core.Article {
	var articles []core.Article
	for _, src := range sources {
		logger.Info("Fetching feed", "feed", src.Title)
		fetched, err := m.fetchFeed(src)
		if err != nil {
			logger.Warn("Failed to fetch feed", "feed", src.URL, "error", err.Error())
			continue
		}
		articles = append(articles, fetched...)
	}
	return DedupeByURL(articles)
}

// fetchFeed retrieves one feed and converts qualifying entries.
func (m *Manager) fetchFeed(src core.FeedSource) ([]core.Article, error) {
	req, err := http.NewRequest(http.MethodGet, src.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed returned status %d", resp.StatusCode)
	}

	entries, err := parseFeed(resp)
	if err != nil {
		return nil, err
	}

	// Per-feed cap first, then the lookback window. Entries with no
	// usable date survive the window check.
	if len(entries) > m.maxEntries {
		entries = entries[:m.maxEntries]
	}
	cutoff := time.Now().UTC().Add(-m.lookback)

	var articles []core.Article
	for _, e := range entries {
		if !e.published.IsZero() && e.published.Before(cutoff) {
			continue
		}
		if e.link == "" {
			continue
		}
		articles = append(articles, core.Article{
			URL:          e.link,
			Title:        e.title,
			Source:       src.Title,
			Text:         StripHTML(e.summary),
			CommentCount: e.comments,
		})
	}
	return articles, nil
}

// parseFeed attempts to decode the response as RSS, then Atom.
func parseFeed(resp *http.Response) ([]entry, error) {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read feed body: %w", err)
	}

	// Detection keys off the document's root element, so feeds with an
	// empty <title> still parse.
	var rss RSS
	if err := xml.Unmarshal(body, &rss); err == nil && rss.XMLName.Local == "rss" {
		return rssEntries(rss), nil
	}

	var atom Atom
	if err := xml.Unmarshal(body, &atom); err == nil && atom.XMLName.Local == "feed" {
		return atomEntries(atom), nil
	}

	return nil, fmt.Errorf("unable to parse as RSS or Atom feed")
}

func rssEntries(rss RSS) []entry {
	var entries []entry
	for _, item := range rss.Channel.Items {
		comments := 0
		if item.Comments != "" {
			if n, err := strconv.Atoi(strings.TrimSpace(item.Comments)); err == nil {
				comments = n
			}
		}
		entries = append(entries, entry{
			title:     strings.TrimSpace(item.Title),
			link:      strings.TrimSpace(item.Link),
			summary:   item.Description,
			published: parseEntryDate(item.PubDate),
			comments:  comments,
		})
	}
	return entries
}

func atomEntries(atom Atom) []entry {
	var entries []entry
	for _, ae := range atom.Entries {
		var link string
		for _, l := range ae.Link {
			if l.Rel == "" || l.Rel == "alternate" {
				link = l.Href
				break
			}
		}
		summary := ae.Summary
		if summary == "" {
			summary = ae.Content
		}
		published := parseEntryDate(ae.Published)
		if published.IsZero() {
			published = parseEntryDate(ae.Updated)
		}
		entries = append(entries, entry{
			title:     strings.TrimSpace(ae.Title),
			link:      strings.TrimSpace(link),
			summary:   summary,
			published: published,
		})
	}
	return entries
}

// parseEntryDate parses the publish/update timestamp of a feed entry.
// Feeds disagree wildly on formats; dateparse covers RFC1123, RFC3339
// and the long tail. Returns the zero time when unparseable.
func parseEntryDate(dateStr string) time.Time {
	dateStr = strings.TrimSpace(dateStr)
	if dateStr == "" {
		return time.Time{}
	}
	t, err := dateparse.ParseAny(dateStr)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}

// DedupeByURL removes duplicate articles, first occurrence wins,
// preserving relative order.
func DedupeByURL(articles []core.Article) []core.Article {
	seen := make(map[string]bool, len(articles))
	deduped := articles[:0:0]
	for _, a := range articles {
		if seen[a.URL] {
			continue
		}
		seen[a.URL] = true
		deduped = append(deduped, a)
	}
	return deduped
}

// StripHTML extracts plain text from an HTML fragment, collapsing
// whitespace. Non-HTML input passes through unchanged apart from
// whitespace normalization.
func StripHTML(fragment string) string {
	if fragment == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return strings.Join(strings.Fields(fragment), " ")
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}
