// Package popularity augments articles with cross-platform engagement
// signals and maintains per-source rolling averages.
package popularity

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"readingrecs/internal/core"
	"readingrecs/internal/logger"
)

const userAgent = "readingrecs/0.1 (personal RSS aggregator)"

// StatsStore is the slice of the persistence layer the enricher needs.
type StatsStore interface {
	SourceStats(source string) (core.SourceStats, error)
	UpdateSourceStats(source string, commentCount, score float64) error
}

// Enricher queries the engagement-signal sources for one run. The
// Reddit rate-limit flag lives here so it resets with each run.
type Enricher struct {
	client        *http.Client
	stats         StatsStore
	hnBaseURL     string
	redditBaseURL string
	redditBlocked bool

	// Courtesy delays between outbound calls; zeroed in tests.
	hnDelay     time.Duration
	redditDelay time.Duration
}

// NewEnricher creates an enricher for a single run.
func NewEnricher(client *http.Client, stats StatsStore, hnBaseURL, redditBaseURL string) *Enricher {
	return &Enricher{
		client:        client,
		stats:         stats,
		hnBaseURL:     hnBaseURL,
		redditBaseURL: redditBaseURL,
		hnDelay:       100 * time.Millisecond,
		redditDelay:   500 * time.Millisecond,
	}
}

// Enrich augments each article in place with engagement counts and the
// above-average flag, preserving order. Engagement-source failures
// degrade to zero counts; a Reddit 429 skips Reddit for the remainder
// of the run. Stats-store failures abort the run: a lost update or a
// zero-valued read would silently skew the above-average comparison.
//
// A source's rolling stats are updated with the current article's
// totals before the comparison reads them back, so the first article
// seen for a source becomes its own baseline. Kept as-is; see the
// calibration log for observing drift.
func (e *Enricher) Enrich(articles []core.Article) ([]core.Article, error) {
	for i := range articles {
		hn := e.queryHN(articles[i].URL)
		time.Sleep(e.hnDelay)

		reddit := e.queryReddit(articles[i].URL)
		if !e.redditBlocked {
			time.Sleep(e.redditDelay)
		}

		totalComments := articles[i].CommentCount + hn.Comments + reddit.Comments
		totalScore := hn.Score + reddit.Score

		if err := e.stats.UpdateSourceStats(articles[i].Source, float64(totalComments), float64(totalScore)); err != nil {
			return nil, fmt.Errorf("failed to update stats for source %s: %w", articles[i].Source, err)
		}
		stats, err := e.stats.SourceStats(articles[i].Source)
		if err != nil {
			return nil, fmt.Errorf("failed to read stats for source %s: %w", articles[i].Source, err)
		}

		articles[i].CommentCount = totalComments
		articles[i].IsAboveAverage = float64(totalComments) > stats.AvgCommentCount ||
			float64(totalScore) > stats.AvgScore

		if (i+1)%10 == 0 {
			logger.Info("Enriched articles", "done", i+1, "total", len(articles))
		}
	}

	aboveAvg := 0
	for _, a := range articles {
		if a.IsAboveAverage {
			aboveAvg++
		}
	}
	logger.Info("Popularity enrichment complete", "above_average", aboveAvg, "total", len(articles))
	return articles, nil
}

type hnResponse struct {
	Hits []struct {
		NumComments int `json:"num_comments"`
		Points      int `json:"points"`
	} `json:"hits"`
}

// queryHN queries the HN Algolia search API for engagement data on a
// URL, returning the candidate with the most points among up to 5.
func (e *Enricher) queryHN(articleURL string) core.Engagement {
	query := url.Values{
		"query":                        {articleURL},
		"restrictSearchableAttributes": {"url"},
		"hitsPerPage":                  {"5"},
	}
	endpoint := e.hnBaseURL + "/api/v1/search?" + query.Encode()

	var parsed hnResponse
	if err := e.getJSON(endpoint, &parsed); err != nil {
		logger.Debug("HN query failed", "url", articleURL, "error", err.Error())
		return core.Engagement{}
	}

	best := core.Engagement{}
	bestPoints := -1
	for _, hit := range parsed.Hits {
		if hit.Points > bestPoints {
			best = core.Engagement{Comments: hit.NumComments, Score: hit.Points}
			bestPoints = hit.Points
		}
	}
	if bestPoints < 0 {
		return core.Engagement{}
	}
	return best
}

type redditResponse struct {
	Data struct {
		Children []struct {
			Data struct {
				NumComments int `json:"num_comments"`
				Score       int `json:"score"`
			} `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

// queryReddit queries the Reddit search JSON API for engagement data,
// returning the post with the highest score among up to 5. An HTTP 429
// blocks Reddit for the remainder of the run.
func (e *Enricher) queryReddit(articleURL string) core.Engagement {
	if e.redditBlocked {
		return core.Engagement{}
	}

	query := url.Values{
		"q":     {"url:" + articleURL},
		"sort":  {"top"},
		"limit": {"5"},
	}
	endpoint := e.redditBaseURL + "/search.json?" + query.Encode()

	req, err := http.NewRequest(http.MethodGet, endpoint, nil)
	if err != nil {
		return core.Engagement{}
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := e.client.Do(req)
	if err != nil {
		logger.Debug("Reddit query failed", "url", articleURL, "error", err.Error())
		return core.Engagement{}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusTooManyRequests {
		logger.Info("Reddit rate-limited, skipping Reddit for remaining articles")
		e.redditBlocked = true
		return core.Engagement{}
	}
	if resp.StatusCode != http.StatusOK {
		logger.Debug("Reddit query failed", "url", articleURL, "status", resp.StatusCode)
		return core.Engagement{}
	}

	var parsed redditResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		logger.Debug("Reddit response unparseable", "url", articleURL, "error", err.Error())
		return core.Engagement{}
	}

	best := core.Engagement{}
	bestScore := -1
	for _, child := range parsed.Data.Children {
		if child.Data.Score > bestScore {
			best = core.Engagement{Comments: child.Data.NumComments, Score: child.Data.Score}
			bestScore = child.Data.Score
		}
	}
	if bestScore < 0 {
		return core.Engagement{}
	}
	return best
}

// getJSON performs a GET and decodes the JSON response body.
func (e *Enricher) getJSON(endpoint string, target any) error {
	req, err := http.NewRequest(http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// SetDelays overrides the courtesy delays between outbound calls.
func (e *Enricher) SetDelays(hn, reddit time.Duration) {
	e.hnDelay = hn
	e.redditDelay = reddit
}
