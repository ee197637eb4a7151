package popularity

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"readingrecs/internal/core"
)

// memStats replicates the seed-then-EMA behavior of the real store.
type memStats struct {
	stats map[string]core.SourceStats
}

func newMemStats() *memStats {
	return &memStats{stats: make(map[string]core.SourceStats)}
}

func (m *memStats) SourceStats(source string) (core.SourceStats, error) {
	if s, ok := m.stats[source]; ok {
		return s, nil
	}
	return core.SourceStats{Source: source}, nil
}

func (m *memStats) UpdateSourceStats(source string, commentCount, score float64) error {
	s := m.stats[source]
	if s.ArticleCount == 0 {
		s.AvgCommentCount = commentCount
		s.AvgScore = score
	} else {
		s.AvgCommentCount = 0.9*s.AvgCommentCount + 0.1*commentCount
		s.AvgScore = 0.9*s.AvgScore + 0.1*score
	}
	s.Source = source
	s.ArticleCount++
	m.stats[source] = s
	return nil
}

func hnServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/search" {
			t.Errorf("Unexpected HN path: %s", r.URL.Path)
		}
		fmt.Fprint(w, body)
	}))
	t.Cleanup(server.Close)
	return server
}

func emptyRedditServer(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":{"children":[]}}`)
	}))
	t.Cleanup(server.Close)
	return server
}

func newTestEnricher(t *testing.T, stats StatsStore, hnURL, redditURL string) *Enricher {
	t.Helper()
	e := NewEnricher(&http.Client{Timeout: 5 * time.Second}, stats, hnURL, redditURL)
	e.SetDelays(0, 0)
	return e
}

func TestQueryHNPicksBestByPoints(t *testing.T) {
	hn := hnServer(t, `{"hits":[
		{"num_comments":10,"points":50},
		{"num_comments":200,"points":300},
		{"num_comments":5,"points":1}
	]}`)

	e := newTestEnricher(t, newMemStats(), hn.URL, emptyRedditServer(t).URL)
	got := e.queryHN("https://blog.example/post")
	if got.Score != 300 || got.Comments != 200 {
		t.Errorf("Expected best hit by points (300/200), got %+v", got)
	}
}

func TestQueryHNFailureDegradesToZero(t *testing.T) {
	hn := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer hn.Close()

	e := newTestEnricher(t, newMemStats(), hn.URL, emptyRedditServer(t).URL)
	got := e.queryHN("https://blog.example/post")
	if got.Comments != 0 || got.Score != 0 {
		t.Errorf("Expected zero engagement on failure, got %+v", got)
	}
}

func TestQueryRedditPicksBestByScore(t *testing.T) {
	reddit := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search.json" {
			t.Errorf("Unexpected Reddit path: %s", r.URL.Path)
		}
		fmt.Fprint(w, `{"data":{"children":[
			{"data":{"num_comments":3,"score":12}},
			{"data":{"num_comments":90,"score":450}},
			{"data":{"num_comments":1,"score":2}}
		]}}`)
	}))
	defer reddit.Close()

	e := newTestEnricher(t, newMemStats(), hnServer(t, `{"hits":[]}`).URL, reddit.URL)
	got := e.queryReddit("https://blog.example/post")
	if got.Score != 450 || got.Comments != 90 {
		t.Errorf("Expected best post by score (450/90), got %+v", got)
	}
}

func TestRedditRateLimitBlocksRemainderOfRun(t *testing.T) {
	requests := 0
	reddit := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer reddit.Close()

	e := newTestEnricher(t, newMemStats(), hnServer(t, `{"hits":[]}`).URL, reddit.URL)

	e.queryReddit("https://blog.example/one")
	e.queryReddit("https://blog.example/two")
	e.queryReddit("https://blog.example/three")

	if requests != 1 {
		t.Errorf("Expected a single Reddit request after the 429, got %d", requests)
	}
	if !e.redditBlocked {
		t.Error("Expected Reddit to be blocked after a 429")
	}
}

func TestEnrichSetsAboveAverageFlag(t *testing.T) {
	hn := hnServer(t, `{"hits":[{"num_comments":20,"points":100}]}`)

	e := newTestEnricher(t, newMemStats(), hn.URL, emptyRedditServer(t).URL)
	articles, err := e.Enrich([]core.Article{
		{URL: "https://blog.example/1", Source: "blog"},
		{URL: "https://blog.example/2", Source: "blog"},
	})
	if err != nil {
		t.Fatalf("Enrich failed: %v", err)
	}

	if articles[0].CommentCount != 20 {
		t.Errorf("Expected comment count 20, got %d", articles[0].CommentCount)
	}
	// The first article seeds its source baseline, so it can never
	// exceed its own average.
	if articles[0].IsAboveAverage {
		t.Error("First observation should not be above its own baseline")
	}
	// The second article observes the same totals; the EMA read back
	// after its own update still equals the totals, so not above.
	if articles[1].IsAboveAverage {
		t.Error("Identical engagement should not be above average")
	}
}

func TestEnrichAddsNativeCommentCount(t *testing.T) {
	hn := hnServer(t, `{"hits":[{"num_comments":7,"points":3}]}`)

	e := newTestEnricher(t, newMemStats(), hn.URL, emptyRedditServer(t).URL)
	articles, err := e.Enrich([]core.Article{
		{URL: "https://blog.example/1", Source: "blog", CommentCount: 5},
	})
	if err != nil {
		t.Fatalf("Enrich failed: %v", err)
	}

	if articles[0].CommentCount != 12 {
		t.Errorf("Expected native 5 + HN 7 = 12 comments, got %d", articles[0].CommentCount)
	}
}

// brokenStats fails every stats operation.
type brokenStats struct{}

func (brokenStats) SourceStats(source string) (core.SourceStats, error) {
	return core.SourceStats{}, errors.New("database is locked")
}

func (brokenStats) UpdateSourceStats(source string, commentCount, score float64) error {
	return errors.New("database is locked")
}

func TestEnrichFailsWhenStatsStoreFails(t *testing.T) {
	hn := hnServer(t, `{"hits":[{"num_comments":20,"points":100}]}`)

	e := newTestEnricher(t, brokenStats{}, hn.URL, emptyRedditServer(t).URL)
	articles, err := e.Enrich([]core.Article{
		{URL: "https://blog.example/1", Source: "blog"},
	})
	if err == nil {
		t.Fatal("Expected error when the stats store fails")
	}
	if articles != nil {
		t.Errorf("Expected no articles on stats failure, got %d", len(articles))
	}
}
