package pipeline

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"readingrecs/internal/config"
	"readingrecs/internal/core"
	"readingrecs/internal/store"
)

func TestGatherCandidatesExcludesPreviouslyRecommended(t *testing.T) {
	feed := `<?xml version="1.0"?>
<rss version="2.0">
<channel>
<title>Test Blog</title>
<item><title>Old pick</title><link>https://blog.example/old</link></item>
<item><title>Fresh post</title><link>https://blog.example/new</link></item>
</channel>
</rss>`
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, feed)
	}))
	defer server.Close()

	dir := t.TempDir()
	feedsPath := filepath.Join(dir, "feeds.txt")
	if err := os.WriteFile(feedsPath, []byte("Test Blog|"+server.URL+"\n"), 0644); err != nil {
		t.Fatalf("Failed to write feeds file: %v", err)
	}

	st, err := store.NewStore(dir)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	defer func() { _ = st.Close() }()

	// A prior run recommended the old article.
	recommended := []core.ScoredArticle{{
		Article:  core.Article{URL: "https://blog.example/old", Title: "Old pick", Source: "Test Blog"},
		LLMScore: 9,
	}}
	if err := st.SaveScoredArticles(recommended, map[string]bool{"https://blog.example/old": true}, time.Now()); err != nil {
		t.Fatalf("Failed to seed history: %v", err)
	}

	cfg := &config.Config{
		App:   config.App{FeedsPath: feedsPath},
		Feeds: config.Feeds{LookbackDays: 7, MaxEntries: 10, Timeout: "5s"},
	}
	p := New(cfg, st, nil, true)

	candidates, err := p.gatherCandidates()
	if err != nil {
		t.Fatalf("gatherCandidates failed: %v", err)
	}
	if len(candidates) != 1 {
		t.Fatalf("Expected 1 candidate after exclusion, got %d", len(candidates))
	}
	if candidates[0].URL != "https://blog.example/new" {
		t.Errorf("Expected only the fresh article, got %s", candidates[0].URL)
	}
	for _, c := range candidates {
		if c.URL == "https://blog.example/old" {
			t.Error("Previously recommended URL re-entered the candidate pool")
		}
	}
}

func TestParseDuration(t *testing.T) {
	if got := parseDuration("3s", time.Minute); got != 3*time.Second {
		t.Errorf("Expected 3s, got %v", got)
	}
	if got := parseDuration("", time.Minute); got != time.Minute {
		t.Errorf("Expected fallback for empty string, got %v", got)
	}
	if got := parseDuration("-5s", time.Minute); got != time.Minute {
		t.Errorf("Expected fallback for negative duration, got %v", got)
	}
}
