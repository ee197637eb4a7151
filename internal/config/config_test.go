package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	cfg, err := Load(writeConfig(t, "app:\n  data_dir: data\n"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Feeds.LookbackDays != 7 {
		t.Errorf("Expected lookback_days default 7, got %d", cfg.Feeds.LookbackDays)
	}
	if cfg.Feeds.MaxEntries != 10 {
		t.Errorf("Expected max_entries default 10, got %d", cfg.Feeds.MaxEntries)
	}
	if cfg.Selection.EmbeddingTopN != 30 {
		t.Errorf("Expected embedding_top_n default 30, got %d", cfg.Selection.EmbeddingTopN)
	}
	if cfg.Selection.ScoreThreshold != 7 {
		t.Errorf("Expected score_threshold default 7, got %f", cfg.Selection.ScoreThreshold)
	}
	if cfg.Selection.MinArticles != 5 || cfg.Selection.MaxArticles != 10 {
		t.Errorf("Expected selection bounds 5/10, got %d/%d", cfg.Selection.MinArticles, cfg.Selection.MaxArticles)
	}
	if cfg.Popularity.HNBaseURL != "https://hn.algolia.com" {
		t.Errorf("Unexpected HN base URL: %s", cfg.Popularity.HNBaseURL)
	}
	if cfg.Email.SMTPHost != "smtp.gmail.com" || cfg.Email.SMTPPort != 587 {
		t.Errorf("Unexpected SMTP defaults: %s:%d", cfg.Email.SMTPHost, cfg.Email.SMTPPort)
	}
}

func TestLoadFromFile(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	path := writeConfig(t, `
feeds:
  lookback_days: 3
selection:
  embedding_top_n: 12
  score_threshold: 8.5
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Feeds.LookbackDays != 3 {
		t.Errorf("Expected lookback_days 3, got %d", cfg.Feeds.LookbackDays)
	}
	if cfg.Selection.EmbeddingTopN != 12 {
		t.Errorf("Expected embedding_top_n 12, got %d", cfg.Selection.EmbeddingTopN)
	}
	if cfg.Selection.ScoreThreshold != 8.5 {
		t.Errorf("Expected score_threshold 8.5, got %f", cfg.Selection.ScoreThreshold)
	}
	// Defaults still apply to untouched sections.
	if cfg.Selection.MaxArticles != 10 {
		t.Errorf("Expected max_articles default 10, got %d", cfg.Selection.MaxArticles)
	}
}

func TestLoadRejectsInvalidBounds(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	path := writeConfig(t, `
selection:
  min_articles: 20
  max_articles: 10
`)
	if _, err := Load(path); err == nil {
		t.Error("Expected error when min_articles exceeds max_articles")
	}
}

func TestLoadIsCached(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	first, err := Load(writeConfig(t, "app: {}\n"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	second, err := Load("")
	if err != nil {
		t.Fatalf("Second Load failed: %v", err)
	}
	if first != second {
		t.Error("Expected cached config on repeated Load")
	}
	if Get() != first {
		t.Error("Expected Get to return the cached config")
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}
	return path
}
