package core

import "time"

// Article represents a single piece of content pulled from a feed.
// It is identified by URL across the whole lifetime of the system.
type Article struct {
	URL            string `json:"url"`              // Unique key for the article
	Title          string `json:"title"`            // Title from the feed entry or page
	Source         string `json:"source"`           // Label of the feed the article came from
	Text           string `json:"text"`             // Body text (feed summary or full-text extraction)
	CommentCount   int    `json:"comment_count"`    // Combined engagement comment count
	IsAboveAverage bool   `json:"is_above_average"` // Engagement above the source's rolling average
	LimitedData    bool   `json:"limited_data"`     // Full-text retrieval failed; only a short excerpt is available
}

// ScoredArticle wraps an Article with the scores assigned by the
// similarity filter and the LLM relevance pass.
type ScoredArticle struct {
	Article        Article `json:"article"`
	EmbeddingScore float64 `json:"embedding_score"` // Mean cosine similarity against the preference profile
	LLMScore       float64 `json:"llm_score"`       // 1-10 relevance score, 0 means unscored
	Reason         string  `json:"reason"`          // Short free-text justification from the model
}

// FeedSource is one line of the feeds file.
type FeedSource struct {
	Title string `json:"title"` // Display label, defaults to the URL
	URL   string `json:"url"`   // Feed URL
}

// SourceStats holds the exponentially-weighted rolling engagement
// averages for one feed source.
type SourceStats struct {
	Source          string  `json:"source"`
	AvgCommentCount float64 `json:"avg_comment_count"`
	AvgScore        float64 `json:"avg_score"`
	ArticleCount    int     `json:"article_count"`
}

// Engagement is the signal returned by one popularity source for one URL.
type Engagement struct {
	Comments int `json:"comments"`
	Score    int `json:"score"`
}

// ValidationRecord pairs an article's similarity score with an LLM
// score obtained outside the normal selection path. Calibration only.
type ValidationRecord struct {
	ID             string    `json:"id"`
	URL            string    `json:"url"`
	EmbeddingScore float64   `json:"embedding_score"`
	LLMScore       float64   `json:"llm_score"`
	RunDate        time.Time `json:"run_date"`
}

// PreferenceExample is one cached favorites entry with its embedding.
type PreferenceExample struct {
	Text      string    `json:"text"`
	Embedding []float64 `json:"embedding"`
}

// Truncate returns at most n characters of s, never splitting a
// multi-byte rune.
func Truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
