// Package score rates candidate articles with a language model and
// applies the digest selection rule.
package score

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"readingrecs/internal/core"
	"readingrecs/internal/logger"
)

// SystemPrompt is the fixed instruction rubric for the scoring call.
const SystemPrompt = `You are a reading recommendation scorer. Given an article's title, source, text excerpt, and popularity context, score it from 1-10 on how worth reading it is.

Criteria:
- Opinionated — not just factual news
- Info-dense — packed with insights, not padded
- Differentiated — unique perspective, not a generic take
- Topically biased toward (but not limited to): economics, AI, data science, technology, business strategy, public policy

Respond with ONLY a JSON object: {"score": <1-10>, "reason": "<1-2 sentences summarizing what makes it interesting>"}
The reason should tell the reader what they'll get from the article. Be direct — don't start with 'This article' or 'The author'. Example: 'Argues that gig economy minimum wages backfire by reducing flexibility, with strong evidence from recent Uber data.'`

const (
	// excerptLimit bounds the article text included in the prompt.
	excerptLimit = 3000
	// validationInterval runs the calibration sample every Nth run.
	validationInterval = 7
	// validationSampleSize caps how many rejected-half candidates get
	// independently scored for calibration.
	validationSampleSize = 5
)

// Generator is the slice of the LLM client the scorer needs.
type Generator interface {
	GenerateContent(ctx context.Context, systemInstruction, prompt string) (string, error)
}

// ValidationStore persists calibration records and exposes run history.
type ValidationStore interface {
	RunCount() (int, error)
	SaveValidation(record core.ValidationRecord) error
}

// Result is the parsed model reply for one article.
type Result struct {
	Score  float64 `json:"score"`
	Reason string  `json:"reason"`
}

// Scorer runs the LLM relevance pass and selection rule.
type Scorer struct {
	gen       Generator
	store     ValidationStore
	fewShot   string
	threshold float64
	min       int
	max       int
	rng       *rand.Rand
}

// NewScorer creates a scorer. fewShot is the favorites document text
// appended to every scoring prompt as high-quality examples.
func NewScorer(gen Generator, store ValidationStore, fewShot string, threshold float64, minArticles, maxArticles int) *Scorer {
	return &Scorer{
		gen:       gen,
		store:     store,
		fewShot:   fewShot,
		threshold: threshold,
		min:       minArticles,
		max:       maxArticles,
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// ScoreAndSelect scores every candidate, then applies the selection
// rule. Candidates are mutated in place so unselected ones carry their
// scores into persistence. A scoring failure leaves the candidate at
// score zero, excluded from the passing set but still in the list.
func (s *Scorer) ScoreAndSelect(ctx context.Context, candidates []core.ScoredArticle) []core.ScoredArticle {
	for i := range candidates {
		result, err := s.scoreOne(ctx, candidates[i].Article, popularityContext(candidates[i].Article))
		if err != nil {
			logger.Warn("LLM scoring failed", "title", candidates[i].Article.Title, "error", err.Error())
			continue
		}
		candidates[i].LLMScore = result.Score
		candidates[i].Reason = result.Reason
		logger.Info("Scored article",
			"title", core.Truncate(candidates[i].Article.Title, 50),
			"score", result.Score,
			"reason", result.Reason)
	}

	s.maybeRunValidation(ctx, candidates)

	return Select(candidates, s.threshold, s.min, s.max)
}

// Select applies the threshold with floor/cap bounds: candidates at or
// above the threshold sorted by score descending; if fewer than min
// pass, the top min among all successfully scored (score > 0); the
// result is capped at max.
func Select(candidates []core.ScoredArticle, threshold float64, min, max int) []core.ScoredArticle {
	var passing []core.ScoredArticle
	for _, sa := range candidates {
		if sa.LLMScore >= threshold {
			passing = append(passing, sa)
		}
	}
	sort.SliceStable(passing, func(i, j int) bool { return passing[i].LLMScore > passing[j].LLMScore })

	if len(passing) < min {
		var scored []core.ScoredArticle
		for _, sa := range candidates {
			if sa.LLMScore > 0 {
				scored = append(scored, sa)
			}
		}
		sort.SliceStable(scored, func(i, j int) bool { return scored[i].LLMScore > scored[j].LLMScore })
		if len(scored) > min {
			scored = scored[:min]
		}
		passing = scored
	}

	if len(passing) > max {
		passing = passing[:max]
	}
	return passing
}

// scoreOne sends one article to the model and parses the reply.
func (s *Scorer) scoreOne(ctx context.Context, article core.Article, popularityCtx string) (*Result, error) {
	excerpt := core.Truncate(article.Text, excerptLimit)

	fewShot := ""
	if s.fewShot != "" {
		fewShot = fmt.Sprintf("\nHere are examples of articles the user considers high quality (score 9-10):\n\n%s\n", s.fewShot)
	}

	prompt := fmt.Sprintf(`Title: %s
Source: %s
Popularity: %s

Text (excerpt):
%s
%s
Score this article.`, article.Title, article.Source, popularityCtx, excerpt, fewShot)

	reply, err := s.gen.GenerateContent(ctx, SystemPrompt, prompt)
	if err != nil {
		return nil, err
	}
	return ParseResponse(reply)
}

// ParseResponse parses the strict-JSON model reply, tolerating
// markdown code-fence wrapping. A reply that is not valid JSON or is
// missing either required key is a scoring failure.
func ParseResponse(text string) (*Result, error) {
	clean := strings.TrimSpace(text)
	if strings.HasPrefix(clean, "```") {
		clean = strings.TrimPrefix(clean, "```json")
		clean = strings.TrimPrefix(clean, "```")
		clean = strings.TrimSuffix(clean, "```")
		clean = strings.TrimSpace(clean)
	}

	var raw struct {
		Score  *float64 `json:"score"`
		Reason *string  `json:"reason"`
	}
	if err := json.Unmarshal([]byte(clean), &raw); err != nil {
		return nil, fmt.Errorf("response is not valid JSON: %w", err)
	}
	if raw.Score == nil || raw.Reason == nil {
		return nil, fmt.Errorf("response missing required keys: %s", core.Truncate(clean, 200))
	}
	return &Result{Score: *raw.Score, Reason: *raw.Reason}, nil
}

// popularityContext builds the short engagement summary for the prompt.
func popularityContext(a core.Article) string {
	level := "Below"
	if a.IsAboveAverage {
		level = "Above"
	}
	ctx := fmt.Sprintf("%s average engagement for %s. %d comments.", level, a.Source, a.CommentCount)
	if a.LimitedData {
		ctx += " (Limited text data — full article could not be fetched.)"
	}
	return ctx
}

// maybeRunValidation independently scores a random sample from the
// bottom half of the candidate pool (by similarity) once every
// validationInterval completed runs, persisting (url, similarity
// score, LLM score) for calibration. Never affects selection.
func (s *Scorer) maybeRunValidation(ctx context.Context, candidates []core.ScoredArticle) {
	runCount, err := s.store.RunCount()
	if err != nil {
		logger.Warn("Failed to read run count for validation", "error", err.Error())
		return
	}
	if runCount%validationInterval != 0 {
		return
	}

	bottom := make([]core.ScoredArticle, len(candidates))
	copy(bottom, candidates)
	sort.SliceStable(bottom, func(i, j int) bool { return bottom[i].EmbeddingScore < bottom[j].EmbeddingScore })
	bottom = bottom[:len(bottom)/2]

	s.rng.Shuffle(len(bottom), func(i, j int) { bottom[i], bottom[j] = bottom[j], bottom[i] })
	if len(bottom) > validationSampleSize {
		bottom = bottom[:validationSampleSize]
	}

	logger.Info("Running validation sample", "count", len(bottom))
	for _, sa := range bottom {
		result, err := s.scoreOne(ctx, sa.Article, "")
		if err != nil {
			logger.Warn("Validation scoring failed", "url", sa.Article.URL, "error", err.Error())
			continue
		}
		record := core.ValidationRecord{
			ID:             uuid.NewString(),
			URL:            sa.Article.URL,
			EmbeddingScore: sa.EmbeddingScore,
			LLMScore:       result.Score,
			RunDate:        time.Now().UTC(),
		}
		if err := s.store.SaveValidation(record); err != nil {
			logger.Warn("Failed to save validation record", "url", sa.Article.URL, "error", err.Error())
			continue
		}
		logger.Info("Validation sample scored",
			"title", core.Truncate(sa.Article.Title, 40),
			"embedding_score", fmt.Sprintf("%.3f", sa.EmbeddingScore),
			"llm_score", result.Score)
	}
}
