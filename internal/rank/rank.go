// Package rank filters articles by embedding similarity against the
// preference profile.
package rank

import (
	"context"
	"fmt"
	"sort"

	"readingrecs/internal/core"
	"readingrecs/internal/logger"
	"readingrecs/internal/profile"
)

// embedTextSlice bounds how much article text goes into the embedding
// request alongside the title.
const embedTextSlice = 2000

// Filter scores articles against the preference profile and keeps the
// most similar ones.
type Filter struct {
	embedder profile.Embedder
	profile  *profile.Store
}

// NewFilter creates a similarity filter.
func NewFilter(embedder profile.Embedder, profileStore *profile.Store) *Filter {
	return &Filter{embedder: embedder, profile: profileStore}
}

// FilterTop embeds all articles in one batched call, scores each
// against the preference profile, and returns the top n by descending
// similarity. Empty input yields empty output. An embedding failure is
// fatal to the run: without embeddings nothing can be ranked.
func (f *Filter) FilterTop(ctx context.Context, articles []core.Article, n int) ([]core.ScoredArticle, error) {
	if len(articles) == 0 {
		return nil, nil
	}

	vectors, err := f.profile.LoadProfile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load preference profile: %w", err)
	}

	texts := make([]string, len(articles))
	for i, a := range articles {
		texts[i] = a.Title + "\n\n" + core.Truncate(a.Text, embedTextSlice)
	}

	logger.Info("Embedding articles", "count", len(texts))
	embeddings, err := f.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("failed to embed articles: %w", err)
	}

	scored := make([]core.ScoredArticle, len(articles))
	for i := range articles {
		scored[i] = core.ScoredArticle{
			Article:        articles[i],
			EmbeddingScore: profile.ScoreAgainstProfile(embeddings[i], vectors),
		}
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].EmbeddingScore > scored[j].EmbeddingScore
	})

	top := scored
	if len(top) > n {
		top = top[:n]
	}
	if len(scored) > 0 {
		logger.Info("Similarity scores",
			"top", fmt.Sprintf("%.3f", scored[0].EmbeddingScore),
			"cutoff", fmt.Sprintf("%.3f", top[len(top)-1].EmbeddingScore),
			"bottom", fmt.Sprintf("%.3f", scored[len(scored)-1].EmbeddingScore))
	}
	return top, nil
}
