// Package profile maintains the learned preference profile: example
// texts the user considers high quality and their embeddings.
package profile

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"readingrecs/internal/core"
	"readingrecs/internal/llm"
	"readingrecs/internal/logger"
)

// Entries shorter than this are discarded as noise when parsing the
// favorites document.
const minEntryLength = 20

// Embedder is the slice of the LLM client the profile needs.
type Embedder interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float64, error)
}

// Cache persists (text, embedding) pairs between runs.
type Cache interface {
	PreferenceEmbeddings() ([]core.PreferenceExample, error)
	ReplacePreferenceEmbeddings(examples []core.PreferenceExample) error
}

// Store loads the preference profile from the favorites document,
// recomputing embeddings only when the document content changes.
type Store struct {
	favoritesPath string
	embedder      Embedder
	cache         Cache
}

// NewStore creates a preference store.
func NewStore(favoritesPath string, embedder Embedder, cache Cache) *Store {
	return &Store{favoritesPath: favoritesPath, embedder: embedder, cache: cache}
}

// LoadProfile returns the embedding vectors of the favorites entries.
// If the cached set's content hash matches the current document, the
// cached vectors are returned unchanged (order-preserving); otherwise
// all entries are re-embedded in one batched call and the cache is
// replaced atomically.
func (s *Store) LoadProfile(ctx context.Context) ([][]float64, error) {
	favorites, err := s.parseFavoritesFile()
	if err != nil {
		logger.Warn("No favorites document found", "path", s.favoritesPath, "error", err.Error())
		return nil, nil
	}
	if len(favorites) == 0 {
		logger.Warn("No favorites entries found, similarity pass will be ineffective")
		return nil, nil
	}

	hash := contentHash(favorites)

	cached, err := s.cache.PreferenceEmbeddings()
	if err != nil {
		return nil, fmt.Errorf("failed to load cached preference embeddings: %w", err)
	}
	if len(cached) > 0 {
		cachedTexts := make([]string, len(cached))
		for i, ex := range cached {
			cachedTexts[i] = ex.Text
		}
		if contentHash(cachedTexts) == hash {
			logger.Info("Using cached preference embeddings", "entries", len(cached))
			vectors := make([][]float64, len(cached))
			for i, ex := range cached {
				vectors[i] = ex.Embedding
			}
			return vectors, nil
		}
	}

	logger.Info("Computing preference embeddings", "entries", len(favorites))
	vectors, err := s.embedder.EmbedTexts(ctx, favorites)
	if err != nil {
		return nil, fmt.Errorf("failed to embed favorites: %w", err)
	}

	examples := make([]core.PreferenceExample, len(favorites))
	for i := range favorites {
		examples[i] = core.PreferenceExample{Text: favorites[i], Embedding: vectors[i]}
	}
	if err := s.cache.ReplacePreferenceEmbeddings(examples); err != nil {
		return nil, fmt.Errorf("failed to cache preference embeddings: %w", err)
	}

	return vectors, nil
}

// FewShot returns the raw favorites document for use as few-shot
// examples in the scoring prompt, or "" when unavailable.
func (s *Store) FewShot() string {
	content, err := os.ReadFile(s.favoritesPath)
	if err != nil {
		return ""
	}
	return string(content)
}

func (s *Store) parseFavoritesFile() ([]string, error) {
	content, err := os.ReadFile(s.favoritesPath)
	if err != nil {
		return nil, err
	}
	return ParseFavorites(string(content)), nil
}

// ParseFavorites splits the favorites document into independent
// entries on top-level "## " heading markers, discarding entries
// shorter than the noise threshold.
func ParseFavorites(content string) []string {
	var entries []string
	var current []string
	for _, line := range strings.Split(content, "\n") {
		if strings.HasPrefix(line, "## ") && len(current) > 0 {
			entries = append(entries, strings.TrimSpace(strings.Join(current, "\n")))
			current = []string{line}
		} else {
			current = append(current, line)
		}
	}
	if len(current) > 0 {
		entries = append(entries, strings.TrimSpace(strings.Join(current, "\n")))
	}

	kept := entries[:0]
	for _, e := range entries {
		if len(e) > minEntryLength {
			kept = append(kept, e)
		}
	}
	return kept
}

// contentHash computes the deterministic hash used for cache
// invalidation over the concatenated entry texts.
func contentHash(entries []string) string {
	sum := md5.Sum([]byte(strings.Join(entries, "\n")))
	return hex.EncodeToString(sum[:])
}

// ScoreAgainstProfile returns the mean cosine similarity of an
// embedding against every profile vector, or 0.0 for an empty profile.
func ScoreAgainstProfile(embedding []float64, profile [][]float64) float64 {
	if len(profile) == 0 {
		return 0.0
	}
	total := 0.0
	for _, p := range profile {
		total += llm.CosineSimilarity(embedding, p)
	}
	return total / float64(len(profile))
}
