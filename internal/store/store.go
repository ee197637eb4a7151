package store

import (
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"readingrecs/internal/core"
)

const storedTextLimit = 5000

// Store wraps the local SQLite database holding article history,
// per-source rolling statistics, cached preference embeddings, and the
// calibration log.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore opens (creating if necessary) the database under dataDir
// and ensures the schema exists.
func NewStore(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "readingrecs.db")
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set journal mode: %w", err)
	}

	store := &Store{db: db, path: dbPath}
	if err := store.initialize(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	return store, nil
}

// initialize creates the necessary tables
func (s *Store) initialize() error {
	articlesTable := `
	CREATE TABLE IF NOT EXISTS articles (
		url TEXT PRIMARY KEY,
		title TEXT,
		source TEXT,
		text TEXT,
		embedding_score REAL,
		llm_score REAL,
		reason TEXT,
		recommended INTEGER DEFAULT 0,
		run_date TEXT
	);`

	sourceStatsTable := `
	CREATE TABLE IF NOT EXISTS source_stats (
		source TEXT PRIMARY KEY,
		avg_comment_count REAL DEFAULT 0,
		avg_score REAL DEFAULT 0,
		article_count INTEGER DEFAULT 0
	);`

	preferenceTable := `
	CREATE TABLE IF NOT EXISTS preference_embeddings (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		text TEXT,
		embedding BLOB
	);`

	validationTable := `
	CREATE TABLE IF NOT EXISTS validation_log (
		id TEXT PRIMARY KEY,
		url TEXT,
		embedding_score REAL,
		llm_score REAL,
		run_date TEXT
	);`

	tables := []string{articlesTable, sourceStatsTable, preferenceTable, validationTable}
	for _, table := range tables {
		if _, err := s.db.Exec(table); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}

	return nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// PreviouslyRecommended returns the set of URLs marked recommended in
// any prior run. A recommended URL is never re-surfaced.
func (s *Store) PreviouslyRecommended() (map[string]bool, error) {
	rows, err := s.db.Query("SELECT url FROM articles WHERE recommended = 1")
	if err != nil {
		return nil, fmt.Errorf("failed to query recommended articles: %w", err)
	}
	defer rows.Close()

	urls := make(map[string]bool)
	for rows.Next() {
		var url string
		if err := rows.Scan(&url); err != nil {
			return nil, fmt.Errorf("failed to scan recommended URL: %w", err)
		}
		urls[url] = true
	}
	return urls, rows.Err()
}

// SaveScoredArticles upserts all scored candidates for a run, marking
// the ones in recommendedURLs. Stored body text is truncated.
func (s *Store) SaveScoredArticles(scored []core.ScoredArticle, recommendedURLs map[string]bool, runDate time.Time) error {
	query := `
	INSERT OR REPLACE INTO articles
	(url, title, source, text, embedding_score, llm_score, reason, recommended, run_date)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	day := runDate.Format("2006-01-02")
	for _, sa := range scored {
		text := core.Truncate(sa.Article.Text, storedTextLimit)
		recommended := 0
		if recommendedURLs[sa.Article.URL] {
			recommended = 1
		}
		_, err := s.db.Exec(query,
			sa.Article.URL,
			sa.Article.Title,
			sa.Article.Source,
			text,
			sa.EmbeddingScore,
			sa.LLMScore,
			sa.Reason,
			recommended,
			day,
		)
		if err != nil {
			return fmt.Errorf("failed to save article %s: %w", sa.Article.URL, err)
		}
	}
	return nil
}

// RunCount returns the number of distinct run dates in article history.
func (s *Store) RunCount() (int, error) {
	var count int
	err := s.db.QueryRow("SELECT COUNT(DISTINCT run_date) FROM articles").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count runs: %w", err)
	}
	return count, nil
}

// SourceStats returns the rolling statistics for a source, or zeroed
// stats if the source has not been seen.
func (s *Store) SourceStats(source string) (core.SourceStats, error) {
	stats := core.SourceStats{Source: source}
	err := s.db.QueryRow(
		"SELECT avg_comment_count, avg_score, article_count FROM source_stats WHERE source = ?",
		source,
	).Scan(&stats.AvgCommentCount, &stats.AvgScore, &stats.ArticleCount)
	if err == sql.ErrNoRows {
		return stats, nil
	}
	if err != nil {
		return stats, fmt.Errorf("failed to query source stats: %w", err)
	}
	return stats, nil
}

// UpdateSourceStats folds one observation into a source's rolling
// averages. The first observation seeds the average directly; later
// observations use an exponential moving average weighted 0.9 old /
// 0.1 new.
func (s *Store) UpdateSourceStats(source string, commentCount, score float64) error {
	stats, err := s.SourceStats(source)
	if err != nil {
		return err
	}

	if stats.ArticleCount == 0 {
		stats.AvgCommentCount = commentCount
		stats.AvgScore = score
	} else {
		stats.AvgCommentCount = 0.9*stats.AvgCommentCount + 0.1*commentCount
		stats.AvgScore = 0.9*stats.AvgScore + 0.1*score
	}

	_, err = s.db.Exec(
		`INSERT OR REPLACE INTO source_stats (source, avg_comment_count, avg_score, article_count)
		 VALUES (?, ?, ?, ?)`,
		source, stats.AvgCommentCount, stats.AvgScore, stats.ArticleCount+1,
	)
	if err != nil {
		return fmt.Errorf("failed to update source stats: %w", err)
	}
	return nil
}

// PreferenceEmbeddings returns the cached favorites entries in insert order.
func (s *Store) PreferenceEmbeddings() ([]core.PreferenceExample, error) {
	rows, err := s.db.Query("SELECT text, embedding FROM preference_embeddings ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to query preference embeddings: %w", err)
	}
	defer rows.Close()

	var examples []core.PreferenceExample
	for rows.Next() {
		var text string
		var blob []byte
		if err := rows.Scan(&text, &blob); err != nil {
			return nil, fmt.Errorf("failed to scan preference embedding: %w", err)
		}
		examples = append(examples, core.PreferenceExample{
			Text:      text,
			Embedding: BlobToEmbedding(blob),
		})
	}
	return examples, rows.Err()
}

// ReplacePreferenceEmbeddings atomically swaps the cached preference
// set for a fresh one (clear-then-insert in a single transaction).
func (s *Store) ReplacePreferenceEmbeddings(examples []core.PreferenceExample) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM preference_embeddings"); err != nil {
		return fmt.Errorf("failed to clear preference embeddings: %w", err)
	}
	for _, ex := range examples {
		_, err := tx.Exec(
			"INSERT INTO preference_embeddings (text, embedding) VALUES (?, ?)",
			ex.Text, EmbeddingToBlob(ex.Embedding),
		)
		if err != nil {
			return fmt.Errorf("failed to insert preference embedding: %w", err)
		}
	}
	return tx.Commit()
}

// SaveValidation appends one calibration record to the validation log.
func (s *Store) SaveValidation(record core.ValidationRecord) error {
	_, err := s.db.Exec(
		"INSERT INTO validation_log (id, url, embedding_score, llm_score, run_date) VALUES (?, ?, ?, ?, ?)",
		record.ID, record.URL, record.EmbeddingScore, record.LLMScore, record.RunDate.Format("2006-01-02"),
	)
	if err != nil {
		return fmt.Errorf("failed to save validation record: %w", err)
	}
	return nil
}

// RunArticle is one row of stored article history.
type RunArticle struct {
	URL            string
	Title          string
	Source         string
	EmbeddingScore float64
	LLMScore       float64
	Reason         string
	Recommended    bool
	RunDate        string
}

// LatestRun returns the article history rows from the most recent run,
// recommended first, ordered by LLM score descending.
func (s *Store) LatestRun() ([]RunArticle, error) {
	rows, err := s.db.Query(`
		SELECT url, title, source, embedding_score, llm_score, reason, recommended, run_date
		FROM articles
		WHERE run_date = (SELECT MAX(run_date) FROM articles)
		ORDER BY recommended DESC, llm_score DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query latest run: %w", err)
	}
	defer rows.Close()

	var results []RunArticle
	for rows.Next() {
		var ra RunArticle
		var recommended int
		if err := rows.Scan(&ra.URL, &ra.Title, &ra.Source,
			&ra.EmbeddingScore, &ra.LLMScore, &ra.Reason, &recommended, &ra.RunDate); err != nil {
			return nil, fmt.Errorf("failed to scan article row: %w", err)
		}
		ra.Recommended = recommended == 1
		results = append(results, ra)
	}
	return results, rows.Err()
}

// EmbeddingToBlob packs a vector as little-endian float32 bytes.
func EmbeddingToBlob(embedding []float64) []byte {
	blob := make([]byte, 4*len(embedding))
	for i, v := range embedding {
		binary.LittleEndian.PutUint32(blob[4*i:], math.Float32bits(float32(v)))
	}
	return blob
}

// BlobToEmbedding unpacks little-endian float32 bytes into a vector.
func BlobToEmbedding(blob []byte) []float64 {
	embedding := make([]float64, len(blob)/4)
	for i := range embedding {
		bits := binary.LittleEndian.Uint32(blob[4*i:])
		embedding[i] = float64(math.Float32frombits(bits))
	}
	return embedding
}
