// Package pipeline orchestrates a full recommendation run from feed
// fetch to digest delivery.
package pipeline

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"readingrecs/internal/config"
	"readingrecs/internal/core"
	"readingrecs/internal/email"
	"readingrecs/internal/feeds"
	"readingrecs/internal/fetch"
	"readingrecs/internal/llm"
	"readingrecs/internal/logger"
	"readingrecs/internal/popularity"
	"readingrecs/internal/profile"
	"readingrecs/internal/rank"
	"readingrecs/internal/score"
	"readingrecs/internal/store"
)

// Pipeline wires the run stages together.
type Pipeline struct {
	cfg    *config.Config
	store  *store.Store
	llm    *llm.Client
	sender *email.Sender

	// dryRun renders the digest without sending it.
	dryRun bool
}

// New builds a pipeline from loaded configuration. The caller owns the
// store and must Close it after Run returns.
func New(cfg *config.Config, st *store.Store, client *llm.Client, dryRun bool) *Pipeline {
	sender := email.NewSender(
		cfg.Email.SMTPHost, cfg.Email.SMTPPort,
		cfg.Email.Username, cfg.Email.Password,
		cfg.Email.FromAddress, cfg.Email.ToAddress,
	)
	return &Pipeline{cfg: cfg, store: st, llm: client, sender: sender, dryRun: dryRun}
}

// Run executes one full recommendation cycle and returns the rendered
// digest HTML.
func (p *Pipeline) Run(ctx context.Context) (string, error) {
	runDate := time.Now().UTC()

	candidates, err := p.gatherCandidates()
	if err != nil {
		return "", err
	}
	if len(candidates) == 0 {
		logger.Info("No new articles, sending empty digest")
		return p.deliver(nil, runDate)
	}

	fetchTimeout := parseDuration(p.cfg.Feeds.Timeout, 30*time.Second)
	fetcher := fetch.NewFetcher(&http.Client{Timeout: fetchTimeout})
	candidates = fetcher.Backfill(candidates)

	popTimeout := parseDuration(p.cfg.Popularity.Timeout, 10*time.Second)
	enricher := popularity.NewEnricher(
		&http.Client{Timeout: popTimeout},
		p.store,
		p.cfg.Popularity.HNBaseURL,
		p.cfg.Popularity.RedditBaseURL,
	)
	candidates, err = enricher.Enrich(candidates)
	if err != nil {
		return "", err
	}

	profileStore := profile.NewStore(p.cfg.App.FavoritesPath, p.llm, p.store)
	filter := rank.NewFilter(p.llm, profileStore)
	top, err := filter.FilterTop(ctx, candidates, p.cfg.Selection.EmbeddingTopN)
	if err != nil {
		return "", err
	}

	scorer := score.NewScorer(
		p.llm, p.store, profileStore.FewShot(),
		p.cfg.Selection.ScoreThreshold,
		p.cfg.Selection.MinArticles,
		p.cfg.Selection.MaxArticles,
	)
	selected := scorer.ScoreAndSelect(ctx, top)
	logger.Info("Selection complete", "candidates", len(top), "selected", len(selected))

	recommended := make(map[string]bool, len(selected))
	for _, sa := range selected {
		recommended[sa.Article.URL] = true
	}
	if err := p.store.SaveScoredArticles(top, recommended, runDate); err != nil {
		return "", fmt.Errorf("failed to save run results: %w", err)
	}

	return p.deliver(selected, runDate)
}

// gatherCandidates fetches all feeds and drops previously recommended
// articles.
func (p *Pipeline) gatherCandidates() ([]core.Article, error) {
	sources, err := feeds.ParseFeedsFile(p.cfg.App.FeedsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load feeds file: %w", err)
	}
	logger.Info("Loaded feed sources", "count", len(sources))

	timeout := parseDuration(p.cfg.Feeds.Timeout, 30*time.Second)
	manager := feeds.NewManager(timeout, p.cfg.Feeds.LookbackDays, p.cfg.Feeds.MaxEntries)
	articles := manager.FetchAll(sources)
	logger.Info("Fetched feed entries", "count", len(articles))

	seen, err := p.store.PreviouslyRecommended()
	if err != nil {
		return nil, fmt.Errorf("failed to load recommendation history: %w", err)
	}
	fresh := articles[:0]
	for _, a := range articles {
		if !seen[a.URL] {
			fresh = append(fresh, a)
		}
	}
	if dropped := len(articles) - len(fresh); dropped > 0 {
		logger.Info("Excluded previously recommended articles", "count", dropped)
	}
	return fresh, nil
}

// deliver renders the digest and sends it unless dry-run is set.
func (p *Pipeline) deliver(selected []core.ScoredArticle, runDate time.Time) (string, error) {
	html, err := email.RenderDigest(selected, runDate)
	if err != nil {
		return "", err
	}
	if p.dryRun {
		logger.Info("Dry run, skipping email delivery")
		return html, nil
	}
	if err := p.sender.Send(email.Subject(runDate), html); err != nil {
		return "", err
	}
	return html, nil
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
