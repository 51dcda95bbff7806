// Package cluster groups recently summarized articles into stories by
// embedding similarity.
package cluster

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/dera1992/new-aggregator-app/internal/news"
)

// Config controls one clustering run.
type Config struct {
	// Window is the trailing creation-time window selecting the cohort.
	Window time.Duration
	// DistanceThreshold stops agglomeration; 0.15 distance corresponds to
	// 0.85 cosine similarity.
	DistanceThreshold float64
}

// Engine assigns cluster ids to the cohort of recent summarized articles.
type Engine struct {
	store    news.ArticleStore
	embedder news.Embedder
	cfg      Config
	logger   *zap.Logger
	now      func() time.Time
}

// New constructs an Engine. A nil embedder means the embedding capability
// is unconfigured; runs with enough candidates then fail with ErrUnavailable.
func New(store news.ArticleStore, embedder news.Embedder, cfg Config, logger *zap.Logger) *Engine {
	if cfg.Window <= 0 {
		cfg.Window = 24 * time.Hour
	}
	if cfg.DistanceThreshold <= 0 {
		cfg.DistanceThreshold = 0.15
	}
	return &Engine{
		store:    store,
		embedder: embedder,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
}

// SetClock overrides the time source, for tests.
func (e *Engine) SetClock(now func() time.Time) {
	e.now = now
}

// Run clusters the current cohort. Cluster assignment is all-or-nothing:
// an embedding failure aborts the run with no partial commit. Articles
// already carrying a cluster id from a prior run are reassigned.
func (e *Engine) Run(ctx context.Context) error {
	runStart := e.now().UTC()
	cutoff := runStart.Add(-e.cfg.Window)

	cohort, err := e.store.SummarizedSince(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("select cohort: %w", err)
	}
	if len(cohort) < 2 {
		e.logger.Info("not enough articles to cluster", zap.Int("count", len(cohort)))
		return nil
	}
	if e.embedder == nil {
		return fmt.Errorf("cluster %d articles: %w", len(cohort), news.ErrUnavailable)
	}

	// Title plus summary gives the embedding the most context.
	texts := make([]string, len(cohort))
	for i, a := range cohort {
		summary := ""
		if a.Summary != nil {
			summary = *a.Summary
		}
		texts[i] = a.Title + ". " + summary
	}

	vectors, err := e.embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed cohort: %w", err)
	}
	if len(vectors) != len(cohort) {
		return fmt.Errorf("embedder returned %d vectors for %d articles", len(vectors), len(cohort))
	}

	labels := agglomerate(distanceMatrix(vectors), e.cfg.DistanceThreshold)

	// The run epoch prefixes every id so separate runs never collide.
	epoch := runStart.Unix()
	assignments := make(map[int64]string, len(cohort))
	groups := make(map[int]struct{})
	for i, a := range cohort {
		assignments[a.ID] = fmt.Sprintf("%d-%d", epoch, labels[i])
		groups[labels[i]] = struct{}{}
	}

	if err := e.store.AssignClusters(ctx, assignments); err != nil {
		return fmt.Errorf("persist cluster assignments: %w", err)
	}

	e.logger.Info("clustering run complete",
		zap.Int("articles", len(cohort)), zap.Int("stories", len(groups)))
	return nil
}
