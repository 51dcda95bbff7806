// Package summarize enriches unprocessed articles with generated summaries.
package summarize

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/dera1992/new-aggregator-app/internal/news"
)

// Config controls one summarization pass.
type Config struct {
	BatchSize  int
	Style      news.SummaryStyle
	ContentCap int
}

// Worker generates summaries for articles that lack one.
type Worker struct {
	store     news.ArticleStore
	generator news.TextGenerator
	cfg       Config
	logger    *zap.Logger
	now       func() time.Time
}

// New constructs a Worker. A nil generator means the generative capability
// is unconfigured; runs with pending work then fail with ErrUnavailable.
func New(store news.ArticleStore, generator news.TextGenerator, cfg Config, logger *zap.Logger) *Worker {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 10
	}
	if cfg.Style == "" {
		cfg.Style = news.StyleBullets3
	}
	if cfg.ContentCap <= 0 {
		cfg.ContentCap = 4000
	}
	return &Worker{
		store:     store,
		generator: generator,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
	}
}

// SetClock overrides the time source, for tests.
func (w *Worker) SetClock(now func() time.Time) {
	w.now = now
}

// Run summarizes one batch of unsummarized articles. Each article is
// attempted independently; a generation failure is recorded on that row
// and never aborts the batch. An empty selection is a successful no-op
// with zero generator calls.
func (w *Worker) Run(ctx context.Context) error {
	batch, err := w.store.Unsummarized(ctx, w.cfg.BatchSize)
	if err != nil {
		return fmt.Errorf("select unsummarized: %w", err)
	}
	if len(batch) == 0 {
		w.logger.Info("no articles pending summarization")
		return nil
	}
	if w.generator == nil {
		return fmt.Errorf("summarize %d pending articles: %w", len(batch), news.ErrUnavailable)
	}

	w.logger.Info("summarizing articles", zap.Int("count", len(batch)))

	succeeded := 0
	for _, article := range batch {
		system, user := buildPrompt(w.cfg.Style, article.RawContent, w.cfg.ContentCap)
		summary, genErr := w.generator.Generate(ctx, system, user)
		at := w.now().UTC()

		if genErr != nil {
			w.logger.Warn("summarization failed",
				zap.Int64("article_id", article.ID), zap.Error(genErr))
			if storeErr := w.store.SetSummaryError(ctx, article.ID, genErr.Error(), at); storeErr != nil {
				w.logger.Error("record summary error failed",
					zap.Int64("article_id", article.ID), zap.Error(storeErr))
			}
			continue
		}

		if storeErr := w.store.SetSummary(ctx, article.ID, summary, w.cfg.Style, at); storeErr != nil {
			w.logger.Error("record summary failed",
				zap.Int64("article_id", article.ID), zap.Error(storeErr))
			continue
		}
		succeeded++
	}

	w.logger.Info("summarization pass complete",
		zap.Int("succeeded", succeeded), zap.Int("failed", len(batch)-succeeded))
	return nil
}
