// Package app initializes and holds long-lived application services,
// acting as a dependency injection container.
package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/dera1992/new-aggregator-app/internal/api"
	"github.com/dera1992/new-aggregator-app/internal/cache"
	"github.com/dera1992/new-aggregator-app/internal/cluster"
	"github.com/dera1992/new-aggregator-app/internal/config"
	"github.com/dera1992/new-aggregator-app/internal/digest"
	"github.com/dera1992/new-aggregator-app/internal/harvest"
	"github.com/dera1992/new-aggregator-app/internal/llm"
	"github.com/dera1992/new-aggregator-app/internal/monitor"
	"github.com/dera1992/new-aggregator-app/internal/news"
	"github.com/dera1992/new-aggregator-app/internal/notify"
	"github.com/dera1992/new-aggregator-app/internal/sched"
	"github.com/dera1992/new-aggregator-app/internal/storage/postgres"
	"github.com/dera1992/new-aggregator-app/internal/summarize"
)

// Stage identifiers used for lock keys, metrics, and alerts.
const (
	StageHarvest   = "scrape_raw_data"
	StageSummarize = "generate_ai_summaries"
	StageCluster   = "cluster_recent_articles"
	StageDigest    = "send_daily_digests"
)

// App holds all the shared, long-lived services for the aggregator.
type App struct {
	logger      *zap.Logger
	cfg         config.Config
	sharedCache news.Cache
	redisCache  *cache.RedisCache
	articles    *postgres.ArticleStore
	coordinator *sched.Coordinator
	server      *api.Server
}

// New creates and initializes the application from configuration.
// It fails fast when a critical service cannot be initialized; the
// shared cache and the generative/embedding capabilities are optional
// and their absence selects the documented degraded modes.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	a := &App{logger: logger, cfg: cfg}

	// Shared cache. Absent address => degraded single-process mode for
	// locking and non-durable in-process metrics.
	if cfg.Redis.Address != "" {
		redisCache, err := cache.NewRedisCache(ctx, cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return nil, fmt.Errorf("init shared cache: %w", err)
		}
		a.redisCache = redisCache
		a.sharedCache = redisCache
		logger.Info("shared cache connected", zap.String("address", cfg.Redis.Address))
	} else {
		logger.Warn("no shared cache configured: locks disabled, metrics are in-process only")
	}

	// Persisted store.
	pool, err := postgres.NewPool(ctx, postgres.PoolConfig{
		DSN:      cfg.DB.DSN,
		MaxConns: cfg.DB.MaxConns,
	})
	if err != nil {
		return nil, fmt.Errorf("init postgres: %w", err)
	}
	articles, err := postgres.NewArticleStore(pool)
	if err != nil {
		return nil, fmt.Errorf("init article store: %w", err)
	}
	a.articles = articles
	subscriptions, err := postgres.NewSubscriptionStore(pool)
	if err != nil {
		return nil, fmt.Errorf("init subscription store: %w", err)
	}

	// Optional generative/embedding capability. llm.New returns nil
	// without an API key; stage bodies branch on that.
	model := llm.New(llm.Config{
		APIKey:         cfg.OpenAI.APIKey,
		BaseURL:        cfg.OpenAI.BaseURL,
		ChatModel:      cfg.OpenAI.ChatModel,
		EmbeddingModel: cfg.OpenAI.EmbeddingModel,
		Timeout:        time.Duration(cfg.OpenAI.TimeoutSec) * time.Second,
	})
	var generator news.TextGenerator
	var embedder news.Embedder
	if model != nil {
		generator = model
		embedder = model
	} else {
		logger.Warn("no model API key configured: summarization and clustering will not run")
	}

	// Notification capability.
	var notifier news.Notifier
	if cfg.Notifier.Endpoint != "" {
		notifier = notify.NewMailNotifier(cfg.Notifier.Endpoint, cfg.Notifier.APIKey, cfg.Notifier.FromEmail)
	} else {
		logger.Warn("no mail API configured: notifications are log-only")
		notifier = notify.NewLogNotifier(logger)
	}

	monitor.InitMetrics()
	mon := monitor.New(
		a.sharedCache,
		notifier,
		cfg.Alerts.Email,
		time.Duration(cfg.Alerts.ThrottleSeconds)*time.Second,
		logger,
	)

	// Stage bodies.
	feeds := make([]news.Feed, 0, len(cfg.Harvester.Feeds))
	for _, f := range cfg.Harvester.Feeds {
		feeds = append(feeds, news.Feed{Category: f.Category, URL: f.URL})
	}
	connectTimeout := time.Duration(cfg.Harvester.ConnectTimeoutSec) * time.Second
	readTimeout := time.Duration(cfg.Harvester.ReadTimeoutSec) * time.Second

	harvester := harvest.New(
		articles,
		harvest.NewGofeedSource(connectTimeout+readTimeout, cfg.Harvester.UserAgent),
		harvest.NewHTTPFetcher(connectTimeout, readTimeout, cfg.Harvester.UserAgent),
		harvest.Config{
			Feeds:          feeds,
			AllowDomains:   cfg.Harvester.FetchAllowDomains,
			ContentCap:     cfg.Harvester.ContentCap,
			FeedSummaryCap: cfg.Harvester.FeedSummaryCap,
		},
		logger,
	)

	worker := summarize.New(articles, generator, summarize.Config{
		BatchSize:  cfg.Summarize.BatchSize,
		Style:      news.SummaryStyle(cfg.Summarize.Style),
		ContentCap: cfg.Summarize.ContentCap,
	}, logger)

	engine := cluster.New(articles, embedder, cluster.Config{
		Window:            time.Duration(cfg.Cluster.WindowHours) * time.Hour,
		DistanceThreshold: cfg.Cluster.DistanceThreshold,
	}, logger)

	composer := digest.New(articles, subscriptions, notifier, digest.Config{
		Window:     time.Duration(cfg.Digest.WindowHours) * time.Hour,
		MaxStories: cfg.Digest.MaxStories,
	}, logger)

	// Coordinator.
	coordinator := sched.New(a.sharedCache, mon, logger)
	stages := []sched.Stage{
		{ID: StageHarvest, Interval: cfg.Jobs.Harvest.Interval(), Lease: cfg.Jobs.Harvest.Lease(), Run: harvester.Run},
		{ID: StageSummarize, Interval: cfg.Jobs.Summarize.Interval(), Lease: cfg.Jobs.Summarize.Lease(), Run: worker.Run},
		{ID: StageCluster, Interval: cfg.Jobs.Cluster.Interval(), Lease: cfg.Jobs.Cluster.Lease(), Run: engine.Run},
		{ID: StageDigest, Interval: cfg.Jobs.Digest.Interval(), Lease: cfg.Jobs.Digest.Lease(), Run: composer.Run},
	}
	for _, stage := range stages {
		if err := coordinator.Register(stage); err != nil {
			return nil, fmt.Errorf("register stage: %w", err)
		}
	}
	a.coordinator = coordinator
	a.server = api.NewServer(cfg.Server.Port, logger)

	logger.Info("application services initialized")
	return a, nil
}

// Run starts the coordinator and the HTTP server and blocks until ctx is
// canceled, then shuts both down.
func (a *App) Run(ctx context.Context) error {
	a.coordinator.Start()

	serverErr := make(chan error, 1)
	go func() { serverErr <- a.server.Start() }()

	select {
	case <-ctx.Done():
	case err := <-serverErr:
		if err != nil {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	a.coordinator.Stop(shutdownCtx)
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		a.logger.Warn("http server shutdown failed", zap.Error(err))
	}
	return nil
}

// Close releases held resources.
func (a *App) Close() {
	if a.articles != nil {
		a.articles.Close()
	}
	if a.redisCache != nil {
		if err := a.redisCache.Close(); err != nil {
			a.logger.Warn("close shared cache failed", zap.Error(err))
		}
	}
	_ = a.logger.Sync()
}
