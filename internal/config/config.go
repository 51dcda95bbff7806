// Package config loads and validates aggregator configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	DB        DBConfig        `mapstructure:"db"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Harvester HarvesterConfig `mapstructure:"harvester"`
	Summarize SummarizeConfig `mapstructure:"summarize"`
	Cluster   ClusterConfig   `mapstructure:"cluster"`
	Digest    DigestConfig    `mapstructure:"digest"`
	Jobs      JobsConfig      `mapstructure:"jobs"`
	OpenAI    OpenAIConfig    `mapstructure:"openai"`
	Alerts    AlertsConfig    `mapstructure:"alerts"`
	Notifier  NotifierConfig  `mapstructure:"notifier"`
}

// ServerConfig controls the health/metrics HTTP server.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// DBConfig controls access to the relational database.
type DBConfig struct {
	DSN      string `mapstructure:"dsn"`
	MaxConns int32  `mapstructure:"max_conns"`
}

// RedisConfig points at the shared cache used for locks and metrics.
// An empty address runs the coordinator and monitoring in degraded
// single-process mode.
type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// FeedConfig is one (category, feed URL) pair harvested each run.
type FeedConfig struct {
	Category string `mapstructure:"category"`
	URL      string `mapstructure:"url"`
}

// HarvesterConfig governs feed ingestion and full-page fetching.
type HarvesterConfig struct {
	Feeds             []FeedConfig `mapstructure:"feeds"`
	FetchAllowDomains []string     `mapstructure:"fetch_allow_domains"`
	ConnectTimeoutSec int          `mapstructure:"connect_timeout_seconds"`
	ReadTimeoutSec    int          `mapstructure:"read_timeout_seconds"`
	ContentCap        int          `mapstructure:"content_cap"`
	FeedSummaryCap    int          `mapstructure:"feed_summary_cap"`
	UserAgent         string       `mapstructure:"user_agent"`
}

// SummarizeConfig governs the summarization worker.
type SummarizeConfig struct {
	BatchSize  int    `mapstructure:"batch_size"`
	Style      string `mapstructure:"style"`
	ContentCap int    `mapstructure:"content_cap"`
}

// ClusterConfig governs the clustering engine.
type ClusterConfig struct {
	WindowHours       int     `mapstructure:"window_hours"`
	DistanceThreshold float64 `mapstructure:"distance_threshold"`
}

// DigestConfig governs digest composition.
type DigestConfig struct {
	WindowHours int `mapstructure:"window_hours"`
	MaxStories  int `mapstructure:"max_stories"`
}

// JobConfig holds one stage's trigger interval and lock lease.
// The lease must outlast the stage's worst-case runtime while staying
// shorter than the interval; nothing enforces that relationship at runtime.
type JobConfig struct {
	IntervalMinutes int `mapstructure:"interval_minutes"`
	LeaseMinutes    int `mapstructure:"lease_minutes"`
}

// JobsConfig holds per-stage scheduling knobs.
type JobsConfig struct {
	Harvest   JobConfig `mapstructure:"harvest"`
	Summarize JobConfig `mapstructure:"summarize"`
	Cluster   JobConfig `mapstructure:"cluster"`
	Digest    JobConfig `mapstructure:"digest"`
}

// OpenAIConfig configures the generative text and embedding clients.
// An empty API key leaves both capabilities unconfigured.
type OpenAIConfig struct {
	APIKey         string `mapstructure:"api_key"`
	BaseURL        string `mapstructure:"base_url"`
	ChatModel      string `mapstructure:"chat_model"`
	EmbeddingModel string `mapstructure:"embedding_model"`
	TimeoutSec     int    `mapstructure:"timeout_seconds"`
}

// AlertsConfig controls operator alerting for failed/missed jobs.
type AlertsConfig struct {
	Email           string `mapstructure:"email"`
	ThrottleSeconds int    `mapstructure:"throttle_seconds"`
}

// NotifierConfig points at the outbound mail API.
// An empty endpoint downgrades delivery to log-only.
type NotifierConfig struct {
	Endpoint  string `mapstructure:"endpoint"`
	APIKey    string `mapstructure:"api_key"`
	FromEmail string `mapstructure:"from_email"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("AGGREGATOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("logging.development", false)
	v.SetDefault("db.max_conns", 4)
	v.SetDefault("harvester.feeds", []map[string]any{
		{"category": "Tech", "url": "https://rss.nytimes.com/services/xml/rss/nyt/Technology.xml"},
		{"category": "Business", "url": "https://www.reutersagency.com/feed/?best-topics=business"},
	})
	v.SetDefault("harvester.connect_timeout_seconds", 5)
	v.SetDefault("harvester.read_timeout_seconds", 10)
	v.SetDefault("harvester.content_cap", 5000)
	v.SetDefault("harvester.feed_summary_cap", 1500)
	v.SetDefault("harvester.user_agent", "news-aggregator-bot/0.1")
	v.SetDefault("summarize.batch_size", 10)
	v.SetDefault("summarize.style", "bullets-3")
	v.SetDefault("summarize.content_cap", 4000)
	v.SetDefault("cluster.window_hours", 24)
	v.SetDefault("cluster.distance_threshold", 0.15)
	v.SetDefault("digest.window_hours", 24)
	v.SetDefault("digest.max_stories", 10)
	v.SetDefault("jobs.harvest.interval_minutes", 20)
	v.SetDefault("jobs.harvest.lease_minutes", 15)
	v.SetDefault("jobs.summarize.interval_minutes", 22)
	v.SetDefault("jobs.summarize.lease_minutes", 20)
	v.SetDefault("jobs.cluster.interval_minutes", 25)
	v.SetDefault("jobs.cluster.lease_minutes", 20)
	v.SetDefault("jobs.digest.interval_minutes", 1)
	v.SetDefault("jobs.digest.lease_minutes", 10)
	v.SetDefault("openai.base_url", "https://api.openai.com/v1")
	v.SetDefault("openai.chat_model", "gpt-4o-mini")
	v.SetDefault("openai.embedding_model", "text-embedding-3-small")
	v.SetDefault("openai.timeout_seconds", 60)
	v.SetDefault("alerts.throttle_seconds", 1800)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if len(c.Harvester.Feeds) == 0 {
		return fmt.Errorf("harvester.feeds must not be empty")
	}
	if c.Harvester.ConnectTimeoutSec <= 0 || c.Harvester.ReadTimeoutSec <= 0 {
		return fmt.Errorf("harvester timeouts must be > 0")
	}
	if c.Summarize.BatchSize <= 0 {
		return fmt.Errorf("summarize.batch_size must be > 0")
	}
	if c.Cluster.DistanceThreshold <= 0 || c.Cluster.DistanceThreshold >= 1 {
		return fmt.Errorf("cluster.distance_threshold must be in (0, 1)")
	}
	for name, job := range map[string]JobConfig{
		"jobs.harvest":   c.Jobs.Harvest,
		"jobs.summarize": c.Jobs.Summarize,
		"jobs.cluster":   c.Jobs.Cluster,
		"jobs.digest":    c.Jobs.Digest,
	} {
		if job.IntervalMinutes <= 0 {
			return fmt.Errorf("%s.interval_minutes must be > 0", name)
		}
		if job.LeaseMinutes <= 0 {
			return fmt.Errorf("%s.lease_minutes must be > 0", name)
		}
	}
	return nil
}

// Interval converts the configured minutes to a duration.
func (j JobConfig) Interval() time.Duration {
	return time.Duration(j.IntervalMinutes) * time.Minute
}

// Lease converts the configured lease minutes to a duration.
func (j JobConfig) Lease() time.Duration {
	return time.Duration(j.LeaseMinutes) * time.Minute
}
