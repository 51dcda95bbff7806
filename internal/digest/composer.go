// Package digest composes periodic per-subscriber digests from clustered
// stories and hands them to the notifier.
package digest

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/dera1992/new-aggregator-app/internal/news"
)

// Subject line for every outbound digest.
const digestSubject = "Your Daily News Digest"

// Config controls digest composition.
type Config struct {
	// Window is the trailing window of clustered articles considered.
	Window time.Duration
	// MaxStories caps how many stories one digest lists.
	MaxStories int
}

// Composer renders and delivers digests for due subscribers.
type Composer struct {
	articles      news.ArticleStore
	subscriptions news.SubscriptionStore
	notifier      news.Notifier
	cfg           Config
	logger        *zap.Logger
	now           func() time.Time
}

// New constructs a Composer.
func New(
	articles news.ArticleStore,
	subscriptions news.SubscriptionStore,
	notifier news.Notifier,
	cfg Config,
	logger *zap.Logger,
) *Composer {
	if cfg.Window <= 0 {
		cfg.Window = 24 * time.Hour
	}
	if cfg.MaxStories <= 0 {
		cfg.MaxStories = 10
	}
	return &Composer{
		articles:      articles,
		subscriptions: subscriptions,
		notifier:      notifier,
		cfg:           cfg,
		logger:        logger,
		now:           time.Now,
	}
}

// SetClock overrides the time source, for tests.
func (c *Composer) SetClock(now func() time.Time) {
	c.now = now
}

// Run delivers digests to every subscriber whose configured time-of-day
// equals the current minute. Delivery is fire-and-forget; a notify failure
// is logged and does not fail the run.
func (c *Composer) Run(ctx context.Context) error {
	runStart := c.now().UTC()
	minute := runStart.Format("15:04")

	due, err := c.subscriptions.DueDigests(ctx, minute)
	if err != nil {
		return fmt.Errorf("select due subscriptions: %w", err)
	}
	if len(due) == 0 {
		return nil
	}

	cutoff := runStart.Add(-c.cfg.Window)
	sent := 0
	for _, sub := range due {
		articles, err := c.articles.ClusteredSince(ctx, cutoff, sub.Categories, sub.Sources)
		if err != nil {
			return fmt.Errorf("select stories for user %d: %w", sub.UserID, err)
		}
		stories := groupStories(articles, c.cfg.MaxStories)
		if len(stories) == 0 {
			continue
		}
		body := render(stories)
		if err := c.notifier.Notify(ctx, sub.Email, digestSubject, body); err != nil {
			c.logger.Warn("digest delivery failed",
				zap.Int64("user_id", sub.UserID), zap.Error(err))
			continue
		}
		sent++
	}

	c.logger.Info("digest pass complete",
		zap.String("minute", minute), zap.Int("due", len(due)), zap.Int("sent", sent))
	return nil
}

// groupStories folds articles into one story per cluster id. Articles
// arrive newest first, so the first member seen supplies the story's
// title, summary, and timestamp. Insertion order is kept so output is
// reproducible; stories are then sorted by newest member and capped.
func groupStories(articles []news.Article, max int) []news.Story {
	byCluster := make(map[string]*news.Story)
	var order []string

	for _, a := range articles {
		if a.ClusterID == nil {
			continue
		}
		id := *a.ClusterID
		story, ok := byCluster[id]
		if !ok {
			summary := ""
			if a.Summary != nil {
				summary = *a.Summary
			}
			story = &news.Story{
				ClusterID: id,
				Title:     a.Title,
				Summary:   summary,
				Newest:    a.CreatedAt,
			}
			byCluster[id] = story
			order = append(order, id)
		}
		story.Sources = append(story.Sources, a.SourceDomain)
	}

	stories := make([]news.Story, 0, len(order))
	for _, id := range order {
		stories = append(stories, *byCluster[id])
	}
	sort.SliceStable(stories, func(i, j int) bool {
		return stories[i].Newest.After(stories[j].Newest)
	})
	if len(stories) > max {
		stories = stories[:max]
	}
	return stories
}

// render produces the plain-text digest body.
func render(stories []news.Story) string {
	var b strings.Builder
	b.WriteString("Here is your daily news digest:\n")
	for _, story := range stories {
		b.WriteString(fmt.Sprintf("\n- %s\n  %s\n  Sources: %s\n",
			story.Title, story.Summary, strings.Join(uniqueSorted(story.Sources), ", ")))
	}
	return b.String()
}

func uniqueSorted(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	var out []string
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
