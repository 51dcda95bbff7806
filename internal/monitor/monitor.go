package monitor

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/dera1992/new-aggregator-app/internal/news"
)

// defaultThrottle is the minimum interval between alerts for one stage.
const defaultThrottle = 1800 * time.Second

// Monitor records stage metrics to the shared cache when one is present,
// else to an in-process map. The in-process fallback does not survive a
// restart; that is a documented degraded mode, not an error.
type Monitor struct {
	cache     news.Cache
	notifier  news.Notifier
	alertDest string
	throttle  time.Duration
	logger    *zap.Logger
	now       func() time.Time

	mu    sync.Mutex
	local map[string]string
}

// New constructs a Monitor. cache may be nil (in-process fallback);
// an empty alertDest downgrades alerting to log-only.
func New(
	cache news.Cache,
	notifier news.Notifier,
	alertDest string,
	throttle time.Duration,
	logger *zap.Logger,
) *Monitor {
	if throttle <= 0 {
		throttle = defaultThrottle
	}
	return &Monitor{
		cache:     cache,
		notifier:  notifier,
		alertDest: alertDest,
		throttle:  throttle,
		logger:    logger,
		now:       time.Now,
		local:     make(map[string]string),
	}
}

// SetClock overrides the time source, for tests exercising the throttle.
func (m *Monitor) SetClock(now func() time.Time) {
	m.now = now
}

func metricKey(stage, field string) string {
	return fmt.Sprintf("monitoring:job:%s:%s", stage, field)
}

func (m *Monitor) setMetric(ctx context.Context, key, value string) {
	if m.cache != nil {
		if err := m.cache.Set(ctx, key, value); err != nil {
			m.logger.Warn("record metric failed", zap.String("key", key), zap.Error(err))
		}
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.local[key] = value
}

func (m *Monitor) getMetric(ctx context.Context, key string) (string, bool) {
	if m.cache != nil {
		value, ok, err := m.cache.Get(ctx, key)
		if err != nil {
			m.logger.Warn("read metric failed", zap.String("key", key), zap.Error(err))
			return "", false
		}
		return value, ok
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	value, ok := m.local[key]
	return value, ok
}

func (m *Monitor) stamp() string {
	return strconv.FormatInt(m.now().Unix(), 10)
}

// RecordRun stamps the start of a stage run.
func (m *Monitor) RecordRun(ctx context.Context, stage string) {
	m.setMetric(ctx, metricKey(stage, "last_run"), m.stamp())
	countRun(stage, "run")
}

// RecordSuccess stamps a successful stage run.
func (m *Monitor) RecordSuccess(ctx context.Context, stage string) {
	m.setMetric(ctx, metricKey(stage, "last_success"), m.stamp())
	countRun(stage, "success")
}

// RecordFailure stamps a failed stage run with its error message.
func (m *Monitor) RecordFailure(ctx context.Context, stage, message string) {
	m.setMetric(ctx, metricKey(stage, "last_failure"), m.stamp())
	m.setMetric(ctx, metricKey(stage, "last_error"), message)
	countRun(stage, "failure")
}

// RecordMissed stamps a trigger that could not start execution.
func (m *Monitor) RecordMissed(ctx context.Context, stage string) {
	m.setMetric(ctx, metricKey(stage, "last_missed"), m.stamp())
	countRun(stage, "missed")
}

// RecordSkipped counts a trigger skipped on lock contention. Contention is
// not an error; nothing is stamped in the metric store.
func (m *Monitor) RecordSkipped(stage string) {
	countRun(stage, "skipped")
}

// Alert sends an operator notification for the stage unless one was sent
// within the throttle window. With no destination configured it only logs.
func (m *Monitor) Alert(ctx context.Context, stage, summary, detail string) {
	if m.alertDest == "" || m.notifier == nil {
		m.logger.Warn("alert not sent: no alert destination configured",
			zap.String("stage", stage), zap.String("summary", summary))
		return
	}

	throttleKey := metricKey(stage, "last_alert")
	now := m.now()
	if raw, ok := m.getMetric(ctx, throttleKey); ok {
		if last, err := strconv.ParseInt(raw, 10, 64); err == nil {
			if now.Sub(time.Unix(last, 0)) < m.throttle {
				m.logger.Info("alert suppressed by throttle window",
					zap.String("stage", stage), zap.Duration("throttle", m.throttle))
				countAlertSuppressed(stage)
				return
			}
		}
	}

	body := fmt.Sprintf("Job: %s\nSummary: %s", stage, summary)
	if detail != "" {
		body += "\n\n" + detail
	}
	subject := fmt.Sprintf("[Aggregator] Job alert: %s", stage)

	if err := m.notifier.Notify(ctx, m.alertDest, subject, body); err != nil {
		m.logger.Error("alert delivery failed", zap.String("stage", stage), zap.Error(err))
		return
	}
	m.setMetric(ctx, throttleKey, strconv.FormatInt(now.Unix(), 10))
	countAlertSent(stage)
}
