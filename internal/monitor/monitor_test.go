package monitor

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dera1992/new-aggregator-app/internal/cache"
)

type countingNotifier struct {
	sent     []string
	subjects []string
	err      error
}

func (n *countingNotifier) Notify(_ context.Context, destination, subject, _ string) error {
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, destination)
	n.subjects = append(n.subjects, subject)
	return nil
}

func TestRecordOutcomesStampCacheKeys(t *testing.T) {
	t.Parallel()

	c := cache.NewMemoryCache()
	m := New(c, &countingNotifier{}, "ops@example.com", time.Hour, zap.NewNop())
	now := time.Unix(1700000000, 0)
	m.SetClock(func() time.Time { return now })
	ctx := context.Background()

	m.RecordRun(ctx, "harvest")
	m.RecordSuccess(ctx, "harvest")
	m.RecordFailure(ctx, "harvest", "feed exploded")
	m.RecordMissed(ctx, "harvest")

	want := strconv.FormatInt(now.Unix(), 10)
	for _, field := range []string{"last_run", "last_success", "last_failure", "last_missed"} {
		value, ok, err := c.Get(ctx, "monitoring:job:harvest:"+field)
		require.NoError(t, err)
		require.True(t, ok, field)
		require.Equal(t, want, value, field)
	}

	value, ok, err := c.Get(ctx, "monitoring:job:harvest:last_error")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "feed exploded", value)
}

func TestRecordWithoutCacheUsesLocalFallback(t *testing.T) {
	t.Parallel()

	m := New(nil, &countingNotifier{}, "", time.Hour, zap.NewNop())
	ctx := context.Background()

	m.RecordFailure(ctx, "digest", "smtp down")

	value, ok := m.getMetric(ctx, metricKey("digest", "last_error"))
	require.True(t, ok)
	require.Equal(t, "smtp down", value)
}

func TestAlertThrottleWindow(t *testing.T) {
	t.Parallel()

	notifier := &countingNotifier{}
	m := New(cache.NewMemoryCache(), notifier, "ops@example.com", 1800*time.Second, zap.NewNop())
	now := time.Unix(1700000000, 0)
	m.SetClock(func() time.Time { return now })
	ctx := context.Background()

	// First alert goes out.
	m.Alert(ctx, "harvest", "Job execution missed.", "")
	require.Len(t, notifier.sent, 1)
	require.Equal(t, "ops@example.com", notifier.sent[0])
	require.Equal(t, "[Aggregator] Job alert: harvest", notifier.subjects[0])

	// Within the window nothing more is sent.
	now = now.Add(1799 * time.Second)
	m.Alert(ctx, "harvest", "Job execution missed.", "")
	require.Len(t, notifier.sent, 1)

	// Past the window alerts resume.
	now = now.Add(2 * time.Second)
	m.Alert(ctx, "harvest", "Job execution missed.", "")
	require.Len(t, notifier.sent, 2)
}

func TestAlertThrottleIsPerStage(t *testing.T) {
	t.Parallel()

	notifier := &countingNotifier{}
	m := New(cache.NewMemoryCache(), notifier, "ops@example.com", time.Hour, zap.NewNop())
	ctx := context.Background()

	m.Alert(ctx, "harvest", "failed", "")
	m.Alert(ctx, "digest", "failed", "")
	require.Len(t, notifier.sent, 2)
}

func TestAlertWithoutDestinationOnlyLogs(t *testing.T) {
	t.Parallel()

	notifier := &countingNotifier{}
	m := New(cache.NewMemoryCache(), notifier, "", time.Hour, zap.NewNop())

	m.Alert(context.Background(), "harvest", "failed", "")
	require.Empty(t, notifier.sent)
}

func TestFailedDeliveryDoesNotConsumeThrottle(t *testing.T) {
	t.Parallel()

	notifier := &countingNotifier{err: context.DeadlineExceeded}
	m := New(cache.NewMemoryCache(), notifier, "ops@example.com", time.Hour, zap.NewNop())
	ctx := context.Background()

	m.Alert(ctx, "harvest", "failed", "")

	// The throttle stamp is only written after a successful send, so the
	// next attempt is not suppressed.
	notifier.err = nil
	m.Alert(ctx, "harvest", "failed", "")
	require.Len(t, notifier.sent, 1)
}
