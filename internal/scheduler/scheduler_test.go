package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dumpkeep/internal/config"
	apperrors "dumpkeep/internal/errors"
)

func TestParseRule_DefaultsToDailyAtTwo(t *testing.T) {
	rule, err := ParseRule(config.Schedule{})
	require.NoError(t, err)
	assert.Equal(t, "0 2 * * *", rule.Spec)

	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.Local)
	next := rule.NextDueTime(now)
	assert.Equal(t, time.Date(2024, 6, 2, 2, 0, 0, 0, time.Local), next)
}

func TestParseRule_DailyAt(t *testing.T) {
	rule, err := ParseRule(config.Schedule{Interval: "daily", At: "23:30"})
	require.NoError(t, err)

	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.Local)
	next := rule.NextDueTime(now)
	assert.Equal(t, time.Date(2024, 6, 1, 23, 30, 0, 0, time.Local), next)
}

func TestParseRule_Hourly(t *testing.T) {
	rule, err := ParseRule(config.Schedule{Interval: "hourly", At: "00:15"})
	require.NoError(t, err)

	now := time.Date(2024, 6, 1, 12, 20, 0, 0, time.Local)
	next := rule.NextDueTime(now)
	assert.Equal(t, time.Date(2024, 6, 1, 13, 15, 0, 0, time.Local), next)
}

func TestParseRule_Weekly(t *testing.T) {
	rule, err := ParseRule(config.Schedule{Interval: "weekly", At: "03:00"})
	require.NoError(t, err)

	// 2024-06-01 is a Saturday; next Sunday 03:00 is June 2nd.
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.Local)
	next := rule.NextDueTime(now)
	assert.Equal(t, time.Date(2024, 6, 2, 3, 0, 0, 0, time.Local), next)
	assert.Equal(t, time.Sunday, next.Weekday())
}

func TestParseRule_DurationInterval(t *testing.T) {
	rule, err := ParseRule(config.Schedule{Interval: "6h"})
	require.NoError(t, err)
	assert.Equal(t, "@every 6h0m0s", rule.Spec)

	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.Local)
	assert.Equal(t, now.Add(6*time.Hour), rule.NextDueTime(now))
}

func TestParseRule_CronExpression(t *testing.T) {
	rule, err := ParseRule(config.Schedule{Cron: "30 4 * * 1"})
	require.NoError(t, err)

	// Cron wins even when interval is also set.
	rule2, err := ParseRule(config.Schedule{Cron: "30 4 * * 1", Interval: "hourly"})
	require.NoError(t, err)
	assert.Equal(t, rule.Spec, rule2.Spec)

	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.Local) // Saturday
	next := rule.NextDueTime(now)
	assert.Equal(t, time.Monday, next.Weekday())
	assert.Equal(t, 4, next.Hour())
	assert.Equal(t, 30, next.Minute())
}

func TestParseRule_Timezone(t *testing.T) {
	rule, err := ParseRule(config.Schedule{At: "02:00", Timezone: "UTC"})
	require.NoError(t, err)

	now := time.Date(2024, 6, 1, 1, 0, 0, 0, time.UTC)
	next := rule.NextDueTime(now)
	assert.Equal(t, time.Date(2024, 6, 1, 2, 0, 0, 0, time.UTC), next)
}

func TestParseRule_NextIsPure(t *testing.T) {
	rule, err := ParseRule(config.Schedule{Interval: "daily"})
	require.NoError(t, err)

	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.Local)
	assert.Equal(t, rule.NextDueTime(now), rule.NextDueTime(now))
}

func TestParseRule_Invalid(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.Schedule
	}{
		{"bad timezone", config.Schedule{Timezone: "Mars/Olympus"}},
		{"bad cron", config.Schedule{Cron: "not a cron"}},
		{"bad interval", config.Schedule{Interval: "fortnightly"}},
		{"bad at", config.Schedule{At: "25:99"}},
		{"sub-minute interval", config.Schedule{Interval: "10s"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseRule(tt.cfg)
			require.Error(t, err)
			assert.True(t, apperrors.IsType(err, apperrors.TypeConfig))
		})
	}
}

func TestScheduler_RunsOnTick(t *testing.T) {
	rule, err := ParseRule(config.Schedule{Interval: "1m"})
	require.NoError(t, err)
	// Shrink the tick so the test does not wait a minute.
	rule.Spec = "@every 50ms"

	var runs atomic.Int32
	s, err := New(rule, func(ctx context.Context) {
		runs.Add(1)
	}, nil)
	require.NoError(t, err)

	s.Start()
	time.Sleep(180 * time.Millisecond)
	<-s.Stop().Done()

	assert.GreaterOrEqual(t, runs.Load(), int32(2))
}
