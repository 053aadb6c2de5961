package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dukaan/backend/internal/domain"
	"dukaan/backend/internal/money"
)

func TestNoopReportCacheNeverHits(t *testing.T) {
	var c ReportCache = NoopReportCache{}
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "daily:2026-03-01", &domain.PeriodReport{Period: "daily"}, time.Minute))
	got, ok, err := c.Get(ctx, "daily:2026-03-01")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, got)
	assert.NoError(t, c.Invalidate(ctx))
}

func TestRedisReportCacheRoundTripAndInvalidate(t *testing.T) {
	addr := os.Getenv("DUKAAN_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("set DUKAAN_TEST_REDIS_ADDR to run redis integration test")
	}
	c := NewRedisReportCache(addr, os.Getenv("DUKAAN_TEST_REDIS_PASSWORD"), 0)
	t.Cleanup(func() { _ = c.Close() })
	ctx := context.Background()
	require.NoError(t, c.Ping(ctx))

	report := &domain.PeriodReport{Period: "monthly", SalesCount: 3, GrossSales: money.MustParse("12.50")}
	require.NoError(t, c.Set(ctx, "monthly:2026-02", report, time.Minute))

	got, ok, err := c.Get(ctx, "monthly:2026-02")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 3, got.SalesCount)
	assert.True(t, got.GrossSales.Equal(report.GrossSales))

	require.NoError(t, c.Invalidate(ctx))
	_, ok, err = c.Get(ctx, "monthly:2026-02")
	require.NoError(t, err)
	assert.False(t, ok)
}
