package cache

import (
	"context"
	"time"

	"dukaan/backend/internal/domain"
)

// ReportCache holds computed period reports. Invalidate drops every entry;
// it is called after each ledger mutation.
type ReportCache interface {
	Get(ctx context.Context, key string) (*domain.PeriodReport, bool, error)
	Set(ctx context.Context, key string, value *domain.PeriodReport, ttl time.Duration) error
	Invalidate(ctx context.Context) error
}

type NoopReportCache struct{}

func (NoopReportCache) Get(_ context.Context, _ string) (*domain.PeriodReport, bool, error) {
	return nil, false, nil
}

func (NoopReportCache) Set(_ context.Context, _ string, _ *domain.PeriodReport, _ time.Duration) error {
	return nil
}

func (NoopReportCache) Invalidate(_ context.Context) error {
	return nil
}
