// Package service holds the ledger operations of the shop: sales,
// purchases, receivables, expenses and the reports built from them. Every
// multi-entity mutation is delegated to one store call so it commits or
// fails as a whole.
package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"dukaan/backend/internal/cache"
	"dukaan/backend/internal/domain"
	"dukaan/backend/internal/restock"
	"dukaan/backend/internal/store"
	"dukaan/backend/internal/xid"
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

type Service struct {
	repo      store.Repository
	advisor   *restock.Advisor
	reports   cache.ReportCache
	reportTTL time.Duration
	logger    *zap.Logger
	now       func() time.Time
}

func New(repo store.Repository, advisor *restock.Advisor, reports cache.ReportCache, reportTTL time.Duration, logger *zap.Logger) *Service {
	if advisor == nil {
		advisor = restock.NewAdvisor(14, 7)
	}
	if reports == nil {
		reports = cache.NoopReportCache{}
	}
	if reportTTL <= 0 {
		reportTTL = 10 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Service{
		repo:      repo,
		advisor:   advisor,
		reports:   reports,
		reportTTL: reportTTL,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) requireAdmin(ctx context.Context) (domain.Actor, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleAdmin {
		return domain.Actor{}, forbidden("admin role required")
	}
	return actor, nil
}

func actorName(ctx context.Context) string {
	if actor, ok := ActorFromContext(ctx); ok && actor.Username != "" {
		return actor.Username
	}
	return "system"
}

// afterMutation writes the audit entry and drops cached reports. Neither
// failure undoes the committed mutation.
func (s *Service) afterMutation(ctx context.Context, action string, entityType string, entityID string, detail string) {
	s.logAudit(ctx, action, entityType, entityID, detail)
	if err := s.reports.Invalidate(ctx); err != nil {
		s.logger.Warn("report cache invalidation failed", zap.String("action", action), zap.Error(err))
	}
}

func (s *Service) logAudit(ctx context.Context, action string, entityType string, entityID string, detail string) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		actor = domain.Actor{Username: "system", Role: "system"}
	}

	if err := s.repo.CreateAuditLog(ctx, domain.AuditLog{
		ID:            xid.New("audit"),
		ActorUsername: actor.Username,
		ActorRole:     actor.Role,
		Action:        action,
		EntityType:    entityType,
		EntityID:      entityID,
		Detail:        detail,
		CreatedAt:     s.now(),
	}); err != nil {
		s.logger.Warn("failed to write audit log",
			zap.String("action", action),
			zap.String("entity", entityType+"/"+entityID),
			zap.Error(err),
		)
	}
}

// ListAuditLogs returns the entries of one UTC day, newest first. An empty
// date means the last 24 hours.
func (s *Service) ListAuditLogs(ctx context.Context, date string, limit int) ([]domain.AuditLog, error) {
	if _, err := s.requireAdmin(ctx); err != nil {
		return nil, err
	}
	if limit < 1 {
		limit = 100
	}

	from := s.now().Add(-24 * time.Hour)
	if date != "" {
		day, err := parseDay(date)
		if err != nil {
			return nil, err
		}
		from = day
	}
	return s.repo.ListAuditLogs(ctx, from, from.Add(24*time.Hour), limit)
}
