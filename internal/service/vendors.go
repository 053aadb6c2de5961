package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"dukaan/backend/internal/domain"
)

func (s *Service) CreateVendor(ctx context.Context, req domain.VendorRequest) (domain.Vendor, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.Vendor{}, invalid("vendor name is required")
	}

	created, err := s.repo.CreateVendor(ctx, domain.Vendor{
		Name:        name,
		PhoneNumber: strings.TrimSpace(req.PhoneNumber),
		Location:    strings.TrimSpace(req.Location),
		CreatedAt:   s.now(),
	})
	if err != nil {
		return domain.Vendor{}, err
	}

	s.logAudit(ctx, "vendor_create", "vendor", created.ID, fmt.Sprintf("name=%s", created.Name))
	return *created, nil
}

func (s *Service) ListVendors(ctx context.Context) ([]domain.Vendor, error) {
	return s.repo.ListVendors(ctx)
}

func (s *Service) GetVendor(ctx context.Context, id string) (domain.Vendor, error) {
	vendor, err := s.repo.GetVendor(ctx, strings.TrimSpace(id))
	if err != nil {
		return domain.Vendor{}, err
	}
	return *vendor, nil
}

// UpdateVendor changes contact details only; the aggregates belong to the
// purchase operations.
func (s *Service) UpdateVendor(ctx context.Context, id string, req domain.VendorRequest) (domain.Vendor, error) {
	existing, err := s.repo.GetVendor(ctx, strings.TrimSpace(id))
	if err != nil {
		return domain.Vendor{}, err
	}

	updated := *existing
	if name := strings.TrimSpace(req.Name); name != "" {
		updated.Name = name
	}
	if req.PhoneNumber != "" {
		updated.PhoneNumber = strings.TrimSpace(req.PhoneNumber)
	}
	if req.Location != "" {
		updated.Location = strings.TrimSpace(req.Location)
	}

	saved, err := s.repo.UpdateVendor(ctx, updated)
	if err != nil {
		return domain.Vendor{}, err
	}
	s.logAudit(ctx, "vendor_update", "vendor", saved.ID, fmt.Sprintf("name=%s", saved.Name))
	return *saved, nil
}

// DeleteVendor fails with ErrConflict while the vendor still has purchases.
func (s *Service) DeleteVendor(ctx context.Context, id string) error {
	if _, err := s.requireAdmin(ctx); err != nil {
		return err
	}
	id = strings.TrimSpace(id)
	if err := s.repo.DeleteVendor(ctx, id); err != nil {
		return err
	}
	s.logAudit(ctx, "vendor_delete", "vendor", id, "deleted")
	return nil
}

func (s *Service) ReconcileVendor(ctx context.Context, id string) (domain.VendorReconciliation, error) {
	result, err := s.repo.ReconcileVendor(ctx, strings.TrimSpace(id))
	if err != nil {
		return domain.VendorReconciliation{}, err
	}
	s.reportDrift(ctx, *result)
	return *result, nil
}

func (s *Service) ReconcileAllVendors(ctx context.Context) ([]domain.VendorReconciliation, error) {
	results, err := s.repo.ReconcileAllVendors(ctx)
	if err != nil {
		return nil, err
	}
	for _, result := range results {
		s.reportDrift(ctx, result)
	}
	return results, nil
}

func (s *Service) reportDrift(ctx context.Context, result domain.VendorReconciliation) {
	if !result.Drifted {
		return
	}
	s.logger.Warn("vendor aggregates drifted",
		zap.String("vendor_id", result.VendorID),
		zap.String("balance_before", result.Before.Balance.String()),
		zap.String("balance_after", result.After.Balance.String()),
	)
	s.afterMutation(ctx, "vendor_reconcile", "vendor", result.VendorID,
		fmt.Sprintf("balance=%s->%s,total=%s->%s", result.Before.Balance, result.After.Balance, result.Before.TotalAmount, result.After.TotalAmount))
}
