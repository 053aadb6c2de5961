package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"dukaan/backend/internal/domain"
	"dukaan/backend/internal/payment"
)

// ListReceivables returns open sales that still have a balance, optionally
// narrowed by customer name, phone or sale number.
func (s *Service) ListReceivables(ctx context.Context, search string) ([]domain.Sale, error) {
	return s.repo.ListSales(ctx, domain.SaleFilter{OpenOnly: true, Search: search})
}

func (s *Service) ReceivableSummary(ctx context.Context) (domain.ReceivableSummary, error) {
	sales, err := s.repo.ListSales(ctx, domain.SaleFilter{OpenOnly: true})
	if err != nil {
		return domain.ReceivableSummary{}, err
	}

	summary := domain.ReceivableSummary{
		ByStatus:        map[payment.Status]domain.MoneyTotals{},
		ByPaymentMethod: map[domain.PaymentMethod]domain.MoneyTotals{},
	}
	for i, sale := range sales {
		summary.Totals.Add(sale.State)

		byStatus := summary.ByStatus[sale.Status]
		byStatus.Add(sale.State)
		summary.ByStatus[sale.Status] = byStatus

		byMethod := summary.ByPaymentMethod[sale.PaymentMethod]
		byMethod.Add(sale.State)
		summary.ByPaymentMethod[sale.PaymentMethod] = byMethod

		if summary.Oldest == nil || sale.CreatedAt.Before(summary.Oldest.CreatedAt) {
			summary.Oldest = &sales[i]
		}
	}
	return summary, nil
}

// RefreshOverdue marks unpaid pending sales past their due date OVERDUE.
// It runs on a ticker as well as on demand.
func (s *Service) RefreshOverdue(ctx context.Context) (int, error) {
	marked, err := s.repo.MarkOverdue(ctx, s.now())
	if err != nil {
		return 0, err
	}
	if marked > 0 {
		s.logger.Info("sales marked overdue", zap.Int("count", marked))
		s.afterMutation(ctx, "receivables_overdue", "sale", "", fmt.Sprintf("marked=%d", marked))
	}
	return marked, nil
}
