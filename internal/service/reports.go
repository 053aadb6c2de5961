package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"dukaan/backend/internal/domain"
	"dukaan/backend/internal/payment"
)

const (
	dayLayout  = "2006-01-02"
	timeLayout = time.RFC3339
)

func parseDay(raw string) (time.Time, error) {
	day, err := time.Parse(dayLayout, strings.TrimSpace(raw))
	if err != nil {
		return time.Time{}, invalid("invalid date %q, use YYYY-MM-DD", raw)
	}
	return day.UTC(), nil
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func (s *Service) DailyReport(ctx context.Context, date string) (domain.PeriodReport, error) {
	day := startOfDay(s.now())
	if strings.TrimSpace(date) != "" {
		parsed, err := parseDay(date)
		if err != nil {
			return domain.PeriodReport{}, err
		}
		day = parsed
	}
	return s.periodReport(ctx, "daily", "daily:"+day.Format(dayLayout), day, day.AddDate(0, 0, 1))
}

func (s *Service) MonthlyReport(ctx context.Context, year int, month int) (domain.PeriodReport, error) {
	if year < 1970 || month < 1 || month > 12 {
		return domain.PeriodReport{}, invalid("invalid month %d-%02d", year, month)
	}
	from := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	return s.periodReport(ctx, "monthly", fmt.Sprintf("monthly:%04d-%02d", year, month), from, from.AddDate(0, 1, 0))
}

func (s *Service) YearlyReport(ctx context.Context, year int) (domain.PeriodReport, error) {
	if year < 1970 {
		return domain.PeriodReport{}, invalid("invalid year %d", year)
	}
	from := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	return s.periodReport(ctx, "yearly", fmt.Sprintf("yearly:%04d", year), from, from.AddDate(1, 0, 0))
}

// periodReport builds the report for [from, to). Closed periods are served
// from the report cache; a period that is still running is always
// recomputed.
func (s *Service) periodReport(ctx context.Context, period string, key string, from time.Time, to time.Time) (domain.PeriodReport, error) {
	closed := !to.After(s.now())
	if closed {
		cached, ok, err := s.reports.Get(ctx, key)
		if err != nil {
			s.logger.Warn("report cache read failed", zap.String("key", key), zap.Error(err))
		} else if ok {
			return *cached, nil
		}
	}

	report, err := s.buildReport(ctx, period, from, to)
	if err != nil {
		return domain.PeriodReport{}, err
	}

	if closed {
		if err := s.reports.Set(ctx, key, &report, s.reportTTL); err != nil {
			s.logger.Warn("report cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
	return report, nil
}

func (s *Service) buildReport(ctx context.Context, period string, from time.Time, to time.Time) (domain.PeriodReport, error) {
	sales, err := s.repo.ListSales(ctx, domain.SaleFilter{From: &from, To: &to})
	if err != nil {
		return domain.PeriodReport{}, err
	}
	purchases, err := s.repo.ListPurchases(ctx, domain.PurchaseFilter{From: &from, To: &to})
	if err != nil {
		return domain.PeriodReport{}, err
	}
	expenses, err := s.repo.ListExpenses(ctx, domain.ExpenseFilter{From: &from, To: &to})
	if err != nil {
		return domain.PeriodReport{}, err
	}

	report := domain.PeriodReport{
		Period:      period,
		From:        from,
		To:          to,
		ByMethod:    map[domain.PaymentMethod]domain.MoneyTotals{},
		GeneratedAt: s.now(),
	}
	for _, sale := range sales {
		if sale.Status == payment.StatusCancelled {
			continue
		}
		report.SalesCount++
		report.GrossSales = report.GrossSales.Add(sale.GrandTotal)
		report.Collected = report.Collected.Add(sale.AmountPaid)
		report.Outstanding = report.Outstanding.Add(sale.RemainingBalance)
		byMethod := report.ByMethod[sale.PaymentMethod]
		byMethod.Add(sale.State)
		report.ByMethod[sale.PaymentMethod] = byMethod
	}
	for _, purchase := range purchases {
		report.PurchaseCount++
		report.PurchasesTotal = report.PurchasesTotal.Add(purchase.Total)
		report.PurchasesPaid = report.PurchasesPaid.Add(purchase.AmountPaid)
	}
	for _, expense := range expenses {
		report.ExpenseCount++
		report.ExpensesPaid = report.ExpensesPaid.Add(expense.AmountPaid)
	}
	report.Net = report.Collected.Sub(report.PurchasesPaid).Sub(report.ExpensesPaid)
	return report, nil
}
