package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"dukaan/backend/internal/domain"
	"dukaan/backend/internal/payment"
)

func (s *Service) CreateExpense(ctx context.Context, req domain.ExpenseRequest) (domain.Expense, error) {
	method, ok := domain.ParsePaymentMethod(req.PaymentMethod)
	if !ok {
		return domain.Expense{}, invalid("unknown payment method %q", req.PaymentMethod)
	}
	now := s.now()
	state, err := payment.Initial(req.AmountDue, req.AmountPaid, decimal.Zero, req.DueDate, now)
	if err != nil {
		return domain.Expense{}, err
	}

	created, err := s.repo.CreateExpense(ctx, domain.Expense{
		ClientName:    strings.TrimSpace(req.ClientName),
		ClientPhone:   strings.TrimSpace(req.ClientPhone),
		ExpenseType:   domain.ParseExpenseType(req.ExpenseType),
		PaymentMethod: method,
		Description:   strings.TrimSpace(req.Description),
		State:         state,
		DueDate:       utcPtr(req.DueDate),
		UserID:        actorName(ctx),
		CreatedAt:     now,
		UpdatedAt:     now,
	})
	if err != nil {
		return domain.Expense{}, err
	}

	s.afterMutation(ctx, "expense_create", "expense", created.ID,
		fmt.Sprintf("type=%s,due=%s,paid=%s", created.ExpenseType, created.AmountDue, created.AmountPaid))
	return *created, nil
}

func (s *Service) GetExpense(ctx context.Context, id string) (domain.Expense, error) {
	expense, err := s.repo.GetExpense(ctx, strings.TrimSpace(id))
	if err != nil {
		return domain.Expense{}, err
	}
	return *expense, nil
}

func (s *Service) ListExpenses(ctx context.Context, filter domain.ExpenseFilter) ([]domain.Expense, error) {
	return s.repo.ListExpenses(ctx, filter)
}

// UpdateExpense replaces the expense fields and revises its amounts.
func (s *Service) UpdateExpense(ctx context.Context, id string, req domain.ExpenseRequest) (domain.Expense, error) {
	method, ok := domain.ParsePaymentMethod(req.PaymentMethod)
	if !ok {
		return domain.Expense{}, invalid("unknown payment method %q", req.PaymentMethod)
	}

	now := s.now()
	updated, err := s.repo.UpdateExpense(ctx, strings.TrimSpace(id), func(expense *domain.Expense) error {
		dueDate := expense.DueDate
		if req.DueDate != nil {
			dueDate = utcPtr(req.DueDate)
		}
		next, err := payment.Revise(expense.State, req.AmountDue, req.AmountPaid, dueDate, now)
		if err != nil {
			return err
		}
		expense.State = next
		expense.DueDate = dueDate
		expense.ClientName = strings.TrimSpace(req.ClientName)
		expense.ClientPhone = strings.TrimSpace(req.ClientPhone)
		if req.ExpenseType != "" {
			expense.ExpenseType = domain.ParseExpenseType(req.ExpenseType)
		}
		expense.PaymentMethod = method
		expense.Description = strings.TrimSpace(req.Description)
		expense.UpdatedAt = now
		return nil
	})
	if err != nil {
		return domain.Expense{}, err
	}

	s.afterMutation(ctx, "expense_update", "expense", updated.ID,
		fmt.Sprintf("due=%s,paid=%s,status=%s", updated.AmountDue, updated.AmountPaid, updated.Status))
	return *updated, nil
}

func (s *Service) DeleteExpense(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if err := s.repo.DeleteExpense(ctx, id); err != nil {
		return err
	}
	s.afterMutation(ctx, "expense_delete", "expense", id, "deleted")
	return nil
}

func (s *Service) ExpenseStats(ctx context.Context, filter domain.ExpenseFilter) (domain.ExpenseStats, error) {
	expenses, err := s.repo.ListExpenses(ctx, filter)
	if err != nil {
		return domain.ExpenseStats{}, err
	}

	stats := domain.ExpenseStats{ByType: map[domain.ExpenseType]domain.MoneyTotals{}}
	for _, expense := range expenses {
		stats.Totals.Add(expense.State)
		byType := stats.ByType[expense.ExpenseType]
		byType.Add(expense.State)
		stats.ByType[expense.ExpenseType] = byType
	}
	return stats, nil
}
