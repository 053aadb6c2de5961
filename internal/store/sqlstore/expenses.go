package sqlstore

import (
	"context"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"dukaan/backend/internal/domain"
	"dukaan/backend/internal/store"
	"dukaan/backend/internal/xid"
)

const expenseColumns = `id, client_name, client_phone, expense_type, payment_method, description, amount_due,
	amount_paid, remaining_balance, change_amount, status, due_date, user_id, created_at, updated_at`

func (s *Store) CreateExpense(ctx context.Context, expense domain.Expense) (*domain.Expense, error) {
	if expense.ID == "" {
		expense.ID = xid.New("expense")
	}
	if expense.CreatedAt.IsZero() {
		expense.CreatedAt = time.Now().UTC()
	}
	if expense.UpdatedAt.IsZero() {
		expense.UpdatedAt = expense.CreatedAt
	}

	_, err := s.db.ExecContext(ctx, s.db.Rebind(`
		INSERT INTO expenses (`+expenseColumns+`)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
	`), expense.ID, expense.ClientName, expense.ClientPhone, expense.ExpenseType, expense.PaymentMethod,
		expense.Description, expense.AmountDue, expense.AmountPaid, expense.RemainingBalance, expense.ChangeAmount,
		expense.Status, nullTime(expense.DueDate), expense.UserID, expense.CreatedAt.UTC(), expense.UpdatedAt.UTC())
	if err != nil {
		return nil, s.mapWriteErr(err, "expense "+expense.ID)
	}
	return &expense, nil
}

func (s *Store) GetExpense(ctx context.Context, id string) (*domain.Expense, error) {
	var expense domain.Expense
	if err := s.db.GetContext(ctx, &expense, s.db.Rebind(`SELECT `+expenseColumns+` FROM expenses WHERE id = ?`), id); err != nil {
		return nil, notFound(err)
	}
	return &expense, nil
}

func (s *Store) ListExpenses(ctx context.Context, filter domain.ExpenseFilter) ([]domain.Expense, error) {
	clauses := make([]string, 0, 4)
	args := make([]any, 0, 4)
	if filter.ExpenseType != "" {
		clauses = append(clauses, "expense_type = ?")
		args = append(args, filter.ExpenseType)
	}
	if filter.Status != "" {
		clauses = append(clauses, "status = ?")
		args = append(args, filter.Status)
	}
	if filter.From != nil {
		clauses = append(clauses, "created_at >= ?")
		args = append(args, filter.From.UTC())
	}
	if filter.To != nil {
		clauses = append(clauses, "created_at < ?")
		args = append(args, filter.To.UTC())
	}

	query := `SELECT ` + expenseColumns + ` FROM expenses`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"

	expenses := make([]domain.Expense, 0, 32)
	if err := s.db.SelectContext(ctx, &expenses, s.db.Rebind(query), args...); err != nil {
		return nil, err
	}
	return expenses, nil
}

func (s *Store) UpdateExpense(ctx context.Context, id string, mutate store.ExpenseMutation) (*domain.Expense, error) {
	var updated domain.Expense
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		var current domain.Expense
		if err := tx.GetContext(ctx, &current, tx.Rebind(s.lock(`SELECT `+expenseColumns+` FROM expenses WHERE id = ?`)), id); err != nil {
			return notFound(err)
		}

		working := current
		if err := mutate(&working); err != nil {
			return err
		}
		working.ID = current.ID
		working.CreatedAt = current.CreatedAt
		if working.UpdatedAt.Equal(current.UpdatedAt) {
			working.UpdatedAt = time.Now().UTC()
		}

		_, err := tx.ExecContext(ctx, tx.Rebind(`
			UPDATE expenses
			SET client_name = ?, client_phone = ?, expense_type = ?, payment_method = ?, description = ?,
				amount_due = ?, amount_paid = ?, remaining_balance = ?, change_amount = ?, status = ?, due_date = ?, updated_at = ?
			WHERE id = ?
		`), working.ClientName, working.ClientPhone, working.ExpenseType, working.PaymentMethod, working.Description,
			working.AmountDue, working.AmountPaid, working.RemainingBalance, working.ChangeAmount, working.Status,
			nullTime(working.DueDate), working.UpdatedAt.UTC(), working.ID)
		if err != nil {
			return err
		}
		updated = working
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

func (s *Store) DeleteExpense(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, s.db.Rebind(`DELETE FROM expenses WHERE id = ?`), id)
	if err != nil {
		return err
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return store.ErrNotFound
	}
	return nil
}
