package sqlstore

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"dukaan/backend/internal/domain"
	"dukaan/backend/internal/payment"
	"dukaan/backend/internal/store"
	"dukaan/backend/internal/xid"
)

const saleColumns = `id, sale_number, subtotal, discount_percentage, discount_amount, grand_total,
	amount_due, amount_paid, remaining_balance, change_amount, status, cash_tendered, payment_method,
	total_quantity, user_id, customer_name, customer_phone, notes, due_date, created_at, updated_at`

const saleItemColumns = `id, sale_id, position, product_id, name, quantity, selling_price, discount,
	item_total, item_discount, item_net`

const paymentColumns = `id, COALESCE(sale_id, '') AS sale_id, COALESCE(purchase_id, '') AS purchase_id,
	amount, method, collected_by, note, created_at`

// CreateSale takes the stock for every line and writes the sale, its lines
// and its opening payment record in one transaction.
func (s *Store) CreateSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error) {
	if len(sale.Items) == 0 {
		return nil, fmt.Errorf("sale has no line items: %w", store.ErrConflict)
	}
	if sale.ID == "" {
		sale.ID = xid.New("sale")
	}
	if sale.CreatedAt.IsZero() {
		sale.CreatedAt = time.Now().UTC()
	}
	if sale.UpdatedAt.IsZero() {
		sale.UpdatedAt = sale.CreatedAt
	}

	delta := map[string]int{}
	ids := make([]string, 0, len(sale.Items))
	for _, line := range sale.Items {
		if _, seen := delta[line.ProductID]; !seen {
			ids = append(ids, line.ProductID)
		}
		delta[line.ProductID] -= line.Quantity
	}

	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.moveStock(ctx, tx, delta, sale.UpdatedAt); err != nil {
			return err
		}
		names, err := s.productNames(ctx, tx, ids)
		if err != nil {
			return err
		}

		if err := s.insertSale(ctx, tx, sale); err != nil {
			return err
		}
		for i := range sale.Items {
			line := &sale.Items[i]
			if line.ID == "" {
				line.ID = xid.New("line")
			}
			line.SaleID = sale.ID
			line.Position = i
			line.Name = names[line.ProductID]
			if err := insertSaleItem(ctx, tx, *line); err != nil {
				return err
			}
		}
		for i := range sale.Payments {
			record := &sale.Payments[i]
			if record.ID == "" {
				record.ID = xid.New("pay")
			}
			record.SaleID = sale.ID
			if record.CreatedAt.IsZero() {
				record.CreatedAt = sale.CreatedAt
			}
			if err := insertPayment(ctx, tx, *record); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &sale, nil
}

func (s *Store) GetSale(ctx context.Context, id string) (*domain.Sale, error) {
	var sale domain.Sale
	if err := s.db.GetContext(ctx, &sale, s.db.Rebind(`SELECT `+saleColumns+` FROM sales WHERE id = ?`), id); err != nil {
		return nil, notFound(err)
	}
	sales := []domain.Sale{sale}
	if err := loadSaleChildren(ctx, s.db, sales); err != nil {
		return nil, err
	}
	return &sales[0], nil
}

func (s *Store) ListSales(ctx context.Context, filter domain.SaleFilter) ([]domain.Sale, error) {
	clauses := make([]string, 0, 4)
	args := make([]any, 0, 4)
	if len(filter.Statuses) > 0 {
		clauses = append(clauses, "status IN (?)")
		args = append(args, filter.Statuses)
	}
	if filter.PaymentMethod != "" {
		clauses = append(clauses, "payment_method = ?")
		args = append(args, filter.PaymentMethod)
	}
	if filter.From != nil {
		clauses = append(clauses, "created_at >= ?")
		args = append(args, filter.From.UTC())
	}
	if filter.To != nil {
		clauses = append(clauses, "created_at < ?")
		args = append(args, filter.To.UTC())
	}

	query := `SELECT ` + saleColumns + ` FROM sales`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"

	query, args, err := sqlx.In(query, args...)
	if err != nil {
		return nil, err
	}
	var rows []domain.Sale
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
		return nil, err
	}

	sales := make([]domain.Sale, 0, len(rows))
	for _, sale := range rows {
		if store.MatchSale(sale, filter) {
			sales = append(sales, sale)
		}
	}
	if err := loadSaleChildren(ctx, s.db, sales); err != nil {
		return nil, err
	}
	return sales, nil
}

func (s *Store) UpdateSale(ctx context.Context, id string, mutate store.SaleMutation) (*domain.Sale, error) {
	var updated domain.Sale
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		current, err := s.lockSale(ctx, tx, id)
		if err != nil {
			return err
		}

		working := *current
		working.Items = slices.Clone(current.Items)
		working.Payments = slices.Clone(current.Payments)
		record, err := mutate(&working)
		if err != nil {
			return err
		}
		working.ID = current.ID
		working.SaleNumber = current.SaleNumber
		working.CreatedAt = current.CreatedAt
		working.Items = current.Items
		working.Payments = current.Payments
		if working.UpdatedAt.Equal(current.UpdatedAt) {
			working.UpdatedAt = time.Now().UTC()
		}

		_, err = tx.ExecContext(ctx, tx.Rebind(`
			UPDATE sales
			SET amount_due = ?, amount_paid = ?, remaining_balance = ?, change_amount = ?, status = ?,
				payment_method = ?, customer_name = ?, customer_phone = ?, notes = ?, due_date = ?, updated_at = ?
			WHERE id = ?
		`), working.AmountDue, working.AmountPaid, working.RemainingBalance, working.ChangeAmount, working.Status,
			working.PaymentMethod, working.CustomerName, working.CustomerPhone, working.Notes, nullTime(working.DueDate),
			working.UpdatedAt.UTC(), working.ID)
		if err != nil {
			return err
		}

		if record != nil {
			if record.ID == "" {
				record.ID = xid.New("pay")
			}
			record.SaleID = working.ID
			record.PurchaseID = ""
			if record.CreatedAt.IsZero() {
				record.CreatedAt = working.UpdatedAt
			}
			if err := insertPayment(ctx, tx, *record); err != nil {
				return err
			}
			working.Payments = append(working.Payments, *record)
		}
		updated = working
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// DeleteSale restores stock for every line, then removes the payment
// history, the lines and the sale.
func (s *Store) DeleteSale(ctx context.Context, id string, guard func(domain.Sale) error) (*domain.Sale, error) {
	var deleted domain.Sale
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		current, err := s.lockSale(ctx, tx, id)
		if err != nil {
			return err
		}
		if guard != nil {
			if err := guard(*current); err != nil {
				return err
			}
		}

		delta := map[string]int{}
		for _, line := range current.Items {
			delta[line.ProductID] += line.Quantity
		}
		if err := s.moveStock(ctx, tx, delta, time.Now().UTC()); err != nil {
			return err
		}

		for _, stmt := range []string{
			`DELETE FROM payments WHERE sale_id = ?`,
			`DELETE FROM sale_items WHERE sale_id = ?`,
			`DELETE FROM sales WHERE id = ?`,
		} {
			if _, err := tx.ExecContext(ctx, tx.Rebind(stmt), id); err != nil {
				return err
			}
		}
		deleted = *current
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &deleted, nil
}

// MarkOverdue re-derives the status of pending sales whose due date has
// passed. Amounts are compared in Go, not in SQL.
func (s *Store) MarkOverdue(ctx context.Context, now time.Time) (int, error) {
	marked := 0
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		var candidates []domain.Sale
		err := tx.SelectContext(ctx, &candidates, tx.Rebind(s.lock(`
			SELECT `+saleColumns+` FROM sales
			WHERE status = ? AND due_date IS NOT NULL AND due_date < ?
		`)), payment.StatusPending, now.UTC())
		if err != nil {
			return err
		}

		for _, sale := range candidates {
			next := payment.Reconcile(sale.State, sale.DueDate, now)
			if next.Status != payment.StatusOverdue {
				continue
			}
			_, err := tx.ExecContext(ctx, tx.Rebind(`UPDATE sales SET status = ?, remaining_balance = ?, updated_at = ? WHERE id = ?`),
				next.Status, next.RemainingBalance, now.UTC(), sale.ID)
			if err != nil {
				return err
			}
			marked++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return marked, nil
}

func (s *Store) lockSale(ctx context.Context, tx *sqlx.Tx, id string) (*domain.Sale, error) {
	var sale domain.Sale
	if err := tx.GetContext(ctx, &sale, tx.Rebind(s.lock(`SELECT `+saleColumns+` FROM sales WHERE id = ?`)), id); err != nil {
		return nil, notFound(err)
	}
	sales := []domain.Sale{sale}
	if err := loadSaleChildren(ctx, tx, sales); err != nil {
		return nil, err
	}
	return &sales[0], nil
}

func (s *Store) insertSale(ctx context.Context, tx *sqlx.Tx, sale domain.Sale) error {
	_, err := tx.ExecContext(ctx, tx.Rebind(`
		INSERT INTO sales (`+saleColumns+`)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
	`), sale.ID, sale.SaleNumber, sale.Subtotal, sale.DiscountPercentage, sale.DiscountAmount, sale.GrandTotal,
		sale.AmountDue, sale.AmountPaid, sale.RemainingBalance, sale.ChangeAmount, sale.Status, sale.CashTendered,
		sale.PaymentMethod, sale.TotalQuantity, sale.UserID, sale.CustomerName, sale.CustomerPhone, sale.Notes,
		nullTime(sale.DueDate), sale.CreatedAt.UTC(), sale.UpdatedAt.UTC())
	if err != nil {
		return s.mapWriteErr(err, "sale "+sale.SaleNumber)
	}
	return nil
}

func insertSaleItem(ctx context.Context, tx *sqlx.Tx, line domain.SaleLineItem) error {
	_, err := tx.ExecContext(ctx, tx.Rebind(`
		INSERT INTO sale_items (`+saleItemColumns+`)
		VALUES (?,?,?,?,?,?,?,?,?,?,?)
	`), line.ID, line.SaleID, line.Position, line.ProductID, line.Name, line.Quantity, line.SellingPrice,
		line.Discount, line.ItemTotal, line.ItemDiscount, line.ItemNet)
	return err
}

func insertPayment(ctx context.Context, tx *sqlx.Tx, record domain.PaymentRecord) error {
	_, err := tx.ExecContext(ctx, tx.Rebind(`
		INSERT INTO payments (id, sale_id, purchase_id, amount, method, collected_by, note, created_at)
		VALUES (?,?,?,?,?,?,?,?)
	`), record.ID, nullIfEmpty(record.SaleID), nullIfEmpty(record.PurchaseID), record.Amount, record.Method,
		record.CollectedBy, record.Note, record.CreatedAt.UTC())
	return err
}

func loadSaleChildren(ctx context.Context, q sqlx.ExtContext, sales []domain.Sale) error {
	if len(sales) == 0 {
		return nil
	}
	ids := make([]string, len(sales))
	for i, sale := range sales {
		ids[i] = sale.ID
	}

	query, args, err := sqlx.In(`SELECT `+saleItemColumns+` FROM sale_items WHERE sale_id IN (?) ORDER BY sale_id, position`, ids)
	if err != nil {
		return err
	}
	var items []domain.SaleLineItem
	if err := sqlx.SelectContext(ctx, q, &items, q.Rebind(query), args...); err != nil {
		return err
	}

	query, args, err = sqlx.In(`SELECT `+paymentColumns+` FROM payments WHERE sale_id IN (?) ORDER BY created_at, id`, ids)
	if err != nil {
		return err
	}
	var payments []domain.PaymentRecord
	if err := sqlx.SelectContext(ctx, q, &payments, q.Rebind(query), args...); err != nil {
		return err
	}

	itemsBySale := make(map[string][]domain.SaleLineItem, len(sales))
	for _, item := range items {
		itemsBySale[item.SaleID] = append(itemsBySale[item.SaleID], item)
	}
	paymentsBySale := make(map[string][]domain.PaymentRecord, len(sales))
	for _, record := range payments {
		paymentsBySale[record.SaleID] = append(paymentsBySale[record.SaleID], record)
	}
	for i := range sales {
		sales[i].Items = itemsBySale[sales[i].ID]
		sales[i].Payments = paymentsBySale[sales[i].ID]
	}
	return nil
}
