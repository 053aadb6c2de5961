package sqlstore

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"dukaan/backend/internal/domain"
	"dukaan/backend/internal/store"
	"dukaan/backend/internal/xid"
)

const vendorColumns = `id, name, phone_number, location, total_purchases, total_amount, balance, created_at, updated_at`

const purchaseColumns = `id, vendor_id, user_id, total, amount_due, amount_paid, remaining_balance, change_amount,
	status, payment_method, notes, due_date, purchase_date, created_at, updated_at`

const purchaseLineColumns = `id, purchase_id, position, COALESCE(product_id, '') AS product_id, product_name,
	quantity, unit_price, line_total`

func (s *Store) CreateVendor(ctx context.Context, vendor domain.Vendor) (*domain.Vendor, error) {
	if vendor.ID == "" {
		vendor.ID = xid.New("vendor")
	}
	if vendor.CreatedAt.IsZero() {
		vendor.CreatedAt = time.Now().UTC()
	}
	vendor.UpdatedAt = vendor.CreatedAt
	vendor.TotalPurchases = 0
	vendor.TotalAmount = decimal.Zero
	vendor.Balance = decimal.Zero

	_, err := s.db.ExecContext(ctx, s.db.Rebind(`
		INSERT INTO vendors (`+vendorColumns+`)
		VALUES (?,?,?,?,?,?,?,?,?)
	`), vendor.ID, vendor.Name, vendor.PhoneNumber, vendor.Location, vendor.TotalPurchases, vendor.TotalAmount,
		vendor.Balance, vendor.CreatedAt.UTC(), vendor.UpdatedAt.UTC())
	if err != nil {
		return nil, s.mapWriteErr(err, "vendor "+vendor.ID)
	}
	return &vendor, nil
}

func (s *Store) GetVendor(ctx context.Context, id string) (*domain.Vendor, error) {
	var vendor domain.Vendor
	if err := s.db.GetContext(ctx, &vendor, s.db.Rebind(`SELECT `+vendorColumns+` FROM vendors WHERE id = ?`), id); err != nil {
		return nil, notFound(err)
	}
	return &vendor, nil
}

func (s *Store) ListVendors(ctx context.Context) ([]domain.Vendor, error) {
	vendors := make([]domain.Vendor, 0, 32)
	if err := s.db.SelectContext(ctx, &vendors, `SELECT `+vendorColumns+` FROM vendors ORDER BY LOWER(name), id`); err != nil {
		return nil, err
	}
	return vendors, nil
}

func (s *Store) UpdateVendor(ctx context.Context, vendor domain.Vendor) (*domain.Vendor, error) {
	result, err := s.db.ExecContext(ctx, s.db.Rebind(`
		UPDATE vendors SET name = ?, phone_number = ?, location = ?, updated_at = ? WHERE id = ?
	`), vendor.Name, vendor.PhoneNumber, vendor.Location, time.Now().UTC(), vendor.ID)
	if err != nil {
		return nil, err
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return nil, store.ErrNotFound
	}
	return s.GetVendor(ctx, vendor.ID)
}

func (s *Store) DeleteVendor(ctx context.Context, id string) error {
	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := s.lockVendor(ctx, tx, id); err != nil {
			return err
		}
		var purchases int
		if err := tx.GetContext(ctx, &purchases, tx.Rebind(`SELECT COUNT(*) FROM purchases WHERE vendor_id = ?`), id); err != nil {
			return err
		}
		if purchases > 0 {
			return fmt.Errorf("vendor %s has %d purchases: %w", id, purchases, store.ErrConflict)
		}
		_, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM vendors WHERE id = ?`), id)
		return err
	})
}

func (s *Store) ReconcileVendor(ctx context.Context, id string) (*domain.VendorReconciliation, error) {
	var result domain.VendorReconciliation
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		result, err = s.reconcile(ctx, tx, id, time.Now().UTC())
		return err
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (s *Store) ReconcileAllVendors(ctx context.Context) ([]domain.VendorReconciliation, error) {
	var results []domain.VendorReconciliation
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		var ids []string
		if err := tx.SelectContext(ctx, &ids, `SELECT id FROM vendors ORDER BY id`); err != nil {
			return err
		}
		now := time.Now().UTC()
		results = make([]domain.VendorReconciliation, 0, len(ids))
		for _, id := range ids {
			result, err := s.reconcile(ctx, tx, id, now)
			if err != nil {
				return err
			}
			results = append(results, result)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

// CreatePurchase adds the goods to stock, writes the purchase with its lines
// and payments, and moves the vendor aggregates in one transaction.
func (s *Store) CreatePurchase(ctx context.Context, purchase domain.Purchase) (*domain.PurchaseResult, error) {
	if purchase.ID == "" {
		purchase.ID = xid.New("purchase")
	}
	if purchase.CreatedAt.IsZero() {
		purchase.CreatedAt = time.Now().UTC()
	}
	if purchase.UpdatedAt.IsZero() {
		purchase.UpdatedAt = purchase.CreatedAt
	}
	if purchase.PurchaseDate.IsZero() {
		purchase.PurchaseDate = purchase.CreatedAt
	}

	var result domain.PurchaseResult
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		vendor, err := s.lockVendor(ctx, tx, purchase.VendorID)
		if err != nil {
			return fmt.Errorf("vendor %s: %w", purchase.VendorID, err)
		}
		if err := s.moveStock(ctx, tx, store.StockDelta(nil, purchase.Items), purchase.UpdatedAt); err != nil {
			return err
		}

		if err := s.insertPurchase(ctx, tx, purchase); err != nil {
			return err
		}
		if err := s.writePurchaseLines(ctx, tx, &purchase); err != nil {
			return err
		}
		for i := range purchase.Payments {
			record := &purchase.Payments[i]
			if record.ID == "" {
				record.ID = xid.New("pay")
			}
			record.PurchaseID = purchase.ID
			if record.CreatedAt.IsZero() {
				record.CreatedAt = purchase.CreatedAt
			}
			if err := insertPayment(ctx, tx, *record); err != nil {
				return err
			}
		}

		updated, err := s.applyVendorDelta(ctx, tx, *vendor, store.VendorDelta(nil, &purchase), purchase.UpdatedAt)
		if err != nil {
			return err
		}
		result = domain.PurchaseResult{Purchase: purchase, Vendor: updated}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (s *Store) GetPurchase(ctx context.Context, vendorID string, id string) (*domain.Purchase, error) {
	var purchase domain.Purchase
	err := s.db.GetContext(ctx, &purchase, s.db.Rebind(`SELECT `+purchaseColumns+` FROM purchases WHERE id = ?`), id)
	if err != nil {
		return nil, notFound(err)
	}
	if vendorID != "" && purchase.VendorID != vendorID {
		return nil, store.ErrNotFound
	}
	purchases := []domain.Purchase{purchase}
	if err := loadPurchaseChildren(ctx, s.db, purchases); err != nil {
		return nil, err
	}
	return &purchases[0], nil
}

func (s *Store) ListPurchases(ctx context.Context, filter domain.PurchaseFilter) ([]domain.Purchase, error) {
	clauses := make([]string, 0, 3)
	args := make([]any, 0, 3)
	if filter.VendorID != "" {
		clauses = append(clauses, "vendor_id = ?")
		args = append(args, filter.VendorID)
	}
	if filter.From != nil {
		clauses = append(clauses, "purchase_date >= ?")
		args = append(args, filter.From.UTC())
	}
	if filter.To != nil {
		clauses = append(clauses, "purchase_date < ?")
		args = append(args, filter.To.UTC())
	}

	query := `SELECT ` + purchaseColumns + ` FROM purchases`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY purchase_date DESC, id DESC"

	purchases := make([]domain.Purchase, 0, 32)
	if err := s.db.SelectContext(ctx, &purchases, s.db.Rebind(query), args...); err != nil {
		return nil, err
	}
	if err := loadPurchaseChildren(ctx, s.db, purchases); err != nil {
		return nil, err
	}
	return purchases, nil
}

func (s *Store) UpdatePurchase(ctx context.Context, vendorID string, id string, mutate store.PurchaseMutation) (*domain.PurchaseResult, error) {
	var result domain.PurchaseResult
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		vendor, err := s.lockVendor(ctx, tx, vendorID)
		if err != nil {
			return err
		}
		current, err := s.lockPurchase(ctx, tx, vendorID, id)
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
		working.VendorID = current.VendorID
		working.CreatedAt = current.CreatedAt
		working.Payments = current.Payments
		if working.UpdatedAt.Equal(current.UpdatedAt) {
			working.UpdatedAt = time.Now().UTC()
		}

		if err := s.moveStock(ctx, tx, store.StockDelta(current.Items, working.Items), working.UpdatedAt); err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, tx.Rebind(`
			UPDATE purchases
			SET total = ?, amount_due = ?, amount_paid = ?, remaining_balance = ?, change_amount = ?, status = ?,
				payment_method = ?, notes = ?, due_date = ?, updated_at = ?
			WHERE id = ?
		`), working.Total, working.AmountDue, working.AmountPaid, working.RemainingBalance, working.ChangeAmount,
			working.Status, working.PaymentMethod, working.Notes, nullTime(working.DueDate), working.UpdatedAt.UTC(), working.ID)
		if err != nil {
			return err
		}

		if !linesEqual(current.Items, working.Items) {
			if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM purchase_lines WHERE purchase_id = ?`), working.ID); err != nil {
				return err
			}
			if err := s.writePurchaseLines(ctx, tx, &working); err != nil {
				return err
			}
		}

		if record != nil {
			if record.ID == "" {
				record.ID = xid.New("pay")
			}
			record.PurchaseID = working.ID
			record.SaleID = ""
			if record.CreatedAt.IsZero() {
				record.CreatedAt = working.UpdatedAt
			}
			if err := insertPayment(ctx, tx, *record); err != nil {
				return err
			}
			working.Payments = append(working.Payments, *record)
		}

		updated, err := s.applyVendorDelta(ctx, tx, *vendor, store.VendorDelta(current, &working), working.UpdatedAt)
		if err != nil {
			return err
		}
		result = domain.PurchaseResult{Purchase: working, Vendor: updated}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// DeletePurchase takes the purchased goods back out of stock and removes the
// purchase's contribution from its vendor.
func (s *Store) DeletePurchase(ctx context.Context, vendorID string, id string, guard func(domain.Purchase) error) (*domain.PurchaseResult, error) {
	var result domain.PurchaseResult
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		vendor, err := s.lockVendor(ctx, tx, vendorID)
		if err != nil {
			return err
		}
		current, err := s.lockPurchase(ctx, tx, vendorID, id)
		if err != nil {
			return err
		}
		if guard != nil {
			if err := guard(*current); err != nil {
				return err
			}
		}

		now := time.Now().UTC()
		if err := s.moveStock(ctx, tx, store.StockDelta(current.Items, nil), now); err != nil {
			return err
		}
		for _, stmt := range []string{
			`DELETE FROM payments WHERE purchase_id = ?`,
			`DELETE FROM purchase_lines WHERE purchase_id = ?`,
			`DELETE FROM purchases WHERE id = ?`,
		} {
			if _, err := tx.ExecContext(ctx, tx.Rebind(stmt), id); err != nil {
				return err
			}
		}

		updated, err := s.applyVendorDelta(ctx, tx, *vendor, store.VendorDelta(current, nil), now)
		if err != nil {
			return err
		}
		result = domain.PurchaseResult{Purchase: *current, Vendor: updated}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (s *Store) lockVendor(ctx context.Context, tx *sqlx.Tx, id string) (*domain.Vendor, error) {
	var vendor domain.Vendor
	if err := tx.GetContext(ctx, &vendor, tx.Rebind(s.lock(`SELECT `+vendorColumns+` FROM vendors WHERE id = ?`)), id); err != nil {
		return nil, notFound(err)
	}
	return &vendor, nil
}

func (s *Store) lockPurchase(ctx context.Context, tx *sqlx.Tx, vendorID string, id string) (*domain.Purchase, error) {
	var purchase domain.Purchase
	err := tx.GetContext(ctx, &purchase, tx.Rebind(s.lock(`SELECT `+purchaseColumns+` FROM purchases WHERE id = ? AND vendor_id = ?`)), id, vendorID)
	if err != nil {
		return nil, notFound(err)
	}
	purchases := []domain.Purchase{purchase}
	if err := loadPurchaseChildren(ctx, tx, purchases); err != nil {
		return nil, err
	}
	return &purchases[0], nil
}

func (s *Store) reconcile(ctx context.Context, tx *sqlx.Tx, id string, now time.Time) (domain.VendorReconciliation, error) {
	vendor, err := s.lockVendor(ctx, tx, id)
	if err != nil {
		return domain.VendorReconciliation{}, err
	}
	var purchases []domain.Purchase
	err = tx.SelectContext(ctx, &purchases, tx.Rebind(s.lock(`SELECT `+purchaseColumns+` FROM purchases WHERE vendor_id = ?`)), id)
	if err != nil {
		return domain.VendorReconciliation{}, err
	}

	before := domain.VendorAggregates{TotalPurchases: vendor.TotalPurchases, TotalAmount: vendor.TotalAmount, Balance: vendor.Balance}
	after := store.Aggregate(purchases)
	drifted := !before.Equal(after)
	if drifted {
		_, err := tx.ExecContext(ctx, tx.Rebind(`
			UPDATE vendors SET total_purchases = ?, total_amount = ?, balance = ?, updated_at = ? WHERE id = ?
		`), after.TotalPurchases, after.TotalAmount, after.Balance, now, id)
		if err != nil {
			return domain.VendorReconciliation{}, err
		}
	}
	return domain.VendorReconciliation{VendorID: id, Before: before, After: after, Drifted: drifted}, nil
}

func (s *Store) applyVendorDelta(ctx context.Context, tx *sqlx.Tx, vendor domain.Vendor, delta domain.VendorAggregates, at time.Time) (domain.Vendor, error) {
	vendor.TotalPurchases += delta.TotalPurchases
	vendor.TotalAmount = vendor.TotalAmount.Add(delta.TotalAmount)
	vendor.Balance = vendor.Balance.Add(delta.Balance)
	vendor.UpdatedAt = at

	_, err := tx.ExecContext(ctx, tx.Rebind(`
		UPDATE vendors SET total_purchases = ?, total_amount = ?, balance = ?, updated_at = ? WHERE id = ?
	`), vendor.TotalPurchases, vendor.TotalAmount, vendor.Balance, at.UTC(), vendor.ID)
	if err != nil {
		return domain.Vendor{}, err
	}
	return vendor, nil
}

func (s *Store) insertPurchase(ctx context.Context, tx *sqlx.Tx, purchase domain.Purchase) error {
	_, err := tx.ExecContext(ctx, tx.Rebind(`
		INSERT INTO purchases (`+purchaseColumns+`)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
	`), purchase.ID, purchase.VendorID, purchase.UserID, purchase.Total, purchase.AmountDue, purchase.AmountPaid,
		purchase.RemainingBalance, purchase.ChangeAmount, purchase.Status, purchase.PaymentMethod, purchase.Notes,
		nullTime(purchase.DueDate), purchase.PurchaseDate.UTC(), purchase.CreatedAt.UTC(), purchase.UpdatedAt.UTC())
	if err != nil {
		return s.mapWriteErr(err, "purchase "+purchase.ID)
	}
	return nil
}

func (s *Store) writePurchaseLines(ctx context.Context, tx *sqlx.Tx, purchase *domain.Purchase) error {
	ids := make([]string, 0, len(purchase.Items))
	for _, line := range purchase.Items {
		if line.ProductID != "" {
			ids = append(ids, line.ProductID)
		}
	}
	names, err := s.productNames(ctx, tx, ids)
	if err != nil {
		return err
	}

	for i := range purchase.Items {
		line := &purchase.Items[i]
		if line.ID == "" {
			line.ID = xid.New("pline")
		}
		line.PurchaseID = purchase.ID
		line.Position = i
		if line.ProductName == "" {
			line.ProductName = names[line.ProductID]
		}
		_, err := tx.ExecContext(ctx, tx.Rebind(`
			INSERT INTO purchase_lines (id, purchase_id, position, product_id, product_name, quantity, unit_price, line_total)
			VALUES (?,?,?,?,?,?,?,?)
		`), line.ID, line.PurchaseID, line.Position, nullIfEmpty(line.ProductID), line.ProductName, line.Quantity,
			line.UnitPrice, line.LineTotal)
		if err != nil {
			return err
		}
	}
	return nil
}

func loadPurchaseChildren(ctx context.Context, q sqlx.ExtContext, purchases []domain.Purchase) error {
	if len(purchases) == 0 {
		return nil
	}
	ids := make([]string, len(purchases))
	for i, purchase := range purchases {
		ids[i] = purchase.ID
	}

	query, args, err := sqlx.In(`SELECT `+purchaseLineColumns+` FROM purchase_lines WHERE purchase_id IN (?) ORDER BY purchase_id, position`, ids)
	if err != nil {
		return err
	}
	var lines []domain.PurchaseLine
	if err := sqlx.SelectContext(ctx, q, &lines, q.Rebind(query), args...); err != nil {
		return err
	}

	query, args, err = sqlx.In(`SELECT `+paymentColumns+` FROM payments WHERE purchase_id IN (?) ORDER BY created_at, id`, ids)
	if err != nil {
		return err
	}
	var payments []domain.PaymentRecord
	if err := sqlx.SelectContext(ctx, q, &payments, q.Rebind(query), args...); err != nil {
		return err
	}

	linesByPurchase := make(map[string][]domain.PurchaseLine, len(purchases))
	for _, line := range lines {
		linesByPurchase[line.PurchaseID] = append(linesByPurchase[line.PurchaseID], line)
	}
	paymentsByPurchase := make(map[string][]domain.PaymentRecord, len(purchases))
	for _, record := range payments {
		paymentsByPurchase[record.PurchaseID] = append(paymentsByPurchase[record.PurchaseID], record)
	}
	for i := range purchases {
		purchases[i].Items = linesByPurchase[purchases[i].ID]
		purchases[i].Payments = paymentsByPurchase[purchases[i].ID]
	}
	return nil
}

func linesEqual(a []domain.PurchaseLine, b []domain.PurchaseLine) bool {
	return slices.EqualFunc(a, b, func(x, y domain.PurchaseLine) bool {
		return x.ID == y.ID && x.ProductID == y.ProductID && x.ProductName == y.ProductName &&
			x.Quantity == y.Quantity && x.UnitPrice.Equal(y.UnitPrice) && x.LineTotal.Equal(y.LineTotal)
	})
}
