package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"dukaan/backend/internal/domain"
	"dukaan/backend/internal/payment"
	"dukaan/backend/internal/store"
	"dukaan/backend/internal/xid"
)

const productColumns = `id, name, COALESCE(barcode, '') AS barcode, description, cost, price, stock,
	low_stock_threshold, expiry_date, created_at, updated_at`

func (s *Store) ListProducts(ctx context.Context) ([]domain.Product, error) {
	products := make([]domain.Product, 0, 128)
	err := s.db.SelectContext(ctx, &products, `SELECT `+productColumns+` FROM products ORDER BY LOWER(name), id`)
	if err != nil {
		return nil, err
	}
	return products, nil
}

func (s *Store) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	var product domain.Product
	err := s.db.GetContext(ctx, &product, s.db.Rebind(`SELECT `+productColumns+` FROM products WHERE id = ?`), id)
	if err != nil {
		return nil, notFound(err)
	}
	return &product, nil
}

func (s *Store) FindProductByName(ctx context.Context, name string) (*domain.Product, error) {
	var product domain.Product
	err := s.db.GetContext(ctx, &product, s.db.Rebind(`
		SELECT `+productColumns+` FROM products
		WHERE LOWER(name) = ?
		ORDER BY id
		LIMIT 1
	`), strings.ToLower(strings.TrimSpace(name)))
	if err != nil {
		return nil, notFound(err)
	}
	return &product, nil
}

func (s *Store) CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if product.ID == "" {
		product.ID = xid.New("prod")
	}
	if product.CreatedAt.IsZero() {
		product.CreatedAt = time.Now().UTC()
	}
	product.UpdatedAt = product.CreatedAt

	_, err := s.db.ExecContext(ctx, s.db.Rebind(`
		INSERT INTO products (id, name, barcode, description, cost, price, stock, low_stock_threshold, expiry_date, created_at, updated_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?)
	`), product.ID, product.Name, nullIfEmpty(product.Barcode), product.Description, product.Cost, product.Price,
		product.Stock, product.LowStockThreshold, nullTime(product.ExpiryDate), product.CreatedAt, product.UpdatedAt)
	if err != nil {
		return nil, s.mapWriteErr(err, "product "+product.Name)
	}
	return &product, nil
}

func (s *Store) UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if product.UpdatedAt.IsZero() {
		product.UpdatedAt = time.Now().UTC()
	}
	result, err := s.db.ExecContext(ctx, s.db.Rebind(`
		UPDATE products
		SET name = ?, barcode = ?, description = ?, cost = ?, price = ?, low_stock_threshold = ?, expiry_date = ?, updated_at = ?
		WHERE id = ?
	`), product.Name, nullIfEmpty(product.Barcode), product.Description, product.Cost, product.Price,
		product.LowStockThreshold, nullTime(product.ExpiryDate), product.UpdatedAt, product.ID)
	if err != nil {
		return nil, s.mapWriteErr(err, "product "+product.Name)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return nil, store.ErrNotFound
	}
	return s.GetProduct(ctx, product.ID)
}

func (s *Store) DeleteProduct(ctx context.Context, id string) error {
	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		var exists int
		if err := tx.GetContext(ctx, &exists, tx.Rebind(s.lock(`SELECT 1 FROM products WHERE id = ?`)), id); err != nil {
			return notFound(err)
		}

		var references int
		err := tx.GetContext(ctx, &references, tx.Rebind(`
			SELECT (SELECT COUNT(*) FROM sale_items WHERE product_id = ?) + (SELECT COUNT(*) FROM purchase_lines WHERE product_id = ?)
		`), id, id)
		if err != nil {
			return err
		}
		if references > 0 {
			return fmt.Errorf("product %s is referenced by %d sale or purchase lines: %w", id, references, store.ErrConflict)
		}

		_, err = tx.ExecContext(ctx, tx.Rebind(`DELETE FROM products WHERE id = ?`), id)
		return err
	})
}

func (s *Store) SoldQuantities(ctx context.Context, from time.Time, to time.Time) (map[string]int, error) {
	var rows []struct {
		ProductID string `db:"product_id"`
		Quantity  int    `db:"quantity"`
	}
	err := s.db.SelectContext(ctx, &rows, s.db.Rebind(`
		SELECT si.product_id, SUM(si.quantity) AS quantity
		FROM sale_items si
		JOIN sales sa ON sa.id = si.sale_id
		WHERE sa.created_at >= ? AND sa.created_at < ? AND sa.status <> ?
		GROUP BY si.product_id
	`), from.UTC(), to.UTC(), payment.StatusCancelled)
	if err != nil {
		return nil, err
	}

	sold := make(map[string]int, len(rows))
	for _, row := range rows {
		sold[row.ProductID] = row.Quantity
	}
	return sold, nil
}

type stockRow struct {
	ID    string `db:"id"`
	Name  string `db:"name"`
	Stock int    `db:"stock"`
}

// moveStock locks the affected product rows in id order, verifies that no
// stock would go negative, then applies delta. Nothing is written when a
// check fails.
func (s *Store) moveStock(ctx context.Context, tx *sqlx.Tx, delta map[string]int, at time.Time) error {
	ids := make([]string, 0, len(delta))
	for id := range delta {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		var row stockRow
		err := tx.GetContext(ctx, &row, tx.Rebind(s.lock(`SELECT id, name, stock FROM products WHERE id = ?`)), id)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("product %s: %w", id, store.ErrNotFound)
			}
			return err
		}
		if row.Stock+delta[id] < 0 {
			return &store.InsufficientStockError{
				ProductID: id,
				Name:      row.Name,
				Available: row.Stock,
				Requested: -delta[id],
			}
		}
	}

	for _, id := range ids {
		_, err := tx.ExecContext(ctx, tx.Rebind(`UPDATE products SET stock = stock + ?, updated_at = ? WHERE id = ?`), delta[id], at, id)
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) productNames(ctx context.Context, tx *sqlx.Tx, ids []string) (map[string]string, error) {
	names := make(map[string]string, len(ids))
	if len(ids) == 0 {
		return names, nil
	}
	query, args, err := sqlx.In(`SELECT id, name, stock FROM products WHERE id IN (?)`, ids)
	if err != nil {
		return nil, err
	}
	var rows []stockRow
	if err := tx.SelectContext(ctx, &rows, tx.Rebind(query), args...); err != nil {
		return nil, err
	}
	for _, row := range rows {
		names[row.ID] = row.Name
	}
	return names, nil
}
