package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"dukaan/backend/internal/domain"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrConflict          = errors.New("conflict")

	// ErrTransactionFailure marks a transaction that could not be begun or
	// committed. Nothing was written and the call may be retried.
	ErrTransactionFailure = errors.New("transaction failed")
)

// InsufficientStockError names the product whose stock could not cover a
// requested change.
type InsufficientStockError struct {
	ProductID string
	Name      string
	Available int
	Requested int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s: available %d, requested %d", e.Name, e.Available, e.Requested)
}

func (e *InsufficientStockError) Unwrap() error {
	return ErrInsufficientStock
}

// SaleMutation edits a locked sale in place. A non-nil record is appended to
// the sale's payment history in the same transaction.
type SaleMutation func(sale *domain.Sale) (*domain.PaymentRecord, error)

// PurchaseMutation edits a locked purchase in place. Stock and vendor
// aggregates are moved by the difference between the purchase before and
// after the call.
type PurchaseMutation func(purchase *domain.Purchase) (*domain.PaymentRecord, error)

type ExpenseMutation func(expense *domain.Expense) error

type Repository interface {
	ListProducts(ctx context.Context) ([]domain.Product, error)
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	FindProductByName(ctx context.Context, name string) (*domain.Product, error)
	CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	DeleteProduct(ctx context.Context, id string) error
	SoldQuantities(ctx context.Context, from time.Time, to time.Time) (map[string]int, error)

	CreateSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error)
	GetSale(ctx context.Context, id string) (*domain.Sale, error)
	ListSales(ctx context.Context, filter domain.SaleFilter) ([]domain.Sale, error)
	UpdateSale(ctx context.Context, id string, mutate SaleMutation) (*domain.Sale, error)
	DeleteSale(ctx context.Context, id string, guard func(domain.Sale) error) (*domain.Sale, error)
	MarkOverdue(ctx context.Context, now time.Time) (int, error)

	CreateVendor(ctx context.Context, vendor domain.Vendor) (*domain.Vendor, error)
	GetVendor(ctx context.Context, id string) (*domain.Vendor, error)
	ListVendors(ctx context.Context) ([]domain.Vendor, error)
	UpdateVendor(ctx context.Context, vendor domain.Vendor) (*domain.Vendor, error)
	DeleteVendor(ctx context.Context, id string) error
	ReconcileVendor(ctx context.Context, id string) (*domain.VendorReconciliation, error)
	ReconcileAllVendors(ctx context.Context) ([]domain.VendorReconciliation, error)

	CreatePurchase(ctx context.Context, purchase domain.Purchase) (*domain.PurchaseResult, error)
	GetPurchase(ctx context.Context, vendorID string, id string) (*domain.Purchase, error)
	ListPurchases(ctx context.Context, filter domain.PurchaseFilter) ([]domain.Purchase, error)
	UpdatePurchase(ctx context.Context, vendorID string, id string, mutate PurchaseMutation) (*domain.PurchaseResult, error)
	DeletePurchase(ctx context.Context, vendorID string, id string, guard func(domain.Purchase) error) (*domain.PurchaseResult, error)

	CreateExpense(ctx context.Context, expense domain.Expense) (*domain.Expense, error)
	GetExpense(ctx context.Context, id string) (*domain.Expense, error)
	ListExpenses(ctx context.Context, filter domain.ExpenseFilter) ([]domain.Expense, error)
	UpdateExpense(ctx context.Context, id string, mutate ExpenseMutation) (*domain.Expense, error)
	DeleteExpense(ctx context.Context, id string) error

	CreateAuditLog(ctx context.Context, entry domain.AuditLog) error
	ListAuditLogs(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error)

	CreateUser(ctx context.Context, user domain.UserAccount) error
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error
}

// StockDelta returns the per-product stock movement a purchase edit implies:
// positive values are added to stock, negative values removed. Lines without
// a product id carry no stock effect.
func StockDelta(before []domain.PurchaseLine, after []domain.PurchaseLine) map[string]int {
	delta := map[string]int{}
	for _, line := range before {
		if line.ProductID != "" {
			delta[line.ProductID] -= line.Quantity
		}
	}
	for _, line := range after {
		if line.ProductID != "" {
			delta[line.ProductID] += line.Quantity
		}
	}
	for id, qty := range delta {
		if qty == 0 {
			delete(delta, id)
		}
	}
	return delta
}

// VendorDelta is the change a purchase edit makes to its vendor's aggregates.
// A nil before means the purchase is new; a nil after means it is deleted.
func VendorDelta(before *domain.Purchase, after *domain.Purchase) domain.VendorAggregates {
	var delta domain.VendorAggregates
	if before != nil {
		delta.TotalPurchases--
		delta.TotalAmount = delta.TotalAmount.Sub(before.Total)
		delta.Balance = delta.Balance.Sub(before.Outstanding())
	}
	if after != nil {
		delta.TotalPurchases++
		delta.TotalAmount = delta.TotalAmount.Add(after.Total)
		delta.Balance = delta.Balance.Add(after.Outstanding())
	}
	return delta
}

// Aggregate recomputes vendor totals from its purchases.
func Aggregate(purchases []domain.Purchase) domain.VendorAggregates {
	var agg domain.VendorAggregates
	for _, p := range purchases {
		agg.TotalPurchases++
		agg.TotalAmount = agg.TotalAmount.Add(p.Total)
		agg.Balance = agg.Balance.Add(p.Outstanding())
	}
	return agg
}

// MatchSale applies the non-SQL parts of a sale filter.
func MatchSale(sale domain.Sale, filter domain.SaleFilter) bool {
	if len(filter.Statuses) > 0 {
		found := false
		for _, status := range filter.Statuses {
			if sale.Status == status {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if filter.PaymentMethod != "" && sale.PaymentMethod != filter.PaymentMethod {
		return false
	}
	if filter.From != nil && sale.CreatedAt.Before(*filter.From) {
		return false
	}
	if filter.To != nil && !sale.CreatedAt.Before(*filter.To) {
		return false
	}
	if filter.OpenOnly && (!sale.Status.Open() || !sale.RemainingBalance.IsPositive()) {
		return false
	}
	if filter.Search != "" && !containsFold(sale.CustomerName, filter.Search) &&
		!containsFold(sale.CustomerPhone, filter.Search) && !containsFold(sale.SaleNumber, filter.Search) {
		return false
	}
	return true
}

func containsFold(value string, needle string) bool {
	return strings.Contains(strings.ToLower(value), strings.ToLower(strings.TrimSpace(needle)))
}

func MatchPurchase(purchase domain.Purchase, filter domain.PurchaseFilter) bool {
	if filter.VendorID != "" && purchase.VendorID != filter.VendorID {
		return false
	}
	if filter.From != nil && purchase.PurchaseDate.Before(*filter.From) {
		return false
	}
	if filter.To != nil && !purchase.PurchaseDate.Before(*filter.To) {
		return false
	}
	return true
}

func MatchExpense(expense domain.Expense, filter domain.ExpenseFilter) bool {
	if filter.ExpenseType != "" && expense.ExpenseType != filter.ExpenseType {
		return false
	}
	if filter.Status != "" && expense.Status != filter.Status {
		return false
	}
	if filter.From != nil && expense.CreatedAt.Before(*filter.From) {
		return false
	}
	if filter.To != nil && !expense.CreatedAt.Before(*filter.To) {
		return false
	}
	return true
}
