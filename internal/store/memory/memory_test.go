package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dukaan/backend/internal/domain"
	"dukaan/backend/internal/money"
	"dukaan/backend/internal/payment"
	"dukaan/backend/internal/store"
	"dukaan/backend/internal/xid"
)

func saleFor(t *testing.T, productID string, qty int, price string, paid string) domain.Sale {
	t.Helper()
	unit := money.MustParse(price)
	total := money.Times(unit, qty)
	state, err := payment.Initial(total, money.MustParse(paid), decimal.Zero, nil, time.Now().UTC())
	require.NoError(t, err)
	return domain.Sale{
		SaleNumber:    xid.SaleNumber(time.Now()),
		Subtotal:      total,
		GrandTotal:    total,
		State:         state,
		PaymentMethod: domain.MethodCash,
		TotalQuantity: qty,
		Items: []domain.SaleLineItem{{
			ProductID:    productID,
			Quantity:     qty,
			SellingPrice: unit,
			ItemTotal:    total,
			ItemNet:      total,
		}},
		Payments: []domain.PaymentRecord{{Amount: money.MustParse(paid), Method: domain.MethodCash}},
	}
}

func TestNewSeededHasCatalogAndAccounts(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()

	products, err := s.ListProducts(ctx)
	require.NoError(t, err)
	assert.Len(t, products, 8)

	flour, err := s.GetProduct(ctx, "prod-flour-2")
	require.NoError(t, err)
	assert.True(t, flour.LowOnStock())

	users, err := s.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.NotEqual(t, "admin123", users[0].Password)
}

func TestCreateSaleRejectsWithoutPartialWrite(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()

	sale := saleFor(t, "prod-rice-25", 2, "24.50", "49.00")
	sale.Items = append(sale.Items, domain.SaleLineItem{ProductID: "prod-flour-2", Quantity: 5, SellingPrice: money.MustParse("2.10")})
	_, err := s.CreateSale(ctx, sale)

	var stockErr *store.InsufficientStockError
	require.True(t, errors.As(err, &stockErr))
	assert.Equal(t, "prod-flour-2", stockErr.ProductID)
	assert.Equal(t, 4, stockErr.Available)
	assert.Equal(t, 5, stockErr.Requested)

	rice, err := s.GetProduct(ctx, "prod-rice-25")
	require.NoError(t, err)
	assert.Equal(t, 40, rice.Stock)
	sales, err := s.ListSales(ctx, domain.SaleFilter{})
	require.NoError(t, err)
	assert.Empty(t, sales)
}

func TestReturnedSalesAreCopies(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()

	created, err := s.CreateSale(ctx, saleFor(t, "prod-tea-250", 1, "1.80", "1.80"))
	require.NoError(t, err)
	created.Items[0].Quantity = 99
	created.Payments = nil

	fetched, err := s.GetSale(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, fetched.Items[0].Quantity)
	assert.Len(t, fetched.Payments, 1)
	assert.Equal(t, "Shaah 250g", fetched.Items[0].Name)
}

func TestConcurrentSalesNeverOversell(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < 20; i++ {
		sale := saleFor(t, "prod-dates-1", 2, "3.25", "6.50")
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.CreateSale(ctx, sale); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	dates, err := s.GetProduct(ctx, "prod-dates-1")
	require.NoError(t, err)
	assert.Equal(t, 15, succeeded)
	assert.Equal(t, 0, dates.Stock)
}

func TestUpdatePurchaseMovesStockAndVendor(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()

	state, err := payment.Initial(money.MustParse("42.00"), decimal.Zero, decimal.Zero, nil, time.Now().UTC())
	require.NoError(t, err)
	result, err := s.CreatePurchase(ctx, domain.Purchase{
		VendorID: "vendor-berbera",
		Total:    money.MustParse("42.00"),
		State:    state,
		Items:    []domain.PurchaseLine{{ProductID: "prod-flour-2", Quantity: 20, UnitPrice: money.MustParse("2.10"), LineTotal: money.MustParse("42.00")}},
	})
	require.NoError(t, err)
	assert.True(t, result.Vendor.Balance.Equal(money.MustParse("42")))

	updated, err := s.UpdatePurchase(ctx, "vendor-berbera", result.Purchase.ID, func(p *domain.Purchase) (*domain.PaymentRecord, error) {
		p.Items[0].Quantity = 10
		p.Items[0].LineTotal = money.MustParse("21.00")
		p.Total = money.MustParse("21.00")
		next, err := payment.Revise(p.State, p.Total, money.MustParse("10.00"), nil, time.Now().UTC())
		if err != nil {
			return nil, err
		}
		p.State = next
		return nil, nil
	})
	require.NoError(t, err)
	assert.True(t, updated.Vendor.Balance.Equal(money.MustParse("11")))
	assert.True(t, updated.Vendor.TotalAmount.Equal(money.MustParse("21")))
	assert.Equal(t, 1, updated.Vendor.TotalPurchases)

	flour, err := s.GetProduct(ctx, "prod-flour-2")
	require.NoError(t, err)
	assert.Equal(t, 14, flour.Stock)

	reconciled, err := s.ReconcileVendor(ctx, "vendor-berbera")
	require.NoError(t, err)
	assert.False(t, reconciled.Drifted)
}

func TestMutationErrorLeavesSaleUntouched(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()

	created, err := s.CreateSale(ctx, saleFor(t, "prod-oil-3", 2, "5.00", "3.00"))
	require.NoError(t, err)

	_, err = s.UpdateSale(ctx, created.ID, func(sale *domain.Sale) (*domain.PaymentRecord, error) {
		sale.CustomerName = "changed"
		return nil, payment.ErrOverpayment
	})
	require.ErrorIs(t, err, payment.ErrOverpayment)

	fetched, err := s.GetSale(ctx, created.ID)
	require.NoError(t, err)
	assert.Empty(t, fetched.CustomerName)
}

func TestReferencedProductAndVendorCannotBeDeleted(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()

	_, err := s.CreateSale(ctx, saleFor(t, "prod-milk-400", 1, "3.75", "3.75"))
	require.NoError(t, err)
	assert.ErrorIs(t, s.DeleteProduct(ctx, "prod-milk-400"), store.ErrConflict)
	assert.NoError(t, s.DeleteProduct(ctx, "prod-pasta-500"))
	assert.ErrorIs(t, s.DeleteProduct(ctx, "prod-pasta-500"), store.ErrNotFound)

	state, err := payment.Initial(money.MustParse("5"), money.MustParse("5"), decimal.Zero, nil, time.Now().UTC())
	require.NoError(t, err)
	_, err = s.CreatePurchase(ctx, domain.Purchase{
		VendorID: "vendor-berbera",
		Total:    money.MustParse("5"),
		State:    state,
		Items:    []domain.PurchaseLine{{ProductName: "Bags", Quantity: 1, UnitPrice: money.MustParse("5"), LineTotal: money.MustParse("5")}},
	})
	require.NoError(t, err)
	assert.ErrorIs(t, s.DeleteVendor(ctx, "vendor-berbera"), store.ErrConflict)
}
