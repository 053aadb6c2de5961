package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"dukaan/backend/internal/cache"
	"dukaan/backend/internal/domain"
	"dukaan/backend/internal/money"
	"dukaan/backend/internal/payment"
	"dukaan/backend/internal/restock"
	"dukaan/backend/internal/store"
	"dukaan/backend/internal/store/memory"
)

func newTestService(t *testing.T) (*Service, *memory.Store) {
	t.Helper()
	repo := memory.NewSeeded()
	svc := New(repo, restock.NewAdvisor(14, 7), cache.NoopReportCache{}, time.Minute, zaptest.NewLogger(t))
	return svc, repo
}

func adminCtx() context.Context {
	return WithActor(context.Background(), domain.Actor{Username: "admin", Role: domain.RoleAdmin})
}

func cashierCtx() context.Context {
	return WithActor(context.Background(), domain.Actor{Username: "cashier", Role: domain.RoleCashier})
}

func amt(raw string) decimal.Decimal {
	return money.MustParse(raw)
}

func stockOf(t *testing.T, svc *Service, id string) int {
	t.Helper()
	product, err := svc.GetProduct(context.Background(), id)
	require.NoError(t, err)
	return product.Stock
}

func seedProduct(t *testing.T, svc *Service, name string, stock int) domain.Product {
	t.Helper()
	product, err := svc.CreateProduct(adminCtx(), domain.ProductCreateRequest{
		Name:  name,
		Cost:  amt("60"),
		Price: amt("100"),
		Stock: stock,
	})
	require.NoError(t, err)
	return product
}

// Product P has stock 10; a sale of 3 with 300 due and 100 paid, then an
// overpayment and an exact settlement.
func TestPartialSaleThenSettle(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := cashierCtx()
	p := seedProduct(t, svc, "Product P", 10)

	sale, err := svc.CreateSale(ctx, domain.SaleCreateRequest{
		Products:   []domain.SaleLineRequest{{ProductID: p.ID, Quantity: 3, SellingPrice: amt("100")}},
		AmountDue:  amt("300"),
		AmountPaid: amt("100"),
	})
	require.NoError(t, err)
	assert.Equal(t, payment.StatusPartiallyPaid, sale.Status)
	assert.True(t, sale.RemainingBalance.Equal(amt("200")))
	assert.Equal(t, 7, stockOf(t, svc, p.ID))
	require.Len(t, sale.Payments, 1)
	assert.Equal(t, "Partial payment", sale.Payments[0].Note)
	assert.Equal(t, "cashier", sale.UserID)

	_, err = svc.CollectSalePayment(ctx, sale.ID, domain.CollectPaymentRequest{Amount: amt("250")})
	require.ErrorIs(t, err, payment.ErrOverpayment)

	unchanged, err := svc.GetSale(ctx, sale.ID)
	require.NoError(t, err)
	assert.True(t, unchanged.AmountPaid.Equal(amt("100")))
	assert.Len(t, unchanged.Payments, 1)

	settled, err := svc.CollectSalePayment(ctx, sale.ID, domain.CollectPaymentRequest{Amount: amt("200"), PaymentMethod: "zaad"})
	require.NoError(t, err)
	assert.Equal(t, payment.StatusCompleted, settled.Status)
	assert.True(t, settled.RemainingBalance.IsZero())
	assert.Len(t, settled.Payments, 2)
	assert.Equal(t, domain.MethodZaad, settled.Payments[1].Method)
	assert.Equal(t, 7, stockOf(t, svc, p.ID))

	_, err = svc.CollectSalePayment(ctx, sale.ID, domain.CollectPaymentRequest{Amount: amt("1")})
	assert.ErrorIs(t, err, payment.ErrAlreadySettled)
}

func TestDeleteSaleRestoresStock(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := cashierCtx()
	p := seedProduct(t, svc, "Product P", 10)
	before := stockOf(t, svc, p.ID)

	sale, err := svc.CreateSale(ctx, domain.SaleCreateRequest{
		Products:   []domain.SaleLineRequest{{ProductID: p.ID, Quantity: 2, SellingPrice: amt("25")}},
		AmountDue:  amt("50"),
		AmountPaid: amt("50"),
	})
	require.NoError(t, err)
	assert.Equal(t, before-2, stockOf(t, svc, p.ID))
	assert.Equal(t, "Full payment", sale.Payments[0].Note)

	err = svc.DeleteSale(ctx, sale.ID, false)
	require.ErrorIs(t, err, ErrForbidden)
	assert.Equal(t, before-2, stockOf(t, svc, p.ID))

	require.NoError(t, svc.DeleteSale(ctx, sale.ID, true))
	assert.Equal(t, before, stockOf(t, svc, p.ID))
	_, err = svc.GetSale(ctx, sale.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteSaleRestoresEveryLine(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := cashierCtx()
	baseline := map[string]int{
		"prod-rice-25": stockOf(t, svc, "prod-rice-25"),
		"prod-sugar-1": stockOf(t, svc, "prod-sugar-1"),
		"prod-tea-250": stockOf(t, svc, "prod-tea-250"),
	}

	sale, err := svc.CreateSale(ctx, domain.SaleCreateRequest{
		Products: []domain.SaleLineRequest{
			{ProductID: "prod-rice-25", Quantity: 1, SellingPrice: amt("24.50")},
			{ProductID: "prod-sugar-1", Quantity: 6, SellingPrice: amt("1.10"), Discount: amt("10")},
			{ProductID: "prod-tea-250", Quantity: 2, SellingPrice: amt("1.80")},
			{ProductID: "prod-sugar-1", Quantity: 4, SellingPrice: amt("1.10")},
		},
		AmountDue:  amt("40"),
		AmountPaid: amt("0"),
	})
	require.NoError(t, err)
	assert.Equal(t, "Sale opened unpaid", sale.Payments[0].Note)
	assert.True(t, sale.Payments[0].Amount.IsZero())
	assert.Equal(t, 13, sale.TotalQuantity)

	require.NoError(t, svc.DeleteSale(ctx, sale.ID, false))
	for id, stock := range baseline {
		assert.Equal(t, stock, stockOf(t, svc, id), id)
	}
}

func TestCreateSaleLineMath(t *testing.T) {
	svc, _ := newTestService(t)

	sale, err := svc.CreateSale(cashierCtx(), domain.SaleCreateRequest{
		Products: []domain.SaleLineRequest{
			{ProductID: "prod-oil-3", Quantity: 3, SellingPrice: amt("5.00"), Discount: amt("10")},
			{ProductID: "prod-milk-400", Quantity: 1, SellingPrice: amt("3.75")},
		},
		DiscountPercentage: amt("5"),
		DiscountAmount:     amt("100"),
		AmountDue:          amt("17.81"),
		AmountPaid:         amt("17.81"),
		CashTendered:       amt("20"),
		PaymentMethod:      "cash",
	})
	require.NoError(t, err)
	require.Len(t, sale.Items, 2)
	assert.True(t, sale.Items[0].ItemTotal.Equal(amt("15.00")))
	assert.True(t, sale.Items[0].ItemDiscount.Equal(amt("1.50")))
	assert.True(t, sale.Items[0].ItemNet.Equal(amt("13.50")))
	assert.True(t, sale.Subtotal.Equal(amt("18.75")))
	// The percentage wins over the flat amount: 5% of 18.75 rounds to 0.94.
	assert.True(t, sale.DiscountAmount.Equal(amt("0.94")))
	assert.True(t, sale.GrandTotal.Equal(amt("17.81")))
	assert.True(t, sale.ChangeAmount.Equal(amt("2.19")))
	assert.Equal(t, "Caano Boore 400g", sale.Items[1].Name)
}

func TestCreateSaleValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := cashierCtx()
	future := time.Now().Add(48 * time.Hour)
	line := []domain.SaleLineRequest{{ProductID: "prod-tea-250", Quantity: 1, SellingPrice: amt("1.80")}}

	cases := []struct {
		name string
		req  domain.SaleCreateRequest
		want error
	}{
		{"no lines", domain.SaleCreateRequest{AmountDue: amt("1")}, ErrValidation},
		{"zero quantity", domain.SaleCreateRequest{Products: []domain.SaleLineRequest{{ProductID: "prod-tea-250"}}, AmountDue: amt("1")}, ErrValidation},
		{"unknown method", domain.SaleCreateRequest{Products: line, AmountDue: amt("1.80"), PaymentMethod: "bitcoin"}, ErrValidation},
		{"future date", domain.SaleCreateRequest{Products: line, AmountDue: amt("1.80"), SaleDate: &future}, ErrValidation},
		{"paid above due", domain.SaleCreateRequest{Products: line, AmountDue: amt("1.80"), AmountPaid: amt("2")}, payment.ErrInvalidAmounts},
		{"zero due", domain.SaleCreateRequest{Products: line}, payment.ErrInvalidAmounts},
		{"missing product", domain.SaleCreateRequest{Products: []domain.SaleLineRequest{{ProductID: "nope", Quantity: 1}}, AmountDue: amt("1")}, ErrNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.CreateSale(ctx, tc.req)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestCreateSaleInsufficientStockNamesProduct(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.CreateSale(cashierCtx(), domain.SaleCreateRequest{
		Products: []domain.SaleLineRequest{
			{ProductID: "prod-rice-25", Quantity: 1, SellingPrice: amt("24.50")},
			{ProductID: "prod-flour-2", Quantity: 9, SellingPrice: amt("2.10")},
		},
		AmountDue: amt("43.40"),
	})
	var stockErr *InsufficientStockError
	require.True(t, errors.As(err, &stockErr))
	assert.Equal(t, "Bur 2kg", stockErr.Name)
	assert.Equal(t, 4, stockErr.Available)
	assert.Equal(t, 40, stockOf(t, svc, "prod-rice-25"))
}

func TestPurchaseRoundTripRestoresVendor(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := adminCtx()
	before, err := svc.GetVendor(ctx, "vendor-berbera")
	require.NoError(t, err)

	result, err := svc.CreatePurchase(ctx, "vendor-berbera", domain.PurchaseCreateRequest{
		Products: []domain.PurchaseLineRequest{
			{ProductName: "bur 2KG", Quantity: 10, UnitPrice: amt("1.70")},
			{ProductName: "Transport", Quantity: 1, UnitPrice: amt("5.00")},
		},
		AmountPaid: amt("10"),
	})
	require.NoError(t, err)
	assert.True(t, result.Purchase.AmountDue.Equal(amt("22")))
	assert.Equal(t, "prod-flour-2", result.Purchase.Items[0].ProductID)
	assert.Empty(t, result.Purchase.Items[1].ProductID)
	assert.True(t, result.Vendor.Balance.Sub(before.Balance).Equal(amt("12")))
	assert.Equal(t, 14, stockOf(t, svc, "prod-flour-2"))
	require.Len(t, result.Purchase.Payments, 1)

	vendor, err := svc.DeletePurchase(ctx, "vendor-berbera", result.Purchase.ID, false)
	require.NoError(t, err)
	assert.True(t, vendor.Balance.Equal(before.Balance))
	assert.True(t, vendor.TotalAmount.Equal(before.TotalAmount))
	assert.Equal(t, before.TotalPurchases, vendor.TotalPurchases)
	assert.Equal(t, 4, stockOf(t, svc, "prod-flour-2"))
}

func TestVendorBalanceMatchesPurchasesAfterMixedOperations(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := adminCtx()
	vendor, err := svc.CreateVendor(ctx, domain.VendorRequest{Name: "Hargeisa Traders"})
	require.NoError(t, err)

	ids := make([]string, 0, 4)
	for i, due := range []string{"100", "45.50", "80", "12.25"} {
		result, err := svc.CreatePurchase(ctx, vendor.ID, domain.PurchaseCreateRequest{
			Products:   []domain.PurchaseLineRequest{{ProductID: "prod-oil-3", Quantity: i + 1, UnitPrice: amt("4.20")}},
			AmountDue:  amt(due),
			AmountPaid: amt("10"),
		})
		require.NoError(t, err)
		ids = append(ids, result.Purchase.ID)
	}

	_, err = svc.CollectPurchasePayment(ctx, vendor.ID, ids[0], domain.CollectPaymentRequest{Amount: amt("30")})
	require.NoError(t, err)
	_, err = svc.CollectPurchasePayment(ctx, vendor.ID, ids[0], domain.CollectPaymentRequest{Amount: amt("61")})
	require.ErrorIs(t, err, payment.ErrOverpayment)

	newDue := amt("60")
	newPaid := amt("20")
	_, err = svc.UpdatePurchase(ctx, vendor.ID, ids[2], domain.PurchaseUpdateRequest{
		Products:   []domain.PurchaseLineRequest{{ProductID: "prod-oil-3", Quantity: 1, UnitPrice: amt("4.20")}},
		AmountDue:  &newDue,
		AmountPaid: &newPaid,
	})
	require.NoError(t, err)
	_, err = svc.DeletePurchase(ctx, vendor.ID, ids[1], false)
	require.NoError(t, err)

	purchases, err := svc.ListVendorPurchases(ctx, vendor.ID, domain.PurchaseFilter{})
	require.NoError(t, err)
	require.Len(t, purchases, 3)
	want := store.Aggregate(purchases)

	got, err := svc.GetVendor(ctx, vendor.ID)
	require.NoError(t, err)
	assert.True(t, got.Balance.Equal(want.Balance), "balance %s, want %s", got.Balance, want.Balance)
	assert.True(t, got.TotalAmount.Equal(want.TotalAmount))
	assert.Equal(t, want.TotalPurchases, got.TotalPurchases)

	reconciled, err := repo.ReconcileVendor(ctx, vendor.ID)
	require.NoError(t, err)
	assert.False(t, reconciled.Drifted)
}

func TestUpdatePurchaseCannotTakeBackSoldGoods(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := adminCtx()
	p := seedProduct(t, svc, "Timir Medjool", 0)

	result, err := svc.CreatePurchase(ctx, "vendor-berbera", domain.PurchaseCreateRequest{
		Products: []domain.PurchaseLineRequest{{ProductID: p.ID, Quantity: 10, UnitPrice: amt("60")}},
	})
	require.NoError(t, err)
	_, err = svc.CreateSale(ctx, domain.SaleCreateRequest{
		Products:  []domain.SaleLineRequest{{ProductID: p.ID, Quantity: 8, SellingPrice: amt("100")}},
		AmountDue: amt("800"),
	})
	require.NoError(t, err)

	_, err = svc.UpdatePurchase(ctx, "vendor-berbera", result.Purchase.ID, domain.PurchaseUpdateRequest{
		Products: []domain.PurchaseLineRequest{{ProductID: p.ID, Quantity: 1, UnitPrice: amt("60")}},
	})
	require.ErrorIs(t, err, ErrInsufficientStock)
	assert.Equal(t, 2, stockOf(t, svc, p.ID))
}

func TestSettledPurchaseDeleteNeedsManager(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := adminCtx()

	result, err := svc.CreatePurchase(ctx, "vendor-berbera", domain.PurchaseCreateRequest{
		Products:   []domain.PurchaseLineRequest{{ProductName: "Shelving", Quantity: 1, UnitPrice: amt("30")}},
		AmountPaid: amt("30"),
	})
	require.NoError(t, err)
	assert.Equal(t, payment.StatusCompleted, result.Purchase.Status)

	_, err = svc.DeletePurchase(ctx, "vendor-berbera", result.Purchase.ID, false)
	require.ErrorIs(t, err, ErrForbidden)
	_, err = svc.DeletePurchase(ctx, "vendor-berbera", result.Purchase.ID, true)
	require.NoError(t, err)
}

func TestSaleStatusTransitions(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := adminCtx()

	open, err := svc.CreateSale(ctx, domain.SaleCreateRequest{
		Products:  []domain.SaleLineRequest{{ProductID: "prod-tea-250", Quantity: 1, SellingPrice: amt("1.80")}},
		AmountDue: amt("1.80"),
	})
	require.NoError(t, err)

	_, err = svc.SetSaleStatus(cashierCtx(), open.ID, domain.SaleStatusRequest{Status: "cancelled"})
	require.ErrorIs(t, err, ErrForbidden)
	_, err = svc.SetSaleStatus(ctx, open.ID, domain.SaleStatusRequest{Status: "refunded"})
	require.ErrorIs(t, err, ErrValidation)

	cancelled, err := svc.SetSaleStatus(ctx, open.ID, domain.SaleStatusRequest{Status: "cancelled", Reason: "customer left"})
	require.NoError(t, err)
	assert.Equal(t, payment.StatusCancelled, cancelled.Status)

	note := "late"
	_, err = svc.UpdateSale(ctx, open.ID, domain.SaleUpdateRequest{Notes: &note})
	require.ErrorIs(t, err, payment.ErrAlreadySettled)

	_, err = svc.CollectSalePayment(ctx, open.ID, domain.CollectPaymentRequest{Amount: amt("1.80")})
	require.ErrorIs(t, err, payment.ErrAlreadySettled)
}

func TestOverdueReceivables(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := cashierCtx()
	due := time.Now().Add(24 * time.Hour)

	unpaid, err := svc.CreateSale(ctx, domain.SaleCreateRequest{
		Products:     []domain.SaleLineRequest{{ProductID: "prod-dates-1", Quantity: 2, SellingPrice: amt("3.25")}},
		AmountDue:    amt("6.50"),
		DueDate:      &due,
		CustomerName: "Hodan Warsame",
	})
	require.NoError(t, err)
	partial, err := svc.CreateSale(ctx, domain.SaleCreateRequest{
		Products:   []domain.SaleLineRequest{{ProductID: "prod-dates-1", Quantity: 1, SellingPrice: amt("3.25")}},
		AmountDue:  amt("3.25"),
		AmountPaid: amt("1"),
		DueDate:    &due,
	})
	require.NoError(t, err)

	svc.now = func() time.Time { return time.Now().UTC().Add(72 * time.Hour) }
	marked, err := svc.RefreshOverdue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, marked)

	overdue, err := svc.GetSale(ctx, unpaid.ID)
	require.NoError(t, err)
	assert.Equal(t, payment.StatusOverdue, overdue.Status)

	receivables, err := svc.ListReceivables(ctx, "hodan")
	require.NoError(t, err)
	require.Len(t, receivables, 1)
	assert.Equal(t, unpaid.ID, receivables[0].ID)

	summary, err := svc.ReceivableSummary(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Totals.Count)
	assert.True(t, summary.Totals.RemainingBalance.Equal(amt("8.75")))
	assert.Equal(t, 1, summary.ByStatus[payment.StatusOverdue].Count)
	assert.Equal(t, 1, summary.ByStatus[payment.StatusPartiallyPaid].Count)
	require.NotNil(t, summary.Oldest)

	settled, err := svc.CollectSalePayment(ctx, partial.ID, domain.CollectPaymentRequest{Amount: amt("2.25")})
	require.NoError(t, err)
	assert.Equal(t, payment.StatusCompleted, settled.Status)
}

type countingCache struct {
	stored      map[string]domain.PeriodReport
	invalidated int
}

func (c *countingCache) Get(_ context.Context, key string) (*domain.PeriodReport, bool, error) {
	report, ok := c.stored[key]
	if !ok {
		return nil, false, nil
	}
	return &report, true, nil
}

func (c *countingCache) Set(_ context.Context, key string, value *domain.PeriodReport, _ time.Duration) error {
	c.stored[key] = *value
	return nil
}

func (c *countingCache) Invalidate(_ context.Context) error {
	c.invalidated++
	c.stored = map[string]domain.PeriodReport{}
	return nil
}

func TestReportsAndCacheInvalidation(t *testing.T) {
	reports := &countingCache{stored: map[string]domain.PeriodReport{}}
	svc := New(memory.NewSeeded(), nil, reports, time.Minute, zaptest.NewLogger(t))
	ctx := adminCtx()
	yesterday := time.Now().UTC().Add(-24 * time.Hour)
	day := yesterday.Format("2006-01-02")

	_, err := svc.CreateSale(ctx, domain.SaleCreateRequest{
		Products:   []domain.SaleLineRequest{{ProductID: "prod-rice-25", Quantity: 2, SellingPrice: amt("24.50")}},
		AmountDue:  amt("49"),
		AmountPaid: amt("40"),
		SaleDate:   &yesterday,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, reports.invalidated)

	_, err = svc.CreateExpense(ctx, domain.ExpenseRequest{
		ExpenseType: "Electricity",
		AmountDue:   amt("15"),
		AmountPaid:  amt("15"),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, reports.invalidated)

	report, err := svc.DailyReport(ctx, day)
	require.NoError(t, err)
	assert.Equal(t, 1, report.SalesCount)
	assert.True(t, report.GrossSales.Equal(amt("49")))
	assert.True(t, report.Collected.Equal(amt("40")))
	assert.True(t, report.Outstanding.Equal(amt("9")))
	assert.Contains(t, reports.stored, "daily:"+day)

	today, err := svc.DailyReport(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 1, today.ExpenseCount)
	assert.True(t, today.Net.Equal(amt("-15")))
	assert.NotContains(t, reports.stored, "daily:"+time.Now().UTC().Format("2006-01-02"))

	_, err = svc.DailyReport(ctx, "15/03/2026")
	assert.ErrorIs(t, err, ErrValidation)
	_, err = svc.MonthlyReport(ctx, 2026, 13)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestExpenseLifecycle(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := adminCtx()

	expense, err := svc.CreateExpense(ctx, domain.ExpenseRequest{
		ClientName:    "Dahabshiil",
		ExpenseType:   "rent",
		PaymentMethod: "e-dahab",
		AmountDue:     amt("300"),
		AmountPaid:    amt("100"),
	})
	require.NoError(t, err)
	assert.Equal(t, domain.ExpenseType("RENT"), expense.ExpenseType)
	assert.Equal(t, domain.MethodEdahab, expense.PaymentMethod)
	assert.Equal(t, payment.StatusPartiallyPaid, expense.Status)

	updated, err := svc.UpdateExpense(ctx, expense.ID, domain.ExpenseRequest{
		ExpenseType: "rent",
		AmountDue:   amt("300"),
		AmountPaid:  amt("300"),
	})
	require.NoError(t, err)
	assert.Equal(t, payment.StatusCompleted, updated.Status)

	stats, err := svc.ExpenseStats(ctx, domain.ExpenseFilter{})
	require.NoError(t, err)
	assert.True(t, stats.ByType["RENT"].AmountPaid.Equal(amt("300")))

	require.NoError(t, svc.DeleteExpense(ctx, expense.ID))
	_, err = svc.GetExpense(ctx, expense.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestProductAdminOperations(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.CreateProduct(cashierCtx(), domain.ProductCreateRequest{Name: "Caano", Price: amt("1")})
	require.ErrorIs(t, err, ErrForbidden)

	_, err = svc.CreateProduct(adminCtx(), domain.ProductCreateRequest{Name: "Caano", Price: amt("1.005")})
	require.ErrorIs(t, err, ErrValidation)

	product := seedProduct(t, svc, "Caano", 3)
	assert.Equal(t, defaultLowStockThreshold, product.LowStockThreshold)

	price := amt("1.25")
	updated, err := svc.UpdateProduct(adminCtx(), product.ID, domain.ProductUpdateRequest{Price: &price})
	require.NoError(t, err)
	assert.True(t, updated.Price.Equal(price))
	assert.Equal(t, 3, updated.Stock)

	low, err := svc.LowStock(context.Background())
	require.NoError(t, err)
	names := make([]string, 0, len(low.Products))
	for _, p := range low.Products {
		names = append(names, p.Name)
	}
	assert.ElementsMatch(t, []string{"Caano", "Bur 2kg"}, names)
	assert.NotEmpty(t, low.Suggestions)

	require.NoError(t, svc.DeleteProduct(adminCtx(), product.ID))
	assert.ErrorIs(t, svc.DeleteVendor(adminCtx(), "vendor-missing"), ErrNotFound)
}

func TestAuditTrailRecordsActor(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.CreateVendor(cashierCtx(), domain.VendorRequest{Name: "Burao Supplies"})
	require.NoError(t, err)

	_, err = svc.ListAuditLogs(cashierCtx(), "", 10)
	require.ErrorIs(t, err, ErrForbidden)

	logs, err := svc.ListAuditLogs(adminCtx(), "", 10)
	require.NoError(t, err)
	require.NotEmpty(t, logs)
	assert.Equal(t, "vendor_create", logs[0].Action)
	assert.Equal(t, "cashier", logs[0].ActorUsername)
}
