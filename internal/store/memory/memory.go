package memory

import (
	"cmp"
	"context"
	"fmt"
	"log"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"dukaan/backend/internal/domain"
	"dukaan/backend/internal/money"
	"dukaan/backend/internal/payment"
	"dukaan/backend/internal/store"
	"dukaan/backend/internal/xid"
)

// Store keeps the whole ledger behind one lock. Every mutation validates
// all of its preconditions before the first write, so a failed call leaves
// nothing behind.
type Store struct {
	mu              sync.RWMutex
	products        map[string]domain.Product
	sales           map[string]*domain.Sale
	vendors         map[string]domain.Vendor
	purchases       map[string]*domain.Purchase
	expenses        map[string]domain.Expense
	auditLogs       []domain.AuditLog
	usersByUsername map[string]domain.UserAccount
}

func New() *Store {
	return &Store{
		products:        make(map[string]domain.Product),
		sales:           make(map[string]*domain.Sale),
		vendors:         make(map[string]domain.Vendor),
		purchases:       make(map[string]*domain.Purchase),
		expenses:        make(map[string]domain.Expense),
		auditLogs:       make([]domain.AuditLog, 0, 128),
		usersByUsername: make(map[string]domain.UserAccount),
	}
}

// seedUsers builds the demo accounts. Credentials come from
// SEED_ADMIN_PASSWORD and SEED_CASHIER_PASSWORD, falling back to dev
// defaults with a warning. The memory store is never used when a database
// is configured.
func seedUsers(now time.Time) map[string]domain.UserAccount {
	adminPwd := envOr("SEED_ADMIN_PASSWORD", "admin123")
	cashierPwd := envOr("SEED_CASHIER_PASSWORD", "cashier123")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_CASHIER_PASSWORD") == "" {
		log.Println("[memory-store] WARNING: using default dev credentials. Set SEED_ADMIN_PASSWORD and SEED_CASHIER_PASSWORD to override.")
	}

	users := map[string]domain.UserAccount{}
	for _, u := range []struct {
		username string
		password string
		role     string
	}{
		{"admin", adminPwd, domain.RoleAdmin},
		{"cashier", cashierPwd, domain.RoleCashier},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("[memory-store] failed to hash seed password for %s: %v", u.username, err)
		}
		users[u.username] = domain.UserAccount{
			Username:  u.username,
			Password:  string(hash),
			Role:      u.role,
			Active:    true,
			CreatedAt: now,
		}
	}
	return users
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// NewSeeded returns a store with a demo catalog, one vendor and the seed
// accounts.
func NewSeeded() *Store {
	s := New()
	now := time.Now().UTC()

	products := []struct {
		id    string
		name  string
		cost  string
		price string
		stock int
	}{
		{"prod-rice-25", "Bariis 25kg", "21.00", "24.50", 40},
		{"prod-sugar-1", "Sonkor 1kg", "0.85", "1.10", 120},
		{"prod-oil-3", "Saliid 3L", "4.20", "5.00", 60},
		{"prod-pasta-500", "Baasto 500g", "0.55", "0.75", 150},
		{"prod-milk-400", "Caano Boore 400g", "3.10", "3.75", 45},
		{"prod-tea-250", "Shaah 250g", "1.40", "1.80", 80},
		{"prod-dates-1", "Timir 1kg", "2.60", "3.25", 30},
		{"prod-flour-2", "Bur 2kg", "1.70", "2.10", 4},
	}
	for _, p := range products {
		s.products[p.id] = domain.Product{
			ID:                p.id,
			Name:              p.name,
			Cost:              money.MustParse(p.cost),
			Price:             money.MustParse(p.price),
			Stock:             p.stock,
			LowStockThreshold: 5,
			CreatedAt:         now,
			UpdatedAt:         now,
		}
	}

	s.vendors["vendor-berbera"] = domain.Vendor{
		ID:          "vendor-berbera",
		Name:        "Berbera Wholesale",
		PhoneNumber: "+252634000000",
		Location:    "Hargeisa",
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.usersByUsername = seedUsers(now)
	return s
}

func (s *Store) ListProducts(_ context.Context) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]domain.Product, 0, len(s.products))
	for _, product := range s.products {
		products = append(products, cloneProduct(product))
	}
	slices.SortFunc(products, func(a, b domain.Product) int {
		return cmp.Or(cmp.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name)), cmp.Compare(a.ID, b.ID))
	})
	return products, nil
}

func (s *Store) GetProduct(_ context.Context, id string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	product, ok := s.products[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := cloneProduct(product)
	return &out, nil
}

func (s *Store) FindProductByName(_ context.Context, name string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	name = strings.TrimSpace(name)
	for _, product := range s.products {
		if strings.EqualFold(product.Name, name) {
			out := cloneProduct(product)
			return &out, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) CreateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if product.ID == "" {
		product.ID = xid.New("prod")
	}
	if _, exists := s.products[product.ID]; exists {
		return nil, store.ErrConflict
	}
	if err := s.checkBarcode(product.ID, product.Barcode); err != nil {
		return nil, err
	}
	if product.CreatedAt.IsZero() {
		product.CreatedAt = time.Now().UTC()
	}
	product.UpdatedAt = product.CreatedAt
	s.products[product.ID] = cloneProduct(product)
	out := cloneProduct(product)
	return &out, nil
}

// UpdateProduct replaces product metadata. Stock is owned by sales and
// purchases and is never taken from the argument.
func (s *Store) UpdateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.products[product.ID]
	if !ok {
		return nil, store.ErrNotFound
	}
	if err := s.checkBarcode(product.ID, product.Barcode); err != nil {
		return nil, err
	}
	product.Stock = existing.Stock
	product.CreatedAt = existing.CreatedAt
	if product.UpdatedAt.IsZero() {
		product.UpdatedAt = time.Now().UTC()
	}
	s.products[product.ID] = cloneProduct(product)
	out := cloneProduct(product)
	return &out, nil
}

func (s *Store) DeleteProduct(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.products[id]; !ok {
		return store.ErrNotFound
	}
	for _, sale := range s.sales {
		for _, line := range sale.Items {
			if line.ProductID == id {
				return fmt.Errorf("product %s is referenced by sale %s: %w", id, sale.SaleNumber, store.ErrConflict)
			}
		}
	}
	for _, purchase := range s.purchases {
		for _, line := range purchase.Items {
			if line.ProductID == id {
				return fmt.Errorf("product %s is referenced by purchase %s: %w", id, purchase.ID, store.ErrConflict)
			}
		}
	}
	delete(s.products, id)
	return nil
}

func (s *Store) SoldQuantities(_ context.Context, from time.Time, to time.Time) (map[string]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sold := map[string]int{}
	for _, sale := range s.sales {
		if sale.Status == payment.StatusCancelled || sale.CreatedAt.Before(from) || !sale.CreatedAt.Before(to) {
			continue
		}
		for _, line := range sale.Items {
			sold[line.ProductID] += line.Quantity
		}
	}
	return sold, nil
}

func (s *Store) CreateSale(_ context.Context, sale domain.Sale) (*domain.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(sale.Items) == 0 {
		return nil, fmt.Errorf("sale has no line items: %w", store.ErrConflict)
	}
	for _, existing := range s.sales {
		if existing.SaleNumber == sale.SaleNumber {
			return nil, fmt.Errorf("sale number %s: %w", sale.SaleNumber, store.ErrConflict)
		}
	}

	delta := map[string]int{}
	for _, line := range sale.Items {
		delta[line.ProductID] -= line.Quantity
	}
	if err := s.checkStock(delta); err != nil {
		return nil, err
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
	for i := range sale.Items {
		line := &sale.Items[i]
		if line.ID == "" {
			line.ID = xid.New("line")
		}
		line.SaleID = sale.ID
		line.Position = i
		line.Name = s.products[line.ProductID].Name
	}
	for i := range sale.Payments {
		s.stampSalePayment(&sale.Payments[i], sale.ID, sale.CreatedAt)
	}

	s.moveStock(delta, sale.CreatedAt)
	stored := cloneSale(sale)
	s.sales[sale.ID] = &stored
	out := cloneSale(stored)
	return &out, nil
}

func (s *Store) GetSale(_ context.Context, id string) (*domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sale, ok := s.sales[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := cloneSale(*sale)
	return &out, nil
}

func (s *Store) ListSales(_ context.Context, filter domain.SaleFilter) ([]domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sales := make([]domain.Sale, 0, len(s.sales))
	for _, sale := range s.sales {
		if store.MatchSale(*sale, filter) {
			sales = append(sales, cloneSale(*sale))
		}
	}
	slices.SortFunc(sales, func(a, b domain.Sale) int {
		return cmp.Or(b.CreatedAt.Compare(a.CreatedAt), cmp.Compare(b.ID, a.ID))
	})
	return sales, nil
}

func (s *Store) UpdateSale(_ context.Context, id string, mutate store.SaleMutation) (*domain.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.sales[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	working := cloneSale(*current)
	record, err := mutate(&working)
	if err != nil {
		return nil, err
	}

	working.ID = current.ID
	working.SaleNumber = current.SaleNumber
	working.CreatedAt = current.CreatedAt
	working.Items = cloneSale(*current).Items
	working.Payments = cloneSale(*current).Payments
	if working.UpdatedAt.Equal(current.UpdatedAt) {
		working.UpdatedAt = time.Now().UTC()
	}
	if record != nil {
		s.stampSalePayment(record, working.ID, working.UpdatedAt)
		working.Payments = append(working.Payments, *record)
	}

	s.sales[id] = &working
	out := cloneSale(working)
	return &out, nil
}

// DeleteSale restores the stock of every line and drops the sale with its
// line items and payment history.
func (s *Store) DeleteSale(_ context.Context, id string, guard func(domain.Sale) error) (*domain.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.sales[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	if guard != nil {
		if err := guard(cloneSale(*current)); err != nil {
			return nil, err
		}
	}

	delta := map[string]int{}
	for _, line := range current.Items {
		if _, exists := s.products[line.ProductID]; exists {
			delta[line.ProductID] += line.Quantity
		}
	}
	s.moveStock(delta, time.Now().UTC())
	delete(s.sales, id)
	out := cloneSale(*current)
	return &out, nil
}

func (s *Store) MarkOverdue(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	marked := 0
	for _, sale := range s.sales {
		if sale.Status != payment.StatusPending {
			continue
		}
		next := payment.Reconcile(sale.State, sale.DueDate, now)
		if next.Status == payment.StatusOverdue {
			sale.State = next
			sale.UpdatedAt = now
			marked++
		}
	}
	return marked, nil
}

func (s *Store) CreateVendor(_ context.Context, vendor domain.Vendor) (*domain.Vendor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if vendor.ID == "" {
		vendor.ID = xid.New("vendor")
	}
	if _, exists := s.vendors[vendor.ID]; exists {
		return nil, store.ErrConflict
	}
	if vendor.CreatedAt.IsZero() {
		vendor.CreatedAt = time.Now().UTC()
	}
	vendor.UpdatedAt = vendor.CreatedAt
	vendor.TotalPurchases = 0
	vendor.TotalAmount = decimal.Zero
	vendor.Balance = decimal.Zero
	s.vendors[vendor.ID] = vendor
	return &vendor, nil
}

func (s *Store) GetVendor(_ context.Context, id string) (*domain.Vendor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	vendor, ok := s.vendors[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &vendor, nil
}

func (s *Store) ListVendors(_ context.Context) ([]domain.Vendor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	vendors := make([]domain.Vendor, 0, len(s.vendors))
	for _, vendor := range s.vendors {
		vendors = append(vendors, vendor)
	}
	slices.SortFunc(vendors, func(a, b domain.Vendor) int {
		return cmp.Or(cmp.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name)), cmp.Compare(a.ID, b.ID))
	})
	return vendors, nil
}

func (s *Store) UpdateVendor(_ context.Context, vendor domain.Vendor) (*domain.Vendor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.vendors[vendor.ID]
	if !ok {
		return nil, store.ErrNotFound
	}
	existing.Name = vendor.Name
	existing.PhoneNumber = vendor.PhoneNumber
	existing.Location = vendor.Location
	existing.UpdatedAt = time.Now().UTC()
	s.vendors[vendor.ID] = existing
	return &existing, nil
}

func (s *Store) DeleteVendor(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.vendors[id]; !ok {
		return store.ErrNotFound
	}
	for _, purchase := range s.purchases {
		if purchase.VendorID == id {
			return fmt.Errorf("vendor %s has purchases: %w", id, store.ErrConflict)
		}
	}
	delete(s.vendors, id)
	return nil
}

func (s *Store) ReconcileVendor(_ context.Context, id string) (*domain.VendorReconciliation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.vendors[id]; !ok {
		return nil, store.ErrNotFound
	}
	result := s.reconcileLocked(id, time.Now().UTC())
	return &result, nil
}

func (s *Store) ReconcileAllVendors(_ context.Context) ([]domain.VendorReconciliation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, 0, len(s.vendors))
	for id := range s.vendors {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	now := time.Now().UTC()
	results := make([]domain.VendorReconciliation, 0, len(ids))
	for _, id := range ids {
		results = append(results, s.reconcileLocked(id, now))
	}
	return results, nil
}

func (s *Store) CreatePurchase(_ context.Context, purchase domain.Purchase) (*domain.PurchaseResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	vendor, ok := s.vendors[purchase.VendorID]
	if !ok {
		return nil, fmt.Errorf("vendor %s: %w", purchase.VendorID, store.ErrNotFound)
	}
	delta := store.StockDelta(nil, purchase.Items)
	if err := s.checkStock(delta); err != nil {
		return nil, err
	}

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
	s.stampPurchaseLines(&purchase)
	for i := range purchase.Payments {
		s.stampPurchasePayment(&purchase.Payments[i], purchase.ID, purchase.CreatedAt)
	}

	s.moveStock(delta, purchase.UpdatedAt)
	vendor = applyVendorDelta(vendor, store.VendorDelta(nil, &purchase), purchase.UpdatedAt)
	s.vendors[vendor.ID] = vendor
	stored := clonePurchase(purchase)
	s.purchases[purchase.ID] = &stored

	return &domain.PurchaseResult{Purchase: clonePurchase(stored), Vendor: vendor}, nil
}

func (s *Store) GetPurchase(_ context.Context, vendorID string, id string) (*domain.Purchase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	purchase, ok := s.purchases[id]
	if !ok || (vendorID != "" && purchase.VendorID != vendorID) {
		return nil, store.ErrNotFound
	}
	out := clonePurchase(*purchase)
	return &out, nil
}

func (s *Store) ListPurchases(_ context.Context, filter domain.PurchaseFilter) ([]domain.Purchase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	purchases := make([]domain.Purchase, 0, len(s.purchases))
	for _, purchase := range s.purchases {
		if store.MatchPurchase(*purchase, filter) {
			purchases = append(purchases, clonePurchase(*purchase))
		}
	}
	slices.SortFunc(purchases, func(a, b domain.Purchase) int {
		return cmp.Or(b.PurchaseDate.Compare(a.PurchaseDate), cmp.Compare(b.ID, a.ID))
	})
	return purchases, nil
}

func (s *Store) UpdatePurchase(_ context.Context, vendorID string, id string, mutate store.PurchaseMutation) (*domain.PurchaseResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.purchases[id]
	if !ok || current.VendorID != vendorID {
		return nil, store.ErrNotFound
	}
	vendor, ok := s.vendors[vendorID]
	if !ok {
		return nil, fmt.Errorf("vendor %s: %w", vendorID, store.ErrNotFound)
	}

	working := clonePurchase(*current)
	record, err := mutate(&working)
	if err != nil {
		return nil, err
	}
	working.ID = current.ID
	working.VendorID = current.VendorID
	working.CreatedAt = current.CreatedAt
	working.Payments = clonePurchase(*current).Payments
	if working.UpdatedAt.Equal(current.UpdatedAt) {
		working.UpdatedAt = time.Now().UTC()
	}

	delta := store.StockDelta(current.Items, working.Items)
	if err := s.checkStock(delta); err != nil {
		return nil, err
	}

	s.stampPurchaseLines(&working)
	if record != nil {
		s.stampPurchasePayment(record, working.ID, working.UpdatedAt)
		working.Payments = append(working.Payments, *record)
	}

	s.moveStock(delta, working.UpdatedAt)
	vendor = applyVendorDelta(vendor, store.VendorDelta(current, &working), working.UpdatedAt)
	s.vendors[vendor.ID] = vendor
	s.purchases[id] = &working

	return &domain.PurchaseResult{Purchase: clonePurchase(working), Vendor: vendor}, nil
}

// DeletePurchase takes back the goods the purchase added to stock and
// removes its contribution from the vendor aggregates.
func (s *Store) DeletePurchase(_ context.Context, vendorID string, id string, guard func(domain.Purchase) error) (*domain.PurchaseResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.purchases[id]
	if !ok || current.VendorID != vendorID {
		return nil, store.ErrNotFound
	}
	vendor, ok := s.vendors[vendorID]
	if !ok {
		return nil, fmt.Errorf("vendor %s: %w", vendorID, store.ErrNotFound)
	}
	if guard != nil {
		if err := guard(clonePurchase(*current)); err != nil {
			return nil, err
		}
	}

	delta := store.StockDelta(current.Items, nil)
	if err := s.checkStock(delta); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	s.moveStock(delta, now)
	vendor = applyVendorDelta(vendor, store.VendorDelta(current, nil), now)
	s.vendors[vendor.ID] = vendor
	delete(s.purchases, id)

	return &domain.PurchaseResult{Purchase: clonePurchase(*current), Vendor: vendor}, nil
}

func (s *Store) CreateExpense(_ context.Context, expense domain.Expense) (*domain.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if expense.ID == "" {
		expense.ID = xid.New("expense")
	}
	if expense.CreatedAt.IsZero() {
		expense.CreatedAt = time.Now().UTC()
	}
	if expense.UpdatedAt.IsZero() {
		expense.UpdatedAt = expense.CreatedAt
	}
	s.expenses[expense.ID] = cloneExpense(expense)
	out := cloneExpense(expense)
	return &out, nil
}

func (s *Store) GetExpense(_ context.Context, id string) (*domain.Expense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	expense, ok := s.expenses[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := cloneExpense(expense)
	return &out, nil
}

func (s *Store) ListExpenses(_ context.Context, filter domain.ExpenseFilter) ([]domain.Expense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	expenses := make([]domain.Expense, 0, len(s.expenses))
	for _, expense := range s.expenses {
		if store.MatchExpense(expense, filter) {
			expenses = append(expenses, cloneExpense(expense))
		}
	}
	slices.SortFunc(expenses, func(a, b domain.Expense) int {
		return cmp.Or(b.CreatedAt.Compare(a.CreatedAt), cmp.Compare(b.ID, a.ID))
	})
	return expenses, nil
}

func (s *Store) UpdateExpense(_ context.Context, id string, mutate store.ExpenseMutation) (*domain.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.expenses[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	working := cloneExpense(current)
	if err := mutate(&working); err != nil {
		return nil, err
	}
	working.ID = current.ID
	working.CreatedAt = current.CreatedAt
	if working.UpdatedAt.Equal(current.UpdatedAt) {
		working.UpdatedAt = time.Now().UTC()
	}
	s.expenses[id] = cloneExpense(working)
	return &working, nil
}

func (s *Store) DeleteExpense(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.expenses[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.expenses, id)
	return nil
}

func (s *Store) CreateAuditLog(_ context.Context, entry domain.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	s.auditLogs = append(s.auditLogs, entry)
	return nil
}

func (s *Store) ListAuditLogs(_ context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.AuditLog, 0, 64)
	for _, entry := range s.auditLogs {
		if entry.CreatedAt.Before(from) || !entry.CreatedAt.Before(to) {
			continue
		}
		result = append(result, entry)
	}

	slices.SortFunc(result, func(a, b domain.AuditLog) int {
		return cmp.Or(b.CreatedAt.Compare(a.CreatedAt), cmp.Compare(b.ID, a.ID))
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user.Username = strings.ToLower(strings.TrimSpace(user.Username))
	if _, exists := s.usersByUsername[user.Username]; exists {
		return fmt.Errorf("username %s: %w", user.Username, store.ErrConflict)
	}
	if user.Role == "" {
		user.Role = domain.RoleCashier
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	user.Active = true
	s.usersByUsername[user.Username] = user
	return nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.UserAccount, 0, len(s.usersByUsername))
	for _, user := range s.usersByUsername {
		users = append(users, user)
	}
	slices.SortFunc(users, func(a, b domain.UserAccount) int {
		return cmp.Compare(a.Username, b.Username)
	})
	return users, nil
}

func (s *Store) UpdateUserPassword(_ context.Context, username string, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	username = strings.ToLower(strings.TrimSpace(username))
	user, exists := s.usersByUsername[username]
	if !exists {
		return store.ErrNotFound
	}
	user.Password = password
	s.usersByUsername[username] = user
	return nil
}

func (s *Store) checkBarcode(id string, barcode string) error {
	if barcode == "" {
		return nil
	}
	for _, other := range s.products {
		if other.ID != id && other.Barcode == barcode {
			return fmt.Errorf("barcode %s: %w", barcode, store.ErrConflict)
		}
	}
	return nil
}

// checkStock verifies a stock movement without applying it.
func (s *Store) checkStock(delta map[string]int) error {
	ids := make([]string, 0, len(delta))
	for id := range delta {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	for _, id := range ids {
		product, ok := s.products[id]
		if !ok {
			return fmt.Errorf("product %s: %w", id, store.ErrNotFound)
		}
		if product.Stock+delta[id] < 0 {
			return &store.InsufficientStockError{
				ProductID: id,
				Name:      product.Name,
				Available: product.Stock,
				Requested: -delta[id],
			}
		}
	}
	return nil
}

func (s *Store) moveStock(delta map[string]int, at time.Time) {
	for id, qty := range delta {
		product := s.products[id]
		product.Stock += qty
		product.UpdatedAt = at
		s.products[id] = product
	}
}

func (s *Store) reconcileLocked(id string, now time.Time) domain.VendorReconciliation {
	vendor := s.vendors[id]
	purchases := make([]domain.Purchase, 0)
	for _, purchase := range s.purchases {
		if purchase.VendorID == id {
			purchases = append(purchases, *purchase)
		}
	}

	before := domain.VendorAggregates{TotalPurchases: vendor.TotalPurchases, TotalAmount: vendor.TotalAmount, Balance: vendor.Balance}
	after := store.Aggregate(purchases)
	drifted := !before.Equal(after)
	if drifted {
		vendor.TotalPurchases = after.TotalPurchases
		vendor.TotalAmount = after.TotalAmount
		vendor.Balance = after.Balance
		vendor.UpdatedAt = now
		s.vendors[id] = vendor
	}
	return domain.VendorReconciliation{VendorID: id, Before: before, After: after, Drifted: drifted}
}

func (s *Store) stampSalePayment(record *domain.PaymentRecord, saleID string, at time.Time) {
	if record.ID == "" {
		record.ID = xid.New("pay")
	}
	record.SaleID = saleID
	record.PurchaseID = ""
	if record.CreatedAt.IsZero() {
		record.CreatedAt = at
	}
}

func (s *Store) stampPurchasePayment(record *domain.PaymentRecord, purchaseID string, at time.Time) {
	if record.ID == "" {
		record.ID = xid.New("pay")
	}
	record.PurchaseID = purchaseID
	record.SaleID = ""
	if record.CreatedAt.IsZero() {
		record.CreatedAt = at
	}
}

func (s *Store) stampPurchaseLines(purchase *domain.Purchase) {
	for i := range purchase.Items {
		line := &purchase.Items[i]
		if line.ID == "" {
			line.ID = xid.New("pline")
		}
		line.PurchaseID = purchase.ID
		line.Position = i
		if product, ok := s.products[line.ProductID]; ok && line.ProductName == "" {
			line.ProductName = product.Name
		}
	}
}

func applyVendorDelta(vendor domain.Vendor, delta domain.VendorAggregates, at time.Time) domain.Vendor {
	vendor.TotalPurchases += delta.TotalPurchases
	vendor.TotalAmount = vendor.TotalAmount.Add(delta.TotalAmount)
	vendor.Balance = vendor.Balance.Add(delta.Balance)
	vendor.UpdatedAt = at
	return vendor
}

func cloneProduct(src domain.Product) domain.Product {
	out := src
	if src.ExpiryDate != nil {
		expiry := *src.ExpiryDate
		out.ExpiryDate = &expiry
	}
	return out
}

func cloneSale(src domain.Sale) domain.Sale {
	out := src
	out.Items = slices.Clone(src.Items)
	out.Payments = slices.Clone(src.Payments)
	if src.DueDate != nil {
		due := *src.DueDate
		out.DueDate = &due
	}
	return out
}

func clonePurchase(src domain.Purchase) domain.Purchase {
	out := src
	out.Items = slices.Clone(src.Items)
	out.Payments = slices.Clone(src.Payments)
	if src.DueDate != nil {
		due := *src.DueDate
		out.DueDate = &due
	}
	return out
}

func cloneExpense(src domain.Expense) domain.Expense {
	out := src
	if src.DueDate != nil {
		due := *src.DueDate
		out.DueDate = &due
	}
	return out
}

var _ store.Repository = (*Store)(nil)
