package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"dukaan/backend/internal/payment"
)

type PaymentMethod string

const (
	MethodCash   PaymentMethod = "CASH"
	MethodZaad   PaymentMethod = "ZAAD"
	MethodEdahab PaymentMethod = "EDAHAB"
	MethodCredit PaymentMethod = "CREDIT"
)

var PaymentMethods = []PaymentMethod{MethodCash, MethodZaad, MethodEdahab, MethodCredit}

// ParsePaymentMethod accepts the lower-case and display spellings used by the
// dashboard ("cash", "E-Dahab", ...). An empty value means cash.
func ParsePaymentMethod(raw string) (PaymentMethod, bool) {
	normalized := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(raw), "-", ""))
	if normalized == "" {
		return MethodCash, true
	}
	for _, method := range PaymentMethods {
		if string(method) == normalized {
			return method, true
		}
	}
	return "", false
}

const (
	RoleAdmin   = "admin"
	RoleCashier = "cashier"
)

type Actor struct {
	Username string `json:"username"`
	Role     string `json:"role"`
}

type Product struct {
	ID                string          `json:"id" db:"id"`
	Name              string          `json:"name" db:"name"`
	Barcode           string          `json:"barcode,omitempty" db:"barcode"`
	Description       string          `json:"description" db:"description"`
	Cost              decimal.Decimal `json:"cost" db:"cost"`
	Price             decimal.Decimal `json:"price" db:"price"`
	Stock             int             `json:"stock" db:"stock"`
	LowStockThreshold int             `json:"lowStockThreshold" db:"low_stock_threshold"`
	ExpiryDate        *time.Time      `json:"expiryDate,omitempty" db:"expiry_date"`
	CreatedAt         time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt         time.Time       `json:"updatedAt" db:"updated_at"`
}

func (p Product) LowOnStock() bool {
	return p.Stock <= p.LowStockThreshold
}

type SaleLineItem struct {
	ID           string          `json:"id" db:"id"`
	SaleID       string          `json:"saleId" db:"sale_id"`
	Position     int             `json:"-" db:"position"`
	ProductID    string          `json:"productId" db:"product_id"`
	Name         string          `json:"name" db:"name"`
	Quantity     int             `json:"quantity" db:"quantity"`
	SellingPrice decimal.Decimal `json:"sellingPrice" db:"selling_price"`
	Discount     decimal.Decimal `json:"discount" db:"discount"`
	ItemTotal    decimal.Decimal `json:"itemTotal" db:"item_total"`
	ItemDiscount decimal.Decimal `json:"itemDiscount" db:"item_discount"`
	ItemNet      decimal.Decimal `json:"itemNet" db:"item_net"`
}

// PaymentRecord is one immutable row of payment history. Exactly one of
// SaleID and PurchaseID is set.
type PaymentRecord struct {
	ID          string          `json:"id" db:"id"`
	SaleID      string          `json:"saleId,omitempty" db:"sale_id"`
	PurchaseID  string          `json:"purchaseId,omitempty" db:"purchase_id"`
	Amount      decimal.Decimal `json:"amount" db:"amount"`
	Method      PaymentMethod   `json:"paymentMethod" db:"method"`
	CollectedBy string          `json:"collectedBy" db:"collected_by"`
	Note        string          `json:"notes" db:"note"`
	CreatedAt   time.Time       `json:"createdAt" db:"created_at"`
}

type Sale struct {
	ID                 string          `json:"id" db:"id"`
	SaleNumber         string          `json:"saleNumber" db:"sale_number"`
	Subtotal           decimal.Decimal `json:"subtotal" db:"subtotal"`
	DiscountPercentage decimal.Decimal `json:"discountPercentage" db:"discount_percentage"`
	DiscountAmount     decimal.Decimal `json:"discountAmount" db:"discount_amount"`
	GrandTotal         decimal.Decimal `json:"grandTotal" db:"grand_total"`
	payment.State
	CashTendered  decimal.Decimal `json:"cashTendered" db:"cash_tendered"`
	PaymentMethod PaymentMethod   `json:"paymentMethod" db:"payment_method"`
	TotalQuantity int             `json:"totalQuantity" db:"total_quantity"`
	UserID        string          `json:"userId" db:"user_id"`
	CustomerName  string          `json:"customerName,omitempty" db:"customer_name"`
	CustomerPhone string          `json:"customerPhone,omitempty" db:"customer_phone"`
	Notes         string          `json:"notes,omitempty" db:"notes"`
	DueDate       *time.Time      `json:"dueDate,omitempty" db:"due_date"`
	CreatedAt     time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt     time.Time       `json:"updatedAt" db:"updated_at"`
	Items         []SaleLineItem  `json:"items" db:"-"`
	Payments      []PaymentRecord `json:"payments" db:"-"`
}

type SaleLineRequest struct {
	ProductID    string          `json:"productId"`
	Quantity     int             `json:"quantity"`
	SellingPrice decimal.Decimal `json:"sellingPrice"`
	Discount     decimal.Decimal `json:"discount"`
}

type SaleCreateRequest struct {
	Products           []SaleLineRequest `json:"products"`
	AmountDue          decimal.Decimal   `json:"amountDue"`
	AmountPaid         decimal.Decimal   `json:"amountPaid"`
	CashTendered       decimal.Decimal   `json:"cashTendered"`
	PaymentMethod      string            `json:"paymentMethod"`
	DiscountPercentage decimal.Decimal   `json:"discountPercentage"`
	DiscountAmount     decimal.Decimal   `json:"discountAmount"`
	CustomerName       string            `json:"customerName"`
	CustomerPhone      string            `json:"customerPhone"`
	Notes              string            `json:"notes"`
	DueDate            *time.Time        `json:"dueDate"`
	SaleDate           *time.Time        `json:"saleDate"`
}

type CollectPaymentRequest struct {
	Amount        decimal.Decimal `json:"amount"`
	PaymentMethod string          `json:"paymentMethod"`
	Notes         string          `json:"notes"`
}

type SaleUpdateRequest struct {
	CustomerName  *string    `json:"customerName"`
	CustomerPhone *string    `json:"customerPhone"`
	Notes         *string    `json:"notes"`
	DueDate       *time.Time `json:"dueDate"`
}

type SaleStatusRequest struct {
	Status string `json:"status"`
	Reason string `json:"reason"`
}

type SaleFilter struct {
	Statuses      []payment.Status
	PaymentMethod PaymentMethod
	Search        string
	From          *time.Time
	To            *time.Time
	OpenOnly      bool
}

type SaleListResponse struct {
	Sales       []Sale         `json:"sales"`
	Total       int            `json:"total"`
	Page        int            `json:"page"`
	TotalPages  int            `json:"totalPages"`
	Totals      MoneyTotals    `json:"totals"`
	StatusCount map[string]int `json:"statusCount"`
}

type MoneyTotals struct {
	Count            int             `json:"count"`
	AmountDue        decimal.Decimal `json:"amountDue"`
	AmountPaid       decimal.Decimal `json:"amountPaid"`
	RemainingBalance decimal.Decimal `json:"remainingBalance"`
}

func (t *MoneyTotals) Add(state payment.State) {
	t.Count++
	t.AmountDue = t.AmountDue.Add(state.AmountDue)
	t.AmountPaid = t.AmountPaid.Add(state.AmountPaid)
	t.RemainingBalance = t.RemainingBalance.Add(state.RemainingBalance)
}

type DailySalesSummary struct {
	Date       string                        `json:"date"`
	Sales      int                           `json:"sales"`
	GrandTotal decimal.Decimal               `json:"grandTotal"`
	Totals     MoneyTotals                   `json:"totals"`
	ByMethod   map[PaymentMethod]MoneyTotals `json:"byPaymentMethod"`
	ItemsSold  int                           `json:"itemsSold"`
}

type Vendor struct {
	ID             string          `json:"id" db:"id"`
	Name           string          `json:"name" db:"name"`
	PhoneNumber    string          `json:"phoneNumber" db:"phone_number"`
	Location       string          `json:"location" db:"location"`
	TotalPurchases int             `json:"totalPurchases" db:"total_purchases"`
	TotalAmount    decimal.Decimal `json:"totalAmount" db:"total_amount"`
	Balance        decimal.Decimal `json:"balance" db:"balance"`
	CreatedAt      time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt      time.Time       `json:"updatedAt" db:"updated_at"`
}

type VendorRequest struct {
	Name        string `json:"name"`
	PhoneNumber string `json:"phoneNumber"`
	Location    string `json:"location"`
}

// VendorAggregates are the running totals a vendor keeps over its purchases.
type VendorAggregates struct {
	TotalPurchases int             `json:"totalPurchases"`
	TotalAmount    decimal.Decimal `json:"totalAmount"`
	Balance        decimal.Decimal `json:"balance"`
}

func (a VendorAggregates) Equal(b VendorAggregates) bool {
	return a.TotalPurchases == b.TotalPurchases && a.TotalAmount.Equal(b.TotalAmount) && a.Balance.Equal(b.Balance)
}

type VendorReconciliation struct {
	VendorID string           `json:"vendorId"`
	Before   VendorAggregates `json:"before"`
	After    VendorAggregates `json:"after"`
	Drifted  bool             `json:"drifted"`
}

type PurchaseLine struct {
	ID          string          `json:"id" db:"id"`
	PurchaseID  string          `json:"purchaseId" db:"purchase_id"`
	Position    int             `json:"-" db:"position"`
	ProductID   string          `json:"productId,omitempty" db:"product_id"`
	ProductName string          `json:"productName" db:"product_name"`
	Quantity    int             `json:"quantity" db:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice" db:"unit_price"`
	LineTotal   decimal.Decimal `json:"lineTotal" db:"line_total"`
}

type Purchase struct {
	ID       string          `json:"id" db:"id"`
	VendorID string          `json:"vendorId" db:"vendor_id"`
	UserID   string          `json:"userId" db:"user_id"`
	Total    decimal.Decimal `json:"total" db:"total"`
	payment.State
	PaymentMethod PaymentMethod   `json:"paymentMethod" db:"payment_method"`
	Notes         string          `json:"notes" db:"notes"`
	DueDate       *time.Time      `json:"dueDate,omitempty" db:"due_date"`
	PurchaseDate  time.Time       `json:"purchaseDate" db:"purchase_date"`
	CreatedAt     time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt     time.Time       `json:"updatedAt" db:"updated_at"`
	Items         []PurchaseLine  `json:"items" db:"-"`
	Payments      []PaymentRecord `json:"payments" db:"-"`
}

// Outstanding is what the purchase contributes to its vendor's balance.
func (p Purchase) Outstanding() decimal.Decimal {
	return p.AmountDue.Sub(p.AmountPaid)
}

type PurchaseLineRequest struct {
	ProductID   string          `json:"productId"`
	ProductName string          `json:"productName"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
}

type PurchaseCreateRequest struct {
	Products      []PurchaseLineRequest `json:"products"`
	AmountDue     decimal.Decimal       `json:"amountDue"`
	AmountPaid    decimal.Decimal       `json:"amountPaid"`
	PaymentMethod string                `json:"paymentMethod"`
	Notes         string                `json:"notes"`
	DueDate       *time.Time            `json:"dueDate"`
	PurchaseDate  *time.Time            `json:"purchaseDate"`
}

type PurchaseUpdateRequest struct {
	Products      []PurchaseLineRequest `json:"products"`
	AmountDue     *decimal.Decimal      `json:"amountDue"`
	AmountPaid    *decimal.Decimal      `json:"amountPaid"`
	PaymentMethod *string               `json:"paymentMethod"`
	Notes         *string               `json:"notes"`
	DueDate       *time.Time            `json:"dueDate"`
}

type PurchaseFilter struct {
	VendorID string
	From     *time.Time
	To       *time.Time
}

// PurchaseResult carries the purchase together with its vendor after the
// aggregate delta was applied.
type PurchaseResult struct {
	Purchase Purchase `json:"purchase"`
	Vendor   Vendor   `json:"vendor"`
}

type ProductCreateRequest struct {
	Name              string          `json:"name"`
	Barcode           string          `json:"barcode"`
	Description       string          `json:"description"`
	Cost              decimal.Decimal `json:"cost"`
	Price             decimal.Decimal `json:"price"`
	Stock             int             `json:"stock"`
	LowStockThreshold *int            `json:"lowStockThreshold"`
	ExpiryDate        *time.Time      `json:"expiryDate"`
}

type ProductUpdateRequest struct {
	Name              *string          `json:"name"`
	Barcode           *string          `json:"barcode"`
	Description       *string          `json:"description"`
	Cost              *decimal.Decimal `json:"cost"`
	Price             *decimal.Decimal `json:"price"`
	LowStockThreshold *int             `json:"lowStockThreshold"`
	ExpiryDate        *time.Time       `json:"expiryDate"`
}

type RestockSuggestion struct {
	ProductID      string          `json:"productId"`
	Name           string          `json:"name"`
	Stock          int             `json:"stock"`
	Threshold      int             `json:"lowStockThreshold"`
	DailyVelocity  float64         `json:"dailyVelocity"`
	DaysOfCover    float64         `json:"daysOfCover"`
	RecommendedQty int             `json:"recommendedQty"`
	EstimatedCost  decimal.Decimal `json:"estimatedCost"`
	Urgency        string          `json:"urgency"`
}

type LowStockResponse struct {
	GeneratedAt string              `json:"generatedAt"`
	Products    []Product           `json:"products"`
	Suggestions []RestockSuggestion `json:"suggestions"`
}

type ExpenseType string

var ExpenseTypes = map[string]ExpenseType{
	"rent":                    "RENT",
	"electricity":             "ELECTRICITY",
	"salaries and wages":      "SALARIES_AND_WAGES",
	"security / guard":        "SECURITY",
	"security":                "SECURITY",
	"repairs and maintenance": "REPAIRS_AND_MAINTENANCE",
	"mobile money":            "MOBILE_MONEY",
	"bank charge fees":        "BANK_CHARGE_FEES",
	"marketing and branding":  "MARKETING_AND_BRANDING",
	"taxes":                   "TAXES",
	"internet":                "INTERNET",
	"water":                   "WATER",
	"others":                  "OTHERS",
}

// ParseExpenseType maps display names and enum values to an ExpenseType.
// Unknown values fall back to OTHERS.
func ParseExpenseType(raw string) ExpenseType {
	key := strings.ToLower(strings.TrimSpace(raw))
	if t, ok := ExpenseTypes[key]; ok {
		return t
	}
	upper := ExpenseType(strings.ToUpper(key))
	for _, t := range ExpenseTypes {
		if t == upper {
			return t
		}
	}
	return "OTHERS"
}

type Expense struct {
	ID            string        `json:"id" db:"id"`
	ClientName    string        `json:"clientName" db:"client_name"`
	ClientPhone   string        `json:"clientPhone" db:"client_phone"`
	ExpenseType   ExpenseType   `json:"expenseType" db:"expense_type"`
	PaymentMethod PaymentMethod `json:"paymentMethod" db:"payment_method"`
	Description   string        `json:"description" db:"description"`
	payment.State
	DueDate   *time.Time `json:"dueDate,omitempty" db:"due_date"`
	UserID    string     `json:"userId" db:"user_id"`
	CreatedAt time.Time  `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time  `json:"updatedAt" db:"updated_at"`
}

type ExpenseRequest struct {
	ClientName    string          `json:"clientName"`
	ClientPhone   string          `json:"clientPhone"`
	ExpenseType   string          `json:"expenseType"`
	PaymentMethod string          `json:"paymentMethod"`
	Description   string          `json:"description"`
	AmountDue     decimal.Decimal `json:"amountDue"`
	AmountPaid    decimal.Decimal `json:"amountPaid"`
	DueDate       *time.Time      `json:"dueDate"`
}

type ExpenseFilter struct {
	ExpenseType ExpenseType
	Status      payment.Status
	From        *time.Time
	To          *time.Time
}

type ExpenseStats struct {
	Totals MoneyTotals                 `json:"totals"`
	ByType map[ExpenseType]MoneyTotals `json:"byType"`
}

type ReceivableSummary struct {
	Totals          MoneyTotals                    `json:"totals"`
	ByStatus        map[payment.Status]MoneyTotals `json:"byStatus"`
	ByPaymentMethod map[PaymentMethod]MoneyTotals  `json:"byPaymentMethod"`
	Oldest          *Sale                          `json:"oldestReceivable,omitempty"`
}

type PeriodReport struct {
	Period         string                        `json:"period"`
	From           time.Time                     `json:"from"`
	To             time.Time                     `json:"to"`
	SalesCount     int                           `json:"salesCount"`
	GrossSales     decimal.Decimal               `json:"grossSales"`
	Collected      decimal.Decimal               `json:"collected"`
	Outstanding    decimal.Decimal               `json:"outstanding"`
	PurchaseCount  int                           `json:"purchaseCount"`
	PurchasesTotal decimal.Decimal               `json:"purchasesTotal"`
	PurchasesPaid  decimal.Decimal               `json:"purchasesPaid"`
	ExpenseCount   int                           `json:"expenseCount"`
	ExpensesPaid   decimal.Decimal               `json:"expensesPaid"`
	Net            decimal.Decimal               `json:"net"`
	ByMethod       map[PaymentMethod]MoneyTotals `json:"byPaymentMethod"`
	GeneratedAt    time.Time                     `json:"generatedAt"`
}

type AuditLog struct {
	ID            string    `json:"id" db:"id"`
	ActorUsername string    `json:"actorUsername" db:"actor_username"`
	ActorRole     string    `json:"actorRole" db:"actor_role"`
	Action        string    `json:"action" db:"action"`
	EntityType    string    `json:"entityType" db:"entity_type"`
	EntityID      string    `json:"entityId" db:"entity_id"`
	Detail        string    `json:"detail" db:"detail"`
	CreatedAt     time.Time `json:"createdAt" db:"created_at"`
}

type UserAccount struct {
	Username  string    `json:"username" db:"username"`
	Password  string    `json:"-" db:"password"`
	Role      string    `json:"role" db:"role"`
	Active    bool      `json:"active" db:"active"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"accessToken"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expiresAt"`
}

type CashierCreateRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type CashierUser struct {
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"createdAt"`
}
