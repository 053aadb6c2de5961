package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"dukaan/backend/internal/domain"
	"dukaan/backend/internal/money"
	"dukaan/backend/internal/payment"
	"dukaan/backend/internal/store"
	"dukaan/backend/internal/xid"
)

var hundred = decimal.NewFromInt(100)

// CreateSale prices the lines, derives the payment state and hands the
// whole sale to the store, which takes the stock and writes the opening
// payment record in the same transaction.
func (s *Service) CreateSale(ctx context.Context, req domain.SaleCreateRequest) (domain.Sale, error) {
	if len(req.Products) == 0 {
		return domain.Sale{}, invalid("at least one product is required")
	}
	method, ok := domain.ParsePaymentMethod(req.PaymentMethod)
	if !ok {
		return domain.Sale{}, invalid("unknown payment method %q", req.PaymentMethod)
	}

	items := make([]domain.SaleLineItem, 0, len(req.Products))
	subtotal := decimal.Zero
	totalQty := 0
	for i, line := range req.Products {
		productID := strings.TrimSpace(line.ProductID)
		switch {
		case productID == "":
			return domain.Sale{}, invalid("line %d: productId is required", i+1)
		case line.Quantity < 1:
			return domain.Sale{}, invalid("line %d: quantity must be at least 1", i+1)
		case line.SellingPrice.IsNegative() || !money.HasCents(line.SellingPrice):
			return domain.Sale{}, invalid("line %d: invalid selling price %s", i+1, line.SellingPrice)
		case line.Discount.IsNegative() || line.Discount.GreaterThan(hundred):
			return domain.Sale{}, invalid("line %d: discount must be between 0 and 100", i+1)
		}

		itemTotal := money.Times(line.SellingPrice, line.Quantity)
		itemDiscount := money.Percent(itemTotal, line.Discount)
		items = append(items, domain.SaleLineItem{
			ProductID:    productID,
			Quantity:     line.Quantity,
			SellingPrice: line.SellingPrice,
			Discount:     line.Discount,
			ItemTotal:    itemTotal,
			ItemDiscount: itemDiscount,
			ItemNet:      itemTotal.Sub(itemDiscount),
		})
		subtotal = subtotal.Add(itemTotal)
		totalQty += line.Quantity
	}

	if req.DiscountPercentage.IsNegative() || req.DiscountPercentage.GreaterThan(hundred) {
		return domain.Sale{}, invalid("discountPercentage must be between 0 and 100")
	}
	if req.DiscountAmount.IsNegative() || !money.HasCents(req.DiscountAmount) {
		return domain.Sale{}, invalid("invalid discountAmount %s", req.DiscountAmount)
	}
	discount := req.DiscountAmount
	if req.DiscountPercentage.IsPositive() {
		discount = money.Percent(subtotal, req.DiscountPercentage)
	}

	now := s.now()
	createdAt := now
	if req.SaleDate != nil {
		if req.SaleDate.After(now) {
			return domain.Sale{}, invalid("sale date cannot be in the future")
		}
		createdAt = req.SaleDate.UTC()
	}

	state, err := payment.Initial(req.AmountDue, req.AmountPaid, req.CashTendered, req.DueDate, now)
	if err != nil {
		return domain.Sale{}, err
	}
	tendered := req.CashTendered
	if tendered.IsZero() {
		tendered = req.AmountPaid
	}

	collectedBy := actorName(ctx)
	sale := domain.Sale{
		SaleNumber:         xid.SaleNumber(now),
		Subtotal:           subtotal,
		DiscountPercentage: req.DiscountPercentage,
		DiscountAmount:     discount,
		GrandTotal:         money.Max0(subtotal.Sub(discount)),
		State:              state,
		CashTendered:       tendered,
		PaymentMethod:      method,
		TotalQuantity:      totalQty,
		UserID:             collectedBy,
		CustomerName:       strings.TrimSpace(req.CustomerName),
		CustomerPhone:      strings.TrimSpace(req.CustomerPhone),
		Notes:              strings.TrimSpace(req.Notes),
		DueDate:            utcPtr(req.DueDate),
		CreatedAt:          createdAt,
		UpdatedAt:          now,
		Items:              items,
		Payments: []domain.PaymentRecord{{
			Amount:      req.AmountPaid,
			Method:      method,
			CollectedBy: collectedBy,
			Note:        openingNote(state),
			CreatedAt:   createdAt,
		}},
	}

	created, err := s.repo.CreateSale(ctx, sale)
	if err != nil {
		return domain.Sale{}, err
	}

	s.logger.Info("sale created",
		zap.String("sale_id", created.ID),
		zap.String("sale_number", created.SaleNumber),
		zap.String("status", string(created.Status)),
	)
	s.afterMutation(ctx, "sale_create", "sale", created.ID,
		fmt.Sprintf("number=%s,due=%s,paid=%s,items=%d", created.SaleNumber, created.AmountDue, created.AmountPaid, len(created.Items)))
	return *created, nil
}

func openingNote(state payment.State) string {
	switch {
	case state.Status == payment.StatusCompleted:
		return "Full payment"
	case state.AmountPaid.IsPositive():
		return "Partial payment"
	default:
		return "Sale opened unpaid"
	}
}

func (s *Service) GetSale(ctx context.Context, id string) (domain.Sale, error) {
	sale, err := s.repo.GetSale(ctx, strings.TrimSpace(id))
	if err != nil {
		return domain.Sale{}, err
	}
	return *sale, nil
}

// ListSales filters, totals and paginates sales. Totals and status counts
// cover every match, not only the returned page.
func (s *Service) ListSales(ctx context.Context, filter domain.SaleFilter, page int, limit int) (domain.SaleListResponse, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 500 {
		limit = 50
	}

	sales, err := s.repo.ListSales(ctx, filter)
	if err != nil {
		return domain.SaleListResponse{}, err
	}

	resp := domain.SaleListResponse{
		Page:        page,
		Total:       len(sales),
		TotalPages:  int(math.Ceil(float64(len(sales)) / float64(limit))),
		StatusCount: map[string]int{},
	}
	for _, sale := range sales {
		resp.Totals.Add(sale.State)
		resp.StatusCount[strings.ToLower(string(sale.Status))]++
	}

	start := (page - 1) * limit
	end := min(start+limit, len(sales))
	if start < len(sales) {
		resp.Sales = sales[start:end]
	} else {
		resp.Sales = []domain.Sale{}
	}
	return resp, nil
}

// CollectSalePayment applies an incremental payment to an open sale and
// appends it to the payment history. Stock is not touched.
func (s *Service) CollectSalePayment(ctx context.Context, id string, req domain.CollectPaymentRequest) (domain.Sale, error) {
	method, ok := domain.ParsePaymentMethod(req.PaymentMethod)
	if !ok {
		return domain.Sale{}, invalid("unknown payment method %q", req.PaymentMethod)
	}
	note := strings.TrimSpace(req.Notes)
	if note == "" {
		note = "Payment collected"
	}

	now := s.now()
	updated, err := s.repo.UpdateSale(ctx, strings.TrimSpace(id), func(sale *domain.Sale) (*domain.PaymentRecord, error) {
		next, err := payment.Apply(sale.State, req.Amount, sale.DueDate, now)
		if err != nil {
			return nil, err
		}
		sale.State = next
		sale.UpdatedAt = now
		return &domain.PaymentRecord{
			Amount:      req.Amount,
			Method:      method,
			CollectedBy: actorName(ctx),
			Note:        note,
			CreatedAt:   now,
		}, nil
	})
	if err != nil {
		return domain.Sale{}, err
	}

	s.afterMutation(ctx, "sale_payment", "sale", updated.ID,
		fmt.Sprintf("amount=%s,method=%s,remaining=%s", req.Amount, method, updated.RemainingBalance))
	return *updated, nil
}

// UpdateSale edits customer details, notes and the due date of a sale that
// is still open.
func (s *Service) UpdateSale(ctx context.Context, id string, req domain.SaleUpdateRequest) (domain.Sale, error) {
	now := s.now()
	updated, err := s.repo.UpdateSale(ctx, strings.TrimSpace(id), func(sale *domain.Sale) (*domain.PaymentRecord, error) {
		if sale.Status == payment.StatusCompleted || sale.Status.Terminal() {
			return nil, fmt.Errorf("%w: %s sales cannot be modified", payment.ErrAlreadySettled, strings.ToLower(string(sale.Status)))
		}
		if req.CustomerName != nil {
			sale.CustomerName = strings.TrimSpace(*req.CustomerName)
		}
		if req.CustomerPhone != nil {
			sale.CustomerPhone = strings.TrimSpace(*req.CustomerPhone)
		}
		if req.Notes != nil {
			sale.Notes = strings.TrimSpace(*req.Notes)
		}
		if req.DueDate != nil {
			sale.DueDate = utcPtr(req.DueDate)
			sale.State = payment.Reconcile(sale.State, sale.DueDate, now)
		}
		sale.UpdatedAt = now
		return nil, nil
	})
	if err != nil {
		return domain.Sale{}, err
	}

	s.afterMutation(ctx, "sale_update", "sale", updated.ID, fmt.Sprintf("status=%s", updated.Status))
	return *updated, nil
}

// SetSaleStatus moves a sale to CANCELLED or REFUNDED. Amounts and stock
// are left as they are; deleting the sale is what restores stock.
func (s *Service) SetSaleStatus(ctx context.Context, id string, req domain.SaleStatusRequest) (domain.Sale, error) {
	if _, err := s.requireAdmin(ctx); err != nil {
		return domain.Sale{}, err
	}
	target, ok := payment.ParseStatus(req.Status)
	if !ok || !target.Terminal() {
		return domain.Sale{}, invalid("status must be cancelled or refunded")
	}

	now := s.now()
	updated, err := s.repo.UpdateSale(ctx, strings.TrimSpace(id), func(sale *domain.Sale) (*domain.PaymentRecord, error) {
		switch target {
		case payment.StatusCancelled:
			if sale.Status == payment.StatusCompleted || sale.Status.Terminal() {
				return nil, invalid("a %s sale cannot be cancelled", strings.ToLower(string(sale.Status)))
			}
		case payment.StatusRefunded:
			if sale.Status != payment.StatusCompleted && sale.Status != payment.StatusPartiallyPaid {
				return nil, invalid("only completed or partially paid sales can be refunded")
			}
		}
		sale.Status = target
		if reason := strings.TrimSpace(req.Reason); reason != "" {
			sale.Notes = strings.TrimSpace(sale.Notes + "\n" + string(target) + ": " + reason)
		}
		sale.UpdatedAt = now
		return nil, nil
	})
	if err != nil {
		return domain.Sale{}, err
	}

	s.afterMutation(ctx, "sale_status", "sale", updated.ID, fmt.Sprintf("status=%s,reason=%s", target, req.Reason))
	return *updated, nil
}

// DeleteSale restores stock for every line and removes the sale with its
// history. A completed sale needs managerApproved, which the caller sets
// after checking the manager PIN; the check runs under the sale's lock.
func (s *Service) DeleteSale(ctx context.Context, id string, managerApproved bool) error {
	deleted, err := s.repo.DeleteSale(ctx, strings.TrimSpace(id), func(sale domain.Sale) error {
		if sale.Status == payment.StatusCompleted && !managerApproved {
			return forbidden("manager PIN required to delete a completed sale")
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("sale deleted", zap.String("sale_id", deleted.ID), zap.Int("lines_restored", len(deleted.Items)))
	s.afterMutation(ctx, "sale_delete", "sale", deleted.ID,
		fmt.Sprintf("number=%s,status=%s,manager_approved=%t", deleted.SaleNumber, deleted.Status, managerApproved))
	return nil
}

// DailySalesSummary totals the sales created on one UTC day, skipping
// cancelled ones.
func (s *Service) DailySalesSummary(ctx context.Context, date string) (domain.DailySalesSummary, error) {
	day := startOfDay(s.now())
	if strings.TrimSpace(date) != "" {
		parsed, err := parseDay(date)
		if err != nil {
			return domain.DailySalesSummary{}, err
		}
		day = parsed
	}
	to := day.Add(24 * time.Hour)

	sales, err := s.repo.ListSales(ctx, domain.SaleFilter{From: &day, To: &to})
	if err != nil {
		return domain.DailySalesSummary{}, err
	}

	summary := domain.DailySalesSummary{
		Date:     day.Format(dayLayout),
		ByMethod: map[domain.PaymentMethod]domain.MoneyTotals{},
	}
	for _, sale := range sales {
		if sale.Status == payment.StatusCancelled {
			continue
		}
		summary.Sales++
		summary.GrandTotal = summary.GrandTotal.Add(sale.GrandTotal)
		summary.Totals.Add(sale.State)
		summary.ItemsSold += sale.TotalQuantity
		byMethod := summary.ByMethod[sale.PaymentMethod]
		byMethod.Add(sale.State)
		summary.ByMethod[sale.PaymentMethod] = byMethod
	}
	return summary, nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	utc := t.UTC()
	return &utc
}

// isNotFound is used where a missing row is an expected outcome.
func isNotFound(err error) bool {
	return errors.Is(err, store.ErrNotFound)
}
