package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"dukaan/backend/internal/domain"
	"dukaan/backend/internal/money"
	"dukaan/backend/internal/payment"
)

// CreatePurchase books goods received from a vendor. Lines that resolve to
// a catalog product add to its stock; free-text lines are recorded only.
func (s *Service) CreatePurchase(ctx context.Context, vendorID string, req domain.PurchaseCreateRequest) (domain.PurchaseResult, error) {
	vendorID = strings.TrimSpace(vendorID)
	method, ok := domain.ParsePaymentMethod(req.PaymentMethod)
	if !ok {
		return domain.PurchaseResult{}, invalid("unknown payment method %q", req.PaymentMethod)
	}
	lines, total, err := s.resolvePurchaseLines(ctx, req.Products)
	if err != nil {
		return domain.PurchaseResult{}, err
	}

	amountDue := req.AmountDue
	if amountDue.IsZero() {
		amountDue = total
	}
	now := s.now()
	purchaseDate := now
	if req.PurchaseDate != nil {
		if req.PurchaseDate.After(now) {
			return domain.PurchaseResult{}, invalid("purchase date cannot be in the future")
		}
		purchaseDate = req.PurchaseDate.UTC()
	}

	state, err := payment.Initial(amountDue, req.AmountPaid, decimal.Zero, req.DueDate, now)
	if err != nil {
		return domain.PurchaseResult{}, err
	}

	purchase := domain.Purchase{
		VendorID:      vendorID,
		UserID:        actorName(ctx),
		Total:         total,
		State:         state,
		PaymentMethod: method,
		Notes:         strings.TrimSpace(req.Notes),
		DueDate:       utcPtr(req.DueDate),
		PurchaseDate:  purchaseDate,
		CreatedAt:     now,
		UpdatedAt:     now,
		Items:         lines,
	}
	if req.AmountPaid.IsPositive() {
		purchase.Payments = []domain.PaymentRecord{{
			Amount:      req.AmountPaid,
			Method:      method,
			CollectedBy: purchase.UserID,
			Note:        "Initial payment",
			CreatedAt:   now,
		}}
	}

	result, err := s.repo.CreatePurchase(ctx, purchase)
	if err != nil {
		return domain.PurchaseResult{}, err
	}

	s.logger.Info("purchase created",
		zap.String("purchase_id", result.Purchase.ID),
		zap.String("vendor_id", vendorID),
		zap.String("vendor_balance", result.Vendor.Balance.String()),
	)
	s.afterMutation(ctx, "purchase_create", "purchase", result.Purchase.ID,
		fmt.Sprintf("vendor=%s,total=%s,due=%s,paid=%s", vendorID, total, amountDue, req.AmountPaid))
	return *result, nil
}

// resolvePurchaseLines maps request lines to catalog products by id, or by
// case-insensitive name when no id is given.
func (s *Service) resolvePurchaseLines(ctx context.Context, reqLines []domain.PurchaseLineRequest) ([]domain.PurchaseLine, decimal.Decimal, error) {
	if len(reqLines) == 0 {
		return nil, decimal.Zero, invalid("at least one product is required")
	}

	lines := make([]domain.PurchaseLine, 0, len(reqLines))
	total := decimal.Zero
	for i, line := range reqLines {
		if line.Quantity < 1 {
			return nil, decimal.Zero, invalid("line %d: quantity must be at least 1", i+1)
		}
		if line.UnitPrice.IsNegative() || !money.HasCents(line.UnitPrice) {
			return nil, decimal.Zero, invalid("line %d: invalid unit price %s", i+1, line.UnitPrice)
		}

		resolved := domain.PurchaseLine{
			ProductName: strings.TrimSpace(line.ProductName),
			Quantity:    line.Quantity,
			UnitPrice:   line.UnitPrice,
			LineTotal:   money.Times(line.UnitPrice, line.Quantity),
		}
		switch productID := strings.TrimSpace(line.ProductID); {
		case productID != "":
			product, err := s.repo.GetProduct(ctx, productID)
			if err != nil {
				return nil, decimal.Zero, fmt.Errorf("line %d: product %s: %w", i+1, productID, err)
			}
			resolved.ProductID = product.ID
			resolved.ProductName = product.Name
		case resolved.ProductName != "":
			product, err := s.repo.FindProductByName(ctx, resolved.ProductName)
			if err != nil && !isNotFound(err) {
				return nil, decimal.Zero, err
			}
			if err == nil {
				resolved.ProductID = product.ID
				resolved.ProductName = product.Name
			}
		default:
			return nil, decimal.Zero, invalid("line %d: productId or productName is required", i+1)
		}

		lines = append(lines, resolved)
		total = total.Add(resolved.LineTotal)
	}
	return lines, total, nil
}

func (s *Service) GetPurchase(ctx context.Context, vendorID string, id string) (domain.Purchase, error) {
	purchase, err := s.repo.GetPurchase(ctx, strings.TrimSpace(vendorID), strings.TrimSpace(id))
	if err != nil {
		return domain.Purchase{}, err
	}
	return *purchase, nil
}

func (s *Service) ListVendorPurchases(ctx context.Context, vendorID string, filter domain.PurchaseFilter) ([]domain.Purchase, error) {
	vendorID = strings.TrimSpace(vendorID)
	if _, err := s.repo.GetVendor(ctx, vendorID); err != nil {
		return nil, err
	}
	filter.VendorID = vendorID
	return s.repo.ListPurchases(ctx, filter)
}

// CollectPurchasePayment records a payment to the vendor; the vendor balance
// drops by the same amount.
func (s *Service) CollectPurchasePayment(ctx context.Context, vendorID string, id string, req domain.CollectPaymentRequest) (domain.PurchaseResult, error) {
	method, ok := domain.ParsePaymentMethod(req.PaymentMethod)
	if !ok {
		return domain.PurchaseResult{}, invalid("unknown payment method %q", req.PaymentMethod)
	}
	note := strings.TrimSpace(req.Notes)
	if note == "" {
		note = "Payment to vendor"
	}

	now := s.now()
	result, err := s.repo.UpdatePurchase(ctx, strings.TrimSpace(vendorID), strings.TrimSpace(id), func(p *domain.Purchase) (*domain.PaymentRecord, error) {
		next, err := payment.Apply(p.State, req.Amount, p.DueDate, now)
		if err != nil {
			return nil, err
		}
		p.State = next
		p.UpdatedAt = now
		return &domain.PaymentRecord{
			Amount:      req.Amount,
			Method:      method,
			CollectedBy: actorName(ctx),
			Note:        note,
			CreatedAt:   now,
		}, nil
	})
	if err != nil {
		return domain.PurchaseResult{}, err
	}

	s.afterMutation(ctx, "purchase_payment", "purchase", result.Purchase.ID,
		fmt.Sprintf("amount=%s,method=%s,vendor_balance=%s", req.Amount, method, result.Vendor.Balance))
	return *result, nil
}

// UpdatePurchase replaces lines and amounts. Stock moves by the difference
// between the old and new lines, which fails with InsufficientStock when
// goods being taken back were already sold.
func (s *Service) UpdatePurchase(ctx context.Context, vendorID string, id string, req domain.PurchaseUpdateRequest) (domain.PurchaseResult, error) {
	var (
		lines    []domain.PurchaseLine
		newTotal decimal.Decimal
	)
	if len(req.Products) > 0 {
		var err error
		lines, newTotal, err = s.resolvePurchaseLines(ctx, req.Products)
		if err != nil {
			return domain.PurchaseResult{}, err
		}
	}
	var method domain.PaymentMethod
	if req.PaymentMethod != nil {
		parsed, ok := domain.ParsePaymentMethod(*req.PaymentMethod)
		if !ok {
			return domain.PurchaseResult{}, invalid("unknown payment method %q", *req.PaymentMethod)
		}
		method = parsed
	}

	now := s.now()
	result, err := s.repo.UpdatePurchase(ctx, strings.TrimSpace(vendorID), strings.TrimSpace(id), func(p *domain.Purchase) (*domain.PaymentRecord, error) {
		amountDue := p.AmountDue
		if lines != nil {
			if p.AmountDue.Equal(p.Total) {
				amountDue = newTotal
			}
			p.Items = lines
			p.Total = newTotal
		}
		if req.AmountDue != nil {
			amountDue = *req.AmountDue
		}
		amountPaid := p.AmountPaid
		if req.AmountPaid != nil {
			amountPaid = *req.AmountPaid
		}
		if req.DueDate != nil {
			p.DueDate = utcPtr(req.DueDate)
		}

		next, err := payment.Revise(p.State, amountDue, amountPaid, p.DueDate, now)
		if err != nil {
			return nil, err
		}
		increase := next.AmountPaid.Sub(p.AmountPaid)
		p.State = next
		if method != "" {
			p.PaymentMethod = method
		}
		if req.Notes != nil {
			p.Notes = strings.TrimSpace(*req.Notes)
		}
		p.UpdatedAt = now

		if !increase.IsPositive() {
			return nil, nil
		}
		return &domain.PaymentRecord{
			Amount:      increase,
			Method:      p.PaymentMethod,
			CollectedBy: actorName(ctx),
			Note:        "Adjusted on edit",
			CreatedAt:   now,
		}, nil
	})
	if err != nil {
		return domain.PurchaseResult{}, err
	}

	s.afterMutation(ctx, "purchase_update", "purchase", result.Purchase.ID,
		fmt.Sprintf("total=%s,due=%s,paid=%s", result.Purchase.Total, result.Purchase.AmountDue, result.Purchase.AmountPaid))
	return *result, nil
}

// DeletePurchase takes the goods back out of stock and reverses the
// purchase's effect on its vendor. Settled purchases need managerApproved.
func (s *Service) DeletePurchase(ctx context.Context, vendorID string, id string, managerApproved bool) (domain.Vendor, error) {
	result, err := s.repo.DeletePurchase(ctx, strings.TrimSpace(vendorID), strings.TrimSpace(id), func(p domain.Purchase) error {
		if p.Status == payment.StatusCompleted && !managerApproved {
			return forbidden("manager PIN required to delete a settled purchase")
		}
		return nil
	})
	if err != nil {
		return domain.Vendor{}, err
	}

	s.afterMutation(ctx, "purchase_delete", "purchase", result.Purchase.ID,
		fmt.Sprintf("vendor=%s,total=%s,manager_approved=%t", result.Vendor.ID, result.Purchase.Total, managerApproved))
	return result.Vendor, nil
}
