package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"dukaan/backend/internal/domain"
	"dukaan/backend/internal/money"
)

const defaultLowStockThreshold = 5

func (s *Service) ListProducts(ctx context.Context) ([]domain.Product, error) {
	return s.repo.ListProducts(ctx)
}

func (s *Service) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	product, err := s.repo.GetProduct(ctx, strings.TrimSpace(id))
	if err != nil {
		return domain.Product{}, err
	}
	return *product, nil
}

// CreateProduct is the only place stock is set by hand; afterwards it moves
// through sales and purchases.
func (s *Service) CreateProduct(ctx context.Context, req domain.ProductCreateRequest) (domain.Product, error) {
	if _, err := s.requireAdmin(ctx); err != nil {
		return domain.Product{}, err
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.Product{}, invalid("product name is required")
	}
	if err := checkPrice("cost", req.Cost); err != nil {
		return domain.Product{}, err
	}
	if err := checkPrice("price", req.Price); err != nil {
		return domain.Product{}, err
	}
	if req.Stock < 0 {
		return domain.Product{}, invalid("stock cannot be negative")
	}
	threshold := defaultLowStockThreshold
	if req.LowStockThreshold != nil {
		if *req.LowStockThreshold < 0 {
			return domain.Product{}, invalid("lowStockThreshold cannot be negative")
		}
		threshold = *req.LowStockThreshold
	}

	now := s.now()
	created, err := s.repo.CreateProduct(ctx, domain.Product{
		Name:              name,
		Barcode:           strings.TrimSpace(req.Barcode),
		Description:       strings.TrimSpace(req.Description),
		Cost:              req.Cost,
		Price:             req.Price,
		Stock:             req.Stock,
		LowStockThreshold: threshold,
		ExpiryDate:        utcPtr(req.ExpiryDate),
		CreatedAt:         now,
		UpdatedAt:         now,
	})
	if err != nil {
		return domain.Product{}, err
	}

	s.afterMutation(ctx, "product_create", "product", created.ID,
		fmt.Sprintf("name=%s,price=%s,stock=%d", created.Name, created.Price, created.Stock))
	return *created, nil
}

// UpdateProduct edits catalog metadata. Stock is not editable here.
func (s *Service) UpdateProduct(ctx context.Context, id string, req domain.ProductUpdateRequest) (domain.Product, error) {
	if _, err := s.requireAdmin(ctx); err != nil {
		return domain.Product{}, err
	}

	existing, err := s.repo.GetProduct(ctx, strings.TrimSpace(id))
	if err != nil {
		return domain.Product{}, err
	}

	updated := *existing
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return domain.Product{}, invalid("product name cannot be empty")
		}
		updated.Name = name
	}
	if req.Barcode != nil {
		updated.Barcode = strings.TrimSpace(*req.Barcode)
	}
	if req.Description != nil {
		updated.Description = strings.TrimSpace(*req.Description)
	}
	if req.Cost != nil {
		if err := checkPrice("cost", *req.Cost); err != nil {
			return domain.Product{}, err
		}
		updated.Cost = *req.Cost
	}
	if req.Price != nil {
		if err := checkPrice("price", *req.Price); err != nil {
			return domain.Product{}, err
		}
		updated.Price = *req.Price
	}
	if req.LowStockThreshold != nil {
		if *req.LowStockThreshold < 0 {
			return domain.Product{}, invalid("lowStockThreshold cannot be negative")
		}
		updated.LowStockThreshold = *req.LowStockThreshold
	}
	if req.ExpiryDate != nil {
		updated.ExpiryDate = utcPtr(req.ExpiryDate)
	}
	updated.UpdatedAt = s.now()

	saved, err := s.repo.UpdateProduct(ctx, updated)
	if err != nil {
		return domain.Product{}, err
	}

	s.logAudit(ctx, "product_update", "product", saved.ID,
		fmt.Sprintf("name=%s,cost=%s,price=%s", saved.Name, saved.Cost, saved.Price))
	return *saved, nil
}

// DeleteProduct fails with ErrConflict while sales or purchases reference
// the product.
func (s *Service) DeleteProduct(ctx context.Context, id string) error {
	if _, err := s.requireAdmin(ctx); err != nil {
		return err
	}
	id = strings.TrimSpace(id)
	if err := s.repo.DeleteProduct(ctx, id); err != nil {
		return err
	}
	s.logAudit(ctx, "product_delete", "product", id, "deleted")
	return nil
}

// LowStock lists products at or below their threshold together with
// restock suggestions scored on recent sales velocity.
func (s *Service) LowStock(ctx context.Context) (domain.LowStockResponse, error) {
	products, err := s.repo.ListProducts(ctx)
	if err != nil {
		return domain.LowStockResponse{}, err
	}
	now := s.now()
	from, to := s.advisor.Window(now)
	sold, err := s.repo.SoldQuantities(ctx, from, to)
	if err != nil {
		return domain.LowStockResponse{}, err
	}

	low := make([]domain.Product, 0)
	for _, product := range products {
		if product.LowOnStock() {
			low = append(low, product)
		}
	}
	return domain.LowStockResponse{
		GeneratedAt: now.Format(timeLayout),
		Products:    low,
		Suggestions: s.advisor.Suggest(products, sold),
	}, nil
}

func checkPrice(field string, value decimal.Decimal) error {
	if value.IsNegative() || !money.HasCents(value) {
		return invalid("invalid %s %s", field, value)
	}
	return nil
}
