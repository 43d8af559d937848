package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/rl1809/retail-pos/internal/core/domain"
	"github.com/rl1809/retail-pos/internal/port"
)

const (
	maxNameLength = 255
	maxSKULength  = 64
)

type CatalogService struct {
	repo   port.CatalogRepository
	logger *slog.Logger
}

func NewCatalogService(repo port.CatalogRepository, logger *slog.Logger) *CatalogService {
	return &CatalogService{repo: repo, logger: logger}
}

func (s *CatalogService) ListProducts(ctx context.Context, filter domain.ProductFilter) ([]domain.Product, error) {
	filter.Search = strings.TrimSpace(filter.Search)
	return s.repo.ListProducts(ctx, filter)
}

func (s *CatalogService) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	if id <= 0 {
		return nil, fmt.Errorf("%w: product %d", domain.ErrNotFound, id)
	}
	return s.repo.GetProduct(ctx, id)
}

// AddProduct validates and inserts a new product. A nil threshold means the
// default reorder threshold.
func (s *CatalogService) AddProduct(ctx context.Context, name, sku string, price decimal.Decimal, stock int, threshold *int) (*domain.Product, error) {
	np := domain.NewProduct{
		Name:             strings.TrimSpace(name),
		SKU:              strings.TrimSpace(sku),
		Price:            price,
		StockQuantity:    stock,
		ReorderThreshold: domain.DefaultReorderThreshold,
	}
	if threshold != nil {
		np.ReorderThreshold = *threshold
	}

	switch {
	case np.Name == "":
		return nil, domain.Invalid("name is required")
	case np.SKU == "":
		return nil, domain.Invalid("sku is required")
	case len(np.Name) > maxNameLength:
		return nil, domain.Invalid("name must be at most %d characters", maxNameLength)
	case len(np.SKU) > maxSKULength:
		return nil, domain.Invalid("sku must be at most %d characters", maxSKULength)
	case np.ReorderThreshold < 0:
		return nil, domain.Invalid("min_stock_level cannot be negative")
	case np.ReorderThreshold > domain.MaxQuantity:
		return nil, domain.Invalid("min_stock_level must be at most %d", domain.MaxQuantity)
	}
	np.Price = np.Price.Round(2)
	if err := checkPriceAndStock(np.Price, np.StockQuantity); err != nil {
		return nil, err
	}

	p, err := s.repo.CreateProduct(ctx, np)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "product created", slog.Int64("product_id", p.ID), slog.String("sku", p.SKU))
	return p, nil
}

func (s *CatalogService) UpdateProduct(ctx context.Context, id int64, price decimal.Decimal, stock int) (*domain.Product, error) {
	if id <= 0 {
		return nil, fmt.Errorf("%w: product %d", domain.ErrNotFound, id)
	}
	price = price.Round(2)
	if err := checkPriceAndStock(price, stock); err != nil {
		return nil, err
	}

	p, err := s.repo.UpdatePriceAndStock(ctx, id, price, stock)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "product updated",
		slog.Int64("product_id", p.ID), slog.String("price", p.Price.StringFixed(2)), slog.Int("stock", p.StockQuantity))
	return p, nil
}

// DeleteProduct removes a product while keeping the invoice lines that
// reference it. It returns the deleted product for confirmation messages.
func (s *CatalogService) DeleteProduct(ctx context.Context, id int64) (*domain.DeletedProduct, error) {
	if id <= 0 {
		return nil, fmt.Errorf("%w: product %d", domain.ErrNotFound, id)
	}

	deleted, err := s.repo.DeleteProduct(ctx, id)
	if err != nil {
		return nil, err
	}

	if deleted.DetachedItems > 0 {
		s.logger.WarnContext(ctx, "product removed from invoice history",
			slog.String("name", deleted.Name), slog.Int("invoice_items", deleted.DetachedItems))
	}
	s.logger.InfoContext(ctx, "product deleted", slog.Int64("product_id", deleted.ID), slog.String("name", deleted.Name))
	return deleted, nil
}

func checkPriceAndStock(price decimal.Decimal, stock int) error {
	switch {
	case price.IsNegative():
		return domain.Invalid("price cannot be negative")
	case price.GreaterThan(domain.MaxPrice):
		return domain.Invalid("price must be at most %s", domain.MaxPrice.StringFixed(2))
	case stock < 0:
		return domain.Invalid("stock_quantity cannot be negative")
	case stock > domain.MaxQuantity:
		return domain.Invalid("stock_quantity must be at most %d", domain.MaxQuantity)
	}
	return nil
}
