package port

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/rl1809/retail-pos/internal/core/domain"
)

type CatalogRepository interface {
	// ListProducts returns products ordered by name ascending
	ListProducts(ctx context.Context, filter domain.ProductFilter) ([]domain.Product, error)

	GetProduct(ctx context.Context, id int64) (*domain.Product, error)

	// CreateProduct inserts a product, returns domain.ErrDuplicateKey if the SKU exists
	CreateProduct(ctx context.Context, p domain.NewProduct) (*domain.Product, error)

	// UpdatePriceAndStock overwrites price and stock in one statement
	UpdatePriceAndStock(ctx context.Context, id int64, price decimal.Decimal, stock int) (*domain.Product, error)

	// DeleteProduct detaches invoice items from the product and removes it in one transaction
	DeleteProduct(ctx context.Context, id int64) (*domain.DeletedProduct, error)
}
