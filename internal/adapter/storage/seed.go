package storage

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/rl1809/retail-pos/internal/core/domain"
)

var sampleProducts = []domain.NewProduct{
	{Name: "Laptop Dell XPS 13", SKU: "LAPTOP-001", Price: decimal.RequireFromString("89999.00"), StockQuantity: 15, ReorderThreshold: 5},
	{Name: "Wireless Mouse Logitech", SKU: "MOUSE-002", Price: decimal.RequireFromString("1299.00"), StockQuantity: 50, ReorderThreshold: 10},
	{Name: "USB-C Hub 7-in-1", SKU: "HUB-003", Price: decimal.RequireFromString("2499.00"), StockQuantity: 30, ReorderThreshold: 8},
	{Name: "Mechanical Keyboard RGB", SKU: "KB-004", Price: decimal.RequireFromString("4599.00"), StockQuantity: 25, ReorderThreshold: 5},
	{Name: `27" Monitor 4K`, SKU: "MON-005", Price: decimal.RequireFromString("25999.00"), StockQuantity: 10, ReorderThreshold: 3},
	{Name: "Webcam HD 1080p", SKU: "CAM-006", Price: decimal.RequireFromString("3499.00"), StockQuantity: 40, ReorderThreshold: 10},
	{Name: "Laptop Stand Aluminum", SKU: "STAND-007", Price: decimal.RequireFromString("1899.00"), StockQuantity: 35, ReorderThreshold: 8},
	{Name: "External SSD 1TB", SKU: "SSD-008", Price: decimal.RequireFromString("8999.00"), StockQuantity: 20, ReorderThreshold: 5},
	{Name: "Noise Cancelling Headphones", SKU: "HEAD-009", Price: decimal.RequireFromString("12999.00"), StockQuantity: 18, ReorderThreshold: 5},
	{Name: "Portable Charger 20000mAh", SKU: "CHRG-010", Price: decimal.RequireFromString("2999.00"), StockQuantity: 60, ReorderThreshold: 15},
}

// SeedSampleProducts inserts the demo catalog, skipping SKUs that already
// exist. It returns how many products were added.
func (a *SQLAdapter) SeedSampleProducts(ctx context.Context) (int, error) {
	added := 0
	for _, p := range sampleProducts {
		if _, err := a.CreateProduct(ctx, p); err != nil {
			if errors.Is(err, domain.ErrDuplicateKey) {
				continue
			}
			return added, err
		}
		added++
	}
	return added, nil
}
