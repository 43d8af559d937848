package domain

import (
	"math"
	"time"

	"github.com/shopspring/decimal"
)

const DefaultReorderThreshold = 5

// Column limits: prices are DECIMAL(12,2), quantities are 32-bit INT.
const MaxQuantity = math.MaxInt32

var MaxPrice = decimal.RequireFromString("9999999999.99")

type Product struct {
	ID               int64           `json:"id"`
	SKU              string          `json:"sku"`
	Name             string          `json:"name"`
	Price            decimal.Decimal `json:"price"`
	StockQuantity    int             `json:"stock_quantity"`
	ReorderThreshold int             `json:"min_stock_level"`
	CreatedAt        time.Time       `json:"created_at"`
}

// LowStock reports whether the product is at or below its reorder threshold.
func (p Product) LowStock() bool {
	return p.StockQuantity <= p.ReorderThreshold
}

// ProductFilter narrows a product listing. The zero value lists everything.
type ProductFilter struct {
	Search       string
	LowStockOnly bool
}

type NewProduct struct {
	Name             string
	SKU              string
	Price            decimal.Decimal
	StockQuantity    int
	ReorderThreshold int
}

type DeletedProduct struct {
	ID            int64
	Name          string
	DetachedItems int
}
