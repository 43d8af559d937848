package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type WeeklyRevenue struct {
	WeekStart time.Time       `json:"week_start"`
	Week      string          `json:"week"`
	Revenue   decimal.Decimal `json:"revenue"`
	Sales     int             `json:"sales"`
}

type TopProduct struct {
	ProductID int64  `json:"product_id"`
	Name      string `json:"name"`
	Quantity  int    `json:"quantity"`
}

type Analytics struct {
	CurrentWeekRevenue decimal.Decimal `json:"currentWeekRevenue"`
	CurrentWeekSales   int             `json:"currentWeekSales"`
	WeeklyRevenue      []WeeklyRevenue `json:"weeklyRevenue"`
	TopProducts        []TopProduct    `json:"topProducts"`
}

// SaleTotal is the slice of an invoice the aggregator buckets by week.
type SaleTotal struct {
	CreatedAt  time.Time
	GrandTotal decimal.Decimal
}
