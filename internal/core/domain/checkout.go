package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type CartLine struct {
	ProductID int64
	Quantity  int
	UnitPrice decimal.Decimal
	LineTotal decimal.Decimal
}

type Cart struct {
	CustomerName   string
	Lines          []CartLine
	Subtotal       decimal.Decimal
	Tax            decimal.Decimal
	GrandTotal     decimal.Decimal
	IdempotencyKey string
}

// Sale is a validated cart ready to be committed by the storage layer.
// When Reprice is set, the storage layer replaces unit prices and totals
// with the catalog prices read under the row lock.
type Sale struct {
	InvoiceNumber string
	CustomerName  string
	Lines         []CartLine
	Subtotal      decimal.Decimal
	Tax           decimal.Decimal
	GrandTotal    decimal.Decimal
	Reprice       bool
	CreatedAt     time.Time
}

type Receipt struct {
	InvoiceID     int64           `json:"invoice_id"`
	InvoiceNumber string          `json:"invoice_number"`
	GrandTotal    decimal.Decimal `json:"grand_total"`
	Replayed      bool            `json:"replayed,omitempty"`
}
