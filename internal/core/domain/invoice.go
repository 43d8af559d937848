package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TaxRate is the flat GST rate applied to every invoice subtotal.
var TaxRate = decimal.RequireFromString("0.18")

type Invoice struct {
	ID            int64           `json:"id"`
	InvoiceNumber string          `json:"invoice_number"`
	CustomerName  string          `json:"customer_name"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	TaxAmount     decimal.Decimal `json:"tax_amount"`
	GrandTotal    decimal.Decimal `json:"grand_total"`
	CreatedAt     time.Time       `json:"created_at"`
	Items         []InvoiceItem   `json:"items,omitempty"`
}

// InvoiceItem is one line of an invoice. ProductID is nil once the product
// has been deleted from the catalog; the frozen price and totals remain.
type InvoiceItem struct {
	ID          int64           `json:"id"`
	InvoiceID   int64           `json:"invoice_id"`
	ProductID   *int64          `json:"product_id"`
	ProductName string          `json:"product_name,omitempty"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	LineTotal   decimal.Decimal `json:"line_total"`
}

type InvoiceSummary struct {
	ID            int64           `json:"id"`
	InvoiceNumber string          `json:"invoice_number"`
	CustomerName  string          `json:"customer_name"`
	GrandTotal    decimal.Decimal `json:"grand_total"`
	SaleDate      time.Time       `json:"sale_date"`
	ItemsCount    int             `json:"items_count"`
}

// TaxFor returns the tax owed on subtotal, rounded to cents.
func TaxFor(subtotal decimal.Decimal) decimal.Decimal {
	return subtotal.Mul(TaxRate).Round(2)
}
