package port

import (
	"context"
	"time"

	"github.com/rl1809/retail-pos/internal/core/domain"
)

type LedgerRepository interface {
	// CommitSale decrements stock for every line and appends the invoice,
	// its items and an outbox event atomically. Nothing is written if any
	// line lacks stock.
	CommitSale(ctx context.Context, sale domain.Sale) (*domain.Invoice, error)

	GetInvoice(ctx context.Context, id int64) (*domain.Invoice, error)

	RecentInvoices(ctx context.Context, limit int) ([]domain.InvoiceSummary, error)

	// SaleTotals returns invoice timestamps and grand totals in [from, to)
	SaleTotals(ctx context.Context, from, to time.Time) ([]domain.SaleTotal, error)

	// TopProducts ranks products by quantity sold, ties by product id
	TopProducts(ctx context.Context, limit int) ([]domain.TopProduct, error)
}
