package service

import (
	"context"
	"fmt"

	"github.com/rl1809/retail-pos/internal/core/domain"
	"github.com/rl1809/retail-pos/internal/port"
)

const (
	DefaultHistoryLimit = 10
	MaxHistoryLimit     = 100
)

type InvoiceService struct {
	ledger port.LedgerRepository
}

func NewInvoiceService(ledger port.LedgerRepository) *InvoiceService {
	return &InvoiceService{ledger: ledger}
}

// RecentInvoices lists the newest invoices first. Non-positive limits fall
// back to the default; large ones are capped.
func (s *InvoiceService) RecentInvoices(ctx context.Context, limit int) ([]domain.InvoiceSummary, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}
	return s.ledger.RecentInvoices(ctx, limit)
}

func (s *InvoiceService) GetInvoice(ctx context.Context, id int64) (*domain.Invoice, error) {
	if id <= 0 {
		return nil, fmt.Errorf("%w: invoice %d", domain.ErrNotFound, id)
	}
	return s.ledger.GetInvoice(ctx, id)
}
