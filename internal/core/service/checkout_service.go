package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"

	"github.com/rl1809/retail-pos/internal/core/domain"
	"github.com/rl1809/retail-pos/internal/port"
)

const (
	invoiceNumberPrefix = "INV-"
	// idempotencyWriteTimeout bounds Complete and Release, which must run
	// even after the request context is gone.
	idempotencyWriteTimeout = 3 * time.Second
)

// moneyTolerance absorbs the float rounding of client-computed totals.
var moneyTolerance = decimal.RequireFromString("0.01")

type CheckoutConfig struct {
	// NodeID distinguishes invoice number generators across server replicas.
	NodeID int64
	// Reprice makes the server price every line from the catalog instead of
	// trusting the prices submitted with the cart.
	Reprice bool
}

type CheckoutService struct {
	ledger  port.LedgerRepository
	idem    port.IdempotencyRepository
	node    *snowflake.Node
	reprice bool
	now     func() time.Time
	logger  *slog.Logger
}

// NewCheckoutService wires the coordinator. idem may be nil, in which case
// idempotency keys are ignored.
func NewCheckoutService(ledger port.LedgerRepository, idem port.IdempotencyRepository, cfg CheckoutConfig, logger *slog.Logger) (*CheckoutService, error) {
	node, err := snowflake.NewNode(cfg.NodeID)
	if err != nil {
		return nil, fmt.Errorf("invoice number generator: %w", err)
	}

	return &CheckoutService{
		ledger:  ledger,
		idem:    idem,
		node:    node,
		reprice: cfg.Reprice,
		now:     time.Now,
		logger:  logger,
	}, nil
}

// Checkout turns a cart into a committed invoice or rejects it as a whole.
func (s *CheckoutService) Checkout(ctx context.Context, cart domain.Cart) (*domain.Receipt, error) {
	sale, err := s.prepareSale(cart)
	if err != nil {
		return nil, err
	}

	key := strings.TrimSpace(cart.IdempotencyKey)
	reserved := false
	if key != "" && s.idem != nil {
		ok, err := s.idem.Reserve(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("idempotency check failed: %w", err)
		}
		if !ok {
			return s.replay(ctx, key)
		}
		reserved = true
	}

	start := time.Now()
	invoice, err := s.ledger.CommitSale(ctx, sale)
	if err != nil {
		if reserved {
			idemCtx, cancel := s.idempotencyContext(ctx)
			releaseErr := s.idem.Release(idemCtx, key)
			cancel()
			if releaseErr != nil {
				s.logger.ErrorContext(ctx, "failed to release idempotency key",
					slog.String("key", key), slog.Any("error", releaseErr))
			}
		}
		s.logger.WarnContext(ctx, "checkout failed", slog.Int("lines", len(sale.Lines)), slog.Any("error", err))
		return nil, err
	}

	if reserved {
		idemCtx, cancel := s.idempotencyContext(ctx)
		err := s.idem.Complete(idemCtx, key, invoice.ID)
		cancel()
		if err != nil {
			// The sale is committed; a retry with this key will report a duplicate instead of replaying.
			s.logger.ErrorContext(ctx, "failed to record idempotency key",
				slog.String("key", key), slog.Int64("invoice_id", invoice.ID), slog.Any("error", err))
		}
	}

	s.logger.InfoContext(ctx, "checkout committed",
		slog.Int64("invoice_id", invoice.ID),
		slog.String("invoice_number", invoice.InvoiceNumber),
		slog.String("grand_total", invoice.GrandTotal.StringFixed(2)),
		slog.Int64("duration_ms", time.Since(start).Milliseconds()),
	)

	return &domain.Receipt{
		InvoiceID:     invoice.ID,
		InvoiceNumber: invoice.InvoiceNumber,
		GrandTotal:    invoice.GrandTotal,
	}, nil
}

// idempotencyContext keeps the request's values but not its cancellation, so
// a client disconnect cannot leave a key stuck in the pending state.
func (s *CheckoutService) idempotencyContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), idempotencyWriteTimeout)
}

func (s *CheckoutService) replay(ctx context.Context, key string) (*domain.Receipt, error) {
	invoiceID, done, err := s.idem.Lookup(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("idempotency lookup failed: %w", err)
	}
	if !done {
		return nil, domain.ErrDuplicateRequest
	}

	invoice, err := s.ledger.GetInvoice(ctx, invoiceID)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "checkout replayed", slog.String("key", key), slog.Int64("invoice_id", invoice.ID))
	return &domain.Receipt{
		InvoiceID:     invoice.ID,
		InvoiceNumber: invoice.InvoiceNumber,
		GrandTotal:    invoice.GrandTotal,
		Replayed:      true,
	}, nil
}

func (s *CheckoutService) prepareSale(cart domain.Cart) (domain.Sale, error) {
	customer := strings.TrimSpace(cart.CustomerName)
	if len(customer) > maxNameLength {
		return domain.Sale{}, domain.Invalid("customerName must be at most %d characters", maxNameLength)
	}
	if len(cart.Lines) == 0 {
		return domain.Sale{}, domain.Invalid("cart is empty")
	}

	lines := make([]domain.CartLine, len(cart.Lines))
	for i, line := range cart.Lines {
		switch {
		case line.ProductID <= 0:
			return domain.Sale{}, domain.Invalid("line %d: product id is required", i+1)
		case line.Quantity <= 0:
			return domain.Sale{}, domain.Invalid("line %d: quantity must be positive", i+1)
		case line.UnitPrice.IsNegative() || line.LineTotal.IsNegative():
			return domain.Sale{}, domain.Invalid("line %d: price cannot be negative", i+1)
		case line.Quantity > domain.MaxQuantity:
			return domain.Sale{}, domain.Invalid("line %d: quantity must be at most %d", i+1, domain.MaxQuantity)
		case line.UnitPrice.GreaterThan(domain.MaxPrice):
			return domain.Sale{}, domain.Invalid("line %d: price must be at most %s", i+1, domain.MaxPrice.StringFixed(2))
		}
		lines[i] = domain.CartLine{
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice.Round(2),
			LineTotal: line.LineTotal.Round(2),
		}
	}

	sale := domain.Sale{
		InvoiceNumber: invoiceNumberPrefix + s.node.Generate().String(),
		CustomerName:  customer,
		Lines:         lines,
		Reprice:       s.reprice,
		CreatedAt:     s.now().UTC(),
	}
	if s.reprice {
		return sale, nil
	}

	if err := checkTotals(cart); err != nil {
		return domain.Sale{}, err
	}

	// Stored totals are normalized from the rounded line totals so the
	// invoice invariants hold exactly.
	subtotal := decimal.Zero
	for _, line := range lines {
		subtotal = subtotal.Add(line.LineTotal)
	}
	sale.Subtotal = subtotal
	sale.Tax = domain.TaxFor(subtotal)
	sale.GrandTotal = subtotal.Add(sale.Tax)
	return sale, nil
}

// checkTotals verifies the submitted totals agree with each other and with
// the flat tax rate. Unit prices themselves are taken as submitted.
func checkTotals(cart domain.Cart) error {
	if cart.Subtotal.IsNegative() || cart.Tax.IsNegative() || cart.GrandTotal.IsNegative() {
		return domain.Invalid("totals cannot be negative")
	}

	sum := decimal.Zero
	for i, line := range cart.Lines {
		want := line.UnitPrice.Mul(decimal.NewFromInt(int64(line.Quantity)))
		if !within(line.LineTotal, want) {
			return domain.Invalid("line %d: lineTotal %s does not match quantity x price %s",
				i+1, line.LineTotal.StringFixed(2), want.StringFixed(2))
		}
		sum = sum.Add(line.LineTotal)
	}

	if !within(cart.Subtotal, sum) {
		return domain.Invalid("subtotal %s does not match line totals %s", cart.Subtotal.StringFixed(2), sum.StringFixed(2))
	}
	if tax := domain.TaxFor(cart.Subtotal); !within(cart.Tax, tax) {
		return domain.Invalid("tax %s does not match %s%% of subtotal (%s)",
			cart.Tax.StringFixed(2), domain.TaxRate.Shift(2).String(), tax.StringFixed(2))
	}
	if !within(cart.GrandTotal, cart.Subtotal.Add(cart.Tax)) {
		return domain.Invalid("grandTotal %s does not equal subtotal + tax", cart.GrandTotal.StringFixed(2))
	}
	return nil
}

func within(a, b decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThanOrEqual(moneyTolerance)
}
