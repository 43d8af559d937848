package storage

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/retail-pos/internal/core/domain"
)

// The suite runs against whichever database the caller connected to.
// Every test creates its own products under unique SKUs so runs can share
// a database.

func uniqueSKU(prefix string) string {
	return prefix + "-" + uuid.NewString()[:8]
}

func createTestProduct(t *testing.T, a *SQLAdapter, price string, stock, threshold int) *domain.Product {
	t.Helper()
	sku := uniqueSKU("TEST")
	p, err := a.CreateProduct(context.Background(), domain.NewProduct{
		Name:             "Test product " + sku,
		SKU:              sku,
		Price:            decimal.RequireFromString(price),
		StockQuantity:    stock,
		ReorderThreshold: threshold,
	})
	require.NoError(t, err)
	return p
}

func saleFor(lines ...domain.CartLine) domain.Sale {
	subtotal := decimal.Zero
	for i := range lines {
		lines[i].LineTotal = lines[i].UnitPrice.Mul(decimal.NewFromInt(int64(lines[i].Quantity)))
		subtotal = subtotal.Add(lines[i].LineTotal)
	}
	tax := domain.TaxFor(subtotal)
	return domain.Sale{
		InvoiceNumber: "INV-" + uuid.NewString(),
		CustomerName:  "Walk-in",
		Lines:         lines,
		Subtotal:      subtotal,
		Tax:           tax,
		GrandTotal:    subtotal.Add(tax),
		CreatedAt:     time.Now(),
	}
}

func runStoreSuite(t *testing.T, a *SQLAdapter) {
	t.Run("CatalogLifecycle", func(t *testing.T) { testCatalogLifecycle(t, a) })
	t.Run("DuplicateSKU", func(t *testing.T) { testDuplicateSKU(t, a) })
	t.Run("SearchAndLowStock", func(t *testing.T) { testSearchAndLowStock(t, a) })
	t.Run("CommitSale", func(t *testing.T) { testCommitSale(t, a) })
	t.Run("CommitSaleAllOrNothing", func(t *testing.T) { testCommitSaleAllOrNothing(t, a) })
	t.Run("CommitSaleUnknownProduct", func(t *testing.T) { testCommitSaleUnknownProduct(t, a) })
	t.Run("ConcurrentCheckout", func(t *testing.T) { testConcurrentCheckout(t, a) })
	t.Run("DeleteDetachesInvoiceItems", func(t *testing.T) { testDeleteDetachesInvoiceItems(t, a) })
	t.Run("HistoryAndAnalytics", func(t *testing.T) { testHistoryAndAnalytics(t, a) })
}

func testCatalogLifecycle(t *testing.T, a *SQLAdapter) {
	ctx := context.Background()
	p := createTestProduct(t, a, "1299.00", 50, 10)

	got, err := a.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.SKU, got.SKU)
	assert.True(t, got.Price.Equal(decimal.RequireFromString("1299")))
	assert.Equal(t, 10, got.ReorderThreshold)

	updated, err := a.UpdatePriceAndStock(ctx, p.ID, decimal.RequireFromString("1199.50"), 45)
	require.NoError(t, err)
	assert.Equal(t, "1199.5", updated.Price.String())
	assert.Equal(t, 45, updated.StockQuantity)

	// Unchanged values still count as an update of an existing row
	_, err = a.UpdatePriceAndStock(ctx, p.ID, decimal.RequireFromString("1199.50"), 45)
	require.NoError(t, err)

	deleted, err := a.DeleteProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, deleted.DetachedItems)

	_, err = a.GetProduct(ctx, p.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = a.UpdatePriceAndStock(ctx, p.ID, decimal.NewFromInt(1), 1)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = a.DeleteProduct(ctx, p.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func testDuplicateSKU(t *testing.T, a *SQLAdapter) {
	ctx := context.Background()
	p := createTestProduct(t, a, "10.00", 1, 0)

	_, err := a.CreateProduct(ctx, domain.NewProduct{
		Name: "Copy", SKU: p.SKU, Price: decimal.NewFromInt(5), StockQuantity: 1,
	})
	assert.ErrorIs(t, err, domain.ErrDuplicateKey)

	// SKUs are case-sensitive
	lower, err := a.CreateProduct(ctx, domain.NewProduct{
		Name: "Lowercase", SKU: "test" + p.SKU[4:], Price: decimal.NewFromInt(5), StockQuantity: 1,
	})
	require.NoError(t, err)
	assert.NotEqual(t, p.ID, lower.ID)
}

func testSearchAndLowStock(t *testing.T, a *SQLAdapter) {
	ctx := context.Background()
	marker := uuid.NewString()[:8]

	low, err := a.CreateProduct(ctx, domain.NewProduct{
		Name: "Alpha Cable " + marker, SKU: uniqueSKU("LOW"), Price: decimal.NewFromInt(3), StockQuantity: 2, ReorderThreshold: 5,
	})
	require.NoError(t, err)
	edge, err := a.CreateProduct(ctx, domain.NewProduct{
		Name: "Beta Cable " + marker, SKU: uniqueSKU("EDGE"), Price: decimal.NewFromInt(3), StockQuantity: 5, ReorderThreshold: 5,
	})
	require.NoError(t, err)
	plenty, err := a.CreateProduct(ctx, domain.NewProduct{
		Name: "Gamma Cable " + marker, SKU: uniqueSKU("OK"), Price: decimal.NewFromInt(3), StockQuantity: 50, ReorderThreshold: 5,
	})
	require.NoError(t, err)

	all, err := a.ListProducts(ctx, domain.ProductFilter{Search: "CABLE " + marker})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []int64{low.ID, edge.ID, plenty.ID}, []int64{all[0].ID, all[1].ID, all[2].ID})

	lowOnly, err := a.ListProducts(ctx, domain.ProductFilter{Search: marker, LowStockOnly: true})
	require.NoError(t, err)
	require.Len(t, lowOnly, 2)
	for _, p := range lowOnly {
		assert.True(t, p.LowStock())
	}

	bySKU, err := a.ListProducts(ctx, domain.ProductFilter{Search: plenty.SKU})
	require.NoError(t, err)
	require.Len(t, bySKU, 1)
	assert.Equal(t, plenty.ID, bySKU[0].ID)

	none, err := a.ListProducts(ctx, domain.ProductFilter{Search: "%" + marker + "_nothing"})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func testCommitSale(t *testing.T, a *SQLAdapter) {
	ctx := context.Background()
	monitor := createTestProduct(t, a, "25999.00", 10, 3)

	sale := saleFor(domain.CartLine{ProductID: monitor.ID, Quantity: 2, UnitPrice: monitor.Price})
	invoice, err := a.CommitSale(ctx, sale)
	require.NoError(t, err)
	assert.Equal(t, "51998", invoice.Subtotal.String())
	assert.Equal(t, "9359.64", invoice.TaxAmount.String())
	assert.Equal(t, "61357.64", invoice.GrandTotal.String())

	p, err := a.GetProduct(ctx, monitor.ID)
	require.NoError(t, err)
	assert.Equal(t, 8, p.StockQuantity)

	stored, err := a.GetInvoice(ctx, invoice.ID)
	require.NoError(t, err)
	assert.Equal(t, sale.InvoiceNumber, stored.InvoiceNumber)
	assert.True(t, stored.GrandTotal.Equal(invoice.GrandTotal))
	require.Len(t, stored.Items, 1)
	require.NotNil(t, stored.Items[0].ProductID)
	assert.Equal(t, monitor.ID, *stored.Items[0].ProductID)
	assert.Equal(t, monitor.Name, stored.Items[0].ProductName)
	assert.True(t, stored.Items[0].LineTotal.Equal(decimal.RequireFromString("51998.00")))

	_, err = a.GetInvoice(ctx, invoice.ID+1_000_000)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func testCommitSaleAllOrNothing(t *testing.T, a *SQLAdapter) {
	ctx := context.Background()
	first := createTestProduct(t, a, "100.00", 10, 0)
	second := createTestProduct(t, a, "50.00", 1, 0)

	sale := saleFor(
		domain.CartLine{ProductID: first.ID, Quantity: 3, UnitPrice: first.Price},
		domain.CartLine{ProductID: second.ID, Quantity: 2, UnitPrice: second.Price},
	)
	_, err := a.CommitSale(ctx, sale)
	require.ErrorIs(t, err, domain.ErrInsufficientStock)

	var stockErr *domain.InsufficientStockError
	require.True(t, errors.As(err, &stockErr))
	assert.Equal(t, second.ID, stockErr.ProductID)
	assert.Equal(t, second.Name, stockErr.ProductName)

	p, err := a.GetProduct(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, p.StockQuantity, "first line must be rolled back")
}

func testCommitSaleUnknownProduct(t *testing.T, a *SQLAdapter) {
	ctx := context.Background()
	sale := saleFor(domain.CartLine{ProductID: 987654321, Quantity: 1, UnitPrice: decimal.NewFromInt(1)})
	_, err := a.CommitSale(ctx, sale)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func testConcurrentCheckout(t *testing.T, a *SQLAdapter) {
	ctx := context.Background()
	p := createTestProduct(t, a, "10.00", 10, 0)

	var (
		wg           sync.WaitGroup
		successCount atomic.Int32
		stockErrs    atomic.Int32
	)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := a.CommitSale(ctx, saleFor(domain.CartLine{ProductID: p.ID, Quantity: 6, UnitPrice: p.Price}))
			switch {
			case err == nil:
				successCount.Add(1)
			case errors.Is(err, domain.ErrInsufficientStock):
				stockErrs.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), successCount.Load())
	assert.Equal(t, int32(1), stockErrs.Load())

	got, err := a.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, got.StockQuantity)
}

func testDeleteDetachesInvoiceItems(t *testing.T, a *SQLAdapter) {
	ctx := context.Background()
	p := createTestProduct(t, a, "12999.00", 18, 5)

	invoice, err := a.CommitSale(ctx, saleFor(domain.CartLine{ProductID: p.ID, Quantity: 1, UnitPrice: p.Price}))
	require.NoError(t, err)

	deleted, err := a.DeleteProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, deleted.DetachedItems)
	assert.Equal(t, p.Name, deleted.Name)

	stored, err := a.GetInvoice(ctx, invoice.ID)
	require.NoError(t, err)
	require.Len(t, stored.Items, 1)
	assert.Nil(t, stored.Items[0].ProductID)
	assert.True(t, stored.Items[0].UnitPrice.Equal(decimal.RequireFromString("12999")))
	assert.True(t, stored.GrandTotal.Equal(invoice.GrandTotal))
}

func testHistoryAndAnalytics(t *testing.T, a *SQLAdapter) {
	ctx := context.Background()
	p := createTestProduct(t, a, "2.00", 1000, 0)

	from := time.Now().Add(-time.Minute)
	var last *domain.Invoice
	for i := 0; i < 3; i++ {
		inv, err := a.CommitSale(ctx, saleFor(domain.CartLine{ProductID: p.ID, Quantity: 100, UnitPrice: p.Price}))
		require.NoError(t, err)
		last = inv
	}

	history, err := a.RecentInvoices(ctx, 1)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, last.ID, history[0].ID)
	assert.Equal(t, 1, history[0].ItemsCount)

	totals, err := a.SaleTotals(ctx, from, time.Now().Add(time.Minute))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(totals), 3)

	top, err := a.TopProducts(ctx, 10000)
	require.NoError(t, err)
	var sold int
	for i, tp := range top {
		if i > 0 {
			assert.GreaterOrEqual(t, top[i-1].Quantity, tp.Quantity)
		}
		if tp.ProductID == p.ID {
			sold = tp.Quantity
		}
	}
	assert.Equal(t, 300, sold)
}

// runOutboxSuite needs an adapter that writes outbox rows.
func runOutboxSuite(t *testing.T, a *SQLAdapter) {
	ctx := context.Background()
	p := createTestProduct(t, a, "5.00", 10, 0)

	invoice, err := a.CommitSale(ctx, saleFor(domain.CartLine{ProductID: p.ID, Quantity: 2, UnitPrice: p.Price}))
	require.NoError(t, err)

	var found *domain.InvoiceCreatedEvent
	for {
		n, err := a.ProcessPending(ctx, 50, func(ev domain.OutboxEvent) error {
			var payload domain.InvoiceCreatedEvent
			if err := json.Unmarshal(ev.Payload, &payload); err != nil {
				return err
			}
			if payload.InvoiceID == invoice.ID {
				assert.Equal(t, invoice.InvoiceNumber, ev.Key)
				found = &payload
			}
			return nil
		})
		require.NoError(t, err)
		if n == 0 {
			break
		}
	}

	require.NotNil(t, found, "invoice event should have been relayed")
	assert.Equal(t, domain.EventInvoiceCreated, found.Type)
	assert.Equal(t, invoice.GrandTotal.StringFixed(2), found.GrandTotal)
	require.Len(t, found.Lines, 1)
	assert.Equal(t, p.ID, found.Lines[0].ProductID)

	// Sent events are never handed out again
	n, err := a.ProcessPending(ctx, 50, func(domain.OutboxEvent) error { return nil })
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	// A failing handler ends the batch; nothing after it is attempted or marked sent
	for i := 0; i < 2; i++ {
		_, err := a.CommitSale(ctx, saleFor(domain.CartLine{ProductID: p.ID, Quantity: 1, UnitPrice: p.Price}))
		require.NoError(t, err)
	}
	calls := 0
	n, err = a.ProcessPending(ctx, 50, func(domain.OutboxEvent) error {
		calls++
		return errors.New("broker unavailable")
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 1, calls)

	relayed := 0
	n, err = a.ProcessPending(ctx, 50, func(domain.OutboxEvent) error {
		relayed++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 2, relayed)
}
