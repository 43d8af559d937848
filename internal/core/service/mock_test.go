package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rl1809/retail-pos/internal/core/domain"
)

// Mock store implementing both the catalog and the ledger repositories.
// A single mutex makes every CommitSale behave like a serialized transaction.
type mockStore struct {
	mu            sync.Mutex
	products      map[int64]*domain.Product
	invoices      []domain.Invoice
	nextProductID int64
	nextInvoiceID int64
	commitErr     error
	onCommit      func()
	totals        []domain.SaleTotal
	totalsFrom    time.Time
	totalsTo      time.Time
	top           []domain.TopProduct
	historyLimit  int
}

func newMockStore() *mockStore {
	return &mockStore{products: make(map[int64]*domain.Product)}
}

func (m *mockStore) addProduct(sku, name, price string, stock int) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextProductID++
	m.products[m.nextProductID] = &domain.Product{
		ID:               m.nextProductID,
		SKU:              sku,
		Name:             name,
		Price:            decimal.RequireFromString(price),
		StockQuantity:    stock,
		ReorderThreshold: domain.DefaultReorderThreshold,
	}
	return m.nextProductID
}

func (m *mockStore) stock(id int64) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.products[id].StockQuantity
}

func (m *mockStore) invoiceCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.invoices)
}

func (m *mockStore) ListProducts(ctx context.Context, filter domain.ProductFilter) ([]domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Product
	for _, p := range m.products {
		if filter.LowStockOnly && !p.LowStock() {
			continue
		}
		q := strings.ToLower(filter.Search)
		if q != "" && !strings.Contains(strings.ToLower(p.Name), q) && !strings.Contains(strings.ToLower(p.SKU), q) {
			continue
		}
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *mockStore) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[id]
	if !ok {
		return nil, fmt.Errorf("%w: product %d", domain.ErrNotFound, id)
	}
	cp := *p
	return &cp, nil
}

func (m *mockStore) CreateProduct(ctx context.Context, np domain.NewProduct) (*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.products {
		if p.SKU == np.SKU {
			return nil, fmt.Errorf("%w: sku %s", domain.ErrDuplicateKey, np.SKU)
		}
	}
	m.nextProductID++
	p := &domain.Product{
		ID:               m.nextProductID,
		SKU:              np.SKU,
		Name:             np.Name,
		Price:            np.Price,
		StockQuantity:    np.StockQuantity,
		ReorderThreshold: np.ReorderThreshold,
	}
	m.products[p.ID] = p
	cp := *p
	return &cp, nil
}

func (m *mockStore) UpdatePriceAndStock(ctx context.Context, id int64, price decimal.Decimal, stock int) (*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[id]
	if !ok {
		return nil, fmt.Errorf("%w: product %d", domain.ErrNotFound, id)
	}
	p.Price = price
	p.StockQuantity = stock
	cp := *p
	return &cp, nil
}

func (m *mockStore) DeleteProduct(ctx context.Context, id int64) (*domain.DeletedProduct, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[id]
	if !ok {
		return nil, fmt.Errorf("%w: product %d", domain.ErrNotFound, id)
	}
	detached := 0
	for i := range m.invoices {
		for j := range m.invoices[i].Items {
			item := &m.invoices[i].Items[j]
			if item.ProductID != nil && *item.ProductID == id {
				item.ProductID = nil
				detached++
			}
		}
	}
	delete(m.products, id)
	return &domain.DeletedProduct{ID: id, Name: p.Name, DetachedItems: detached}, nil
}

func (m *mockStore) CommitSale(ctx context.Context, sale domain.Sale) (*domain.Invoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.onCommit != nil {
		m.onCommit()
	}
	if m.commitErr != nil {
		return nil, m.commitErr
	}

	need := make(map[int64]int)
	for _, line := range sale.Lines {
		p, ok := m.products[line.ProductID]
		if !ok {
			return nil, fmt.Errorf("%w: product %d", domain.ErrNotFound, line.ProductID)
		}
		need[line.ProductID] += line.Quantity
		if p.StockQuantity < need[line.ProductID] {
			return nil, &domain.InsufficientStockError{ProductID: p.ID, ProductName: p.Name}
		}
	}

	m.nextInvoiceID++
	inv := domain.Invoice{
		ID:            m.nextInvoiceID,
		InvoiceNumber: sale.InvoiceNumber,
		CustomerName:  sale.CustomerName,
		Subtotal:      sale.Subtotal,
		TaxAmount:     sale.Tax,
		GrandTotal:    sale.GrandTotal,
		CreatedAt:     sale.CreatedAt,
	}
	if sale.Reprice {
		inv.Subtotal = decimal.Zero
	}
	for _, line := range sale.Lines {
		p := m.products[line.ProductID]
		p.StockQuantity -= line.Quantity
		if sale.Reprice {
			line.UnitPrice = p.Price
			line.LineTotal = p.Price.Mul(decimal.NewFromInt(int64(line.Quantity)))
			inv.Subtotal = inv.Subtotal.Add(line.LineTotal)
		}
		pid := line.ProductID
		inv.Items = append(inv.Items, domain.InvoiceItem{
			InvoiceID: inv.ID,
			ProductID: &pid,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
			LineTotal: line.LineTotal,
		})
	}
	if sale.Reprice {
		inv.TaxAmount = domain.TaxFor(inv.Subtotal)
		inv.GrandTotal = inv.Subtotal.Add(inv.TaxAmount)
	}
	m.invoices = append(m.invoices, inv)
	cp := inv
	return &cp, nil
}

func (m *mockStore) GetInvoice(ctx context.Context, id int64) (*domain.Invoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, inv := range m.invoices {
		if inv.ID == id {
			cp := inv
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("%w: invoice %d", domain.ErrNotFound, id)
}

func (m *mockStore) RecentInvoices(ctx context.Context, limit int) ([]domain.InvoiceSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.historyLimit = limit
	var out []domain.InvoiceSummary
	for i := len(m.invoices) - 1; i >= 0 && len(out) < limit; i-- {
		inv := m.invoices[i]
		out = append(out, domain.InvoiceSummary{
			ID:            inv.ID,
			InvoiceNumber: inv.InvoiceNumber,
			GrandTotal:    inv.GrandTotal,
			ItemsCount:    len(inv.Items),
		})
	}
	return out, nil
}

func (m *mockStore) SaleTotals(ctx context.Context, from, to time.Time) ([]domain.SaleTotal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.totalsFrom, m.totalsTo = from, to
	var out []domain.SaleTotal
	for _, t := range m.totals {
		if !t.CreatedAt.Before(from) && t.CreatedAt.Before(to) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *mockStore) TopProducts(ctx context.Context, limit int) ([]domain.TopProduct, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.top) > limit {
		return m.top[:limit], nil
	}
	return m.top, nil
}

// Mock IdempotencyRepository
type mockIdempotency struct {
	mu       sync.Mutex
	keys     map[string]int64
	released []string
}

func newMockIdempotency() *mockIdempotency {
	return &mockIdempotency{keys: make(map[string]int64)}
}

func (m *mockIdempotency) Reserve(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.keys[key]; ok {
		return false, nil
	}
	m.keys[key] = 0
	return true, nil
}

func (m *mockIdempotency) Complete(ctx context.Context, key string, invoiceID int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keys[key] = invoiceID
	return nil
}

func (m *mockIdempotency) Lookup(ctx context.Context, key string) (int64, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.keys[key]
	return id, ok && id > 0, nil
}

func (m *mockIdempotency) Release(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.keys, key)
	m.released = append(m.released, key)
	return nil
}
