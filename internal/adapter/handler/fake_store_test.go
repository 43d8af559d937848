package handler

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

// fakeStore is an in-memory catalog and ledger for exercising the handlers
// through the real services.
type fakeStore struct {
	mu         sync.Mutex
	products   map[int64]*domain.Product
	invoices   map[int64]*domain.Invoice
	nextID     int64
	pingErr    error
	invoiceErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		products: make(map[int64]*domain.Product),
		invoices: make(map[int64]*domain.Invoice),
	}
}

func (s *fakeStore) Ping(ctx context.Context) error {
	return s.pingErr
}

func (s *fakeStore) seed(name, sku, price string, stock, threshold int) *domain.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	p := &domain.Product{
		ID: s.nextID, Name: name, SKU: sku, Price: decimal.RequireFromString(price),
		StockQuantity: stock, ReorderThreshold: threshold, CreatedAt: time.Now().UTC(),
	}
	s.products[p.ID] = p
	return p
}

func (s *fakeStore) stock(id int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.products[id].StockQuantity
}

func (s *fakeStore) ListProducts(ctx context.Context, filter domain.ProductFilter) ([]domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Product
	q := strings.ToLower(filter.Search)
	for _, p := range s.products {
		if q != "" && !strings.Contains(strings.ToLower(p.Name), q) && !strings.Contains(strings.ToLower(p.SKU), q) {
			continue
		}
		if filter.LowStockOnly && !p.LowStock() {
			continue
		}
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *fakeStore) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return nil, fmt.Errorf("%w: product %d", domain.ErrNotFound, id)
	}
	cp := *p
	return &cp, nil
}

func (s *fakeStore) CreateProduct(ctx context.Context, np domain.NewProduct) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.products {
		if p.SKU == np.SKU {
			return nil, fmt.Errorf("%w: sku %q already exists", domain.ErrDuplicateKey, np.SKU)
		}
	}
	s.nextID++
	p := &domain.Product{
		ID: s.nextID, Name: np.Name, SKU: np.SKU, Price: np.Price,
		StockQuantity: np.StockQuantity, ReorderThreshold: np.ReorderThreshold, CreatedAt: time.Now().UTC(),
	}
	s.products[p.ID] = p
	cp := *p
	return &cp, nil
}

func (s *fakeStore) UpdatePriceAndStock(ctx context.Context, id int64, price decimal.Decimal, stock int) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return nil, fmt.Errorf("%w: product %d", domain.ErrNotFound, id)
	}
	p.Price, p.StockQuantity = price, stock
	cp := *p
	return &cp, nil
}

func (s *fakeStore) DeleteProduct(ctx context.Context, id int64) (*domain.DeletedProduct, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return nil, fmt.Errorf("%w: product %d", domain.ErrNotFound, id)
	}
	detached := 0
	for _, inv := range s.invoices {
		for i := range inv.Items {
			if inv.Items[i].ProductID != nil && *inv.Items[i].ProductID == id {
				inv.Items[i].ProductID = nil
				detached++
			}
		}
	}
	delete(s.products, id)
	return &domain.DeletedProduct{ID: id, Name: p.Name, DetachedItems: detached}, nil
}

func (s *fakeStore) CommitSale(ctx context.Context, sale domain.Sale) (*domain.Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, line := range sale.Lines {
		p, ok := s.products[line.ProductID]
		if !ok {
			return nil, fmt.Errorf("%w: product %d", domain.ErrNotFound, line.ProductID)
		}
		if p.StockQuantity < line.Quantity {
			return nil, &domain.InsufficientStockError{ProductID: p.ID, ProductName: p.Name}
		}
	}

	s.nextID++
	inv := &domain.Invoice{
		ID: s.nextID, InvoiceNumber: sale.InvoiceNumber, CustomerName: sale.CustomerName,
		Subtotal: sale.Subtotal, TaxAmount: sale.Tax, GrandTotal: sale.GrandTotal, CreatedAt: sale.CreatedAt,
	}
	for i, line := range sale.Lines {
		s.products[line.ProductID].StockQuantity -= line.Quantity
		pid := line.ProductID
		inv.Items = append(inv.Items, domain.InvoiceItem{
			ID: int64(i + 1), InvoiceID: inv.ID, ProductID: &pid, ProductName: s.products[pid].Name,
			Quantity: line.Quantity, UnitPrice: line.UnitPrice, LineTotal: line.LineTotal,
		})
	}
	s.invoices[inv.ID] = inv
	cp := *inv
	return &cp, nil
}

func (s *fakeStore) GetInvoice(ctx context.Context, id int64) (*domain.Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.invoiceErr != nil {
		return nil, s.invoiceErr
	}
	inv, ok := s.invoices[id]
	if !ok {
		return nil, fmt.Errorf("%w: invoice %d", domain.ErrNotFound, id)
	}
	cp := *inv
	return &cp, nil
}

func (s *fakeStore) RecentInvoices(ctx context.Context, limit int) ([]domain.InvoiceSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.InvoiceSummary
	for _, inv := range s.invoices {
		out = append(out, domain.InvoiceSummary{
			ID: inv.ID, InvoiceNumber: inv.InvoiceNumber, CustomerName: inv.CustomerName,
			GrandTotal: inv.GrandTotal, SaleDate: inv.CreatedAt, ItemsCount: len(inv.Items),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *fakeStore) SaleTotals(ctx context.Context, from, to time.Time) ([]domain.SaleTotal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.SaleTotal
	for _, inv := range s.invoices {
		if !inv.CreatedAt.Before(from) && inv.CreatedAt.Before(to) {
			out = append(out, domain.SaleTotal{CreatedAt: inv.CreatedAt, GrandTotal: inv.GrandTotal})
		}
	}
	return out, nil
}

func (s *fakeStore) TopProducts(ctx context.Context, limit int) ([]domain.TopProduct, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sold := map[int64]int{}
	for _, inv := range s.invoices {
		for _, item := range inv.Items {
			if item.ProductID != nil {
				sold[*item.ProductID] += item.Quantity
			}
		}
	}
	var out []domain.TopProduct
	for id, qty := range sold {
		if p, ok := s.products[id]; ok {
			out = append(out, domain.TopProduct{ProductID: id, Name: p.Name, Quantity: qty})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Quantity != out[j].Quantity {
			return out[i].Quantity > out[j].Quantity
		}
		return out[i].ProductID < out[j].ProductID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type fakeIdempotency struct {
	mu   sync.Mutex
	keys map[string]int64
}

func newFakeIdempotency() *fakeIdempotency {
	return &fakeIdempotency{keys: make(map[string]int64)}
}

func (f *fakeIdempotency) Reserve(ctx context.Context, key string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.keys[key]; ok {
		return false, nil
	}
	f.keys[key] = 0
	return true, nil
}

func (f *fakeIdempotency) Complete(ctx context.Context, key string, invoiceID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.keys[key] = invoiceID
	return nil
}

func (f *fakeIdempotency) Lookup(ctx context.Context, key string) (int64, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.keys[key]
	return id, ok && id != 0, nil
}

func (f *fakeIdempotency) Release(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.keys, key)
	return nil
}
