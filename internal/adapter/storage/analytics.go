package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/rl1809/retail-pos/internal/core/domain"
)

// SaleTotals returns invoices created in [from, to). Week bucketing happens
// in the service so the time zone is applied in one place.
func (a *SQLAdapter) SaleTotals(ctx context.Context, from, to time.Time) ([]domain.SaleTotal, error) {
	rows, err := a.query(ctx, a.db, `
		SELECT created_at, grand_total
		FROM invoices
		WHERE created_at >= ? AND created_at < ?
		ORDER BY created_at ASC`,
		from.UTC(), to.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("query sale totals: %w", err)
	}
	defer rows.Close()

	var totals []domain.SaleTotal
	for rows.Next() {
		var t domain.SaleTotal
		if err := rows.Scan(&t.CreatedAt, &t.GrandTotal); err != nil {
			return nil, fmt.Errorf("scan sale total: %w", err)
		}
		totals = append(totals, t)
	}
	return totals, rows.Err()
}

// TopProducts ranks still-existing products by units sold across all
// invoices. Ties are broken by product id.
func (a *SQLAdapter) TopProducts(ctx context.Context, limit int) ([]domain.TopProduct, error) {
	rows, err := a.query(ctx, a.db, `
		SELECT p.id, p.name, SUM(ii.quantity) AS quantity
		FROM invoice_items ii
		JOIN products p ON p.id = ii.product_id
		GROUP BY p.id, p.name
		ORDER BY quantity DESC, p.id ASC
		LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query top products: %w", err)
	}
	defer rows.Close()

	top := make([]domain.TopProduct, 0, limit)
	for rows.Next() {
		var p domain.TopProduct
		if err := rows.Scan(&p.ProductID, &p.Name, &p.Quantity); err != nil {
			return nil, fmt.Errorf("scan top product: %w", err)
		}
		top = append(top, p)
	}
	return top, rows.Err()
}
