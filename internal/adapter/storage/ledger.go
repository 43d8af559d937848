package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rl1809/retail-pos/internal/core/domain"
)

func (a *SQLAdapter) GetInvoice(ctx context.Context, id int64) (*domain.Invoice, error) {
	var inv domain.Invoice
	err := a.queryRow(ctx, a.db, `
		SELECT id, invoice_number, customer_name, subtotal, tax_amount, grand_total, created_at
		FROM invoices WHERE id = ?`, id,
	).Scan(&inv.ID, &inv.InvoiceNumber, &inv.CustomerName, &inv.Subtotal, &inv.TaxAmount, &inv.GrandTotal, &inv.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("invoice", id)
	}
	if err != nil {
		return nil, fmt.Errorf("query invoice: %w", err)
	}

	rows, err := a.query(ctx, a.db, `
		SELECT ii.id, ii.product_id, p.name, ii.quantity, ii.unit_price, ii.line_total
		FROM invoice_items ii
		LEFT JOIN products p ON p.id = ii.product_id
		WHERE ii.invoice_id = ?
		ORDER BY ii.id ASC`, id,
	)
	if err != nil {
		return nil, fmt.Errorf("query invoice items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			item      domain.InvoiceItem
			productID sql.NullInt64
			name      sql.NullString
		)
		if err := rows.Scan(&item.ID, &productID, &name, &item.Quantity, &item.UnitPrice, &item.LineTotal); err != nil {
			return nil, fmt.Errorf("scan invoice item: %w", err)
		}
		item.InvoiceID = inv.ID
		if productID.Valid {
			pid := productID.Int64
			item.ProductID = &pid
		}
		item.ProductName = name.String
		inv.Items = append(inv.Items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate invoice items: %w", err)
	}

	inv.CreatedAt = inv.CreatedAt.UTC()
	return &inv, nil
}

func (a *SQLAdapter) RecentInvoices(ctx context.Context, limit int) ([]domain.InvoiceSummary, error) {
	rows, err := a.query(ctx, a.db, `
		SELECT i.id, i.invoice_number, i.customer_name, i.grand_total, i.created_at, COUNT(ii.id)
		FROM invoices i
		LEFT JOIN invoice_items ii ON ii.invoice_id = i.id
		GROUP BY i.id, i.invoice_number, i.customer_name, i.grand_total, i.created_at
		ORDER BY i.created_at DESC, i.id DESC
		LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query purchase history: %w", err)
	}
	defer rows.Close()

	history := make([]domain.InvoiceSummary, 0, limit)
	for rows.Next() {
		var s domain.InvoiceSummary
		if err := rows.Scan(&s.ID, &s.InvoiceNumber, &s.CustomerName, &s.GrandTotal, &s.SaleDate, &s.ItemsCount); err != nil {
			return nil, fmt.Errorf("scan purchase history: %w", err)
		}
		s.SaleDate = s.SaleDate.UTC()
		history = append(history, s)
	}
	return history, rows.Err()
}
