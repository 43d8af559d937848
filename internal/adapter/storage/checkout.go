package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rl1809/retail-pos/internal/core/domain"
)

// CommitSale runs the checkout transaction. Stock is decremented with one
// conditional UPDATE per line so the sufficiency check and the write are a
// single atomic statement; a line that matches no row aborts the whole cart.
func (a *SQLAdapter) CommitSale(ctx context.Context, sale domain.Sale) (*domain.Invoice, error) {
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, txError("begin tx", err)
	}
	defer tx.Rollback()

	lines := make([]domain.CartLine, len(sale.Lines))
	copy(lines, sale.Lines)

	// Rows are locked in product id order so that two carts sharing
	// products cannot deadlock each other.
	for _, i := range lockOrder(lines) {
		line := lines[i]

		result, err := a.exec(ctx, tx, `
			UPDATE products
			SET stock_quantity = stock_quantity - ?
			WHERE id = ? AND stock_quantity >= ?`,
			line.Quantity, line.ProductID, line.Quantity,
		)
		if err != nil {
			return nil, txError("decrement stock", err)
		}

		rows, err := result.RowsAffected()
		if err != nil {
			return nil, txError("decrement stock", err)
		}
		if rows == 0 {
			return nil, a.stockFailure(ctx, tx, line.ProductID)
		}

		if sale.Reprice {
			var price decimal.Decimal
			if err := a.queryRow(ctx, tx, `SELECT price FROM products WHERE id = ?`, line.ProductID).Scan(&price); err != nil {
				return nil, txError("read price", err)
			}
			lines[i].UnitPrice = price
			lines[i].LineTotal = price.Mul(decimal.NewFromInt(int64(line.Quantity)))
		}
	}

	invoice := domain.Invoice{
		InvoiceNumber: sale.InvoiceNumber,
		CustomerName:  sale.CustomerName,
		Subtotal:      sale.Subtotal,
		TaxAmount:     sale.Tax,
		GrandTotal:    sale.GrandTotal,
		CreatedAt:     sale.CreatedAt.UTC().Truncate(time.Microsecond),
	}
	if sale.Reprice {
		invoice.Subtotal = decimal.Zero
		for _, line := range lines {
			invoice.Subtotal = invoice.Subtotal.Add(line.LineTotal)
		}
		invoice.TaxAmount = domain.TaxFor(invoice.Subtotal)
		invoice.GrandTotal = invoice.Subtotal.Add(invoice.TaxAmount)
	}

	invoice.ID, err = a.insert(ctx, tx, `
		INSERT INTO invoices (invoice_number, customer_name, subtotal, tax_amount, grand_total, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		invoice.InvoiceNumber, invoice.CustomerName, invoice.Subtotal, invoice.TaxAmount, invoice.GrandTotal, invoice.CreatedAt,
	)
	if err != nil {
		return nil, txError("insert invoice", err)
	}

	invoice.Items = make([]domain.InvoiceItem, 0, len(lines))
	for _, line := range lines {
		productID := line.ProductID
		itemID, err := a.insert(ctx, tx, `
			INSERT INTO invoice_items (invoice_id, product_id, quantity, unit_price, line_total)
			VALUES (?, ?, ?, ?, ?)`,
			invoice.ID, productID, line.Quantity, line.UnitPrice, line.LineTotal,
		)
		if err != nil {
			return nil, txError("insert invoice item", err)
		}
		invoice.Items = append(invoice.Items, domain.InvoiceItem{
			ID:        itemID,
			InvoiceID: invoice.ID,
			ProductID: &productID,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
			LineTotal: line.LineTotal,
		})
	}

	if a.outboxTopic != "" {
		if err := a.enqueueInvoiceCreated(ctx, tx, invoice); err != nil {
			return nil, txError("insert outbox event", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, txError("commit", err)
	}

	return &invoice, nil
}

// stockFailure explains why a conditional decrement matched no row.
func (a *SQLAdapter) stockFailure(ctx context.Context, tx *sql.Tx, productID int64) error {
	var name string
	err := a.queryRow(ctx, tx, `SELECT name FROM products WHERE id = ?`, productID).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return notFound("product", productID)
	}
	if err != nil {
		return txError("read product", err)
	}
	return &domain.InsufficientStockError{ProductID: productID, ProductName: name}
}

func (a *SQLAdapter) enqueueInvoiceCreated(ctx context.Context, tx *sql.Tx, invoice domain.Invoice) error {
	event := domain.InvoiceCreatedEvent{
		EventID:       uuid.NewString(),
		Type:          domain.EventInvoiceCreated,
		InvoiceID:     invoice.ID,
		InvoiceNumber: invoice.InvoiceNumber,
		GrandTotal:    invoice.GrandTotal.StringFixed(2),
		CreatedAt:     invoice.CreatedAt,
	}
	for _, item := range invoice.Items {
		event.Lines = append(event.Lines, domain.EventLine{ProductID: *item.ProductID, Quantity: item.Quantity})
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	_, err = a.exec(ctx, tx, `
		INSERT INTO outbox (event_id, topic, msg_key, payload, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		event.EventID, a.outboxTopic, invoice.InvoiceNumber, string(payload), invoice.CreatedAt,
	)
	return err
}

// lockOrder returns line indexes sorted by product id, stable for repeats.
func lockOrder(lines []domain.CartLine) []int {
	order := make([]int, len(lines))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(x, y int) bool {
		return lines[order[x]].ProductID < lines[order[y]].ProductID
	})
	return order
}
