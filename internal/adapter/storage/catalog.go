package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rl1809/retail-pos/internal/core/domain"
)

const productColumns = `id, sku, name, price, stock_quantity, min_stock_level, created_at`

func scanProduct(row interface{ Scan(...any) error }) (domain.Product, error) {
	var p domain.Product
	err := row.Scan(&p.ID, &p.SKU, &p.Name, &p.Price, &p.StockQuantity, &p.ReorderThreshold, &p.CreatedAt)
	return p, err
}

func (a *SQLAdapter) ListProducts(ctx context.Context, filter domain.ProductFilter) ([]domain.Product, error) {
	var (
		where []string
		args  []any
	)
	if filter.Search != "" {
		pattern := "%" + escapeLike(strings.ToLower(filter.Search)) + "%"
		where = append(where, "(LOWER(name) LIKE ? OR LOWER(sku) LIKE ?)")
		args = append(args, pattern, pattern)
	}
	if filter.LowStockOnly {
		where = append(where, "stock_quantity <= min_stock_level")
	}

	query := `SELECT ` + productColumns + ` FROM products`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY name ASC, id ASC`

	rows, err := a.query(ctx, a.db, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}
	defer rows.Close()

	products := make([]domain.Product, 0, 64)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate products: %w", err)
	}
	return products, nil
}

func (a *SQLAdapter) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	p, err := scanProduct(a.queryRow(ctx, a.db, `SELECT `+productColumns+` FROM products WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("product", id)
	}
	if err != nil {
		return nil, fmt.Errorf("query product: %w", err)
	}
	return &p, nil
}

func (a *SQLAdapter) CreateProduct(ctx context.Context, np domain.NewProduct) (*domain.Product, error) {
	createdAt := time.Now().UTC().Truncate(time.Microsecond)

	id, err := a.insert(ctx, a.db, `
		INSERT INTO products (name, sku, price, stock_quantity, min_stock_level, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		np.Name, np.SKU, np.Price, np.StockQuantity, np.ReorderThreshold, createdAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: sku %q already exists", domain.ErrDuplicateKey, np.SKU)
		}
		return nil, fmt.Errorf("insert product: %w", err)
	}

	return &domain.Product{
		ID:               id,
		SKU:              np.SKU,
		Name:             np.Name,
		Price:            np.Price,
		StockQuantity:    np.StockQuantity,
		ReorderThreshold: np.ReorderThreshold,
		CreatedAt:        createdAt,
	}, nil
}

func (a *SQLAdapter) UpdatePriceAndStock(ctx context.Context, id int64, price decimal.Decimal, stock int) (*domain.Product, error) {
	// MySQL reports zero affected rows when the values are unchanged, so
	// existence is decided by reading the row back.
	_, err := a.exec(ctx, a.db, `UPDATE products SET price = ?, stock_quantity = ? WHERE id = ?`, price, stock, id)
	if err != nil {
		return nil, fmt.Errorf("update product: %w", err)
	}
	return a.GetProduct(ctx, id)
}

func (a *SQLAdapter) DeleteProduct(ctx context.Context, id int64) (*domain.DeletedProduct, error) {
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, txError("begin tx", err)
	}
	defer tx.Rollback()

	var name string
	err = a.queryRow(ctx, tx, `SELECT name FROM products WHERE id = ? FOR UPDATE`, id).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("product", id)
	}
	if err != nil {
		return nil, txError("lock product", err)
	}

	var referenced int
	if err := a.queryRow(ctx, tx, `SELECT COUNT(*) FROM invoice_items WHERE product_id = ?`, id).Scan(&referenced); err != nil {
		return nil, txError("count invoice items", err)
	}

	if referenced > 0 {
		if _, err := a.exec(ctx, tx, `UPDATE invoice_items SET product_id = NULL WHERE product_id = ?`, id); err != nil {
			return nil, txError("detach invoice items", err)
		}
	}

	if _, err := a.exec(ctx, tx, `DELETE FROM products WHERE id = ?`, id); err != nil {
		return nil, txError("delete product", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, txError("commit", err)
	}

	return &domain.DeletedProduct{ID: id, Name: name, DetachedItems: referenced}, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
