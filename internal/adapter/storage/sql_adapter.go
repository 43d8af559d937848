package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/rl1809/retail-pos/internal/core/domain"
)

const (
	DriverMySQL    = "mysql"
	DriverPostgres = "pgx"
)

type PoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Open connects to the configured database and verifies it with a ping.
// MySQL DSNs are forced to parse DATETIME columns as UTC time.Time values.
func Open(ctx context.Context, driver, dsn string, pool PoolConfig) (*sql.DB, error) {
	switch driver {
	case DriverMySQL:
		cfg, err := mysql.ParseDSN(dsn)
		if err != nil {
			return nil, fmt.Errorf("parse mysql dsn: %w", err)
		}
		cfg.ParseTime = true
		cfg.Loc = time.UTC
		dsn = cfg.FormatDSN()
	case DriverPostgres:
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	db.SetMaxOpenConns(pool.MaxOpenConns)
	db.SetMaxIdleConns(pool.MaxIdleConns)
	db.SetConnMaxLifetime(pool.ConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}
	return db, nil
}

// SQLAdapter implements the catalog, ledger and outbox repositories on top
// of MySQL or PostgreSQL. Queries are written with '?' placeholders and
// rebound for PostgreSQL.
type SQLAdapter struct {
	db          *sql.DB
	postgres    bool
	outboxTopic string
}

func NewSQLAdapter(db *sql.DB, driver, outboxTopic string) *SQLAdapter {
	return &SQLAdapter{
		db:          db,
		postgres:    driver == DriverPostgres,
		outboxTopic: outboxTopic,
	}
}

func (a *SQLAdapter) Ping(ctx context.Context) error {
	return a.db.PingContext(ctx)
}

type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (a *SQLAdapter) exec(ctx context.Context, q queryer, query string, args ...any) (sql.Result, error) {
	return q.ExecContext(ctx, a.rebind(query), args...)
}

func (a *SQLAdapter) query(ctx context.Context, q queryer, query string, args ...any) (*sql.Rows, error) {
	return q.QueryContext(ctx, a.rebind(query), args...)
}

func (a *SQLAdapter) queryRow(ctx context.Context, q queryer, query string, args ...any) *sql.Row {
	return q.QueryRowContext(ctx, a.rebind(query), args...)
}

// insert runs an INSERT and returns the generated id.
func (a *SQLAdapter) insert(ctx context.Context, q queryer, query string, args ...any) (int64, error) {
	if a.postgres {
		var id int64
		err := a.queryRow(ctx, q, query+" RETURNING id", args...).Scan(&id)
		return id, err
	}

	result, err := a.exec(ctx, q, query, args...)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

func (a *SQLAdapter) rebind(query string) string {
	if !a.postgres {
		return query
	}
	return rebindDollar(query)
}

func rebindDollar(query string) string {
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func isUniqueViolation(err error) bool {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == 1062
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

// txError marks a failure inside a multi-step transaction.
func txError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", domain.ErrTransaction, op, err)
}

func notFound(kind string, id int64) error {
	return fmt.Errorf("%w: %s %d", domain.ErrNotFound, kind, id)
}
