package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
	sqlite3 "github.com/mattn/go-sqlite3"

	"go-sales-etl/internal/model"
)

// SQLSink persists sales records through database/sql with an idempotent
// upsert keyed on (date, product_id): the same chunk submitted twice
// converges to the same table state. Supported drivers are sqlite3 and
// postgres.
type SQLSink struct {
	db     *sql.DB
	driver string
	table  string
}

// NewSQLSink opens a sink on the given driver/DSN. table defaults to
// "sales".
func NewSQLSink(driver, dsn, table string) (*SQLSink, error) {
	if table == "" {
		table = "sales"
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, model.NewError(model.ErrSinkTransient, "load", fmt.Errorf("open sink: %w", err))
	}
	if driver == "sqlite3" {
		// sqlite cannot take concurrent writers; serialize the pool so
		// parallel chunk upserts queue instead of tripping SQLITE_BUSY
		db.SetMaxOpenConns(1)
	}
	return &SQLSink{db: db, driver: driver, table: table}, nil
}

// Close releases the underlying database handle.
func (s *SQLSink) Close() error { return s.db.Close() }

// EnsureSchema creates the sales table if needed. The DDL is accepted by
// both supported drivers; real schema migration is out of scope.
func (s *SQLSink) EnsureSchema(ctx context.Context) error {
	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		date TEXT NOT NULL,
		product_id TEXT NOT NULL,
		quantity INTEGER NOT NULL,
		unit_price DOUBLE PRECISION NOT NULL,
		discount DOUBLE PRECISION NOT NULL,
		total_sales DOUBLE PRECISION NOT NULL,
		total_amount DOUBLE PRECISION NOT NULL,
		discounted_amount DOUBLE PRECISION NOT NULL,
		profit DOUBLE PRECISION NOT NULL,
		loaded_at TIMESTAMP NOT NULL,
		PRIMARY KEY (date, product_id)
	)`, s.table)
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return s.classify(err)
	}
	return nil
}

// Upsert writes one chunk inside a transaction so a retried chunk is
// all-or-nothing.
func (s *SQLSink) Upsert(ctx context.Context, records []model.Record) error {
	if len(records) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return s.classify(err)
	}

	query := fmt.Sprintf(`INSERT INTO %s
		(date, product_id, quantity, unit_price, discount, total_sales, total_amount, discounted_amount, profit, loaded_at)
		VALUES (%s)
		ON CONFLICT (date, product_id) DO UPDATE SET
			quantity = excluded.quantity,
			unit_price = excluded.unit_price,
			discount = excluded.discount,
			total_sales = excluded.total_sales,
			total_amount = excluded.total_amount,
			discounted_amount = excluded.discounted_amount,
			profit = excluded.profit,
			loaded_at = excluded.loaded_at`,
		s.table, s.placeholders(10))

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		tx.Rollback()
		return s.classify(err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, rec := range records {
		_, err := stmt.ExecContext(ctx,
			rec.Date.Format(model.DateLayout),
			rec.ProductID,
			rec.Quantity,
			rec.UnitPrice,
			rec.Discount,
			rec.TotalSales,
			rec.TotalAmount,
			rec.DiscountedAmount,
			rec.Profit,
			now)
		if err != nil {
			tx.Rollback()
			return s.classify(err)
		}
	}
	if err := tx.Commit(); err != nil {
		return s.classify(err)
	}
	return nil
}

// placeholders renders the driver's parameter markers: ?,?,… for
// sqlite3, $1,$2,… for postgres.
func (s *SQLSink) placeholders(n int) string {
	parts := make([]string, n)
	for i := range parts {
		if s.driver == "postgres" {
			parts[i] = fmt.Sprintf("$%d", i+1)
		} else {
			parts[i] = "?"
		}
	}
	return strings.Join(parts, ", ")
}

// classify maps driver errors onto the closed error-kind set: data and
// constraint problems are rejections (non-retryable), connectivity
// problems are transient.
func (s *SQLSink) classify(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return model.NewError(model.ErrCancellationRequested, "load", err)
	}

	var serr sqlite3.Error
	if errors.As(err, &serr) {
		switch serr.Code {
		case sqlite3.ErrConstraint, sqlite3.ErrMismatch, sqlite3.ErrTooBig, sqlite3.ErrRange:
			return model.NewError(model.ErrSinkRejected, "load", err)
		}
		return model.NewError(model.ErrSinkTransient, "load", err)
	}

	var perr *pq.Error
	if errors.As(err, &perr) {
		switch perr.Code.Class() {
		case "22", "23", "42": // data, integrity, syntax
			return model.NewError(model.ErrSinkRejected, "load", err)
		}
		return model.NewError(model.ErrSinkTransient, "load", err)
	}

	return model.NewError(model.ErrSinkTransient, "load", err)
}
