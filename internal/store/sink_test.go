package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"go-sales-etl/internal/model"
)

func newTestSink(t *testing.T) *SQLSink {
	t.Helper()
	sink, err := NewSQLSink("sqlite3", filepath.Join(t.TempDir(), "sales.db"), "sales")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { sink.Close() })
	if err := sink.EnsureSchema(context.Background()); err != nil {
		t.Fatal(err)
	}
	return sink
}

func sampleRecords(t *testing.T, n int) []model.Record {
	t.Helper()
	date := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]model.Record, 0, n)
	for i := 0; i < n; i++ {
		rec, err := model.NewRecord(date.AddDate(0, 0, i), "PROD001", 10+i, 25.99, 0.1, float64(10+i)*25.99*0.9)
		if err != nil {
			t.Fatal(err)
		}
		rec.TotalAmount = float64(rec.Quantity) * rec.UnitPrice
		rec.DiscountedAmount = rec.TotalAmount * (1 - rec.Discount)
		rec.Profit = rec.DiscountedAmount * 0.30
		out = append(out, rec)
	}
	return out
}

func countRows(t *testing.T, sink *SQLSink) int {
	t.Helper()
	var n int
	if err := sink.db.QueryRow(`SELECT COUNT(*) FROM sales`).Scan(&n); err != nil {
		t.Fatal(err)
	}
	return n
}

func TestSQLSinkUpsertInsertsRows(t *testing.T) {
	sink := newTestSink(t)
	records := sampleRecords(t, 3)

	if err := sink.Upsert(context.Background(), records); err != nil {
		t.Fatal(err)
	}
	if n := countRows(t, sink); n != 3 {
		t.Errorf("rows = %d, want 3", n)
	}
}

func TestSQLSinkUpsertIsIdempotent(t *testing.T) {
	sink := newTestSink(t)
	records := sampleRecords(t, 3)

	if err := sink.Upsert(context.Background(), records); err != nil {
		t.Fatal(err)
	}
	if err := sink.Upsert(context.Background(), records); err != nil {
		t.Fatalf("retried chunk must not fail: %v", err)
	}
	if n := countRows(t, sink); n != 3 {
		t.Errorf("retried chunk double-counted: rows = %d, want 3", n)
	}
}

func TestSQLSinkUpsertUpdatesConflictingKey(t *testing.T) {
	sink := newTestSink(t)
	records := sampleRecords(t, 1)

	if err := sink.Upsert(context.Background(), records); err != nil {
		t.Fatal(err)
	}
	records[0].Quantity = 99
	records[0].TotalSales = 99 * 25.99 * 0.9
	if err := sink.Upsert(context.Background(), records); err != nil {
		t.Fatal(err)
	}

	var qty int
	err := sink.db.QueryRow(`SELECT quantity FROM sales WHERE date = ? AND product_id = ?`,
		records[0].Date.Format(model.DateLayout), records[0].ProductID).Scan(&qty)
	if err != nil {
		t.Fatal(err)
	}
	if qty != 99 {
		t.Errorf("quantity = %d, want the updated 99", qty)
	}
	if n := countRows(t, sink); n != 1 {
		t.Errorf("rows = %d, want 1", n)
	}
}

func TestSQLSinkUpsertEmptyChunk(t *testing.T) {
	sink := newTestSink(t)
	if err := sink.Upsert(context.Background(), nil); err != nil {
		t.Errorf("empty chunk should be a no-op, got %v", err)
	}
}

func TestSQLSinkCancelledContext(t *testing.T) {
	sink := newTestSink(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := sink.Upsert(ctx, sampleRecords(t, 1))
	if err == nil {
		t.Fatal("expected error on a cancelled context")
	}
	if kind, _ := model.KindOf(err); kind != model.ErrCancellationRequested {
		t.Errorf("kind = %v, want cancellation_requested", kind)
	}
}

func TestSQLSinkClassifyUnknownErrorIsTransient(t *testing.T) {
	sink := newTestSink(t)
	got := sink.classify(errForTest{})
	if kind, _ := model.KindOf(got); kind != model.ErrSinkTransient {
		t.Errorf("kind = %v, want sink_transient for unrecognized driver errors", kind)
	}
}

type errForTest struct{}

func (errForTest) Error() string { return "driver hiccup" }

func TestSQLSinkPlaceholders(t *testing.T) {
	sqlite := &SQLSink{driver: "sqlite3"}
	if got := sqlite.placeholders(3); got != "?, ?, ?" {
		t.Errorf("sqlite placeholders = %q", got)
	}
	postgres := &SQLSink{driver: "postgres"}
	if got := postgres.placeholders(3); got != "$1, $2, $3" {
		t.Errorf("postgres placeholders = %q", got)
	}
}
