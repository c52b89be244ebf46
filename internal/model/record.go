package model

import (
	"fmt"
	"math"
	"time"
)

// Canonical field names for a sales record as they appear in raw sources.
const (
	FieldDate       = "date"
	FieldProductID  = "product_id"
	FieldQuantity   = "quantity"
	FieldUnitPrice  = "unit_price"
	FieldDiscount   = "discount"
	FieldTotalSales = "total_sales"
)

// DateLayout is the normalized date format records carry after transform.
const DateLayout = "2006-01-02"

// RawRecord is a schema-agnostic record as extracted from a source,
// before typing. Missing cells are absent keys (or nil values).
type RawRecord map[string]interface{}

// RawBatch is an ordered sequence of raw records sharing one run.
// Stages never mutate a batch they received; each stage boundary
// produces a new one.
type RawBatch []RawRecord

// Clone returns a deep copy of the record.
func (r RawRecord) Clone() RawRecord {
	out := make(RawRecord, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Record is one validated sales transaction.
type Record struct {
	Date       time.Time `json:"date"`
	ProductID  string    `json:"product_id"`
	Quantity   int       `json:"quantity"`
	UnitPrice  float64   `json:"unit_price"`
	Discount   float64   `json:"discount"`
	TotalSales float64   `json:"total_sales"`

	// Enrichment fields, derived deterministically during transform.
	TotalAmount      float64 `json:"total_amount"`
	DiscountedAmount float64 `json:"discounted_amount"`
	Profit           float64 `json:"profit"`
}

// Batch is an ordered, immutable sequence of validated records.
type Batch []Record

// NewRecord constructs a validated Record, failing fast on malformed
// input instead of deferring to later stages.
func NewRecord(date time.Time, productID string, quantity int, unitPrice, discount, totalSales float64) (Record, error) {
	switch {
	case date.IsZero():
		return Record{}, NewError(ErrValidationDefect, "", fmt.Errorf("missing date"))
	case productID == "":
		return Record{}, NewError(ErrValidationDefect, "", fmt.Errorf("missing product_id"))
	case quantity < 0:
		return Record{}, NewError(ErrValidationDefect, "", fmt.Errorf("negative quantity: %d", quantity))
	case unitPrice < 0:
		return Record{}, NewError(ErrValidationDefect, "", fmt.Errorf("negative unit_price: %v", unitPrice))
	case discount < 0 || discount > 1:
		return Record{}, NewError(ErrValidationDefect, "", fmt.Errorf("discount out of range: %v", discount))
	case math.IsNaN(totalSales) || math.IsInf(totalSales, 0):
		return Record{}, NewError(ErrValidationDefect, "", fmt.Errorf("invalid total_sales"))
	}
	return Record{
		Date:       date,
		ProductID:  productID,
		Quantity:   quantity,
		UnitPrice:  unitPrice,
		Discount:   discount,
		TotalSales: totalSales,
	}, nil
}

// Key returns the (date, product_id) upsert key the sink deduplicates on.
func (r Record) Key() string {
	return r.Date.Format(DateLayout) + "|" + r.ProductID
}

// Source describes where a batch is extracted from.
type Source struct {
	Type string `json:"type" yaml:"type"` // csv, json, api
	URL  string `json:"url" yaml:"url"`   // file path or endpoint
}
