package pipeline

import (
	"log"
	"math"

	"go-sales-etl/internal/model"
	"go-sales-etl/pkg/utils"
)

// profitMargin is the assumed margin used for the derived profit column.
const profitMargin = 0.30

// RejectedRecord is an input record the transform stage refused, with the
// defect kind that caused the rejection.
type RejectedRecord struct {
	Index  int              `json:"index"`
	Record model.RawRecord  `json:"record"`
	Kind   model.DefectKind `json:"kind"`
}

// repairFunc attempts to correct one defect on a copy of the record. The
// second return reports whether the defect was actually fixed; repairs
// are pure functions of the record's own fields.
type repairFunc func(rec model.RawRecord, f model.Finding) (model.RawRecord, bool)

var repairFuncs = map[model.DefectKind]repairFunc{
	model.DefectMissingField:      repairMissingField,
	model.DefectInconsistentTotal: repairTotalSales,
}

// Transform cleans and enriches a scored raw batch. Each finding is
// resolved through the repair policy: repairable defects are corrected
// in the output copy, everything else moves the record to the rejected
// set with the defect kind attached. The input batch is never mutated,
// and every input record lands in exactly one of the two outputs.
func Transform(raw model.RawBatch, report model.QualityReport, policy model.RepairPolicy) (model.Batch, []RejectedRecord) {
	clean := make(model.Batch, 0, len(raw))
	rejected := []RejectedRecord{}

	repairs := 0
	for i, original := range raw {
		rec := original.Clone()
		var rejectKind model.DefectKind

		for _, f := range report.FindingsFor(i) {
			decision := policy.Decide(f.Kind)
			if decision == model.AcceptDefect {
				continue
			}
			if decision == model.RepairDefect {
				if fn, ok := repairFuncs[f.Kind]; ok {
					if fixed, ok := fn(rec, f); ok {
						rec = fixed
						repairs++
						log.Printf("🔧 repaired %s on record %d (field %q)", f.Kind, i, f.Field)
						continue
					}
				}
				// no repair function could fix it
			}
			rejectKind = f.Kind
			break
		}

		if rejectKind != "" {
			rejected = append(rejected, RejectedRecord{Index: i, Record: original, Kind: rejectKind})
			continue
		}

		typed, kind, ok := buildRecord(rec)
		if !ok {
			rejected = append(rejected, RejectedRecord{Index: i, Record: original, Kind: kind})
			continue
		}
		clean = append(clean, enrich(typed))
	}

	if repairs > 0 {
		log.Printf("🔄 transform: %d repairs applied, %d records rejected", repairs, len(rejected))
	}
	return clean, rejected
}

func repairMissingField(rec model.RawRecord, f model.Finding) (model.RawRecord, bool) {
	switch f.Field {
	case model.FieldDiscount:
		rec[model.FieldDiscount] = 0.0
		return rec, true
	case model.FieldTotalSales:
		return repairTotalSales(rec, f)
	default:
		// dates, identifiers and quantities have no defensible default
		return rec, false
	}
}

func repairTotalSales(rec model.RawRecord, _ model.Finding) (model.RawRecord, bool) {
	qty, qok := utils.Numeric(rec[model.FieldQuantity])
	price, pok := utils.Numeric(rec[model.FieldUnitPrice])
	if !qok || !pok {
		return rec, false
	}
	discount, dok := utils.Numeric(rec[model.FieldDiscount])
	if !dok {
		discount = 0
	}
	rec[model.FieldTotalSales] = qty * price * (1 - discount)
	return rec, true
}

// buildRecord types a repaired raw record, returning the defect kind on
// failure so the rejection carries a classification.
func buildRecord(rec model.RawRecord) (model.Record, model.DefectKind, bool) {
	date, ok := utils.ParseDate(rec[model.FieldDate])
	if !ok {
		if isAbsent(rec[model.FieldDate]) {
			return model.Record{}, model.DefectMissingField, false
		}
		return model.Record{}, model.DefectTypeMismatch, false
	}

	productID, _ := rec[model.FieldProductID].(string)
	if productID == "" {
		return model.Record{}, model.DefectMissingField, false
	}

	qtyF, ok := utils.Numeric(rec[model.FieldQuantity])
	if !ok {
		return model.Record{}, missingOrMismatch(rec[model.FieldQuantity]), false
	}
	if qtyF < 0 {
		return model.Record{}, model.DefectNegativeQuantity, false
	}

	price, ok := utils.Numeric(rec[model.FieldUnitPrice])
	if !ok {
		return model.Record{}, missingOrMismatch(rec[model.FieldUnitPrice]), false
	}
	if price < 0 {
		return model.Record{}, model.DefectNegativePrice, false
	}

	// a missing discount defaults to zero
	discount, ok := utils.Numeric(rec[model.FieldDiscount])
	if !ok {
		discount = 0
	}
	if discount < 0 || discount > 1 {
		return model.Record{}, model.DefectDiscountRange, false
	}

	total, ok := utils.Numeric(rec[model.FieldTotalSales])
	if !ok {
		total = qtyF * price * (1 - discount)
	}

	typed, err := model.NewRecord(date, productID, int(math.Round(qtyF)), price, discount, total)
	if err != nil {
		return model.Record{}, model.DefectTypeMismatch, false
	}
	return typed, "", true
}

// enrich derives the declared enrichment columns; all of them are
// deterministic functions of the original fields.
func enrich(r model.Record) model.Record {
	r.TotalAmount = float64(r.Quantity) * r.UnitPrice
	r.DiscountedAmount = r.TotalAmount * (1 - r.Discount)
	r.Profit = r.DiscountedAmount * profitMargin
	return r
}

func isAbsent(v interface{}) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && s == ""
}

func missingOrMismatch(v interface{}) model.DefectKind {
	if isAbsent(v) {
		return model.DefectMissingField
	}
	return model.DefectTypeMismatch
}
