package quality

import (
	"encoding/json"
	"math"
	"reflect"
	"testing"
	"time"

	"go-sales-etl/internal/model"
)

func testRules() model.QualityRules {
	rules := model.DefaultQualityRules()
	rules.AsOf = time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)
	return rules
}

func cleanRecord() model.RawRecord {
	return model.RawRecord{
		"date":        "2024-01-01",
		"product_id":  "PROD001",
		"quantity":    10.0,
		"unit_price":  25.99,
		"discount":    0.1,
		"total_sales": 233.91,
	}
}

func TestScoreCleanRecordIsPerfect(t *testing.T) {
	report := Score(model.RawBatch{cleanRecord()}, testRules())

	for name, got := range map[string]float64{
		"completeness": report.Completeness,
		"accuracy":     report.Accuracy,
		"consistency":  report.Consistency,
		"validity":     report.Validity,
		"timeliness":   report.Timeliness,
		"overall":      report.OverallScore,
	} {
		if got != 100 {
			t.Errorf("%s = %v, want 100", name, got)
		}
	}
	if len(report.Findings) != 0 {
		t.Errorf("clean record should produce no findings, got %v", report.Findings)
	}
	if report.RecordCount != 1 {
		t.Errorf("record count = %d, want 1", report.RecordCount)
	}
}

func TestScoreInconsistentTotal(t *testing.T) {
	rec := cleanRecord()
	rec["total_sales"] = 999.99

	report := Score(model.RawBatch{rec}, testRules())

	if report.Consistency != 0 {
		t.Errorf("consistency = %v, want 0", report.Consistency)
	}
	if report.Completeness != 100 || report.Accuracy != 100 || report.Validity != 100 || report.Timeliness != 100 {
		t.Errorf("only consistency should drop: %+v", report)
	}
	if report.OverallScore != 80 {
		t.Errorf("overall = %v, want 80 with equal weights", report.OverallScore)
	}
	if len(report.Findings) != 1 {
		t.Fatalf("findings = %v, want exactly one", report.Findings)
	}
	f := report.Findings[0]
	if f.Kind != model.DefectInconsistentTotal || f.Field != "total_sales" || f.Record != 0 {
		t.Errorf("unexpected finding %+v", f)
	}
}

func TestScoreTotalWithinTolerancePasses(t *testing.T) {
	rec := cleanRecord()
	rec["total_sales"] = 233.91 * 1.005 // within the 1% relative tolerance

	report := Score(model.RawBatch{rec}, testRules())
	if report.Consistency != 100 {
		t.Errorf("consistency = %v, want 100 for a within-tolerance total", report.Consistency)
	}
}

func TestScoreMissingRequiredField(t *testing.T) {
	rec := cleanRecord()
	delete(rec, "unit_price")

	report := Score(model.RawBatch{rec}, testRules())

	// 3 of 4 required cells present
	if report.Completeness != 75 {
		t.Errorf("completeness = %v, want 75", report.Completeness)
	}
	// the formula cannot be evaluated without a price
	if report.Consistency != 0 {
		t.Errorf("consistency = %v, want 0", report.Consistency)
	}
	found := false
	for _, f := range report.Findings {
		if f.Kind == model.DefectMissingField && f.Field == "unit_price" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a missing_field finding for unit_price, got %v", report.Findings)
	}
}

func TestScoreEmptyStringIsMissing(t *testing.T) {
	rec := cleanRecord()
	rec["product_id"] = ""

	report := Score(model.RawBatch{rec}, testRules())
	if report.Completeness != 75 {
		t.Errorf("completeness = %v, want 75 for an empty required cell", report.Completeness)
	}
}

func TestScoreTypeMismatch(t *testing.T) {
	rec := cleanRecord()
	rec["quantity"] = "lots"

	report := Score(model.RawBatch{rec}, testRules())
	if report.Accuracy == 100 {
		t.Error("accuracy should drop on an unparseable numeric cell")
	}
	found := false
	for _, f := range report.Findings {
		if f.Kind == model.DefectTypeMismatch && f.Field == "quantity" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a type_mismatch finding for quantity, got %v", report.Findings)
	}
}

func TestScoreValidityDefects(t *testing.T) {
	negQty := cleanRecord()
	negQty["quantity"] = -5.0
	negQty["total_sales"] = -5.0 * 25.99 * 0.9

	badDiscount := cleanRecord()
	badDiscount["discount"] = 1.5
	badDiscount["product_id"] = "PROD002"
	badDiscount["total_sales"] = 10.0 * 25.99 * (1 - 1.5)

	report := Score(model.RawBatch{negQty, badDiscount}, testRules())

	if report.Validity != 0 {
		t.Errorf("validity = %v, want 0 when every record has a validity defect", report.Validity)
	}
	kinds := map[model.DefectKind]bool{}
	for _, f := range report.Findings {
		kinds[f.Kind] = true
	}
	if !kinds[model.DefectNegativeQuantity] || !kinds[model.DefectDiscountRange] {
		t.Errorf("expected negative_quantity and discount_out_of_range findings, got %v", report.Findings)
	}
}

func TestScoreOutOfRangeMax(t *testing.T) {
	rec := cleanRecord()
	rec["quantity"] = 5000.0 // above the configured max of 1000
	rec["total_sales"] = 5000.0 * 25.99 * 0.9

	report := Score(model.RawBatch{rec}, testRules())
	if report.Validity != 0 {
		t.Errorf("validity = %v, want 0", report.Validity)
	}
	found := false
	for _, f := range report.Findings {
		if f.Kind == model.DefectOutOfRange && f.Field == "quantity" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a value_out_of_range finding, got %v", report.Findings)
	}
}

func TestScoreDuplicateKey(t *testing.T) {
	a := cleanRecord()
	b := cleanRecord() // same (date, product_id)

	report := Score(model.RawBatch{a, b}, testRules())

	if report.Consistency != 50 {
		t.Errorf("consistency = %v, want 50 (second record is the duplicate)", report.Consistency)
	}
	var dup *model.Finding
	for i := range report.Findings {
		if report.Findings[i].Kind == model.DefectDuplicateKey {
			dup = &report.Findings[i]
		}
	}
	if dup == nil {
		t.Fatalf("expected a duplicate_key finding, got %v", report.Findings)
	}
	if dup.Record != 1 {
		t.Errorf("duplicate finding on record %d, want 1", dup.Record)
	}
}

func TestScoreTimeliness(t *testing.T) {
	rules := testRules()

	future := cleanRecord()
	future["date"] = "2025-06-01"
	stale := cleanRecord()
	stale["date"] = "2020-01-01"
	stale["product_id"] = "PROD002"

	report := Score(model.RawBatch{future, stale}, rules)

	if report.Timeliness != 0 {
		t.Errorf("timeliness = %v, want 0", report.Timeliness)
	}
	kinds := map[model.DefectKind]int{}
	for _, f := range report.Findings {
		kinds[f.Kind]++
	}
	if kinds[model.DefectFutureDate] != 1 || kinds[model.DefectStaleDate] != 1 {
		t.Errorf("expected one future_date and one stale_date finding, got %v", report.Findings)
	}
}

func TestScoreZeroAsOfSkipsTimeliness(t *testing.T) {
	rules := testRules()
	rules.AsOf = time.Time{}

	rec := cleanRecord()
	rec["date"] = "2099-01-01"
	rec["product_id"] = "PROD099"

	report := Score(model.RawBatch{rec}, rules)
	if report.Timeliness != 100 {
		t.Errorf("timeliness = %v, want 100 without a reference instant", report.Timeliness)
	}
}

func TestScoreEmptyBatch(t *testing.T) {
	report := Score(model.RawBatch{}, testRules())
	if report.OverallScore != 100 {
		t.Errorf("overall = %v, want 100 for an empty batch", report.OverallScore)
	}
	if report.RecordCount != 0 || len(report.Findings) != 0 {
		t.Errorf("unexpected report for empty batch: %+v", report)
	}
}

func TestScoreBoundsAndWeights(t *testing.T) {
	batch := model.RawBatch{
		cleanRecord(),
		{"date": "bogus", "quantity": "x", "unit_price": -3.0, "discount": 2.0},
	}
	rules := testRules()
	rules.Weights = model.ScoreWeights{Consistency: 1} // all weight on one sub-score

	report := Score(batch, rules)

	for _, s := range []float64{
		report.Completeness, report.Accuracy, report.Consistency,
		report.Validity, report.Timeliness, report.OverallScore,
	} {
		if s < 0 || s > 100 {
			t.Errorf("score %v out of [0,100]", s)
		}
	}
	if report.OverallScore != report.Consistency {
		t.Errorf("overall = %v, want consistency-only weighting = %v", report.OverallScore, report.Consistency)
	}
}

func TestScoreIsDeterministic(t *testing.T) {
	batch := model.RawBatch{
		cleanRecord(),
		{"date": "2024-01-02", "product_id": "PROD002", "quantity": -1.0, "unit_price": 9.5, "total_sales": 100.0},
		{"date": "2024-01-03", "quantity": "bad", "unit_price": 3.0},
	}
	rules := testRules()

	first := Score(batch, rules)
	for i := 0; i < 5; i++ {
		again := Score(batch, rules)
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("scoring is not deterministic:\nfirst: %+v\nagain: %+v", first, again)
		}
	}

	a, _ := json.Marshal(first)
	b, _ := json.Marshal(Score(batch, rules))
	if string(a) != string(b) {
		t.Error("serialized reports differ across identical scorings")
	}
}

func TestScoreDeduplicatesFindings(t *testing.T) {
	// missing unit_price trips both completeness and the formula path,
	// but must surface at most once per (record, field, kind)
	rec := cleanRecord()
	delete(rec, "unit_price")

	report := Score(model.RawBatch{rec}, testRules())

	type key struct {
		record int
		field  string
		kind   model.DefectKind
	}
	seen := map[key]int{}
	for _, f := range report.Findings {
		seen[key{f.Record, f.Field, f.Kind}]++
	}
	for k, n := range seen {
		if n > 1 {
			t.Errorf("finding %+v appears %d times", k, n)
		}
	}
}

func TestRelDiff(t *testing.T) {
	if d := relDiff(100, 99); math.Abs(d-0.01) > 1e-12 {
		t.Errorf("relDiff(100,99) = %v, want 0.01", d)
	}
	if d := relDiff(0, 0.5); d != 0.5 {
		t.Errorf("relDiff(0,0.5) = %v, want absolute difference 0.5", d)
	}
}
