package quality

import (
	"math"
	"sort"

	"go-sales-etl/internal/model"
	"go-sales-etl/pkg/utils"
)

// Score computes the five data-quality sub-scores for a raw batch and
// aggregates them into an overall score. Scoring is pure: identical
// batch and rules (including the AsOf instant) always yield an identical
// report, which is what makes the result cacheable.
//
// Defects never raise errors here; every failing cell or record becomes
// a Finding on the report and the transform stage decides what to do
// with it.
func Score(batch model.RawBatch, rules model.QualityRules) model.QualityReport {
	report := model.QualityReport{RecordCount: len(batch), Findings: []model.Finding{}}
	fs := findingSet{seen: make(map[findingKey]struct{})}
	n := len(batch)

	// completeness: non-missing required-field cells over total cells
	totalCells := n * len(rules.RequiredFields)
	missingCells := 0
	for i, rec := range batch {
		for _, field := range rules.RequiredFields {
			if isMissing(rec[field]) {
				missingCells++
				fs.add(i, field, model.DefectMissingField)
			}
		}
	}

	// accuracy: present cells passing their type/format check
	typeFields := sortedFields(rules.TypeChecks)
	checkedCells, passingCells := 0, 0
	for i, rec := range batch {
		for _, field := range typeFields {
			v, ok := rec[field]
			if !ok || v == nil {
				continue
			}
			checkedCells++
			if typeOK(v, rules.TypeChecks[field]) {
				passingCells++
			} else {
				fs.add(i, field, model.DefectTypeMismatch)
			}
		}
	}

	// consistency: total_sales formula within tolerance and no duplicate
	// (date, product_id) collision
	consistent := 0
	seenKeys := make(map[string]struct{}, n)
	for i, rec := range batch {
		ok := checkFormula(rec, rules.Tolerance, i, &fs)
		if key := dedupeKey(rec); key != "" {
			if _, dup := seenKeys[key]; dup {
				fs.add(i, "", model.DefectDuplicateKey)
				ok = false
			} else {
				seenKeys[key] = struct{}{}
			}
		}
		if ok {
			consistent++
		}
	}

	// validity: quantity >= 0, unit_price >= 0, discount in [0,1],
	// plus configured per-field ranges
	valid := 0
	for i, rec := range batch {
		if checkValidity(rec, rules, i, &fs) {
			valid++
		}
	}

	// timeliness: date not in the future and not beyond the horizon
	timely := 0
	for i, rec := range batch {
		if checkTimeliness(rec, rules, i, &fs) {
			timely++
		}
	}

	report.Completeness = pct(totalCells-missingCells, totalCells)
	report.Accuracy = pct(passingCells, checkedCells)
	report.Consistency = pct(consistent, n)
	report.Validity = pct(valid, n)
	report.Timeliness = pct(timely, n)
	report.OverallScore = overall(rules.Weights, report)
	report.Findings = fs.sorted()
	return report
}

// checkFormula verifies total_sales == quantity * unit_price * (1 - discount)
// within a relative tolerance. A missing discount is treated as zero. A
// missing or mismatched total with evaluable operands is an
// inconsistent-total finding (recomputable downstream); records whose
// operands cannot be read count as inconsistent but carry only the
// missing/type findings already recorded.
func checkFormula(rec model.RawRecord, tolerance float64, i int, fs *findingSet) bool {
	qty, qok := utils.Numeric(rec[model.FieldQuantity])
	price, pok := utils.Numeric(rec[model.FieldUnitPrice])
	if !qok || !pok {
		return false
	}
	discount, dok := utils.Numeric(rec[model.FieldDiscount])
	if !dok {
		discount = 0
	}
	expected := qty * price * (1 - discount)

	total, tok := utils.Numeric(rec[model.FieldTotalSales])
	if !tok {
		fs.add(i, model.FieldTotalSales, model.DefectInconsistentTotal)
		return false
	}
	if relDiff(total, expected) > tolerance {
		fs.add(i, model.FieldTotalSales, model.DefectInconsistentTotal)
		return false
	}
	return true
}

func checkValidity(rec model.RawRecord, rules model.QualityRules, i int, fs *findingSet) bool {
	ok := true
	if q, isNum := utils.Numeric(rec[model.FieldQuantity]); isNum && q < 0 {
		fs.add(i, model.FieldQuantity, model.DefectNegativeQuantity)
		ok = false
	}
	if p, isNum := utils.Numeric(rec[model.FieldUnitPrice]); isNum && p < 0 {
		fs.add(i, model.FieldUnitPrice, model.DefectNegativePrice)
		ok = false
	}
	if d, isNum := utils.Numeric(rec[model.FieldDiscount]); isNum && (d < 0 || d > 1) {
		fs.add(i, model.FieldDiscount, model.DefectDiscountRange)
		ok = false
	}
	// configured ranges; negativity is already covered above, so only
	// positive minimums and maximums add range findings
	for _, field := range sortedNumKeys(rules.MinValues) {
		min := rules.MinValues[field]
		if min <= 0 {
			continue
		}
		if v, isNum := utils.Numeric(rec[field]); isNum && v < min {
			fs.add(i, field, model.DefectOutOfRange)
			ok = false
		}
	}
	for _, field := range sortedNumKeys(rules.MaxValues) {
		max := rules.MaxValues[field]
		if v, isNum := utils.Numeric(rec[field]); isNum && v > max {
			fs.add(i, field, model.DefectOutOfRange)
			ok = false
		}
	}
	return ok
}

func checkTimeliness(rec model.RawRecord, rules model.QualityRules, i int, fs *findingSet) bool {
	date, ok := utils.ParseDate(rec[model.FieldDate])
	if !ok {
		// unreadable dates already carry missing/type findings; the
		// record still cannot be assessed as timely
		return false
	}
	if rules.AsOf.IsZero() {
		return true
	}
	if date.After(rules.AsOf) {
		fs.add(i, model.FieldDate, model.DefectFutureDate)
		return false
	}
	if rules.StalenessHorizon > 0 && rules.AsOf.Sub(date) > rules.StalenessHorizon {
		fs.add(i, model.FieldDate, model.DefectStaleDate)
		return false
	}
	return true
}

func isMissing(v interface{}) bool {
	if v == nil {
		return true
	}
	if s, ok := v.(string); ok && s == "" {
		return true
	}
	return false
}

func typeOK(v interface{}, ft model.FieldType) bool {
	switch ft {
	case model.TypeNumeric:
		_, ok := utils.Numeric(v)
		return ok
	case model.TypeDate:
		_, ok := utils.ParseDate(v)
		return ok
	case model.TypeString:
		_, ok := v.(string)
		return ok
	default:
		return true
	}
}

// dedupeKey builds the (date, product_id) key from raw cells; records
// missing either part are not checked for duplication.
func dedupeKey(rec model.RawRecord) string {
	date, ok := utils.ParseDate(rec[model.FieldDate])
	if !ok {
		return ""
	}
	id, ok := rec[model.FieldProductID].(string)
	if !ok || id == "" {
		return ""
	}
	return date.Format(model.DateLayout) + "|" + id
}

// relDiff returns |a-b| relative to |a| (or the absolute difference when
// a is zero), matching the historic tolerance semantics.
func relDiff(a, b float64) float64 {
	diff := math.Abs(a - b)
	if a == 0 {
		return diff
	}
	return diff / math.Abs(a)
}

func pct(ok, total int) float64 {
	if total <= 0 {
		return 100
	}
	return 100 * float64(ok) / float64(total)
}

func overall(w model.ScoreWeights, r model.QualityReport) float64 {
	sum := w.Completeness + w.Accuracy + w.Consistency + w.Validity + w.Timeliness
	if sum <= 0 {
		w = model.EqualWeights()
		sum = 5
	}
	score := (w.Completeness*r.Completeness +
		w.Accuracy*r.Accuracy +
		w.Consistency*r.Consistency +
		w.Validity*r.Validity +
		w.Timeliness*r.Timeliness) / sum
	return math.Max(0, math.Min(score, 100))
}

// findingSet deduplicates findings by (record, field, kind).
type findingKey struct {
	record int
	field  string
	kind   model.DefectKind
}

type findingSet struct {
	seen     map[findingKey]struct{}
	findings []model.Finding
}

func (fs *findingSet) add(record int, field string, kind model.DefectKind) {
	key := findingKey{record: record, field: field, kind: kind}
	if _, ok := fs.seen[key]; ok {
		return
	}
	fs.seen[key] = struct{}{}
	fs.findings = append(fs.findings, model.Finding{
		Record:   record,
		Field:    field,
		Kind:     kind,
		Severity: severityFor(kind),
	})
}

// sorted returns findings in (record, field, kind) order so repeated
// scoring of the same batch is byte-identical.
func (fs *findingSet) sorted() []model.Finding {
	out := append([]model.Finding{}, fs.findings...)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Record != out[j].Record {
			return out[i].Record < out[j].Record
		}
		if out[i].Field != out[j].Field {
			return out[i].Field < out[j].Field
		}
		return out[i].Kind < out[j].Kind
	})
	return out
}

func severityFor(kind model.DefectKind) model.Severity {
	switch kind {
	case model.DefectNegativeQuantity, model.DefectNegativePrice, model.DefectInconsistentTotal, model.DefectFutureDate:
		return model.SeverityHigh
	case model.DefectMissingField, model.DefectTypeMismatch, model.DefectDuplicateKey, model.DefectDiscountRange:
		return model.SeverityMedium
	default:
		return model.SeverityLow
	}
}

func sortedFields(m map[string]model.FieldType) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedNumKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
