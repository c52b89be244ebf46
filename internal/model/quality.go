package model

import "time"

// DefectKind identifies a category of data-quality defect.
type DefectKind string

const (
	DefectMissingField      DefectKind = "missing_field"
	DefectTypeMismatch      DefectKind = "type_mismatch"
	DefectInconsistentTotal DefectKind = "inconsistent_total"
	DefectDuplicateKey      DefectKind = "duplicate_key"
	DefectNegativeQuantity  DefectKind = "negative_quantity"
	DefectNegativePrice     DefectKind = "negative_price"
	DefectDiscountRange     DefectKind = "discount_out_of_range"
	DefectOutOfRange        DefectKind = "value_out_of_range"
	DefectFutureDate        DefectKind = "future_date"
	DefectStaleDate         DefectKind = "stale_date"
)

// Severity grades a finding for downstream reporting.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Finding records one data-quality defect tied to a specific record and
// field. Findings are facts, never errors: the scorer reports them, the
// transform stage decides repair versus rejection.
type Finding struct {
	Record   int        `json:"record"` // index within the scored batch
	Field    string     `json:"field,omitempty"`
	Kind     DefectKind `json:"kind"`
	Severity Severity   `json:"severity"`
}

// ScoreWeights weighs the five sub-scores in the overall score.
type ScoreWeights struct {
	Completeness float64 `json:"completeness" yaml:"completeness"`
	Accuracy     float64 `json:"accuracy" yaml:"accuracy"`
	Consistency  float64 `json:"consistency" yaml:"consistency"`
	Validity     float64 `json:"validity" yaml:"validity"`
	Timeliness   float64 `json:"timeliness" yaml:"timeliness"`
}

// EqualWeights is the default weighting: 20% per sub-score.
func EqualWeights() ScoreWeights {
	return ScoreWeights{Completeness: 1, Accuracy: 1, Consistency: 1, Validity: 1, Timeliness: 1}
}

// QualityReport is the per-batch scoring result. Created once per run,
// read-only afterward, persisted alongside the run for audit.
type QualityReport struct {
	RecordCount  int       `json:"record_count"`
	Completeness float64   `json:"completeness"`
	Accuracy     float64   `json:"accuracy"`
	Consistency  float64   `json:"consistency"`
	Validity     float64   `json:"validity"`
	Timeliness   float64   `json:"timeliness"`
	OverallScore float64   `json:"overall_score"`
	Findings     []Finding `json:"findings"`
}

// FindingsFor returns the findings tied to the record at index i,
// preserving report order.
func (qr QualityReport) FindingsFor(i int) []Finding {
	var out []Finding
	for _, f := range qr.Findings {
		if f.Record == i {
			out = append(out, f)
		}
	}
	return out
}

// QualityRules configures the scorer. AsOf pins the timeliness reference
// instant so scoring stays pure: identical batch and rules always yield
// an identical report.
type QualityRules struct {
	RequiredFields   []string             `json:"required_fields" yaml:"required_fields"`
	TypeChecks       map[string]FieldType `json:"type_checks" yaml:"type_checks"`
	MinValues        map[string]float64   `json:"min_values" yaml:"min_values"`
	MaxValues        map[string]float64   `json:"max_values" yaml:"max_values"`
	Tolerance        float64              `json:"tolerance" yaml:"tolerance"` // relative, for the total_sales formula
	StalenessHorizon time.Duration        `json:"staleness_horizon" yaml:"-"`
	AsOf             time.Time            `json:"as_of" yaml:"-"`
	Weights          ScoreWeights         `json:"weights" yaml:"weights"`
}

// FieldType names the expected type/format of a raw cell.
type FieldType string

const (
	TypeNumeric FieldType = "numeric"
	TypeDate    FieldType = "date"
	TypeString  FieldType = "string"
)
