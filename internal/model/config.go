package model

import "time"

// RetryConfig defines retry behavior for transient failures.
type RetryConfig struct {
	MaxAttempts   int           `json:"max_attempts" yaml:"max_attempts"`
	InitialDelay  time.Duration `json:"initial_delay" yaml:"-"`
	MaxDelay      time.Duration `json:"max_delay" yaml:"-"`
	BackoffFactor float64       `json:"backoff_factor" yaml:"backoff_factor"`
	Jitter        bool          `json:"jitter" yaml:"jitter"`
}

// CacheConfig bounds the stage-result cache.
type CacheConfig struct {
	Capacity int           `json:"capacity" yaml:"capacity"`
	TTL      time.Duration `json:"ttl" yaml:"-"`
}

// LoadConfig controls sink chunking. ChunkSize 0 submits the whole batch
// as one chunk; Parallelism caps concurrent chunk dispatches.
type LoadConfig struct {
	ChunkSize   int `json:"chunk_size" yaml:"chunk_size"`
	Parallelism int `json:"parallelism" yaml:"parallelism"`
}

// RepairDecision tells the transform stage what to do with a defect kind.
type RepairDecision string

const (
	// RepairDefect corrects the record with the kind's repair function.
	RepairDefect RepairDecision = "repair"
	// RejectDefect moves the record to the rejected set.
	RejectDefect RepairDecision = "reject"
	// AcceptDefect keeps the record unchanged; the finding remains a
	// quality fact on the report.
	AcceptDefect RepairDecision = "accept"
)

// RepairPolicy maps defect kinds to decisions. Kinds absent from the
// table are rejected.
type RepairPolicy map[DefectKind]RepairDecision

// Decide returns the decision for kind, defaulting to rejection.
func (p RepairPolicy) Decide(kind DefectKind) RepairDecision {
	if d, ok := p[kind]; ok {
		return d
	}
	return RejectDefect
}

// RunConfig is the complete configuration value handed to the
// orchestrator at run start. No stage reads ambient settings mid-run.
type RunConfig struct {
	Rules  QualityRules `json:"rules"`
	Repair RepairPolicy `json:"repair"`
	Retry  RetryConfig  `json:"retry"`
	Cache  CacheConfig  `json:"cache"`
	Load   LoadConfig   `json:"load"`
}

// DefaultRepairPolicy mirrors the historic pipeline behavior: recompute
// inconsistent totals, default missing discounts, drop in-batch
// duplicates, keep stale rows as quality facts.
func DefaultRepairPolicy() RepairPolicy {
	return RepairPolicy{
		DefectMissingField:      RepairDefect,
		DefectInconsistentTotal: RepairDefect,
		DefectDuplicateKey:      RejectDefect,
		DefectTypeMismatch:      RejectDefect,
		DefectNegativeQuantity:  RejectDefect,
		DefectNegativePrice:     RejectDefect,
		DefectDiscountRange:     RejectDefect,
		DefectFutureDate:        RejectDefect,
		DefectStaleDate:         AcceptDefect,
		DefectOutOfRange:        AcceptDefect,
	}
}

// DefaultQualityRules returns the sales-data rule set.
func DefaultQualityRules() QualityRules {
	return QualityRules{
		RequiredFields: []string{FieldDate, FieldProductID, FieldQuantity, FieldUnitPrice},
		TypeChecks: map[string]FieldType{
			FieldDate:       TypeDate,
			FieldProductID:  TypeString,
			FieldQuantity:   TypeNumeric,
			FieldUnitPrice:  TypeNumeric,
			FieldDiscount:   TypeNumeric,
			FieldTotalSales: TypeNumeric,
		},
		MinValues:        map[string]float64{FieldQuantity: 0, FieldUnitPrice: 0},
		MaxValues:        map[string]float64{FieldQuantity: 1000, FieldUnitPrice: 10000},
		Tolerance:        0.01,
		StalenessHorizon: 365 * 24 * time.Hour,
		Weights:          EqualWeights(),
	}
}

// DefaultRunConfig assembles the default configuration. AsOf is left
// zero; the orchestrator pins it at run start.
func DefaultRunConfig() RunConfig {
	return RunConfig{
		Rules:  DefaultQualityRules(),
		Repair: DefaultRepairPolicy(),
		Retry: RetryConfig{
			MaxAttempts:   3,
			InitialDelay:  2 * time.Second,
			MaxDelay:      30 * time.Second,
			BackoffFactor: 2.0,
			Jitter:        true,
		},
		Cache: CacheConfig{Capacity: 128, TTL: 24 * time.Hour},
		Load:  LoadConfig{ChunkSize: 1000, Parallelism: 4},
	}
}
