package verify

import (
	"github.com/jrholliday/VeriPy/internal/errors"
)

// MissingPolicy controls handling of NaN/missing values during alignment
type MissingPolicy string

const (
	MissingDrop  MissingPolicy = "drop"
	MissingError MissingPolicy = "error"
)

// AlignPolicy controls handling of coordinate-set mismatches during alignment
type AlignPolicy string

const (
	AlignStrict    AlignPolicy = "strict"
	AlignIntersect AlignPolicy = "intersect"
)

// Options is the recognized run configuration.
// Validated eagerly before any computation starts.
type Options struct {
	Thresholds         *ThresholdSet     `yaml:"-"`
	ThresholdValues    []float64         `yaml:"thresholds"`
	Policy             AggregationPolicy `yaml:"aggregation_scope"`
	Grouping           Grouping          `yaml:"grouping"`
	BootstrapResamples int               `yaml:"bootstrap_resamples"`
	ConfidenceLevel    float64           `yaml:"confidence_level"`
	RandomSeed         int64             `yaml:"random_seed"`
	MissingPolicy      MissingPolicy     `yaml:"missing_policy"`
	AlignPolicy        AlignPolicy       `yaml:"align_policy"`
	ReliabilityBins    int               `yaml:"reliability_bins"`
	Metrics            []string          `yaml:"metrics"`
}

// DefaultOptions returns the baseline run configuration
func DefaultOptions() Options {
	return Options{
		Policy:          PolicyPooled,
		Grouping:        GroupNone,
		ConfidenceLevel: 0.95,
		MissingPolicy:   MissingDrop,
		AlignPolicy:     AlignStrict,
		ReliabilityBins: 10,
	}
}

// Normalize fills zero-valued fields with defaults and materializes the
// threshold set from raw cutpoints when only values were provided.
func (o *Options) Normalize() error {
	if o.Policy == "" {
		o.Policy = PolicyPooled
	}
	if o.Grouping == "" {
		o.Grouping = GroupNone
	}
	if o.MissingPolicy == "" {
		o.MissingPolicy = MissingDrop
	}
	if o.AlignPolicy == "" {
		o.AlignPolicy = AlignStrict
	}
	if o.ConfidenceLevel == 0 {
		o.ConfidenceLevel = 0.95
	}
	if o.ReliabilityBins == 0 {
		o.ReliabilityBins = 10
	}
	if o.Thresholds == nil && len(o.ThresholdValues) > 0 {
		ts, err := NewThresholdSet(o.ThresholdValues...)
		if err != nil {
			return err
		}
		o.Thresholds = ts
	}
	return o.Validate()
}

// Validate checks every recognized option; failures carry the config code
func (o Options) Validate() error {
	if !o.Policy.Valid() {
		return errors.Configf("unrecognized aggregation scope %q", o.Policy)
	}
	if !o.Grouping.Valid() {
		return errors.Configf("unrecognized grouping %q", o.Grouping)
	}
	if o.BootstrapResamples < 0 {
		return errors.Configf("bootstrap_resamples must be >= 0, got %d", o.BootstrapResamples)
	}
	if o.ConfidenceLevel <= 0 || o.ConfidenceLevel >= 1 {
		return errors.Configf("confidence_level must be in (0,1), got %v", o.ConfidenceLevel)
	}
	if o.MissingPolicy != MissingDrop && o.MissingPolicy != MissingError {
		return errors.Configf("unrecognized missing_policy %q", o.MissingPolicy)
	}
	if o.AlignPolicy != AlignStrict && o.AlignPolicy != AlignIntersect {
		return errors.Configf("unrecognized align_policy %q", o.AlignPolicy)
	}
	if o.ReliabilityBins < 1 {
		return errors.Configf("reliability_bins must be >= 1, got %d", o.ReliabilityBins)
	}
	return nil
}
