package verify

import (
	"math"

	"github.com/jrholliday/VeriPy/internal/errors"
)

// ThresholdSet is an ordered sequence of numeric cutpoints partitioning
// continuous values into categories. The event convention is value >= threshold,
// applied identically to forecasts and observations.
type ThresholdSet struct {
	values []float64
}

// NewThresholdSet validates and constructs a threshold set.
// Cutpoints must be non-empty, finite and strictly increasing.
func NewThresholdSet(values ...float64) (*ThresholdSet, error) {
	if len(values) == 0 {
		return nil, errors.Config("threshold set must contain at least one cutpoint")
	}
	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, errors.Configf("threshold %d is not finite: %v", i, v)
		}
		if i > 0 && values[i-1] >= v {
			return nil, errors.Configf("thresholds must be strictly increasing: %v >= %v at position %d",
				values[i-1], v, i)
		}
	}
	vs := make([]float64, len(values))
	copy(vs, values)
	return &ThresholdSet{values: vs}, nil
}

// Values returns a copy of the cutpoints
func (t *ThresholdSet) Values() []float64 {
	vs := make([]float64, len(t.values))
	copy(vs, t.values)
	return vs
}

// Len returns the number of cutpoints
func (t *ThresholdSet) Len() int {
	return len(t.values)
}

// NumCategories returns the number of categories the cutpoints induce
func (t *ThresholdSet) NumCategories() int {
	return len(t.values) + 1
}

// First returns the lowest cutpoint, the binarization threshold for 2x2 tables
func (t *ThresholdSet) First() float64 {
	return t.values[0]
}

// Categorize assigns value to a right-open bucket: the category index is
// the count of cutpoints at or below value. For a single cutpoint this is
// 0 below the threshold and 1 at or above it.
func (t *ThresholdSet) Categorize(value float64) int {
	cat := 0
	for _, cut := range t.values {
		if value >= cut {
			cat++
		} else {
			break
		}
	}
	return cat
}

// Event reports whether value reaches the binarization threshold
func (t *ThresholdSet) Event(value float64) bool {
	return value >= t.values[0]
}
