package verify

import (
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// ForecastKind declares how forecast values are interpreted.
// A verification run is homogeneous: every unit carries the same kind.
type ForecastKind string

const (
	KindCategorical   ForecastKind = "categorical"
	KindContinuous    ForecastKind = "continuous"
	KindProbabilistic ForecastKind = "probabilistic"
	KindEnsemble      ForecastKind = "ensemble"
)

// Valid reports whether the kind is one of the recognized forecast kinds
func (k ForecastKind) Valid() bool {
	switch k {
	case KindCategorical, KindContinuous, KindProbabilistic, KindEnsemble:
		return true
	}
	return false
}

// UnitKey identifies one comparable forecast/observation pair by
// (spatial key, valid time, lead time)
type UnitKey struct {
	Space string
	Time  time.Time
	Lead  time.Duration
}

// String returns a stable textual form of the key
func (k UnitKey) String() string {
	return fmt.Sprintf("%s|%s|%s", k.Space, k.Time.UTC().Format(time.RFC3339), k.Lead)
}

// SeriesPoint is one keyed value of a forecast or observation series.
// Scalar forecasts and observations use Value; ensemble forecasts use Members.
type SeriesPoint struct {
	Key     UnitKey
	Value   float64
	Members []float64
}

// Series is an ordered collection of keyed values plus the declared kind
type Series struct {
	Kind   ForecastKind
	Points []SeriesPoint
}

// VerificationUnit is one aligned forecast/observation pair.
// Constructed once by alignment and immutable thereafter.
type VerificationUnit struct {
	Key      UnitKey
	Forecast float64   // scalar or probability forecast
	Members  []float64 // ensemble members, nil for scalar kinds
	Observed float64
}

// ConfidenceInterval carries a bootstrap interval at a given confidence level
type ConfidenceInterval struct {
	Lower float64
	Upper float64
	Level float64
}

// confidenceIntervalJSON uses nullable bounds: a fully-undefined interval
// (every resample score was NaN) still has to cross JSON.
type confidenceIntervalJSON struct {
	Lower *float64 `json:"lower"`
	Upper *float64 `json:"upper"`
	Level float64  `json:"level"`
}

func (ci ConfidenceInterval) MarshalJSON() ([]byte, error) {
	a := confidenceIntervalJSON{Level: ci.Level}
	if !math.IsNaN(ci.Lower) {
		v := ci.Lower
		a.Lower = &v
	}
	if !math.IsNaN(ci.Upper) {
		v := ci.Upper
		a.Upper = &v
	}
	return json.Marshal(a)
}

func (ci *ConfidenceInterval) UnmarshalJSON(data []byte) error {
	var a confidenceIntervalJSON
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*ci = ConfidenceInterval{Lower: Undefined(), Upper: Undefined(), Level: a.Level}
	if a.Lower != nil {
		ci.Lower = *a.Lower
	}
	if a.Upper != nil {
		ci.Upper = *a.Upper
	}
	return nil
}

// ScoreResult is one computed score, identified by
// (metric name, aggregation scope, threshold if applicable).
// Value is NaN when the computation is mathematically undefined; an
// undefined result is a reportable state, not an error, and is distinct
// from an absent entry.
type ScoreResult struct {
	Metric    string              `json:"metric"`
	Scope     string              `json:"scope"`
	Threshold *float64            `json:"threshold,omitempty"`
	Value     float64             `json:"value"`
	CI        *ConfidenceInterval `json:"ci,omitempty"`
	N         int                 `json:"n"`
	Dropped   int                 `json:"dropped"`
	Excluded  int                 `json:"excluded"` // per-unit-averaged: undefined units left out
}

// Defined reports whether the score value is defined
func (r ScoreResult) Defined() bool {
	return !math.IsNaN(r.Value)
}

// scoreResultJSON mirrors ScoreResult with a nullable value, since
// encoding/json rejects NaN. An undefined score serializes as null.
type scoreResultJSON struct {
	Metric    string              `json:"metric"`
	Scope     string              `json:"scope"`
	Threshold *float64            `json:"threshold,omitempty"`
	Value     *float64            `json:"value"`
	CI        *ConfidenceInterval `json:"ci,omitempty"`
	N         int                 `json:"n"`
	Dropped   int                 `json:"dropped"`
	Excluded  int                 `json:"excluded"`
}

func (r ScoreResult) MarshalJSON() ([]byte, error) {
	a := scoreResultJSON{
		Metric:    r.Metric,
		Scope:     r.Scope,
		Threshold: r.Threshold,
		CI:        r.CI,
		N:         r.N,
		Dropped:   r.Dropped,
		Excluded:  r.Excluded,
	}
	if r.Defined() {
		v := r.Value
		a.Value = &v
	}
	return json.Marshal(a)
}

func (r *ScoreResult) UnmarshalJSON(data []byte) error {
	var a scoreResultJSON
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*r = ScoreResult{
		Metric:    a.Metric,
		Scope:     a.Scope,
		Threshold: a.Threshold,
		Value:     Undefined(),
		CI:        a.CI,
		N:         a.N,
		Dropped:   a.Dropped,
		Excluded:  a.Excluded,
	}
	if a.Value != nil {
		r.Value = *a.Value
	}
	return nil
}

// Undefined is the explicit marker for mathematically undefined scores
func Undefined() float64 {
	return math.NaN()
}

// AggregationPolicy declares how units in a scope are reduced.
// The two policies produce different, both valid, numbers and must
// never be silently mixed within one report.
type AggregationPolicy string

const (
	// PolicyPooled combines raw counts/values across all units before scoring
	PolicyPooled AggregationPolicy = "pooled"
	// PolicyPerUnitAveraged scores each group independently, then averages
	PolicyPerUnitAveraged AggregationPolicy = "per-unit-averaged"
)

// Valid reports whether the policy is recognized
func (p AggregationPolicy) Valid() bool {
	return p == PolicyPooled || p == PolicyPerUnitAveraged
}

// Grouping selects the coordinate used to partition units into scope groups
type Grouping string

const (
	GroupNone  Grouping = "none"
	GroupSpace Grouping = "space"
	GroupTime  Grouping = "time"
	GroupLead  Grouping = "lead"
)

// Valid reports whether the grouping is recognized
func (g Grouping) Valid() bool {
	switch g {
	case GroupNone, GroupSpace, GroupTime, GroupLead:
		return true
	}
	return false
}

// KeyOf returns the scope-group key of a unit under this grouping
func (g Grouping) KeyOf(u VerificationUnit) string {
	switch g {
	case GroupSpace:
		return u.Key.Space
	case GroupTime:
		return u.Key.Time.UTC().Format(time.RFC3339)
	case GroupLead:
		return u.Key.Lead.String()
	default:
		return "all"
	}
}
