package engine

import (
	"math"
	"sort"

	"github.com/jrholliday/VeriPy/domain/verify"
)

// ScopeGroup is one aggregation scope: the units sharing a grouping key
type ScopeGroup struct {
	Key   string
	Units []verify.VerificationUnit
}

// Partition splits units into scope groups under the given grouping, in
// deterministic key order. With no grouping all units form a single "all"
// scope, except under the per-unit-averaged policy where every unit is its
// own scope (the score-then-average semantics need per-unit scores).
func Partition(units []verify.VerificationUnit, grouping verify.Grouping, policy verify.AggregationPolicy) []ScopeGroup {
	if grouping == verify.GroupNone && policy == verify.PolicyPerUnitAveraged {
		groups := make([]ScopeGroup, len(units))
		for i, u := range units {
			groups[i] = ScopeGroup{Key: u.Key.String(), Units: []verify.VerificationUnit{u}}
		}
		return groups
	}

	byKey := make(map[string][]verify.VerificationUnit)
	for _, u := range units {
		k := grouping.KeyOf(u)
		byKey[k] = append(byKey[k], u)
	}

	// Zero units still produce one empty scope, so every selected metric
	// reports an n=0 undefined row instead of vanishing from the results.
	if len(byKey) == 0 {
		return []ScopeGroup{{Key: "all"}}
	}

	keys := make([]string, 0, len(byKey))
	for k := range byKey {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	groups := make([]ScopeGroup, len(keys))
	for i, k := range keys {
		groups[i] = ScopeGroup{Key: k, Units: byKey[k]}
	}
	return groups
}

// BuildTable binarizes a scope's units against the threshold set and
// returns the pooled 2x2 contingency table
func BuildTable(units []verify.VerificationUnit, thresholds *verify.ThresholdSet) verify.ContingencyTable {
	var t verify.ContingencyTable
	for _, u := range units {
		t.Add(thresholds.Event(u.Forecast), thresholds.Event(u.Observed))
	}
	return t
}

// BuildMultiTable categorizes a scope's units against every cutpoint and
// returns the KxK category table
func BuildMultiTable(units []verify.VerificationUnit, thresholds *verify.ThresholdSet) *verify.MultiCategoryTable {
	t := verify.NewMultiCategoryTable(thresholds.NumCategories())
	for _, u := range units {
		t.Add(thresholds.Categorize(u.Forecast), thresholds.Categorize(u.Observed))
	}
	return t
}

// AverageDefined averages per-scope scores, leaving undefined scores out of
// the mean and reporting how many were excluded. With no defined score the
// average itself is undefined.
func AverageDefined(scores []float64) (mean float64, excluded int) {
	sum, n := 0.0, 0
	for _, s := range scores {
		if math.IsNaN(s) {
			excluded++
			continue
		}
		sum += s
		n++
	}
	if n == 0 {
		return verify.Undefined(), excluded
	}
	return sum / float64(n), excluded
}
