package scorers

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/jrholliday/VeriPy/domain/verify"
)

// Categorical scores are pure functions of a 2x2 contingency table.
// Every metric evaluates its own zero-denominator condition independently
// and returns NaN ("undefined") when its formula has no value; it never
// inherits another metric's undefined state.

var unitNormal = distuv.UnitNormal

// POD is the Probability of Detection (hit rate): hits/(hits+misses)
func POD(t verify.ContingencyTable) float64 {
	denom := t.Hits + t.Misses
	if denom == 0 {
		return verify.Undefined()
	}
	return float64(t.Hits) / float64(denom)
}

// FAR is the False Alarm Ratio: false_alarms/(hits+false_alarms)
func FAR(t verify.ContingencyTable) float64 {
	denom := t.Hits + t.FalseAlarms
	if denom == 0 {
		return verify.Undefined()
	}
	return float64(t.FalseAlarms) / float64(denom)
}

// POFD is the Probability of False Detection (false alarm rate):
// false_alarms/(false_alarms+correct_negatives)
func POFD(t verify.ContingencyTable) float64 {
	denom := t.FalseAlarms + t.CorrectNegatives
	if denom == 0 {
		return verify.Undefined()
	}
	return float64(t.FalseAlarms) / float64(denom)
}

// CSI is the Critical Success Index (threat score):
// hits/(hits+misses+false_alarms)
func CSI(t verify.ContingencyTable) float64 {
	denom := t.Hits + t.Misses + t.FalseAlarms
	if denom == 0 {
		return verify.Undefined()
	}
	return float64(t.Hits) / float64(denom)
}

// BaseRate is the observed event frequency: (hits+misses)/total
func BaseRate(t verify.ContingencyTable) float64 {
	n := t.Total()
	if n == 0 {
		return verify.Undefined()
	}
	return float64(t.Hits+t.Misses) / float64(n)
}

// PFO is the probability of a forecast of occurrence: (hits+false_alarms)/total
func PFO(t verify.ContingencyTable) float64 {
	n := t.Total()
	if n == 0 {
		return verify.Undefined()
	}
	return float64(t.Hits+t.FalseAlarms) / float64(n)
}

// PercentCorrect is the accuracy: (hits+correct_negatives)/total
func PercentCorrect(t verify.ContingencyTable) float64 {
	n := t.Total()
	if n == 0 {
		return verify.Undefined()
	}
	return float64(t.Hits+t.CorrectNegatives) / float64(n)
}

// FrequencyBias is the ratio of forecast to observed events:
// (hits+false_alarms)/(hits+misses)
func FrequencyBias(t verify.ContingencyTable) float64 {
	denom := t.Hits + t.Misses
	if denom == 0 {
		return verify.Undefined()
	}
	return float64(t.Hits+t.FalseAlarms) / float64(denom)
}

// HSS is the Heidke Skill Score: accuracy relative to the expected
// correct count of a random forecast with the same marginals
func HSS(t verify.ContingencyTable) float64 {
	a, b, c, d := float64(t.Hits), float64(t.FalseAlarms), float64(t.Misses), float64(t.CorrectNegatives)
	n := a + b + c + d
	if n == 0 {
		return verify.Undefined()
	}
	expectedCorrect := ((a+c)*(a+b) + (c+d)*(b+d)) / n
	denom := n - expectedCorrect
	if denom == 0 {
		return verify.Undefined()
	}
	return ((a + d) - expectedCorrect) / denom
}

// ETS is the Equitable Threat Score (Gilbert skill score)
func ETS(t verify.ContingencyTable) float64 {
	a, b, c, d := float64(t.Hits), float64(t.FalseAlarms), float64(t.Misses), float64(t.CorrectNegatives)
	n := a + b + c + d
	if n == 0 {
		return verify.Undefined()
	}
	hitsRandom := (a + c) * (a + b) / n
	denom := a + b + c - hitsRandom
	if denom == 0 {
		return verify.Undefined()
	}
	return (a - hitsRandom) / denom
}

// PSS is the Peirce Skill Score (Hanssen-Kuipers discriminant): POD - POFD
func PSS(t verify.ContingencyTable) float64 {
	pod := POD(t)
	pofd := POFD(t)
	if math.IsNaN(pod) || math.IsNaN(pofd) {
		return verify.Undefined()
	}
	return pod - pofd
}

// OddsRatio is the ratio of the odds of a hit to the odds of a false detection
func OddsRatio(t verify.ContingencyTable) float64 {
	pod := POD(t)
	pofd := POFD(t)
	if math.IsNaN(pod) || math.IsNaN(pofd) || pod == 1 || pofd == 0 {
		return verify.Undefined()
	}
	return (pod / (1 - pod)) / (pofd / (1 - pofd))
}

// OddsRatioSkill is the Odds Ratio Skill Score (Yule's Q):
// (ad - bc)/(ad + bc)
func OddsRatioSkill(t verify.ContingencyTable) float64 {
	a, b, c, d := float64(t.Hits), float64(t.FalseAlarms), float64(t.Misses), float64(t.CorrectNegatives)
	denom := a*d + b*c
	if denom == 0 {
		return verify.Undefined()
	}
	return (a*d - b*c) / denom
}

// EDS is the Extreme Dependency Score: 2*ln(BR)/ln(BR*POD) - 1
func EDS(t verify.ContingencyTable) float64 {
	br := BaseRate(t)
	pod := POD(t)
	if math.IsNaN(br) || math.IsNaN(pod) || br <= 0 || pod <= 0 {
		return verify.Undefined()
	}
	denom := math.Log(br * pod)
	if denom == 0 {
		return verify.Undefined()
	}
	return 2*math.Log(br)/denom - 1
}

// DiscriminationDistance is the separation of the forecast's hit and false
// detection rates in probit space
func DiscriminationDistance(t verify.ContingencyTable) float64 {
	pod := POD(t)
	pofd := POFD(t)
	if math.IsNaN(pod) || math.IsNaN(pofd) || pod <= 0 || pod >= 1 || pofd <= 0 || pofd >= 1 {
		return verify.Undefined()
	}
	return unitNormal.Quantile(pod) - unitNormal.Quantile(pofd)
}

// ROCArea is the area under the modelled (binormal) ROC curve
func ROCArea(t verify.ContingencyTable) float64 {
	d := DiscriminationDistance(t)
	if math.IsNaN(d) {
		return verify.Undefined()
	}
	return unitNormal.CDF(d / math.Sqrt2)
}

// Multi-category scores, computed from a KxK table.

// MultiPercentCorrect is the fraction of units on the table diagonal
func MultiPercentCorrect(t *verify.MultiCategoryTable) float64 {
	n := t.Total()
	if n == 0 {
		return verify.Undefined()
	}
	correct := 0
	for i := 0; i < t.K; i++ {
		correct += t.Counts[i][i]
	}
	return float64(correct) / float64(n)
}

// MultiHSS is the multi-category Heidke Skill Score
func MultiHSS(t *verify.MultiCategoryTable) float64 {
	n := float64(t.Total())
	if n == 0 {
		return verify.Undefined()
	}
	fTotals := t.ForecastTotals()
	oTotals := t.ObservedTotals()
	var correct, expected float64
	for i := 0; i < t.K; i++ {
		correct += float64(t.Counts[i][i]) / n
		expected += float64(fTotals[i]) * float64(oTotals[i]) / (n * n)
	}
	denom := 1 - expected
	if denom == 0 {
		return verify.Undefined()
	}
	return (correct - expected) / denom
}

// MultiPSS is the multi-category Peirce Skill Score
func MultiPSS(t *verify.MultiCategoryTable) float64 {
	n := float64(t.Total())
	if n == 0 {
		return verify.Undefined()
	}
	fTotals := t.ForecastTotals()
	oTotals := t.ObservedTotals()
	var correct, expected, obsSquared float64
	for i := 0; i < t.K; i++ {
		correct += float64(t.Counts[i][i]) / n
		expected += float64(fTotals[i]) * float64(oTotals[i]) / (n * n)
		obsSquared += float64(oTotals[i]) * float64(oTotals[i]) / (n * n)
	}
	denom := 1 - obsSquared
	if denom == 0 {
		return verify.Undefined()
	}
	return (correct - expected) / denom
}
