package scorers

import (
	"math"
	"sort"

	"github.com/montanaflynn/stats"

	"github.com/jrholliday/VeriPy/domain/verify"
	"github.com/jrholliday/VeriPy/internal/errors"
)

// Probabilistic scores take a single-valued probability forecast against a
// binary outcome. Inputs are validated before any score is computed.

// ValidateProbabilistic checks probability bounds and binary outcomes
func ValidateProbabilistic(units []verify.VerificationUnit) error {
	for _, u := range units {
		if u.Forecast < 0 || u.Forecast > 1 {
			return errors.Domainf("forecast probability %v at %s outside [0,1]", u.Forecast, u.Key)
		}
		if u.Observed != 0 && u.Observed != 1 {
			return errors.Domainf("observation %v at %s is not binary", u.Observed, u.Key)
		}
	}
	return nil
}

// BrierScore is the mean of squared probability errors
func BrierScore(units []verify.VerificationUnit) float64 {
	if len(units) == 0 {
		return verify.Undefined()
	}
	sum := 0.0
	for _, u := range units {
		diff := u.Forecast - u.Observed
		sum += diff * diff
	}
	return sum / float64(len(units))
}

// BrierSkillScore is 1 - BS/BS_ref where the reference forecast is the
// observed event base rate over the same scope. The reference score is
// c*(1-c), which vanishes when the base rate is exactly 0 or 1, making
// the skill score undefined there.
func BrierSkillScore(units []verify.VerificationUnit) float64 {
	if len(units) == 0 {
		return verify.Undefined()
	}
	baseRate := 0.0
	for _, u := range units {
		baseRate += u.Observed
	}
	baseRate /= float64(len(units))
	reference := baseRate * (1 - baseRate)
	if reference == 0 {
		return verify.Undefined()
	}
	return 1 - BrierScore(units)/reference
}

// ReliabilityBin is one populated bin of a reliability diagram
type ReliabilityBin struct {
	MeanForecast float64 `json:"mean_forecast"`
	ObservedFreq float64 `json:"observed_freq"`
	Count        int     `json:"count"`
	LowerEdge    float64 `json:"lower_edge"`
	UpperEdge    float64 `json:"upper_edge"`
}

// Reliability bins forecast probabilities into numBins equal-width bins
// and reports per-bin mean forecast probability, observed relative
// frequency and count. Empty bins are omitted rather than reported as a
// zero-division artifact.
func Reliability(units []verify.VerificationUnit, numBins int) []ReliabilityBin {
	if numBins < 1 || len(units) == 0 {
		return nil
	}
	forecasts := make([][]float64, numBins)
	observed := make([][]float64, numBins)
	for _, u := range units {
		idx := int(u.Forecast * float64(numBins))
		if idx == numBins { // probability exactly 1
			idx = numBins - 1
		}
		forecasts[idx] = append(forecasts[idx], u.Forecast)
		observed[idx] = append(observed[idx], u.Observed)
	}

	width := 1.0 / float64(numBins)
	bins := make([]ReliabilityBin, 0, numBins)
	for i := 0; i < numBins; i++ {
		if len(forecasts[i]) == 0 {
			continue
		}
		meanF, _ := stats.Mean(forecasts[i])
		meanO, _ := stats.Mean(observed[i])
		bins = append(bins, ReliabilityBin{
			MeanForecast: meanF,
			ObservedFreq: meanO,
			Count:        len(forecasts[i]),
			LowerEdge:    float64(i) * width,
			UpperEdge:    float64(i+1) * width,
		})
	}
	return bins
}

// ROCPoint is one point of the relative operating characteristic curve
type ROCPoint struct {
	Threshold      float64                   `json:"threshold"`
	HitRate        float64                   `json:"hit_rate"`
	FalseAlarmRate float64                   `json:"false_alarm_rate"`
	HitRateCI      verify.ConfidenceInterval `json:"hit_rate_ci"`
	FalseAlarmCI   verify.ConfidenceInterval `json:"false_alarm_ci"`
}

// ROCCurve sweeps probability thresholds over the forecast distribution and
// reports the (false alarm rate, hit rate) pair at each, with binomial
// proportion confidence bands at the given level. Thresholds with an
// undefined rate are skipped.
func ROCCurve(units []verify.VerificationUnit, numThresholds int, level float64) []ROCPoint {
	if len(units) == 0 || numThresholds < 1 {
		return nil
	}
	sorted := make([]float64, len(units))
	for i, u := range units {
		sorted[i] = u.Forecast
	}
	sort.Float64s(sorted)

	lo, hi := sorted[0], sorted[len(sorted)-1]
	step := (hi - lo) / float64(numThresholds+1)

	var eventTotal, nonEventTotal int
	for _, u := range units {
		if u.Observed >= 1 {
			eventTotal++
		} else {
			nonEventTotal++
		}
	}

	points := make([]ROCPoint, 0, numThresholds+1)
	for i := 0; i <= numThresholds; i++ {
		thresh := lo + float64(i)*step
		var hits, falseAlarms int
		for _, u := range units {
			if u.Forecast >= thresh {
				if u.Observed >= 1 {
					hits++
				} else {
					falseAlarms++
				}
			}
		}
		if eventTotal == 0 || nonEventTotal == 0 {
			continue
		}
		hitRate := float64(hits) / float64(eventTotal)
		faRate := float64(falseAlarms) / float64(nonEventTotal)
		points = append(points, ROCPoint{
			Threshold:      thresh,
			HitRate:        hitRate,
			FalseAlarmRate: faRate,
			HitRateCI:      proportionCI(hitRate, eventTotal, level),
			FalseAlarmCI:   proportionCI(faRate, nonEventTotal, level),
		})
	}
	return points
}

// proportionCI is a binomial proportion confidence interval, used when the
// sample estimate is itself a probability measure.
func proportionCI(p float64, n int, level float64) verify.ConfidenceInterval {
	if n == 0 {
		return verify.ConfidenceInterval{Lower: verify.Undefined(), Upper: verify.Undefined(), Level: level}
	}
	z := unitNormal.Quantile(1 - (1-level)/2)
	nf := float64(n)
	denom := 1 + z*z/nf
	center := p + z*z/(2*nf)
	spread := z * math.Sqrt((p*(1-p)+z*z/(4*nf))/nf)
	return verify.ConfidenceInterval{
		Lower: (center - spread) / denom,
		Upper: (center + spread) / denom,
		Level: level,
	}
}
