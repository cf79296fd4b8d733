package scorers

import (
	"math"
	"math/rand"

	"github.com/jrholliday/VeriPy/domain/verify"
)

// Ensemble scores take an ordered sequence of member values per unit
// against a scalar observation.

// EnsembleMeanUnits collapses each ensemble to its mean so the continuous
// scorers can treat it as a deterministic forecast
func EnsembleMeanUnits(units []verify.VerificationUnit) []verify.VerificationUnit {
	collapsed := make([]verify.VerificationUnit, len(units))
	for i, u := range units {
		sum := 0.0
		for _, m := range u.Members {
			sum += m
		}
		collapsed[i] = verify.VerificationUnit{
			Key:      u.Key,
			Forecast: sum / float64(len(u.Members)),
			Observed: u.Observed,
		}
	}
	return collapsed
}

// EnsembleMeanError is the mean error of the ensemble-mean forecast
func EnsembleMeanError(units []verify.VerificationUnit) float64 {
	if len(units) == 0 {
		return verify.Undefined()
	}
	return MeanError(EnsembleMeanUnits(units))
}

// EnsembleRMSE is the RMSE of the ensemble-mean forecast
func EnsembleRMSE(units []verify.VerificationUnit) float64 {
	if len(units) == 0 {
		return verify.Undefined()
	}
	return RMSE(EnsembleMeanUnits(units))
}

// RankHistogram tallies, for every unit, the rank of the observation within
// the sorted ensemble members into M+1 bins. Ties are broken by assigning a
// uniformly-random rank among the tied positions; the caller supplies a
// seeded source so the tally is reproducible.
func RankHistogram(units []verify.VerificationUnit, rng *rand.Rand) []int {
	if len(units) == 0 {
		return nil
	}
	m := len(units[0].Members)
	bins := make([]int, m+1)
	for _, u := range units {
		below, tied := 0, 0
		for _, member := range u.Members {
			switch {
			case member < u.Observed:
				below++
			case member == u.Observed:
				tied++
			}
		}
		rank := below
		if tied > 0 {
			rank += rng.Intn(tied + 1)
		}
		bins[rank]++
	}
	return bins
}

// CRPS estimates the Continuous Ranked Probability Score with the standard
// ensemble formula, averaged over the scope:
//
//	CRPS = (1/M)Σ|x_i - y| - (1/(2M²))ΣΣ|x_i - x_j|
//
// With a single member the spread term is zero and CRPS reduces to the
// absolute error.
func CRPS(units []verify.VerificationUnit) float64 {
	if len(units) == 0 {
		return verify.Undefined()
	}
	total := 0.0
	for _, u := range units {
		m := float64(len(u.Members))
		if m == 0 {
			return verify.Undefined()
		}
		var accuracy, spread float64
		for i, xi := range u.Members {
			accuracy += math.Abs(xi - u.Observed)
			for _, xj := range u.Members[i+1:] {
				spread += math.Abs(xi - xj)
			}
		}
		// The pairwise sum above covers i<j once; the formula's double sum
		// counts each unordered pair twice.
		total += accuracy/m - spread/(m*m)
	}
	return total / float64(len(units))
}
