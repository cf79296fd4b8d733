package align

import (
	"math"

	"github.com/jrholliday/VeriPy/domain/verify"
	"github.com/jrholliday/VeriPy/internal/errors"
)

// Report summarizes what alignment kept and dropped. Dropped tallies are
// carried through to score results so undefined values can be audited.
type Report struct {
	Matched          int `json:"matched"`
	DroppedMissing   int `json:"dropped_missing"`
	DroppedUnmatched int `json:"dropped_unmatched"`
}

// Dropped returns the total number of excluded pairs
func (r Report) Dropped() int {
	return r.DroppedMissing + r.DroppedUnmatched
}

// Align matches a forecast series against an observation series keyed by
// identical (space, time, lead) coordinates and produces verification units
// in forecast-series order.
//
// Under verify.AlignStrict any coordinate-set mismatch is an alignment
// error. Under verify.AlignIntersect only common keys are kept and the rest
// are tallied in the report. Missing (NaN) values exclude the unit and are
// tallied, unless missing is verify.MissingError, in which case the first
// missing value aborts the run. The engine never substitutes a default.
func Align(forecast, observed *verify.Series, policy verify.AlignPolicy, missing verify.MissingPolicy) ([]verify.VerificationUnit, *Report, error) {
	if forecast == nil || observed == nil {
		return nil, nil, errors.Alignment("both forecast and observation series are required")
	}
	if !forecast.Kind.Valid() {
		return nil, nil, errors.Configf("unrecognized forecast kind %q", forecast.Kind)
	}

	obsByKey := make(map[verify.UnitKey]float64, len(observed.Points))
	for _, p := range observed.Points {
		if _, dup := obsByKey[p.Key]; dup {
			return nil, nil, errors.Alignmentf("duplicate observation coordinate %s", p.Key)
		}
		obsByKey[p.Key] = p.Value
	}

	seen := make(map[verify.UnitKey]bool, len(forecast.Points))
	for _, p := range forecast.Points {
		if seen[p.Key] {
			return nil, nil, errors.Alignmentf("duplicate forecast coordinate %s", p.Key)
		}
		seen[p.Key] = true
	}

	if policy == verify.AlignStrict {
		if len(forecast.Points) != len(observed.Points) {
			return nil, nil, errors.Alignmentf("coordinate sets differ in length: forecast=%d observed=%d",
				len(forecast.Points), len(observed.Points))
		}
		for _, p := range forecast.Points {
			if _, ok := obsByKey[p.Key]; !ok {
				return nil, nil, errors.Alignmentf("forecast coordinate %s has no matching observation", p.Key)
			}
		}
	}

	report := &Report{}
	units := make([]verify.VerificationUnit, 0, len(forecast.Points))
	memberLen := -1

	for _, p := range forecast.Points {
		obs, ok := obsByKey[p.Key]
		if !ok {
			report.DroppedUnmatched++
			continue
		}

		if forecast.Kind == verify.KindEnsemble {
			if len(p.Members) == 0 {
				return nil, nil, errors.Domainf("ensemble forecast at %s has no members", p.Key)
			}
			if memberLen == -1 {
				memberLen = len(p.Members)
			} else if len(p.Members) != memberLen {
				return nil, nil, errors.Domainf("ensemble size changed at %s: got %d members, expected %d",
					p.Key, len(p.Members), memberLen)
			}
		}

		if isMissing(forecast.Kind, p, obs) {
			if missing == verify.MissingError {
				return nil, nil, errors.Domainf("missing value at coordinate %s", p.Key)
			}
			report.DroppedMissing++
			continue
		}

		members := p.Members
		if len(members) > 0 {
			members = append([]float64(nil), members...)
		}
		units = append(units, verify.VerificationUnit{
			Key:      p.Key,
			Forecast: p.Value,
			Members:  members,
			Observed: obs,
		})
		report.Matched++
	}

	// Observations with no forecast counterpart are dropped under intersect
	report.DroppedUnmatched += len(observed.Points) - (report.Matched + report.DroppedMissing)

	return units, report, nil
}

func isMissing(kind verify.ForecastKind, p verify.SeriesPoint, obs float64) bool {
	if math.IsNaN(obs) {
		return true
	}
	if kind == verify.KindEnsemble {
		for _, m := range p.Members {
			if math.IsNaN(m) {
				return true
			}
		}
		return false
	}
	return math.IsNaN(p.Value)
}
