package scorers

import (
	"math"
	"testing"

	"github.com/jrholliday/VeriPy/domain/verify"
)

func pairs(values ...float64) []verify.VerificationUnit {
	if len(values)%2 != 0 {
		panic("pairs wants forecast/observed couples")
	}
	units := make([]verify.VerificationUnit, 0, len(values)/2)
	for i := 0; i < len(values); i += 2 {
		units = append(units, verify.VerificationUnit{Forecast: values[i], Observed: values[i+1]})
	}
	return units
}

func TestContinuousScores_PerfectForecast(t *testing.T) {
	units := pairs(1, 1, 2, 2, 3, 3, 4, 4)

	approx(t, "MeanError", MeanError(units), 0, 1e-12)
	approx(t, "MAE", MAE(units), 0, 1e-12)
	approx(t, "MSE", MSE(units), 0, 1e-12)
	approx(t, "RMSE", RMSE(units), 0, 1e-12)
	approx(t, "MultiplicativeBias", MultiplicativeBias(units), 1, 1e-12)
	approx(t, "Correlation", Correlation(units), 1, 1e-12)
}

func TestContinuousScores_KnownErrors(t *testing.T) {
	// forecast errors: +1, -1, +3, -3
	units := pairs(2, 1, 1, 2, 5, 2, 0, 3)

	approx(t, "MeanError", MeanError(units), 0, 1e-12)
	approx(t, "MAE", MAE(units), 2, 1e-12)
	approx(t, "MSE", MSE(units), 5, 1e-12)
	approx(t, "RMSE", RMSE(units), math.Sqrt(5), 1e-12)
	approx(t, "MultiplicativeBias", MultiplicativeBias(units), 1, 1e-12)
}

func TestContinuousScores_SampleSizeFloors(t *testing.T) {
	single := pairs(3, 1)

	approx(t, "MeanError", MeanError(single), 2, 1e-12)
	approx(t, "MAE", MAE(single), 2, 1e-12)
	approx(t, "MSE", MSE(single), verify.Undefined(), 0)
	approx(t, "RMSE", RMSE(single), verify.Undefined(), 0)
	approx(t, "Correlation", Correlation(single), verify.Undefined(), 0)

	var none []verify.VerificationUnit
	approx(t, "MeanError", MeanError(none), verify.Undefined(), 0)
	approx(t, "MAE", MAE(none), verify.Undefined(), 0)
	approx(t, "MultiplicativeBias", MultiplicativeBias(none), verify.Undefined(), 0)
}

func TestMultiplicativeBias_ZeroObservedTotal(t *testing.T) {
	units := pairs(1, 1, 1, -1)
	approx(t, "MultiplicativeBias", MultiplicativeBias(units), verify.Undefined(), 0)
}

func TestCorrelation_ZeroVarianceUndefined(t *testing.T) {
	units := pairs(5, 1, 5, 2, 5, 3)
	approx(t, "Correlation", Correlation(units), verify.Undefined(), 0)
}
