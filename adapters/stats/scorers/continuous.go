package scorers

import (
	"math"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/stat"

	"github.com/jrholliday/VeriPy/domain/verify"
)

// Continuous scores operate directly on the aligned numeric pairs of a
// scope. MeanError and MAE are defined for n >= 1; the second-moment
// statistics (MSE, RMSE, correlation) need n >= 2. Everything is NaN at n = 0.

// MeanError is the mean of forecast-minus-observed differences
func MeanError(units []verify.VerificationUnit) float64 {
	if len(units) == 0 {
		return verify.Undefined()
	}
	mean, err := stats.Mean(errorSeries(units, false))
	if err != nil {
		return verify.Undefined()
	}
	return mean
}

// MAE is the mean absolute error
func MAE(units []verify.VerificationUnit) float64 {
	if len(units) == 0 {
		return verify.Undefined()
	}
	mean, err := stats.Mean(errorSeries(units, true))
	if err != nil {
		return verify.Undefined()
	}
	return mean
}

// MSE is the mean squared error
func MSE(units []verify.VerificationUnit) float64 {
	if len(units) < 2 {
		return verify.Undefined()
	}
	sum := 0.0
	for _, u := range units {
		diff := u.Forecast - u.Observed
		sum += diff * diff
	}
	return sum / float64(len(units))
}

// RMSE is the root mean squared error
func RMSE(units []verify.VerificationUnit) float64 {
	mse := MSE(units)
	if math.IsNaN(mse) {
		return verify.Undefined()
	}
	return math.Sqrt(mse)
}

// MultiplicativeBias is the ratio of forecast to observed totals
func MultiplicativeBias(units []verify.VerificationUnit) float64 {
	if len(units) == 0 {
		return verify.Undefined()
	}
	var sumF, sumO float64
	for _, u := range units {
		sumF += u.Forecast
		sumO += u.Observed
	}
	if sumO == 0 {
		return verify.Undefined()
	}
	return sumF / sumO
}

// Correlation is the Pearson correlation coefficient of forecasts against
// observations. Undefined below 2 units or when either side has zero variance.
func Correlation(units []verify.VerificationUnit) float64 {
	if len(units) < 2 {
		return verify.Undefined()
	}
	f := make([]float64, len(units))
	o := make([]float64, len(units))
	for i, u := range units {
		f[i] = u.Forecast
		o[i] = u.Observed
	}
	r := stat.Correlation(f, o, nil)
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return verify.Undefined()
	}
	return r
}

func errorSeries(units []verify.VerificationUnit, absolute bool) []float64 {
	diffs := make([]float64, len(units))
	for i, u := range units {
		d := u.Forecast - u.Observed
		if absolute {
			d = math.Abs(d)
		}
		diffs[i] = d
	}
	return diffs
}
