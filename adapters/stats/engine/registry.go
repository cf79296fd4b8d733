package engine

import (
	"github.com/jrholliday/VeriPy/adapters/stats/scorers"
	"github.com/jrholliday/VeriPy/domain/verify"
	"github.com/jrholliday/VeriPy/internal/errors"
)

// Metric describes one registered score: the forecast kind it applies to
// and the computation over its required input. Exactly one of Table and
// Units is set; categorical scores consume a contingency table, the other
// families consume the scope's verification units directly.
type Metric struct {
	Name        string
	Kind        verify.ForecastKind
	Description string
	Table       func(verify.ContingencyTable) float64
	Units       func([]verify.VerificationUnit) float64
}

// NeedsTable reports whether the metric consumes a contingency table
func (m Metric) NeedsTable() bool {
	return m.Table != nil
}

// Registry maps metric names to their implementing scorer. It is the
// dispatch point for all callers: nothing inspects forecast values at
// runtime to decide which formula applies.
type Registry struct {
	metrics map[string]Metric
	order   []string
}

// NewRegistry creates a registry populated with every built-in metric
func NewRegistry() *Registry {
	r := &Registry{metrics: make(map[string]Metric)}

	// Contingency-table scores
	r.register(Metric{Name: "pod", Kind: verify.KindCategorical, Description: "probability of detection (hit rate)", Table: scorers.POD})
	r.register(Metric{Name: "far", Kind: verify.KindCategorical, Description: "false alarm ratio", Table: scorers.FAR})
	r.register(Metric{Name: "pofd", Kind: verify.KindCategorical, Description: "probability of false detection", Table: scorers.POFD})
	r.register(Metric{Name: "csi", Kind: verify.KindCategorical, Description: "critical success index (threat score)", Table: scorers.CSI})
	r.register(Metric{Name: "base_rate", Kind: verify.KindCategorical, Description: "observed event frequency", Table: scorers.BaseRate})
	r.register(Metric{Name: "pfo", Kind: verify.KindCategorical, Description: "probability of a forecast of occurrence", Table: scorers.PFO})
	r.register(Metric{Name: "accuracy", Kind: verify.KindCategorical, Description: "percent correct", Table: scorers.PercentCorrect})
	r.register(Metric{Name: "bias", Kind: verify.KindCategorical, Description: "frequency bias", Table: scorers.FrequencyBias})
	r.register(Metric{Name: "hss", Kind: verify.KindCategorical, Description: "Heidke skill score", Table: scorers.HSS})
	r.register(Metric{Name: "ets", Kind: verify.KindCategorical, Description: "equitable threat score", Table: scorers.ETS})
	r.register(Metric{Name: "pss", Kind: verify.KindCategorical, Description: "Peirce skill score", Table: scorers.PSS})
	r.register(Metric{Name: "odds_ratio", Kind: verify.KindCategorical, Description: "odds ratio", Table: scorers.OddsRatio})
	r.register(Metric{Name: "orss", Kind: verify.KindCategorical, Description: "odds ratio skill score (Yule's Q)", Table: scorers.OddsRatioSkill})
	r.register(Metric{Name: "eds", Kind: verify.KindCategorical, Description: "extreme dependency score", Table: scorers.EDS})
	r.register(Metric{Name: "discrimination", Kind: verify.KindCategorical, Description: "discrimination distance", Table: scorers.DiscriminationDistance})
	r.register(Metric{Name: "roc_area", Kind: verify.KindCategorical, Description: "area under the modelled ROC", Table: scorers.ROCArea})

	// Continuous scores
	r.register(Metric{Name: "mean_error", Kind: verify.KindContinuous, Description: "mean error", Units: scorers.MeanError})
	r.register(Metric{Name: "mae", Kind: verify.KindContinuous, Description: "mean absolute error", Units: scorers.MAE})
	r.register(Metric{Name: "mse", Kind: verify.KindContinuous, Description: "mean squared error", Units: scorers.MSE})
	r.register(Metric{Name: "rmse", Kind: verify.KindContinuous, Description: "root mean squared error", Units: scorers.RMSE})
	r.register(Metric{Name: "mult_bias", Kind: verify.KindContinuous, Description: "multiplicative bias", Units: scorers.MultiplicativeBias})
	r.register(Metric{Name: "correlation", Kind: verify.KindContinuous, Description: "Pearson correlation coefficient", Units: scorers.Correlation})

	// Probabilistic scores
	r.register(Metric{Name: "brier", Kind: verify.KindProbabilistic, Description: "Brier score", Units: scorers.BrierScore})
	r.register(Metric{Name: "brier_skill", Kind: verify.KindProbabilistic, Description: "Brier skill score vs. sample climatology", Units: scorers.BrierSkillScore})

	// Ensemble scores
	r.register(Metric{Name: "ens_mean_error", Kind: verify.KindEnsemble, Description: "ensemble-mean mean error", Units: scorers.EnsembleMeanError})
	r.register(Metric{Name: "ens_rmse", Kind: verify.KindEnsemble, Description: "ensemble-mean RMSE", Units: scorers.EnsembleRMSE})
	r.register(Metric{Name: "crps", Kind: verify.KindEnsemble, Description: "continuous ranked probability score", Units: scorers.CRPS})

	return r
}

func (r *Registry) register(m Metric) {
	r.metrics[m.Name] = m
	r.order = append(r.order, m.Name)
}

// Lookup returns the metric registered under name
func (r *Registry) Lookup(name string) (Metric, bool) {
	m, ok := r.metrics[name]
	return m, ok
}

// List returns all metrics in registration order
func (r *Registry) List() []Metric {
	out := make([]Metric, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.metrics[name])
	}
	return out
}

// ForKind returns the metrics applicable to one forecast kind,
// in registration order
func (r *Registry) ForKind(kind verify.ForecastKind) []Metric {
	out := make([]Metric, 0, len(r.order))
	for _, name := range r.order {
		if m := r.metrics[name]; m.Kind == kind {
			out = append(out, m)
		}
	}
	return out
}

// Select resolves requested metric names against the registry, restricted
// to the run's forecast kind. An empty request selects every metric of the
// kind. Unknown names and kind mismatches are config errors.
func (r *Registry) Select(names []string, kind verify.ForecastKind) ([]Metric, error) {
	if len(names) == 0 {
		return r.ForKind(kind), nil
	}
	out := make([]Metric, 0, len(names))
	for _, name := range names {
		m, ok := r.Lookup(name)
		if !ok {
			return nil, errors.Configf("unknown metric %q", name)
		}
		if m.Kind != kind {
			return nil, errors.Configf("metric %q applies to %s forecasts, run is %s", name, m.Kind, kind)
		}
		out = append(out, m)
	}
	return out, nil
}
