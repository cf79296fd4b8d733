package engine

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/jrholliday/VeriPy/adapters/stats/scorers"
	"github.com/jrholliday/VeriPy/domain/core"
	"github.com/jrholliday/VeriPy/domain/verify"
	"github.com/jrholliday/VeriPy/internal"
	"github.com/jrholliday/VeriPy/internal/errors"
	"github.com/jrholliday/VeriPy/ports"
)

// Engine runs the metric computation for one verification run: partition
// into scope groups, dispatch through the registry, aggregate under the
// declared policy, and attach bootstrap intervals. Scope groups are scored
// in parallel; units are read-only once aligned so no locking is needed.
type Engine struct {
	registry  *Registry
	resampler *Resampler
	rng       ports.RNGPort
	logger    *internal.Logger
	workers   int
}

// New creates an engine with the built-in metric registry
func New(rngPort ports.RNGPort) *Engine {
	return &Engine{
		registry:  NewRegistry(),
		resampler: NewResampler(rngPort),
		rng:       rngPort,
		logger:    internal.DefaultLogger,
		workers:   runtime.GOMAXPROCS(0),
	}
}

// Registry exposes the metric registry for callers that list or select metrics
func (e *Engine) Registry() *Registry {
	return e.registry
}

// SetWorkers bounds scope-level and resample parallelism
func (e *Engine) SetWorkers(n int) {
	if n > 0 {
		e.workers = n
		e.resampler.SetWorkers(n)
	}
}

// RunRequest carries one run's aligned units and validated options
type RunRequest struct {
	RunID   core.RunID
	Kind    verify.ForecastKind
	Units   []verify.VerificationUnit
	Opts    verify.Options
	Dropped int // units excluded during alignment, carried into results
}

// Diagnostics holds the non-scalar outputs of a run
type Diagnostics struct {
	Tables        map[string]verify.ContingencyTable `json:"tables,omitempty"`
	RankHistogram []int                              `json:"rank_histogram,omitempty"`
	Reliability   []scorers.ReliabilityBin           `json:"reliability,omitempty"`
	ROC           []scorers.ROCPoint                 `json:"roc,omitempty"`
}

// RunResult is the complete output of one engine run
type RunResult struct {
	Results     []verify.ScoreResult `json:"results"`
	Diagnostics Diagnostics          `json:"diagnostics"`
}

// Scope labels for the cross-group summary rows. The two aggregation
// policies are never mixed: a run emits one or the other.
const (
	ScopePooled  = "pooled"
	ScopeAverage = "average"
)

// Run executes the verification computation. Undefined scores come back as
// NaN-valued results; only configuration, domain and resampling failures
// return errors.
func (e *Engine) Run(ctx context.Context, req RunRequest) (*RunResult, error) {
	if !req.Kind.Valid() {
		return nil, errors.Configf("unrecognized forecast kind %q", req.Kind)
	}
	if err := req.Opts.Validate(); err != nil {
		return nil, err
	}
	if req.Kind == verify.KindCategorical && req.Opts.Thresholds == nil {
		return nil, errors.Config("categorical verification requires a threshold set")
	}
	if req.Kind == verify.KindProbabilistic {
		if err := scorers.ValidateProbabilistic(req.Units); err != nil {
			return nil, err
		}
	}

	metrics, err := e.registry.Select(req.Opts.Metrics, req.Kind)
	if err != nil {
		return nil, err
	}

	groups := Partition(req.Units, req.Opts.Grouping, req.Opts.Policy)

	// Score every (group, metric) pair. Groups are independent; run them
	// on a bounded worker pool.
	groupScores := make([][]float64, len(groups))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for i := range groups {
		i := i
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			row := make([]float64, len(metrics))
			for j, m := range metrics {
				row[j] = e.score(m, groups[i].Units, req.Opts.Thresholds)
			}
			groupScores[i] = row
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := &RunResult{}
	perGroupRows := !(req.Opts.Grouping == verify.GroupNone && req.Opts.Policy == verify.PolicyPerUnitAveraged)

	for j, m := range metrics {
		threshold := e.thresholdTag(m, req.Opts.Thresholds)

		if perGroupRows {
			for i, grp := range groups {
				row := verify.ScoreResult{
					Metric:    m.Name,
					Scope:     grp.Key,
					Threshold: threshold,
					Value:     groupScores[i][j],
					N:         len(grp.Units),
					Dropped:   req.Dropped,
				}
				e.attachCI(ctx, req, &row, m, grp.Units)
				result.Results = append(result.Results, row)
			}
		}

		switch req.Opts.Policy {
		case verify.PolicyPooled:
			if len(groups) > 1 {
				row := verify.ScoreResult{
					Metric:    m.Name,
					Scope:     ScopePooled,
					Threshold: threshold,
					Value:     e.score(m, req.Units, req.Opts.Thresholds),
					N:         len(req.Units),
					Dropped:   req.Dropped,
				}
				e.attachCI(ctx, req, &row, m, req.Units)
				result.Results = append(result.Results, row)
			}
		case verify.PolicyPerUnitAveraged:
			column := make([]float64, len(groups))
			for i := range groups {
				column[i] = groupScores[i][j]
			}
			mean, excluded := AverageDefined(column)
			row := verify.ScoreResult{
				Metric:    m.Name,
				Scope:     ScopeAverage,
				Threshold: threshold,
				Value:     mean,
				N:         len(req.Units),
				Dropped:   req.Dropped,
				Excluded:  excluded,
			}
			e.attachAverageCI(ctx, req, &row, m, groups)
			result.Results = append(result.Results, row)
		}
	}

	e.addDiagnostics(ctx, req, groups, result)
	return result, nil
}

// score computes one metric over one scope's units
func (e *Engine) score(m Metric, units []verify.VerificationUnit, thresholds *verify.ThresholdSet) float64 {
	if m.NeedsTable() {
		return m.Table(BuildTable(units, thresholds))
	}
	return m.Units(units)
}

func (e *Engine) thresholdTag(m Metric, thresholds *verify.ThresholdSet) *float64 {
	if !m.NeedsTable() || thresholds == nil {
		return nil
	}
	t := thresholds.First()
	return &t
}

// attachCI adds a bootstrap interval over the row's own units. A scope too
// small to resample keeps its value and loses only the interval; that is a
// per-scope condition, not a run failure.
func (e *Engine) attachCI(ctx context.Context, req RunRequest, row *verify.ScoreResult, m Metric, units []verify.VerificationUnit) {
	if req.Opts.BootstrapResamples < 1 {
		return
	}
	ci, err := e.resampler.ConfidenceInterval(ctx, ResampleRequest{
		RunID: req.RunID.String(),
		Stage: m.Name + "/" + row.Scope,
		N:     len(units),
		Score: func(indices []int) float64 {
			sample := make([]verify.VerificationUnit, len(indices))
			for k, idx := range indices {
				sample[k] = units[idx]
			}
			return e.score(m, sample, req.Opts.Thresholds)
		},
		B:     req.Opts.BootstrapResamples,
		Level: req.Opts.ConfidenceLevel,
		Seed:  req.Opts.RandomSeed,
	})
	if err != nil {
		if errors.IsInsufficientData(err) {
			e.logger.Warn("skipping bootstrap for %s scope %s: %v", m.Name, row.Scope, err)
			return
		}
		e.logger.Error("bootstrap failed for %s scope %s: %v", m.Name, row.Scope, err)
		return
	}
	row.CI = ci
}

// attachAverageCI resamples at the scope-group level: the averaged
// statistic's exchangeable unit is the group, and resampling groups keeps
// the within-group dependence intact.
func (e *Engine) attachAverageCI(ctx context.Context, req RunRequest, row *verify.ScoreResult, m Metric, groups []ScopeGroup) {
	if req.Opts.BootstrapResamples < 1 {
		return
	}
	ci, err := e.resampler.ConfidenceInterval(ctx, ResampleRequest{
		RunID: req.RunID.String(),
		Stage: m.Name + "/" + ScopeAverage,
		N:     len(groups),
		Score: func(indices []int) float64 {
			scores := make([]float64, len(indices))
			for k, idx := range indices {
				scores[k] = e.score(m, groups[idx].Units, req.Opts.Thresholds)
			}
			mean, _ := AverageDefined(scores)
			return mean
		},
		B:     req.Opts.BootstrapResamples,
		Level: req.Opts.ConfidenceLevel,
		Seed:  req.Opts.RandomSeed,
	})
	if err != nil {
		if errors.IsInsufficientData(err) {
			e.logger.Warn("skipping bootstrap for %s scope %s: %v", m.Name, row.Scope, err)
			return
		}
		e.logger.Error("bootstrap failed for %s scope %s: %v", m.Name, row.Scope, err)
		return
	}
	row.CI = ci
}

// addDiagnostics fills the non-scalar outputs: per-scope contingency
// tables and multi-category scores for categorical runs, reliability and
// ROC data for probabilistic runs, the rank histogram for ensemble runs.
func (e *Engine) addDiagnostics(ctx context.Context, req RunRequest, groups []ScopeGroup, result *RunResult) {
	switch req.Kind {
	case verify.KindCategorical:
		result.Diagnostics.Tables = make(map[string]verify.ContingencyTable, len(groups))
		for _, grp := range groups {
			result.Diagnostics.Tables[grp.Key] = BuildTable(grp.Units, req.Opts.Thresholds)
		}
		if req.Opts.Thresholds.Len() > 1 {
			e.addMultiCategory(req, groups, result)
		}
	case verify.KindProbabilistic:
		result.Diagnostics.Reliability = scorers.Reliability(req.Units, req.Opts.ReliabilityBins)
		result.Diagnostics.ROC = scorers.ROCCurve(req.Units, req.Opts.ReliabilityBins, req.Opts.ConfidenceLevel)
	case verify.KindEnsemble:
		stream, err := e.rng.Stream(ctx, req.RunID.String(), "rank-histogram", "", req.Opts.RandomSeed)
		if err != nil {
			e.logger.Error("rank histogram RNG stream: %v", err)
			return
		}
		result.Diagnostics.RankHistogram = scorers.RankHistogram(req.Units, stream)
	}
}

// addMultiCategory emits the KxK summary rows under the run's declared
// aggregation policy, so pooled and averaged scopes never mix in one report.
func (e *Engine) addMultiCategory(req RunRequest, groups []ScopeGroup, result *RunResult) {
	multiMetrics := []struct {
		name  string
		score func(*verify.MultiCategoryTable) float64
	}{
		{"multi_accuracy", scorers.MultiPercentCorrect},
		{"multi_hss", scorers.MultiHSS},
		{"multi_pss", scorers.MultiPSS},
	}

	switch req.Opts.Policy {
	case verify.PolicyPerUnitAveraged:
		for _, mm := range multiMetrics {
			column := make([]float64, len(groups))
			for i, grp := range groups {
				column[i] = mm.score(BuildMultiTable(grp.Units, req.Opts.Thresholds))
			}
			mean, excluded := AverageDefined(column)
			result.Results = append(result.Results, verify.ScoreResult{
				Metric:   mm.name,
				Scope:    ScopeAverage,
				Value:    mean,
				N:        len(req.Units),
				Dropped:  req.Dropped,
				Excluded: excluded,
			})
		}
	default:
		multi := BuildMultiTable(req.Units, req.Opts.Thresholds)
		for _, mm := range multiMetrics {
			result.Results = append(result.Results, verify.ScoreResult{
				Metric:  mm.name,
				Scope:   ScopePooled,
				Value:   mm.score(multi),
				N:       len(req.Units),
				Dropped: req.Dropped,
			})
		}
	}
}
