package engine

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/jrholliday/VeriPy/adapters/rng"
	"github.com/jrholliday/VeriPy/domain/verify"
	"github.com/jrholliday/VeriPy/internal/errors"
)

func unitAt(space string, hour int, forecast, observed float64) verify.VerificationUnit {
	return verify.VerificationUnit{
		Key: verify.UnitKey{
			Space: space,
			Time:  time.Date(2024, 3, 1, hour, 0, 0, 0, time.UTC),
		},
		Forecast: forecast,
		Observed: observed,
	}
}

func findResult(t *testing.T, results []verify.ScoreResult, metric, scope string) verify.ScoreResult {
	t.Helper()
	for _, r := range results {
		if r.Metric == metric && r.Scope == scope {
			return r
		}
	}
	t.Fatalf("no result for metric %q scope %q in %+v", metric, scope, results)
	return verify.ScoreResult{}
}

func baseOptions() verify.Options {
	opts := verify.DefaultOptions()
	if err := opts.Normalize(); err != nil {
		panic(err)
	}
	return opts
}

func TestRun_PooledWithGrouping(t *testing.T) {
	units := []verify.VerificationUnit{
		unitAt("a", 0, 2, 1), // error +1
		unitAt("a", 6, 3, 1), // error +2
		unitAt("b", 0, 1, 2), // error -1
	}
	opts := baseOptions()
	opts.Grouping = verify.GroupSpace
	opts.Metrics = []string{"mean_error"}

	eng := New(rng.New())
	result, err := eng.Run(context.Background(), RunRequest{
		Kind:  verify.KindContinuous,
		Units: units,
		Opts:  opts,
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	a := findResult(t, result.Results, "mean_error", "a")
	if a.Value != 1.5 || a.N != 2 {
		t.Fatalf("scope a: got %v (n=%d), want 1.5 (n=2)", a.Value, a.N)
	}
	b := findResult(t, result.Results, "mean_error", "b")
	if b.Value != -1 {
		t.Fatalf("scope b: got %v, want -1", b.Value)
	}
	pooled := findResult(t, result.Results, "mean_error", ScopePooled)
	if math.Abs(pooled.Value-2.0/3.0) > 1e-12 || pooled.N != 3 {
		t.Fatalf("pooled: got %v (n=%d), want 2/3 (n=3)", pooled.Value, pooled.N)
	}
}

func TestRun_PerUnitAveragedWithGrouping(t *testing.T) {
	units := []verify.VerificationUnit{
		unitAt("a", 0, 2, 1),
		unitAt("a", 6, 3, 1),
		unitAt("b", 0, 1, 2),
	}
	opts := baseOptions()
	opts.Grouping = verify.GroupSpace
	opts.Policy = verify.PolicyPerUnitAveraged
	opts.Metrics = []string{"mean_error"}

	eng := New(rng.New())
	result, err := eng.Run(context.Background(), RunRequest{
		Kind:  verify.KindContinuous,
		Units: units,
		Opts:  opts,
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	// mean of the two group scores 1.5 and -1, not the pooled value
	avg := findResult(t, result.Results, "mean_error", ScopeAverage)
	if math.Abs(avg.Value-0.25) > 1e-12 {
		t.Fatalf("average: got %v, want 0.25", avg.Value)
	}
}

func TestRun_AveragedExcludesUndefinedScopes(t *testing.T) {
	// correlation is undefined in a single-unit scope; scope b contributes
	// nothing and is counted as excluded
	units := []verify.VerificationUnit{
		unitAt("a", 0, 1, 1),
		unitAt("a", 6, 2, 2),
		unitAt("a", 12, 3, 3),
		unitAt("b", 0, 5, 5),
	}
	opts := baseOptions()
	opts.Grouping = verify.GroupSpace
	opts.Policy = verify.PolicyPerUnitAveraged
	opts.Metrics = []string{"correlation"}

	eng := New(rng.New())
	result, err := eng.Run(context.Background(), RunRequest{
		Kind:  verify.KindContinuous,
		Units: units,
		Opts:  opts,
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	avg := findResult(t, result.Results, "correlation", ScopeAverage)
	if avg.Value != 1 || avg.Excluded != 1 {
		t.Fatalf("average: got value=%v excluded=%d, want 1 with 1 excluded", avg.Value, avg.Excluded)
	}
}

func TestRun_CategoricalRequiresThresholds(t *testing.T) {
	opts := baseOptions()
	eng := New(rng.New())
	_, err := eng.Run(context.Background(), RunRequest{
		Kind:  verify.KindCategorical,
		Units: []verify.VerificationUnit{unitAt("a", 0, 1, 1)},
		Opts:  opts,
	})
	if !errors.IsConfig(err) {
		t.Fatalf("expected CONFIG_ERROR, got %v", err)
	}
}

func TestRun_CategoricalScoresAndDiagnostics(t *testing.T) {
	// events at >= 10: two hits, one miss, one false alarm, one correct negative
	units := []verify.VerificationUnit{
		unitAt("a", 0, 12, 15),
		unitAt("a", 6, 20, 11),
		unitAt("a", 12, 3, 14),
		unitAt("a", 18, 13, 2),
		unitAt("a", 24, 1, 0),
	}
	opts := baseOptions()
	opts.ThresholdValues = []float64{10, 50}
	if err := opts.Normalize(); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	opts.Metrics = []string{"pod", "far", "csi"}

	eng := New(rng.New())
	result, err := eng.Run(context.Background(), RunRequest{
		Kind:  verify.KindCategorical,
		Units: units,
		Opts:  opts,
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	pod := findResult(t, result.Results, "pod", "all")
	if math.Abs(pod.Value-2.0/3.0) > 1e-12 {
		t.Fatalf("pod: got %v, want 2/3", pod.Value)
	}
	if pod.Threshold == nil || *pod.Threshold != 10 {
		t.Fatalf("pod threshold tag missing: %+v", pod.Threshold)
	}

	far := findResult(t, result.Results, "far", "all")
	if math.Abs(far.Value-1.0/3.0) > 1e-12 {
		t.Fatalf("far: got %v, want 1/3", far.Value)
	}

	tbl, ok := result.Diagnostics.Tables["all"]
	if !ok || tbl.Hits != 2 || tbl.Misses != 1 || tbl.FalseAlarms != 1 || tbl.CorrectNegatives != 1 {
		t.Fatalf("unexpected diagnostic table: %+v", tbl)
	}

	// two cutpoints trigger the multi-category summary rows
	multi := findResult(t, result.Results, "multi_accuracy", ScopePooled)
	if math.IsNaN(multi.Value) {
		t.Fatal("multi-category accuracy should be defined")
	}
}

func TestRun_MultiCategoryFollowsDeclaredPolicy(t *testing.T) {
	units := []verify.VerificationUnit{
		unitAt("a", 0, 12, 15),
		unitAt("a", 6, 3, 14),
		unitAt("b", 0, 13, 2),
		unitAt("b", 6, 1, 0),
	}
	opts := baseOptions()
	opts.Policy = verify.PolicyPerUnitAveraged
	opts.Grouping = verify.GroupSpace
	opts.ThresholdValues = []float64{10, 50}
	if err := opts.Normalize(); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	opts.Metrics = []string{"pod"}

	eng := New(rng.New())
	result, err := eng.Run(context.Background(), RunRequest{
		Kind:  verify.KindCategorical,
		Units: units,
		Opts:  opts,
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	// an averaged run reports the KxK summary as an average, never pooled
	avg := findResult(t, result.Results, "multi_accuracy", ScopeAverage)
	if math.IsNaN(avg.Value) {
		t.Fatal("multi-category average should be defined")
	}
	for _, r := range result.Results {
		if r.Scope == ScopePooled {
			t.Fatalf("averaged run emitted a pooled row: %+v", r)
		}
	}
}

func TestRun_EmptyScopeYieldsUndefinedNotError(t *testing.T) {
	opts := baseOptions()
	opts.Metrics = []string{"mae"}

	eng := New(rng.New())
	result, err := eng.Run(context.Background(), RunRequest{
		Kind: verify.KindContinuous,
		Opts: opts,
	})
	if err != nil {
		t.Fatalf("empty run should not error: %v", err)
	}
	mae := findResult(t, result.Results, "mae", "all")
	if mae.Defined() {
		t.Fatalf("expected undefined MAE on empty scope, got %v", mae.Value)
	}
}

func TestRun_ProbabilisticValidation(t *testing.T) {
	opts := baseOptions()
	eng := New(rng.New())
	_, err := eng.Run(context.Background(), RunRequest{
		Kind:  verify.KindProbabilistic,
		Units: []verify.VerificationUnit{unitAt("a", 0, 1.7, 1)},
		Opts:  opts,
	})
	if !errors.IsDomain(err) {
		t.Fatalf("expected DOMAIN_ERROR for probability outside [0,1], got %v", err)
	}
}

func TestRun_EnsembleRankHistogramReproducible(t *testing.T) {
	units := make([]verify.VerificationUnit, 50)
	for i := range units {
		u := unitAt("a", i, 0, float64(i%7))
		u.Members = []float64{1, 3, 5, 7}
		units[i] = u
	}
	opts := baseOptions()
	opts.RandomSeed = 42
	opts.Metrics = []string{"crps"}

	eng := New(rng.New())
	req := RunRequest{RunID: "run-1", Kind: verify.KindEnsemble, Units: units, Opts: opts}

	first, err := eng.Run(context.Background(), req)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	second, err := eng.Run(context.Background(), req)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if len(first.Diagnostics.RankHistogram) != 5 {
		t.Fatalf("expected M+1 = 5 bins, got %d", len(first.Diagnostics.RankHistogram))
	}
	for i := range first.Diagnostics.RankHistogram {
		if first.Diagnostics.RankHistogram[i] != second.Diagnostics.RankHistogram[i] {
			t.Fatalf("rank histogram not reproducible: %v vs %v",
				first.Diagnostics.RankHistogram, second.Diagnostics.RankHistogram)
		}
	}
}
