package engine

import (
	"context"
	"testing"

	"github.com/jrholliday/VeriPy/adapters/rng"
	"github.com/jrholliday/VeriPy/internal/errors"
)

func meanOf(values []float64) func([]int) float64 {
	return func(indices []int) float64 {
		sum := 0.0
		for _, idx := range indices {
			sum += values[idx]
		}
		return sum / float64(len(indices))
	}
}

func TestConfidenceInterval_BracketsTheMean(t *testing.T) {
	values := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16, 17, 18, 19, 20}

	r := NewResampler(rng.New())
	ci, err := r.ConfidenceInterval(context.Background(), ResampleRequest{
		RunID: "run-ci",
		Stage: "mean/all",
		N:     len(values),
		Score: meanOf(values),
		B:     1000,
		Level: 0.95,
		Seed:  42,
	})
	if err != nil {
		t.Fatalf("confidence interval: %v", err)
	}
	if ci.Lower >= ci.Upper {
		t.Fatalf("degenerate interval: %+v", ci)
	}
	// sample mean is 10.5; a 95% bootstrap interval must cover it
	if ci.Lower > 10.5 || ci.Upper < 10.5 {
		t.Fatalf("interval excludes the sample mean: %+v", ci)
	}
	if ci.Level != 0.95 {
		t.Fatalf("level not carried: %v", ci.Level)
	}
}

func TestConfidenceInterval_WorkerCountInvariant(t *testing.T) {
	values := []float64{3, 1, 4, 1, 5, 9, 2, 6, 5, 3, 5, 8, 9, 7, 9, 3, 2, 3, 8, 4}

	req := ResampleRequest{
		RunID: "run-det",
		Stage: "mean/all",
		N:     len(values),
		Score: meanOf(values),
		B:     500,
		Level: 0.90,
		Seed:  7,
	}

	serial := NewResampler(rng.New())
	serial.SetWorkers(1)
	a, err := serial.ConfidenceInterval(context.Background(), req)
	if err != nil {
		t.Fatalf("serial: %v", err)
	}

	parallel := NewResampler(rng.New())
	parallel.SetWorkers(8)
	b, err := parallel.ConfidenceInterval(context.Background(), req)
	if err != nil {
		t.Fatalf("parallel: %v", err)
	}

	if a.Lower != b.Lower || a.Upper != b.Upper {
		t.Fatalf("interval changed with worker count: %+v vs %+v", a, b)
	}
}

func TestConfidenceInterval_SeedChangesInterval(t *testing.T) {
	values := []float64{3, 1, 4, 1, 5, 9, 2, 6, 5, 3}
	base := ResampleRequest{
		RunID: "run-seed",
		Stage: "mean/all",
		N:     len(values),
		Score: meanOf(values),
		B:     200,
		Level: 0.95,
	}

	r := NewResampler(rng.New())
	base.Seed = 1
	a, err := r.ConfidenceInterval(context.Background(), base)
	if err != nil {
		t.Fatalf("seed 1: %v", err)
	}
	base.Seed = 2
	b, err := r.ConfidenceInterval(context.Background(), base)
	if err != nil {
		t.Fatalf("seed 2: %v", err)
	}
	if a.Lower == b.Lower && a.Upper == b.Upper {
		t.Fatal("different seeds produced identical intervals")
	}
}

func TestConfidenceInterval_TooFewUnits(t *testing.T) {
	r := NewResampler(rng.New())
	_, err := r.ConfidenceInterval(context.Background(), ResampleRequest{
		N:     1,
		Score: func([]int) float64 { return 0 },
		B:     100,
		Level: 0.95,
	})
	if !errors.IsInsufficientData(err) {
		t.Fatalf("expected INSUFFICIENT_DATA, got %v", err)
	}
}
