package engine

import (
	"context"
	"fmt"
	"math"
	"runtime"

	"github.com/montanaflynn/stats"
	"golang.org/x/sync/errgroup"

	"github.com/jrholliday/VeriPy/domain/verify"
	"github.com/jrholliday/VeriPy/internal/errors"
	"github.com/jrholliday/VeriPy/ports"
)

// Resampler estimates confidence intervals for scalar scores by
// bootstrap resampling at the verification-unit level. Resampling whole
// units rather than raw values preserves the dependence structure within
// a unit.
type Resampler struct {
	rng     ports.RNGPort
	workers int
}

// NewResampler creates a resampler. workers <= 0 selects GOMAXPROCS.
func NewResampler(rng ports.RNGPort) *Resampler {
	return &Resampler{rng: rng, workers: runtime.GOMAXPROCS(0)}
}

// SetWorkers bounds the resample parallelism
func (r *Resampler) SetWorkers(n int) {
	if n > 0 {
		r.workers = n
	}
}

// ResampleRequest describes one bootstrap computation. Score receives a
// with-replacement index sample of size N and returns the resampled
// statistic; NaN resample scores are discarded before the percentiles
// are taken.
type ResampleRequest struct {
	RunID string
	Stage string // metric/scope identity, part of the RNG stream derivation
	N     int    // number of resampleable units
	Score func(indices []int) float64
	B     int     // number of resamples
	Level float64 // confidence level in (0,1)
	Seed  int64
}

// ConfidenceInterval runs B with-replacement resamples and returns the
// empirical percentile interval at (1-c)/2 and 1-(1-c)/2. The RNG stream
// of resample i is derived from (run, stage, i, seed), so the interval is
// identical for a given seed regardless of worker count.
func (r *Resampler) ConfidenceInterval(ctx context.Context, req ResampleRequest) (*verify.ConfidenceInterval, error) {
	if req.N < 2 {
		return nil, errors.InsufficientDataf("bootstrap needs at least 2 units, scope has %d", req.N)
	}
	if req.B < 1 {
		return nil, errors.Configf("bootstrap resample count must be >= 1, got %d", req.B)
	}
	if req.Level <= 0 || req.Level >= 1 {
		return nil, errors.Configf("confidence level must be in (0,1), got %v", req.Level)
	}

	scores := make([]float64, req.B)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)

	for i := 0; i < req.B; i++ {
		i := i
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			stream, err := r.rng.Stream(gctx, req.RunID, req.Stage, fmt.Sprintf("resample-%d", i), req.Seed)
			if err != nil {
				return err
			}
			indices := make([]int, req.N)
			for j := range indices {
				indices[j] = stream.Intn(req.N)
			}
			scores[i] = req.Score(indices)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	defined := scores[:0]
	for _, s := range scores {
		if !math.IsNaN(s) {
			defined = append(defined, s)
		}
	}
	if len(defined) == 0 {
		return &verify.ConfidenceInterval{
			Lower: verify.Undefined(),
			Upper: verify.Undefined(),
			Level: req.Level,
		}, nil
	}

	alpha := (1 - req.Level) / 2
	lower, err := stats.PercentileNearestRank(defined, 100*alpha)
	if err != nil {
		return nil, errors.Wrap(err, "bootstrap lower percentile")
	}
	upper, err := stats.PercentileNearestRank(defined, 100*(1-alpha))
	if err != nil {
		return nil, errors.Wrap(err, "bootstrap upper percentile")
	}
	return &verify.ConfidenceInterval{
		Lower: lower,
		Upper: upper,
		Level: req.Level,
	}, nil
}
