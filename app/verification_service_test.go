package app

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jrholliday/VeriPy/adapters/rng"
	"github.com/jrholliday/VeriPy/adapters/stats/engine"
	"github.com/jrholliday/VeriPy/domain/core"
	"github.com/jrholliday/VeriPy/domain/verify"
	"github.com/jrholliday/VeriPy/internal/errors"
)

type memoryRepo struct {
	saved   map[core.RunID][]verify.ScoreResult
	failing bool
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{saved: make(map[core.RunID][]verify.ScoreResult)}
}

func (m *memoryRepo) SaveResults(_ context.Context, runID core.RunID, results []verify.ScoreResult) error {
	if m.failing {
		return errors.DatabaseError("storage offline")
	}
	m.saved[runID] = results
	return nil
}

func (m *memoryRepo) ResultsForRun(_ context.Context, runID core.RunID) ([]verify.ScoreResult, error) {
	return m.saved[runID], nil
}

func continuousSeries(values ...float64) *verify.Series {
	s := &verify.Series{Kind: verify.KindContinuous}
	for i, v := range values {
		s.Points = append(s.Points, verify.SeriesPoint{
			Key:   verify.UnitKey{Time: time.Date(2024, 3, 1, i, 0, 0, 0, time.UTC)},
			Value: v,
		})
	}
	return s
}

func TestRun_EndToEnd(t *testing.T) {
	repo := newMemoryRepo()
	service := NewVerificationService(engine.New(rng.New()), repo)
	service.SetClock(clockwork.NewFakeClock())

	opts := verify.DefaultOptions()
	opts.Metrics = []string{"mae", "mean_error"}

	report, err := service.Run(context.Background(), RunRequest{
		Forecast: continuousSeries(2, 3, 4),
		Observed: continuousSeries(1, 3, 5),
		Opts:     opts,
	})
	require.NoError(t, err)
	require.NotEmpty(t, report.RunID)
	assert.Equal(t, verify.KindContinuous, report.Kind)
	assert.Equal(t, 3, report.Alignment.Matched)

	require.Len(t, report.Results, 2)
	assert.InDelta(t, 2.0/3.0, report.Results[0].Value, 1e-12) // mae
	assert.InDelta(t, 0.0, report.Results[1].Value, 1e-12)     // mean_error

	saved, err := repo.ResultsForRun(context.Background(), report.RunID)
	require.NoError(t, err)
	assert.Len(t, saved, 2)
}

func TestRun_KeepsCallerRunID(t *testing.T) {
	service := NewVerificationService(engine.New(rng.New()), nil)

	report, err := service.Run(context.Background(), RunRequest{
		RunID:    core.RunID("run-fixed"),
		Forecast: continuousSeries(1),
		Observed: continuousSeries(1),
		Opts:     verify.DefaultOptions(),
	})
	require.NoError(t, err)
	assert.Equal(t, core.RunID("run-fixed"), report.RunID)
}

func TestRun_AlignmentFailureAborts(t *testing.T) {
	service := NewVerificationService(engine.New(rng.New()), nil)

	_, err := service.Run(context.Background(), RunRequest{
		Forecast: continuousSeries(1, 2),
		Observed: continuousSeries(1),
		Opts:     verify.DefaultOptions(),
	})
	require.Error(t, err)
	assert.True(t, errors.IsAlignment(err))
}

func TestRun_BadOptionsAbortBeforeAlignment(t *testing.T) {
	service := NewVerificationService(engine.New(rng.New()), nil)

	opts := verify.DefaultOptions()
	opts.ConfidenceLevel = 2

	_, err := service.Run(context.Background(), RunRequest{
		Forecast: continuousSeries(1),
		Observed: continuousSeries(1),
		Opts:     opts,
	})
	require.Error(t, err)
	assert.True(t, errors.IsConfig(err))
}

func TestRun_PersistenceFailureDoesNotFailTheRun(t *testing.T) {
	repo := newMemoryRepo()
	repo.failing = true
	service := NewVerificationService(engine.New(rng.New()), repo)

	report, err := service.Run(context.Background(), RunRequest{
		Forecast: continuousSeries(1, 2),
		Observed: continuousSeries(1, 2),
		Opts:     verify.DefaultOptions(),
	})
	require.NoError(t, err)
	assert.NotEmpty(t, report.Results)
}
