package app

import (
	"context"

	"github.com/jonboulle/clockwork"

	"github.com/jrholliday/VeriPy/adapters/stats/align"
	"github.com/jrholliday/VeriPy/adapters/stats/engine"
	"github.com/jrholliday/VeriPy/domain/core"
	"github.com/jrholliday/VeriPy/domain/verify"
	"github.com/jrholliday/VeriPy/internal"
	"github.com/jrholliday/VeriPy/internal/observability"
	"github.com/jrholliday/VeriPy/ports"
)

// VerificationService orchestrates a complete verification run:
// align the series, score through the engine, persist and report.
type VerificationService struct {
	engine  *engine.Engine
	repo    ports.ScoreRepositoryPort
	clock   clockwork.Clock
	logger  *internal.Logger
	metrics *observability.Metrics
}

// NewVerificationService creates a service around an engine. The repository
// and metrics are optional; a nil repository skips persistence.
func NewVerificationService(eng *engine.Engine, repo ports.ScoreRepositoryPort) *VerificationService {
	return &VerificationService{
		engine: eng,
		repo:   repo,
		clock:  clockwork.NewRealClock(),
		logger: internal.DefaultLogger,
	}
}

// SetClock swaps the time source; tests inject a fake for deterministic reports
func (s *VerificationService) SetClock(c clockwork.Clock) {
	if c == nil {
		s.clock = clockwork.NewRealClock()
		return
	}
	s.clock = c
}

// SetMetrics attaches service metrics
func (s *VerificationService) SetMetrics(m *observability.Metrics) {
	s.metrics = m
}

// Engine exposes the underlying engine (registry listing, worker tuning)
func (s *VerificationService) Engine() *engine.Engine {
	return s.engine
}

// RunRequest carries the two input series and the run options
type RunRequest struct {
	RunID    core.RunID // generated when empty
	Forecast *verify.Series
	Observed *verify.Series
	Opts     verify.Options
}

// RunReport is the user-visible outcome of one verification run
type RunReport struct {
	RunID       core.RunID           `json:"run_id"`
	Kind        verify.ForecastKind  `json:"kind"`
	StartedAt   core.Timestamp       `json:"started_at"`
	RuntimeMs   int64                `json:"runtime_ms"`
	Alignment   align.Report         `json:"alignment"`
	Results     []verify.ScoreResult `json:"results"`
	Diagnostics engine.Diagnostics   `json:"diagnostics"`
}

// Run executes the verification pipeline. Option and alignment failures
// abort before any scoring; a scoring failure in one scope never reaches
// here as an error for its siblings.
func (s *VerificationService) Run(ctx context.Context, req RunRequest) (*RunReport, error) {
	started := s.clock.Now()
	if s.metrics != nil {
		s.metrics.RunsStarted.Inc()
	}

	runID := req.RunID
	if runID == "" {
		runID = core.RunID(core.NewID())
	}

	opts := req.Opts
	if err := opts.Normalize(); err != nil {
		return nil, s.fail(err)
	}

	units, alignReport, err := align.Align(req.Forecast, req.Observed, opts.AlignPolicy, opts.MissingPolicy)
	if err != nil {
		return nil, s.fail(err)
	}
	s.logger.Info("run %s aligned %d units (%d dropped)", runID, alignReport.Matched, alignReport.Dropped())
	if s.metrics != nil {
		s.metrics.UnitsAligned.Add(float64(alignReport.Matched))
		s.metrics.UnitsDropped.Add(float64(alignReport.Dropped()))
	}

	runResult, err := s.engine.Run(ctx, engine.RunRequest{
		RunID:   runID,
		Kind:    req.Forecast.Kind,
		Units:   units,
		Opts:    opts,
		Dropped: alignReport.Dropped(),
	})
	if err != nil {
		return nil, s.fail(err)
	}

	if s.repo != nil {
		if err := s.repo.SaveResults(ctx, runID, runResult.Results); err != nil {
			// Persistence is not part of the computation contract; the
			// report is still returned.
			s.logger.Error("persisting results for run %s: %v", runID, err)
		}
	}

	if s.metrics != nil {
		s.metrics.RunsCompleted.WithLabelValues(string(req.Forecast.Kind)).Inc()
		s.metrics.RunDuration.Observe(s.clock.Since(started).Seconds())
	}

	return &RunReport{
		RunID:       runID,
		Kind:        req.Forecast.Kind,
		StartedAt:   core.NewTimestamp(started),
		RuntimeMs:   s.clock.Since(started).Milliseconds(),
		Alignment:   *alignReport,
		Results:     runResult.Results,
		Diagnostics: runResult.Diagnostics,
	}, nil
}

func (s *VerificationService) fail(err error) error {
	if s.metrics != nil {
		s.metrics.RunsFailed.Inc()
	}
	return err
}
