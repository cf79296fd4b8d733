package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jrholliday/VeriPy/app"
	"github.com/jrholliday/VeriPy/domain/core"
	"github.com/jrholliday/VeriPy/domain/verify"
	"github.com/jrholliday/VeriPy/internal"
	"github.com/jrholliday/VeriPy/internal/errors"
	"github.com/jrholliday/VeriPy/internal/report"
	"github.com/jrholliday/VeriPy/ports"
)

// Server exposes verification runs over HTTP:
//
//	POST /api/v1/runs                submit two series, get a run report
//	GET  /api/v1/runs/{runID}        stored results for a past run
//	GET  /api/v1/runs/{runID}/report stored results rendered as HTML
//	GET  /api/v1/metrics             the score catalog
//	GET  /healthz, GET /metrics      operational endpoints
type Server struct {
	httpServer *http.Server
	service    *app.VerificationService
	repo       ports.ScoreRepositoryPort
	logger     *internal.Logger
}

// NewServer wires the verification service behind a chi router. repo may
// be nil, which disables the stored-run endpoints.
func NewServer(addr string, service *app.VerificationService, repo ports.ScoreRepositoryPort, logger *internal.Logger) *Server {
	s := &Server{
		service: service,
		repo:    repo,
		logger:  logger,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(5 * time.Minute))

	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/runs", s.handleRun)
		r.Get("/metrics", s.handleCatalog)
		if repo != nil {
			r.Get("/runs/{runID}", s.handleResults)
			r.Get("/runs/{runID}/report", s.handleReport)
		}
	})

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server listening on %s", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown drains connections within the context deadline
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the router, useful for testing
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

// runPayload is the wire form of a verification request
type runPayload struct {
	Kind     string         `json:"kind"`
	Forecast []pointPayload `json:"forecast"`
	Observed []pointPayload `json:"observed"`
	Options  optionsPayload `json:"options"`
}

type pointPayload struct {
	Space     string    `json:"space,omitempty"`
	Time      time.Time `json:"time"`
	LeadHours float64   `json:"lead_hours,omitempty"`
	Value     *float64  `json:"value,omitempty"`
	Members   []float64 `json:"members,omitempty"`
}

type optionsPayload struct {
	Thresholds         []float64 `json:"thresholds,omitempty"`
	AggregationScope   string    `json:"aggregation_scope,omitempty"`
	Grouping           string    `json:"grouping,omitempty"`
	BootstrapResamples int       `json:"bootstrap_resamples,omitempty"`
	ConfidenceLevel    float64   `json:"confidence_level,omitempty"`
	RandomSeed         int64     `json:"random_seed,omitempty"`
	MissingPolicy      string    `json:"missing_policy,omitempty"`
	AlignPolicy        string    `json:"align_policy,omitempty"`
	ReliabilityBins    int       `json:"reliability_bins,omitempty"`
	Metrics            []string  `json:"metrics,omitempty"`
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	var payload runPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		s.writeError(w, errors.Configf("decoding request body: %v", err))
		return
	}

	kind := verify.ForecastKind(payload.Kind)
	req := app.RunRequest{
		Forecast: toSeries(payload.Forecast, kind),
		Observed: toSeries(payload.Observed, verify.KindContinuous),
		Opts:     toOptions(payload.Options),
	}

	result, err := s.service.Run(r.Context(), req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleResults(w http.ResponseWriter, r *http.Request) {
	runID, err := core.ParseRunID(chi.URLParam(r, "runID"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	results, err := s.repo.ResultsForRun(r.Context(), runID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"run_id":  runID,
		"results": results,
	})
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	runID, err := core.ParseRunID(chi.URLParam(r, "runID"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	results, err := s.repo.ResultsForRun(r.Context(), runID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(report.HTML("Verification Run "+runID.String(), results))
}

func (s *Server) handleCatalog(w http.ResponseWriter, _ *http.Request) {
	type entry struct {
		Name        string              `json:"name"`
		Kind        verify.ForecastKind `json:"kind"`
		Description string              `json:"description"`
	}
	var catalog []entry
	for _, m := range s.service.Engine().Registry().List() {
		catalog = append(catalog, entry{Name: m.Name, Kind: m.Kind, Description: m.Description})
	}
	s.writeJSON(w, http.StatusOK, catalog)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func toSeries(points []pointPayload, kind verify.ForecastKind) *verify.Series {
	series := &verify.Series{Kind: kind}
	for _, p := range points {
		pt := verify.SeriesPoint{
			Key: verify.UnitKey{
				Space: p.Space,
				Time:  p.Time,
				Lead:  time.Duration(p.LeadHours * float64(time.Hour)),
			},
			Value:   verify.Undefined(),
			Members: p.Members,
		}
		if p.Value != nil {
			pt.Value = *p.Value
		}
		series.Points = append(series.Points, pt)
	}
	return series
}

func toOptions(p optionsPayload) verify.Options {
	opts := verify.DefaultOptions()
	opts.ThresholdValues = p.Thresholds
	if p.AggregationScope != "" {
		opts.Policy = verify.AggregationPolicy(p.AggregationScope)
	}
	if p.Grouping != "" {
		opts.Grouping = verify.Grouping(p.Grouping)
	}
	if p.BootstrapResamples > 0 {
		opts.BootstrapResamples = p.BootstrapResamples
	}
	if p.ConfidenceLevel > 0 {
		opts.ConfidenceLevel = p.ConfidenceLevel
	}
	if p.RandomSeed != 0 {
		opts.RandomSeed = p.RandomSeed
	}
	if p.MissingPolicy != "" {
		opts.MissingPolicy = verify.MissingPolicy(p.MissingPolicy)
	}
	if p.AlignPolicy != "" {
		opts.AlignPolicy = verify.AlignPolicy(p.AlignPolicy)
	}
	if p.ReliabilityBins > 0 {
		opts.ReliabilityBins = p.ReliabilityBins
	}
	opts.Metrics = p.Metrics
	return opts
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch errors.GetCode(err) {
	case errors.CodeConfig, errors.CodeAlignment, errors.CodeDomain:
		status = http.StatusBadRequest
	case errors.CodeInsufficientData:
		status = http.StatusUnprocessableEntity
	}
	s.logger.Warn("request failed: %v", err)
	s.writeJSON(w, status, map[string]string{
		"error": err.Error(),
		"code":  errors.GetCode(err),
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("encoding response: %v", err)
	}
}
