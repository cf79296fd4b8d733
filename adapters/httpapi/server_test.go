package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jrholliday/VeriPy/adapters/rng"
	"github.com/jrholliday/VeriPy/adapters/stats/engine"
	"github.com/jrholliday/VeriPy/app"
	"github.com/jrholliday/VeriPy/domain/core"
	"github.com/jrholliday/VeriPy/domain/verify"
	"github.com/jrholliday/VeriPy/internal"
)

type stubRepo struct {
	results map[core.RunID][]verify.ScoreResult
}

func (s *stubRepo) SaveResults(_ context.Context, runID core.RunID, results []verify.ScoreResult) error {
	if s.results == nil {
		s.results = make(map[core.RunID][]verify.ScoreResult)
	}
	s.results[runID] = results
	return nil
}

func (s *stubRepo) ResultsForRun(_ context.Context, runID core.RunID) ([]verify.ScoreResult, error) {
	return s.results[runID], nil
}

func newTestServer(repo *stubRepo) *Server {
	service := app.NewVerificationService(engine.New(rng.New()), repo)
	return NewServer(":0", service, repo, internal.NewDefaultLogger())
}

func postJSON(t *testing.T, srv *Server, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func TestHandleRun(t *testing.T) {
	repo := &stubRepo{}
	srv := newTestServer(repo)

	v := func(f float64) *float64 { return &f }
	body := runPayload{
		Kind: "continuous",
		Forecast: []pointPayload{
			{Time: mustTime("2024-03-01T00:00:00Z"), Value: v(2)},
			{Time: mustTime("2024-03-01T06:00:00Z"), Value: v(3)},
		},
		Observed: []pointPayload{
			{Time: mustTime("2024-03-01T00:00:00Z"), Value: v(1)},
			{Time: mustTime("2024-03-01T06:00:00Z"), Value: v(3)},
		},
		Options: optionsPayload{Metrics: []string{"mae"}},
	}

	rec := postJSON(t, srv, "/api/v1/runs", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var report app.RunReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, verify.KindContinuous, report.Kind)
	require.Len(t, report.Results, 1)
	assert.InDelta(t, 0.5, report.Results[0].Value, 1e-12)

	// the run should now be retrievable
	rec = getPath(t, srv, "/api/v1/runs/"+report.RunID.String())
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHandleRun_ErrorsMapToStatusCodes(t *testing.T) {
	srv := newTestServer(&stubRepo{})

	v := func(f float64) *float64 { return &f }
	mismatched := runPayload{
		Kind:     "continuous",
		Forecast: []pointPayload{{Time: mustTime("2024-03-01T00:00:00Z"), Value: v(1)}},
		Observed: []pointPayload{},
	}
	rec := postJSON(t, srv, "/api/v1/runs", mismatched)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var errBody map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &errBody))
	assert.Equal(t, "ALIGNMENT_ERROR", errBody["code"])
}

func TestHandleCatalog(t *testing.T) {
	srv := newTestServer(&stubRepo{})

	rec := getPath(t, srv, "/api/v1/metrics")
	require.Equal(t, http.StatusOK, rec.Code)

	var catalog []map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &catalog))
	assert.NotEmpty(t, catalog)

	names := make(map[string]bool)
	for _, entry := range catalog {
		names[entry["name"]] = true
	}
	assert.True(t, names["pod"] && names["rmse"] && names["brier"] && names["crps"])
}

func TestHandleHealth(t *testing.T) {
	srv := newTestServer(&stubRepo{})
	rec := getPath(t, srv, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func mustTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t
}

func getPath(t *testing.T, srv *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}
