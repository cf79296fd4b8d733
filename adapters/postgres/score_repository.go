package postgres

import (
	"context"
	"database/sql"
	"math"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/jrholliday/VeriPy/domain/core"
	"github.com/jrholliday/VeriPy/domain/verify"
	"github.com/jrholliday/VeriPy/internal/errors"
	"github.com/jrholliday/VeriPy/ports"
)

// ScoreRepository persists score results in PostgreSQL as the flat table
// contract: one row per (run, metric, scope, threshold). NaN values are
// stored as NULL with a defined flag so undefined scores survive the
// round trip as tagged results, not absent rows.
type ScoreRepository struct {
	db *sqlx.DB
}

// NewScoreRepository creates a PostgreSQL score repository
func NewScoreRepository(db *sqlx.DB) ports.ScoreRepositoryPort {
	return &ScoreRepository{db: db}
}

// Connect opens a database handle and verifies connectivity
func Connect(ctx context.Context, url string) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", url)
	if err != nil {
		return nil, errors.Wrap(err, "connecting to postgres")
	}
	return db, nil
}

// Migrate creates the score_results table if it does not exist
func Migrate(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS score_results (
			run_id     TEXT             NOT NULL,
			metric     TEXT             NOT NULL,
			scope      TEXT             NOT NULL,
			threshold  DOUBLE PRECISION,
			value      DOUBLE PRECISION,
			defined    BOOLEAN          NOT NULL,
			ci_low     DOUBLE PRECISION,
			ci_high    DOUBLE PRECISION,
			ci_level   DOUBLE PRECISION,
			n          INTEGER          NOT NULL,
			dropped    INTEGER          NOT NULL,
			excluded   INTEGER          NOT NULL,
			created_at TIMESTAMPTZ      NOT NULL DEFAULT NOW(),
			PRIMARY KEY (run_id, metric, scope)
		)`)
	if err != nil {
		return errors.Wrap(err, "creating score_results table")
	}
	return nil
}

type scoreRow struct {
	RunID     string          `db:"run_id"`
	Metric    string          `db:"metric"`
	Scope     string          `db:"scope"`
	Threshold sql.NullFloat64 `db:"threshold"`
	Value     sql.NullFloat64 `db:"value"`
	Defined   bool            `db:"defined"`
	CILow     sql.NullFloat64 `db:"ci_low"`
	CIHigh    sql.NullFloat64 `db:"ci_high"`
	CILevel   sql.NullFloat64 `db:"ci_level"`
	N         int             `db:"n"`
	Dropped   int             `db:"dropped"`
	Excluded  int             `db:"excluded"`
}

// SaveResults upserts one run's score results
func (r *ScoreRepository) SaveResults(ctx context.Context, runID core.RunID, results []verify.ScoreResult) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	defer tx.Rollback()

	for _, res := range results {
		row := toRow(runID, res)
		_, err := tx.NamedExecContext(ctx, `
			INSERT INTO score_results (
				run_id, metric, scope, threshold, value, defined,
				ci_low, ci_high, ci_level, n, dropped, excluded
			) VALUES (
				:run_id, :metric, :scope, :threshold, :value, :defined,
				:ci_low, :ci_high, :ci_level, :n, :dropped, :excluded
			)
			ON CONFLICT (run_id, metric, scope) DO UPDATE SET
				threshold = EXCLUDED.threshold,
				value     = EXCLUDED.value,
				defined   = EXCLUDED.defined,
				ci_low    = EXCLUDED.ci_low,
				ci_high   = EXCLUDED.ci_high,
				ci_level  = EXCLUDED.ci_level,
				n         = EXCLUDED.n,
				dropped   = EXCLUDED.dropped,
				excluded  = EXCLUDED.excluded`, row)
		if err != nil {
			return errors.Wrapf(err, "saving result %s/%s", res.Metric, res.Scope)
		}
	}
	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "committing results")
	}
	return nil
}

// ResultsForRun loads the stored results of one run
func (r *ScoreRepository) ResultsForRun(ctx context.Context, runID core.RunID) ([]verify.ScoreResult, error) {
	var rows []scoreRow
	err := r.db.SelectContext(ctx, &rows, `
		SELECT run_id, metric, scope, threshold, value, defined,
		       ci_low, ci_high, ci_level, n, dropped, excluded
		FROM score_results
		WHERE run_id = $1
		ORDER BY metric, scope`, runID.String())
	if err != nil {
		return nil, errors.Wrapf(err, "loading results for run %s", runID)
	}

	results := make([]verify.ScoreResult, len(rows))
	for i, row := range rows {
		results[i] = fromRow(row)
	}
	return results, nil
}

func toRow(runID core.RunID, res verify.ScoreResult) scoreRow {
	row := scoreRow{
		RunID:    runID.String(),
		Metric:   res.Metric,
		Scope:    res.Scope,
		Defined:  res.Defined(),
		N:        res.N,
		Dropped:  res.Dropped,
		Excluded: res.Excluded,
	}
	if res.Threshold != nil {
		row.Threshold = sql.NullFloat64{Float64: *res.Threshold, Valid: true}
	}
	if res.Defined() {
		row.Value = sql.NullFloat64{Float64: res.Value, Valid: true}
	}
	if res.CI != nil {
		if !math.IsNaN(res.CI.Lower) {
			row.CILow = sql.NullFloat64{Float64: res.CI.Lower, Valid: true}
		}
		if !math.IsNaN(res.CI.Upper) {
			row.CIHigh = sql.NullFloat64{Float64: res.CI.Upper, Valid: true}
		}
		row.CILevel = sql.NullFloat64{Float64: res.CI.Level, Valid: true}
	}
	return row
}

func fromRow(row scoreRow) verify.ScoreResult {
	res := verify.ScoreResult{
		Metric:   row.Metric,
		Scope:    row.Scope,
		Value:    verify.Undefined(),
		N:        row.N,
		Dropped:  row.Dropped,
		Excluded: row.Excluded,
	}
	if row.Threshold.Valid {
		t := row.Threshold.Float64
		res.Threshold = &t
	}
	if row.Defined && row.Value.Valid {
		res.Value = row.Value.Float64
	}
	if row.CILevel.Valid {
		ci := &verify.ConfidenceInterval{
			Lower: verify.Undefined(),
			Upper: verify.Undefined(),
			Level: row.CILevel.Float64,
		}
		if row.CILow.Valid {
			ci.Lower = row.CILow.Float64
		}
		if row.CIHigh.Valid {
			ci.Upper = row.CIHigh.Float64
		}
		res.CI = ci
	}
	return res
}
