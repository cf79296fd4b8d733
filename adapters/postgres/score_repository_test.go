package postgres

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jrholliday/VeriPy/domain/core"
	"github.com/jrholliday/VeriPy/domain/verify"
)

func TestRowConversion_RoundTrip(t *testing.T) {
	threshold := 10.0
	in := verify.ScoreResult{
		Metric:    "pod",
		Scope:     "all",
		Threshold: &threshold,
		Value:     0.8,
		CI:        &verify.ConfidenceInterval{Lower: 0.7, Upper: 0.9, Level: 0.95},
		N:         50,
		Dropped:   2,
		Excluded:  1,
	}

	out := fromRow(toRow(core.RunID("run-1"), in))
	assert.Equal(t, in.Metric, out.Metric)
	assert.Equal(t, in.Scope, out.Scope)
	require.NotNil(t, out.Threshold)
	assert.Equal(t, threshold, *out.Threshold)
	assert.Equal(t, in.Value, out.Value)
	require.NotNil(t, out.CI)
	assert.Equal(t, 0.7, out.CI.Lower)
	assert.Equal(t, 0.95, out.CI.Level)
	assert.Equal(t, in.N, out.N)
	assert.Equal(t, in.Dropped, out.Dropped)
	assert.Equal(t, in.Excluded, out.Excluded)
}

func TestRowConversion_UndefinedValueSurvives(t *testing.T) {
	in := verify.ScoreResult{
		Metric: "far",
		Scope:  "all",
		Value:  verify.Undefined(),
		N:      10,
	}

	row := toRow(core.RunID("run-1"), in)
	assert.False(t, row.Defined)
	assert.False(t, row.Value.Valid, "NaN must be stored as NULL")

	out := fromRow(row)
	assert.True(t, math.IsNaN(out.Value))
	assert.False(t, out.Defined())
	assert.Nil(t, out.CI)
	assert.Nil(t, out.Threshold)
}
