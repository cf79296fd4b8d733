package ports

import (
	"context"

	"github.com/jrholliday/VeriPy/domain/core"
	"github.com/jrholliday/VeriPy/domain/verify"
)

// ScoreRepositoryPort persists and retrieves verification score results
type ScoreRepositoryPort interface {
	SaveResults(ctx context.Context, runID core.RunID, results []verify.ScoreResult) error
	ResultsForRun(ctx context.Context, runID core.RunID) ([]verify.ScoreResult, error)
}
