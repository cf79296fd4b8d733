package ports

import (
	"context"

	"github.com/jrholliday/VeriPy/domain/verify"
)

// SeriesReaderPort produces forecast and observation series from an
// external source (file, database, upstream service). Readers are
// producers of the in-memory data model only; the engine never touches
// storage formats.
type SeriesReaderPort interface {
	ReadSeries(ctx context.Context, source string, kind verify.ForecastKind) (forecast, observed *verify.Series, err error)
}
