package excel

import (
	"context"
	"encoding/csv"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/jrholliday/VeriPy/domain/verify"
	"github.com/jrholliday/VeriPy/internal/errors"
	"github.com/jrholliday/VeriPy/ports"
)

// SeriesReader reads paired forecast and observation series from Excel or
// CSV files. The expected layout is one header row followed by one row per
// unit:
//
//	space, time, lead, forecast, observed
//
// For ensemble forecasts the single forecast column is replaced by one or
// more member_N columns. Empty or non-numeric value cells become NaN and
// are left to the alignment missing-data policy.
type SeriesReader struct {
	sheet string
}

// NewSeriesReader creates a file-backed series reader
func NewSeriesReader() ports.SeriesReaderPort {
	return &SeriesReader{sheet: "Sheet1"}
}

// ReadSeries loads the forecast and observed series from source
func (r *SeriesReader) ReadSeries(ctx context.Context, source string, kind verify.ForecastKind) (*verify.Series, *verify.Series, error) {
	if _, err := os.Stat(source); err != nil {
		return nil, nil, errors.Configf("input file not found: %s", source)
	}

	var rows [][]string
	var err error
	switch strings.ToLower(filepath.Ext(source)) {
	case ".csv":
		rows, err = readCSVRows(source)
	case ".xlsx":
		rows, err = r.readExcelRows(source)
	default:
		return nil, nil, errors.Configf("unsupported input format: %s", filepath.Ext(source))
	}
	if err != nil {
		return nil, nil, err
	}
	if len(rows) < 2 {
		return nil, nil, errors.Configf("input file %s has no data rows", source)
	}

	layout, err := parseHeader(rows[0], kind)
	if err != nil {
		return nil, nil, err
	}

	forecast := &verify.Series{Kind: kind}
	observed := &verify.Series{Kind: verify.KindContinuous}
	for i, row := range rows[1:] {
		select {
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		default:
		}
		fc, ob, err := layout.parseRow(row)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "row %d of %s", i+2, source)
		}
		forecast.Points = append(forecast.Points, fc)
		observed.Points = append(observed.Points, ob)
	}
	return forecast, observed, nil
}

func (r *SeriesReader) readExcelRows(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s", path)
	}
	defer f.Close()

	rows, err := f.GetRows(r.sheet)
	if err != nil {
		return nil, errors.Wrapf(err, "reading sheet %s", r.sheet)
	}
	return rows, nil
}

func readCSVRows(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s", path)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	var rows [][]string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrapf(err, "parsing %s", path)
		}
		rows = append(rows, record)
	}
	return rows, nil
}

// rowLayout maps header columns to unit fields
type rowLayout struct {
	space    int
	time     int
	lead     int
	forecast int
	members  []int
	observed int
}

func parseHeader(header []string, kind verify.ForecastKind) (*rowLayout, error) {
	layout := &rowLayout{space: -1, time: -1, lead: -1, forecast: -1, observed: -1}
	for i, name := range header {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "space", "station", "location":
			layout.space = i
		case "time", "valid_time":
			layout.time = i
		case "lead", "lead_time":
			layout.lead = i
		case "forecast", "fcst":
			layout.forecast = i
		case "observed", "obs", "observation":
			layout.observed = i
		default:
			if strings.HasPrefix(strings.ToLower(name), "member") {
				layout.members = append(layout.members, i)
			}
		}
	}
	if layout.time < 0 {
		return nil, errors.Config("input header missing time column")
	}
	if layout.observed < 0 {
		return nil, errors.Config("input header missing observed column")
	}
	if kind == verify.KindEnsemble {
		if len(layout.members) == 0 {
			return nil, errors.Config("ensemble input requires member columns")
		}
	} else if layout.forecast < 0 {
		return nil, errors.Config("input header missing forecast column")
	}
	return layout, nil
}

func (l *rowLayout) parseRow(row []string) (verify.SeriesPoint, verify.SeriesPoint, error) {
	key, err := l.parseKey(row)
	if err != nil {
		return verify.SeriesPoint{}, verify.SeriesPoint{}, err
	}

	fc := verify.SeriesPoint{Key: key, Value: verify.Undefined()}
	if len(l.members) > 0 {
		fc.Members = make([]float64, len(l.members))
		for i, col := range l.members {
			fc.Members[i] = parseValue(cell(row, col))
		}
	} else {
		fc.Value = parseValue(cell(row, l.forecast))
	}

	ob := verify.SeriesPoint{Key: key, Value: parseValue(cell(row, l.observed))}
	return fc, ob, nil
}

func (l *rowLayout) parseKey(row []string) (verify.UnitKey, error) {
	var key verify.UnitKey
	if l.space >= 0 {
		key.Space = strings.TrimSpace(cell(row, l.space))
	}

	raw := strings.TrimSpace(cell(row, l.time))
	t, err := parseTime(raw)
	if err != nil {
		return key, errors.Configf("invalid time value %q", raw)
	}
	key.Time = t

	if l.lead >= 0 {
		raw := strings.TrimSpace(cell(row, l.lead))
		if raw != "" {
			lead, err := parseLead(raw)
			if err != nil {
				return key, errors.Configf("invalid lead value %q", raw)
			}
			key.Lead = lead
		}
	}
	return key, nil
}

func parseTime(raw string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02 15:04", "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, errors.Config("unrecognized time format")
}

func parseLead(raw string) (time.Duration, error) {
	if d, err := time.ParseDuration(raw); err == nil {
		return d, nil
	}
	// bare numbers are hours
	if h, err := strconv.ParseFloat(raw, 64); err == nil {
		return time.Duration(h * float64(time.Hour)), nil
	}
	return 0, errors.Config("unrecognized lead format")
}

func parseValue(raw string) float64 {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return verify.Undefined()
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return verify.Undefined()
	}
	if math.IsInf(v, 0) {
		return verify.Undefined()
	}
	return v
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx]
}
