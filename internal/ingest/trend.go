package ingest

import (
	"fmt"
	"io"
	"time"

	"github.com/rewired-gh/electionmap/internal/models"
)

const opTrend = "ingest trend"

// Trend column names written by the historical simulation pipeline.
const (
	FieldDate        = "date"
	FieldHarrisDaily = "harris_winning_combinations_ctn"
	FieldTrumpDaily  = "trump_winning_combinations_ctn"
)

// ParseTrend parses a daily time series of per-candidate win counts. Rows are returned in
// input order; sorting and rolling averages belong to the trend package.
func ParseTrend(r io.Reader) ([]models.TrendRecord, error) {
	t, err := newTable(r)
	if err != nil {
		return nil, models.NewParseError(opTrend, "invalid header", err)
	}

	dateCol, ok := t.column(FieldDate, "day")
	if !ok {
		return nil, models.NewParseError(opTrend, `missing required column "date"`, nil)
	}
	harrisCol, ok := t.column(FieldHarrisDaily, "harris")
	if !ok {
		return nil, models.NewParseError(opTrend, fmt.Sprintf("missing required column %q", FieldHarrisDaily), nil)
	}
	trumpCol, ok := t.column(FieldTrumpDaily, "trump")
	if !ok {
		return nil, models.NewParseError(opTrend, fmt.Sprintf("missing required column %q", FieldTrumpDaily), nil)
	}

	var records []models.TrendRecord
	seen := make(map[time.Time]int)
	for {
		rec, line, err := t.next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, models.NewParseError(opTrend, "malformed delimited text", err)
		}

		date, err := ParseTrendDate(field(rec, dateCol))
		if err != nil {
			return nil, models.NewRowError(opTrend, line, "invalid date", err)
		}
		if first, dup := seen[date]; dup {
			return nil, models.NewRowError(opTrend, line,
				fmt.Sprintf("duplicate date %s (first seen on row %d)", date.Format(models.TrendDateLayout), first), nil)
		}
		seen[date] = line

		harris, err := parseCount(field(rec, harrisCol))
		if err != nil {
			return nil, models.NewRowError(opTrend, line, "invalid Harris count", err)
		}
		trump, err := parseCount(field(rec, trumpCol))
		if err != nil {
			return nil, models.NewRowError(opTrend, line, "invalid Trump count", err)
		}
		records = append(records, models.TrendRecord{Date: date, HarrisDaily: harris, TrumpDaily: trump})
	}

	if len(records) == 0 {
		return nil, models.NewParseError(opTrend, "trend has no rows", nil)
	}
	return records, nil
}

// ParseTrendDate parses a year_month_day date such as 2024_07_15. Unpadded months and days
// are accepted.
func ParseTrendDate(s string) (time.Time, error) {
	if d, err := time.Parse(models.TrendDateLayout, s); err == nil {
		return d, nil
	}
	d, err := time.Parse("2006_1_2", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%q is not a year_month_day date", s)
	}
	return d, nil
}
