package models

import (
	"errors"
	"time"
)

// TrendDateLayout is the underscore-delimited year_month_day form used by trend sources.
const TrendDateLayout = "2006_01_02"

// TrendRecord holds one day of simulation outcomes: how many runs each candidate won,
// and the rolling average of those counts.
type TrendRecord struct {
	Date        time.Time `json:"date"`
	HarrisDaily int       `json:"harris_daily"`
	TrumpDaily  int       `json:"trump_daily"`
	HarrisAvg   float64   `json:"harris_avg"`
	TrumpAvg    float64   `json:"trump_avg"`
}

// Daily returns the raw count for c.
func (r TrendRecord) Daily(c Candidate) int {
	if c == Trump {
		return r.TrumpDaily
	}
	return r.HarrisDaily
}

// Average returns the rolling average for c.
func (r TrendRecord) Average(c Candidate) float64 {
	if c == Trump {
		return r.TrumpAvg
	}
	return r.HarrisAvg
}

// Validate checks trend record constraints.
func (r *TrendRecord) Validate() error {
	if r.Date.IsZero() {
		return errors.New("trend date must be set")
	}
	if r.HarrisDaily < 0 || r.TrumpDaily < 0 {
		return errors.New("daily counts must not be negative")
	}
	return nil
}

// CurvePoint is one sample of the probability curve.
type CurvePoint struct {
	Spread      float64 `json:"spread"`
	Probability float64 `json:"probability"`
}
