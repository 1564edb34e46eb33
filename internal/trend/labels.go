package trend

import (
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/rewired-gh/electionmap/internal/models"
)

// Series identifiers. The daily ids match the trend source columns.
const (
	HarrisDaily   = "harris_winning_combinations_ctn"
	TrumpDaily    = "trump_winning_combinations_ctn"
	HarrisAverage = "harris_rolling_avg"
	TrumpAverage  = "trump_rolling_avg"
)

// Label maps a series id to its tooltip label, e.g. "Harris 10-Day Avg" for a
// window of 10. Unknown ids are title-cased with underscores turned into spaces.
func Label(id string, window int) string {
	c, avg, ok := parseSeries(id)
	if !ok {
		return cases.Title(language.English).String(strings.ReplaceAll(id, "_", " "))
	}
	if avg {
		return string(c) + " " + windowName(window) + " Avg"
	}
	return string(c) + " Daily"
}

// LegendLabel is the longer legend form, e.g. "Harris 10-Day Moving Average".
func LegendLabel(id string, window int) string {
	c, avg, ok := parseSeries(id)
	if !ok {
		return Label(id, window)
	}
	if avg {
		return string(c) + " " + windowName(window) + " Moving Average"
	}
	return string(c) + " Daily"
}

// windowName formats a window the way Rolling applies it: values below 1 mean 1.
func windowName(window int) string {
	return strconv.Itoa(max(window, 1)) + "-Day"
}

// SeriesID returns the id for a candidate's daily or averaged series.
func SeriesID(c models.Candidate, avg bool) string {
	switch {
	case c == models.Harris && avg:
		return HarrisAverage
	case c == models.Harris:
		return HarrisDaily
	case avg:
		return TrumpAverage
	}
	return TrumpDaily
}

func parseSeries(id string) (models.Candidate, bool, bool) {
	switch id {
	case HarrisDaily:
		return models.Harris, false, true
	case TrumpDaily:
		return models.Trump, false, true
	case HarrisAverage:
		return models.Harris, true, true
	case TrumpAverage:
		return models.Trump, true, true
	}
	return "", false, false
}
