// Package trend orders daily simulation outcomes and derives rolling averages.
package trend

import (
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/rewired-gh/electionmap/internal/models"
)

// DefaultWindow is the number of most recent records averaged, current one included.
const DefaultWindow = 10

// Sort orders records chronologically by their parsed date.
func Sort(records []models.TrendRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Date.Before(records[j].Date)
	})
}

// Rolling fills the rolling averages in place. Record i averages records
// [max(0, i-window+1), i]; the window shrinks at the start of the series.
// Records must already be sorted.
func Rolling(records []models.TrendRecord, window int) {
	if window < 1 {
		window = 1
	}
	harris := make([]float64, len(records))
	trump := make([]float64, len(records))
	for i, r := range records {
		harris[i] = float64(r.HarrisDaily)
		trump[i] = float64(r.TrumpDaily)
	}
	for i := range records {
		lo := i - window + 1
		if lo < 0 {
			lo = 0
		}
		records[i].HarrisAvg = stat.Mean(harris[lo:i+1], nil)
		records[i].TrumpAvg = stat.Mean(trump[lo:i+1], nil)
	}
}

// Aggregate returns a sorted copy of records with rolling averages over window.
// The input slice is left untouched.
func Aggregate(records []models.TrendRecord, window int) []models.TrendRecord {
	out := make([]models.TrendRecord, len(records))
	copy(out, records)
	Sort(out)
	Rolling(out, window)
	return out
}
