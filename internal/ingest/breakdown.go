package ingest

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/rewired-gh/electionmap/internal/models"
)

// decodeBreakdown decodes the single-quoted pseudo-JSON breakdown field, e.g.
// [['Harris', 48.0], ['Trump', 52.0]], into ordered (label, percent) pairs.
func decodeBreakdown(raw string) ([]models.BreakdownEntry, error) {
	s := strings.ReplaceAll(strings.TrimSpace(raw), "'", `"`)
	if s == "" {
		return nil, fmt.Errorf("breakdown is empty")
	}
	if !gjson.Valid(s) {
		return nil, fmt.Errorf("breakdown %q is not well formed", raw)
	}
	doc := gjson.Parse(s)
	if !doc.IsArray() {
		return nil, fmt.Errorf("breakdown must be a list of pairs")
	}

	var entries []models.BreakdownEntry
	for i, pair := range doc.Array() {
		items := pair.Array()
		if !pair.IsArray() || len(items) != 2 {
			return nil, fmt.Errorf("breakdown entry %d must be a [label, percent] pair", i)
		}
		if items[0].Type != gjson.String || items[0].Str == "" {
			return nil, fmt.Errorf("breakdown entry %d has no label", i)
		}
		pct, err := percentOf(items[1])
		if err != nil {
			return nil, fmt.Errorf("breakdown entry %d: %w", i, err)
		}
		entries = append(entries, models.BreakdownEntry{Label: items[0].Str, Percent: pct})
	}
	return entries, nil
}

func percentOf(v gjson.Result) (float64, error) {
	var pct float64
	switch v.Type {
	case gjson.Number:
		pct = v.Num
	case gjson.String:
		f, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(v.Str), "%"), 64)
		if err != nil {
			return 0, fmt.Errorf("percentage %q is not numeric", v.Str)
		}
		pct = f
	default:
		return 0, fmt.Errorf("percentage %s is not numeric", v.Raw)
	}
	if pct < 0 || pct > 100 {
		return 0, fmt.Errorf("percentage %v out of range [0,100]", pct)
	}
	return pct, nil
}
