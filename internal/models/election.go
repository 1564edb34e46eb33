// Package models defines the core domain entities: state results, datasets, trend records,
// geometry features, and the error taxonomy shared by the pipeline.
package models

import (
	"errors"
	"fmt"
	"sort"
)

// Candidate is one of the two recognized candidate labels.
type Candidate string

const (
	Harris Candidate = "Harris"
	Trump  Candidate = "Trump"
)

// Candidates lists the recognized candidates in display order (candidate A, candidate B).
var Candidates = []Candidate{Harris, Trump}

// ParseCandidate returns the candidate for a winner label.
func ParseCandidate(s string) (Candidate, bool) {
	for _, c := range Candidates {
		if string(c) == s {
			return c, true
		}
	}
	return "", false
}

// BreakdownEntry is one (candidate label, percentage) pair of a state result.
type BreakdownEntry struct {
	Label   string  `json:"label"`
	Percent float64 `json:"percent"`
}

// StateResult is the simulated outcome for a single state.
type StateResult struct {
	Code           string           `json:"code"`
	Winner         Candidate        `json:"winner"`
	ElectoralVotes int              `json:"electoral_votes"`
	Breakdown      []BreakdownEntry `json:"breakdown"`
}

// Validate checks state result field constraints.
func (r *StateResult) Validate() error {
	if !IsStateCode(r.Code) {
		return fmt.Errorf("state code %q must be two uppercase letters", r.Code)
	}
	if _, ok := ParseCandidate(string(r.Winner)); !ok {
		return fmt.Errorf("winner %q is not a recognized candidate", r.Winner)
	}
	if r.ElectoralVotes < 0 {
		return errors.New("electoral votes must not be negative")
	}
	if len(r.Breakdown) != len(Candidates) {
		return fmt.Errorf("breakdown must have %d entries, got %d", len(Candidates), len(r.Breakdown))
	}
	for _, e := range r.Breakdown {
		if e.Label == "" {
			return errors.New("breakdown label must not be empty")
		}
		if e.Percent < 0 || e.Percent > 100 {
			return fmt.Errorf("breakdown percentage for %s must be between 0 and 100", e.Label)
		}
	}
	return nil
}

// Percent returns the breakdown percentage for label.
func (r *StateResult) Percent(label string) (float64, bool) {
	for _, e := range r.Breakdown {
		if e.Label == label {
			return e.Percent, true
		}
	}
	return 0, false
}

// IsStateCode reports whether s looks like a two-letter state code.
func IsStateCode(s string) bool {
	if len(s) != 2 {
		return false
	}
	for i := 0; i < 2; i++ {
		if s[i] < 'A' || s[i] > 'Z' {
			return false
		}
	}
	return true
}

// VoteTotals is the sum of electoral votes grouped by winner.
type VoteTotals struct {
	Harris int `json:"harris"`
	Trump  int `json:"trump"`
}

// Add credits votes to the candidate's bucket.
func (t *VoteTotals) Add(c Candidate, votes int) {
	switch c {
	case Harris:
		t.Harris += votes
	case Trump:
		t.Trump += votes
	}
}

// For returns the votes credited to c.
func (t VoteTotals) For(c Candidate) int {
	switch c {
	case Harris:
		return t.Harris
	case Trump:
		return t.Trump
	}
	return 0
}

// Sum returns the total number of electoral votes allocated.
func (t VoteTotals) Sum() int {
	return t.Harris + t.Trump
}

// ElectionDataset maps state codes to results. It is immutable after construction;
// a new load produces a new dataset.
type ElectionDataset struct {
	results map[string]StateResult
}

// NewElectionDataset builds a dataset, rejecting duplicate state codes.
func NewElectionDataset(results []StateResult) (*ElectionDataset, error) {
	ds := &ElectionDataset{results: make(map[string]StateResult, len(results))}
	for _, r := range results {
		if _, exists := ds.results[r.Code]; exists {
			return nil, fmt.Errorf("duplicate state code %s", r.Code)
		}
		ds.results[r.Code] = r
	}
	return ds, nil
}

// Get returns the result for code.
func (d *ElectionDataset) Get(code string) (StateResult, bool) {
	if d == nil {
		return StateResult{}, false
	}
	r, ok := d.results[code]
	return r, ok
}

// Len returns the number of states in the dataset.
func (d *ElectionDataset) Len() int {
	if d == nil {
		return 0
	}
	return len(d.results)
}

// Codes returns the dataset's state codes in sorted order.
func (d *ElectionDataset) Codes() []string {
	if d == nil {
		return nil
	}
	codes := make([]string, 0, len(d.results))
	for code := range d.results {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// Results returns all results ordered by state code.
func (d *ElectionDataset) Results() []StateResult {
	codes := d.Codes()
	out := make([]StateResult, 0, len(codes))
	for _, code := range codes {
		out = append(out, d.results[code])
	}
	return out
}

// Totals folds the dataset into vote totals. It is recomputed on every call so it can
// never drift from the results it summarizes.
func (d *ElectionDataset) Totals() VoteTotals {
	var t VoteTotals
	if d == nil {
		return t
	}
	for _, r := range d.results {
		t.Add(r.Winner, r.ElectoralVotes)
	}
	return t
}
