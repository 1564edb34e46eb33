package ingest

import (
	"fmt"
	"io"
	"strings"

	"github.com/rewired-gh/electionmap/internal/models"
)

const opElection = "ingest election"

// Policy decides what happens when a single row fails to parse.
type Policy int

const (
	// PolicyStrict aborts the whole load on the first failing row.
	PolicyStrict Policy = iota
	// PolicyIsolate drops failing rows and keeps the rest.
	PolicyIsolate
)

// ParsePolicy parses a policy name from configuration.
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "strict":
		return PolicyStrict, nil
	case "isolate":
		return PolicyIsolate, nil
	}
	return PolicyStrict, fmt.Errorf("unknown row policy %q (want strict or isolate)", s)
}

func (p Policy) String() string {
	if p == PolicyIsolate {
		return "isolate"
	}
	return "strict"
}

// Options controls election ingestion.
type Options struct {
	Policy Policy
}

// Result is a parsed election dataset plus the diagnostics gathered on the way.
type Result struct {
	Dataset   *models.ElectionDataset
	Totals    models.VoteTotals
	RowErrors []*models.Error
	Warnings  []string
}

// ParseElection parses delimited state results with a header row. Columns are matched by
// name: State, Winner, Votes, Info. Totals accumulate only over accepted rows.
func ParseElection(r io.Reader, opts Options) (*Result, error) {
	t, err := newTable(r)
	if err != nil {
		return nil, models.NewParseError(opElection, "invalid header", err)
	}

	cols := make(map[string]int, 4)
	for name, aliases := range map[string][]string{
		"state":  {"state", "code"},
		"winner": {"winner"},
		"votes":  {"votes", "electoral_votes"},
		"info":   {"info", "breakdown"},
	} {
		i, ok := t.column(aliases...)
		if !ok {
			return nil, models.NewParseError(opElection, fmt.Sprintf("missing required column %q", name), nil)
		}
		cols[name] = i
	}

	res := &Result{}
	var results []models.StateResult
	seen := make(map[string]int)

	for {
		rec, line, err := t.next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, models.NewParseError(opElection, "malformed delimited text", err)
		}

		sr, rowErr := parseStateRow(rec, line, cols)
		if rowErr == nil {
			if first, dup := seen[sr.Code]; dup {
				rowErr = models.NewRowError(opElection, line,
					fmt.Sprintf("duplicate state code %s (first seen on row %d)", sr.Code, first), nil)
			}
		}
		if rowErr != nil {
			if opts.Policy == PolicyStrict {
				return nil, rowErr
			}
			res.RowErrors = append(res.RowErrors, rowErr)
			continue
		}

		seen[sr.Code] = line
		if w := winnerDisagrees(sr); w != "" {
			res.Warnings = append(res.Warnings, fmt.Sprintf("line %d: %s", line, w))
		}
		results = append(results, sr)
		res.Totals.Add(sr.Winner, sr.ElectoralVotes)
	}
	res.Warnings = append(t.warnings, res.Warnings...)

	if len(results) == 0 {
		if len(res.RowErrors) > 0 {
			return nil, models.NewParseError(opElection,
				fmt.Sprintf("all %d rows failed", len(res.RowErrors)), res.RowErrors[0])
		}
		return nil, models.NewParseError(opElection, "dataset has no rows", nil)
	}

	ds, err := models.NewElectionDataset(results)
	if err != nil {
		return nil, models.NewParseError(opElection, "invalid dataset", err)
	}
	res.Dataset = ds
	return res, nil
}

func parseStateRow(rec []string, line int, cols map[string]int) (models.StateResult, *models.Error) {
	var sr models.StateResult

	sr.Code = field(rec, cols["state"])
	if !models.IsStateCode(sr.Code) {
		return sr, models.NewRowError(opElection, line, fmt.Sprintf("invalid state code %q", sr.Code), nil)
	}

	winner, ok := models.ParseCandidate(field(rec, cols["winner"]))
	if !ok {
		return sr, models.NewRowError(opElection, line,
			fmt.Sprintf("unrecognized winner %q", field(rec, cols["winner"])), nil)
	}
	sr.Winner = winner

	votes, err := parseCount(field(rec, cols["votes"]))
	if err != nil {
		return sr, models.NewRowError(opElection, line, "invalid electoral votes", err)
	}
	sr.ElectoralVotes = votes

	breakdown, err := decodeBreakdown(field(rec, cols["info"]))
	if err != nil {
		return sr, models.NewRowError(opElection, line, "invalid breakdown", err)
	}
	sr.Breakdown = breakdown

	if err := sr.Validate(); err != nil {
		return sr, models.NewRowError(opElection, line, "invalid state result", err)
	}
	return sr, nil
}

// winnerDisagrees describes a winner that is not the breakdown leader. The dataset keeps
// the winner as given; this only feeds diagnostics.
func winnerDisagrees(sr models.StateResult) string {
	if len(sr.Breakdown) == 0 {
		return ""
	}
	lead := sr.Breakdown[0]
	for _, e := range sr.Breakdown[1:] {
		if e.Percent > lead.Percent {
			lead = e
		}
	}
	for _, e := range sr.Breakdown {
		if e.Label != lead.Label && e.Percent == lead.Percent {
			return ""
		}
	}
	if lead.Label != string(sr.Winner) {
		return fmt.Sprintf("%s winner %s trails %s in breakdown", sr.Code, sr.Winner, lead.Label)
	}
	return ""
}
