// Package ingest parses the tabular simulation output into typed records.
package ingest

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

var candidateDelimiters = []rune{',', ';', '\t', '|'}

// table is a header-keyed view over delimited text.
type table struct {
	header   map[string]int
	width    int
	reader   *csv.Reader
	warnings []string
}

// newTable reads the header line and prepares a lenient reader for the rest.
func newTable(r io.Reader) (*table, error) {
	br := bufio.NewReader(r)
	peek, _ := br.Peek(4096)
	delim := detectDelimiter(peek)

	cr := csv.NewReader(br)
	cr.Comma = delim
	cr.LazyQuotes = true
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	head, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("missing header row")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	t := &table{header: make(map[string]int, len(head)), width: len(head), reader: cr}
	for i, h := range head {
		key := normalizeHeader(h)
		if key == "" {
			continue
		}
		if _, dup := t.header[key]; dup {
			t.warnings = append(t.warnings, fmt.Sprintf("duplicate column %q, using the first", h))
			continue
		}
		t.header[key] = i
	}
	return t, nil
}

// column returns the index of the first matching header alias.
func (t *table) column(aliases ...string) (int, bool) {
	for _, a := range aliases {
		if i, ok := t.header[a]; ok {
			return i, true
		}
	}
	return 0, false
}

// next returns the next non-blank record and the line it started on.
func (t *table) next() ([]string, int, error) {
	for {
		rec, err := t.reader.Read()
		if err != nil {
			return nil, 0, err
		}
		line, _ := t.reader.FieldPos(0)
		if blank(rec) {
			continue
		}
		if len(rec) != t.width {
			t.warnings = append(t.warnings,
				fmt.Sprintf("line %d: expected %d fields, found %d", line, t.width, len(rec)))
		}
		return rec, line, nil
	}
}

func field(rec []string, i int) string {
	if i < len(rec) {
		return strings.TrimSpace(rec[i])
	}
	return ""
}

func blank(rec []string) bool {
	for _, f := range rec {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

func normalizeHeader(h string) string {
	h = strings.TrimPrefix(h, "\ufeff")
	return strings.ToLower(strings.TrimSpace(h))
}

// detectDelimiter picks the candidate delimiter that occurs most often outside quotes
// on the first line, defaulting to comma.
func detectDelimiter(sample []byte) rune {
	if i := bytes.IndexByte(sample, '\n'); i >= 0 {
		sample = sample[:i]
	}
	counts := make(map[rune]int, len(candidateDelimiters))
	inQuotes := false
	for _, c := range string(sample) {
		if c == '"' {
			inQuotes = !inQuotes
			continue
		}
		if !inQuotes {
			counts[c]++
		}
	}
	best, bestCount := ',', 0
	for _, d := range candidateDelimiters {
		if counts[d] > bestCount {
			best, bestCount = d, counts[d]
		}
	}
	return best
}

// parseCount parses a non-negative integer count. Integral floats such as "17.0" are
// accepted because upstream tooling sometimes writes counts as floats.
func parseCount(s string) (int, error) {
	if s == "" {
		return 0, fmt.Errorf("empty value")
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		f, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil || math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
			return 0, fmt.Errorf("%q is not an integer", s)
		}
		n = int(f)
	}
	if n < 0 {
		return 0, fmt.Errorf("%q must not be negative", s)
	}
	return n, nil
}
