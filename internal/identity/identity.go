// Package identity maps two-letter state codes to canonical state names and back.
package identity

import "fmt"

// Entry pairs a state code with its canonical full name.
type Entry struct {
	Code string
	Name string
}

// Table is an ordered code/name table. Tables are values; the resolver copies what it needs.
type Table []Entry

// States is the fixed table of the 50 states.
var States = Table{
	{"AL", "Alabama"}, {"AK", "Alaska"}, {"AZ", "Arizona"}, {"AR", "Arkansas"},
	{"CA", "California"}, {"CO", "Colorado"}, {"CT", "Connecticut"}, {"DE", "Delaware"},
	{"FL", "Florida"}, {"GA", "Georgia"}, {"HI", "Hawaii"}, {"ID", "Idaho"},
	{"IL", "Illinois"}, {"IN", "Indiana"}, {"IA", "Iowa"}, {"KS", "Kansas"},
	{"KY", "Kentucky"}, {"LA", "Louisiana"}, {"ME", "Maine"}, {"MD", "Maryland"},
	{"MA", "Massachusetts"}, {"MI", "Michigan"}, {"MN", "Minnesota"}, {"MS", "Mississippi"},
	{"MO", "Missouri"}, {"MT", "Montana"}, {"NE", "Nebraska"}, {"NV", "Nevada"},
	{"NH", "New Hampshire"}, {"NJ", "New Jersey"}, {"NM", "New Mexico"}, {"NY", "New York"},
	{"NC", "North Carolina"}, {"ND", "North Dakota"}, {"OH", "Ohio"}, {"OK", "Oklahoma"},
	{"OR", "Oregon"}, {"PA", "Pennsylvania"}, {"RI", "Rhode Island"}, {"SC", "South Carolina"},
	{"SD", "South Dakota"}, {"TN", "Tennessee"}, {"TX", "Texas"}, {"UT", "Utah"},
	{"VT", "Vermont"}, {"VA", "Virginia"}, {"WA", "Washington"}, {"WV", "West Virginia"},
	{"WI", "Wisconsin"}, {"WY", "Wyoming"},
}

// Resolver is a read-only bijection between codes and names.
type Resolver struct {
	codes  []string
	byCode map[string]string
	byName map[string]string
}

// New builds a resolver by inverting table. Duplicate codes or names are rejected
// because they would break the round trip.
func New(table Table) (*Resolver, error) {
	r := &Resolver{
		codes:  make([]string, 0, len(table)),
		byCode: make(map[string]string, len(table)),
		byName: make(map[string]string, len(table)),
	}
	for _, e := range table {
		if e.Code == "" || e.Name == "" {
			return nil, fmt.Errorf("identity entry %+v must have both code and name", e)
		}
		if _, dup := r.byCode[e.Code]; dup {
			return nil, fmt.Errorf("duplicate state code %s", e.Code)
		}
		if _, dup := r.byName[e.Name]; dup {
			return nil, fmt.Errorf("duplicate state name %s", e.Name)
		}
		r.codes = append(r.codes, e.Code)
		r.byCode[e.Code] = e.Name
		r.byName[e.Name] = e.Code
	}
	return r, nil
}

// MustNew is New for statically known tables.
func MustNew(table Table) *Resolver {
	r, err := New(table)
	if err != nil {
		panic(err)
	}
	return r
}

// CodeToName returns the canonical name for code.
func (r *Resolver) CodeToName(code string) (string, bool) {
	name, ok := r.byCode[code]
	return name, ok
}

// NameToCode returns the code for a canonical name. Names outside the table
// (territories, the District) report false.
func (r *Resolver) NameToCode(name string) (string, bool) {
	code, ok := r.byName[name]
	return code, ok
}

// Codes returns the codes in table order.
func (r *Resolver) Codes() []string {
	out := make([]string, len(r.codes))
	copy(out, r.codes)
	return out
}

// Len returns the number of entries.
func (r *Resolver) Len() int {
	return len(r.codes)
}
