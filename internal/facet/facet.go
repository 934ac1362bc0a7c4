// Package facet builds the per-column filter values for a dataset and holds
// the user's checkbox selection over them.
package facet

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/JonMunkholm/tabview/internal/dataset"
)

// ErrUnknownFacet is returned when a selection names a column or value the
// index does not offer.
var ErrUnknownFacet = errors.New("unknown facet")

// excluded columns hold identifiers or free text where a checkbox list is
// useless. Matched as case-insensitive substrings of the column name.
var excluded = []string{"ID", "NO", "NAME", "NAMA", "TANGGAL LAHIR"}

// Eligible reports whether a column gets a facet.
func Eligible(column string) bool {
	upper := strings.ToUpper(column)
	for _, ex := range excluded {
		if strings.Contains(upper, ex) {
			return false
		}
	}
	return true
}

// Index maps each eligible column to its distinct non-empty values in
// ascending order. Columns keeps header order.
type Index struct {
	Columns []string
	Values  map[string][]string
}

// Build scans every row once per eligible column. An empty dataset yields
// an empty index.
func Build(ds *dataset.Dataset) Index {
	idx := Index{Values: make(map[string][]string)}
	if ds.Empty() {
		return idx
	}

	for _, col := range ds.Headers {
		if !Eligible(col) {
			continue
		}
		seen := make(map[string]struct{})
		for _, row := range ds.Rows {
			if v, ok := row[col]; ok && v != "" {
				seen[v] = struct{}{}
			}
		}
		values := make([]string, 0, len(seen))
		for v := range seen {
			values = append(values, v)
		}
		sort.Strings(values)

		idx.Columns = append(idx.Columns, col)
		idx.Values[col] = values
	}
	return idx
}

// Empty reports whether no column has a facet.
func (i Index) Empty() bool { return len(i.Columns) == 0 }

// Has reports whether value is offered under column.
func (i Index) Has(column, value string) bool {
	values, ok := i.Values[column]
	if !ok {
		return false
	}
	n := sort.SearchStrings(values, value)
	return n < len(values) && values[n] == value
}

// Selection holds the checked values per column. A column with no checked
// values places no constraint. Selections are values: every mutator
// returns a new Selection and leaves the receiver untouched.
type Selection map[string]map[string]struct{}

// NewSelection returns an all-clear selection with a slot for each column.
func NewSelection(idx Index) Selection {
	sel := make(Selection, len(idx.Columns))
	for _, col := range idx.Columns {
		sel[col] = map[string]struct{}{}
	}
	return sel
}

// Toggle checks (on) or unchecks value under column, validated against idx.
func (s Selection) Toggle(idx Index, column, value string, on bool) (Selection, error) {
	if !idx.Has(column, value) {
		return s, fmt.Errorf("%w: %s=%q", ErrUnknownFacet, column, value)
	}
	next := s.clone()
	set := next[column]
	if set == nil {
		set = map[string]struct{}{}
		next[column] = set
	}
	if on {
		set[value] = struct{}{}
	} else {
		delete(set, value)
	}
	return next, nil
}

// Reset clears every checked value, keeping the column slots.
func (s Selection) Reset() Selection {
	next := make(Selection, len(s))
	for col := range s {
		next[col] = map[string]struct{}{}
	}
	return next
}

// Active returns the columns with at least one checked value, sorted.
func (s Selection) Active() []string {
	var cols []string
	for col, set := range s {
		if len(set) > 0 {
			cols = append(cols, col)
		}
	}
	sort.Strings(cols)
	return cols
}

// Checked reports whether value is checked under column.
func (s Selection) Checked(column, value string) bool {
	_, ok := s[column][value]
	return ok
}

// Values returns the checked values under column, sorted.
func (s Selection) Values(column string) []string {
	set := s[column]
	out := make([]string, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// FromPairs builds a selection from column/value pairs, dropping pairs
// the index does not offer when strict is false.
func FromPairs(idx Index, pairs map[string][]string, strict bool) (Selection, error) {
	sel := NewSelection(idx)
	var err error
	for col, values := range pairs {
		for _, v := range values {
			var next Selection
			next, err = sel.Toggle(idx, col, v, true)
			if err != nil {
				if strict {
					return nil, err
				}
				continue
			}
			sel = next
		}
	}
	return sel, nil
}

func (s Selection) clone() Selection {
	next := make(Selection, len(s))
	for col, set := range s {
		cp := make(map[string]struct{}, len(set))
		for v := range set {
			cp[v] = struct{}{}
		}
		next[col] = cp
	}
	return next
}
