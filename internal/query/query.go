// Package query filters dataset rows by a search term and a facet
// selection.
package query

import (
	"strings"

	"github.com/JonMunkholm/tabview/internal/dataset"
	"github.com/JonMunkholm/tabview/internal/facet"
)

// DefaultDisplayCap is how many rows a table view renders.
const DefaultDisplayCap = 200

// Evaluate returns the rows matching both the search term and the facet
// selection, in their original order. A row matches the term when any of
// its header-keyed values contains it case-insensitively, so cells outside
// headers are never searched; it matches the selection when
// for every column with checked values its cell equals one of them. An
// empty term and an empty selection keep every row.
func Evaluate(rows []dataset.Row, headers []string, term string, sel facet.Selection) []dataset.Row {
	needle := strings.ToLower(term)
	active := sel.Active()

	out := make([]dataset.Row, 0, len(rows))
	for _, row := range rows {
		if needle != "" && !matchesTerm(row, headers, needle) {
			continue
		}
		if !matchesSelection(row, sel, active) {
			continue
		}
		out = append(out, row)
	}
	return out
}

func matchesTerm(row dataset.Row, headers []string, needle string) bool {
	for _, h := range headers {
		if strings.Contains(strings.ToLower(row[h]), needle) {
			return true
		}
	}
	return false
}

// matchesSelection ANDs across columns and ORs within a column. A missing
// cell matches nothing.
func matchesSelection(row dataset.Row, sel facet.Selection, active []string) bool {
	for _, col := range active {
		v, ok := row[col]
		if !ok {
			return false
		}
		if _, hit := sel[col][v]; !hit {
			return false
		}
	}
	return true
}

// Page is the slice of a result set that a view renders.
type Page struct {
	Rows  []dataset.Row
	Total int
}

// Truncated reports whether rows were cut off by the display cap.
func (p Page) Truncated() bool { return len(p.Rows) < p.Total }

// Paginate caps rows at limit. A limit of zero or less keeps everything.
func Paginate(rows []dataset.Row, limit int) Page {
	if limit <= 0 || len(rows) <= limit {
		return Page{Rows: rows, Total: len(rows)}
	}
	return Page{Rows: rows[:limit], Total: len(rows)}
}
