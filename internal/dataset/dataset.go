// Package dataset holds the tabular types shared by the parser, the store,
// the facet index and the query engine.
package dataset

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Kind identifies one of the two dataset slots.
type Kind string

const (
	KindMain    Kind = "main"
	KindHistory Kind = "history"
)

// Kinds lists every slot in display order.
var Kinds = []Kind{KindMain, KindHistory}

// ErrUnknownKind is returned when a kind string names no slot.
var ErrUnknownKind = errors.New("unknown dataset kind")

// ParseKind resolves a kind name case-insensitively.
func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case KindMain:
		return KindMain, nil
	case KindHistory:
		return KindHistory, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

func (k Kind) String() string { return string(k) }

// Label is the human-facing name of the slot.
func (k Kind) Label() string {
	if k == KindHistory {
		return "History"
	}
	return "Main"
}

// Row maps header to cell text. A header with no key is a missing cell,
// which only spreadsheet input produces.
type Row map[string]string

// Get returns the cell for header and whether it was present.
func (r Row) Get(header string) (string, bool) {
	v, ok := r[header]
	return v, ok
}

// Dataset is one parsed file: unique headers in source order and the data
// rows in source order. SavedAt is zero until the store stamps it.
type Dataset struct {
	Headers []string
	Rows    []Row
	SavedAt time.Time
}

// Empty reports whether the dataset has no rows or no headers.
func (d *Dataset) Empty() bool {
	return d == nil || len(d.Headers) == 0 || len(d.Rows) == 0
}

// Len returns the row count, treating nil as empty.
func (d *Dataset) Len() int {
	if d == nil {
		return 0
	}
	return len(d.Rows)
}
