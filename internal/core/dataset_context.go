package core

import (
	"github.com/JonMunkholm/tabview/internal/dataset"
	"github.com/JonMunkholm/tabview/internal/facet"
	"github.com/JonMunkholm/tabview/internal/query"
)

// DatasetContext is everything the viewer knows about one kind: the active
// dataset, its facets, and the user's search and checkbox state. Values
// are never mutated after publication; every change builds a new one.
type DatasetContext struct {
	Kind      dataset.Kind
	Dataset   *dataset.Dataset
	Facets    facet.Index
	Selection facet.Selection
	Search    string
}

// newDatasetContext indexes ds and starts with no search and no filters.
// A nil ds gives the empty context.
func newDatasetContext(kind dataset.Kind, ds *dataset.Dataset) *DatasetContext {
	idx := facet.Build(ds)
	return &DatasetContext{
		Kind:      kind,
		Dataset:   ds,
		Facets:    idx,
		Selection: facet.NewSelection(idx),
	}
}

// Exists reports whether a dataset is loaded.
func (c *DatasetContext) Exists() bool {
	return c != nil && c.Dataset != nil && !c.Dataset.Empty()
}

// Headers returns the dataset headers or nil.
func (c *DatasetContext) Headers() []string {
	if !c.Exists() {
		return nil
	}
	return c.Dataset.Headers
}

// Results applies the context's own search and selection.
func (c *DatasetContext) Results() []dataset.Row {
	return c.Query(c.Search, c.Selection)
}

// Query evaluates an ad hoc search and selection without touching the
// context's state.
func (c *DatasetContext) Query(term string, sel facet.Selection) []dataset.Row {
	if !c.Exists() {
		return nil
	}
	return query.Evaluate(c.Dataset.Rows, c.Dataset.Headers, term, sel)
}

// Status summarizes the context.
func (c *DatasetContext) Status() DatasetStatus {
	st := DatasetStatus{Kind: c.Kind}
	if !c.Exists() {
		return st
	}
	st.Exists = true
	st.Rows = len(c.Dataset.Rows)
	st.Columns = len(c.Dataset.Headers)
	st.Facets = len(c.Facets.Columns)
	if !c.Dataset.SavedAt.IsZero() {
		t := c.Dataset.SavedAt
		st.SavedAt = &t
	}
	return st
}

func (c *DatasetContext) withSearch(term string) *DatasetContext {
	next := *c
	next.Search = term
	return &next
}

func (c *DatasetContext) withSelection(sel facet.Selection) *DatasetContext {
	next := *c
	next.Selection = sel
	return &next
}
