package web

import (
	"encoding/csv"
	"fmt"
	"io"
	"net/http"

	"github.com/JonMunkholm/tabview/internal/core"
	"github.com/JonMunkholm/tabview/internal/dataset"
	"github.com/JonMunkholm/tabview/internal/facet"
	"github.com/JonMunkholm/tabview/internal/logging"
	"github.com/JonMunkholm/tabview/internal/query"
	"github.com/JonMunkholm/tabview/internal/web/templates"
)

// FacetColumn is one facet with its values in the JSON API.
type FacetColumn struct {
	Name   string       `json:"name"`
	Values []FacetValue `json:"values"`
}

type FacetValue struct {
	Value   string `json:"value"`
	Checked bool   `json:"checked"`
}

type FacetsResponse struct {
	Kind        dataset.Kind  `json:"kind"`
	Columns     []FacetColumn `json:"columns"`
	Placeholder string        `json:"placeholder,omitempty"`
}

// RowsResponse is a page of query results.
type RowsResponse struct {
	Kind      dataset.Kind        `json:"kind"`
	Headers   []string            `json:"headers"`
	Rows      []dataset.Row       `json:"rows"`
	Total     int                 `json:"total"`
	Shown     int                 `json:"shown"`
	Truncated bool                `json:"truncated"`
	Search    string              `json:"search"`
	Filters   map[string][]string `json:"filters"`
}

// StateResponse reports a kind's search and filter state after a change.
type StateResponse struct {
	Kind    dataset.Kind        `json:"kind"`
	Search  string              `json:"search"`
	Filters map[string][]string `json:"filters"`
	Total   int                 `json:"total"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleDatasetStatus(w http.ResponseWriter, r *http.Request) {
	c, ok := s.contextFor(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, c.Status())
}

func (s *Server) handleClearDataset(w http.ResponseWriter, r *http.Request) {
	kind, err := kindParam(r)
	if err != nil {
		respondError(w, r, err, 0)
		return
	}
	if err := s.service.Clear(WithRequestMetadata(r.Context(), r), kind); err != nil {
		respondError(w, r, err, 0)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared", "kind": kind.String()})
}

func (s *Server) handleFacets(w http.ResponseWriter, r *http.Request) {
	c, ok := s.contextFor(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, facetsResponse(c))
}

func facetsResponse(c *core.DatasetContext) FacetsResponse {
	resp := FacetsResponse{Kind: c.Kind, Columns: []FacetColumn{}}
	if c.Facets.Empty() {
		resp.Placeholder = templates.NoFacetsMessage
		return resp
	}
	for _, col := range c.Facets.Columns {
		fc := FacetColumn{Name: col}
		for _, v := range c.Facets.Values[col] {
			fc.Values = append(fc.Values, FacetValue{Value: v, Checked: c.Selection.Checked(col, v)})
		}
		resp.Columns = append(resp.Columns, fc)
	}
	return resp
}

// handleRows returns matching rows. Without q or f[col] parameters the
// kind's stored search and filters apply; with them the query is ad hoc
// and the stored state is left alone.
func (s *Server) handleRows(w http.ResponseWriter, r *http.Request) {
	c, ok := s.contextFor(w, r)
	if !ok {
		return
	}
	term, sel, err := requestQuery(r, c)
	if err != nil {
		respondError(w, r, err, 0)
		return
	}

	page := query.Paginate(c.Query(term, sel), parseIntParam(r, "limit", s.cfg.View.DisplayCap))
	rows := page.Rows
	if rows == nil {
		rows = []dataset.Row{}
	}
	writeJSON(w, http.StatusOK, RowsResponse{
		Kind:      c.Kind,
		Headers:   c.Headers(),
		Rows:      rows,
		Total:     page.Total,
		Shown:     len(page.Rows),
		Truncated: page.Truncated(),
		Search:    term,
		Filters:   selectionPairs(sel),
	})
}

// handleExport streams every matching row as CSV, without the display cap.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	c, ok := s.contextFor(w, r)
	if !ok {
		return
	}
	term, sel, err := requestQuery(r, c)
	if err != nil {
		respondError(w, r, err, 0)
		return
	}

	headers := c.Headers()
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.csv"`, c.Kind))

	if err := writeRowsCSV(w, headers, c.Query(term, sel)); err != nil {
		logging.FromContext(r.Context()).Warn("export aborted", "kind", c.Kind, "error", err)
	}
}

// writeRowsCSV writes a header line and one record per row.
func writeRowsCSV(w io.Writer, headers []string, rows []dataset.Row) error {
	cw := csv.NewWriter(w)
	if len(headers) > 0 {
		if err := cw.Write(headers); err != nil {
			return err
		}
	}
	record := make([]string, len(headers))
	for _, row := range rows {
		for i, h := range headers {
			record[i] = row[h]
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

type searchRequest struct {
	Q string `json:"q"`
}

func (s *Server) handleSetSearch(w http.ResponseWriter, r *http.Request) {
	kind, err := kindParam(r)
	if err != nil {
		respondError(w, r, err, 0)
		return
	}
	var req searchRequest
	if err := decodeBody(r, &req, func(get func(string) string) { req.Q = get("q") }); err != nil {
		respondError(w, r, err, 0)
		return
	}
	s.respondState(w, r)(s.service.SetSearch(kind, req.Q))
}

type toggleRequest struct {
	Column  string `json:"column"`
	Value   string `json:"value"`
	Checked bool   `json:"checked"`
}

func (s *Server) handleToggleFilter(w http.ResponseWriter, r *http.Request) {
	kind, err := kindParam(r)
	if err != nil {
		respondError(w, r, err, 0)
		return
	}
	var req toggleRequest
	err = decodeBody(r, &req, func(get func(string) string) {
		req.Column, req.Value = get("column"), get("value")
		req.Checked = get("checked") == "true" || get("checked") == "on" || get("checked") == "1"
	})
	if err != nil {
		respondError(w, r, err, 0)
		return
	}
	s.respondState(w, r)(s.service.ToggleFacet(kind, req.Column, req.Value, req.Checked))
}

func (s *Server) handleResetFilters(w http.ResponseWriter, r *http.Request) {
	kind, err := kindParam(r)
	if err != nil {
		respondError(w, r, err, 0)
		return
	}
	s.respondState(w, r)(s.service.ResetFilters(kind))
}

// respondState writes the outcome of a state change.
func (s *Server) respondState(w http.ResponseWriter, r *http.Request) func(*core.DatasetContext, error) {
	return func(c *core.DatasetContext, err error) {
		if err != nil {
			respondError(w, r, err, 0)
			return
		}
		writeJSON(w, http.StatusOK, StateResponse{
			Kind:    c.Kind,
			Search:  c.Search,
			Filters: selectionPairs(c.Selection),
			Total:   len(c.Results()),
		})
	}
}

func (s *Server) contextFor(w http.ResponseWriter, r *http.Request) (*core.DatasetContext, bool) {
	kind, err := kindParam(r)
	if err != nil {
		respondError(w, r, err, 0)
		return nil, false
	}
	c, err := s.service.Context(kind)
	if err != nil {
		respondError(w, r, err, 0)
		return nil, false
	}
	return c, true
}

// requestQuery returns the ad hoc query of r, or the stored state of c
// when r has none.
func requestQuery(r *http.Request, c *core.DatasetContext) (string, facet.Selection, error) {
	values := r.URL.Query()
	if !hasQueryParams(values) {
		return c.Search, c.Selection, nil
	}
	sel, err := facet.FromPairs(c.Facets, facetParams(values), true)
	if err != nil {
		return "", facet.Selection{}, err
	}
	return values.Get("q"), sel, nil
}
