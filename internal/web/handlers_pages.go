package web

import (
	"bytes"
	"net/http"

	"github.com/a-h/templ"

	"github.com/JonMunkholm/tabview/internal/core"
	"github.com/JonMunkholm/tabview/internal/dataset"
	"github.com/JonMunkholm/tabview/internal/logging"
	"github.com/JonMunkholm/tabview/internal/query"
	"github.com/JonMunkholm/tabview/internal/web/templates"
)

const recentActivityLimit = 10

// handleDashboard renders both kinds with their status.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	data := templates.DashboardData{
		Limiter: s.service.LimiterStatus(),
		Recent:  s.service.GetAuditLog(core.AuditLogFilter{Limit: recentActivityLimit}),
	}
	for _, st := range s.service.Status() {
		data.Cards = append(data.Cards, templates.KindCard{Label: st.Kind.Label(), Status: st})
	}
	s.renderHTML(w, r, http.StatusOK, templates.Dashboard(data))
}

// handleView renders the table page of one kind. A submitted filter form
// (q, f[col], apply) is stored as the kind's state before rendering.
func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	kind, err := kindParam(r)
	if err != nil {
		respondError(w, r, err, 0)
		return
	}

	if values := r.URL.Query(); hasQueryParams(values) {
		if _, err := s.service.SetSearch(kind, values.Get("q")); err != nil {
			respondError(w, r, err, 0)
			return
		}
		if _, err := s.service.SetFilters(kind, facetParams(values)); err != nil {
			respondError(w, r, err, 0)
			return
		}
	}

	s.renderView(w, r, kind, http.StatusOK, "", false)
}

// handleViewUpload is the form fallback of the upload API: it waits for
// the upload and renders the page with the outcome.
func (s *Server) handleViewUpload(w http.ResponseWriter, r *http.Request) {
	kind, err := kindParam(r)
	if err != nil {
		respondError(w, r, err, 0)
		return
	}

	name, data, err := readUploadFile(w, r, s.cfg.Upload.MaxFileSize)
	if err != nil {
		s.renderView(w, r, kind, statusFor(err), core.FormatUserError(err), false)
		return
	}

	ctx := WithRequestMetadata(r.Context(), r)
	res, err := s.service.Upload(ctx, kind, name, bytes.NewReader(data), int64(len(data)))
	if res == nil {
		s.renderView(w, r, kind, statusFor(err), core.FormatUserError(err), false)
		return
	}

	status := http.StatusOK
	if !res.Succeeded() && res.Phase != core.PhaseSuperseded {
		status = statusFor(res.Err)
	}
	s.renderView(w, r, kind, status, res.Message(), res.Succeeded())
}

func (s *Server) handleViewClear(w http.ResponseWriter, r *http.Request) {
	kind, err := kindParam(r)
	if err != nil {
		respondError(w, r, err, 0)
		return
	}
	if err := s.service.Clear(WithRequestMetadata(r.Context(), r), kind); err != nil {
		respondError(w, r, err, 0)
		return
	}
	http.Redirect(w, r, "/view/"+kind.String(), http.StatusSeeOther)
}

func (s *Server) renderView(w http.ResponseWriter, r *http.Request, kind dataset.Kind, status int, flash string, ok bool) {
	c, err := s.service.Context(kind)
	if err != nil {
		respondError(w, r, err, 0)
		return
	}

	data := templates.TableViewData{
		Kind:      kind,
		Label:     kind.Label(),
		Status:    c.Status(),
		Headers:   c.Headers(),
		Page:      query.Paginate(c.Results(), s.cfg.View.DisplayCap),
		Search:    c.Search,
		Facets:    c.Facets,
		Selection: c.Selection,
		Flash:     flash,
		FlashOK:   ok,
	}
	s.renderHTML(w, r, status, templates.TableView(data))
}

func (s *Server) renderHTML(w http.ResponseWriter, r *http.Request, status int, c templ.Component) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := c.Render(r.Context(), w); err != nil {
		logging.FromContext(r.Context()).Error("render failed", "path", r.URL.Path, "error", err)
	}
}
