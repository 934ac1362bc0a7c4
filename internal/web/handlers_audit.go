package web

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/JonMunkholm/tabview/internal/core"
	"github.com/JonMunkholm/tabview/internal/dataset"
	"github.com/JonMunkholm/tabview/internal/logging"
)

const defaultAuditLimit = 100

// AuditLogResponse is the JSON body of GET /api/audit.
type AuditLogResponse struct {
	Entries []core.AuditEntry `json:"entries"`
	Count   int               `json:"count"`
}

// auditFilter reads kind, action, from (YYYY-MM-DD or RFC 3339) and limit.
func auditFilter(r *http.Request, defaultLimit int) (core.AuditLogFilter, error) {
	q := r.URL.Query()
	f := core.AuditLogFilter{
		Action: core.AuditAction(q.Get("action")),
		Limit:  parseIntParam(r, "limit", defaultLimit),
	}

	if k := q.Get("kind"); k != "" {
		kind, err := dataset.ParseKind(k)
		if err != nil {
			return f, err
		}
		f.Kind = kind
	}

	if from := q.Get("from"); from != "" {
		t, err := time.Parse("2006-01-02", from)
		if err != nil {
			t, err = time.Parse(time.RFC3339, from)
		}
		if err != nil {
			return f, fmt.Errorf("%w: from %q", errBadRequest, from)
		}
		f.Since = t
	}
	return f, nil
}

// handleAuditLog returns recent uploads and clears, newest first.
func (s *Server) handleAuditLog(w http.ResponseWriter, r *http.Request) {
	filter, err := auditFilter(r, defaultAuditLimit)
	if err != nil {
		respondError(w, r, err, 0)
		return
	}

	entries := s.service.GetAuditLog(filter)
	if entries == nil {
		entries = []core.AuditEntry{}
	}
	writeJSON(w, http.StatusOK, AuditLogResponse{Entries: entries, Count: len(entries)})
}

// handleAuditLogExport writes every matching entry as CSV.
func (s *Server) handleAuditLogExport(w http.ResponseWriter, r *http.Request) {
	filter, err := auditFilter(r, 0)
	if err != nil {
		respondError(w, r, err, 0)
		return
	}

	filename := fmt.Sprintf("audit_log_%s.csv", time.Now().Format("20060102_150405"))
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))

	cw := csv.NewWriter(w)
	_ = cw.Write([]string{
		"ID", "Timestamp", "Action", "Severity", "Dataset",
		"File", "Upload ID", "Phase", "Rows", "Error Code",
		"IP Address", "User Agent",
	})
	for _, e := range s.service.GetAuditLog(filter) {
		if err := cw.Write([]string{
			e.ID,
			e.CreatedAt.Format("2006-01-02 15:04:05"),
			string(e.Action),
			string(e.Severity),
			e.Kind.String(),
			e.FileName,
			e.UploadID,
			string(e.Phase),
			strconv.Itoa(e.Rows),
			e.ErrorCode,
			e.IPAddress,
			e.UserAgent,
		}); err != nil {
			logging.FromContext(r.Context()).Warn("audit export aborted", "error", err)
			return
		}
	}
	cw.Flush()
}
