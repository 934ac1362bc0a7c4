package web

// errors.go renders every handler error the same way: the technical error
// is logged with the request ID, the client gets core.MapError's message
// as JSON under /api and as an HTML page elsewhere.

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/JonMunkholm/tabview/internal/core"
	"github.com/JonMunkholm/tabview/internal/dataset"
	"github.com/JonMunkholm/tabview/internal/facet"
	"github.com/JonMunkholm/tabview/internal/logging"
	"github.com/JonMunkholm/tabview/internal/parse"
	"github.com/JonMunkholm/tabview/internal/store"
	"github.com/JonMunkholm/tabview/internal/web/templates"
)

var errRateLimited = errors.New("rate limit exceeded")

// ErrorResponse is the JSON body of an API error.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

// statusFor picks the HTTP status for err. Zero means 500.
func statusFor(err error) int {
	switch {
	case errors.Is(err, dataset.ErrUnknownKind), errors.Is(err, core.ErrUploadNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, parse.ErrUnsupportedExtension):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, parse.ErrEmptyInput), errors.Is(err, parse.ErrNoSheets), errors.Is(err, parse.ErrSheetNotFound):
		return http.StatusUnprocessableEntity
	case errors.Is(err, core.ErrNoFile), errors.Is(err, facet.ErrUnknownFacet), errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrTooManyUploads):
		return http.StatusServiceUnavailable
	case errors.Is(err, store.ErrStorageFull):
		return http.StatusInsufficientStorage
	}
	return http.StatusInternalServerError
}

// respondError logs err and writes the user-facing message. A zero
// statusCode is derived from err.
func respondError(w http.ResponseWriter, r *http.Request, err error, statusCode int) {
	if statusCode == 0 {
		statusCode = statusFor(err)
	}
	msg := core.MapError(err)

	log := logging.FromContext(r.Context())
	attrs := []any{"path", r.URL.Path, "method", r.Method, "status", statusCode, "error", err.Error(), "code", msg.Code}
	if statusCode >= 500 {
		log.Error("request error", attrs...)
	} else {
		log.Warn("request error", attrs...)
	}

	if statusCode == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", "5")
	}

	if wantsJSON(r) {
		respondErrorJSON(w, msg, statusCode)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(statusCode)
	_ = templates.ErrorPage(msg).Render(r.Context(), w)
}

func respondErrorJSON(w http.ResponseWriter, msg core.UserMessage, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(ErrorResponse{
		Error:   msg.Message,
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
	})
}

// wantsJSON checks if the client prefers a JSON response. API routes
// always do.
func wantsJSON(r *http.Request) bool {
	if strings.HasPrefix(r.URL.Path, "/api/") {
		return true
	}
	return strings.Contains(r.Header.Get("Accept"), "application/json") ||
		strings.Contains(r.Header.Get("Content-Type"), "application/json")
}
