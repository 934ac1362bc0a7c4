package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/tabview/internal/core"
	"github.com/JonMunkholm/tabview/internal/dataset"
)

// UploadResultResponse is the JSON form of core.UploadResult.
type UploadResultResponse struct {
	UploadID   string       `json:"upload_id"`
	Kind       dataset.Kind `json:"kind"`
	FileName   string       `json:"file_name"`
	Phase      string       `json:"phase"`
	Rows       int          `json:"rows"`
	Columns    int          `json:"columns"`
	SavedAt    *time.Time   `json:"saved_at,omitempty"`
	DurationMs int64        `json:"duration_ms"`
	Message    string       `json:"message"`
	Code       string       `json:"code,omitempty"`
}

func toResponse(res *core.UploadResult) UploadResultResponse {
	resp := UploadResultResponse{
		UploadID:   res.UploadID,
		Kind:       res.Kind,
		FileName:   res.FileName,
		Phase:      string(res.Phase),
		Rows:       res.Rows,
		Columns:    res.Columns,
		DurationMs: res.Duration.Milliseconds(),
		Message:    res.Message(),
	}
	if !res.SavedAt.IsZero() {
		t := res.SavedAt
		resp.SavedAt = &t
	}
	if res.Err != nil {
		resp.Code = core.MapError(res.Err).Code
	}
	return resp
}

// UploadsStatusResponse reports limiter usage and uploads in flight.
type UploadsStatusResponse struct {
	Limiter core.UploadLimiterStatus `json:"limiter"`
	Active  []core.UploadProgress    `json:"active"`
}

// handleUpload accepts a multipart "file" and starts replacing the
// dataset of {kind}. The response carries the upload ID to follow.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	kind, err := kindParam(r)
	if err != nil {
		respondError(w, r, err, 0)
		return
	}

	name, data, err := readUploadFile(w, r, s.cfg.Upload.MaxFileSize)
	if err != nil {
		respondError(w, r, err, 0)
		return
	}

	ctx := WithRequestMetadata(r.Context(), r)
	uploadID, err := s.service.StartUpload(ctx, kind, name, data)
	if err != nil {
		respondError(w, r, err, 0)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"upload_id": uploadID})
}

// handleUploadProgress streams upload progress via Server-Sent Events.
// The last event is "complete" with the upload result.
func (s *Server) handleUploadProgress(w http.ResponseWriter, r *http.Request) {
	uploadID := chi.URLParam(r, "uploadID")

	progressCh, err := s.service.SubscribeProgress(uploadID)
	if err != nil {
		respondError(w, r, err, 0)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, r, fmt.Errorf("streaming not supported"), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	for {
		select {
		case progress, ok := <-progressCh:
			if !ok {
				s.writeCompleteEvent(w, r, uploadID)
				flusher.Flush()
				return
			}
			writeEvent(w, "progress", struct {
				core.UploadProgress
				Percent int `json:"percent"`
			}{progress, progress.Percent()})
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}

func (s *Server) writeCompleteEvent(w http.ResponseWriter, r *http.Request, uploadID string) {
	res, err := s.service.GetUploadResult(r.Context(), uploadID)
	if err != nil || res == nil {
		writeEvent(w, "complete", map[string]string{"upload_id": uploadID})
		return
	}
	writeEvent(w, "complete", toResponse(res))
}

func writeEvent(w http.ResponseWriter, event string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		data = []byte("{}")
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
}

// handleCancelUpload cancels an in-progress upload.
func (s *Server) handleCancelUpload(w http.ResponseWriter, r *http.Request) {
	if err := s.service.CancelUpload(chi.URLParam(r, "uploadID")); err != nil {
		respondError(w, r, err, 0)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

// handleUploadResult waits for the upload to finish and returns its result.
func (s *Server) handleUploadResult(w http.ResponseWriter, r *http.Request) {
	res, err := s.service.GetUploadResult(r.Context(), chi.URLParam(r, "uploadID"))
	if err != nil {
		respondError(w, r, err, 0)
		return
	}
	writeJSON(w, http.StatusOK, toResponse(res))
}

func (s *Server) handleUploadsStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, UploadsStatusResponse{
		Limiter: s.service.LimiterStatus(),
		Active:  s.service.ActiveUploads(),
	})
}
