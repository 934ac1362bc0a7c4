package core

import (
	"context"
	"fmt"
	"time"

	"github.com/JonMunkholm/tabview/internal/dataset"
)

// DatasetStore persists one dataset per kind. *store.Store satisfies it.
type DatasetStore interface {
	Save(ctx context.Context, kind dataset.Kind, ds *dataset.Dataset) error
	Load(ctx context.Context, kind dataset.Kind) (*dataset.Dataset, error)
	Clear(ctx context.Context, kind dataset.Kind) error
}

// UploadPhase indicates the current stage of upload processing.
type UploadPhase string

const (
	PhaseStarting   UploadPhase = "starting"
	PhaseReading    UploadPhase = "reading"
	PhaseSaving     UploadPhase = "saving"
	PhaseIndexing   UploadPhase = "indexing"
	PhaseComplete   UploadPhase = "complete"
	PhaseFailed     UploadPhase = "failed"
	PhaseCancelled  UploadPhase = "cancelled"
	PhaseSuperseded UploadPhase = "superseded"
)

// Terminal reports whether no further progress follows this phase.
func (p UploadPhase) Terminal() bool {
	switch p {
	case PhaseComplete, PhaseFailed, PhaseCancelled, PhaseSuperseded:
		return true
	}
	return false
}

// UploadProgress represents the current state of an upload operation.
type UploadProgress struct {
	UploadID   string       `json:"upload_id"`
	Kind       dataset.Kind `json:"kind"`
	Phase      UploadPhase  `json:"phase"`
	FileName   string       `json:"file_name"`
	BytesRead  int64        `json:"bytes_read"`
	BytesTotal int64        `json:"bytes_total"`
	Rows       int          `json:"rows"`
	Error      string       `json:"error,omitempty"`
}

// Percent returns byte progress 0-100. Parsing finishes at 90; saving and
// indexing fill the rest.
func (p UploadProgress) Percent() int {
	switch p.Phase {
	case PhaseComplete:
		return 100
	case PhaseSaving:
		return 92
	case PhaseIndexing:
		return 97
	}
	if p.BytesTotal <= 0 {
		return 0
	}
	pct := int(p.BytesRead * 90 / p.BytesTotal)
	if pct > 90 {
		pct = 90
	}
	return pct
}

// UploadResult contains the outcome of an upload operation.
type UploadResult struct {
	UploadID string        `json:"upload_id"`
	Kind     dataset.Kind  `json:"kind"`
	FileName string        `json:"file_name"`
	Phase    UploadPhase   `json:"phase"`
	Rows     int           `json:"rows"`
	Columns  int           `json:"columns"`
	SavedAt  time.Time     `json:"saved_at,omitempty"`
	Duration time.Duration `json:"duration"`
	Error    string        `json:"error,omitempty"`
	Err      error         `json:"-"`
}

// Succeeded reports whether the upload replaced the active dataset.
func (r *UploadResult) Succeeded() bool {
	return r != nil && r.Phase == PhaseComplete
}

// Message is the one-line status shown to the user after an upload.
func (r *UploadResult) Message() string {
	switch {
	case r == nil:
		return ""
	case r.Succeeded():
		return fmt.Sprintf("Upload %s succeeded (%d rows)", r.Kind, r.Rows)
	case r.Phase == PhaseSuperseded:
		return fmt.Sprintf("Upload %s was replaced by a newer upload", r.Kind)
	default:
		return fmt.Sprintf("Upload %s failed: %s", r.Kind, FormatUserError(r.Err))
	}
}

// DatasetStatus summarizes a slot for status displays.
type DatasetStatus struct {
	Kind    dataset.Kind `json:"kind"`
	Exists  bool         `json:"exists"`
	Rows    int          `json:"rows"`
	Columns int          `json:"columns"`
	Facets  int          `json:"facets"`
	SavedAt *time.Time   `json:"saved_at,omitempty"`
}
