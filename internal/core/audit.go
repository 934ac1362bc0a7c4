package core

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/tabview/internal/dataset"
)

// AuditAction represents the type of action being audited.
type AuditAction string

const (
	ActionUpload         AuditAction = "upload"
	ActionUploadRollback AuditAction = "upload_rollback"
	ActionUploadCancel   AuditAction = "upload_cancel"
	ActionDatasetClear   AuditAction = "dataset_clear"
)

// AuditSeverity represents the severity level of an audit entry.
type AuditSeverity string

const (
	SeverityLow      AuditSeverity = "low"
	SeverityMedium   AuditSeverity = "medium"
	SeverityHigh     AuditSeverity = "high"
	SeverityCritical AuditSeverity = "critical"
)

// DefaultAuditCapacity is how many entries the log keeps by default.
const DefaultAuditCapacity = 500

// AuditEntry records one change to a dataset slot, successful or not.
type AuditEntry struct {
	ID        string        `json:"id"`
	Action    AuditAction   `json:"action"`
	Severity  AuditSeverity `json:"severity"`
	Kind      dataset.Kind  `json:"kind"`
	UploadID  string        `json:"upload_id,omitempty"`
	FileName  string        `json:"file_name,omitempty"`
	Phase     UploadPhase   `json:"phase,omitempty"`
	Rows      int           `json:"rows,omitempty"`
	ErrorCode string        `json:"error_code,omitempty"`
	IPAddress string        `json:"ip_address,omitempty"`
	UserAgent string        `json:"user_agent,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
}

// AuditLogFilter narrows GetAuditLog. Zero fields match everything.
type AuditLogFilter struct {
	Kind   dataset.Kind
	Action AuditAction
	Since  time.Time
	Limit  int
}

func (f AuditLogFilter) matches(e *AuditEntry) bool {
	if f.Kind != "" && e.Kind != f.Kind {
		return false
	}
	if f.Action != "" && e.Action != f.Action {
		return false
	}
	return f.Since.IsZero() || !e.CreatedAt.Before(f.Since)
}

// determineSeverity returns the appropriate severity for an action.
func determineSeverity(action AuditAction) AuditSeverity {
	switch action {
	case ActionUpload, ActionUploadRollback:
		return SeverityHigh
	case ActionDatasetClear:
		return SeverityCritical
	case ActionUploadCancel:
		return SeverityLow
	default:
		return SeverityMedium
	}
}

// AuditLog keeps the most recent entries in a ring. It lives in memory
// only; the datasets themselves are what gets persisted.
type AuditLog struct {
	mu      sync.Mutex
	entries []AuditEntry
	next    int
	full    bool
	now     func() time.Time
}

// NewAuditLog creates a log holding up to capacity entries.
func NewAuditLog(capacity int) *AuditLog {
	if capacity <= 0 {
		capacity = DefaultAuditCapacity
	}
	return &AuditLog{
		entries: make([]AuditEntry, capacity),
		now:     time.Now,
	}
}

// Record stamps e with an ID, severity, time and the client metadata of
// ctx, then stores it, evicting the oldest entry when full.
func (a *AuditLog) Record(ctx context.Context, e AuditEntry) AuditEntry {
	e.ID = uuid.NewString()
	e.Severity = determineSeverity(e.Action)
	e.IPAddress = GetIPAddressFromContext(ctx)
	e.UserAgent = GetUserAgentFromContext(ctx)

	a.mu.Lock()
	defer a.mu.Unlock()
	e.CreatedAt = a.now()
	a.entries[a.next] = e
	a.next++
	if a.next == len(a.entries) {
		a.next = 0
		a.full = true
	}
	return e
}

// Entries returns matching entries, newest first.
func (a *AuditLog) Entries(f AuditLogFilter) []AuditEntry {
	a.mu.Lock()
	defer a.mu.Unlock()

	n := a.next
	if a.full {
		n = len(a.entries)
	}
	var out []AuditEntry
	for i := 0; i < n; i++ {
		idx := (a.next - 1 - i + len(a.entries)) % len(a.entries)
		e := &a.entries[idx]
		if !f.matches(e) {
			continue
		}
		out = append(out, *e)
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
	}
	return out
}

// GetAuditLog returns recorded dataset changes, newest first.
func (s *Service) GetAuditLog(f AuditLogFilter) []AuditEntry {
	return s.audit.Entries(f)
}

// auditUpload records the outcome of an upload. Superseded uploads are
// left out; the upload that replaced them has its own entry.
func (s *Service) auditUpload(ctx context.Context, res *UploadResult) {
	e := AuditEntry{
		Kind:     res.Kind,
		UploadID: res.UploadID,
		FileName: res.FileName,
		Phase:    res.Phase,
		Rows:     res.Rows,
	}
	switch res.Phase {
	case PhaseComplete:
		e.Action = ActionUpload
	case PhaseCancelled:
		e.Action = ActionUploadCancel
	case PhaseFailed:
		e.Action = ActionUploadRollback
		e.ErrorCode = MapError(res.Err).Code
	default:
		return
	}
	s.audit.Record(ctx, e)
}
