package core

import (
	"context"
	"testing"
	"time"

	"github.com/JonMunkholm/tabview/internal/dataset"
)

func TestAuditLog_RingKeepsNewest(t *testing.T) {
	log := NewAuditLog(3)
	ctx := context.Background()
	for _, name := range []string{"a.csv", "b.csv", "c.csv", "d.csv"} {
		log.Record(ctx, AuditEntry{Action: ActionUpload, Kind: dataset.KindMain, FileName: name})
	}

	got := log.Entries(AuditLogFilter{})
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	want := []string{"d.csv", "c.csv", "b.csv"}
	for i, e := range got {
		if e.FileName != want[i] {
			t.Errorf("entry %d = %s, want %s", i, e.FileName, want[i])
		}
	}
}

func TestAuditLog_Filter(t *testing.T) {
	log := NewAuditLog(10)
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	tick := 0
	log.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	}

	ctx := ContextWithIPAddress(context.Background(), "10.0.0.7")
	log.Record(ctx, AuditEntry{Action: ActionUpload, Kind: dataset.KindMain})
	log.Record(ctx, AuditEntry{Action: ActionDatasetClear, Kind: dataset.KindMain})
	log.Record(ctx, AuditEntry{Action: ActionUpload, Kind: dataset.KindHistory})

	tests := []struct {
		name   string
		filter AuditLogFilter
		want   int
	}{
		{"all", AuditLogFilter{}, 3},
		{"kind", AuditLogFilter{Kind: dataset.KindMain}, 2},
		{"action", AuditLogFilter{Action: ActionUpload}, 2},
		{"since", AuditLogFilter{Since: base.Add(2 * time.Minute)}, 2},
		{"limit", AuditLogFilter{Limit: 1}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := len(log.Entries(tt.filter)); got != tt.want {
				t.Errorf("got %d entries, want %d", got, tt.want)
			}
		})
	}

	e := log.Entries(AuditLogFilter{Limit: 1})[0]
	if e.IPAddress != "10.0.0.7" || e.ID == "" || e.Severity != SeverityHigh {
		t.Errorf("entry not stamped: %+v", e)
	}
}

func TestDetermineSeverity(t *testing.T) {
	tests := map[AuditAction]AuditSeverity{
		ActionUpload:         SeverityHigh,
		ActionUploadRollback: SeverityHigh,
		ActionDatasetClear:   SeverityCritical,
		ActionUploadCancel:   SeverityLow,
		AuditAction("other"): SeverityMedium,
	}
	for action, want := range tests {
		if got := determineSeverity(action); got != want {
			t.Errorf("determineSeverity(%s) = %s, want %s", action, got, want)
		}
	}
}
