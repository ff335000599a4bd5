package services

import (
	"testing"
	"time"

	"github.com/likenovel/likenovel-backend/internal/repos"
	"github.com/likenovel/likenovel-backend/internal/types"
)

func TestDeriveInterest_NoHistory(t *testing.T) {
	status := deriveInterest(nil, time.Now())
	if status.State != types.InterestNone {
		t.Fatalf("state = %q, want no_interest", status.State)
	}
	if status.InterestEndDate != nil {
		t.Fatalf("expected nil end date")
	}
}

func TestDeriveInterest_WithinWindow(t *testing.T) {
	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	latest := &types.UsageRecord{UpdatedAt: now.Add(-time.Hour)}
	status := deriveInterest(latest, now)
	if status.State != types.InterestEndingSoon {
		t.Fatalf("state = %q, want interest_ending_soon", status.State)
	}
	wantEnd := latest.UpdatedAt.Add(72 * time.Hour)
	if status.InterestEndDate == nil || !status.InterestEndDate.Equal(wantEnd) {
		t.Fatalf("end date = %v, want %v", status.InterestEndDate, wantEnd)
	}
	wantRemaining := int64(71 * 3600)
	if status.RemainingSeconds != wantRemaining {
		t.Fatalf("remaining = %d, want %d", status.RemainingSeconds, wantRemaining)
	}
}

func TestDeriveInterest_Expired(t *testing.T) {
	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	latest := &types.UsageRecord{UpdatedAt: now.Add(-73 * time.Hour)}
	status := deriveInterest(latest, now)
	if status.State != types.InterestNone {
		t.Fatalf("state = %q, want no_interest", status.State)
	}
	if status.InterestEndDate == nil {
		t.Fatalf("expected end date on expired record")
	}
}

func TestDeriveInterest_ExactBoundaryExpires(t *testing.T) {
	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	latest := &types.UsageRecord{UpdatedAt: now.Add(-72 * time.Hour)}
	status := deriveInterest(latest, now)
	if status.State != types.InterestNone {
		t.Fatalf("state at end instant = %q, want no_interest", status.State)
	}
}

func TestInterestRevive_RestartsClock(t *testing.T) {
	db := newTestDB(t)
	log := newTestLogger(t)
	usage := repos.NewUsageRecordRepo(db, log)
	svc := NewInterestService(log, usage)

	stale := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)
	record := &types.UsageRecord{UserID: 1, ProductID: 9, UseYn: types.YnYes}
	if err := db.Create(record).Error; err != nil {
		t.Fatalf("seed usage: %v", err)
	}
	// gorm stamps UpdatedAt on create, so backdate it directly.
	if err := db.Model(record).UpdateColumn("updated_date", stale).Error; err != nil {
		t.Fatalf("backdate usage: %v", err)
	}

	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	status, err := svc.Status(t.Context(), 1, 9, now)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if status.State != types.InterestNone {
		t.Fatalf("pre-revive state = %q, want no_interest", status.State)
	}

	status, err = svc.Revive(t.Context(), 1, 9, now)
	if err != nil {
		t.Fatalf("Revive: %v", err)
	}
	if status.State != types.InterestEndingSoon {
		t.Fatalf("post-revive state = %q, want interest_ending_soon", status.State)
	}
	if status.RemainingSeconds != 72*3600 {
		t.Fatalf("remaining = %d, want full window", status.RemainingSeconds)
	}
}
