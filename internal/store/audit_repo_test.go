package store

import (
	"context"
	"testing"
	"time"

	"github.com/licitaflow/stagegate/internal/domain"
)

func TestAuditRepo_RecordAndList(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	repo := &AuditRepo{}
	now := time.Now().Unix()

	records := []domain.AuditRecord{
		{ID: "aud-1", ProcessID: "proc-1", Category: "permission", Actor: "Ana", Action: "complete_stage", RequestJSON: "{}", DecisionJSON: `{"allowed":false}`, Severity: "warning", CreatedAt: now},
		{ID: "aud-2", ProcessID: "proc-1", Category: "permission", Actor: "Bruno", Action: "delete_stage", RequestJSON: "{}", DecisionJSON: `{"allowed":false}`, Severity: "warning", CreatedAt: now + 1},
		{ID: "aud-3", ProcessID: "proc-2", Category: "permission", Actor: "Ana", Action: "add_stage", RequestJSON: "{}", DecisionJSON: `{"allowed":false}`, Severity: "warning", CreatedAt: now + 2},
	}

	for _, r := range records {
		if err := repo.Record(ctx, db, r); err != nil {
			t.Fatalf("Record %s: %v", r.ID, err)
		}
	}

	got, err := repo.ListByProcess(ctx, db, "proc-1")
	if err != nil {
		t.Fatalf("ListByProcess: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 records, got %d", len(got))
	}
	if got[0].ID != "aud-1" {
		t.Errorf("first record ID = %q, want %q", got[0].ID, "aud-1")
	}
	if got[1].ID != "aud-2" {
		t.Errorf("second record ID = %q, want %q", got[1].ID, "aud-2")
	}
}

func TestAuditRepo_DuplicateID(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	repo := &AuditRepo{}

	rec := domain.AuditRecord{
		ID: "aud-dup", ProcessID: "proc-1", Category: "test",
		Action: "test", CreatedAt: time.Now().Unix(),
	}

	if err := repo.Record(ctx, db, rec); err != nil {
		t.Fatalf("first Record: %v", err)
	}

	if err := repo.Record(ctx, db, rec); err == nil {
		t.Error("expected error on duplicate ID, got nil")
	}
}

func TestAuditRepo_ListByProcess_Empty(t *testing.T) {
	db := newTestDB(t)

	got, err := (&AuditRepo{}).ListByProcess(context.Background(), db, "nonexistent")
	if err != nil {
		t.Fatalf("ListByProcess: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil for empty result, got %v", got)
	}
}
