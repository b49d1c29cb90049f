package store

import (
	"context"
	"testing"
	"time"

	"github.com/licitaflow/stagegate/internal/domain"
)

func TestSnapshotRepo_SaveAndGetLatest(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	repo := &SnapshotRepo{}
	now := time.Now().Unix()

	snap1 := domain.StageSnapshot{
		ProcessID: "proc-1", StageNumber: 3,
		SnapshotJSON: `{"assinaturasConcluidas":1}`, Checksum: "abc", CreatedAt: now,
	}
	snap2 := domain.StageSnapshot{
		ProcessID: "proc-1", StageNumber: 3,
		SnapshotJSON: `{"assinaturasConcluidas":2}`, Checksum: "def", CreatedAt: now + 1,
	}

	for _, s := range []domain.StageSnapshot{snap1, snap2} {
		tx, err := db.Begin()
		if err != nil {
			t.Fatalf("begin: %v", err)
		}
		if err := repo.SaveTx(ctx, tx, s); err != nil {
			t.Fatalf("SaveTx %s: %v", s.Checksum, err)
		}
		tx.Commit()
	}

	got, err := repo.GetLatest(ctx, db, "proc-1", 3)
	if err != nil {
		t.Fatalf("GetLatest: %v", err)
	}
	if got == nil {
		t.Fatal("expected snapshot, got nil")
	}
	if got.Checksum != "def" {
		t.Errorf("Checksum = %q, want %q", got.Checksum, "def")
	}
}

func TestSnapshotRepo_GetLatest_NotFound(t *testing.T) {
	db := newTestDB(t)

	got, err := (&SnapshotRepo{}).GetLatest(context.Background(), db, "proc-1", 1)
	if err != nil {
		t.Fatalf("GetLatest: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil, got %+v", got)
	}
}
