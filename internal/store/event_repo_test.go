package store

import (
	"context"
	"testing"
	"time"

	"github.com/licitaflow/stagegate/internal/domain"
)

func TestEventRepo_AppendAndList(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	repo := &EventRepo{}
	base := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

	events := []domain.TimelineEvent{
		{ID: "ev-1", ProcessID: "proc-1", StageNumber: 1, Status: domain.EventCompleted, Title: "Versão enviada", Author: domain.Author{Name: "Ana"}, CreatedAt: base},
		{ID: "ev-2", ProcessID: "proc-1", StageNumber: 2, Status: domain.EventInfo, Title: "Comentário", Author: domain.Author{Name: "Bruno", AvatarURL: "https://example.org/b.png"}, CreatedAt: base.Add(time.Hour),
			Description: "Ajustar cláusula 3",
			Attachments: []domain.Attachment{{Name: "minuta.pdf", Type: "application/pdf", Size: 2048}}},
		{ID: "ev-3", ProcessID: "proc-2", StageNumber: 1, Status: domain.EventPending, Title: "Outro processo", CreatedAt: base},
	}

	for _, e := range events {
		tx, err := db.Begin()
		if err != nil {
			t.Fatalf("begin: %v", err)
		}
		if err := repo.Append(ctx, tx, e); err != nil {
			t.Fatalf("Append %s: %v", e.ID, err)
		}
		tx.Commit()
	}

	got, err := repo.ListByProcess(ctx, db, "proc-1", 0)
	if err != nil {
		t.Fatalf("ListByProcess: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 events, got %d", len(got))
	}
	if got[0].ID != "ev-1" || got[1].ID != "ev-2" {
		t.Errorf("order = [%s %s], want [ev-1 ev-2]", got[0].ID, got[1].ID)
	}
	if got[0].Attachments != nil {
		t.Errorf("expected no attachments, got %v", got[0].Attachments)
	}
	if len(got[1].Attachments) != 1 || got[1].Attachments[0].Size != 2048 {
		t.Errorf("attachments = %+v", got[1].Attachments)
	}
	if got[1].Author.AvatarURL != "https://example.org/b.png" {
		t.Errorf("AvatarURL = %q", got[1].Author.AvatarURL)
	}
	if !got[1].CreatedAt.Equal(base.Add(time.Hour)) {
		t.Errorf("CreatedAt = %v, want %v", got[1].CreatedAt, base.Add(time.Hour))
	}

	// Filter by stage.
	got, err = repo.ListByProcess(ctx, db, "proc-1", 2)
	if err != nil {
		t.Fatalf("ListByProcess stage=2: %v", err)
	}
	if len(got) != 1 || got[0].ID != "ev-2" {
		t.Fatalf("expected only ev-2, got %+v", got)
	}
}

func TestEventRepo_DuplicateID(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	repo := &EventRepo{}

	ev := domain.TimelineEvent{ID: "ev-dup", ProcessID: "proc-1", Title: "x", CreatedAt: time.Now()}
	if err := repo.Append(ctx, db, ev); err != nil {
		t.Fatalf("first Append: %v", err)
	}
	if err := repo.Append(ctx, db, ev); err == nil {
		t.Error("expected error on duplicate event id")
	}
}

func TestEventRepo_ListEmpty(t *testing.T) {
	db := newTestDB(t)

	got, err := (&EventRepo{}).ListByProcess(context.Background(), db, "nothing", 0)
	if err != nil {
		t.Fatalf("ListByProcess: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil, got %v", got)
	}
}
