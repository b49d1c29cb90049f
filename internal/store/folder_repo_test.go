package store

import (
	"context"
	"testing"
)

func TestFolderRepo_SaveLoad(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	repo := &FolderRepo{}

	got, err := repo.Load(ctx, db, "Ana")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil payload, got %q", got)
	}

	if err := repo.Save(ctx, db, "Ana", []byte(`[{"id":"todos"}]`), 1); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := repo.Save(ctx, db, "Ana", []byte(`[]`), 2); err != nil {
		t.Fatalf("Save overwrite: %v", err)
	}

	got, err = repo.Load(ctx, db, "Ana")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if string(got) != "[]" {
		t.Errorf("payload = %q, want []", got)
	}
}
