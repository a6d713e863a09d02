package storage

import (
	"errors"
	"path/filepath"
	"sqpplus/internal/domain"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *GormStore {
	t.Helper()
	store, err := NewGormStore(filepath.Join(t.TempDir(), "catalog.db"))
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func sampleInstance(id, name string) *domain.ServerInstance {
	return &domain.ServerInstance{
		ID:           id,
		Name:         name,
		BasePath:     "/srv/games",
		InstancePath: "/srv/games/" + name,
		GamePort:     7787,
		QueryPort:    27165,
		MaxPlayers:   80,
		SessionName:  name,
		RconSecret:   "hunter2",
	}
}

func TestInsertAndGetInstance(t *testing.T) {
	store := newTestStore(t)

	if err := store.InsertInstance(sampleInstance("1", "alpha")); err != nil {
		t.Fatalf("InsertInstance failed: %v", err)
	}

	got, err := store.GetInstanceByName("alpha")
	if err != nil {
		t.Fatalf("GetInstanceByName failed: %v", err)
	}
	if got == nil {
		t.Fatal("Expected instance, got nil")
	}
	if got.InstancePath != "/srv/games/alpha" {
		t.Errorf("InstancePath = %q, want /srv/games/alpha", got.InstancePath)
	}
	if got.CreatedAt.IsZero() {
		t.Error("Expected CreatedAt to be set on insert")
	}

	missing, err := store.GetInstanceByName("ghost")
	if err != nil {
		t.Fatalf("GetInstanceByName(ghost) failed: %v", err)
	}
	if missing != nil {
		t.Errorf("Expected nil for unknown name, got %+v", missing)
	}
}

func TestInsertDuplicateName(t *testing.T) {
	store := newTestStore(t)

	if err := store.InsertInstance(sampleInstance("1", "alpha")); err != nil {
		t.Fatalf("InsertInstance failed: %v", err)
	}

	dup := sampleInstance("2", "alpha")
	dup.GamePort = 9999
	err := store.InsertInstance(dup)
	if !errors.Is(err, domain.ErrNameConflict) {
		t.Fatalf("Expected ErrNameConflict, got %v", err)
	}

	list, err := store.ListInstances()
	if err != nil {
		t.Fatalf("ListInstances failed: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("Expected 1 record, got %d", len(list))
	}
	if list[0].GamePort != 7787 {
		t.Errorf("Original record was modified: GamePort = %d", list[0].GamePort)
	}
}

func TestListInstancesNewestFirst(t *testing.T) {
	store := newTestStore(t)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, name := range []string{"first", "second", "third"} {
		inst := sampleInstance(name, name)
		inst.CreatedAt = base.Add(time.Duration(i) * time.Hour)
		if err := store.InsertInstance(inst); err != nil {
			t.Fatalf("InsertInstance(%s) failed: %v", name, err)
		}
	}

	list, err := store.ListInstances()
	if err != nil {
		t.Fatalf("ListInstances failed: %v", err)
	}
	want := []string{"third", "second", "first"}
	if len(list) != len(want) {
		t.Fatalf("Expected %d records, got %d", len(want), len(list))
	}
	for i, name := range want {
		if list[i].Name != name {
			t.Errorf("list[%d] = %s, want %s", i, list[i].Name, name)
		}
	}
}

func TestDeleteInstance(t *testing.T) {
	store := newTestStore(t)

	if err := store.InsertInstance(sampleInstance("1", "alpha")); err != nil {
		t.Fatalf("InsertInstance failed: %v", err)
	}
	if err := store.DeleteInstance("alpha"); err != nil {
		t.Fatalf("DeleteInstance failed: %v", err)
	}
	if got, _ := store.GetInstanceByName("alpha"); got != nil {
		t.Error("Expected record to be gone after delete")
	}

	if err := store.DeleteInstance("alpha"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Expected ErrNotFound deleting twice, got %v", err)
	}
}
