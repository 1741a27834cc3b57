package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/valter-silva-au/swarmwatch/pkg/models"
)

func TestMemoryStore_StoreAndRetrieve(t *testing.T) {
	store := NewFileMemoryStore(t.TempDir())

	if err := store.Store("swarm:sess-1", "plan", map[string]any{"phase": "build"}, models.ScopeTeam); err != nil {
		t.Fatalf("storing entry: %v", err)
	}

	entry, err := store.Retrieve("swarm:sess-1", "plan")
	if err != nil {
		t.Fatalf("retrieving entry: %v", err)
	}
	if entry == nil {
		t.Fatal("expected entry, got nil")
	}
	if entry.Key != "plan" {
		t.Errorf("Key = %q, want %q", entry.Key, "plan")
	}
	if entry.Scope != models.ScopeTeam {
		t.Errorf("Scope = %q, want %q", entry.Scope, models.ScopeTeam)
	}
	if entry.UpdatedAt.IsZero() {
		t.Error("UpdatedAt not set")
	}
	value, ok := entry.Value.(map[string]any)
	if !ok {
		t.Fatalf("Value has type %T, want map", entry.Value)
	}
	if value["phase"] != "build" {
		t.Errorf("Value[phase] = %v, want build", value["phase"])
	}
}

func TestMemoryStore_RetrieveMissing(t *testing.T) {
	store := NewFileMemoryStore(t.TempDir())

	entry, err := store.Retrieve("swarm:sess-1", "absent")
	if err != nil {
		t.Fatalf("retrieving missing entry: %v", err)
	}
	if entry != nil {
		t.Errorf("expected nil entry, got %+v", entry)
	}
}

func TestMemoryStore_LastWriteWins(t *testing.T) {
	store := NewFileMemoryStore(t.TempDir())

	if err := store.Store("swarm:sess-1", "status", "starting", models.ScopePrivate); err != nil {
		t.Fatalf("first store: %v", err)
	}
	if err := store.Store("swarm:sess-1", "status", "running", models.ScopeTeam); err != nil {
		t.Fatalf("second store: %v", err)
	}

	entry, err := store.Retrieve("swarm:sess-1", "status")
	if err != nil {
		t.Fatalf("retrieving entry: %v", err)
	}
	if entry == nil {
		t.Fatal("expected entry, got nil")
	}
	if entry.Value != "running" {
		t.Errorf("Value = %v, want running", entry.Value)
	}
	if entry.Scope != models.ScopeTeam {
		t.Errorf("Scope = %q, want %q", entry.Scope, models.ScopeTeam)
	}

	entries, err := store.List("swarm:sess-1")
	if err != nil {
		t.Fatalf("listing entries: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("got %d entries, want 1", len(entries))
	}
}

func TestMemoryStore_ListSortedByKey(t *testing.T) {
	store := NewFileMemoryStore(t.TempDir())

	for _, key := range []string{"zeta", "alpha", "mid"} {
		if err := store.Store("swarm:sess-1", key, key, models.ScopeTeam); err != nil {
			t.Fatalf("storing %s: %v", key, err)
		}
	}

	entries, err := store.List("swarm:sess-1")
	if err != nil {
		t.Fatalf("listing entries: %v", err)
	}
	want := []string{"alpha", "mid", "zeta"}
	if len(entries) != len(want) {
		t.Fatalf("got %d entries, want %d", len(entries), len(want))
	}
	for i, key := range want {
		if entries[i].Key != key {
			t.Errorf("entry %d key = %q, want %q", i, entries[i].Key, key)
		}
	}
}

func TestMemoryStore_ListMissingNamespace(t *testing.T) {
	store := NewFileMemoryStore(t.TempDir())

	entries, err := store.List("swarm:never-seen")
	if err != nil {
		t.Fatalf("listing missing namespace: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("got %d entries, want 0", len(entries))
	}
}

func TestMemoryStore_NamespaceIsolation(t *testing.T) {
	store := NewFileMemoryStore(t.TempDir())

	if err := store.Store("swarm:a", "key", "from-a", models.ScopeTeam); err != nil {
		t.Fatalf("storing in a: %v", err)
	}
	if err := store.Store("swarm:b", "key", "from-b", models.ScopeTeam); err != nil {
		t.Fatalf("storing in b: %v", err)
	}

	entry, err := store.Retrieve("swarm:a", "key")
	if err != nil {
		t.Fatalf("retrieving from a: %v", err)
	}
	if entry == nil || entry.Value != "from-a" {
		t.Errorf("namespace a entry = %+v, want from-a", entry)
	}
}

func TestMemoryStore_NamespaceFileOnDisk(t *testing.T) {
	base := t.TempDir()
	store := NewFileMemoryStore(base)

	if err := store.Store("swarm:sess/1", "key", "value", models.ScopeTeam); err != nil {
		t.Fatalf("storing entry: %v", err)
	}

	path := filepath.Join(base, "memory", "swarm-sess-1.yaml")
	if _, err := os.Stat(path); err != nil {
		t.Errorf("expected namespace file at %s: %v", path, err)
	}
}

func TestSanitizeNamespace(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"swarm:sess-1", "swarm-sess-1"},
		{"plain", "plain"},
		{"a/b\\c", "a-b-c"},
		{"::", "default"},
		{"", "default"},
		{"dots.and_underscores", "dots.and_underscores"},
	}
	for _, tt := range tests {
		if got := sanitizeNamespace(tt.in); got != tt.want {
			t.Errorf("sanitizeNamespace(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
