package file

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestSetGetDelete(t *testing.T) {
	store, err := NewStore(filepath.Join(t.TempDir(), "state.json"))
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	ctx := context.Background()

	if _, ok, err := store.Get(ctx, "missing"); err != nil || ok {
		t.Fatalf("Get(missing) = ok=%v err=%v, want absent", ok, err)
	}

	if err := store.Set(ctx, "session.credential", []byte(`{"access":"a1"}`)); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	got, ok, err := store.Get(ctx, "session.credential")
	if err != nil || !ok {
		t.Fatalf("Get = ok=%v err=%v", ok, err)
	}
	if !bytes.Equal(got, []byte(`{"access":"a1"}`)) {
		t.Errorf("Get = %s", got)
	}

	if err := store.Delete(ctx, "session.credential"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, ok, _ := store.Get(ctx, "session.credential"); ok {
		t.Error("Key still present after Delete")
	}
	// Deleting an absent key is a no-op.
	if err := store.Delete(ctx, "session.credential"); err != nil {
		t.Errorf("Second Delete failed: %v", err)
	}
}

func TestReopenReadsPersistedState(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	ctx := context.Background()

	store, err := NewStore(path)
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	if err := store.Set(ctx, "recovery.attempt_count", []byte("2")); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	store.Close()

	reopened, err := NewStore(path)
	if err != nil {
		t.Fatalf("Reopen failed: %v", err)
	}
	got, ok, err := reopened.Get(ctx, "recovery.attempt_count")
	if err != nil || !ok {
		t.Fatalf("Get after reopen = ok=%v err=%v", ok, err)
	}
	if string(got) != "2" {
		t.Errorf("Get after reopen = %s, want 2", got)
	}
}

func TestCreatesParentDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "state.json")
	store, err := NewStore(path)
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	if err := store.Set(context.Background(), "k", []byte("v")); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("State file not written: %v", err)
	}
}

func TestCorruptStateFileRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	if err := os.WriteFile(path, []byte("not json"), 0o600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	if _, err := NewStore(path); err == nil {
		t.Fatal("Expected an error for a corrupt state file")
	}
}

func TestValuesAreCopied(t *testing.T) {
	store, err := NewStore(filepath.Join(t.TempDir(), "state.json"))
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	ctx := context.Background()

	in := []byte("original")
	if err := store.Set(ctx, "k", in); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	in[0] = 'X'

	got, _, _ := store.Get(ctx, "k")
	if string(got) != "original" {
		t.Errorf("Stored value mutated: %s", got)
	}
	got[0] = 'Y'

	again, _, _ := store.Get(ctx, "k")
	if string(again) != "original" {
		t.Errorf("Returned slice aliases storage: %s", again)
	}
}
