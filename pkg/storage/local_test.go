package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func newTestLocal(t *testing.T) *Local {
	t.Helper()
	s, err := NewLocal(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestLocalWriteAndRead(t *testing.T) {
	s := newTestLocal(t)
	ctx := context.Background()

	if err := s.WriteFile(ctx, "a/b/table.json", []byte(`{"alice":[1]}`)); err != nil {
		t.Fatal(err)
	}
	got, err := s.ReadFile(ctx, "a/b/table.json")
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != `{"alice":[1]}` {
		t.Fatalf("got %q", got)
	}
}

func TestLocalReadNotExist(t *testing.T) {
	s := newTestLocal(t)
	_, err := s.ReadFile(context.Background(), "no-such-file")
	if !errors.Is(err, ErrNotExist) {
		t.Fatalf("expected ErrNotExist, got %v", err)
	}
}

func TestLocalReplaceLeavesNoTempFiles(t *testing.T) {
	s := newTestLocal(t)
	ctx := context.Background()

	if err := s.WriteFile(ctx, "f", []byte("long content here")); err != nil {
		t.Fatal(err)
	}
	if err := s.WriteFile(ctx, "f", []byte("short")); err != nil {
		t.Fatal(err)
	}
	got, err := s.ReadFile(ctx, "f")
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "short" {
		t.Fatalf("got %q, want %q", got, "short")
	}

	entries, err := os.ReadDir(s.Root())
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		var names []string
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Fatalf("expected only the target file, found %v", names)
	}
}

func TestLocalWriteFailureKeepsOldContents(t *testing.T) {
	s := newTestLocal(t)
	ctx := context.Background()

	if err := s.WriteFile(ctx, "dir/f", []byte("old")); err != nil {
		t.Fatal(err)
	}
	// A directory at the target path makes the rename fail.
	if err := os.MkdirAll(filepath.Join(s.Root(), "dir", "g", "child"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := s.WriteFile(ctx, "dir/g", []byte("new")); err == nil {
		t.Fatal("expected error replacing a non-empty directory")
	}
	got, err := s.ReadFile(ctx, "dir/f")
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "old" {
		t.Fatalf("got %q, want %q", got, "old")
	}
	entries, _ := os.ReadDir(filepath.Join(s.Root(), "dir"))
	if len(entries) != 2 {
		t.Fatalf("temp file left behind: %d entries", len(entries))
	}
}

func TestLocalExistsAndDelete(t *testing.T) {
	s := newTestLocal(t)
	ctx := context.Background()

	ok, err := s.Exists(ctx, "tmp")
	if err != nil || ok {
		t.Fatalf("Exists(missing) = %v, %v", ok, err)
	}
	if err := s.Delete(ctx, "tmp"); err != nil {
		t.Fatal(err)
	}
	if err := s.WriteFile(ctx, "tmp", []byte("x")); err != nil {
		t.Fatal(err)
	}
	ok, err = s.Exists(ctx, "tmp")
	if err != nil || !ok {
		t.Fatalf("Exists(present) = %v, %v", ok, err)
	}
	if err := s.Delete(ctx, "tmp"); err != nil {
		t.Fatal(err)
	}
	ok, _ = s.Exists(ctx, "tmp")
	if ok {
		t.Fatal("file should be gone after delete")
	}
}
