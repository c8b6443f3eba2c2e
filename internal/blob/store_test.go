package blob

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	// nested so lazy creation of the root is exercised
	return NewStore(filepath.Join(t.TempDir(), "a", "offline_storage"))
}

func TestWriteReadDelete(t *testing.T) {
	s := newTestStore(t)

	p, err := s.Write("track-1", Media, strings.NewReader("hello world"))
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if filepath.Base(p) != "track-1.blob" {
		t.Errorf("path = %s, want track-1.blob", p)
	}

	got, ok, err := s.Read("track-1", Media)
	if err != nil || !ok {
		t.Fatalf("Read: ok=%v err=%v", ok, err)
	}
	if string(got) != "hello world" {
		t.Errorf("content = %q", got)
	}

	if !s.Exists("track-1", Media) {
		t.Error("expected blob to exist")
	}
	if s.Exists("track-1", Thumbnail) {
		t.Error("thumbnail should not exist")
	}

	if err := s.Delete("track-1", Media); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if s.Exists("track-1", Media) {
		t.Error("blob should be gone")
	}
}

func TestReadMissing(t *testing.T) {
	s := newTestStore(t)

	got, ok, err := s.Read("nope", Thumbnail)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if ok || got != nil {
		t.Errorf("Read missing = (%v, %v), want (nil, false)", got, ok)
	}
}

func TestDeleteMissingIsNoop(t *testing.T) {
	s := newTestStore(t)

	if err := s.Delete("nope", Media); err != nil {
		t.Errorf("Delete missing: %v", err)
	}
	if err := s.DeleteAll("nope"); err != nil {
		t.Errorf("DeleteAll missing: %v", err)
	}
}

func TestWriteOverwrites(t *testing.T) {
	s := newTestStore(t)

	if _, err := s.Write("x", Thumbnail, strings.NewReader("first")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if _, err := s.Write("x", Thumbnail, strings.NewReader("second")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	got, _, _ := s.Read("x", Thumbnail)
	if string(got) != "second" {
		t.Errorf("content = %q, want second", got)
	}

	// no temp files left behind
	entries, err := os.ReadDir(s.Root())
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("expected 1 file in root, got %d", len(entries))
	}
}

func TestCreateAndCommit(t *testing.T) {
	s := newTestStore(t)

	f, p, err := s.Create("movie", Media)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if p != s.Path("movie", Media) {
		t.Errorf("path = %s, want %s", p, s.Path("movie", Media))
	}
	if _, err := f.Write([]byte("abc")); err != nil {
		t.Fatalf("write: %v", err)
	}
	f.Close()

	// staged content is not visible yet
	if s.Exists("movie", Media) {
		t.Error("staged file should not be visible before commit")
	}

	committed, err := s.Commit(f.Name(), "movie", Media)
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if committed != p {
		t.Errorf("committed path = %s, want %s", committed, p)
	}

	got, ok, _ := s.Read("movie", Media)
	if !ok || string(got) != "abc" {
		t.Errorf("Read = (%q, %v)", got, ok)
	}
}

func TestCreateGivesDistinctStagingFiles(t *testing.T) {
	s := newTestStore(t)

	f1, _, err := s.Create("movie", Media)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer f1.Close()

	f2, _, err := s.Create("movie", Media)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer f2.Close()

	if f1.Name() == f2.Name() {
		t.Error("two staging files share a name")
	}
}

func TestCommitRejectsForeignFile(t *testing.T) {
	s := newTestStore(t)

	foreign := filepath.Join(t.TempDir(), "x")
	if err := os.WriteFile(foreign, []byte("x"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	if _, err := s.Commit(foreign, "movie", Media); err == nil {
		t.Error("expected an error for a file outside the root")
	}
}

func TestInvalidIds(t *testing.T) {
	s := newTestStore(t)

	for _, id := range []string{"", ".", "..", "../escape", "a/b", `a\b`} {
		if _, err := s.Write(id, Media, strings.NewReader("x")); !errors.Is(err, ErrInvalidId) {
			t.Errorf("Write(%q) err = %v, want ErrInvalidId", id, err)
		}
		if s.Exists(id, Media) {
			t.Errorf("Exists(%q) = true", id)
		}
	}
}

func TestUsageAndClear(t *testing.T) {
	s := newTestStore(t)

	usage, err := s.Usage()
	if err != nil {
		t.Fatalf("Usage on missing root: %v", err)
	}
	if usage != 0 {
		t.Errorf("usage = %d, want 0", usage)
	}

	if _, err := s.Write("a", Media, bytes.NewReader(make([]byte, 100))); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if _, err := s.Write("a", Thumbnail, bytes.NewReader(make([]byte, 20))); err != nil {
		t.Fatalf("Write: %v", err)
	}
	// orphan without any record still counts
	if err := os.WriteFile(filepath.Join(s.Root(), "orphan.blob"), make([]byte, 5), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	// directories are not counted
	if err := os.Mkdir(filepath.Join(s.Root(), "sub"), 0o755); err != nil {
		t.Fatalf("Mkdir: %v", err)
	}

	usage, err = s.Usage()
	if err != nil {
		t.Fatalf("Usage: %v", err)
	}
	if usage != 125 {
		t.Errorf("usage = %d, want 125", usage)
	}

	if err := s.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}

	usage, _ = s.Usage()
	if usage != 0 {
		t.Errorf("usage after clear = %d, want 0", usage)
	}

	info, err := os.Stat(s.Root())
	if err != nil || !info.IsDir() {
		t.Errorf("root should exist after clear: %v", err)
	}
}
