package store

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestNewClipPathUniqueAndNamed(t *testing.T) {
	t.Parallel()

	s := New(filepath.Join(t.TempDir(), "recordings"), "voicenote_", ".m4a")
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	first, err := s.NewClipPath(now)
	if err != nil {
		t.Fatalf("clip path allocation failed: %v", err)
	}
	second, err := s.NewClipPath(now)
	if err != nil {
		t.Fatalf("clip path allocation failed: %v", err)
	}

	if first == second {
		t.Fatal("two clips allocated at the same instant collided")
	}

	name := filepath.Base(first)
	if !strings.HasPrefix(name, "voicenote_") {
		t.Errorf("missing prefix: %s", name)
	}
	if !strings.HasSuffix(name, ".m4a") {
		t.Errorf("missing extension: %s", name)
	}
	if !strings.Contains(name, "1748779200000") {
		t.Errorf("name does not embed the creation timestamp: %s", name)
	}

	// The recordings directory was created on demand.
	if _, err := os.Stat(s.Dir()); err != nil {
		t.Fatalf("recordings directory missing: %v", err)
	}
}

func TestListNewestFirst(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	s := New(dir, "voicenote_", ".m4a")

	older := filepath.Join(dir, "voicenote_1_aaaa.m4a")
	newer := filepath.Join(dir, "voicenote_2_bbbb.m4a")
	if err := os.WriteFile(older, []byte("a"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(newer, []byte("bb"), 0644); err != nil {
		t.Fatal(err)
	}
	past := time.Now().Add(-time.Hour)
	if err := os.Chtimes(older, past, past); err != nil {
		t.Fatal(err)
	}
	// Non-clip files are ignored.
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	clips, err := s.List()
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(clips) != 2 {
		t.Fatalf("expected 2 clips, got %d", len(clips))
	}
	if clips[0].Name != "voicenote_2_bbbb.m4a" {
		t.Fatalf("expected newest first, got %s", clips[0].Name)
	}
	if clips[1].Size != 1 {
		t.Fatalf("unexpected size: %d", clips[1].Size)
	}
}

func TestListMissingDirectory(t *testing.T) {
	t.Parallel()

	s := New(filepath.Join(t.TempDir(), "never-created"), "", "")
	clips, err := s.List()
	if err != nil {
		t.Fatalf("missing directory must not error: %v", err)
	}
	if len(clips) != 0 {
		t.Fatalf("expected no clips, got %d", len(clips))
	}
}

func TestDeleteBestEffort(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	s := New(dir, "voicenote_", ".m4a")

	path := filepath.Join(dir, "voicenote_3_cccc.m4a")
	if err := os.WriteFile(path, []byte("data"), 0644); err != nil {
		t.Fatal(err)
	}

	if !s.Delete(path) {
		t.Fatal("delete of existing clip reported failure")
	}
	if s.Delete(path) {
		t.Fatal("delete of missing clip reported success")
	}
	if s.Delete("") {
		t.Fatal("delete of empty reference reported success")
	}

	// Bare names resolve inside the directory; traversal is rejected.
	if err := os.WriteFile(filepath.Join(dir, "voicenote_4_dddd.m4a"), []byte("data"), 0644); err != nil {
		t.Fatal(err)
	}
	if !s.Delete("voicenote_4_dddd.m4a") {
		t.Fatal("delete by bare name failed")
	}
	if s.Delete("../voicenote_4_dddd.m4a") {
		t.Fatal("traversal delete reported success")
	}
}

func TestResolveRejectsTraversal(t *testing.T) {
	t.Parallel()

	s := New(t.TempDir(), "voicenote_", ".m4a")
	for _, name := range []string{"", "..", "../clip.m4a", "a/b.m4a", `a\b.m4a`} {
		if _, err := s.Resolve(name); err == nil {
			t.Errorf("expected rejection of %q", name)
		}
	}
	if _, err := s.Resolve("voicenote_5.m4a"); err != nil {
		t.Errorf("valid name rejected: %v", err)
	}
}
