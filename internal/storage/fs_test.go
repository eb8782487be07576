package storage

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func tempCorpus(t *testing.T) *FS {
	t.Helper()
	dir := t.TempDir()
	fs, err := NewFS(dir)
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	return fs
}

func TestWriteAndRead(t *testing.T) {
	s := tempCorpus(t)
	content := []byte("---\nfeature: auth\n---\n")
	if err := s.Write("docs/features/auth.md", content); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := s.Read("docs/features/auth.md")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != string(content) {
		t.Errorf("content mismatch: got %q", got)
	}
}

func TestListDocs(t *testing.T) {
	s := tempCorpus(t)
	_ = s.Write("docs/features/b.md", []byte("b"))
	_ = s.Write("docs/features/sub/a.md", []byte("a"))
	_ = s.Write("docs/features/notes.txt", []byte("not md"))

	items, err := s.ListDocs("docs/features")
	if err != nil {
		t.Fatalf("ListDocs: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("len = %d, want 2", len(items))
	}
	if items[0].Path != "docs/features/b.md" || items[1].Path != "docs/features/sub/a.md" {
		t.Errorf("paths = %q, %q", items[0].Path, items[1].Path)
	}
	if items[0].Checksum == "" {
		t.Error("checksum should be populated")
	}
}

func TestListDocs_MissingDir(t *testing.T) {
	s := tempCorpus(t)
	items, err := s.ListDocs("docs/shared-types")
	if err != nil {
		t.Fatalf("ListDocs: %v", err)
	}
	if len(items) != 0 {
		t.Errorf("expected empty listing, got %v", items)
	}
}

func TestWalk_SkipsBuildDirsAndIgnored(t *testing.T) {
	s := tempCorpus(t)
	_ = s.Write("main.go", []byte("package main"))
	_ = s.Write("internal/a.go", []byte("package a"))
	_ = s.Write("node_modules/x/index.js", []byte(""))
	_ = s.Write(".git/HEAD", []byte(""))
	_ = s.Write("debug.log", []byte(""))
	_ = s.Write("gen/skip.pb.go", []byte(""))
	_ = s.Write(".gitignore", []byte("*.log\n"))

	files, err := s.Walk(WalkOptions{RespectGitignore: true, Exclude: []string{"gen/**"}})
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}
	got := strings.Join(files, ",")
	want := ".gitignore,internal/a.go,main.go"
	if got != want {
		t.Errorf("files = %q, want %q", got, want)
	}

	files, err = s.Walk(WalkOptions{IncludeBuildDirs: true})
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}
	found := false
	for _, f := range files {
		if f == "node_modules/x/index.js" {
			found = true
		}
		if strings.HasPrefix(f, ".git/") {
			t.Errorf("VCS metadata should never be listed: %s", f)
		}
	}
	if !found {
		t.Error("build dirs should be listed when IncludeBuildDirs is set")
	}
}

func TestTraversalBlocked(t *testing.T) {
	s := tempCorpus(t)

	cases := []string{
		"../../etc/passwd",
		"../outside.md",
		"/etc/shadow",
	}
	for _, p := range cases {
		if _, err := s.Read(p); err == nil {
			t.Errorf("expected error for path %q", p)
		}
		if err := s.Write(p, []byte("x")); err == nil {
			t.Errorf("expected error for write to %q", p)
		}
	}
}

func TestAtomicWriteNoLeftovers(t *testing.T) {
	s := tempCorpus(t)
	_ = s.Write(".archgraph/index.json", []byte("original"))

	updated := []byte("updated")
	if err := s.Write(".archgraph/index.json", updated); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, _ := s.Read(".archgraph/index.json")
	if string(got) != string(updated) {
		t.Errorf("expected updated content, got %q", got)
	}

	matches, _ := filepath.Glob(filepath.Join(s.root, ".archgraph", ".archgraph-tmp-*"))
	if len(matches) != 0 {
		t.Errorf("leftover temp files: %v", matches)
	}
}

func TestNewFS_NonExistentDir(t *testing.T) {
	_, err := NewFS(filepath.Join(t.TempDir(), "does-not-exist"))
	if err == nil {
		t.Error("expected error for non-existent dir")
	}
}

func TestNewFS_FileNotDir(t *testing.T) {
	f, _ := os.CreateTemp("", "archgraph-test-*")
	_ = f.Close()
	defer os.Remove(f.Name())
	_, err := NewFS(f.Name())
	if err == nil {
		t.Error("expected error when root is a file")
	}
}

func TestSkipHelpers(t *testing.T) {
	opts := WalkOptions{Exclude: []string{".archgraph/**"}}
	if !SkipDirName(".git", opts) || !SkipDirName("node_modules", opts) {
		t.Error("vcs and build dirs should be skipped")
	}
	if SkipDirName("node_modules", WalkOptions{IncludeBuildDirs: true}) {
		t.Error("build dirs kept when IncludeBuildDirs is set")
	}
	if SkipDirName(".git", WalkOptions{IncludeBuildDirs: true}) != true {
		t.Error("vcs dirs are always skipped")
	}
	if !opts.Excluded(".archgraph/index.json") || opts.Excluded("docs/a.md") {
		t.Error("Excluded mismatch")
	}
	if !IsTemp("docs/.archgraph-tmp-123") || IsTemp("docs/a.md") {
		t.Error("IsTemp mismatch")
	}
}
