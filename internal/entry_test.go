package internal

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/starford/archgraph/internal/apperr"
	"github.com/starford/archgraph/internal/index"
	"github.com/starford/archgraph/internal/testutil"
)

func corpusConfig(t *testing.T, files map[string]string) *Config {
	t.Helper()
	root, _ := testutil.TestCorpus(t, files)
	cfg := NewDefaultConfig()
	cfg.Corpus.Root = root
	cfg.Imports.File = "imports.json"
	cfg.Index.SQLitePath = filepath.Join(t.TempDir(), "archgraph.db")
	return cfg
}

func TestCheck_CleanCorpus(t *testing.T) {
	cfg := corpusConfig(t, testutil.SampleCorpus)
	var out bytes.Buffer
	err := Check(context.Background(), WithConfig(cfg), WithOutput(&out), WithLogOutput(io.Discard))
	if err != nil {
		t.Fatalf("Check: %v\n%s", err, out.String())
	}
	if !strings.Contains(out.String(), `"ok":true`) {
		t.Errorf("missing summary: %s", out.String())
	}
	if _, err := os.Stat(filepath.Join(cfg.Corpus.Root, cfg.Index.ArtifactPath)); !os.IsNotExist(err) {
		t.Error("check must not write the artifact")
	}
}

func TestCheck_ErrorsFailRun(t *testing.T) {
	files := map[string]string{}
	for k, v := range testutil.SampleCorpus {
		files[k] = v
	}
	files["docs/features/store.md"] = "---\nfeature: store\nstatus: active\nentry_point: internal/store/db.go\ndependencies:\n  - auth\n---\n"

	cfg := corpusConfig(t, files)
	var out bytes.Buffer
	err := Check(context.Background(), WithConfig(cfg), WithOutput(&out), WithLogOutput(io.Discard))
	if !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}
	if !strings.Contains(out.String(), "[circular_dependency]") {
		t.Errorf("report missing cycle:\n%s", out.String())
	}
}

func TestIndex_WritesArtifactAndMirror(t *testing.T) {
	cfg := corpusConfig(t, testutil.SampleCorpus)
	err := Index(context.Background(), WithConfig(cfg), WithOutput(io.Discard), WithLogOutput(io.Discard))
	if err != nil {
		t.Fatalf("Index: %v", err)
	}
	if _, err := os.Stat(filepath.Join(cfg.Corpus.Root, cfg.Index.ArtifactPath)); err != nil {
		t.Errorf("artifact missing: %v", err)
	}

	db, err := index.Open(cfg.Index.SQLitePath)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	if _, err := db.Feature("auth"); err != nil {
		t.Errorf("mirror missing feature: %v", err)
	}
}

func TestIndex_MissingRootIsFatal(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Corpus.Root = filepath.Join(t.TempDir(), "absent")
	err := Index(context.Background(), WithConfig(cfg), WithOutput(io.Discard), WithLogOutput(io.Discard))
	if !errors.Is(err, apperr.ErrFatal) {
		t.Fatalf("err = %v, want ErrFatal", err)
	}
}

func TestRun_ConfigRequired(t *testing.T) {
	if err := Check(context.Background()); err == nil {
		t.Fatal("missing config should fail")
	}
}

func TestWatchSkip(t *testing.T) {
	root := t.TempDir()
	cfg := NewDefaultConfig()
	cfg.Index.SQLitePath = filepath.Join(root, "archgraph.db")
	skip := watchSkip(cfg, root)

	cases := []struct {
		rel   string
		isDir bool
		want  bool
	}{
		{".git", true, true},
		{"node_modules", true, true},
		{"docs", true, false},
		{".archgraph/index.json", false, true},
		{".archgraph/imports.json", false, true},
		{"docs/features/.archgraph-tmp-42", false, true},
		{"archgraph.db", false, true},
		{"archgraph.db-wal", false, true},
		{"docs/features/auth.md", false, false},
	}
	for _, tc := range cases {
		if got := skip(tc.rel, tc.isDir); got != tc.want {
			t.Errorf("skip(%q, %v) = %v, want %v", tc.rel, tc.isDir, got, tc.want)
		}
	}
}
